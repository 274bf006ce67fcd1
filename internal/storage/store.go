// internal/storage/store.go

package storage

import (
	"errors"
	"fmt"
	"time"

	"sshTerm/internal/crypto"
	"sshTerm/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store to trwały magazyn sesji i folderów oparty o SQLite.
// Silnik połączeń nie zależy od tej warstwy - dostaje gotowe,
// sklonowane deskryptory models.Session.
type Store struct {
	db     *gorm.DB
	cipher *crypto.Cipher
}

// Open otwiera (lub tworzy) bazę pod podaną ścieżką i wykonuje migracje.
// Cipher służy do szyfrowania haseł sesji przed zapisem.
func Open(path string, cipher *crypto.Cipher) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&models.Session{}, &models.Folder{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db, cipher: cipher}, nil
}

// Close zamyka połączenie z bazą.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Sessions zwraca wszystkie zapisane sesje, posortowane po nazwie.
func (s *Store) Sessions() ([]models.Session, error) {
	var sessions []models.Session
	if err := s.db.Order("name").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// GetSession zwraca sesję o podanym id albo nil gdy nie istnieje.
func (s *Store) GetSession(id string) (*models.Session, error) {
	var session models.Session
	err := s.db.First(&session, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

// CreateSession zapisuje nową sesję.
func (s *Store) CreateSession(session *models.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}
	if err := s.db.Create(session).Error; err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// UpdateSession nadpisuje istniejącą sesję.
func (s *Store) UpdateSession(session *models.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}
	if err := s.db.Save(session).Error; err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// DeleteSession usuwa sesję o podanym id.
func (s *Store) DeleteSession(id string) error {
	if err := s.db.Delete(&models.Session{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// SetSessionPassword szyfruje i zapisuje hasło sesji.
func (s *Store) SetSessionPassword(id, plaintext string) error {
	encrypted, err := s.cipher.Encrypt(plaintext)
	if err != nil {
		return err
	}
	if err := s.db.Model(&models.Session{}).Where("id = ?", id).
		Update("encrypted_password", encrypted).Error; err != nil {
		return fmt.Errorf("failed to store password: %w", err)
	}
	return nil
}

// SessionPassword odszyfrowuje hasło zapisane w deskryptorze.
// Pusty wynik oznacza brak zapisanego hasła.
func (s *Store) SessionPassword(session *models.Session) (string, error) {
	if session.EncryptedPassword == "" {
		return "", nil
	}
	return s.cipher.Decrypt(session.EncryptedPassword)
}

// TouchConnected zapisuje czas ostatniego udanego połączenia.
func (s *Store) TouchConnected(id string) error {
	now := time.Now().UTC()
	if err := s.db.Model(&models.Session{}).Where("id = ?", id).
		Update("last_connected_at", &now).Error; err != nil {
		return fmt.Errorf("failed to update last connected time: %w", err)
	}
	return nil
}

// SetAutoConnect zapisuje flagę automatycznego łączenia.
func (s *Store) SetAutoConnect(id string, autoConnect bool) error {
	if err := s.db.Model(&models.Session{}).Where("id = ?", id).
		Update("auto_connect", autoConnect).Error; err != nil {
		return fmt.Errorf("failed to update auto connect flag: %w", err)
	}
	return nil
}

// Folders zwraca wszystkie foldery w kolejności sortowania.
func (s *Store) Folders() ([]models.Folder, error) {
	var folders []models.Folder
	if err := s.db.Order("sort_order, name").Find(&folders).Error; err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	return folders, nil
}

// CreateFolder zapisuje nowy folder.
func (s *Store) CreateFolder(folder *models.Folder) error {
	if err := s.db.Create(folder).Error; err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}
	return nil
}

// DeleteFolder usuwa folder; sesje w nim zostają bez folderu.
func (s *Store) DeleteFolder(id string) error {
	if err := s.db.Model(&models.Session{}).Where("folder_id = ?", id).
		Update("folder_id", "").Error; err != nil {
		return fmt.Errorf("failed to detach sessions from folder: %w", err)
	}
	if err := s.db.Delete(&models.Folder{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}
	return nil
}
