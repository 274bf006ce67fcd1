// internal/models/session.go

package models

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// AuthMode określa sposób uwierzytelnienia sesji.
// Zbiór jest zamknięty - switch po AuthMode musi obsłużyć oba warianty.
type AuthMode string

const (
	AuthPassword  AuthMode = "password"
	AuthPublicKey AuthMode = "publickey"
)

// Session opisuje zdalny cel połączenia. Po przekazaniu do silnika
// połączeń deskryptor jest traktowany jako niezmienny - zawsze
// przekazujemy kopię (Clone), nigdy współdzielony wskaźnik.
type Session struct {
	ID       string   `json:"id" gorm:"primaryKey"`
	Name     string   `json:"name"`
	Host     string   `json:"host"`
	Port     int      `json:"port"`
	Username string   `json:"username"`
	AuthMode AuthMode `json:"auth_mode"`

	// KeyPath to ścieżka do klucza prywatnego (tylko dla AuthPublicKey).
	// Skrót "~" jest rozwijany dopiero przy wczytaniu klucza.
	KeyPath string `json:"key_path,omitempty"`

	// EncryptedPassword to hasło zaszyfrowane AES-256-GCM (tylko dla
	// AuthPassword). Odszyfrowanie wykonuje warstwa storage.
	EncryptedPassword string `json:"encrypted_password,omitempty"`

	// Zaawansowane opcje SSH.
	JumpHost          string `json:"jump_host,omitempty"` // format: user@host:port
	AgentForwarding   bool   `json:"agent_forwarding"`
	LocalForwardPort  int    `json:"local_forward_port,omitempty"`
	RemoteForwardAddr string `json:"remote_forward_addr,omitempty"` // format: host:port

	FolderID        string     `json:"folder_id,omitempty"`
	AutoConnect     bool       `json:"auto_connect"`
	LastConnectedAt *time.Time `json:"last_connected_at,omitempty"`
}

// Folder grupuje sesje w hierarchię widoczną na liście.
type Folder struct {
	ID        string `json:"id" gorm:"primaryKey"`
	Name      string `json:"name"`
	ParentID  string `json:"parent_id,omitempty"`
	SortOrder int    `json:"sort_order"`
}

// NewSession tworzy nowy deskryptor sesji z wygenerowanym identyfikatorem
// i domyślnym portem SSH.
func NewSession(name, host, username string) Session {
	return Session{
		ID:       uuid.NewString(),
		Name:     name,
		Host:     host,
		Port:     22,
		Username: username,
		AuthMode: AuthPassword,
	}
}

// NewFolder tworzy nowy folder z wygenerowanym identyfikatorem.
func NewFolder(name, parentID string) Folder {
	return Folder{
		ID:       uuid.NewString(),
		Name:     name,
		ParentID: parentID,
	}
}

// Validate sprawdza poprawność deskryptora sesji.
func (s *Session) Validate() error {
	if s.ID == "" {
		return errors.New("session id cannot be empty")
	}
	if s.Name == "" {
		return errors.New("name cannot be empty")
	}
	if s.Host == "" {
		return errors.New("host cannot be empty")
	}
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("invalid port: %d", s.Port)
	}
	if s.Username == "" {
		return errors.New("username cannot be empty")
	}
	switch s.AuthMode {
	case AuthPassword:
		// Hasło może być podane dopiero przy łączeniu.
	case AuthPublicKey:
		if s.KeyPath == "" {
			return errors.New("key path is required for publickey auth")
		}
	default:
		return fmt.Errorf("unknown auth mode: %q", s.AuthMode)
	}
	if s.LocalForwardPort != 0 {
		if s.LocalForwardPort < 1 || s.LocalForwardPort > 65535 {
			return fmt.Errorf("invalid local forward port: %d", s.LocalForwardPort)
		}
		if s.RemoteForwardAddr == "" {
			return errors.New("remote forward address is required when local forward port is set")
		}
	}
	return nil
}

// Clone zwraca kopię deskryptora do przekazania poza warstwę storage.
func (s *Session) Clone() Session {
	clone := *s
	if s.LastConnectedAt != nil {
		t := *s.LastConnectedAt
		clone.LastConnectedAt = &t
	}
	return clone
}

// Addr zwraca adres hosta w formie host:port.
func (s *Session) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
