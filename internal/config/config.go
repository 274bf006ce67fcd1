// internal/config/config.go

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	DefaultConfigFileName   = "sshterm.json"
	DefaultConfigDir        = ".config/sshterm"
	DefaultDatabaseFileName = "sessions.db"
	DefaultKnownHostsName   = "known_hosts"
	DefaultFilePerms        = 0600
)

// AppConfig przechowuje ustawienia aplikacji: wygląd i parametry
// terminala. Deskryptory sesji trzymane są osobno, w bazie (storage).
type AppConfig struct {
	TerminalType string `json:"terminal_type"`
	FontFamily   string `json:"font_family"`
	FontSize     int    `json:"font_size"`
	ColorScheme  string `json:"color_scheme"`
	WindowWidth  int    `json:"window_width"`
	WindowHeight int    `json:"window_height"`
}

// DefaultAppConfig zwraca konfigurację z wartościami domyślnymi.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		TerminalType: "xterm-256color",
		FontFamily:   "Monospace",
		FontSize:     12,
		ColorScheme:  "dark",
		WindowWidth:  1024,
		WindowHeight: 768,
	}
}

type Manager struct {
	configPath string
	config     AppConfig
}

// NewManager tworzy nowego menedżera konfiguracji.
func NewManager(configPath string) *Manager {
	if configPath == "" {
		defaultPath, err := GetDefaultConfigPath()
		if err == nil {
			configPath = defaultPath
		} else {
			// Fallback do bieżącego katalogu jeśli nie można uzyskać ścieżki domowej
			configPath = DefaultConfigFileName
		}
	}

	return &Manager{
		configPath: configPath,
		config:     DefaultAppConfig(),
	}
}

// Load wczytuje konfigurację z pliku. Brak pliku nie jest błędem -
// zapisywana jest wtedy konfiguracja domyślna.
func (m *Manager) Load() error {
	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			m.config = DefaultAppConfig()
			return m.Save()
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &m.config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// Save zapisuje konfigurację do pliku.
func (m *Manager) Save() error {
	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(m.config, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, DefaultFilePerms); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Get zwraca aktualną konfigurację.
func (m *Manager) Get() AppConfig {
	return m.config
}

// Set podmienia konfigurację (bez zapisu na dysk).
func (m *Manager) Set(cfg AppConfig) {
	m.config = cfg
}

// GetDefaultConfigPath zwraca domyślną ścieżkę pliku konfiguracyjnego.
func GetDefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not get home directory: %w", err)
	}
	return filepath.Join(home, DefaultConfigDir, DefaultConfigFileName), nil
}

// GetDatabasePath zwraca ścieżkę bazy sesji obok pliku konfiguracyjnego.
func GetDatabasePath() (string, error) {
	configPath, err := GetDefaultConfigPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(configPath), DefaultDatabaseFileName), nil
}

// GetKnownHostsPath zwraca ścieżkę naszego pliku known_hosts.
func GetKnownHostsPath() (string, error) {
	configPath, err := GetDefaultConfigPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(configPath), "ssh", DefaultKnownHostsName), nil
}
