// internal/utils/path.go

package utils

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ExpandHome rozwija skrót "~" na początku ścieżki do katalogu
// domowego użytkownika. Ścieżki bez "~" zwracane są bez zmian.
func ExpandHome(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if path == "~" {
			return home, nil
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

// ToSFTPPath konwertuje ścieżkę lokalną na format SFTP (forward slash).
func ToSFTPPath(path string) string {
	if runtime.GOOS == "windows" {
		return strings.ReplaceAll(path, "\\", "/")
	}
	return path
}

// ToLocalPath konwertuje ścieżkę SFTP na format lokalny.
func ToLocalPath(path string) string {
	if runtime.GOOS == "windows" {
		return strings.ReplaceAll(path, "/", "\\")
	}
	return path
}

// RemoteJoin łączy segmenty ścieżki zdalnej zawsze forward slashem,
// niezależnie od lokalnego systemu.
func RemoteJoin(dir, name string) string {
	if dir == "" || dir == "/" {
		return "/" + name
	}
	return strings.TrimSuffix(dir, "/") + "/" + name
}

// RemoteParent zwraca katalog nadrzędny ścieżki zdalnej.
func RemoteParent(path string) string {
	path = strings.TrimSuffix(path, "/")
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return "/"
	}
	return path[:idx]
}
