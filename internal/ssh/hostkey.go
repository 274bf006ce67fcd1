// internal/ssh/hostkey.go

package ssh

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// HostKeyPolicy dostarcza callback weryfikacji klucza hosta,
// konsultowany raz na każde połączenie. Polityka jest wymienna -
// silnik nie narzuca żadnej konkretnej decyzji o zaufaniu.
type HostKeyPolicy interface {
	Callback() (ssh.HostKeyCallback, error)
}

// KnownHostsPolicy weryfikuje klucze względem własnego pliku
// known_hosts aplikacji. Przy pierwszym kontakcie z hostem pyta
// OnUnknown o zaufanie; zaakceptowany klucz jest dopisywany do pliku.
type KnownHostsPolicy struct {
	Path string

	// OnUnknown decyduje o zaufaniu nieznanemu kluczowi na podstawie
	// tożsamości hosta i odcisku SHA-256. Nil odrzuca nieznane klucze.
	OnUnknown func(hostname, fingerprint string) bool
}

func (p *KnownHostsPolicy) Callback() (ssh.HostKeyCallback, error) {
	// knownhosts.New wymaga istniejącego pliku.
	if err := ensureFile(p.Path); err != nil {
		return nil, fmt.Errorf("failed to prepare known_hosts file: %w", err)
	}

	base, err := knownhosts.New(p.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load known_hosts: %w", err)
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := base(hostname, remote, key)
		if err == nil {
			return nil
		}

		var keyErr *knownhosts.KeyError
		if errors.As(err, &keyErr) && len(keyErr.Want) == 0 {
			// Host nieznany - pierwszy kontakt.
			if p.OnUnknown != nil && p.OnUnknown(hostname, ssh.FingerprintSHA256(key)) {
				if aerr := appendKnownHost(p.Path, hostname, remote, key); aerr != nil {
					return aerr
				}
				return nil
			}
		}
		// Klucz się nie zgadza albo odmówiono zaufania.
		return err
	}, nil
}

// InsecureAcceptAllPolicy akceptuje każdy klucz hosta. To świadomie
// oznaczona luka bezpieczeństwa do środowisk deweloperskich - każde
// użycie jest logowane jako ostrzeżenie i nie wolno jej zostawić jako
// domyślnej polityki produkcyjnej.
type InsecureAcceptAllPolicy struct {
	Log zerolog.Logger
}

func (p *InsecureAcceptAllPolicy) Callback() (ssh.HostKeyCallback, error) {
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		p.Log.Warn().
			Str("host", hostname).
			Str("fingerprint", ssh.FingerprintSHA256(key)).
			Msg("host key verification skipped - insecure, development only")
		return nil
	}, nil
}

func ensureFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE, 0600)
	if err != nil {
		return err
	}
	return f.Close()
}

// appendKnownHost dopisuje zaakceptowany klucz do pliku known_hosts.
func appendKnownHost(path, hostname string, remote net.Addr, key ssh.PublicKey) error {
	addresses := []string{knownhosts.Normalize(hostname)}
	if remote != nil {
		normalized := knownhosts.Normalize(remote.String())
		if normalized != addresses[0] {
			addresses = append(addresses, normalized)
		}
	}
	line := knownhosts.Line(addresses, key)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open known_hosts for append: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("failed to write known_hosts entry: %w", err)
	}
	return nil
}
