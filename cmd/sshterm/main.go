// cmd/sshterm/main.go

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"sshTerm/internal/config"
	"sshTerm/internal/crypto"
	"sshTerm/internal/models"
	"sshTerm/internal/ssh"
	"sshTerm/internal/storage"
	"sshTerm/internal/ui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath, err := config.GetDefaultConfigPath()
	if err != nil {
		return err
	}
	manager := config.NewManager(configPath)
	if err := manager.Load(); err != nil {
		return err
	}

	logger := newLogger(filepath.Dir(configPath))

	dbPath, err := config.GetDatabasePath()
	if err != nil {
		return err
	}

	passphrase, err := readPassphrase()
	if err != nil {
		return err
	}

	store, err := storage.Open(dbPath, crypto.NewCipher(passphrase))
	if err != nil {
		return err
	}
	defer store.Close()

	knownHostsPath, err := config.GetKnownHostsPath()
	if err != nil {
		return err
	}

	opts := ssh.Options{
		TerminalType: manager.Get().TerminalType,
		KeepAlive:    30 * time.Second,
		HostKeyPolicy: &ssh.KnownHostsPolicy{
			Path:      knownHostsPath,
			OnUnknown: promptTrustHostKey,
		},
		Logger: logger,
	}
	if cols, rows, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		opts.Geometry = ssh.Geometry{Cols: cols, Rows: rows}
	}

	registry := ssh.NewRegistry(opts)
	defer registry.CloseAll()

	// Sesje oznaczone jako auto connect startują w tle od razu.
	autoConnect(store, registry, logger)

	// TUI i attach wymieniają się terminalem: lista sesji działa
	// w Bubble Tea, a po wybraniu sesji program kończy się, main
	// przejmuje surowy terminal i po rozłączeniu wraca do listy.
	for {
		model := ui.NewModel(store, registry, manager, logger)
		program := tea.NewProgram(model, tea.WithAltScreen())
		final, err := program.Run()
		if err != nil {
			return err
		}

		m, ok := final.(ui.Model)
		if !ok {
			return nil
		}
		sessionID, secret, pending := m.PendingAttach()
		if !pending {
			return nil
		}

		if err := attachSession(store, registry, sessionID, secret); err != nil {
			fmt.Fprintln(os.Stderr, "connection error:", err)
			fmt.Fprintln(os.Stderr, "press enter to continue")
			bufio.NewReader(os.Stdin).ReadString('\n')
		}
	}
}

// attachSession łączy (jeśli trzeba) i oddaje terminal zdalnej powłoce
// aż do rozłączenia.
func attachSession(store *storage.Store, registry *ssh.Registry, sessionID, secret string) error {
	sess, err := store.GetSession(sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("session %s no longer exists", sessionID)
	}

	if conn, ok := registry.Lookup(sessionID); ok {
		if state, _ := conn.State(); state == ssh.StateFailed || state == ssh.StateDisconnected {
			// Stare połączenie jest nie do użytku - zaczynamy od nowa.
			registry.Remove(sessionID)
		}
	}

	conn := registry.GetOrCreate(*sess)
	if state, _ := conn.State(); state == ssh.StateDisconnected {
		fmt.Printf("Connecting to %s (%s@%s)...\n", sess.Name, sess.Username, sess.Addr())
		if err := conn.Connect(secret); err != nil {
			registry.Remove(sessionID)
			return err
		}
		go conn.Run()
		if err := store.TouchConnected(sessionID); err != nil {
			fmt.Fprintln(os.Stderr, "warning:", err)
		}
	}

	return ui.Attach(conn)
}

// autoConnect startuje w tle sesje z włączoną flagą auto connect.
// Działa tylko dla sesji z zapisanym hasłem albo kluczem bez frazy.
func autoConnect(store *storage.Store, registry *ssh.Registry, logger zerolog.Logger) {
	sessions, err := store.Sessions()
	if err != nil {
		logger.Warn().Err(err).Msg("failed to list sessions for auto connect")
		return
	}
	for _, sess := range sessions {
		if !sess.AutoConnect {
			continue
		}
		secret := ""
		if sess.AuthMode == models.AuthPassword {
			secret, err = store.SessionPassword(&sess)
			if err != nil || secret == "" {
				logger.Warn().Str("session", sess.ID).Msg("auto connect skipped, no stored password")
				continue
			}
		}
		conn := registry.GetOrCreate(sess)
		conn.Start(secret)
	}
}

// readPassphrase pyta o frazę główną chroniącą zapisane hasła.
func readPassphrase() (string, error) {
	if env := os.Getenv("SSHTERM_PASSPHRASE"); env != "" {
		return env, nil
	}
	fmt.Print("Master passphrase: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	return string(raw), nil
}

// promptTrustHostKey pyta o zaufanie nieznanemu kluczowi hosta.
func promptTrustHostKey(hostname, fingerprint string) bool {
	fmt.Fprintf(os.Stderr, "\nUnknown host %s\nFingerprint: %s\nTrust this host? (yes/no): ", hostname, fingerprint)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "yes" || answer == "y"
}

// newLogger pisze logi do pliku obok konfiguracji - stdout należy
// do TUI i zdalnej powłoki.
func newLogger(dir string) zerolog.Logger {
	var w io.Writer = io.Discard
	if err := os.MkdirAll(dir, 0755); err == nil {
		f, err := os.OpenFile(filepath.Join(dir, "sshterm.log"),
			os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err == nil {
			w = f
		}
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(zerolog.InfoLevel)
}
