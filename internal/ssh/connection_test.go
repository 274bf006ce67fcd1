// internal/ssh/connection_test.go

package ssh

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	gossh "golang.org/x/crypto/ssh"

	"sshTerm/internal/models"
)

// fakeShell rejestruje operacje pętli zamiast dotykać sieci.
type fakeShell struct {
	mu        sync.Mutex
	writes    [][]byte
	resizes   [][2]int // rows, cols
	writeErr  error
	resizeErr error
}

func (f *fakeShell) write(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	data := make([]byte, len(p))
	copy(data, p)
	f.writes = append(f.writes, data)
	return nil
}

func (f *fakeShell) windowChange(rows, cols int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resizeErr != nil {
		return f.resizeErr
	}
	f.resizes = append(f.resizes, [2]int{rows, cols})
	return nil
}

func testDescriptor() models.Session {
	return models.Session{
		ID:       "test-session",
		Name:     "test",
		Host:     "example.com",
		Port:     22,
		Username: "tester",
		AuthMode: models.AuthPassword,
	}
}

// newActiveConnection zwraca połączenie w stanie Connected z podpiętą
// sztuczną powłoką, gotowe do runLoop.
func newActiveConnection(t *testing.T) (*Connection, *fakeShell, chan readChunk) {
	t.Helper()
	conn := NewConnection(testDescriptor(), Options{Logger: zerolog.Nop()})
	conn.mu.Lock()
	conn.state = StateConnected
	conn.lastCols = 80
	conn.lastRows = 24
	conn.mu.Unlock()
	return conn, &fakeShell{}, make(chan readChunk, 8)
}

func drainEvents(t *testing.T, sub *Subscription) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timed out waiting for events")
		}
	}
}

func TestRunLoopDeliversDataThenDisconnected(t *testing.T) {
	conn, shell, data := newActiveConnection(t)
	sub := conn.Subscribe()

	go conn.runLoop(shell, data)
	data <- readChunk{data: []byte("one")}
	data <- readChunk{data: []byte("two")}
	data <- readChunk{err: io.EOF}

	events := drainEvents(t, sub)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %#v", len(events), events)
	}
	first, ok := events[0].(DataReceivedEvent)
	if !ok || !bytes.Equal(first.Data, []byte("one")) {
		t.Fatalf("unexpected first event: %#v", events[0])
	}
	second, ok := events[1].(DataReceivedEvent)
	if !ok || !bytes.Equal(second.Data, []byte("two")) {
		t.Fatalf("unexpected second event: %#v", events[1])
	}
	if _, ok := events[2].(DisconnectedEvent); !ok {
		t.Fatalf("expected DisconnectedEvent last, got %#v", events[2])
	}

	if state, _ := conn.State(); state != StateDisconnected {
		t.Fatalf("expected StateDisconnected, got %s", state)
	}
}

func TestRunLoopWritesInOrder(t *testing.T) {
	conn, shell, data := newActiveConnection(t)
	sub := conn.Subscribe()

	conn.SendBytes([]byte("first"))
	conn.SendBytes([]byte("second"))
	conn.Disconnect()

	go conn.runLoop(shell, data)
	drainEvents(t, sub)

	shell.mu.Lock()
	defer shell.mu.Unlock()
	if len(shell.writes) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(shell.writes))
	}
	if string(shell.writes[0]) != "first" || string(shell.writes[1]) != "second" {
		t.Fatalf("writes out of order: %q, %q", shell.writes[0], shell.writes[1])
	}
}

func TestResizeDeduplicated(t *testing.T) {
	conn, shell, data := newActiveConnection(t)
	sub := conn.Subscribe()

	conn.Resize(80, 24) // bieżący rozmiar, powinno zostać pominięte
	conn.Resize(100, 40)
	conn.Resize(100, 40) // duplikat
	conn.Disconnect()

	go conn.runLoop(shell, data)
	drainEvents(t, sub)

	shell.mu.Lock()
	defer shell.mu.Unlock()
	if len(shell.resizes) != 1 {
		t.Fatalf("expected exactly 1 window change, got %d", len(shell.resizes))
	}
	if shell.resizes[0] != [2]int{40, 100} {
		t.Fatalf("unexpected geometry: %v", shell.resizes[0])
	}
}

func TestWriteFailureEndsSession(t *testing.T) {
	conn, shell, data := newActiveConnection(t)
	shell.writeErr = errors.New("broken pipe")
	sub := conn.Subscribe()

	conn.SendBytes([]byte("doomed"))

	go conn.runLoop(shell, data)
	events := drainEvents(t, sub)

	if len(events) != 2 {
		t.Fatalf("expected error and disconnect, got %#v", events)
	}
	errEv, ok := events[0].(ErrorEvent)
	if !ok || !strings.Contains(errEv.Message, "write failed") {
		t.Fatalf("unexpected first event: %#v", events[0])
	}
	if _, ok := events[1].(DisconnectedEvent); !ok {
		t.Fatalf("expected DisconnectedEvent last, got %#v", events[1])
	}
}

func TestReadErrorPublishesError(t *testing.T) {
	conn, shell, data := newActiveConnection(t)
	sub := conn.Subscribe()

	go conn.runLoop(shell, data)
	data <- readChunk{err: errors.New("connection reset")}

	events := drainEvents(t, sub)
	if len(events) != 2 {
		t.Fatalf("expected error and disconnect, got %#v", events)
	}
	if _, ok := events[0].(ErrorEvent); !ok {
		t.Fatalf("expected ErrorEvent first, got %#v", events[0])
	}
	if _, ok := events[1].(DisconnectedEvent); !ok {
		t.Fatalf("expected DisconnectedEvent last, got %#v", events[1])
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	conn, shell, data := newActiveConnection(t)
	sub := conn.Subscribe()

	conn.Disconnect()
	go conn.runLoop(shell, data)
	drainEvents(t, sub)

	// Polecenia po zakończeniu są poprawnym no-op.
	conn.Disconnect()
	conn.SendBytes([]byte("late"))
	conn.Resize(10, 10)

	if state, _ := conn.State(); state != StateDisconnected {
		t.Fatalf("expected StateDisconnected, got %s", state)
	}
}

func TestConnectRejectedWhenAlreadyActive(t *testing.T) {
	conn, _, _ := newActiveConnection(t)
	if err := conn.Connect("secret"); err == nil {
		t.Fatal("expected error when connecting an active connection")
	} else if !strings.Contains(err.Error(), "already") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOpenFileTransferRequiresConnection(t *testing.T) {
	conn := NewConnection(testDescriptor(), Options{Logger: zerolog.Nop()})
	sub := conn.Subscribe()
	defer sub.Cancel()

	conn.OpenFileTransfer()

	select {
	case ev := <-sub.Events():
		if _, ok := ev.(ErrorEvent); !ok {
			t.Fatalf("expected ErrorEvent, got %#v", ev)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for error event")
	}
}

// failingPolicy symuluje awarię przygotowania weryfikacji klucza -
// Connect kończy się bez dotykania sieci.
type failingPolicy struct{}

func (failingPolicy) Callback() (gossh.HostKeyCallback, error) {
	return nil, errors.New("known_hosts unavailable")
}

func TestConnectFailurePublishesErrorThenDisconnected(t *testing.T) {
	conn := NewConnection(testDescriptor(), Options{
		Logger:        zerolog.Nop(),
		HostKeyPolicy: failingPolicy{},
	})
	sub := conn.Subscribe()

	if err := conn.Connect("secret"); err == nil {
		t.Fatal("expected Connect to fail")
	}

	state, reason := conn.State()
	if state != StateFailed {
		t.Fatalf("expected StateFailed, got %s", state)
	}
	if reason == "" {
		t.Fatal("expected a failure reason")
	}

	events := drainEvents(t, sub)
	if len(events) != 2 {
		t.Fatalf("expected exactly error and disconnect, got %#v", events)
	}
	if _, ok := events[0].(ErrorEvent); !ok {
		t.Fatalf("expected ErrorEvent first, got %#v", events[0])
	}
	if _, ok := events[1].(DisconnectedEvent); !ok {
		t.Fatalf("expected DisconnectedEvent last, got %#v", events[1])
	}
}

func TestOptionsDefaults(t *testing.T) {
	opts := (&Options{}).withDefaults()
	if opts.TerminalType != "xterm-256color" {
		t.Fatalf("unexpected terminal type: %s", opts.TerminalType)
	}
	if opts.Geometry.Cols != 80 || opts.Geometry.Rows != 24 {
		t.Fatalf("unexpected geometry: %+v", opts.Geometry)
	}
}
