// internal/ssh/connection.go

package ssh

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"sshTerm/internal/models"

	"github.com/rs/zerolog"
)

// State opisuje cykl życia połączenia. Przejścia są ściśle liniowe:
// Disconnected -> Connecting -> Connected -> Disconnected, z odnogą
// Connecting -> Failed przy awarii handshake'u lub uwierzytelnienia.
// Failed jest stanem końcowym - ponowienie wymaga nowego Connection.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Options konfiguruje nowe połączenie.
type Options struct {
	// TerminalType to typ terminala żądany przy PTY (domyślnie
	// xterm-256color).
	TerminalType string
	// Geometry to początkowy rozmiar PTY (domyślnie 80x24).
	Geometry Geometry
	// HostKeyPolicy decyduje o zaufaniu kluczom hostów. Wymagana -
	// silnik nie ma cichej polityki domyślnej.
	HostKeyPolicy HostKeyPolicy
	// KeepAlive to interwał sond keepalive; 0 wyłącza.
	KeepAlive time.Duration
	Logger    zerolog.Logger
}

func (o *Options) withDefaults() Options {
	opts := *o
	if opts.TerminalType == "" {
		opts.TerminalType = "xterm-256color"
	}
	if opts.Geometry.Cols <= 0 || opts.Geometry.Rows <= 0 {
		opts.Geometry = Geometry{Cols: 80, Rows: 24}
	}
	return opts
}

// Connection to jednostka współbieżności silnika: jedna sesja
// protokołu, skrzynka poleceń i rozgłaszane zdarzenia, obsługiwane
// przez jedną pętlę na własnej goroutine. Front end komunikuje się
// z połączeniem wyłącznie przez polecenia i subskrypcje zdarzeń -
// nigdy nie woła protokołu bezpośrednio.
type Connection struct {
	descriptor models.Session
	opts       Options
	log        zerolog.Logger

	mu         sync.Mutex
	state      State
	failReason string
	proto      *protocolSession
	forwarder  net.Listener
	lastCols   int
	lastRows   int

	inbox    *fifo[Command]
	outbox   *broadcaster
	done     chan struct{}
	teardown sync.Once
}

// NewConnection tworzy połączenie dla sklonowanego deskryptora.
// Połączenie jest w stanie Disconnected do czasu Connect/Start.
func NewConnection(desc models.Session, opts Options) *Connection {
	o := opts.withDefaults()
	return &Connection{
		descriptor: desc.Clone(),
		opts:       o,
		log: o.Logger.With().
			Str("session", desc.ID).
			Str("host", desc.Addr()).
			Logger(),
		state:  StateDisconnected,
		inbox:  newFifo[Command](),
		outbox: newBroadcaster(),
		done:   make(chan struct{}),
	}
}

// Descriptor zwraca kopię deskryptora sesji.
func (c *Connection) Descriptor() models.Session {
	return c.descriptor.Clone()
}

// State zwraca bieżący stan; dla StateFailed drugi wynik niesie
// czytelną przyczynę.
func (c *Connection) State() (State, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.failReason
}

// Subscribe rejestruje odbiorcę zdarzeń. Każdy subskrybent dostaje
// wszystkie zdarzenia opublikowane od chwili subskrypcji.
func (c *Connection) Subscribe() *Subscription {
	return c.outbox.subscribe()
}

// SendBytes kolejkuje bajty do zapisania w zdalnej powłoce.
func (c *Connection) SendBytes(data []byte) {
	payload := make([]byte, len(data))
	copy(payload, data)
	c.inbox.push(SendBytes{Data: payload})
}

// Resize kolejkuje zmianę geometrii terminala.
func (c *Connection) Resize(cols, rows int) {
	c.inbox.push(Resize{Cols: cols, Rows: rows})
}

// Disconnect prosi pętlę o zakończenie. Wywołanie po rozłączeniu
// jest poprawnym no-op, nie błędem.
func (c *Connection) Disconnect() {
	c.inbox.push(Disconnect{})
}

// Connect wykonuje handshake synchronicznie - do wołania z kontekstu
// roboczego, nigdy z pętli front endu. Awaria jest zwracana wołającemu
// ORAZ publikowana jako ErrorEvent (a po niej końcowe Disconnected),
// żeby dowiedzieli się o niej i obserwatorzy asynchroniczni.
func (c *Connection) Connect(secret string) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("connection already %s", state)
	}
	c.state = StateConnecting
	c.mu.Unlock()

	c.log.Info().Str("user", c.descriptor.Username).Msg("connecting")

	proto, err := dialSSH(c.descriptor, secret, c.opts.HostKeyPolicy,
		c.opts.Geometry, c.opts.TerminalType, c.log)
	if err != nil {
		c.mu.Lock()
		c.state = StateFailed
		c.failReason = errorMessage(err)
		c.mu.Unlock()

		c.log.Error().Err(err).Msg("connection failed")
		c.outbox.publish(ErrorEvent{Message: errorMessage(err)})
		c.finish()
		return err
	}

	c.mu.Lock()
	c.proto = proto
	c.state = StateConnected
	c.lastCols = c.opts.Geometry.Cols
	c.lastRows = c.opts.Geometry.Rows
	c.mu.Unlock()

	if c.descriptor.LocalForwardPort != 0 {
		c.startForwarder()
	}

	c.log.Info().Msg("connected")
	c.outbox.publish(ConnectedEvent{})
	return nil
}

// Start to wygodny wariant asynchroniczny: handshake i pętla na
// jednej nowej goroutine.
func (c *Connection) Start(secret string) {
	go func() {
		if err := c.Connect(secret); err != nil {
			return
		}
		c.Run()
	}()
}

// Run prowadzi pętlę multipleksującą aż do rozłączenia. Wymaga
// wcześniejszego udanego Connect.
func (c *Connection) Run() {
	c.mu.Lock()
	proto := c.proto
	state := c.state
	c.mu.Unlock()
	if state != StateConnected || proto == nil {
		return
	}

	if c.opts.KeepAlive > 0 {
		go c.keepAliveLoop(proto)
	}

	// Pompy tylko czytają z kanału; jedynym piszącym jest pętla.
	data := make(chan readChunk)
	go pumpReads(proto.stdout, data, c.done)
	go pumpReads(proto.stderr, data, c.done)

	c.runLoop(proto, data)
}

type readChunk struct {
	data []byte
	err  error
}

// pumpReads przenosi dane ze strumienia protokołu do pętli.
func pumpReads(r io.Reader, out chan<- readChunk, done <-chan struct{}) {
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case out <- readChunk{data: chunk}:
			case <-done:
				return
			}
		}
		if err != nil {
			select {
			case out <- readChunk{err: err}:
			case <-done:
			}
			return
		}
	}
}

// runLoop naprzemiennie zdejmuje polecenia i dane protokołu - bez
// priorytetu, które pierwsze gotowe. Jedna logiczna pętla na
// połączenie; kanał nigdy nie jest mutowany z dwóch goroutine.
func (c *Connection) runLoop(sh shellIO, data <-chan readChunk) {
	defer c.finish()

	for {
		select {
		case cmd, ok := <-c.inbox.out:
			if !ok {
				return
			}
			switch cmd := cmd.(type) {
			case SendBytes:
				if err := sh.write(cmd.Data); err != nil {
					// Zdalne powłoki nie są idempotentne - zapisu
					// nie ponawiamy, traktujemy jak utratę połączenia.
					c.log.Error().Err(err).Msg("write failed")
					c.outbox.publish(ErrorEvent{Message: "write failed: " + err.Error()})
					return
				}

			case Resize:
				c.mu.Lock()
				same := cmd.Cols == c.lastCols && cmd.Rows == c.lastRows
				c.mu.Unlock()
				if same {
					continue
				}
				if err := sh.windowChange(cmd.Rows, cmd.Cols); err != nil {
					// Zmiana rozmiaru jest best-effort.
					c.log.Warn().Err(err).Msg("window change failed")
					continue
				}
				c.mu.Lock()
				c.lastCols, c.lastRows = cmd.Cols, cmd.Rows
				c.mu.Unlock()

			case Disconnect:
				c.log.Info().Msg("disconnect requested")
				return
			}

		case chunk := <-data:
			if chunk.err != nil {
				if errors.Is(chunk.err, io.EOF) {
					c.log.Info().Msg("channel closed by remote")
				} else {
					c.log.Error().Err(chunk.err).Msg("read failed")
					c.outbox.publish(ErrorEvent{Message: "read failed: " + chunk.err.Error()})
				}
				return
			}
			c.outbox.publish(DataReceivedEvent{Data: chunk.data})
		}
	}
}

// finish wykonuje sprzątanie dokładnie raz, niezależnie od tego,
// którą ścieżką pętla się zakończyła: stan na Disconnected (chyba że
// Failed), końcowe zdarzenie Disconnected, zamknięcie transportu
// i obu kolejek.
func (c *Connection) finish() {
	c.teardown.Do(func() {
		c.mu.Lock()
		proto := c.proto
		c.proto = nil
		forwarder := c.forwarder
		c.forwarder = nil
		if c.state != StateFailed {
			c.state = StateDisconnected
		}
		c.mu.Unlock()

		close(c.done)
		if forwarder != nil {
			_ = forwarder.Close()
		}
		if proto != nil {
			proto.close()
		}

		c.outbox.publish(DisconnectedEvent{})
		c.outbox.close()
		// Pętla już nie czyta - polecenia zakolejkowane za Disconnect
		// są porzucane.
		c.inbox.discard()
		c.log.Info().Msg("disconnected")
	})
}

// keepAliveLoop sonduje transport; nieudana sonda kończy połączenie.
func (c *Connection) keepAliveLoop(proto *protocolSession) {
	ticker := time.NewTicker(c.opts.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := proto.keepAliveProbe(); err != nil {
				c.log.Error().Err(err).Msg("keepalive failed")
				c.outbox.publish(ErrorEvent{Message: "keepalive failed: " + err.Error()})
				c.Disconnect()
				return
			}
		case <-c.done:
			return
		}
	}
}

// OpenFileTransfer otwiera sesję transferu plików na tym samym
// uwierzytelnionym transporcie, w tle. Wynik wraca do front endu jako
// FileTransferReadyEvent albo ErrorEvent; kanał PTY nie jest dotykany.
func (c *Connection) OpenFileTransfer() {
	c.mu.Lock()
	var proto *protocolSession
	if c.state == StateConnected {
		proto = c.proto
	}
	c.mu.Unlock()

	if proto == nil {
		c.outbox.publish(ErrorEvent{Message: "file transfer requires a connected session"})
		return
	}

	go func() {
		ft, err := NewFileTransfer(proto.client, c.log)
		if err != nil {
			c.log.Error().Err(err).Msg("failed to open file transfer session")
			c.outbox.publish(ErrorEvent{Message: errorMessage(err)})
			return
		}
		c.outbox.publish(FileTransferReadyEvent{Transfer: ft})
	}()
}

// startForwarder uruchamia lokalne przekierowanie portu na transporcie
// połączenia. Awaria jest zgłaszana zdarzeniem, ale nie przerywa sesji.
func (c *Connection) startForwarder() {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(c.descriptor.LocalForwardPort))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		c.log.Error().Err(err).Str("addr", addr).Msg("failed to start port forward listener")
		c.outbox.publish(ErrorEvent{Message: "port forward failed: " + err.Error()})
		return
	}

	c.mu.Lock()
	c.forwarder = listener
	proto := c.proto
	c.mu.Unlock()

	remoteAddr := c.descriptor.RemoteForwardAddr
	c.log.Info().Str("local", addr).Str("remote", remoteAddr).Msg("port forward active")

	go func() {
		for {
			local, err := listener.Accept()
			if err != nil {
				return // listener zamknięty przy teardownie
			}
			go func() {
				remote, err := proto.client.Dial("tcp", remoteAddr)
				if err != nil {
					c.log.Warn().Err(err).Msg("port forward dial failed")
					local.Close()
					return
				}
				go func() {
					defer local.Close()
					defer remote.Close()
					_, _ = io.Copy(local, remote)
				}()
				go func() {
					_, _ = io.Copy(remote, local)
				}()
			}()
		}
	}()
}
