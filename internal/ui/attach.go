// internal/ui/attach.go

//go:build !windows

package ui

import (
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	mobyterm "github.com/moby/term"
	"golang.org/x/term"

	"sshTerm/internal/ssh"
)

// Attach spina lokalny terminal z podłączoną sesją: stdin idzie jako
// SendBytes, zdarzenia DataReceived na stdout, SIGWINCH jako Resize.
// Wraca po zamknięciu strumienia zdarzeń (zdalna powłoka się skończyła
// albo połączenie padło). Do wołania na prawdziwym terminalu, nigdy
// z pętli Bubble Tea.
func Attach(conn *ssh.Connection) error {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return err
	}
	defer term.Restore(fd, oldState)

	// Subskrypcja przed pierwszym Resize, żeby nie zgubić zdarzeń.
	sub := conn.Subscribe()
	defer sub.Cancel()

	if ws, err := mobyterm.GetWinsize(os.Stdin.Fd()); err == nil {
		conn.Resize(int(ws.Width), int(ws.Height))
	}

	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	defer signal.Stop(winch)
	go func() {
		for range winch {
			if ws, err := mobyterm.GetWinsize(os.Stdin.Fd()); err == nil {
				conn.Resize(int(ws.Width), int(ws.Height))
			}
		}
	}()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		buf := make([]byte, 4096)
		for {
			n, err := os.Stdin.Read(buf)
			if n > 0 {
				conn.SendBytes(buf[:n])
			}
			if err != nil {
				return
			}
		}
	}()
	defer stopStdinPump(os.Stdin, stopped)

	var attachErr error
	for ev := range sub.Events() {
		switch ev := ev.(type) {
		case ssh.DataReceivedEvent:
			_, _ = os.Stdout.Write(ev.Data)
		case ssh.ErrorEvent:
			attachErr = errors.New(ev.Message)
		}
	}
	return attachErr
}

// stopStdinPump wybudza zablokowany Read pompy deadlinem i czeka na jej
// zejście; po zejściu deadline wraca do zera, żeby nie psuć kolejnych
// odczytów stdin. Deskryptory bez obsługi deadline'ów (stdin w trybie
// blokującym) nie dają się wybudzić - wtedy nie wolno czekać na pompę,
// zakończy się przy następnym odczycie, a polecenia do zamkniętego
// połączenia są poprawnym no-op.
func stopStdinPump(in *os.File, stopped <-chan struct{}) {
	if err := in.SetReadDeadline(time.Now()); err != nil {
		return
	}
	<-stopped
	_ = in.SetReadDeadline(time.Time{})
}
