// internal/ssh/errors.go

package ssh

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind klasyfikuje błędy silnika połączeń. Każdy błąd zgłaszany
// na zewnątrz należy do dokładnie jednej kategorii.
type ErrorKind int

const (
	// KindTransport - nie udało się dotrzeć do hosta.
	KindTransport ErrorKind = iota
	// KindAuth - host odrzucił dane uwierzytelniające.
	KindAuth
	// KindKeyLoad - lokalny klucz prywatny nieczytelny lub uszkodzony.
	KindKeyLoad
	// KindChannel - żądanie PTY lub powłoki nie powiodło się.
	KindChannel
	// KindIO - operacja transferu plików nie powiodła się.
	KindIO
	// KindChannelClosed - normalne lub zdalne zakończenie kanału;
	// to nie jest awaria.
	KindChannelClosed
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindAuth:
		return "auth"
	case KindKeyLoad:
		return "keyload"
	case KindChannel:
		return "channel"
	case KindIO:
		return "io"
	case KindChannelClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Error to błąd silnika z kategorią i czytelnym opisem przyczyny.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf zwraca kategorię błędu silnika. Drugi wynik jest false,
// gdy błąd nie pochodzi z tego pakietu.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// errorMessage zwraca czytelny opis do zdarzenia ErrorEvent.
func errorMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// classifyDialError rozróżnia odrzucenie uwierzytelnienia od awarii
// transportu. x/crypto/ssh nie eksportuje typu błędu autoryzacji,
// więc rozpoznajemy go po treści komunikatu handshake'u.
func classifyDialError(err error) *Error {
	msg := err.Error()
	if strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "no supported methods remain") {
		return newError(KindAuth, "Authentication failed", err)
	}
	return newError(KindTransport, "failed to connect", err)
}
