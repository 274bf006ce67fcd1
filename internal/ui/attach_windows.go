// internal/ui/attach_windows.go

//go:build windows

package ui

import (
	"errors"

	"sshTerm/internal/ssh"
)

// Attach nie jest wspierane na Windows - brak SIGWINCH i surowego
// trybu stdin w formie, z której korzysta wariant uniksowy.
func Attach(conn *ssh.Connection) error {
	return errors.New("terminal attach is not supported on windows")
}
