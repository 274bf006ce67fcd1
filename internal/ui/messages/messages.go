// internal/ui/messages/messages.go

package messages

import (
	tea "github.com/charmbracelet/bubbletea"

	"sshTerm/internal/ssh"
)

// ConnEventMsg niesie jedno zdarzenie silnika do pętli Bubble Tea.
// Worker nigdy nie woła kodu front endu - zdarzenia są zdejmowane
// z subskrypcji przez tea.Cmd i dopiero tutaj dispatchowane.
type ConnEventMsg struct {
	SessionID string
	Event     ssh.Event
}

// ConnEventsDoneMsg - subskrypcja wyczerpana, połączenie zakończone.
type ConnEventsDoneMsg struct {
	SessionID string
}

// ConnectFinishedMsg - wynik synchronicznego Connect z workera.
type ConnectFinishedMsg struct {
	SessionID string
	Err       error
}

// TransferProgressMsg raportuje postęp trwającego transferu pliku.
type TransferProgressMsg struct {
	Name        string
	Transferred int64
	Total       int64
}

// TransferDoneMsg - transfer zakończony (Err == nil przy sukcesie).
type TransferDoneMsg struct {
	Name string
	Err  error
}

// StatusMsg ustawia tekst paska statusu.
type StatusMsg struct {
	Text    string
	IsError bool
}

// WaitForEvent zwraca tea.Cmd zdejmujący następne zdarzenie
// z subskrypcji połączenia. Po obsłużeniu ConnEventMsg wołający
// wydaje to polecenie ponownie z tą samą subskrypcją.
func WaitForEvent(sessionID string, sub *ssh.Subscription) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-sub.Events()
		if !ok {
			return ConnEventsDoneMsg{SessionID: sessionID}
		}
		return ConnEventMsg{SessionID: sessionID, Event: ev}
	}
}
