// internal/ui/model.go

package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"sshTerm/internal/config"
	"sshTerm/internal/ssh"
	"sshTerm/internal/storage"
	"sshTerm/internal/ui/messages"
)

type view int

const (
	viewList view = iota
	viewEdit
	viewTransfer
)

// Model to korzeń aplikacji TUI. Trzyma współdzielone zależności
// (magazyn, rejestr połączeń, konfigurację) i przełącza aktywny widok.
// Z silnikiem rozmawia wyłącznie przez polecenia i subskrypcje zdarzeń.
type Model struct {
	store    *storage.Store
	registry *ssh.Registry
	cfg      *config.Manager
	log      zerolog.Logger

	width  int
	height int
	active view

	list     listView
	edit     editView
	transfer transferView

	// Subskrypcje obserwujące połączenia otwarte z poziomu TUI,
	// po identyfikatorze sesji.
	watchers map[string]*ssh.Subscription

	status    string
	statusErr bool

	// Sesja wybrana do przejęcia terminala. Program TUI kończy się,
	// a attach wykonuje main na prawdziwym terminalu.
	attachSessionID string
	attachSecret    string
}

// NewModel buduje model startowy z widokiem listy sesji.
func NewModel(store *storage.Store, registry *ssh.Registry, cfg *config.Manager, log zerolog.Logger) Model {
	return Model{
		store:    store,
		registry: registry,
		cfg:      cfg,
		log:      log.With().Str("component", "ui").Logger(),
		list:     newListView(),
		watchers: make(map[string]*ssh.Subscription),
	}
}

// PendingAttach zwraca sesję wybraną do przejęcia terminala, jeśli
// użytkownik zakończył TUI żądaniem attach.
func (m Model) PendingAttach() (sessionID, secret string, ok bool) {
	return m.attachSessionID, m.attachSecret, m.attachSessionID != ""
}

func (m Model) Init() tea.Cmd {
	return m.loadSessions()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case messages.StatusMsg:
		m.status = msg.Text
		m.statusErr = msg.IsError
		return m, nil

	case messages.ConnEventMsg:
		return m.handleConnEvent(msg)

	case messages.ConnEventsDoneMsg:
		delete(m.watchers, msg.SessionID)
		return m, nil
	}

	switch m.active {
	case viewList:
		return m.updateList(msg)
	case viewEdit:
		return m.updateEdit(msg)
	case viewTransfer:
		return m.updateTransfer(msg)
	}
	return m, nil
}

// handleConnEvent obsługuje zdarzenia obserwowanych połączeń i ponawia
// oczekiwanie na tej samej subskrypcji.
func (m Model) handleConnEvent(msg messages.ConnEventMsg) (tea.Model, tea.Cmd) {
	sub, ok := m.watchers[msg.SessionID]
	if !ok {
		return m, nil
	}

	switch ev := msg.Event.(type) {
	case ssh.ErrorEvent:
		m.status = ev.Message
		m.statusErr = true
	case ssh.DisconnectedEvent:
		name := m.list.sessionName(msg.SessionID)
		m.status = fmt.Sprintf("%s: disconnected", name)
		m.statusErr = false
		if m.active == viewTransfer && m.transfer.sessionID == msg.SessionID {
			// Transport padł pod sesją transferu - wracamy na listę.
			m.transfer.closeQuietly()
			m.active = viewList
		}
	}
	return m, messages.WaitForEvent(msg.SessionID, sub)
}

// watchConnection rejestruje obserwatora zdarzeń połączenia, o ile
// jeszcze go nie ma.
func (m *Model) watchConnection(conn *ssh.Connection) tea.Cmd {
	id := conn.Descriptor().ID
	if _, ok := m.watchers[id]; ok {
		return nil
	}
	sub := conn.Subscribe()
	m.watchers[id] = sub
	return messages.WaitForEvent(id, sub)
}

func (m Model) View() string {
	var body string
	switch m.active {
	case viewList:
		body = m.viewListBody()
	case viewEdit:
		body = m.viewEditBody()
	case viewTransfer:
		body = m.viewTransferBody()
	}

	status := m.status
	if status != "" {
		if m.statusErr {
			status = ErrorStyle.Render(status)
		} else {
			status = SuccessStyle.Render(status)
		}
	}
	return body + "\n" + status + "\n"
}
