// internal/ui/list_view.go

package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"sshTerm/internal/models"
	"sshTerm/internal/ssh"
	"sshTerm/internal/ui/messages"
)

// promptAction mówi, po co pytamy o hasło.
type promptAction int

const (
	promptNone promptAction = iota
	promptAttach
	promptTransfer
)

// listView to główny widok: lista zapisanych sesji ze stanem połączeń.
type listView struct {
	sessions []models.Session
	cursor   int

	prompt      promptAction
	promptInput textinput.Model

	confirmDelete bool
}

func newListView() listView {
	ti := textinput.New()
	ti.Placeholder = "password"
	ti.EchoMode = textinput.EchoPassword
	ti.CharLimit = 128
	return listView{promptInput: ti}
}

func (v *listView) selected() *models.Session {
	if v.cursor < 0 || v.cursor >= len(v.sessions) {
		return nil
	}
	return &v.sessions[v.cursor]
}

func (v *listView) sessionName(id string) string {
	for i := range v.sessions {
		if v.sessions[i].ID == id {
			return v.sessions[i].Name
		}
	}
	return id
}

type sessionsLoadedMsg struct {
	sessions []models.Session
	err      error
}

func (m Model) loadSessions() tea.Cmd {
	store := m.store
	return func() tea.Msg {
		sessions, err := store.Sessions()
		return sessionsLoadedMsg{sessions: sessions, err: err}
	}
}

func (m Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case sessionsLoadedMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
			m.statusErr = true
			return m, nil
		}
		m.list.sessions = msg.sessions
		if m.list.cursor >= len(msg.sessions) {
			m.list.cursor = len(msg.sessions) - 1
		}
		if m.list.cursor < 0 {
			m.list.cursor = 0
		}
		return m, nil

	case messages.ConnectFinishedMsg:
		if msg.Err != nil {
			m.status = msg.Err.Error()
			m.statusErr = true
			return m, nil
		}
		if err := m.store.TouchConnected(msg.SessionID); err != nil {
			m.log.Warn().Err(err).Msg("failed to record connection time")
		}
		conn, ok := m.registry.Lookup(msg.SessionID)
		if !ok {
			return m, nil
		}
		m.status = fmt.Sprintf("%s: connected", m.list.sessionName(msg.SessionID))
		m.statusErr = false
		return m, tea.Batch(m.watchConnection(conn), openTransfer(conn))

	case transferReadyMsg:
		m.transfer = newTransferView(msg.sessionID, msg.transfer)
		m.active = viewTransfer
		m.status = ""
		return m, m.transfer.open()

	case tea.KeyMsg:
		return m.handleListKey(msg)
	}
	return m, nil
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Tryb pytania o hasło przechwytuje wszystkie klawisze.
	if m.list.prompt != promptNone {
		switch msg.String() {
		case "esc":
			m.list.prompt = promptNone
			m.list.promptInput.Reset()
			return m, nil
		case "enter":
			secret := m.list.promptInput.Value()
			action := m.list.prompt
			m.list.prompt = promptNone
			m.list.promptInput.Reset()
			return m.dispatchWithSecret(action, secret)
		default:
			var cmd tea.Cmd
			m.list.promptInput, cmd = m.list.promptInput.Update(msg)
			return m, cmd
		}
	}

	// Potwierdzenie usunięcia.
	if m.list.confirmDelete {
		m.list.confirmDelete = false
		if msg.String() == "y" {
			return m.deleteSelected()
		}
		m.status = ""
		return m, nil
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.list.cursor > 0 {
			m.list.cursor--
		}
	case "down", "j":
		if m.list.cursor < len(m.list.sessions)-1 {
			m.list.cursor++
		}

	case "r":
		return m, m.loadSessions()

	case "n":
		m.edit = newEditView(nil)
		m.active = viewEdit
		m.status = ""
		return m, nil

	case "e":
		if sess := m.list.selected(); sess != nil {
			m.edit = newEditView(sess)
			m.active = viewEdit
			m.status = ""
		}
		return m, nil

	case "d":
		if sess := m.list.selected(); sess != nil {
			m.list.confirmDelete = true
			m.status = fmt.Sprintf("delete %s? (y/n)", sess.Name)
			m.statusErr = false
		}
		return m, nil

	case "enter":
		return m.beginAction(promptAttach)

	case "t":
		return m.beginAction(promptTransfer)
	}
	return m, nil
}

// beginAction rozstrzyga, czy sekret jest już znany (zapisane hasło,
// klucz bez frazy), czy trzeba o niego zapytać.
func (m Model) beginAction(action promptAction) (tea.Model, tea.Cmd) {
	sess := m.list.selected()
	if sess == nil {
		return m, nil
	}

	if sess.AuthMode == models.AuthPassword {
		secret, err := m.store.SessionPassword(sess)
		if err != nil {
			m.status = err.Error()
			m.statusErr = true
			return m, nil
		}
		if secret == "" {
			m.list.prompt = action
			m.list.promptInput.Focus()
			return m, textinput.Blink
		}
		return m.dispatchWithSecret(action, secret)
	}
	return m.dispatchWithSecret(action, "")
}

func (m Model) dispatchWithSecret(action promptAction, secret string) (tea.Model, tea.Cmd) {
	sess := m.list.selected()
	if sess == nil {
		return m, nil
	}

	switch action {
	case promptAttach:
		m.attachSessionID = sess.ID
		m.attachSecret = secret
		return m, tea.Quit

	case promptTransfer:
		conn := m.registry.GetOrCreate(*sess)
		state, reason := conn.State()
		switch state {
		case ssh.StateConnected:
			return m, tea.Batch(m.watchConnection(conn), openTransfer(conn))
		case ssh.StateConnecting:
			m.status = "still connecting, try again in a moment"
			m.statusErr = false
			return m, nil
		case ssh.StateFailed:
			// Stan końcowy - nowa próba wymaga świeżego połączenia.
			m.registry.Remove(sess.ID)
			m.status = reason
			m.statusErr = true
			return m, nil
		default:
			m.status = fmt.Sprintf("connecting to %s...", sess.Name)
			m.statusErr = false
			return m, connectCmd(conn, secret)
		}
	}
	return m, nil
}

// connectCmd wykonuje handshake poza pętlą TUI i raportuje wynik
// komunikatem.
func connectCmd(conn *ssh.Connection, secret string) tea.Cmd {
	id := conn.Descriptor().ID
	return func() tea.Msg {
		if err := conn.Connect(secret); err != nil {
			return messages.ConnectFinishedMsg{SessionID: id, Err: err}
		}
		go conn.Run()
		return messages.ConnectFinishedMsg{SessionID: id}
	}
}

func (m Model) deleteSelected() (tea.Model, tea.Cmd) {
	sess := m.list.selected()
	if sess == nil {
		return m, nil
	}
	if conn, ok := m.registry.Lookup(sess.ID); ok {
		conn.Disconnect()
		m.registry.Remove(sess.ID)
	}
	if err := m.store.DeleteSession(sess.ID); err != nil {
		m.status = err.Error()
		m.statusErr = true
		return m, nil
	}
	m.status = fmt.Sprintf("deleted %s", sess.Name)
	m.statusErr = false
	return m, m.loadSessions()
}

func (m Model) viewListBody() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("sshTerm"))
	b.WriteString("\n\n")

	if len(m.list.sessions) == 0 {
		b.WriteString(DescriptionStyle.Render("no sessions yet, press n to add one"))
		b.WriteString("\n")
	}

	for i, sess := range m.list.sessions {
		cursor := "  "
		if i == m.list.cursor {
			cursor = "> "
		}
		state := "disconnected"
		if conn, ok := m.registry.Lookup(sess.ID); ok {
			s, _ := conn.State()
			state = s.String()
		}
		line := fmt.Sprintf("%s%-20s %s@%s [%s]",
			cursor, sess.Name, sess.Username, sess.Addr(), state)
		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.list.prompt != promptNone {
		b.WriteString("\n")
		b.WriteString(InputStyle.Render(m.list.promptInput.View()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(DescriptionStyle.Render(
		"enter connect | t files | n new | e edit | d delete | r reload | q quit"))
	return b.String()
}
