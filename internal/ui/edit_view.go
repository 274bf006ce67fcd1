// internal/ui/edit_view.go

package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"sshTerm/internal/models"
	"sshTerm/internal/ssh"
)

// Indeksy pól formularza.
const (
	fieldName = iota
	fieldHost
	fieldPort
	fieldUsername
	fieldAuthMode
	fieldKeyPath
	fieldPassword
	fieldJumpHost
	fieldForwardPort
	fieldForwardAddr
	fieldCount
)

var fieldLabels = [fieldCount]string{
	"Name",
	"Host",
	"Port",
	"Username",
	"Auth (password/publickey)",
	"Key path",
	"Password",
	"Jump host (user@host:port)",
	"Local forward port",
	"Remote forward addr (host:port)",
}

// editView to formularz tworzenia i edycji sesji.
type editView struct {
	inputs [fieldCount]textinput.Model
	focus  int

	// editing != nil przy edycji istniejącej sesji.
	editing *models.Session
}

func newEditView(sess *models.Session) editView {
	var v editView
	for i := range v.inputs {
		ti := textinput.New()
		ti.CharLimit = 256
		ti.Width = 40
		v.inputs[i] = ti
	}
	v.inputs[fieldPassword].EchoMode = textinput.EchoPassword
	v.inputs[fieldPort].SetValue("22")
	v.inputs[fieldAuthMode].SetValue(string(models.AuthPassword))

	if sess != nil {
		clone := sess.Clone()
		v.editing = &clone
		v.inputs[fieldName].SetValue(sess.Name)
		v.inputs[fieldHost].SetValue(sess.Host)
		v.inputs[fieldPort].SetValue(strconv.Itoa(sess.Port))
		v.inputs[fieldUsername].SetValue(sess.Username)
		v.inputs[fieldAuthMode].SetValue(string(sess.AuthMode))
		v.inputs[fieldKeyPath].SetValue(sess.KeyPath)
		v.inputs[fieldJumpHost].SetValue(sess.JumpHost)
		if sess.LocalForwardPort != 0 {
			v.inputs[fieldForwardPort].SetValue(strconv.Itoa(sess.LocalForwardPort))
		}
		v.inputs[fieldForwardAddr].SetValue(sess.RemoteForwardAddr)
	}

	v.inputs[0].Focus()
	return v
}

func (v *editView) setFocus(i int) tea.Cmd {
	v.inputs[v.focus].Blur()
	v.focus = i
	return v.inputs[v.focus].Focus()
}

// toSession zamienia zawartość formularza na deskryptor sesji.
// Drugi wynik to hasło do zapisania (puste = bez zmian).
func (v *editView) toSession() (models.Session, string, error) {
	var sess models.Session
	if v.editing != nil {
		sess = v.editing.Clone()
	} else {
		sess = models.NewSession("", "", "")
	}

	sess.Name = strings.TrimSpace(v.inputs[fieldName].Value())
	sess.Host = strings.TrimSpace(v.inputs[fieldHost].Value())
	sess.Username = strings.TrimSpace(v.inputs[fieldUsername].Value())
	sess.AuthMode = models.AuthMode(strings.TrimSpace(strings.ToLower(v.inputs[fieldAuthMode].Value())))
	sess.KeyPath = strings.TrimSpace(v.inputs[fieldKeyPath].Value())
	sess.JumpHost = strings.TrimSpace(v.inputs[fieldJumpHost].Value())
	sess.RemoteForwardAddr = strings.TrimSpace(v.inputs[fieldForwardAddr].Value())

	port, err := strconv.Atoi(strings.TrimSpace(v.inputs[fieldPort].Value()))
	if err != nil {
		return sess, "", fmt.Errorf("invalid port: %s", v.inputs[fieldPort].Value())
	}
	sess.Port = port

	fwd := strings.TrimSpace(v.inputs[fieldForwardPort].Value())
	if fwd == "" {
		sess.LocalForwardPort = 0
	} else {
		p, err := strconv.Atoi(fwd)
		if err != nil {
			return sess, "", fmt.Errorf("invalid forward port: %s", fwd)
		}
		sess.LocalForwardPort = p
	}

	if err := sess.Validate(); err != nil {
		return sess, "", err
	}
	return sess, v.inputs[fieldPassword].Value(), nil
}

func (m Model) updateEdit(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.String() {
	case "esc":
		m.active = viewList
		m.status = ""
		return m, nil

	case "ctrl+c":
		return m, tea.Quit

	case "up", "shift+tab":
		i := (m.edit.focus + fieldCount - 1) % fieldCount
		return m, m.edit.setFocus(i)

	case "down", "tab":
		i := (m.edit.focus + 1) % fieldCount
		return m, m.edit.setFocus(i)

	case "enter":
		if m.edit.focus < fieldCount-1 {
			return m, m.edit.setFocus(m.edit.focus + 1)
		}
		return m.saveEdit()

	case "ctrl+s":
		return m.saveEdit()
	}

	var cmd tea.Cmd
	m.edit.inputs[m.edit.focus], cmd = m.edit.inputs[m.edit.focus].Update(msg)
	return m, cmd
}

func (m Model) saveEdit() (tea.Model, tea.Cmd) {
	sess, password, err := m.edit.toSession()
	if err != nil {
		m.status = err.Error()
		m.statusErr = true
		return m, nil
	}

	if m.edit.editing != nil {
		err = m.store.UpdateSession(&sess)
	} else {
		err = m.store.CreateSession(&sess)
	}
	if err != nil {
		m.status = err.Error()
		m.statusErr = true
		return m, nil
	}

	if password != "" {
		if err := m.store.SetSessionPassword(sess.ID, password); err != nil {
			m.status = err.Error()
			m.statusErr = true
			return m, nil
		}
	}

	// Stary deskryptor w rejestrze byłby nieaktualny.
	if conn, ok := m.registry.Lookup(sess.ID); ok {
		if state, _ := conn.State(); state == ssh.StateDisconnected || state == ssh.StateFailed {
			m.registry.Remove(sess.ID)
		}
	}

	m.active = viewList
	m.status = fmt.Sprintf("saved %s", sess.Name)
	m.statusErr = false
	return m, m.loadSessions()
}

func (m Model) viewEditBody() string {
	var b strings.Builder
	title := "New session"
	if m.edit.editing != nil {
		title = "Edit session"
	}
	b.WriteString(TitleStyle.Render(title))
	b.WriteString("\n\n")

	for i := range m.edit.inputs {
		label := fieldLabels[i]
		if i == m.edit.focus {
			b.WriteString(ButtonStyle.Render(label))
		} else {
			b.WriteString(DescriptionStyle.Render(label))
		}
		b.WriteString("\n")
		b.WriteString("  " + m.edit.inputs[i].View())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(DescriptionStyle.Render("ctrl+s save | esc cancel | tab next field"))
	return b.String()
}
