// internal/ui/transfer_view.go

package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"sshTerm/internal/ssh"
	"sshTerm/internal/ui/messages"
	"sshTerm/internal/utils"
)

// transferReadyMsg - silnik otworzył sesję transferu plików.
type transferReadyMsg struct {
	sessionID string
	transfer  *ssh.FileTransfer
}

// openTransfer prosi połączenie o sesję transferu i czeka na wynik.
// Subskrypcja powstaje przed żądaniem, żeby nie zgubić zdarzenia.
func openTransfer(conn *ssh.Connection) tea.Cmd {
	id := conn.Descriptor().ID
	sub := conn.Subscribe()
	conn.OpenFileTransfer()
	return func() tea.Msg {
		defer sub.Cancel()
		for ev := range sub.Events() {
			switch ev := ev.(type) {
			case ssh.FileTransferReadyEvent:
				return transferReadyMsg{sessionID: id, transfer: ev.Transfer}
			case ssh.ErrorEvent:
				return messages.StatusMsg{Text: ev.Message, IsError: true}
			}
		}
		return messages.StatusMsg{Text: "connection closed", IsError: true}
	}
}

// inputMode mówi, czego dotyczy pole tekstowe widoku transferu.
type inputMode int

const (
	inputNone inputMode = iota
	inputMkdir
	inputUpload
	inputRename
)

// transferJob to transfer pliku w tle. Raporty postępu idą kanałem
// do pętli TUI; nieodebrane raporty pośrednie wolno gubić.
type transferJob struct {
	name     string
	progress chan messages.TransferProgressMsg
	done     chan messages.TransferDoneMsg
	cancel   context.CancelFunc
}

func (j *transferJob) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-j.done:
			return msg
		case msg := <-j.progress:
			return msg
		}
	}
}

// transferView to przeglądarka zdalnego systemu plików jednej sesji.
type transferView struct {
	sessionID string
	ft        *ssh.FileTransfer

	path    string
	entries []ssh.FileEntry
	cursor  int

	mode  inputMode
	input textinput.Model

	job *transferJob
}

func newTransferView(sessionID string, ft *ssh.FileTransfer) transferView {
	ti := textinput.New()
	ti.CharLimit = 512
	ti.Width = 50
	return transferView{sessionID: sessionID, ft: ft, input: ti}
}

// closeQuietly zamyka sesję SFTP bez raportowania - transport już padł
// albo użytkownik wychodzi z widoku.
func (v *transferView) closeQuietly() {
	if v.job != nil && v.job.cancel != nil {
		v.job.cancel()
	}
	if v.ft != nil {
		_ = v.ft.Close()
		v.ft = nil
	}
}

type dirListedMsg struct {
	path    string
	entries []ssh.FileEntry
	err     error
}

// open rozwiązuje katalog startowy i listuje go.
func (v *transferView) open() tea.Cmd {
	ft := v.ft
	return func() tea.Msg {
		home, err := ft.HomeDir()
		if err != nil {
			return dirListedMsg{err: err}
		}
		entries, err := ft.ListDirectory(home)
		return dirListedMsg{path: home, entries: entries, err: err}
	}
}

func (v *transferView) listDir(path string) tea.Cmd {
	ft := v.ft
	return func() tea.Msg {
		entries, err := ft.ListDirectory(path)
		return dirListedMsg{path: path, entries: entries, err: err}
	}
}

func (v *transferView) selected() *ssh.FileEntry {
	if v.cursor < 0 || v.cursor >= len(v.entries) {
		return nil
	}
	return &v.entries[v.cursor]
}

// startJob uruchamia transfer w tle i zwraca polecenie czekające na
// pierwszy raport.
func (v *transferView) startJob(name string, run func(context.Context, ssh.ProgressFunc) error) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	job := &transferJob{
		name:     name,
		progress: make(chan messages.TransferProgressMsg, 1),
		done:     make(chan messages.TransferDoneMsg, 1),
		cancel:   cancel,
	}
	v.job = job

	go func() {
		defer cancel()
		err := run(ctx, func(transferred, total int64) {
			msg := messages.TransferProgressMsg{Name: name, Transferred: transferred, Total: total}
			select {
			case job.progress <- msg:
			default:
			}
		})
		job.done <- messages.TransferDoneMsg{Name: name, Err: err}
	}()
	return job.wait()
}

func (m Model) updateTransfer(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case dirListedMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
			m.statusErr = true
			return m, nil
		}
		m.transfer.path = msg.path
		m.transfer.entries = msg.entries
		m.transfer.cursor = 0
		return m, nil

	case messages.TransferProgressMsg:
		if m.transfer.job == nil {
			return m, nil
		}
		if msg.Total > 0 {
			m.status = fmt.Sprintf("%s: %d/%d bytes", msg.Name, msg.Transferred, msg.Total)
		} else {
			m.status = fmt.Sprintf("%s: %d bytes", msg.Name, msg.Transferred)
		}
		m.statusErr = false
		return m, m.transfer.job.wait()

	case messages.TransferDoneMsg:
		m.transfer.job = nil
		if msg.Err != nil {
			m.status = msg.Err.Error()
			m.statusErr = true
			return m, nil
		}
		m.status = fmt.Sprintf("%s: done", msg.Name)
		m.statusErr = false
		return m, m.transfer.listDir(m.transfer.path)

	case tea.KeyMsg:
		return m.handleTransferKey(msg)
	}
	return m, nil
}

func (m Model) handleTransferKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Pole tekstowe przechwytuje klawisze.
	if m.transfer.mode != inputNone {
		switch msg.String() {
		case "esc":
			m.transfer.mode = inputNone
			m.transfer.input.Reset()
			return m, nil
		case "enter":
			return m.submitTransferInput()
		default:
			var cmd tea.Cmd
			m.transfer.input, cmd = m.transfer.input.Update(msg)
			return m, cmd
		}
	}

	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "esc", "q":
		if m.transfer.job != nil {
			m.transfer.job.cancel()
			return m, nil
		}
		m.transfer.closeQuietly()
		m.active = viewList
		m.status = ""
		return m, nil

	case "up", "k":
		if m.transfer.cursor > 0 {
			m.transfer.cursor--
		}
	case "down", "j":
		if m.transfer.cursor < len(m.transfer.entries)-1 {
			m.transfer.cursor++
		}

	case "r":
		return m, m.transfer.listDir(m.transfer.path)

	case "enter":
		entry := m.transfer.selected()
		if entry == nil || !entry.IsDir {
			return m, nil
		}
		var next string
		if entry.Name == ".." {
			next = utils.RemoteParent(m.transfer.path)
		} else {
			next = utils.RemoteJoin(m.transfer.path, entry.Name)
		}
		return m, m.transfer.listDir(next)

	case "g":
		return m.startDownload()

	case "u":
		m.transfer.mode = inputUpload
		m.transfer.input.Placeholder = "local file path"
		m.transfer.input.Focus()
		return m, textinput.Blink

	case "m":
		m.transfer.mode = inputMkdir
		m.transfer.input.Placeholder = "directory name"
		m.transfer.input.Focus()
		return m, textinput.Blink

	case "R":
		entry := m.transfer.selected()
		if entry == nil || entry.Name == ".." {
			return m, nil
		}
		m.transfer.mode = inputRename
		m.transfer.input.Placeholder = "new name"
		m.transfer.input.SetValue(entry.Name)
		m.transfer.input.Focus()
		return m, textinput.Blink

	case "x":
		return m.deleteRemote()
	}
	return m, nil
}

func (m Model) startDownload() (tea.Model, tea.Cmd) {
	entry := m.transfer.selected()
	if entry == nil || entry.IsDir {
		return m, nil
	}
	if m.transfer.job != nil {
		m.status = "transfer already in progress"
		m.statusErr = true
		return m, nil
	}

	remote := utils.RemoteJoin(m.transfer.path, entry.Name)
	local, err := utils.ExpandHome(filepath.Join("~", "Downloads", entry.Name))
	if err != nil {
		local = entry.Name
	}
	ft := m.transfer.ft
	m.status = fmt.Sprintf("downloading %s...", entry.Name)
	m.statusErr = false
	return m, m.transfer.startJob(entry.Name, func(ctx context.Context, progress ssh.ProgressFunc) error {
		return ft.Download(ctx, remote, local, progress)
	})
}

func (m Model) submitTransferInput() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.transfer.input.Value())
	mode := m.transfer.mode
	m.transfer.mode = inputNone
	m.transfer.input.Reset()
	if value == "" {
		return m, nil
	}

	switch mode {
	case inputMkdir:
		if err := m.transfer.ft.CreateDirectory(utils.RemoteJoin(m.transfer.path, value)); err != nil {
			m.status = err.Error()
			m.statusErr = true
			return m, nil
		}
		return m, m.transfer.listDir(m.transfer.path)

	case inputRename:
		entry := m.transfer.selected()
		if entry == nil {
			return m, nil
		}
		oldPath := utils.RemoteJoin(m.transfer.path, entry.Name)
		newPath := utils.RemoteJoin(m.transfer.path, value)
		if err := m.transfer.ft.Rename(oldPath, newPath); err != nil {
			m.status = err.Error()
			m.statusErr = true
			return m, nil
		}
		return m, m.transfer.listDir(m.transfer.path)

	case inputUpload:
		if m.transfer.job != nil {
			m.status = "transfer already in progress"
			m.statusErr = true
			return m, nil
		}
		local, err := utils.ExpandHome(value)
		if err != nil {
			m.status = err.Error()
			m.statusErr = true
			return m, nil
		}
		name := filepath.Base(local)
		remote := utils.RemoteJoin(m.transfer.path, name)
		ft := m.transfer.ft
		m.status = fmt.Sprintf("uploading %s...", name)
		m.statusErr = false
		return m, m.transfer.startJob(name, func(ctx context.Context, progress ssh.ProgressFunc) error {
			return ft.Upload(ctx, local, remote, progress)
		})
	}
	return m, nil
}

func (m Model) deleteRemote() (tea.Model, tea.Cmd) {
	entry := m.transfer.selected()
	if entry == nil || entry.Name == ".." {
		return m, nil
	}
	target := utils.RemoteJoin(m.transfer.path, entry.Name)
	var err error
	if entry.IsDir {
		err = m.transfer.ft.DeleteDirectory(target)
	} else {
		err = m.transfer.ft.DeleteFile(target)
	}
	if err != nil {
		m.status = err.Error()
		m.statusErr = true
		return m, nil
	}
	return m, m.transfer.listDir(m.transfer.path)
}

func (m Model) viewTransferBody() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Files: " + m.list.sessionName(m.transfer.sessionID)))
	b.WriteString("\n")
	b.WriteString(DescriptionStyle.Render(m.transfer.path))
	b.WriteString("\n\n")

	for i, entry := range m.transfer.entries {
		cursor := "  "
		if i == m.transfer.cursor {
			cursor = "> "
		}
		name := entry.Name
		if entry.IsDir {
			name += "/"
		}
		size := ""
		if !entry.IsDir {
			size = fmt.Sprintf("%10d", entry.Size)
		}
		b.WriteString(fmt.Sprintf("%s%-40s %s", cursor, name, size))
		b.WriteString("\n")
	}

	if m.transfer.mode != inputNone {
		b.WriteString("\n")
		b.WriteString(InputStyle.Render(m.transfer.input.View()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(DescriptionStyle.Render(
		"enter open | g download | u upload | m mkdir | R rename | x delete | esc back"))
	return b.String()
}
