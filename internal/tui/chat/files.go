package chat

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/floatplane/floatchat/internal/api"
	"github.com/floatplane/floatchat/internal/attach"
)

// cmdAttach validates the files locally, uploads them and attaches them to
// the next message. Nothing is uploaded when any file fails validation.
func (m *Model) cmdAttach(args []string) (tea.Model, tea.Cmd) {
	if m.panel == nil {
		m.setNotice("Still loading this chat...", false)
		return m, nil
	}
	if len(args) == 0 {
		m.setNotice("Usage: /attach <path|glob>...", true)
		return m, nil
	}
	paths, err := attach.Expand(args)
	if err != nil {
		m.setNotice(err.Error(), true)
		return m, nil
	}
	candidates, err := attach.Plan(paths, len(m.panel.Files()))
	if err != nil {
		m.setNotice(err.Error(), true)
		return m, nil
	}

	m.setNotice(fmt.Sprintf("Uploading %d file(s)...", len(candidates)), false)
	ctx := m.ctx
	backend := m.backend
	sessionID := m.session.ID
	return m, func() tea.Msg {
		var uploaded []api.FileInfo
		for _, c := range candidates {
			info, err := backend.UploadFile(ctx, sessionID, c.Path)
			if err != nil {
				return filesUploadedMsg{sessionID: sessionID, files: uploaded, err: fmt.Errorf("%s: %w", c.Name, err)}
			}
			uploaded = append(uploaded, *info)
		}
		return filesUploadedMsg{sessionID: sessionID, files: uploaded}
	}
}

func (m *Model) handleFilesUploaded(msg filesUploadedMsg) (tea.Model, tea.Cmd) {
	if m.panel == nil || m.panel.SessionID() != msg.sessionID {
		return m, nil
	}
	for _, f := range msg.files {
		m.panel.AddFile(f)
	}
	if msg.err != nil {
		m.setNotice("Upload failed: "+msg.err.Error(), true)
	} else {
		m.setNotice(fmt.Sprintf("Attached %d file(s).", len(msg.files)), false)
	}
	m.refresh(false)
	return m, nil
}

func (m *Model) cmdDetach(args []string) (tea.Model, tea.Cmd) {
	if m.panel == nil {
		return m, nil
	}
	name := strings.TrimSpace(strings.Join(args, " "))
	detached := 0
	for _, f := range m.panel.Attachments() {
		if name == "" || strings.EqualFold(f.Filename, name) {
			m.panel.Detach(f.ID)
			detached++
		}
	}
	if detached == 0 {
		m.setNotice(fmt.Sprintf("%q is not attached.", name), true)
		return m, nil
	}
	m.setNotice(fmt.Sprintf("Detached %d file(s).", detached), false)
	return m, nil
}

func (m *Model) cmdFiles() (tea.Model, tea.Cmd) {
	if m.panel == nil {
		return m, nil
	}
	m.info = fileListing(m.panel.Files(), m.panel.Attachments())
	m.refresh(true)
	return m, nil
}

func (m *Model) cmdRmFile(args []string) (tea.Model, tea.Cmd) {
	if m.panel == nil {
		return m, nil
	}
	name := strings.TrimSpace(strings.Join(args, " "))
	if name == "" {
		m.setNotice("Usage: /rmfile <name>", true)
		return m, nil
	}
	var target *api.FileInfo
	for _, f := range m.panel.Files() {
		if strings.EqualFold(f.Filename, name) {
			target = &f
			break
		}
	}
	if target == nil {
		m.setNotice(fmt.Sprintf("No file named %q in this chat.", name), true)
		return m, nil
	}

	ctx := m.ctx
	backend := m.backend
	sessionID := m.session.ID
	fileID := target.ID
	return m, func() tea.Msg {
		err := backend.DeleteFile(ctx, sessionID, fileID)
		return fileDeletedMsg{sessionID: sessionID, fileID: fileID, err: err}
	}
}
