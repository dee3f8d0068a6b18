package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/floatplane/floatchat/internal/api"
	"github.com/floatplane/floatchat/internal/attach"
	"github.com/floatplane/floatchat/internal/panel"
	"github.com/floatplane/floatchat/internal/ui"
)

type chatStyles struct {
	theme          ui.Theme
	header         lipgloss.Style
	headerMuted    lipgloss.Style
	userLabel      lipgloss.Style
	userBody       lipgloss.Style
	assistantLabel lipgloss.Style
	muted          lipgloss.Style
	errorText      lipgloss.Style
	notice         lipgloss.Style
	spinner        lipgloss.Style
	chip           lipgloss.Style
	suggestion     lipgloss.Style
	selected       lipgloss.Style
	border         lipgloss.Style
}

func newChatStyles(theme ui.Theme) chatStyles {
	return chatStyles{
		theme:          theme,
		header:         lipgloss.NewStyle().Bold(true).Foreground(theme.Primary),
		headerMuted:    lipgloss.NewStyle().Foreground(theme.Muted),
		userLabel:      lipgloss.NewStyle().Bold(true).Foreground(theme.Secondary),
		userBody:       lipgloss.NewStyle().Background(theme.UserMsgBg).Foreground(theme.Text).Padding(0, 1),
		assistantLabel: lipgloss.NewStyle().Bold(true).Foreground(theme.Primary),
		muted:          lipgloss.NewStyle().Foreground(theme.Muted),
		errorText:      lipgloss.NewStyle().Foreground(theme.Error),
		notice:         lipgloss.NewStyle().Foreground(theme.Warning),
		spinner:        lipgloss.NewStyle().Foreground(theme.Spinner),
		chip:           lipgloss.NewStyle().Foreground(theme.Secondary),
		suggestion:     lipgloss.NewStyle().Foreground(theme.Secondary),
		selected:       lipgloss.NewStyle().Foreground(theme.Primary).Bold(true),
		border:         lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(theme.Muted).Padding(0, 1),
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	parts := []string{m.renderHeader(), m.viewport.View()}
	parts = append(parts, m.renderExtras()...)
	parts = append(parts, m.textarea.View(), m.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderExtras returns the optional rows between transcript and composer.
func (m *Model) renderExtras() []string {
	var rows []string
	if m.dialog.IsOpen() {
		rows = append(rows, m.dialog.View())
	}
	if m.panel != nil && len(m.panel.Attachments()) > 0 {
		rows = append(rows, m.renderAttachments(m.panel.Attachments()))
	}
	if len(m.suggestions) > 0 && !m.dialog.IsOpen() {
		rows = append(rows, m.renderSuggestions())
	}
	return rows
}

// layout sizes the viewport to the space left by the other rows.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	used := lipgloss.Height(m.renderHeader()) + lipgloss.Height(m.renderFooter()) + m.textarea.Height()
	for _, row := range m.renderExtras() {
		used += lipgloss.Height(row)
	}
	h := m.height - used
	if h < 1 {
		h = 1
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.Width = m.width
	m.viewport.Height = h
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *Model) renderHeader() string {
	title := m.session.Title
	if title == "" {
		title = "New Chat"
	}
	title = ui.Truncate(title, max(10, m.width-40))
	detail := m.session.LLMModel
	if m.panel == nil {
		detail += " · loading"
	} else if m.panel.Busy() {
		detail += " · " + m.panel.State().String()
	}
	return m.styles.header.Render(title) + "  " + m.styles.headerMuted.Render(detail)
}

func (m *Model) renderFooter() string {
	if m.notice != "" {
		if m.noticeErr {
			return m.styles.errorText.Render(m.notice)
		}
		return m.styles.notice.Render(m.notice)
	}
	if m.panel != nil && m.panel.Busy() {
		return m.styles.muted.Render("esc cancel · ctrl+c quit")
	}
	return m.styles.muted.Render("enter send · ctrl+j newline · /help commands · ctrl+c quit")
}

func (m *Model) renderAttachments(files []api.FileInfo) string {
	chips := make([]string, 0, len(files))
	for _, f := range files {
		chips = append(chips, m.styles.chip.Render(ui.FileIcon+" "+f.Filename))
	}
	return strings.Join(chips, "  ")
}

func (m *Model) renderSuggestions() string {
	var b strings.Builder
	limit := min(len(m.suggestions), 6)
	for i, c := range m.suggestions[:limit] {
		name := "/" + c.Name
		if i == 0 {
			b.WriteString(m.styles.selected.Render("❯ " + name))
		} else {
			b.WriteString("  " + m.styles.suggestion.Render(name))
		}
		b.WriteString(m.styles.muted.Render("  " + c.Description))
		if i < limit-1 {
			b.WriteString("\n")
		}
	}
	return m.styles.border.Render(b.String())
}

// refresh re-renders the transcript. follow forces the view to the bottom;
// otherwise it only follows when already there.
func (m *Model) refresh(follow bool) {
	start := time.Now()
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderTranscript())
	if follow || atBottom {
		m.viewport.GotoBottom()
	}
	if m.perf != nil {
		m.perf.add(time.Since(start))
	}
}

func (m *Model) invalidateHistory() {
	m.history = ""
	m.historyCount = -1
}

func (m *Model) contentWidth() int {
	if m.viewport.Width > 4 {
		return m.viewport.Width - 2
	}
	return 78
}

func (m *Model) renderTranscript() string {
	if m.panel == nil {
		return m.styles.muted.Render(m.spinner.View() + " Loading chat...")
	}
	width := m.contentWidth()
	msgs := m.panel.Messages()

	// Settled messages only change on append, so their rendering is reused
	// while a reply streams in.
	if m.historyCount != len(msgs) || m.historyWidth != width {
		parts := make([]string, 0, len(msgs))
		for _, msg := range msgs {
			parts = append(parts, m.renderMessage(msg, width))
		}
		m.history = strings.Join(parts, "\n\n")
		m.historyCount = len(msgs)
		m.historyWidth = width
	}

	var b strings.Builder
	b.WriteString(m.history)
	section := func(s string) {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(s)
	}

	if len(msgs) == 0 && m.panel.State() == panel.StateIdle {
		section(m.styles.muted.Render("No messages yet. Type below to start."))
	}
	status := ui.StreamStatus{
		Spinner:    m.styles.spinner.Render(m.spinner.View()),
		Elapsed:    time.Since(m.sendStarted),
		ShowCancel: true,
	}
	switch m.panel.State() {
	case panel.StateSending:
		status.Phase = "Sending"
		section(status.Render(m.styles.muted))
	case panel.StateStreaming:
		label := m.styles.assistantLabel.Render("Assistant")
		text := m.panel.Streaming()
		if text == "" {
			status.Phase = "Thinking"
			section(label + "\n" + status.Render(m.styles.muted))
			break
		}
		status.Phase = "Responding"
		status.Chars = len([]rune(text))
		section(label + "\n" + m.reply.Render(text, width) + "\n\n" + status.Render(m.styles.muted))
	}
	if errText := m.panel.Err(); errText != "" {
		section(m.styles.errorText.Render("Error: " + errText))
	}
	if m.info != "" {
		section(ui.RenderMarkdown(m.info, width))
	}
	return b.String()
}

func (m *Model) renderMessage(msg api.Message, width int) string {
	if msg.Role == api.RoleUser {
		var b strings.Builder
		b.WriteString(m.styles.userLabel.Render("You"))
		b.WriteString("\n")
		b.WriteString(m.styles.userBody.Width(width).Render(msg.Content))
		if files := msg.Files(); len(files) > 0 {
			chips := make([]string, 0, len(files))
			for _, f := range files {
				chips = append(chips, fmt.Sprintf("%s %s (%s)", ui.FileIcon, f.Filename, f.FileType))
			}
			b.WriteString("\n")
			b.WriteString(m.styles.chip.Render(strings.Join(chips, "  ")))
		}
		return b.String()
	}
	return m.styles.assistantLabel.Render("Assistant") + "\n" + ui.RenderMarkdown(msg.Content, width)
}

// fileListing renders the session files as markdown for /files.
func fileListing(files, attached []api.FileInfo) string {
	if len(files) == 0 {
		return "No files uploaded to this chat. Use `/attach <path>`."
	}
	isAttached := make(map[string]bool, len(attached))
	for _, f := range attached {
		isAttached[f.ID] = true
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## Files (%d/%d)\n\n", len(files), attach.MaxFilesPerSession)
	for _, f := range files {
		fmt.Fprintf(&b, "- %s (%s, %s)", f.Filename, f.FileType, attach.FormatFileSize(f.FileSize))
		if isAttached[f.ID] {
			b.WriteString(" **attached**")
		}
		b.WriteString("\n")
	}
	return b.String()
}
