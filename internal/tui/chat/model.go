// Package chat is the interactive chat screen: a transcript viewport over
// a panel.Panel, a composer, and slash commands for session management.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/floatplane/floatchat/internal/api"
	"github.com/floatplane/floatchat/internal/draft"
	"github.com/floatplane/floatchat/internal/panel"
	"github.com/floatplane/floatchat/internal/stream"
	"github.com/floatplane/floatchat/internal/ui"
	"go.uber.org/zap"
)

// Options configures a chat Model.
type Options struct {
	Backend Backend
	Starter stream.Starter
	Drafts  draft.Store
	Logger  *zap.Logger
	Session api.Session
	// Model is used for sessions created from the chat screen.
	Model api.ModelInfo
	Theme ui.Theme
	// Telemetry logs per-reply stream statistics and render timings.
	Telemetry bool
	// InitialMessage is sent once the session has loaded.
	InitialMessage string
}

// Model is the bubbletea model of the chat screen.
type Model struct {
	ctx       context.Context
	backend   Backend
	starter   stream.Starter
	drafts    draft.Store
	logger    *zap.Logger
	telemetry bool

	session     api.Session
	model       api.ModelInfo
	models      []api.ModelInfo
	sessionList []api.Session
	// panel is nil while the session is loading.
	panel       *panel.Panel
	pendingSend string

	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	dialog   *DialogModel
	styles   chatStyles
	perf     *renderPerf

	history      string
	historyCount int
	historyWidth int
	reply        *ui.StreamRenderer
	sendStarted  time.Time

	width       int
	height      int
	ready       bool
	notice      string
	noticeErr   bool
	info        string
	suggestions []Command
	quitting    bool
}

type (
	panelLoadedMsg struct {
		panel *panel.Panel
		err   error
	}
	streamEventMsg struct {
		handle *stream.Handle
		event  stream.Event
	}
	streamClosedMsg struct {
		handle *stream.Handle
	}
	sessionOpenedMsg struct {
		session api.Session
		notice  string
		err     error
	}
	sessionsListedMsg struct {
		sessions []api.Session
		err      error
	}
	modelsLoadedMsg struct {
		models []api.ModelInfo
		err    error
	}
	titleUpdatedMsg struct {
		session api.Session
		err     error
	}
	sessionDeletedMsg struct {
		id  string
		err error
	}
	filesUploadedMsg struct {
		sessionID string
		files     []api.FileInfo
		err       error
	}
	fileDeletedMsg struct {
		sessionID string
		fileID    string
		err       error
	}
)

// New creates the chat screen for opts.Session. The session loads when the
// program starts.
func New(ctx context.Context, opts Options) *Model {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	theme := opts.Theme
	if theme == (ui.Theme{}) {
		theme = ui.DefaultTheme()
	}
	styles := newChatStyles(theme)

	ta := textarea.New()
	ta.Placeholder = "Message (Enter to send, Ctrl+J for newline, /help for commands)"
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.Prompt = "┃ "
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("ctrl+j", "alt+enter"))
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.spinner

	m := &Model{
		ctx:         ctx,
		backend:     opts.Backend,
		starter:     opts.Starter,
		drafts:      opts.Drafts,
		logger:      logger.Named("tui"),
		telemetry:   opts.Telemetry,
		session:     opts.Session,
		model:       opts.Model,
		models:      api.DefaultModels,
		pendingSend: strings.TrimSpace(opts.InitialMessage),
		textarea:    ta,
		viewport:    viewport.New(80, 20),
		spinner:     sp,
		dialog:      NewDialogModel(styles),
		styles:      styles,
		reply:       ui.NewStreamRenderer(0),
	}
	if opts.Telemetry {
		m.perf = &renderPerf{}
	}
	return m
}

// Init starts loading the session and the model list.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		m.loadPanel(m.session.ID),
		m.loadModels(),
	)
}

// Session returns the session currently shown.
func (m *Model) Session() api.Session {
	return m.session
}

// Panel returns the live panel, or nil while loading.
func (m *Model) Panel() *panel.Panel {
	return m.panel
}

func (m *Model) loadPanel(sessionID string) tea.Cmd {
	p := panel.New(panel.Options{
		SessionID: sessionID,
		Starter:   m.starter,
		Source:    m.backend,
		Drafts:    m.drafts,
		Logger:    m.logger,
		Telemetry: m.telemetry,
	})
	ctx := m.ctx
	return func() tea.Msg {
		err := p.Load(ctx)
		return panelLoadedMsg{panel: p, err: err}
	}
}

func (m *Model) loadModels() tea.Cmd {
	if m.backend == nil {
		return nil
	}
	ctx := m.ctx
	backend := m.backend
	return func() tea.Msg {
		models, err := backend.ListModels(ctx)
		return modelsLoadedMsg{models: models, err: err}
	}
}

// waitForEvent reads one event from h. The chat screen re-issues it after
// each event until the handle closes.
func waitForEvent(h *stream.Handle) tea.Cmd {
	return func() tea.Msg {
		ev, ok := h.Next()
		if !ok {
			return streamClosedMsg{handle: h}
		}
		return streamEventMsg{handle: h, event: ev}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	model, cmd := m.update(msg)
	m.layout()
	return model, cmd
}

func (m *Model) update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.textarea.SetWidth(msg.Width)
		m.dialog.SetSize(msg.Width, msg.Height)
		m.refresh(true)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.panel != nil && m.panel.Busy() {
			m.refresh(false)
		}
		return m, cmd

	case panelLoadedMsg:
		return m.handlePanelLoaded(msg)

	case streamEventMsg:
		return m.handleStreamEvent(msg)

	case streamClosedMsg:
		if m.panel != nil {
			m.panel.Finish(msg.handle)
			m.refresh(false)
		}
		return m, nil

	case modelsLoadedMsg:
		if msg.err != nil {
			m.logger.Warn("list models failed, keeping defaults", zap.Error(msg.err))
			return m, nil
		}
		m.models = msg.models
		return m, nil

	case sessionOpenedMsg:
		if msg.err != nil {
			m.pendingSend = ""
			m.setNotice(msg.err.Error(), true)
			return m, nil
		}
		m.setNotice(msg.notice, false)
		return m, m.switchSession(msg.session)

	case sessionsListedMsg:
		if msg.err != nil {
			m.setNotice("Failed to list chats: "+msg.err.Error(), true)
			return m, nil
		}
		m.sessionList = msg.sessions
		m.dialog.ShowSessionList(msg.sessions, m.session.ID)
		return m, nil

	case titleUpdatedMsg:
		if msg.err != nil {
			m.setNotice("Rename failed: "+msg.err.Error(), true)
			return m, nil
		}
		if msg.session.ID == m.session.ID {
			m.session = msg.session
		}
		m.setNotice("Renamed to "+msg.session.Title+".", false)
		return m, nil

	case sessionDeletedMsg:
		if msg.err != nil {
			m.setNotice("Delete failed: "+msg.err.Error(), true)
			return m, nil
		}
		if msg.id != m.session.ID {
			return m, nil
		}
		if m.panel != nil {
			m.panel.Teardown(m.ctx)
			m.panel = nil
		}
		if m.drafts != nil {
			if err := m.drafts.Clear(m.ctx, msg.id); err != nil {
				m.logger.Warn("clear draft failed", zap.Error(err))
			}
		}
		m.setTextareaValue("")
		return m, m.createSession("", "Chat deleted. Started a new chat.")

	case filesUploadedMsg:
		return m.handleFilesUploaded(msg)

	case fileDeletedMsg:
		if msg.err != nil {
			m.setNotice("Delete failed: "+msg.err.Error(), true)
			return m, nil
		}
		if m.panel != nil && m.panel.SessionID() == msg.sessionID {
			m.panel.RemoveFile(msg.fileID)
			m.refresh(false)
		}
		m.setNotice("File deleted.", false)
		return m, nil
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}
	if m.dialog.IsOpen() {
		return m.handleDialogKey(msg)
	}

	switch msg.String() {
	case "esc":
		if m.panel != nil && m.panel.Busy() {
			m.cancelStream()
			return m, nil
		}
		m.suggestions = nil
		m.notice = ""
		return m, nil
	case "enter":
		return m.submit()
	case "tab":
		if len(m.suggestions) > 0 {
			m.setTextareaValue("/" + m.suggestions[0].Name + " ")
			m.suggestions = nil
			return m, nil
		}
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case "ctrl+n":
		return m.cmdNew(nil)
	case "ctrl+o":
		return m.cmdSessions()
	case "ctrl+l":
		return m.cmdModel(nil)
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	m.updateSuggestions()
	return m, cmd
}

func (m *Model) submit() (tea.Model, tea.Cmd) {
	value := m.textarea.Value()
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "/") {
		m.setTextareaValue("")
		m.suggestions = nil
		return m.ExecuteCommand(trimmed)
	}
	if m.panel == nil {
		m.setNotice("Still loading this chat...", false)
		return m, nil
	}

	m.panel.SetInput(value)
	h, err := m.panel.Submit(m.ctx)
	switch {
	case errors.Is(err, panel.ErrBusy):
		m.setNotice("A reply is still streaming. Press Esc to cancel it.", false)
		return m, nil
	case errors.Is(err, panel.ErrEmptyMessage):
		return m, nil
	case err != nil:
		m.setNotice(err.Error(), true)
		return m, nil
	}
	return m.afterSend(h)
}

func (m *Model) afterSend(h *stream.Handle) (tea.Model, tea.Cmd) {
	m.sendStarted = time.Now()
	m.reply.Reset()
	m.setTextareaValue(m.panel.Input())
	m.notice = ""
	m.info = ""
	m.refresh(true)
	return m, waitForEvent(h)
}

func (m *Model) handlePanelLoaded(msg panelLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.panel.SessionID() != m.session.ID {
		return m, nil
	}
	m.panel = msg.panel
	m.invalidateHistory()
	if msg.err != nil {
		m.logger.Warn("load session failed", zap.Error(msg.err))
		m.setNotice("Failed to load chat: "+msg.err.Error(), true)
	}
	if strings.TrimSpace(m.textarea.Value()) == "" {
		m.setTextareaValue(m.panel.Input())
	}

	if m.pendingSend != "" {
		text := m.pendingSend
		m.pendingSend = ""
		h, err := m.panel.Send(m.ctx, text)
		if err != nil {
			m.setNotice(err.Error(), true)
			return m, nil
		}
		return m.afterSend(h)
	}
	m.refresh(true)
	return m, nil
}

func (m *Model) handleStreamEvent(msg streamEventMsg) (tea.Model, tea.Cmd) {
	if m.panel == nil || !m.panel.Apply(msg.handle, msg.event) {
		// Superseded or torn down; the handle was cancelled and will close.
		return m, nil
	}
	switch msg.event.Type {
	case stream.EventUserMessage, stream.EventDone:
		m.invalidateHistory()
	case stream.EventError:
		m.invalidateHistory()
		if strings.TrimSpace(m.textarea.Value()) == "" {
			m.setTextareaValue(m.panel.Input())
		}
	}
	m.refresh(false)
	return m, waitForEvent(msg.handle)
}

func (m *Model) cancelStream() {
	if m.panel == nil || !m.panel.Busy() {
		return
	}
	m.panel.Cancel()
	if strings.TrimSpace(m.textarea.Value()) == "" {
		m.setTextareaValue(m.panel.Input())
	}
	m.setNotice("Cancelled.", false)
	m.refresh(false)
}

// switchSession tears down the current panel, saving its draft, and starts
// loading sess.
func (m *Model) switchSession(sess api.Session) tea.Cmd {
	if m.panel != nil {
		m.panel.SetInput(m.textarea.Value())
		m.panel.Teardown(m.ctx)
		m.panel = nil
	}
	m.session = sess
	m.setTextareaValue("")
	m.info = ""
	m.invalidateHistory()
	m.refresh(true)
	return m.loadPanel(sess.ID)
}

func (m *Model) quit() (tea.Model, tea.Cmd) {
	m.Shutdown(m.ctx)
	return m, tea.Quit
}

// Shutdown saves the composer as the session draft and stops any live
// stream. It is safe to call after the program was killed, when the
// model's own context is already cancelled; the draft is written with
// ctx's values but without its cancellation.
func (m *Model) Shutdown(ctx context.Context) {
	if m.quitting {
		return
	}
	m.quitting = true
	if m.panel != nil {
		m.panel.SetInput(m.textarea.Value())
		m.panel.Teardown(context.WithoutCancel(ctx))
	}
	if m.perf != nil {
		m.perf.log(m.logger)
	}
}

func (m *Model) setTextareaValue(value string) {
	m.textarea.SetValue(value)
	m.textarea.CursorEnd()
}

func (m *Model) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeErr = isErr
}

func (m *Model) updateSuggestions() {
	value := m.textarea.Value()
	if !strings.HasPrefix(value, "/") || strings.ContainsAny(value, " \n") {
		m.suggestions = nil
		return
	}
	m.suggestions = FilterCommands(value)
}
