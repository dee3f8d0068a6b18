package chat

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/floatplane/floatchat/internal/api"
	"github.com/floatplane/floatchat/internal/panel"
	"github.com/sahilm/fuzzy"
)

// Command represents a slash command
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
}

// AllCommands returns all available slash commands
func AllCommands() []Command {
	return []Command{
		{
			Name:        "help",
			Aliases:     []string{"h", "?"},
			Description: "Show help and available commands",
			Usage:       "/help",
		},
		{
			Name:        "quit",
			Aliases:     []string{"q", "exit"},
			Description: "Exit chat",
			Usage:       "/quit",
		},
		{
			Name:        "new",
			Aliases:     []string{"n"},
			Description: "Start a new chat, optionally sending a first message",
			Usage:       "/new [message]",
		},
		{
			Name:        "sessions",
			Aliases:     []string{"ls"},
			Description: "Switch to another chat",
			Usage:       "/sessions",
		},
		{
			Name:        "title",
			Aliases:     []string{"rename"},
			Description: "Rename this chat",
			Usage:       "/title <text>",
		},
		{
			Name:        "clone",
			Description: "Copy this chat and switch to the copy",
			Usage:       "/clone",
		},
		{
			Name:        "delete",
			Aliases:     []string{"rm"},
			Description: "Delete this chat",
			Usage:       "/delete",
		},
		{
			Name:        "model",
			Aliases:     []string{"m"},
			Description: "Choose the model for new chats",
			Usage:       "/model [name]",
		},
		{
			Name:        "attach",
			Aliases:     []string{"file", "f"},
			Description: "Upload file(s) and attach them to the next message",
			Usage:       "/attach <path|glob>...",
		},
		{
			Name:        "detach",
			Description: "Remove file(s) from the next message",
			Usage:       "/detach [name]",
		},
		{
			Name:        "files",
			Description: "List files uploaded to this chat",
			Usage:       "/files",
		},
		{
			Name:        "rmfile",
			Description: "Delete an uploaded file",
			Usage:       "/rmfile <name>",
		},
		{
			Name:        "cancel",
			Description: "Stop the reply that is streaming",
			Usage:       "/cancel",
		},
	}
}

// CommandSource implements fuzzy.Source for command searching
type CommandSource []Command

func (c CommandSource) String(i int) string {
	return c[i].Name
}

func (c CommandSource) Len() int {
	return len(c)
}

// FilterCommands returns commands matching the query using fuzzy search
func FilterCommands(query string) []Command {
	commands := AllCommands()
	query = strings.TrimPrefix(query, "/")
	if query == "" {
		return commands
	}

	// First check for exact name or alias matches
	queryLower := strings.ToLower(query)
	for _, cmd := range commands {
		if cmd.Name == queryLower {
			return []Command{cmd}
		}
		for _, alias := range cmd.Aliases {
			if alias == queryLower {
				return []Command{cmd}
			}
		}
	}

	var result []Command
	for _, match := range fuzzy.FindFrom(queryLower, CommandSource(commands)) {
		result = append(result, commands[match.Index])
	}
	return result
}

// lookupCommand resolves a name, alias or unique prefix. The second result
// lists the candidates when a prefix is ambiguous.
func lookupCommand(name string) (*Command, []Command) {
	for _, c := range AllCommands() {
		if c.Name == name {
			return &c, nil
		}
		for _, alias := range c.Aliases {
			if alias == name {
				return &c, nil
			}
		}
	}

	var prefixMatches []Command
	for _, c := range AllCommands() {
		if strings.HasPrefix(c.Name, name) {
			prefixMatches = append(prefixMatches, c)
		}
	}
	if len(prefixMatches) == 1 {
		return &prefixMatches[0], nil
	}
	return nil, prefixMatches
}

// ExecuteCommand handles slash command execution
func (m *Model) ExecuteCommand(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}

	cmdName := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	args := parts[1:]

	cmd, candidates := lookupCommand(cmdName)
	if cmd == nil {
		if len(candidates) > 1 {
			var names []string
			for _, c := range candidates {
				names = append(names, "/"+c.Name)
			}
			m.setNotice(fmt.Sprintf("Ambiguous command /%s. Did you mean: %s?", cmdName, strings.Join(names, ", ")), true)
			return m, nil
		}
		m.setNotice(fmt.Sprintf("Unknown command /%s. Type /help for available commands.", cmdName), true)
		return m, nil
	}

	switch cmd.Name {
	case "help":
		return m.cmdHelp()
	case "quit":
		return m.quit()
	case "new":
		return m.cmdNew(args)
	case "sessions":
		return m.cmdSessions()
	case "title":
		return m.cmdTitle(args)
	case "clone":
		return m.cmdClone()
	case "delete":
		return m.cmdDelete()
	case "model":
		return m.cmdModel(args)
	case "attach":
		return m.cmdAttach(args)
	case "detach":
		return m.cmdDetach(args)
	case "files":
		return m.cmdFiles()
	case "rmfile":
		return m.cmdRmFile(args)
	case "cancel":
		if m.panel == nil || !m.panel.Busy() {
			m.setNotice("Nothing is streaming.", false)
			return m, nil
		}
		m.cancelStream()
		return m, nil
	default:
		return m, nil
	}
}

func (m *Model) cmdHelp() (tea.Model, tea.Cmd) {
	var b strings.Builder
	b.WriteString("## Commands\n\n")
	for _, cmd := range AllCommands() {
		b.WriteString(fmt.Sprintf("- `%s`", cmd.Usage))
		if len(cmd.Aliases) > 0 {
			b.WriteString(fmt.Sprintf(" (aliases: %s)", strings.Join(cmd.Aliases, ", ")))
		}
		b.WriteString(" " + cmd.Description + "\n")
	}
	b.WriteString("\n## Keys\n\n")
	b.WriteString("- `Enter` send, `Ctrl+J` or `Alt+Enter` newline\n")
	b.WriteString("- `Esc` cancel the streaming reply\n")
	b.WriteString("- `Ctrl+N` new chat, `Ctrl+O` switch chat, `Ctrl+L` model\n")
	b.WriteString("- `PgUp`/`PgDn` scroll, `Ctrl+C` quit\n")

	m.info = b.String()
	m.refresh(true)
	return m, nil
}

func (m *Model) cmdNew(args []string) (tea.Model, tea.Cmd) {
	message := strings.Join(args, " ")
	m.pendingSend = message
	return m, m.createSession(panel.TitleFromMessage(message), "Started a new chat.")
}

func (m *Model) createSession(title, notice string) tea.Cmd {
	ctx := m.ctx
	backend := m.backend
	in := api.SessionCreate{Title: title, LLMProvider: m.model.Provider, LLMModel: m.model.Model}
	return func() tea.Msg {
		sess, err := backend.CreateSession(ctx, in)
		if err != nil {
			return sessionOpenedMsg{err: fmt.Errorf("create chat: %w", err)}
		}
		return sessionOpenedMsg{session: *sess, notice: notice}
	}
}

func (m *Model) cmdSessions() (tea.Model, tea.Cmd) {
	ctx := m.ctx
	backend := m.backend
	return m, func() tea.Msg {
		list, err := backend.ListSessions(ctx)
		if err != nil {
			return sessionsListedMsg{err: err}
		}
		return sessionsListedMsg{sessions: list.Sessions}
	}
}

func (m *Model) cmdTitle(args []string) (tea.Model, tea.Cmd) {
	title := strings.TrimSpace(strings.Join(args, " "))
	if title == "" {
		m.setNotice("Usage: /title <text>", true)
		return m, nil
	}
	ctx := m.ctx
	backend := m.backend
	id := m.session.ID
	return m, func() tea.Msg {
		sess, err := backend.UpdateTitle(ctx, id, title)
		if err != nil {
			return titleUpdatedMsg{err: err}
		}
		return titleUpdatedMsg{session: *sess}
	}
}

func (m *Model) cmdClone() (tea.Model, tea.Cmd) {
	ctx := m.ctx
	backend := m.backend
	id := m.session.ID
	return m, func() tea.Msg {
		sess, err := backend.CloneSession(ctx, id)
		if err != nil {
			return sessionOpenedMsg{err: fmt.Errorf("clone chat: %w", err)}
		}
		return sessionOpenedMsg{session: *sess, notice: "Switched to the copy."}
	}
}

func (m *Model) cmdDelete() (tea.Model, tea.Cmd) {
	m.dialog.ShowConfirmDelete(m.session.Title)
	return m, nil
}

func (m *Model) deleteSession(id string) tea.Cmd {
	ctx := m.ctx
	backend := m.backend
	return func() tea.Msg {
		return sessionDeletedMsg{id: id, err: backend.DeleteSession(ctx, id)}
	}
}

func (m *Model) cmdModel(args []string) (tea.Model, tea.Cmd) {
	if len(m.models) == 0 {
		m.setNotice("No models available.", true)
		return m, nil
	}
	if len(args) == 0 {
		m.dialog.ShowModelPicker(m.models, m.model)
		return m, nil
	}
	match, ok := matchModel(strings.Join(args, " "), m.models)
	if !ok {
		m.setNotice(fmt.Sprintf("No model matches %q.", strings.Join(args, " ")), true)
		return m, nil
	}
	m.selectModel(match)
	return m, nil
}

func (m *Model) selectModel(info api.ModelInfo) {
	m.model = info
	m.setNotice(fmt.Sprintf("New chats will use %s. This chat keeps %s.", info.Label(), m.session.LLMModel), false)
}

// matchModel finds the best model for query: an exact provider/model key,
// then a substring of the model name (shortest wins), then fuzzy on labels.
func matchModel(query string, models []api.ModelInfo) (api.ModelInfo, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return api.ModelInfo{}, false
	}
	for _, m := range models {
		if strings.ToLower(modelKey(m)) == q || strings.ToLower(m.Model) == q {
			return m, true
		}
	}

	var best *api.ModelInfo
	for i, m := range models {
		if strings.Contains(strings.ToLower(m.Model), q) {
			if best == nil || len(m.Model) < len(best.Model) {
				best = &models[i]
			}
		}
	}
	if best != nil {
		return *best, true
	}

	labels := make([]string, len(models))
	for i, m := range models {
		labels[i] = m.Label()
	}
	if matches := fuzzy.Find(q, labels); len(matches) > 0 {
		return models[matches[0].Index], true
	}
	return api.ModelInfo{}, false
}

func (m *Model) handleDialogKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		item := m.dialog.Selected()
		typ := m.dialog.Type()
		m.dialog.Close()
		if item == nil {
			return m, nil
		}
		return m.dialogChoice(typ, *item)
	case tea.KeyBackspace:
		if q := m.dialog.Query(); q != "" && m.dialog.Filterable() {
			r := []rune(q)
			m.dialog.SetQuery(string(r[:len(r)-1]))
		}
		return m, nil
	case tea.KeyRunes, tea.KeySpace:
		if m.dialog.Filterable() {
			m.dialog.SetQuery(m.dialog.Query() + string(msg.Runes))
		}
		return m, nil
	}
	_, cmd := m.dialog.Update(msg)
	return m, cmd
}

func (m *Model) dialogChoice(typ DialogType, item DialogItem) (tea.Model, tea.Cmd) {
	switch typ {
	case DialogModelPicker:
		for _, info := range m.models {
			if modelKey(info) == item.ID {
				m.selectModel(info)
			}
		}
	case DialogSessionList:
		if item.ID == m.session.ID {
			return m, nil
		}
		for _, s := range m.sessionList {
			if s.ID == item.ID {
				return m, m.switchSession(s)
			}
		}
	case DialogConfirmDelete:
		if item.ID == "yes" {
			return m, m.deleteSession(m.session.ID)
		}
	}
	return m, nil
}
