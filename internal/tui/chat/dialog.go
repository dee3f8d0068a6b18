package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/floatplane/floatchat/internal/api"
	"github.com/sahilm/fuzzy"
)

// DialogType represents the type of dialog
type DialogType int

const (
	DialogNone DialogType = iota
	DialogModelPicker
	DialogSessionList
	DialogConfirmDelete
)

// DialogModel handles modal dialogs
type DialogModel struct {
	dialogType DialogType
	items      []DialogItem
	filtered   []DialogItem
	cursor     int
	query      string
	title      string
	width      int
	height     int
	styles     chatStyles
}

// DialogItem represents an item in a dialog list
type DialogItem struct {
	ID          string
	Label       string
	Description string
	Selected    bool
}

type dialogItems []DialogItem

func (d dialogItems) String(i int) string { return d[i].Label }
func (d dialogItems) Len() int            { return len(d) }

// NewDialogModel creates a new dialog model
func NewDialogModel(styles chatStyles) *DialogModel {
	return &DialogModel{
		dialogType: DialogNone,
		styles:     styles,
	}
}

// SetSize updates the dimensions
func (d *DialogModel) SetSize(width, height int) {
	d.width = width
	d.height = height
}

// IsOpen returns whether a dialog is open
func (d *DialogModel) IsOpen() bool {
	return d.dialogType != DialogNone
}

// Type returns the current dialog type
func (d *DialogModel) Type() DialogType {
	return d.dialogType
}

// Close closes the dialog
func (d *DialogModel) Close() {
	d.dialogType = DialogNone
	d.items = nil
	d.filtered = nil
	d.cursor = 0
	d.query = ""
}

func (d *DialogModel) open(t DialogType, title string, items []DialogItem) {
	d.dialogType = t
	d.title = title
	d.items = items
	d.filtered = items
	d.query = ""
	d.cursor = 0
	for i, item := range items {
		if item.Selected {
			d.cursor = i
			break
		}
	}
}

// ShowModelPicker lists models, marking the current one.
func (d *DialogModel) ShowModelPicker(models []api.ModelInfo, current api.ModelInfo) {
	items := make([]DialogItem, 0, len(models))
	for _, m := range models {
		items = append(items, DialogItem{
			ID:          modelKey(m),
			Label:       m.Label(),
			Description: modelKey(m),
			Selected:    m.Provider == current.Provider && m.Model == current.Model,
		})
	}
	d.open(DialogModelPicker, "Model for new chats", items)
}

// ShowSessionList lists sessions, marking currentID.
func (d *DialogModel) ShowSessionList(sessions []api.Session, currentID string) {
	items := make([]DialogItem, 0, len(sessions))
	for _, s := range sessions {
		desc := s.LLMModel
		if !s.UpdatedAt.IsZero() {
			desc += " · " + s.UpdatedAt.Local().Format("Jan 2 15:04")
		}
		items = append(items, DialogItem{
			ID:          s.ID,
			Label:       s.Title,
			Description: desc,
			Selected:    s.ID == currentID,
		})
	}
	d.open(DialogSessionList, "Switch chat", items)
}

// ShowConfirmDelete asks before deleting the chat titled title.
func (d *DialogModel) ShowConfirmDelete(title string) {
	d.open(DialogConfirmDelete, "Delete \""+title+"\"?", []DialogItem{
		{ID: "no", Label: "Keep it"},
		{ID: "yes", Label: "Delete chat and its files"},
	})
}

// Selected returns the currently highlighted item
func (d *DialogModel) Selected() *DialogItem {
	if len(d.filtered) == 0 {
		return nil
	}
	if d.cursor >= len(d.filtered) {
		d.cursor = len(d.filtered) - 1
	}
	return &d.filtered[d.cursor]
}

// Filterable reports whether typing narrows the list.
func (d *DialogModel) Filterable() bool {
	return d.dialogType == DialogModelPicker || d.dialogType == DialogSessionList
}

// SetQuery updates the filter query
func (d *DialogModel) SetQuery(query string) {
	d.query = query
	d.filterItems()
}

// Query returns the current filter query
func (d *DialogModel) Query() string {
	return d.query
}

func (d *DialogModel) filterItems() {
	if d.query == "" {
		d.filtered = d.items
	} else {
		d.filtered = nil
		for _, match := range fuzzy.FindFrom(d.query, dialogItems(d.items)) {
			d.filtered = append(d.filtered, d.items[match.Index])
		}
	}
	if d.cursor >= len(d.filtered) {
		d.cursor = max(0, len(d.filtered)-1)
	}
}

// Update handles navigation keys
func (d *DialogModel) Update(msg tea.Msg) (*DialogModel, tea.Cmd) {
	if d.dialogType == DialogNone {
		return d, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, key.NewBinding(key.WithKeys("up", "ctrl+p"))):
			if d.cursor > 0 {
				d.cursor--
			}
		case key.Matches(msg, key.NewBinding(key.WithKeys("down", "ctrl+n"))):
			if d.cursor < len(d.filtered)-1 {
				d.cursor++
			}
		case key.Matches(msg, key.NewBinding(key.WithKeys("esc"))):
			d.Close()
		}
	}
	return d, nil
}

// View renders the dialog
func (d *DialogModel) View() string {
	if d.dialogType == DialogNone {
		return ""
	}

	maxVisible := 10
	startIdx := 0
	if d.cursor >= maxVisible {
		startIdx = d.cursor - maxVisible + 1
	}
	endIdx := min(startIdx+maxVisible, len(d.filtered))

	var b strings.Builder
	b.WriteString(d.styles.header.Render(d.title))
	if d.query != "" {
		b.WriteString(d.styles.muted.Render("  filter: " + d.query))
	}
	b.WriteString("\n")

	if len(d.filtered) == 0 {
		if len(d.items) == 0 {
			b.WriteString(d.styles.muted.Render("  nothing to choose from"))
		} else {
			b.WriteString(d.styles.muted.Render("  no matches"))
		}
	}
	for i := startIdx; i < endIdx; i++ {
		item := d.filtered[i]
		if i == d.cursor {
			b.WriteString(d.styles.selected.Render("❯ " + item.Label))
		} else {
			b.WriteString("  " + d.styles.suggestion.Render(item.Label))
		}
		if item.Description != "" {
			b.WriteString(d.styles.muted.Render("  " + item.Description))
		}
		if item.Selected {
			b.WriteString(d.styles.muted.Render(" (current)"))
		}
		if i < endIdx-1 {
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(d.styles.muted.Render("↑/↓ navigate · enter select · esc cancel"))

	return d.styles.border.Render(b.String())
}

func modelKey(m api.ModelInfo) string {
	return m.Provider + "/" + m.Model
}
