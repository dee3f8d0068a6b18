package ui

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/floatplane/floatchat/internal/api"
)

var (
	labelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")) // bright green
	detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))             // grey
)

func formatOption(label, detail string) string {
	if detail == "" {
		return labelStyle.Render(label)
	}
	return labelStyle.Render(label) + detailStyle.Render("  "+detail)
}

// ModelOptions builds picker options for models, preselecting current.
func ModelOptions(models []api.ModelInfo, current api.ModelInfo) []huh.Option[api.ModelInfo] {
	options := make([]huh.Option[api.ModelInfo], 0, len(models))
	for _, m := range models {
		opt := huh.NewOption(formatOption(m.Label(), m.Provider+"/"+m.Model), m)
		if m.Provider == current.Provider && m.Model == current.Model {
			opt = opt.Selected(true)
		}
		options = append(options, opt)
	}
	return options
}

// SelectModel asks the user to pick one of models.
func SelectModel(models []api.ModelInfo, current api.ModelInfo) (api.ModelInfo, error) {
	if len(models) == 0 {
		return api.ModelInfo{}, fmt.Errorf("no models available")
	}
	selected := current
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[api.ModelInfo]().
				Title("Model for the new chat").
				Options(ModelOptions(models, current)...).
				Value(&selected),
		),
	)
	if err := form.Run(); err != nil {
		return api.ModelInfo{}, err
	}
	return selected, nil
}

// SelectSession asks the user to pick one of sessions and returns its id.
func SelectSession(sessions []api.Session) (string, error) {
	if len(sessions) == 0 {
		return "", fmt.Errorf("no sessions")
	}
	options := make([]huh.Option[string], 0, len(sessions))
	for _, s := range sessions {
		detail := s.LLMModel
		if !s.UpdatedAt.IsZero() {
			detail += "  " + s.UpdatedAt.Local().Format("2006-01-02 15:04")
		}
		options = append(options, huh.NewOption(formatOption(Truncate(s.Title, 50), detail), s.ID))
	}

	var selected string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select a chat").
				Options(options...).
				Value(&selected),
		),
	)
	if err := form.Run(); err != nil {
		return "", err
	}
	return selected, nil
}

// Confirm asks a yes/no question, defaulting to no.
func Confirm(title string) (bool, error) {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	)
	if err := form.Run(); err != nil {
		return false, err
	}
	return ok, nil
}

// PromptText asks for a single line of text, prefilled with initial.
func PromptText(title, initial string) (string, error) {
	value := initial
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				Value(&value),
		),
	)
	if err := form.Run(); err != nil {
		return "", err
	}
	return value, nil
}
