package ui

import (
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/floatplane/floatchat/internal/config"
)

// Theme is the TUI color palette.
type Theme struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Success   lipgloss.Color
	Error     lipgloss.Color
	Warning   lipgloss.Color
	Muted     lipgloss.Color
	Text      lipgloss.Color
	Spinner   lipgloss.Color
	UserMsgBg lipgloss.Color
}

// DefaultTheme uses ANSI colors so it follows the terminal palette.
func DefaultTheme() Theme {
	return Theme{
		Primary:   lipgloss.Color("12"),
		Secondary: lipgloss.Color("4"),
		Success:   Green,
		Error:     Red,
		Warning:   lipgloss.Color("11"),
		Muted:     Grey,
		Text:      White,
		Spinner:   lipgloss.Color("13"),
		UserMsgBg: lipgloss.Color("236"),
	}
}

// ThemeFromConfig applies the non-empty overrides in cfg to DefaultTheme.
func ThemeFromConfig(cfg config.ThemeConfig) Theme {
	t := DefaultTheme()
	override := func(dst *lipgloss.Color, v string) {
		if v != "" {
			*dst = lipgloss.Color(v)
		}
	}
	override(&t.Primary, cfg.Primary)
	override(&t.Secondary, cfg.Secondary)
	override(&t.Success, cfg.Success)
	override(&t.Error, cfg.Error)
	override(&t.Warning, cfg.Warning)
	override(&t.Muted, cfg.Muted)
	override(&t.Text, cfg.Text)
	override(&t.Spinner, cfg.Spinner)
	override(&t.UserMsgBg, cfg.UserMsgBg)
	return t
}

// GlamourStyle returns the markdown style for assistant replies. NO_COLOR
// selects glamour's plain style.
func GlamourStyle() ansi.StyleConfig {
	if NoColor() {
		return styles.NoTTYStyleConfig
	}
	style := styles.DarkStyleConfig
	primary := string(DefaultTheme().Primary)
	style.H1.StylePrimitive.Color = &primary
	style.H2.StylePrimitive.Color = &primary
	return style
}
