package ui

import "github.com/charmbracelet/lipgloss"

type theme struct {
	header      lipgloss.Style
	panel       lipgloss.Style
	widget      lipgloss.Style
	launcher    lipgloss.Style
	name        lipgloss.Style
	adminName   lipgloss.Style
	body        lipgloss.Style
	typing      lipgloss.Style
	status      map[string]lipgloss.Style
	alert       lipgloss.Style
	helpText    lipgloss.Style
	inputPrompt lipgloss.Style
}

func newTheme() theme {
	accent := lipgloss.Color("#01cdfe")
	admin := lipgloss.Color("#ff71ce")
	ok := lipgloss.Color("#05ffa1")
	warn := lipgloss.Color("#ffd166")
	muted := lipgloss.Color("#9ca3d8")

	return theme{
		header: lipgloss.NewStyle().
			Foreground(accent).
			Bold(true).
			Padding(0, 1),
		panel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(accent),
		widget: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(admin),
		launcher: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(admin).
			Padding(0, 1),
		name:      lipgloss.NewStyle().Foreground(accent).Bold(true),
		adminName: lipgloss.NewStyle().Foreground(admin).Bold(true),
		body:      lipgloss.NewStyle(),
		typing:    lipgloss.NewStyle().Foreground(muted).Italic(true),
		status: map[string]lipgloss.Style{
			"connected":    lipgloss.NewStyle().Foreground(ok),
			"connecting":   lipgloss.NewStyle().Foreground(warn),
			"disconnected": lipgloss.NewStyle().Foreground(muted),
		},
		alert:       lipgloss.NewStyle().Foreground(admin).Bold(true),
		helpText:    lipgloss.NewStyle().Foreground(muted),
		inputPrompt: lipgloss.NewStyle().Foreground(accent),
	}
}
