// Package ui provides terminal rendering helpers for the CLI.
package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle    = lipgloss.NewStyle().Faint(true)

	// colorEnabled is false when the terminal can't render color, so
	// output degrades to plain text in pipes and dumb terminals.
	colorEnabled = termenv.EnvColorProfile() != termenv.Ascii
)

func render(style lipgloss.Style, s string) string {
	if !colorEnabled {
		return s
	}
	return style.Render(s)
}

// RenderAccent highlights informational markers.
func RenderAccent(s string) string { return render(accentStyle, s) }

// RenderPass highlights success markers.
func RenderPass(s string) string { return render(passStyle, s) }

// RenderWarn highlights warnings.
func RenderWarn(s string) string { return render(warnStyle, s) }

// RenderFail highlights errors.
func RenderFail(s string) string { return render(failStyle, s) }

// RenderDim de-emphasizes secondary detail.
func RenderDim(s string) string { return render(dimStyle, s) }
