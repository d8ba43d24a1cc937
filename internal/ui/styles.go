// Package ui holds the terminal presentation layer: output styling,
// progress spinners, and the interactive prompts the sync engine and
// watcher delegate to.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// RenderPass styles a success message.
func RenderPass(s string) string { return passStyle.Render(s) }

// RenderFail styles a failure message.
func RenderFail(s string) string { return failStyle.Render(s) }

// RenderWarn styles a warning message.
func RenderWarn(s string) string { return warnStyle.Render(s) }

// RenderAccent styles an emphasized label.
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderMuted styles secondary detail.
func RenderMuted(s string) string { return mutedStyle.Render(s) }

// RenderState colors a sync-state label: green for synced, red for
// conflicted, everything else muted.
func RenderState(state string) string {
	switch state {
	case "synced":
		return passStyle.Render(state)
	case "conflicted":
		return failStyle.Render(state)
	default:
		return mutedStyle.Render(state)
	}
}

// Interactive reports whether stdin is a terminal. Prompts are skipped
// entirely when it is not.
func Interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
