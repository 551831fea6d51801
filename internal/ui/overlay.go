package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// RenderOverlay centers a bordered box holding content in a width x height
// area.
func RenderOverlay(width, height int, content string) string {
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, StyleOverlay.Render(content))
}

// RenderServerDown is shown instead of the panels while the health check
// fails. detail carries the last error or the retry schedule.
func RenderServerDown(width, height int, serverURL, detail string) string {
	lines := []string{
		StyleOverlayTitle.Render("Oops...!"),
		"",
		StyleValue.Render("Looks like the server's gone silent."),
		StyleLabel.Render("Double-check the server address, it has to be reachable and running."),
		"",
		KV("Server ", serverURL, 8),
	}
	if detail != "" {
		lines = append(lines, StyleHelp.Render(detail))
	}
	lines = append(lines, "", StyleHelp.Render("[r] retry   [u] edit server URL   [q] quit"))
	return RenderOverlay(width, height, lipgloss.JoinVertical(lipgloss.Left, lines...))
}
