package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// Status is the content of the bottom bar.
type Status struct {
	Link     Link
	Updated  time.Time
	Now      time.Time
	Failures int
	Visible  int
	Panels   int
	Message  string
}

// RenderStatusBar renders the bottom bar.
func RenderStatusBar(width int, s Status) string {
	updated := "never"
	if !s.Updated.IsZero() {
		updated = humanize.RelTime(s.Updated, s.Now, "ago", "from now")
	}

	info := fmt.Sprintf(" updated %s  panels %d/%d", updated, s.Visible, s.Panels)
	if s.Failures > 0 {
		info += fmt.Sprintf("  health failures %d", s.Failures)
	}
	content := s.Link.render() + StyleStatusBar.UnsetPadding().Render(info)
	if s.Message != "" {
		content += "  " + StyleStatusPaused.Render(s.Message)
	}

	gap := max(0, width-2-lipgloss.Width(content))
	return StyleStatusBar.Width(width).Render(content + strings.Repeat(" ", gap))
}
