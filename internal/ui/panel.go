package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"
)

// Panel is a bordered box with a clickable title line.
type Panel struct {
	// ID is the zone id of the title line.
	ID        string
	Title     string
	Body      string
	Width     int
	Collapsed bool
}

// RenderPanel draws p. The title is marked in z so a mouse click on it can
// be resolved with z.Get(p.ID); z may be nil.
func RenderPanel(z *zone.Manager, p Panel) string {
	inner := max(1, p.Width-2)

	toggle := "▾ "
	if p.Collapsed {
		toggle = "▸ "
	}
	title := StylePanelToggle.Render(toggle) + StylePanelTitle.Render(p.Title)
	title = lipgloss.NewStyle().MaxWidth(inner).Render(title)
	if z != nil {
		title = z.Mark(p.ID, title)
	}

	content := title
	if !p.Collapsed && p.Body != "" {
		content += "\n" + StyleLabel.Render(strings.Repeat("─", inner)) + "\n" + p.Body
	}
	return StylePanelBorder.Width(inner).Render(content)
}
