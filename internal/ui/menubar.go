package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"radiata.klederson.com/internal/config"
)

// Link describes the connection to the metrics server.
type Link int

const (
	LinkConnecting Link = iota
	LinkLive
	LinkPaused
	LinkDown
)

func (l Link) String() string {
	switch l {
	case LinkLive:
		return "LIVE"
	case LinkPaused:
		return "PAUSED"
	case LinkDown:
		return "DOWN"
	default:
		return "CONNECTING"
	}
}

func (l Link) render() string {
	switch l {
	case LinkLive:
		return StyleStatusLive.Render("● " + l.String())
	case LinkPaused:
		return StyleStatusPaused.Render("‖ " + l.String())
	case LinkDown:
		return StyleStatusDown.Render("✖ " + l.String())
	default:
		return StyleHeaderLabel.Render("… " + l.String())
	}
}

// HeaderKeys are the shortcuts advertised in the header.
var HeaderKeys = []struct{ Key, Label string }{
	{"u", "rl"},
	{"p", "ause"},
	{"?", "help"},
	{"q", "uit"},
}

// RenderHeader renders the top bar. When editor is non-empty it replaces
// the server URL, so the URL can be edited in place.
func RenderHeader(width int, serverURL, editor string, link Link, demo bool) string {
	title := StyleLogo.Render(config.AppName)

	var menu strings.Builder
	for _, k := range HeaderKeys {
		menu.WriteString("  " + StyleHeaderKey.Render("["+k.Key+"]") + StyleHeaderLabel.Render(k.Label))
	}

	server := StyleServerURL.Render(serverURL)
	switch {
	case editor != "":
		server = editor
	case demo:
		server = StyleStatusPaused.Render("DEMO DATA")
	}

	left := title + menu.String()
	right := fmt.Sprintf("%s  %s", server, link.render())

	gap := max(0, width-2-lipgloss.Width(left)-lipgloss.Width(right))
	return StyleHeader.Width(width).Render(left + strings.Repeat(" ", gap) + right)
}
