package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// WideLayout is the terminal width from which panels go side by side.
const WideLayout = 120

// Columns returns how many panel columns fit into width and the width of
// each column.
func Columns(width int) (cols, colWidth int) {
	if width >= WideLayout {
		return 2, width / 2
	}
	return 1, width
}

// Grid places panels left to right, top to bottom, in cols columns. Panels
// in the same row are top aligned.
func Grid(cols int, panels []string) string {
	if cols < 1 {
		cols = 1
	}
	rows := make([]string, 0, (len(panels)+cols-1)/cols)
	for i := 0; i < len(panels); i += cols {
		end := min(i+cols, len(panels))
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, panels[i:end]...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// ComposeLayout stacks the header, the body clipped to bodyHeight lines,
// and the status bar.
func ComposeLayout(header, body, statusBar string, bodyHeight int) string {
	lines := strings.Split(body, "\n")
	if bodyHeight > 0 {
		if len(lines) > bodyHeight {
			lines = lines[:bodyHeight]
		}
		for len(lines) < bodyHeight {
			lines = append(lines, "")
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, strings.Join(lines, "\n"), statusBar)
}
