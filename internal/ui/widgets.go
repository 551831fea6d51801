package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"radiata.klederson.com/internal/format"
	"radiata.klederson.com/internal/palette"
)

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders the newest width values as block glyphs scaled between
// lo and hi. NaN samples render as blanks. Shorter input is left padded so
// the newest value sits at the right edge.
func Sparkline(values []float64, width int, lo, hi float64) string {
	if width < 1 {
		return ""
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}
	rng := hi - lo
	if rng <= 0 {
		rng = 1
	}

	var sb strings.Builder
	sb.WriteString(strings.Repeat(" ", width-len(values)))
	for _, v := range values {
		if math.IsNaN(v) {
			sb.WriteByte(' ')
			continue
		}
		idx := int((v - lo) / rng * float64(len(sparkBlocks)-1))
		idx = max(0, min(len(sparkBlocks)-1, idx))
		sb.WriteRune(sparkBlocks[idx])
	}
	return sb.String()
}

// Gauge renders a labelled percentage bar. The filled part takes the scale
// color for the value; a nil value leaves the bar empty and prints N/A.
func Gauge(label string, v *float64, width int, scale *palette.Scale) string {
	value := format.Percent(v)
	barW := max(4, width-lipgloss.Width(label)-len(value)-3)

	filled := 0
	fill := lipgloss.NewStyle()
	if v != nil && !math.IsNaN(*v) {
		ratio := math.Max(0, math.Min(1, *v/100))
		filled = int(math.Round(ratio * float64(barW)))
		if scale != nil {
			fill = fill.Foreground(scale.At(*v).Lipgloss())
		}
	}

	bar := fill.Render(strings.Repeat("█", filled)) +
		StyleGaugeEmpty.Render(strings.Repeat("░", barW-filled))
	return StyleLabel.Render(label) + " " + bar + " " + StyleValue.Render(value)
}

// Stat renders a two line tile: a muted title over a bold value.
func Stat(title, value string, width int) string {
	sty := lipgloss.NewStyle().Width(max(1, width)).MaxWidth(max(1, width))
	return sty.Render(StyleLabel.Render(title)) + "\n" + sty.Render(StyleValue.Render(value))
}

// Tiles lays stats out side by side in equal columns across width.
func Tiles(width int, tiles ...[2]string) string {
	if len(tiles) == 0 {
		return ""
	}
	w := max(1, width/len(tiles))
	cols := make([]string, len(tiles))
	for i, t := range tiles {
		cols[i] = Stat(t[0], t[1], w)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

// Legend lists series names in their chart colors.
func Legend(names []string, colors []lipgloss.Color) string {
	parts := make([]string, 0, len(names))
	for i, n := range names {
		sty := StyleLabel
		if i < len(colors) {
			sty = lipgloss.NewStyle().Foreground(colors[i])
		}
		parts = append(parts, sty.Render("━ "+n))
	}
	return strings.Join(parts, "  ")
}

// KV renders a label and value pair with the label padded to labelW.
func KV(label, value string, labelW int) string {
	return StyleLabel.Render(fmt.Sprintf("%-*s", labelW, label)) + StyleValue.Render(value)
}
