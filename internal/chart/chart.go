// Package chart draws multi-series line charts on a character grid.
package chart

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	runePoint = '•'
	runeLine  = '│'
	runeGrid  = '┈'
	runeAxis  = '┤'
)

var (
	styleAxis = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C6C8A"))
	styleGrid = lipgloss.NewStyle().Foreground(lipgloss.Color("#2E2E48"))
)

// Series is one line. Values are oldest first.
type Series struct {
	Name   string
	Values []float64
	Color  lipgloss.Color
}

// Options sizes and scales the chart. Width and Height include the axis.
type Options struct {
	Width  int
	Height int
	Min    float64
	Max    float64
	// Unit is appended to axis labels, e.g. "%".
	Unit string
	// Ticks are the labelled values on the Y axis. Defaults to Min, the
	// midpoint and Max.
	Ticks []float64
}

// Percent returns options for a 0 to 100 % chart.
func Percent(width, height int) Options {
	return Options{Width: width, Height: height, Min: 0, Max: 100, Unit: "%", Ticks: []float64{0, 50, 100}}
}

type cell struct {
	r      rune
	series int // -1 for axis or grid
}

// Render draws series into a Width x Height block. The newest sample of each
// series sits in the rightmost column; older samples scroll off the left.
// It returns "" when the area is too small to hold an axis and one column.
func Render(opts Options, series []Series) string {
	if opts.Max <= opts.Min {
		opts.Max = opts.Min + 1
	}
	ticks := opts.Ticks
	if len(ticks) == 0 {
		ticks = []float64{opts.Min, (opts.Min + opts.Max) / 2, opts.Max}
	}

	labels := make([]string, len(ticks))
	labelW := 0
	for i, t := range ticks {
		labels[i] = fmt.Sprintf("%g%s", t, opts.Unit)
		labelW = max(labelW, len(labels[i]))
	}
	plotW := opts.Width - labelW - 1
	if opts.Height < 2 || plotW < 1 {
		return ""
	}

	rowOf := func(v float64) int {
		v = math.Max(opts.Min, math.Min(opts.Max, v))
		frac := (opts.Max - v) / (opts.Max - opts.Min)
		return int(math.Round(frac * float64(opts.Height-1)))
	}

	grid := make([][]cell, opts.Height)
	for r := range grid {
		grid[r] = make([]cell, plotW)
		for c := range grid[r] {
			grid[r][c] = cell{' ', -1}
		}
	}
	tickRows := make(map[int]string, len(ticks))
	for i, t := range ticks {
		row := rowOf(t)
		tickRows[row] = labels[i]
		for c := range grid[row] {
			grid[row][c] = cell{runeGrid, -1}
		}
	}

	for si, s := range series {
		vals := s.Values
		if len(vals) > plotW {
			vals = vals[len(vals)-plotW:]
		}
		offset := plotW - len(vals)
		prev := -1
		for i, v := range vals {
			if math.IsNaN(v) {
				prev = -1
				continue
			}
			col, row := offset+i, rowOf(v)
			if prev >= 0 && prev != row {
				lo, hi := min(prev, row), max(prev, row)
				for r := lo + 1; r < hi; r++ {
					grid[r][col] = cell{runeLine, si}
				}
			}
			grid[row][col] = cell{runePoint, si}
			prev = row
		}
	}

	styles := make([]lipgloss.Style, len(series))
	for i, s := range series {
		styles[i] = lipgloss.NewStyle().Foreground(s.Color)
	}

	var sb strings.Builder
	for r, line := range grid {
		label := tickRows[r]
		sb.WriteString(styleAxis.Render(fmt.Sprintf("%*s", labelW, label)))
		if label != "" {
			sb.WriteString(styleAxis.Render(string(runeAxis)))
		} else {
			sb.WriteString(styleAxis.Render("│"))
		}
		for _, c := range line {
			switch {
			case c.series >= 0:
				sb.WriteString(styles[c.series].Render(string(c.r)))
			case c.r == runeGrid:
				sb.WriteString(styleGrid.Render(string(c.r)))
			default:
				sb.WriteRune(c.r)
			}
		}
		if r < len(grid)-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
