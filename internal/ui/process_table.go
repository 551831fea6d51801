package ui

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"radiata.klederson.com/internal/api"
	"radiata.klederson.com/internal/format"
)

// SortKey selects the process table ordering.
type SortKey int

const (
	SortCPU SortKey = iota
	SortMemory
	SortGPU
	SortPID
)

func (k SortKey) String() string {
	switch k {
	case SortMemory:
		return "RAM"
	case SortGPU:
		return "VRAM"
	case SortPID:
		return "PID"
	default:
		return "CPU"
	}
}

// Next cycles to the following sort key.
func (k SortKey) Next() SortKey {
	return (k + 1) % (SortPID + 1)
}

// FilterState holds the text filter of the process table.
type FilterState struct {
	Query  string // case-insensitive match on pid, user and command line
	Active bool   // text input mode
}

// ProcessTable is a sortable, filterable, scrollable process list.
type ProcessTable struct {
	rows   []api.Process
	view   []api.Process
	Cursor int
	Sort   SortKey
	Filter FilterState
}

// SetRows replaces the process list, keeping the cursor on the same pid
// when it is still present.
func (t *ProcessTable) SetRows(rows []api.Process) {
	var pid int32 = -1
	if sel, ok := t.Selected(); ok {
		pid = sel.PID
	}
	t.rows = rows
	t.apply()
	if pid >= 0 {
		if i := slices.IndexFunc(t.view, func(p api.Process) bool { return p.PID == pid }); i >= 0 {
			t.Cursor = i
		}
	}
}

// SetSort changes the ordering.
func (t *ProcessTable) SetSort(k SortKey) {
	t.Sort = k
	t.apply()
}

// SetQuery changes the filter text.
func (t *ProcessTable) SetQuery(q string) {
	t.Filter.Query = q
	t.apply()
}

// Rows returns the filtered and sorted rows.
func (t *ProcessTable) Rows() []api.Process {
	return t.view
}

// Total returns the unfiltered row count.
func (t *ProcessTable) Total() int {
	return len(t.rows)
}

// Selected returns the row under the cursor.
func (t *ProcessTable) Selected() (api.Process, bool) {
	if t.Cursor < 0 || t.Cursor >= len(t.view) {
		return api.Process{}, false
	}
	return t.view[t.Cursor], true
}

// Move shifts the cursor by delta rows, clamped to the list.
func (t *ProcessTable) Move(delta int) {
	t.Cursor = max(0, min(len(t.view)-1, t.Cursor+delta))
}

// Home jumps to the first row.
func (t *ProcessTable) Home() { t.Cursor = 0 }

// End jumps to the last row.
func (t *ProcessTable) End() { t.Cursor = max(0, len(t.view)-1) }

func (t *ProcessTable) apply() {
	q := strings.ToLower(strings.TrimSpace(t.Filter.Query))
	t.view = make([]api.Process, 0, len(t.rows))
	for _, p := range t.rows {
		if q == "" || matches(p, q) {
			t.view = append(t.view, p)
		}
	}

	slices.SortStableFunc(t.view, func(a, b api.Process) int {
		switch t.Sort {
		case SortMemory:
			return cmp.Compare(b.MemoryValue(), a.MemoryValue())
		case SortGPU:
			return cmp.Compare(gpuValue(b), gpuValue(a))
		case SortPID:
			return cmp.Compare(a.PID, b.PID)
		default:
			return cmp.Compare(b.CPUValue(), a.CPUValue())
		}
	})
	t.Cursor = max(0, min(len(t.view)-1, t.Cursor))
}

func matches(p api.Process, q string) bool {
	return strings.Contains(strconv.Itoa(int(p.PID)), q) ||
		strings.Contains(strings.ToLower(p.Username), q) ||
		strings.Contains(strings.ToLower(p.Cmdline), q)
}

func gpuValue(p api.Process) float64 {
	if p.GPUMemoryPercent == nil {
		return -1
	}
	v, err := strconv.ParseFloat(*p.GPUMemoryPercent, 64)
	if err != nil {
		return -1
	}
	return v
}

const (
	colPID  = 8
	colUser = 14
	colPct  = 8
)

// Render draws the table into exactly height lines of at most width cells.
// The filter bar and column header stay fixed; rows scroll with the cursor.
func (t *ProcessTable) Render(width, height int) string {
	innerW := max(colPID+colUser+3*colPct+8, width)
	cmdW := innerW - colPID - colUser - 3*colPct

	header := truncRaw(fmt.Sprintf("%-*s%-*s%*s%*s%*s  %s",
		colPID, "PID", colUser, "Name", colPct, "CPU %", colPct, "RAM %", colPct, "VRAM %", "Command Line"), innerW)
	lines := []string{t.renderFilterBar(), StyleTableHeader.Render(header)}

	space := max(1, height-len(lines))
	if len(t.view) == 0 {
		lines = append(lines, StyleHelp.Render(" No processes"))
	} else {
		start := 0
		if t.Cursor >= space {
			start = t.Cursor - space + 1
		}
		for i := start; i < len(t.view) && i < start+space; i++ {
			p := t.view[i]
			vram := format.NA
			if p.GPUMemoryPercent != nil {
				vram = *p.GPUMemoryPercent
			}
			raw := fmt.Sprintf("%-*d%-*s%*s%*s%*s  %s",
				colPID, p.PID,
				colUser, truncRaw(p.Username, colUser-1),
				colPct, p.CPUPercent,
				colPct, p.MemoryPercent,
				colPct, vram,
				truncRaw(p.Cmdline, max(1, cmdW-2)))
			raw = truncRaw(raw, innerW)
			if i == t.Cursor {
				raw = StyleCursorLine.Render(raw)
			}
			lines = append(lines, raw)
		}
	}

	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (t *ProcessTable) renderFilterBar() string {
	bar := StyleFilterInactive.Render(fmt.Sprintf("%d/%d  sort:", len(t.view), len(t.rows))) +
		StyleFilterActive.Render(t.Sort.String())
	switch {
	case t.Filter.Active:
		bar += "  " + StyleFilterActive.Render("/"+t.Filter.Query+"_")
	case t.Filter.Query != "":
		bar += "  " + StyleFilterInactive.Render("/"+t.Filter.Query)
	}
	return bar
}

// truncRaw pads or truncates s to exactly w runes.
func truncRaw(s string, w int) string {
	r := []rune(s)
	if len(r) > w {
		return string(r[:w])
	}
	return s + strings.Repeat(" ", w-len(r))
}
