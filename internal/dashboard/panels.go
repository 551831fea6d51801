package dashboard

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"radiata.klederson.com/internal/api"
	"radiata.klederson.com/internal/chart"
	"radiata.klederson.com/internal/format"
	"radiata.klederson.com/internal/ui"
)

const (
	chartHeight  = 8
	processLines = 12
)

var (
	byteUnit = format.Unit("B", format.Binary)
	rateUnit = format.Unit("B/s", format.Binary)
	hzUnit   = format.Unit("Hz", format.Decimal)
	bitUnit  = format.Unit("bit/s", format.Decimal)
	nameless = format.NA
)

func (m Model) renderPanels() string {
	s := m.shared
	d := s.sess.data
	cols, colW := ui.Columns(m.width)
	inner := max(1, colW-2)

	panel := func(id, zoneID, title string, body func(w int) string) string {
		collapsed := s.collapsed[id]
		p := ui.Panel{ID: zoneID, Title: title, Width: colW, Collapsed: collapsed}
		if !collapsed {
			p.Body = body(inner)
		}
		return ui.RenderPanel(s.zones, p)
	}

	panels := []string{
		panel(PanelCPU, PanelCPU, m.cpuTitle(), m.renderCPU),
		panel(PanelMemory, PanelMemory, "MEMORY", m.renderMemory),
	}
	for i := range d.gpus {
		name := nameless
		if i < len(d.static.gpu.Names) {
			name = d.static.gpu.Names[i]
		}
		panels = append(panels, panel(PanelGPU, gpuZone(i), fmt.Sprintf("GPU %d | %s", i, name), func(w int) string {
			return m.renderGPU(i, w)
		}))
	}
	panels = append(panels,
		panel(PanelProcess, PanelProcess, "PROCESS", func(w int) string {
			return s.table.Render(w, processLines)
		}),
		panel(PanelNetwork, PanelNetwork, "NETWORK", m.renderNetwork),
		panel(PanelDisk, PanelDisk, "DISK", m.renderDisk),
	)

	return ui.Grid(cols, panels)
}

func (m Model) cpuTitle() string {
	st := m.shared.sess.data.static
	name := st.cpuName
	if name == "" {
		name = nameless
	}
	if st.physical == 0 && st.logical == 0 {
		return "CPU | " + name
	}
	return fmt.Sprintf("CPU | %s | %d C %d T", name, st.physical, st.logical)
}

func (m Model) renderCPU(w int) string {
	s := m.shared
	d := s.sess.data

	series := coreSeries(d.cores)
	names := make([]string, len(series))
	colors := make([]lipgloss.Color, len(series))
	for i := range series {
		series[i].Color = lipgloss.Color(s.colors.ColorForIndex(i))
		names[i], colors[i] = strconv.Itoa(i), series[i].Color
	}

	lines := []string{chart.Render(chart.Percent(w, chartHeight), series)}
	// Hosts with many cores get no legend rather than a wrapped one.
	if legend := ui.Legend(names, colors); len(series) > 0 && lipgloss.Width(legend) <= w {
		lines = append(lines, legend)
	}
	lines = append(lines,
		ui.Gauge("Usage", d.cpuPercent, w, s.scale),
		ui.Tiles(w,
			[2]string{"Frequency", hzUnit(d.cpuFreq)},
			[2]string{"Load Averages", format.Join(d.load, "/")},
			[2]string{"Temperature", celsius(d.cpuTemp)},
		),
	)
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) renderMemory(w int) string {
	s := m.shared
	d := s.sess.data

	values := make([]float64, len(d.memHistory))
	for i, smp := range d.memHistory {
		values[i] = smp.Data
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		chart.Render(chart.Percent(w, chartHeight), []chart.Series{{Name: "memory", Values: values, Color: ui.ColorAccent}}),
		ui.Gauge("Usage", d.memPercent, w, s.scale),
		ui.Tiles(w,
			[2]string{"Available", byteUnit(d.memAvail)},
			[2]string{"Total", byteUnit(d.static.memTotal)},
		),
	)
}

func (m Model) renderGPU(i, w int) string {
	s := m.shared
	d := s.sess.data
	g := d.gpus[i]

	usage := format.NA
	if g.used != nil {
		var total *float64
		if i < len(d.static.gpu.MemoryTotal) {
			total = &d.static.gpu.MemoryTotal[i]
		}
		usage = byteUnit(g.used) + "/" + byteUnit(total)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		chart.Render(chart.Percent(w, chartHeight), []chart.Series{{
			Name:   fmt.Sprintf("gpu %d", i),
			Values: g.history.Values(),
			Color:  lipgloss.Color(s.colors.ColorForIndex(i)),
		}}),
		ui.Tiles(w, [2]string{"Usage/Total", usage}),
		ui.Gauge("Kernel Access", g.kernel, w, s.scale),
		ui.Gauge("Memory Access", g.memAccess, w, s.scale),
	)
}

func (m Model) renderNetwork(w int) string {
	d := m.shared.sess.data
	lines := []string{ui.Tiles(w,
		[2]string{"Received", rateUnit(d.recv)},
		[2]string{"Sent", rateUnit(d.sent)},
	)}

	names := slices.Sorted(maps.Keys(d.ifaces))
	labelW := len("Sent") + 2
	for _, n := range names {
		labelW = max(labelW, len(n)+2)
	}

	// Both rates share one scale so their heights compare.
	recv, sent := d.recvHist.Values(), d.sentHist.Values()
	peak := max(peakOf(recv), peakOf(sent))
	sparkW := max(1, w-labelW)
	lines = append(lines,
		ui.KV("Recv", ui.Sparkline(recv, sparkW, 0, peak), labelW),
		ui.KV("Sent", ui.Sparkline(sent, sparkW, 0, peak), labelW),
	)

	for _, n := range names {
		lines = append(lines, ui.KV(n, ifaceText(d.ifaces[n]), labelW))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// peakOf returns the largest value, ignoring NaN, or 1 when there is none.
func peakOf(values []float64) float64 {
	peak := 0.0
	for _, v := range values {
		if !math.IsNaN(v) {
			peak = max(peak, v)
		}
	}
	if peak <= 0 {
		return 1
	}
	return peak
}

func ifaceText(i api.Interface) string {
	state := "down"
	if i.IsUp {
		state = "up"
	}
	return fmt.Sprintf("%s  mtu %d  %s", bitUnit(&i.Speed), i.MTU, state)
}

func (m Model) renderDisk(w int) string {
	d := m.shared.sess.data

	usage := format.NA
	if root, ok := d.disks.Find("/"); ok {
		usage = strconv.FormatFloat(root.Percent, 'f', -1, 64) + " %"
	}
	return ui.Tiles(w,
		[2]string{"Usage of /", usage},
		[2]string{"Read", rateUnit(d.diskRead)},
		[2]string{"Write", rateUnit(d.diskWrite)},
	)
}

// coreSeries turns time-ordered samples of every core into one series per
// core. Cores missing from a sample read as NaN.
func coreSeries(samples []api.CoreSample) []chart.Series {
	cores := 0
	for _, smp := range samples {
		cores = max(cores, len(smp.Percents))
	}
	series := make([]chart.Series, cores)
	for c := range series {
		series[c].Name = fmt.Sprintf("core %d", c)
		series[c].Values = make([]float64, len(samples))
		for t, smp := range samples {
			if c < len(smp.Percents) {
				series[c].Values[t] = smp.Percents[c]
			} else {
				series[c].Values[t] = math.NaN()
			}
		}
	}
	return series
}

func celsius(v *float64) string {
	if v == nil || math.IsNaN(*v) {
		return format.NA
	}
	return fmt.Sprintf("%.1f °C", *v)
}
