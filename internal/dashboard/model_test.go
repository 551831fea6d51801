package dashboard

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"os"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"radiata.klederson.com/internal/api"
	"radiata.klederson.com/internal/config"
	"radiata.klederson.com/internal/format"
	"radiata.klederson.com/internal/poll"
	"radiata.klederson.com/internal/ui"
)

func TestMain(m *testing.M) {
	lipgloss.SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}

// flaky wraps a Source and fails Health while down is set.
type flaky struct {
	api.Source
	down bool
}

func (f *flaky) Health(ctx context.Context) error {
	if f.down {
		return errors.New("connection refused")
	}
	return f.Source.Health(ctx)
}

func allPanels() config.Panels {
	return config.DefaultFile().Panels
}

func newModel(t *testing.T, src api.Source, dial func(string) (api.Source, error)) Model {
	t.Helper()
	m, err := New(Options{
		ServerURL: "http://test:4444",
		Source:    src,
		Dial:      dial,
		Panels:    allPanels(),
	})
	if err != nil {
		t.Fatal(err)
	}
	m.Init()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 160, Height: 60})
	return next.(Model)
}

func mock() *api.Mock {
	return api.NewMock(4, 1, rand.New(rand.NewSource(1)))
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNewWithoutSource(t *testing.T) {
	if _, err := New(Options{}); !errors.Is(err, ErrNoSource) {
		t.Errorf("New err = %v, want ErrNoSource", err)
	}
}

func TestNewDialError(t *testing.T) {
	want := errors.New("bad url")
	_, err := New(Options{Dial: func(string) (api.Source, error) { return nil, want }})
	if !errors.Is(err, want) {
		t.Errorf("New err = %v", err)
	}
}

func TestResultAppliedAndRescheduled(t *testing.T) {
	m := newModel(t, mock(), nil)
	epoch := m.shared.sess.epoch

	m, cmd := update(t, m, poll.Result{Key: "cpu/percent", Epoch: epoch, OK: true, Value: format.Ptr(42.0), At: time.Now()})
	if got := m.shared.sess.data.cpuPercent; got == nil || *got != 42 {
		t.Fatalf("cpuPercent = %v", got)
	}
	if cmd == nil {
		t.Error("result was not rescheduled")
	}
	if m.shared.updated.IsZero() {
		t.Error("updated timestamp not set")
	}

	// A failed fetch clears the value to unavailable.
	m, _ = update(t, m, poll.Result{Key: "cpu/percent", Epoch: epoch, Err: errors.New("timeout")})
	if m.shared.sess.data.cpuPercent != nil {
		t.Error("failed fetch kept the old value")
	}
}

func TestStaleEpochDropped(t *testing.T) {
	m := newModel(t, mock(), nil)
	stale := m.shared.sess.epoch - 1

	m, cmd := update(t, m, poll.Result{Key: "cpu/percent", Epoch: stale, OK: true, Value: format.Ptr(99.0)})
	if m.shared.sess.data.cpuPercent != nil {
		t.Error("stale result was applied")
	}
	if cmd != nil {
		t.Error("stale chain was rescheduled")
	}

	m, cmd = update(t, m, staticMsg{epoch: stale, info: staticInfo{cpuName: "old"}})
	if m.shared.sess.data.static.cpuName == "old" || cmd != nil {
		t.Error("stale static info was applied")
	}
}

func TestPausedIgnoresResults(t *testing.T) {
	m := newModel(t, mock(), nil)
	m, _ = update(t, m, runes("p"))
	if m.displayLink() != ui.LinkPaused {
		t.Fatalf("link = %v, want PAUSED", m.displayLink())
	}

	m, cmd := update(t, m, poll.Result{Key: "memory/percent", Epoch: m.shared.sess.epoch, OK: true, Value: format.Ptr(10.0)})
	if m.shared.sess.data.memPercent != nil {
		t.Error("paused model applied a result")
	}
	if cmd == nil {
		t.Error("paused model stopped polling")
	}
}

func TestHealthDownAndBack(t *testing.T) {
	src := &flaky{Source: mock(), down: true}
	m := newModel(t, src, nil)
	epoch := m.shared.sess.epoch

	health := m.shared.healthJob().Key
	m, _ = update(t, m, poll.Result{Key: health, Epoch: epoch, Err: errors.New("connection refused")})
	if m.link != ui.LinkDown {
		t.Fatalf("link = %v, want DOWN", m.link)
	}
	view := ansi.Strip(m.View())
	if !strings.Contains(view, "Oops...!") || !strings.Contains(view, "http://test:4444") {
		t.Error("server-down overlay not shown")
	}

	m, _ = update(t, m, poll.Result{Key: "cpu/percent", Epoch: epoch, OK: true, Value: format.Ptr(5.0)})
	if m.shared.sess.data.cpuPercent != nil {
		t.Error("result applied while server is down")
	}

	m, cmd := update(t, m, poll.Result{Key: health, Epoch: epoch, OK: true})
	if m.link != ui.LinkLive {
		t.Errorf("link = %v, want LIVE", m.link)
	}
	if cmd == nil {
		t.Error("recovery did not schedule the static refetch")
	}
}

func TestStaticStartsGPUJobs(t *testing.T) {
	m := newModel(t, mock(), nil)
	info := staticInfo{
		cpuName:  "Test CPU",
		logical:  8,
		physical: 4,
		gpu:      api.GPUInfo{HasGPU: true, Count: 2, Names: []string{"A", "B"}, MemoryTotal: []float64{1 << 30, 2 << 30}},
		gpuOK:    true,
	}

	m, cmd := update(t, m, staticMsg{epoch: m.shared.sess.epoch, info: info})
	if cmd == nil {
		t.Fatal("no GPU jobs scheduled")
	}
	if n := len(m.shared.sess.data.gpus); n != 2 {
		t.Fatalf("gpus = %d, want 2", n)
	}
	if _, ok := m.shared.sess.jobs["gpu/memory_percent/1"]; !ok {
		t.Error("missing gpu/memory_percent/1 job")
	}
	if got := m.cpuTitle(); got != "CPU | Test CPU | 4 C 8 T" {
		t.Errorf("cpuTitle = %q", got)
	}

	// The same static info again keeps the running jobs and history.
	m.shared.sess.data.gpus[0].history.Push(1)
	_, _ = update(t, m, staticMsg{epoch: m.shared.sess.epoch, info: info})
	if m.shared.sess.data.gpus[0].history.Len() != 1 {
		t.Error("GPU history reset by repeated static info")
	}
}

func TestGPUHistoryPushesNaNWhenUnavailable(t *testing.T) {
	m := newModel(t, mock(), nil)
	m, _ = update(t, m, staticMsg{epoch: m.shared.sess.epoch, info: staticInfo{gpu: api.GPUInfo{HasGPU: true, Count: 1}, gpuOK: true}})

	key := "gpu/memory_percent/0"
	m, _ = update(t, m, poll.Result{Key: key, Epoch: m.shared.sess.epoch, OK: true, Value: format.Ptr(30.0)})
	m, _ = update(t, m, poll.Result{Key: key, Epoch: m.shared.sess.epoch, Err: errors.New("404")})

	vals := m.shared.sess.data.gpus[0].history.Values()
	if len(vals) != 2 || vals[0] != 30 || !math.IsNaN(vals[1]) {
		t.Errorf("history = %v, want [30 NaN]", vals)
	}
}

func TestGPUChartLeavesGapForNaN(t *testing.T) {
	m := newModel(t, mock(), nil)
	m, _ = update(t, m, staticMsg{epoch: m.shared.sess.epoch, info: staticInfo{gpu: api.GPUInfo{HasGPU: true, Count: 1}, gpuOK: true}})
	for _, v := range []float64{80, math.NaN(), 80} {
		m.shared.sess.data.gpus[0].history.Push(v)
	}

	lines := strings.Split(ansi.Strip(m.renderGPU(0, 40)), "\n")
	// 80% lands on row 1 of an 8 row chart.
	if row := strings.TrimRight(lines[1], " "); !strings.HasSuffix(row, "• •") {
		t.Errorf("row 1 = %q, want two points around a blank", row)
	}
	for r := 0; r < chartHeight; r++ {
		if r != 1 && strings.ContainsRune(lines[r], '•') {
			t.Errorf("row %d = %q, want no points off row 1", r, lines[r])
		}
	}
}

func TestStaticMergeKeepsKnownFacts(t *testing.T) {
	m := newModel(t, mock(), nil)
	epoch := m.shared.sess.epoch
	full := staticInfo{
		cpuName:  "Test CPU",
		logical:  8,
		physical: 4,
		memTotal: format.Ptr(16.0),
		gpu:      api.GPUInfo{HasGPU: true, Count: 1, Names: []string{"A"}},
		gpuOK:    true,
	}
	m, _ = update(t, m, staticMsg{epoch: epoch, info: full})
	m, _ = update(t, m, staticMsg{epoch: epoch, info: staticInfo{}, err: errors.New("timeout")})

	st := m.shared.sess.data.static
	if st.cpuName != "Test CPU" || st.logical != 8 || st.physical != 4 {
		t.Errorf("cpu facts lost: %+v", st)
	}
	if st.memTotal == nil || *st.memTotal != 16 {
		t.Errorf("memTotal = %v, want 16", st.memTotal)
	}
	if len(st.gpu.Names) != 1 || st.gpu.Names[0] != "A" {
		t.Errorf("gpu names = %v, want [A]", st.gpu.Names)
	}

	m, _ = update(t, m, staticMsg{epoch: epoch, info: staticInfo{cpuName: "Other CPU"}})
	if got := m.shared.sess.data.static.cpuName; got != "Other CPU" {
		t.Errorf("cpuName = %q, want the newer name", got)
	}
}

func TestCPUTitle(t *testing.T) {
	tests := []struct {
		name string
		info staticInfo
		want string
	}{
		{"unknown", staticInfo{}, "CPU | N/A"},
		{"name only", staticInfo{cpuName: "X"}, "CPU | X"},
		{"counts", staticInfo{cpuName: "X", logical: 8, physical: 4}, "CPU | X | 4 C 8 T"},
		{"threads only", staticInfo{logical: 2}, "CPU | N/A | 0 C 2 T"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newModel(t, mock(), nil)
			m.shared.sess.data.static = tt.info
			if got := m.cpuTitle(); got != tt.want {
				t.Errorf("cpuTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCPULoadAverages(t *testing.T) {
	m := newModel(t, mock(), nil)
	m.shared.sess.data.load = api.LoadAvg{12.3, 5, 100}
	if out := ansi.Strip(m.renderCPU(80)); !strings.Contains(out, "12.3/5/100") {
		t.Errorf("load averages not shown raw:\n%s", out)
	}
}

func TestCPULegend(t *testing.T) {
	m := newModel(t, mock(), nil)
	m.shared.sess.data.cores = []api.CoreSample{{Name: "t0", Percents: []float64{10, 20}}}
	if out := ansi.Strip(m.renderCPU(40)); !strings.Contains(out, "━ 0  ━ 1") {
		t.Errorf("legend missing from:\n%s", out)
	}

	m.shared.sess.data.cores = []api.CoreSample{{Name: "t0", Percents: make([]float64, 20)}}
	if out := ansi.Strip(m.renderCPU(40)); strings.Contains(out, "━") {
		t.Errorf("legend drawn wider than the panel:\n%s", out)
	}
}

func TestNetworkSparklines(t *testing.T) {
	m := newModel(t, mock(), nil)
	epoch := m.shared.sess.epoch
	m, _ = update(t, m, poll.Result{Key: "network/io_recv", Epoch: epoch, OK: true, Value: format.Ptr(10.0)})
	m, _ = update(t, m, poll.Result{Key: "network/io_sent", Epoch: epoch, OK: true, Value: format.Ptr(5.0)})
	m, _ = update(t, m, poll.Result{Key: "network/io_recv", Epoch: epoch, Err: errors.New("timeout")})

	d := m.shared.sess.data
	if vals := d.recvHist.Values(); len(vals) != 2 || vals[0] != 10 || !math.IsNaN(vals[1]) {
		t.Errorf("recv history = %v, want [10 NaN]", vals)
	}
	if d.recv != nil {
		t.Errorf("recv = %v after a failed poll, want nil", *d.recv)
	}

	var recv, sent string
	for _, line := range strings.Split(ansi.Strip(m.renderNetwork(40)), "\n") {
		switch {
		case strings.HasPrefix(line, "Recv"):
			recv = strings.TrimRight(line, " ")
		case strings.HasPrefix(line, "Sent"):
			sent = strings.TrimRight(line, " ")
		}
	}
	// Both lines share the recv peak, so sent reaches half height.
	if !strings.HasSuffix(recv, "█") {
		t.Errorf("recv sparkline = %q, want the peak block before the gap", recv)
	}
	if !strings.HasSuffix(sent, "▄") {
		t.Errorf("sent sparkline = %q, want a half block", sent)
	}
}

func TestRetryKeyRestartsHealthChain(t *testing.T) {
	src := &flaky{Source: mock(), down: true}
	m := newModel(t, src, nil)
	epoch := m.shared.sess.epoch
	old := m.shared.healthJob().Key

	m, _ = update(t, m, poll.Result{Key: old, Epoch: epoch, Err: errors.New("connection refused")})
	if m.link != ui.LinkDown {
		t.Fatalf("link = %v, want DOWN", m.link)
	}
	if !strings.Contains(ansi.Strip(m.View()), "[r] retry") {
		t.Error("server-down overlay does not offer a retry")
	}

	m, cmd := update(t, m, runes("r"))
	if cmd == nil {
		t.Fatal("r did not schedule a health check")
	}
	if m.shared.healthJob().Key == old {
		t.Error("retry kept the old health chain key")
	}

	// The replaced chain ends on its next result.
	if _, cmd = update(t, m, poll.Result{Key: old, Epoch: epoch, OK: true}); cmd != nil {
		t.Error("result of the replaced health chain was rescheduled")
	}
	m, _ = update(t, m, poll.Result{Key: m.shared.healthJob().Key, Epoch: epoch, OK: true})
	if m.link != ui.LinkLive {
		t.Errorf("link = %v, want LIVE after retry", m.link)
	}
}

func TestTogglePanels(t *testing.T) {
	m := newModel(t, mock(), nil)
	m, _ = update(t, m, runes("1"))
	if !m.shared.collapsed[PanelCPU] {
		t.Error("key 1 did not collapse the CPU panel")
	}
	m, _ = update(t, m, runes("6"))
	if !m.shared.collapsed[PanelDisk] {
		t.Error("key 6 did not collapse the disk panel")
	}
	m, _ = update(t, m, runes("1"))
	if m.shared.collapsed[PanelCPU] {
		t.Error("key 1 did not expand the CPU panel again")
	}
	if !strings.Contains(ansi.Strip(m.View()), "panels 5/6") {
		t.Error("status bar does not count visible panels")
	}
}

func TestPanelOf(t *testing.T) {
	tests := map[string]string{
		"gpu-0":  PanelGPU,
		"gpu-12": PanelGPU,
		"cpu":    PanelCPU,
		"disk":   PanelDisk,
	}
	for id, want := range tests {
		if got := panelOf(id); got != want {
			t.Errorf("panelOf(%q) = %q, want %q", id, got, want)
		}
	}
}

func TestEditServerURL(t *testing.T) {
	var dialed []string
	dial := func(url string) (api.Source, error) {
		dialed = append(dialed, url)
		if strings.Contains(url, "bad") {
			return nil, errors.New("bad server url")
		}
		return mock(), nil
	}
	m := newModel(t, mock(), dial)
	oldEpoch := m.shared.sess.epoch

	m, _ = update(t, m, runes("u"))
	if !m.editing {
		t.Fatal("u did not open the URL editor")
	}

	m.urlInput.SetValue("http://bad:1")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if !m.editing || m.message != "bad server url" {
		t.Errorf("editing = %v message = %q", m.editing, m.message)
	}

	m.urlInput.SetValue("http://other:4444")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.editing || m.serverURL != "http://other:4444" {
		t.Fatalf("editing = %v serverURL = %q", m.editing, m.serverURL)
	}
	if m.shared.sess.epoch != oldEpoch+1 {
		t.Errorf("epoch = %d, want %d", m.shared.sess.epoch, oldEpoch+1)
	}
	if cmd == nil {
		t.Error("switching servers scheduled nothing")
	}
	if m.link != ui.LinkConnecting {
		t.Errorf("link = %v, want CONNECTING", m.link)
	}
	if len(dialed) != 2 {
		t.Errorf("dialed %v", dialed)
	}

	m, _ = update(t, m, runes("u"))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.editing || m.serverURL != "http://other:4444" {
		t.Error("esc did not cancel editing")
	}
}

func TestDemoHasNoURLEditor(t *testing.T) {
	m, err := New(Options{Source: mock(), Demo: true, Panels: allPanels()})
	if err != nil {
		t.Fatal(err)
	}
	m, _ = update(t, m, runes("u"))
	if m.editing || m.message == "" {
		t.Errorf("demo editing = %v message = %q", m.editing, m.message)
	}
}

func TestFilterProcesses(t *testing.T) {
	m := newModel(t, mock(), nil)
	m.shared.table.SetRows([]api.Process{
		{PID: 1, Cmdline: "python train.py", CPUPercent: "1.0"},
		{PID: 2, Cmdline: "bash", CPUPercent: "2.0"},
	})

	m, _ = update(t, m, runes("/"))
	if !m.filtering {
		t.Fatal("/ did not start filtering")
	}
	m, _ = update(t, m, runes("p"))
	m, _ = update(t, m, runes("y"))
	if got := len(m.shared.table.Rows()); got != 1 {
		t.Errorf("rows while filtering = %d, want 1", got)
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.filtering || m.shared.table.Filter.Query != "py" {
		t.Errorf("filtering = %v query = %q", m.filtering, m.shared.table.Filter.Query)
	}

	m, _ = update(t, m, runes("/"))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.shared.table.Filter.Query != "" || len(m.shared.table.Rows()) != 2 {
		t.Error("esc did not clear the filter")
	}
}

func TestSortKeyCycles(t *testing.T) {
	m := newModel(t, mock(), nil)
	m, _ = update(t, m, runes("s"))
	if m.shared.table.Sort != ui.SortMemory {
		t.Errorf("sort = %v, want RAM", m.shared.table.Sort)
	}
}

func TestHelpOverlay(t *testing.T) {
	m := newModel(t, mock(), nil)
	m, _ = update(t, m, runes("?"))
	if !m.showHelp || !strings.Contains(ansi.Strip(m.View()), "toggle panel") {
		t.Error("help overlay not shown")
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.showHelp {
		t.Error("esc did not close help")
	}
}

func TestQuit(t *testing.T) {
	m := newModel(t, mock(), nil)
	_, cmd := update(t, m, runes("q"))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}

func TestCoreSeriesTransposes(t *testing.T) {
	series := coreSeries([]api.CoreSample{
		{Name: "t0", Percents: []float64{1, 2}},
		{Name: "t1", Percents: []float64{3, 4, 5}},
	})
	if len(series) != 3 {
		t.Fatalf("series = %d, want 3", len(series))
	}
	if v := series[1].Values; v[0] != 2 || v[1] != 4 {
		t.Errorf("core 1 = %v", v)
	}
	if v := series[2].Values; !math.IsNaN(v[0]) || v[1] != 5 {
		t.Errorf("core 2 = %v, want [NaN 5]", v)
	}
}

func TestSnapshot(t *testing.T) {
	out, err := Snapshot(context.Background(), Options{Source: mock(), Demo: true, Panels: allPanels()}, 160, 80)
	if err != nil {
		t.Fatal(err)
	}
	out = ansi.Strip(out)
	for _, want := range []string{
		"CPU | Radiata Synthetic CPU @ 3.20GHz | 2 C 4 T",
		"MEMORY",
		"GPU 0 | NVIDIA GeForce RTX 4090 #0",
		"PROCESS",
		"NETWORK",
		"eth0",
		"DISK",
		"Usage of /",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("snapshot missing %q", want)
		}
	}
}

func TestSnapshotServerDown(t *testing.T) {
	src := &flaky{Source: mock(), down: true}
	out, err := Snapshot(context.Background(), Options{Source: src, ServerURL: "http://gone:1", Panels: allPanels()}, 120, 30)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(ansi.Strip(out), "Oops...!") {
		t.Error("snapshot of a dead server lacks the overlay")
	}
}
