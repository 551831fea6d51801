package api

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"sync"
	"time"
)

var mockProcessTemplates = []struct {
	Cmdline  string
	Username string
	GPU      string
}{
	{"/usr/bin/python3 train.py --epochs 40", "alice", "Compute"},
	{"/usr/lib/xorg/Xorg :0 -seat seat0", "root", "Graphics"},
	{"/usr/bin/gnome-shell", "alice", "Graphics"},
	{"/usr/sbin/sshd -D", "root", ""},
	{"postgres: checkpointer", "postgres", ""},
	{"/usr/bin/dockerd -H fd://", "root", ""},
	{"/opt/google/chrome/chrome --type=renderer", "alice", ""},
	{"node server.js", "bob", ""},
	{"/usr/bin/redis-server 127.0.0.1:6379", "redis", ""},
	{"jupyter-lab --no-browser", "bob", "Compute"},
	{"/lib/systemd/systemd-journald", "root", ""},
	{"containerd", "root", ""},
}

// wave is a sinusoid around base, clamped to [lo, hi].
type wave struct {
	base      float64
	amplitude float64
	phase     float64
	period    time.Duration
}

func newWave(rnd *rand.Rand, base, amplitude float64, period time.Duration) wave {
	return wave{
		base:      base,
		amplitude: amplitude,
		phase:     rnd.Float64() * 2 * math.Pi,
		period:    period,
	}
}

func (w wave) at(t time.Time, lo, hi float64) float64 {
	x := float64(t.UnixNano()) / float64(w.period) * 2 * math.Pi
	v := w.base + w.amplitude*math.Sin(x+w.phase)
	return math.Max(lo, math.Min(hi, v))
}

// Mock is a Source producing smooth synthetic metrics for demo mode. It is
// safe for concurrent use.
type Mock struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time

	cores    []wave
	memory   wave
	freq     wave
	gpus     []mockGPU
	netRecv  wave
	netSent  wave
	diskRead wave
	diskWrt  wave
	procs    []mockProcess

	cpuHist []CoreSample
	memHist []MemorySample
	lastSec int64
}

type mockGPU struct {
	name   string
	total  float64
	kernel wave
	access wave
	mem    wave
	temp   wave
}

type mockProcess struct {
	pid      int32
	cmdline  string
	username string
	gpu      string
	cpu      wave
	mem      wave
}

const (
	mockMemoryTotal = 32 * 1 << 30
	mockGPUMemory   = 24 * 1 << 30
	mockHistoryLen  = 61
)

// NewMock builds a synthetic host with the given core and GPU counts. A nil
// rnd seeds from the clock.
func NewMock(cores, gpus int, rnd *rand.Rand) *Mock {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	m := &Mock{
		rnd:      rnd,
		now:      time.Now,
		memory:   newWave(rnd, 45, 15, 40*time.Second),
		freq:     newWave(rnd, 3.2e9, 0.6e9, 11*time.Second),
		netRecv:  newWave(rnd, 4<<20, 3<<20, 7*time.Second),
		netSent:  newWave(rnd, 1<<20, 900<<10, 9*time.Second),
		diskRead: newWave(rnd, 30<<20, 28<<20, 13*time.Second),
		diskWrt:  newWave(rnd, 12<<20, 11<<20, 17*time.Second),
	}
	for i := 0; i < cores; i++ {
		m.cores = append(m.cores, newWave(rnd, 20+rnd.Float64()*50, 5+rnd.Float64()*25,
			time.Duration(5+rnd.Intn(20))*time.Second))
	}
	for i := 0; i < gpus; i++ {
		m.gpus = append(m.gpus, mockGPU{
			name:   fmt.Sprintf("NVIDIA GeForce RTX 4090 #%d", i),
			total:  mockGPUMemory,
			kernel: newWave(rnd, 60, 35, 20*time.Second),
			access: newWave(rnd, 35, 25, 15*time.Second),
			mem:    newWave(rnd, 55, 30, 60*time.Second),
			temp:   newWave(rnd, 62, 12, 45*time.Second),
		})
	}
	for i, tmpl := range mockProcessTemplates {
		m.procs = append(m.procs, mockProcess{
			pid:      int32(300 + i*97 + rnd.Intn(90)),
			cmdline:  tmpl.Cmdline,
			username: tmpl.Username,
			gpu:      tmpl.GPU,
			cpu:      newWave(rnd, rnd.Float64()*30, rnd.Float64()*20, time.Duration(4+rnd.Intn(10))*time.Second),
			mem:      newWave(rnd, rnd.Float64()*8, rnd.Float64()*2, time.Duration(20+rnd.Intn(30))*time.Second),
		})
	}
	return m
}

// sample advances the history buffers to the current second.
func (m *Mock) sample() time.Time {
	t := m.now()
	sec := t.Unix()
	if sec == m.lastSec {
		return t
	}
	m.lastSec = sec
	name := strconv.FormatFloat(float64(t.UnixNano())/1e9, 'f', 3, 64)

	cs := CoreSample{Name: name, Percents: make([]float64, len(m.cores))}
	for i, w := range m.cores {
		cs.Percents[i] = w.at(t, 0, 100)
	}
	m.cpuHist = append(m.cpuHist, cs)
	m.memHist = append(m.memHist, MemorySample{Name: name, Data: m.memory.at(t, 0, 100)})
	if len(m.cpuHist) > mockHistoryLen {
		m.cpuHist = m.cpuHist[1:]
		m.memHist = m.memHist[1:]
	}
	return t
}

func (m *Mock) value(f func(t time.Time) float64) (*float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := f(m.sample())
	return &v, nil
}

func (m *Mock) Health(ctx context.Context) error {
	return ctx.Err()
}

func (m *Mock) CPUName(context.Context) (string, error) {
	return "Radiata Synthetic CPU @ 3.20GHz", nil
}

func (m *Mock) CPUPercent(context.Context) (*float64, error) {
	return m.value(func(t time.Time) float64 {
		var sum float64
		for _, w := range m.cores {
			sum += w.at(t, 0, 100)
		}
		return sum / math.Max(1, float64(len(m.cores)))
	})
}

func (m *Mock) CPUPercents(context.Context) ([]CoreSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sample()
	out := make([]CoreSample, len(m.cpuHist))
	for i, s := range m.cpuHist {
		out[i] = CoreSample{Name: s.Name, Percents: append([]float64(nil), s.Percents...)}
	}
	return out, nil
}

func (m *Mock) CPUFrequency(context.Context) (*float64, error) {
	return m.value(func(t time.Time) float64 { return m.freq.at(t, 8e8, 5e9) })
}

func (m *Mock) CPULoadAvg(context.Context) (LoadAvg, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.sample()
	var sum float64
	for _, w := range m.cores {
		sum += w.at(t, 0, 100)
	}
	avg := sum / math.Max(1, float64(len(m.cores)))
	return LoadAvg{avg, avg * 0.9, avg * 0.8}, nil
}

func (m *Mock) CPUCounts(context.Context) (logical, physical int, err error) {
	return len(m.cores), (len(m.cores) + 1) / 2, nil
}

func (m *Mock) CPUTemperature(context.Context) (*float64, error) {
	return m.value(func(t time.Time) float64 { return 40 + m.memory.at(t, 0, 100)/4 })
}

func (m *Mock) MemoryTotal(context.Context) (*float64, error) {
	v := float64(mockMemoryTotal)
	return &v, nil
}

func (m *Mock) MemoryAvailable(context.Context) (*float64, error) {
	return m.value(func(t time.Time) float64 {
		return mockMemoryTotal * (1 - m.memory.at(t, 0, 100)/100)
	})
}

func (m *Mock) MemoryUsed(context.Context) (*float64, error) {
	return m.value(func(t time.Time) float64 {
		return mockMemoryTotal * m.memory.at(t, 0, 100) / 100
	})
}

func (m *Mock) MemoryPercent(context.Context) (*float64, error) {
	return m.value(func(t time.Time) float64 { return m.memory.at(t, 0, 100) })
}

func (m *Mock) MemoryPercents(context.Context) ([]MemorySample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sample()
	return append([]MemorySample(nil), m.memHist...), nil
}

func (m *Mock) DiskUsages(context.Context) (DiskUsages, error) {
	return DiskUsages{
		{Mount: "/home", Total: 250 << 30, Used: 180 << 30, Free: 70 << 30, Percent: 72},
		{Mount: "/", Total: 500 << 30, Used: 210 << 30, Free: 290 << 30, Percent: 42},
	}, nil
}

func (m *Mock) DiskIORead(context.Context) (*float64, error) {
	return m.value(func(t time.Time) float64 { return m.diskRead.at(t, 0, math.MaxFloat64) })
}

func (m *Mock) DiskIOWrite(context.Context) (*float64, error) {
	return m.value(func(t time.Time) float64 { return m.diskWrt.at(t, 0, math.MaxFloat64) })
}

func (m *Mock) NetworkRecv(context.Context) (*float64, error) {
	return m.value(func(t time.Time) float64 { return m.netRecv.at(t, 0, math.MaxFloat64) })
}

func (m *Mock) NetworkSent(context.Context) (*float64, error) {
	return m.value(func(t time.Time) float64 { return m.netSent.at(t, 0, math.MaxFloat64) })
}

func (m *Mock) NetworkInterfaces(context.Context) (map[string]Interface, error) {
	return map[string]Interface{
		"eth0":  {Speed: 1e9, MTU: 1500, IsUp: true},
		"wlan0": {Speed: 866e6, MTU: 1500, IsUp: true},
	}, nil
}

func (m *Mock) GPUInfo(context.Context) (GPUInfo, error) {
	info := GPUInfo{HasGPU: len(m.gpus) > 0, Count: len(m.gpus)}
	for _, g := range m.gpus {
		info.Names = append(info.Names, g.name)
		info.MemoryTotal = append(info.MemoryTotal, g.total)
	}
	return info, nil
}

func (m *Mock) GPUMetric(_ context.Context, metric GPUMetric, index int) (*float64, error) {
	if index < 0 || index >= len(m.gpus) {
		return nil, &StatusError{Endpoint: Prefix + "/gpu/" + string(metric) + "/" + strconv.Itoa(index), Code: 404}
	}
	g := m.gpus[index]
	switch metric {
	case GPUKernelAccess:
		return m.value(func(t time.Time) float64 { return g.kernel.at(t, 0, 100) })
	case GPUMemoryAccess:
		return m.value(func(t time.Time) float64 { return g.access.at(t, 0, 100) })
	case GPUMemoryPercent:
		return m.value(func(t time.Time) float64 { return g.mem.at(t, 0, 100) })
	case GPUMemoryUsed:
		return m.value(func(t time.Time) float64 { return g.total * g.mem.at(t, 0, 100) / 100 })
	case GPUTemperature:
		return m.value(func(t time.Time) float64 { return g.temp.at(t, 20, 95) })
	}
	return nil, &StatusError{Endpoint: Prefix + "/gpu/" + string(metric) + "/" + strconv.Itoa(index), Code: 404}
}

func (m *Mock) Processes(context.Context) ([]Process, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.sample()

	out := make([]Process, 0, len(m.procs))
	for _, p := range m.procs {
		row := Process{
			PID:           p.pid,
			Cmdline:       p.cmdline,
			Username:      p.username,
			CPUPercent:    strconv.FormatFloat(p.cpu.at(t, 0, 100), 'f', 1, 64),
			MemoryPercent: strconv.FormatFloat(p.mem.at(t, 0, 100), 'f', 1, 64),
			IORead:        float64(p.pid) * 4096,
			IOWrite:       float64(p.pid) * 1024,
		}
		if p.gpu != "" && len(m.gpus) > 0 {
			kind := p.gpu
			pct := strconv.FormatFloat(p.mem.at(t, 0, 100)*2, 'f', 1, 64)
			row.GPUProcessType, row.GPUMemoryPercent = &kind, &pct
		}
		out = append(out, row)
	}
	return out, nil
}
