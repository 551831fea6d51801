package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// ErrUnsupported is returned by host readers the platform cannot serve.
var ErrUnsupported = errors.New("agent: not supported on this platform")

// MemoryStat is a virtual memory reading in bytes.
type MemoryStat struct {
	Total     float64
	Available float64
	Percent   float64
}

// Partition is a mounted filesystem.
type Partition struct {
	Mount  string
	FSType string
}

// Link is a network interface as reported by the OS. Speed is in Mbit/s.
type Link struct {
	Speed float64
	MTU   int
	Up    bool
}

// ProcessStat is one process reading.
type ProcessStat struct {
	PID           int32
	Cmdline       string
	Username      string
	CPUPercent    float64
	MemoryPercent float64
	IORead        float64
	IOWrite       float64
}

// Host reads the machine the agent runs on.
type Host interface {
	CPUName(ctx context.Context) (string, error)
	// CPUPercent returns utilization since the previous call, overall or
	// per logical CPU.
	CPUPercent(ctx context.Context, perCPU bool) ([]float64, error)
	// CPUFrequencies returns the current frequency of each CPU in MHz.
	CPUFrequencies(ctx context.Context) ([]float64, error)
	// CPUFrequencyRange returns the hardware limits in MHz.
	CPUFrequencyRange(ctx context.Context) (lo, hi float64, err error)
	CPUCounts(ctx context.Context) (logical, physical int, err error)
	LoadAvg(ctx context.Context) ([3]float64, error)
	// Temperature returns the CPU package temperature, nil when there is
	// no such sensor.
	Temperature(ctx context.Context) (*float64, error)

	Memory(ctx context.Context) (MemoryStat, error)

	Partitions(ctx context.Context) ([]Partition, error)
	DiskUsage(ctx context.Context, mount string) (total, used, free, percent float64, err error)
	DiskIO(ctx context.Context) (read, write uint64, err error)

	NetIO(ctx context.Context) (recv, sent uint64, err error)
	Links(ctx context.Context) (map[string]Link, error)

	Processes(ctx context.Context) ([]ProcessStat, error)
}

// SystemHost is a Host backed by gopsutil. Process CPU percentages are
// deltas between calls, so the same SystemHost must be reused.
type SystemHost struct {
	sysfs string

	mu    sync.Mutex
	procs map[int32]*process.Process
}

// NewSystemHost returns a Host for the local machine.
func NewSystemHost() *SystemHost {
	return &SystemHost{
		sysfs: "/sys",
		procs: make(map[int32]*process.Process),
	}
}

func (h *SystemHost) CPUName(ctx context.Context) (string, error) {
	infos, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("cpu info: %w", err)
	}
	if len(infos) == 0 {
		return "", ErrUnsupported
	}
	return strings.TrimSpace(infos[0].ModelName), nil
}

func (h *SystemHost) CPUPercent(ctx context.Context, perCPU bool) ([]float64, error) {
	return cpu.PercentWithContext(ctx, 0, perCPU)
}

// CPUFrequencies prefers the kernel's scaling_cur_freq, which tracks the
// live clock, and falls back to what gopsutil reports.
func (h *SystemHost) CPUFrequencies(ctx context.Context) ([]float64, error) {
	paths, _ := filepath.Glob(filepath.Join(h.sysfs, "devices/system/cpu/cpu[0-9]*/cpufreq/scaling_cur_freq"))
	if len(paths) > 0 {
		slices.SortFunc(paths, func(a, b string) int { return cpuIndex(a) - cpuIndex(b) })
		out := make([]float64, 0, len(paths))
		for _, p := range paths {
			khz, err := readFloat(p)
			if err != nil {
				return nil, err
			}
			out = append(out, khz/1000)
		}
		return out, nil
	}

	infos, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("cpu info: %w", err)
	}
	out := make([]float64, 0, len(infos))
	for _, info := range infos {
		out = append(out, info.Mhz)
	}
	return out, nil
}

func (h *SystemHost) CPUFrequencyRange(context.Context) (lo, hi float64, err error) {
	dir := filepath.Join(h.sysfs, "devices/system/cpu/cpu0/cpufreq")
	if lo, err = readFloat(filepath.Join(dir, "cpuinfo_min_freq")); err != nil {
		return 0, 0, ErrUnsupported
	}
	if hi, err = readFloat(filepath.Join(dir, "cpuinfo_max_freq")); err != nil {
		return 0, 0, ErrUnsupported
	}
	return lo / 1000, hi / 1000, nil
}

func (h *SystemHost) CPUCounts(ctx context.Context) (logical, physical int, err error) {
	if logical, err = cpu.CountsWithContext(ctx, true); err != nil {
		return 0, 0, err
	}
	if physical, err = cpu.CountsWithContext(ctx, false); err != nil {
		return 0, 0, err
	}
	return logical, physical, nil
}

func (h *SystemHost) LoadAvg(ctx context.Context) ([3]float64, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return [3]float64{}, err
	}
	return [3]float64{avg.Load1, avg.Load5, avg.Load15}, nil
}

// temperatureSensors are tried in order; the first match wins.
var temperatureSensors = []string{"coretemp", "k10temp", "cpu_thermal"}

func (h *SystemHost) Temperature(ctx context.Context) (*float64, error) {
	// gopsutil reports unreadable sensors as a warning next to valid ones.
	temps, err := host.SensorsTemperaturesWithContext(ctx)
	if len(temps) == 0 {
		return nil, err
	}
	for _, prefix := range temperatureSensors {
		for _, t := range temps {
			if strings.HasPrefix(t.SensorKey, prefix) {
				v := t.Temperature
				return &v, nil
			}
		}
	}
	return nil, nil
}

func (h *SystemHost) Memory(ctx context.Context) (MemoryStat, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return MemoryStat{}, err
	}
	return MemoryStat{
		Total:     float64(vm.Total),
		Available: float64(vm.Available),
		Percent:   vm.UsedPercent,
	}, nil
}

func (h *SystemHost) Partitions(ctx context.Context) ([]Partition, error) {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, err
	}
	out := make([]Partition, 0, len(parts))
	for _, p := range parts {
		out = append(out, Partition{Mount: p.Mountpoint, FSType: p.Fstype})
	}
	return out, nil
}

func (h *SystemHost) DiskUsage(ctx context.Context, mount string) (total, used, free, percent float64, err error) {
	u, err := disk.UsageWithContext(ctx, mount)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	return float64(u.Total), float64(u.Used), float64(u.Free), u.UsedPercent, nil
}

func (h *SystemHost) DiskIO(ctx context.Context) (read, write uint64, err error) {
	counters, err := disk.IOCountersWithContext(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, c := range counters {
		read += c.ReadBytes
		write += c.WriteBytes
	}
	return read, write, nil
}

func (h *SystemHost) NetIO(ctx context.Context) (recv, sent uint64, err error) {
	counters, err := gnet.IOCountersWithContext(ctx, false)
	if err != nil {
		return 0, 0, err
	}
	if len(counters) == 0 {
		return 0, 0, ErrUnsupported
	}
	return counters[0].BytesRecv, counters[0].BytesSent, nil
}

// Links reads link speed from sysfs; gopsutil only knows flags and MTU.
// Interfaces without a readable speed report 0.
func (h *SystemHost) Links(ctx context.Context) (map[string]Link, error) {
	ifaces, err := gnet.InterfacesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Link, len(ifaces))
	for _, iface := range ifaces {
		speed, err := readFloat(filepath.Join(h.sysfs, "class/net", iface.Name, "speed"))
		if err != nil {
			speed = 0
		}
		out[iface.Name] = Link{
			Speed: speed,
			MTU:   iface.MTU,
			Up:    slices.Contains(iface.Flags, "up"),
		}
	}
	return out, nil
}

// Processes reads every process. Processes that vanish mid-read or deny
// access keep zero values for the fields that failed.
func (h *SystemHost) Processes(ctx context.Context) ([]ProcessStat, error) {
	pids, err := process.PidsWithContext(ctx)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	alive := make(map[int32]*process.Process, len(pids))
	out := make([]ProcessStat, 0, len(pids))
	for _, pid := range pids {
		p, ok := h.procs[pid]
		if !ok {
			if p, err = process.NewProcessWithContext(ctx, pid); err != nil {
				continue
			}
		}
		alive[pid] = p

		st := ProcessStat{PID: pid}
		st.Cmdline, _ = p.CmdlineWithContext(ctx)
		st.Username, _ = p.UsernameWithContext(ctx)
		st.CPUPercent, _ = p.PercentWithContext(ctx, 0)
		if v, err := p.MemoryPercentWithContext(ctx); err == nil {
			st.MemoryPercent = float64(v)
		}
		if io, err := p.IOCountersWithContext(ctx); err == nil {
			st.IORead, st.IOWrite = float64(io.ReadBytes), float64(io.WriteBytes)
		}
		st.Cmdline = strings.TrimSpace(st.Cmdline)
		out = append(out, st)
	}
	h.procs = alive
	return out, nil
}

func readFloat(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
}

// cpuIndex extracts N from a .../cpuN/... path.
func cpuIndex(path string) int {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if n, err := strconv.Atoi(strings.TrimPrefix(part, "cpu")); err == nil && strings.HasPrefix(part, "cpu") {
			return n
		}
	}
	return 0
}
