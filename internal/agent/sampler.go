package agent

import (
	"cmp"
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"radiata.klederson.com/internal/api"
	"radiata.klederson.com/internal/ring"
)

// Config sizes and paces the sampler. Zero values take the defaults.
type Config struct {
	// CPUWindow is how many seconds of per-core and memory history to keep.
	// One extra sample is retained, so a full history holds CPUWindow+1.
	CPUWindow int
	// GPUWindow is how many GPU samples to keep.
	GPUWindow int
	// GPURate is GPU samples per second.
	GPURate float64

	Interval        time.Duration // CPU, memory, disk and network
	ProcessInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.CPUWindow < 1 {
		c.CPUWindow = 60
	}
	if c.GPUWindow < 1 {
		c.GPUWindow = 10
	}
	if c.GPURate <= 0 {
		c.GPURate = 2
	}
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
	if c.ProcessInterval <= 0 {
		c.ProcessInterval = 500 * time.Millisecond
	}
	return c
}

// ignoredFSTypes and ignoredMounts are left out of disk usages.
var (
	ignoredFSTypes = []string{"tmpfs", "squashfs", "devtmpfs", "vfat"}
	ignoredMounts  = []string{"/var", "/boot", "/snap"}
)

type counters struct {
	in, out uint64
	at      time.Time
	ok      bool
}

// rates turns two counter readings into per-second rates.
func (c *counters) rates(in, out uint64, at time.Time) (float64, float64) {
	prev := *c
	*c = counters{in: in, out: out, at: at, ok: true}
	secs := at.Sub(prev.at).Seconds()
	if !prev.ok || secs <= 0 || in < prev.in || out < prev.out {
		return 0, 0
	}
	return float64(in-prev.in) / secs, float64(out-prev.out) / secs
}

// Sampler collects history that a single request cannot produce: per-core
// and memory history, IO rates, GPU readings and the process list. All
// readers are safe for concurrent use.
type Sampler struct {
	host Host
	gpu  GPUReader
	log  *zap.Logger
	cfg  Config
	now  func() time.Time

	mu     sync.RWMutex
	cores  *ring.Buffer[api.CoreSample]
	memory *ring.Buffer[api.MemorySample]

	disk, net           counters
	diskRead, diskWrite float64
	netRecv, netSent    float64
	gpus                []GPUDevice
	gpuSamples          *ring.Buffer[[]GPUSample]
	gpuProcs            *ring.Buffer[map[int32]GPUProcess]
	procs               []api.Process
	procsSampled        bool
}

// NewSampler builds a sampler. gpu may be nil for hosts without a GPU.
func NewSampler(ctx context.Context, host Host, gpu GPUReader, cfg Config, log *zap.Logger) *Sampler {
	if log == nil {
		log = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	s := &Sampler{
		host:       host,
		gpu:        gpu,
		log:        log,
		cfg:        cfg,
		now:        time.Now,
		cores:      ring.MustNew[api.CoreSample](cfg.CPUWindow + 1),
		memory:     ring.MustNew[api.MemorySample](cfg.CPUWindow + 1),
		gpuSamples: ring.MustNew[[]GPUSample](cfg.GPUWindow),
		gpuProcs:   ring.MustNew[map[int32]GPUProcess](cfg.GPUWindow),
	}
	if gpu != nil {
		devices, err := gpu.Devices(ctx)
		if err != nil {
			log.Warn("gpu devices", zap.Error(err))
			s.gpu = nil
		} else {
			s.gpus = devices
		}
	}
	return s
}

// Run samples until ctx is cancelled.
func (s *Sampler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.loop(ctx, "system", s.cfg.Interval, s.SampleSystem) })
	g.Go(func() error { return s.loop(ctx, "process", s.cfg.ProcessInterval, s.SampleProcesses) })
	if s.gpu != nil {
		period := time.Duration(float64(time.Second) / s.cfg.GPURate)
		g.Go(func() error { return s.loop(ctx, "gpu", period, s.SampleGPU) })
	}
	return g.Wait()
}

func (s *Sampler) loop(ctx context.Context, name string, period time.Duration, sample func(context.Context) error) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		if err := sample(ctx); err != nil && ctx.Err() == nil {
			s.log.Debug("sample failed", zap.String("sampler", name), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func sampleName(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixNano())/1e9, 'f', 3, 64)
}

// SampleSystem records one per-core and memory sample and updates the disk
// and network rates. Readers that fail leave their previous values.
func (s *Sampler) SampleSystem(ctx context.Context) error {
	now := s.now()
	name := sampleName(now)
	var errs []error

	percents, err := s.host.CPUPercent(ctx, true)
	if err != nil {
		errs = append(errs, err)
	}
	memory, memErr := s.host.Memory(ctx)
	if memErr != nil {
		errs = append(errs, memErr)
	}
	diskIn, diskOut, diskErr := s.host.DiskIO(ctx)
	if diskErr != nil {
		errs = append(errs, diskErr)
	}
	netIn, netOut, netErr := s.host.NetIO(ctx)
	if netErr != nil {
		errs = append(errs, netErr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		s.cores.Append(api.CoreSample{Name: name, Percents: percents})
	}
	if memErr == nil {
		s.memory.Append(api.MemorySample{Name: name, Data: memory.Percent})
	}
	if diskErr == nil {
		s.diskRead, s.diskWrite = s.disk.rates(diskIn, diskOut, now)
	}
	if netErr == nil {
		s.netRecv, s.netSent = s.net.rates(netIn, netOut, now)
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// SampleGPU records one reading of every GPU.
func (s *Sampler) SampleGPU(ctx context.Context) error {
	if s.gpu == nil {
		return ErrNoGPU
	}
	samples, procs, err := s.gpu.Sample(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.gpuSamples.Append(samples)
	s.gpuProcs.Append(procs)
	s.mu.Unlock()
	return nil
}

// SampleProcesses replaces the process list.
func (s *Sampler) SampleProcesses(ctx context.Context) error {
	stats, err := s.host.Processes(ctx)
	if err != nil {
		return err
	}

	s.mu.RLock()
	gpuProcs, _ := s.gpuProcs.Last()
	s.mu.RUnlock()

	list := make([]api.Process, 0, len(stats))
	for _, st := range stats {
		p := api.Process{
			PID:           st.PID,
			Cmdline:       st.Cmdline,
			Username:      st.Username,
			CPUPercent:    strconv.FormatFloat(st.CPUPercent, 'f', 1, 64),
			MemoryPercent: strconv.FormatFloat(st.MemoryPercent, 'f', 1, 64),
			IORead:        st.IORead,
			IOWrite:       st.IOWrite,
		}
		if gp, ok := gpuProcs[st.PID]; ok {
			typ := gp.Type
			pct := strconv.FormatFloat(gp.MemoryPercent, 'f', 1, 64)
			p.GPUProcessType, p.GPUMemoryPercent = &typ, &pct
		}
		list = append(list, p)
	}

	s.mu.Lock()
	s.procs, s.procsSampled = list, true
	s.mu.Unlock()
	return nil
}

// CorePercents returns the per-core history, oldest first.
func (s *Sampler) CorePercents() []api.CoreSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cores.ToSlice()
}

// MemoryPercents returns the memory history, oldest first.
func (s *Sampler) MemoryPercents() []api.MemorySample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.memory.ToSlice()
}

// DiskRates returns bytes read and written per second.
func (s *Sampler) DiskRates() (read, write float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.diskRead, s.diskWrite
}

// NetRates returns bytes received and sent per second.
func (s *Sampler) NetRates() (recv, sent float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.netRecv, s.netSent
}

// GPUs returns the devices found at startup.
func (s *Sampler) GPUs() []GPUDevice {
	return s.gpus
}

// GPUMetric returns the newest reading of metric for GPU index. ok is false
// for an unknown metric or index.
func (s *Sampler) GPUMetric(metric string, index int) (v *float64, ok bool) {
	if index < 0 || index >= len(s.gpus) {
		return nil, false
	}
	if _, known := (GPUSample{}).Value(metric); !known {
		return nil, false
	}
	s.mu.RLock()
	samples, _ := s.gpuSamples.Last()
	s.mu.RUnlock()
	if index >= len(samples) {
		return nil, true
	}
	return samples[index].Value(metric)
}

// Processes returns the newest process list; ok is false before the first
// sample.
func (s *Sampler) Processes() (list []api.Process, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.procs, s.procsSampled
}

// DiskUsages returns real filesystems, smallest first.
func DiskUsages(ctx context.Context, host Host) (api.DiskUsages, error) {
	parts, err := host.Partitions(ctx)
	if err != nil {
		return nil, err
	}
	out := api.DiskUsages{}
	seen := make(map[string]bool)
	for _, p := range parts {
		if !keepPartition(p) || seen[p.Mount] {
			continue
		}
		seen[p.Mount] = true
		total, used, free, pct, err := host.DiskUsage(ctx, p.Mount)
		if err != nil {
			continue
		}
		out = append(out, api.DiskUsage{Mount: p.Mount, Total: total, Used: used, Free: free, Percent: pct})
	}
	slices.SortStableFunc(out, func(a, b api.DiskUsage) int { return cmp.Compare(a.Total, b.Total) })
	return out, nil
}

func keepPartition(p Partition) bool {
	if slices.Contains(ignoredFSTypes, p.FSType) {
		return false
	}
	for _, prefix := range ignoredMounts {
		if strings.HasPrefix(p.Mount, prefix) {
			return false
		}
	}
	return true
}
