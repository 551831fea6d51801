package dashboard

import (
	"context"
	"fmt"
	"math"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"
	"radiata.klederson.com/internal/api"
	"radiata.klederson.com/internal/config"
	"radiata.klederson.com/internal/poll"
	"radiata.klederson.com/internal/ring"
)

// staticInfo holds values fetched once per server.
type staticInfo struct {
	cpuName           string
	logical, physical int
	memTotal          *float64
	gpu               api.GPUInfo
	gpuOK             bool
}

// merge copies the facts that in actually carries, so a partly failed
// refetch never erases what an earlier one learned.
func (st *staticInfo) merge(in staticInfo) {
	if in.cpuName != "" {
		st.cpuName = in.cpuName
	}
	if in.logical > 0 || in.physical > 0 {
		st.logical, st.physical = in.logical, in.physical
	}
	if in.memTotal != nil {
		st.memTotal = in.memTotal
	}
	if in.gpuOK {
		st.gpu, st.gpuOK = in.gpu, true
	}
}

type gpuState struct {
	used, kernel, memAccess *float64
	history                 *ring.Series[float64]
}

// metrics is the latest value of every polled endpoint. A nil pointer or
// empty slice renders as unavailable.
type metrics struct {
	static staticInfo

	cpuPercent *float64
	cpuFreq    *float64
	cpuTemp    *float64
	load       api.LoadAvg
	cores      []api.CoreSample

	memPercent *float64
	memAvail   *float64
	memHistory []api.MemorySample

	gpus []*gpuState

	recv, sent         *float64
	recvHist, sentHist *ring.Series[float64]
	ifaces             map[string]api.Interface

	disks     api.DiskUsages
	diskRead  *float64
	diskWrite *float64
}

// binding ties a poll job to the metrics field it updates.
type binding struct {
	job   poll.Job
	apply func(poll.Result)
}

func set[T any](dst *T) func(poll.Result) {
	return func(r poll.Result) {
		v, _ := poll.Value[T](r)
		*dst = v
	}
}

// record is set for a number that also feeds hist. Unavailable values are
// kept as NaN so the sparkline shows the gap.
func record(dst **float64, hist *ring.Series[float64]) func(poll.Result) {
	return func(r poll.Result) {
		v, _ := poll.Value[*float64](r)
		*dst = v
		if v == nil {
			hist.Push(math.NaN())
			return
		}
		hist.Push(*v)
	}
}

// session is everything bound to one server. Switching servers replaces
// the session and bumps the epoch, so results still in flight for the old
// server are recognised and dropped.
type session struct {
	epoch  uint64
	source api.Source
	data   *metrics
	jobs   map[string]binding
}

func newSession(epoch uint64, src api.Source) *session {
	return &session{
		epoch:  epoch,
		source: src,
		data: &metrics{
			recvHist: ring.MustNewSeries[float64](config.RateHistoryLen),
			sentHist: ring.MustNewSeries[float64](config.RateHistoryLen),
		},
		jobs: make(map[string]binding),
	}
}

// add registers a job and returns the command fetching it right away. A
// key that is already registered keeps its running schedule and yields nil.
func (s *session) add(key string, interval time.Duration, fetch poll.FetchFunc, apply func(poll.Result)) tea.Cmd {
	if _, ok := s.jobs[key]; ok {
		return nil
	}
	b := binding{
		job: poll.Job{
			Key:      key,
			Interval: interval,
			Timeout:  config.RequestTimeout,
			Epoch:    s.epoch,
			Fetch:    fetch,
		},
		apply: apply,
	}
	s.jobs[key] = b
	return poll.Now(b.job)
}

// start registers the panel jobs that do not depend on static info.
func (s *session) start(d config.Durations, onProcesses func([]api.Process)) tea.Cmd {
	src, m := s.source, s.data
	return tea.Batch(
		s.add("cpu/percents", d.Chart, poll.Typed(src.CPUPercents), set(&m.cores)),
		s.add("cpu/percent", d.Gauge, poll.Typed(src.CPUPercent), set(&m.cpuPercent)),
		s.add("cpu/frequency", d.Stat, poll.Typed(src.CPUFrequency), set(&m.cpuFreq)),
		s.add("cpu/loadavg", d.Stat, poll.Typed(src.CPULoadAvg), set(&m.load)),
		s.add("cpu/temperature", d.Stat, poll.Typed(src.CPUTemperature), set(&m.cpuTemp)),

		s.add("memory/percents", d.Chart, poll.Typed(src.MemoryPercents), set(&m.memHistory)),
		s.add("memory/percent", d.Gauge, poll.Typed(src.MemoryPercent), set(&m.memPercent)),
		s.add("memory/available", d.Stat, poll.Typed(src.MemoryAvailable), set(&m.memAvail)),

		s.add("process/list", d.Stat, poll.Typed(src.Processes), func(r poll.Result) {
			procs, _ := poll.Value[[]api.Process](r)
			onProcesses(procs)
		}),

		s.add("network/io_recv", d.Gauge, poll.Typed(src.NetworkRecv), record(&m.recv, m.recvHist)),
		s.add("network/io_sent", d.Gauge, poll.Typed(src.NetworkSent), record(&m.sent, m.sentHist)),
		s.add("network/interfaces", d.Stat, poll.Typed(src.NetworkInterfaces), set(&m.ifaces)),

		s.add("disk/usages", d.Disk, poll.Typed(src.DiskUsages), set(&m.disks)),
		s.add("disk/io_read", d.Gauge, poll.Typed(src.DiskIORead), set(&m.diskRead)),
		s.add("disk/io_write", d.Gauge, poll.Typed(src.DiskIOWrite), set(&m.diskWrite)),
	)
}

// startGPUs sizes the GPU state to the reported count and registers the
// per-GPU jobs. Existing history survives a repeated call.
func (s *session) startGPUs(d config.Durations, historyLen int) tea.Cmd {
	m := s.data
	count := 0
	if m.static.gpu.HasGPU {
		count = m.static.gpu.Count
	}
	for len(m.gpus) < count {
		hist, err := ring.NewSeries[float64](max(1, historyLen))
		if err != nil {
			break
		}
		m.gpus = append(m.gpus, &gpuState{history: hist})
	}

	var cmds []tea.Cmd
	for i := 0; i < count && i < len(m.gpus); i++ {
		g := m.gpus[i]
		metric := func(name api.GPUMetric) poll.FetchFunc {
			return poll.Typed(func(ctx context.Context) (*float64, error) {
				return s.source.GPUMetric(ctx, name, i)
			})
		}
		key := func(name api.GPUMetric) string { return fmt.Sprintf("gpu/%s/%d", name, i) }

		cmds = append(cmds,
			s.add(key(api.GPUMemoryPercent), d.Chart, metric(api.GPUMemoryPercent), func(r poll.Result) {
				v, ok := poll.Value[*float64](r)
				if !ok || v == nil {
					g.history.Push(math.NaN())
					return
				}
				g.history.Push(*v)
			}),
			s.add(key(api.GPUMemoryUsed), d.Gauge, metric(api.GPUMemoryUsed), set(&g.used)),
			s.add(key(api.GPUKernelAccess), d.Gauge, metric(api.GPUKernelAccess), set(&g.kernel)),
			s.add(key(api.GPUMemoryAccess), d.Gauge, metric(api.GPUMemoryAccess), set(&g.memAccess)),
		)
	}
	return tea.Batch(cmds...)
}

// fetchStatic loads the static facts concurrently. A failed fetch leaves
// its field empty; whatever succeeded is kept.
func fetchStatic(src api.Source, epoch uint64, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		var (
			info staticInfo
			g    errgroup.Group
		)
		g.Go(func() (err error) {
			if info.cpuName, err = src.CPUName(ctx); err != nil {
				return fmt.Errorf("cpu name: %w", err)
			}
			return nil
		})
		g.Go(func() (err error) {
			if info.logical, info.physical, err = src.CPUCounts(ctx); err != nil {
				return fmt.Errorf("cpu counts: %w", err)
			}
			return nil
		})
		g.Go(func() (err error) {
			if info.memTotal, err = src.MemoryTotal(ctx); err != nil {
				return fmt.Errorf("memory total: %w", err)
			}
			return nil
		})
		g.Go(func() (err error) {
			if info.gpu, err = src.GPUInfo(ctx); err != nil {
				return fmt.Errorf("gpu info: %w", err)
			}
			info.gpuOK = true
			return nil
		})
		err := g.Wait()

		return staticMsg{epoch: epoch, info: info, err: err}
	}
}
