// Package agent implements `radiata serve`: it samples the local host and
// serves the readings as the JSON API the dashboard polls.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"radiata.klederson.com/internal/api"
)

const (
	healthMessage   = "I am alive :)"
	requestIDHeader = "X-Request-ID"
	shutdownTimeout = 5 * time.Second
)

// Server answers API requests from a Host and a Sampler.
type Server struct {
	host    Host
	sampler *Sampler
	log     *zap.Logger
	mux     *http.ServeMux
}

// NewServer registers every route.
func NewServer(host Host, sampler *Sampler, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{host: host, sampler: sampler, log: log, mux: http.NewServeMux()}

	p := api.Prefix
	s.mux.HandleFunc("GET "+p+"/health", s.health)
	s.mux.HandleFunc("GET "+p+"/cpu/{name}", s.cpu)
	s.mux.HandleFunc("GET "+p+"/memory/{name}", s.memory)
	s.mux.HandleFunc("GET "+p+"/disk/{name}", s.disk)
	s.mux.HandleFunc("GET "+p+"/network/{name}", s.network)
	s.mux.HandleFunc("GET "+p+"/gpu/{name}", s.gpuInfo)
	s.mux.HandleFunc("GET "+p+"/gpu/{metric}/{index}", s.gpuMetric)
	s.mux.HandleFunc("GET "+p+"/process/list", s.processes)
	s.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) { notFound(w) })
	return s
}

// Handler returns the routes wrapped in CORS and access logging.
func (s *Server) Handler() http.Handler {
	return s.accessLog(cors(s.mux))
}

// ListenAndServe runs the sampler and the HTTP server until ctx is
// cancelled, then shuts the server down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.sampler.Run(ctx) })
	g.Go(func() error {
		s.log.Info("listening", zap.String("addr", addr))
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := hs.Shutdown(sctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		s.log.Info("server stopped")
		return nil
	})
	return g.Wait()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, nil)
}

// fail reports a reader error as a 500 with a null body.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Warn("read failed", zap.String("path", r.URL.Path), zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, nil)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthMessage)
}

func (s *Server) cpu(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var (
		v   any
		err error
	)
	switch r.PathValue("name") {
	case api.CPUName:
		v, err = s.host.CPUName(ctx)
	case api.CPUPercent:
		var pct []float64
		if pct, err = s.host.CPUPercent(ctx, false); err == nil {
			if len(pct) == 0 {
				v = nil
			} else {
				v = pct[0]
			}
		}
	case api.CPUPercents:
		v = s.sampler.CorePercents()
	case api.CPUFrequency:
		var freqs []float64
		if freqs, err = s.host.CPUFrequencies(ctx); err == nil && len(freqs) > 0 {
			sum := 0.0
			for _, f := range freqs {
				sum += f
			}
			v = sum / float64(len(freqs)) * 1e6
		}
	case api.CPUFrequencies:
		var freqs []float64
		if freqs, err = s.host.CPUFrequencies(ctx); err == nil {
			hz := make([]float64, len(freqs))
			for i, f := range freqs {
				hz[i] = f * 1e6
			}
			v = hz
		}
	case api.CPUMinFrequency, api.CPUMaxFrequency:
		lo, hi, rerr := s.host.CPUFrequencyRange(ctx)
		switch {
		case errors.Is(rerr, ErrUnsupported):
			v = nil
		case rerr != nil:
			err = rerr
		case r.PathValue("name") == api.CPUMinFrequency:
			v = lo * 1e6
		default:
			v = hi * 1e6
		}
	case api.CPULoadAvg:
		v, err = s.loadAvg(ctx)
	case api.CPULogicalCount:
		v, _, err = s.host.CPUCounts(ctx)
	case api.CPUPhysicalCount:
		_, v, err = s.host.CPUCounts(ctx)
	case api.CPUTemperature:
		v, err = s.host.Temperature(ctx)
	default:
		notFound(w)
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// loadAvg scales the load averages to a percent of logical CPUs.
func (s *Server) loadAvg(ctx context.Context) (api.LoadAvg, error) {
	avg, err := s.host.LoadAvg(ctx)
	if err != nil {
		return nil, err
	}
	logical, _, err := s.host.CPUCounts(ctx)
	if err != nil {
		return nil, err
	}
	if logical < 1 {
		logical = 1
	}
	out := make(api.LoadAvg, len(avg))
	for i, l := range avg {
		out[i] = l / float64(logical) * 100
	}
	return out, nil
}

func (s *Server) memory(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "percents" {
		writeJSON(w, http.StatusOK, s.sampler.MemoryPercents())
		return
	}

	m, err := s.host.Memory(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	switch name {
	case "total":
		writeJSON(w, http.StatusOK, m.Total)
	case "available":
		writeJSON(w, http.StatusOK, m.Available)
	case "used":
		writeJSON(w, http.StatusOK, m.Total*m.Percent/100)
	case "percent":
		writeJSON(w, http.StatusOK, m.Percent)
	default:
		notFound(w)
	}
}

func (s *Server) disk(w http.ResponseWriter, r *http.Request) {
	switch r.PathValue("name") {
	case "usages":
		usages, err := DiskUsages(r.Context(), s.host)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, usages)
	case "io_read":
		read, _ := s.sampler.DiskRates()
		writeJSON(w, http.StatusOK, read)
	case "io_write":
		_, write := s.sampler.DiskRates()
		writeJSON(w, http.StatusOK, write)
	default:
		notFound(w)
	}
}

func (s *Server) network(w http.ResponseWriter, r *http.Request) {
	switch r.PathValue("name") {
	case "io_recv":
		recv, _ := s.sampler.NetRates()
		writeJSON(w, http.StatusOK, recv)
	case "io_sent":
		_, sent := s.sampler.NetRates()
		writeJSON(w, http.StatusOK, sent)
	case "interfaces":
		links, err := s.host.Links(r.Context())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		out := make(map[string]api.Interface, len(links))
		for name, l := range links {
			if l.Speed <= 0 {
				continue
			}
			out[name] = api.Interface{Speed: l.Speed * 1e6, MTU: l.MTU, IsUp: l.Up}
		}
		writeJSON(w, http.StatusOK, out)
	default:
		notFound(w)
	}
}

func (s *Server) gpuInfo(w http.ResponseWriter, r *http.Request) {
	gpus := s.sampler.GPUs()
	switch r.PathValue("name") {
	case "has_gpu":
		writeJSON(w, http.StatusOK, len(gpus) > 0)
	case "count":
		writeJSON(w, http.StatusOK, len(gpus))
	case "names":
		names := make([]string, len(gpus))
		for i, g := range gpus {
			names[i] = g.Name
		}
		writeJSON(w, http.StatusOK, names)
	case "memory_total":
		totals := make([]float64, len(gpus))
		for i, g := range gpus {
			totals[i] = g.MemoryTotal
		}
		writeJSON(w, http.StatusOK, totals)
	default:
		notFound(w)
	}
}

func (s *Server) gpuMetric(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		notFound(w)
		return
	}
	v, ok := s.sampler.GPUMetric(r.PathValue("metric"), index)
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) processes(w http.ResponseWriter, _ *http.Request) {
	list, ok := s.sampler.Processes()
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "*")
		h.Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// accessLog tags each request with an ID and logs it once it completes.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		s.log.Debug("request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
