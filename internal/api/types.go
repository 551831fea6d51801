package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// CPU fields served under /cpu/{name}.
const (
	CPUName          = "name"
	CPUPercent       = "percent"
	CPUPercents      = "percents"
	CPUFrequency     = "frequency"
	CPUFrequencies   = "frequencies"
	CPUMinFrequency  = "min_frequency"
	CPUMaxFrequency  = "max_frequency"
	CPULoadAvg       = "loadavg"
	CPULogicalCount  = "logical_count"
	CPUPhysicalCount = "physical_count"
	CPUTemperature   = "temperature"
)

// GPUMetric names a per-device series served under /gpu/{metric}/{index}.
type GPUMetric string

const (
	GPUKernelAccess  GPUMetric = "kernel_access"
	GPUMemoryAccess  GPUMetric = "memory_access"
	GPUMemoryUsed    GPUMetric = "memory_used"
	GPUMemoryPercent GPUMetric = "memory_percent"
	GPUTemperature   GPUMetric = "temperature"
)

// GPUMetrics lists every known GPUMetric.
var GPUMetrics = []GPUMetric{GPUKernelAccess, GPUMemoryAccess, GPUMemoryUsed, GPUMemoryPercent, GPUTemperature}

// CoreSample is one per-core utilization snapshot. On the wire it is an
// object keyed by core index plus a "name" holding the unix timestamp.
type CoreSample struct {
	Name     string
	Percents []float64
}

func (s CoreSample) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(s.Percents)+1)
	for i, p := range s.Percents {
		m[strconv.Itoa(i)] = p
	}
	m["name"] = s.Name
	return json.Marshal(m)
}

func (s *CoreSample) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Name = ""
	s.Percents = s.Percents[:0]

	type core struct {
		idx int
		pct float64
	}
	cores := make([]core, 0, len(raw))
	for k, v := range raw {
		if k == "name" {
			if err := json.Unmarshal(v, &s.Name); err != nil {
				return fmt.Errorf("core sample name: %w", err)
			}
			continue
		}
		idx, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		var pct float64
		if err := json.Unmarshal(v, &pct); err != nil {
			return fmt.Errorf("core sample %q: %w", k, err)
		}
		cores = append(cores, core{idx, pct})
	}
	sort.Slice(cores, func(i, j int) bool { return cores[i].idx < cores[j].idx })
	for _, c := range cores {
		s.Percents = append(s.Percents, c.pct)
	}
	return nil
}

// MemorySample is one memory utilization snapshot.
type MemorySample struct {
	Name string  `json:"name"`
	Data float64 `json:"data"`
}

// LoadAvg is the 1, 5 and 15 minute load as a percent of logical cores.
// The wire form is an array of numeric strings.
type LoadAvg []float64

func (l LoadAvg) MarshalJSON() ([]byte, error) {
	out := make([]string, len(l))
	for i, v := range l {
		out[i] = strconv.FormatFloat(v, 'f', 1, 64)
	}
	return json.Marshal(out)
}

func (l *LoadAvg) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*l = nil
		return nil
	}
	out := make(LoadAvg, 0, len(raw))
	for _, r := range raw {
		switch v := r.(type) {
		case float64:
			out = append(out, v)
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("loadavg: %w", err)
			}
			out = append(out, f)
		default:
			return fmt.Errorf("loadavg: unexpected %T", r)
		}
	}
	*l = out
	return nil
}

// DiskUsage is the usage of one mounted filesystem.
type DiskUsage struct {
	Mount   string  `json:"-"`
	Total   float64 `json:"total"`
	Used    float64 `json:"used"`
	Free    float64 `json:"free"`
	Percent float64 `json:"percent"`
}

// DiskUsages is an object keyed by mount point whose key order is
// significant: smallest filesystem first.
type DiskUsages []DiskUsage

func (d DiskUsages) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, u := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(u.Mount)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(u)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (d *DiskUsages) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*d = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("disk usages: expected object, got %v", tok)
	}
	out := DiskUsages{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		mount, _ := tok.(string)
		var u DiskUsage
		if err := dec.Decode(&u); err != nil {
			return fmt.Errorf("disk usage %q: %w", mount, err)
		}
		u.Mount = mount
		out = append(out, u)
	}
	*d = out
	return nil
}

// Find returns the usage for mount.
func (d DiskUsages) Find(mount string) (DiskUsage, bool) {
	for _, u := range d {
		if u.Mount == mount {
			return u, true
		}
	}
	return DiskUsage{}, false
}

// Interface is the link state of a network interface. Speed is in bits/s.
type Interface struct {
	Speed float64 `json:"speed"`
	MTU   int     `json:"mtu"`
	IsUp  bool    `json:"isup"`
}

// GPUInfo is the static GPU inventory.
type GPUInfo struct {
	HasGPU      bool
	Count       int
	Names       []string
	MemoryTotal []float64
}

// Process is one row of the process list. Percentages arrive preformatted
// with one decimal.
type Process struct {
	PID              int32   `json:"pid"`
	Cmdline          string  `json:"cmdline"`
	Username         string  `json:"username"`
	CPUPercent       string  `json:"cpu_percent"`
	MemoryPercent    string  `json:"memory_percent"`
	IORead           float64 `json:"io_read"`
	IOWrite          float64 `json:"io_write"`
	GPUProcessType   *string `json:"gpu_process_type"`
	GPUMemoryPercent *string `json:"gpu_memory_percent"`
}

// CPUValue parses CPUPercent, returning 0 for malformed input.
func (p Process) CPUValue() float64 {
	v, _ := strconv.ParseFloat(p.CPUPercent, 64)
	return v
}

// MemoryValue parses MemoryPercent, returning 0 for malformed input.
func (p Process) MemoryValue() float64 {
	v, _ := strconv.ParseFloat(p.MemoryPercent, 64)
	return v
}
