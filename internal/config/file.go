package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the config file.
const (
	EnvServer   = "RADIATA_SERVER"
	EnvLogLevel = "RADIATA_LOG_LEVEL"
	EnvLogFile  = "RADIATA_LOG_FILE"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// File is the on-disk configuration.
type File struct {
	ServerURL string `yaml:"server_url"`
	LogFile   string `yaml:"log_file"`
	LogLevel  string `yaml:"log_level"`

	Intervals Intervals `yaml:"intervals"`
	History   History   `yaml:"history"`
	Panels    Panels    `yaml:"panels"`
	Agent     Agent     `yaml:"agent"`
}

// Intervals are duration strings ("1s", "500ms").
type Intervals struct {
	Health string `yaml:"health"`
	Chart  string `yaml:"chart"`
	Gauge  string `yaml:"gauge"`
	Stat   string `yaml:"stat"`
	Disk   string `yaml:"disk"`
}

type History struct {
	GPU int `yaml:"gpu"`
}

// Panels toggles the initial visibility of each dashboard panel.
type Panels struct {
	CPU     bool `yaml:"cpu"`
	Memory  bool `yaml:"memory"`
	GPU     bool `yaml:"gpu"`
	Process bool `yaml:"process"`
	Network bool `yaml:"network"`
	Disk    bool `yaml:"disk"`
}

// Agent holds `radiata serve` settings.
type Agent struct {
	Listen    string  `yaml:"listen"`
	CPUWindow int     `yaml:"cpu_window"`
	GPUWindow int     `yaml:"gpu_window"`
	GPURate   float64 `yaml:"gpu_rate"`
}

// DefaultPath is ~/.config/radiata/config.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "radiata", "config.yaml")
}

// DefaultLogFile is ~/.cache/radiata/radiata.log, falling back to the temp dir.
func DefaultLogFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "radiata", "radiata.log")
}

// DefaultFile returns a File populated with the built-in defaults.
func DefaultFile() *File {
	return &File{
		ServerURL: DefaultServerURL,
		LogFile:   DefaultLogFile(),
		LogLevel:  "info",
		Intervals: Intervals{
			Health: HealthInterval.String(),
			Chart:  ChartInterval.String(),
			Gauge:  GaugeInterval.String(),
			Stat:   StatInterval.String(),
			Disk:   DiskInterval.String(),
		},
		History: History{GPU: GPUHistoryLen},
		Panels: Panels{
			CPU: true, Memory: true, GPU: true,
			Process: true, Network: true, Disk: true,
		},
		Agent: Agent{
			Listen:    DefaultListen,
			CPUWindow: AgentCPUWindow,
			GPUWindow: AgentGPUWindow,
			GPURate:   AgentGPURate,
		},
	}
}

// Load reads path over the defaults. An empty path or a missing file yields
// the defaults.
func Load(path string) (*File, error) {
	f := DefaultFile()
	if path == "" {
		return f, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return f, nil
}

// ApplyEnv overlays RADIATA_* variables. A .env file in the working
// directory is read first when present; variables already set in the
// process environment win over it.
func (f *File) ApplyEnv() {
	_ = godotenv.Load()

	if v := os.Getenv(EnvServer); v != "" {
		f.ServerURL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		f.LogLevel = v
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		f.LogFile = v
	}
}

// Validate checks URLs, durations and sizes. All problems are reported
// together; each wraps ErrInvalid.
func (f *File) Validate() error {
	var errs error
	invalid := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if !strings.HasPrefix(f.ServerURL, "http://") && !strings.HasPrefix(f.ServerURL, "https://") {
		invalid("server_url must start with http:// or https://, got %q", f.ServerURL)
	}
	for _, iv := range []struct{ name, value string }{
		{"health", f.Intervals.Health},
		{"chart", f.Intervals.Chart},
		{"gauge", f.Intervals.Gauge},
		{"stat", f.Intervals.Stat},
		{"disk", f.Intervals.Disk},
	} {
		d, err := time.ParseDuration(iv.value)
		switch {
		case err != nil:
			invalid("intervals.%s: %v", iv.name, err)
		case d <= 0:
			invalid("intervals.%s must be positive, got %s", iv.name, iv.value)
		}
	}
	if f.History.GPU < 1 {
		invalid("history.gpu must be at least 1, got %d", f.History.GPU)
	}
	if f.Agent.CPUWindow < 1 || f.Agent.GPUWindow < 1 {
		invalid("agent windows must be at least 1")
	}
	if f.Agent.GPURate <= 0 {
		invalid("agent.gpu_rate must be positive, got %v", f.Agent.GPURate)
	}
	return errs
}

// Save writes f as YAML, creating parent directories.
func (f *File) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Durations is the parsed form of Intervals.
type Durations struct {
	Health, Chart, Gauge, Stat, Disk time.Duration
}

// Durations parses Intervals. Call Validate first; unparsable entries fall
// back to the built-in constants.
func (f *File) Durations() Durations {
	parse := func(s string, def time.Duration) time.Duration {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			return def
		}
		return d
	}
	return Durations{
		Health: parse(f.Intervals.Health, HealthInterval),
		Chart:  parse(f.Intervals.Chart, ChartInterval),
		Gauge:  parse(f.Intervals.Gauge, GaugeInterval),
		Stat:   parse(f.Intervals.Stat, StatInterval),
		Disk:   parse(f.Intervals.Disk, DiskInterval),
	}
}
