package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/multierr"
)

func TestDefaultFile(t *testing.T) {
	f := DefaultFile()
	if f.ServerURL != DefaultServerURL {
		t.Errorf("ServerURL = %q", f.ServerURL)
	}
	if f.LogFile == "" {
		t.Error("expected LogFile to be set")
	}
	if err := f.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
	d := f.Durations()
	if d.Health != HealthInterval || d.Disk != DiskInterval {
		t.Errorf("Durations() = %+v", d)
	}
}

func TestLoadMissingFile(t *testing.T) {
	f, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if f.ServerURL != DefaultServerURL {
		t.Errorf("ServerURL = %q, want default", f.ServerURL)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	f, err := Load("")
	if err != nil || f == nil {
		t.Fatalf("Load(\"\") = %v, %v", f, err)
	}
}

func TestLoadMergesWithDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("server_url: http://gpu-box:4444\nintervals:\n  chart: 500ms\npanels:\n  cpu: true\n  gpu: false\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if f.ServerURL != "http://gpu-box:4444" {
		t.Errorf("ServerURL = %q", f.ServerURL)
	}
	if f.Intervals.Chart != "500ms" {
		t.Errorf("Intervals.Chart = %q", f.Intervals.Chart)
	}
	if f.Intervals.Stat != StatInterval.String() {
		t.Errorf("Intervals.Stat = %q, want default", f.Intervals.Stat)
	}
	if f.Panels.GPU {
		t.Error("Panels.GPU should be false")
	}
	if got := f.Durations().Chart; got != 500*time.Millisecond {
		t.Errorf("Durations().Chart = %v", got)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server_url: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*File)
	}{
		{"bad scheme", func(f *File) { f.ServerURL = "localhost:4444" }},
		{"bad duration", func(f *File) { f.Intervals.Gauge = "soon" }},
		{"zero duration", func(f *File) { f.Intervals.Health = "0s" }},
		{"history", func(f *File) { f.History.GPU = 0 }},
		{"cpu window", func(f *File) { f.Agent.CPUWindow = 0 }},
		{"gpu rate", func(f *File) { f.Agent.GPURate = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := DefaultFile()
			tt.mutate(f)
			if err := f.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestValidateReportsAll(t *testing.T) {
	f := DefaultFile()
	f.ServerURL = "ftp://x"
	f.History.GPU = -1
	f.Agent.GPURate = -2

	err := f.Validate()
	if got := len(multierr.Errors(err)); got != 3 {
		t.Errorf("Validate() reported %d errors, want 3: %v", got, err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvServer, "https://metrics.example:8443")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvLogFile, "")

	f := DefaultFile()
	want := f.LogFile
	f.ApplyEnv()
	if f.ServerURL != "https://metrics.example:8443" {
		t.Errorf("ServerURL = %q", f.ServerURL)
	}
	if f.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", f.LogLevel)
	}
	if f.LogFile != want {
		t.Errorf("empty env overrode LogFile: %q", f.LogFile)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	f := DefaultFile()
	f.ServerURL = "http://10.0.0.2:4444"
	if err := f.Save(path); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.ServerURL != f.ServerURL || got.Agent.GPURate != f.Agent.GPURate {
		t.Errorf("Load(Save()) = %+v", got)
	}
}
