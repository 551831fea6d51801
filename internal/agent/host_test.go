package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeSysfs(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSystemHostFrequencies(t *testing.T) {
	root := t.TempDir()
	for cpu, khz := range map[string]string{"cpu0": "1200000\n", "cpu2": "3400000\n", "cpu10": "800000\n"} {
		writeSysfs(t, root, filepath.Join("devices/system/cpu", cpu, "cpufreq/scaling_cur_freq"), khz)
	}
	writeSysfs(t, root, "devices/system/cpu/cpu0/cpufreq/cpuinfo_min_freq", "400000")
	writeSysfs(t, root, "devices/system/cpu/cpu0/cpufreq/cpuinfo_max_freq", "5000000")

	h := NewSystemHost()
	h.sysfs = root

	got, err := h.CPUFrequencies(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float64{1200, 3400, 800}, got); diff != "" {
		t.Errorf("frequencies (-want +got):\n%s", diff)
	}

	lo, hi, err := h.CPUFrequencyRange(context.Background())
	if err != nil || lo != 400 || hi != 5000 {
		t.Errorf("range = %v, %v, %v", lo, hi, err)
	}
}

func TestSystemHostFrequencyRangeUnsupported(t *testing.T) {
	h := NewSystemHost()
	h.sysfs = t.TempDir()
	if _, _, err := h.CPUFrequencyRange(context.Background()); !errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
}

func TestCPUIndex(t *testing.T) {
	tests := map[string]int{
		"/sys/devices/system/cpu/cpu0/cpufreq/scaling_cur_freq":  0,
		"/sys/devices/system/cpu/cpu17/cpufreq/scaling_cur_freq": 17,
		"/sys/devices/system/cpu/cpufreq":                        0,
	}
	for path, want := range tests {
		if got := cpuIndex(path); got != want {
			t.Errorf("cpuIndex(%q) = %d, want %d", path, got, want)
		}
	}
}
