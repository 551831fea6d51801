package agent

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const (
	smiGPUQuery  = "uuid,name,memory.total,memory.used,utilization.gpu,utilization.memory,temperature.gpu"
	smiAppsQuery = "pid,gpu_uuid,used_memory"
)

const mib = 1024 * 1024

// CommandRunner runs an external command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// SMIReader reads GPUs by running nvidia-smi. Processes listed by
// --query-compute-apps are reported as Compute.
type SMIReader struct {
	Path string
	run  CommandRunner
}

// NewSMIReader returns a reader that runs nvidia-smi from PATH.
func NewSMIReader() *SMIReader {
	return &SMIReader{Path: "nvidia-smi", run: execRunner}
}

type smiGPU struct {
	uuid string
	dev  GPUDevice
	smp  GPUSample
}

func (r *SMIReader) query(ctx context.Context) ([]smiGPU, error) {
	out, err := r.run(ctx, r.Path, "--query-gpu="+smiGPUQuery, "--format=csv,noheader,nounits")
	if err != nil {
		return nil, fmt.Errorf("nvidia-smi: %w", err)
	}
	return parseSMIGPUs(out)
}

func (r *SMIReader) Devices(ctx context.Context) ([]GPUDevice, error) {
	gpus, err := r.query(ctx)
	if err != nil {
		return nil, err
	}
	if len(gpus) == 0 {
		return nil, ErrNoGPU
	}
	out := make([]GPUDevice, len(gpus))
	for i, g := range gpus {
		out[i] = g.dev
	}
	return out, nil
}

func (r *SMIReader) Sample(ctx context.Context) ([]GPUSample, map[int32]GPUProcess, error) {
	gpus, err := r.query(ctx)
	if err != nil {
		return nil, nil, err
	}
	samples := make([]GPUSample, len(gpus))
	totals := make(map[string]float64, len(gpus))
	for i, g := range gpus {
		samples[i] = g.smp
		totals[g.uuid] = g.dev.MemoryTotal
	}

	out, err := r.run(ctx, r.Path, "--query-compute-apps="+smiAppsQuery, "--format=csv,noheader,nounits")
	if err != nil {
		// The GPU readings are still good.
		return samples, nil, nil
	}
	procs, err := parseSMIApps(out, totals)
	if err != nil {
		return samples, nil, nil
	}
	return samples, procs, nil
}

func (r *SMIReader) Close() error { return nil }

func readCSV(out []byte) ([][]string, error) {
	rd := csv.NewReader(strings.NewReader(string(out)))
	rd.TrimLeadingSpace = true
	rd.FieldsPerRecord = -1
	return rd.ReadAll()
}

func parseSMIGPUs(out []byte) ([]smiGPU, error) {
	records, err := readCSV(out)
	if err != nil {
		return nil, fmt.Errorf("nvidia-smi output: %w", err)
	}
	gpus := make([]smiGPU, 0, len(records))
	for _, rec := range records {
		if len(rec) < 7 {
			return nil, fmt.Errorf("nvidia-smi output: want 7 fields, got %d", len(rec))
		}
		g := smiGPU{uuid: strings.TrimSpace(rec[0])}
		g.dev.Name = strings.TrimSpace(rec[1])

		total := smiNumber(rec[2])
		used := smiNumber(rec[3])
		if total != nil {
			g.dev.MemoryTotal = *total * mib
		}
		if used != nil {
			g.smp.MemoryUsed = ptr(*used * mib)
			if total != nil && *total > 0 {
				g.smp.MemoryPercent = ptr(*used / *total * 100)
			}
		}
		g.smp.KernelAccess = smiNumber(rec[4])
		g.smp.MemoryAccess = smiNumber(rec[5])
		g.smp.Temperature = smiNumber(rec[6])
		gpus = append(gpus, g)
	}
	return gpus, nil
}

func parseSMIApps(out []byte, totals map[string]float64) (map[int32]GPUProcess, error) {
	records, err := readCSV(out)
	if err != nil {
		return nil, err
	}
	procs := make(map[int32]GPUProcess, len(records))
	for _, rec := range records {
		if len(rec) < 3 {
			return nil, errors.New("nvidia-smi apps: short record")
		}
		pid, err := strconv.ParseInt(strings.TrimSpace(rec[0]), 10, 32)
		if err != nil {
			continue
		}
		used := smiNumber(rec[2])
		total := totals[strings.TrimSpace(rec[1])]
		if used == nil || total <= 0 {
			continue
		}
		procs[int32(pid)] = GPUProcess{Type: "Compute", MemoryPercent: *used * mib / total * 100}
	}
	return procs, nil
}

// smiNumber parses a field, treating "[N/A]" and friends as unavailable.
func smiNumber(field string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil {
		return nil
	}
	return &v
}
