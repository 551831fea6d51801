package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"go.uber.org/zap"
)

// ErrNoGPU means no GPU reader could be opened.
var ErrNoGPU = errors.New("agent: no GPU available")

// GPUDevice is the static description of one GPU.
type GPUDevice struct {
	Name        string
	MemoryTotal float64 // bytes
}

// GPUSample is one reading of a single GPU. A nil field was unavailable.
type GPUSample struct {
	KernelAccess  *float64 // percent of time a kernel was running
	MemoryAccess  *float64 // percent of time memory was read or written
	MemoryUsed    *float64 // bytes
	MemoryPercent *float64
	Temperature   *float64 // Celsius
}

// Value returns the field named by metric.
func (s GPUSample) Value(metric string) (*float64, bool) {
	switch metric {
	case "kernel_access":
		return s.KernelAccess, true
	case "memory_access":
		return s.MemoryAccess, true
	case "memory_used":
		return s.MemoryUsed, true
	case "memory_percent":
		return s.MemoryPercent, true
	case "temperature":
		return s.Temperature, true
	}
	return nil, false
}

// GPUProcess is GPU usage attributed to one pid.
type GPUProcess struct {
	Type          string // Compute or Graphics
	MemoryPercent float64
}

// GPUReader samples the GPUs of the host.
type GPUReader interface {
	Devices(ctx context.Context) ([]GPUDevice, error)
	Sample(ctx context.Context) ([]GPUSample, map[int32]GPUProcess, error)
	Close() error
}

// OpenGPU returns an NVML reader when the driver library loads, otherwise an
// nvidia-smi reader when the binary answers. It returns ErrNoGPU if neither
// works.
func OpenGPU(ctx context.Context, log *zap.Logger) (GPUReader, error) {
	r, err := OpenNVML()
	if err == nil {
		log.Info("gpu reader", zap.String("backend", "nvml"))
		return r, nil
	}
	log.Debug("nvml unavailable", zap.Error(err))

	smi := NewSMIReader()
	if _, err := smi.Devices(ctx); err != nil {
		log.Debug("nvidia-smi unavailable", zap.Error(err))
		return nil, ErrNoGPU
	}
	log.Info("gpu reader", zap.String("backend", "nvidia-smi"))
	return smi, nil
}

// NVMLReader reads GPUs through the NVIDIA management library.
type NVMLReader struct {
	devices []nvml.Device
	totals  []float64
}

// OpenNVML initializes NVML and enumerates devices.
func OpenNVML() (*NVMLReader, error) {
	if ret := nvml.Init(); ret != nvml.SUCCESS {
		return nil, fmt.Errorf("nvml init: %s", nvml.ErrorString(ret))
	}
	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		nvml.Shutdown()
		return nil, fmt.Errorf("nvml device count: %s", nvml.ErrorString(ret))
	}
	if count == 0 {
		nvml.Shutdown()
		return nil, ErrNoGPU
	}

	r := &NVMLReader{}
	for i := range count {
		dev, ret := nvml.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			nvml.Shutdown()
			return nil, fmt.Errorf("nvml device %d: %s", i, nvml.ErrorString(ret))
		}
		r.devices = append(r.devices, dev)
		total := 0.0
		if m, ret := dev.GetMemoryInfo(); ret == nvml.SUCCESS {
			total = float64(m.Total)
		}
		r.totals = append(r.totals, total)
	}
	return r, nil
}

func (r *NVMLReader) Devices(context.Context) ([]GPUDevice, error) {
	out := make([]GPUDevice, len(r.devices))
	for i, dev := range r.devices {
		name, ret := dev.GetName()
		if ret != nvml.SUCCESS {
			return nil, fmt.Errorf("nvml device %d name: %s", i, nvml.ErrorString(ret))
		}
		out[i] = GPUDevice{Name: name, MemoryTotal: r.totals[i]}
	}
	return out, nil
}

func (r *NVMLReader) Sample(context.Context) ([]GPUSample, map[int32]GPUProcess, error) {
	samples := make([]GPUSample, len(r.devices))
	procs := make(map[int32]GPUProcess)
	for i, dev := range r.devices {
		var s GPUSample
		if u, ret := dev.GetUtilizationRates(); ret == nvml.SUCCESS {
			s.KernelAccess = ptr(float64(u.Gpu))
			s.MemoryAccess = ptr(float64(u.Memory))
		}
		if m, ret := dev.GetMemoryInfo(); ret == nvml.SUCCESS && m.Total > 0 {
			s.MemoryUsed = ptr(float64(m.Used))
			s.MemoryPercent = ptr(float64(m.Used) / float64(m.Total) * 100)
		}
		if t, ret := dev.GetTemperature(nvml.TEMPERATURE_GPU); ret == nvml.SUCCESS {
			s.Temperature = ptr(float64(t))
		}
		samples[i] = s

		total := r.totals[i]
		if total <= 0 {
			continue
		}
		if ps, ret := dev.GetComputeRunningProcesses(); ret == nvml.SUCCESS {
			for _, p := range ps {
				procs[int32(p.Pid)] = GPUProcess{Type: "Compute", MemoryPercent: float64(p.UsedGpuMemory) / total * 100}
			}
		}
		if ps, ret := dev.GetGraphicsRunningProcesses(); ret == nvml.SUCCESS {
			for _, p := range ps {
				procs[int32(p.Pid)] = GPUProcess{Type: "Graphics", MemoryPercent: float64(p.UsedGpuMemory) / total * 100}
			}
		}
	}
	return samples, procs, nil
}

func (r *NVMLReader) Close() error {
	if ret := nvml.Shutdown(); ret != nvml.SUCCESS {
		return fmt.Errorf("nvml shutdown: %s", nvml.ErrorString(ret))
	}
	return nil
}

func ptr(v float64) *float64 { return &v }
