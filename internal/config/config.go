package config

import "time"

const (
	// App
	AppName    = "RADIATA"
	AppVersion = "1.0"

	// Server
	DefaultServerURL = "http://localhost:4444"
	DefaultListen    = ":4444"
	RequestTimeout   = 3 * time.Second

	// Poll intervals
	HealthInterval = 1 * time.Second
	ChartInterval  = 1 * time.Second  // per-core and memory history charts
	GaugeInterval  = 2 * time.Second  // usage gauges, rates
	StatInterval   = 5 * time.Second  // frequency, load, available memory, processes
	DiskInterval   = 60 * time.Second // disk usage of /

	// Health breaker
	BreakerThreshold  = 3
	BreakerBackoff    = 2 * time.Second
	BreakerMaxBackoff = 5 * time.Second

	// History
	GPUHistoryLen  = 50 // samples kept client side per GPU
	RateHistoryLen = 60 // network rate samples kept for sparklines
	AgentCPUWindow = 60
	AgentGPUWindow = 10
	AgentGPURate   = 2.0 // samples per second

	// Severity scale
	ScaleFrom  = "#7B68EE"
	ScaleTo    = "#CD121D"
	ScaleSteps = 100

	// Display
	TargetFPS = 30

	// Demo mode
	DemoCores = 8
	DemoGPUs  = 1
)
