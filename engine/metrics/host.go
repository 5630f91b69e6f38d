package metrics

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// HostSnapshot is a point-in-time view of the serving process and its host
type HostSnapshot struct {
	Goroutines        int     `json:"goroutines"`
	CPUCores          int     `json:"cpu_cores"`
	ProcessCPUPercent float64 `json:"process_cpu_percent"`
	ProcessRSSMB      float64 `json:"process_rss_mb"`
	MemoryTotalMB     float64 `json:"memory_total_mb"`
	MemoryUsedPercent float64 `json:"memory_used_percent"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// EnvironmentInfo describes the machine a run happened on
type EnvironmentInfo struct {
	OS            string  `json:"os"`
	Architecture  string  `json:"architecture"`
	GoVersion     string  `json:"go_version"`
	CPUModel      string  `json:"cpu_model,omitempty"`
	CPUCores      int     `json:"cpu_cores"`
	TotalMemoryGB float64 `json:"total_memory_gb"`
}

// HostCollector samples the current process. Sampling failures leave fields at zero.
type HostCollector struct {
	proc    *process.Process
	started time.Time
}

// NewHostCollector attaches to the current process
func NewHostCollector() (*HostCollector, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &HostCollector{proc: proc, started: time.Now()}, nil
}

// Snapshot samples the process and host
func (hc *HostCollector) Snapshot() HostSnapshot {
	snapshot := HostSnapshot{
		Goroutines:    runtime.NumGoroutine(),
		CPUCores:      runtime.NumCPU(),
		UptimeSeconds: time.Since(hc.started).Seconds(),
	}

	if cpuPercent, err := hc.proc.CPUPercent(); err == nil {
		snapshot.ProcessCPUPercent = cpuPercent
	}

	if procMem, err := hc.proc.MemoryInfo(); err == nil {
		snapshot.ProcessRSSMB = float64(procMem.RSS) / 1024 / 1024
	}

	if memInfo, err := mem.VirtualMemory(); err == nil {
		snapshot.MemoryTotalMB = float64(memInfo.Total) / 1024 / 1024
		snapshot.MemoryUsedPercent = memInfo.UsedPercent
	}

	return snapshot
}

// Environment collects static environment information
func Environment() EnvironmentInfo {
	env := EnvironmentInfo{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		GoVersion:    runtime.Version(),
		CPUCores:     runtime.NumCPU(),
	}

	if cpuInfo, err := cpu.Info(); err == nil && len(cpuInfo) > 0 {
		env.CPUModel = cpuInfo[0].ModelName
	}

	if memInfo, err := mem.VirtualMemory(); err == nil {
		env.TotalMemoryGB = float64(memInfo.Total) / 1024 / 1024 / 1024
	}

	return env
}
