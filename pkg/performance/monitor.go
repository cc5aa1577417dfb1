// Package performance provides resource monitoring for pvstream runs
package performance

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// ResourceMonitor monitors system resources for the current process
type ResourceMonitor struct {
	process      *process.Process
	startCPUTime float64
	startTime    time.Time
	mu           sync.RWMutex
}

// NewResourceMonitor creates a resource monitor
func NewResourceMonitor() *ResourceMonitor {
	proc, _ := process.NewProcess(int32(os.Getpid()))
	var startCPU float64
	if proc != nil {
		if cpuTime, err := proc.Times(); err == nil {
			startCPU = cpuTime.Total()
		}
	}

	return &ResourceMonitor{
		process:      proc,
		startCPUTime: startCPU,
		startTime:    time.Now(),
	}
}

// GetResourceUsage returns current resource usage
func (rm *ResourceMonitor) GetResourceUsage() (*ResourceUsage, error) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	usage := &ResourceUsage{}

	if rm.process == nil {
		usage.GoroutineCount = runtime.NumGoroutine()
		return usage, nil
	}

	// CPU usage
	cpuTime, err := rm.process.Times()
	if err == nil {
		elapsed := time.Since(rm.startTime).Seconds()
		if elapsed > 0 {
			usage.CPUPercent = ((cpuTime.Total() - rm.startCPUTime) / elapsed) * 100
		}
	}

	// Memory usage
	memInfo, err := rm.process.MemoryInfo()
	if err == nil {
		usage.MemoryRSS = memInfo.RSS
		usage.MemoryVMS = memInfo.VMS
	}

	// System memory
	vmStat, err := mem.VirtualMemory()
	if err == nil {
		usage.SystemMemoryPercent = vmStat.UsedPercent
		usage.SystemMemoryAvailable = vmStat.Available
	}

	// Goroutines and threads
	usage.GoroutineCount = runtime.NumGoroutine()
	usage.ThreadCount, _ = rm.process.NumThreads()

	// File descriptors
	usage.OpenFDs, _ = rm.process.NumFDs()

	return usage, nil
}

// ResourceUsage contains resource usage information
type ResourceUsage struct {
	CPUPercent            float64
	MemoryRSS             uint64
	MemoryVMS             uint64
	SystemMemoryPercent   float64
	SystemMemoryAvailable uint64
	GoroutineCount        int
	ThreadCount           int32
	OpenFDs               int32
}

// RunMonitor tracks throughput and resource usage over a single run
type RunMonitor struct {
	name      string
	startTime time.Time
	records   int64
	bytes     int64
	memStats  runtime.MemStats
	resources *ResourceMonitor
}

// NewRunMonitor creates a monitor for a named run and captures the
// starting GC statistics
func NewRunMonitor(name string) *RunMonitor {
	m := &RunMonitor{
		name:      name,
		startTime: time.Now(),
		resources: NewResourceMonitor(),
	}
	runtime.ReadMemStats(&m.memStats)
	return m
}

// IncrementRecords increments the record counter
func (m *RunMonitor) IncrementRecords(count int64) {
	atomic.AddInt64(&m.records, count)
}

// IncrementBytes increments the byte counter
func (m *RunMonitor) IncrementBytes(bytes int64) {
	atomic.AddInt64(&m.bytes, bytes)
}

// RunStats contains throughput and resource statistics for a finished run
type RunStats struct {
	Name             string
	Duration         time.Duration
	RecordsProcessed int64
	BytesProcessed   int64
	RecordsPerSecond float64
	BytesPerSecond   float64
	GCCount          uint32
	GCPauseTotal     time.Duration
	Resources        *ResourceUsage
}

// Finish computes final statistics for the run
func (m *RunMonitor) Finish() *RunStats {
	elapsed := time.Since(m.startTime)

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := &RunStats{
		Name:             m.name,
		Duration:         elapsed,
		RecordsProcessed: atomic.LoadInt64(&m.records),
		BytesProcessed:   atomic.LoadInt64(&m.bytes),
		GCCount:          memStats.NumGC - m.memStats.NumGC,
		GCPauseTotal:     time.Duration(memStats.PauseTotalNs - m.memStats.PauseTotalNs),
	}

	if secs := elapsed.Seconds(); secs > 0 {
		stats.RecordsPerSecond = float64(stats.RecordsProcessed) / secs
		stats.BytesPerSecond = float64(stats.BytesProcessed) / secs
	}

	stats.Resources, _ = m.resources.GetResourceUsage()

	return stats
}

// Report generates a human-readable summary of the run
func (s *RunStats) Report() string {
	report := fmt.Sprintf(`
Run Summary: %s
========================
Duration: %v

Throughput:
- Records: %d (%.2f/sec)
- Bytes: %d (%.2f MB/sec)

Resources:
- CPU: %.2f%%
- Memory RSS: %d MB
- Goroutines: %d
- GC Count: %d
- GC Pause: %v
`,
		s.Name,
		s.Duration.Round(time.Millisecond),
		s.RecordsProcessed,
		s.RecordsPerSecond,
		s.BytesProcessed,
		s.BytesPerSecond/1024/1024,
		resourceCPU(s.Resources),
		resourceRSSMB(s.Resources),
		resourceGoroutines(s.Resources),
		s.GCCount,
		s.GCPauseTotal,
	)

	return report
}

func resourceCPU(r *ResourceUsage) float64 {
	if r == nil {
		return 0
	}
	return r.CPUPercent
}

func resourceRSSMB(r *ResourceUsage) uint64 {
	if r == nil {
		return 0
	}
	return r.MemoryRSS / 1024 / 1024
}

func resourceGoroutines(r *ResourceUsage) int {
	if r == nil {
		return 0
	}
	return r.GoroutineCount
}
