// Package performance wraps pipeline entry points with resource measurement:
// wall-clock time, CPU time, and resident memory, sampled from the running
// process without altering the wrapped call's contract.
package performance

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Measurement captures resource usage across one wrapped call.
type Measurement struct {
	Name           string        `json:"name"`
	WallTime       time.Duration `json:"wall_time"`
	CPUTime        time.Duration `json:"cpu_time"`
	CPUPercent     float64       `json:"cpu_percent"`
	RSSBefore      uint64        `json:"rss_before_bytes"`
	RSSAfter       uint64        `json:"rss_after_bytes"`
	RSSPeakDelta   int64         `json:"rss_delta_bytes"`
	HeapAllocAfter uint64        `json:"heap_alloc_bytes"`
}

// String renders a one-line summary.
func (m *Measurement) String() string {
	return fmt.Sprintf("%s: wall=%s cpu=%s (%.0f%%) rss=%.1fMB (Δ%+.1fMB)",
		m.Name, m.WallTime.Round(time.Millisecond), m.CPUTime.Round(time.Millisecond),
		m.CPUPercent, float64(m.RSSAfter)/(1<<20), float64(m.RSSPeakDelta)/(1<<20))
}

// Measure runs fn and records its resource usage. Measurement errors are
// swallowed into zero readings; fn's error passes through untouched.
func Measure(name string, fn func() error) (*Measurement, error) {
	m := &Measurement{Name: name}

	proc, procErr := process.NewProcess(int32(os.Getpid()))
	var cpuBefore float64
	if procErr == nil {
		if mi, err := proc.MemoryInfo(); err == nil {
			m.RSSBefore = mi.RSS
		}
		if times, err := proc.Times(); err == nil {
			cpuBefore = times.User + times.System
		}
	}

	start := time.Now()
	fnErr := fn()
	m.WallTime = time.Since(start)

	if procErr == nil {
		if mi, err := proc.MemoryInfo(); err == nil {
			m.RSSAfter = mi.RSS
			m.RSSPeakDelta = int64(m.RSSAfter) - int64(m.RSSBefore)
		}
		if times, err := proc.Times(); err == nil {
			m.CPUTime = time.Duration((times.User + times.System - cpuBefore) * float64(time.Second))
			if m.WallTime > 0 {
				m.CPUPercent = float64(m.CPUTime) / float64(m.WallTime) * 100
			}
		}
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.HeapAllocAfter = ms.HeapAlloc

	return m, fnErr
}
