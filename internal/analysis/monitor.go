// internal/analysis/monitor.go
package analysis

import (
	"fmt"
	"runtime"
	"sync"
	"time"
)

// TimelineEntry records one monitored operation. MemoryUsage holds the heap
// snapshot taken when the operation stopped (the start snapshot until then).
type TimelineEntry struct {
	OperationName string
	StartTime     time.Time
	EndTime       time.Time
	Duration      time.Duration
	MemoryUsage   uint64

	finished bool
}

// UsageRecord is what StopMonitoring hands back for one operation.
type UsageRecord struct {
	OperationName string
	Duration      time.Duration
	MemoryUsed    uint64
}

// Monitor samples time and heap usage around named operations and keeps an
// append-only timeline. Entries are matched by name, most recent unfinished
// first, so nested or repeated operations of the same name pair up LIFO.
type Monitor struct {
	mu       sync.Mutex
	timeline []*TimelineEntry
}

// NewMonitor creates an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// StartMonitoring snapshots the clock and heap and appends a provisional
// timeline entry for the named operation.
func (m *Monitor) StartMonitoring(name string) {
	entry := &TimelineEntry{
		OperationName: name,
		StartTime:     time.Now(),
		MemoryUsage:   heapUsed(),
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeline = append(m.timeline, entry)
}

// StopMonitoring completes the most recent unfinished entry for the name
// and returns its usage record. Stopping an operation that was never
// started is a programming error and fails explicitly.
func (m *Monitor) StopMonitoring(name string) (UsageRecord, error) {
	now := time.Now()
	used := heapUsed()

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.timeline) - 1; i >= 0; i-- {
		entry := m.timeline[i]
		if entry.OperationName != name || entry.finished {
			continue
		}
		entry.EndTime = now
		entry.Duration = now.Sub(entry.StartTime)
		entry.MemoryUsage = used
		entry.finished = true
		return UsageRecord{
			OperationName: name,
			Duration:      entry.Duration,
			MemoryUsed:    used,
		}, nil
	}
	return UsageRecord{}, fmt.Errorf("no active monitoring entry for operation %q", name)
}

// Timeline returns a copy of the recorded entries.
func (m *Monitor) Timeline() []TimelineEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TimelineEntry, len(m.timeline))
	for i, e := range m.timeline {
		out[i] = *e
	}
	return out
}

// Clear drops all timeline entries.
func (m *Monitor) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeline = nil
}

// PeakMemoryUsage returns the maximum heap snapshot across the timeline.
// This is bounded by the sampling points, not a continuous trace: a spike
// between start and stop of a step goes unrecorded. Treat it as a floor on
// the true peak.
func (m *Monitor) PeakMemoryUsage() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var peak uint64
	for _, e := range m.timeline {
		if e.MemoryUsage > peak {
			peak = e.MemoryUsage
		}
	}
	return peak
}

func heapUsed() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.HeapAlloc
}
