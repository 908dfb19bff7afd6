package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects per-component request counters and latencies.
type Metrics struct {
	mu sync.Mutex

	requestTotal  atomic.Int64
	requestFailed atomic.Int64

	components map[string]*ComponentMetrics
}

// ComponentMetrics represents metrics for a single component.
type ComponentMetrics struct {
	executionCount atomic.Int64
	totalDuration  atomic.Int64 // milliseconds
	errorCount     atomic.Int64
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		components: make(map[string]*ComponentMetrics),
	}
}

// Global metrics instance.
var globalMetrics = NewMetrics()

// GlobalMetrics returns the global metrics instance.
func GlobalMetrics() *Metrics {
	return globalMetrics
}

// RecordRequest records a handled request.
func (m *Metrics) RecordRequest(component string) {
	m.requestTotal.Add(1)
	m.getComponent(component).executionCount.Add(1)
}

// RecordFailure records a failed request.
func (m *Metrics) RecordFailure(component string) {
	m.requestFailed.Add(1)
	m.getComponent(component).errorCount.Add(1)
}

// RecordDuration records a request duration.
func (m *Metrics) RecordDuration(component string, duration time.Duration) {
	m.getComponent(component).totalDuration.Add(duration.Milliseconds())
}

// GetRequestTotal returns the total number of requests.
func (m *Metrics) GetRequestTotal() int64 {
	return m.requestTotal.Load()
}

// GetRequestFailed returns the total number of failed requests.
func (m *Metrics) GetRequestFailed() int64 {
	return m.requestFailed.Load()
}

// GetAverageDuration returns the average duration in milliseconds.
func (m *Metrics) GetAverageDuration(component string) int64 {
	cm := m.getComponent(component)
	count := cm.executionCount.Load()
	if count == 0 {
		return 0
	}
	return cm.totalDuration.Load() / count
}

func (m *Metrics) getComponent(component string) *ComponentMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	cm, ok := m.components[component]
	if !ok {
		cm = &ComponentMetrics{}
		m.components[component] = cm
	}
	return cm
}

// Snapshot returns a point-in-time view of all counters.
func (m *Metrics) Snapshot() map[string]ComponentSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]ComponentSnapshot, len(m.components))
	for name, cm := range m.components {
		count := cm.executionCount.Load()
		avg := int64(0)
		if count > 0 {
			avg = cm.totalDuration.Load() / count
		}
		out[name] = ComponentSnapshot{
			ExecutionCount:  count,
			ErrorCount:      cm.errorCount.Load(),
			AverageDuration: avg,
		}
	}
	return out
}

// ComponentSnapshot is a read-only view of one component's counters.
type ComponentSnapshot struct {
	ExecutionCount  int64 `json:"execution_count"`
	ErrorCount      int64 `json:"error_count"`
	AverageDuration int64 `json:"average_duration_ms"`
}

// Reset resets all metrics (useful for testing).
func (m *Metrics) Reset() {
	m.requestTotal.Store(0)
	m.requestFailed.Store(0)

	m.mu.Lock()
	m.components = make(map[string]*ComponentMetrics)
	m.mu.Unlock()
}
