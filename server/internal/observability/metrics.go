package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects and aggregates counters for exchange operations.
type Metrics struct {
	mu sync.Mutex

	// Counters
	requestTotal  atomic.Int64
	requestFailed atomic.Int64

	// Operation-specific metrics
	operationMetrics map[string]*OperationMetrics

	// Duration window (simplified for internal use)
	durations    []time.Duration
	maxDurations int
}

// OperationMetrics represents counters for one exchange operation.
type OperationMetrics struct {
	executionCount atomic.Int64
	totalDuration  atomic.Int64 // milliseconds
	errorCount     atomic.Int64
}

// NewMetrics creates a new metrics collector.
func NewMetrics(maxDurations int) *Metrics {
	if maxDurations <= 0 {
		maxDurations = 1000 // Default to keeping last 1000 durations
	}
	return &Metrics{
		operationMetrics: make(map[string]*OperationMetrics),
		durations:        make([]time.Duration, 0, maxDurations),
		maxDurations:     maxDurations,
	}
}

// Global metrics instance.
var globalMetrics = NewMetrics(1000)

// GlobalMetrics returns the global metrics instance.
func GlobalMetrics() *Metrics {
	return globalMetrics
}

// RecordRequest records a request.
func (m *Metrics) RecordRequest(operation string) {
	m.requestTotal.Add(1)
	m.getOperationMetrics(operation).executionCount.Add(1)
}

// RecordFailure records a failed request.
func (m *Metrics) RecordFailure(operation string) {
	m.requestFailed.Add(1)
	m.getOperationMetrics(operation).errorCount.Add(1)
}

// RecordDuration records a request duration.
func (m *Metrics) RecordDuration(operation string, duration time.Duration) {
	m.getOperationMetrics(operation).totalDuration.Add(duration.Milliseconds())

	m.mu.Lock()
	if len(m.durations) >= m.maxDurations {
		// Remove oldest duration (FIFO)
		m.durations = m.durations[1:]
	}
	m.durations = append(m.durations, duration)
	m.mu.Unlock()
}

// RequestTotal returns the total number of requests seen.
func (m *Metrics) RequestTotal() int64 {
	return m.requestTotal.Load()
}

// RequestFailed returns the total number of failed requests.
func (m *Metrics) RequestFailed() int64 {
	return m.requestFailed.Load()
}

func (m *Metrics) getOperationMetrics(operation string) *OperationMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	om, ok := m.operationMetrics[operation]
	if !ok {
		om = &OperationMetrics{}
		m.operationMetrics[operation] = om
	}
	return om
}
