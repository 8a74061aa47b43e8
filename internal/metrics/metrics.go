package metrics

import (
	"sync"
	"time"
)

type Metrics struct {
	mu sync.RWMutex

	// Counters, cumulative over the process lifetime
	ItemsCollected int64
	RecordsCreated int64
	RecordsUpdated int64
	ItemsSkipped   int64
	ItemErrors     int64
	SourceErrors   int64
	Runs           int64

	// Timings
	LastRunDuration    time.Duration
	AverageRunDuration time.Duration
	TotalRunDuration   time.Duration

	// Status
	LastRunTime   time.Time
	LastRunStatus string
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

var Global = New()

func New() *Metrics {
	return &Metrics{IsHealthy: true}
}

func (m *Metrics) AddCollected(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ItemsCollected += int64(n)
}

func (m *Metrics) IncrementSourceErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SourceErrors++
}

// RecordRun folds one finished run into the totals. A partial run stays
// healthy; only SetError marks the process unhealthy.
func (m *Metrics) RecordRun(created, updated, skipped, errors int, status string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RecordsCreated += int64(created)
	m.RecordsUpdated += int64(updated)
	m.ItemsSkipped += int64(skipped)
	m.ItemErrors += int64(errors)
	m.Runs++

	m.LastRunDuration = duration
	m.TotalRunDuration += duration
	m.AverageRunDuration = m.TotalRunDuration / time.Duration(m.Runs)

	m.LastRunTime = time.Now()
	m.LastRunStatus = status
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.IsHealthy
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"items_collected":         m.ItemsCollected,
		"records_created":         m.RecordsCreated,
		"records_updated":         m.RecordsUpdated,
		"items_skipped":           m.ItemsSkipped,
		"item_errors":             m.ItemErrors,
		"source_errors":           m.SourceErrors,
		"runs":                    m.Runs,
		"last_run_duration_ms":    m.LastRunDuration.Milliseconds(),
		"average_run_duration_ms": m.AverageRunDuration.Milliseconds(),
		"last_run_time":           formatTime(m.LastRunTime),
		"last_run_status":         m.LastRunStatus,
		"last_error_time":         formatTime(m.LastErrorTime),
		"last_error":              m.LastError,
		"is_healthy":              m.IsHealthy,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
