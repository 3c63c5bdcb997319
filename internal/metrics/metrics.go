package metrics

import (
	"sync"
)

// Metrics tracks pipeline counters.
type Metrics struct {
	mu sync.RWMutex

	jobsCreated      int64
	jobsDeleted      int64
	jobsExpired      int64
	appliesSucceeded int64
	appliesFailed    int64
	undos            int64
	redos            int64
	previewsRendered int64
	previewCacheHits int64
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncrementJobsCreated increments the created-jobs counter.
func (m *Metrics) IncrementJobsCreated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobsCreated++
}

// IncrementJobsDeleted increments the deleted-jobs counter.
func (m *Metrics) IncrementJobsDeleted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobsDeleted++
}

// IncrementJobsExpired increments the expired-jobs counter.
func (m *Metrics) IncrementJobsExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobsExpired++
}

// IncrementAppliesSucceeded increments the successful-applies counter.
func (m *Metrics) IncrementAppliesSucceeded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appliesSucceeded++
}

// IncrementAppliesFailed increments the failed-applies counter.
func (m *Metrics) IncrementAppliesFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appliesFailed++
}

// IncrementUndos increments the undo counter.
func (m *Metrics) IncrementUndos() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undos++
}

// IncrementRedos increments the redo counter.
func (m *Metrics) IncrementRedos() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.redos++
}

// IncrementPreviewsRendered increments the rendered-previews counter.
func (m *Metrics) IncrementPreviewsRendered() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.previewsRendered++
}

// IncrementPreviewCacheHits increments the preview-cache-hit counter.
func (m *Metrics) IncrementPreviewCacheHits() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.previewCacheHits++
}

// GetSnapshot returns a snapshot of all counters.
func (m *Metrics) GetSnapshot() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]int64{
		"jobs_created":       m.jobsCreated,
		"jobs_deleted":       m.jobsDeleted,
		"jobs_expired":       m.jobsExpired,
		"applies_succeeded":  m.appliesSucceeded,
		"applies_failed":     m.appliesFailed,
		"undos":              m.undos,
		"redos":              m.redos,
		"previews_rendered":  m.previewsRendered,
		"preview_cache_hits": m.previewCacheHits,
	}
}
