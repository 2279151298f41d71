package health

import (
	"sync"
	"time"

	"golang.org/x/exp/slices"

	"github.com/masa-finance/unified-scraper/api/types"
)

// Tracker is the concrete implementation of the BackendHealthTracker interface.
type Tracker struct {
	statuses map[types.Backend]BackendStatus
	mu       sync.RWMutex
	now      func() time.Time
}

// NewTracker creates a new instance of a Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		statuses: make(map[types.Backend]BackendStatus),
		now:      time.Now,
	}
}

// UpdateStatus updates the health status of a specific backend.
func (t *Tracker) UpdateStatus(backend types.Backend, isHealthy bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	status, exists := t.statuses[backend]
	if !exists {
		status = BackendStatus{Backend: backend}
	}

	status.IsHealthy = isHealthy
	status.LastChecked = t.now()

	if err != nil {
		status.LastError = err.Error()
		if !isHealthy {
			status.ErrorCount++
		}
	} else {
		status.LastError = ""
		status.ErrorCount = 0
	}
	t.statuses[backend] = status
}

// GetStatus retrieves the current health status of a specific backend.
func (t *Tracker) GetStatus(backend types.Backend) (BackendStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	status, exists := t.statuses[backend]
	return status, exists
}

// GetAllStatuses returns a copy of all tracked backend statuses.
func (t *Tracker) GetAllStatuses() map[types.Backend]BackendStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	statusesCopy := make(map[types.Backend]BackendStatus, len(t.statuses))
	for k, v := range t.statuses {
		statusesCopy[k] = v
	}
	return statusesCopy
}

// Unhealthy lists the backends whose last check failed, sorted.
func (t *Tracker) Unhealthy() []types.Backend {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := []types.Backend{}
	for b, s := range t.statuses {
		if !s.IsHealthy {
			out = append(out, b)
		}
	}
	slices.Sort(out)
	return out
}
