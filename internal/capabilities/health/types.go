package health

import (
	"time"

	"github.com/masa-finance/unified-scraper/api/types"
)

// BackendStatus holds the health information for a single scraping backend.
type BackendStatus struct {
	Backend     types.Backend `json:"backend"`
	IsHealthy   bool          `json:"healthy"`
	LastChecked time.Time     `json:"last_checked"`
	LastError   string        `json:"last_error,omitempty"`
	ErrorCount  int           `json:"error_count"`
}

// BackendHealthTracker defines the interface for managing the health status
// of the configured backends.
type BackendHealthTracker interface {
	// UpdateStatus updates the health status of a specific backend.
	UpdateStatus(backend types.Backend, isHealthy bool, err error)
	// GetStatus retrieves the current health status of a specific backend.
	GetStatus(backend types.Backend) (BackendStatus, bool)
	// GetAllStatuses returns a map of all tracked backend statuses.
	GetAllStatuses() map[types.Backend]BackendStatus
	// Unhealthy lists the tracked backends whose last check failed.
	Unhealthy() []types.Backend
}
