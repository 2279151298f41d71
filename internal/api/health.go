package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/masa-finance/unified-scraper/internal/capabilities/health"
	"github.com/masa-finance/unified-scraper/internal/jobserver"
)

// HealthMetrics tracks health-related metrics for the service
type HealthMetrics struct {
	mu             sync.RWMutex
	errorCount     int
	successCount   int
	windowStart    time.Time
	windowDuration time.Duration
	errorThreshold float64
}

// NewHealthMetrics creates a new health metrics tracker
func NewHealthMetrics() *HealthMetrics {
	return &HealthMetrics{
		windowStart:    time.Now(),
		windowDuration: 10 * time.Minute,
		errorThreshold: 0.95,
	}
}

// RecordSuccess records a successful request
func (hm *HealthMetrics) RecordSuccess() {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	hm.checkAndResetWindow()
	hm.successCount++
}

// RecordError records an error
func (hm *HealthMetrics) RecordError() {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	hm.checkAndResetWindow()
	hm.errorCount++
}

func (hm *HealthMetrics) checkAndResetWindow() {
	if time.Since(hm.windowStart) > hm.windowDuration {
		hm.errorCount = 0
		hm.successCount = 0
		hm.windowStart = time.Now()
	}
}

// IsHealthy checks if the service is healthy based on error rate
func (hm *HealthMetrics) IsHealthy() bool {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	total := hm.errorCount + hm.successCount
	if total == 0 {
		return true
	}

	errorRate := float64(hm.errorCount) / float64(total)
	return errorRate < hm.errorThreshold
}

// GetStats returns current health statistics
func (hm *HealthMetrics) GetStats() map[string]interface{} {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	total := hm.errorCount + hm.successCount
	errorRate := 0.0
	if total > 0 {
		errorRate = float64(hm.errorCount) / float64(total)
	}

	return map[string]interface{}{
		"error_count":     hm.errorCount,
		"success_count":   hm.successCount,
		"total_count":     total,
		"error_rate":      errorRate,
		"window_start":    hm.windowStart.Format(time.RFC3339),
		"window_duration": hm.windowDuration.String(),
	}
}

// Healthz is the liveness probe endpoint
func Healthz() func(c echo.Context) error {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": ServiceName,
		})
	}
}

// Readyz is the readiness probe endpoint. The service is not ready when the
// job server is missing, when batch requests mostly fail, or when every
// tracked backend failed its last check.
func Readyz(jobServer *jobserver.JobServer, healthMetrics *HealthMetrics, healthTracker health.BackendHealthTracker) func(c echo.Context) error {
	return func(c echo.Context) error {
		checks := map[string]interface{}{}
		resp := map[string]interface{}{
			"service": ServiceName,
			"ready":   true,
			"checks":  checks,
		}
		notReady := func() error {
			resp["ready"] = false
			return c.JSON(http.StatusServiceUnavailable, resp)
		}

		if jobServer == nil {
			checks["job_server"] = "not initialized"
			return notReady()
		}
		checks["job_server"] = "ok"

		checks["stats"] = healthMetrics.GetStats()
		if !healthMetrics.IsHealthy() {
			checks["error_rate"] = "unhealthy"
			return notReady()
		}
		checks["error_rate"] = "healthy"

		if healthTracker != nil {
			statuses := healthTracker.GetAllStatuses()
			if len(statuses) > 0 && len(healthTracker.Unhealthy()) == len(statuses) {
				checks["backends"] = "unhealthy"
				return notReady()
			}
			checks["backends"] = "ok"
		}

		return c.JSON(http.StatusOK, resp)
	}
}
