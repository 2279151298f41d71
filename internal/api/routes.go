package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/masa-finance/unified-scraper/api/types"
	"github.com/masa-finance/unified-scraper/internal/capabilities/health"
	"github.com/masa-finance/unified-scraper/internal/jobs/stats"
	"github.com/masa-finance/unified-scraper/internal/jobserver"
)

// add queues a batch on the job server.
//
// The request body is a types.Batch. The response body contains a
// BatchResponse with the id used to poll /batch/status. A batch without
// targets, search terms or urls is rejected with 400 before it is queued.
func add(jobServer *jobserver.JobServer) func(c echo.Context) error {
	return func(c echo.Context) error {
		batch := types.Batch{}
		if err := c.Bind(&batch); err != nil {
			return c.JSON(http.StatusBadRequest, types.BatchError{Error: err.Error()})
		}
		if err := batch.Request.Validate(); err != nil {
			return c.JSON(http.StatusBadRequest, types.BatchError{Error: err.Error()})
		}

		id, err := jobServer.AddBatch(batch)
		if err != nil {
			if errors.Is(err, jobserver.ErrServerStopped) {
				return c.JSON(http.StatusServiceUnavailable, types.BatchError{Error: err.Error()})
			}
			return c.JSON(http.StatusInternalServerError, types.BatchError{Error: err.Error()})
		}

		return c.JSON(http.StatusOK, types.BatchResponse{UID: id})
	}
}

// status returns the report of a batch. Unknown ids get 404, batches still
// running get 202, and batches that failed as a whole get 500 with the error.
// Otherwise the report is returned with 200.
func status(jobServer *jobserver.JobServer) func(c echo.Context) error {
	return func(c echo.Context) error {
		entry, exists := jobServer.GetBatchResult(c.Param("batch_id"))
		if !exists {
			return c.JSON(http.StatusNotFound, types.BatchError{Error: jobserver.ErrBatchNotFound.Error()})
		}

		if !entry.Done {
			return c.JSON(http.StatusAccepted, entry.Report)
		}

		if entry.Report.Error != "" {
			return c.JSON(http.StatusInternalServerError, types.BatchError{Error: entry.Report.Error})
		}

		return c.JSON(http.StatusOK, entry.Report)
	}
}

func statsHandler(statsCollector *stats.StatsCollector) func(c echo.Context) error {
	return func(c echo.Context) error {
		if statsCollector == nil {
			return c.JSON(http.StatusServiceUnavailable, types.BatchError{Error: "stats are not collected"})
		}
		data, err := statsCollector.Json()
		if err != nil {
			logrus.Errorf("Error marshaling stats: %v", err)
			return c.JSON(http.StatusInternalServerError, types.BatchError{Error: err.Error()})
		}
		return c.JSONBlob(http.StatusOK, data)
	}
}

// BackendsResponse lists the configured backends and their last health check.
type BackendsResponse struct {
	Available []types.Backend                        `json:"available"`
	Health    map[types.Backend]health.BackendStatus `json:"health"`
}

func backends(statsCollector *stats.StatsCollector, healthTracker health.BackendHealthTracker) func(c echo.Context) error {
	return func(c echo.Context) error {
		resp := BackendsResponse{
			Available: []types.Backend{},
			Health:    map[types.Backend]health.BackendStatus{},
		}
		if statsCollector != nil {
			resp.Available = statsCollector.Stats.Backends
		}
		if healthTracker != nil {
			resp.Health = healthTracker.GetAllStatuses()
		}
		return c.JSON(http.StatusOK, resp)
	}
}
