package api

import (
	"context"
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo-contrib/pprof"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/sirupsen/logrus"

	"github.com/masa-finance/unified-scraper/internal/capabilities/health"
	"github.com/masa-finance/unified-scraper/internal/config"
	"github.com/masa-finance/unified-scraper/internal/jobs/stats"
	"github.com/masa-finance/unified-scraper/internal/jobserver"
)

const ServiceName = "unified-scraper"

// NewServer builds the echo instance with every route registered. It does not start the job server.
func NewServer(cfg config.Config, jobServer *jobserver.JobServer, statsCollector *stats.StatsCollector, healthTracker health.BackendHealthTracker) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	switch cfg.LogLevel {
	case logrus.DebugLevel, logrus.TraceLevel:
		e.Logger.SetLevel(log.DEBUG)
	case logrus.WarnLevel:
		e.Logger.SetLevel(log.WARN)
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		e.Logger.SetLevel(log.ERROR)
	default:
		e.Logger.SetLevel(log.INFO)
	}

	healthMetrics := NewHealthMetrics()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(APIKeyAuthMiddleware(cfg.APIKey))
	e.Use(HealthMetricsMiddleware(healthMetrics))

	// Health check endpoints (no auth required)
	e.GET(HealthCheckPath, Healthz())
	e.GET(ReadinessCheckPath, Readyz(jobServer, healthMetrics, healthTracker))

	if cfg.ProfilingEnabled {
		pprof.Register(e)
		enableProfiling(e)

		debug := e.Group("/debug/pprof")
		debug.POST("/enable", func(c echo.Context) error {
			enableProfiling(e)
			return c.String(http.StatusOK, "pprof enabled")
		})
		debug.POST("/disable", func(c echo.Context) error {
			disableProfiling(e)
			return c.String(http.StatusOK, "pprof disabled")
		})
	}

	/*
		- POST /batch/add: queue a batch
		- GET /batch/status/:batch_id: report of a batch, 202 while it runs
		- GET /stats: counters per provider
		- GET /backends: configured backends and their last health check
	*/
	batch := e.Group("/batch")
	batch.POST("/add", add(jobServer))
	batch.GET("/status/:batch_id", status(jobServer))

	e.GET("/stats", statsHandler(statsCollector))
	e.GET("/backends", backends(statsCollector, healthTracker))

	return e
}

// Start runs the job server and serves the API on cfg.ListenAddress until ctx is done.
func Start(ctx context.Context, cfg config.Config, jobServer *jobserver.JobServer, statsCollector *stats.StatsCollector, healthTracker health.BackendHealthTracker) error {
	e := NewServer(cfg, jobServer, statsCollector, healthTracker)

	go jobServer.Run(ctx)

	go func() {
		<-ctx.Done()
		if err := e.Close(); err != nil {
			e.Logger.Error("Failed to close Echo server: ", err)
		}
	}()

	e.Logger.Info(fmt.Sprintf("Starting server on %s", cfg.ListenAddress))
	if err := e.Start(cfg.ListenAddress); err != nil && err != http.ErrServerClosed {
		e.Logger.Error(err)
		return err
	}
	return nil
}

func enableProfiling(e *echo.Echo) {
	e.Logger.Info("Enabling profiling - this may impact performance")

	// Sample time in nanoseconds, see https://github.com/DataDog/go-profiler-notes/blob/main/block.md#usage
	runtime.SetBlockProfileRate(500)
	runtime.SetMutexProfileFraction(1)
	runtime.SetCPUProfileRate(30)
}

// The endpoints stay registered; only the sampling is turned off.
func disableProfiling(e *echo.Echo) {
	e.Logger.Info("Disabling performance-intensive profiling probes")

	runtime.SetBlockProfileRate(0)
	runtime.SetMutexProfileFraction(0)
	runtime.SetCPUProfileRate(0)
}
