package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const HealthCheckPath = "/healthz"
const ReadinessCheckPath = "/readyz"

// APIKeyAuthMiddleware returns an Echo middleware that checks for the API key in the request headers.
func APIKeyAuthMiddleware(apiKey string) echo.MiddlewareFunc {
	if apiKey == "" {
		// No API key set; allow all requests (no-op)
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				return next(c)
			}
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Skip auth for health check endpoints
			path := c.Request().URL.Path
			if path == HealthCheckPath || path == ReadinessCheckPath {
				return next(c)
			}

			// Check Authorization: Bearer <API_KEY> or X-API-Key header
			header := c.Request().Header.Get("Authorization")
			if header == "Bearer "+apiKey {
				return next(c)
			}
			if c.Request().Header.Get("X-API-Key") == apiKey {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid API key")
		}
	}
}

// HealthMetricsMiddleware tracks success and error rates for readiness probe
func HealthMetricsMiddleware(healthMetrics *HealthMetrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if path == HealthCheckPath || path == ReadinessCheckPath {
				return next(c)
			}

			err := next(c)

			// Only batch endpoints count; 4xx are client errors and are not counted.
			if strings.HasPrefix(path, "/batch/") {
				statusCode := c.Response().Status
				if statusCode >= 500 {
					healthMetrics.RecordError()
				} else if statusCode >= 200 && statusCode < 400 {
					healthMetrics.RecordSuccess()
				}
			}

			return err
		}
	}
}
