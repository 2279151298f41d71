package jobs

import (
	"fmt"

	"github.com/masa-finance/unified-scraper/api/types"
	"github.com/masa-finance/unified-scraper/internal/config"
)

type backendCheck struct {
	backend   types.Backend
	available func(config.Config) bool
}

// backendPriority is evaluated in order; the first available backend wins in auto mode.
var backendPriority = []backendCheck{
	{types.BackendApify, config.Config.HasApifyCredentials},
	{types.BackendSession, config.Config.HasSessionCredentials},
}

// AvailableBackends lists the backends whose credentials are configured, in priority order.
func AvailableBackends(cfg config.Config) []types.Backend {
	out := []types.Backend{}
	for _, c := range backendPriority {
		if c.available(cfg) {
			out = append(out, c.backend)
		}
	}
	return out
}

// SelectBackend resolves the backend for a batch. A pinned backend must have
// credentials; auto picks the first available one.
func SelectBackend(cfg config.Config, pinned types.Backend) (types.Backend, error) {
	if pinned == "" {
		pinned = types.BackendAuto
	}
	for _, c := range backendPriority {
		if pinned != types.BackendAuto && c.backend != pinned {
			continue
		}
		if c.available(cfg) {
			return c.backend, nil
		}
		if pinned != types.BackendAuto {
			return "", fmt.Errorf("%w: %s credentials are not set", types.ErrBackendUnavailable, pinned)
		}
	}
	if pinned != types.BackendAuto {
		return "", fmt.Errorf("unknown backend %q", pinned)
	}
	return "", types.ErrNoBackendAvailable
}
