package capabilities

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/masa-finance/unified-scraper/api/types"
	"github.com/masa-finance/unified-scraper/internal/capabilities/health"
	"github.com/masa-finance/unified-scraper/internal/session"
)

// DefaultReconcileInterval is how often unhealthy backends are re-checked.
const DefaultReconcileInterval = 5 * time.Minute

// Verifier defines the interface for a backend verifier.
type Verifier interface {
	Verify(ctx context.Context) (bool, error)
}

// VerifierFunc adapts a plain function to Verifier.
type VerifierFunc func(ctx context.Context) (bool, error)

func (f VerifierFunc) Verify(ctx context.Context) (bool, error) { return f(ctx) }

// TokenValidator is the part of the Apify client used to check credentials.
type TokenValidator interface {
	ValidateApiKey(ctx context.Context) error
}

// ApifyVerifier checks the Apify token against the account endpoint.
func ApifyVerifier(v TokenValidator) Verifier {
	return VerifierFunc(func(ctx context.Context) (bool, error) {
		if err := v.ValidateApiKey(ctx); err != nil {
			return false, err
		}
		return true, nil
	})
}

// SessionVerifier reports whether the session backend can open a session at all.
// It does not connect.
func SessionVerifier(b *session.Backend) Verifier {
	return VerifierFunc(func(ctx context.Context) (bool, error) {
		if !b.Available() {
			return false, errors.New("session credentials are not set")
		}
		return b.CanDial()
	})
}

// BackendVerifier is responsible for verifying the health of backends.
type BackendVerifier struct {
	tracker   health.BackendHealthTracker
	verifiers map[types.Backend]Verifier
}

// NewBackendVerifier creates a new instance of the BackendVerifier.
func NewBackendVerifier(tracker health.BackendHealthTracker) *BackendVerifier {
	return &BackendVerifier{
		tracker:   tracker,
		verifiers: make(map[types.Backend]Verifier),
	}
}

// RegisterVerifier adds a verifier for a specific backend.
func (v *BackendVerifier) RegisterVerifier(backend types.Backend, verifier Verifier) {
	v.verifiers[backend] = verifier
}

// VerifyBackends runs the registered checks for the given backends.
// Backends without a verifier are assumed healthy.
func (v *BackendVerifier) VerifyBackends(ctx context.Context, backends []types.Backend) {
	for _, b := range backends {
		verifier, supported := v.verifiers[b]
		if !supported {
			v.tracker.UpdateStatus(b, true, nil)
			continue
		}

		isHealthy, err := verifier.Verify(ctx)
		if !isHealthy {
			logrus.Warnf("Backend %s failed verification: %v", b, err)
		}
		v.tracker.UpdateStatus(b, isHealthy, err)
	}
}

// StartReconciliationLoop re-checks unhealthy backends every interval until ctx is done.
func (v *BackendVerifier) StartReconciliationLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultReconcileInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if unhealthy := v.tracker.Unhealthy(); len(unhealthy) > 0 {
				logrus.Debugf("Re-checking backends %v", unhealthy)
				v.VerifyBackends(ctx, unhealthy)
			}
		}
	}
}
