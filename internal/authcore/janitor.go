// ABOUTME: Periodic cleanup of expired auth state
// ABOUTME: Sweeps the session registry, challenge ledger, and rate limiter

package authcore

import (
	"context"
	"log/slog"
	"time"
)

const janitorInterval = time.Hour

// Janitor periodically purges expired entries from the auth core. A
// missed tick (process suspended) is harmless; the next sweep catches
// up. Tests call Sweep on the Authenticator directly with a fake clock.
type Janitor struct {
	auth     *Authenticator
	interval time.Duration
	logger   *slog.Logger
}

// NewJanitor returns a Janitor sweeping hourly.
func NewJanitor(auth *Authenticator) *Janitor {
	return &Janitor{
		auth:     auth,
		interval: janitorInterval,
		logger:   slog.Default().With("component", "janitor"),
	}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.auth.Sweep()
			j.logger.Debug("sweep complete")
		}
	}
}
