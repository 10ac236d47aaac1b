// Package sweep runs the background session expiry worker.
package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/aurasense/companion/internal/store"
)

// Config holds the sweep worker policy.
type Config struct {
	// Interval between sweep passes.
	Interval time.Duration
	// TTL is the inactivity window after which a live session is aborted.
	TTL time.Duration
	// Retention bounds how long terminal sessions are kept before deletion.
	Retention time.Duration
}

// Start runs a background goroutine that periodically aborts idle sessions
// and deletes terminal sessions past retention. It stops when ctx is done.
func Start(ctx context.Context, st store.Store, cfg Config) {
	ticker := time.NewTicker(cfg.Interval)
	go func() {
		defer ticker.Stop()
		slog.Info("session sweep worker started",
			"interval", cfg.Interval,
			"ttl", cfg.TTL,
			"retention", cfg.Retention)

		for {
			select {
			case <-ticker.C:
				sweepOnce(ctx, st, cfg)
			case <-ctx.Done():
				slog.Info("session sweep worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepOnce(ctx context.Context, st store.Store, cfg Config) {
	aborted, deleted, err := st.SweepExpired(ctx, cfg.TTL, cfg.Retention)
	if err != nil {
		slog.Error("session sweep failed", "error", err)
		return
	}
	if aborted > 0 || deleted > 0 {
		slog.Info("session sweep completed", "aborted", aborted, "deleted", deleted)
	}
}
