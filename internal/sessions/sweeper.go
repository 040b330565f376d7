package sessions

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is the longest time between two idle sweeps.
const DefaultSweepInterval = 5 * time.Minute

// EvictCallback is called for each session removed by the sweeper.
type EvictCallback func(h Handle)

// SweepInterval picks the sweep period for ttl: half the ttl, capped at
// DefaultSweepInterval.
func SweepInterval(ttl time.Duration) time.Duration {
	interval := ttl / 2
	if interval <= 0 || interval > DefaultSweepInterval {
		return DefaultSweepInterval
	}
	return interval
}

// StartSweeper runs a background goroutine that evicts sessions idle for
// longer than ttl every interval. The returned channel is closed once the
// goroutine has exited after ctx is done.
func StartSweeper(ctx context.Context, reg *Registry, ttl, interval time.Duration, onEvict EvictCallback) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		slog.Info("Session sweeper started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				sweep(reg, ttl, onEvict)
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
	return done
}

func sweep(reg *Registry, ttl time.Duration, onEvict EvictCallback) {
	evicted := reg.EvictIdle(ttl)
	if len(evicted) == 0 {
		return
	}

	for _, h := range evicted {
		slog.Info("Session sweeper evicted idle session", "user_id", h.UserID, "session_id", h.SessionID)
		if onEvict != nil {
			onEvict(h)
		}
	}
	slog.Info("Session sweep completed", "evicted", len(evicted), "remaining", reg.Len())
}
