package store

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically evicts stale match states. It runs on its own fixed
// period regardless of feed traffic, so dead matches disappear even when no
// new observations arrive at all.
type Sweeper struct {
	store    *Store
	interval time.Duration
}

func NewSweeper(store *Store, interval time.Duration) *Sweeper {
	return &Sweeper{store: store, interval: interval}
}

// Run blocks until ctx is canceled. Safe to run concurrently with readers
// and writers; eviction happens under the shard locks so no reader ever
// sees a half-evicted entry.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("Staleness sweeper started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Staleness sweeper stopped")
			return
		case now := <-ticker.C:
			evicted := s.store.Sweep(now)
			if len(evicted) > 0 {
				slog.Info("Staleness sweeper: evicted stale matches",
					"evicted", len(evicted),
					"remaining", s.store.Len())
			}
		}
	}
}
