package room

import (
	"context"
	"log/slog"
	"time"

	"github.com/voxmeet/signaling-relay/internal/metrics"
)

// DefaultSweepInterval is how often the reaper scans for orphaned empty
// rooms when no interval is configured.
const DefaultSweepInterval = 5 * time.Minute

// Reaper periodically deletes rooms whose membership dropped to zero
// without being cleaned up synchronously. It runs on its own schedule,
// independent of connection churn.
type Reaper struct {
	store    *Store
	interval time.Duration
	log      *slog.Logger
	metrics  *metrics.Metrics
}

func NewReaper(store *Store, interval time.Duration, log *slog.Logger, m *metrics.Metrics) *Reaper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if log == nil {
		log = slog.Default()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Reaper{store: store, interval: interval, log: log, metrics: m}
}

// Run sweeps until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.store.SweepEmpty(); n > 0 {
				r.metrics.Add(metrics.EventRoomsSwept, uint64(n))
				r.log.Warn("reaped orphaned empty rooms", "count", n)
			}
		}
	}
}
