package worker

import (
	"context"
	"log/slog"
	"time"

	"nichewatch/internal/quota"
)

// QuotaSnapshotStore persists raw tracker snapshots.
type QuotaSnapshotStore interface {
	SaveQuotaSnapshot(ctx context.Context, b []byte) error
}

// QuotaPersister periodically saves the quota tracker state so a restart
// doesn't start from naive defaults and immediately re-exhaust quota.
type QuotaPersister struct {
	Tracker  *quota.Tracker
	Store    QuotaSnapshotStore
	Interval time.Duration
}

func (w *QuotaPersister) Start(ctx context.Context) error {
	if w.Interval <= 0 {
		w.Interval = time.Minute
	}
	t := time.NewTicker(w.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			// final save on shutdown
			w.save(context.WithoutCancel(ctx))
			return nil
		case <-t.C:
			w.save(ctx)
		}
	}
}

func (w *QuotaPersister) save(ctx context.Context) {
	b, err := w.Tracker.Snapshot()
	if err != nil {
		slog.Error("quota-persister: snapshot error", "error", err)
		return
	}
	if err := w.Store.SaveQuotaSnapshot(ctx, b); err != nil {
		slog.Error("quota-persister: save error", "error", err)
	}
}
