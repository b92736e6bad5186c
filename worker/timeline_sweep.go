package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"nichewatch/internal/gateway"
	"nichewatch/internal/metrics"
	"nichewatch/internal/model"
)

// TrackedAccount is one monitored account with its priority tier.
type TrackedAccount struct {
	ID   string
	Tier int
}

// TimelineSweep periodically fetches tracked account timelines, tier 1
// before tier 2, bounded to a recency window. Quota exhaustion skips the
// remaining accounts for the cycle instead of aborting the sweep.
type TimelineSweep struct {
	Gateway       Fetcher
	Pipeline      *Pipeline
	Accounts      []TrackedAccount // expected ordered tier 1 first
	Interval      time.Duration
	RecencyWindow time.Duration

	halted bool
}

func (w *TimelineSweep) Start(ctx context.Context) error {
	if w.Interval <= 0 {
		w.Interval = 30 * time.Minute
	}
	if w.RecencyWindow <= 0 {
		w.RecencyWindow = 2 * time.Hour
	}

	// initial run
	w.runOnce(ctx)

	t := time.NewTicker(w.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			w.runOnce(ctx)
		}
	}
}

func (w *TimelineSweep) runOnce(ctx context.Context) {
	if w.halted {
		slog.Warn("timeline-sweep: halted by fatal source error, skipping cycle")
		return
	}
	defer func() {
		if err := w.Pipeline.Dedup.Flush(context.WithoutCancel(ctx)); err != nil {
			slog.Error("timeline-sweep: dedup flush error", "error", err)
		}
	}()

	w.Pipeline.Dispatcher.RetryPending(ctx)

	processed, skipped := 0, 0
	for _, acc := range w.Accounts {
		if ctx.Err() != nil {
			return
		}
		items, err := w.Gateway.FetchTimeline(ctx, acc.ID, w.RecencyWindow)
		switch {
		case errors.Is(err, gateway.ErrRateLimited):
			// skip the rest of this cycle, not the whole sweep schedule
			skipped = len(w.Accounts) - processed
			slog.Info("timeline-sweep: quota exhausted, skipping remaining accounts", "skipped", skipped)
			return
		case errors.Is(err, gateway.ErrFatal):
			slog.Error("timeline-sweep: fatal source error, halting sweep", "account", acc.ID, "error", err)
			w.halted = true
			return
		case err != nil:
			slog.Warn("timeline-sweep: fetch failed, skipping account", "account", acc.ID, "error", err)
			continue
		}
		metrics.ItemsFetched.WithLabelValues(string(model.SourceAccountTimeline)).Add(float64(len(items)))
		for _, it := range items {
			if ctx.Err() != nil {
				return
			}
			it.AuthorTier = acc.Tier
			if err := w.Pipeline.Process(ctx, it); err != nil {
				slog.Error("timeline-sweep: process error", "id", it.ID, "error", err)
			}
		}
		processed++
	}
	slog.Info("timeline-sweep: completed", "accounts", processed)
}
