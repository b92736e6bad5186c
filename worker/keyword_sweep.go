package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"nichewatch/internal/gateway"
	"nichewatch/internal/metrics"
	"nichewatch/internal/model"
	"nichewatch/internal/rotation"
)

// Fetcher is the rate-limited gateway surface the sweeps consume.
type Fetcher interface {
	FetchByKeyword(ctx context.Context, keyword string) ([]model.ContentItem, error)
	FetchTimeline(ctx context.Context, accountID string, sinceWindow time.Duration) ([]model.ContentItem, error)
}

// KeywordSweep periodically picks keywords from the rotation pool and runs
// them through the gateway and pipeline. A rate-limited cycle stops early
// and resumes on the next tick; it never spin-retries.
type KeywordSweep struct {
	Gateway  Fetcher
	Rotator  *rotation.Rotator
	Pipeline *Pipeline
	Interval time.Duration
	Count    int // keywords per sweep

	halted bool // set on a fatal source error; operator intervention required
}

func (w *KeywordSweep) Start(ctx context.Context) error {
	if w.Interval <= 0 {
		w.Interval = 15 * time.Minute
	}
	if w.Count <= 0 {
		w.Count = 5
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

func (w *KeywordSweep) runOnce(ctx context.Context) {
	if w.halted {
		slog.Warn("keyword-sweep: halted by fatal source error, skipping cycle")
		return
	}
	// finish the cycle with pending marks durably flushed
	defer func() {
		if err := w.Pipeline.Dedup.Flush(context.WithoutCancel(ctx)); err != nil {
			slog.Error("keyword-sweep: dedup flush error", "error", err)
		}
	}()

	w.Pipeline.Dispatcher.RetryPending(ctx)

	keywords := w.Rotator.Next(w.Count)
	processed := 0
	for _, kw := range keywords {
		if ctx.Err() != nil {
			return
		}
		items, err := w.Gateway.FetchByKeyword(ctx, kw)
		switch {
		case errors.Is(err, gateway.ErrRateLimited):
			slog.Info("keyword-sweep: quota exhausted, stopping cycle early", "keyword", kw)
			return
		case errors.Is(err, gateway.ErrFatal):
			slog.Error("keyword-sweep: fatal source error, halting sweep", "keyword", kw, "error", err)
			w.halted = true
			return
		case err != nil:
			slog.Warn("keyword-sweep: fetch failed, skipping keyword", "keyword", kw, "error", err)
			continue
		}
		metrics.ItemsFetched.WithLabelValues(string(model.SourceKeywordSearch)).Add(float64(len(items)))
		for _, it := range items {
			if ctx.Err() != nil {
				return
			}
			if err := w.Pipeline.Process(ctx, it); err != nil {
				slog.Error("keyword-sweep: process error", "id", it.ID, "error", err)
				continue
			}
			processed++
		}
	}
	slog.Info("keyword-sweep: completed", "keywords", len(keywords), "processed", processed)
}
