package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"nichewatch/internal/metrics"
	"nichewatch/internal/model"
	"nichewatch/internal/quota"
	"nichewatch/internal/xapi"

	"github.com/cenkalti/backoff/v4"
)

// Error taxonomy for source fetches. Callers skip-and-resume on ErrRateLimited,
// skip the current item on ErrTransient (retries already happened here), and
// halt the affected sweep on ErrFatal.
var (
	ErrRateLimited = errors.New("rate limited")
	ErrTransient   = errors.New("transient source failure")
	ErrFatal       = errors.New("fatal source failure")
)

// Source is the upstream read API the gateway guards.
type Source interface {
	SearchRecent(ctx context.Context, query string) ([]model.ContentItem, quota.Meta, error)
	UserTimeline(ctx context.Context, accountID string, since time.Time) ([]model.ContentItem, quota.Meta, error)
}

// Gateway wraps the source with quota checks, exponential backoff on
// transient failures, and dynamic quota correction from response metadata.
type Gateway struct {
	src     Source
	tracker *quota.Tracker

	backoffBase time.Duration
	backoffCap  time.Duration
	maxAttempts int
}

type Options struct {
	BackoffBase time.Duration
	BackoffCap  time.Duration
	MaxAttempts int
}

func New(src Source, tracker *quota.Tracker, opts Options) *Gateway {
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 2 * time.Second
	}
	if opts.BackoffCap <= 0 {
		opts.BackoffCap = time.Minute
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	return &Gateway{
		src:         src,
		tracker:     tracker,
		backoffBase: opts.BackoffBase,
		backoffCap:  opts.BackoffCap,
		maxAttempts: opts.MaxAttempts,
	}
}

// FetchByKeyword runs a keyword search through the quota/backoff discipline.
func (g *Gateway) FetchByKeyword(ctx context.Context, keyword string) ([]model.ContentItem, error) {
	items, err := g.call(ctx, quota.EndpointSearch, func(ctx context.Context) ([]model.ContentItem, quota.Meta, error) {
		return g.src.SearchRecent(ctx, keyword)
	})
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", keyword, err)
	}
	return items, nil
}

// FetchTimeline fetches an account's posts newer than now-sinceWindow.
func (g *Gateway) FetchTimeline(ctx context.Context, accountID string, sinceWindow time.Duration) ([]model.ContentItem, error) {
	since := time.Now().Add(-sinceWindow)
	items, err := g.call(ctx, quota.EndpointTimeline, func(ctx context.Context) ([]model.ContentItem, quota.Meta, error) {
		return g.src.UserTimeline(ctx, accountID, since)
	})
	if err != nil {
		return nil, fmt.Errorf("timeline %s: %w", accountID, err)
	}
	return items, nil
}

func (g *Gateway) call(ctx context.Context, ep quota.Endpoint, fn func(context.Context) ([]model.ContentItem, quota.Meta, error)) ([]model.ContentItem, error) {
	if !g.tracker.CanConsume(ep) {
		metrics.FetchTotal.WithLabelValues(string(ep), "rate_limited").Inc()
		return nil, ErrRateLimited
	}

	var items []model.ContentItem
	op := func() error {
		got, meta, err := fn(ctx)
		// Every completed call corrects the tracker, success or not.
		g.tracker.Observe(ep, meta)
		metrics.QuotaRemaining.WithLabelValues(string(ep)).Set(float64(g.tracker.Get(ep).Remaining))
		if err != nil {
			g.tracker.RecordFailure(ep)
			return g.classify(ep, err)
		}
		g.tracker.Consume(ep)
		g.tracker.RecordSuccess(ep)
		items = got
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = g.backoffBase
	bo.MaxInterval = g.backoffCap
	bo.Multiplier = 2
	bo.RandomizationFactor = 0.2
	bo.MaxElapsedTime = 0

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(g.maxAttempts-1)), ctx))
	if err != nil {
		outcome := "transient"
		switch {
		case errors.Is(err, ErrRateLimited):
			outcome = "rate_limited"
		case errors.Is(err, ErrFatal):
			outcome = "fatal"
		default:
			// retry ceiling exhausted; surface as transient so the caller
			// skips this cycle instead of blocking the scheduler
			err = fmt.Errorf("%w: %s", ErrTransient, err)
		}
		metrics.FetchTotal.WithLabelValues(string(ep), outcome).Inc()
		return nil, err
	}
	metrics.FetchTotal.WithLabelValues(string(ep), "ok").Inc()
	return items, nil
}

// classify maps a raw source error onto the gateway taxonomy. Returning a
// backoff.PermanentError stops retrying; any other error is retried.
func (g *Gateway) classify(ep quota.Endpoint, err error) error {
	var se *xapi.StatusError
	if errors.As(err, &se) {
		switch {
		case se.Code == 429:
			// Upstream said no; the Observe above already recorded the reset.
			return backoff.Permanent(ErrRateLimited)
		case se.Code == 401 || se.Code == 403:
			slog.Error("gateway: authorization failure", "endpoint", ep, "status", se.Code)
			return backoff.Permanent(fmt.Errorf("%w: status %d", ErrFatal, se.Code))
		case se.Code >= 500:
			return err
		default:
			// other 4xx are not retryable and not recoverable by waiting
			return backoff.Permanent(fmt.Errorf("%w: status %d", ErrFatal, se.Code))
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return backoff.Permanent(fmt.Errorf("%w: %s", ErrTransient, err))
	}
	// network-level failure
	return err
}
