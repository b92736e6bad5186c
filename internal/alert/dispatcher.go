package alert

import (
	"context"
	"log/slog"
	"sync"

	"nichewatch/internal/metrics"
	"nichewatch/internal/model"
)

// Result is the outcome of a dispatch attempt.
type Result string

const (
	ResultSent    Result = "sent"
	ResultSkipped Result = "skipped" // already alerted for this opportunity
	ResultFailed  Result = "failed"  // delivery failed, requeued for one retry
	ResultDropped Result = "dropped" // failed twice, recorded and abandoned
)

// Deliverer is the external delivery collaborator.
type Deliverer interface {
	Deliver(ctx context.Context, opp model.Opportunity) (bool, error)
}

// MarkerStore records dispatched-markers atomically and keeps durable
// failure records.
type MarkerStore interface {
	TryMarkDispatched(ctx context.Context, oppID string) (bool, error)
	ClearDispatched(ctx context.Context, oppID string) error
	RecordDispatchFailure(ctx context.Context, oppID, reason string) error
}

// Dispatcher guarantees at most one alert per opportunity id: the marker is
// checked-and-set atomically before the delivery handoff, so a duplicate
// cycle or a concurrent sweep can never produce two alerts for one
// opportunity. A failed delivery is retried once on the next cycle, then
// dropped with an explicit failure record.
type Dispatcher struct {
	deliverer Deliverer
	markers   MarkerStore

	mu       sync.Mutex
	attempts map[string]int
	retry    []model.Opportunity
}

func NewDispatcher(deliverer Deliverer, markers MarkerStore) *Dispatcher {
	return &Dispatcher{
		deliverer: deliverer,
		markers:   markers,
		attempts:  map[string]int{},
	}
}

// Dispatch hands one opportunity to delivery, enforcing at-most-once.
func (d *Dispatcher) Dispatch(ctx context.Context, opp model.Opportunity) Result {
	ok, err := d.markers.TryMarkDispatched(ctx, opp.ID)
	if err != nil {
		slog.Error("dispatch: marker check error", "opportunity", opp.ID, "error", err)
		return d.recordFailure(ctx, opp, err.Error())
	}
	if !ok {
		metrics.AlertsDispatched.WithLabelValues(string(ResultSkipped)).Inc()
		return ResultSkipped
	}

	delivered, err := d.deliverer.Deliver(ctx, opp)
	if err == nil && delivered {
		d.mu.Lock()
		delete(d.attempts, opp.ID)
		d.mu.Unlock()
		metrics.AlertsDispatched.WithLabelValues(string(ResultSent)).Inc()
		slog.Info("dispatch: alert sent", "opportunity", opp.ID, "tier", opp.Tier, "score", opp.Score)
		return ResultSent
	}

	reason := "delivery declined"
	if err != nil {
		reason = err.Error()
	}
	// clear the marker so the retry attempt can set it again
	if cerr := d.markers.ClearDispatched(ctx, opp.ID); cerr != nil {
		slog.Error("dispatch: clear marker error", "opportunity", opp.ID, "error", cerr)
	}
	return d.recordFailure(ctx, opp, reason)
}

func (d *Dispatcher) recordFailure(ctx context.Context, opp model.Opportunity, reason string) Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attempts[opp.ID]++
	if d.attempts[opp.ID] == 1 {
		d.retry = append(d.retry, opp)
		metrics.AlertsDispatched.WithLabelValues(string(ResultFailed)).Inc()
		slog.Warn("dispatch: delivery failed, requeued", "opportunity", opp.ID, "reason", reason)
		return ResultFailed
	}
	delete(d.attempts, opp.ID)
	metrics.AlertsDispatched.WithLabelValues(string(ResultDropped)).Inc()
	if err := d.markers.RecordDispatchFailure(ctx, opp.ID, reason); err != nil {
		slog.Error("dispatch: record failure error", "opportunity", opp.ID, "error", err)
	}
	slog.Error("dispatch: alert dropped after retry", "opportunity", opp.ID, "reason", reason)
	return ResultDropped
}

// RetryPending re-dispatches opportunities whose first delivery failed.
// Called once per acquisition cycle.
func (d *Dispatcher) RetryPending(ctx context.Context) {
	d.mu.Lock()
	pending := d.retry
	d.retry = nil
	d.mu.Unlock()
	for _, opp := range pending {
		if ctx.Err() != nil {
			// push unprocessed retries back for the next cycle
			d.mu.Lock()
			d.retry = append(d.retry, opp)
			d.mu.Unlock()
			return
		}
		d.Dispatch(ctx, opp)
	}
}
