package alert

import (
	"context"
	"errors"
	"testing"

	"nichewatch/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memMarkers is an in-memory MarkerStore with the same check-and-set
// semantics as the redis SETNX marker.
type memMarkers struct {
	dispatched map[string]bool
	failures   map[string]string
}

func newMemMarkers() *memMarkers {
	return &memMarkers{dispatched: map[string]bool{}, failures: map[string]string{}}
}

func (m *memMarkers) TryMarkDispatched(_ context.Context, oppID string) (bool, error) {
	if m.dispatched[oppID] {
		return false, nil
	}
	m.dispatched[oppID] = true
	return true, nil
}

func (m *memMarkers) ClearDispatched(_ context.Context, oppID string) error {
	delete(m.dispatched, oppID)
	return nil
}

func (m *memMarkers) RecordDispatchFailure(_ context.Context, oppID, reason string) error {
	m.failures[oppID] = reason
	return nil
}

// fakeDeliverer returns canned outcomes in order and counts calls.
type fakeDeliverer struct {
	calls    int
	outcomes []error // nil = delivered
}

func (f *fakeDeliverer) Deliver(context.Context, model.Opportunity) (bool, error) {
	idx := f.calls
	if idx >= len(f.outcomes) {
		idx = len(f.outcomes) - 1
	}
	f.calls++
	if err := f.outcomes[idx]; err != nil {
		return false, err
	}
	return true, nil
}

func opp(id string) model.Opportunity {
	return model.Opportunity{ID: id, Tier: model.TierImmediate, Score: 0.9}
}

func TestDispatchAtMostOnce(t *testing.T) {
	ctx := context.Background()
	del := &fakeDeliverer{outcomes: []error{nil}}
	d := NewDispatcher(del, newMemMarkers())

	require.Equal(t, ResultSent, d.Dispatch(ctx, opp("opp-1")))

	// the same opportunity surfacing again (overlapping sweeps, a rerun
	// cycle) must not alert twice
	assert.Equal(t, ResultSkipped, d.Dispatch(ctx, opp("opp-1")))
	assert.Equal(t, ResultSkipped, d.Dispatch(ctx, opp("opp-1")))
	assert.Equal(t, 1, del.calls)
}

func TestDispatchFailureRequeuedThenSent(t *testing.T) {
	ctx := context.Background()
	del := &fakeDeliverer{outcomes: []error{errors.New("webhook timeout"), nil}}
	markers := newMemMarkers()
	d := NewDispatcher(del, markers)

	require.Equal(t, ResultFailed, d.Dispatch(ctx, opp("opp-1")))
	// the marker was cleared, so the retry can claim it again
	assert.False(t, markers.dispatched["opp-1"])

	d.RetryPending(ctx)
	assert.Equal(t, 2, del.calls)
	assert.True(t, markers.dispatched["opp-1"])
	assert.Empty(t, markers.failures)

	// retry queue is drained
	d.RetryPending(ctx)
	assert.Equal(t, 2, del.calls)
}

func TestDispatchDroppedAfterSecondFailure(t *testing.T) {
	ctx := context.Background()
	del := &fakeDeliverer{outcomes: []error{errors.New("webhook down")}}
	markers := newMemMarkers()
	d := NewDispatcher(del, markers)

	require.Equal(t, ResultFailed, d.Dispatch(ctx, opp("opp-1")))
	d.RetryPending(ctx)

	assert.Equal(t, 2, del.calls)
	assert.Equal(t, "webhook down", markers.failures["opp-1"])
}

func TestDeliveryDeclinedTreatedAsFailure(t *testing.T) {
	ctx := context.Background()
	// Deliver returns (false, nil): the endpoint answered but refused.
	del := &declinedDeliverer{}
	d := NewDispatcher(del, newMemMarkers())

	assert.Equal(t, ResultFailed, d.Dispatch(ctx, opp("opp-1")))
}

type declinedDeliverer struct{}

func (declinedDeliverer) Deliver(context.Context, model.Opportunity) (bool, error) {
	return false, nil
}

func TestRetryPendingStopsOnCancel(t *testing.T) {
	del := &fakeDeliverer{outcomes: []error{errors.New("down")}}
	d := NewDispatcher(del, newMemMarkers())

	require.Equal(t, ResultFailed, d.Dispatch(context.Background(), opp("opp-1")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.RetryPending(ctx)
	assert.Equal(t, 1, del.calls, "no delivery attempts after cancellation")

	// the untouched retry survives for the next cycle
	d.RetryPending(context.Background())
	assert.Equal(t, 2, del.calls)
}
