package quota

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanConsumeExhaustedUntilReset(t *testing.T) {
	tr := NewTracker()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }

	reset := now.Add(10 * time.Minute)
	tr.Observe(EndpointSearch, Meta{Limit: 60, Remaining: 0, ResetAt: reset})

	assert.False(t, tr.CanConsume(EndpointSearch))

	// still inside the window
	now = reset.Add(-time.Second)
	assert.False(t, tr.CanConsume(EndpointSearch))

	// window passed: lazy rollover back to the full limit
	now = reset.Add(time.Second)
	assert.True(t, tr.CanConsume(EndpointSearch))
	st := tr.Get(EndpointSearch)
	assert.Equal(t, 60, st.Remaining)
	assert.True(t, st.WindowResetAt.IsZero())
}

func TestConsumeDecrementsWithinBounds(t *testing.T) {
	tr := NewTracker()
	tr.Observe(EndpointTimeline, Meta{Limit: 2, Remaining: 2, ResetAt: time.Now().Add(time.Hour)})

	tr.Consume(EndpointTimeline)
	tr.Consume(EndpointTimeline)
	tr.Consume(EndpointTimeline) // already at zero; must not go negative

	st := tr.Get(EndpointTimeline)
	assert.Equal(t, 0, st.Remaining)
}

func TestObserveOverridesLocalEstimates(t *testing.T) {
	tr := NewTracker()
	// local default for search is wrong by an order of magnitude
	require.Equal(t, DefaultLimits[EndpointSearch], tr.Get(EndpointSearch).Limit)

	reset := time.Now().Add(15 * time.Minute)
	tr.Observe(EndpointSearch, Meta{Limit: 450, Remaining: 449, ResetAt: reset})

	st := tr.Get(EndpointSearch)
	assert.Equal(t, 450, st.Limit)
	assert.Equal(t, 449, st.Remaining)
	assert.Equal(t, reset.Unix(), st.WindowResetAt.Unix())

	// a later authoritative value wins again, even when lower
	tr.Observe(EndpointSearch, Meta{Limit: 450, Remaining: 3, ResetAt: reset})
	assert.Equal(t, 3, tr.Get(EndpointSearch).Remaining)
}

func TestObserveIgnoresEmptyMeta(t *testing.T) {
	tr := NewTracker()
	before := tr.Get(EndpointSearch)
	tr.Observe(EndpointSearch, Meta{})
	assert.Equal(t, before, tr.Get(EndpointSearch))
}

func TestObserveClampsRemainingToLimit(t *testing.T) {
	tr := NewTracker()
	tr.Observe(EndpointSearch, Meta{Limit: 10, Remaining: 25})
	assert.Equal(t, 10, tr.Get(EndpointSearch).Remaining)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	tr := NewTracker()
	reset := time.Now().Add(time.Hour).Truncate(time.Second)
	tr.Observe(EndpointSearch, Meta{Limit: 99, Remaining: 7, ResetAt: reset})
	tr.RecordFailure(EndpointSearch)

	b, err := tr.Snapshot()
	require.NoError(t, err)

	fresh := NewTracker()
	require.NoError(t, fresh.Restore(b))
	st := fresh.Get(EndpointSearch)
	assert.Equal(t, 99, st.Limit)
	assert.Equal(t, 7, st.Remaining)
	assert.Equal(t, 1, st.ConsecutiveFailures)
	// timeline endpoint keeps its defaults
	assert.Equal(t, DefaultLimits[EndpointTimeline], fresh.Get(EndpointTimeline).Limit)
}

func TestFailureCounters(t *testing.T) {
	tr := NewTracker()
	tr.RecordFailure(EndpointSearch)
	tr.RecordFailure(EndpointSearch)
	assert.Equal(t, 2, tr.Get(EndpointSearch).ConsecutiveFailures)
	tr.RecordSuccess(EndpointSearch)
	assert.Equal(t, 0, tr.Get(EndpointSearch).ConsecutiveFailures)
}
