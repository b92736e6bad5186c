package worker

import (
	"context"
	"testing"
	"time"

	"nichewatch/internal/gateway"
	"nichewatch/internal/model"
	"nichewatch/internal/rotation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedFetcher plays canned responses in call order; the last entry
// repeats once the script runs out.
type scriptedFetcher struct {
	calls     int
	responses []fetchResponse
}

type fetchResponse struct {
	items []model.ContentItem
	err   error
}

func (f *scriptedFetcher) next() ([]model.ContentItem, error) {
	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	r := f.responses[idx]
	return r.items, r.err
}

func (f *scriptedFetcher) FetchByKeyword(context.Context, string) ([]model.ContentItem, error) {
	return f.next()
}

func (f *scriptedFetcher) FetchTimeline(context.Context, string, time.Duration) ([]model.ContentItem, error) {
	return f.next()
}

func newKeywordSweep(t *testing.T, fetcher Fetcher, count int) (*KeywordSweep, *oppStore) {
	t.Helper()
	p, store, _ := newTestPipeline(t)
	return &KeywordSweep{
		Gateway:  fetcher,
		Rotator:  rotation.New(monitoringInputs(), rotation.StrategyFocused, 1),
		Pipeline: p,
		Count:    count,
	}, store
}

func TestKeywordSweepProcessesFetchedItems(t *testing.T) {
	fetcher := &scriptedFetcher{responses: []fetchResponse{
		{items: []model.ContentItem{discussionItem("T1")}},
		{items: []model.ContentItem{discussionItem("T2")}},
	}}
	w, store := newKeywordSweep(t, fetcher, 2)

	w.runOnce(context.Background())

	assert.Equal(t, 2, fetcher.calls)
	assert.Len(t, store.saved, 2)
}

func TestKeywordSweepStopsEarlyWhenRateLimited(t *testing.T) {
	fetcher := &scriptedFetcher{responses: []fetchResponse{
		{items: []model.ContentItem{discussionItem("T1")}},
		{err: gateway.ErrRateLimited},
	}}
	w, store := newKeywordSweep(t, fetcher, 3)

	w.runOnce(context.Background())

	assert.Equal(t, 2, fetcher.calls, "remaining keywords are abandoned for this cycle")
	assert.Len(t, store.saved, 1)
	assert.False(t, w.halted, "rate limiting is not fatal; the next tick runs normally")

	// next cycle resumes
	fetcher.responses = []fetchResponse{{items: []model.ContentItem{discussionItem("T3")}}}
	fetcher.calls = 0
	w.runOnce(context.Background())
	assert.Greater(t, fetcher.calls, 0)
}

func TestKeywordSweepTransientSkipsKeywordOnly(t *testing.T) {
	fetcher := &scriptedFetcher{responses: []fetchResponse{
		{err: gateway.ErrTransient},
		{items: []model.ContentItem{discussionItem("T1")}},
	}}
	w, store := newKeywordSweep(t, fetcher, 2)

	w.runOnce(context.Background())

	assert.Equal(t, 2, fetcher.calls)
	assert.Len(t, store.saved, 1)
}

func TestKeywordSweepHaltsOnFatal(t *testing.T) {
	fetcher := &scriptedFetcher{responses: []fetchResponse{{err: gateway.ErrFatal}}}
	w, _ := newKeywordSweep(t, fetcher, 2)

	w.runOnce(context.Background())
	require.True(t, w.halted)
	assert.Equal(t, 1, fetcher.calls)

	// once halted, later cycles do not touch the source
	w.runOnce(context.Background())
	assert.Equal(t, 1, fetcher.calls)
}

func TestKeywordSweepStopsOnCancel(t *testing.T) {
	fetcher := &scriptedFetcher{responses: []fetchResponse{
		{items: []model.ContentItem{discussionItem("T1")}},
	}}
	w, store := newKeywordSweep(t, fetcher, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.runOnce(ctx)

	assert.Zero(t, fetcher.calls)
	assert.Empty(t, store.saved)
}

func TestTimelineSweepStampsAccountTier(t *testing.T) {
	item := discussionItem("T1")
	item.MatchedKeyword = ""
	item.Source = model.SourceAccountTimeline
	fetcher := &scriptedFetcher{responses: []fetchResponse{{items: []model.ContentItem{item}}}}

	p, store, _ := newTestPipeline(t)
	w := &TimelineSweep{
		Gateway:  fetcher,
		Pipeline: p,
		Accounts: []TrackedAccount{{ID: "alice_builds", Tier: 1}},
	}
	w.runOnce(context.Background())

	require.Len(t, store.saved, 1)
	assert.Equal(t, 1, store.saved[0].Item.AuthorTier)
	assert.Greater(t, store.saved[0].ScoreBreakdown.TierBonus, 0.0)
}

func TestTimelineSweepSkipsRemainingAccountsWhenRateLimited(t *testing.T) {
	fetcher := &scriptedFetcher{responses: []fetchResponse{
		{items: []model.ContentItem{discussionItem("T1")}},
		{err: gateway.ErrRateLimited},
	}}
	p, store, _ := newTestPipeline(t)
	w := &TimelineSweep{
		Gateway:  fetcher,
		Pipeline: p,
		Accounts: []TrackedAccount{
			{ID: "alice_builds", Tier: 1},
			{ID: "bob_research", Tier: 2},
			{ID: "carol_dev", Tier: 2},
		},
	}
	w.runOnce(context.Background())

	assert.Equal(t, 2, fetcher.calls)
	assert.Len(t, store.saved, 1)
	assert.False(t, w.halted)
}

func TestCrossSweepDeduplication(t *testing.T) {
	// the same post is found by keyword search and then by a timeline sweep;
	// exactly one alert must go out
	p, store, del := newTestPipeline(t)

	kwFetcher := &scriptedFetcher{responses: []fetchResponse{
		{items: []model.ContentItem{discussionItem("T1")}},
	}}
	kw := &KeywordSweep{
		Gateway:  kwFetcher,
		Rotator:  rotation.New(monitoringInputs(), rotation.StrategyFocused, 1),
		Pipeline: p,
		Count:    1,
	}

	timelineItem := discussionItem("T1")
	timelineItem.MatchedKeyword = ""
	timelineItem.Source = model.SourceAccountTimeline
	tlFetcher := &scriptedFetcher{responses: []fetchResponse{{items: []model.ContentItem{timelineItem}}}}
	tl := &TimelineSweep{
		Gateway:  tlFetcher,
		Pipeline: p,
		Accounts: []TrackedAccount{{ID: "42", Tier: 0}},
	}

	kw.runOnce(context.Background())
	tl.runOnce(context.Background())

	assert.Len(t, store.saved, 1)
	assert.Equal(t, 1, del.calls)
}
