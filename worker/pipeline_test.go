package worker

import (
	"context"
	"sync"
	"testing"

	"nichewatch/internal/alert"
	"nichewatch/internal/dedup"
	"nichewatch/internal/model"
	"nichewatch/internal/scoring"
	"nichewatch/internal/watchlist"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingDeliverer accepts every delivery and counts them.
type countingDeliverer struct {
	mu    sync.Mutex
	calls int
	last  model.Opportunity
}

func (d *countingDeliverer) Deliver(_ context.Context, opp model.Opportunity) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	d.last = opp
	return true, nil
}

// memMarkers mirrors the redis SETNX dispatched-marker semantics in memory.
type memMarkers struct {
	mu         sync.Mutex
	dispatched map[string]bool
}

func (m *memMarkers) TryMarkDispatched(_ context.Context, oppID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dispatched[oppID] {
		return false, nil
	}
	m.dispatched[oppID] = true
	return true, nil
}

func (m *memMarkers) ClearDispatched(_ context.Context, oppID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.dispatched, oppID)
	return nil
}

func (m *memMarkers) RecordDispatchFailure(context.Context, string, string) error { return nil }

// oppStore collects saved opportunities.
type oppStore struct {
	mu    sync.Mutex
	saved []model.Opportunity
}

func (s *oppStore) SaveOpportunity(_ context.Context, opp model.Opportunity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, opp)
	return nil
}

func monitoringInputs() *watchlist.Watchlist {
	wl := &watchlist.Watchlist{}
	wl.Vocabulary.Core = map[string]float64{
		"unichain":       0.5,
		"v4 hooks":       0.5,
		"mev protection": 0.4,
	}
	wl.Vocabulary.General = map[string]float64{"defi": 0.15}
	wl.Pools = map[string][]string{
		"core": {"unichain", "v4 hooks", "mev protection", "hook architecture"},
	}
	wl.Accounts.Tier1 = []string{"alice_builds"}
	wl.Accounts.Tier2 = []string{"bob_research"}
	return wl
}

func newTestPipeline(t *testing.T) (*Pipeline, *oppStore, *countingDeliverer) {
	t.Helper()
	wl := monitoringInputs()
	store := &oppStore{}
	del := &countingDeliverer{}
	return &Pipeline{
		Dedup:         dedup.NewMemoryStore(),
		Engine:        scoring.NewEngine(wl, scoring.Config{}),
		Classifier:    scoring.DefaultClassifier(),
		Dispatcher:    alert.NewDispatcher(del, &memMarkers{dispatched: map[string]bool{}}),
		Opportunities: store,
		Tiers:         wl,
	}, store, del
}

func discussionItem(id string) model.ContentItem {
	return model.ContentItem{
		ID:             id,
		Source:         model.SourceKeywordSearch,
		AuthorID:       "42",
		Text:           "Anyone tried unichain hooks for MEV protection? Curious about real latency.",
		MatchedKeyword: "unichain",
	}
}

func TestProcessProducesOneOpportunityAndOneAlert(t *testing.T) {
	ctx := context.Background()
	p, store, del := newTestPipeline(t)

	require.NoError(t, p.Process(ctx, discussionItem("T1")))

	require.Len(t, store.saved, 1)
	opp := store.saved[0]
	assert.Equal(t, model.OpportunityID("T1"), opp.ID)
	assert.Greater(t, opp.Score, 0.0)
	assert.NotEqual(t, model.TierDiscard, opp.Tier)
	assert.Equal(t, 1, del.calls)
	assert.Equal(t, opp.ID, del.last.ID)
}

func TestProcessDeduplicatesAcrossSources(t *testing.T) {
	ctx := context.Background()
	p, store, del := newTestPipeline(t)

	// the same post arrives once via search and once via a timeline sweep
	first := discussionItem("T1")
	second := discussionItem("T1")
	second.Source = model.SourceAccountTimeline
	second.MatchedKeyword = ""

	require.NoError(t, p.Process(ctx, first))
	require.NoError(t, p.Process(ctx, second))

	assert.Len(t, store.saved, 1, "one content item, one opportunity")
	assert.Equal(t, 1, del.calls)
}

func TestProcessDiscardedItemStaysSeen(t *testing.T) {
	ctx := context.Background()
	p, store, del := newTestPipeline(t)

	promo := model.ContentItem{
		ID:   "T2",
		Text: "Don't miss out! Join now for massive gains on the best unichain platform!",
	}
	require.NoError(t, p.Process(ctx, promo))
	assert.Empty(t, store.saved)
	assert.Zero(t, del.calls)

	// a rescore can never resurrect it: the dedup mark short-circuits
	require.NoError(t, p.Process(ctx, promo))
	assert.Empty(t, store.saved)
}

func TestProcessResolvesAuthorTierFromWatchlist(t *testing.T) {
	ctx := context.Background()
	p, store, _ := newTestPipeline(t)

	item := discussionItem("T3")
	item.AuthorID = "alice_builds"
	require.NoError(t, p.Process(ctx, item))

	require.Len(t, store.saved, 1)
	assert.Equal(t, 1, store.saved[0].Item.AuthorTier)
	assert.Greater(t, store.saved[0].ScoreBreakdown.TierBonus, 0.0)
}

func TestProcessKeepsPresetAuthorTier(t *testing.T) {
	ctx := context.Background()
	p, store, _ := newTestPipeline(t)

	// timeline sweeps stamp the tier before handing off; the lookup must not
	// overwrite it
	item := discussionItem("T4")
	item.AuthorID = "unknown-to-watchlist"
	item.AuthorTier = 2
	require.NoError(t, p.Process(ctx, item))

	require.Len(t, store.saved, 1)
	assert.Equal(t, 2, store.saved[0].Item.AuthorTier)
}
