package scoring

import (
	"math"
	"strings"
	"sync/atomic"

	"nichewatch/internal/model"
	"nichewatch/internal/watchlist"
)

// Config tunes the engine's fixed parameters. Weights are separate: they are
// the feedback-adjusted part of scoring.
type Config struct {
	MinSentiment  float64 // sentiment floor below which items are filtered
	HighRelevance float64 // relevance that overrides the sentiment floor
	EngagementCap int     // metric total treated as saturated engagement
}

// Engine turns a content item plus the external judge signal into a score in
// [0,1] with a structured breakdown. Deterministic given its inputs and the
// current weights snapshot. Weights are owned here: read freely, replaced
// only by the feedback recompute via SetWeights.
type Engine struct {
	core    map[string]float64
	general map[string]float64
	cfg     Config
	weights atomic.Pointer[model.ScoringWeights]
}

func NewEngine(wl *watchlist.Watchlist, cfg Config) *Engine {
	if cfg.MinSentiment == 0 {
		cfg.MinSentiment = 0.4
	}
	if cfg.HighRelevance == 0 {
		cfg.HighRelevance = 0.85
	}
	if cfg.EngagementCap <= 0 {
		cfg.EngagementCap = 500
	}
	e := &Engine{
		core:    wl.Vocabulary.Core,
		general: wl.Vocabulary.General,
		cfg:     cfg,
	}
	w := model.DefaultWeights()
	e.weights.Store(&w)
	return e
}

// Weights returns the current snapshot.
func (e *Engine) Weights() model.ScoringWeights {
	return *e.weights.Load()
}

// SetWeights atomically swaps in a new snapshot.
func (e *Engine) SetWeights(w model.ScoringWeights) {
	e.weights.Store(&w)
}

// Score runs the ordered stage pipeline: gate, relevance, sentiment,
// engagement, tier bonus. Gate failures short-circuit to score 0.
func (e *Engine) Score(item model.ContentItem, sig model.Signal) (float64, model.ScoreBreakdown) {
	w := e.Weights()
	var bd model.ScoreBreakdown

	gate := qualityGate(item.Text, item.AuthorTier > 0)
	if gate.rejected {
		bd.GateReason = gate.reason
		bd.QualityPenalty = 1
		return 0, bd
	}
	bd.QualityPenalty = gate.penalty

	bd.Relevance = e.relevance(item)
	bd.Sentiment = combineSignal(sig)
	bd.Engagement = e.engagement(item.PublicMetrics)
	bd.TierBonus = tierBonus(item.AuthorTier, w.TierBonus)

	// neutral/negative content is filtered out unless relevance is very high
	if sig.Sentiment < e.cfg.MinSentiment && bd.Relevance < e.cfg.HighRelevance {
		bd.GateReason = "sentiment-floor"
		return 0, bd
	}

	sum := w.Relevance*bd.Relevance +
		w.Sentiment*bd.Sentiment +
		w.Engagement*bd.Engagement +
		bd.TierBonus -
		w.QualityPenaltyScale*bd.QualityPenalty
	return clamp01(sum), bd
}

// relevance measures specificity-weighted vocabulary overlap. Core domain
// terms dominate; generic terms contribute less. An empty matched keyword
// just means no keyword bonus — general relevance still applies.
func (e *Engine) relevance(item model.ContentItem) float64 {
	lower := strings.ToLower(item.Text)
	var score float64
	for term, weight := range e.core {
		if strings.Contains(lower, term) {
			score += weight
		}
	}
	for term, weight := range e.general {
		if strings.Contains(lower, term) {
			score += weight
		}
	}
	if kw := strings.ToLower(strings.TrimSpace(item.MatchedKeyword)); kw != "" && strings.Contains(lower, kw) {
		score += 0.15
	}
	return clamp01(score)
}

// engagement log-scales the public metric total so outliers don't dominate.
// Items with no metrics get the minimum, not a division by zero.
func (e *Engine) engagement(m model.PublicMetrics) float64 {
	const floor = 0.05
	total := m.Total()
	if total <= 0 {
		return floor
	}
	v := math.Log1p(float64(total)) / math.Log1p(float64(e.cfg.EngagementCap))
	if v < floor {
		return floor
	}
	return clamp01(v)
}

// combineSignal folds the judge's two values into the sentiment sub-score.
func combineSignal(sig model.Signal) float64 {
	return clamp01(0.7*sig.Sentiment + 0.3*sig.EngagementPotential)
}

func tierBonus(authorTier int, bonus float64) float64 {
	switch authorTier {
	case 1:
		return bonus
	case 2:
		return bonus / 2
	default:
		return 0
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
