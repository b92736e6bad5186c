package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"nichewatch/internal/metrics"
	"nichewatch/internal/model"
)

// Store is the persistence the ingestor needs: feedback records plus the
// stored opportunities they refer to.
type Store interface {
	SaveFeedback(ctx context.Context, rec model.FeedbackRecord) error
	FeedbackSince(ctx context.Context, cutoff time.Time) ([]model.FeedbackRecord, error)
	GetOpportunity(ctx context.Context, id string) (model.Opportunity, bool, error)
	SaveWeights(ctx context.Context, w model.ScoringWeights) error
}

// WeightSink receives the freshly recomputed snapshot (the scoring engine).
type WeightSink interface {
	Weights() model.ScoringWeights
	SetWeights(w model.ScoringWeights)
}

// Per-weight clamps keep feedback-driven drift bounded.
const (
	factorMin  = 0.10
	factorMax  = 0.60
	bonusMin   = 0.05
	bonusMax   = 0.25
	penaltyMin = 0.50
	penaltyMax = 2.00

	nudgeStep = 0.05
)

// Ingestor records human feedback and periodically recomputes scoring
// weights from it. Recompute is advisory tuning: with insufficient data the
// weights are left unchanged.
type Ingestor struct {
	store      Store
	sink       WeightSink
	window     time.Duration
	minSamples int
}

func NewIngestor(store Store, sink WeightSink, window time.Duration, minSamples int) *Ingestor {
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	if minSamples <= 0 {
		minSamples = 10
	}
	return &Ingestor{store: store, sink: sink, window: window, minSamples: minSamples}
}

// RecordFeedback validates and stores one feedback record. The latest rating
// per opportunity wins; humans may revise over time.
func (i *Ingestor) RecordFeedback(ctx context.Context, rec model.FeedbackRecord) error {
	if rec.OpportunityID == "" {
		return fmt.Errorf("feedback: missing opportunity id")
	}
	if rec.QualityRating != 0 && (rec.QualityRating < 1 || rec.QualityRating > 5) {
		return fmt.Errorf("feedback: quality rating %d out of range 1-5", rec.QualityRating)
	}
	if rec.QualityRating == 0 && rec.ReplyUsage == "" {
		return fmt.Errorf("feedback: empty record")
	}
	switch rec.ReplyUsage {
	case "", model.UsagePrimary, model.UsageAlt1, model.UsageAlt2, model.UsageCustom, model.UsageNone:
	default:
		return fmt.Errorf("feedback: unknown reply usage %q", rec.ReplyUsage)
	}
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	if err := i.store.SaveFeedback(ctx, rec); err != nil {
		return fmt.Errorf("feedback: save: %w", err)
	}
	metrics.FeedbackRecorded.Inc()
	slog.Info("feedback: recorded", "opportunity", rec.OpportunityID,
		"rating", rec.QualityRating, "usage", rec.ReplyUsage)
	return nil
}

// sample pairs a feedback verdict with the breakdown it rated.
type sample struct {
	breakdown model.ScoreBreakdown
	good      bool
	bad       bool
}

// RecomputeWeights aggregates the recent feedback window into a new weights
// snapshot: each weight is nudged toward factors correlated with high
// ratings or reply usage, bounded by fixed clamps, and swapped in atomically.
func (i *Ingestor) RecomputeWeights(ctx context.Context) (model.ScoringWeights, error) {
	current := i.sink.Weights()

	recs, err := i.store.FeedbackSince(ctx, time.Now().Add(-i.window))
	if err != nil {
		metrics.WeightRecomputes.WithLabelValues("error").Inc()
		return current, fmt.Errorf("feedback: load window: %w", err)
	}

	samples := make([]sample, 0, len(recs))
	for _, rec := range recs {
		opp, found, err := i.store.GetOpportunity(ctx, rec.OpportunityID)
		if err != nil {
			metrics.WeightRecomputes.WithLabelValues("error").Inc()
			return current, fmt.Errorf("feedback: load opportunity %s: %w", rec.OpportunityID, err)
		}
		if !found {
			continue
		}
		samples = append(samples, sample{
			breakdown: opp.ScoreBreakdown,
			good:      rec.QualityRating >= 4 || (rec.ReplyUsage != "" && rec.ReplyUsage != model.UsageNone),
			bad:       rec.QualityRating != 0 && rec.QualityRating <= 2,
		})
	}

	if len(samples) < i.minSamples {
		metrics.WeightRecomputes.WithLabelValues("skipped").Inc()
		slog.Info("feedback: recompute skipped, insufficient data",
			"samples", len(samples), "required", i.minSamples)
		return current, nil
	}

	next := reduceWeights(current, samples)
	if err := i.store.SaveWeights(ctx, next); err != nil {
		metrics.WeightRecomputes.WithLabelValues("error").Inc()
		return current, fmt.Errorf("feedback: persist weights: %w", err)
	}
	i.sink.SetWeights(next)
	metrics.WeightRecomputes.WithLabelValues("updated").Inc()
	slog.Info("feedback: weights recomputed", "samples", len(samples),
		"relevance", next.Relevance, "sentiment", next.Sentiment,
		"engagement", next.Engagement, "tier_bonus", next.TierBonus)
	return next, nil
}

// reduceWeights is the pure reduce over the feedback window: it nudges each
// weight by the gap between the factor's average among well-rated and
// poorly-rated opportunities.
func reduceWeights(w model.ScoringWeights, samples []sample) model.ScoringWeights {
	goodAvg := averages(samples, func(s sample) bool { return s.good })
	badAvg := averages(samples, func(s sample) bool { return s.bad })

	w.Relevance = clampRange(w.Relevance+nudge(goodAvg.Relevance, badAvg.Relevance), factorMin, factorMax)
	w.Sentiment = clampRange(w.Sentiment+nudge(goodAvg.Sentiment, badAvg.Sentiment), factorMin, factorMax)
	w.Engagement = clampRange(w.Engagement+nudge(goodAvg.Engagement, badAvg.Engagement), factorMin, factorMax)
	w.TierBonus = clampRange(w.TierBonus+nudge(goodAvg.TierBonus, badAvg.TierBonus), bonusMin, bonusMax)
	// the penalty works the other way: if poorly-rated items carried higher
	// penalties, the penalty was pointing the right way; scale it up
	w.QualityPenaltyScale = clampRange(w.QualityPenaltyScale+nudge(badAvg.QualityPenalty, goodAvg.QualityPenalty), penaltyMin, penaltyMax)
	return w
}

func averages(samples []sample, pick func(sample) bool) model.ScoreBreakdown {
	var sum model.ScoreBreakdown
	n := 0
	for _, s := range samples {
		if !pick(s) {
			continue
		}
		n++
		sum.Relevance += s.breakdown.Relevance
		sum.Sentiment += s.breakdown.Sentiment
		sum.Engagement += s.breakdown.Engagement
		sum.TierBonus += s.breakdown.TierBonus
		sum.QualityPenalty += s.breakdown.QualityPenalty
	}
	if n == 0 {
		return model.ScoreBreakdown{}
	}
	f := float64(n)
	sum.Relevance /= f
	sum.Sentiment /= f
	sum.Engagement /= f
	sum.TierBonus /= f
	sum.QualityPenalty /= f
	return sum
}

// nudge converts the good/bad gap for one factor into a bounded step.
func nudge(good, bad float64) float64 {
	gap := good - bad
	if gap > 1 {
		gap = 1
	}
	if gap < -1 {
		gap = -1
	}
	return nudgeStep * gap
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
