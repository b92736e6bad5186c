package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"nichewatch/internal/ai"
	"nichewatch/internal/alert"
	"nichewatch/internal/dedup"
	"nichewatch/internal/metrics"
	"nichewatch/internal/model"
	"nichewatch/internal/scoring"
)

// TierLookup classifies an author id into an account tier (0 when untracked).
type TierLookup interface {
	AccountTier(accountID string) int
}

// OpportunityStore persists non-discarded opportunities.
type OpportunityStore interface {
	SaveOpportunity(ctx context.Context, opp model.Opportunity) error
}

// Pipeline is the shared downstream path both sweeps push raw items into:
// dedup -> score -> tier -> alert. Processing the same content item twice
// yields at most one opportunity.
type Pipeline struct {
	Dedup         dedup.Store
	Engine        *scoring.Engine
	Classifier    scoring.Classifier
	Dispatcher    *alert.Dispatcher
	Opportunities OpportunityStore
	Tiers         TierLookup
	Judge         ai.Judge          // optional; neutral signal when absent
	Replies       ai.ReplyGenerator // optional; alerts go out without a draft
	VoiceProfile  string
}

// Process runs one raw content item through the pipeline. Returns an error
// only for persistence failures; scoring outcomes (including discard) are
// not errors.
func (p *Pipeline) Process(ctx context.Context, item model.ContentItem) error {
	seen, err := p.Dedup.Seen(ctx, item.ID)
	if err != nil {
		return fmt.Errorf("pipeline: dedup check %s: %w", item.ID, err)
	}
	if seen {
		metrics.DedupHits.Inc()
		return nil
	}
	if err := p.Dedup.MarkSeen(ctx, item.ID); err != nil {
		return fmt.Errorf("pipeline: mark seen %s: %w", item.ID, err)
	}

	if item.AuthorTier == 0 && p.Tiers != nil {
		item.AuthorTier = p.Tiers.AccountTier(item.AuthorID)
	}

	sig := model.NeutralSignal()
	if p.Judge != nil {
		if s, err := p.Judge.Assess(ctx, item.Text); err == nil {
			sig = s
		} else {
			slog.Warn("pipeline: judge unavailable, using neutral signal", "id", item.ID, "error", err)
		}
	}

	score, breakdown := p.Engine.Score(item, sig)
	tier, final := p.Classifier.Classify(score, item.AuthorTier)
	metrics.Opportunities.WithLabelValues(string(tier)).Inc()
	if tier == model.TierDiscard {
		// dedup mark stays, so the item is never rescored
		slog.Debug("pipeline: discarded", "id", item.ID, "score", score, "gate", breakdown.GateReason)
		return nil
	}

	opp := model.Opportunity{
		ID:             model.OpportunityID(item.ID),
		Item:           item,
		Score:          final,
		ScoreBreakdown: breakdown,
		Tier:           tier,
		CreatedAt:      time.Now().UTC(),
	}
	if p.Replies != nil {
		if reply, err := p.Replies.GenerateReply(ctx, item, p.VoiceProfile); err == nil && reply.Text != "" {
			opp.GeneratedReply = &reply
		}
	}
	if err := p.Opportunities.SaveOpportunity(ctx, opp); err != nil {
		return fmt.Errorf("pipeline: save opportunity %s: %w", opp.ID, err)
	}

	p.Dispatcher.Dispatch(ctx, opp)
	return nil
}
