package model

import (
	"fmt"
	"hash/fnv"
	"time"
)

// Source identifies which acquisition path produced a content item.
type Source string

const (
	SourceKeywordSearch   Source = "keyword-search"
	SourceAccountTimeline Source = "account-timeline"
)

// PublicMetrics carries the engagement counters reported by the platform.
type PublicMetrics struct {
	Likes   int `json:"likes"`
	Reposts int `json:"reposts"`
	Replies int `json:"replies"`
}

// Total returns the sum of all engagement counters.
func (m PublicMetrics) Total() int {
	return m.Likes + m.Reposts + m.Replies
}

// ContentItem is a single post fetched from the platform. Immutable once fetched.
type ContentItem struct {
	ID             string        `json:"id"`
	Source         Source        `json:"source"`
	AuthorID       string        `json:"author_id"`
	AuthorTier     int           `json:"author_tier"` // 0=unclassified, 1, 2
	Text           string        `json:"text"`
	CreatedAt      time.Time     `json:"created_at"`
	PublicMetrics  PublicMetrics `json:"public_metrics"`
	MatchedKeyword string        `json:"matched_keyword,omitempty"`
}

// AlertTier classifies an opportunity's urgency.
type AlertTier string

const (
	TierImmediate AlertTier = "immediate"
	TierPriority  AlertTier = "priority"
	TierDigest    AlertTier = "digest"
	TierDiscard   AlertTier = "discard"
)

// ScoreBreakdown exposes the named sub-scores behind a final score.
type ScoreBreakdown struct {
	Relevance      float64 `json:"relevance"`
	Sentiment      float64 `json:"sentiment"`
	Engagement     float64 `json:"engagement"`
	TierBonus      float64 `json:"tier_bonus"`
	QualityPenalty float64 `json:"quality_penalty"`
	GateReason     string  `json:"gate_reason,omitempty"` // set when the quality gate rejected the item
}

// Signal is the external sentiment/engagement-potential judgment for a text,
// both normalized to [0,1].
type Signal struct {
	Sentiment           float64 `json:"sentiment"`
	EngagementPotential float64 `json:"engagement_potential"`
}

// NeutralSignal is used when no judge is available or the judge call failed.
func NeutralSignal() Signal {
	return Signal{Sentiment: 0.5, EngagementPotential: 0.5}
}

// GeneratedReply is a suggested reply produced by the content-generation collaborator.
type GeneratedReply struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Opportunity is a scored, tiered candidate for an engagement alert,
// derived from one content item. Never mutated after tiering except to
// attach feedback.
type Opportunity struct {
	ID             string          `json:"id"` // stable hash of the content id
	Item           ContentItem     `json:"item"`
	Score          float64         `json:"score"`
	ScoreBreakdown ScoreBreakdown  `json:"score_breakdown"`
	Tier           AlertTier       `json:"tier"`
	GeneratedReply *GeneratedReply `json:"generated_reply,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// OpportunityID derives the stable opportunity identifier for a content id.
func OpportunityID(contentID string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(contentID))
	return fmt.Sprintf("opp-%016x", h.Sum64())
}

// ReplyUsage records which generated reply variant (if any) a human used.
type ReplyUsage string

const (
	UsagePrimary ReplyUsage = "primary"
	UsageAlt1    ReplyUsage = "alt1"
	UsageAlt2    ReplyUsage = "alt2"
	UsageCustom  ReplyUsage = "custom"
	UsageNone    ReplyUsage = "none"
)

// FeedbackRecord is a human quality rating and/or reply-usage signal for an
// opportunity. A human may update their rating over time; the latest wins.
type FeedbackRecord struct {
	OpportunityID string     `json:"opportunity_id"`
	QualityRating int        `json:"quality_rating,omitempty"` // 1-5, 0 = unset
	ReplyUsage    ReplyUsage `json:"reply_usage,omitempty"`
	ReceivedAt    time.Time  `json:"received_at"`
}

// ScoringWeights is the process-wide scoring parameter set. Snapshots are
// immutable; the feedback recompute swaps in a fresh copy atomically.
type ScoringWeights struct {
	Relevance           float64 `json:"relevance"`
	Sentiment           float64 `json:"sentiment"`
	Engagement          float64 `json:"engagement"`
	TierBonus           float64 `json:"tier_bonus"`
	QualityPenaltyScale float64 `json:"quality_penalty_scale"`
}

// DefaultWeights seeds the engine before any feedback-driven recompute.
func DefaultWeights() ScoringWeights {
	return ScoringWeights{
		Relevance:           0.45,
		Sentiment:           0.25,
		Engagement:          0.30,
		TierBonus:           0.15,
		QualityPenaltyScale: 1.0,
	}
}
