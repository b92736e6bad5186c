package scoring

import "nichewatch/internal/model"

// Classifier maps a score (plus the author's account tier) to an alert tier.
// Pure threshold table.
type Classifier struct {
	Immediate    float64
	Priority     float64
	Digest       float64
	TierOneFloor float64
}

func DefaultClassifier() Classifier {
	return Classifier{
		Immediate:    0.80,
		Priority:     0.60,
		Digest:       0.40,
		TierOneFloor: 0.85,
	}
}

// Classify returns the alert tier and the (possibly floor-boosted) score.
// Tier-1 accounts must reliably surface: their scores are raised to the
// floor before classification, except when the quality gate zeroed them.
func (c Classifier) Classify(score float64, authorTier int) (model.AlertTier, float64) {
	if authorTier == 1 && score > 0 && score < c.TierOneFloor {
		score = c.TierOneFloor
	}
	switch {
	case score >= c.Immediate:
		return model.TierImmediate, score
	case score >= c.Priority:
		return model.TierPriority, score
	case score >= c.Digest:
		return model.TierDigest, score
	default:
		return model.TierDiscard, score
	}
}
