package scoring

import (
	"testing"

	"nichewatch/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestClassifyThresholdTable(t *testing.T) {
	c := DefaultClassifier()
	cases := []struct {
		score float64
		want  model.AlertTier
	}{
		{0.95, model.TierImmediate},
		{0.80, model.TierImmediate},
		{0.79, model.TierPriority},
		{0.60, model.TierPriority},
		{0.59, model.TierDigest},
		{0.40, model.TierDigest},
		{0.39, model.TierDiscard},
		{0.0, model.TierDiscard},
	}
	for _, tc := range cases {
		tier, got := c.Classify(tc.score, 0)
		assert.Equal(t, tc.want, tier, "score %.2f", tc.score)
		assert.Equal(t, tc.score, got, "untracked scores are not adjusted")
	}
}

func TestTierOneFloorBoost(t *testing.T) {
	c := DefaultClassifier()

	// a borderline tier-1 item must surface, never digest or discard
	tier, boosted := c.Classify(0.50, 1)
	assert.Equal(t, 0.85, boosted)
	assert.NotEqual(t, model.TierDigest, tier)
	assert.NotEqual(t, model.TierDiscard, tier)

	// above the floor the raw score stands
	tier, kept := c.Classify(0.92, 1)
	assert.Equal(t, model.TierImmediate, tier)
	assert.Equal(t, 0.92, kept)
}

func TestTierOneFloorDoesNotResurrectGatedItems(t *testing.T) {
	c := DefaultClassifier()
	tier, score := c.Classify(0, 1)
	assert.Equal(t, model.TierDiscard, tier)
	assert.Zero(t, score)
}

func TestTierTwoGetsNoFloor(t *testing.T) {
	c := DefaultClassifier()
	tier, score := c.Classify(0.50, 2)
	assert.Equal(t, model.TierDigest, tier)
	assert.Equal(t, 0.50, score)
}
