package scoring

import (
	"regexp"
	"strings"
	"unicode"
)

// The quality gate rejects promotional/templated content and anything with
// no sign of genuine discussion. It runs before any weighted scoring and a
// rejection forces the final score to zero.

var shillPhrases = []string{
	"check out", "join our", "exclusive access", "limited time",
	"don't miss out", "revolutionary platform", "game changer",
	"next moonshot", "hidden gem", "secret alpha", "massive gains",
	"get in early", "join now", "100x", "to the moon",
}

var promoPhrases = []string{
	"introducing", "presenting", "announcing", "proud to announce",
	"excited to announce", "thrilled to announce", "we are launching",
	"our platform", "our protocol", "our solution", "sign up now",
	"stay tuned", "like and retweet", "tag your friends",
}

var discussionPatterns = []*regexp.Regexp{
	// questions and curiosity
	regexp.MustCompile(`\?`),
	regexp.MustCompile(`\b(what|how|why|when|anyone|someone)\b\s+\w+`),
	regexp.MustCompile(`\b(thoughts|opinions|curious|wondering)\b`),
	// first-person experience
	regexp.MustCompile(`\b(i've|we've|i have|we have)\s+(been|tried|built|used|tested|deployed)`),
	regexp.MustCompile(`\bin my experience\b`),
	regexp.MustCompile(`\b(tried|tested|built|deployed|implemented|benchmarked)\b`),
	// technical specificity
	regexp.MustCompile(`\b(latency|throughput|gas|slippage|tick spacing|architecture|implementation|contract|audit)\b`),
}

const minSubstanceLen = 40

// gateResult carries the gate verdict and the soft penalty applied to items
// that pass but look borderline.
type gateResult struct {
	rejected bool
	reason   string
	penalty  float64 // [0,1], scaled by QualityPenaltyScale downstream
}

// qualityGate applies the hard spam/shill filter. trackedAuthor relaxes the
// genuine-discussion requirement for accounts we monitor deliberately.
func qualityGate(text string, trackedAuthor bool) gateResult {
	lower := strings.ToLower(text)

	if len(strings.TrimSpace(text)) < minSubstanceLen {
		return gateResult{rejected: true, reason: "insufficient-substance"}
	}

	shills := countPhrases(lower, shillPhrases)
	promos := countPhrases(lower, promoPhrases)
	if shills >= 2 || promos >= 2 {
		return gateResult{rejected: true, reason: "promotional"}
	}

	if emojiCount(text) > 5 {
		return gateResult{rejected: true, reason: "excessive-emoji"}
	}
	if capsRatio(text) > 0.3 {
		return gateResult{rejected: true, reason: "excessive-caps"}
	}

	if !trackedAuthor && !hasDiscussionSignal(lower) {
		return gateResult{rejected: true, reason: "no-discussion-signal"}
	}

	// soft flags: a single promotional phrase or a few emojis dent the score
	// without discarding the item
	var penalty float64
	if shills+promos == 1 {
		penalty += 0.1
	}
	if emojiCount(text) > 2 {
		penalty += 0.05
	}
	return gateResult{penalty: penalty}
}

func countPhrases(lower string, phrases []string) int {
	n := 0
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			n++
		}
	}
	return n
}

func hasDiscussionSignal(lower string) bool {
	for _, re := range discussionPatterns {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

func emojiCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x1F000 || (r >= 0x2600 && r <= 0x27BF) {
			n++
		}
	}
	return n
}

func capsRatio(s string) float64 {
	letters, caps := 0, 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				caps++
			}
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(caps) / float64(letters)
}
