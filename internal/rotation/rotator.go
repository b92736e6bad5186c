package rotation

import (
	"log/slog"
	"math/rand"
	"strings"
	"sync"

	"nichewatch/internal/watchlist"
)

// Strategy names a keyword-selection behavior.
type Strategy string

const (
	StrategyFocused   Strategy = "focused"   // core pool only
	StrategyBroad     Strategy = "broad"     // draw across all pools
	StrategyNarrative Strategy = "narrative" // follow current narratives
	StrategyMixed     Strategy = "mixed"     // blend of the above
)

// corePool is the pool name the focused strategy prefers.
const corePool = "core"

// Rotator picks search keywords per sweep, favoring terms not used over a
// bounded history window so the same query is not resubmitted repeatedly.
type Rotator struct {
	wl       *watchlist.Watchlist
	strategy Strategy

	mu         sync.Mutex
	recent     []string // bounded FIFO of recently issued terms
	recentSet  map[string]struct{}
	historyCap int
	rng        *rand.Rand
}

func New(wl *watchlist.Watchlist, strategy Strategy, seed int64) *Rotator {
	if strategy == "" {
		strategy = StrategyMixed
	}
	return &Rotator{
		wl:         wl,
		strategy:   strategy,
		recentSet:  map[string]struct{}{},
		historyCap: 20,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Next returns up to count keywords for the coming sweep.
func (r *Rotator) Next(count int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if count <= 0 {
		return nil
	}

	candidates := r.candidates()
	r.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	picked := make([]string, 0, count)
	// first pass: terms outside the recent window
	for _, t := range candidates {
		if len(picked) == count {
			break
		}
		if _, used := r.recentSet[t]; used {
			continue
		}
		if containsTerm(picked, t) {
			continue
		}
		picked = append(picked, t)
	}
	// second pass: if the pool is smaller than the history, allow repeats
	for _, t := range candidates {
		if len(picked) == count {
			break
		}
		if containsTerm(picked, t) {
			continue
		}
		picked = append(picked, t)
	}

	for _, t := range picked {
		r.remember(t)
	}
	slog.Debug("rotation: selected keywords", "strategy", r.strategy, "keywords", picked)
	return picked
}

func (r *Rotator) candidates() []string {
	switch r.strategy {
	case StrategyFocused:
		if terms, ok := r.wl.Pools[corePool]; ok && len(terms) > 0 {
			return append([]string(nil), terms...)
		}
		return normalize(r.wl.Narratives.Primary)
	case StrategyNarrative:
		out := normalize(r.wl.Narratives.Primary)
		out = append(out, normalize(r.wl.Narratives.Secondary)...)
		out = append(out, normalize(r.wl.Narratives.Emerging)...)
		if len(out) > 0 {
			return out
		}
		return r.wl.AllTerms()
	case StrategyBroad:
		return r.wl.AllTerms()
	default: // mixed: core terms twice so they dominate, plus everything else
		out := r.wl.AllTerms()
		if terms, ok := r.wl.Pools[corePool]; ok {
			out = append(out, terms...)
		}
		out = append(out, normalize(r.wl.Narratives.Primary)...)
		return out
	}
}

func (r *Rotator) remember(term string) {
	if _, ok := r.recentSet[term]; ok {
		return
	}
	r.recent = append(r.recent, term)
	r.recentSet[term] = struct{}{}
	for len(r.recent) > r.historyCap {
		old := r.recent[0]
		r.recent = r.recent[1:]
		delete(r.recentSet, old)
	}
}

func containsTerm(list []string, t string) bool {
	for _, v := range list {
		if v == t {
			return true
		}
	}
	return false
}

func normalize(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
