package watchlist

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Watchlist is the static monitoring input: the topic vocabulary used for
// relevance scoring, keyword pools for search rotation, and the tiered
// account lists. Loaded once at startup; the pipeline treats it as read-only.
type Watchlist struct {
	// Vocabulary maps topic terms to specificity weights. Core domain terms
	// carry higher weights than generic ones.
	Vocabulary struct {
		Core    map[string]float64 `yaml:"core"`
		General map[string]float64 `yaml:"general"`
	} `yaml:"vocabulary"`

	// Pools are named keyword categories for the search rotation.
	Pools map[string][]string `yaml:"pools"`

	// Narratives drive the "narrative" rotation strategy.
	Narratives struct {
		Primary   []string `yaml:"primary"`
		Secondary []string `yaml:"secondary"`
		Emerging  []string `yaml:"emerging"`
	} `yaml:"narratives"`

	Accounts struct {
		Tier1 []string `yaml:"tier_1"`
		Tier2 []string `yaml:"tier_2"`
	} `yaml:"accounts"`
}

// Load reads and parses a watchlist YAML file.
func Load(path string) (*Watchlist, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("watchlist: read %s: %w", path, err)
	}
	var w Watchlist
	if err := yaml.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("watchlist: parse %s: %w", path, err)
	}
	w.normalize()
	return &w, nil
}

func (w *Watchlist) normalize() {
	w.Vocabulary.Core = lowerKeys(w.Vocabulary.Core)
	w.Vocabulary.General = lowerKeys(w.Vocabulary.General)
	for name, terms := range w.Pools {
		for i, t := range terms {
			terms[i] = strings.ToLower(strings.TrimSpace(t))
		}
		w.Pools[name] = terms
	}
}

func lowerKeys(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}

// AccountTier returns 1 or 2 for tracked accounts, 0 otherwise.
func (w *Watchlist) AccountTier(accountID string) int {
	for _, a := range w.Accounts.Tier1 {
		if strings.EqualFold(a, accountID) {
			return 1
		}
	}
	for _, a := range w.Accounts.Tier2 {
		if strings.EqualFold(a, accountID) {
			return 2
		}
	}
	return 0
}

// TrackedAccounts returns all monitored accounts ordered tier 1 first.
func (w *Watchlist) TrackedAccounts() []string {
	out := make([]string, 0, len(w.Accounts.Tier1)+len(w.Accounts.Tier2))
	out = append(out, w.Accounts.Tier1...)
	out = append(out, w.Accounts.Tier2...)
	return out
}

// AllTerms returns the union of all pool keywords.
func (w *Watchlist) AllTerms() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, terms := range w.Pools {
		for _, t := range terms {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
