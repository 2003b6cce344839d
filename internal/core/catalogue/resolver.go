// Package catalogue resolves human-entered catalogue names to canonical IDs.
// Names are typed from memory and routinely contain typos, so an exact alias
// match is backed by fuzzy matching above a similarity threshold.
package catalogue

import (
	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/ellyeware/idiombot/internal/domain"
)

// DefaultThreshold is the fuzzy-match acceptance score on a 0-100 scale.
const DefaultThreshold = 80

type Resolver struct {
	entries   []domain.Catalogue
	threshold float64
	metric    *metrics.Levenshtein
}

// NewResolver builds a resolver over a snapshot of the catalogue table.
// threshold <= 0 selects DefaultThreshold.
func NewResolver(entries []domain.Catalogue, threshold int) *Resolver {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Resolver{
		entries:   entries,
		threshold: float64(threshold),
		metric:    metrics.NewLevenshtein(),
	}
}

// ResolveAlias maps a name to a catalogue ID. Exact alias membership wins;
// otherwise the best-scoring fuzzy candidate is accepted if it clears the
// threshold. A miss is ordinary ("no match"), never an error.
func (r *Resolver) ResolveAlias(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	for _, entry := range r.entries {
		for _, alias := range entry.Aliases {
			if alias == name {
				return entry.ID, true
			}
		}
	}

	bestScore := 0.0
	bestID := ""
	for _, entry := range r.entries {
		for _, alias := range entry.Aliases {
			score := strutil.Similarity(name, alias, r.metric) * 100
			if score > bestScore {
				bestScore = score
				bestID = entry.ID
			}
		}
	}
	if bestScore > r.threshold {
		return bestID, true
	}
	return "", false
}

// ResolveID returns the canonical display alias for a catalogue ID.
func (r *Resolver) ResolveID(id string) (string, bool) {
	for _, entry := range r.entries {
		if entry.ID == id && len(entry.Aliases) > 0 {
			return entry.Aliases[0], true
		}
	}
	return "", false
}
