// Package router selects which expert should answer a query. Four strategies
// are provided: keyword matching, embedding similarity, a bag-of-words
// classifier and LLM-as-judge. All routers share the same contract: Route
// picks at most one expert, RouteMultiple returns an ordered slate of experts
// at or above the router's threshold.
//
// Routing is deterministic for a fixed set of domains and available experts:
// ties are broken by the iteration order of the available slice, never
// randomized.
package router

import (
	"context"
	"sort"

	"github.com/hupe1980/expertmesh/domain"
)

// Selection is one routing decision: an expert ID and its score.
type Selection struct {
	Expert string  `json:"expert"`
	Score  float64 `json:"score"`
}

// Router scores a query against registered domain profiles and picks experts.
type Router interface {
	// AddDomain registers an expertise profile with the router. Routers that
	// precompute per-domain state (regexes, embeddings) do so here.
	AddDomain(ctx context.Context, profile *domain.Profile) error

	// Route returns the best expert for the query, or ok=false when no
	// available expert scores at or above the threshold.
	Route(ctx context.Context, query string, available []string) (Selection, bool)

	// RouteMultiple returns up to k experts ordered by descending score,
	// filtered to scores at or above the threshold.
	RouteMultiple(ctx context.Context, query string, available []string, k int) []Selection
}

// domainSet holds registered profiles in declaration order. It is embedded by
// the concrete routers.
type domainSet struct {
	profiles map[string]*domain.Profile
	order    []string
}

func newDomainSet() domainSet {
	return domainSet{profiles: make(map[string]*domain.Profile)}
}

func (d *domainSet) add(p *domain.Profile) {
	if _, exists := d.profiles[p.ID]; !exists {
		d.order = append(d.order, p.ID)
	}
	d.profiles[p.ID] = p
}

// pickBest returns the highest-scoring available expert, breaking ties by the
// order of the available slice.
func pickBest(scores map[string]float64, available []string, threshold float64) (Selection, bool) {
	best := Selection{Score: -1}
	for _, id := range available {
		score, ok := scores[id]
		if !ok {
			continue
		}
		if score > best.Score {
			best = Selection{Expert: id, Score: score}
		}
	}

	if best.Score < threshold || best.Expert == "" {
		return Selection{}, false
	}

	return best, true
}

// rankSelections orders scores descending and applies the top-k and threshold
// cut. The sort is stable over the available order so ties stay deterministic.
func rankSelections(scores map[string]float64, available []string, k int, threshold float64) []Selection {
	ranked := make([]Selection, 0, len(scores))
	for _, id := range available {
		if score, ok := scores[id]; ok {
			ranked = append(ranked, Selection{Expert: id, Score: score})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	if k > 0 && len(ranked) > k {
		ranked = ranked[:k]
	}

	out := ranked[:0]
	for _, sel := range ranked {
		if sel.Score >= threshold {
			out = append(out, sel)
		}
	}

	return out
}
