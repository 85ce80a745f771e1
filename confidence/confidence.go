// Package confidence estimates how relevant each available expert is for a
// query. Unlike routers, estimators always return a full score map so
// downstream selection logic (mixture of experts, hybrid strategies) can apply
// its own thresholding.
//
// Keyword, Embedding, TFIDF and LLM estimators mirror the scoring logic of
// the corresponding routers; Hybrid combines several estimators with declared
// weights.
package confidence

import (
	"context"

	"github.com/hupe1980/expertmesh/domain"
)

// Estimator scores the available experts for a query. Scores are in [0, 1];
// every available expert appears in the returned map.
type Estimator interface {
	// AddDomain registers an expertise profile with the estimator.
	AddDomain(ctx context.Context, profile *domain.Profile) error

	// Estimate returns a per-expert confidence score for the query.
	Estimate(ctx context.Context, query string, available []string) (map[string]float64, error)
}

// domainSet holds registered profiles in declaration order.
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

func zeroScores(available []string) map[string]float64 {
	scores := make(map[string]float64, len(available))
	for _, id := range available {
		scores[id] = 0
	}
	return scores
}
