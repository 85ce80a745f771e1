package confidence

import (
	"context"
	"strings"

	"github.com/hupe1980/expertmesh/domain"
	"github.com/hupe1980/expertmesh/internal/tfidf"
)

// TFIDF estimates confidence from TF-IDF cosine similarity between the query
// and per-domain texts. Raw similarities are min-max normalized across the
// candidate domains; when all candidates tie, each receives the uniform
// 1/n share.
type TFIDF struct {
	domainSet
	vectorizer *tfidf.Vectorizer
	vectors    map[string]tfidf.Vector
}

// NewTFIDF creates a TFIDF estimator.
func NewTFIDF() *TFIDF {
	return &TFIDF{
		domainSet: newDomainSet(),
		vectors:   make(map[string]tfidf.Vector),
	}
}

// AddDomain registers a profile and refits the vectorizer over all domain
// texts.
func (e *TFIDF) AddDomain(_ context.Context, profile *domain.Profile) error {
	e.add(profile)
	e.refit()
	return nil
}

func (e *TFIDF) refit() {
	docs := make([]string, 0, len(e.order))
	for _, id := range e.order {
		docs = append(docs, domainText(e.profiles[id]))
	}

	e.vectorizer = tfidf.Fit(docs)
	e.vectors = make(map[string]tfidf.Vector, len(e.order))
	for i, id := range e.order {
		e.vectors[id] = e.vectorizer.Transform(docs[i])
	}
}

// domainText joins description, keywords and examples into the fit document.
func domainText(p *domain.Profile) string {
	parts := []string{p.Description}
	if len(p.Keywords) > 0 {
		parts = append(parts, strings.Join(p.Keywords, " "))
	}
	if len(p.Examples) > 0 {
		parts = append(parts, strings.Join(p.Examples, " "))
	}
	return strings.Join(parts, " ")
}

// Estimate implements Estimator.
func (e *TFIDF) Estimate(_ context.Context, query string, available []string) (map[string]float64, error) {
	scores := zeroScores(available)
	if e.vectorizer == nil {
		return scores, nil
	}

	queryVec := e.vectorizer.Transform(query)

	var (
		ids  []string
		sims []float64
	)
	for _, id := range available {
		if vec, ok := e.vectors[id]; ok {
			ids = append(ids, id)
			sims = append(sims, tfidf.Cosine(queryVec, vec))
		}
	}
	if len(ids) == 0 {
		return scores, nil
	}

	minSim, maxSim := sims[0], sims[0]
	for _, s := range sims[1:] {
		if s < minSim {
			minSim = s
		}
		if s > maxSim {
			maxSim = s
		}
	}

	if maxSim > minSim {
		for i, id := range ids {
			scores[id] = (sims[i] - minSim) / (maxSim - minSim)
		}
	} else {
		for _, id := range ids {
			scores[id] = 1 / float64(len(ids))
		}
	}

	return scores, nil
}
