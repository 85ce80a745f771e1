package confidence

import (
	"context"
	"fmt"

	"github.com/hupe1980/expertmesh/domain"
	"github.com/hupe1980/expertmesh/expert"
	"github.com/hupe1980/expertmesh/internal/mathutil"
)

// EmbeddingOptions configures an Embedding estimator.
type EmbeddingOptions struct {
	// Temperature scales the softmax normalization. Higher values flatten the
	// distribution.
	Temperature float64
}

// Embedding estimates confidence from cosine similarity between the query
// embedding and per-domain embeddings, softmax-normalized over the candidate
// domains so the scores of domains with profiles sum to 1. Domains without a
// profile or embedding score 0.
type Embedding struct {
	domainSet
	embedder   expert.Embedder
	embeddings map[string][]float64
	opts       EmbeddingOptions
}

// NewEmbedding creates an Embedding estimator backed by the given embedder.
func NewEmbedding(embedder expert.Embedder, optFns ...func(o *EmbeddingOptions)) *Embedding {
	opts := EmbeddingOptions{Temperature: 1.0}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Embedding{
		domainSet:  newDomainSet(),
		embedder:   embedder,
		embeddings: make(map[string][]float64),
		opts:       opts,
	}
}

// AddDomain registers a profile and embeds its rendered text. Re-adding
// recomputes the embedding unless the profile carries one.
func (e *Embedding) AddDomain(ctx context.Context, profile *domain.Profile) error {
	e.add(profile)

	if len(profile.Embedding) > 0 {
		e.embeddings[profile.ID] = profile.Embedding
		return nil
	}

	vec, err := e.embedder.Embed(ctx, profile.Text())
	if err != nil {
		return fmt.Errorf("embed domain %q: %w", profile.ID, err)
	}
	e.embeddings[profile.ID] = vec

	return nil
}

// Estimate implements Estimator.
func (e *Embedding) Estimate(ctx context.Context, query string, available []string) (map[string]float64, error) {
	scores := zeroScores(available)

	var (
		ids    []string
		values []float64
	)
	for _, id := range available {
		if _, ok := e.embeddings[id]; ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return scores, nil
	}

	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return zeroScores(available), fmt.Errorf("embed query: %w", err)
	}

	for _, id := range ids {
		values = append(values, mathutil.CosineSimilarity(queryVec, e.embeddings[id]))
	}

	normalized := mathutil.Softmax(values, e.opts.Temperature)
	for i, id := range ids {
		scores[id] = normalized[i]
	}

	return scores, nil
}
