package router

import (
	"context"
	"fmt"

	"github.com/hupe1980/expertmesh/domain"
	"github.com/hupe1980/expertmesh/expert"
	"github.com/hupe1980/expertmesh/internal/mathutil"
	"github.com/hupe1980/expertmesh/logging"
)

// EmbeddingOptions configures an EmbeddingRouter.
type EmbeddingOptions struct {
	// Threshold is the minimum raw cosine similarity for Route. RouteMultiple
	// applies it to the softmax-normalized scores instead.
	Threshold float64

	// Temperature scales the softmax in RouteMultiple. Higher values flatten
	// the distribution.
	Temperature float64

	Logger logging.Logger
}

// EmbeddingRouter routes by cosine similarity between the query embedding and
// per-domain profile embeddings. Profile texts are embedded once when the
// domain is added; profiles carrying a precomputed embedding skip the embed
// call.
//
// Route compares raw similarities against the threshold. RouteMultiple
// additionally passes the candidate similarities through a temperature-scaled
// softmax so the returned scores sum to 1 before the top-k and threshold cut.
type EmbeddingRouter struct {
	domainSet
	embedder   expert.Embedder
	embeddings map[string][]float64
	opts       EmbeddingOptions
}

// NewEmbedding creates an EmbeddingRouter backed by the given embedder.
func NewEmbedding(embedder expert.Embedder, optFns ...func(o *EmbeddingOptions)) *EmbeddingRouter {
	opts := EmbeddingOptions{
		Threshold:   0.6,
		Temperature: 1.0,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &EmbeddingRouter{
		domainSet:  newDomainSet(),
		embedder:   embedder,
		embeddings: make(map[string][]float64),
		opts:       opts,
	}
}

// AddDomain registers a profile and embeds its rendered text. Re-adding a
// domain recomputes the embedding.
func (r *EmbeddingRouter) AddDomain(ctx context.Context, profile *domain.Profile) error {
	r.add(profile)

	if len(profile.Embedding) > 0 {
		r.embeddings[profile.ID] = profile.Embedding
		return nil
	}

	vec, err := r.embedder.Embed(ctx, profile.Text())
	if err != nil {
		return fmt.Errorf("embed domain %q: %w", profile.ID, err)
	}
	r.embeddings[profile.ID] = vec

	return nil
}

// Route implements Router using raw similarity scores.
func (r *EmbeddingRouter) Route(ctx context.Context, query string, available []string) (Selection, bool) {
	scores, err := r.scores(ctx, query, available)
	if err != nil {
		r.opts.Logger.Warn("Embedding routing failed", "error", err)
		return Selection{}, false
	}

	return pickBest(scores, available, r.opts.Threshold)
}

// RouteMultiple implements Router with softmax-normalized scores.
func (r *EmbeddingRouter) RouteMultiple(ctx context.Context, query string, available []string, k int) []Selection {
	scores, err := r.scores(ctx, query, available)
	if err != nil {
		r.opts.Logger.Warn("Embedding routing failed", "error", err)
		return nil
	}
	if len(scores) == 0 {
		return nil
	}

	ids := make([]string, 0, len(scores))
	values := make([]float64, 0, len(scores))
	for _, id := range available {
		if score, ok := scores[id]; ok {
			ids = append(ids, id)
			values = append(values, score)
		}
	}

	normalized := mathutil.Softmax(values, r.opts.Temperature)
	softScores := make(map[string]float64, len(ids))
	for i, id := range ids {
		softScores[id] = normalized[i]
	}

	return rankSelections(softScores, available, k, r.opts.Threshold)
}

func (r *EmbeddingRouter) scores(ctx context.Context, query string, available []string) (map[string]float64, error) {
	candidates := 0
	for _, id := range available {
		if _, ok := r.embeddings[id]; ok {
			candidates++
		}
	}
	if candidates == 0 {
		return nil, nil
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	scores := make(map[string]float64, candidates)
	for _, id := range available {
		if vec, ok := r.embeddings[id]; ok {
			scores[id] = mathutil.CosineSimilarity(queryVec, vec)
		}
	}

	return scores, nil
}
