package confidence

import (
	"context"
	"fmt"

	"github.com/hupe1980/expertmesh/domain"
	"github.com/hupe1980/expertmesh/logging"
)

// Combination selects how a Hybrid estimator merges sub-estimates.
type Combination string

const (
	// CombineWeightedAverage sums per-expert scores weighted by estimator weight.
	CombineWeightedAverage Combination = "weighted_average"
	// CombineMax takes the per-expert maximum across estimators.
	CombineMax Combination = "max"
	// CombineVote counts the fraction of estimators scoring an expert >= 0.5.
	CombineVote Combination = "vote"
)

// voteThreshold is the score at which an estimator counts as a vote for an
// expert.
const voteThreshold = 0.5

// HybridOptions configures a Hybrid estimator.
type HybridOptions struct {
	// Weights assigns one weight per sub-estimator. Defaults to equal
	// weights; normalized to sum to 1 at construction.
	Weights []float64

	// Method selects the combination method.
	Method Combination

	Logger logging.Logger
}

// Hybrid combines several estimators. A failing sub-estimator contributes a
// zero score map for that call instead of aborting the whole estimate.
type Hybrid struct {
	estimators []Estimator
	weights    []float64
	method     Combination
	logger     logging.Logger
}

// NewHybrid creates a Hybrid estimator over the given sub-estimators.
func NewHybrid(estimators []Estimator, optFns ...func(o *HybridOptions)) (*Hybrid, error) {
	if len(estimators) == 0 {
		return nil, fmt.Errorf("hybrid estimator requires at least one sub-estimator")
	}

	opts := HybridOptions{
		Method: CombineWeightedAverage,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	weights := opts.Weights
	if len(weights) == 0 {
		weights = make([]float64, len(estimators))
		for i := range weights {
			weights[i] = 1
		}
	}
	if len(weights) != len(estimators) {
		return nil, fmt.Errorf("got %d weights for %d estimators", len(weights), len(estimators))
	}

	var total float64
	for _, w := range weights {
		total += w
	}
	normalized := make([]float64, len(weights))
	for i, w := range weights {
		if total > 0 {
			normalized[i] = w / total
		} else {
			normalized[i] = 1 / float64(len(weights))
		}
	}

	switch opts.Method {
	case CombineWeightedAverage, CombineMax, CombineVote:
	default:
		return nil, fmt.Errorf("unknown combination method: %q", opts.Method)
	}

	return &Hybrid{
		estimators: estimators,
		weights:    normalized,
		method:     opts.Method,
		logger:     opts.Logger,
	}, nil
}

// AddDomain registers the profile with every sub-estimator.
func (h *Hybrid) AddDomain(ctx context.Context, profile *domain.Profile) error {
	for _, est := range h.estimators {
		if err := est.AddDomain(ctx, profile); err != nil {
			return err
		}
	}
	return nil
}

// Estimate implements Estimator.
func (h *Hybrid) Estimate(ctx context.Context, query string, available []string) (map[string]float64, error) {
	estimates := make([]map[string]float64, len(h.estimators))
	for i, est := range h.estimators {
		scores, err := est.Estimate(ctx, query, available)
		if err != nil {
			h.logger.Warn("Sub-estimator failed", "index", i, "error", err)
			scores = zeroScores(available)
		}
		estimates[i] = scores
	}

	combined := make(map[string]float64, len(available))
	for _, id := range available {
		switch h.method {
		case CombineMax:
			var maxScore float64
			for _, est := range estimates {
				if s := est[id]; s > maxScore {
					maxScore = s
				}
			}
			combined[id] = maxScore
		case CombineVote:
			votes := 0
			for _, est := range estimates {
				if est[id] >= voteThreshold {
					votes++
				}
			}
			combined[id] = float64(votes) / float64(len(estimates))
		default:
			var sum float64
			for i, est := range estimates {
				sum += est[id] * h.weights[i]
			}
			combined[id] = sum
		}
	}

	return combined, nil
}
