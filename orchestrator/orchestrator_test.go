package orchestrator

import (
	"context"
	"testing"

	"github.com/hupe1980/expertmesh/chain"
	"github.com/hupe1980/expertmesh/confidence"
	"github.com/hupe1980/expertmesh/domain"
	"github.com/hupe1980/expertmesh/ensemble"
	"github.com/hupe1980/expertmesh/expert"
	"github.com/hupe1980/expertmesh/moe"
	"github.com/hupe1980/expertmesh/registry"
	"github.com/hupe1980/expertmesh/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestOrchestrator wires real strategy components over mock experts. The
// training domain carries four keywords so routing scores are controllable
// through the query.
func newTestOrchestrator(t *testing.T, estimator confidence.Estimator) (*Orchestrator, *registry.Registry) {
	t.Helper()

	reg := registry.New()
	require.NoError(t, reg.Register(expert.NewMock("training")))
	require.NoError(t, reg.Register(expert.NewMock("nutrition")))

	r := router.NewKeyword()
	ctx := context.Background()
	require.NoError(t, r.AddDomain(ctx, domain.New("training", "t").
		WithKeywords("interval", "tempo", "workout", "mileage")))
	require.NoError(t, r.AddDomain(ctx, domain.New("nutrition", "n").
		WithKeywords("protein", "diet", "meal", "carbohydrate")))

	ens := ensemble.New(r, reg)
	mixture := moe.New(estimator, reg)
	ch := chain.New([]expert.Expert{expert.NewMock("training"), expert.NewMock("nutrition")})

	return New(reg, ens, mixture, ch), reg
}

func TestSelectStrategy(t *testing.T) {
	o, _ := newTestOrchestrator(t, staticEstimator{})

	tests := []struct {
		name     string
		analysis Analysis
		expected Strategy
	}{
		{
			name:     "simple query uses ensemble",
			analysis: Analysis{Complexity: ComplexitySimple},
			expected: StrategyEnsemble,
		},
		{
			name:     "synthesis uses mixture of experts",
			analysis: Analysis{Complexity: ComplexityComplex, RequiresSynthesis: true},
			expected: StrategyMoE,
		},
		{
			name:     "moderate expertise uses chain",
			analysis: Analysis{Complexity: ComplexityModerate, RequiresExpertise: true},
			expected: StrategyChain,
		},
		{
			name:     "expert tier uses hybrid",
			analysis: Analysis{Complexity: ComplexityExpert},
			expected: StrategyHybrid,
		},
		{
			name:     "expert tier with expertise still uses hybrid",
			analysis: Analysis{Complexity: ComplexityExpert, RequiresExpertise: true},
			expected: StrategyHybrid,
		},
		{
			name:     "moderate without expertise falls back to ensemble",
			analysis: Analysis{Complexity: ComplexityModerate},
			expected: StrategyEnsemble,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, o.SelectStrategy(tt.analysis, nil))
		})
	}
}

func TestSelectStrategy_PinnedStrategyShortCircuits(t *testing.T) {
	o, _ := newTestOrchestrator(t, staticEstimator{})

	cfg := &Config{Strategy: StrategyChain}

	assert.Equal(t, StrategyChain, o.SelectStrategy(Analysis{Complexity: ComplexitySimple}, cfg))
}

func TestProcess_AutoSimpleQuery(t *testing.T) {
	o, _ := newTestOrchestrator(t, staticEstimator{})

	result := o.Process(context.Background(), "best interval workout", DefaultConfig())

	assert.NotEmpty(t, result.ID)
	assert.Equal(t, StrategyEnsemble, result.Strategy)
	assert.NotEmpty(t, result.Response)
	assert.Greater(t, result.Confidence, 0.0)
	assert.Contains(t, result.ExpertsUsed, "training")
	assert.Contains(t, result.Metadata, "query_analysis")
	assert.Contains(t, result.Metadata, "processed_at")
	assert.Contains(t, result.Explanation, "**Strategy Selected:** ENSEMBLE")
}

func TestProcess_PinnedChain(t *testing.T) {
	o, _ := newTestOrchestrator(t, staticEstimator{})

	cfg := DefaultConfig()
	cfg.Strategy = StrategyChain

	result := o.Process(context.Background(), "anything at all", cfg)

	assert.Equal(t, StrategyChain, result.Strategy)
	assert.Equal(t, 1.0, result.Confidence, "every chain step succeeded")
	assert.Equal(t, 2, result.Metadata["steps_executed"])
	assert.Equal(t, []string{"training", "nutrition"}, result.ExpertsUsed)
}

func TestProcess_PinnedMoE(t *testing.T) {
	o, _ := newTestOrchestrator(t, staticEstimator{scores: map[string]float64{
		"training":  0.8,
		"nutrition": 0.6,
	}})

	cfg := DefaultConfig()
	cfg.Strategy = StrategyMoE

	result := o.Process(context.Background(), "anything at all", cfg)

	assert.Equal(t, StrategyMoE, result.Strategy)
	assert.ElementsMatch(t, []string{"training", "nutrition"}, result.ExpertsUsed)
	assert.Contains(t, result.Metadata, "confidence_scores")
	assert.Equal(t, false, result.Metadata["meta_expert_used"])
	assert.InDelta(t, 0.7, result.Confidence, 1e-9)
}

func TestProcess_HybridHighConfidenceSkipsEscalation(t *testing.T) {
	o, _ := newTestOrchestrator(t, staticEstimator{scores: map[string]float64{"training": 0.9}})

	cfg := DefaultConfig()
	cfg.Strategy = StrategyHybrid

	// All four training keywords match: routing score 1.0 clears the 0.7
	// threshold.
	result := o.Process(context.Background(), "interval tempo workout mileage", cfg)

	assert.Equal(t, StrategyHybrid, result.Strategy)
	assert.Equal(t, "hybrid_ensemble_only", result.Metadata["strategy"])
	assert.Equal(t, 1.0, result.Confidence)
}

func TestProcess_HybridEscalatesToMoE(t *testing.T) {
	o, _ := newTestOrchestrator(t, staticEstimator{scores: map[string]float64{
		"training":  0.8,
		"nutrition": 0.8,
	}})

	cfg := DefaultConfig()
	cfg.Strategy = StrategyHybrid

	// Two of four training keywords match: routing score 0.5 is under the
	// threshold and forces the escalation.
	result := o.Process(context.Background(), "interval tempo drills", cfg)

	assert.Equal(t, StrategyHybrid, result.Strategy)
	assert.Equal(t, string(StrategyHybrid), result.Metadata["strategy"])
	assert.InDelta(t, 0.5, result.Metadata["ensemble_confidence"].(float64), 1e-9)
	assert.InDelta(t, 0.8, result.Metadata["moe_confidence"].(float64), 1e-9)
	assert.InDelta(t, 0.65, result.Confidence, 1e-9)
	assert.Equal(t, "consensus", result.Metadata["combination_method"])
}

func TestProcess_FallbackAfterStrategyFailure(t *testing.T) {
	o, _ := newTestOrchestrator(t, staticEstimator{})

	// An empty chain fails immediately; the configured ensemble fallback
	// answers instead.
	o.SetChain(chain.New(nil))

	cfg := DefaultConfig()
	cfg.Strategy = StrategyChain

	result := o.Process(context.Background(), "best interval workout", cfg)

	assert.Equal(t, StrategyEnsemble, result.Strategy)
	assert.Equal(t, "sequential_chain", result.Metadata["fallback_from"])
	assert.NotEmpty(t, result.Response)
}

func TestProcess_TotalFailure(t *testing.T) {
	reg := registry.New()
	r := router.NewKeyword()
	ens := ensemble.New(r, reg)
	mixture := moe.New(staticEstimator{}, reg)

	o := New(reg, ens, mixture, chain.New(nil))

	result := o.Process(context.Background(), "any question", DefaultConfig())

	assert.Contains(t, result.Response, "Processing failed:")
	assert.Zero(t, result.Confidence)
	assert.Contains(t, result.Metadata, "error")
	assert.NotEmpty(t, result.ID)
}

func TestProcess_PanicRecoveredAndFallbackApplied(t *testing.T) {
	o, _ := newTestOrchestrator(t, panickingEstimator{})

	cfg := DefaultConfig()
	cfg.Strategy = StrategyMoE

	result := o.Process(context.Background(), "best interval workout", cfg)

	assert.Equal(t, StrategyEnsemble, result.Strategy)
	assert.Equal(t, "mixture_of_experts", result.Metadata["fallback_from"])
}

func TestProcess_NilConfigUsesDefaults(t *testing.T) {
	o, _ := newTestOrchestrator(t, staticEstimator{})

	result := o.Process(context.Background(), "best interval workout", nil)

	assert.NotEmpty(t, result.Response)
	assert.NotEmpty(t, result.Explanation)
}

func TestProcess_MetadataAndExplanationDisabled(t *testing.T) {
	o, _ := newTestOrchestrator(t, staticEstimator{})

	cfg := DefaultConfig()
	cfg.EnableExplanation = false
	cfg.EnableMetadata = false

	result := o.Process(context.Background(), "best interval workout", cfg)

	assert.Empty(t, result.Explanation)
	assert.NotContains(t, result.Metadata, "query_analysis")
}

func TestStatsRecording(t *testing.T) {
	o, _ := newTestOrchestrator(t, staticEstimator{})

	o.Process(context.Background(), "best interval workout", DefaultConfig())
	o.Process(context.Background(), "tempo workout pacing", DefaultConfig())

	stats := o.Stats()

	assert.Equal(t, 2, stats.TotalQueries)
	assert.Equal(t, 2, stats.Successful)
	assert.Equal(t, 1.0, stats.SuccessRate)
	assert.Equal(t, 2, stats.StrategyUsage[StrategyEnsemble])

	o.ResetStats()
	assert.Zero(t, o.Stats().TotalQueries)
}

func TestHealthCheck(t *testing.T) {
	o, _ := newTestOrchestrator(t, staticEstimator{})

	status := o.HealthCheck(context.Background())

	assert.Equal(t, "healthy", status["overall_status"])
	assert.Equal(t, 2, status["registered_experts"])
	assert.Equal(t, 2, status["available_experts"])
	assert.Equal(t, true, status["ensemble"])
	assert.Equal(t, true, status["mixture_of_experts"])
	assert.Equal(t, true, status["chain"])
}

func TestHealthCheck_EmptyRegistryIsDegraded(t *testing.T) {
	reg := registry.New()
	o := New(reg, nil, nil, nil)

	status := o.HealthCheck(context.Background())

	assert.Equal(t, "degraded", status["overall_status"])
	assert.Equal(t, "no_experts", status["registry"])
}

type staticEstimator struct {
	scores map[string]float64
}

func (s staticEstimator) AddDomain(context.Context, *domain.Profile) error { return nil }

func (s staticEstimator) Estimate(_ context.Context, _ string, available []string) (map[string]float64, error) {
	out := make(map[string]float64, len(available))
	for _, id := range available {
		out[id] = s.scores[id]
	}
	return out, nil
}

type panickingEstimator struct{}

func (panickingEstimator) AddDomain(context.Context, *domain.Profile) error { return nil }

func (panickingEstimator) Estimate(context.Context, string, []string) (map[string]float64, error) {
	panic("estimator exploded")
}
