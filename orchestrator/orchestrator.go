// Package orchestrator coordinates the routing, mixing and chaining
// components into a strategy state machine: analyze the query, select a
// strategy (ensemble, mixture of experts, chain or hybrid), execute it and
// enhance the result with an explanation and metadata.
//
// Process is total: any failure, including panics in downstream components,
// terminates in a Result with confidence 0 and an error entry in the
// metadata, after attempting at most one configured fallback strategy.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/expertmesh/chain"
	"github.com/hupe1980/expertmesh/ensemble"
	"github.com/hupe1980/expertmesh/expert"
	"github.com/hupe1980/expertmesh/logging"
	"github.com/hupe1980/expertmesh/mixer"
	"github.com/hupe1980/expertmesh/moe"
	"github.com/hupe1980/expertmesh/registry"
)

// Strategy identifies a processing strategy.
type Strategy string

const (
	// StrategyAuto lets the orchestrator decide.
	StrategyAuto Strategy = "auto"
	// StrategyEnsemble routes to one or few experts.
	StrategyEnsemble Strategy = "ensemble"
	// StrategyMoE consults multiple experts weighted by confidence.
	StrategyMoE Strategy = "mixture_of_experts"
	// StrategyChain processes experts sequentially.
	StrategyChain Strategy = "sequential_chain"
	// StrategyHybrid combines ensemble with an escalation to MoE.
	StrategyHybrid Strategy = "hybrid"
)

// Config controls one Process invocation. It is never mutated.
type Config struct {
	// Strategy pins a strategy; StrategyAuto defers to query analysis.
	Strategy Strategy

	// MaxParallelExperts caps fan-out width.
	MaxParallelExperts int

	// ConfidenceThreshold gates the hybrid escalation.
	ConfidenceThreshold float64

	// EnableExplanation attaches a human-readable explanation.
	EnableExplanation bool

	// EnableMetadata attaches the query analysis and processing details.
	EnableMetadata bool

	// Timeout bounds the whole query.
	Timeout time.Duration

	// Fallback is tried once when the selected strategy fails. Empty
	// disables the fallback.
	Fallback Strategy

	// Params is forwarded to expert generation calls.
	Params expert.Params
}

// DefaultConfig returns the baseline auto-strategy configuration.
func DefaultConfig() *Config {
	return &Config{
		Strategy:            StrategyAuto,
		MaxParallelExperts:  3,
		ConfidenceThreshold: 0.7,
		EnableExplanation:   true,
		EnableMetadata:      true,
		Timeout:             30 * time.Second,
		Fallback:            StrategyEnsemble,
	}
}

// Result is the outcome of one orchestrated query.
type Result struct {
	// ID identifies this invocation.
	ID string `json:"id"`

	// Response is the final text.
	Response string `json:"response"`

	// Confidence is the overall confidence in [0, 1]; 0 on failure.
	Confidence float64 `json:"confidence"`

	// Strategy is the strategy that actually produced the response.
	Strategy Strategy `json:"strategy"`

	// ExpertsUsed lists the consulted expert IDs.
	ExpertsUsed []string `json:"experts_used,omitempty"`

	// Duration is the wall-clock execution time.
	Duration time.Duration `json:"duration"`

	// Metadata carries processing details; failures add an "error" entry.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Explanation is the optional human-readable processing summary.
	Explanation string `json:"explanation,omitempty"`
}

// Options configures an Orchestrator.
type Options struct {
	// HybridMixer combines the ensemble and MoE answers during a hybrid
	// escalation. Defaults to the consensus mixer.
	HybridMixer mixer.Mixer

	Logger logging.Logger
}

// Option mutates Options.
type Option func(o *Options)

// WithHybridMixer sets the mixer used for hybrid escalations.
func WithHybridMixer(m mixer.Mixer) Option {
	return func(o *Options) { o.HybridMixer = m }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// Orchestrator owns the strategy components and the rolling statistics.
type Orchestrator struct {
	registry *registry.Registry
	ensemble *ensemble.Ensemble
	mixture  *moe.MixtureOfExperts
	chain    *chain.Chain
	stats    RollingStats
	opts     Options
}

// New creates an Orchestrator over pre-built strategy components.
func New(reg *registry.Registry, ens *ensemble.Ensemble, mixture *moe.MixtureOfExperts, ch *chain.Chain, optFns ...Option) *Orchestrator {
	opts := Options{
		HybridMixer: mixer.NewConsensus(),
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Orchestrator{
		registry: reg,
		ensemble: ens,
		mixture:  mixture,
		chain:    ch,
		opts:     opts,
	}
}

// SetChain replaces the sequential chain, typically after the expert set
// changed. Not safe to call concurrently with Process.
func (o *Orchestrator) SetChain(ch *chain.Chain) {
	o.chain = ch
}

// Process answers a query end to end: analyze, select, execute, enhance,
// record. It never returns an error; failures yield a Result with confidence
// 0 and an error metadata entry.
func (o *Orchestrator) Process(ctx context.Context, query string, cfg *Config) *Result {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	id := uuid.NewString()

	analysis := AnalyzeQuery(query)
	strategy := o.SelectStrategy(analysis, cfg)

	o.opts.Logger.Info("Selected strategy", "strategy", string(strategy), "complexity", analysis.Complexity.String())

	result, err := o.executeSafe(ctx, query, strategy, cfg)
	if err != nil && cfg.Fallback != "" && cfg.Fallback != strategy {
		o.opts.Logger.Warn("Strategy failed, attempting fallback", "strategy", string(strategy), "fallback", string(cfg.Fallback), "error", err)
		if fallbackResult, fallbackErr := o.executeSafe(ctx, query, cfg.Fallback, cfg); fallbackErr == nil {
			result = fallbackResult
			result.Metadata["fallback_from"] = string(strategy)
			err = nil
		}
	}

	duration := time.Since(start)

	if err != nil {
		o.stats.record(strategy, duration, false)
		return &Result{
			ID:       id,
			Response: fmt.Sprintf("Processing failed: %s", err),
			Strategy: strategy,
			Duration: duration,
			Metadata: map[string]any{"error": err.Error()},
		}
	}

	result.ID = id
	result.Duration = duration

	if cfg.EnableExplanation {
		result.Explanation = explain(result, analysis)
	}
	if cfg.EnableMetadata {
		result.Metadata["query_analysis"] = analysis
		result.Metadata["processed_at"] = time.Now().UTC()
	}

	o.stats.record(result.Strategy, duration, true)

	return result
}

// SelectStrategy maps a query analysis onto a strategy. A pinned non-auto
// strategy short-circuits the decision.
func (o *Orchestrator) SelectStrategy(analysis Analysis, cfg *Config) Strategy {
	if cfg != nil && cfg.Strategy != "" && cfg.Strategy != StrategyAuto {
		return cfg.Strategy
	}

	switch {
	case analysis.Complexity == ComplexitySimple && !analysis.RequiresSynthesis:
		return StrategyEnsemble
	case analysis.RequiresSynthesis || analysis.Complexity == ComplexityComplex:
		return StrategyMoE
	case analysis.RequiresExpertise &&
		(analysis.Complexity == ComplexityModerate || analysis.Complexity == ComplexityComplex):
		return StrategyChain
	case analysis.Complexity == ComplexityExpert:
		return StrategyHybrid
	default:
		return StrategyEnsemble
	}
}

// executeSafe runs a strategy, converting panics in downstream components
// into errors.
func (o *Orchestrator) executeSafe(ctx context.Context, query string, strategy Strategy, cfg *Config) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("strategy %s panicked: %v", strategy, r)
		}
	}()

	return o.execute(ctx, query, strategy, cfg)
}

func (o *Orchestrator) execute(ctx context.Context, query string, strategy Strategy, cfg *Config) (*Result, error) {
	switch strategy {
	case StrategyEnsemble:
		return o.executeEnsemble(ctx, query, cfg)
	case StrategyMoE:
		return o.executeMoE(ctx, query, cfg)
	case StrategyChain:
		return o.executeChain(ctx, query, cfg)
	case StrategyHybrid:
		return o.executeHybrid(ctx, query, cfg)
	default:
		return nil, fmt.Errorf("unsupported strategy: %q", strategy)
	}
}

func (o *Orchestrator) executeEnsemble(ctx context.Context, query string, cfg *Config) (*Result, error) {
	if o.ensemble == nil {
		return nil, fmt.Errorf("no ensemble configured")
	}

	res := o.ensemble.Generate(ctx, query, cfg.MaxParallelExperts, cfg.Params)
	if res.Error != "" {
		return nil, fmt.Errorf("ensemble: %s", res.Error)
	}

	experts := make([]string, 0, len(res.Responses))
	for _, sel := range res.Experts {
		if _, ok := res.Responses[sel.Expert]; ok {
			experts = append(experts, sel.Expert)
		}
	}

	return &Result{
		Response:    res.Response,
		Confidence:  res.Confidence,
		Strategy:    StrategyEnsemble,
		ExpertsUsed: experts,
		Metadata: map[string]any{
			"strategy":      string(StrategyEnsemble),
			"fallback_used": res.FallbackUsed,
		},
	}, nil
}

func (o *Orchestrator) executeMoE(ctx context.Context, query string, cfg *Config) (*Result, error) {
	if o.mixture == nil {
		return nil, fmt.Errorf("no mixture of experts configured")
	}

	res := o.mixture.Generate(ctx, query, cfg.MaxParallelExperts, 0, cfg.Params)
	if res.Error != "" {
		return nil, fmt.Errorf("mixture of experts: %s", res.Error)
	}

	experts := make([]string, 0, len(res.Responses))
	for _, sel := range res.Experts {
		if _, ok := res.Responses[sel.Expert]; ok {
			experts = append(experts, sel.Expert)
		}
	}

	return &Result{
		Response:    res.Response,
		Confidence:  res.Confidence,
		Strategy:    StrategyMoE,
		ExpertsUsed: experts,
		Metadata: map[string]any{
			"strategy":          string(StrategyMoE),
			"confidence_scores": res.ConfidenceScores,
			"meta_expert_used":  res.MetaExpertUsed,
		},
	}, nil
}

func (o *Orchestrator) executeChain(ctx context.Context, query string, cfg *Config) (*Result, error) {
	if o.chain == nil {
		return nil, fmt.Errorf("no chain configured")
	}

	chainCtx, err := o.chain.Run(ctx, query, cfg.Params)
	if err != nil {
		return nil, fmt.Errorf("chain: %w", err)
	}

	// Confidence is the fraction of steps that produced a real response.
	successful := 0
	for _, response := range chainCtx.Responses {
		if !chain.IsErrorPlaceholder(response) {
			successful++
		}
	}
	confidence := float64(successful) / float64(len(chainCtx.Responses))

	experts := make([]string, 0, len(o.chain.Experts()))
	for _, e := range o.chain.Experts() {
		experts = append(experts, e.Info().ID)
	}

	return &Result{
		Response:    chainCtx.Responses[len(chainCtx.Responses)-1],
		Confidence:  confidence,
		Strategy:    StrategyChain,
		ExpertsUsed: experts,
		Metadata: map[string]any{
			"strategy":       string(StrategyChain),
			"steps_executed": len(chainCtx.Responses),
		},
	}, nil
}

// executeHybrid runs the ensemble first and escalates to MoE only when the
// ensemble confidence falls short of the threshold.
func (o *Orchestrator) executeHybrid(ctx context.Context, query string, cfg *Config) (*Result, error) {
	ensembleResult, err := o.executeEnsemble(ctx, query, cfg)
	if err != nil {
		return nil, err
	}

	if ensembleResult.Confidence >= cfg.ConfidenceThreshold {
		ensembleResult.Strategy = StrategyHybrid
		ensembleResult.Metadata["strategy"] = "hybrid_ensemble_only"
		return ensembleResult, nil
	}

	moeResult, err := o.executeMoE(ctx, query, cfg)
	if err != nil {
		return nil, err
	}

	responses := map[string]string{
		string(StrategyEnsemble): ensembleResult.Response,
		string(StrategyMoE):      moeResult.Response,
	}
	weights := map[string]float64{
		string(StrategyEnsemble): ensembleResult.Confidence,
		string(StrategyMoE):      moeResult.Confidence,
	}

	combined, err := o.opts.HybridMixer.Mix(ctx, query, responses, weights)
	if err != nil {
		return nil, fmt.Errorf("hybrid mixing: %w", err)
	}

	return &Result{
		Response:    combined,
		Confidence:  (ensembleResult.Confidence + moeResult.Confidence) / 2,
		Strategy:    StrategyHybrid,
		ExpertsUsed: append(ensembleResult.ExpertsUsed, moeResult.ExpertsUsed...),
		Metadata: map[string]any{
			"strategy":            string(StrategyHybrid),
			"ensemble_confidence": ensembleResult.Confidence,
			"moe_confidence":      moeResult.Confidence,
			"combination_method":  "consensus",
		},
	}, nil
}

// Stats returns a snapshot of the rolling statistics.
func (o *Orchestrator) Stats() StatsSnapshot {
	return o.stats.snapshot()
}

// HealthCheck reports the status of the orchestrator's components.
func (o *Orchestrator) HealthCheck(ctx context.Context) map[string]any {
	status := map[string]any{
		"orchestrator":   "healthy",
		"overall_status": "healthy",
	}

	registered := o.registry.Len()
	if registered == 0 {
		status["registry"] = "no_experts"
		status["overall_status"] = "degraded"
	} else {
		status["registry"] = "healthy"
	}
	status["registered_experts"] = registered
	status["available_experts"] = len(o.registry.Available(ctx))

	components := map[string]bool{
		"ensemble":           o.ensemble != nil,
		"mixture_of_experts": o.mixture != nil,
		"chain":              o.chain != nil,
	}
	for name, ok := range components {
		if !ok {
			status["overall_status"] = "degraded"
		}
		status[name] = ok
	}

	snap := o.stats.snapshot()
	status["total_queries"] = snap.TotalQueries
	status["success_rate"] = snap.SuccessRate

	return status
}
