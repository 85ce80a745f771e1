// Package expertmesh provides a high-level façade over the routing,
// confidence and mixing components, enabling rapid construction of
// domain-expert combination systems. Most applications interact with this
// package by:
//  1. Creating a Pipeline via New() (optionally overriding the default
//     keyword router and estimator)
//  2. Registering domain experts and their domain profiles
//  3. Issuing queries via Query, BatchQuery or CompareStrategies
//
// The façade delegates strategy selection and execution to
// orchestrator.Orchestrator while keeping setup and usage ergonomics concise.
// All defaults are deterministic and dependency-free; production deployments
// typically supply embedding- or LLM-backed routers and estimators plus a
// structured logger.
package expertmesh

import (
	"context"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/expertmesh/chain"
	"github.com/hupe1980/expertmesh/confidence"
	"github.com/hupe1980/expertmesh/domain"
	"github.com/hupe1980/expertmesh/ensemble"
	"github.com/hupe1980/expertmesh/expert"
	"github.com/hupe1980/expertmesh/logging"
	"github.com/hupe1980/expertmesh/moe"
	"github.com/hupe1980/expertmesh/orchestrator"
	"github.com/hupe1980/expertmesh/registry"
	"github.com/hupe1980/expertmesh/router"
)

// Options configures the Pipeline instance.
type Options struct {
	// Router selects experts for the ensemble strategy. Defaults to the
	// keyword router.
	Router router.Router

	// Estimator scores experts for the mixture-of-experts strategy. Defaults
	// to the keyword estimator.
	Estimator confidence.Estimator

	// EnsembleOptions are forwarded to the ensemble constructor.
	EnsembleOptions []ensemble.Option

	// MoEOptions are forwarded to the mixture-of-experts constructor.
	MoEOptions []moe.Option

	// ChainOptions are forwarded to the chain constructor whenever the chain
	// is rebuilt after an expert change.
	ChainOptions []chain.Option

	// OrchestratorOptions are forwarded to the orchestrator constructor.
	OrchestratorOptions []orchestrator.Option

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Pipeline is the high-level façade aggregating the registry, the strategy
// components and the orchestrator.
type Pipeline struct {
	mu           sync.Mutex
	opts         Options
	registry     *registry.Registry
	router       router.Router
	estimator    confidence.Estimator
	orchestrator *orchestrator.Orchestrator
}

// New creates a Pipeline with optional overrides. Any unset component is
// initialized with a deterministic keyword-based implementation.
func New(optFns ...func(o *Options)) *Pipeline {
	opts := Options{
		Router:    router.NewKeyword(),
		Estimator: confidence.NewKeyword(),
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	reg := registry.New(registry.WithLogger(opts.Logger))

	ensembleOpts := append([]ensemble.Option{ensemble.WithLogger(opts.Logger)}, opts.EnsembleOptions...)
	moeOpts := append([]moe.Option{moe.WithLogger(opts.Logger)}, opts.MoEOptions...)
	orchestratorOpts := append([]orchestrator.Option{orchestrator.WithLogger(opts.Logger)}, opts.OrchestratorOptions...)

	ens := ensemble.New(opts.Router, reg, ensembleOpts...)
	mixture := moe.New(opts.Estimator, reg, moeOpts...)
	ch := chain.New(nil, opts.ChainOptions...)

	return &Pipeline{
		opts:         opts,
		registry:     reg,
		router:       opts.Router,
		estimator:    opts.Estimator,
		orchestrator: orchestrator.New(reg, ens, mixture, ch, orchestratorOpts...),
	}
}

// AddExpert registers a domain expert and rebuilds the sequential chain over
// the registered experts in insertion order.
func (p *Pipeline) AddExpert(e expert.Expert) error {
	if err := p.registry.Register(e); err != nil {
		return err
	}
	p.rebuildChain()
	return nil
}

// RemoveExpert unregisters an expert by ID.
func (p *Pipeline) RemoveExpert(id string) error {
	if err := p.registry.Remove(id); err != nil {
		return err
	}
	p.rebuildChain()
	return nil
}

// ListExperts returns the registered expert IDs in insertion order.
func (p *Pipeline) ListExperts() []string {
	return p.registry.List()
}

// AddDomain teaches the router and the confidence estimator about a domain.
func (p *Pipeline) AddDomain(ctx context.Context, profile *domain.Profile) error {
	if err := p.router.AddDomain(ctx, profile); err != nil {
		return err
	}
	return p.estimator.AddDomain(ctx, profile)
}

func (p *Pipeline) rebuildChain() {
	p.mu.Lock()
	defer p.mu.Unlock()

	experts := lo.FilterMap(p.registry.List(), func(id string, _ int) (expert.Expert, bool) {
		e, err := p.registry.Get(id)
		return e, err == nil
	})

	p.orchestrator.SetChain(chain.New(experts, p.opts.ChainOptions...))
}

// QueryOptions tunes a single Query invocation.
type QueryOptions struct {
	// Strategy pins a strategy; empty or auto defers to query analysis.
	Strategy orchestrator.Strategy

	// MaxExperts caps how many experts one strategy consults.
	MaxExperts int

	// ConfidenceThreshold gates the hybrid escalation.
	ConfidenceThreshold float64

	// IncludeExplanation attaches a processing explanation to the result.
	IncludeExplanation bool

	// Params is forwarded to expert generation calls.
	Params expert.Params
}

// Query answers a single question through the orchestrated pipeline. It never
// returns an error; failures are reported in the result.
func (p *Pipeline) Query(ctx context.Context, question string, optFns ...func(o *QueryOptions)) *orchestrator.Result {
	opts := QueryOptions{
		Strategy:            orchestrator.StrategyAuto,
		MaxExperts:          3,
		ConfidenceThreshold: 0.7,
		IncludeExplanation:  true,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := orchestrator.DefaultConfig()
	cfg.Strategy = opts.Strategy
	cfg.MaxParallelExperts = opts.MaxExperts
	cfg.ConfidenceThreshold = opts.ConfidenceThreshold
	cfg.EnableExplanation = opts.IncludeExplanation
	cfg.Params = opts.Params

	return p.orchestrator.Process(ctx, question, cfg)
}

// BatchQuery processes multiple questions concurrently. Results are returned
// in question order.
func (p *Pipeline) BatchQuery(ctx context.Context, questions []string, optFns ...func(o *QueryOptions)) ([]*orchestrator.Result, error) {
	results := make([]*orchestrator.Result, len(questions))

	g, gctx := errgroup.WithContext(ctx)
	for i, question := range questions {
		g.Go(func() error {
			results[i] = p.Query(gctx, question, optFns...)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// StrategyExplanation describes which strategy the pipeline would pick for a
// query without executing it.
type StrategyExplanation struct {
	Query       string                `json:"query"`
	Analysis    orchestrator.Analysis `json:"analysis"`
	Recommended orchestrator.Strategy `json:"recommended_strategy"`
	Explanation string                `json:"strategy_explanation"`
}

var strategyExplanations = map[orchestrator.Strategy]string{
	orchestrator.StrategyEnsemble: "Router-based ensemble was selected for fast, parallel processing with intelligent routing to the most appropriate expert.",
	orchestrator.StrategyMoE:      "Mixture of experts was selected because the query requires synthesis of multiple expert perspectives with confidence-weighted combination.",
	orchestrator.StrategyChain:    "Sequential chain was selected for queries requiring deep, iterative analysis where each expert builds upon previous insights.",
	orchestrator.StrategyHybrid:   "Hybrid approach was selected for complex queries that benefit from multiple processing strategies combined intelligently.",
}

// ExplainStrategy analyzes a question and reports the strategy the
// orchestrator would choose, without consulting any expert.
func (p *Pipeline) ExplainStrategy(question string) StrategyExplanation {
	analysis := orchestrator.AnalyzeQuery(question)
	strategy := p.orchestrator.SelectStrategy(analysis, nil)

	explanation, ok := strategyExplanations[strategy]
	if !ok {
		explanation = "Strategy selected based on query characteristics."
	}

	return StrategyExplanation{
		Query:       question,
		Analysis:    analysis,
		Recommended: strategy,
		Explanation: explanation,
	}
}

// CompareStrategies answers the same question once per strategy, letting
// callers inspect how the strategies differ on real output.
func (p *Pipeline) CompareStrategies(ctx context.Context, question string, strategies ...orchestrator.Strategy) map[orchestrator.Strategy]*orchestrator.Result {
	if len(strategies) == 0 {
		strategies = []orchestrator.Strategy{
			orchestrator.StrategyEnsemble,
			orchestrator.StrategyMoE,
			orchestrator.StrategyChain,
			orchestrator.StrategyHybrid,
		}
	}

	results := make(map[orchestrator.Strategy]*orchestrator.Result, len(strategies))
	for _, strategy := range strategies {
		results[strategy] = p.Query(ctx, question, func(o *QueryOptions) {
			o.Strategy = strategy
		})
	}

	return results
}

// HealthCheck reports component and expert health.
func (p *Pipeline) HealthCheck(ctx context.Context) map[string]any {
	return p.orchestrator.HealthCheck(ctx)
}

// Stats returns a snapshot of the orchestrator's usage statistics.
func (p *Pipeline) Stats() orchestrator.StatsSnapshot {
	return p.orchestrator.Stats()
}
