// Package ensemble composes a registry, a router and a mixer into a
// single-or-multi-expert query operation. Routing selects the experts,
// generation fans out with per-call timeout and retry, and the mixer combines
// the surviving responses.
//
// Generate is total: every failure path terminates in a structured Result so
// callers never have to distinguish transport errors from routing misses.
package ensemble

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/hupe1980/expertmesh/expert"
	"github.com/hupe1980/expertmesh/logging"
	"github.com/hupe1980/expertmesh/mixer"
	"github.com/hupe1980/expertmesh/registry"
	"github.com/hupe1980/expertmesh/router"
)

// FallbackStrategy selects what happens when routing yields no expert.
type FallbackStrategy string

const (
	// FallbackDefault queries the configured default expert.
	FallbackDefault FallbackStrategy = "default"
	// FallbackRandom queries a uniformly picked available expert.
	FallbackRandom FallbackStrategy = "random"
	// FallbackAll queries up to three available experts with equal weights.
	FallbackAll FallbackStrategy = "all"
)

// fallbackExpertLimit caps how many experts the "all" fallback consults.
const fallbackExpertLimit = 3

// Options configures an Ensemble.
type Options struct {
	// Mixer combines multi-expert responses. Defaults to mixer.Default.
	Mixer mixer.Mixer

	// DefaultExpert is consulted by the default fallback strategy.
	DefaultExpert string

	// Fallback selects the policy applied when routing fails.
	Fallback FallbackStrategy

	// ExhaustFallbacks tries default, random and all in that priority
	// instead of only the configured policy.
	ExhaustFallbacks bool

	// Timeout bounds each generation attempt.
	Timeout time.Duration

	// Parallel fans multi-expert generation out to goroutines.
	Parallel bool

	// MaxRetries is the attempt count per expert call.
	MaxRetries int

	// RetryDelay is the base delay between attempts; it scales linearly with
	// the attempt number.
	RetryDelay time.Duration

	Logger logging.Logger
}

// Option mutates Options.
type Option func(o *Options)

// WithMixer sets the response mixer.
func WithMixer(m mixer.Mixer) Option {
	return func(o *Options) { o.Mixer = m }
}

// WithDefaultExpert sets the default fallback expert.
func WithDefaultExpert(id string) Option {
	return func(o *Options) { o.DefaultExpert = id }
}

// WithFallback sets the fallback strategy.
func WithFallback(s FallbackStrategy) Option {
	return func(o *Options) { o.Fallback = s }
}

// WithExhaustFallbacks enables trying every fallback policy in priority order.
func WithExhaustFallbacks() Option {
	return func(o *Options) { o.ExhaustFallbacks = true }
}

// WithTimeout bounds each generation attempt.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// WithSequential disables parallel fan-out.
func WithSequential() Option {
	return func(o *Options) { o.Parallel = false }
}

// WithRetry configures the per-call retry policy.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(o *Options) {
		o.MaxRetries = maxRetries
		o.RetryDelay = delay
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// Result is the structured outcome of one ensemble query.
type Result struct {
	// Response is the final mixed text. On failure it carries a short
	// diagnostic message.
	Response string `json:"response"`

	// Confidence is the top routing score of the consulted experts, or 0
	// when the query failed.
	Confidence float64 `json:"confidence"`

	// Experts lists the selected experts with their routing scores.
	Experts []router.Selection `json:"experts,omitempty"`

	// Responses holds the raw per-expert responses that survived fan-out.
	Responses map[string]string `json:"responses,omitempty"`

	// Duration is the wall-clock execution time.
	Duration time.Duration `json:"duration"`

	// FallbackUsed reports whether a fallback path produced the response.
	FallbackUsed bool `json:"fallback_used"`

	// FallbackReason names the condition that triggered the fallback.
	FallbackReason string `json:"fallback_reason,omitempty"`

	// Error carries a failure description when the query could not be
	// served at all.
	Error string `json:"error,omitempty"`
}

// Ensemble routes queries to domain experts and mixes their responses.
type Ensemble struct {
	router   router.Router
	registry *registry.Registry
	stats    Stats
	opts     Options
}

// New creates an Ensemble over the given router and registry.
func New(r router.Router, reg *registry.Registry, optFns ...Option) *Ensemble {
	opts := Options{
		Mixer:      mixer.NewDefault(),
		Fallback:   FallbackDefault,
		Timeout:    30 * time.Second,
		Parallel:   true,
		MaxRetries: 3,
		RetryDelay: time.Second,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Ensemble{router: r, registry: reg, opts: opts}
}

// Generate answers the query with up to topK experts. topK == 1 uses single
// routing; larger values use multi-routing with weighted mixing.
func (e *Ensemble) Generate(ctx context.Context, query string, topK int, params expert.Params) *Result {
	start := time.Now()
	e.stats.recordQuery()

	available := e.registry.Available(ctx)
	if len(available) == 0 {
		e.stats.recordFailure()
		return &Result{
			Response: "No experts are currently available",
			Error:    "no experts available",
			Duration: time.Since(start),
		}
	}

	var selections []router.Selection
	if topK <= 1 {
		if sel, ok := e.router.Route(ctx, query, available); ok {
			selections = []router.Selection{{Expert: sel.Expert, Score: 1.0}}
		}
	} else {
		selections = e.router.RouteMultiple(ctx, query, available, topK)
	}

	if len(selections) == 0 {
		e.opts.Logger.Warn("Routing found no suitable expert", "query_length", len(query))
		return e.fallback(ctx, query, available, params, start)
	}

	responses := e.fanOut(ctx, query, selections, params)
	if len(responses) == 0 {
		e.stats.recordFailure()
		return &Result{
			Response: "All selected experts failed",
			Error:    "all expert calls failed",
			Experts:  selections,
			Duration: time.Since(start),
		}
	}

	final, confidence := e.mixResponses(ctx, query, responses, selections)

	duration := time.Since(start)
	e.stats.recordSuccess(responses, duration)

	return &Result{
		Response:   final,
		Confidence: confidence,
		Experts:    selections,
		Responses:  responses,
		Duration:   duration,
	}
}

// fanOut runs generation for every selection, concurrently when parallel
// execution is enabled. Experts that fail after retries are excluded.
func (e *Ensemble) fanOut(ctx context.Context, query string, selections []router.Selection, params expert.Params) map[string]string {
	ids := make([]string, len(selections))
	for i, sel := range selections {
		ids[i] = sel.Expert
	}
	snapshot := e.registry.Snapshot(ids)

	responses := make(map[string]string, len(selections))

	if e.opts.Parallel && len(selections) > 1 {
		var (
			mu sync.Mutex
			wg sync.WaitGroup
		)
		for _, sel := range selections {
			exp, ok := snapshot[sel.Expert]
			if !ok {
				continue
			}

			wg.Add(1)
			go func(id string, exp expert.Expert) {
				defer wg.Done()

				response, err := e.callExpert(ctx, exp, query, params)
				if err != nil {
					e.opts.Logger.Error("Expert call failed", "expert_id", id, "error", err)
					return
				}

				mu.Lock()
				responses[id] = response
				mu.Unlock()
			}(sel.Expert, exp)
		}
		wg.Wait()
	} else {
		for _, sel := range selections {
			exp, ok := snapshot[sel.Expert]
			if !ok {
				continue
			}

			response, err := e.callExpert(ctx, exp, query, params)
			if err != nil {
				e.opts.Logger.Error("Expert call failed", "expert_id", sel.Expert, "error", err)
				continue
			}
			responses[sel.Expert] = response
		}
	}

	return responses
}

func (e *Ensemble) callExpert(ctx context.Context, exp expert.Generator, query string, params expert.Params) (string, error) {
	return expert.CallWithRetry(ctx, exp, query, params, e.opts.Timeout, e.opts.MaxRetries, e.opts.RetryDelay)
}

// mixResponses combines the surviving responses and reports the top routing
// score among them as the result confidence.
func (e *Ensemble) mixResponses(ctx context.Context, query string, responses map[string]string, selections []router.Selection) (string, float64) {
	var confidence float64
	weights := make(map[string]float64, len(responses))
	for _, sel := range selections {
		if _, ok := responses[sel.Expert]; !ok {
			continue
		}
		weights[sel.Expert] = sel.Score
		if sel.Score > confidence {
			confidence = sel.Score
		}
	}

	if len(responses) == 1 {
		for _, response := range responses {
			return response, confidence
		}
	}

	mixed, err := e.opts.Mixer.Mix(ctx, query, responses, weights)
	if err != nil {
		e.opts.Logger.Error("Mixing failed, using best response", "error", err)
		fallback, _ := mixer.NewDefault().Mix(ctx, query, responses, weights)
		return fallback, confidence
	}

	return mixed, confidence
}

// fallback applies the configured fallback policy after a routing miss.
func (e *Ensemble) fallback(ctx context.Context, query string, available []string, params expert.Params, start time.Time) *Result {
	policies := []FallbackStrategy{e.opts.Fallback}
	if e.opts.ExhaustFallbacks {
		policies = []FallbackStrategy{FallbackDefault, FallbackRandom, FallbackAll}
	}

	for _, policy := range policies {
		if result := e.tryFallback(ctx, policy, query, available, params, start); result != nil {
			e.stats.recordSuccess(result.Responses, result.Duration)
			return result
		}
	}

	e.stats.recordFailure()
	return &Result{
		Response:       "No suitable experts available for this query",
		Error:          "routing failed and fallbacks exhausted",
		FallbackUsed:   true,
		FallbackReason: "no_experts_available",
		Duration:       time.Since(start),
	}
}

func (e *Ensemble) tryFallback(ctx context.Context, policy FallbackStrategy, query string, available []string, params expert.Params, start time.Time) *Result {
	switch policy {
	case FallbackDefault:
		if e.opts.DefaultExpert == "" {
			return nil
		}
		found := false
		for _, id := range available {
			if id == e.opts.DefaultExpert {
				found = true
				break
			}
		}
		if !found {
			return nil
		}
		return e.singleFallback(ctx, e.opts.DefaultExpert, query, params, start)

	case FallbackRandom:
		if len(available) == 0 {
			return nil
		}
		return e.singleFallback(ctx, available[rand.Intn(len(available))], query, params, start)

	case FallbackAll:
		if len(available) == 0 {
			return nil
		}
		ids := available
		if len(ids) > fallbackExpertLimit {
			ids = ids[:fallbackExpertLimit]
		}

		selections := make([]router.Selection, len(ids))
		for i, id := range ids {
			selections[i] = router.Selection{Expert: id, Score: 1 / float64(len(ids))}
		}

		responses := e.fanOut(ctx, query, selections, params)
		if len(responses) == 0 {
			return nil
		}

		weights := make(map[string]float64, len(responses))
		for id := range responses {
			weights[id] = 1 / float64(len(responses))
		}
		mixed, err := e.opts.Mixer.Mix(ctx, query, responses, weights)
		if err != nil {
			return nil
		}

		return &Result{
			Response:       mixed,
			Confidence:     1 / float64(len(responses)),
			Experts:        selections,
			Responses:      responses,
			Duration:       time.Since(start),
			FallbackUsed:   true,
			FallbackReason: "routing_failed",
		}
	}

	return nil
}

func (e *Ensemble) singleFallback(ctx context.Context, id, query string, params expert.Params, start time.Time) *Result {
	exp, err := e.registry.Get(id)
	if err != nil {
		return nil
	}

	response, err := e.callExpert(ctx, exp, query, params)
	if err != nil {
		e.opts.Logger.Error("Fallback expert failed", "expert_id", id, "error", err)
		return nil
	}

	return &Result{
		Response:       response,
		Confidence:     1.0,
		Experts:        []router.Selection{{Expert: id, Score: 1.0}},
		Responses:      map[string]string{id: response},
		Duration:       time.Since(start),
		FallbackUsed:   true,
		FallbackReason: "routing_failed",
	}
}

// Stats returns a snapshot of the ensemble's usage statistics.
func (e *Ensemble) Stats() StatsSnapshot {
	return e.stats.snapshot()
}

// ResetStats zeroes the usage statistics.
func (e *Ensemble) ResetStats() {
	e.stats.reset()
}

// HealthCheck probes every registered expert and runs a short test
// generation against it.
func (e *Ensemble) HealthCheck(ctx context.Context) map[string]any {
	experts := make(map[string]any)
	healthy := true

	for _, id := range e.registry.List() {
		exp, err := e.registry.Get(id)
		if err != nil {
			continue
		}

		status := map[string]any{"available": false, "responding": false}

		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if exp.IsAvailable(probeCtx) {
			status["available"] = true
			if response, err := exp.Generate(probeCtx, "Hello", expert.Params{MaxTokens: 16}); err == nil {
				status["responding"] = true
				status["test_response_length"] = len(response)
			} else {
				status["error"] = err.Error()
			}
		}
		cancel()

		if status["available"] != true {
			healthy = false
		}
		experts[id] = status
	}

	return map[string]any{
		"overall_health": healthy,
		"experts":        experts,
		"timestamp":      time.Now().Unix(),
	}
}
