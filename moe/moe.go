// Package moe implements the mixture-of-experts composition: every available
// expert is scored by a confidence estimator, the qualifying experts are
// consulted in parallel and their responses are mixed by confidence weight.
// An optional meta-expert pass refines the mixed answer.
package moe

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/expertmesh/confidence"
	"github.com/hupe1980/expertmesh/expert"
	"github.com/hupe1980/expertmesh/internal/mathutil"
	"github.com/hupe1980/expertmesh/logging"
	"github.com/hupe1980/expertmesh/mixer"
	"github.com/hupe1980/expertmesh/registry"
)

// SelectionMethod controls how qualifying experts are weighted and capped.
type SelectionMethod string

const (
	// SelectWeighted softmax-normalizes the qualifying scores before the cap.
	SelectWeighted SelectionMethod = "weighted"
	// SelectTopK keeps the highest raw scores up to the cap.
	SelectTopK SelectionMethod = "top_k"
	// SelectThreshold keeps everything above the threshold up to the cap.
	SelectThreshold SelectionMethod = "threshold"
)

// metaPrompt instructs the meta-expert refinement pass.
const metaPrompt = `As a meta-expert, review and refine the following synthesized response based on the expert inputs.

Original Query: {query}

Expert Responses:
{expert_responses}

Synthesized Response: {mixed_response}

Please provide a refined response that:
1. Incorporates the best insights from all experts
2. Resolves any contradictions
3. Provides a coherent and comprehensive answer
4. Maintains appropriate confidence levels

Refined Response:`

// Options configures a MixtureOfExperts.
type Options struct {
	// Mixer combines expert responses. Defaults to labelled concatenation.
	Mixer mixer.Mixer

	// MetaExpert refines the mixed answer when set.
	MetaExpert expert.Generator

	// ConfidenceThreshold filters experts before selection.
	ConfidenceThreshold float64

	// MaxExperts caps how many experts are consulted per query.
	MaxExperts int

	// Method selects the expert weighting policy.
	Method SelectionMethod

	// Temperature scales the softmax in the weighted selection method.
	Temperature float64

	// NormalizeWeights rescales surviving weights to sum to 1 before mixing.
	NormalizeWeights bool

	// Timeout bounds each generation attempt.
	Timeout time.Duration

	// Parallel fans expert calls out to goroutines.
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

// WithMetaExpert enables the meta-expert refinement pass.
func WithMetaExpert(e expert.Generator) Option {
	return func(o *Options) { o.MetaExpert = e }
}

// WithConfidenceThreshold sets the qualification threshold.
func WithConfidenceThreshold(t float64) Option {
	return func(o *Options) { o.ConfidenceThreshold = t }
}

// WithMaxExperts caps the number of consulted experts.
func WithMaxExperts(n int) Option {
	return func(o *Options) { o.MaxExperts = n }
}

// WithSelectionMethod sets the expert weighting policy.
func WithSelectionMethod(m SelectionMethod) Option {
	return func(o *Options) { o.Method = m }
}

// WithTemperature scales the weighted selection softmax.
func WithTemperature(t float64) Option {
	return func(o *Options) { o.Temperature = t }
}

// WithTimeout bounds each expert call.
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

// WeightedExpert is one selected expert with its selection weight.
type WeightedExpert struct {
	Expert string  `json:"expert"`
	Weight float64 `json:"weight"`
}

// Result is the structured outcome of one mixture query.
type Result struct {
	// Response is the final (optionally meta-refined) text. On failure it
	// carries a short diagnostic message.
	Response string `json:"response"`

	// Confidence is the mean raw confidence of the consulted experts.
	Confidence float64 `json:"confidence"`

	// Experts lists the selected experts with their mixing weights.
	Experts []WeightedExpert `json:"experts,omitempty"`

	// Responses holds the raw per-expert responses that survived fan-out.
	Responses map[string]string `json:"responses,omitempty"`

	// ConfidenceScores is the full estimator output for the query.
	ConfidenceScores map[string]float64 `json:"confidence_scores,omitempty"`

	// Duration is the wall-clock execution time.
	Duration time.Duration `json:"duration"`

	// MetaExpertUsed reports whether the refinement pass ran.
	MetaExpertUsed bool `json:"meta_expert_used"`

	// Error carries a failure description when the query could not be
	// served.
	Error string `json:"error,omitempty"`
}

// MixtureOfExperts consults multiple experts per query, weighted by
// estimated confidence.
type MixtureOfExperts struct {
	estimator confidence.Estimator
	registry  *registry.Registry
	stats     Stats
	opts      Options
}

// New creates a MixtureOfExperts over the given estimator and registry.
func New(estimator confidence.Estimator, reg *registry.Registry, optFns ...Option) *MixtureOfExperts {
	opts := Options{
		Mixer:               mixer.NewConcatenation(),
		ConfidenceThreshold: 0.1,
		MaxExperts:          5,
		Method:              SelectWeighted,
		Temperature:         1.0,
		NormalizeWeights:    true,
		Timeout:             30 * time.Second,
		Parallel:            true,
		MaxRetries:          3,
		RetryDelay:          time.Second,
		Logger:              logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &MixtureOfExperts{estimator: estimator, registry: reg, opts: opts}
}

// Generate answers the query through the qualifying experts. topK and
// threshold override the configured values when positive.
func (m *MixtureOfExperts) Generate(ctx context.Context, query string, topK int, threshold float64, params expert.Params) *Result {
	start := time.Now()
	m.stats.recordQuery()

	available := m.registry.Available(ctx)
	if len(available) == 0 {
		m.stats.recordFailure()
		return &Result{
			Response: "No expert models are currently available",
			Error:    "no experts available",
			Duration: time.Since(start),
		}
	}

	scores, err := m.estimator.Estimate(ctx, query, available)
	if err != nil {
		m.stats.recordFailure()
		return &Result{
			Response: "Confidence estimation failed",
			Error:    fmt.Sprintf("estimate confidence: %s", err),
			Duration: time.Since(start),
		}
	}

	maxExperts := m.opts.MaxExperts
	if topK > 0 {
		maxExperts = topK
	}
	minConfidence := m.opts.ConfidenceThreshold
	if threshold > 0 {
		minConfidence = threshold
	}

	selected := m.selectExperts(scores, available, maxExperts, minConfidence)
	if len(selected) == 0 {
		m.opts.Logger.Warn("No experts meet confidence threshold", "threshold", minConfidence)
		m.stats.recordFailure()
		return &Result{
			Response:         "No experts were selected for this query",
			Error:            "no experts selected",
			ConfidenceScores: scores,
			Duration:         time.Since(start),
		}
	}

	responses := m.fanOut(ctx, query, selected, params)
	if len(responses) == 0 {
		m.stats.recordFailure()
		return &Result{
			Response:         "All selected experts failed",
			Error:            "all expert calls failed",
			Experts:          selected,
			ConfidenceScores: scores,
			Duration:         time.Since(start),
		}
	}

	final := m.mixResponses(ctx, query, responses, selected)

	metaUsed := false
	if m.opts.MetaExpert != nil {
		if refined, ok := m.applyMetaExpert(ctx, query, final, responses, selected, params); ok {
			final = refined
			metaUsed = true
		}
	}

	duration := time.Since(start)
	m.stats.recordSuccess(selected, scores, duration)

	return &Result{
		Response:         final,
		Confidence:       meanConfidence(scores, responses),
		Experts:          selected,
		Responses:        responses,
		ConfidenceScores: scores,
		Duration:         duration,
		MetaExpertUsed:   metaUsed,
	}
}

// selectExperts filters by threshold and applies the selection method. The
// available order keeps ties deterministic.
func (m *MixtureOfExperts) selectExperts(scores map[string]float64, available []string, maxExperts int, threshold float64) []WeightedExpert {
	var qualified []WeightedExpert
	for _, id := range available {
		if score, ok := scores[id]; ok && score >= threshold {
			qualified = append(qualified, WeightedExpert{Expert: id, Weight: score})
		}
	}
	if len(qualified) == 0 {
		return nil
	}

	if m.opts.Method == SelectWeighted {
		values := make([]float64, len(qualified))
		for i, q := range qualified {
			values[i] = q.Weight
		}
		normalized := mathutil.Softmax(values, m.opts.Temperature)
		for i := range qualified {
			qualified[i].Weight = normalized[i]
		}
	}

	sort.SliceStable(qualified, func(i, j int) bool { return qualified[i].Weight > qualified[j].Weight })

	if maxExperts > 0 && len(qualified) > maxExperts {
		qualified = qualified[:maxExperts]
	}

	return qualified
}

// fanOut consults the selected experts, concurrently when enabled. Experts
// that fail after retries are excluded from the result.
func (m *MixtureOfExperts) fanOut(ctx context.Context, query string, selected []WeightedExpert, params expert.Params) map[string]string {
	ids := make([]string, len(selected))
	for i, sel := range selected {
		ids[i] = sel.Expert
	}
	snapshot := m.registry.Snapshot(ids)

	responses := make(map[string]string, len(selected))

	call := func(exp expert.Expert) (string, error) {
		return expert.CallWithRetry(ctx, exp, query, params, m.opts.Timeout, m.opts.MaxRetries, m.opts.RetryDelay)
	}

	if m.opts.Parallel && len(selected) > 1 {
		var (
			mu sync.Mutex
			wg sync.WaitGroup
		)
		for _, sel := range selected {
			exp, ok := snapshot[sel.Expert]
			if !ok {
				continue
			}

			wg.Add(1)
			go func(id string, exp expert.Expert) {
				defer wg.Done()

				response, err := call(exp)
				if err != nil {
					m.opts.Logger.Error("Expert call failed", "expert_id", id, "error", err)
					return
				}

				mu.Lock()
				responses[id] = response
				mu.Unlock()
			}(sel.Expert, exp)
		}
		wg.Wait()
	} else {
		for _, sel := range selected {
			exp, ok := snapshot[sel.Expert]
			if !ok {
				continue
			}

			response, err := call(exp)
			if err != nil {
				m.opts.Logger.Error("Expert call failed", "expert_id", sel.Expert, "error", err)
				continue
			}
			responses[sel.Expert] = response
		}
	}

	return responses
}

// mixResponses normalizes the surviving weights and mixes.
func (m *MixtureOfExperts) mixResponses(ctx context.Context, query string, responses map[string]string, selected []WeightedExpert) string {
	if len(responses) == 1 {
		for _, response := range responses {
			return response
		}
	}

	weights := make(map[string]float64, len(responses))
	for _, sel := range selected {
		if _, ok := responses[sel.Expert]; ok {
			weights[sel.Expert] = sel.Weight
		}
	}
	if m.opts.NormalizeWeights {
		weights = mathutil.NormalizeWeights(weights)
	}

	mixed, err := m.opts.Mixer.Mix(ctx, query, responses, weights)
	if err != nil {
		m.opts.Logger.Error("Mixing failed, using best response", "error", err)
		fallback, _ := mixer.NewDefault().Mix(ctx, query, responses, weights)
		return fallback
	}

	return mixed
}

// applyMetaExpert runs the refinement pass. Failures degrade silently to the
// unrefined answer.
func (m *MixtureOfExperts) applyMetaExpert(ctx context.Context, query, mixed string, responses map[string]string, selected []WeightedExpert, params expert.Params) (string, bool) {
	var info []string
	for _, sel := range selected {
		response, ok := responses[sel.Expert]
		if !ok {
			continue
		}
		info = append(info,
			fmt.Sprintf("Expert: %s (confidence: %.2f)", sel.Expert, sel.Weight),
			fmt.Sprintf("Response: %s", response),
			"",
		)
	}

	prompt := strings.NewReplacer(
		"{query}", query,
		"{expert_responses}", strings.Join(info, "\n"),
		"{mixed_response}", mixed,
	).Replace(metaPrompt)

	refined, err := m.opts.MetaExpert.Generate(ctx, prompt, params)
	if err != nil {
		m.opts.Logger.Error("Meta-expert refinement failed", "error", err)
		return "", false
	}

	return strings.TrimSpace(refined), true
}

// meanConfidence averages the raw confidence of the experts that responded.
func meanConfidence(scores map[string]float64, responses map[string]string) float64 {
	if len(responses) == 0 {
		return 0
	}

	var sum float64
	for id := range responses {
		sum += scores[id]
	}

	return sum / float64(len(responses))
}

// AnalyzeQuery reports which experts would be selected for a query without
// generating responses.
func (m *MixtureOfExperts) AnalyzeQuery(ctx context.Context, query string) (map[string]any, error) {
	available := m.registry.Available(ctx)
	if len(available) == 0 {
		return nil, fmt.Errorf("no experts available")
	}

	scores, err := m.estimator.Estimate(ctx, query, available)
	if err != nil {
		return nil, fmt.Errorf("estimate confidence: %w", err)
	}

	selected := m.selectExperts(scores, available, m.opts.MaxExperts, m.opts.ConfidenceThreshold)

	return map[string]any{
		"query":             query,
		"available_experts": available,
		"confidence_scores": scores,
		"selected_experts":  selected,
		"selection_criteria": map[string]any{
			"threshold":   m.opts.ConfidenceThreshold,
			"max_experts": m.opts.MaxExperts,
			"method":      m.opts.Method,
		},
	}, nil
}

// Stats returns a snapshot of the mixture's usage statistics.
func (m *MixtureOfExperts) Stats() StatsSnapshot {
	return m.stats.snapshot()
}

// ResetStats zeroes the usage statistics.
func (m *MixtureOfExperts) ResetStats() {
	m.stats.reset()
}
