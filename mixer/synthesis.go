package mixer

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/expertmesh/expert"
	"github.com/hupe1980/expertmesh/internal/textutil"
	"github.com/hupe1980/expertmesh/logging"
)

// defaultSynthesisPrompt instructs the synthesis expert. {query} and
// {weighted_responses} are substituted at call time.
const defaultSynthesisPrompt = `You are tasked with synthesizing responses from multiple domain experts into a coherent, integrated response.

Original query: {query}

Expert responses:
{weighted_responses}

Create a unified response that:
1. Integrates insights from all relevant experts
2. Resolves any contradictions or conflicts
3. Provides a coherent narrative
4. Gives appropriate weight to each domain based on relevance
5. Directly addresses the original query

Synthesized response:`

// SynthesisOptions configures a Synthesis mixer.
type SynthesisOptions struct {
	// PromptTemplate overrides the default synthesis prompt. It must contain
	// the {query} and {weighted_responses} placeholders.
	PromptTemplate string

	// MaxInputLength caps the formatted response block sent to the synthesis
	// expert. 0 disables truncation.
	MaxInputLength int

	Logger logging.Logger
}

// Synthesis formats all responses into one prompt and asks a designated
// expert to produce an integrated answer. Any synthesis failure degrades to
// labelled concatenation instead of surfacing the error.
type Synthesis struct {
	synthesizer expert.Generator
	fallback    *Concatenation
	opts        SynthesisOptions
}

// NewSynthesis creates a Synthesis mixer around the given synthesis expert.
func NewSynthesis(synthesizer expert.Generator, optFns ...func(o *SynthesisOptions)) *Synthesis {
	opts := SynthesisOptions{
		PromptTemplate: defaultSynthesisPrompt,
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Synthesis{
		synthesizer: synthesizer,
		fallback:    NewConcatenation(),
		opts:        opts,
	}
}

// Mix implements Mixer.
func (m *Synthesis) Mix(ctx context.Context, query string, responses map[string]string, weights map[string]float64) (string, error) {
	if len(responses) == 0 {
		return "", nil
	}
	if response, ok := singleResponse(responses); ok {
		return response, nil
	}

	block := m.formatResponses(responses, weights)
	if m.opts.MaxInputLength > 0 {
		block = textutil.TruncateWithMarker(block, m.opts.MaxInputLength)
	}

	prompt := strings.NewReplacer(
		"{query}", query,
		"{weighted_responses}", block,
	).Replace(m.opts.PromptTemplate)

	synthesis, err := m.synthesizer.Generate(ctx, prompt, expert.Params{})
	if err != nil {
		m.opts.Logger.Warn("Synthesis failed, falling back to concatenation", "error", err)
		return m.fallback.Mix(ctx, query, responses, weights)
	}

	return strings.TrimSpace(synthesis), nil
}

func (m *Synthesis) formatResponses(responses map[string]string, weights map[string]float64) string {
	var parts []string
	for _, source := range sortedSources(responses, weights) {
		var header string
		if weight, ok := weights[source]; ok {
			header = fmt.Sprintf("[%s - Confidence: %.1f%%]", source, weight*100)
		} else {
			header = fmt.Sprintf("[%s]", source)
		}
		parts = append(parts, header+"\n"+responses[source])
	}

	return strings.Join(parts, "\n\n")
}
