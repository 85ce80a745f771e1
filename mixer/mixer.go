// Package mixer combines the responses of multiple experts into a single
// answer. Five strategies are provided: best-response passthrough (Default),
// labelled concatenation, LLM synthesis, weighted segment assembly and
// consensus extraction.
//
// Every mixer returns a single response unmodified: no synthesis call, no
// de-duplication pass. Mixing with an empty response map yields an empty
// string.
package mixer

import (
	"context"
	"fmt"
	"sort"
)

// Mixer combines expert responses. Weights are optional; a nil map means
// equal standing.
type Mixer interface {
	Mix(ctx context.Context, query string, responses map[string]string, weights map[string]float64) (string, error)
}

// sortedSources orders response sources by descending weight, breaking ties
// by source ID so the result is deterministic. Without weights the order is
// by source ID.
func sortedSources(responses map[string]string, weights map[string]float64) []string {
	sources := make([]string, 0, len(responses))
	for source := range responses {
		sources = append(sources, source)
	}
	sort.Slice(sources, func(i, j int) bool {
		wi, wj := weights[sources[i]], weights[sources[j]]
		if wi != wj {
			return wi > wj
		}
		return sources[i] < sources[j]
	})
	return sources
}

// singleResponse returns the sole response when exactly one is present.
func singleResponse(responses map[string]string) (string, bool) {
	if len(responses) != 1 {
		return "", false
	}
	for _, response := range responses {
		return response, true
	}
	return "", false
}

// Default returns the response of the highest-weight expert, or the first
// response by source order when no weights are supplied.
type Default struct{}

// NewDefault creates a Default mixer.
func NewDefault() *Default { return &Default{} }

// Mix implements Mixer.
func (m *Default) Mix(_ context.Context, _ string, responses map[string]string, weights map[string]float64) (string, error) {
	if len(responses) == 0 {
		return "", nil
	}

	sources := sortedSources(responses, weights)

	return responses[sources[0]], nil
}

// ConcatenationOptions configures a Concatenation mixer.
type ConcatenationOptions struct {
	// IncludeWeights toggles weight percentages in the source headers.
	IncludeWeights bool

	// Separator joins the labelled responses.
	Separator string
}

// Concatenation joins all responses, each prefixed with a source header,
// ordered by descending weight.
type Concatenation struct {
	opts ConcatenationOptions
}

// NewConcatenation creates a Concatenation mixer.
func NewConcatenation(optFns ...func(o *ConcatenationOptions)) *Concatenation {
	opts := ConcatenationOptions{
		IncludeWeights: true,
		Separator:      "\n\n",
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Concatenation{opts: opts}
}

// Mix implements Mixer.
func (m *Concatenation) Mix(_ context.Context, _ string, responses map[string]string, weights map[string]float64) (string, error) {
	if len(responses) == 0 {
		return "", nil
	}
	if response, ok := singleResponse(responses); ok {
		return response, nil
	}

	var parts []string
	for _, source := range sortedSources(responses, weights) {
		var header string
		if weight, ok := weights[source]; ok && m.opts.IncludeWeights {
			header = fmt.Sprintf("[%s (%.1f%%)]:", source, weight*100)
		} else {
			header = fmt.Sprintf("[%s]:", source)
		}
		parts = append(parts, header+"\n"+responses[source])
	}

	out := parts[0]
	for _, part := range parts[1:] {
		out += m.opts.Separator + part
	}

	return out, nil
}
