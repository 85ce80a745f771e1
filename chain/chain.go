// Package chain feeds a query through an ordered list of experts, each step
// building on the previous responses. Prompts are assembled from positional
// templates (first, middle, last) with optional per-expert overrides.
// SummarizingChain additionally compacts the accumulated context with a
// summarizer expert once it grows past a threshold.
package chain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hupe1980/expertmesh/expert"
	"github.com/hupe1980/expertmesh/internal/textutil"
	"github.com/hupe1980/expertmesh/logging"
)

// ErrNoResponses is returned when a chain finishes without a single response.
var ErrNoResponses = errors.New("chain produced no responses")

// Default positional templates. Placeholders: {query}, {prev_response},
// {all_responses}.
const (
	defaultFirstTemplate = "{query}"

	defaultMiddleTemplate = `Previous analysis: {prev_response}

Original query: {query}

Provide your additional insights and analysis.`

	defaultLastTemplate = `Previous analyses:
{all_responses}

Original query: {query}

Synthesize the above analyses into a comprehensive, integrated response.`
)

// Context carries state through one chain execution. Responses are
// append-only; metadata is keyed both by positional index (response_<i>) and
// by expert ID.
type Context struct {
	Query     string
	Responses []string
	Metadata  map[string]any
}

// NewContext creates a Context for the given query.
func NewContext(query string) *Context {
	return &Context{Query: query, Metadata: make(map[string]any)}
}

// AddResponse appends a response and records it in the metadata.
func (c *Context) AddResponse(response, expertID string) {
	c.Responses = append(c.Responses, response)
	c.Metadata["response_"+strconv.Itoa(len(c.Responses)-1)] = response
	c.Metadata[expertID] = response
}

// PreviousResponse returns the most recent response, or "" when none exist.
func (c *Context) PreviousResponse() string {
	if len(c.Responses) == 0 {
		return ""
	}
	return c.Responses[len(c.Responses)-1]
}

// AllResponses formats every accumulated response as a numbered analysis
// block.
func (c *Context) AllResponses() string {
	if len(c.Responses) == 0 {
		return "None"
	}

	parts := make([]string, len(c.Responses))
	for i, response := range c.Responses {
		parts[i] = fmt.Sprintf("Analysis %d:\n%s", i+1, response)
	}

	return strings.Join(parts, "\n\n")
}

// Options configures a Chain.
type Options struct {
	// Templates maps expert IDs to prompt templates, overriding the
	// positional defaults.
	Templates map[string]string

	// MaxContextLength truncates formatted prompts longer than this,
	// preserving the trailing original-query segment. 0 disables truncation.
	MaxContextLength int

	// StopOnError aborts the chain on a step failure. When false, an error
	// placeholder is recorded and the chain continues.
	StopOnError bool

	Logger logging.Logger
}

// Option mutates Options.
type Option func(o *Options)

// WithTemplate overrides the prompt template for a specific expert ID or for
// one of the positional slots ("first", "middle", "last").
func WithTemplate(name, template string) Option {
	return func(o *Options) {
		if o.Templates == nil {
			o.Templates = make(map[string]string)
		}
		o.Templates[name] = template
	}
}

// WithMaxContextLength bounds the formatted prompt length.
func WithMaxContextLength(n int) Option {
	return func(o *Options) { o.MaxContextLength = n }
}

// WithContinueOnError records step failures as placeholders instead of
// aborting the chain.
func WithContinueOnError() Option {
	return func(o *Options) { o.StopOnError = false }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// Chain runs experts sequentially, threading accumulated responses into each
// prompt. The final expert's response is the chain's result.
type Chain struct {
	experts []expert.Expert
	opts    Options
}

// New creates a Chain over the given experts in order.
func New(experts []expert.Expert, optFns ...Option) *Chain {
	opts := Options{
		StopOnError: true,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Chain{experts: experts, opts: opts}
}

// Generate runs the chain for the query and returns the final response.
func (c *Chain) Generate(ctx context.Context, query string, params expert.Params) (string, error) {
	chainCtx, err := c.Run(ctx, query, params)
	if err != nil {
		return "", err
	}

	return chainCtx.Responses[len(chainCtx.Responses)-1], nil
}

// Run executes the chain and returns the full accumulated context, letting
// callers inspect intermediate responses and error placeholders.
func (c *Chain) Run(ctx context.Context, query string, params expert.Params) (*Context, error) {
	chainCtx := NewContext(query)

	for i, e := range c.experts {
		if err := c.step(ctx, chainCtx, i, e, params); err != nil {
			return nil, err
		}
	}

	if len(chainCtx.Responses) == 0 {
		return nil, ErrNoResponses
	}

	return chainCtx, nil
}

// step executes one chain position against the context.
func (c *Chain) step(ctx context.Context, chainCtx *Context, i int, e expert.Expert, params expert.Params) error {
	id := e.Info().ID

	prompt := c.formatPrompt(chainCtx, id, i, len(c.experts))
	if c.opts.MaxContextLength > 0 {
		prompt = textutil.TruncateKeepQuery(prompt, c.opts.MaxContextLength)
	}

	response, err := e.Generate(ctx, prompt, params)
	if err != nil {
		c.opts.Logger.Error("Chain step failed", "step", i+1, "expert_id", id, "error", err)

		if c.opts.StopOnError {
			return fmt.Errorf("chain step %d (%s): %w", i+1, id, err)
		}

		chainCtx.AddResponse(fmt.Sprintf("[Error in %s: %s]", id, err.Error()), id)
		return nil
	}

	chainCtx.AddResponse(response, id)
	c.opts.Logger.Debug("Chain step completed", "step", i+1, "total", len(c.experts), "expert_id", id)

	return nil
}

func (c *Chain) formatPrompt(chainCtx *Context, expertID string, step, totalSteps int) string {
	template, ok := c.opts.Templates[expertID]
	if !ok {
		switch {
		case step == 0:
			template = c.positional("first", defaultFirstTemplate)
		case step == totalSteps-1:
			template = c.positional("last", defaultLastTemplate)
		default:
			template = c.positional("middle", defaultMiddleTemplate)
		}
	}

	return strings.NewReplacer(
		"{query}", chainCtx.Query,
		"{prev_response}", chainCtx.PreviousResponse(),
		"{all_responses}", chainCtx.AllResponses(),
	).Replace(template)
}

func (c *Chain) positional(slot, fallback string) string {
	if t, ok := c.opts.Templates[slot]; ok {
		return t
	}
	return fallback
}

// IsErrorPlaceholder reports whether a recorded response is the placeholder
// inserted for a failed step when the chain continues on error.
func IsErrorPlaceholder(response string) bool {
	return strings.HasPrefix(response, "[Error in ")
}

// Experts returns the chained experts in order.
func (c *Chain) Experts() []expert.Expert {
	return append([]expert.Expert(nil), c.experts...)
}
