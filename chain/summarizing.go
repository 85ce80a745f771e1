package chain

import (
	"context"
	"strconv"
	"strings"

	"github.com/hupe1980/expertmesh/expert"
)

// summaryTemplate instructs the summarizer. {content} and {target_length} are
// substituted at call time.
const summaryTemplate = `Summarize the following analysis concisely while preserving all key insights and important details:

{content}

Summary (target length: ~{target_length} characters):`

// SummarizingOptions configures a SummarizingChain.
type SummarizingOptions struct {
	// Summarizer produces the context summaries. Defaults to the last expert
	// in the chain.
	Summarizer expert.Generator

	// SummaryThreshold is the cumulative response length that triggers
	// summarization before the next step.
	SummaryThreshold int

	// SummaryTargetLength is the requested summary length.
	SummaryTargetLength int
}

// SummarizingChain is a Chain that bounds context growth: before each step
// after the first, if the accumulated responses exceed the threshold, a
// summarizer expert condenses them into a single response that replaces the
// whole context. A failed summarization is skipped silently and the chain
// continues with the full context.
type SummarizingChain struct {
	*Chain
	opts SummarizingOptions
}

// NewSummarizing creates a SummarizingChain over the given experts.
func NewSummarizing(experts []expert.Expert, sumOpts SummarizingOptions, optFns ...Option) *SummarizingChain {
	if sumOpts.SummaryThreshold <= 0 {
		sumOpts.SummaryThreshold = 2000
	}
	if sumOpts.SummaryTargetLength <= 0 {
		sumOpts.SummaryTargetLength = 500
	}
	if sumOpts.Summarizer == nil && len(experts) > 0 {
		sumOpts.Summarizer = experts[len(experts)-1]
	}

	return &SummarizingChain{
		Chain: New(experts, optFns...),
		opts:  sumOpts,
	}
}

// Generate runs the chain, summarizing the accumulated context whenever it
// outgrows the threshold.
func (c *SummarizingChain) Generate(ctx context.Context, query string, params expert.Params) (string, error) {
	chainCtx := NewContext(query)

	for i, e := range c.experts {
		if i > 0 && c.shouldSummarize(chainCtx) {
			c.summarize(ctx, chainCtx, params)
		}

		if err := c.step(ctx, chainCtx, i, e, params); err != nil {
			return "", err
		}
	}

	if len(chainCtx.Responses) == 0 {
		return "", ErrNoResponses
	}

	return chainCtx.Responses[len(chainCtx.Responses)-1], nil
}

func (c *SummarizingChain) shouldSummarize(chainCtx *Context) bool {
	total := 0
	for _, response := range chainCtx.Responses {
		total += len(response)
	}
	return total > c.opts.SummaryThreshold
}

// summarize replaces the accumulated context with a single summary response.
// Failures leave the context untouched.
func (c *SummarizingChain) summarize(ctx context.Context, chainCtx *Context, params expert.Params) {
	if c.opts.Summarizer == nil {
		c.Chain.opts.Logger.Warn("No summarizer available, skipping summarization")
		return
	}

	prompt := strings.NewReplacer(
		"{content}", chainCtx.AllResponses(),
		"{target_length}", strconv.Itoa(c.opts.SummaryTargetLength),
	).Replace(summaryTemplate)

	summary, err := c.opts.Summarizer.Generate(ctx, prompt, params)
	if err != nil {
		c.Chain.opts.Logger.Error("Failed to summarize chain context", "error", err)
		return
	}

	chainCtx.Responses = []string{summary}
	chainCtx.Metadata = map[string]any{
		"query":      chainCtx.Query,
		"summarized": true,
		"response_0": summary,
	}

	c.Chain.opts.Logger.Info("Summarized chain context", "summary_length", len(summary))
}
