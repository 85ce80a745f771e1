// Package anthropic provides an expert wrapper for the Anthropic Claude API.
package anthropic

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hupe1980/expertmesh/expert"
)

// Options configures the Anthropic expert adapter (temperature, model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model        anthropic.Model
	SystemPrompt string
	Temperature  float64
	MaxTokens    int64
	APIKey       string
}

// Expert wraps the Anthropic Messages API behind the generic expert.Expert
// interface.
type Expert struct {
	id     string
	client *anthropic.Client
	opts   Options
}

// New creates a new Anthropic expert using the official client.
func New(id string, optFns ...func(o *Options)) *Expert {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Expert{id: id, client: &client, opts: opts}
}

// NewFromClient creates a new Anthropic expert from an existing client.
func NewFromClient(id string, client *anthropic.Client, optFns ...func(o *Options)) *Expert {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Expert{id: id, client: client, opts: opts}
}

// Generate produces a completion for the prompt.
func (e *Expert) Generate(ctx context.Context, prompt string, params expert.Params) (string, error) {
	temperature := e.opts.Temperature
	if params.Temperature > 0 {
		temperature = params.Temperature
	}
	maxTokens := e.opts.MaxTokens
	if params.MaxTokens > 0 {
		maxTokens = int64(params.MaxTokens)
	}

	msgParams := anthropic.MessageNewParams{
		Model:       e.opts.Model,
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(temperature),
	}
	if e.opts.SystemPrompt != "" {
		msgParams.System = []anthropic.TextBlockParam{{Text: e.opts.SystemPrompt}}
	}

	resp, err := e.client.Messages.New(ctx, msgParams)
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.AsText().Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("no text content returned")
	}

	return b.String(), nil
}

// Embed is not supported by the Anthropic API.
func (e *Expert) Embed(_ context.Context, _ string) ([]float64, error) {
	return nil, fmt.Errorf("anthropic does not provide an embeddings api")
}

// IsAvailable reports whether the adapter is configured with an API key.
func (e *Expert) IsAvailable(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	return e.opts.APIKey != "" || os.Getenv("ANTHROPIC_API_KEY") != ""
}

// Info returns metadata describing this Anthropic expert implementation.
func (e *Expert) Info() expert.Info {
	return expert.Info{
		ID:                e.id,
		Provider:          "anthropic",
		Model:             string(e.opts.Model),
		SupportsEmbedding: false,
	}
}
