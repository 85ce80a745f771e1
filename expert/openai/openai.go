// Package openai provides an implementation of expert.Expert using the OpenAI
// Chat Completions and Embeddings APIs. It adapts the engine's prompt/params
// contract into the SDK's message format and back.
package openai

import (
	"context"
	"fmt"
	"os"

	"github.com/hupe1980/expertmesh/expert"
	"github.com/openai/openai-go"
)

// Options configure the OpenAI expert adapter.
// Fields mirror a subset of Chat Completion parameters intentionally kept
// minimal; extend via functional options without breaking callers.
type Options struct {
	Model               string
	EmbeddingModel      string
	SystemPrompt        string
	Temperature         float64
	MaxCompletionTokens int64
}

// Expert wraps the OpenAI APIs behind the generic expert.Expert interface.
type Expert struct {
	id     string
	client *openai.Client
	opts   Options
}

// New creates a new OpenAI expert using the official client. The client reads
// OPENAI_API_KEY from the environment.
func New(id string, optFns ...func(o *Options)) *Expert {
	client := openai.NewClient()
	return NewFromClient(id, &client, optFns...)
}

// NewFromClient creates a new OpenAI expert from an existing client.
func NewFromClient(id string, client *openai.Client, optFns ...func(o *Options)) *Expert {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		EmbeddingModel:      openai.EmbeddingModelTextEmbedding3Small,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Expert{id: id, client: client, opts: opts}
}

// Generate produces a completion for the prompt.
func (e *Expert) Generate(ctx context.Context, prompt string, params expert.Params) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if e.opts.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(e.opts.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(prompt))

	temperature := e.opts.Temperature
	if params.Temperature > 0 {
		temperature = params.Temperature
	}
	maxTokens := e.opts.MaxCompletionTokens
	if params.MaxTokens > 0 {
		maxTokens = int64(params.MaxTokens)
	}

	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               e.opts.Model,
		Temperature:         openai.Float(temperature),
		MaxCompletionTokens: openai.Int(maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}

	return resp.Choices[0].Message.Content, nil
}

// Embed returns an embedding vector for the text.
func (e *Expert) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: e.opts.EmbeddingModel,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings error: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}

	return resp.Data[0].Embedding, nil
}

// IsAvailable reports whether the adapter is configured. The SDK reads its
// key from the environment, so a present key is the readiness signal.
func (e *Expert) IsAvailable(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	return os.Getenv("OPENAI_API_KEY") != ""
}

// Info returns metadata describing this OpenAI expert implementation.
func (e *Expert) Info() expert.Info {
	return expert.Info{
		ID:                e.id,
		Provider:          "openai",
		Model:             e.opts.Model,
		SupportsEmbedding: true,
	}
}
