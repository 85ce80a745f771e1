package expert

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Params carries per-call generation parameters. Zero values defer to the
// adapter's defaults.
type Params struct {
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// Info contains metadata about an expert implementation.
type Info struct {
	ID                string `json:"id"`
	Provider          string `json:"provider"` // "openai", "anthropic", "local", etc.
	Model             string `json:"model"`
	SupportsEmbedding bool   `json:"supports_embedding"`
}

// Expert is the capability contract for a backend domain expert. Adapters to
// concrete providers implement it; everything else in the engine references
// experts only through this interface (and usually only by ID via the
// registry).
type Expert interface {
	// Generate produces a completion for the prompt.
	Generate(ctx context.Context, prompt string, params Params) (string, error)

	// Embed returns an embedding vector for the text. Adapters without an
	// embedding capability return an error and report it via Info.
	Embed(ctx context.Context, text string) ([]float64, error)

	// IsAvailable probes whether the backing service is reachable and
	// configured. It must respect ctx cancellation.
	IsAvailable(ctx context.Context) bool

	// Info returns metadata about the expert implementation.
	Info() Info
}

// Generator is the narrow generation-only capability used by components that
// consult a single designated expert (judges, synthesizers, summarizers).
type Generator interface {
	Generate(ctx context.Context, prompt string, params Params) (string, error)
}

// Embedder is the narrow embedding-only capability used by embedding-based
// routing and confidence estimation.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// CallWithRetry invokes e.Generate with a bounded per-attempt timeout and up
// to maxRetries attempts. The delay between attempts grows linearly with the
// attempt number. The last error is returned once attempts are exhausted.
func CallWithRetry(
	ctx context.Context,
	e Generator,
	prompt string,
	params Params,
	timeout time.Duration,
	maxRetries int,
	retryDelay time.Duration,
) (string, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		callCtx := ctx
		cancel := context.CancelFunc(func() {})
		if timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, timeout)
		}

		response, err := e.Generate(callCtx, prompt, params)
		cancel()

		if err == nil {
			return response, nil
		}
		lastErr = err

		if attempt < maxRetries-1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(retryDelay * time.Duration(attempt+1)):
			}
		}
	}

	return "", fmt.Errorf("all %d attempts failed: %w", maxRetries, lastErr)
}

// Mock is a lightweight in-memory Expert useful for tests & examples.
type Mock struct {
	mu        sync.Mutex
	info      Info
	responses map[string]string
	embedFn   func(text string) []float64
	err       error
	delay     time.Duration
	available bool
	calls     int
}

// NewMock constructs an available Mock that echoes prompts it has no canned
// response for.
func NewMock(id string) *Mock {
	return &Mock{
		info: Info{
			ID:                id,
			Provider:          "mock",
			Model:             id,
			SupportsEmbedding: true,
		},
		responses: make(map[string]string),
		available: true,
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *Mock) AddResponse(prompt, response string) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
	return m
}

// FailWith makes every Generate call return err.
func (m *Mock) FailWith(err error) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithDelay makes Generate sleep before responding, for timeout tests.
func (m *Mock) WithDelay(d time.Duration) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithEmbedFn overrides the embedding function.
func (m *Mock) WithEmbedFn(fn func(text string) []float64) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedFn = fn
	return m
}

// SetAvailable toggles the availability probe result.
func (m *Mock) SetAvailable(available bool) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = available
	return m
}

// Calls returns the number of Generate invocations observed.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Generate implements Expert.
func (m *Mock) Generate(ctx context.Context, prompt string, _ Params) (string, error) {
	m.mu.Lock()
	m.calls++
	err := m.err
	delay := m.delay
	response, ok := m.responses[prompt]
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}

	if err != nil {
		return "", err
	}
	if !ok {
		response = fmt.Sprintf("Mock response from %s to: %s", m.info.ID, prompt)
	}

	return response, nil
}

// Embed implements Expert using the configured embed function or a trivial
// deterministic fallback.
func (m *Mock) Embed(_ context.Context, text string) ([]float64, error) {
	m.mu.Lock()
	fn := m.embedFn
	m.mu.Unlock()

	if fn != nil {
		return fn(text), nil
	}

	// Character-class histogram keeps related texts nearby without any model.
	vec := make([]float64, 8)
	for _, r := range text {
		vec[int(r)%len(vec)]++
	}
	return vec, nil
}

// IsAvailable implements Expert.
func (m *Mock) IsAvailable(_ context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

// Info implements Expert.
func (m *Mock) Info() Info { return m.info }
