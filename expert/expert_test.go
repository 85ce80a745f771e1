package expert

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMock_CannedResponse(t *testing.T) {
	m := NewMock("training").AddResponse("hello", "hi there")

	out, err := m.Generate(context.Background(), "hello", Params{})

	require.NoError(t, err)
	assert.Equal(t, "hi there", out)
}

func TestMock_EchoFallback(t *testing.T) {
	m := NewMock("training")

	out, err := m.Generate(context.Background(), "ping", Params{})

	require.NoError(t, err)
	assert.Equal(t, "Mock response from training to: ping", out)
}

func TestMock_FailWith(t *testing.T) {
	boom := errors.New("boom")
	m := NewMock("x").FailWith(boom)

	_, err := m.Generate(context.Background(), "q", Params{})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, m.Calls())
}

func TestMock_DelayHonorsContext(t *testing.T) {
	m := NewMock("slow").WithDelay(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := m.Generate(ctx, "q", Params{})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMock_Embed_Deterministic(t *testing.T) {
	m := NewMock("e")

	a, err := m.Embed(context.Background(), "same text")
	require.NoError(t, err)
	b, err := m.Embed(context.Background(), "same text")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 8)
}

func TestMock_SetAvailable(t *testing.T) {
	m := NewMock("a")

	assert.True(t, m.IsAvailable(context.Background()))

	m.SetAvailable(false)

	assert.False(t, m.IsAvailable(context.Background()))
}

func TestCallWithRetry_SucceedsAfterFailures(t *testing.T) {
	attempts := 0
	g := generatorFunc(func(ctx context.Context, prompt string, params Params) (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})

	out, err := CallWithRetry(context.Background(), g, "q", Params{}, 0, 3, time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, attempts)
}

func TestCallWithRetry_ExhaustsAttempts(t *testing.T) {
	boom := errors.New("down")
	g := generatorFunc(func(ctx context.Context, prompt string, params Params) (string, error) {
		return "", boom
	})

	_, err := CallWithRetry(context.Background(), g, "q", Params{}, 0, 2, time.Millisecond)

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "all 2 attempts failed")
}

func TestCallWithRetry_PerAttemptTimeout(t *testing.T) {
	g := generatorFunc(func(ctx context.Context, prompt string, params Params) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	_, err := CallWithRetry(context.Background(), g, "q", Params{}, 5*time.Millisecond, 1, time.Millisecond)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCallWithRetry_CancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := generatorFunc(func(_ context.Context, prompt string, params Params) (string, error) {
		cancel()
		return "", errors.New("transient")
	})

	_, err := CallWithRetry(ctx, g, "q", Params{}, 0, 3, 10*time.Millisecond)

	assert.ErrorIs(t, err, context.Canceled)
}

type generatorFunc func(ctx context.Context, prompt string, params Params) (string, error)

func (f generatorFunc) Generate(ctx context.Context, prompt string, params Params) (string, error) {
	return f(ctx, prompt, params)
}
