package router

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/expertmesh/domain"
	"github.com/hupe1980/expertmesh/expert"
	"github.com/hupe1980/expertmesh/internal/tfidf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordRouter_Route(t *testing.T) {
	r := NewKeyword()
	ctx := context.Background()

	require.NoError(t, r.AddDomain(ctx, domain.New("nutrition", "diet").
		WithKeywords("diet", "protein", "meal")))
	require.NoError(t, r.AddDomain(ctx, domain.New("training", "workouts").
		WithKeywords("interval", "tempo", "mileage")))

	sel, ok := r.Route(ctx, "What protein should I add to my meal and diet?", []string{"nutrition", "training"})

	require.True(t, ok)
	assert.Equal(t, "nutrition", sel.Expert)
	assert.InDelta(t, 1.0, sel.Score, 1e-9)
}

func TestKeywordRouter_ScoreIsDistinctMatchRatio(t *testing.T) {
	r := NewKeyword(func(o *KeywordOptions) { o.Threshold = 0 })
	ctx := context.Background()

	require.NoError(t, r.AddDomain(ctx, domain.New("d", "desc").
		WithKeywords("pace", "stride", "cadence", "form")))

	// "pace" appears twice but counts once: 2 distinct of 4 keywords.
	sel, ok := r.Route(ctx, "my pace and stride, what a pace", []string{"d"})

	require.True(t, ok)
	assert.InDelta(t, 0.5, sel.Score, 1e-9)
}

func TestKeywordRouter_WordBoundary(t *testing.T) {
	r := NewKeyword(func(o *KeywordOptions) { o.Threshold = 0.1 })
	ctx := context.Background()

	require.NoError(t, r.AddDomain(ctx, domain.New("d", "desc").WithKeywords("run")))

	// "running" must not match the keyword "run".
	_, ok := r.Route(ctx, "I love running", []string{"d"})

	assert.False(t, ok)
}

func TestKeywordRouter_BelowThreshold(t *testing.T) {
	r := NewKeyword()
	ctx := context.Background()

	require.NoError(t, r.AddDomain(ctx, domain.New("d", "desc").
		WithKeywords("a1", "b2", "c3", "d4", "e5")))

	_, ok := r.Route(ctx, "only a1 here", []string{"d"})

	assert.False(t, ok, "1 of 5 keywords is under the 0.3 default threshold")
}

func TestKeywordRouter_NoKeywordsScoresZero(t *testing.T) {
	r := NewKeyword(func(o *KeywordOptions) { o.Threshold = 0.1 })
	ctx := context.Background()

	require.NoError(t, r.AddDomain(ctx, domain.New("empty", "no keywords")))

	_, ok := r.Route(ctx, "anything", []string{"empty"})

	assert.False(t, ok)
}

func TestKeywordRouter_RouteMultiple_OrderedAndCapped(t *testing.T) {
	r := NewKeyword(func(o *KeywordOptions) { o.Threshold = 0 })
	ctx := context.Background()

	require.NoError(t, r.AddDomain(ctx, domain.New("full", "d").WithKeywords("alpha", "beta")))
	require.NoError(t, r.AddDomain(ctx, domain.New("half", "d").WithKeywords("alpha", "missing")))
	require.NoError(t, r.AddDomain(ctx, domain.New("none", "d").WithKeywords("absent")))

	out := r.RouteMultiple(ctx, "alpha beta", []string{"full", "half", "none"}, 2)

	require.Len(t, out, 2)
	assert.Equal(t, "full", out[0].Expert)
	assert.Equal(t, "half", out[1].Expert)
}

func TestKeywordRouter_UnknownAvailableIgnored(t *testing.T) {
	r := NewKeyword()
	ctx := context.Background()

	require.NoError(t, r.AddDomain(ctx, domain.New("known", "d").WithKeywords("alpha")))

	sel, ok := r.Route(ctx, "alpha", []string{"stranger", "known"})

	require.True(t, ok)
	assert.Equal(t, "known", sel.Expert)
}

func TestEmbeddingRouter_Route(t *testing.T) {
	embedder := expert.NewMock("embedder").WithEmbedFn(func(text string) []float64 {
		if text == "cats" || text == "about cats" {
			return []float64{1, 0}
		}
		return []float64{0, 1}
	})

	r := NewEmbedding(embedder)
	ctx := context.Background()

	require.NoError(t, r.AddDomain(ctx, domain.New("cats", "cats")))
	require.NoError(t, r.AddDomain(ctx, domain.New("dogs", "dogs")))

	sel, ok := r.Route(ctx, "about cats", []string{"cats", "dogs"})

	require.True(t, ok)
	assert.Equal(t, "cats", sel.Expert)
	assert.InDelta(t, 1.0, sel.Score, 1e-9)
}

func TestEmbeddingRouter_PrecomputedEmbeddingSkipsEmbedder(t *testing.T) {
	embedder := failingEmbedder{}

	r := NewEmbedding(embedder)

	err := r.AddDomain(context.Background(), domain.New("d", "desc").WithEmbedding([]float64{1, 0}))

	assert.NoError(t, err)
}

func TestEmbeddingRouter_EmbedFailure(t *testing.T) {
	r := NewEmbedding(failingEmbedder{})

	err := r.AddDomain(context.Background(), domain.New("d", "desc"))
	require.Error(t, err)

	// No domains registered, routing degrades to no selection.
	_, ok := r.Route(context.Background(), "q", []string{"d"})
	assert.False(t, ok)
}

func TestEmbeddingRouter_RouteMultiple_SoftmaxSumsToOne(t *testing.T) {
	embedder := expert.NewMock("embedder")

	r := NewEmbedding(embedder, func(o *EmbeddingOptions) { o.Threshold = 0 })
	ctx := context.Background()

	require.NoError(t, r.AddDomain(ctx, domain.New("a", "endurance running and pacing")))
	require.NoError(t, r.AddDomain(ctx, domain.New("b", "race nutrition and fueling")))

	out := r.RouteMultiple(ctx, "how to pace a race", []string{"a", "b"}, 0)

	require.Len(t, out, 2)
	var sum float64
	for _, sel := range out {
		sum += sel.Score
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestClassifierRouter_Route(t *testing.T) {
	r := NewClassifier(nil, func(o *ClassifierOptions) { o.Threshold = 0.5 })
	r.TrainClassifier([]tfidf.Sample{
		{Text: "interval tempo workout training speed", Label: "training"},
		{Text: "protein carbohydrate meal diet", Label: "nutrition"},
	})
	ctx := context.Background()

	require.NoError(t, r.AddDomain(ctx, domain.New("training", "t")))
	require.NoError(t, r.AddDomain(ctx, domain.New("nutrition", "n")))

	sel, ok := r.Route(ctx, "best interval workout for speed", []string{"training", "nutrition"})

	require.True(t, ok)
	assert.Equal(t, "training", sel.Expert)
}

func TestClassifierRouter_NoClassifier(t *testing.T) {
	r := NewClassifier(nil)

	_, ok := r.Route(context.Background(), "q", []string{"a"})

	assert.False(t, ok)
}

func TestClassifierRouter_RestrictsToAvailable(t *testing.T) {
	r := NewClassifier(nil, func(o *ClassifierOptions) { o.Threshold = 0 })
	r.TrainClassifier([]tfidf.Sample{
		{Text: "interval workout", Label: "training"},
		{Text: "meal diet", Label: "nutrition"},
	})

	out := r.RouteMultiple(context.Background(), "interval workout", []string{"nutrition"}, 0)

	for _, sel := range out {
		assert.NotEqual(t, "training", sel.Expert)
	}
}

func TestLLMRouter_Route(t *testing.T) {
	judge := scriptedJudge{response: `Here are my scores:
{"domain_scores": {"training": 0.9, "nutrition": 0.2}, "reasoning": "training query"}`}

	r := NewLLM(judge)
	ctx := context.Background()

	require.NoError(t, r.AddDomain(ctx, domain.New("training", "endurance training")))
	require.NoError(t, r.AddDomain(ctx, domain.New("nutrition", "sports nutrition")))

	sel, ok := r.Route(ctx, "how do I train?", []string{"training", "nutrition"})

	require.True(t, ok)
	assert.Equal(t, "training", sel.Expert)
	assert.InDelta(t, 0.9, sel.Score, 1e-9)
}

func TestLLMRouter_MalformedResponse(t *testing.T) {
	r := NewLLM(scriptedJudge{response: "I cannot answer in JSON today"})
	ctx := context.Background()

	require.NoError(t, r.AddDomain(ctx, domain.New("d", "desc")))

	_, ok := r.Route(ctx, "q", []string{"d"})

	assert.False(t, ok)
}

func TestLLMRouter_OutOfRangeScoresDropped(t *testing.T) {
	r := NewLLM(scriptedJudge{response: `{"domain_scores": {"a": 1.5, "b": 0.7}}`})
	ctx := context.Background()

	require.NoError(t, r.AddDomain(ctx, domain.New("a", "desc")))
	require.NoError(t, r.AddDomain(ctx, domain.New("b", "desc")))

	sel, ok := r.Route(ctx, "q", []string{"a", "b"})

	require.True(t, ok)
	assert.Equal(t, "b", sel.Expert)
}

func TestLLMRouter_JudgeFailure(t *testing.T) {
	r := NewLLM(scriptedJudge{err: errors.New("judge down")})
	ctx := context.Background()

	require.NoError(t, r.AddDomain(ctx, domain.New("d", "desc")))

	_, ok := r.Route(ctx, "q", []string{"d"})

	assert.False(t, ok)
}

func TestFactory(t *testing.T) {
	r, err := New(KindKeyword, Config{Threshold: 0.4})
	require.NoError(t, err)
	assert.IsType(t, &KeywordRouter{}, r)

	_, err = New(KindEmbedding, Config{})
	assert.Error(t, err, "embedding kind requires an embedder")

	_, err = New(KindClassifier, Config{})
	assert.Error(t, err)

	_, err = New(KindLLM, Config{})
	assert.Error(t, err)

	_, err = New(Kind("quantum"), Config{})
	assert.Error(t, err)
}

type scriptedJudge struct {
	response string
	err      error
}

func (j scriptedJudge) Generate(context.Context, string, expert.Params) (string, error) {
	return j.response, j.err
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float64, error) {
	return nil, errors.New("embedder offline")
}
