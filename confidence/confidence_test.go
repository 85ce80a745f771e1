package confidence

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/expertmesh/domain"
	"github.com/hupe1980/expertmesh/expert"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyword_ExactMatchBoost(t *testing.T) {
	e := NewKeyword()
	ctx := context.Background()

	require.NoError(t, e.AddDomain(ctx, domain.New("d", "desc").WithKeywords("pace", "stride")))

	// One exact match out of two keywords: (1*2+1)/(2*2) = 0.75.
	scores, err := e.Estimate(ctx, "what pace should I hold", []string{"d"})

	require.NoError(t, err)
	assert.InDelta(t, 0.75, scores["d"], 1e-9)
}

func TestKeyword_SubstringWithoutBoost(t *testing.T) {
	e := NewKeyword(func(o *KeywordOptions) { o.BoostExactMatches = false })
	ctx := context.Background()

	require.NoError(t, e.AddDomain(ctx, domain.New("d", "desc").WithKeywords("run", "jump")))

	// "running" contains "run" as a substring: 1 of 2 keywords.
	scores, err := e.Estimate(ctx, "running drills", []string{"d"})

	require.NoError(t, err)
	assert.InDelta(t, 0.5, scores["d"], 1e-9)
}

func TestKeyword_ClampedToOne(t *testing.T) {
	e := NewKeyword()
	ctx := context.Background()

	require.NoError(t, e.AddDomain(ctx, domain.New("d", "desc").WithKeywords("go")))

	scores, err := e.Estimate(ctx, "go go go go", []string{"d"})

	require.NoError(t, err)
	assert.Equal(t, 1.0, scores["d"])
}

func TestKeyword_UnknownExpertScoresZero(t *testing.T) {
	e := NewKeyword()

	scores, err := e.Estimate(context.Background(), "anything", []string{"ghost"})

	require.NoError(t, err)
	assert.Zero(t, scores["ghost"])
}

func TestEmbedding_ScoresSumToOne(t *testing.T) {
	e := NewEmbedding(expert.NewMock("embedder"))
	ctx := context.Background()

	require.NoError(t, e.AddDomain(ctx, domain.New("a", "running and pacing strategy")))
	require.NoError(t, e.AddDomain(ctx, domain.New("b", "fueling and race nutrition")))

	scores, err := e.Estimate(ctx, "how fast should I run", []string{"a", "b"})

	require.NoError(t, err)
	assert.InDelta(t, 1.0, scores["a"]+scores["b"], 1e-9)
}

func TestEmbedding_ProfilelessExpertScoresZero(t *testing.T) {
	e := NewEmbedding(expert.NewMock("embedder"))
	ctx := context.Background()

	require.NoError(t, e.AddDomain(ctx, domain.New("a", "desc")))

	scores, err := e.Estimate(ctx, "q", []string{"a", "unprofiled"})

	require.NoError(t, err)
	assert.Zero(t, scores["unprofiled"])
}

func TestEmbedding_QueryEmbedFailure(t *testing.T) {
	calls := 0
	embedder := embedFunc(func(text string) ([]float64, error) {
		calls++
		if calls > 1 {
			return nil, errors.New("offline")
		}
		return []float64{1, 0}, nil
	})

	e := NewEmbedding(embedder)
	ctx := context.Background()

	require.NoError(t, e.AddDomain(ctx, domain.New("a", "desc")))

	scores, err := e.Estimate(ctx, "q", []string{"a"})

	require.Error(t, err)
	assert.Zero(t, scores["a"])
}

func TestTFIDF_RelativeScores(t *testing.T) {
	e := NewTFIDF()
	ctx := context.Background()

	require.NoError(t, e.AddDomain(ctx, domain.New("training", "interval tempo workout training")))
	require.NoError(t, e.AddDomain(ctx, domain.New("nutrition", "protein carbohydrate meal diet")))

	scores, err := e.Estimate(ctx, "best interval workout", []string{"training", "nutrition"})

	require.NoError(t, err)
	assert.Equal(t, 1.0, scores["training"], "best candidate min-max normalizes to 1")
	assert.Equal(t, 0.0, scores["nutrition"])
}

func TestTFIDF_AllTiedIsUniform(t *testing.T) {
	e := NewTFIDF()
	ctx := context.Background()

	require.NoError(t, e.AddDomain(ctx, domain.New("a", "shared words here")))
	require.NoError(t, e.AddDomain(ctx, domain.New("b", "shared words here")))

	scores, err := e.Estimate(ctx, "unrelated query text", []string{"a", "b"})

	require.NoError(t, err)
	assert.InDelta(t, 0.5, scores["a"], 1e-9)
	assert.InDelta(t, 0.5, scores["b"], 1e-9)
}

func TestTFIDF_NoDomains(t *testing.T) {
	e := NewTFIDF()

	scores, err := e.Estimate(context.Background(), "q", []string{"x"})

	require.NoError(t, err)
	assert.Zero(t, scores["x"])
}

func TestLLM_Estimate(t *testing.T) {
	judge := judgeFunc(func(prompt string) (string, error) {
		return `{"scores": {"a": 0.8, "b": 0.3}, "reasoning": "test"}`, nil
	})

	e := NewLLM(judge)
	ctx := context.Background()

	require.NoError(t, e.AddDomain(ctx, domain.New("a", "desc a")))
	require.NoError(t, e.AddDomain(ctx, domain.New("b", "desc b")))

	scores, err := e.Estimate(ctx, "q", []string{"a", "b"})

	require.NoError(t, err)
	assert.InDelta(t, 0.8, scores["a"], 1e-9)
	assert.InDelta(t, 0.3, scores["b"], 1e-9)
}

func TestLLM_BatchesLargeCandidateSets(t *testing.T) {
	var prompts []string
	judge := judgeFunc(func(prompt string) (string, error) {
		prompts = append(prompts, prompt)
		return `{"scores": {}}`, nil
	})

	e := NewLLM(judge, func(o *LLMOptions) { o.MaxDomainsPerCall = 2 })

	available := []string{"a", "b", "c", "d", "e"}
	scores, err := e.Estimate(context.Background(), "q", available)

	require.NoError(t, err)
	assert.Len(t, prompts, 3, "5 domains at batch size 2 need 3 calls")
	assert.Len(t, scores, 5)
}

func TestLLM_MalformedBatchYieldsZeros(t *testing.T) {
	e := NewLLM(judgeFunc(func(string) (string, error) { return "not json", nil }))

	scores, err := e.Estimate(context.Background(), "q", []string{"a", "b"})

	require.NoError(t, err)
	assert.Zero(t, scores["a"])
	assert.Zero(t, scores["b"])
}

func TestLLM_ClampsOutOfRange(t *testing.T) {
	e := NewLLM(judgeFunc(func(string) (string, error) {
		return `{"scores": {"a": 1.7, "b": -0.2}}`, nil
	}))

	scores, err := e.Estimate(context.Background(), "q", []string{"a", "b"})

	require.NoError(t, err)
	assert.Equal(t, 1.0, scores["a"])
	assert.Equal(t, 0.0, scores["b"])
}

func TestLLM_JudgeFailureYieldsZeros(t *testing.T) {
	e := NewLLM(judgeFunc(func(string) (string, error) { return "", errors.New("down") }))

	scores, err := e.Estimate(context.Background(), "q", []string{"a"})

	require.NoError(t, err)
	assert.Zero(t, scores["a"])
}

func TestLLM_UnprofiledDomainStillScored(t *testing.T) {
	var prompt string
	e := NewLLM(judgeFunc(func(p string) (string, error) {
		prompt = p
		return `{"scores": {"mystery": 0.4}}`, nil
	}))

	scores, err := e.Estimate(context.Background(), "q", []string{"mystery"})

	require.NoError(t, err)
	assert.Contains(t, prompt, "No description available")
	assert.InDelta(t, 0.4, scores["mystery"], 1e-9)
}

func TestHybrid_WeightedAverage(t *testing.T) {
	high := staticEstimator{scores: map[string]float64{"a": 1.0}}
	low := staticEstimator{scores: map[string]float64{"a": 0.0}}

	h, err := NewHybrid([]Estimator{high, low}, func(o *HybridOptions) {
		o.Weights = []float64{3, 1}
	})
	require.NoError(t, err)

	scores, err := h.Estimate(context.Background(), "q", []string{"a"})

	require.NoError(t, err)
	assert.InDelta(t, 0.75, scores["a"], 1e-9)
}

func TestHybrid_Max(t *testing.T) {
	h, err := NewHybrid([]Estimator{
		staticEstimator{scores: map[string]float64{"a": 0.2}},
		staticEstimator{scores: map[string]float64{"a": 0.9}},
	}, func(o *HybridOptions) { o.Method = CombineMax })
	require.NoError(t, err)

	scores, err := h.Estimate(context.Background(), "q", []string{"a"})

	require.NoError(t, err)
	assert.InDelta(t, 0.9, scores["a"], 1e-9)
}

func TestHybrid_Vote(t *testing.T) {
	h, err := NewHybrid([]Estimator{
		staticEstimator{scores: map[string]float64{"a": 0.6}},
		staticEstimator{scores: map[string]float64{"a": 0.5}},
		staticEstimator{scores: map[string]float64{"a": 0.1}},
	}, func(o *HybridOptions) { o.Method = CombineVote })
	require.NoError(t, err)

	scores, err := h.Estimate(context.Background(), "q", []string{"a"})

	require.NoError(t, err)
	assert.InDelta(t, 2.0/3.0, scores["a"], 1e-9)
}

func TestHybrid_FailingSubEstimatorContributesZeros(t *testing.T) {
	h, err := NewHybrid([]Estimator{
		staticEstimator{scores: map[string]float64{"a": 1.0}},
		staticEstimator{err: errors.New("down")},
	})
	require.NoError(t, err)

	scores, err := h.Estimate(context.Background(), "q", []string{"a"})

	require.NoError(t, err)
	assert.InDelta(t, 0.5, scores["a"], 1e-9)
}

func TestHybrid_ConstructionErrors(t *testing.T) {
	_, err := NewHybrid(nil)
	assert.Error(t, err)

	_, err = NewHybrid([]Estimator{staticEstimator{}}, func(o *HybridOptions) {
		o.Weights = []float64{1, 2}
	})
	assert.Error(t, err)

	_, err = NewHybrid([]Estimator{staticEstimator{}}, func(o *HybridOptions) {
		o.Method = Combination("telepathy")
	})
	assert.Error(t, err)
}

func TestFactory(t *testing.T) {
	e, err := New(KindKeyword, Config{})
	require.NoError(t, err)
	assert.IsType(t, &Keyword{}, e)

	e, err = New(KindTFIDF, Config{})
	require.NoError(t, err)
	assert.IsType(t, &TFIDF{}, e)

	_, err = New(KindEmbedding, Config{})
	assert.Error(t, err)

	_, err = New(KindLLM, Config{})
	assert.Error(t, err)

	_, err = New(Kind("psychic"), Config{})
	assert.Error(t, err)
}

type staticEstimator struct {
	scores map[string]float64
	err    error
}

func (s staticEstimator) AddDomain(context.Context, *domain.Profile) error { return nil }

func (s staticEstimator) Estimate(_ context.Context, _ string, available []string) (map[string]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]float64, len(available))
	for _, id := range available {
		out[id] = s.scores[id]
	}
	return out, nil
}

type judgeFunc func(prompt string) (string, error)

func (f judgeFunc) Generate(_ context.Context, prompt string, _ expert.Params) (string, error) {
	return f(prompt)
}

type embedFunc func(text string) ([]float64, error)

func (f embedFunc) Embed(_ context.Context, text string) ([]float64, error) {
	return f(text)
}
