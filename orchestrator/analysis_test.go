package orchestrator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzeQuery_SimpleShortQuery(t *testing.T) {
	analysis := AnalyzeQuery("best interval workout")

	assert.Equal(t, 3, analysis.WordCount)
	assert.Equal(t, ComplexitySimple, analysis.Complexity)
	assert.False(t, analysis.RequiresSynthesis)
	assert.False(t, analysis.RequiresExpertise)
	assert.Equal(t, []string{"best", "interval", "workout"}, analysis.Keywords)
}

func TestAnalyzeQuery_SynthesisIndicatorRaisesToComplex(t *testing.T) {
	analysis := AnalyzeQuery("compare tempo runs and intervals")

	assert.True(t, analysis.RequiresSynthesis)
	assert.Equal(t, ComplexityComplex, analysis.Complexity)
}

func TestAnalyzeQuery_ExpertiseIndicatorRaisesToModerate(t *testing.T) {
	analysis := AnalyzeQuery("explain lactate threshold")

	assert.True(t, analysis.RequiresExpertise)
	assert.Equal(t, ComplexityModerate, analysis.Complexity)
}

func TestAnalyzeQuery_WordCountTiers(t *testing.T) {
	word := "pace "

	assert.Equal(t, ComplexityModerate, AnalyzeQuery(strings.Repeat(word, 20)).Complexity)
	assert.Equal(t, ComplexityComplex, AnalyzeQuery(strings.Repeat(word, 50)).Complexity)
	assert.Equal(t, ComplexityExpert, AnalyzeQuery(strings.Repeat(word, 100)).Complexity)
}

func TestAnalyzeQuery_KeywordsSkipShortWords(t *testing.T) {
	analysis := AnalyzeQuery("how do I run far")

	assert.Empty(t, analysis.Keywords, "words of three characters or fewer are not keywords")
}

func TestComplexity_String(t *testing.T) {
	assert.Equal(t, "simple", ComplexitySimple.String())
	assert.Equal(t, "moderate", ComplexityModerate.String())
	assert.Equal(t, "complex", ComplexityComplex.String())
	assert.Equal(t, "expert", ComplexityExpert.String())
	assert.Equal(t, "unknown", Complexity(42).String())
}
