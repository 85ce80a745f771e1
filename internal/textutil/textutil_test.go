package textutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentences(t *testing.T) {
	out := Sentences("First. Second! Third? ")

	assert.Equal(t, []string{"First", "Second", "Third"}, out)
}

func TestSentences_Empty(t *testing.T) {
	assert.Empty(t, Sentences("   "))
}

func TestParagraphs(t *testing.T) {
	out := Paragraphs("one\n\ntwo\n\n\n\nthree")

	assert.Equal(t, []string{"one", "two", "three"}, out)
}

func TestWordSegments(t *testing.T) {
	out := WordSegments("alpha beta gamma delta", 11)

	assert.Equal(t, []string{"alpha beta", "gamma delta"}, out)
}

func TestWordSegments_OversizedWordKept(t *testing.T) {
	out := WordSegments("extraordinarily ok", 5)

	assert.Equal(t, "extraordinarily", out[0])
}

func TestJaccard(t *testing.T) {
	assert.InDelta(t, 1.0, Jaccard("the quick fox", "The Quick Fox"), 1e-9)
	assert.Zero(t, Jaccard("alpha beta", "gamma delta"))
	assert.Zero(t, Jaccard("", "something"))

	// {a b c} vs {b c d}: 2 shared of 4 total
	assert.InDelta(t, 0.5, Jaccard("a b c", "b c d"), 1e-9)
}

func TestTruncateKeepQuery_PreservesQueryTail(t *testing.T) {
	prompt := strings.Repeat("x", 500) + "\n\nOriginal query: what is VO2 max?"

	out := TruncateKeepQuery(prompt, 100)

	assert.Contains(t, out, "Original query: what is VO2 max?")
	assert.Contains(t, out, "[Content truncated]")
}

func TestTruncateKeepQuery_NoMarkerHardCut(t *testing.T) {
	out := TruncateKeepQuery(strings.Repeat("a", 50), 10)

	assert.Len(t, out, 10)
}

func TestTruncateKeepQuery_ShortPromptUntouched(t *testing.T) {
	assert.Equal(t, "short", TruncateKeepQuery("short", 100))
}

func TestTruncateWithMarker(t *testing.T) {
	out := TruncateWithMarker(strings.Repeat("b", 100), 20)

	assert.LessOrEqual(t, len(out), 20)
	assert.True(t, strings.HasSuffix(out, "[...]"))
}

func TestTruncateWithMarker_ShortTextUntouched(t *testing.T) {
	assert.Equal(t, "hello", TruncateWithMarker("hello", 20))
}
