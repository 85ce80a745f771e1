package tfidf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransform_Normalized(t *testing.T) {
	v := Fit([]string{"running pace training", "protein intake diet"})

	vec := v.Transform("running training plan")

	var sum float64
	for _, w := range vec {
		sum += w * w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestTransform_UnknownTermsIgnored(t *testing.T) {
	v := Fit([]string{"alpha beta"})

	vec := v.Transform("gamma delta")

	assert.Empty(t, vec)
}

func TestCosine_IdenticalTexts(t *testing.T) {
	v := Fit([]string{"interval training plan", "race day nutrition"})

	a := v.Transform("interval training plan")
	b := v.Transform("interval training plan")

	assert.InDelta(t, 1.0, Cosine(a, b), 1e-9)
}

func TestNearestCentroid_Predict(t *testing.T) {
	classifier := Train([]Sample{
		{Text: "tempo run interval training speed workout", Label: "training"},
		{Text: "weekly mileage long run training plan", Label: "training"},
		{Text: "protein carbohydrate meal diet intake", Label: "nutrition"},
		{Text: "hydration electrolytes race fueling diet", Label: "nutrition"},
	})

	scores := classifier.Predict("what training plan improves my interval speed")

	assert.Greater(t, scores["training"], scores["nutrition"])

	var sum float64
	for _, s := range scores {
		sum += s
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestNearestCentroid_UnrelatedQuery(t *testing.T) {
	classifier := Train([]Sample{
		{Text: "tempo run interval", Label: "training"},
		{Text: "protein diet meal", Label: "nutrition"},
	})

	scores := classifier.Predict("quantum entanglement")

	assert.Zero(t, scores["training"])
	assert.Zero(t, scores["nutrition"])
}

func TestNearestCentroid_Labels(t *testing.T) {
	classifier := Train([]Sample{
		{Text: "b", Label: "zeta"},
		{Text: "a", Label: "alpha"},
	})

	assert.Equal(t, []string{"alpha", "zeta"}, classifier.Labels())
}
