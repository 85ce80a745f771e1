// Package mathutil holds the small numeric kernels shared by routing,
// confidence estimation and weight handling.
package mathutil

import "math"

// Softmax returns the temperature-scaled softmax of values. The result always
// sums to 1; equal inputs yield the uniform distribution. A temperature of 0
// is treated as 1.
func Softmax(values []float64, temperature float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	if temperature == 0 {
		temperature = 1
	}

	scaled := make([]float64, len(values))
	maxVal := math.Inf(-1)
	for i, v := range values {
		scaled[i] = v / temperature
		if scaled[i] > maxVal {
			maxVal = scaled[i]
		}
	}

	// Subtract the max for numerical stability.
	var sum float64
	out := make([]float64, len(values))
	for i, v := range scaled {
		out[i] = math.Exp(v - maxVal)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}

	return out
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// either vector is empty or zero-length.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// NormalizeWeights scales weights so they sum to 1. Non-positive totals leave
// the input untouched. The input map is not mutated.
func NormalizeWeights(weights map[string]float64) map[string]float64 {
	var total float64
	for _, w := range weights {
		total += w
	}

	out := make(map[string]float64, len(weights))
	for k, w := range weights {
		if total > 0 {
			out[k] = w / total
		} else {
			out[k] = w
		}
	}

	return out
}
