// Package tfidf implements a minimal in-process TF-IDF vectorizer over
// unigrams and bigrams. It backs the TF-IDF confidence estimator and the
// bundled nearest-centroid query classifier; it is deliberately not a general
// purpose IR library.
package tfidf

import (
	"math"
	"sort"
	"strings"
)

// Vector is a sparse term-weight vector.
type Vector map[string]float64

// Vectorizer holds inverse document frequencies fitted over a document
// corpus. A fitted Vectorizer is immutable and safe for concurrent use.
type Vectorizer struct {
	idf  map[string]float64
	docs int
}

// Fit builds a Vectorizer from the given documents.
func Fit(docs []string) *Vectorizer {
	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, term := range terms(doc) {
			seen[term] = struct{}{}
		}
		for term := range seen {
			df[term]++
		}
	}

	idf := make(map[string]float64, len(df))
	for term, count := range df {
		// Smoothed IDF so terms present in every document keep a small
		// positive weight.
		idf[term] = math.Log(float64(1+len(docs))/float64(1+count)) + 1
	}

	return &Vectorizer{idf: idf, docs: len(docs)}
}

// Transform converts text into an L2-normalized sparse TF-IDF vector. Terms
// unseen at fit time are ignored.
func (v *Vectorizer) Transform(text string) Vector {
	tf := make(map[string]float64)
	for _, term := range terms(text) {
		if _, known := v.idf[term]; known {
			tf[term]++
		}
	}

	var norm float64
	vec := make(Vector, len(tf))
	for term, count := range tf {
		w := count * v.idf[term]
		vec[term] = w
		norm += w * w
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for term := range vec {
			vec[term] /= norm
		}
	}

	return vec
}

// Cosine returns the cosine similarity of two sparse vectors. Transform
// output is already normalized, so this reduces to a sparse dot product with
// a norm guard for hand-built vectors.
func Cosine(a, b Vector) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}

	var dot float64
	for term, wa := range a {
		if wb, ok := b[term]; ok {
			dot += wa * wb
		}
	}

	na := norm(a)
	nb := norm(b)
	if na == 0 || nb == 0 {
		return 0
	}

	return dot / (na * nb)
}

func norm(v Vector) float64 {
	var sum float64
	for _, w := range v {
		sum += w * w
	}
	return math.Sqrt(sum)
}

func terms(text string) []string {
	words := strings.Fields(strings.ToLower(text))
	for i, w := range words {
		words[i] = strings.Trim(w, ".,;:!?()[]\"'")
	}

	out := make([]string, 0, len(words)*2)
	for i, w := range words {
		if w == "" {
			continue
		}
		out = append(out, w)
		if i+1 < len(words) && words[i+1] != "" {
			out = append(out, w+" "+words[i+1])
		}
	}

	return out
}

// Sample is a labelled training example for the nearest-centroid classifier.
type Sample struct {
	Text  string
	Label string
}

// NearestCentroid is a bag-of-words classifier that scores a query against
// per-label TF-IDF centroids. It stands in for an offline-trained model and
// satisfies the router's Classifier contract.
type NearestCentroid struct {
	vectorizer *Vectorizer
	centroids  map[string]Vector
	labels     []string
}

// Train fits a NearestCentroid classifier on labelled samples.
func Train(samples []Sample) *NearestCentroid {
	docs := make([]string, len(samples))
	for i, s := range samples {
		docs[i] = s.Text
	}
	vectorizer := Fit(docs)

	sums := make(map[string]Vector)
	counts := make(map[string]int)
	for _, s := range samples {
		vec := vectorizer.Transform(s.Text)
		if sums[s.Label] == nil {
			sums[s.Label] = make(Vector)
		}
		for term, w := range vec {
			sums[s.Label][term] += w
		}
		counts[s.Label]++
	}

	centroids := make(map[string]Vector, len(sums))
	labels := make([]string, 0, len(sums))
	for label, sum := range sums {
		centroid := make(Vector, len(sum))
		for term, w := range sum {
			centroid[term] = w / float64(counts[label])
		}
		centroids[label] = centroid
		labels = append(labels, label)
	}
	sort.Strings(labels)

	return &NearestCentroid{vectorizer: vectorizer, centroids: centroids, labels: labels}
}

// Predict returns a probability-like score per label: non-negative cosine
// similarities to each centroid, normalized to sum to 1 when any are
// positive.
func (c *NearestCentroid) Predict(query string) map[string]float64 {
	vec := c.vectorizer.Transform(query)

	scores := make(map[string]float64, len(c.labels))
	var total float64
	for _, label := range c.labels {
		sim := Cosine(vec, c.centroids[label])
		if sim < 0 {
			sim = 0
		}
		scores[label] = sim
		total += sim
	}
	if total > 0 {
		for label := range scores {
			scores[label] /= total
		}
	}

	return scores
}

// Labels returns the known class labels in sorted order.
func (c *NearestCentroid) Labels() []string { return c.labels }
