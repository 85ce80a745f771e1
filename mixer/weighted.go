package mixer

import (
	"context"
	"sort"
	"strings"

	"github.com/hupe1980/expertmesh/internal/mathutil"
	"github.com/hupe1980/expertmesh/internal/textutil"
)

// Granularity selects the unit a Weighted mixer assembles output from.
type Granularity string

const (
	// GranularityWords assembles fixed-length word segments.
	GranularityWords Granularity = "words"
	// GranularitySentences assembles whole sentences.
	GranularitySentences Granularity = "sentences"
	// GranularityParagraphs blends paragraphs.
	GranularityParagraphs Granularity = "paragraphs"
)

// sentenceSimilarity is the Jaccard threshold above which two sentences count
// as near-duplicates.
const sentenceSimilarity = 0.7

// lengthCapFactor caps the assembled output relative to the longest single
// response.
const lengthCapFactor = 1.2

// WeightedOptions configures a Weighted mixer.
type WeightedOptions struct {
	// Granularity selects the assembly unit.
	Granularity Granularity

	// SegmentLength is the approximate character length of word segments.
	SegmentLength int

	// OverlapPenalty is the Jaccard overlap above which a candidate segment
	// is skipped as duplicate content.
	OverlapPenalty float64
}

// Weighted splits responses into segments, ranks them by source weight and
// greedily assembles an output, skipping segments that overlap content
// already selected.
type Weighted struct {
	opts WeightedOptions
}

// NewWeighted creates a Weighted mixer assembling word segments.
func NewWeighted(optFns ...func(o *WeightedOptions)) *Weighted {
	opts := WeightedOptions{
		Granularity:    GranularityWords,
		SegmentLength:  100,
		OverlapPenalty: 0.1,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Weighted{opts: opts}
}

type weightedSegment struct {
	text   string
	weight float64
	source string
}

// Mix implements Mixer.
func (m *Weighted) Mix(_ context.Context, _ string, responses map[string]string, weights map[string]float64) (string, error) {
	if len(responses) == 0 {
		return "", nil
	}
	if response, ok := singleResponse(responses); ok {
		return response, nil
	}

	if len(weights) == 0 {
		weights = make(map[string]float64, len(responses))
		for source := range responses {
			weights[source] = 1 / float64(len(responses))
		}
	}
	weights = mathutil.NormalizeWeights(weights)

	switch m.opts.Granularity {
	case GranularitySentences:
		return m.mixSentences(responses, weights), nil
	case GranularityParagraphs:
		return m.mixParagraphs(responses, weights), nil
	default:
		return m.mixSegments(responses, weights), nil
	}
}

func (m *Weighted) mixSegments(responses map[string]string, weights map[string]float64) string {
	sources := sortedSources(responses, weights)

	var candidates []weightedSegment
	var used []string
	for _, source := range sources {
		for _, segment := range textutil.WordSegments(responses[source], m.opts.SegmentLength) {
			if m.overlapsUsed(segment, used) {
				continue
			}
			candidates = append(candidates, weightedSegment{text: segment, weight: weights[source], source: source})
			used = append(used, strings.ToLower(strings.TrimSpace(segment)))
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].weight > candidates[j].weight })

	maxLength := 0
	for _, response := range responses {
		if len(response) > maxLength {
			maxLength = len(response)
		}
	}
	budget := int(float64(maxLength) * lengthCapFactor)

	var parts []string
	total := 0
	for _, candidate := range candidates {
		if total+len(candidate.text) > budget {
			break
		}
		parts = append(parts, candidate.text)
		total += len(candidate.text)
	}

	return strings.Join(parts, " ")
}

func (m *Weighted) mixSentences(responses map[string]string, weights map[string]float64) string {
	var candidates []weightedSegment
	for _, source := range sortedSources(responses, weights) {
		for _, sentence := range textutil.Sentences(responses[source]) {
			candidates = append(candidates, weightedSegment{text: sentence, weight: weights[source], source: source})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].weight > candidates[j].weight })

	var used []string
	var parts []string
	for _, candidate := range candidates {
		lower := strings.ToLower(strings.TrimSpace(candidate.text))
		duplicate := false
		for _, u := range used {
			if textutil.Jaccard(lower, u) >= sentenceSimilarity {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		parts = append(parts, candidate.text)
		used = append(used, lower)
	}

	return strings.Join(parts, " ")
}

func (m *Weighted) mixParagraphs(responses map[string]string, weights map[string]float64) string {
	// Paragraphs rotate through three topic buckets; the heaviest paragraph
	// per bucket survives.
	type bucketEntry struct {
		text   string
		weight float64
	}
	buckets := make(map[int][]bucketEntry)

	for _, source := range sortedSources(responses, weights) {
		for i, paragraph := range textutil.Paragraphs(responses[source]) {
			bucket := i % 3
			buckets[bucket] = append(buckets[bucket], bucketEntry{text: paragraph, weight: weights[source]})
		}
	}

	var parts []string
	for bucket := 0; bucket < 3; bucket++ {
		entries := buckets[bucket]
		if len(entries) == 0 {
			continue
		}
		best := entries[0]
		for _, e := range entries[1:] {
			if e.weight > best.weight {
				best = e
			}
		}
		parts = append(parts, best.text)
	}

	return strings.Join(parts, "\n\n")
}

func (m *Weighted) overlapsUsed(segment string, used []string) bool {
	lower := strings.ToLower(strings.TrimSpace(segment))
	for _, u := range used {
		if textutil.Jaccard(lower, u) > m.opts.OverlapPenalty {
			return true
		}
	}
	return false
}
