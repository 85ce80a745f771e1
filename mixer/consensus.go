package mixer

import (
	"context"
	"sort"
	"strings"

	"github.com/hupe1980/expertmesh/internal/textutil"
)

// pointSimilarity is the Jaccard threshold above which two key points belong
// to the same consensus group.
const pointSimilarity = 0.5

// maxKeyPoints caps how many key points are extracted per response.
const maxKeyPoints = 5

// minPointLength filters out short sentences when extracting key points.
const minPointLength = 20

// ConsensusOptions configures a Consensus mixer.
type ConsensusOptions struct {
	// ConsensusThreshold is the fraction of contributing experts a point
	// group must reach to count as consensus.
	ConsensusThreshold float64
}

// Consensus extracts key points from each response, groups near-duplicates
// and reports points the experts agree on. Points without consensus fall back
// to weight-based selection from the highest-weighted experts.
type Consensus struct {
	opts ConsensusOptions
}

// NewConsensus creates a Consensus mixer.
func NewConsensus(optFns ...func(o *ConsensusOptions)) *Consensus {
	opts := ConsensusOptions{ConsensusThreshold: 0.6}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Consensus{opts: opts}
}

type keyPoint struct {
	text   string
	source string
	weight float64
}

// Mix implements Mixer.
func (m *Consensus) Mix(_ context.Context, _ string, responses map[string]string, weights map[string]float64) (string, error) {
	if len(responses) == 0 {
		return "", nil
	}
	if response, ok := singleResponse(responses); ok {
		return response, nil
	}

	pointsBySource := make(map[string][]string, len(responses))
	var allPoints []keyPoint
	for _, source := range sortedSources(responses, weights) {
		points := extractKeyPoints(responses[source])
		pointsBySource[source] = points

		weight := 1.0
		if w, ok := weights[source]; ok {
			weight = w
		}
		for _, point := range points {
			allPoints = append(allPoints, keyPoint{text: point, source: source, weight: weight})
		}
	}

	consensus := m.findConsensus(allPoints, len(responses))
	additions := resolveConflicts(pointsBySource, weights)

	return buildUnifiedResponse(consensus, additions), nil
}

// extractKeyPoints keeps the longer sentences of a response, capped at
// maxKeyPoints.
func extractKeyPoints(response string) []string {
	var points []string
	for _, sentence := range strings.Split(response, ".") {
		sentence = strings.TrimSpace(sentence)
		if len(sentence) > minPointLength {
			points = append(points, sentence)
		}
		if len(points) == maxKeyPoints {
			break
		}
	}
	return points
}

// findConsensus groups near-duplicate points and keeps the highest-weighted
// representative of every group large enough to count as agreement.
func (m *Consensus) findConsensus(points []keyPoint, numSources int) []string {
	var consensus []string
	used := make([]bool, len(points))

	for i, p := range points {
		if used[i] {
			continue
		}

		group := []keyPoint{p}
		used[i] = true

		for j := i + 1; j < len(points); j++ {
			if used[j] {
				continue
			}
			if textutil.Jaccard(p.text, points[j].text) >= pointSimilarity {
				group = append(group, points[j])
				used[j] = true
			}
		}

		if float64(len(group)) >= float64(numSources)*m.opts.ConsensusThreshold {
			best := group[0]
			for _, g := range group[1:] {
				if g.weight > best.weight {
					best = g
				}
			}
			consensus = append(consensus, best.text)
		}
	}

	return consensus
}

// resolveConflicts selects the top points of the two highest-weighted sources.
func resolveConflicts(pointsBySource map[string][]string, weights map[string]float64) []string {
	sources := make([]string, 0, len(weights))
	for source := range weights {
		sources = append(sources, source)
	}
	sort.Slice(sources, func(i, j int) bool {
		if weights[sources[i]] != weights[sources[j]] {
			return weights[sources[i]] > weights[sources[j]]
		}
		return sources[i] < sources[j]
	})

	var resolutions []string
	for i, source := range sources {
		if i == 2 {
			break
		}
		points := pointsBySource[source]
		if len(points) > 2 {
			points = points[:2]
		}
		resolutions = append(resolutions, points...)
	}

	return resolutions
}

func buildUnifiedResponse(consensus, additions []string) string {
	var parts []string

	if len(consensus) > 0 {
		parts = append(parts, "Based on expert consensus:")
		for _, point := range consensus {
			parts = append(parts, "• "+point)
		}
	}

	if len(additions) > 0 {
		if len(parts) > 0 {
			parts = append(parts, "\nAdditional considerations:")
		} else {
			parts = append(parts, "Key insights:")
		}
		for _, point := range additions {
			parts = append(parts, "• "+point)
		}
	}

	if len(parts) == 0 {
		return "No clear consensus found among expert responses."
	}

	return strings.Join(parts, "\n")
}
