package orchestrator

import "strings"

// Complexity tiers a query by how much processing it likely needs.
type Complexity int

const (
	// ComplexitySimple is a short, single-topic query.
	ComplexitySimple Complexity = iota
	// ComplexityModerate is a mid-length query or one needing expertise.
	ComplexityModerate
	// ComplexityComplex is a long query or one needing synthesis.
	ComplexityComplex
	// ComplexityExpert is the highest tier, reserved for very long queries.
	ComplexityExpert
)

// String returns the string representation of the complexity tier.
func (c Complexity) String() string {
	switch c {
	case ComplexitySimple:
		return "simple"
	case ComplexityModerate:
		return "moderate"
	case ComplexityComplex:
		return "complex"
	case ComplexityExpert:
		return "expert"
	default:
		return "unknown"
	}
}

// Word-count boundaries for the complexity tiers.
const (
	moderateWordCount = 20
	complexWordCount  = 50
	expertWordCount   = 100
)

// synthesisIndicators mark queries that span multiple perspectives and need
// their answers integrated.
var synthesisIndicators = []string{
	"compare", "versus", "both", "multiple", "different",
	"integrate", "combine", "synthesis", "holistic",
}

// expertiseIndicators mark queries that ask for depth rather than breadth.
var expertiseIndicators = []string{
	"explain", "analyze", "detailed", "comprehensive", "in-depth",
	"research", "study", "investigation", "technical",
}

// Analysis captures what the orchestrator inferred about a query before
// selecting a strategy.
type Analysis struct {
	Query             string     `json:"query"`
	WordCount         int        `json:"word_count"`
	Complexity        Complexity `json:"complexity"`
	Keywords          []string   `json:"keywords"`
	RequiresSynthesis bool       `json:"requires_synthesis"`
	RequiresExpertise bool       `json:"requires_expertise"`
}

// AnalyzeQuery classifies a query by length tier and indicator words.
// Synthesis indicators raise the tier to at least complex; expertise
// indicators to at least moderate.
func AnalyzeQuery(query string) Analysis {
	words := strings.Fields(query)

	analysis := Analysis{
		Query:      query,
		WordCount:  len(words),
		Complexity: ComplexitySimple,
	}

	switch {
	case len(words) >= expertWordCount:
		analysis.Complexity = ComplexityExpert
	case len(words) >= complexWordCount:
		analysis.Complexity = ComplexityComplex
	case len(words) >= moderateWordCount:
		analysis.Complexity = ComplexityModerate
	}

	lower := strings.ToLower(query)
	for _, indicator := range synthesisIndicators {
		if strings.Contains(lower, indicator) {
			analysis.RequiresSynthesis = true
			if analysis.Complexity < ComplexityComplex {
				analysis.Complexity = ComplexityComplex
			}
			break
		}
	}
	for _, indicator := range expertiseIndicators {
		if strings.Contains(lower, indicator) {
			analysis.RequiresExpertise = true
			if analysis.Complexity < ComplexityModerate {
				analysis.Complexity = ComplexityModerate
			}
			break
		}
	}

	for _, word := range words {
		if len(word) > 3 {
			analysis.Keywords = append(analysis.Keywords, word)
		}
	}

	return analysis
}
