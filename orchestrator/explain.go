package orchestrator

import (
	"fmt"
	"strings"
)

// explain builds a human-readable summary of how a result was produced.
func explain(result *Result, analysis Analysis) string {
	var b strings.Builder

	b.WriteString("**Processing Explanation:**\n\n")

	fmt.Fprintf(&b, "**Query Analysis:** Your query was classified as %s complexity. It %s specialized expertise and %s synthesis of multiple perspectives.\n\n",
		analysis.Complexity, requiresWord(analysis.RequiresExpertise), requiresWord(analysis.RequiresSynthesis))

	fmt.Fprintf(&b, "**Strategy Selected:** %s\n", strings.ToUpper(string(result.Strategy)))
	fmt.Fprintf(&b, "- %d domain experts were involved in processing.\n\n", len(result.ExpertsUsed))

	fmt.Fprintf(&b, "**Confidence Assessment:** %.2f\n%s\n\n", result.Confidence, confidenceBand(result.Confidence))

	if len(result.ExpertsUsed) > 0 {
		fmt.Fprintf(&b, "**Experts Used:** %s\n", strings.Join(result.ExpertsUsed, ", "))
	}

	return strings.TrimSpace(b.String())
}

func requiresWord(required bool) string {
	if required {
		return "requires"
	}
	return "does not require"
}

func confidenceBand(confidence float64) string {
	switch {
	case confidence > 0.8:
		return "This indicates high confidence in the response."
	case confidence > 0.6:
		return "This indicates moderate confidence in the response."
	default:
		return "This indicates lower confidence; consider seeking additional validation."
	}
}
