package pipeline

import (
	"fmt"
	"strings"
)

func decisionMarker(d Decision) string {
	switch d {
	case DecisionApprove:
		return "✅"
	case DecisionReview:
		return "⚠️"
	default:
		return "❌"
	}
}

// FormatSummary renders verdicts as a markdown list, one line per evaluator.
func FormatSummary(verdicts []Verdict) string {
	var b strings.Builder
	b.WriteString("## Application Assessment Summary\n")
	for _, v := range verdicts {
		fmt.Fprintf(&b, "\n%s **%s**: Score %d/100 - %s", decisionMarker(v.Decision), v.DisplayName, v.Score, v.Explanation)
	}
	return b.String()
}
