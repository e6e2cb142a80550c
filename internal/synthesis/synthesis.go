// Package synthesis combines per-framework results into one aggregate
// assessment. No model calls are made here.
package synthesis

import (
	"fmt"
	"math"

	"github.com/dshills/regalign/internal/framework"
	"github.com/dshills/regalign/internal/schema"
)

// MaxPriorityActions caps the aggregated action list.
const MaxPriorityActions = 5

// Synthesize builds the aggregate for the present results. routed is
// recorded as the frameworks analyzed.
func Synthesize(results schema.ResultSet, routed []schema.FrameworkCode) schema.Synthesis {
	score := AlignmentScore(results)
	critical := TotalCriticalGaps(results)

	scores := make(map[string]int)
	for _, r := range results.Present() {
		scores[framework.Name(r.Code())] = r.Score()
	}

	analyzed := append([]schema.FrameworkCode{}, routed...)

	return schema.Synthesis{
		AlignmentScore:     score,
		ComplianceLevel:    ComplianceLevel(score),
		FrameworkScores:    scores,
		CrossFrameworkGaps: CrossFrameworkGaps(results),
		TotalCriticalGaps:  critical,
		PriorityActions:    PriorityActions(results, MaxPriorityActions),
		FrameworksAnalyzed: analyzed,
		Summary:            Summary(score, critical),
	}
}

// AlignmentScore is the weighted mean of the present results' scores,
// normalized by the weights actually applied and rounded. NOT_EVALUATED
// results take part with their score of 0; absent ones do not.
func AlignmentScore(results schema.ResultSet) int {
	var sum, weights float64
	for _, r := range results.Present() {
		def, err := framework.Load(r.Code())
		if err != nil {
			continue
		}
		sum += float64(r.Score()) * def.Weight
		weights += def.Weight
	}
	if weights == 0 {
		return 0
	}
	return int(math.Round(sum / weights))
}

// TotalCriticalGaps sums the critical-gap counts of the present results.
func TotalCriticalGaps(results schema.ResultSet) int {
	n := 0
	for _, r := range results.Present() {
		n += r.CriticalGapsCount()
	}
	return n
}

// ComplianceLevel maps an alignment score to its qualitative band.
func ComplianceLevel(score int) string {
	switch {
	case score >= 80:
		return "Strong compliance"
	case score >= 60:
		return "Moderate compliance"
	case score >= 40:
		return "Weak compliance"
	default:
		return "Critical compliance gaps"
	}
}

// Summary is the one-paragraph executive summary.
func Summary(score, critical int) string {
	gaps := "No critical gaps identified"
	if critical > 0 {
		gaps = fmt.Sprintf("%d critical gaps require immediate attention", critical)
	}
	return fmt.Sprintf("%s with UK AI governance frameworks (UK Alignment Score: %d%%). %s. "+
		"Review detailed framework analyses for remediation actions.", ComplianceLevel(score), score, gaps)
}

// PriorityActions concatenates the present results' actions in framework
// order, drops duplicates keeping the first occurrence, and keeps at most limit.
func PriorityActions(results schema.ResultSet, limit int) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, r := range results.Present() {
		for _, a := range r.PriorityActions() {
			if seen[a] {
				continue
			}
			seen[a] = true
			out = append(out, a)
			if len(out) == limit {
				return out
			}
		}
	}
	return out
}
