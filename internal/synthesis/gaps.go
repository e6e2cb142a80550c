package synthesis

import "github.com/dshills/regalign/internal/schema"

// signal is one requirement whose bad status feeds a cross-framework rule.
type signal struct {
	code  schema.FrameworkCode
	key   string
	label string
}

// rule emits a gap when at least threshold of its signals are bad.
type rule struct {
	signals        []signal
	threshold      int
	issue          string
	severity       schema.Severity
	recommendation string
	// impacts, when set, replaces the list of contributing signal labels.
	impacts []string
}

var rules = []rule{
	{
		signals: []signal{
			{schema.FrameworkICO, schema.KeyICOFairness, "ICO Principle 2 (Fairness)"},
			{schema.FrameworkEUAIAct, schema.KeyEUDataGovernance, "EU AI Act Article 10 (Data Governance)"},
		},
		threshold:      2,
		issue:          "No bias testing or representative dataset documentation",
		severity:       schema.PriorityCritical,
		recommendation: "Implement bias testing with representative datasets and document results",
		impacts:        []string{"ICO Principle 2 (Fairness)", "EU AI Act Article 10 (Data Governance)"},
	},
	{
		signals: []signal{
			{schema.FrameworkICO, schema.KeyICOContestability, "ICO Contestability"},
			{schema.FrameworkEUAIAct, schema.KeyEUHumanOversight, "EU Act Article 14"},
			{schema.FrameworkDPA, schema.KeyDPAAutomatedDecisions, "GDPR Article 22"},
		},
		threshold:      2,
		issue:          "Human oversight mechanisms missing across multiple frameworks",
		severity:       schema.PriorityCritical,
		recommendation: "Implement human-in-the-loop review processes with documented procedures",
	},
	{
		signals: []signal{
			{schema.FrameworkICO, schema.KeyICOFairness, "ICO Transparency"},
			{schema.FrameworkDPA, schema.KeyDPATransparency, "GDPR Article 13/14"},
			{schema.FrameworkEUAIAct, schema.KeyEUTransparency, "EU Act Article 13"},
		},
		threshold:      2,
		issue:          "Transparency and explainability gaps across multiple frameworks",
		severity:       schema.PriorityHigh,
		recommendation: "Document AI decision logic and ensure users are informed about AI processing",
	},
}

// CrossFrameworkGaps evaluates every correlation rule independently. An
// absent result, or an EU result outside HIGH_RISK, contributes nothing.
func CrossFrameworkGaps(results schema.ResultSet) []schema.CrossFrameworkGap {
	gaps := []schema.CrossFrameworkGap{}
	for _, rl := range rules {
		var hit []string
		for _, s := range rl.signals {
			if bad(results, s) {
				hit = append(hit, s.label)
			}
		}
		if len(hit) < rl.threshold {
			continue
		}
		impacts := hit
		if rl.impacts != nil {
			impacts = append([]string{}, rl.impacts...)
		}
		gaps = append(gaps, schema.CrossFrameworkGap{
			Issue:          rl.issue,
			Impacts:        impacts,
			Severity:       rl.severity,
			Recommendation: rl.recommendation,
		})
	}
	return gaps
}

func bad(results schema.ResultSet, s signal) bool {
	r, ok := results.Get(s.code)
	if !ok {
		return false
	}
	req, ok := r.Requirement(s.key)
	return ok && req.Status.Bad()
}
