// Package render produces output from a finished schema.Analysis: JSON,
// Markdown and YAML for the CLI, and the paginated PDF report.
package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/dshills/regalign/internal/schema"
)

// Format names an output format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatYAML     Format = "yaml"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatMarkdown, FormatYAML:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("render: unknown format %q (want json, markdown or yaml)", s)
	}
}

// Render dispatches to the renderer for f.
func Render(f Format, a *schema.Analysis) ([]byte, error) {
	switch f {
	case FormatJSON:
		return RenderJSON(a)
	case FormatYAML:
		return RenderYAML(a)
	case FormatMarkdown:
		if a == nil {
			return nil, fmt.Errorf("render: nil analysis")
		}
		return []byte(RenderMarkdown(a)), nil
	default:
		return nil, fmt.Errorf("render: unknown format %q", f)
	}
}

// RenderJSON produces a pretty-printed JSON representation of the analysis.
// The extracted full text is omitted.
func RenderJSON(a *schema.Analysis) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("render: nil analysis")
	}
	b, err := json.MarshalIndent(a.WithoutFullText(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render: json marshal: %w", err)
	}
	return b, nil
}

// RenderYAML renders the same document as RenderJSON in YAML. Keys follow
// the JSON field names.
func RenderYAML(a *schema.Analysis) ([]byte, error) {
	b, err := RenderJSON(a)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return nil, fmt.Errorf("render: yaml: %w", err)
	}
	out, err := yaml.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("render: yaml marshal: %w", err)
	}
	return out, nil
}

// RenderMarkdown produces a GitHub-flavoured Markdown summary of the analysis.
func RenderMarkdown(a *schema.Analysis) string {
	if a == nil {
		return ""
	}
	var sb strings.Builder

	sb.WriteString("## AI Governance Compliance Report\n\n")
	if a.DocumentPath != "" {
		fmt.Fprintf(&sb, "**Document:** `%s`  \n", a.DocumentPath)
	}
	if d := a.Document; d != nil {
		fmt.Fprintf(&sb, "**Type:** %s  \n", d.DocumentType)
		fmt.Fprintf(&sb, "**Use case:** %s  \n", mdEscape(d.UseCase))
	}
	if s := a.Synthesis; s != nil {
		fmt.Fprintf(&sb, "**UK Alignment Score:** %d/100 (%s)  \n", s.AlignmentScore, s.ComplianceLevel)
		fmt.Fprintf(&sb, "**Critical gaps:** %d\n\n", s.TotalCriticalGaps)
		fmt.Fprintf(&sb, "%s\n\n", s.Summary)
	} else {
		sb.WriteString("\n")
	}

	present := a.Results.Present()
	if len(present) > 0 {
		sb.WriteString("## Framework Scores\n\n")
		sb.WriteString("| Framework | Status | Score | Critical gaps |\n")
		sb.WriteString("|---|---|---|---|\n")
		for _, r := range present {
			c := r.Common()
			fmt.Fprintf(&sb, "| %s | %s | %d | %d |\n", mdEscape(c.Framework), c.Status, r.Score(), r.CriticalGapsCount())
		}
		sb.WriteString("\n")
	}

	if s := a.Synthesis; s != nil && len(s.CrossFrameworkGaps) > 0 {
		sb.WriteString("## Cross-Framework Gaps\n\n")
		for _, g := range s.CrossFrameworkGaps {
			fmt.Fprintf(&sb, "- **[%s] %s**: %s  \n", g.Severity, mdEscape(g.Issue), strings.Join(g.Impacts, ", "))
			fmt.Fprintf(&sb, "  _Recommendation:_ %s\n", mdEscape(g.Recommendation))
		}
		sb.WriteString("\n")
	}

	if s := a.Synthesis; s != nil && len(s.PriorityActions) > 0 {
		sb.WriteString("## Priority Actions\n\n")
		for i, act := range s.PriorityActions {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, mdEscape(act))
		}
		sb.WriteString("\n")
	}

	for _, r := range present {
		writeFramework(&sb, r)
	}
	return sb.String()
}

func writeFramework(sb *strings.Builder, r schema.Result) {
	c := r.Common()
	fmt.Fprintf(sb, "<details>\n<summary><strong>%s</strong>: %d/100 [%s]</summary>\n\n", c.Framework, r.Score(), c.Status)
	if eu, ok := r.(*schema.EUActResult); ok && eu.RiskTier != "" {
		fmt.Fprintf(sb, "**Risk tier:** %s  \n", eu.RiskTier)
		if eu.RiskJustification != "" {
			fmt.Fprintf(sb, "**Justification:** %s\n\n", mdEscape(eu.RiskJustification))
		}
	}
	if c.ComplianceSummary != "" {
		fmt.Fprintf(sb, "%s\n\n", mdEscape(c.ComplianceSummary))
	}
	if reqs := r.Requirements(); len(reqs) > 0 {
		sb.WriteString("| Requirement | Status | Priority | Gap |\n")
		sb.WriteString("|---|---|---|---|\n")
		for _, kr := range reqs {
			fmt.Fprintf(sb, "| %s | %s | %s | %s |\n",
				RequirementLabel(kr.Key), kr.Requirement.Status, kr.Requirement.Priority, mdEscape(kr.Requirement.Gap))
		}
		sb.WriteString("\n")
	}
	writeList(sb, "Strengths", r.Strengths())
	writeList(sb, "Critical gaps", c.CriticalGaps)
	if c.Error != "" {
		fmt.Fprintf(sb, "**Error:** %s\n\n", mdEscape(c.Error))
	}
	sb.WriteString("</details>\n\n")
}

func writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "**%s:**\n\n", title)
	for _, it := range items {
		fmt.Fprintf(sb, "- %s\n", mdEscape(it))
	}
	sb.WriteString("\n")
}

var titleCase = cases.Title(language.BritishEnglish)

// RequirementLabel turns a requirement key such as "principle_2_fairness"
// into a heading such as "Principle 2 Fairness".
func RequirementLabel(key string) string {
	label := titleCase.String(strings.ReplaceAll(key, "_", " "))
	return strings.NewReplacer("Adm", "ADM", "Dpia", "DPIA").Replace(label)
}

// mdEscape replaces characters that would break Markdown table cells.
func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	return s
}
