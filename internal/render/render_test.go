package render

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/ledongthuc/pdf"
	"gopkg.in/yaml.v3"

	"github.com/dshills/regalign/internal/schema"
)

func sampleAnalysis() *schema.Analysis {
	return &schema.Analysis{
		DocumentPath: "recruitment.pdf",
		Document: &schema.ExtractedDocument{
			DocumentType:      schema.DocumentSystemSpec,
			UseCase:           "Recruitment shortlisting",
			SystemType:        "Ranking model",
			DataTypes:         schema.StringList{"CVs", "assessment scores"},
			HasPersonalData:   true,
			DeploymentContext: "UK employer",
			FullText:          "SECRET FULL TEXT",
		},
		Frameworks: []schema.FrameworkCode{schema.FrameworkICO, schema.FrameworkEUAIAct, schema.FrameworkDPA},
		Results: schema.ResultSet{
			ICO: &schema.ICOResult{
				Assessment: schema.Assessment{
					Framework:         "UK ICO",
					FrameworkCode:     schema.FrameworkICO,
					Status:            schema.AssessmentEvaluated,
					OverallScore:      80,
					CriticalCount:     1,
					CriticalGaps:      schema.StringList{"No bias audit"},
					StrengthsFound:    schema.StringList{"Clear accountability owner"},
					Actions:           schema.StringList{"Run bias testing"},
					ComplianceSummary: "Mostly aligned with ICO principles.",
				},
				Fairness: &schema.Requirement{
					Status:   schema.StatusNotMet,
					Gap:      "No fairness|bias testing",
					Priority: schema.PriorityCritical,
				},
				DataMinimization: &schema.Requirement{Status: schema.StatusMet, Priority: schema.PriorityLow},
			},
			EUAct: &schema.EUActResult{
				Assessment: schema.Assessment{
					Framework:         "EU AI Act",
					FrameworkCode:     schema.FrameworkEUAIAct,
					Status:            schema.AssessmentEvaluated,
					OverallScore:      30,
					ComplianceSummary: "High-risk employment use.",
				},
				RiskTier:          schema.RiskHigh,
				RiskJustification: "Annex III employment",
			},
			DPA: &schema.DPAResult{
				Assessment: schema.Assessment{
					Framework:         "UK DPA / GDPR",
					FrameworkCode:     schema.FrameworkDPA,
					Status:            schema.AssessmentNotEvaluated,
					ComplianceSummary: "UK DPA/GDPR analysis could not be generated from the model output.",
					Error:             "decode: no JSON object",
				},
			},
		},
		Synthesis: &schema.Synthesis{
			AlignmentScore:  53,
			ComplianceLevel: "Needs Improvement",
			FrameworkScores: map[string]int{"ICO": 80, "EU_AI_ACT": 30, "DPA": 0},
			CrossFrameworkGaps: []schema.CrossFrameworkGap{{
				Issue:          "Fairness and bias controls missing",
				Impacts:        []string{"ICO", "EU_AI_ACT"},
				Severity:       schema.PriorityCritical,
				Recommendation: "Implement bias testing",
			}},
			TotalCriticalGaps:  1,
			PriorityActions:    []string{"Run bias testing", "Complete DPIA"},
			FrameworksAnalyzed: []schema.FrameworkCode{schema.FrameworkICO, schema.FrameworkEUAIAct, schema.FrameworkDPA},
			Summary:            "UK alignment score of 53% across 3 frameworks.",
		},
		Log: []string{"Supervisor: Starting compliance analysis..."},
	}
}

func TestRenderJSON_RoundTrip(t *testing.T) {
	a := sampleAnalysis()
	b, err := RenderJSON(a)
	if err != nil {
		t.Fatalf("RenderJSON error: %v", err)
	}
	var got schema.Analysis
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("json.Unmarshal error: %v", err)
	}
	if got.Synthesis == nil || got.Synthesis.AlignmentScore != 53 {
		t.Fatalf("synthesis not round-tripped: %+v", got.Synthesis)
	}
	if got.Results.ICO == nil || got.Results.ICO.Fairness == nil {
		t.Fatal("ICO fairness requirement lost")
	}
	if got.Results.ICO.Fairness.Status != schema.StatusNotMet {
		t.Errorf("fairness status: got %q, want NOT_MET", got.Results.ICO.Fairness.Status)
	}
	if got.Results.ISO != nil {
		t.Error("absent ISO slot should stay nil")
	}
	if got.Results.EUAct == nil || got.Results.EUAct.RiskTier != schema.RiskHigh {
		t.Errorf("EU risk tier lost: %+v", got.Results.EUAct)
	}
}

func TestRenderJSON_OmitsFullText(t *testing.T) {
	a := sampleAnalysis()
	b, err := RenderJSON(a)
	if err != nil {
		t.Fatalf("RenderJSON error: %v", err)
	}
	if strings.Contains(string(b), "SECRET FULL TEXT") {
		t.Error("JSON output should not contain the extracted full text")
	}
	if a.Document.FullText == "" {
		t.Error("RenderJSON must not modify its input")
	}
	if !strings.Contains(string(b), "\n  ") {
		t.Error("expected indentation in pretty-printed JSON output")
	}
}

func TestRenderYAML(t *testing.T) {
	b, err := RenderYAML(sampleAnalysis())
	if err != nil {
		t.Fatalf("RenderYAML error: %v", err)
	}
	var got map[string]any
	if err := yaml.Unmarshal(b, &got); err != nil {
		t.Fatalf("yaml.Unmarshal error: %v", err)
	}
	syn, ok := got["synthesis"].(map[string]any)
	if !ok {
		t.Fatalf("synthesis key missing: %v", got)
	}
	if syn["alignment_score"] != 53 {
		t.Errorf("alignment_score = %v, want 53", syn["alignment_score"])
	}
	if strings.Contains(string(b), "SECRET FULL TEXT") {
		t.Error("YAML output should not contain the extracted full text")
	}
}

func TestRenderMarkdown_Sections(t *testing.T) {
	md := RenderMarkdown(sampleAnalysis())
	for _, want := range []string{
		"## AI Governance Compliance Report",
		"**UK Alignment Score:** 53/100 (Needs Improvement)",
		"## Framework Scores",
		"| UK ICO | EVALUATED | 80 | 1 |",
		"| UK DPA / GDPR | NOT_EVALUATED | 0 | 0 |",
		"## Cross-Framework Gaps",
		"**[CRITICAL] Fairness and bias controls missing**: ICO, EU_AI_ACT",
		"## Priority Actions",
		"1. Run bias testing",
		"2. Complete DPIA",
		"**Risk tier:** HIGH_RISK",
		"| Principle 2 Fairness | NOT_MET | CRITICAL |",
		"**Error:** decode: no JSON object",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
	if strings.Contains(md, "ISO") {
		t.Error("markdown should not mention an absent framework")
	}
}

func TestRenderMarkdown_EscapesTableCells(t *testing.T) {
	md := RenderMarkdown(sampleAnalysis())
	if !strings.Contains(md, `No fairness\|bias testing`) {
		t.Error("pipe in requirement gap not escaped in markdown table")
	}
}

func TestRenderMarkdown_Empty(t *testing.T) {
	md := RenderMarkdown(&schema.Analysis{})
	if !strings.Contains(md, "Compliance Report") {
		t.Error("markdown missing report header")
	}
	for _, section := range []string{"Framework Scores", "Cross-Framework Gaps", "Priority Actions", "<details>"} {
		if strings.Contains(md, section) {
			t.Errorf("markdown should not contain %q for an empty analysis", section)
		}
	}
}

func TestRenderJSON_NilAnalysis(t *testing.T) {
	if _, err := RenderJSON(nil); err == nil {
		t.Error("expected error for nil analysis, got nil")
	}
}

func TestRenderMarkdown_NilAnalysis(t *testing.T) {
	if got := RenderMarkdown(nil); got != "" {
		t.Errorf("expected empty string for nil analysis, got %q", got)
	}
}

func TestParseFormat(t *testing.T) {
	cases := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"Markdown", FormatMarkdown, false},
		{"md", FormatMarkdown, false},
		{" yml ", FormatYAML, false},
		{"yaml", FormatYAML, false},
		{"pdf", "", true},
		{"", "", true},
	}
	for _, c := range cases {
		got, err := ParseFormat(c.in)
		if (err != nil) != c.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", c.in, err, c.wantErr)
			continue
		}
		if got != c.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestRender_Dispatch(t *testing.T) {
	a := sampleAnalysis()
	for _, f := range []Format{FormatJSON, FormatMarkdown, FormatYAML} {
		b, err := Render(f, a)
		if err != nil {
			t.Errorf("Render(%s) error: %v", f, err)
			continue
		}
		if len(b) == 0 {
			t.Errorf("Render(%s) returned no output", f)
		}
	}
	if _, err := Render("xml", a); err == nil {
		t.Error("expected error for unknown format")
	}
	if _, err := Render(FormatMarkdown, nil); err == nil {
		t.Error("expected error for nil analysis")
	}
}

func TestRequirementLabel(t *testing.T) {
	cases := []struct{ in, want string }{
		{"principle_2_fairness", "Principle 2 Fairness"},
		{"article_22_adm", "Article 22 ADM"},
		{"article_35_dpia", "Article 35 DPIA"},
		{"risk_management_system", "Risk Management System"},
		{"governance", "Governance"},
	}
	for _, c := range cases {
		if got := RequirementLabel(c.in); got != c.want {
			t.Errorf("RequirementLabel(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestMdEscape(t *testing.T) {
	cases := []struct{ in, want string }{
		{"no pipes", "no pipes"},
		{"a|b", `a\|b`},
		{"line\r\nbreak", "line break"},
		{"", ""},
	}
	for _, c := range cases {
		if got := mdEscape(c.in); got != c.want {
			t.Errorf("mdEscape(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestPDF_Render(t *testing.T) {
	p := PDF{Now: func() time.Time { return time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC) }}
	b, err := p.Render(*sampleAnalysis())
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if !bytes.HasPrefix(b, []byte("%PDF-")) {
		t.Fatalf("output is not a PDF: %q", b[:min(len(b), 16)])
	}

	r, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		t.Fatalf("pdf.NewReader: %v", err)
	}
	rd, err := r.GetPlainText()
	if err != nil {
		t.Fatalf("GetPlainText: %v", err)
	}
	text, err := io.ReadAll(rd)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Executive", "Recruitment", "Scores", "Recommendation"} {
		if !strings.Contains(string(text), want) {
			t.Errorf("PDF text missing %q", want)
		}
	}
}

func TestPDF_RenderLongAnalysisPaginates(t *testing.T) {
	a := sampleAnalysis()
	long := strings.Repeat("Evidence of weak governance controls across the lifecycle. ", 40)
	for i := 0; i < 30; i++ {
		a.Synthesis.CrossFrameworkGaps = append(a.Synthesis.CrossFrameworkGaps, schema.CrossFrameworkGap{
			Issue: "Repeated gap", Impacts: []string{"ICO"}, Severity: schema.PriorityHigh, Recommendation: long,
		})
	}
	b, err := PDF{}.Render(*a)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	r, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		t.Fatalf("pdf.NewReader: %v", err)
	}
	if r.NumPage() < 2 {
		t.Errorf("NumPage = %d, want a multi-page report", r.NumPage())
	}
}

func TestPDFText(t *testing.T) {
	cases := []struct{ in, want string }{
		{"plain", "plain"},
		{"risk\u2014based", "risk-based"},
		{"\ufb01le", "file"},
		{"a\u00a0b", "a b"},
		{"\u201cquoted\u201d", `"quoted"`},
		{"caf\u00e9", "caf\u00e9"},
		{"\u20ac5", "?5"},
		{"tab\there", "tab here"},
		{"bell\a", "bell"},
		{"two\nlines", "two\nlines"},
	}
	for _, c := range cases {
		if got := pdfText(c.in); got != c.want {
			t.Errorf("pdfText(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
