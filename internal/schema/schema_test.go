package schema_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/regalign/internal/schema"
)

func TestStringList_UnmarshalJSON(t *testing.T) {
	cases := []struct {
		in   string
		want schema.StringList
	}{
		{`["a", "b"]`, schema.StringList{"a", "b"}},
		{`"single"`, schema.StringList{"single"}},
		{`""`, schema.StringList{}},
		{`null`, schema.StringList{}},
		{`["a", null, 3, true]`, schema.StringList{"a", "3", "true"}},
	}
	for _, c := range cases {
		var got schema.StringList
		if err := json.Unmarshal([]byte(c.in), &got); err != nil {
			t.Errorf("%s: %v", c.in, err)
			continue
		}
		if diff := cmp.Diff(c.want, got); diff != "" {
			t.Errorf("%s (-want +got):\n%s", c.in, diff)
		}
	}

	var bad schema.StringList
	if err := json.Unmarshal([]byte(`{"a": 1}`), &bad); err == nil {
		t.Error("expected error for an object")
	}
}

func TestStringList_InsideStruct(t *testing.T) {
	var req schema.Requirement
	in := `{"status": "NOT_MET", "evidence_found": "Section 2", "gap": "none"}`
	if err := json.Unmarshal([]byte(in), &req); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(schema.StringList{"Section 2"}, req.EvidenceFound); diff != "" {
		t.Errorf("evidence (-want +got):\n%s", diff)
	}
	if !req.Status.Bad() {
		t.Error("NOT_MET should be a failing status")
	}
}

func TestStatus_Bad(t *testing.T) {
	bad := map[schema.Status]bool{
		schema.StatusMet:             false,
		schema.StatusPartiallyMet:    false,
		schema.StatusNotMet:          true,
		schema.StatusEvidenceMissing: true,
		schema.StatusNotApplicable:   false,
	}
	for s, want := range bad {
		if got := s.Bad(); got != want {
			t.Errorf("%s.Bad() = %v, want %v", s, got, want)
		}
	}
}

func TestResultSet_GetWithPresent(t *testing.T) {
	var set schema.ResultSet
	if len(set.Present()) != 0 {
		t.Fatal("empty set should have no results")
	}

	iso := &schema.ISOResult{Assessment: schema.Assessment{FrameworkCode: schema.FrameworkISO42001}}
	ico := &schema.ICOResult{Assessment: schema.Assessment{FrameworkCode: schema.FrameworkICO}}
	next := set.With(iso).With(ico)

	if _, ok := set.Get(schema.FrameworkICO); ok {
		t.Error("With must not modify the receiver")
	}
	if r, ok := next.Get(schema.FrameworkISO42001); !ok || r != iso {
		t.Errorf("Get(ISO) = %v, %v", r, ok)
	}
	if _, ok := next.Get(schema.FrameworkDPA); ok {
		t.Error("DPA was never stored")
	}

	var order []schema.FrameworkCode
	for _, r := range next.Present() {
		order = append(order, r.Code())
	}
	want := []schema.FrameworkCode{schema.FrameworkICO, schema.FrameworkISO42001}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("Present order (-want +got):\n%s", diff)
	}
}

func TestAssessment_Degrade(t *testing.T) {
	a := schema.Assessment{
		Status:         schema.AssessmentEvaluated,
		OverallScore:   70,
		CriticalCount:  2,
		CriticalGaps:   schema.StringList{"x"},
		StrengthsFound: schema.StringList{"y"},
		Actions:        schema.StringList{"z"},
	}
	a.Degrade("Analysis failed", "raw")
	if a.Evaluated() || a.Score() != 0 || a.CriticalGapsCount() != 0 {
		t.Errorf("degraded assessment = %+v", a)
	}
	if len(a.CriticalGaps)+len(a.Strengths())+len(a.PriorityActions()) != 0 {
		t.Errorf("lists should be empty: %+v", a)
	}
	if a.ComplianceSummary != "Analysis failed" || a.RawResponse != "raw" {
		t.Errorf("summary/raw = %q/%q", a.ComplianceSummary, a.RawResponse)
	}
}

func TestICOResult_Requirements(t *testing.T) {
	r := &schema.ICOResult{
		Fairness:         &schema.Requirement{Status: schema.StatusNotMet},
		Safety:           &schema.Requirement{Status: schema.StatusMet},
		DataMinimization: &schema.Requirement{Status: schema.StatusPartiallyMet},
	}
	var keys []string
	for _, kr := range r.Requirements() {
		keys = append(keys, kr.Key)
	}
	want := []string{schema.KeyICOSafety, schema.KeyICOFairness, schema.KeyICODataMinimization}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Errorf("keys (-want +got):\n%s", diff)
	}
	if req, ok := r.Requirement(schema.KeyICOFairness); !ok || req.Status != schema.StatusNotMet {
		t.Errorf("Requirement(fairness) = %+v, %v", req, ok)
	}
	if _, ok := r.Requirement(schema.KeyICOContestability); ok {
		t.Error("absent requirement reported present")
	}
}

func TestEUActResult_RequirementsScopedToHighRisk(t *testing.T) {
	obligations := map[string]schema.Requirement{
		schema.KeyEUHumanOversight: {Status: schema.StatusNotMet},
		schema.KeyEURiskManagement: {Status: schema.StatusMet},
		"unrecognised_key":         {Status: schema.StatusNotMet},
	}
	r := &schema.EUActResult{RiskTier: schema.RiskLimited, Obligations: obligations}
	if got := r.Requirements(); len(got) != 0 {
		t.Errorf("non-high-risk tier exposed %d obligations", len(got))
	}
	if _, ok := r.Requirement(schema.KeyEUHumanOversight); ok {
		t.Error("obligation visible outside HIGH_RISK")
	}

	r.RiskTier = schema.RiskHigh
	var keys []string
	for _, kr := range r.Requirements() {
		keys = append(keys, kr.Key)
	}
	want := []string{schema.KeyEURiskManagement, schema.KeyEUHumanOversight}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Errorf("keys (-want +got):\n%s", diff)
	}
}

func TestEUActResult_DecodesObligations(t *testing.T) {
	in := `{
		"risk_tier": "HIGH_RISK",
		"score": 40,
		"obligations_if_high_risk": {
			"transparency": {"status": "EVIDENCE_MISSING", "evidence_found": null, "gap": "no notice", "priority": "CRITICAL"}
		}
	}`
	var r schema.EUActResult
	if err := json.Unmarshal([]byte(in), &r); err != nil {
		t.Fatal(err)
	}
	if !r.HighRisk() || r.Score() != 40 {
		t.Errorf("tier/score = %s/%d", r.RiskTier, r.Score())
	}
	req, ok := r.Requirement(schema.KeyEUTransparency)
	if !ok || req.Priority != schema.PriorityCritical {
		t.Errorf("transparency = %+v, %v", req, ok)
	}
}

func TestAnalysis_WithoutFullText(t *testing.T) {
	a := schema.Analysis{
		DocumentPath: "policy.pdf",
		Document:     &schema.ExtractedDocument{UseCase: "triage", FullText: "secret body"},
	}
	stripped := a.WithoutFullText()
	if stripped.Document.FullText != "" {
		t.Error("full text should be cleared")
	}
	if a.Document.FullText != "secret body" {
		t.Error("original analysis must be unchanged")
	}
	if stripped.Document.UseCase != "triage" {
		t.Error("other document fields must survive")
	}

	b, err := json.Marshal(stripped)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}
	doc := m["extracted_data"].(map[string]any)
	if _, ok := doc["full_text"]; ok {
		t.Error("full_text key should be omitted")
	}

	var empty schema.Analysis
	if got := empty.WithoutFullText(); got.Document != nil {
		t.Error("nil document should stay nil")
	}
}
