package schema

// Result is the view of a per-framework assessment that synthesis and
// rendering rely on. Each framework has its own concrete result type.
type Result interface {
	Code() FrameworkCode
	Common() *Assessment
	Score() int
	CriticalGapsCount() int
	PriorityActions() []string
	Strengths() []string
	Evaluated() bool
	// Requirement returns the named requirement sub-record, if present.
	Requirement(key string) (Requirement, bool)
	// Requirements returns every present sub-record keyed by requirement key,
	// in the framework's canonical order.
	Requirements() []KeyedRequirement
}

// KeyedRequirement pairs a requirement key with its assessment.
type KeyedRequirement struct {
	Key         string
	Requirement Requirement
}

// Assessment holds the fields common to every framework result.
type Assessment struct {
	Framework            string           `json:"framework"`
	FrameworkCode        FrameworkCode    `json:"code"`
	Status               AssessmentStatus `json:"status"`
	OverallScore         int              `json:"score"`
	CriticalCount        int              `json:"critical_gaps_count"`
	DocumentTypeDetected DocumentType     `json:"document_type_detected,omitempty"`
	CriticalGaps         StringList       `json:"critical_gaps"`
	StrengthsFound       StringList       `json:"strengths"`
	Actions              StringList       `json:"priority_actions"`
	ComplianceSummary    string           `json:"compliance_summary"`
	RawResponse          string           `json:"raw_response,omitempty"`
	Error                string           `json:"error,omitempty"`
	Warnings             []string         `json:"validation_warnings,omitempty"`
}

func (a *Assessment) Code() FrameworkCode       { return a.FrameworkCode }
func (a *Assessment) Common() *Assessment       { return a }
func (a *Assessment) Score() int                { return a.OverallScore }
func (a *Assessment) CriticalGapsCount() int    { return a.CriticalCount }
func (a *Assessment) PriorityActions() []string { return a.Actions }
func (a *Assessment) Strengths() []string       { return a.StrengthsFound }
func (a *Assessment) Evaluated() bool           { return a.Status == AssessmentEvaluated }

// Degrade turns a into the canonical NOT_EVALUATED record: zero score, zero
// critical gaps, empty lists, and the given summary.
func (a *Assessment) Degrade(summary, raw string) {
	a.Status = AssessmentNotEvaluated
	a.OverallScore = 0
	a.CriticalCount = 0
	a.CriticalGaps = StringList{}
	a.StrengthsFound = StringList{}
	a.Actions = StringList{}
	a.ComplianceSummary = summary
	a.RawResponse = raw
}

// collect builds a KeyedRequirement list from parallel key/pointer slices,
// skipping absent entries.
func collect(keys []string, reqs []*Requirement) []KeyedRequirement {
	var out []KeyedRequirement
	for i, r := range reqs {
		if r != nil {
			out = append(out, KeyedRequirement{Key: keys[i], Requirement: *r})
		}
	}
	return out
}

func lookup(key string, all []KeyedRequirement) (Requirement, bool) {
	for _, kr := range all {
		if kr.Key == key {
			return kr.Requirement, true
		}
	}
	return Requirement{}, false
}

// ICOResult is the UK ICO AI principles assessment.
type ICOResult struct {
	Assessment
	Safety           *Requirement `json:"principle_1_safety,omitempty"`
	Fairness         *Requirement `json:"principle_2_fairness,omitempty"`
	Accountability   *Requirement `json:"principle_3_accountability,omitempty"`
	Contestability   *Requirement `json:"principle_4_contestability,omitempty"`
	DataMinimization *Requirement `json:"principle_5_data_minimization,omitempty"`
}

// ICO requirement keys.
const (
	KeyICOSafety           = "principle_1_safety"
	KeyICOFairness         = "principle_2_fairness"
	KeyICOAccountability   = "principle_3_accountability"
	KeyICOContestability   = "principle_4_contestability"
	KeyICODataMinimization = "principle_5_data_minimization"
)

var icoKeys = []string{KeyICOSafety, KeyICOFairness, KeyICOAccountability, KeyICOContestability, KeyICODataMinimization}

func (r *ICOResult) Requirements() []KeyedRequirement {
	return collect(icoKeys, []*Requirement{r.Safety, r.Fairness, r.Accountability, r.Contestability, r.DataMinimization})
}

func (r *ICOResult) Requirement(key string) (Requirement, bool) {
	return lookup(key, r.Requirements())
}

// DPAResult is the UK Data Protection Act / GDPR assessment.
type DPAResult struct {
	Assessment
	AutomatedDecisions *Requirement `json:"article_22_adm,omitempty"`
	Fairness           *Requirement `json:"article_5_fairness,omitempty"`
	Transparency       *Requirement `json:"article_13_transparency,omitempty"`
	DPIA               *Requirement `json:"article_35_dpia,omitempty"`
}

// DPA requirement keys.
const (
	KeyDPAAutomatedDecisions = "article_22_adm"
	KeyDPAFairness           = "article_5_fairness"
	KeyDPATransparency       = "article_13_transparency"
	KeyDPADPIA               = "article_35_dpia"
)

var dpaKeys = []string{KeyDPAAutomatedDecisions, KeyDPAFairness, KeyDPATransparency, KeyDPADPIA}

func (r *DPAResult) Requirements() []KeyedRequirement {
	return collect(dpaKeys, []*Requirement{r.AutomatedDecisions, r.Fairness, r.Transparency, r.DPIA})
}

func (r *DPAResult) Requirement(key string) (Requirement, bool) {
	return lookup(key, r.Requirements())
}

// ISOResult is the ISO/IEC 42001 AI management system assessment.
type ISOResult struct {
	Assessment
	Governance     *Requirement `json:"governance,omitempty"`
	RiskManagement *Requirement `json:"risk_management,omitempty"`
	DataLifecycle  *Requirement `json:"data_lifecycle,omitempty"`
	Monitoring     *Requirement `json:"monitoring,omitempty"`
}

// ISO 42001 requirement keys.
const (
	KeyISOGovernance     = "governance"
	KeyISORiskManagement = "risk_management"
	KeyISODataLifecycle  = "data_lifecycle"
	KeyISOMonitoring     = "monitoring"
)

var isoKeys = []string{KeyISOGovernance, KeyISORiskManagement, KeyISODataLifecycle, KeyISOMonitoring}

func (r *ISOResult) Requirements() []KeyedRequirement {
	return collect(isoKeys, []*Requirement{r.Governance, r.RiskManagement, r.DataLifecycle, r.Monitoring})
}

func (r *ISOResult) Requirement(key string) (Requirement, bool) {
	return lookup(key, r.Requirements())
}

// EUActCoverage records which EU AI Act concepts a guidance document discusses.
type EUActCoverage struct {
	RiskClassificationDiscussed       bool `json:"risk_classification_discussed"`
	HighRiskObligationsDiscussed      bool `json:"high_risk_obligations_discussed"`
	TransparencyRequirementsDiscussed bool `json:"transparency_requirements_discussed"`
	ProhibitedPracticesDiscussed      bool `json:"prohibited_practices_discussed"`
}

// EU AI Act high-risk obligation keys.
const (
	KeyEURiskManagement     = "risk_management_system"
	KeyEUDataGovernance     = "data_governance"
	KeyEUTechnicalDocs      = "technical_documentation"
	KeyEURecordKeeping      = "record_keeping"
	KeyEUTransparency       = "transparency"
	KeyEUHumanOversight     = "human_oversight"
	KeyEUAccuracyRobustness = "accuracy_robustness"
	KeyEUQualityManagement  = "quality_management"
)

// EUObligationKeys lists the high-risk obligations in canonical order.
var EUObligationKeys = []string{
	KeyEURiskManagement,
	KeyEUDataGovernance,
	KeyEUTechnicalDocs,
	KeyEURecordKeeping,
	KeyEUTransparency,
	KeyEUHumanOversight,
	KeyEUAccuracyRobustness,
	KeyEUQualityManagement,
}

// EUActResult is the EU AI Act assessment.
type EUActResult struct {
	Assessment
	RiskTier          RiskTier               `json:"risk_tier"`
	RiskJustification string                 `json:"risk_justification,omitempty"`
	Coverage          *EUActCoverage         `json:"eu_act_coverage,omitempty"`
	EvidenceFound     StringList             `json:"evidence_found,omitempty"`
	SectionsRelevant  StringList             `json:"sections_relevant,omitempty"`
	Obligations       map[string]Requirement `json:"obligations_if_high_risk,omitempty"`
}

// HighRisk reports whether the system was classified HIGH_RISK.
func (r *EUActResult) HighRisk() bool {
	return r.RiskTier == RiskHigh
}

// Requirements returns the high-risk obligations, and only when the tier is
// HIGH_RISK; obligations recorded for any other tier are informational.
func (r *EUActResult) Requirements() []KeyedRequirement {
	if !r.HighRisk() {
		return nil
	}
	var out []KeyedRequirement
	for _, k := range EUObligationKeys {
		if req, ok := r.Obligations[k]; ok {
			out = append(out, KeyedRequirement{Key: k, Requirement: req})
		}
	}
	return out
}

func (r *EUActResult) Requirement(key string) (Requirement, bool) {
	return lookup(key, r.Requirements())
}

// ResultSet holds zero or one result per framework. A nil slot means the
// framework was not attempted, which is distinct from a NOT_EVALUATED result.
type ResultSet struct {
	ICO   *ICOResult   `json:"ico_result"`
	EUAct *EUActResult `json:"eu_act_result"`
	DPA   *DPAResult   `json:"dpa_result"`
	ISO   *ISOResult   `json:"iso_result"`
}

// Get returns the result for code, if one is present.
func (s ResultSet) Get(code FrameworkCode) (Result, bool) {
	switch code {
	case FrameworkICO:
		if s.ICO != nil {
			return s.ICO, true
		}
	case FrameworkEUAIAct:
		if s.EUAct != nil {
			return s.EUAct, true
		}
	case FrameworkDPA:
		if s.DPA != nil {
			return s.DPA, true
		}
	case FrameworkISO42001:
		if s.ISO != nil {
			return s.ISO, true
		}
	}
	return nil, false
}

// With returns a copy of s with r stored in its framework's slot. Results of
// an unexpected concrete type are ignored.
func (s ResultSet) With(r Result) ResultSet {
	switch v := r.(type) {
	case *ICOResult:
		s.ICO = v
	case *EUActResult:
		s.EUAct = v
	case *DPAResult:
		s.DPA = v
	case *ISOResult:
		s.ISO = v
	}
	return s
}

// Present returns the non-nil results in FrameworkOrder.
func (s ResultSet) Present() []Result {
	var out []Result
	for _, code := range FrameworkOrder {
		if r, ok := s.Get(code); ok {
			out = append(out, r)
		}
	}
	return out
}
