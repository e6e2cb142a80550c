// Package schema defines all canonical data types for regalign assessments.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FrameworkCode identifies one regulatory or governance framework.
type FrameworkCode string

const (
	FrameworkICO      FrameworkCode = "ICO"
	FrameworkEUAIAct  FrameworkCode = "EU_AI_ACT"
	FrameworkDPA      FrameworkCode = "DPA"
	FrameworkISO42001 FrameworkCode = "ISO_42001"
)

// FrameworkOrder is the fixed order in which frameworks are analyzed,
// aggregated and reported.
var FrameworkOrder = []FrameworkCode{
	FrameworkICO,
	FrameworkEUAIAct,
	FrameworkDPA,
	FrameworkISO42001,
}

// DocumentType is the classification assigned to the input document.
type DocumentType string

const (
	DocumentGuidance   DocumentType = "GUIDANCE"
	DocumentSystemSpec DocumentType = "SYSTEM_SPEC"
	DocumentStrategy   DocumentType = "STRATEGY"
	DocumentAssessment DocumentType = "ASSESSMENT"
	DocumentUnknown    DocumentType = "UNKNOWN"
)

// Status is the compliance status of a single requirement.
type Status string

const (
	StatusMet             Status = "MET"
	StatusPartiallyMet    Status = "PARTIALLY_MET"
	StatusNotMet          Status = "NOT_MET"
	StatusEvidenceMissing Status = "EVIDENCE_MISSING"
	StatusNotApplicable   Status = "N/A"
)

// Bad reports whether s counts as a failing status for cross-framework correlation.
func (s Status) Bad() bool {
	return s == StatusNotMet || s == StatusEvidenceMissing
}

// Priority is the remediation priority of a requirement gap.
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
)

// Severity is the severity of a cross-framework gap.
type Severity = Priority

// AssessmentStatus records whether a framework analysis produced a usable result.
type AssessmentStatus string

const (
	AssessmentEvaluated    AssessmentStatus = "EVALUATED"
	AssessmentNotEvaluated AssessmentStatus = "NOT_EVALUATED"
)

// RiskTier is the EU AI Act risk classification.
type RiskTier string

const (
	RiskProhibited  RiskTier = "PROHIBITED"
	RiskHigh        RiskTier = "HIGH_RISK"
	RiskLimited     RiskTier = "LIMITED_RISK"
	RiskMinimal     RiskTier = "MINIMAL_RISK"
	RiskNAGuidance  RiskTier = "N/A_GUIDANCE"
	RiskTierUnknown RiskTier = "UNKNOWN"
)

// StringList is a list of strings that also accepts a bare string or null
// when decoding, since models do not always honour the requested shape.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*l = StringList{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*l = StringList{}
		} else {
			*l = StringList{s}
		}
		return nil
	}
	var items []any
	if err := json.Unmarshal(b, &items); err != nil {
		return fmt.Errorf("schema: string list: %w", err)
	}
	out := make(StringList, 0, len(items))
	for _, it := range items {
		switch v := it.(type) {
		case nil:
		case string:
			out = append(out, v)
		default:
			out = append(out, fmt.Sprint(v))
		}
	}
	*l = out
	return nil
}

// Requirement is the assessment of one framework requirement.
type Requirement struct {
	Status           Status     `json:"status"`
	EvidenceFound    StringList `json:"evidence_found"`
	SectionsRelevant StringList `json:"sections_relevant,omitempty"`
	Gap              string     `json:"gap"`
	Priority         Priority   `json:"priority,omitempty"`
}

// ExtractedDocument is the structured description of the input document.
type ExtractedDocument struct {
	DocumentType            DocumentType `json:"document_type"`
	UseCase                 string       `json:"use_case"`
	SystemType              string       `json:"system_type"`
	DataTypes               StringList   `json:"data_types"`
	HasPersonalData         bool         `json:"has_personal_data"`
	HasBiometricData        bool         `json:"has_biometric_data"`
	HasHumanOversight       bool         `json:"has_human_oversight"`
	DeploymentContext       string       `json:"deployment_context"`
	RiskIndicators          StringList   `json:"risk_indicators"`
	ComplianceTopicsCovered StringList   `json:"compliance_topics_covered"`
	Keywords                StringList   `json:"keywords"`
	FullText                string       `json:"full_text,omitempty"`
}

// CrossFrameworkGap is an issue found by correlating requirement statuses
// across two or more frameworks.
type CrossFrameworkGap struct {
	Issue          string   `json:"issue"`
	Impacts        []string `json:"impacts"`
	Severity       Severity `json:"severity"`
	Recommendation string   `json:"recommendation"`
}

// Synthesis is the aggregate assessment across all analyzed frameworks.
type Synthesis struct {
	AlignmentScore     int                 `json:"alignment_score"`
	ComplianceLevel    string              `json:"compliance_level"`
	FrameworkScores    map[string]int      `json:"framework_scores"`
	CrossFrameworkGaps []CrossFrameworkGap `json:"cross_framework_gaps"`
	TotalCriticalGaps  int                 `json:"total_critical_gaps"`
	PriorityActions    []string            `json:"priority_actions"`
	FrameworksAnalyzed []FrameworkCode     `json:"frameworks_analyzed"`
	Summary            string              `json:"summary"`
}

// Analysis is the complete, serializable outcome of one assessment run.
type Analysis struct {
	DocumentPath string             `json:"document_path"`
	Document     *ExtractedDocument `json:"extracted_data"`
	Frameworks   []FrameworkCode    `json:"selected_frameworks"`
	Results      ResultSet          `json:"results"`
	Synthesis    *Synthesis         `json:"synthesis"`
	Log          []string           `json:"status_messages"`
}

// WithoutFullText returns a copy of a whose document omits the extracted text.
func (a Analysis) WithoutFullText() Analysis {
	if a.Document != nil {
		doc := *a.Document
		doc.FullText = ""
		a.Document = &doc
	}
	return a
}
