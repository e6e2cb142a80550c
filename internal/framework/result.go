package framework

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dshills/regalign/internal/decode"
	"github.com/dshills/regalign/internal/schema"
	"github.com/dshills/regalign/internal/textutil"
)

// MaxRawResponse bounds the raw model response kept on a degraded result.
const MaxRawResponse = 20000

// ValidationError records a single non-fatal finding on a decoded result.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// fields the engine computes itself; a model's own values are discarded.
var engineFields = []string{
	"framework", "code", "status", "score", "critical_gaps_count",
	"raw_response", "error", "validation_warnings",
}

// Decode turns a raw model response into a typed result for def. It fails
// only when the response holds no usable object; callers degrade on error.
func Decode(def Definition, raw string) (schema.Result, error) {
	m, err := decode.Object(raw)
	if err != nil {
		return nil, fmt.Errorf("framework: decode %s: %w", def.Code, err)
	}
	return FromObject(def, m)
}

// FromObject post-processes a decoded object and converts it into the
// framework's result type. The critical-gap count and score are derived from
// the object, never trusted from the model's own fields. Fields of the wrong
// type are coerced or dropped and reported as warnings.
func FromObject(def Definition, m map[string]any) (schema.Result, error) {
	critical := CountCritical(def.Code, m)
	score := ScoreOf(m["overall_score"])

	var warns []ValidationError
	clean := make(map[string]any, len(m))
	for k, v := range m {
		clean[k] = v
	}
	for _, k := range engineFields {
		delete(clean, k)
	}
	warns = append(warns, dropMalformed(def, clean)...)

	r := newResult(def.Code)
	clean, issues := decode.Conform(clean, r)
	for _, is := range issues {
		warns = append(warns, ValidationError{Field: is.Field, Message: is.Message})
	}
	if err := decode.Convert(clean, r); err != nil {
		return nil, fmt.Errorf("framework: convert %s: %w", def.Code, err)
	}

	a := r.Common()
	a.Framework = def.Name
	a.FrameworkCode = def.Code
	a.Status = schema.AssessmentEvaluated
	a.OverallScore = score
	a.CriticalCount = critical
	fillLists(a)

	warns = append(warns, validate(r)...)
	for _, w := range warns {
		a.Warnings = append(a.Warnings, w.Error())
	}
	return r, nil
}

// Degraded returns the canonical NOT_EVALUATED result for a response that
// could not be decoded. raw is kept, bounded, for diagnostics.
func Degraded(def Definition, raw string, cause error) schema.Result {
	return degraded(def, def.DegradedSummary, raw, cause)
}

// Failed returns the NOT_EVALUATED result for a model call that returned no
// response at all.
func Failed(def Definition, cause error) schema.Result {
	summary := fmt.Sprintf("%s analysis could not be completed because the model call failed. "+
		"Treat this framework as not yet assessed.", def.Name)
	return degraded(def, summary, "", cause)
}

func degraded(def Definition, summary, raw string, cause error) schema.Result {
	r := newResult(def.Code)
	a := r.Common()
	a.Framework = def.Name
	a.FrameworkCode = def.Code
	a.Degrade(summary, textutil.Truncate(raw, MaxRawResponse))
	if cause != nil {
		a.Error = cause.Error()
	}
	if eu, ok := r.(*schema.EUActResult); ok {
		eu.RiskTier = schema.RiskTierUnknown
	}
	return r
}

// CountCritical counts the sub-records of m whose priority is CRITICAL. For
// the EU AI Act only the high-risk obligations count, and only when the risk
// tier is HIGH_RISK.
func CountCritical(code schema.FrameworkCode, m map[string]any) int {
	scope := m
	if code == schema.FrameworkEUAIAct {
		if tier, _ := m["risk_tier"].(string); tier != string(schema.RiskHigh) {
			return 0
		}
		obl, ok := m["obligations_if_high_risk"].(map[string]any)
		if !ok {
			return 0
		}
		scope = obl
	}
	n := 0
	for _, v := range scope {
		sub, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if p, _ := sub["priority"].(string); p == string(schema.PriorityCritical) {
			n++
		}
	}
	return n
}

// ScoreOf interprets an overall_score value: a number, or a numeric string
// with an optional percent sign. The result is rounded and clamped to 0..100;
// anything else is 0.
func ScoreOf(v any) int {
	var f float64
	switch s := v.(type) {
	case float64:
		f = s
	case int:
		f = float64(s)
	case string:
		s = strings.TrimSuffix(strings.TrimSpace(s), "%")
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(100, f))))
}

func newResult(code schema.FrameworkCode) schema.Result {
	switch code {
	case schema.FrameworkEUAIAct:
		return &schema.EUActResult{}
	case schema.FrameworkDPA:
		return &schema.DPAResult{}
	case schema.FrameworkISO42001:
		return &schema.ISOResult{}
	default:
		return &schema.ICOResult{}
	}
}

// dropMalformed removes requirement entries that are not objects, and EU
// composite fields of the wrong shape, so one bad field does not sink the
// whole result.
func dropMalformed(def Definition, m map[string]any) []ValidationError {
	var warns []ValidationError
	drop := func(field string, scope map[string]any, key string) {
		v, ok := scope[key]
		if !ok || v == nil {
			delete(scope, key)
			return
		}
		if _, isObj := v.(map[string]any); !isObj {
			delete(scope, key)
			warns = append(warns, ValidationError{Field: field, Message: "expected an object; entry dropped"})
		}
	}

	if def.Code != schema.FrameworkEUAIAct {
		for _, k := range def.RequirementKeys {
			drop(k, m, k)
		}
		return warns
	}

	drop("eu_act_coverage", m, "eu_act_coverage")
	drop("obligations_if_high_risk", m, "obligations_if_high_risk")
	if obl, ok := m["obligations_if_high_risk"].(map[string]any); ok {
		for k := range obl {
			drop("obligations_if_high_risk."+k, obl, k)
		}
	}
	if tier, ok := m["risk_tier"]; ok {
		if _, isStr := tier.(string); !isStr {
			delete(m, "risk_tier")
			warns = append(warns, ValidationError{Field: "risk_tier", Message: "expected a string; field dropped"})
		}
	}
	return warns
}

func fillLists(a *schema.Assessment) {
	if a.CriticalGaps == nil {
		a.CriticalGaps = schema.StringList{}
	}
	if a.StrengthsFound == nil {
		a.StrengthsFound = schema.StringList{}
	}
	if a.Actions == nil {
		a.Actions = schema.StringList{}
	}
}

var (
	validStatus = map[schema.Status]bool{
		schema.StatusMet:             true,
		schema.StatusPartiallyMet:    true,
		schema.StatusNotMet:          true,
		schema.StatusEvidenceMissing: true,
		schema.StatusNotApplicable:   true,
	}
	validPriority = map[schema.Priority]bool{
		schema.PriorityCritical: true,
		schema.PriorityHigh:     true,
		schema.PriorityMedium:   true,
		schema.PriorityLow:      true,
		"":                      true,
	}
	validTier = map[schema.RiskTier]bool{
		schema.RiskProhibited: true,
		schema.RiskHigh:       true,
		schema.RiskLimited:    true,
		schema.RiskMinimal:    true,
		schema.RiskNAGuidance: true,
	}
	validDocType = map[schema.DocumentType]bool{
		schema.DocumentGuidance:   true,
		schema.DocumentSystemSpec: true,
		schema.DocumentStrategy:   true,
		schema.DocumentAssessment: true,
		"":                        true,
	}
)

// validate checks enum fields. Findings are warnings; values are kept as given.
func validate(r schema.Result) []ValidationError {
	var errs []ValidationError
	check := func(key string, req schema.Requirement) {
		if !validStatus[req.Status] {
			errs = append(errs, ValidationError{
				Field:   key + ".status",
				Message: fmt.Sprintf("invalid status %q", req.Status),
			})
		}
		if !validPriority[req.Priority] {
			errs = append(errs, ValidationError{
				Field:   key + ".priority",
				Message: fmt.Sprintf("invalid priority %q", req.Priority),
			})
		}
	}

	if dt := r.Common().DocumentTypeDetected; !validDocType[dt] {
		errs = append(errs, ValidationError{
			Field:   "document_type_detected",
			Message: fmt.Sprintf("invalid document type %q", dt),
		})
	}

	eu, ok := r.(*schema.EUActResult)
	if !ok {
		for _, kr := range r.Requirements() {
			check(kr.Key, kr.Requirement)
		}
		return errs
	}

	if !validTier[eu.RiskTier] {
		errs = append(errs, ValidationError{
			Field:   "risk_tier",
			Message: fmt.Sprintf("invalid risk tier %q", eu.RiskTier),
		})
	}
	for _, k := range schema.EUObligationKeys {
		if req, ok := eu.Obligations[k]; ok {
			check("obligations_if_high_risk."+k, req)
		}
	}
	return errs
}
