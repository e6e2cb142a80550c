// Package framework is the catalogue of regulatory frameworks regalign can
// assess. Each definition carries everything that differs between framework
// analyses: display name, synthesis weight, prompt template, requirement keys
// and the degraded-result wording.
package framework

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/regalign/internal/schema"
)

// ErrUnknownCode is returned when a framework code is not in the catalogue.
var ErrUnknownCode = errors.New("framework: unknown code")

// Definition describes one framework analysis.
type Definition struct {
	Code        schema.FrameworkCode
	Name        string
	Description string
	// Weight is the framework's share of the alignment score.
	Weight float64
	// Template names the prompt template used for the analysis.
	Template string
	// RequirementKeys lists the top-level requirement sub-records, or the
	// obligation keys for the EU AI Act.
	RequirementKeys []string
	// DegradedSummary is the compliance summary of a NOT_EVALUATED result.
	DegradedSummary string
	// Agent and Activity label the framework's progress lines.
	Agent    string
	Activity string
}

// builtins is the registry of frameworks keyed by code.
var builtins = map[schema.FrameworkCode]Definition{
	schema.FrameworkICO: {
		Code:        schema.FrameworkICO,
		Name:        "UK ICO",
		Description: "UK Information Commissioner's Office AI principles.",
		Weight:      0.4,
		Template:    "ico",
		RequirementKeys: []string{
			schema.KeyICOSafety,
			schema.KeyICOFairness,
			schema.KeyICOAccountability,
			schema.KeyICOContestability,
			schema.KeyICODataMinimization,
		},
		Agent:    "ICO Agent",
		Activity: "Analyzing UK compliance...",
		DegradedSummary: "UK ICO analysis could not be generated from the model output. " +
			"Treat this framework as not yet assessed.",
	},
	schema.FrameworkEUAIAct: {
		Code:            schema.FrameworkEUAIAct,
		Name:            "EU AI Act",
		Description:     "EU Artificial Intelligence Act risk tiers and high-risk obligations.",
		Weight:          0.1,
		Template:        "eu_act",
		RequirementKeys: schema.EUObligationKeys,
		Agent:           "EU AI Act Agent",
		Activity:        "Analyzing risk tier...",
		DegradedSummary: "EU AI Act analysis could not be generated from the model output. " +
			"Treat this framework as not yet assessed.",
	},
	schema.FrameworkDPA: {
		Code:        schema.FrameworkDPA,
		Name:        "UK DPA / GDPR",
		Description: "UK Data Protection Act 2018 and UK GDPR articles relevant to AI.",
		Weight:      0.3,
		Template:    "dpa",
		RequirementKeys: []string{
			schema.KeyDPAAutomatedDecisions,
			schema.KeyDPAFairness,
			schema.KeyDPATransparency,
			schema.KeyDPADPIA,
		},
		Agent:    "DPA Agent",
		Activity: "Analyzing data protection...",
		DegradedSummary: "UK DPA/GDPR analysis could not be generated from the model output. " +
			"Treat this framework as not yet assessed.",
	},
	schema.FrameworkISO42001: {
		Code:        schema.FrameworkISO42001,
		Name:        "ISO/IEC 42001",
		Description: "ISO/IEC 42001:2023 AI management system.",
		Weight:      0.2,
		Template:    "iso",
		RequirementKeys: []string{
			schema.KeyISOGovernance,
			schema.KeyISORiskManagement,
			schema.KeyISODataLifecycle,
			schema.KeyISOMonitoring,
		},
		Agent:    "ISO 42001 Agent",
		Activity: "Analyzing governance...",
		DegradedSummary: "ISO 42001 analysis could not be generated from the model output. " +
			"Treat this framework as not yet assessed and review ISO 42001 requirements separately.",
	},
}

// Load returns the definition for code or ErrUnknownCode.
func Load(code schema.FrameworkCode) (Definition, error) {
	d, ok := builtins[code]
	if !ok {
		return Definition{}, fmt.Errorf("%w %q (available: %s)", ErrUnknownCode, code, available())
	}
	return d, nil
}

// All returns every definition in schema.FrameworkOrder.
func All() []Definition {
	out := make([]Definition, 0, len(schema.FrameworkOrder))
	for _, code := range schema.FrameworkOrder {
		out = append(out, builtins[code])
	}
	return out
}

// Name returns the display name for code, or the code itself if unknown.
func Name(code schema.FrameworkCode) string {
	if d, ok := builtins[code]; ok {
		return d.Name
	}
	return string(code)
}

// ParseCode normalizes user input such as "eu-ai-act" or "iso_42001" into a
// catalogue code.
func ParseCode(s string) (schema.FrameworkCode, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_", "/", "_").Replace(norm)
	switch norm {
	case "EU", "EU_ACT", "EUAIACT", "AI_ACT":
		norm = string(schema.FrameworkEUAIAct)
	case "ISO", "ISO42001", "ISO_IEC_42001":
		norm = string(schema.FrameworkISO42001)
	case "GDPR", "UK_GDPR":
		norm = string(schema.FrameworkDPA)
	}
	code := schema.FrameworkCode(norm)
	if _, ok := builtins[code]; !ok {
		return "", fmt.Errorf("%w %q (available: %s)", ErrUnknownCode, s, available())
	}
	return code, nil
}

// ParseCodes parses a list of codes, dropping duplicates while keeping order.
func ParseCodes(in []string) ([]schema.FrameworkCode, error) {
	var out []schema.FrameworkCode
	seen := make(map[schema.FrameworkCode]bool, len(in))
	for _, s := range in {
		code, err := ParseCode(s)
		if err != nil {
			return nil, err
		}
		if !seen[code] {
			seen[code] = true
			out = append(out, code)
		}
	}
	return out, nil
}

func available() string {
	names := make([]string, 0, len(schema.FrameworkOrder))
	for _, code := range schema.FrameworkOrder {
		names = append(names, string(code))
	}
	return strings.Join(names, ", ")
}
