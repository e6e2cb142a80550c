// Package router decides which framework analyses to run for a document.
package router

import (
	"strings"

	"github.com/dshills/regalign/internal/schema"
	"github.com/dshills/regalign/internal/textutil"
)

// HighRiskTerms trigger the EU AI Act analysis when found in a document's
// keywords, system type or use case.
var HighRiskTerms = []string{
	"biometric",
	"facial",
	"emotion",
	"credit scoring",
	"recruitment",
	"law enforcement",
	"border control",
}

// Route returns the routed set: the user's selection plus every framework
// the document's content calls for. It never removes a selected code. Known
// codes come back in schema.FrameworkOrder; unknown ones follow in input order.
func Route(doc schema.ExtractedDocument, selected []schema.FrameworkCode) []schema.FrameworkCode {
	set := make(map[schema.FrameworkCode]bool, len(selected)+4)
	for _, c := range selected {
		set[c] = true
	}

	if doc.HasPersonalData {
		set[schema.FrameworkICO] = true
		set[schema.FrameworkDPA] = true
	}

	if HighRisk(doc) {
		set[schema.FrameworkEUAIAct] = true
	}

	if len(set) > 0 {
		set[schema.FrameworkISO42001] = true
	}

	out := make([]schema.FrameworkCode, 0, len(set))
	for _, c := range schema.FrameworkOrder {
		if set[c] {
			out = append(out, c)
			delete(set, c)
		}
	}
	for _, c := range selected {
		if set[c] {
			out = append(out, c)
			delete(set, c)
		}
	}
	return out
}

// HighRisk reports whether any high-risk term appears in the document's
// keywords, system type or use case.
func HighRisk(doc schema.ExtractedDocument) bool {
	haystack := strings.ToLower(textutil.JoinNonEmpty(" ",
		strings.Join(doc.Keywords, " "), doc.SystemType, doc.UseCase))
	for _, term := range HighRiskTerms {
		if strings.Contains(haystack, term) {
			return true
		}
	}
	return false
}
