package router

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/regalign/internal/schema"
)

const (
	ico = schema.FrameworkICO
	eu  = schema.FrameworkEUAIAct
	dpa = schema.FrameworkDPA
	iso = schema.FrameworkISO42001
)

func TestRoute(t *testing.T) {
	cases := []struct {
		name     string
		doc      schema.ExtractedDocument
		selected []schema.FrameworkCode
		want     []schema.FrameworkCode
	}{
		{
			name:     "content triggers every framework",
			doc:      schema.ExtractedDocument{HasPersonalData: true, Keywords: schema.StringList{"facial recognition"}},
			selected: nil,
			want:     []schema.FrameworkCode{ico, eu, dpa, iso},
		},
		{
			name: "no signal and no selection",
			doc:  schema.ExtractedDocument{Keywords: schema.StringList{"weather forecasting"}},
			want: []schema.FrameworkCode{},
		},
		{
			name:     "selection alone adds ISO",
			doc:      schema.ExtractedDocument{},
			selected: []schema.FrameworkCode{dpa},
			want:     []schema.FrameworkCode{dpa, iso},
		},
		{
			name:     "high-risk term in use case, case-insensitive",
			doc:      schema.ExtractedDocument{UseCase: "Automated CREDIT SCORING for loans"},
			selected: nil,
			want:     []schema.FrameworkCode{eu, iso},
		},
		{
			name:     "high-risk term in system type",
			doc:      schema.ExtractedDocument{SystemType: "Emotion detection camera"},
			selected: []schema.FrameworkCode{ico},
			want:     []schema.FrameworkCode{ico, eu, iso},
		},
		{
			name:     "duplicates removed and order canonical",
			doc:      schema.ExtractedDocument{HasPersonalData: true},
			selected: []schema.FrameworkCode{iso, dpa, iso, ico},
			want:     []schema.FrameworkCode{ico, dpa, iso},
		},
		{
			name:     "unknown code kept after known ones",
			doc:      schema.ExtractedDocument{},
			selected: []schema.FrameworkCode{"NIST_RMF", ico},
			want:     []schema.FrameworkCode{ico, iso, "NIST_RMF"},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Route(c.doc, c.selected)
			if diff := cmp.Diff(c.want, got); diff != "" {
				t.Errorf("Route mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// The routed set is always a superset of the selection.
func TestRoute_Monotonic(t *testing.T) {
	docs := []schema.ExtractedDocument{
		{},
		{HasPersonalData: true},
		{Keywords: schema.StringList{"border control"}},
		{HasPersonalData: true, UseCase: "recruitment screening"},
	}
	selections := [][]schema.FrameworkCode{
		nil,
		{ico},
		{eu},
		{dpa, iso},
		{ico, eu, dpa, iso},
		{"CUSTOM"},
	}
	for _, d := range docs {
		for _, sel := range selections {
			got := make(map[schema.FrameworkCode]bool)
			for _, c := range Route(d, sel) {
				if got[c] {
					t.Errorf("Route(%+v, %v) returned %s twice", d, sel, c)
				}
				got[c] = true
			}
			for _, c := range sel {
				if !got[c] {
					t.Errorf("Route(%+v, %v) dropped selected %s", d, sel, c)
				}
			}
		}
	}
}
