package pipeline

import (
	"fmt"
	"slices"

	"github.com/dshills/regalign/internal/schema"
)

// State is the value threaded through the stages. Stages never modify a
// State they receive; they return an updated copy.
type State struct {
	DocumentPath string
	// Selected is the caller's framework selection, possibly empty.
	Selected []schema.FrameworkCode
	Document *schema.ExtractedDocument
	// Frameworks is the routed set, known once ROUTE has run.
	Frameworks []schema.FrameworkCode
	Results    schema.ResultSet
	Synthesis  *schema.Synthesis
	Report     []byte
	Log        []string
}

// withLog returns a copy of s with lines appended to its log.
func (s State) withLog(lines ...string) State {
	s.Log = append(slices.Clip(s.Log), lines...)
	return s
}

// Analysis returns the serializable view of s.
func (s State) Analysis() schema.Analysis {
	return schema.Analysis{
		DocumentPath: s.DocumentPath,
		Document:     s.Document,
		Frameworks:   slices.Clone(s.Frameworks),
		Results:      s.Results,
		Synthesis:    s.Synthesis,
		Log:          slices.Clone(s.Log),
	}
}

func line(actor, format string, args ...any) string {
	return actor + ": " + fmt.Sprintf(format, args...)
}
