// Package prompt builds the model prompts for document extraction and the
// framework analyses from embedded text/template files.
package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/dshills/regalign/internal/schema"
	"github.com/dshills/regalign/internal/textutil"
)

// Document text budgets, in characters.
const (
	MaxExtractionText = 50000
	MaxAnalysisText   = 25000
)

// System is the system prompt shared by every call.
const System = "You are a UK AI governance and compliance analyst. " +
	"Output ONLY a single valid JSON object matching the requested shape. " +
	"No prose, no markdown, no explanation outside the JSON. " +
	"Base every finding on the document text; if evidence is absent, say so in the gap field."

//go:embed templates/*.tmpl
var files embed.FS

var templates = template.Must(
	template.New("prompts").Funcs(template.FuncMap{"list": list}).ParseFS(files, "templates/*.tmpl"),
)

// Data is the value every template is executed with.
type Data struct {
	Doc         schema.ExtractedDocument
	Text        string
	Obligations []string
}

// Extraction returns the document classification prompt for text.
func Extraction(text string) (string, error) {
	return execute("extract", Data{Text: textutil.Truncate(text, MaxExtractionText)})
}

// Analysis returns the prompt for the named framework template. The
// document's full text is cut to MaxAnalysisText.
func Analysis(name string, doc schema.ExtractedDocument) (string, error) {
	return execute(name, Data{
		Doc:         doc,
		Text:        textutil.Truncate(doc.FullText, MaxAnalysisText),
		Obligations: schema.EUObligationKeys,
	})
}

// Has reports whether a template with the given name exists.
func Has(name string) bool {
	return templates.Lookup(name+".tmpl") != nil
}

func execute(name string, data Data) (string, error) {
	t := templates.Lookup(name + ".tmpl")
	if t == nil {
		return "", fmt.Errorf("prompt: unknown template %q", name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("prompt: execute %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func list(items schema.StringList) string {
	if len(items) == 0 {
		return "None identified"
	}
	return strings.Join(items, ", ")
}
