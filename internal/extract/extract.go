// Package extract reads a document's text and asks the model to classify it
// into a schema.ExtractedDocument.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/dshills/regalign/internal/decode"
	"github.com/dshills/regalign/internal/prompt"
	"github.com/dshills/regalign/internal/schema"
	"github.com/dshills/regalign/internal/textutil"
)

// MaxPages bounds how many PDF pages are read.
const MaxPages = 30

// ErrUnsupported is returned for input that is neither a PDF nor UTF-8 text.
var ErrUnsupported = errors.New("extract: unsupported document format")

// Invoker is the model call used for classification.
type Invoker interface {
	Invoke(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Extractor turns documents into ExtractedDocuments.
type Extractor struct {
	model Invoker
	log   *zap.Logger
}

// New returns an Extractor that classifies with model.
func New(model Invoker, log *zap.Logger) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{model: model, log: log.Named("extract")}
}

// Extract reads path and classifies it. Read errors are returned; a failed
// or undecodable classification yields Fallback. Only a done ctx aborts.
func (e *Extractor) Extract(ctx context.Context, path string) (schema.ExtractedDocument, error) {
	text, err := ReadText(path)
	if err != nil {
		return schema.ExtractedDocument{}, err
	}
	return e.Classify(ctx, text)
}

// Classify asks the model to describe text. full_text is always set from
// text, bounded to prompt.MaxExtractionText.
func (e *Extractor) Classify(ctx context.Context, text string) (schema.ExtractedDocument, error) {
	text = textutil.Truncate(text, prompt.MaxExtractionText)

	user, err := prompt.Extraction(text)
	if err != nil {
		return schema.ExtractedDocument{}, fmt.Errorf("extract: %w", err)
	}

	raw, err := e.model.Invoke(ctx, prompt.System, user)
	if err != nil {
		if ctx.Err() != nil {
			return schema.ExtractedDocument{}, fmt.Errorf("extract: %w", err)
		}
		e.log.Warn("classification call failed; using fallback", zap.Error(err))
		return Fallback(text), nil
	}

	doc, issues, err := decode.Into[schema.ExtractedDocument](raw)
	if err != nil {
		e.log.Warn("undecodable classification; using fallback",
			zap.Error(err), zap.Int("response_chars", len(raw)))
		return Fallback(text), nil
	}
	for _, is := range issues {
		e.log.Warn("classification field repaired",
			zap.String("field", is.Field), zap.String("problem", is.Message))
		// An unreadable personal-data flag is treated as personal data.
		if is.Field == "has_personal_data" && is.Dropped {
			doc.HasPersonalData = true
		}
	}

	normalize(&doc)
	doc.FullText = text
	e.log.Debug("classified",
		zap.String("document_type", string(doc.DocumentType)),
		zap.Int("data_types", len(doc.DataTypes)))
	return doc, nil
}

// Fallback is the conservative description used when classification fails:
// a system specification that is assumed to handle personal data.
func Fallback(text string) schema.ExtractedDocument {
	return schema.ExtractedDocument{
		DocumentType:            schema.DocumentSystemSpec,
		UseCase:                 "Unable to extract - see full text",
		SystemType:              "Unknown",
		DataTypes:               schema.StringList{},
		HasPersonalData:         true,
		DeploymentContext:       "Unknown",
		RiskIndicators:          schema.StringList{},
		ComplianceTopicsCovered: schema.StringList{},
		Keywords:                schema.StringList{},
		FullText:                textutil.Truncate(text, prompt.MaxExtractionText),
	}
}

func normalize(doc *schema.ExtractedDocument) {
	switch doc.DocumentType {
	case schema.DocumentGuidance, schema.DocumentSystemSpec, schema.DocumentStrategy, schema.DocumentAssessment:
	case "":
		doc.DocumentType = schema.DocumentSystemSpec
	default:
		doc.DocumentType = schema.DocumentType(strings.ToUpper(strings.TrimSpace(string(doc.DocumentType))))
	}
	for _, l := range []*schema.StringList{&doc.DataTypes, &doc.RiskIndicators, &doc.ComplianceTopicsCovered, &doc.Keywords} {
		if *l == nil {
			*l = schema.StringList{}
		}
	}
}

// ReadText returns the plain text of the document at path: PDF text for
// .pdf files, the raw contents for anything that is valid UTF-8.
func ReadText(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return readPDF(path, MaxPages)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("extract: read %s: %w", path, err)
	}
	if isPDF(b) {
		return readPDF(path, MaxPages)
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, filepath.Base(path))
	}
	return string(b), nil
}

func isPDF(b []byte) bool {
	return len(b) >= 5 && string(b[:5]) == "%PDF-"
}

// readPDF concatenates the plain text of the first maxPages pages, one
// newline after each page.
func readPDF(path string, maxPages int) (text string, err error) {
	defer func() {
		// The PDF parser panics on some malformed files.
		if r := recover(); r != nil {
			err = fmt.Errorf("extract: parse %s: %v", filepath.Base(path), r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("extract: open %s: %w", path, err)
	}
	defer f.Close()

	var sb strings.Builder
	n := min(r.NumPage(), maxPages)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			sb.WriteByte('\n')
			continue
		}
		pageText, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract: page %d of %s: %w", i, filepath.Base(path), err)
		}
		sb.WriteString(pageText)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}
