package render

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/unicode/norm"

	"github.com/dshills/regalign/internal/schema"
)

// PDF renders the downloadable compliance report. The zero value is usable.
type PDF struct {
	// Title defaults to "AI Governance Compliance Report".
	Title string
	// Now stamps the generation time; defaults to time.Now.
	Now func() time.Time
}

const (
	lineH     = 5.0
	margin    = 15.0
	fontName  = "Helvetica"
	titleSize = 18
	headSize  = 13
	bodySize  = 10
	tableSize = 9
)

// Render implements pipeline.Renderer.
func (p PDF) Render(a schema.Analysis) ([]byte, error) {
	title := p.Title
	if title == "" {
		title = "AI Governance Compliance Report"
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	generated := now()

	f := fpdf.New("P", "mm", "A4", "")
	f.SetMargins(margin, margin, margin)
	f.SetAutoPageBreak(true, margin+5)
	f.SetCreationDate(generated)
	f.SetTitle(title, true)
	f.SetCreator("regalign", true)
	f.AliasNbPages("")

	w := &pdfWriter{f: f, tr: f.UnicodeTranslatorFromDescriptor("")}
	pageW, _ := f.GetPageSize()
	w.width = pageW - 2*margin

	f.SetFooterFunc(func() {
		f.SetY(-margin)
		f.SetFont(fontName, "I", 8)
		f.SetTextColor(120, 120, 120)
		f.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", f.PageNo()), "", 0, "C", false, 0, "")
		f.SetTextColor(0, 0, 0)
	})
	f.AddPage()

	f.SetFont(fontName, "B", titleSize)
	w.cell(title, 10)
	f.Ln(10)
	f.SetFont(fontName, "", bodySize)
	w.para("Generated " + generated.Format("2 January 2006 15:04 MST"))

	w.overview(a)
	w.executive(a.Synthesis)
	w.scoreTable(a.Results)
	if s := a.Synthesis; s != nil {
		w.crossGaps(s.CrossFrameworkGaps)
		if len(s.PriorityActions) > 0 {
			w.heading("Priority Actions")
			for i, act := range s.PriorityActions {
				w.para(strconv.Itoa(i+1) + ". " + act)
			}
		}
	}
	for _, r := range a.Results.Present() {
		w.framework(r)
	}

	var buf bytes.Buffer
	if err := f.Output(&buf); err != nil {
		return nil, fmt.Errorf("render: pdf: %w", err)
	}
	return buf.Bytes(), nil
}

type pdfWriter struct {
	f     *fpdf.Fpdf
	tr    func(string) string
	width float64
}

func (w *pdfWriter) cell(s string, h float64) {
	w.f.CellFormat(0, h, w.tr(pdfText(s)), "", 0, "L", false, 0, "")
}

func (w *pdfWriter) heading(s string) {
	w.f.Ln(4)
	w.f.SetFont(fontName, "B", headSize)
	w.f.SetFillColor(230, 236, 245)
	w.f.CellFormat(0, 8, w.tr(pdfText(s)), "", 1, "L", true, 0, "")
	w.f.SetFont(fontName, "", bodySize)
	w.f.Ln(2)
}

func (w *pdfWriter) para(s string) {
	if strings.TrimSpace(s) == "" {
		return
	}
	w.f.MultiCell(0, lineH, w.tr(pdfText(s)), "", "L", false)
}

func (w *pdfWriter) field(label, value string) {
	if value == "" {
		return
	}
	w.f.SetFont(fontName, "B", bodySize)
	w.f.CellFormat(45, lineH, w.tr(pdfText(label)), "", 0, "L", false, 0, "")
	w.f.SetFont(fontName, "", bodySize)
	w.f.MultiCell(0, lineH, w.tr(pdfText(value)), "", "L", false)
}

func (w *pdfWriter) list(title string, items []string) {
	if len(items) == 0 {
		return
	}
	w.f.SetFont(fontName, "B", bodySize)
	w.f.CellFormat(0, lineH+1, w.tr(title), "", 1, "L", false, 0, "")
	w.f.SetFont(fontName, "", bodySize)
	for _, it := range items {
		w.para("- " + it)
	}
}

// table draws a bordered table whose cells wrap within their column widths.
// widths are fractions of the usable page width.
func (w *pdfWriter) table(headers []string, widths []float64, rows [][]string) {
	cols := make([]float64, len(widths))
	for i, frac := range widths {
		cols[i] = frac * w.width
	}
	w.f.SetFont(fontName, "B", tableSize)
	w.f.SetFillColor(220, 220, 220)
	w.row(cols, headers, true)
	w.f.SetFont(fontName, "", tableSize)
	for _, r := range rows {
		w.row(cols, r, false)
	}
	w.f.Ln(2)
	w.f.SetFont(fontName, "", bodySize)
}

func (w *pdfWriter) row(cols []float64, cells []string, fill bool) {
	lines := make([][]string, len(cells))
	n := 1
	for i, c := range cells {
		lines[i] = w.f.SplitText(pdfText(c), cols[i]-2)
		n = max(n, len(lines[i]))
	}
	h := float64(n)*lineH + 1

	_, pageH := w.f.GetPageSize()
	_, _, _, bottom := w.f.GetMargins()
	if w.f.GetY()+h > pageH-bottom {
		w.f.AddPage()
	}

	style := "D"
	if fill {
		style = "FD"
	}
	x, y := w.f.GetXY()
	left := x
	for i, ls := range lines {
		w.f.Rect(x, y, cols[i], h, style)
		for j, l := range ls {
			w.f.SetXY(x+1, y+0.5+float64(j)*lineH)
			w.f.CellFormat(cols[i]-2, lineH, w.tr(l), "", 0, "L", false, 0, "")
		}
		x += cols[i]
	}
	w.f.SetXY(left, y+h)
}

func (w *pdfWriter) overview(a schema.Analysis) {
	d := a.Document
	if d == nil {
		return
	}
	w.heading("Document Overview")
	w.field("Document", a.DocumentPath)
	w.field("Document type", string(d.DocumentType))
	w.field("Use case", d.UseCase)
	w.field("System type", d.SystemType)
	w.field("Deployment", d.DeploymentContext)
	w.field("Personal data", yesNo(d.HasPersonalData))
	w.field("Biometric data", yesNo(d.HasBiometricData))
	w.field("Human oversight", yesNo(d.HasHumanOversight))
	w.field("Data types", strings.Join(d.DataTypes, ", "))
}

func (w *pdfWriter) executive(s *schema.Synthesis) {
	if s == nil {
		return
	}
	w.heading("Executive Summary")
	w.field("UK Alignment Score", fmt.Sprintf("%d%%", s.AlignmentScore))
	w.field("Compliance level", s.ComplianceLevel)
	w.field("Critical gaps", strconv.Itoa(s.TotalCriticalGaps))
	w.f.Ln(2)
	w.para(s.Summary)
}

func (w *pdfWriter) scoreTable(rs schema.ResultSet) {
	present := rs.Present()
	if len(present) == 0 {
		return
	}
	w.heading("Framework Scores")
	rows := make([][]string, 0, len(present))
	for _, r := range present {
		c := r.Common()
		rows = append(rows, []string{c.Framework, string(c.Status), fmt.Sprintf("%d%%", r.Score()), strconv.Itoa(r.CriticalGapsCount())})
	}
	w.table([]string{"Framework", "Status", "Score", "Critical gaps"}, []float64{0.4, 0.25, 0.15, 0.2}, rows)
}

func (w *pdfWriter) crossGaps(gaps []schema.CrossFrameworkGap) {
	if len(gaps) == 0 {
		return
	}
	w.heading("Cross-Framework Gaps")
	rows := make([][]string, 0, len(gaps))
	for _, g := range gaps {
		rows = append(rows, []string{g.Issue, string(g.Severity), strings.Join(g.Impacts, ", "), g.Recommendation})
	}
	w.table([]string{"Issue", "Severity", "Frameworks", "Recommendation"}, []float64{0.3, 0.12, 0.2, 0.38}, rows)
}

func (w *pdfWriter) framework(r schema.Result) {
	c := r.Common()
	w.heading(fmt.Sprintf("%s: %d%%", c.Framework, r.Score()))
	if !r.Evaluated() {
		w.field("Status", string(c.Status))
	}
	if eu, ok := r.(*schema.EUActResult); ok {
		w.field("Risk tier", string(eu.RiskTier))
		w.field("Justification", eu.RiskJustification)
	}
	w.para(c.ComplianceSummary)
	w.f.Ln(2)

	if reqs := r.Requirements(); len(reqs) > 0 {
		rows := make([][]string, 0, len(reqs))
		for _, kr := range reqs {
			rows = append(rows, []string{RequirementLabel(kr.Key), string(kr.Requirement.Status), string(kr.Requirement.Priority), kr.Requirement.Gap})
		}
		w.table([]string{"Requirement", "Status", "Priority", "Gap"}, []float64{0.28, 0.18, 0.12, 0.42}, rows)
	}
	w.list("Strengths", r.Strengths())
	w.list("Critical gaps", c.CriticalGaps)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

var glyphs = strings.NewReplacer(
	"\u2010", "-", "\u2011", "-", "\u2012", "-", "\u2013", "-", "\u2014", "-", "\u2212", "-",
	"\u00a0", " ", "\u202f", " ",
	"\u2018", "'", "\u2019", "'", "\u201c", `"`, "\u201d", `"`,
	"\u2022", "-", "\u2026", "...",
	"\u2713", "[x]", "\u2717", "[ ]",
)

// pdfText prepares s for the built-in Latin-1 fonts: NFKC normalization,
// replacement of common typographic glyphs, and '?' for anything else
// outside Latin-1.
func pdfText(s string) string {
	s = glyphs.Replace(norm.NFKC.String(s))
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n':
			return r
		case r == '\t':
			return ' '
		case unicode.IsControl(r):
			return -1
		case r > unicode.MaxLatin1:
			return '?'
		}
		return r
	}, s)
}
