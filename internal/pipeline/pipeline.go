// Package pipeline sequences one assessment run:
//
//	START -> EXTRACT -> ROUTE -> ANALYZE (per routed framework) -> SYNTHESIZE -> REPORT -> DONE
//
// Every stage takes the prior State and returns a new one. ANALYZE sub-stages
// for frameworks outside the routed set are skipped and leave their result
// slot empty.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/regalign/internal/framework"
	"github.com/dshills/regalign/internal/router"
	"github.com/dshills/regalign/internal/schema"
	"github.com/dshills/regalign/internal/synthesis"
	"github.com/dshills/regalign/internal/textutil"
)

// ErrNoFrameworks is returned when nothing was selected and the document
// triggers no framework. It is a client error.
var ErrNoFrameworks = errors.New("pipeline: no frameworks selected and none triggered by the document")

// Extractor produces the ExtractedDocument for a path.
type Extractor interface {
	Extract(ctx context.Context, path string) (schema.ExtractedDocument, error)
}

// Analyzer runs one framework analysis. It returns an error only when the
// run must abort; analysis failures come back as degraded results.
type Analyzer interface {
	Run(ctx context.Context, def framework.Definition, doc schema.ExtractedDocument) (schema.Result, error)
}

// Renderer produces the report bytes for a finished analysis.
type Renderer interface {
	Render(a schema.Analysis) ([]byte, error)
}

// Observer receives progress lines as they are produced. Calls are serialized.
type Observer func(line string)

// Stage is one named pipeline step.
type Stage struct {
	Name string
	Run  func(ctx context.Context, s State) (State, error)
}

// Options configures an Engine.
type Options struct {
	// Concurrency bounds parallel ANALYZE sub-stages; values below 1 mean 1.
	Concurrency int
	Renderer    Renderer
	Observer    Observer
	Logger      *zap.Logger
}

// Engine runs assessments. It is safe for concurrent use; runs share nothing.
type Engine struct {
	extractor   Extractor
	analyzer    Analyzer
	renderer    Renderer
	concurrency int
	observer    Observer
	log         *zap.Logger
}

// New builds an Engine.
func New(ex Extractor, an Analyzer, opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		extractor:   ex,
		analyzer:    an,
		renderer:    opts.Renderer,
		concurrency: max(opts.Concurrency, 1),
		observer:    opts.Observer,
		log:         log.Named("pipeline"),
	}
}

// Stages returns the stages in execution order.
func (e *Engine) Stages() []Stage {
	return e.newRun().stages()
}

// Run assesses the document at path. selected may be empty. The returned
// State is DONE on success; on error it is the last state reached.
func (e *Engine) Run(ctx context.Context, path string, selected []schema.FrameworkCode) (State, error) {
	s := State{DocumentPath: path, Selected: append([]schema.FrameworkCode{}, selected...)}
	for _, st := range e.newRun().stages() {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		next, err := st.Run(ctx, s)
		if err != nil {
			e.log.Info("run stopped", zap.String("stage", st.Name), zap.Error(err))
			return s, err
		}
		s = next
	}
	return s, nil
}

// run carries the per-run progress plumbing; it serializes observer calls.
type run struct {
	*Engine
	mu sync.Mutex
}

func (e *Engine) newRun() *run {
	return &run{Engine: e}
}

func (r *run) stages() []Stage {
	return []Stage{
		{"start", r.start},
		{"extract", r.extract},
		{"route", r.route},
		{"analyze", r.analyze},
		{"synthesize", r.synthesize},
		{"report", r.report},
	}
}

// notify forwards l to the observer.
func (r *run) notify(l string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log.Debug(l)
	if r.observer != nil {
		r.observer(l)
	}
}

// emit appends l to the state's log and notifies the observer.
func (r *run) emit(s State, l string) State {
	r.notify(l)
	return s.withLog(l)
}

// ── Stages ───────────────────────────────────────────────────────────────────

func (r *run) start(_ context.Context, s State) (State, error) {
	return r.emit(s, line("Supervisor", "Starting compliance analysis...")), nil
}

func (r *run) extract(ctx context.Context, s State) (State, error) {
	s = r.emit(s, line("Extractor", "Parsing document..."))
	doc, err := r.extractor.Extract(ctx, s.DocumentPath)
	if err != nil {
		return s, fmt.Errorf("pipeline: extract: %w", err)
	}
	s.Document = &doc
	return r.emit(s, line("Extractor", "Found use case '%s...', %d data types",
		textutil.Truncate(doc.UseCase, 50), len(doc.DataTypes))), nil
}

func (r *run) route(_ context.Context, s State) (State, error) {
	s = r.emit(s, line("Router", "Selecting frameworks..."))
	var doc schema.ExtractedDocument
	if s.Document != nil {
		doc = *s.Document
	}
	routed := router.Route(doc, s.Selected)
	if len(routed) == 0 {
		return s, ErrNoFrameworks
	}
	names := make([]string, len(routed))
	for i, c := range routed {
		names[i] = string(c)
	}
	s.Frameworks = routed
	return r.emit(s, line("Router", "Invoking %s", strings.Join(names, ", "))), nil
}

// analyze runs the routed frameworks' sub-stages, at most r.concurrency at a
// time. Results and log lines are merged in schema.FrameworkOrder once all
// sub-stages have finished.
func (r *run) analyze(ctx context.Context, s State) (State, error) {
	if s.Document == nil {
		return s, errors.New("pipeline: analyze: no extracted document")
	}
	doc := *s.Document
	routed := make(map[schema.FrameworkCode]bool, len(s.Frameworks))
	for _, c := range s.Frameworks {
		routed[c] = true
	}

	var defs []framework.Definition
	for _, def := range framework.All() {
		if routed[def.Code] {
			defs = append(defs, def)
		} else {
			r.log.Debug("analysis skipped", zap.String("framework", string(def.Code)))
		}
	}

	type outcome struct {
		result schema.Result
		lines  []string
	}
	outcomes := make([]outcome, len(defs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, def := range defs {
		g.Go(func() error {
			before := line(def.Agent, "%s", def.Activity)
			r.notify(before)
			res, err := r.analyzer.Run(gctx, def, doc)
			if err != nil {
				return fmt.Errorf("pipeline: analyze %s: %w", def.Code, err)
			}
			after := resultLine(def, res)
			r.notify(after)
			outcomes[i] = outcome{result: res, lines: []string{before, after}}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return s, err
	}

	for _, o := range outcomes {
		s.Results = s.Results.With(o.result)
		s = s.withLog(o.lines...)
	}
	return s, nil
}

func (r *run) synthesize(_ context.Context, s State) (State, error) {
	s = r.emit(s, line("Synthesizer", "Cross-checking frameworks..."))
	syn := synthesis.Synthesize(s.Results, s.Frameworks)
	s.Synthesis = &syn
	return r.emit(s, line("Synthesizer", "UK Alignment Score %d%%", syn.AlignmentScore)), nil
}

func (r *run) report(_ context.Context, s State) (State, error) {
	if r.renderer == nil {
		return s, nil
	}
	s = r.emit(s, line("Reporter", "Generating compliance report..."))
	b, err := r.renderer.Render(s.Analysis())
	if err != nil {
		return s, fmt.Errorf("pipeline: report: %w", err)
	}
	s.Report = b
	return r.emit(s, line("Reporter", "Report ready for download")), nil
}

func resultLine(def framework.Definition, r schema.Result) string {
	if eu, ok := r.(*schema.EUActResult); ok {
		tier := string(eu.RiskTier)
		if tier == "" {
			tier = "Unknown"
		}
		return line(def.Agent, "%s risk, %d gaps", tier, r.CriticalGapsCount())
	}
	return line(def.Agent, "Score %d%% (%d critical gaps)", r.Score(), r.CriticalGapsCount())
}
