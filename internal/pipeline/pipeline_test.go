package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/dshills/regalign/internal/framework"
	"github.com/dshills/regalign/internal/schema"
)

type fakeExtractor struct {
	doc schema.ExtractedDocument
	err error
}

func (f fakeExtractor) Extract(context.Context, string) (schema.ExtractedDocument, error) {
	return f.doc, f.err
}

// scriptedAnalyzer answers each framework with a canned model response run
// through the real decoder.
type scriptedAnalyzer struct {
	responses map[schema.FrameworkCode]string
	calls     atomic.Int32
	// gate, when set, is called at the start of every Run.
	gate func(ctx context.Context) error
}

func (a *scriptedAnalyzer) Run(ctx context.Context, def framework.Definition, _ schema.ExtractedDocument) (schema.Result, error) {
	a.calls.Add(1)
	if a.gate != nil {
		if err := a.gate(ctx); err != nil {
			return nil, err
		}
	}
	raw := a.responses[def.Code]
	r, err := framework.Decode(def, raw)
	if err != nil {
		return framework.Degraded(def, raw, err), nil
	}
	return r, nil
}

type fakeRenderer struct{ got *schema.Analysis }

func (f *fakeRenderer) Render(a schema.Analysis) ([]byte, error) {
	f.got = &a
	return []byte("%PDF-fake"), nil
}

func responses() map[schema.FrameworkCode]string {
	return map[schema.FrameworkCode]string{
		schema.FrameworkICO: `{"principle_2_fairness": {"status": "NOT_MET", "priority": "CRITICAL"}, "overall_score": 80,
			"priority_actions": ["Run bias testing"]}`,
		schema.FrameworkEUAIAct:  `{"risk_tier": "HIGH_RISK", "obligations_if_high_risk": {"data_governance": {"status": "EVIDENCE_MISSING", "priority": "CRITICAL"}}, "overall_score": 30}`,
		schema.FrameworkDPA:      `{"article_22_adm": {"status": "MET", "priority": "LOW"}, "overall_score": 60, "priority_actions": ["Run bias testing", "Complete DPIA"]}`,
		schema.FrameworkISO42001: "not json at all",
	}
}

func facialDoc() schema.ExtractedDocument {
	return schema.ExtractedDocument{
		DocumentType:    schema.DocumentSystemSpec,
		UseCase:         "Facial recognition for building access control across the whole estate",
		DataTypes:       schema.StringList{"face images", "badge ids"},
		HasPersonalData: true,
		Keywords:        schema.StringList{"facial recognition"},
	}
}

func TestRun_FullPipeline(t *testing.T) {
	an := &scriptedAnalyzer{responses: responses()}
	rend := &fakeRenderer{}
	var observed []string
	e := New(fakeExtractor{doc: facialDoc()}, an, Options{
		Renderer: rend,
		Observer: func(l string) { observed = append(observed, l) },
	})

	s, err := e.Run(context.Background(), "access.pdf", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantLog := []string{
		"Supervisor: Starting compliance analysis...",
		"Extractor: Parsing document...",
		"Extractor: Found use case 'Facial recognition for building access control acr...', 2 data types",
		"Router: Selecting frameworks...",
		"Router: Invoking ICO, EU_AI_ACT, DPA, ISO_42001",
		"ICO Agent: Analyzing UK compliance...",
		"ICO Agent: Score 80% (1 critical gaps)",
		"EU AI Act Agent: Analyzing risk tier...",
		"EU AI Act Agent: HIGH_RISK risk, 1 gaps",
		"DPA Agent: Analyzing data protection...",
		"DPA Agent: Score 60% (0 critical gaps)",
		"ISO 42001 Agent: Analyzing governance...",
		"ISO 42001 Agent: Score 0% (0 critical gaps)",
		"Synthesizer: Cross-checking frameworks...",
		"Synthesizer: UK Alignment Score 53%",
		"Reporter: Generating compliance report...",
		"Reporter: Report ready for download",
	}
	if diff := cmp.Diff(wantLog, s.Log); diff != "" {
		t.Errorf("log mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantLog, observed); diff != "" {
		t.Errorf("observer saw (-want +got):\n%s", diff)
	}

	if s.Results.ISO == nil || s.Results.ISO.Evaluated() {
		t.Errorf("ISO should be present and NOT_EVALUATED, got %+v", s.Results.ISO)
	}
	if s.Synthesis == nil {
		t.Fatal("no synthesis")
	}
	// 80*.4 + 30*.1 + 60*.3 + 0*.2; the NOT_EVALUATED ISO result still counts.
	if s.Synthesis.AlignmentScore != 53 {
		t.Errorf("alignment score = %d, want 53", s.Synthesis.AlignmentScore)
	}
	if len(s.Synthesis.CrossFrameworkGaps) != 1 {
		t.Errorf("cross gaps = %+v, want the bias rule only", s.Synthesis.CrossFrameworkGaps)
	}
	if diff := cmp.Diff([]string{"Run bias testing", "Complete DPIA"}, s.Synthesis.PriorityActions); diff != "" {
		t.Errorf("priority actions (-want +got):\n%s", diff)
	}
	if string(s.Report) != "%PDF-fake" || rend.got == nil || rend.got.Synthesis == nil {
		t.Error("renderer not given the finished analysis")
	}
}

func TestRun_SkippedFrameworksStayAbsent(t *testing.T) {
	an := &scriptedAnalyzer{responses: responses()}
	doc := schema.ExtractedDocument{UseCase: "Internal document search"}
	e := New(fakeExtractor{doc: doc}, an, Options{})

	s, err := e.Run(context.Background(), "search.md", []schema.FrameworkCode{schema.FrameworkDPA})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if diff := cmp.Diff([]schema.FrameworkCode{schema.FrameworkDPA, schema.FrameworkISO42001}, s.Frameworks); diff != "" {
		t.Errorf("routed (-want +got):\n%s", diff)
	}
	if s.Results.ICO != nil || s.Results.EUAct != nil {
		t.Error("frameworks outside the routed set must have no result at all")
	}
	if s.Results.DPA == nil || s.Results.ISO == nil {
		t.Error("routed frameworks must have a result")
	}
	if got := an.calls.Load(); got != 2 {
		t.Errorf("analyzer called %d times, want 2", got)
	}
	if s.Report != nil {
		t.Error("no renderer configured, report should be nil")
	}
	if diff := cmp.Diff([]schema.FrameworkCode{schema.FrameworkDPA, schema.FrameworkISO42001}, s.Synthesis.FrameworksAnalyzed); diff != "" {
		t.Errorf("frameworks analyzed (-want +got):\n%s", diff)
	}
}

func TestRun_NoFrameworks(t *testing.T) {
	an := &scriptedAnalyzer{responses: responses()}
	e := New(fakeExtractor{doc: schema.ExtractedDocument{UseCase: "Weather forecasting"}}, an, Options{})

	s, err := e.Run(context.Background(), "weather.txt", nil)
	if !errors.Is(err, ErrNoFrameworks) {
		t.Fatalf("error = %v, want ErrNoFrameworks", err)
	}
	if an.calls.Load() != 0 {
		t.Error("no analysis call may happen when nothing is routed")
	}
	if s.Document == nil {
		t.Error("state should carry the extracted document up to the failing stage")
	}
}

func TestRun_ExtractionError(t *testing.T) {
	cause := errors.New("unreadable")
	e := New(fakeExtractor{err: cause}, &scriptedAnalyzer{}, Options{})
	if _, err := e.Run(context.Background(), "x.pdf", nil); !errors.Is(err, cause) {
		t.Fatalf("error = %v, want %v", err, cause)
	}
}

func TestRun_ConcurrentAnalyze(t *testing.T) {
	defer goleak.VerifyNone(t)

	// Every sub-stage waits until all four have started, which only
	// completes when they really run in parallel.
	var started sync.WaitGroup
	started.Add(4)
	an := &scriptedAnalyzer{
		responses: responses(),
		gate: func(ctx context.Context) error {
			started.Done()
			done := make(chan struct{})
			go func() { started.Wait(); close(done) }()
			select {
			case <-done:
				return nil
			case <-time.After(5 * time.Second):
				return errors.New("sub-stages did not run concurrently")
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
	var mu sync.Mutex
	var observed []string
	e := New(fakeExtractor{doc: facialDoc()}, an, Options{
		Concurrency: 4,
		Observer: func(l string) {
			mu.Lock()
			observed = append(observed, l)
			mu.Unlock()
		},
	})

	s, err := e.Run(context.Background(), "access.pdf", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(s.Results.Present()) != 4 {
		t.Fatalf("got %d results, want 4", len(s.Results.Present()))
	}
	// The state's log is merged in framework order regardless of timing.
	want := []string{
		"ICO Agent: Analyzing UK compliance...",
		"ICO Agent: Score 80% (1 critical gaps)",
		"EU AI Act Agent: Analyzing risk tier...",
		"EU AI Act Agent: HIGH_RISK risk, 1 gaps",
		"DPA Agent: Analyzing data protection...",
		"DPA Agent: Score 60% (0 critical gaps)",
		"ISO 42001 Agent: Analyzing governance...",
		"ISO 42001 Agent: Score 0% (0 critical gaps)",
	}
	if diff := cmp.Diff(want, s.Log[5:13]); diff != "" {
		t.Errorf("analyze log (-want +got):\n%s", diff)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(observed) != len(s.Log) {
		t.Errorf("observer saw %d lines, state has %d", len(observed), len(s.Log))
	}
}

func TestRun_CancelAborts(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	an := &scriptedAnalyzer{
		responses: responses(),
		gate: func(gctx context.Context) error {
			cancel()
			<-gctx.Done()
			return gctx.Err()
		},
	}
	e := New(fakeExtractor{doc: facialDoc()}, an, Options{Concurrency: 2})

	s, err := e.Run(ctx, "access.pdf", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if s.Synthesis != nil {
		t.Error("a cancelled run must not reach synthesis")
	}
}

func TestStages_DoNotMutateInput(t *testing.T) {
	e := New(fakeExtractor{doc: facialDoc()}, &scriptedAnalyzer{responses: responses()}, Options{})
	stages := e.Stages()
	names := make([]string, len(stages))
	for i, st := range stages {
		names[i] = st.Name
	}
	if diff := cmp.Diff([]string{"start", "extract", "route", "analyze", "synthesize", "report"}, names); diff != "" {
		t.Fatalf("stages (-want +got):\n%s", diff)
	}

	in := State{DocumentPath: "a.pdf", Log: make([]string, 1, 8)}
	in.Log[0] = "earlier"
	out, err := stages[0].Run(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	out, err = stages[1].Run(context.Background(), out)
	if err != nil {
		t.Fatal(err)
	}
	if len(in.Log) != 1 || in.Log[0] != "earlier" || in.Document != nil {
		t.Errorf("input state modified: %+v", in)
	}
	if extended := in.Log[:2]; extended[1] != "" {
		t.Errorf("stage wrote into the input's spare capacity: %q", extended[1])
	}
	if len(out.Log) != 4 || out.Document == nil {
		t.Errorf("output state = %d log lines, document %v", len(out.Log), out.Document)
	}
}

func TestAnalysisView(t *testing.T) {
	s := State{
		DocumentPath: "a.pdf",
		Document:     &schema.ExtractedDocument{UseCase: "x", FullText: "secret"},
		Frameworks:   []schema.FrameworkCode{schema.FrameworkICO},
		Log:          []string{"one"},
	}
	a := s.Analysis()
	a.Log[0] = "changed"
	if s.Log[0] != "one" {
		t.Error("Analysis must not alias the state's log")
	}
	if got := a.WithoutFullText().Document.FullText; got != "" {
		t.Errorf("WithoutFullText kept %q", got)
	}
	if s.Document.FullText != "secret" {
		t.Error("WithoutFullText must not modify the state's document")
	}
}
