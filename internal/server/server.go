// Package server exposes assessments over HTTP.
//
//	GET  /health        liveness and the framework catalogue
//	POST /analyze       multipart "file" plus repeated "frameworks"
//	GET  /jobs/{id}     stored analysis
//	GET  /report/{id}   stored PDF report
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/regalign/internal/framework"
	"github.com/dshills/regalign/internal/pipeline"
	"github.com/dshills/regalign/internal/schema"
	"github.com/dshills/regalign/internal/store"
)

// Assessor runs one assessment.
type Assessor interface {
	Run(ctx context.Context, path string, selected []schema.FrameworkCode) (pipeline.State, error)
}

// Options configures a Server.
type Options struct {
	// MaxUploadBytes caps the request body of /analyze.
	MaxUploadBytes int64
	// DefaultFrameworks is used when a request selects none.
	DefaultFrameworks []schema.FrameworkCode
	Logger            *zap.Logger
}

// Server holds the HTTP handlers.
type Server struct {
	engine    Assessor
	jobs      store.Store
	maxUpload int64
	defaults  []schema.FrameworkCode
	log       *zap.Logger
}

// New builds a Server.
func New(engine Assessor, jobs store.Store, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 20 << 20
	}
	return &Server{
		engine:    engine,
		jobs:      jobs,
		maxUpload: maxUpload,
		defaults:  opts.DefaultFrameworks,
		log:       log.Named("http"),
	}
}

// Handler returns the routed, request-logging handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.Health)
	mux.HandleFunc("POST /analyze", s.Analyze)
	mux.HandleFunc("GET /jobs/{id}", s.Job)
	mux.HandleFunc("GET /report/{id}", s.Report)
	return logRequests(s.log, mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("server listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

type healthResponse struct {
	Status     string          `json:"status"`
	Frameworks []frameworkInfo `json:"frameworks"`
}

type frameworkInfo struct {
	Code        schema.FrameworkCode `json:"code"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Weight      float64              `json:"weight"`
}

// Health reports liveness and the framework catalogue.
func (s *Server) Health(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "healthy"}
	for _, def := range framework.All() {
		resp.Frameworks = append(resp.Frameworks, frameworkInfo{
			Code: def.Code, Name: def.Name, Description: def.Description, Weight: def.Weight,
		})
	}
	RespondJSON(w, http.StatusOK, resp)
}

// AnalyzeResponse is the body returned by /analyze.
type AnalyzeResponse struct {
	JobID        string          `json:"job_id"`
	Analysis     schema.Analysis `json:"analysis"`
	ReportBase64 []byte          `json:"report_base64,omitempty"`
}

// Analyze assesses an uploaded document and stores the result.
func (s *Server) Analyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RespondError(w, s.log, http.StatusRequestEntityTooLarge, ErrFileTooLarge)
			return
		}
		RespondError(w, s.log, http.StatusBadRequest, fmt.Errorf("parse form: %w", err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	selected, err := framework.ParseCodes(splitCodes(r.MultipartForm.Value["frameworks"]))
	if err != nil {
		RespondError(w, s.log, MapHTTPStatus(err), err)
		return
	}
	if len(selected) == 0 {
		selected = s.defaults
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		RespondError(w, s.log, http.StatusBadRequest, ErrMissingFile)
		return
	}
	defer file.Close()

	path, err := spool(file, header.Filename)
	if err != nil {
		RespondError(w, s.log, http.StatusInternalServerError, err)
		return
	}
	defer os.Remove(path)

	state, err := s.engine.Run(r.Context(), path, selected)
	if err != nil {
		RespondError(w, s.log, MapHTTPStatus(err), err)
		return
	}

	a := state.Analysis()
	a.DocumentPath = header.Filename
	job, err := s.jobs.Save(r.Context(), store.Job{Analysis: a, Report: state.Report})
	if err != nil {
		RespondError(w, s.log, http.StatusInternalServerError, err)
		return
	}
	s.log.Info("analysis stored",
		zap.String("job_id", job.ID),
		zap.String("file", header.Filename),
		zap.Int("alignment_score", scoreOf(a)),
	)
	RespondJSON(w, http.StatusOK, AnalyzeResponse{
		JobID:        job.ID,
		Analysis:     a.WithoutFullText(),
		ReportBase64: state.Report,
	})
}

// JobResponse is the body returned by /jobs/{id}.
type JobResponse struct {
	JobID     string          `json:"job_id"`
	CreatedAt time.Time       `json:"created_at"`
	Analysis  schema.Analysis `json:"analysis"`
	HasReport bool            `json:"has_report"`
}

// Job returns a stored analysis.
func (s *Server) Job(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		RespondError(w, s.log, MapHTTPStatus(err), err)
		return
	}
	RespondJSON(w, http.StatusOK, JobResponse{
		JobID:     job.ID,
		CreatedAt: job.CreatedAt,
		Analysis:  job.Analysis.WithoutFullText(),
		HasReport: len(job.Report) > 0,
	})
}

// Report downloads a stored PDF report.
func (s *Server) Report(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := s.jobs.Get(r.Context(), id)
	if err != nil {
		RespondError(w, s.log, MapHTTPStatus(err), err)
		return
	}
	if len(job.Report) == 0 {
		RespondError(w, s.log, http.StatusNotFound, ErrNoReport)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="compliance_report_%s.pdf"`, job.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(job.Report)
}

// splitCodes accepts both repeated fields and comma-separated values.
func splitCodes(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// spool copies the upload to a temporary file keeping its extension, which
// extraction uses to pick a reader.
func spool(src io.Reader, name string) (string, error) {
	f, err := os.CreateTemp("", "regalign-upload-*"+strings.ToLower(filepath.Ext(name)))
	if err != nil {
		return "", fmt.Errorf("spool upload: %w", err)
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("spool upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("spool upload: %w", err)
	}
	return f.Name(), nil
}

func scoreOf(a schema.Analysis) int {
	if a.Synthesis == nil {
		return 0
	}
	return a.Synthesis.AlignmentScore
}
