package server

import (
	"errors"
	"net/http"

	"github.com/dshills/regalign/internal/extract"
	"github.com/dshills/regalign/internal/framework"
	"github.com/dshills/regalign/internal/pipeline"
	"github.com/dshills/regalign/internal/store"
)

// Request errors.
var (
	ErrMissingFile  = errors.New("multipart field \"file\" is required")
	ErrFileTooLarge = errors.New("file exceeds maximum upload size")
	ErrNoReport     = errors.New("no report stored for this job")
)

// MapHTTPStatus maps domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, ErrNoReport):
		return http.StatusNotFound
	case errors.Is(err, framework.ErrUnknownCode),
		errors.Is(err, pipeline.ErrNoFrameworks),
		errors.Is(err, extract.ErrUnsupported),
		errors.Is(err, ErrMissingFile):
		return http.StatusBadRequest
	case errors.Is(err, ErrFileTooLarge), errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
