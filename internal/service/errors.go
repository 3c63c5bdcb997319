package service

import (
	"errors"
	"fmt"
)

// Resource-lifecycle errors: terminal for the current request, the caller
// starts a new job or accepts the loss.
var (
	ErrJobNotFound   = errors.New("job not found")
	ErrJobExpired    = errors.New("job expired")
	ErrVersionLimit  = errors.New("version limit reached")
	ErrResultMissing = errors.New("result file missing on server")

	// ErrJobBusy rejects a mutating request that arrives while another
	// one holds the job: the API enforces a single writer per job.
	ErrJobBusy = errors.New("another operation is in progress for this job")
)

// Validation error codes.
const (
	CodeBadOptions      = "BAD_OPTIONS"
	CodeNoFiles         = "NO_FILES"
	CodeNoImage         = "NO_IMAGE"
	CodeTooManyFiles    = "TOO_MANY_FILES"
	CodeTooManyPages    = "TOO_MANY_PAGES"
	CodeFileTooLarge    = "FILE_TOO_LARGE"
	CodeUnsupportedType = "UNSUPPORTED_TYPE"
)

// ValidationError reports bad caller input with enough context to fix the
// request. The job record is never mutated by a validation failure.
type ValidationError struct {
	Code    string
	Message string
	Meta    map[string]any
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErr(code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ProcessingError reports a transformation that failed after validation.
// The failure has been recorded on the job, which remains loadable.
type ProcessingError struct {
	Tool string
	Err  error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("pdf processing failed (tool=%s): %v", e.Tool, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// PreviewError reports a failed preview render.
type PreviewError struct {
	Err error
}

func (e *PreviewError) Error() string {
	return fmt.Sprintf("failed to render preview: %v", e.Err)
}

func (e *PreviewError) Unwrap() error {
	return e.Err
}
