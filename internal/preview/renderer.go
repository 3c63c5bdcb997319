// Package preview rasterizes single PDF pages to PNG by shelling out to
// Ghostscript. Renders are cached by the caller; this package only runs
// the external process.
package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

const (
	// MinDPI and MaxDPI bound the raster resolution regardless of caller
	// input.
	MinDPI = 72
	MaxDPI = 220

	// stderr from the rasterizer is truncated to this many bytes before
	// it becomes part of an error message.
	maxDiagnosticLen = 1200
)

// ClampDPI forces dpi into [MinDPI, MaxDPI].
func ClampDPI(dpi int) int {
	if dpi < MinDPI {
		return MinDPI
	}
	if dpi > MaxDPI {
		return MaxDPI
	}
	return dpi
}

// RenderError is the single error class for rasterization failures:
// non-zero exit, timeout, and missing output all map onto it. Callers do
// not need to distinguish sub-causes.
type RenderError struct {
	Message string
	Err     error
}

func (e *RenderError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stderr []byte, err error)
}

// execRunner executes commands via os/exec, discarding stdout.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.Bytes(), err
}

// Renderer invokes Ghostscript to rasterize one page to an RGBA PNG.
type Renderer struct {
	gsPath  string
	timeout time.Duration
	runner  commandRunner
}

// NewRenderer creates a renderer using the gs binary at gsPath (looked up
// in PATH when not absolute) with a per-invocation timeout.
func NewRenderer(gsPath string, timeout time.Duration) *Renderer {
	return &Renderer{gsPath: gsPath, timeout: timeout, runner: execRunner{}}
}

// NewRendererForTests creates a renderer with an injected process runner.
func NewRendererForTests(gsPath string, timeout time.Duration, runner commandRunner) *Renderer {
	return &Renderer{gsPath: gsPath, timeout: timeout, runner: runner}
}

// RenderPage rasterizes page (1-based) of inputPDF at the given dpi into
// outPNG, creating parent directories. The invocation is time-bounded;
// any failure is reported as a RenderError.
func (r *Renderer) RenderPage(ctx context.Context, inputPDF, outPNG string, page, dpi int) error {
	if page < 1 {
		return &RenderError{Message: fmt.Sprintf("invalid page number %d", page)}
	}
	if err := os.MkdirAll(filepath.Dir(outPNG), 0o755); err != nil {
		return &RenderError{Message: "create preview directory", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	args := gsArgs(inputPDF, outPNG, page, dpi)
	stderr, err := r.runner.Run(ctx, r.gsPath, args...)
	if err != nil {
		os.Remove(outPNG)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &RenderError{Message: "preview render timed out"}
		}
		return &RenderError{
			Message: fmt.Sprintf("ghostscript failed: %s", truncate(stderr, maxDiagnosticLen)),
			Err:     err,
		}
	}

	if _, err := os.Stat(outPNG); err != nil {
		return &RenderError{Message: "preview render failed: output file not created"}
	}
	return nil
}

// gsArgs builds the Ghostscript invocation: RGBA PNG of exactly one page
// at the requested resolution, with safer file access enabled.
func gsArgs(inputPDF, outPNG string, page, dpi int) []string {
	return []string{
		"-dSAFER",
		"-dBATCH",
		"-dNOPAUSE",
		"-sDEVICE=pngalpha",
		fmt.Sprintf("-r%d", dpi),
		fmt.Sprintf("-dFirstPage=%d", page),
		fmt.Sprintf("-dLastPage=%d", page),
		"-o", outPNG,
		inputPDF,
	}
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
