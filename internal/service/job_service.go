// Package service implements the job lifecycle of the PDF edit pipeline:
// create, apply, undo/redo, preview, download and delete, with the job
// record held in an ephemeral KV store and version files on disk.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"pdf-editor/internal/metrics"
	"pdf-editor/internal/models"
	"pdf-editor/internal/pdfops"
	"pdf-editor/internal/preview"
	"pdf-editor/internal/storage"
	"pdf-editor/internal/store"
)

const jobKeyPrefix = "pdf:job:"

// JobKey returns the KV key holding the record for a job id.
func JobKey(jobID string) string {
	return jobKeyPrefix + jobID
}

// maxLastErrorLen bounds the diagnostic recorded on the job so that raw
// rasterizer or parser output never bloats the stored record.
const maxLastErrorLen = 500

// Transformer runs the document transformations. pdfops.Toolbox is the
// production implementation; tests inject fakes.
type Transformer interface {
	Merge(inputs []string, out string) error
	Rotate(src, dst string, degrees int) error
	WatermarkText(src, dst string, opt models.WatermarkTextOptions) error
	WatermarkImage(src, dst, imagePath string, opt models.WatermarkImageOptions) error
	DrawSignature(src, dst string, opt models.SignatureOptions) error
	PageCount(path string) (int, error)
	PageSize(path string, pageNr int) (w, h float64, err error)
}

// PreviewRenderer rasterizes one page of a PDF to a PNG file.
type PreviewRenderer interface {
	RenderPage(ctx context.Context, inputPDF, outPNG string, page, dpi int) error
}

// Upload is one incoming file: a display name plus its content stream.
type Upload struct {
	Name string
	Data io.Reader
}

// Options carries the deployment limits of the pipeline.
type Options struct {
	TTL          time.Duration
	MaxFileSize  int64
	MaxFiles     int
	MaxPages     int
	MaxImageSize int64

	// Now is the clock; nil means time.Now. Tests override it to drive
	// expiry.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.TTL == 0 {
		o.TTL = time.Hour
	}
	if o.MaxFileSize == 0 {
		o.MaxFileSize = 50 << 20
	}
	if o.MaxFiles == 0 {
		o.MaxFiles = 10
	}
	if o.MaxPages == 0 {
		o.MaxPages = 500
	}
	if o.MaxImageSize == 0 {
		o.MaxImageSize = 5 << 20
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// JobService handles the editing-session business logic.
type JobService struct {
	kv       store.KV
	layout   *storage.Layout
	tools    Transformer
	renderer PreviewRenderer
	metrics  *metrics.Metrics
	locks    *jobLocks
	opts     Options
}

// NewJobService creates a job service.
func NewJobService(kv store.KV, layout *storage.Layout, tools Transformer, renderer PreviewRenderer, m *metrics.Metrics, opts Options) *JobService {
	return &JobService{
		kv:       kv,
		layout:   layout,
		tools:    tools,
		renderer: renderer,
		metrics:  m,
		locks:    newJobLocks(),
		opts:     opts.withDefaults(),
	}
}

// CreateJob validates and stores the uploads, producing version 1: a copy
// of a single upload, or the page-wise merge of several in input order.
func (s *JobService) CreateJob(ctx context.Context, uploads []Upload) (*models.Job, error) {
	if len(uploads) == 0 {
		return nil, validationErr(CodeNoFiles, "no files uploaded")
	}
	if len(uploads) > s.opts.MaxFiles {
		return nil, validationErr(CodeTooManyFiles, "max files is %d", s.opts.MaxFiles)
	}
	if err := s.layout.EnsureRoot(); err != nil {
		return nil, fmt.Errorf("ensure storage root: %w", err)
	}

	jobID := uuid.New().String()
	if err := s.layout.EnsureJobDir(jobID); err != nil {
		return nil, fmt.Errorf("create job folder: %w", err)
	}

	saved := make([]string, 0, len(uploads))
	for i, up := range uploads {
		dest := filepath.Join(s.layout.JobDir(jobID),
			storage.SafeFilename(up.Name, fmt.Sprintf("upload_%d.pdf", i)))
		if err := s.saveValidatedPDF(up.Data, dest); err != nil {
			_ = s.layout.RemoveJobDir(jobID)
			return nil, err
		}
		saved = append(saved, dest)
	}

	v1 := s.layout.VersionPath(jobID, 1)
	if len(saved) == 1 {
		if err := storage.CopyFile(saved[0], v1); err != nil {
			_ = s.layout.RemoveJobDir(jobID)
			return nil, fmt.Errorf("store version 1: %w", err)
		}
	} else {
		if err := s.tools.Merge(saved, v1); err != nil {
			_ = s.layout.RemoveJobDir(jobID)
			return nil, &ProcessingError{Tool: string(models.ToolMerge), Err: err}
		}
	}

	job := models.NewJob(jobID, v1, s.opts.Now(), s.opts.TTL)
	if err := s.saveJob(ctx, job); err != nil {
		_ = s.layout.RemoveJobDir(jobID)
		return nil, err
	}

	s.metrics.IncrementJobsCreated()
	log.Printf("job_id=%s: job created, files=%d", jobID, len(saved))
	return job, nil
}

// saveValidatedPDF streams one upload to disk enforcing the size limit,
// the %PDF- signature and the page count cap.
func (s *JobService) saveValidatedPDF(src io.Reader, dest string) error {
	if _, err := storage.SaveUpload(src, dest, s.opts.MaxFileSize); err != nil {
		if errors.Is(err, storage.ErrFileTooLarge) {
			return validationErr(CodeFileTooLarge, "max file size is %d bytes", s.opts.MaxFileSize)
		}
		return fmt.Errorf("save upload: %w", err)
	}
	if err := storage.ValidatePDFSignature(dest); err != nil {
		return validationErr(CodeUnsupportedType, "uploaded file is %s", err)
	}
	pages, err := s.tools.PageCount(dest)
	if err != nil {
		return validationErr(CodeUnsupportedType, "unable to read PDF: %v", err)
	}
	if pages > s.opts.MaxPages {
		return &ValidationError{
			Code:    CodeTooManyPages,
			Message: fmt.Sprintf("max pages is %d", s.opts.MaxPages),
			Meta:    map[string]any{"pages": pages},
		}
	}
	return nil
}

// GetJob loads a job, enforcing expiry: a record past its expiresAt is
// deleted together with its on-disk artifacts and reported as expired.
func (s *JobService) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	raw, err := s.kv.Get(ctx, JobKey(jobID))
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("load job: %w", err)
	}

	job, err := models.UnmarshalJob(raw)
	if err != nil {
		log.Printf("job_id=%s: dropping unreadable record: %v", jobID, err)
		_ = s.kv.Delete(ctx, JobKey(jobID))
		return nil, ErrJobNotFound
	}

	if job.Expired(s.opts.Now()) {
		_ = s.kv.Delete(ctx, JobKey(jobID))
		_ = s.layout.RemoveJobDir(jobID)
		s.metrics.IncrementJobsExpired()
		return nil, ErrJobExpired
	}
	return job, nil
}

// saveJob stores the record with a remaining TTL equal to expiresAt minus
// now, so the store's own eviction aligns with the logical expiry.
func (s *JobService) saveJob(ctx context.Context, job *models.Job) error {
	data, err := job.Marshal()
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	ttl := time.Unix(job.ExpiresAt, 0).Sub(s.opts.Now())
	if ttl < time.Second {
		ttl = time.Second
	}
	if err := s.kv.Set(ctx, JobKey(job.ID), data, ttl); err != nil {
		return fmt.Errorf("store job: %w", err)
	}
	return nil
}

// Apply runs a tool against the active version and appends the result as
// a new version. A redo tail left by prior undos is discarded first; the
// version cap is enforced before any transformation runs.
func (s *JobService) Apply(ctx context.Context, jobID string, tool models.Tool, optionsJSON []byte, image *Upload) (*models.Job, error) {
	if !models.KnownTool(tool) {
		return nil, validationErr(CodeBadOptions, "unknown tool %q", tool)
	}
	if tool == models.ToolMerge {
		return nil, validationErr(CodeBadOptions, "use /pdf/create with multiple files for merge")
	}

	if !s.locks.acquire(jobID) {
		return nil, ErrJobBusy
	}
	defer s.locks.release(jobID)

	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	// The new version number is taken before truncation so that numbers
	// held by a discarded redo tail are never reused.
	newVersion := job.NextVersionNumber()
	job.TruncateRedo()
	if len(job.Versions) >= models.MaxVersions {
		return nil, ErrVersionLimit
	}

	src := job.ActivePath()
	dst := s.layout.VersionPath(jobID, newVersion)

	err = s.runTool(jobID, tool, optionsJSON, image, src, dst)
	if err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			// Bad input: report without touching the stored record.
			return nil, err
		}
		var pageErr *pdfops.PageRangeError
		if errors.As(err, &pageErr) {
			return nil, &ValidationError{
				Code:    CodeBadOptions,
				Message: pageErr.Error(),
				Meta:    map[string]any{"page": pageErr.Page, "totalPages": pageErr.Pages},
			}
		}

		job.Status = models.StatusFailed
		job.LastTool = string(tool)
		job.LastError = truncateErr(err)
		if saveErr := s.saveJob(ctx, job); saveErr != nil {
			log.Printf("job_id=%s: failed to record processing error: %v", jobID, saveErr)
		}
		s.metrics.IncrementAppliesFailed()
		log.Printf("job_id=%s: tool %s failed: %v", jobID, tool, err)
		return nil, &ProcessingError{Tool: string(tool), Err: err}
	}

	job.AppendVersion(newVersion, dst)
	job.Status = models.StatusDone
	job.LastTool = string(tool)
	job.LastError = ""
	if err := s.saveJob(ctx, job); err != nil {
		return nil, err
	}

	s.metrics.IncrementAppliesSucceeded()
	log.Printf("job_id=%s: applied %s, version=%d", jobID, tool, newVersion)
	return job, nil
}

// runTool validates tool options and executes the transformation.
func (s *JobService) runTool(jobID string, tool models.Tool, optionsJSON []byte, image *Upload, src, dst string) error {
	if len(optionsJSON) == 0 {
		optionsJSON = []byte("{}")
	}

	switch tool {
	case models.ToolRotate:
		opt, err := models.ParseRotateOptions(optionsJSON)
		if err != nil {
			return validationErr(CodeBadOptions, "%v", err)
		}
		return s.tools.Rotate(src, dst, opt.Degrees)

	case models.ToolWatermarkText:
		opt, err := models.ParseWatermarkTextOptions(optionsJSON)
		if err != nil {
			return validationErr(CodeBadOptions, "%v", err)
		}
		return s.tools.WatermarkText(src, dst, opt)

	case models.ToolWatermarkImage:
		if image == nil {
			return validationErr(CodeNoImage, "image file is required for watermark_image")
		}
		opt, err := models.ParseWatermarkImageOptions(optionsJSON)
		if err != nil {
			return validationErr(CodeBadOptions, "%v", err)
		}
		imgName := fmt.Sprintf("wm_%s_%s", uuid.New().String(), storage.SafeFilename(image.Name, "image"))
		imgPath := filepath.Join(s.layout.JobDir(jobID), imgName)
		if _, err := storage.SaveUpload(image.Data, imgPath, s.opts.MaxImageSize); err != nil {
			if errors.Is(err, storage.ErrFileTooLarge) {
				return validationErr(CodeFileTooLarge, "max image size is %d bytes", s.opts.MaxImageSize)
			}
			return fmt.Errorf("save watermark image: %w", err)
		}
		return s.tools.WatermarkImage(src, dst, imgPath, opt)

	case models.ToolDrawSignature:
		opt, err := models.ParseSignatureOptions(optionsJSON)
		if err != nil {
			return validationErr(CodeBadOptions, "%v", err)
		}
		return s.tools.DrawSignature(src, dst, opt)
	}
	return validationErr(CodeBadOptions, "unknown tool %q", tool)
}

// Undo moves the cursor one version back. Versions are never deleted;
// undoing at version 1 is a no-op.
func (s *JobService) Undo(ctx context.Context, jobID string) (*models.Job, error) {
	return s.moveCursor(ctx, jobID, (*models.Job).Undo, s.metrics.IncrementUndos)
}

// Redo moves the cursor one version forward, restoring exactly what the
// last undo hid. No-op at the newest version.
func (s *JobService) Redo(ctx context.Context, jobID string) (*models.Job, error) {
	return s.moveCursor(ctx, jobID, (*models.Job).Redo, s.metrics.IncrementRedos)
}

func (s *JobService) moveCursor(ctx context.Context, jobID string, move func(*models.Job) bool, count func()) (*models.Job, error) {
	if !s.locks.acquire(jobID) {
		return nil, ErrJobBusy
	}
	defer s.locks.release(jobID)

	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if move(job) {
		if err := s.saveJob(ctx, job); err != nil {
			return nil, err
		}
		count()
	}
	return job, nil
}

// Delete removes the store entry and the on-disk folder unconditionally.
// Both removals are idempotent so partial failures converge on "gone".
func (s *JobService) Delete(ctx context.Context, jobID string) (bool, error) {
	_, err := s.kv.Get(ctx, JobKey(jobID))
	existed := err == nil

	if err := s.kv.Delete(ctx, JobKey(jobID)); err != nil {
		return existed, fmt.Errorf("delete job record: %w", err)
	}
	if err := s.layout.RemoveJobDir(jobID); err != nil {
		return existed, fmt.Errorf("delete job folder: %w", err)
	}
	if existed {
		s.metrics.IncrementJobsDeleted()
		log.Printf("job_id=%s: job deleted", jobID)
	}
	return existed, nil
}

// DownloadPath resolves the active version to its file path and the
// client-facing download filename.
func (s *JobService) DownloadPath(ctx context.Context, jobID string) (path, filename string, err error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return "", "", err
	}
	path = job.ActivePath()
	if _, err := os.Stat(path); err != nil {
		return "", "", ErrResultMissing
	}
	return path, fmt.Sprintf("pdf_%s_v%d.pdf", jobID, job.ActiveVersion()), nil
}

// PageInfo reports the page count and the resolved dimensions of the
// first page of the active version.
func (s *JobService) PageInfo(ctx context.Context, jobID string) (*models.PageInfoResponse, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	path := job.ActivePath()
	if _, err := os.Stat(path); err != nil {
		return nil, ErrResultMissing
	}

	pages, err := s.tools.PageCount(path)
	if err != nil {
		return nil, &ProcessingError{Tool: "page-info", Err: err}
	}
	w, h := pdfops.FallbackPageWidth, pdfops.FallbackPageHeight
	if pages > 0 {
		w, h, _ = s.tools.PageSize(path, 1)
	}
	return &models.PageInfoResponse{
		Pages:         pages,
		PageW:         w,
		PageH:         h,
		ActiveVersion: job.ActiveVersion(),
	}, nil
}

// Preview returns the path of a PNG preview of one page of the active
// version, rendering it unless a cached file already exists. The cache
// key includes the active version number, so undo/redo and apply
// invalidate stale previews without an explicit bust.
func (s *JobService) Preview(ctx context.Context, jobID string, page, dpi int) (string, error) {
	dpi = preview.ClampDPI(dpi)

	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return "", err
	}
	src := job.ActivePath()
	if _, err := os.Stat(src); err != nil {
		return "", ErrResultMissing
	}

	total, err := s.tools.PageCount(src)
	if err != nil {
		return "", &PreviewError{Err: fmt.Errorf("unable to read PDF: %w", err)}
	}
	if page < 1 || page > total {
		return "", &ValidationError{
			Code:    CodeBadOptions,
			Message: fmt.Sprintf("invalid page number %d (document has %d pages)", page, total),
			Meta:    map[string]any{"page": page, "totalPages": total},
		}
	}

	out := s.layout.PreviewPath(jobID, job.ActiveVersion(), page, dpi)
	if _, err := os.Stat(out); err == nil {
		s.metrics.IncrementPreviewCacheHits()
		return out, nil
	}

	if err := s.renderer.RenderPage(ctx, src, out, page, dpi); err != nil {
		return "", &PreviewError{Err: err}
	}
	s.metrics.IncrementPreviewsRendered()
	return out, nil
}

func truncateErr(err error) string {
	msg := err.Error()
	if len(msg) > maxLastErrorLen {
		msg = msg[:maxLastErrorLen]
	}
	return msg
}
