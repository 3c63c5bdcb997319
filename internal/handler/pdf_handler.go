// Package handler exposes the PDF edit pipeline over HTTP. Errors carry a
// stable machine-readable code plus a human-readable message; status codes
// follow the conventional mapping (bad input 4xx, missing/expired 404/410,
// processing failure 500).
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"

	"pdf-editor/internal/metrics"
	"pdf-editor/internal/models"
	"pdf-editor/internal/service"
)

// maxMultipartMemory bounds the in-memory part of multipart parsing;
// larger uploads spill to temporary files.
const maxMultipartMemory = 32 << 20

// defaultPreviewDPI is used when the dpi query parameter is absent.
const defaultPreviewDPI = 144

// PDFHandler handles HTTP requests for the edit pipeline.
type PDFHandler struct {
	jobs    *service.JobService
	metrics *metrics.Metrics
}

// NewPDFHandler creates a new PDF handler.
func NewPDFHandler(jobs *service.JobService, m *metrics.Metrics) *PDFHandler {
	return &PDFHandler{jobs: jobs, metrics: m}
}

// Register wires all routes onto the mux.
func (h *PDFHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /pdf/create", h.CreateJob)
	mux.HandleFunc("GET /pdf/status/{jobID}", h.Status)
	mux.HandleFunc("GET /pdf/download/{jobID}", h.Download)
	mux.HandleFunc("POST /pdf/apply/{jobID}", h.Apply)
	mux.HandleFunc("POST /pdf/undo/{jobID}", h.Undo)
	mux.HandleFunc("POST /pdf/redo/{jobID}", h.Redo)
	mux.HandleFunc("DELETE /pdf/{jobID}", h.Delete)
	mux.HandleFunc("GET /pdf/preview/{jobID}/{page}", h.Preview)
	mux.HandleFunc("GET /pdf/page-info/{jobID}", h.PageInfo)
	mux.HandleFunc("GET /metrics", h.Metrics)
}

// CreateJob handles POST /pdf/create: multipart upload of 1..N PDFs.
func (h *PDFHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, service.CodeBadOptions, "invalid multipart form", nil)
		return
	}
	defer r.MultipartForm.RemoveAll()

	uploads, closeAll, err := openUploads(r.MultipartForm.File["files"])
	if err != nil {
		writeError(w, http.StatusBadRequest, service.CodeBadOptions, "unreadable upload", nil)
		return
	}
	defer closeAll()

	job, err := h.jobs.CreateJob(r.Context(), uploads)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, models.CreateJobResponse{
		JobID:       job.ID,
		Status:      job.Status,
		Cursor:      job.Cursor,
		Versions:    len(job.Versions),
		DownloadURL: downloadURL(job.ID),
		ExpiresAt:   job.ExpiresAt,
	})
}

// Status handles GET /pdf/status/{jobID}.
func (h *PDFHandler) Status(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.GetJob(r.Context(), r.PathValue("jobID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.JobStatusResponse{
		JobID:         job.ID,
		Status:        job.Status,
		Cursor:        job.Cursor,
		Versions:      len(job.Versions),
		ActiveVersion: job.ActiveVersion(),
		ExpiresAt:     job.ExpiresAt,
		LastTool:      job.LastTool,
		LastError:     job.LastError,
	})
}

// Download handles GET /pdf/download/{jobID}: streams the active version.
func (h *PDFHandler) Download(w http.ResponseWriter, r *http.Request) {
	path, filename, err := h.jobs.DownloadPath(r.Context(), r.PathValue("jobID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	http.ServeFile(w, r, path)
}

// Apply handles POST /pdf/apply/{jobID}: form fields `tool` and `options`
// (a JSON document), plus an optional `image` file for watermark_image.
func (h *PDFHandler) Apply(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, service.CodeBadOptions, "invalid multipart form", nil)
		return
	}
	defer r.MultipartForm.RemoveAll()

	tool := models.Tool(r.FormValue("tool"))
	options := r.FormValue("options")
	if options == "" {
		options = "{}"
	}

	var image *service.Upload
	if headers := r.MultipartForm.File["image"]; len(headers) > 0 {
		f, err := headers[0].Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, service.CodeBadOptions, "unreadable image upload", nil)
			return
		}
		defer f.Close()
		image = &service.Upload{Name: headers[0].Filename, Data: f}
	}

	job, err := h.jobs.Apply(r.Context(), r.PathValue("jobID"), tool, []byte(options), image)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.ApplyToolResponse{
		JobID:         job.ID,
		Status:        job.Status,
		Cursor:        job.Cursor,
		Versions:      len(job.Versions),
		ActiveVersion: job.ActiveVersion(),
		DownloadURL:   downloadURL(job.ID),
		ExpiresAt:     job.ExpiresAt,
	})
}

// Undo handles POST /pdf/undo/{jobID}.
func (h *PDFHandler) Undo(w http.ResponseWriter, r *http.Request) {
	h.cursorOp(w, r, h.jobs.Undo)
}

// Redo handles POST /pdf/redo/{jobID}.
func (h *PDFHandler) Redo(w http.ResponseWriter, r *http.Request) {
	h.cursorOp(w, r, h.jobs.Redo)
}

func (h *PDFHandler) cursorOp(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, jobID string) (*models.Job, error)) {
	job, err := op(r.Context(), r.PathValue("jobID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.UndoRedoResponse{
		JobID:         job.ID,
		Cursor:        job.Cursor,
		Versions:      len(job.Versions),
		ActiveVersion: job.ActiveVersion(),
		DownloadURL:   downloadURL(job.ID),
		ExpiresAt:     job.ExpiresAt,
	})
}

// Delete handles DELETE /pdf/{jobID}: removes the store entry and all
// on-disk artifacts, idempotently.
func (h *PDFHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existed, err := h.jobs.Delete(r.Context(), r.PathValue("jobID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	resp := models.DeleteResponse{OK: true}
	if !existed {
		resp.Message = "already deleted"
	}
	writeJSON(w, http.StatusOK, resp)
}

// Preview handles GET /pdf/preview/{jobID}/{page}?dpi=N: returns a cached
// or freshly rendered PNG of one page of the active version.
func (h *PDFHandler) Preview(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.PathValue("page"))
	if err != nil {
		writeError(w, http.StatusBadRequest, service.CodeBadOptions, "page must be an integer", nil)
		return
	}
	dpi := defaultPreviewDPI
	if v := r.URL.Query().Get("dpi"); v != "" {
		dpi, err = strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, service.CodeBadOptions, "dpi must be an integer", nil)
			return
		}
	}

	pngPath, err := h.jobs.Preview(r.Context(), r.PathValue("jobID"), page, dpi)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, r, pngPath)
}

// PageInfo handles GET /pdf/page-info/{jobID}.
func (h *PDFHandler) PageInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.jobs.PageInfo(r.Context(), r.PathValue("jobID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// Metrics handles GET /metrics.
func (h *PDFHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.metrics.GetSnapshot())
}

// openUploads opens every file header, returning the uploads and a
// closer for all of them.
func openUploads(headers []*multipart.FileHeader) ([]service.Upload, func(), error) {
	uploads := make([]service.Upload, 0, len(headers))
	files := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		files = append(files, f)
		uploads = append(uploads, service.Upload{Name: fh.Filename, Data: f})
	}
	return uploads, closeAll, nil
}

func downloadURL(jobID string) string {
	return "/pdf/download/" + jobID
}

// writeServiceError maps service errors onto the HTTP error taxonomy.
func (h *PDFHandler) writeServiceError(w http.ResponseWriter, err error) {
	var vErr *service.ValidationError
	if errors.As(err, &vErr) {
		writeError(w, validationStatus(vErr.Code), vErr.Code, vErr.Message, vErr.Meta)
		return
	}
	var pErr *service.ProcessingError
	if errors.As(err, &pErr) {
		writeError(w, http.StatusInternalServerError, "PROCESSING_FAILED", "PDF processing failed",
			map[string]any{"tool": pErr.Tool})
		return
	}
	var prevErr *service.PreviewError
	if errors.As(err, &prevErr) {
		writeError(w, http.StatusInternalServerError, "PREVIEW_FAILED", "Failed to render preview",
			map[string]any{"error": prevErr.Err.Error()})
		return
	}

	switch {
	case errors.Is(err, service.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found or expired", nil)
	case errors.Is(err, service.ErrJobExpired):
		writeError(w, http.StatusGone, "JOB_EXPIRED", "Job expired", nil)
	case errors.Is(err, service.ErrVersionLimit):
		writeError(w, http.StatusConflict, "VERSION_LIMIT", "Max versions is "+strconv.Itoa(models.MaxVersions), nil)
	case errors.Is(err, service.ErrJobBusy):
		writeError(w, http.StatusConflict, "JOB_BUSY", "Another operation is in progress for this job", nil)
	case errors.Is(err, service.ErrResultMissing):
		writeError(w, http.StatusNotFound, "RESULT_MISSING", "Result file missing on server", nil)
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
	}
}

// validationStatus maps a validation code to its HTTP status.
func validationStatus(code string) int {
	switch code {
	case service.CodeFileTooLarge, service.CodeTooManyFiles, service.CodeTooManyPages:
		return http.StatusRequestEntityTooLarge
	case service.CodeUnsupportedType:
		return http.StatusUnsupportedMediaType
	}
	return http.StatusBadRequest
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string, meta map[string]any) {
	writeJSON(w, status, models.ErrorResponse{Code: code, Message: message, Meta: meta})
}
