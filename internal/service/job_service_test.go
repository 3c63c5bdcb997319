package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pdf-editor/internal/metrics"
	"pdf-editor/internal/models"
	"pdf-editor/internal/storage"
	"pdf-editor/internal/store"
)

// fakeTransformer records every transformation as a text marker appended
// to the source content, so tests can assert which edits a version file
// carries without parsing PDFs.
type fakeTransformer struct {
	pages   int
	failErr error
}

func (f *fakeTransformer) apply(src, dst, marker string) error {
	if f.failErr != nil {
		return f.failErr
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, append(data, []byte("\n"+marker)...), 0o644)
}

func (f *fakeTransformer) Merge(inputs []string, out string) error {
	if f.failErr != nil {
		return f.failErr
	}
	var parts []string
	for _, in := range inputs {
		data, err := os.ReadFile(in)
		if err != nil {
			return err
		}
		parts = append(parts, string(data))
	}
	return os.WriteFile(out, []byte(strings.Join(parts, "\n")+"\nmerged"), 0o644)
}

func (f *fakeTransformer) Rotate(src, dst string, degrees int) error {
	return f.apply(src, dst, fmt.Sprintf("rotate:%d", degrees))
}

func (f *fakeTransformer) WatermarkText(src, dst string, opt models.WatermarkTextOptions) error {
	return f.apply(src, dst, "wmtext:"+opt.Text)
}

func (f *fakeTransformer) WatermarkImage(src, dst, imagePath string, opt models.WatermarkImageOptions) error {
	if _, err := os.Stat(imagePath); err != nil {
		return fmt.Errorf("image not on disk: %w", err)
	}
	return f.apply(src, dst, "wmimage")
}

func (f *fakeTransformer) DrawSignature(src, dst string, opt models.SignatureOptions) error {
	return f.apply(src, dst, "signature")
}

func (f *fakeTransformer) PageCount(path string) (int, error) {
	return f.pages, nil
}

func (f *fakeTransformer) PageSize(path string, pageNr int) (float64, float64, error) {
	return 595, 842, nil
}

// fakeRenderer writes a stub PNG and counts render calls for cache tests.
type fakeRenderer struct {
	renders int
	failErr error
}

func (f *fakeRenderer) RenderPage(ctx context.Context, inputPDF, outPNG string, page, dpi int) error {
	f.renders++
	if f.failErr != nil {
		return f.failErr
	}
	if err := os.MkdirAll(filepath.Dir(outPNG), 0o755); err != nil {
		return err
	}
	return os.WriteFile(outPNG, []byte("png"), 0o644)
}

type testEnv struct {
	svc      *JobService
	tools    *fakeTransformer
	renderer *fakeRenderer
	layout   *storage.Layout
	kv       *store.MemoryKV
	clock    *fakeClock
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	env := &testEnv{
		tools:    &fakeTransformer{pages: 3},
		renderer: &fakeRenderer{},
		layout:   storage.NewLayout(t.TempDir()),
		kv:       store.NewMemoryKV(),
		clock:    &fakeClock{now: time.Now()},
	}
	if opts.Now == nil {
		opts.Now = env.clock.Now
	}
	env.svc = NewJobService(env.kv, env.layout, env.tools, env.renderer, metrics.NewMetrics(), opts)
	return env
}

func pdfUpload(name string) Upload {
	return Upload{Name: name, Data: strings.NewReader("%PDF-1.4 " + name)}
}

func createJob(t *testing.T, env *testEnv, uploads ...Upload) *models.Job {
	t.Helper()
	if len(uploads) == 0 {
		uploads = []Upload{pdfUpload("doc.pdf")}
	}
	job, err := env.svc.CreateJob(context.Background(), uploads)
	if err != nil {
		t.Fatalf("create job failed: %v", err)
	}
	return job
}

func activeContent(t *testing.T, job *models.Job) string {
	t.Helper()
	data, err := os.ReadFile(job.ActivePath())
	if err != nil {
		t.Fatalf("active version missing: %v", err)
	}
	return string(data)
}

func TestCreateJob_SingleFile(t *testing.T) {
	env := newTestEnv(t, Options{})
	job := createJob(t, env)

	if job.Cursor != 1 || len(job.Versions) != 1 {
		t.Fatalf("expected fresh chain, got cursor=%d versions=%d", job.Cursor, len(job.Versions))
	}
	if job.Status != models.StatusDone {
		t.Errorf("expected done, got %s", job.Status)
	}
	if got := activeContent(t, job); !strings.Contains(got, "doc.pdf") {
		t.Errorf("version 1 should copy the upload, got %q", got)
	}
	if got := activeContent(t, job); strings.Contains(got, "merged") {
		t.Error("single upload must not be merged")
	}

	loaded, err := env.svc.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("job not loadable after create: %v", err)
	}
	if loaded.ID != job.ID {
		t.Errorf("loaded wrong job %s", loaded.ID)
	}
}

func TestCreateJob_MergesMultipleFiles(t *testing.T) {
	env := newTestEnv(t, Options{})
	job := createJob(t, env, pdfUpload("a.pdf"), pdfUpload("b.pdf"))

	got := activeContent(t, job)
	if !strings.Contains(got, "merged") {
		t.Error("multiple uploads should produce a merged version 1")
	}
	// Input order must be preserved.
	if strings.Index(got, "a.pdf") > strings.Index(got, "b.pdf") {
		t.Error("merge must preserve upload order")
	}
}

func TestCreateJob_Validation(t *testing.T) {
	ctx := context.Background()

	t.Run("no files", func(t *testing.T) {
		env := newTestEnv(t, Options{})
		_, err := env.svc.CreateJob(ctx, nil)
		assertValidationCode(t, err, CodeNoFiles)
	})

	t.Run("too many files", func(t *testing.T) {
		env := newTestEnv(t, Options{MaxFiles: 2})
		_, err := env.svc.CreateJob(ctx, []Upload{pdfUpload("a"), pdfUpload("b"), pdfUpload("c")})
		assertValidationCode(t, err, CodeTooManyFiles)
	})

	t.Run("not a pdf", func(t *testing.T) {
		env := newTestEnv(t, Options{})
		_, err := env.svc.CreateJob(ctx, []Upload{{Name: "x.pdf", Data: strings.NewReader("<html></html>")}})
		assertValidationCode(t, err, CodeUnsupportedType)
		assertNoJobDirs(t, env)
	})

	t.Run("file too large", func(t *testing.T) {
		env := newTestEnv(t, Options{MaxFileSize: 8})
		_, err := env.svc.CreateJob(ctx, []Upload{{Name: "x.pdf", Data: strings.NewReader("%PDF-1.4 far too big")}})
		assertValidationCode(t, err, CodeFileTooLarge)
		assertNoJobDirs(t, env)
	})

	t.Run("too many pages", func(t *testing.T) {
		env := newTestEnv(t, Options{MaxPages: 2})
		env.tools.pages = 10
		_, err := env.svc.CreateJob(ctx, []Upload{pdfUpload("x.pdf")})
		assertValidationCode(t, err, CodeTooManyPages)
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if vErr.Meta["pages"] != 10 {
			t.Errorf("expected page count in meta, got %v", vErr.Meta)
		}
	})
}

func assertValidationCode(t *testing.T, err error, code string) {
	t.Helper()
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if vErr.Code != code {
		t.Errorf("expected code %s, got %s", code, vErr.Code)
	}
}

func assertNoJobDirs(t *testing.T, env *testEnv) {
	t.Helper()
	entries, err := os.ReadDir(env.layout.Root())
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			t.Errorf("job folder %s left behind after failed create", e.Name())
		}
	}
}

func TestApply_AppendsVersions(t *testing.T) {
	env := newTestEnv(t, Options{})
	job := createJob(t, env)
	ctx := context.Background()

	job, err := env.svc.Apply(ctx, job.ID, models.ToolRotate, []byte(`{"degrees":90}`), nil)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if job.ActiveVersion() != 2 || job.Cursor != 2 {
		t.Fatalf("expected active version 2, got v=%d cursor=%d", job.ActiveVersion(), job.Cursor)
	}
	if job.LastTool != "rotate" || job.LastError != "" {
		t.Errorf("unexpected diagnostics: lastTool=%q lastError=%q", job.LastTool, job.LastError)
	}
	if got := activeContent(t, job); !strings.Contains(got, "rotate:90") {
		t.Errorf("version 2 missing rotation, got %q", got)
	}

	// Version numbers are strictly increasing from 1 with no gaps.
	job, err = env.svc.Apply(ctx, job.ID, models.ToolDrawSignature,
		[]byte(`{"strokes":[[[0.1,0.1],[0.9,0.9]]]}`), nil)
	if err != nil {
		t.Fatalf("second apply failed: %v", err)
	}
	for i, v := range job.Versions {
		if v.Number != i+1 {
			t.Errorf("version %d has number %d", i, v.Number)
		}
	}
}

func TestApply_RejectsBadRequests(t *testing.T) {
	env := newTestEnv(t, Options{})
	job := createJob(t, env)
	ctx := context.Background()

	_, err := env.svc.Apply(ctx, job.ID, "split", nil, nil)
	assertValidationCode(t, err, CodeBadOptions)

	_, err = env.svc.Apply(ctx, job.ID, models.ToolMerge, nil, nil)
	assertValidationCode(t, err, CodeBadOptions)

	_, err = env.svc.Apply(ctx, job.ID, models.ToolRotate, []byte(`{"degrees":45}`), nil)
	assertValidationCode(t, err, CodeBadOptions)

	_, err = env.svc.Apply(ctx, job.ID, models.ToolWatermarkImage, []byte(`{}`), nil)
	assertValidationCode(t, err, CodeNoImage)

	// Bad input never grows the chain.
	job, err = env.svc.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(job.Versions) != 1 {
		t.Errorf("validation failures must not append versions, got %d", len(job.Versions))
	}
}

func TestApply_VersionLimit(t *testing.T) {
	env := newTestEnv(t, Options{})
	job := createJob(t, env)
	ctx := context.Background()

	for i := 0; i < models.MaxVersions-1; i++ {
		var err error
		job, err = env.svc.Apply(ctx, job.ID, models.ToolRotate, []byte(`{"degrees":90}`), nil)
		if err != nil {
			t.Fatalf("apply %d failed: %v", i+2, err)
		}
	}
	if len(job.Versions) != models.MaxVersions {
		t.Fatalf("expected %d versions, got %d", models.MaxVersions, len(job.Versions))
	}

	_, err := env.svc.Apply(ctx, job.ID, models.ToolRotate, []byte(`{"degrees":90}`), nil)
	if !errors.Is(err, ErrVersionLimit) {
		t.Fatalf("expected ErrVersionLimit, got %v", err)
	}
}

func TestApply_TruncatesRedoTail(t *testing.T) {
	env := newTestEnv(t, Options{})
	job := createJob(t, env)
	ctx := context.Background()

	env.svc.Apply(ctx, job.ID, models.ToolRotate, []byte(`{"degrees":90}`), nil)
	env.svc.Apply(ctx, job.ID, models.ToolWatermarkText, []byte(`{"text":"DRAFT"}`), nil)

	job, err := env.svc.Undo(ctx, job.ID)
	if err != nil || job.Cursor != 2 {
		t.Fatalf("undo failed: cursor=%d err=%v", job.Cursor, err)
	}

	job, err = env.svc.Apply(ctx, job.ID, models.ToolDrawSignature,
		[]byte(`{"strokes":[[[0,0],[1,1]]]}`), nil)
	if err != nil {
		t.Fatalf("apply after undo failed: %v", err)
	}

	// Version 3 is discarded and its number is not reused.
	numbers := make([]int, len(job.Versions))
	for i, v := range job.Versions {
		numbers[i] = v.Number
	}
	if len(numbers) != 3 || numbers[0] != 1 || numbers[1] != 2 || numbers[2] != 4 {
		t.Fatalf("expected versions [1 2 4], got %v", numbers)
	}
	if job.Cursor != 3 {
		t.Errorf("expected cursor 3, got %d", job.Cursor)
	}
	if got := activeContent(t, job); strings.Contains(got, "wmtext") {
		t.Error("new edit must build on the undone base, not the discarded tail")
	}
}

func TestApply_ProcessingFailureRecorded(t *testing.T) {
	env := newTestEnv(t, Options{})
	job := createJob(t, env)
	ctx := context.Background()

	env.tools.failErr = errors.New("overlay renderer exploded")
	_, err := env.svc.Apply(ctx, job.ID, models.ToolRotate, []byte(`{"degrees":90}`), nil)
	var pErr *ProcessingError
	if !errors.As(err, &pErr) {
		t.Fatalf("expected ProcessingError, got %v", err)
	}
	if pErr.Tool != "rotate" {
		t.Errorf("unexpected tool %q", pErr.Tool)
	}

	// The job remains loadable with the failure recorded.
	env.tools.failErr = nil
	job, err = env.svc.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("job should survive a processing failure: %v", err)
	}
	if job.Status != models.StatusFailed {
		t.Errorf("expected status failed, got %s", job.Status)
	}
	if job.LastTool != "rotate" || !strings.Contains(job.LastError, "exploded") {
		t.Errorf("diagnostics not recorded: lastTool=%q lastError=%q", job.LastTool, job.LastError)
	}
	if len(job.Versions) != 1 {
		t.Errorf("failed apply must not append a version, got %d", len(job.Versions))
	}

	// A retry against the same base succeeds and clears the failure.
	job, err = env.svc.Apply(ctx, job.ID, models.ToolRotate, []byte(`{"degrees":180}`), nil)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if job.Status != models.StatusDone || job.LastError != "" {
		t.Errorf("retry should clear diagnostics: status=%s lastError=%q", job.Status, job.LastError)
	}
}

func TestApply_TruncatesLongDiagnostics(t *testing.T) {
	env := newTestEnv(t, Options{})
	job := createJob(t, env)

	env.tools.failErr = errors.New(strings.Repeat("x", 2000))
	env.svc.Apply(context.Background(), job.ID, models.ToolRotate, []byte(`{"degrees":90}`), nil)

	env.tools.failErr = nil
	job, err := env.svc.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(job.LastError) > maxLastErrorLen {
		t.Errorf("lastError not truncated, len=%d", len(job.LastError))
	}
}

func TestApply_WatermarkImageSideInput(t *testing.T) {
	env := newTestEnv(t, Options{})
	job := createJob(t, env)

	img := &Upload{Name: "logo.png", Data: strings.NewReader("\x89PNG fake")}
	job, err := env.svc.Apply(context.Background(), job.ID, models.ToolWatermarkImage, []byte(`{}`), img)
	if err != nil {
		t.Fatalf("image watermark failed: %v", err)
	}
	if got := activeContent(t, job); !strings.Contains(got, "wmimage") {
		t.Errorf("image watermark not applied: %q", got)
	}
}

func TestApply_RejectsOversizeImage(t *testing.T) {
	env := newTestEnv(t, Options{MaxImageSize: 4})
	job := createJob(t, env)

	img := &Upload{Name: "logo.png", Data: strings.NewReader("\x89PNG far too big")}
	_, err := env.svc.Apply(context.Background(), job.ID, models.ToolWatermarkImage, []byte(`{}`), img)
	assertValidationCode(t, err, CodeFileTooLarge)
}

func TestApply_RejectsConcurrentMutation(t *testing.T) {
	env := newTestEnv(t, Options{})
	job := createJob(t, env)

	if !env.svc.locks.acquire(job.ID) {
		t.Fatal("lock should be free")
	}
	defer env.svc.locks.release(job.ID)

	_, err := env.svc.Apply(context.Background(), job.ID, models.ToolRotate, []byte(`{"degrees":90}`), nil)
	if !errors.Is(err, ErrJobBusy) {
		t.Errorf("expected ErrJobBusy, got %v", err)
	}
	_, err = env.svc.Undo(context.Background(), job.ID)
	if !errors.Is(err, ErrJobBusy) {
		t.Errorf("expected ErrJobBusy for undo, got %v", err)
	}
}

func TestUndoRedo_EndToEnd(t *testing.T) {
	env := newTestEnv(t, Options{})
	job := createJob(t, env)
	ctx := context.Background()

	env.svc.Apply(ctx, job.ID, models.ToolRotate, []byte(`{"degrees":90}`), nil)
	env.svc.Apply(ctx, job.ID, models.ToolWatermarkText, []byte(`{"text":"DRAFT","page":1,"opacity":50}`), nil)

	job, err := env.svc.Undo(ctx, job.ID)
	if err != nil {
		t.Fatalf("undo failed: %v", err)
	}
	if job.ActiveVersion() != 2 {
		t.Fatalf("expected active version 2 after undo, got %d", job.ActiveVersion())
	}

	// The download is the rotated-but-unwatermarked document.
	path, filename, err := env.svc.DownloadPath(ctx, job.ID)
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	if filename != fmt.Sprintf("pdf_%s_v2.pdf", job.ID) {
		t.Errorf("unexpected download name %q", filename)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "rotate:90") || strings.Contains(string(data), "wmtext") {
		t.Errorf("undo should serve the rotated-only content, got %q", data)
	}

	// Redo restores exactly what undo hid.
	job, err = env.svc.Redo(ctx, job.ID)
	if err != nil {
		t.Fatalf("redo failed: %v", err)
	}
	if job.ActiveVersion() != 3 {
		t.Errorf("expected active version 3 after redo, got %d", job.ActiveVersion())
	}
	if got := activeContent(t, job); !strings.Contains(got, "wmtext:DRAFT") {
		t.Errorf("redo did not restore the watermark, got %q", got)
	}

	// No-ops at the bounds.
	env.svc.Undo(ctx, job.ID)
	env.svc.Undo(ctx, job.ID)
	job, _ = env.svc.Undo(ctx, job.ID)
	if job.Cursor != 1 {
		t.Errorf("undo past version 1 must be a no-op, cursor=%d", job.Cursor)
	}
}

func TestGetJob_Expiry(t *testing.T) {
	env := newTestEnv(t, Options{TTL: time.Hour})
	job := createJob(t, env)
	ctx := context.Background()

	env.clock.now = env.clock.now.Add(2 * time.Hour)

	_, err := env.svc.GetJob(ctx, job.ID)
	if !errors.Is(err, ErrJobExpired) {
		t.Fatalf("expected ErrJobExpired, got %v", err)
	}
	if _, statErr := os.Stat(env.layout.JobDir(job.ID)); !os.IsNotExist(statErr) {
		t.Error("expired job folder should be removed on access")
	}

	// The record is gone: a second load reports not-found.
	_, err = env.svc.GetJob(ctx, job.ID)
	if !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound after cleanup, got %v", err)
	}
}

func TestGetJob_NotFound(t *testing.T) {
	env := newTestEnv(t, Options{})
	_, err := env.svc.GetJob(context.Background(), "nope")
	if !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestDelete_Idempotent(t *testing.T) {
	env := newTestEnv(t, Options{})
	job := createJob(t, env)
	ctx := context.Background()

	existed, err := env.svc.Delete(ctx, job.ID)
	if err != nil || !existed {
		t.Fatalf("first delete: existed=%v err=%v", existed, err)
	}
	if _, statErr := os.Stat(env.layout.JobDir(job.ID)); !os.IsNotExist(statErr) {
		t.Error("job folder should be removed")
	}

	existed, err = env.svc.Delete(ctx, job.ID)
	if err != nil {
		t.Fatalf("second delete errored: %v", err)
	}
	if existed {
		t.Error("second delete should report the job as already gone")
	}
}

func TestPreview_CachesByActiveVersion(t *testing.T) {
	env := newTestEnv(t, Options{})
	job := createJob(t, env)
	ctx := context.Background()

	first, err := env.svc.Preview(ctx, job.ID, 1, 144)
	if err != nil {
		t.Fatalf("preview failed: %v", err)
	}
	if env.renderer.renders != 1 {
		t.Fatalf("expected 1 render, got %d", env.renderer.renders)
	}

	second, err := env.svc.Preview(ctx, job.ID, 1, 144)
	if err != nil {
		t.Fatalf("cached preview failed: %v", err)
	}
	if second != first {
		t.Errorf("cache should return the same path, got %q vs %q", second, first)
	}
	if env.renderer.renders != 1 {
		t.Errorf("second request must not re-render, renders=%d", env.renderer.renders)
	}

	// Apply changes the active version, so the cache key changes.
	if _, err := env.svc.Apply(ctx, job.ID, models.ToolRotate, []byte(`{"degrees":90}`), nil); err != nil {
		t.Fatal(err)
	}
	third, err := env.svc.Preview(ctx, job.ID, 1, 144)
	if err != nil {
		t.Fatalf("preview after apply failed: %v", err)
	}
	if third == first {
		t.Error("preview path must change with the active version")
	}
	if env.renderer.renders != 2 {
		t.Errorf("apply should force a fresh render, renders=%d", env.renderer.renders)
	}
}

func TestPreview_Validation(t *testing.T) {
	env := newTestEnv(t, Options{})
	job := createJob(t, env)
	ctx := context.Background()

	_, err := env.svc.Preview(ctx, job.ID, 4, 144) // fake has 3 pages
	assertValidationCode(t, err, CodeBadOptions)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if vErr.Meta["totalPages"] != 3 {
		t.Errorf("expected totalPages in meta, got %v", vErr.Meta)
	}

	// DPI is clamped, not rejected.
	path, err := env.svc.Preview(ctx, job.ID, 1, 9999)
	if err != nil {
		t.Fatalf("preview with out-of-range dpi failed: %v", err)
	}
	if !strings.Contains(path, "dpi220") {
		t.Errorf("dpi should clamp to 220, got path %q", path)
	}
}

func TestPreview_RenderFailure(t *testing.T) {
	env := newTestEnv(t, Options{})
	job := createJob(t, env)

	env.renderer.failErr = errors.New("gs exited 1")
	_, err := env.svc.Preview(context.Background(), job.ID, 1, 144)
	var pErr *PreviewError
	if !errors.As(err, &pErr) {
		t.Fatalf("expected PreviewError, got %v", err)
	}
}

func TestPageInfo(t *testing.T) {
	env := newTestEnv(t, Options{})
	job := createJob(t, env)

	info, err := env.svc.PageInfo(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("page info failed: %v", err)
	}
	if info.Pages != 3 || info.PageW != 595 || info.PageH != 842 {
		t.Errorf("unexpected info %+v", info)
	}
	if info.ActiveVersion != 1 {
		t.Errorf("expected active version 1, got %d", info.ActiveVersion)
	}
}

func TestDownloadPath_MissingFile(t *testing.T) {
	env := newTestEnv(t, Options{})
	job := createJob(t, env)

	if err := os.Remove(job.ActivePath()); err != nil {
		t.Fatal(err)
	}
	_, _, err := env.svc.DownloadPath(context.Background(), job.ID)
	if !errors.Is(err, ErrResultMissing) {
		t.Errorf("expected ErrResultMissing, got %v", err)
	}
}
