// Package storage owns the on-disk layout of job artifacts. Each job id
// exclusively owns one folder under the storage root:
//
//	<root>/<jobID>/v<N>.pdf                      version snapshots
//	<root>/<jobID>/previews/v<V>_p<P>_dpi<D>.png preview cache
//	<root>/<jobID>/wm_<rand>_<name>              watermark image side-inputs
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Layout computes artifact paths under a fixed root directory.
type Layout struct {
	root string
}

// NewLayout creates a layout rooted at dir.
func NewLayout(dir string) *Layout {
	return &Layout{root: dir}
}

// Root returns the storage root directory.
func (l *Layout) Root() string {
	return l.root
}

// EnsureRoot creates the storage root if it does not exist.
func (l *Layout) EnsureRoot() error {
	return os.MkdirAll(l.root, 0o755)
}

// JobDir returns the folder owned by the given job id.
func (l *Layout) JobDir(jobID string) string {
	return filepath.Join(l.root, jobID)
}

// EnsureJobDir creates the job folder.
func (l *Layout) EnsureJobDir(jobID string) error {
	return os.MkdirAll(l.JobDir(jobID), 0o755)
}

// VersionPath returns the path of version v of the given job.
func (l *Layout) VersionPath(jobID string, v int) string {
	return filepath.Join(l.JobDir(jobID), fmt.Sprintf("v%d.pdf", v))
}

// PreviewDir returns the preview cache folder of the given job.
func (l *Layout) PreviewDir(jobID string) string {
	return filepath.Join(l.JobDir(jobID), "previews")
}

// PreviewPath returns the cache path for one rendered page. The active
// version number is part of the name so that previews of superseded
// versions are never served after an apply or undo.
func (l *Layout) PreviewPath(jobID string, version, page, dpi int) string {
	return filepath.Join(l.PreviewDir(jobID), fmt.Sprintf("v%d_p%d_dpi%d.png", version, page, dpi))
}

// RemoveJobDir deletes the job folder and everything in it. Missing
// folders are fine: deletion must be idempotent so that store-entry and
// folder removal can happen in either order.
func (l *Layout) RemoveJobDir(jobID string) error {
	return os.RemoveAll(l.JobDir(jobID))
}

// SafeFilename strips any path components from an uploaded filename and
// substitutes the fallback when nothing usable remains.
func SafeFilename(name, fallback string) string {
	base := strings.TrimSpace(filepath.Base(name))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return fallback
	}
	return base
}

// CopyFile copies src to dst, creating parent directories.
func CopyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
