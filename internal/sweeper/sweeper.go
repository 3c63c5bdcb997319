// Package sweeper removes job folders whose store record is gone or past
// expiry. The KV store evicts records on its own, but the on-disk folder
// stays behind when a job expires without being touched again; the sweep
// converges disk state with the store.
package sweeper

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"pdf-editor/internal/models"
	"pdf-editor/internal/service"
	"pdf-editor/internal/storage"
	"pdf-editor/internal/store"
)

// Sweeper scans the storage root and deletes orphaned job folders.
type Sweeper struct {
	kv     store.KV
	layout *storage.Layout
	now    func() time.Time
}

// NewSweeper creates a sweeper over the given store and layout.
func NewSweeper(kv store.KV, layout *storage.Layout) *Sweeper {
	return &Sweeper{kv: kv, layout: layout, now: time.Now}
}

// Run sweeps at the given interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			removed, err := s.Sweep(ctx)
			if err != nil {
				log.Printf("sweep error: %v", err)
				continue
			}
			if removed > 0 {
				log.Printf("sweep removed %d expired job folder(s)", removed)
			}
		}
	}
}

// Sweep performs one pass and returns the number of folders removed. A
// folder is removed when its record is absent from the store or the
// record's expiry has passed; in the latter case the record is deleted
// too, so store entry and folder go in the same pass.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.layout.Root())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		jobID := entry.Name()

		raw, err := s.kv.Get(ctx, service.JobKey(jobID))
		if err != nil {
			if errors.Is(err, store.ErrKeyNotFound) {
				if s.removeFolder(jobID) {
					removed++
				}
			}
			continue
		}

		job, err := models.UnmarshalJob(raw)
		if err != nil || job.Expired(s.now()) {
			_ = s.kv.Delete(ctx, service.JobKey(jobID))
			if s.removeFolder(jobID) {
				removed++
			}
		}
	}
	return removed, nil
}

func (s *Sweeper) removeFolder(jobID string) bool {
	if err := s.layout.RemoveJobDir(jobID); err != nil {
		log.Printf("job_id=%s: failed to remove folder: %v", jobID, err)
		return false
	}
	log.Printf("job_id=%s: removed orphaned folder", jobID)
	return true
}
