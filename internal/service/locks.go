package service

import "sync"

// jobLocks serializes mutating operations per job id within this process.
// The KV store performs plain read-modify-write with no cross-request
// locking, so without this guard two concurrent applies could both load
// the same base version and lose an update on save. Acquire is
// non-blocking: a held lock rejects the second caller instead of queueing
// it, since queued edits against a stale base are rarely what the user
// meant.
type jobLocks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newJobLocks() *jobLocks {
	return &jobLocks{held: make(map[string]struct{})}
}

// acquire takes the lock for the job id, reporting false when it is
// already held.
func (l *jobLocks) acquire(jobID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.held[jobID]; taken {
		return false
	}
	l.held[jobID] = struct{}{}
	return true
}

// release frees the lock for the job id.
func (l *jobLocks) release(jobID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, jobID)
}
