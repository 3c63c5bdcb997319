package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// JobStatus represents the state of an editing job. All operations are
// synchronous, so there is no pending state: a job is either usable or the
// last apply against it failed.
type JobStatus string

const (
	StatusDone   JobStatus = "done"
	StatusFailed JobStatus = "failed"
)

// MaxVersions caps the version chain per job. Exceeding it is a
// client-visible error, never silent eviction of old versions.
const MaxVersions = 5

// Version is one immutable snapshot in a job's version chain.
type Version struct {
	Number int    `json:"v"`
	Path   string `json:"path"`
}

// Job is one document-editing session: an ordered chain of immutable
// version files plus a cursor identifying the active one. The record is
// stored JSON-serialized in the ephemeral KV store under the job id.
type Job struct {
	ID        string    `json:"jobId"`
	CreatedAt int64     `json:"createdAt"`
	ExpiresAt int64     `json:"expiresAt"`
	Status    JobStatus `json:"status"`
	Cursor    int       `json:"cursor"`
	Versions  []Version `json:"versions"`
	LastTool  string    `json:"lastTool,omitempty"`
	LastError string    `json:"lastError,omitempty"`
}

// NewJob creates a job holding its first version with the cursor on it.
func NewJob(id string, v1Path string, now time.Time, ttl time.Duration) *Job {
	return &Job{
		ID:        id,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
		Status:    StatusDone,
		Cursor:    1,
		Versions:  []Version{{Number: 1, Path: v1Path}},
		LastTool:  "create",
	}
}

// Expired reports whether the job is past its expiry at the given instant.
// The record and its on-disk artifacts are considered gone once ExpiresAt
// passes, regardless of whether the store has evicted the key yet.
func (j *Job) Expired(now time.Time) bool {
	return j.ExpiresAt <= now.Unix()
}

// ActiveVersion returns the version number the cursor points at.
func (j *Job) ActiveVersion() int {
	return j.Versions[j.Cursor-1].Number
}

// ActivePath returns the file path of the active version.
func (j *Job) ActivePath() string {
	return j.Versions[j.Cursor-1].Path
}

// TruncateRedo discards versions after the cursor. Applying a new tool
// after an undo invalidates the redo tail (linear history, no branching).
func (j *Job) TruncateRedo() {
	if j.Cursor < len(j.Versions) {
		j.Versions = j.Versions[:j.Cursor]
	}
}

// NextVersionNumber returns the number the next appended version gets:
// one past the newest version in the chain. Callers that are about to
// discard a redo tail must take the number before calling TruncateRedo,
// so that numbers held by discarded versions are never reassigned.
func (j *Job) NextVersionNumber() int {
	return j.Versions[len(j.Versions)-1].Number + 1
}

// AppendVersion appends a new snapshot and moves the cursor onto it.
func (j *Job) AppendVersion(number int, path string) {
	j.Versions = append(j.Versions, Version{Number: number, Path: path})
	j.Cursor = len(j.Versions)
}

// Undo moves the cursor one version back. No-op at the first version;
// versions are never deleted by undo.
func (j *Job) Undo() bool {
	if j.Cursor > 1 {
		j.Cursor--
		return true
	}
	return false
}

// Redo moves the cursor one version forward. No-op at the last version.
func (j *Job) Redo() bool {
	if j.Cursor < len(j.Versions) {
		j.Cursor++
		return true
	}
	return false
}

// Marshal serializes the job for the KV store.
func (j *Job) Marshal() ([]byte, error) {
	return json.Marshal(j)
}

// UnmarshalJob deserializes a stored job record and rejects records that
// violate the chain invariants (a corrupt record must not reach callers
// that index Versions by Cursor).
func UnmarshalJob(data []byte) (*Job, error) {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("decode job record: %w", err)
	}
	if len(j.Versions) == 0 || j.Cursor < 1 || j.Cursor > len(j.Versions) {
		return nil, fmt.Errorf("corrupt job record: cursor=%d versions=%d", j.Cursor, len(j.Versions))
	}
	return &j, nil
}
