// Package jobs runs fire-and-forget background work and tracks its outcome
// in an in-memory registry that callers poll by job id.
package jobs

import (
	"maps"
	"sync"
	"time"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"

	// StatusNotFound is never stored. It is returned for unknown ids.
	StatusNotFound Status = "not_found"
)

// IsFinal reports whether no further transition can happen.
func (s Status) IsFinal() bool {
	return s == StatusCompleted || s == StatusError
}

// Record is the state of one submitted job.
type Record struct {
	ID          string         `json:"id"`
	Status      Status         `json:"status"`
	Result      map[string]any `json:"result"`
	Error       string         `json:"error,omitempty"`
	Metadata    map[string]any `json:"metadata"`
	SubmittedAt time.Time      `json:"submitted_at"`
	FinishedAt  *time.Time     `json:"finished_at,omitempty"`
}

func (r *Record) snapshot() Record {
	out := *r
	out.Result = maps.Clone(r.Result)
	out.Metadata = maps.Clone(r.Metadata)
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		out.FinishedAt = &t
	}
	return out
}

// Registry maps job ids to their records. All reads and writes go through one mutex.
type Registry struct {
	mu      sync.Mutex
	records map[string]*Record
}

func NewRegistry() *Registry {
	return &Registry{records: make(map[string]*Record)}
}

func (r *Registry) insert(id string, metadata map[string]any, now time.Time) {
	if metadata == nil {
		metadata = map[string]any{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[id] = &Record{
		ID:          id,
		Status:      StatusRunning,
		Metadata:    maps.Clone(metadata),
		SubmittedAt: now,
	}
}

// finish moves a running record to its final status. It returns false when the
// record is unknown or already final, leaving it untouched.
func (r *Registry) finish(id string, status Status, result map[string]any, errMsg string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok || rec.Status != StatusRunning {
		return false
	}

	rec.Status = status
	rec.Result = maps.Clone(result)
	rec.Error = errMsg
	rec.FinishedAt = &now
	return true
}

// Get returns a copy of the record. Callers may mutate it freely.
func (r *Registry) Get(id string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return Record{ID: id, Status: StatusNotFound}, false
	}
	return rec.snapshot(), true
}

// Prune removes finished records that completed before cutoff and returns how many were removed.
func (r *Registry) Prune(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, rec := range r.records {
		if rec.FinishedAt != nil && rec.FinishedAt.Before(cutoff) {
			delete(r.records, id)
			removed++
		}
	}
	return removed
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Reset drops every record.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = make(map[string]*Record)
}
