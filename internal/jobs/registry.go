// Package jobs tracks the status of running and finished sync jobs for
// status pollers.
package jobs

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a sync job.
type State string

const (
	StateIdle      State = "Idle"
	StateRunning   State = "Running"
	StateCompleted State = "Completed"
	StateFailed    State = "Failed"
)

// Status is the pollable snapshot of one job. Message carries a
// human-readable cause on failure, never a stack trace.
type Status struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	State     State     `json:"state"`
	Message   string    `json:"message"`
	Progress  int       `json:"progress_percent"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Registry is the process-wide job-status store: created on job start,
// read-many, single writer per job. Completed jobs are kept for process
// lifetime; memory stays bounded by job count in practice.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Status
}

// NewRegistry initializes an empty registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*Status)}
}

// Start registers a new running job and returns its generated identifier.
func (r *Registry) Start(kind string) string {
	id := uuid.NewString()
	now := time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[id] = &Status{
		ID:        id,
		Kind:      kind,
		State:     StateRunning,
		Message:   "started",
		StartedAt: now,
		UpdatedAt: now,
	}
	return id
}

// Update overwrites the job's state, message and progress.
func (r *Registry) Update(id string, state State, message string, progress int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return
	}
	job.State = state
	job.Message = message
	job.Progress = clampProgress(progress)
	job.UpdatedAt = time.Now().UTC()
}

// Get returns a copy of the job's status.
func (r *Registry) Get(id string) (Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return Status{}, false
	}
	return *job, true
}

// List returns a snapshot of every known job.
func (r *Registry) List() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Status, 0, len(r.jobs))
	for _, job := range r.jobs {
		result = append(result, *job)
	}
	return result
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
