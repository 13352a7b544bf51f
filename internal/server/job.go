package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/tspdraw/internal/store"
)

// JobState represents the current state of a job
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateStalled   JobState = "stalled"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// JobConfig is an alias to avoid duplication with store.JobConfig
type JobConfig = store.JobConfig

// TuneRequest carries live parameter overrides from a controller to a
// running job. Nil fields are left unchanged. Overrides take effect at the
// next batch boundary; already-applied swaps are never rolled back.
type TuneRequest struct {
	Temperature   *float64 `json:"temperature,omitempty"`
	SizeScale     *float64 `json:"sizeScale,omitempty"`
	NeighborCount *float64 `json:"neighborCount,omitempty"`
	Selector      *string  `json:"selector,omitempty"`
	RebuildPool   bool     `json:"rebuildPool,omitempty"`
}

// Job represents an annealing job
type Job struct {
	ID            string       `json:"id"`
	State         JobState     `json:"state"`
	Config        JobConfig    `json:"config"`
	Energy        float64      `json:"energy"`
	InitialEnergy float64      `json:"initialEnergy"`
	Temperature   float64      `json:"temperature"`
	SizeScale     float64      `json:"sizeScale"`
	NeighborCount float64      `json:"neighborCount"`
	Selector      string       `json:"selector,omitempty"`
	PoolSize      int          `json:"poolSize"`
	Stalled       bool         `json:"stalled"`
	Batch         int          `json:"batch"`
	Steps         int64        `json:"steps"`
	Accepted      int64        `json:"accepted"`
	Vertices      int          `json:"vertices"`
	Dropped       int          `json:"dropped,omitempty"`
	Cycle         [][2]float64 `json:"-"`
	StartTime     time.Time    `json:"startTime"`
	EndTime       *time.Time   `json:"endTime,omitempty"`
	Error         string       `json:"error,omitempty"`
}

// JobManager manages the lifecycle of jobs
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	tunes       map[string]*TuneRequest
	cancels     map[string]context.CancelFunc
	broadcaster *EventBroadcaster
}

// NewJobManager creates a new JobManager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:        make(map[string]*Job),
		tunes:       make(map[string]*TuneRequest),
		cancels:     make(map[string]context.CancelFunc),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateJob creates a new job with the given configuration
func (jm *JobManager) CreateJob(config JobConfig) *Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job := &Job{
		ID:        uuid.New().String(),
		State:     StatePending,
		Config:    config,
		StartTime: time.Now(),
	}

	jm.jobs[job.ID] = job
	return job
}

// GetJob retrieves a job by ID
func (jm *JobManager) GetJob(id string) (*Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	return job, exists
}

// SnapshotJob returns a copy of the job record that is safe to read without
// holding the manager lock. The Cycle slice is replaced wholesale on update,
// never mutated in place, so the shallow copy is enough.
func (jm *JobManager) SnapshotJob(id string) (Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	if !exists {
		return Job{}, false
	}
	return *job, true
}

// ListJobs returns all jobs
func (jm *JobManager) ListJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]*Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		jobs = append(jobs, job)
	}
	return jobs
}

// UpdateJob atomically updates a job using the provided function
func (jm *JobManager) UpdateJob(id string, updateFn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	updateFn(job)
	return nil
}

// GetRunningJobs returns all jobs currently in the running state
func (jm *JobManager) GetRunningJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	runningJobs := make([]*Job, 0)
	for _, job := range jm.jobs {
		if job.State == StateRunning || job.State == StateStalled {
			runningJobs = append(runningJobs, job)
		}
	}
	return runningJobs
}

// QueueTune stages a parameter override for the job's worker to pick up at
// the next batch boundary. A second tune before the worker drains the first
// merges field-wise, last writer wins.
func (jm *JobManager) QueueTune(id string, tune TuneRequest) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	if _, exists := jm.jobs[id]; !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	pending, ok := jm.tunes[id]
	if !ok {
		pending = &TuneRequest{}
		jm.tunes[id] = pending
	}
	if tune.Temperature != nil {
		pending.Temperature = tune.Temperature
	}
	if tune.SizeScale != nil {
		pending.SizeScale = tune.SizeScale
	}
	if tune.NeighborCount != nil {
		pending.NeighborCount = tune.NeighborCount
	}
	if tune.Selector != nil {
		pending.Selector = tune.Selector
	}
	if tune.RebuildPool {
		pending.RebuildPool = true
	}
	return nil
}

// takeTune removes and returns the pending tune for a job, or nil.
func (jm *JobManager) takeTune(id string) *TuneRequest {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	tune, ok := jm.tunes[id]
	if !ok {
		return nil
	}
	delete(jm.tunes, id)
	return tune
}

// registerCancel stores the cancel function for a running job.
func (jm *JobManager) registerCancel(id string, cancel context.CancelFunc) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	jm.cancels[id] = cancel
}

// CancelJob cancels a running job. Returns false if the job is unknown or
// no longer running.
func (jm *JobManager) CancelJob(id string) bool {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	cancel, ok := jm.cancels[id]
	if !ok {
		return false
	}
	delete(jm.cancels, id)
	cancel()
	return true
}
