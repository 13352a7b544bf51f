package store

import (
	"fmt"
	"time"
)

// JobConfig holds the configuration of an annealing job (checkpoint copy,
// kept here to avoid an import cycle with the server package).
type JobConfig struct {
	RefPath            string  `json:"refPath"`
	Downsample         int     `json:"downsample,omitempty"`
	Scale              float64 `json:"scale,omitempty"`
	Selector           string  `json:"selector"` // sizescale, sizeneighbor, neighbor
	StepsPerBatch      int     `json:"stepsPerBatch"`
	Batches            int     `json:"batches"`
	RebuildEvery       int     `json:"rebuildEvery,omitempty"` // pool rebuild every N batches (0 = only on demand)
	Seed               int64   `json:"seed"`
	Temperature        float64 `json:"temperature,omitempty"` // 0 = derive from tour geometry
	TempCool           float64 `json:"tempCool,omitempty"`
	SizeScale          float64 `json:"sizeScale,omitempty"`
	SizeCool           float64 `json:"sizeCool,omitempty"`
	NeighborCount      float64 `json:"neighborCount,omitempty"`
	NeighborCool       float64 `json:"neighborCool,omitempty"`
	CheckpointInterval int     `json:"checkpointInterval,omitempty"` // checkpoint every N batches (0 = disabled)
}

// Checkpoint is a saved annealing state that can be resumed later.
//
// Unlike population optimizers, the full search state of a tour annealer is
// just the vertex permutation plus the schedule scalars, so resume is an
// exact continuation of tour state. Only the random number stream differs
// from an uninterrupted run.
type Checkpoint struct {
	// JobID is the unique identifier for this annealing job.
	JobID string `json:"jobId"`

	// Order is the cycle as vertex indices into the extracted point set.
	// The point set itself is reproduced from Config (same image, same
	// downsample and scale), not persisted.
	Order []int `json:"order"`

	// Energy is the total cycle length at checkpoint time.
	Energy float64 `json:"energy"`

	// InitialEnergy is the greedy tour's energy, for improvement tracking.
	InitialEnergy float64 `json:"initialEnergy"`

	// Temperature, SizeScale and NeighborCount freeze the live-tuned
	// schedule so resume picks up where the run left off.
	Temperature   float64 `json:"temperature"`
	SizeScale     float64 `json:"sizeScale"`
	NeighborCount float64 `json:"neighborCount"`

	// Selector is the active strategy at checkpoint time.
	Selector string `json:"selector"`

	// Batch is how many batches have completed.
	Batch int `json:"batch"`

	// Timestamp records when this checkpoint was created.
	Timestamp time.Time `json:"timestamp"`

	// Config holds the job configuration, needed for validation during
	// resume: a resumed job must rebuild the identical point set.
	Config JobConfig `json:"config"`
}

// NewCheckpoint assembles a checkpoint from runtime job state.
func NewCheckpoint(jobID string, order []int, energy, initialEnergy, temperature, sizeScale, neighborCount float64, selector string, batch int, config JobConfig) *Checkpoint {
	return &Checkpoint{
		JobID:         jobID,
		Order:         order,
		Energy:        energy,
		InitialEnergy: initialEnergy,
		Temperature:   temperature,
		SizeScale:     sizeScale,
		NeighborCount: neighborCount,
		Selector:      selector,
		Batch:         batch,
		Timestamp:     time.Now(),
		Config:        config,
	}
}

// CheckpointInfo contains checkpoint metadata without the tour permutation.
// Used for listings without loading potentially huge order arrays.
type CheckpointInfo struct {
	JobID     string    `json:"jobId"`
	Energy    float64   `json:"energy"`
	Batch     int       `json:"batch"`
	Vertices  int       `json:"vertices"`
	Selector  string    `json:"selector"`
	Timestamp time.Time `json:"timestamp"`
	RefPath   string    `json:"refPath"`
}

// ToInfo converts a full Checkpoint to metadata.
func (c *Checkpoint) ToInfo() CheckpointInfo {
	return CheckpointInfo{
		JobID:     c.JobID,
		Energy:    c.Energy,
		Batch:     c.Batch,
		Vertices:  len(c.Order),
		Selector:  c.Selector,
		Timestamp: c.Timestamp,
		RefPath:   c.Config.RefPath,
	}
}

// Validate checks that the checkpoint holds a plausible annealing state.
func (c *Checkpoint) Validate() error {
	if c.JobID == "" {
		return &ValidationError{Field: "JobID", Reason: "cannot be empty"}
	}
	if len(c.Order) < 3 {
		return &ValidationError{Field: "Order", Reason: "needs at least 3 vertices for a cycle"}
	}
	seen := make(map[int]bool, len(c.Order))
	for _, v := range c.Order {
		if v < 0 {
			return &ValidationError{Field: "Order", Reason: "contains negative vertex index"}
		}
		if seen[v] {
			return &ValidationError{Field: "Order", Reason: fmt.Sprintf("vertex %d appears twice", v)}
		}
		seen[v] = true
	}
	if c.Energy < 0 {
		return &ValidationError{Field: "Energy", Reason: "cannot be negative"}
	}
	if c.Temperature < 0 {
		return &ValidationError{Field: "Temperature", Reason: "cannot be negative"}
	}
	if c.Batch < 0 {
		return &ValidationError{Field: "Batch", Reason: "cannot be negative"}
	}
	if c.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if c.Selector == "" {
		return &ValidationError{Field: "Selector", Reason: "cannot be empty"}
	}
	if c.Config.RefPath == "" {
		return &ValidationError{Field: "Config.RefPath", Reason: "cannot be empty"}
	}
	if c.Config.StepsPerBatch <= 0 {
		return &ValidationError{Field: "Config.StepsPerBatch", Reason: "must be positive"}
	}
	if c.Config.Batches <= 0 {
		return &ValidationError{Field: "Config.Batches", Reason: "must be positive"}
	}
	return nil
}

// ValidationError represents a checkpoint validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible checks whether this checkpoint can be resumed under config.
// The reference image and its preprocessing must match exactly, otherwise
// the persisted permutation indexes a different point set.
func (c *Checkpoint) IsCompatible(config JobConfig) error {
	if c.Config.RefPath != config.RefPath {
		return &CompatibilityError{Field: "RefPath", Expected: c.Config.RefPath, Actual: config.RefPath}
	}
	if c.Config.Downsample != config.Downsample {
		return &CompatibilityError{
			Field:    "Downsample",
			Expected: fmt.Sprintf("%d", c.Config.Downsample),
			Actual:   fmt.Sprintf("%d", config.Downsample),
		}
	}
	if c.Config.Scale != config.Scale {
		return &CompatibilityError{
			Field:    "Scale",
			Expected: fmt.Sprintf("%g", c.Config.Scale),
			Actual:   fmt.Sprintf("%g", config.Scale),
		}
	}
	return nil
}

// CompatibilityError represents a checkpoint compatibility error.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
