package store

import (
	"fmt"
	"time"
)

// JobConfig holds configuration for a minimization run (checkpoint copy).
// This avoids import cycles with the server package.
type JobConfig struct {
	Objective          string `json:"objective"` // name registered in internal/objective
	Dim                int    `json:"dim"`
	NCycles            int    `json:"ncycles"` // ngk.Strategy.NCycles: adaptive cycles per Differentiate call
	Workers            int    `json:"workers"`
	MultiProcess       bool   `json:"multiProcess"`
	Calls              int    `json:"calls,omitempty"`              // repeated Differentiate calls at the same point (0 = 1, a single-shot demo)
	CheckpointInterval int    `json:"checkpointInterval,omitempty"` // checkpoint every N seconds (0 = disabled)
	MimicMinuit2       bool   `json:"mimicMinuit2,omitempty"`       // ngk.Kernel.AlwaysMimicMinuit2: internal-space steps, f evaluated at their external images
}

// Checkpoint represents a saved minimization state that can be resumed
// later. All fields are serialized to JSON for persistence.
//
// The checkpoint saves the BEST PARAMETERS and the minimizer's strategy
// state (step sizes only; second derivatives are not saved), nor the NGK kernel's
// per-parameter oscillation counters. Resuming restarts the adaptive
// step search at the saved StepSize rather than replaying the first
// few adjustment cycles, which only costs a handful of extra gradient
// evaluations.
type Checkpoint struct {
	// JobID is the unique identifier for this minimization run
	JobID string `json:"jobId"`

	// BestParams are the (transformed-space) parameters with the lowest
	// cost seen so far
	BestParams []float64 `json:"bestParams"`

	// BestCost is the objective value at BestParams
	BestCost float64 `json:"bestCost"`

	// InitialCost is the cost at the run's starting point, for tracking
	// improvement
	InitialCost float64 `json:"initialCost"`

	// StepSize carries the NGK kernel's per-parameter step size so a
	// resumed run doesn't restart the adaptive search from scratch
	StepSize []float64 `json:"stepSize,omitempty"`

	// Iteration is the current cycle count when this checkpoint was created
	Iteration int `json:"iteration"`

	// Timestamp records when this checkpoint was created
	Timestamp time.Time `json:"timestamp"`

	// Config holds the job configuration, needed for validation during resume.
	Config JobConfig `json:"config"`
}

// CheckpointInfo contains metadata about a checkpoint without the full parameter data.
// Used for listing checkpoints efficiently without loading large parameter arrays.
type CheckpointInfo struct {
	// JobID is the unique identifier for this checkpoint
	JobID string `json:"jobId"`

	// BestCost is the cost achieved at the time of checkpointing
	BestCost float64 `json:"bestCost"`

	// Iteration is the iteration count at checkpoint time
	Iteration int `json:"iteration"`

	// Timestamp records when this checkpoint was created
	Timestamp time.Time `json:"timestamp"`

	// Objective is the name of the registered objective function
	Objective string `json:"objective"`

	// Dim is the dimensionality of the parameter space
	Dim int `json:"dim"`
}

// NewCheckpoint creates a checkpoint from job state.
// This is a helper for converting runtime job state to a persistable checkpoint.
func NewCheckpoint(jobID string, bestParams, stepSize []float64, bestCost, initialCost float64, iteration int, config JobConfig) *Checkpoint {
	return &Checkpoint{
		JobID:       jobID,
		BestParams:  bestParams,
		StepSize:    stepSize,
		BestCost:    bestCost,
		InitialCost: initialCost,
		Iteration:   iteration,
		Timestamp:   time.Now(),
		Config:      config,
	}
}

// ToInfo converts a full Checkpoint to CheckpointInfo (metadata only).
func (c *Checkpoint) ToInfo() CheckpointInfo {
	return CheckpointInfo{
		JobID:     c.JobID,
		BestCost:  c.BestCost,
		Iteration: c.Iteration,
		Timestamp: c.Timestamp,
		Objective: c.Config.Objective,
		Dim:       c.Config.Dim,
	}
}

// Validate checks if the checkpoint has valid data.
// Returns an error if any required field is missing or invalid.
func (c *Checkpoint) Validate() error {
	if c.JobID == "" {
		return &ValidationError{Field: "JobID", Reason: "cannot be empty"}
	}
	if len(c.BestParams) == 0 {
		return &ValidationError{Field: "BestParams", Reason: "cannot be empty"}
	}
	if c.BestCost < 0 {
		return &ValidationError{Field: "BestCost", Reason: "cannot be negative"}
	}
	if c.InitialCost < 0 {
		return &ValidationError{Field: "InitialCost", Reason: "cannot be negative"}
	}
	if c.Iteration < 0 {
		return &ValidationError{Field: "Iteration", Reason: "cannot be negative"}
	}
	if c.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if c.Config.Objective == "" {
		return &ValidationError{Field: "Config.Objective", Reason: "cannot be empty"}
	}
	if c.Config.Dim <= 0 {
		return &ValidationError{Field: "Config.Dim", Reason: "must be positive"}
	}
	if len(c.BestParams) != c.Config.Dim {
		return &ValidationError{
			Field:  "BestParams",
			Reason: fmt.Sprintf("length mismatch: expected %d params for dim %d", c.Config.Dim, c.Config.Dim),
		}
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

// IsCompatible checks if this checkpoint can be resumed with the given config.
// Returns an error if the configs are incompatible.
func (c *Checkpoint) IsCompatible(config JobConfig) error {
	if c.Config.Objective != config.Objective {
		return &CompatibilityError{
			Field:    "Objective",
			Expected: c.Config.Objective,
			Actual:   config.Objective,
		}
	}
	if c.Config.Dim != config.Dim {
		return &CompatibilityError{
			Field:    "Dim",
			Expected: fmt.Sprintf("%d", c.Config.Dim),
			Actual:   fmt.Sprintf("%d", config.Dim),
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
