package store

import (
	"encoding/json"
	"testing"
	"time"
)

func TestCheckpoint_JSONSerialization(t *testing.T) {
	original := &Checkpoint{
		JobID:       "test-job-123",
		BestParams:  []float64{1.0, -2.0},
		StepSize:    []float64{0.01, 0.02},
		BestCost:    0.0234,
		InitialCost: 0.5621,
		Iteration:   500,
		Timestamp:   time.Date(2025, 10, 23, 10, 30, 0, 0, time.UTC),
		Config: JobConfig{
			Objective: "quadratic-bowl",
			Dim:       2,
			NCycles:   2,
			Workers:   4,
		},
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Failed to marshal checkpoint: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Marshaled JSON is empty")
	}

	var restored Checkpoint
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Failed to unmarshal checkpoint: %v", err)
	}

	if restored.JobID != original.JobID {
		t.Errorf("JobID mismatch: expected %s, got %s", original.JobID, restored.JobID)
	}
	if restored.BestCost != original.BestCost {
		t.Errorf("BestCost mismatch: expected %f, got %f", original.BestCost, restored.BestCost)
	}
	if restored.InitialCost != original.InitialCost {
		t.Errorf("InitialCost mismatch: expected %f, got %f", original.InitialCost, restored.InitialCost)
	}
	if restored.Iteration != original.Iteration {
		t.Errorf("Iteration mismatch: expected %d, got %d", original.Iteration, restored.Iteration)
	}
	if !restored.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp mismatch: expected %v, got %v", original.Timestamp, restored.Timestamp)
	}
	if len(restored.BestParams) != len(original.BestParams) {
		t.Fatalf("BestParams length mismatch: expected %d, got %d", len(original.BestParams), len(restored.BestParams))
	}
	for i := range original.BestParams {
		if restored.BestParams[i] != original.BestParams[i] {
			t.Errorf("BestParams[%d] mismatch: expected %f, got %f", i, original.BestParams[i], restored.BestParams[i])
		}
	}
	if restored.Config.Objective != original.Config.Objective {
		t.Errorf("Config.Objective mismatch: expected %s, got %s", original.Config.Objective, restored.Config.Objective)
	}
	if restored.Config.Dim != original.Config.Dim {
		t.Errorf("Config.Dim mismatch: expected %d, got %d", original.Config.Dim, restored.Config.Dim)
	}
}

func TestCheckpoint_JSONIndented(t *testing.T) {
	checkpoint := &Checkpoint{
		JobID:       "test-job",
		BestParams:  []float64{1.0, 2.0},
		BestCost:    0.1,
		InitialCost: 0.5,
		Iteration:   100,
		Timestamp:   time.Now(),
		Config: JobConfig{
			Objective: "rosenbrock",
			Dim:       2,
			NCycles:   2,
		},
	}

	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal with indent: %v", err)
	}

	var restored Checkpoint
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Failed to unmarshal indented JSON: %v", err)
	}

	if restored.JobID != checkpoint.JobID {
		t.Errorf("JobID mismatch after indented serialization")
	}
}

func validConfig() JobConfig {
	return JobConfig{Objective: "quadratic-bowl", Dim: 2, NCycles: 2, Workers: 2}
}

func TestCheckpoint_Validate_Valid(t *testing.T) {
	checkpoint := &Checkpoint{
		JobID:       "valid-job",
		BestParams:  []float64{1.0, -2.0},
		BestCost:    0.1,
		InitialCost: 0.5,
		Iteration:   100,
		Timestamp:   time.Now(),
		Config:      validConfig(),
	}

	if err := checkpoint.Validate(); err != nil {
		t.Errorf("Valid checkpoint should not have validation error: %v", err)
	}
}

func TestCheckpoint_Validate_EmptyJobID(t *testing.T) {
	checkpoint := &Checkpoint{
		JobID:       "",
		BestParams:  []float64{1, 2},
		BestCost:    0.1,
		InitialCost: 0.5,
		Iteration:   100,
		Timestamp:   time.Now(),
		Config:      validConfig(),
	}

	err := checkpoint.Validate()
	if err == nil {
		t.Fatal("Expected validation error for empty JobID")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Errorf("Expected ValidationError, got %T", err)
	}
}

func TestCheckpoint_Validate_EmptyBestParams(t *testing.T) {
	checkpoint := &Checkpoint{
		JobID:       "test",
		BestParams:  []float64{},
		BestCost:    0.1,
		InitialCost: 0.5,
		Iteration:   100,
		Timestamp:   time.Now(),
		Config:      validConfig(),
	}

	if err := checkpoint.Validate(); err == nil {
		t.Fatal("Expected validation error for empty BestParams")
	}
}

func TestCheckpoint_Validate_ParamsLengthMismatchesDim(t *testing.T) {
	checkpoint := &Checkpoint{
		JobID:       "test",
		BestParams:  []float64{1, 2, 3},
		BestCost:    0.1,
		InitialCost: 0.5,
		Iteration:   100,
		Timestamp:   time.Now(),
		Config:      validConfig(), // Dim: 2
	}

	if err := checkpoint.Validate(); err == nil {
		t.Fatal("Expected validation error for params length mismatching Dim")
	}
}

func TestCheckpoint_Validate_NegativeValues(t *testing.T) {
	testCases := []struct {
		name        string
		bestCost    float64
		initialCost float64
		iteration   int
	}{
		{"negative cost", -0.1, 0.5, 100},
		{"negative initial cost", 0.1, -0.5, 100},
		{"negative iteration", 0.1, 0.5, -10},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			checkpoint := &Checkpoint{
				JobID:       "test",
				BestParams:  []float64{1, 2},
				BestCost:    tc.bestCost,
				InitialCost: tc.initialCost,
				Iteration:   tc.iteration,
				Timestamp:   time.Now(),
				Config:      validConfig(),
			}

			if err := checkpoint.Validate(); err == nil {
				t.Fatalf("Expected validation error for %s", tc.name)
			}
		})
	}
}

func TestCheckpoint_Validate_ZeroTimestamp(t *testing.T) {
	checkpoint := &Checkpoint{
		JobID:       "test",
		BestParams:  []float64{1, 2},
		BestCost:    0.1,
		InitialCost: 0.5,
		Iteration:   100,
		Timestamp:   time.Time{},
		Config:      validConfig(),
	}

	if err := checkpoint.Validate(); err == nil {
		t.Fatal("Expected validation error for zero timestamp")
	}
}

func TestCheckpoint_Validate_InvalidConfig(t *testing.T) {
	testCases := []struct {
		name   string
		config JobConfig
	}{
		{"empty objective", JobConfig{Objective: "", Dim: 2}},
		{"zero dim", JobConfig{Objective: "quadratic-bowl", Dim: 0}},
		{"negative dim", JobConfig{Objective: "quadratic-bowl", Dim: -1}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			checkpoint := &Checkpoint{
				JobID:       "test",
				BestParams:  []float64{1, 2},
				BestCost:    0.1,
				InitialCost: 0.5,
				Iteration:   100,
				Timestamp:   time.Now(),
				Config:      tc.config,
			}

			if err := checkpoint.Validate(); err == nil {
				t.Fatalf("Expected validation error for %s", tc.name)
			}
		})
	}
}

func TestCheckpoint_IsCompatible_Compatible(t *testing.T) {
	checkpoint := &Checkpoint{Config: JobConfig{Objective: "quadratic-bowl", Dim: 2}}
	config := JobConfig{Objective: "quadratic-bowl", Dim: 2}

	if err := checkpoint.IsCompatible(config); err != nil {
		t.Errorf("Compatible configs should not return error: %v", err)
	}
}

func TestCheckpoint_IsCompatible_DifferentObjective(t *testing.T) {
	checkpoint := &Checkpoint{Config: JobConfig{Objective: "quadratic-bowl", Dim: 2}}
	config := JobConfig{Objective: "rosenbrock", Dim: 2}

	err := checkpoint.IsCompatible(config)
	if err == nil {
		t.Fatal("Expected compatibility error for different Objective")
	}
	if _, ok := err.(*CompatibilityError); !ok {
		t.Errorf("Expected CompatibilityError, got %T", err)
	}
}

func TestCheckpoint_IsCompatible_DifferentDim(t *testing.T) {
	checkpoint := &Checkpoint{Config: JobConfig{Objective: "quadratic-bowl", Dim: 2}}
	config := JobConfig{Objective: "quadratic-bowl", Dim: 3}

	if err := checkpoint.IsCompatible(config); err == nil {
		t.Fatal("Expected compatibility error for different Dim")
	}
}

func TestCheckpointInfo_FromCheckpoint(t *testing.T) {
	checkpoint := &Checkpoint{
		JobID:     "test-job",
		BestCost:  0.123,
		Iteration: 500,
		Timestamp: time.Now(),
		Config:    JobConfig{Objective: "rosenbrock", Dim: 2},
	}

	info := checkpoint.ToInfo()

	if info.JobID != checkpoint.JobID {
		t.Errorf("JobID mismatch: expected %s, got %s", checkpoint.JobID, info.JobID)
	}
	if info.BestCost != checkpoint.BestCost {
		t.Errorf("BestCost mismatch: expected %f, got %f", checkpoint.BestCost, info.BestCost)
	}
	if info.Iteration != checkpoint.Iteration {
		t.Errorf("Iteration mismatch: expected %d, got %d", checkpoint.Iteration, info.Iteration)
	}
	if !info.Timestamp.Equal(checkpoint.Timestamp) {
		t.Errorf("Timestamp mismatch")
	}
	if info.Objective != checkpoint.Config.Objective {
		t.Errorf("Objective mismatch: expected %s, got %s", checkpoint.Config.Objective, info.Objective)
	}
	if info.Dim != checkpoint.Config.Dim {
		t.Errorf("Dim mismatch: expected %d, got %d", checkpoint.Config.Dim, info.Dim)
	}
}

func TestNewCheckpoint(t *testing.T) {
	jobID := "test-job"
	bestParams := []float64{1, 2}
	stepSize := []float64{0.1, 0.1}
	bestCost := 0.123
	initialCost := 0.5
	iteration := 500
	config := validConfig()

	checkpoint := NewCheckpoint(jobID, bestParams, stepSize, bestCost, initialCost, iteration, config)

	if checkpoint.JobID != jobID {
		t.Errorf("JobID mismatch: expected %s, got %s", jobID, checkpoint.JobID)
	}
	if checkpoint.BestCost != bestCost {
		t.Errorf("BestCost mismatch: expected %f, got %f", bestCost, checkpoint.BestCost)
	}
	if checkpoint.Iteration != iteration {
		t.Errorf("Iteration mismatch: expected %d, got %d", iteration, checkpoint.Iteration)
	}
	if checkpoint.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
	if len(checkpoint.BestParams) != len(bestParams) {
		t.Errorf("BestParams length mismatch")
	}
	if len(checkpoint.StepSize) != len(stepSize) {
		t.Errorf("StepSize length mismatch")
	}
}
