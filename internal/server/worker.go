package server

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cwbudde/minuitgrad/internal/gradjob"
	"github.com/cwbudde/minuitgrad/internal/mptm"
	"github.com/cwbudde/minuitgrad/internal/ngk"
	"github.com/cwbudde/minuitgrad/internal/objective"
	"github.com/cwbudde/minuitgrad/internal/store"
)

// runJob drives repeated Differentiate calls for a job in the
// background. With Config.Calls <= 1 this is a single gradient
// evaluation; a larger value keeps re-differentiating at the same
// point, which is useful only for exercising the MPTM/NGK pipeline and
// its monitor over time, never for minimizing anything.
func runJob(ctx context.Context, jm *JobManager, checkpointStore store.Store, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if err := jm.UpdateJob(jobID, func(j *Job) { j.State = StateRunning }); err != nil {
		return err
	}

	spec, err := objective.Lookup(job.Config.Objective)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	slog.Info("Starting gradient run", "job_id", jobID, "objective", job.Config.Objective, "dim", job.Config.Dim)

	strategy := ngk.DefaultStrategy()
	if job.Config.NCycles > 0 {
		strategy.NCycles = job.Config.NCycles
	}
	kernel := ngk.NewKernel(strategy, 1.0)
	kernel.AlwaysMimicMinuit2 = job.Config.MimicMinuit2
	state := ngk.NewState(len(spec.X0))

	mode := mptm.InProcess
	if job.Config.MultiProcess {
		mode = mptm.MultiProcess
	}
	manager := mptm.NewManager(mode, job.Config.Workers)
	if err := manager.Activate(gradjob.Kind, objective.EncodeJobConfig(job.Config.Objective, job.Config.MimicMinuit2)); err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}
	defer manager.Terminate()

	gj := gradjob.New(kernel, spec.Settings, spec.Transforms(), state, spec.F)

	if err := jm.UpdateJob(jobID, func(j *Job) {
		j.X = append([]float64(nil), spec.X0...)
		j.Cost = spec.F(spec.X0)
	}); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		markJobCancelled(jm, jobID)
		return ctx.Err()
	default:
	}

	var traceWriter *store.GradientTraceWriter
	if checkpointStore != nil {
		if fs, ok := checkpointStore.(*store.FSStore); ok {
			if tw, err := store.NewGradientTraceWriter(fs.BaseDir(), jobID); err == nil {
				traceWriter = tw
				defer traceWriter.Close()
			}
		}
	}

	checkpointDone := make(chan struct{})
	if checkpointStore != nil && job.Config.CheckpointInterval > 0 {
		go monitorCheckpoints(ctx, jm, checkpointStore, jobID, checkpointDone)
	}

	calls := job.Config.Calls
	if calls <= 0 {
		calls = 1
	}

	start := time.Now()
	for call := 0; call < calls; call++ {
		select {
		case <-ctx.Done():
			close(checkpointDone)
			markJobCancelled(jm, jobID)
			return ctx.Err()
		default:
		}

		callStart := time.Now()
		if err := manager.UpdateReal(gj, gradjob.EncodeX(spec.X0)); err != nil {
			close(checkpointDone)
			markJobFailed(jm, jobID, err)
			return err
		}
		if err := manager.SubmitCycle(gj, gj.TaskCount()); err != nil {
			close(checkpointDone)
			markJobFailed(jm, jobID, err)
			return err
		}
		callElapsed := time.Since(callStart)

		gradNorm := vectorNorm(state.Grad)
		if err := jm.UpdateJob(jobID, func(j *Job) {
			j.Grad = append([]float64(nil), state.Grad...)
			j.G2 = append([]float64(nil), state.G2...)
			j.Gstep = append([]float64(nil), state.Gstep...)
			j.GradNorm = gradNorm
			j.Cost = state.FVal
			j.CallsCompleted = call + 1
		}); err != nil {
			close(checkpointDone)
			return err
		}

		if traceWriter != nil {
			traceWriter.Write(store.GradientTrace{
				Call:      call,
				Cost:      state.FVal,
				Grad:      append([]float64(nil), state.Grad...),
				G2:        append([]float64(nil), state.G2...),
				Gstep:     append([]float64(nil), state.Gstep...),
				WallTime:  callElapsed,
				Timestamp: time.Now(),
			})
		}

		jm.broadcaster.Broadcast(ProgressEvent{
			JobID:          jobID,
			State:          StateRunning,
			CallsCompleted: call + 1,
			Cost:           state.FVal,
			GradNorm:       gradNorm,
			Timestamp:      time.Now(),
		})
	}
	close(checkpointDone)
	if traceWriter != nil {
		traceWriter.Flush()
	}
	elapsed := time.Since(start)

	select {
	case <-ctx.Done():
		markJobCancelled(jm, jobID)
		return ctx.Err()
	default:
	}

	endTime := time.Now()
	if err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.EndTime = &endTime
	}); err != nil {
		return err
	}

	slog.Info("Gradient run completed",
		"job_id", jobID,
		"elapsed", elapsed,
		"calls", calls,
		"grad_norm", vectorNorm(state.Grad),
	)

	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:          jobID,
		State:          StateCompleted,
		CallsCompleted: calls,
		Cost:           state.FVal,
		GradNorm:       vectorNorm(state.Grad),
		Timestamp:      time.Now(),
	})

	return nil
}

func vectorNorm(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	slog.Info("Job cancelled", "job_id", jobID)
}

// monitorCheckpoints periodically saves checkpoints during a run.
func monitorCheckpoints(ctx context.Context, jm *JobManager, checkpointStore store.Store, jobID string, done chan struct{}) {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return
	}

	interval := time.Duration(job.Config.CheckpointInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := saveCheckpoint(jm, checkpointStore, jobID); err != nil {
				slog.Error("Failed to save checkpoint", "job_id", jobID, "error", err)
			}
		}
	}
}

// saveCheckpoint saves a checkpoint for the given job.
func saveCheckpoint(jm *JobManager, checkpointStore store.Store, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if len(job.X) == 0 {
		slog.Debug("Skipping checkpoint, no state yet", "job_id", jobID)
		return nil
	}

	checkpoint := store.NewCheckpoint(
		jobID,
		job.X,
		job.Gstep,
		job.Cost,
		job.Cost,
		job.CallsCompleted,
		job.Config,
	)

	if err := checkpointStore.SaveCheckpoint(jobID, checkpoint); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	slog.Info("Checkpoint saved", "job_id", jobID, "calls", job.CallsCompleted, "grad_norm", job.GradNorm)
	return nil
}
