package main

import (
	"fmt"
	"log/slog"

	"github.com/cwbudde/minuitgrad/internal/gradjob"
	"github.com/cwbudde/minuitgrad/internal/mptm"
	"github.com/cwbudde/minuitgrad/internal/ngk"
	"github.com/cwbudde/minuitgrad/internal/objective"
	"github.com/cwbudde/minuitgrad/internal/store"
	"github.com/spf13/cobra"
)

var (
	resumeDataDir string
	resumeWorkers int
)

var resumeCmd = &cobra.Command{
	Use:   "resume [job-id]",
	Short: "Re-differentiate from a saved checkpoint's point and step sizes",
	Long: `Loads a checkpoint and runs one more Differentiate call seeded with its
saved parameter vector and NGK step sizes, instead of restarting the
adaptive step search from scratch. Since there is no minimizer, "resume"
here means continuing the gradient refinement at the checkpoint's fixed
point, not continuing a descent.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeDataDir, "data-dir", "./data", "Base directory for checkpoint storage")
	resumeCmd.Flags().IntVar(&resumeWorkers, "workers", 0, "Worker count (0 = one per CPU core)")

	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	jobID := args[0]

	checkpointStore, err := store.NewFSStore(resumeDataDir)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint store: %w", err)
	}

	checkpoint, err := checkpointStore.LoadCheckpoint(jobID)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}

	spec, err := objective.Lookup(checkpoint.Config.Objective)
	if err != nil {
		return err
	}

	if err := checkpoint.IsCompatible(store.JobConfig{Objective: spec.Name, Dim: len(spec.X0)}); err != nil {
		return fmt.Errorf("checkpoint incompatible with current objective: %w", err)
	}

	kernel := ngk.NewKernel(ngk.DefaultStrategy(), 1.0)
	if checkpoint.Config.NCycles > 0 {
		kernel.Strategy.NCycles = checkpoint.Config.NCycles
	}

	state := ngk.NewState(len(checkpoint.BestParams))
	if len(checkpoint.StepSize) == state.Len() {
		copy(state.Gstep, checkpoint.StepSize)
	}

	gj := gradjob.New(kernel, spec.Settings, spec.Transforms(), state, spec.F)

	manager := mptm.NewManager(mptm.InProcess, resumeWorkers)
	if err := manager.Activate(gradjob.Kind, objective.EncodeJobConfig(spec.Name, false)); err != nil {
		return fmt.Errorf("failed to activate manager: %w", err)
	}
	defer manager.Terminate()

	if err := manager.UpdateReal(gj, gradjob.EncodeX(checkpoint.BestParams)); err != nil {
		return fmt.Errorf("update_real failed: %w", err)
	}
	if err := manager.SubmitCycle(gj, gj.TaskCount()); err != nil {
		return fmt.Errorf("submit_cycle failed: %w", err)
	}

	slog.Info("Resumed gradient run", "job_id", jobID, "objective", spec.Name)
	fmt.Printf("x=%v cost=%.6f\n", checkpoint.BestParams, state.FVal)
	fmt.Printf("grad=%v\n", state.Grad)
	fmt.Printf("g2=%v\n", state.G2)
	fmt.Printf("gstep=%v\n", state.Gstep)

	return nil
}
