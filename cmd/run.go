package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cwbudde/minuitgrad/internal/gradjob"
	"github.com/cwbudde/minuitgrad/internal/mptm"
	"github.com/cwbudde/minuitgrad/internal/ngk"
	"github.com/cwbudde/minuitgrad/internal/objective"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	runObjective     string
	runWorkers       int
	runMultiProcess  bool
	runStrategyPath  string
	runMimicMinuit2  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single gradient evaluation against a named objective",
	Long: `Evaluates the NGK kernel's Differentiate once at a named objective's
starting point and prints the resulting gradient, curvature, and step
triple. This is a demo of the gradient pipeline, not a minimizer: it
does not iterate toward a minimum.`,
	RunE: runGradientDemo,
}

func init() {
	runCmd.Flags().StringVar(&runObjective, "objective", "quadratic-bowl", fmt.Sprintf("Objective to differentiate (known: %v)", objective.Names()))
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "Worker count (0 = one per CPU core)")
	runCmd.Flags().BoolVar(&runMultiProcess, "multi-process", false, "Use the re-exec'd multi-process MPTM backend instead of the in-process goroutine pool")
	runCmd.Flags().StringVar(&runStrategyPath, "config", "", "Optional YAML file overriding the NGK strategy (stepTolerance, gradTolerance, ncycles)")
	runCmd.Flags().BoolVar(&runMimicMinuit2, "mimic-minuit2", false, "Take steps in internal parameter space but evaluate finite differences in external space, matching Minuit2's own stepping behavior")

	rootCmd.AddCommand(runCmd)
}

// strategyFile mirrors ngk.Strategy for YAML decoding.
type strategyFile struct {
	StepTolerance float64 `yaml:"stepTolerance"`
	GradTolerance float64 `yaml:"gradTolerance"`
	NCycles       int     `yaml:"ncycles"`
}

func loadStrategy(path string) (ngk.Strategy, error) {
	strategy := ngk.DefaultStrategy()
	if path == "" {
		return strategy, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return strategy, fmt.Errorf("failed to read strategy config: %w", err)
	}

	var file strategyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return strategy, fmt.Errorf("failed to parse strategy config: %w", err)
	}

	if file.StepTolerance > 0 {
		strategy.StepTolerance = file.StepTolerance
	}
	if file.GradTolerance > 0 {
		strategy.GradTolerance = file.GradTolerance
	}
	if file.NCycles > 0 {
		strategy.NCycles = file.NCycles
	}
	return strategy, nil
}

func runGradientDemo(cmd *cobra.Command, args []string) error {
	spec, err := objective.Lookup(runObjective)
	if err != nil {
		return err
	}

	strategy, err := loadStrategy(runStrategyPath)
	if err != nil {
		return err
	}

	slog.Info("Differentiating", "objective", spec.Name, "dim", len(spec.X0), "multi_process", runMultiProcess)

	kernel := ngk.NewKernel(strategy, 1.0)
	kernel.AlwaysMimicMinuit2 = runMimicMinuit2
	state := ngk.NewState(len(spec.X0))
	gj := gradjob.New(kernel, spec.Settings, spec.Transforms(), state, spec.F)

	mode := mptm.InProcess
	if runMultiProcess {
		mode = mptm.MultiProcess
	}
	manager := mptm.NewManager(mode, runWorkers)
	if err := manager.Activate(gradjob.Kind, objective.EncodeJobConfig(spec.Name, runMimicMinuit2)); err != nil {
		return fmt.Errorf("failed to activate manager: %w", err)
	}
	defer manager.Terminate()

	start := time.Now()
	if err := manager.UpdateReal(gj, gradjob.EncodeX(spec.X0)); err != nil {
		return fmt.Errorf("update_real failed: %w", err)
	}
	if err := manager.SubmitCycle(gj, gj.TaskCount()); err != nil {
		return fmt.Errorf("submit_cycle failed: %w", err)
	}
	elapsed := time.Since(start)

	fmt.Printf("objective=%s x0=%v cost=%.6f\n", spec.Name, spec.X0, state.FVal)
	fmt.Printf("grad=%v\n", state.Grad)
	fmt.Printf("g2=%v\n", state.G2)
	fmt.Printf("gstep=%v\n", state.Gstep)
	fmt.Printf("elapsed=%s\n", elapsed)

	return nil
}
