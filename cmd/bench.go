package main

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cwbudde/minuitgrad/internal/gradjob"
	"github.com/cwbudde/minuitgrad/internal/job"
	"github.com/cwbudde/minuitgrad/internal/mptm"
	"github.com/cwbudde/minuitgrad/internal/ngk"
	"github.com/cwbudde/minuitgrad/internal/objective"
	"github.com/cwbudde/minuitgrad/internal/opt"
	"github.com/cwbudde/minuitgrad/internal/xform"
	"github.com/spf13/cobra"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Exercise the multi-process parity and task-manager smoke scenarios",
	Long: `Runs the gradient pipeline's two deterministic end-to-end scenarios
both serially and under the in-process worker pool at N_workers in
{1, 2, 3}, and reports whether every run matches bytewise. The gradient
scenario additionally runs under the re-exec'd multi-process backend,
since that is the topology the task manager actually targets. This is
an executable check, not a benchmark in the timing sense, and the
mayfly run at the end is a stochastic baseline shown for comparison
only: it never substitutes for a minimizer driver.`,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)
}

func runBench(cmd *cobra.Command, args []string) error {
	if err := benchTaskManagerSmoke(); err != nil {
		return err
	}
	fmt.Println()
	if err := benchGradientParity(); err != nil {
		return err
	}
	fmt.Println()
	benchMayflyBaseline()
	return nil
}

// squareBiasJob computes result[i] = x[i]^2 + b for each task i,
// keeping every task's result instead of reducing them, so callers can
// compare the full output vector bytewise across worker counts.
type squareBiasJob struct {
	x       []float64
	bias    float64
	results []float64
}

func (j *squareBiasJob) TaskCount() int { return len(j.x) }

func (j *squareBiasJob) UpdateReal(payload []byte) error {
	if len(payload) != len(j.x)*8 {
		return fmt.Errorf("squareBiasJob: malformed payload: %d bytes for %d params", len(payload), len(j.x))
	}
	for i := range j.x {
		j.x[i] = math.Float64frombits(binary.LittleEndian.Uint64(payload[i*8 : i*8+8]))
	}
	return nil
}

func (j *squareBiasJob) EvaluateTask(task int) ([]byte, error) {
	v := j.x[task]*j.x[task] + j.bias
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
	return buf, nil
}

func (j *squareBiasJob) ApplyResults(results [][]byte) error {
	j.results = make([]float64, len(results))
	for i, r := range results {
		j.results[i] = math.Float64frombits(binary.LittleEndian.Uint64(r))
	}
	return nil
}

func (j *squareBiasJob) ClearResults() { j.results = nil }

const squareBiasKind = "bench-square-bias"

func init() {
	mptm.RegisterJobFactory(squareBiasKind, func(config []byte) (job.Job, error) {
		return &squareBiasJob{x: make([]float64, 4)}, nil
	})
}

func benchTaskManagerSmoke() error {
	fmt.Println("task-manager smoke: result[i] = x[i]^2 + b, x=(0,1,2,3), b=3")
	want := []float64{3, 4, 7, 12}
	x := []byte{}
	for _, v := range []float64{0, 1, 2, 3} {
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
		x = append(x, buf...)
	}

	for _, workers := range []int{1, 2, 3} {
		j := &squareBiasJob{x: []float64{0, 1, 2, 3}, bias: 3}
		m := mptm.NewManager(mptm.InProcess, workers)
		if err := m.Activate(squareBiasKind, nil); err != nil {
			return fmt.Errorf("activate (workers=%d): %w", workers, err)
		}
		if err := m.UpdateReal(j, x); err != nil {
			m.Terminate()
			return fmt.Errorf("update_real (workers=%d): %w", workers, err)
		}
		if err := m.SubmitCycle(j, j.TaskCount()); err != nil {
			m.Terminate()
			return fmt.Errorf("submit_cycle (workers=%d): %w", workers, err)
		}
		m.Terminate()

		match := len(j.results) == len(want)
		for i := 0; match && i < len(want); i++ {
			match = j.results[i] == want[i]
		}
		fmt.Printf("  workers=%d result=%v match=%v\n", workers, j.results, match)
		if !match {
			return fmt.Errorf("task-manager smoke mismatch at workers=%d: got %v, want %v", workers, j.results, want)
		}
	}
	return nil
}

func benchGradientParity() error {
	fmt.Println("gradient parity: quadratic-bowl gradient at x0")
	spec, err := objective.Lookup("quadratic-bowl")
	if err != nil {
		return err
	}
	n := len(spec.X0)
	transforms := make([]xform.Transform, n)
	for i := range transforms {
		transforms[i] = xform.Unbounded()
	}
	strategy := ngk.DefaultStrategy()

	serial := ngk.NewState(n)
	serialKernel := ngk.NewKernel(strategy, 1.0)
	serialKernel.Differentiate(append([]float64(nil), spec.X0...), spec.Settings, transforms, serial, spec.F)
	fmt.Printf("  serial   grad=%v g2=%v gstep=%v\n", serial.Grad, serial.G2, serial.Gstep)

	fmt.Println("  in-process worker pool:")
	if err := runGradientParityMode(mptm.InProcess, spec, transforms, strategy, serial); err != nil {
		return err
	}

	fmt.Println("  re-exec'd multi-process backend:")
	if err := runGradientParityMode(mptm.MultiProcess, spec, transforms, strategy, serial); err != nil {
		return err
	}
	return nil
}

// runGradientParityMode runs the quadratic-bowl gradient at spec.X0
// through mode's backend at N_workers in {1,2,3} and checks every run
// matches the serial reference bytewise. MultiProcess exercises the
// re-exec'd master/queue/worker topology end to end (spawnChild,
// runQueueProcess, and the worker's own re-exec'd process), not just
// the in-process goroutine pool: only this leg actually reaches that
// code path, which cmd/run.go's --multi-process flag otherwise leaves
// untested by anything but manual invocation.
func runGradientParityMode(mode mptm.Mode, spec objective.Spec, transforms []xform.Transform, strategy ngk.Strategy, serial *ngk.State) error {
	n := len(spec.X0)
	for _, workers := range []int{1, 2, 3} {
		kernel := ngk.NewKernel(strategy, 1.0)
		state := ngk.NewState(n)
		gj := gradjob.New(kernel, spec.Settings, transforms, state, spec.F)

		m := mptm.NewManager(mode, workers)
		if err := m.Activate(gradjob.Kind, objective.EncodeJobConfig(spec.Name, false)); err != nil {
			return fmt.Errorf("activate (workers=%d): %w", workers, err)
		}
		if err := m.UpdateReal(gj, gradjob.EncodeX(spec.X0)); err != nil {
			m.Terminate()
			return fmt.Errorf("update_real (workers=%d): %w", workers, err)
		}
		if err := m.SubmitCycle(gj, gj.TaskCount()); err != nil {
			m.Terminate()
			return fmt.Errorf("submit_cycle (workers=%d): %w", workers, err)
		}
		m.Terminate()

		match := true
		for i := 0; i < n; i++ {
			if state.Grad[i] != serial.Grad[i] || state.G2[i] != serial.G2[i] || state.Gstep[i] != serial.Gstep[i] {
				match = false
			}
		}
		fmt.Printf("    workers=%d grad=%v g2=%v gstep=%v match=%v\n", workers, state.Grad, state.G2, state.Gstep, match)
		if !match {
			return fmt.Errorf("gradient parity mismatch at workers=%d", workers)
		}
	}
	return nil
}

// benchMayflyBaseline runs the external mayfly optimizer on the same
// quadratic-bowl objective as a stochastic point of comparison. It has
// nothing to do with NGK/MPTM and does not feed back into them; it
// illustrates what this module deliberately does not provide.
func benchMayflyBaseline() {
	fmt.Println("mayfly baseline (illustration only, not a minimizer driver):")
	spec, err := objective.Lookup("quadratic-bowl")
	if err != nil {
		fmt.Printf("  skipped: %v\n", err)
		return
	}
	n := len(spec.X0)
	lower := make([]float64, n)
	upper := make([]float64, n)
	for i := range lower {
		lower[i] = -10
		upper[i] = 10
	}

	optimizer := opt.NewMayfly(200, 30, 1)
	best, cost := optimizer.Run(spec.F, lower, upper, n)
	fmt.Printf("  best=%v cost=%.6f\n", best, cost)
}
