// Package gradjob wires internal/ngk's per-parameter gradient
// refinement into the job.Job interface, making the kernel's serial
// Differentiate loop dispatchable across MPTM's worker pool: task i is
// DifferentiateOne for parameter i.
package gradjob

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cwbudde/minuitgrad/internal/job"
	"github.com/cwbudde/minuitgrad/internal/mptm"
	"github.com/cwbudde/minuitgrad/internal/ngk"
	"github.com/cwbudde/minuitgrad/internal/xform"
)

// Kind names this job type for the multi-process JobFactory registry.
const Kind = "gradient"

// GradientJob adapts a *ngk.Kernel plus its parameter settings and
// transforms into the job.Job interface: TaskCount is the number of
// free parameters, EvaluateTask(i) runs DifferentiateOne for
// parameter i, and ApplyResults writes the per-parameter grad/g2/gstep
// triples back into the shared *ngk.State once every task has reported.
type GradientJob struct {
	kernel     *ngk.Kernel
	settings   []ngk.ParameterSetting
	transforms []xform.Transform
	state      *ngk.State
	f          ngk.Func

	call *ngk.Call
}

// New builds a GradientJob around an already-constructed kernel/state,
// for callers running the InProcess backend where f is an ordinary Go
// closure. Multi-process use goes through the mptm.JobFactory that
// package objective registers for Kind, which rebuilds the job from an
// objective name, since a closure cannot cross a process boundary.
func New(kernel *ngk.Kernel, settings []ngk.ParameterSetting, transforms []xform.Transform, state *ngk.State, f ngk.Func) *GradientJob {
	return &GradientJob{
		kernel:     kernel,
		settings:   settings,
		transforms: transforms,
		state:      state,
		f:          f,
	}
}

// TaskCount reports one task per free parameter.
func (g *GradientJob) TaskCount() int { return g.state.Len() }

// UpdateReal decodes the current parameter vector x and precomputes
// the per-cycle constants (dfmin, vrysml) every parameter's task reads,
// the values a full cycle only needs to compute once.
func (g *GradientJob) UpdateReal(payload []byte) error {
	n := len(payload) / 8
	if n != g.state.Len() {
		return fmt.Errorf("gradjob: update_real payload has %d floats, want %d", n, g.state.Len())
	}
	x := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = math.Float64frombits(binary.LittleEndian.Uint64(payload[i*8 : i*8+8]))
	}
	g.call = g.kernel.PrepareCall(x, g.f)
	g.state.FVal = g.call.FVal
	return nil
}

// EvaluateTask runs DifferentiateOne for parameter task and encodes
// the resulting grad/g2/gstep triple.
func (g *GradientJob) EvaluateTask(task int) ([]byte, error) {
	if g.call == nil {
		return nil, fmt.Errorf("gradjob: EvaluateTask called before UpdateReal")
	}
	// DifferentiateOne mutates g.state in place; workers running in
	// separate goroutines of the InProcess backend each need their own
	// scratch state to stay race-free, so clone before calling and
	// only the final encoded numbers escape this task.
	local := g.state.Clone()
	g.kernel.DifferentiateOne(g.call, g.settings, g.transforms, local, g.f, task)

	buf := make([]byte, 24)
	binary.LittleEndian.PutUint64(buf[0:8], math.Float64bits(local.Grad[task]))
	binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(local.G2[task]))
	binary.LittleEndian.PutUint64(buf[16:24], math.Float64bits(local.Gstep[task]))
	return buf, nil
}

// ApplyResults writes every task's grad/g2/gstep triple back into the
// shared state, indexed by task/parameter number.
func (g *GradientJob) ApplyResults(results [][]byte) error {
	for i, r := range results {
		if len(r) != 24 {
			return fmt.Errorf("gradjob: result %d has %d bytes, want 24", i, len(r))
		}
		g.state.Grad[i] = math.Float64frombits(binary.LittleEndian.Uint64(r[0:8]))
		g.state.G2[i] = math.Float64frombits(binary.LittleEndian.Uint64(r[8:16]))
		g.state.Gstep[i] = math.Float64frombits(binary.LittleEndian.Uint64(r[16:24]))
	}
	return nil
}

// ClearResults is a no-op: ApplyResults overwrites every slot it is
// handed, so there is no intermediate aggregation buffer to reset.
func (g *GradientJob) ClearResults() {}

// CallDoubleConst answers a call_double_const_method request for the
// one scalar a gradient job meaningfully exposes outside its
// task/result cycle: the objective's value at the point UpdateReal
// last prepared.
func (g *GradientJob) CallDoubleConst(key string) (float64, error) {
	if key != "cost" {
		return 0, fmt.Errorf("gradjob: no double-const method %q (known: cost)", key)
	}
	if g.call == nil {
		return 0, fmt.Errorf("gradjob: CallDoubleConst(%q) called before UpdateReal", key)
	}
	return g.call.FVal, nil
}

var _ job.DoubleConstProvider = (*GradientJob)(nil)

// EncodeX frames a parameter vector for Manager.UpdateReal.
func EncodeX(x []float64) []byte {
	buf := make([]byte, len(x)*8)
	for i, v := range x {
		binary.LittleEndian.PutUint64(buf[i*8:i*8+8], math.Float64bits(v))
	}
	return buf
}

var _ job.Job = (*GradientJob)(nil)

func init() {
	// Registering a no-op factory documents the multi-process
	// extension point without pretending a closure-based objective can
	// cross a process boundary; real multi-process use relies on the
	// factory package objective registers for Kind, which replaces this
	// one and rebuilds the job from an objective name.
	mptm.RegisterJobFactory(Kind, func(config []byte) (job.Job, error) {
		return nil, fmt.Errorf("gradjob: multi-process reconstruction requires the objective package's job factory, got config %q", config)
	})
}
