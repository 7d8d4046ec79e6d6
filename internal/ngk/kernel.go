package ngk

import (
	"math"

	"github.com/cwbudde/minuitgrad/internal/xform"
)

// Strategy bundles the per-call tuning knobs of the adaptive step
// search.
type Strategy struct {
	StepTolerance float64
	GradTolerance float64
	NCycles       int
}

// DefaultStrategy mirrors Minuit2's default strategy-1 numbers.
func DefaultStrategy() Strategy {
	return Strategy{StepTolerance: 0.5, GradTolerance: 0.1, NCycles: 2}
}

// Kernel computes central-difference gradients with adaptive step
// control around a current point. It holds no per-call state; all
// mutable state lives in the caller-owned *State, which is what makes a
// single Kernel safe to share across worker processes via separate
// copies seeded identically at fork time.
type Kernel struct {
	Precision xform.Precision
	Strategy  Strategy
	Up        float64

	// AlwaysMimicMinuit2, when true, takes steps in internal parameter
	// space and evaluates f at the external images (Int2Ext) of the
	// perturbed points. The difference quotient is taken over the
	// internal step, so grad and g2 come out in internal space
	// directly; no Jacobian (DInt2Ext) conversion is applied.
	AlwaysMimicMinuit2 bool
}

// NewKernel constructs a kernel with the process's machine precision and
// the given strategy/error level.
func NewKernel(strategy Strategy, up float64) *Kernel {
	return &Kernel{
		Precision: xform.MachinePrecision(),
		Strategy:  strategy,
		Up:        up,
	}
}

// Call carries the values that are precomputed once per call and
// shared read-only across every parameter's differentiation, whether
// run serially or distributed across MPTM workers.
type Call struct {
	X      []float64
	FVal   float64
	Dfmin  float64
	Vrysml float64
}

// PrepareCall evaluates f once at x and derives dfmin/vrysml, the
// per-call constants every parameter's Differentiate step reads.
func (k *Kernel) PrepareCall(x []float64, f Func) *Call {
	fVal := f(x)
	dfmin := 8 * k.Precision.Eps2 * (math.Abs(fVal) + k.Up)
	vrysml := 8 * k.Precision.Eps * k.Precision.Eps
	return &Call{X: x, FVal: fVal, Dfmin: dfmin, Vrysml: vrysml}
}

// Differentiate refines the gradient triple for every free parameter in
// ascending order; this is the single-process path. MPTM distributes
// the per-parameter work of DifferentiateOne instead of calling this
// directly.
func (k *Kernel) Differentiate(x []float64, settings []ParameterSetting, transforms []xform.Transform, state *State, f Func) {
	call := k.PrepareCall(x, f)
	state.FVal = call.FVal
	for i := range state.Grad {
		k.DifferentiateOne(call, settings, transforms, state, f, i)
	}
}

// DifferentiateOne runs up to NCycles adaptive central-difference
// cycles for parameter i, following Minuit2's step-search algorithm
// exactly. It is the per-task unit MPTM parallelizes: task_id ==
// parameter index i.
func (k *Kernel) DifferentiateOne(call *Call, settings []ParameterSetting, transforms []xform.Transform, state *State, f Func, i int) {
	x := call.X
	xi := x[i]
	limited := settings[i].HasLimits()

	grad := state.Grad[i]
	g2 := state.G2[i]
	gstep := state.Gstep[i]

	stepPrev := 0.0

	for cycle := 0; cycle < k.Strategy.NCycles; cycle++ {
		// 1. Optimal step by curvature.
		epspri := k.Precision.Eps2 + math.Abs(grad)*k.Precision.Eps2
		opt := math.Sqrt(call.Dfmin / (math.Abs(g2) + epspri))

		// 2. Candidate step.
		step := math.Max(opt, math.Abs(0.1*gstep))

		// 3. Clamp above for limited parameters.
		if limited && step > 0.5 {
			step = 0.5
		}

		// 4. Clamp above by runaway-growth guard.
		maxStep := 10 * math.Abs(gstep)
		if maxStep > 0 && step > maxStep {
			step = maxStep
		}

		// 5. Clamp below by underflow guard.
		minStep := math.Max(call.Vrysml, 8*math.Abs(k.Precision.Eps2*xi))
		if step < minStep {
			step = minStep
		}

		if step == 0 {
			panic("ngk: step clamped to zero, violates vrysml > 0 invariant")
		}

		// 6. Step-size convergence test.
		if math.Abs((step-stepPrev)/step) < k.Strategy.StepTolerance {
			break
		}

		// 7. Commit the step.
		gstep = step
		stepPrev = step

		// 8. Evaluate fs1, fs2 around x_i +/- step, restoring x_i after.
		var fs1, fs2 float64
		if k.AlwaysMimicMinuit2 && transforms != nil {
			fs1, fs2 = k.evalTransformed(x, transforms, i, step, f)
		} else {
			fs1, fs2 = k.evalDirect(x, i, step, f)
		}

		// 9. Central-difference derivative and curvature.
		gradPrev := grad
		grad = (fs1 - fs2) / (2 * step)
		g2 = (fs1 + fs2 - 2*call.FVal) / (step * step)

		// 10. Derivative convergence test.
		if math.Abs(gradPrev-grad)/(math.Abs(grad)+call.Dfmin/step) < k.Strategy.GradTolerance {
			state.Grad[i], state.G2[i], state.Gstep[i] = grad, g2, gstep
			return
		}
	}

	state.Grad[i], state.G2[i], state.Gstep[i] = grad, g2, gstep
}

// evalDirect evaluates f with x_i perturbed directly in the coordinate
// space x is expressed in (internal space, unless the caller has
// already converted to external).
func (k *Kernel) evalDirect(x []float64, i int, step float64, f Func) (fs1, fs2 float64) {
	orig := x[i]
	x[i] = orig + step
	fs1 = f(x)
	x[i] = orig - step
	fs2 = f(x)
	x[i] = orig
	return fs1, fs2
}

// evalTransformed evaluates f by perturbing internal-space x_i, mapping
// every coordinate (not just i) to external space for the function
// call through its own transform, per AlwaysMimicMinuit2. A parameter
// other than i that carries limits must still be converted, or f would
// see it in internal units while expecting external ones.
func (k *Kernel) evalTransformed(x []float64, transforms []xform.Transform, i int, step float64, f Func) (fs1, fs2 float64) {
	origInternal := x[i]

	extX := make([]float64, len(x))
	for j, tr := range transforms {
		extX[j] = tr.Int2Ext(x[j])
	}

	extX[i] = transforms[i].Int2Ext(origInternal + step)
	fs1 = f(extX)

	extX[i] = transforms[i].Int2Ext(origInternal - step)
	fs2 = f(extX)

	x[i] = origInternal
	return fs1, fs2
}
