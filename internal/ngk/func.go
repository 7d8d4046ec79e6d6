package ngk

// Func is the external likelihood evaluator contract: a pure callable
// safe to invoke from any process after fork, with no global mutable
// state beyond the registered job's own fields.
type Func func(x []float64) float64

// CarrySource is implemented by likelihood evaluators that accumulate
// their sum with Kahan compensation and want the lost low-order bits
// (the "Kahan carry") propagated alongside the value. It is optional;
// the kernel never requires it.
type CarrySource interface {
	Carry() float64
}
