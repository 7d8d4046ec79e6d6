// Package xform implements the bijective mapping between bounded "external"
// parameter space and unbounded "internal" space used by the gradient
// kernel, plus the machine-precision constants the kernel is built on.
package xform

import "math"

// Precision holds the machine-epsilon constants computed once for a
// process. Eps is the machine epsilon; Eps2 is its square root, the
// noise floor the gradient kernel clamps steps against.
type Precision struct {
	Eps  float64
	Eps2 float64
}

var machinePrecision = computePrecision()

func computePrecision() Precision {
	eps := machineEpsilon()
	return Precision{Eps: eps, Eps2: math.Sqrt(eps)}
}

// machineEpsilon returns the smallest float64 e such that 1+e != 1,
// computed the same way the original Minuit2 port does rather than
// trusting a language constant, since the kernel's tolerances are
// defined relative to this computed value.
func machineEpsilon() float64 {
	eps := 1.0
	for 1.0+eps/2.0 != 1.0 {
		eps /= 2.0
	}
	return eps
}

// MachinePrecision returns the process-wide precision constants. They
// are computed once at package initialization; every NGK kernel in the
// process shares the same
// values, matching the "fixed at NGK construction" lifecycle of the
// original spec (machine epsilon does not vary per kernel instance).
func MachinePrecision() Precision {
	return machinePrecision
}
