// Package objective provides a small registry of named functions,
// letting the CLI and the multi-process MPTM backend refer to an
// objective by a stable string instead of a Go closure that cannot
// cross a process boundary.
package objective

import (
	"fmt"
	"strings"

	"github.com/cwbudde/minuitgrad/internal/gradjob"
	"github.com/cwbudde/minuitgrad/internal/job"
	"github.com/cwbudde/minuitgrad/internal/mptm"
	"github.com/cwbudde/minuitgrad/internal/ngk"
	"github.com/cwbudde/minuitgrad/internal/xform"
)

// Spec bundles an objective with the starting point and parameter
// settings the CLI commands need to drive NGK/MPTM against it.
type Spec struct {
	Name     string
	F        ngk.Func
	X0       []float64
	Settings []ngk.ParameterSetting
}

var registry = map[string]func() Spec{
	"quadratic-bowl": quadraticBowl,
	"rosenbrock":     rosenbrock,
}

// Lookup returns the named objective, or an error listing what is
// registered if the name is unknown.
func Lookup(name string) (Spec, error) {
	factory, ok := registry[name]
	if !ok {
		return Spec{}, fmt.Errorf("objective: unknown objective %q (known: %v)", name, Names())
	}
	return factory(), nil
}

// Names lists every registered objective, for CLI help text and error
// messages.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// quadraticBowl is a simple separable quadratic with a known minimum
// at (1, -2), useful as a smoke test for gradient sign/magnitude.
func quadraticBowl() Spec {
	f := func(x []float64) float64 {
		return (x[0]-1)*(x[0]-1) + 4*(x[1]+2)*(x[1]+2)
	}
	return Spec{
		Name: "quadratic-bowl",
		F:    f,
		X0:   []float64{0, 0},
		Settings: []ngk.ParameterSetting{
			{Name: "x0", Value: 0, Step: 0.1},
			{Name: "x1", Value: 0, Step: 0.1, HasLowerLimit: true, HasUpperLimit: true, Lower: -10, Upper: 10},
		},
	}
}

// rosenbrock is the classic banana-shaped valley, a minimum at (1, 1),
// exercised here since its curvature varies sharply with position,
// stressing NGK's adaptive step control more than a pure quadratic.
func rosenbrock() Spec {
	f := func(x []float64) float64 {
		a := 1 - x[0]
		b := x[1] - x[0]*x[0]
		return a*a + 100*b*b
	}
	return Spec{
		Name: "rosenbrock",
		F:    f,
		X0:   []float64{-1.2, 1},
		Settings: []ngk.ParameterSetting{
			{Name: "x0", Value: -1.2, Step: 0.1},
			{Name: "x1", Value: 1, Step: 0.1},
		},
	}
}

// Cost evaluates f at x, a convenience for commands that just want a
// scalar to print alongside a gradient.
func Cost(f ngk.Func, x []float64) float64 {
	return f(x)
}

// Transforms builds the per-parameter internal<->external transform
// for every setting this objective declares, the same mapping the
// kernel needs for AlwaysMimicMinuit2 and for any parameter that
// carries limits.
func (s Spec) Transforms() []xform.Transform {
	transforms := make([]xform.Transform, len(s.Settings))
	for i, setting := range s.Settings {
		transforms[i] = xform.ForSetting(setting.HasLowerLimit, setting.HasUpperLimit, setting.Lower, setting.Upper)
	}
	return transforms
}

// configSeparator joins an objective name with the AlwaysMimicMinuit2
// flag in the byte-string MPTM job config a multi-process worker
// receives; a Go closure cannot cross the process boundary, so the
// worker's factory re-derives the kernel from this instead.
const configSeparator = "|mimic2="

// EncodeJobConfig frames the job config a multi-process worker needs
// to reconstruct this objective's gradient job: the objective name plus
// the AlwaysMimicMinuit2 flag. The worker side builds its kernel with
// ngk.DefaultStrategy(), Up = 1 and a fresh NewState; a master kernel
// with another strategy or state is not carried across.
func EncodeJobConfig(name string, mimicMinuit2 bool) []byte {
	return []byte(fmt.Sprintf("%s%s%t", name, configSeparator, mimicMinuit2))
}

func decodeJobConfig(config []byte) (name string, mimicMinuit2 bool) {
	s := string(config)
	idx := strings.Index(s, configSeparator)
	if idx < 0 {
		return s, false
	}
	return s[:idx], s[idx+len(configSeparator):] == "true"
}

func init() {
	// Overrides gradjob's placeholder factory now that a name ->
	// closure registry exists: a worker process re-exec'd for the
	// multi-process backend receives the objective's name (and the
	// AlwaysMimicMinuit2 flag, via EncodeJobConfig) as its config and
	// reconstructs the same closure from this registry, the one thing
	// that cannot travel over ExtraFiles/env vars.
	mptm.RegisterJobFactory(gradjob.Kind, func(config []byte) (job.Job, error) {
		name, mimicMinuit2 := decodeJobConfig(config)
		spec, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		n := len(spec.Settings)
		kernel := ngk.NewKernel(ngk.DefaultStrategy(), 1.0)
		kernel.AlwaysMimicMinuit2 = mimicMinuit2
		state := ngk.NewState(n)
		return gradjob.New(kernel, spec.Settings, spec.Transforms(), state, spec.F), nil
	})
}
