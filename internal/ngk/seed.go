package ngk

import (
	"math"

	"github.com/cwbudde/minuitgrad/internal/xform"
)

// SetInitialGradient replaces the gradient state for every parameter
// using Minuit2's initial-gradient seeding algorithm. werr is the
// parameter's width estimate (typically its Step from
// ParameterSetting); x is the point in internal coordinates.
func (k *Kernel) SetInitialGradient(x []float64, settings []ParameterSetting, transforms []xform.Transform, state *State) error {
	for i := range state.Grad {
		if err := k.seedOne(x, settings[i], transforms[i], state, i); err != nil {
			return err
		}
	}
	return nil
}

func (k *Kernel) seedOne(x []float64, setting ParameterSetting, tr xform.Transform, state *State, i int) error {
	werr := setting.Step

	sav := tr.Int2Ext(x[i])
	savPlus := clipToUpper(sav+werr, setting)
	savMinus := clipToLower(sav-werr, setting)

	vplu := tr.Ext2Int(savPlus) - x[i]
	vmin := tr.Ext2Int(savMinus) - x[i]

	gsmin := 8 * k.Precision.Eps2 * (math.Abs(x[i]) + k.Precision.Eps2)

	dirin := math.Max((math.Abs(vplu)+math.Abs(vmin))/2, gsmin)
	if dirin == 0 {
		return ErrDirinZero
	}

	g2 := 2 * k.Up / (dirin * dirin)
	gstep := math.Max(gsmin, 0.1*dirin)
	grad := g2 * dirin

	if setting.HasLimits() && gstep > 0.5 {
		gstep = 0.5
	}

	state.Grad[i] = grad
	state.G2[i] = g2
	state.Gstep[i] = gstep
	return nil
}

// clipToUpper clamps an external-space value to a parameter's upper
// limit, if it has one.
func clipToUpper(v float64, setting ParameterSetting) float64 {
	if setting.HasUpperLimit && v > setting.Upper {
		return setting.Upper
	}
	return v
}

// clipToLower clamps an external-space value to a parameter's lower
// limit, if it has one.
func clipToLower(v float64, setting ParameterSetting) float64 {
	if setting.HasLowerLimit && v < setting.Lower {
		return setting.Lower
	}
	return v
}
