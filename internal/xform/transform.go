package xform

import "math"

// Transform maps a single parameter between bounded external space and
// unbounded internal space. The minimizer operates in internal space;
// the user (and the likelihood function) sees external space.
type Transform interface {
	// Int2Ext converts an internal-space value to external space.
	Int2Ext(internal float64) float64
	// Ext2Int converts an external-space value to internal space.
	Ext2Int(external float64) float64
	// DInt2Ext is the first derivative d(int2ext)/d(internal) at the
	// given internal-space point, used to convert a gradient computed
	// by finite differences in external space back to internal space.
	DInt2Ext(internal float64) float64
}

// unboundedTransform is the identity mapping for parameters with no
// limits: internal and external space coincide.
type unboundedTransform struct{}

func (unboundedTransform) Int2Ext(internal float64) float64 { return internal }
func (unboundedTransform) Ext2Int(external float64) float64 { return external }
func (unboundedTransform) DInt2Ext(float64) float64         { return 1.0 }

// limitedTransform implements the sine-transform for a parameter with
// both a lower and upper limit.
type limitedTransform struct {
	lower, upper float64
}

func (t limitedTransform) Int2Ext(internal float64) float64 {
	half := (t.upper - t.lower) / 2.0
	return t.lower + half*(math.Sin(internal)+1.0)
}

func (t limitedTransform) Ext2Int(external float64) float64 {
	return math.Asin(2.0*(external-t.lower)/(t.upper-t.lower) - 1.0)
}

func (t limitedTransform) DInt2Ext(internal float64) float64 {
	half := (t.upper - t.lower) / 2.0
	return half * math.Cos(internal)
}

// upperLimitedTransform implements the upper-only-limit family.
type upperLimitedTransform struct {
	upper float64
}

func (t upperLimitedTransform) Int2Ext(internal float64) float64 {
	return t.upper + 1.0 - math.Sqrt(internal*internal+1.0)
}

func (t upperLimitedTransform) Ext2Int(external float64) float64 {
	d := t.upper + 1.0 - external
	return math.Sqrt(math.Max(d*d-1.0, 0.0))
}

func (t upperLimitedTransform) DInt2Ext(internal float64) float64 {
	return -internal / math.Sqrt(internal*internal+1.0)
}

// lowerLimitedTransform implements the lower-only-limit family.
type lowerLimitedTransform struct {
	lower float64
}

func (t lowerLimitedTransform) Int2Ext(internal float64) float64 {
	return t.lower - 1.0 + math.Sqrt(internal*internal+1.0)
}

func (t lowerLimitedTransform) Ext2Int(external float64) float64 {
	d := external - t.lower + 1.0
	return math.Sqrt(math.Max(d*d-1.0, 0.0))
}

func (t lowerLimitedTransform) DInt2Ext(internal float64) float64 {
	return internal / math.Sqrt(internal*internal+1.0)
}

// Unbounded returns the identity transform for a parameter with no limits.
func Unbounded() Transform { return unboundedTransform{} }

// Limited returns the sine-transform for a parameter bounded on both sides.
func Limited(lower, upper float64) Transform {
	return limitedTransform{lower: lower, upper: upper}
}

// UpperLimited returns the transform for a parameter with only an upper limit.
func UpperLimited(upper float64) Transform {
	return upperLimitedTransform{upper: upper}
}

// LowerLimited returns the transform for a parameter with only a lower limit.
func LowerLimited(lower float64) Transform {
	return lowerLimitedTransform{lower: lower}
}

// ForSetting picks the correct Transform for a parameter setting's limit
// configuration.
func ForSetting(hasLower, hasUpper bool, lower, upper float64) Transform {
	switch {
	case hasLower && hasUpper:
		return Limited(lower, upper)
	case hasUpper:
		return UpperLimited(upper)
	case hasLower:
		return LowerLimited(lower)
	default:
		return Unbounded()
	}
}
