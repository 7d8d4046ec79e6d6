package xform

import (
	"fmt"
	"math"
	"testing"
)

func TestUnboundedIsIdentity(t *testing.T) {
	tr := Unbounded()
	for _, v := range []float64{-100, -1, 0, 0.5, 42} {
		if got := tr.Int2Ext(v); got != v {
			t.Errorf("Int2Ext(%v) = %v, want %v", v, got, v)
		}
		if got := tr.Ext2Int(v); got != v {
			t.Errorf("Ext2Int(%v) = %v, want %v", v, got, v)
		}
		if got := tr.DInt2Ext(v); got != 1.0 {
			t.Errorf("DInt2Ext(%v) = %v, want 1.0", v, got)
		}
	}
}

func TestLimitedRoundTrip(t *testing.T) {
	tr := Limited(-2, 5)
	prec := MachinePrecision()

	for _, internal := range []float64{-1.2, 0, 0.3, 1.0} {
		ext := tr.Int2Ext(internal)
		back := tr.Ext2Int(ext)
		if math.Abs(back-internal) > 10*prec.Eps*(1+math.Abs(internal)) {
			t.Errorf("round trip failed: internal=%v ext=%v back=%v", internal, ext, back)
		}
		if ext < -2 || ext > 5 {
			t.Errorf("Int2Ext(%v) = %v out of bounds [-2,5]", internal, ext)
		}
	}
}

func TestUpperLimitedRoundTrip(t *testing.T) {
	tr := UpperLimited(10)
	prec := MachinePrecision()

	for _, internal := range []float64{0, 0.5, 2.0, -1.5} {
		ext := tr.Int2Ext(internal)
		if ext > 10 {
			t.Errorf("Int2Ext(%v) = %v exceeds upper limit 10", internal, ext)
		}
		back := tr.Ext2Int(ext)
		if math.Abs(math.Abs(back)-math.Abs(internal)) > 1e3*prec.Eps {
			t.Errorf("round trip mismatch: internal=%v ext=%v back=%v", internal, ext, back)
		}
	}
}

func TestLowerLimitedRoundTrip(t *testing.T) {
	tr := LowerLimited(-5)
	prec := MachinePrecision()

	for _, internal := range []float64{0, 0.5, 2.0, -1.5} {
		ext := tr.Int2Ext(internal)
		if ext < -5 {
			t.Errorf("Int2Ext(%v) = %v below lower limit -5", internal, ext)
		}
		back := tr.Ext2Int(ext)
		if math.Abs(math.Abs(back)-math.Abs(internal)) > 1e3*prec.Eps {
			t.Errorf("round trip mismatch: internal=%v ext=%v back=%v", internal, ext, back)
		}
	}
}

func TestForSetting(t *testing.T) {
	cases := []struct {
		name               string
		hasLower, hasUpper bool
		wantType           string
	}{
		{"unbounded", false, false, "xform.unboundedTransform"},
		{"both", true, true, "xform.limitedTransform"},
		{"upper only", false, true, "xform.upperLimitedTransform"},
		{"lower only", true, false, "xform.lowerLimitedTransform"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tr := ForSetting(c.hasLower, c.hasUpper, -1, 1)
			if tr == nil {
				t.Fatal("ForSetting returned nil")
			}
			if got := fmt.Sprintf("%T", tr); got != c.wantType {
				t.Errorf("ForSetting(%v, %v) type = %s, want %s", c.hasLower, c.hasUpper, got, c.wantType)
			}
		})
	}
}

func TestMachinePrecisionStable(t *testing.T) {
	p1 := MachinePrecision()
	p2 := MachinePrecision()
	if p1 != p2 {
		t.Errorf("MachinePrecision not stable across calls: %v != %v", p1, p2)
	}
	if p1.Eps2 != math.Sqrt(p1.Eps) {
		t.Errorf("Eps2 = %v, want sqrt(Eps) = %v", p1.Eps2, math.Sqrt(p1.Eps))
	}
}
