package quant

import (
	"math"
	"testing"
)

func TestSymmetricInt8(t *testing.T) {
	t.Parallel()

	p := SymmetricInt8([]float32{-2.54, 1.0, 0.3})
	if p.ZeroPoint != 0 {
		t.Errorf("zero point = %d, want 0", p.ZeroPoint)
	}
	if got, want := p.Scale, float32(2.54)/127; math.Abs(float64(got-want)) > 1e-7 {
		t.Errorf("scale = %v, want %v", got, want)
	}
	if p.Min != -2.54 || p.Max != 2.54 {
		t.Errorf("range = [%v, %v], want [-2.54, 2.54]", p.Min, p.Max)
	}

	qs := QuantizeInt8([]float32{-2.54, 0, 2.54}, p)
	if qs[0] != -127 || qs[1] != 0 || qs[2] != 127 {
		t.Errorf("quantized = %v, want [-127 0 127]", qs)
	}
}

func TestSymmetricInt8AllZero(t *testing.T) {
	t.Parallel()

	p := SymmetricInt8([]float32{0, 0, 0})
	if p.Scale != 1 {
		t.Errorf("scale = %v, want 1", p.Scale)
	}
	got := DequantizeInt8(QuantizeInt8([]float32{0, 0, 0}, p), p)
	for _, v := range got {
		if v != 0 {
			t.Fatalf("round trip = %v, want zeros", got)
		}
	}
}

func TestAsymmetricUint8IncludesZero(t *testing.T) {
	t.Parallel()

	// A strictly positive range must still represent zero exactly.
	p := AsymmetricUint8(0.5, 4.5)
	if p.Min != 0 {
		t.Errorf("min = %v, want 0", p.Min)
	}
	if p.ZeroPoint != 0 {
		t.Errorf("zero point = %d, want 0", p.ZeroPoint)
	}

	p = AsymmetricUint8(-1.0, 3.0)
	zero := DequantizeUint8(QuantizeUint8([]float32{0}, p), p)
	if zero[0] != 0 {
		t.Errorf("zero reconstructs to %v", zero[0])
	}
	if p.ZeroPoint < 0 || p.ZeroPoint > 255 {
		t.Errorf("zero point %d out of uint8 range", p.ZeroPoint)
	}
}

func TestQuantizeClampsOutliers(t *testing.T) {
	t.Parallel()

	p := Params{Scale: 0.1, ZeroPoint: 128}
	qs := QuantizeUint8([]float32{-1e6, 1e6}, p)
	if qs[0] != 0 || qs[1] != 255 {
		t.Errorf("clamped = %v, want [0 255]", qs)
	}

	ps := Params{Scale: 0.1}
	is := QuantizeInt8([]float32{-1e6, 1e6}, ps)
	if is[0] != -127 || is[1] != 127 {
		t.Errorf("clamped = %v, want [-127 127]", is)
	}
}

func TestRoundTripError(t *testing.T) {
	t.Parallel()

	values := []float32{-1.91, -0.33, 0, 0.004, 0.42, 1.87}
	got, p := RoundTrip(values)
	if len(got) != len(values) {
		t.Fatalf("length %d, want %d", len(got), len(values))
	}
	// Error of symmetric int8 is bounded by half a step.
	limit := float64(p.Scale) / 2
	for i, v := range values {
		if diff := math.Abs(float64(got[i] - v)); diff > limit+1e-6 {
			t.Errorf("value %v reconstructed as %v (err %v > %v)", v, got[i], diff, limit)
		}
	}
}

func TestMinMaxObserver(t *testing.T) {
	t.Parallel()

	var o MinMaxObserver
	if _, _, ok := o.Range(); ok {
		t.Error("fresh observer reports a range")
	}

	o.Observe([]float32{0.5, -0.25})
	o.Observe([]float32{2.0})
	o.Observe(nil)
	min, max, ok := o.Range()
	if !ok || min != -0.25 || max != 2.0 {
		t.Errorf("range = [%v, %v] ok=%v, want [-0.25, 2.0] true", min, max, ok)
	}

	p := o.Params()
	if p.Min != -0.25 || p.Max != 2.0 {
		t.Errorf("params fitted to [%v, %v]", p.Min, p.Max)
	}
}
