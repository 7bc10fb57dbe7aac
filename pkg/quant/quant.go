// Package quant implements post-training static quantization for float32
// model weights and activations: symmetric int8 for weights, asymmetric
// uint8 for activations calibrated from representative inputs.
package quant

import "math"

const (
	int8Limit  = 127
	uint8Limit = 255
)

// Params maps float32 values onto an 8-bit grid:
//
//	q = round(v/Scale) + ZeroPoint
//	v = (q - ZeroPoint) * Scale
//
// Min and Max record the float range the grid was fitted to.
type Params struct {
	Scale     float32
	ZeroPoint int32
	Min       float32
	Max       float32
}

// SymmetricInt8 fits weight parameters to values: the grid is centred on
// zero (zero point 0) and spans the largest absolute value. An all-zero
// tensor gets scale 1 so dequantization stays defined.
func SymmetricInt8(values []float32) Params {
	var absMax float32
	for _, v := range values {
		if a := float32(math.Abs(float64(v))); a > absMax {
			absMax = a
		}
	}
	scale := absMax / int8Limit
	if scale == 0 {
		scale = 1
	}
	return Params{Scale: scale, ZeroPoint: 0, Min: -absMax, Max: absMax}
}

// AsymmetricUint8 fits activation parameters to an observed range. The range
// is widened to include zero so padding and ReLU zeros are exactly
// representable.
func AsymmetricUint8(min, max float32) Params {
	if min > 0 {
		min = 0
	}
	if max < 0 {
		max = 0
	}
	scale := (max - min) / uint8Limit
	if scale == 0 {
		return Params{Scale: 1, ZeroPoint: 0, Min: min, Max: max}
	}
	zp := int32(math.Round(float64(-min / scale)))
	if zp < 0 {
		zp = 0
	}
	if zp > uint8Limit {
		zp = uint8Limit
	}
	return Params{Scale: scale, ZeroPoint: zp, Min: min, Max: max}
}

// QuantizeInt8 maps values onto the symmetric int8 grid.
func QuantizeInt8(values []float32, p Params) []int8 {
	out := make([]int8, len(values))
	for i, v := range values {
		q := math.Round(float64(v / p.Scale))
		if q > int8Limit {
			q = int8Limit
		}
		if q < -int8Limit {
			q = -int8Limit
		}
		out[i] = int8(q)
	}
	return out
}

// DequantizeInt8 reconstructs float32 values from the symmetric int8 grid.
func DequantizeInt8(qs []int8, p Params) []float32 {
	out := make([]float32, len(qs))
	for i, q := range qs {
		out[i] = float32(q) * p.Scale
	}
	return out
}

// QuantizeUint8 maps values onto the asymmetric uint8 grid.
func QuantizeUint8(values []float32, p Params) []uint8 {
	out := make([]uint8, len(values))
	for i, v := range values {
		q := math.Round(float64(v/p.Scale)) + float64(p.ZeroPoint)
		if q > uint8Limit {
			q = uint8Limit
		}
		if q < 0 {
			q = 0
		}
		out[i] = uint8(q)
	}
	return out
}

// DequantizeUint8 reconstructs float32 values from the asymmetric uint8 grid.
func DequantizeUint8(qs []uint8, p Params) []float32 {
	out := make([]float32, len(qs))
	for i, q := range qs {
		out[i] = (float32(q) - float32(p.ZeroPoint)) * p.Scale
	}
	return out
}

// RoundTrip quantizes and immediately dequantizes values on the symmetric
// int8 grid, yielding the float32 tensor an int8 runtime would effectively
// compute with.
func RoundTrip(values []float32) ([]float32, Params) {
	p := SymmetricInt8(values)
	return DequantizeInt8(QuantizeInt8(values, p), p), p
}
