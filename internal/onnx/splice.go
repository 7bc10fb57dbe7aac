package onnx

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

// Float32s decodes the tensor's payload as float32 values.
func (ini *Initializer) Float32s() ([]float32, error) {
	if ini.DataType != DataTypeFloat {
		return nil, fmt.Errorf("%w: %s has data type %d", ErrNotFloat, ini.Name, ini.DataType)
	}
	if ini.Raw == nil {
		if ini.floats != nil {
			return ini.floats, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrNoRawData, ini.Name)
	}
	if len(ini.Raw)%4 != 0 {
		return nil, fmt.Errorf("%w: %s raw payload not a float32 multiple", ErrMalformed, ini.Name)
	}
	out := make([]float32, len(ini.Raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(ini.Raw[4*i:]))
	}
	return out, nil
}

// SpliceFloat32 rewrites selected float32 initializer payloads in place and
// writes the result to outPath. Replacement values must match the original
// element count, so the file layout (and every offset in it) is preserved.
// This is how simulated-quantization models are produced: same graph, same
// size, weights replaced by their quantize-dequantize round trip.
func SpliceFloat32(m *Model, replacements map[string][]float32, outPath string) error {
	buf := make([]byte, len(m.data))
	copy(buf, m.data)

	for name, vals := range replacements {
		ini, ok := m.Initializer(name)
		if !ok {
			return fmt.Errorf("onnx: splice: no initializer %q", name)
		}
		if ini.DataType != DataTypeFloat {
			return fmt.Errorf("onnx: splice %q: %w", name, ErrNotFloat)
		}
		if ini.RawOffset < 0 || ini.Raw == nil {
			return fmt.Errorf("onnx: splice %q: %w", name, ErrNoRawData)
		}
		if len(vals)*4 != len(ini.Raw) {
			return fmt.Errorf("onnx: splice %q: %w (have %d bytes, need %d)",
				name, ErrSizeChanged, len(vals)*4, len(ini.Raw))
		}
		off := int(ini.RawOffset)
		for i, v := range vals {
			binary.LittleEndian.PutUint32(buf[off+4*i:], math.Float32bits(v))
		}
	}

	if err := os.WriteFile(outPath, buf, 0o644); err != nil {
		return fmt.Errorf("onnx: write %s: %w", outPath, err)
	}
	return nil
}
