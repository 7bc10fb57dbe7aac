// Package tensor holds the dense float32 tensor type passed between the
// preprocessor, the calibration feed, the inference runner and the quantizer.
package tensor

import (
	"errors"
	"fmt"
)

var ErrShapeMismatch = errors.New("tensor: shape does not match data length")

// Dense is a dense float32 tensor with an explicit shape.
// Data is laid out row-major (last dimension contiguous).
type Dense struct {
	Shape []int64
	Data  []float32
}

// NewDense validates that the shape covers exactly len(data) elements.
func NewDense(shape []int64, data []float32) (*Dense, error) {
	n, err := NumElements(shape)
	if err != nil {
		return nil, err
	}
	if n != int64(len(data)) {
		return nil, fmt.Errorf("%w: shape %v needs %d elements, have %d",
			ErrShapeMismatch, shape, n, len(data))
	}
	return &Dense{Shape: shape, Data: data}, nil
}

// Zeros allocates a zero-filled tensor of the given shape.
func Zeros(shape ...int64) (*Dense, error) {
	n, err := NumElements(shape)
	if err != nil {
		return nil, err
	}
	return &Dense{Shape: shape, Data: make([]float32, n)}, nil
}

// NumElements returns the product of the dims.
func NumElements(shape []int64) (int64, error) {
	n := int64(1)
	for _, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("tensor: negative dim %d in shape %v", d, shape)
		}
		if d != 0 && n > (1<<62)/d {
			return 0, fmt.Errorf("tensor: shape %v overflows", shape)
		}
		n *= d
	}
	return n, nil
}

// Rank returns the number of dimensions.
func (t *Dense) Rank() int { return len(t.Shape) }

// Clone returns a deep copy.
func (t *Dense) Clone() *Dense {
	shape := make([]int64, len(t.Shape))
	copy(shape, t.Shape)
	data := make([]float32, len(t.Data))
	copy(data, t.Data)
	return &Dense{Shape: shape, Data: data}
}
