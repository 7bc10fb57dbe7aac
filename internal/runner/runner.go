// Package runner executes models through the ONNX Runtime shared library.
package runner

import (
	"context"

	"github.com/quantaml/quanta/internal/tensor"
)

// Runner evaluates a model on one batch of named inputs and returns its
// named outputs. Implementations must be safe for sequential reuse; see
// Pool for concurrent use.
type Runner interface {
	Run(ctx context.Context, inputs map[string]*tensor.Dense) (map[string]*tensor.Dense, error)
	Close() error
}
