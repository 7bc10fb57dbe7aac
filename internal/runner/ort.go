package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/quantaml/quanta/internal/tensor"
)

// EnvLibraryPath overrides where the ONNX Runtime shared library is loaded
// from when no path is passed explicitly.
const EnvLibraryPath = "QUANTA_ORT_LIBRARY"

var (
	initMu sync.Mutex

	ErrNotInitialized = errors.New("runner: onnxruntime environment not initialized")
)

// InitRuntime loads the ONNX Runtime shared library and initializes its
// environment. An empty libPath falls back to QUANTA_ORT_LIBRARY, then to the
// system default search path. Safe to call more than once.
func InitRuntime(libPath string) error {
	initMu.Lock()
	defer initMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if libPath == "" {
		libPath = os.Getenv(EnvLibraryPath)
	}
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnxruntime: %w", err)
	}
	return nil
}

// ShutdownRuntime tears the environment down. Sessions must be closed first.
func ShutdownRuntime() error {
	initMu.Lock()
	defer initMu.Unlock()

	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// Session runs one loaded model. Input and output names are discovered from
// the model file, so callers only deal in name-keyed tensors. Not safe for
// concurrent Run calls; use Pool for that.
type Session struct {
	session     *ort.DynamicAdvancedSession
	inputNames  []string
	outputNames []string
}

// NewSession loads the model at path into a fresh inference session.
func NewSession(path string) (*Session, error) {
	if !ort.IsInitialized() {
		return nil, ErrNotInitialized
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", path, err)
	}
	inputNames := make([]string, len(inputs))
	for i, info := range inputs {
		inputNames[i] = info.Name
	}
	outputNames := make([]string, len(outputs))
	for i, info := range outputs {
		outputNames[i] = info.Name
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	defer opts.Destroy()
	if err := opts.SetIntraOpNumThreads(runtime.NumCPU()); err != nil {
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSession(path, inputNames, outputNames, opts)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return &Session{
		session:     session,
		inputNames:  inputNames,
		outputNames: outputNames,
	}, nil
}

// InputNames returns the model's graph input names in declaration order.
func (s *Session) InputNames() []string { return s.inputNames }

// OutputNames returns the model's graph output names in declaration order.
func (s *Session) OutputNames() []string { return s.outputNames }

// Run evaluates one batch. Every model input must be present in inputs.
func (s *Session) Run(ctx context.Context, inputs map[string]*tensor.Dense) (map[string]*tensor.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ins := make([]ort.Value, len(s.inputNames))
	for i, name := range s.inputNames {
		t, ok := inputs[name]
		if !ok {
			return nil, fmt.Errorf("runner: missing input %q", name)
		}
		v, err := ort.NewTensor(ort.NewShape(t.Shape...), t.Data)
		if err != nil {
			return nil, fmt.Errorf("runner: input %q: %w", name, err)
		}
		ins[i] = v
	}
	defer destroyAll(ins)

	// Nil output slots let the runtime allocate result tensors.
	outs := make([]ort.Value, len(s.outputNames))
	if err := s.session.Run(ins, outs); err != nil {
		return nil, fmt.Errorf("runner: inference: %w", err)
	}
	defer destroyAll(outs)

	results := make(map[string]*tensor.Dense, len(outs))
	for i, v := range outs {
		ft, ok := v.(*ort.Tensor[float32])
		if !ok {
			return nil, fmt.Errorf("runner: output %q is not float32", s.outputNames[i])
		}
		shape := ft.GetShape()
		data := make([]float32, len(ft.GetData()))
		copy(data, ft.GetData())
		dense, err := tensor.NewDense(append([]int64(nil), shape...), data)
		if err != nil {
			return nil, fmt.Errorf("runner: output %q: %w", s.outputNames[i], err)
		}
		results[s.outputNames[i]] = dense
	}
	return results, nil
}

// Close destroys the underlying session.
func (s *Session) Close() error {
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	return err
}

func destroyAll(vs []ort.Value) {
	for _, v := range vs {
		if v != nil {
			_ = v.Destroy()
		}
	}
}
