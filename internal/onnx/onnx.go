// Package onnx reads the subset of the ONNX interchange format quanta needs:
// graph inputs and outputs with their shapes, initializer tensors, and model
// metadata. It decodes the protobuf wire format directly and performs no
// graph execution.
package onnx

import "errors"

// ONNX TensorProto element types (the ones this toolkit handles).
const (
	DataTypeFloat = 1 // float32
	DataTypeUint8 = 2
	DataTypeInt8  = 3
	DataTypeInt32 = 6
	DataTypeInt64 = 7
)

var (
	ErrTruncated   = errors.New("onnx: truncated model file")
	ErrMalformed   = errors.New("onnx: malformed protobuf payload")
	ErrNotFloat    = errors.New("onnx: tensor is not float32")
	ErrNoRawData   = errors.New("onnx: tensor has no raw data payload")
	ErrSizeChanged = errors.New("onnx: replacement payload has a different size")
)

// Model is a parsed view of an ONNX ModelProto. Raw byte slices alias the
// buffer the model was parsed from.
type Model struct {
	IRVersion       int64
	OpsetVersion    int64
	ProducerName    string
	ProducerVersion string
	GraphName       string

	Inputs  []ValueInfo
	Outputs []ValueInfo

	Initializers []Initializer

	// Operators holds the op_type of every graph node, in graph order.
	Operators []string

	data []byte
}

// ValueInfo describes a graph input or output. Dynamic dimensions (named or
// absent) are reported as -1.
type ValueInfo struct {
	Name     string
	ElemType int32
	Shape    []int64
}

// Initializer is a weight tensor. Raw aliases the model buffer; RawOffset is
// the absolute offset of those bytes within the file, or -1 when the tensor
// uses a legacy typed data field instead.
type Initializer struct {
	Name      string
	DataType  int32
	Dims      []int64
	Raw       []byte
	RawOffset int64
	floats    []float32 // legacy float_data
}

// NumElements returns the element count implied by Dims.
func (ini *Initializer) NumElements() int64 {
	n := int64(1)
	for _, d := range ini.Dims {
		n *= d
	}
	return n
}

// Input returns the named graph input, if present.
func (m *Model) Input(name string) (ValueInfo, bool) {
	for _, v := range m.Inputs {
		if v.Name == name {
			return v, true
		}
	}
	return ValueInfo{}, false
}

// Initializer returns the named weight tensor, if present.
func (m *Model) Initializer(name string) (*Initializer, bool) {
	for i := range m.Initializers {
		if m.Initializers[i].Name == name {
			return &m.Initializers[i], true
		}
	}
	return nil, false
}

// InputNames lists graph inputs that are not backed by initializers, in
// graph order. For classifiers this is normally a single image tensor.
func (m *Model) InputNames() []string {
	backed := make(map[string]bool, len(m.Initializers))
	for i := range m.Initializers {
		backed[m.Initializers[i].Name] = true
	}
	var names []string
	for _, v := range m.Inputs {
		if !backed[v.Name] {
			names = append(names, v.Name)
		}
	}
	return names
}

// OutputNames lists graph outputs in graph order.
func (m *Model) OutputNames() []string {
	names := make([]string, len(m.Outputs))
	for i, v := range m.Outputs {
		names[i] = v.Name
	}
	return names
}

// Bytes returns the buffer the model was parsed from.
func (m *Model) Bytes() []byte { return m.data }
