package onnx

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// Minimal protobuf encoder for building synthetic models in tests.

func pvarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

func ptag(buf []byte, field, wire int) []byte {
	return pvarint(buf, uint64(field<<3|wire))
}

func pbytes(buf []byte, field int, payload []byte) []byte {
	buf = ptag(buf, field, wireBytes)
	buf = pvarint(buf, uint64(len(payload)))
	return append(buf, payload...)
}

func pstring(buf []byte, field int, s string) []byte {
	return pbytes(buf, field, []byte(s))
}

func pint(buf []byte, field int, v int64) []byte {
	buf = ptag(buf, field, wireVarint)
	return pvarint(buf, uint64(v))
}

func floatsLE(vals []float32) []byte {
	out := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}

func encodeValueInfo(name string, elemType int64, dims []int64) []byte {
	var shape []byte
	for _, d := range dims {
		var dim []byte
		if d >= 0 {
			dim = pint(dim, 1, d)
		} else {
			dim = pstring(dim, 2, "batch")
		}
		shape = pbytes(shape, 1, dim)
	}
	var tt []byte
	tt = pint(tt, 1, elemType)
	tt = pbytes(tt, 2, shape)
	var typ []byte
	typ = pbytes(typ, 1, tt)
	var vi []byte
	vi = pstring(vi, 1, name)
	vi = pbytes(vi, 2, typ)
	return vi
}

func encodeInitializer(name string, dims []int64, vals []float32) []byte {
	var t []byte
	for _, d := range dims {
		t = pint(t, 1, d)
	}
	t = pint(t, 2, DataTypeFloat)
	t = pstring(t, 8, name)
	t = pbytes(t, 9, floatsLE(vals))
	return t
}

func encodeTestModel() []byte {
	var graph []byte
	var node []byte
	node = pstring(node, 4, "Gemm")
	graph = pbytes(graph, 1, node)
	graph = pstring(graph, 2, "classifier")
	graph = pbytes(graph, 5, encodeInitializer("fc.weight", []int64{2, 3}, []float32{1, -2, 3, -4, 5, -6}))
	graph = pbytes(graph, 11, encodeValueInfo("input", DataTypeFloat, []int64{-1, 3, 4, 4}))
	graph = pbytes(graph, 12, encodeValueInfo("logits", DataTypeFloat, []int64{1, 2}))

	var opset []byte
	opset = pint(opset, 2, 13)

	var m []byte
	m = pint(m, 1, 8)
	m = pstring(m, 2, "pytorch")
	m = pstring(m, 3, "2.1")
	m = pbytes(m, 7, graph)
	m = pbytes(m, 8, opset)
	return m
}

func TestParseModel(t *testing.T) {
	t.Parallel()
	m, err := Parse(encodeTestModel())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if m.IRVersion != 8 || m.OpsetVersion != 13 {
		t.Fatalf("ir=%d opset=%d, want 8/13", m.IRVersion, m.OpsetVersion)
	}
	if m.ProducerName != "pytorch" {
		t.Fatalf("producer = %q", m.ProducerName)
	}
	if m.GraphName != "classifier" {
		t.Fatalf("graph name = %q", m.GraphName)
	}
	if len(m.Operators) != 1 || m.Operators[0] != "Gemm" {
		t.Fatalf("operators = %v", m.Operators)
	}

	if len(m.Inputs) != 1 || m.Inputs[0].Name != "input" {
		t.Fatalf("inputs = %+v", m.Inputs)
	}
	wantShape := []int64{-1, 3, 4, 4}
	for i, d := range wantShape {
		if m.Inputs[0].Shape[i] != d {
			t.Fatalf("input shape = %v, want %v", m.Inputs[0].Shape, wantShape)
		}
	}
	if got := m.OutputNames(); len(got) != 1 || got[0] != "logits" {
		t.Fatalf("outputs = %v", got)
	}
}

func TestParseInitializer(t *testing.T) {
	t.Parallel()
	data := encodeTestModel()
	m, err := Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	ini, ok := m.Initializer("fc.weight")
	if !ok {
		t.Fatal("missing initializer fc.weight")
	}
	if ini.NumElements() != 6 {
		t.Fatalf("elements = %d, want 6", ini.NumElements())
	}
	vals, err := ini.Float32s()
	if err != nil {
		t.Fatalf("float32s: %v", err)
	}
	want := []float32{1, -2, 3, -4, 5, -6}
	for i, v := range want {
		if vals[i] != v {
			t.Fatalf("values = %v, want %v", vals, want)
		}
	}

	// RawOffset must point into the original buffer at the payload bytes.
	if ini.RawOffset < 0 {
		t.Fatal("raw offset not recorded")
	}
	bits := binary.LittleEndian.Uint32(data[ini.RawOffset:])
	if math.Float32frombits(bits) != 1 {
		t.Fatalf("raw offset points at %f, want 1", math.Float32frombits(bits))
	}
}

func TestInputNamesExcludeInitializers(t *testing.T) {
	t.Parallel()
	// Older exporters list weights under graph.input too.
	var graph []byte
	graph = pbytes(graph, 5, encodeInitializer("w", []int64{1}, []float32{2}))
	graph = pbytes(graph, 11, encodeValueInfo("w", DataTypeFloat, []int64{1}))
	graph = pbytes(graph, 11, encodeValueInfo("image", DataTypeFloat, []int64{1, 3, 2, 2}))
	var raw []byte
	raw = pbytes(raw, 7, graph)

	m, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	names := m.InputNames()
	if len(names) != 1 || names[0] != "image" {
		t.Fatalf("input names = %v, want [image]", names)
	}
}

func TestParseTruncated(t *testing.T) {
	t.Parallel()
	data := encodeTestModel()
	if _, err := Parse(data[:len(data)-3]); err == nil {
		t.Fatal("expected error for truncated model")
	}
}

func TestSpliceFloat32(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "model.onnx")
	if err := os.WriteFile(src, encodeTestModel(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	m, err := ParseFile(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	out := filepath.Join(dir, "model.sim.onnx")
	repl := map[string][]float32{"fc.weight": {6, 5, 4, 3, 2, 1}}
	if err := SpliceFloat32(m, repl, out); err != nil {
		t.Fatalf("splice: %v", err)
	}

	spliced, err := ParseFile(out)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	ini, _ := spliced.Initializer("fc.weight")
	vals, err := ini.Float32s()
	if err != nil {
		t.Fatalf("float32s: %v", err)
	}
	for i, want := range repl["fc.weight"] {
		if vals[i] != want {
			t.Fatalf("spliced values = %v, want %v", vals, repl["fc.weight"])
		}
	}

	// File size (and therefore layout) must be unchanged.
	a, _ := os.Stat(src)
	b, _ := os.Stat(out)
	if a.Size() != b.Size() {
		t.Fatalf("splice changed file size: %d -> %d", a.Size(), b.Size())
	}
}

func TestSpliceSizeMismatch(t *testing.T) {
	t.Parallel()
	m, err := Parse(encodeTestModel())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	err = SpliceFloat32(m, map[string][]float32{"fc.weight": {1}}, filepath.Join(t.TempDir(), "x.onnx"))
	if !errors.Is(err, ErrSizeChanged) {
		t.Fatalf("expected ErrSizeChanged, got %v", err)
	}
}
