package onnx

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

// ParseFile reads and parses an ONNX model from disk.
func ParseFile(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("onnx: read %s: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("onnx: parse %s: %w", path, err)
	}
	return m, nil
}

// Parse decodes an ONNX ModelProto from data. The returned model keeps data
// alive; initializer payloads alias it.
func Parse(data []byte) (*Model, error) {
	d := &decoder{data: data}
	m := &Model{data: data}
	if err := d.model(m, len(data)); err != nil {
		return nil, err
	}
	return m, nil
}

// Protobuf wire types.
const (
	wireVarint = 0
	wire64Bit  = 1
	wireBytes  = 2
	wire32Bit  = 5
)

// decoder walks the buffer with an absolute position so nested payload
// offsets (needed for in-place splicing) fall out of the parse for free.
type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) model(m *Model, end int) error {
	for d.pos < end {
		field, wire, err := d.tag()
		if err != nil {
			return err
		}
		switch field {
		case 1: // ir_version
			if m.IRVersion, err = d.varint(); err != nil {
				return err
			}
		case 2: // producer_name
			if m.ProducerName, err = d.str(); err != nil {
				return err
			}
		case 3: // producer_version
			if m.ProducerVersion, err = d.str(); err != nil {
				return err
			}
		case 7: // graph
			n, err := d.length()
			if err != nil {
				return err
			}
			if err := d.graph(m, d.pos+n); err != nil {
				return err
			}
		case 8: // opset_import
			n, err := d.length()
			if err != nil {
				return err
			}
			v, err := d.opset(d.pos + n)
			if err != nil {
				return err
			}
			// The default-domain opset governs the model.
			if v > m.OpsetVersion {
				m.OpsetVersion = v
			}
		default:
			if err := d.skip(wire); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *decoder) graph(m *Model, end int) error {
	for d.pos < end {
		field, wire, err := d.tag()
		if err != nil {
			return err
		}
		switch field {
		case 1: // node
			n, err := d.length()
			if err != nil {
				return err
			}
			op, err := d.nodeOpType(d.pos + n)
			if err != nil {
				return err
			}
			m.Operators = append(m.Operators, op)
		case 2: // name
			if m.GraphName, err = d.str(); err != nil {
				return err
			}
		case 5: // initializer
			n, err := d.length()
			if err != nil {
				return err
			}
			ini, err := d.tensor(d.pos + n)
			if err != nil {
				return err
			}
			m.Initializers = append(m.Initializers, ini)
		case 11: // input
			n, err := d.length()
			if err != nil {
				return err
			}
			vi, err := d.valueInfo(d.pos + n)
			if err != nil {
				return err
			}
			m.Inputs = append(m.Inputs, vi)
		case 12: // output
			n, err := d.length()
			if err != nil {
				return err
			}
			vi, err := d.valueInfo(d.pos + n)
			if err != nil {
				return err
			}
			m.Outputs = append(m.Outputs, vi)
		default:
			if err := d.skip(wire); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *decoder) nodeOpType(end int) (string, error) {
	var op string
	for d.pos < end {
		field, wire, err := d.tag()
		if err != nil {
			return "", err
		}
		if field == 4 { // op_type
			if op, err = d.str(); err != nil {
				return "", err
			}
			continue
		}
		if err := d.skip(wire); err != nil {
			return "", err
		}
	}
	return op, nil
}

func (d *decoder) tensor(end int) (Initializer, error) {
	ini := Initializer{RawOffset: -1}
	for d.pos < end {
		field, wire, err := d.tag()
		if err != nil {
			return ini, err
		}
		switch field {
		case 1: // dims
			if wire == wireBytes {
				n, err := d.length()
				if err != nil {
					return ini, err
				}
				stop := d.pos + n
				for d.pos < stop {
					v, err := d.varint()
					if err != nil {
						return ini, err
					}
					ini.Dims = append(ini.Dims, v)
				}
				continue
			}
			v, err := d.varint()
			if err != nil {
				return ini, err
			}
			ini.Dims = append(ini.Dims, v)
		case 2: // data_type
			v, err := d.varint()
			if err != nil {
				return ini, err
			}
			ini.DataType = int32(v)
		case 4: // float_data (packed, legacy exporters)
			n, err := d.length()
			if err != nil {
				return ini, err
			}
			stop := d.pos + n
			for d.pos+4 <= stop {
				bits := binary.LittleEndian.Uint32(d.data[d.pos:])
				ini.floats = append(ini.floats, math.Float32frombits(bits))
				d.pos += 4
			}
			d.pos = stop
		case 8: // name
			if ini.Name, err = d.str(); err != nil {
				return ini, err
			}
		case 9: // raw_data
			n, err := d.length()
			if err != nil {
				return ini, err
			}
			ini.RawOffset = int64(d.pos)
			ini.Raw = d.data[d.pos : d.pos+n]
			d.pos += n
		default:
			if err := d.skip(wire); err != nil {
				return ini, err
			}
		}
	}
	return ini, nil
}

func (d *decoder) valueInfo(end int) (ValueInfo, error) {
	vi := ValueInfo{}
	for d.pos < end {
		field, wire, err := d.tag()
		if err != nil {
			return vi, err
		}
		switch field {
		case 1: // name
			if vi.Name, err = d.str(); err != nil {
				return vi, err
			}
		case 2: // type
			n, err := d.length()
			if err != nil {
				return vi, err
			}
			if err := d.typeProto(&vi, d.pos+n); err != nil {
				return vi, err
			}
		default:
			if err := d.skip(wire); err != nil {
				return vi, err
			}
		}
	}
	return vi, nil
}

func (d *decoder) typeProto(vi *ValueInfo, end int) error {
	for d.pos < end {
		field, wire, err := d.tag()
		if err != nil {
			return err
		}
		if field == 1 { // tensor_type
			n, err := d.length()
			if err != nil {
				return err
			}
			if err := d.tensorType(vi, d.pos+n); err != nil {
				return err
			}
			continue
		}
		if err := d.skip(wire); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) tensorType(vi *ValueInfo, end int) error {
	for d.pos < end {
		field, wire, err := d.tag()
		if err != nil {
			return err
		}
		switch field {
		case 1: // elem_type
			v, err := d.varint()
			if err != nil {
				return err
			}
			vi.ElemType = int32(v)
		case 2: // shape
			n, err := d.length()
			if err != nil {
				return err
			}
			if err := d.shape(vi, d.pos+n); err != nil {
				return err
			}
		default:
			if err := d.skip(wire); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *decoder) shape(vi *ValueInfo, end int) error {
	for d.pos < end {
		field, wire, err := d.tag()
		if err != nil {
			return err
		}
		if field == 1 { // dim
			n, err := d.length()
			if err != nil {
				return err
			}
			dim, err := d.dim(d.pos + n)
			if err != nil {
				return err
			}
			vi.Shape = append(vi.Shape, dim)
			continue
		}
		if err := d.skip(wire); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) dim(end int) (int64, error) {
	// Dynamic dims (dim_param or absent) report as -1.
	val := int64(-1)
	for d.pos < end {
		field, wire, err := d.tag()
		if err != nil {
			return 0, err
		}
		if field == 1 { // dim_value
			if val, err = d.varint(); err != nil {
				return 0, err
			}
			continue
		}
		if err := d.skip(wire); err != nil {
			return 0, err
		}
	}
	return val, nil
}

func (d *decoder) opset(end int) (int64, error) {
	var domain string
	var version int64
	for d.pos < end {
		field, wire, err := d.tag()
		if err != nil {
			return 0, err
		}
		switch field {
		case 1: // domain
			if domain, err = d.str(); err != nil {
				return 0, err
			}
		case 2: // version
			if version, err = d.varint(); err != nil {
				return 0, err
			}
		default:
			if err := d.skip(wire); err != nil {
				return 0, err
			}
		}
	}
	if domain != "" && domain != "ai.onnx" {
		return 0, nil
	}
	return version, nil
}

func (d *decoder) tag() (field, wire int, err error) {
	v, err := d.varint()
	if err != nil {
		return 0, 0, err
	}
	return int(v >> 3), int(v & 0x7), nil
}

func (d *decoder) varint() (int64, error) {
	var out uint64
	var shift uint
	for {
		if d.pos >= len(d.data) {
			return 0, ErrTruncated
		}
		b := d.data[d.pos]
		d.pos++
		out |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return int64(out), nil
		}
		shift += 7
		if shift >= 64 {
			return 0, ErrMalformed
		}
	}
}

// length reads a payload length and bounds-checks it.
func (d *decoder) length() (int, error) {
	v, err := d.varint()
	if err != nil {
		return 0, err
	}
	if v < 0 || d.pos+int(v) > len(d.data) {
		return 0, ErrTruncated
	}
	return int(v), nil
}

func (d *decoder) str() (string, error) {
	n, err := d.length()
	if err != nil {
		return "", err
	}
	s := string(d.data[d.pos : d.pos+n])
	d.pos += n
	return s, nil
}

func (d *decoder) skip(wire int) error {
	switch wire {
	case wireVarint:
		_, err := d.varint()
		return err
	case wire64Bit:
		if d.pos+8 > len(d.data) {
			return ErrTruncated
		}
		d.pos += 8
		return nil
	case wireBytes:
		n, err := d.length()
		if err != nil {
			return err
		}
		d.pos += n
		return nil
	case wire32Bit:
		if d.pos+4 > len(d.data) {
			return ErrTruncated
		}
		d.pos += 4
		return nil
	default:
		return fmt.Errorf("%w: wire type %d", ErrMalformed, wire)
	}
}
