package mqf

import (
	"encoding/binary"
	"fmt"
)

// TensorIndexVersion is the on-disk version of the tensor index payload.
const TensorIndexVersion uint32 = 1

// DType identifies the element encoding of a stored tensor payload.
// Values are stable forever; add new ones only.
type DType uint32

const (
	DTypeUnknown DType = iota
	DTypeF32
	DTypeI8
	DTypeU8
	DTypeI32
	DTypeI64
)

// ElemSize returns the byte width of one element, or 0 if unknown.
func (d DType) ElemSize() int {
	switch d {
	case DTypeF32, DTypeI32:
		return 4
	case DTypeI8, DTypeU8:
		return 1
	case DTypeI64:
		return 8
	default:
		return 0
	}
}

func (d DType) String() string {
	switch d {
	case DTypeF32:
		return "f32"
	case DTypeI8:
		return "i8"
	case DTypeU8:
		return "u8"
	case DTypeI32:
		return "i32"
	case DTypeI64:
		return "i64"
	default:
		return "unknown"
	}
}

// TensorRecord locates one tensor payload. Offset is absolute within the
// container file so slicing out of the mapped data is trivial.
type TensorRecord struct {
	Name   string
	DType  DType
	Shape  []int64
	Offset uint64
	Size   uint64
}

// EncodeTensorIndex builds a tensor index section payload.
//
// Layout (little-endian):
//
//	u32 version, u32 count, then per record:
//	u32 name_len, name bytes, u32 dtype, u32 rank, rank*u64 dims,
//	u64 offset, u64 size
func EncodeTensorIndex(records []TensorRecord) []byte {
	size := 8
	for _, r := range records {
		size += 4 + len(r.Name) + 4 + 4 + 8*len(r.Shape) + 16
	}
	out := make([]byte, 0, size)
	out = binary.LittleEndian.AppendUint32(out, TensorIndexVersion)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(records)))
	for _, r := range records {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(r.Name)))
		out = append(out, r.Name...)
		out = binary.LittleEndian.AppendUint32(out, uint32(r.DType))
		out = binary.LittleEndian.AppendUint32(out, uint32(len(r.Shape)))
		for _, d := range r.Shape {
			out = binary.LittleEndian.AppendUint64(out, uint64(d))
		}
		out = binary.LittleEndian.AppendUint64(out, r.Offset)
		out = binary.LittleEndian.AppendUint64(out, r.Size)
	}
	return out
}

// ParseTensorIndex validates and decodes a tensor index section payload.
func ParseTensorIndex(sec []byte) ([]TensorRecord, error) {
	c := cursor{data: sec}
	version, err := c.u32()
	if err != nil {
		return nil, err
	}
	if version != TensorIndexVersion {
		return nil, ErrUnsupportedVersion
	}
	count, err := c.u32()
	if err != nil {
		return nil, err
	}
	// Smallest possible record is 28 bytes (empty name, rank 0). A count the
	// payload cannot hold must not drive the allocation below.
	const minRecordSize = 28
	if uint64(count)*minRecordSize > uint64(len(sec)-c.pos) {
		return nil, fmt.Errorf("%w: tensor index claims %d records in %d bytes", ErrCorruptFile, count, len(sec)-c.pos)
	}

	records := make([]TensorRecord, 0, count)
	for i := uint32(0); i < count; i++ {
		nameLen, err := c.u32()
		if err != nil {
			return nil, err
		}
		name, err := c.bytes(int(nameLen))
		if err != nil {
			return nil, err
		}
		dtype, err := c.u32()
		if err != nil {
			return nil, err
		}
		rank, err := c.u32()
		if err != nil {
			return nil, err
		}
		if rank > 16 {
			return nil, fmt.Errorf("%w: tensor %q rank %d", ErrCorruptFile, name, rank)
		}
		shape := make([]int64, rank)
		for j := range shape {
			v, err := c.u64()
			if err != nil {
				return nil, err
			}
			shape[j] = int64(v)
		}
		offset, err := c.u64()
		if err != nil {
			return nil, err
		}
		size, err := c.u64()
		if err != nil {
			return nil, err
		}
		records = append(records, TensorRecord{
			Name:   string(name),
			DType:  DType(dtype),
			Shape:  shape,
			Offset: offset,
			Size:   size,
		})
	}
	return records, nil
}

// TensorData slices the named tensor's payload out of the container.
func (f *File) TensorData(r TensorRecord) ([]byte, error) {
	end := r.Offset + r.Size
	if end < r.Offset || end > uint64(len(f.Data)) {
		return nil, fmt.Errorf("%w: tensor %q payload out of bounds", ErrCorruptFile, r.Name)
	}
	return f.Data[r.Offset:end], nil
}

// cursor is a bounds-checked little-endian reader over a section payload.
type cursor struct {
	data []byte
	pos  int
}

func (c *cursor) bytes(n int) ([]byte, error) {
	if n < 0 || c.pos+n > len(c.data) {
		return nil, ErrCorruptFile
	}
	out := c.data[c.pos : c.pos+n]
	c.pos += n
	return out, nil
}

func (c *cursor) u32() (uint32, error) {
	b, err := c.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *cursor) u64() (uint64, error) {
	b, err := c.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}
