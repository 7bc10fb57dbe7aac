package mqf

import (
	"encoding/binary"
	"fmt"
	"math"
)

// QuantInfoVersion is the on-disk version of the quant info payload.
const QuantInfoVersion uint32 = 1

// QuantDomain selects the reconstruction logic for a record.
type QuantDomain uint8

const (
	// DomainWeights records symmetric int8 ranges (zero point 0).
	DomainWeights QuantDomain = 0
	// DomainActivations records asymmetric uint8 ranges estimated from
	// calibration data.
	DomainActivations QuantDomain = 1
)

func (d QuantDomain) String() string {
	switch d {
	case DomainWeights:
		return "weights"
	case DomainActivations:
		return "activations"
	default:
		return "unknown"
	}
}

// QuantRecord carries the affine parameters for one quantized tensor or
// calibrated activation. Records are keyed by name: weight records match
// entries in the tensor index, activation records match graph inputs and
// outputs of the source model.
type QuantRecord struct {
	Name      string
	Domain    QuantDomain
	Scale     float32
	ZeroPoint int32
	Min       float32
	Max       float32
}

// EncodeQuantInfo builds a quant info section payload.
//
// Layout (little-endian):
//
//	u32 version, u32 count, then per record:
//	u32 name_len, name bytes, u8 domain, 3 reserved zero bytes,
//	f32 scale, i32 zero_point, f32 min, f32 max
func EncodeQuantInfo(records []QuantRecord) ([]byte, error) {
	size := 8
	for _, r := range records {
		size += 4 + len(r.Name) + 4 + 16
	}
	out := make([]byte, 0, size)
	out = binary.LittleEndian.AppendUint32(out, QuantInfoVersion)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(records)))
	for _, r := range records {
		if r.Domain != DomainWeights && r.Domain != DomainActivations {
			return nil, fmt.Errorf("%w: quant record %q domain %d", ErrCorruptFile, r.Name, r.Domain)
		}
		out = binary.LittleEndian.AppendUint32(out, uint32(len(r.Name)))
		out = append(out, r.Name...)
		out = append(out, byte(r.Domain), 0, 0, 0)
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(r.Scale))
		out = binary.LittleEndian.AppendUint32(out, uint32(r.ZeroPoint))
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(r.Min))
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(r.Max))
	}
	return out, nil
}

// ParseQuantInfo validates and decodes a quant info section payload.
func ParseQuantInfo(sec []byte) ([]QuantRecord, error) {
	c := cursor{data: sec}
	version, err := c.u32()
	if err != nil {
		return nil, err
	}
	if version != QuantInfoVersion {
		return nil, ErrUnsupportedVersion
	}
	count, err := c.u32()
	if err != nil {
		return nil, err
	}
	// Smallest possible record is 24 bytes (empty name). A count the payload
	// cannot hold must not drive the allocation below.
	const minRecordSize = 24
	if uint64(count)*minRecordSize > uint64(len(sec)-c.pos) {
		return nil, fmt.Errorf("%w: quant info claims %d records in %d bytes", ErrCorruptFile, count, len(sec)-c.pos)
	}

	records := make([]QuantRecord, 0, count)
	for i := uint32(0); i < count; i++ {
		nameLen, err := c.u32()
		if err != nil {
			return nil, err
		}
		name, err := c.bytes(int(nameLen))
		if err != nil {
			return nil, err
		}
		meta, err := c.bytes(4)
		if err != nil {
			return nil, err
		}
		domain := QuantDomain(meta[0])
		if domain != DomainWeights && domain != DomainActivations {
			return nil, fmt.Errorf("%w: quant record %q domain %d", ErrCorruptFile, name, domain)
		}
		if meta[1] != 0 || meta[2] != 0 || meta[3] != 0 {
			return nil, fmt.Errorf("%w: quant record %q reserved bytes", ErrCorruptFile, name)
		}
		scale, err := c.u32()
		if err != nil {
			return nil, err
		}
		zp, err := c.u32()
		if err != nil {
			return nil, err
		}
		minBits, err := c.u32()
		if err != nil {
			return nil, err
		}
		maxBits, err := c.u32()
		if err != nil {
			return nil, err
		}
		records = append(records, QuantRecord{
			Name:      string(name),
			Domain:    domain,
			Scale:     math.Float32frombits(scale),
			ZeroPoint: int32(zp),
			Min:       math.Float32frombits(minBits),
			Max:       math.Float32frombits(maxBits),
		})
	}
	return records, nil
}
