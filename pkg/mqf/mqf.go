// Package mqf implements the Mobile Quantized Format container.
//
// MQF is a single-file, memory-mappable container for image-classification
// models prepared for constrained runtimes. It stores tensor payloads,
// quantization records, model metadata and an optional label list. It
// describes data only and never implies runtime behaviour.
package mqf

import "encoding/binary"

const (
	// Magic is the file magic for all MQF containers, encoded as "MQF\0".
	Magic = "MQF\x00"

	// CurrentMajor changes only on breaking format changes.
	CurrentMajor uint16 = 1
	// CurrentMinor may add new optional sections or fields.
	CurrentMinor uint16 = 0

	// FlagTensorDataAligned64 marks containers whose tensor payloads start
	// on 64-byte boundaries (written at OptimizeAll).
	FlagTensorDataAligned64 uint64 = 1 << 0
	// FlagDeduplicated marks containers where identical tensor payloads
	// share storage.
	FlagDeduplicated uint64 = 1 << 1

	headerSize  = 40
	sectionSize = 24
	fileAlign   = 8
	tensorAlign = 64
)

type SectionType uint32

const (
	SectionModelInfo   SectionType = 0x0001
	SectionQuantInfo   SectionType = 0x0002
	SectionTensorIndex SectionType = 0x0003
	SectionTensorData  SectionType = 0x0004
	SectionLabels      SectionType = 0x0005
)

// Level selects how aggressively a container is laid out for the target
// runtime.
type Level string

const (
	// OptimizeBasic packs payloads without alignment or dedup.
	OptimizeBasic Level = "basic"
	// OptimizeAll aligns tensor payloads to 64 bytes and elides duplicates.
	OptimizeAll Level = "all"
)

// ParseLevel validates a --level flag value.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case OptimizeBasic, OptimizeAll:
		return Level(s), nil
	default:
		return "", ErrUnknownLevel
	}
}

// Header is the fixed file header, patched in after all sections are written.
type Header struct {
	Magic            [4]byte
	Major            uint16
	Minor            uint16
	HeaderSize       uint32
	SectionCount     uint32
	SectionDirOffset uint64
	FileSize         uint64
	Flags            uint64
}

// Section is one entry in the section directory.
type Section struct {
	Type    uint32
	Version uint32
	Offset  uint64
	Size    uint64
}

func (h *Header) valid() bool {
	return string(h.Magic[:]) == Magic && h.HeaderSize >= headerSize && h.SectionCount > 0
}

func (h *Header) compatible() bool { return h.Major == CurrentMajor }

func encodeHeader(dst []byte, h Header) {
	copy(dst[0:4], h.Magic[:])
	binary.LittleEndian.PutUint16(dst[4:6], h.Major)
	binary.LittleEndian.PutUint16(dst[6:8], h.Minor)
	binary.LittleEndian.PutUint32(dst[8:12], h.HeaderSize)
	binary.LittleEndian.PutUint32(dst[12:16], h.SectionCount)
	binary.LittleEndian.PutUint64(dst[16:24], h.SectionDirOffset)
	binary.LittleEndian.PutUint64(dst[24:32], h.FileSize)
	binary.LittleEndian.PutUint64(dst[32:40], h.Flags)
}

func decodeHeader(src []byte) (Header, bool) {
	if len(src) < headerSize {
		return Header{}, false
	}
	var h Header
	copy(h.Magic[:], src[0:4])
	h.Major = binary.LittleEndian.Uint16(src[4:6])
	h.Minor = binary.LittleEndian.Uint16(src[6:8])
	h.HeaderSize = binary.LittleEndian.Uint32(src[8:12])
	h.SectionCount = binary.LittleEndian.Uint32(src[12:16])
	h.SectionDirOffset = binary.LittleEndian.Uint64(src[16:24])
	h.FileSize = binary.LittleEndian.Uint64(src[24:32])
	h.Flags = binary.LittleEndian.Uint64(src[32:40])
	return h, true
}

func encodeSection(dst []byte, s Section) {
	binary.LittleEndian.PutUint32(dst[0:4], s.Type)
	binary.LittleEndian.PutUint32(dst[4:8], s.Version)
	binary.LittleEndian.PutUint64(dst[8:16], s.Offset)
	binary.LittleEndian.PutUint64(dst[16:24], s.Size)
}

func decodeSection(src []byte) (Section, bool) {
	if len(src) < sectionSize {
		return Section{}, false
	}
	return Section{
		Type:    binary.LittleEndian.Uint32(src[0:4]),
		Version: binary.LittleEndian.Uint32(src[4:8]),
		Offset:  binary.LittleEndian.Uint64(src[8:16]),
		Size:    binary.LittleEndian.Uint64(src[16:24]),
	}, true
}
