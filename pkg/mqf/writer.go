package mqf

import (
	"errors"
	"io"
	"os"
	"sort"
)

// Writer builds an MQF file. Header space is reserved up front and patched
// during Finalize. Not safe for concurrent use.
type Writer struct {
	f        *os.File
	sections []Section
	seen     map[SectionType]bool
	flags    uint64
	closed   bool
}

// NewWriter truncates f and reserves the header bytes.
func NewWriter(f *os.File) (*Writer, error) {
	if f == nil {
		return nil, errors.New("mqf: nil file")
	}
	if err := f.Truncate(0); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	w := &Writer{f: f, seen: make(map[SectionType]bool)}
	if err := w.pad(headerSize); err != nil {
		return nil, err
	}
	if err := w.alignTo(fileAlign); err != nil {
		return nil, err
	}
	return w, nil
}

// AddFlags ORs format-level flags into the header.
func (w *Writer) AddFlags(flags uint64) {
	w.flags |= flags
}

// WriteSection appends a section payload and records it in the directory.
// A section type may only be written once. Returns the absolute file offset
// the payload was written at.
func (w *Writer) WriteSection(typ SectionType, version uint32, data []byte) (uint64, error) {
	if w.closed {
		return 0, ErrWriterFinalized
	}
	if w.seen[typ] {
		return 0, ErrDuplicateSection
	}
	if err := w.alignTo(fileAlign); err != nil {
		return 0, err
	}
	offset, err := w.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	if len(data) > 0 {
		if _, err := w.f.Write(data); err != nil {
			return 0, err
		}
	}
	w.sections = append(w.sections, Section{
		Type:    uint32(typ),
		Version: version,
		Offset:  uint64(offset),
		Size:    uint64(len(data)),
	})
	w.seen[typ] = true
	return uint64(offset), nil
}

// Finalize writes the section directory, patches the header and syncs.
// The writer must not be used afterwards.
func (w *Writer) Finalize() error {
	if w.closed {
		return ErrWriterFinalized
	}
	w.closed = true

	sort.Slice(w.sections, func(i, j int) bool {
		return w.sections[i].Type < w.sections[j].Type
	})

	if err := w.alignTo(fileAlign); err != nil {
		return err
	}
	dirOffset, err := w.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}

	var secBuf [sectionSize]byte
	for _, s := range w.sections {
		encodeSection(secBuf[:], s)
		if _, err := w.f.Write(secBuf[:]); err != nil {
			return err
		}
	}

	fileSize, err := w.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	// Truncate in case the target file was reused and is longer.
	if err := w.f.Truncate(fileSize); err != nil {
		return err
	}

	var h Header
	copy(h.Magic[:], Magic)
	h.Major = CurrentMajor
	h.Minor = CurrentMinor
	h.HeaderSize = headerSize
	h.SectionCount = uint32(len(w.sections))
	h.SectionDirOffset = uint64(dirOffset)
	h.FileSize = uint64(fileSize)
	h.Flags = w.flags

	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	var hdrBuf [headerSize]byte
	encodeHeader(hdrBuf[:], h)
	if _, err := w.f.Write(hdrBuf[:]); err != nil {
		return err
	}
	return w.f.Sync()
}

func (w *Writer) alignTo(n int64) error {
	pos, err := w.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if mod := pos % n; mod != 0 {
		return w.pad(int(n - mod))
	}
	return nil
}

func (w *Writer) pad(n int) error {
	if n <= 0 {
		return nil
	}
	_, err := w.f.Write(make([]byte, n))
	return err
}
