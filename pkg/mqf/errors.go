package mqf

import "errors"

var (
	ErrInvalidMagic       = errors.New("mqf: invalid magic")
	ErrUnsupportedVersion = errors.New("mqf: unsupported major version")
	ErrCorruptFile        = errors.New("mqf: corrupt file")
	ErrDuplicateSection   = errors.New("mqf: duplicate section type")
	ErrWriterFinalized    = errors.New("mqf: writer already finalized")
	ErrUnknownLevel       = errors.New("mqf: unknown optimization level")
)
