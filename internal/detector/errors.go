package detector

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat matches any UnsupportedFormatError via errors.Is.
var ErrUnsupportedFormat = errors.New("unsupported detection format")

// UnsupportedFormatError is returned when the tensor channel count does not
// map to a known output encoding.
type UnsupportedFormatError struct {
	Channels int
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported detection format: %d channels (want 84, 6 or 5)", e.Channels)
}

// Is reports ErrUnsupportedFormat as a match.
func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

// IsUnsupportedFormat is a shorthand for errors.Is(err, ErrUnsupportedFormat).
func IsUnsupportedFormat(err error) bool {
	return errors.Is(err, ErrUnsupportedFormat)
}
