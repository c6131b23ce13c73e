package fastdb

import (
	"errors"
	"fmt"

	"github.com/meigma/fastdb/core/internal/format"
)

// Sentinel errors.
var (
	// ErrLoad is wrapped by every LoadError.
	ErrLoad = errors.New("fastdb: load failed")

	// ErrOutOfRange is wrapped by every IndexError.
	ErrOutOfRange = errors.New("fastdb: index out of range")

	// ErrUnsupportedType is wrapped by every UnsupportedTypeError.
	ErrUnsupportedType = errors.New("fastdb: unsupported element type")

	// ErrInvalidFormat is returned when database bytes are malformed.
	ErrInvalidFormat = errors.New("fastdb: invalid format")

	// ErrFieldType is returned when a field is read or written as the wrong kind.
	ErrFieldType = errors.New("fastdb: field type mismatch")

	// ErrValueRange is returned when a value does not fit its field.
	ErrValueRange = errors.New("fastdb: value out of range")

	// ErrMisaligned is returned when a chunk is not a whole number of elements.
	ErrMisaligned = errors.New("fastdb: chunk length is not a multiple of the element size")

	// ErrReadOnly is returned when writing to a memory-mapped database.
	ErrReadOnly = errors.New("fastdb: database is read-only")

	// ErrNoGeometry is returned when coordinates are requested from a layer
	// that stores raw bytes or nothing.
	ErrNoGeometry = errors.New("fastdb: layer has no coordinate geometry")

	// ErrSizeOverflow is returned when a database exceeds the configured size.
	ErrSizeOverflow = errors.New("fastdb: size overflow")

	// ErrDigestMismatch is returned when content does not match the expected digest.
	ErrDigestMismatch = errors.New("fastdb: digest mismatch")

	// ErrBuilder is returned when a builder is used out of order.
	ErrBuilder = errors.New("fastdb: builder misuse")
)

// LoadError reports a database that could not be loaded.
type LoadError struct {
	// Path is the file path or source identifier.
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("fastdb: load: %v", e.Err)
	}
	return fmt.Sprintf("fastdb: load %s: %v", e.Path, e.Err)
}

// Unwrap returns ErrLoad and the underlying cause.
func (e *LoadError) Unwrap() []error {
	return []error{ErrLoad, e.Err}
}

// IndexError reports an index outside [0, Len).
type IndexError struct {
	// Kind names what was indexed: "layer", "field" or "feature".
	Kind  string
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("fastdb: %s index %d out of range [0,%d)", e.Kind, e.Index, e.Len)
}

// Unwrap returns ErrOutOfRange.
func (e *IndexError) Unwrap() error {
	return ErrOutOfRange
}

// UnsupportedTypeError reports an unknown chunk element type name.
type UnsupportedTypeError struct {
	Type string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("fastdb: unsupported element type %q", e.Type)
}

// Unwrap returns ErrUnsupportedType.
func (e *UnsupportedTypeError) Unwrap() error {
	return ErrUnsupportedType
}

func checkIndex(kind string, i, n int) error {
	if i < 0 || i >= n {
		return &IndexError{Kind: kind, Index: i, Len: n}
	}
	return nil
}

// invalid wraps a decoding failure so it matches ErrInvalidFormat.
func invalid(err error) error {
	if errors.Is(err, format.ErrInvalid) {
		return fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	return err
}
