package fastdb

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// Chunk is a view of the bytes behind a feature's geometry.
type Chunk struct {
	data []byte
}

// Bytes returns the chunk bytes. The slice aliases the database buffer.
func (c Chunk) Bytes() []byte { return c.data }

// Len returns the chunk length in bytes.
func (c Chunk) Len() int { return len(c.data) }

// elementSizes maps element type names to their width in bytes.
var elementSizes = map[string]int{
	"uint8":   1,
	"int8":    1,
	"uint16":  2,
	"int16":   2,
	"uint32":  4,
	"int32":   4,
	"float32": 4,
	"float64": 8,
}

// ElementSize returns the width of a named element type. Names are
// case-insensitive.
func ElementSize(elementType string) (int, error) {
	size, ok := elementSizes[strings.ToLower(elementType)]
	if !ok {
		return 0, &UnsupportedTypeError{Type: elementType}
	}
	return size, nil
}

// AsBufferArray returns a copy of the chunk bytes for reinterpretation as
// little-endian elements of elementType.
//
// Unknown names fail with *UnsupportedTypeError; a length that is not a
// whole number of elements fails with ErrMisaligned.
func (c Chunk) AsBufferArray(elementType string) ([]byte, error) {
	size, err := ElementSize(elementType)
	if err != nil {
		return nil, err
	}
	if len(c.data)%size != 0 {
		return nil, fmt.Errorf("%w: %d bytes as %s", ErrMisaligned, len(c.data), elementType)
	}
	out := make([]byte, len(c.data))
	copy(out, c.data)
	return out, nil
}

// Element is the set of types a chunk can be decoded into.
type Element interface {
	uint8 | int8 | uint16 | int16 | uint32 | int32 | float32 | float64
}

// ChunkValues decodes the chunk as little-endian values of type T.
func ChunkValues[T Element](c Chunk) ([]T, error) {
	var zero T
	size := elementSize(zero)
	if len(c.data)%size != 0 {
		return nil, fmt.Errorf("%w: %d bytes as %T", ErrMisaligned, len(c.data), zero)
	}
	out := make([]T, len(c.data)/size)
	for i := range out {
		b := c.data[i*size:]
		var v any
		switch any(zero).(type) {
		case uint8:
			v = b[0]
		case int8:
			v = int8(b[0]) //nolint:gosec // reinterpretation
		case uint16:
			v = binary.LittleEndian.Uint16(b)
		case int16:
			v = int16(binary.LittleEndian.Uint16(b)) //nolint:gosec // reinterpretation
		case uint32:
			v = binary.LittleEndian.Uint32(b)
		case int32:
			v = int32(binary.LittleEndian.Uint32(b)) //nolint:gosec // reinterpretation
		case float32:
			v = math.Float32frombits(binary.LittleEndian.Uint32(b))
		case float64:
			v = math.Float64frombits(binary.LittleEndian.Uint64(b))
		}
		out[i] = v.(T) //nolint:forcetypeassert // matched above
	}
	return out, nil
}

func elementSize[T Element](v T) int {
	switch any(v).(type) {
	case uint8, int8:
		return 1
	case uint16, int16:
		return 2
	case uint32, int32, float32:
		return 4
	default:
		return 8
	}
}
