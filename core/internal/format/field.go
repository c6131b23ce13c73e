package format

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrRange is returned when a value does not fit the field it is stored in.
var ErrRange = errors.New("value out of range")

// Float decodes a numeric field from row. Integer fields are widened.
// ok is false for string and reference fields.
func (f *FieldDesc) Float(row []byte) (v float64, ok bool) {
	b := row[f.Offset:]
	switch f.Type {
	case FieldU8N:
		return Dequantize(uint32(b[0]), f.VMin, f.VMax, 0xFF), true
	case FieldU16N:
		return Dequantize(uint32(binary.LittleEndian.Uint16(b)), f.VMin, f.VMax, 0xFFFF), true
	case FieldF32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))), true
	case FieldF64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), true
	}
	if i, isInt := f.Int(row); isInt {
		return float64(i), true
	}
	return 0, false
}

// Int decodes an integer field from row. ok is false for any other type.
func (f *FieldDesc) Int(row []byte) (v int64, ok bool) {
	b := row[f.Offset:]
	switch f.Type {
	case FieldU8:
		return int64(b[0]), true
	case FieldU16:
		return int64(binary.LittleEndian.Uint16(b)), true
	case FieldU32:
		return int64(binary.LittleEndian.Uint32(b)), true
	case FieldI32:
		return int64(int32(binary.LittleEndian.Uint32(b))), true //nolint:gosec // two's complement reinterpretation
	default:
		return 0, false
	}
}

// StringIndex decodes the string table index of a STR or WSTR field.
func (f *FieldDesc) StringIndex(row []byte) uint32 {
	b := row[f.Offset:]
	if f.Size == 4 {
		return binary.LittleEndian.Uint32(b)
	}
	return uint32(binary.LittleEndian.Uint16(b))
}

// PutStringIndex encodes a string table index into row.
func (f *FieldDesc) PutStringIndex(row []byte, idx uint32) error {
	b := row[f.Offset:]
	if f.Size == 4 {
		binary.LittleEndian.PutUint32(b, idx)
		return nil
	}
	if idx > math.MaxUint16 {
		return ErrRange
	}
	binary.LittleEndian.PutUint16(b, uint16(idx))
	return nil
}

// PutFloat encodes v into a numeric field of row.
// Normalised fields are quantised over [VMin, VMax]; integer fields require
// an integral value within their range.
func (f *FieldDesc) PutFloat(row []byte, v float64) error {
	b := row[f.Offset:]
	switch f.Type {
	case FieldU8N:
		b[0] = byte(Quantize(v, f.VMin, f.VMax, 0xFF))
	case FieldU16N:
		binary.LittleEndian.PutUint16(b, uint16(Quantize(v, f.VMin, f.VMax, 0xFFFF)))
	case FieldF32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
	case FieldF64:
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	case FieldU8, FieldU16, FieldU32, FieldI32:
		if v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxUint32 {
			return ErrRange
		}
		return f.PutInt(row, int64(v))
	default:
		return ErrRange
	}
	return nil
}

// PutInt encodes v into an integer field of row.
func (f *FieldDesc) PutInt(row []byte, v int64) error {
	b := row[f.Offset:]
	switch f.Type {
	case FieldU8:
		if v < 0 || v > math.MaxUint8 {
			return ErrRange
		}
		b[0] = byte(v)
	case FieldU16:
		if v < 0 || v > math.MaxUint16 {
			return ErrRange
		}
		binary.LittleEndian.PutUint16(b, uint16(v))
	case FieldU32:
		if v < 0 || v > math.MaxUint32 {
			return ErrRange
		}
		binary.LittleEndian.PutUint32(b, uint32(v))
	case FieldI32:
		if v < math.MinInt32 || v > math.MaxInt32 {
			return ErrRange
		}
		binary.LittleEndian.PutUint32(b, uint32(int32(v))) //nolint:gosec // range checked above
	default:
		return ErrRange
	}
	return nil
}
