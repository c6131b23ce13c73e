package format

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf16"
)

// Extent is the bounding rectangle used to quantise normalised coordinates.
type Extent struct {
	MinX, MinY, MaxX, MaxY float64
}

// Empty reports whether the extent has no area along either axis.
func (e Extent) Empty() bool {
	return !(e.MaxX > e.MinX) || !(e.MaxY > e.MinY)
}

// CoordMax returns the largest quantised value for a normalised format.
func CoordMax(c CoordFormat) float64 {
	switch c {
	case CoordTx16:
		return 0xFFFF
	case CoordTx24:
		return 0xFFFFFF
	case CoordTx32:
		return 0xFFFFFFFF
	default:
		return 0
	}
}

// Quantize maps v from [lo, hi] onto [0, limit], clamping out of range values.
func Quantize(v, lo, hi, limit float64) uint32 {
	if !(hi > lo) {
		return 0
	}
	q := limit * (v - lo) / (hi - lo)
	switch {
	case math.IsNaN(q) || q <= 0:
		return 0
	case q >= limit:
		return uint32(limit)
	default:
		return uint32(q)
	}
}

// Dequantize maps q from [0, limit] back onto [lo, hi].
func Dequantize(q uint32, lo, hi, limit float64) float64 {
	return lo + (hi-lo)*float64(q)/limit
}

// PutCoord encodes the point (x, y) into b using format c.
// b must hold at least c.Size() bytes.
func PutCoord(b []byte, c CoordFormat, e Extent, x, y float64) {
	switch c {
	case CoordF32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(x)))
		binary.LittleEndian.PutUint32(b[4:], math.Float32bits(float32(y)))
	case CoordF64:
		binary.LittleEndian.PutUint64(b, math.Float64bits(x))
		binary.LittleEndian.PutUint64(b[8:], math.Float64bits(y))
	case CoordTx16:
		binary.LittleEndian.PutUint16(b, uint16(Quantize(x, e.MinX, e.MaxX, 0xFFFF)))
		binary.LittleEndian.PutUint16(b[2:], uint16(Quantize(y, e.MinY, e.MaxY, 0xFFFF)))
	case CoordTx24:
		putUint24(b, Quantize(x, e.MinX, e.MaxX, 0xFFFFFF))
		putUint24(b[3:], Quantize(y, e.MinY, e.MaxY, 0xFFFFFF))
	case CoordTx32:
		binary.LittleEndian.PutUint32(b, Quantize(x, e.MinX, e.MaxX, 0xFFFFFFFF))
		binary.LittleEndian.PutUint32(b[4:], Quantize(y, e.MinY, e.MaxY, 0xFFFFFFFF))
	}
}

// Coord decodes one point encoded with format c from the start of b.
func Coord(b []byte, c CoordFormat, e Extent) (x, y float64) {
	switch c {
	case CoordF32:
		x = float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		y = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[4:])))
	case CoordF64:
		x = math.Float64frombits(binary.LittleEndian.Uint64(b))
		y = math.Float64frombits(binary.LittleEndian.Uint64(b[8:]))
	case CoordTx16:
		x = Dequantize(uint32(binary.LittleEndian.Uint16(b)), e.MinX, e.MaxX, 0xFFFF)
		y = Dequantize(uint32(binary.LittleEndian.Uint16(b[2:])), e.MinY, e.MaxY, 0xFFFF)
	case CoordTx24:
		x = Dequantize(uint24(b), e.MinX, e.MaxX, 0xFFFFFF)
		y = Dequantize(uint24(b[3:]), e.MinY, e.MaxY, 0xFFFFFF)
	case CoordTx32:
		x = Dequantize(binary.LittleEndian.Uint32(b), e.MinX, e.MaxX, 0xFFFFFFFF)
		y = Dequantize(binary.LittleEndian.Uint32(b[4:]), e.MinY, e.MaxY, 0xFFFFFFFF)
	}
	return x, y
}

// PutBBox encodes a 16-bit bounding box quantised to e.
func PutBBox(b []byte, e Extent, minX, minY, maxX, maxY float64) {
	binary.LittleEndian.PutUint16(b, uint16(Quantize(minX, e.MinX, e.MaxX, 0xFFFF)))
	binary.LittleEndian.PutUint16(b[2:], uint16(Quantize(minY, e.MinY, e.MaxY, 0xFFFF)))
	binary.LittleEndian.PutUint16(b[4:], uint16(Quantize(maxX, e.MinX, e.MaxX, 0xFFFF)))
	binary.LittleEndian.PutUint16(b[6:], uint16(Quantize(maxY, e.MinY, e.MaxY, 0xFFFF)))
}

// BBox decodes a 16-bit bounding box.
func BBox(b []byte, e Extent) (minX, minY, maxX, maxY float64) {
	minX, minY = Coord(b, CoordTx16, e)
	maxX, maxY = Coord(b[4:], CoordTx16, e)
	return minX, minY, maxX, maxY
}

// PutRef encodes a feature reference as u16 layer + u24 feature.
func PutRef(b []byte, layer uint16, feature uint32) {
	binary.LittleEndian.PutUint16(b, layer)
	putUint24(b[2:], feature)
}

// Ref decodes a feature reference.
func Ref(b []byte) (layer uint16, feature uint32) {
	return binary.LittleEndian.Uint16(b), uint24(b[2:])
}

// AppendStringTable appends a u32 count followed by NUL-terminated strings.
func AppendStringTable(b []byte, strs []string) []byte {
	b = binary.LittleEndian.AppendUint32(b, uint32(len(strs)))
	for _, s := range strs {
		b = append(b, s...)
		b = append(b, 0)
	}
	return b
}

// AppendWStringTable appends a u32 count followed by NUL-terminated UTF-16LE strings.
func AppendWStringTable(b []byte, strs []string) []byte {
	b = binary.LittleEndian.AppendUint32(b, uint32(len(strs)))
	for _, s := range strs {
		for _, u := range utf16.Encode([]rune(s)) {
			b = binary.LittleEndian.AppendUint16(b, u)
		}
		b = binary.LittleEndian.AppendUint16(b, 0)
	}
	return b
}

// WStringSize returns the encoded size of s in a wstring table.
func WStringSize(s string) int {
	return (len(utf16.Encode([]rune(s))) + 1) * 2
}

// DecodeStringTable decodes a string table at the start of b.
func DecodeStringTable(b []byte) ([]string, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("%w: string table truncated", ErrInvalid)
	}
	count := binary.LittleEndian.Uint32(b)
	if uint64(count) > uint64(len(b)-4) {
		return nil, fmt.Errorf("%w: string table count %d exceeds table size", ErrInvalid, count)
	}
	out := make([]string, 0, count)
	p := b[4:]
	for i := uint32(0); i < count; i++ {
		end := -1
		for j, c := range p {
			if c == 0 {
				end = j
				break
			}
		}
		if end < 0 {
			return nil, fmt.Errorf("%w: string %d is not terminated", ErrInvalid, i)
		}
		out = append(out, string(p[:end]))
		p = p[end+1:]
	}
	return out, nil
}

// DecodeWStringTable decodes a UTF-16LE string table at the start of b.
func DecodeWStringTable(b []byte) ([]string, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("%w: wstring table truncated", ErrInvalid)
	}
	count := binary.LittleEndian.Uint32(b)
	if uint64(count)*2 > uint64(len(b)-4) {
		return nil, fmt.Errorf("%w: wstring table count %d exceeds table size", ErrInvalid, count)
	}
	out := make([]string, 0, count)
	p := b[4:]
	var units []uint16
	for i := uint32(0); i < count; i++ {
		units = units[:0]
		terminated := false
		for len(p) >= 2 {
			u := binary.LittleEndian.Uint16(p)
			p = p[2:]
			if u == 0 {
				terminated = true
				break
			}
			units = append(units, u)
		}
		if !terminated {
			return nil, fmt.Errorf("%w: wstring %d is not terminated", ErrInvalid, i)
		}
		out = append(out, string(utf16.Decode(units)))
	}
	return out, nil
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

func uint24(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}
