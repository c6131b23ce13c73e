// Package format defines the on-disk layout of fastdb database files.
//
// Every value is little-endian. The layer header and field descriptors keep
// the natural alignment of their 64-bit members, so both carry padding; the
// data area is packed. A database is a 16-byte magic, a u32 layer count and
// the layer blocks back to back. Each layer block is a fixed header, the field
// descriptors and a data area holding the geometry records, the fixed-width
// row table and the two string tables.
package format

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Magic identifies an uncompressed database file.
const Magic = "FASTVectorDB0.1\x00"

// Sizes of the fixed structures.
const (
	MagicSize       = 16
	FileHeaderSize  = MagicSize + 4
	LayerHeaderSize = 144
	FieldDescSize   = 56
	NameSize        = 64
	FieldNameSize   = 16
	RefSize         = 5
	BBoxSize        = 8
)

// MaxRefFeature is the largest feature index a FeatureRef can address.
const MaxRefFeature = 1<<24 - 1

// Field positions inside the layer header and field descriptor.
const (
	headerFeatureCount = 64
	headerGeometryType = 68
	headerFieldCount   = 70
	headerCoordFormat  = 72
	headerBBox         = 74
	headerStrTabU32    = 75
	headerExtent       = 80
	headerOffsets      = 112

	fieldType   = 16
	fieldVMin   = 24
	fieldVMax   = 32
	fieldSize   = 40
	fieldOffset = 48
)

// ErrInvalid is returned when a structure cannot be decoded.
var ErrInvalid = errors.New("invalid format")

// LayerHeader is the fixed header at the start of every layer block.
type LayerHeader struct {
	Name           string
	FeatureCount   uint32
	GeometryType   GeometryType
	FieldCount     uint16
	CoordFormat    CoordFormat
	BBox           bool
	StringTableU32 bool
	MinX           float64
	MinY           float64
	MaxX           float64
	MaxY           float64
	OffsetTable    uint64
	OffsetStrings  uint64
	OffsetWStrings uint64
	TotalSize      uint64
}

// DataOffset returns the offset of the data area within the layer block.
func (h *LayerHeader) DataOffset() uint64 {
	return LayerHeaderSize + uint64(h.FieldCount)*FieldDescSize
}

// AppendBinary appends the encoded header to b.
func (h *LayerHeader) AppendBinary(b []byte) []byte {
	var name [NameSize]byte
	copy(name[:NameSize-1], h.Name)
	b = append(b, name[:]...)
	b = binary.LittleEndian.AppendUint32(b, h.FeatureCount)
	b = binary.LittleEndian.AppendUint16(b, uint16(h.GeometryType))
	b = binary.LittleEndian.AppendUint16(b, h.FieldCount)
	b = binary.LittleEndian.AppendUint16(b, uint16(h.CoordFormat))
	b = append(b, boolByte(h.BBox), boolByte(h.StringTableU32), 0, 0, 0, 0)
	for _, v := range [4]float64{h.MinX, h.MinY, h.MaxX, h.MaxY} {
		b = binary.LittleEndian.AppendUint64(b, math.Float64bits(v))
	}
	for _, v := range [4]uint64{h.OffsetTable, h.OffsetStrings, h.OffsetWStrings, h.TotalSize} {
		b = binary.LittleEndian.AppendUint64(b, v)
	}
	return b
}

// DecodeLayerHeader decodes a layer header from the start of b.
func DecodeLayerHeader(b []byte) (LayerHeader, error) {
	if len(b) < LayerHeaderSize {
		return LayerHeader{}, fmt.Errorf("%w: layer header truncated (%d bytes)", ErrInvalid, len(b))
	}
	h := LayerHeader{
		Name:           cString(b[:NameSize]),
		FeatureCount:   binary.LittleEndian.Uint32(b[headerFeatureCount:]),
		GeometryType:   GeometryType(binary.LittleEndian.Uint16(b[headerGeometryType:])),
		FieldCount:     binary.LittleEndian.Uint16(b[headerFieldCount:]),
		CoordFormat:    CoordFormat(binary.LittleEndian.Uint16(b[headerCoordFormat:])),
		BBox:           b[headerBBox] != 0,
		StringTableU32: b[headerStrTabU32] != 0,
		MinX:           float64At(b, headerExtent),
		MinY:           float64At(b, headerExtent+8),
		MaxX:           float64At(b, headerExtent+16),
		MaxY:           float64At(b, headerExtent+24),
		OffsetTable:    binary.LittleEndian.Uint64(b[headerOffsets:]),
		OffsetStrings:  binary.LittleEndian.Uint64(b[headerOffsets+8:]),
		OffsetWStrings: binary.LittleEndian.Uint64(b[headerOffsets+16:]),
		TotalSize:      binary.LittleEndian.Uint64(b[headerOffsets+24:]),
	}
	if !h.GeometryType.Valid() {
		return LayerHeader{}, fmt.Errorf("%w: layer %q: unknown geometry type %d", ErrInvalid, h.Name, uint16(h.GeometryType))
	}
	if needsCoords(h.GeometryType) && !h.CoordFormat.Valid() {
		return LayerHeader{}, fmt.Errorf("%w: layer %q: unknown coordinate format %d", ErrInvalid, h.Name, uint16(h.CoordFormat))
	}
	return h, nil
}

// FieldDesc describes one column of the row table.
type FieldDesc struct {
	Name   string
	Type   FieldType
	Size   uint16
	Offset uint32
	VMin   float64
	VMax   float64
}

// AppendBinary appends the encoded field descriptor to b.
func (f *FieldDesc) AppendBinary(b []byte) []byte {
	var name [FieldNameSize]byte
	copy(name[:FieldNameSize-1], f.Name)
	b = append(b, name[:]...)
	b = binary.LittleEndian.AppendUint16(b, uint16(f.Type))
	b = append(b, 0, 0, 0, 0, 0, 0)
	b = binary.LittleEndian.AppendUint64(b, math.Float64bits(f.VMin))
	b = binary.LittleEndian.AppendUint64(b, math.Float64bits(f.VMax))
	b = binary.LittleEndian.AppendUint64(b, uint64(f.Size))
	b = binary.LittleEndian.AppendUint64(b, uint64(f.Offset))
	return b
}

// DecodeFieldDesc decodes a field descriptor from the start of b.
// strU32 selects the expected width of string indices.
func DecodeFieldDesc(b []byte, strU32 bool) (FieldDesc, error) {
	if len(b) < FieldDescSize {
		return FieldDesc{}, fmt.Errorf("%w: field descriptor truncated", ErrInvalid)
	}
	f := FieldDesc{
		Name: cString(b[:FieldNameSize]),
		Type: FieldType(binary.LittleEndian.Uint16(b[fieldType:])),
		VMin: float64At(b, fieldVMin),
		VMax: float64At(b, fieldVMax),
	}
	if !f.Type.Valid() {
		return FieldDesc{}, fmt.Errorf("%w: field %q: unknown type %d", ErrInvalid, f.Name, uint16(f.Type))
	}
	size := binary.LittleEndian.Uint64(b[fieldSize:])
	if size != uint64(f.Type.Size(strU32)) {
		return FieldDesc{}, fmt.Errorf("%w: field %q: size %d does not match type %s", ErrInvalid, f.Name, size, f.Type)
	}
	offset := binary.LittleEndian.Uint64(b[fieldOffset:])
	if offset > math.MaxUint32 {
		return FieldDesc{}, fmt.Errorf("%w: field %q: offset %d out of range", ErrInvalid, f.Name, offset)
	}
	f.Size = uint16(size)
	f.Offset = uint32(offset)
	return f, nil
}

// HasMagic reports whether b starts with the database magic.
func HasMagic(b []byte) bool {
	return len(b) >= MagicSize && string(b[:MagicSize]) == Magic
}

func needsCoords(g GeometryType) bool {
	return g == GeometryPoint || g == GeometryLineString || g == GeometryPolygon
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func float64At(b []byte, off int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b[off:]))
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
