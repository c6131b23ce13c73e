package format

import "fmt"

// GeometryType identifies the geometry stored for each feature of a layer.
type GeometryType uint16

const (
	GeometryAny        GeometryType = 0
	GeometryPoint      GeometryType = 1
	GeometryLineString GeometryType = 2
	GeometryPolygon    GeometryType = 3
	GeometryNone       GeometryType = 0xFFFF
)

// String returns the human-readable name of the geometry type.
func (g GeometryType) String() string {
	switch g {
	case GeometryAny:
		return "any"
	case GeometryPoint:
		return "point"
	case GeometryLineString:
		return "linestring"
	case GeometryPolygon:
		return "polygon"
	case GeometryNone:
		return "none"
	default:
		return fmt.Sprintf("geometry(%d)", uint16(g))
	}
}

// Valid reports whether g is a known geometry type.
func (g GeometryType) Valid() bool {
	switch g {
	case GeometryAny, GeometryPoint, GeometryLineString, GeometryPolygon, GeometryNone:
		return true
	default:
		return false
	}
}

// CoordFormat identifies how coordinates are encoded.
type CoordFormat uint16

const (
	CoordF32  CoordFormat = 1
	CoordF64  CoordFormat = 2
	CoordTx16 CoordFormat = 3
	CoordTx24 CoordFormat = 4
	CoordTx32 CoordFormat = 5
)

// String returns the human-readable name of the coordinate format.
func (c CoordFormat) String() string {
	switch c {
	case CoordF32:
		return "f32"
	case CoordF64:
		return "f64"
	case CoordTx16:
		return "tx16"
	case CoordTx24:
		return "tx24"
	case CoordTx32:
		return "tx32"
	default:
		return fmt.Sprintf("coord(%d)", uint16(c))
	}
}

// Valid reports whether c is a known coordinate format.
func (c CoordFormat) Valid() bool {
	return c >= CoordF32 && c <= CoordTx32
}

// Size returns the encoded size of one coordinate pair.
func (c CoordFormat) Size() int {
	switch c {
	case CoordF32:
		return 8
	case CoordF64:
		return 16
	case CoordTx16:
		return 4
	case CoordTx24:
		return 6
	case CoordTx32:
		return 8
	default:
		return 0
	}
}

// Normalized reports whether coordinates are quantised to the layer extent.
func (c CoordFormat) Normalized() bool {
	return c == CoordTx16 || c == CoordTx24 || c == CoordTx32
}

// FieldType identifies the encoding of a row field.
type FieldType uint16

const (
	FieldU8   FieldType = 1
	FieldU16  FieldType = 2
	FieldU32  FieldType = 3
	FieldI32  FieldType = 4
	FieldU8N  FieldType = 5
	FieldU16N FieldType = 6
	FieldF32  FieldType = 7
	FieldF64  FieldType = 8
	FieldSTR  FieldType = 9
	FieldWSTR FieldType = 10
	FieldREF  FieldType = 11
)

// String returns the human-readable name of the field type.
func (f FieldType) String() string {
	switch f {
	case FieldU8:
		return "u8"
	case FieldU16:
		return "u16"
	case FieldU32:
		return "u32"
	case FieldI32:
		return "i32"
	case FieldU8N:
		return "u8n"
	case FieldU16N:
		return "u16n"
	case FieldF32:
		return "f32"
	case FieldF64:
		return "f64"
	case FieldSTR:
		return "str"
	case FieldWSTR:
		return "wstr"
	case FieldREF:
		return "ref"
	default:
		return fmt.Sprintf("field(%d)", uint16(f))
	}
}

// Valid reports whether f is a known field type.
func (f FieldType) Valid() bool {
	return f >= FieldU8 && f <= FieldREF
}

// Size returns the encoded size of the field in a row.
// String indices take 4 bytes when strU32 is set and 2 otherwise.
func (f FieldType) Size(strU32 bool) int {
	switch f {
	case FieldU8, FieldU8N:
		return 1
	case FieldU16, FieldU16N:
		return 2
	case FieldU32, FieldI32, FieldF32:
		return 4
	case FieldF64:
		return 8
	case FieldSTR, FieldWSTR:
		if strU32 {
			return 4
		}
		return 2
	case FieldREF:
		return RefSize
	default:
		return 0
	}
}

// IsInteger reports whether the field stores a plain integer.
func (f FieldType) IsInteger() bool {
	switch f {
	case FieldU8, FieldU16, FieldU32, FieldI32:
		return true
	default:
		return false
	}
}

// IsFloat reports whether the field decodes to a floating point value.
func (f FieldType) IsFloat() bool {
	switch f {
	case FieldU8N, FieldU16N, FieldF32, FieldF64:
		return true
	default:
		return false
	}
}

// IsString reports whether the field is a string table index.
func (f FieldType) IsString() bool {
	return f == FieldSTR || f == FieldWSTR
}

// PartType identifies one part of a line or polygon geometry.
type PartType uint8

const (
	PartPoint        PartType = 1
	PartLineString   PartType = 2
	PartRingExternal PartType = 3
	PartRingInternal PartType = 4
)

// Compression identifies the frame wrapping a database file.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionLZ4
)

// String returns the human-readable name of the compression algorithm.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return "unknown"
	}
}
