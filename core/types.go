package fastdb

import (
	"github.com/meigma/fastdb/core/internal/format"
)

// Re-export format types for the public API.
type (
	// GeometryType identifies the geometry stored for each feature of a layer.
	GeometryType = format.GeometryType

	// CoordFormat identifies how coordinates are encoded.
	CoordFormat = format.CoordFormat

	// FieldType identifies the encoding of a row field.
	FieldType = format.FieldType

	// FieldDesc describes one column of a layer's row table.
	FieldDesc = format.FieldDesc

	// Compression identifies the frame wrapping a database file.
	Compression = format.Compression
)

// Geometry types.
const (
	GeometryAny        = format.GeometryAny
	GeometryPoint      = format.GeometryPoint
	GeometryLineString = format.GeometryLineString
	GeometryPolygon    = format.GeometryPolygon
	GeometryNone       = format.GeometryNone
)

// Coordinate formats. The Tx formats quantise coordinates to the layer extent.
const (
	CoordF32  = format.CoordF32
	CoordF64  = format.CoordF64
	CoordTx16 = format.CoordTx16
	CoordTx24 = format.CoordTx24
	CoordTx32 = format.CoordTx32
)

// Field types.
const (
	FieldU8   = format.FieldU8
	FieldU16  = format.FieldU16
	FieldU32  = format.FieldU32
	FieldI32  = format.FieldI32
	FieldU8N  = format.FieldU8N
	FieldU16N = format.FieldU16N
	FieldF32  = format.FieldF32
	FieldF64  = format.FieldF64
	FieldSTR  = format.FieldSTR
	FieldWSTR = format.FieldWSTR
	FieldREF  = format.FieldREF
)

// Compression algorithms.
const (
	CompressionNone = format.CompressionNone
	CompressionZstd = format.CompressionZstd
	CompressionLZ4  = format.CompressionLZ4
)

// NameLayer is the layer the builder emits to index named features.
const NameLayer = "_name_"
