package fastdb

import (
	"encoding/binary"
	"fmt"

	"github.com/meigma/fastdb/core/internal/format"
	"github.com/meigma/fastdb/core/internal/geometry"
)

// parse validates data and builds its layers. Every geometry record is walked
// once so features can be addressed by index afterwards.
func parse(db *DB, data []byte) ([]*Layer, error) {
	if !format.HasMagic(data) {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidFormat)
	}
	if len(data) < format.FileHeaderSize {
		return nil, fmt.Errorf("%w: file header truncated", ErrInvalidFormat)
	}
	count := uint64(binary.LittleEndian.Uint32(data[format.MagicSize:]))
	rest := uint64(len(data) - format.FileHeaderSize)
	if count*format.LayerHeaderSize > rest {
		return nil, fmt.Errorf("%w: %d layers cannot fit in %d bytes", ErrInvalidFormat, count, rest)
	}

	layers := make([]*Layer, 0, count)
	off := uint64(format.FileHeaderSize)
	for i := range int(count) {
		l, size, err := parseLayer(db, i, data[off:])
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		layers = append(layers, l)
		off += size
	}
	if extra := uint64(len(data)) - off; extra > 0 {
		db.log().Warn("ignoring trailing bytes after last layer", "bytes", extra)
	}
	return layers, nil
}

func parseLayer(db *DB, index int, b []byte) (*Layer, uint64, error) {
	h, err := format.DecodeLayerHeader(b)
	if err != nil {
		return nil, 0, invalid(err)
	}
	if h.TotalSize < h.DataOffset() || h.TotalSize > uint64(len(b)) {
		return nil, 0, fmt.Errorf("%w: layer %q size %d outside [%d,%d]",
			ErrInvalidFormat, h.Name, h.TotalSize, h.DataOffset(), len(b))
	}
	block := b[:h.TotalSize]

	fields := make([]FieldDesc, h.FieldCount)
	rowSize := 0
	for j := range fields {
		f, err := format.DecodeFieldDesc(block[format.LayerHeaderSize+j*format.FieldDescSize:], h.StringTableU32)
		if err != nil {
			return nil, 0, invalid(err)
		}
		fields[j] = f
		rowSize += int(f.Size)
	}
	for _, f := range fields {
		if int(f.Offset)+int(f.Size) > rowSize {
			return nil, 0, fmt.Errorf("%w: field %q at %d+%d overruns %d byte row",
				ErrInvalidFormat, f.Name, f.Offset, f.Size, rowSize)
		}
	}

	area := block[h.DataOffset():]
	n := uint64(len(area))
	if h.OffsetTable > h.OffsetStrings || h.OffsetStrings > h.OffsetWStrings || h.OffsetWStrings > n {
		return nil, 0, fmt.Errorf("%w: layer %q section offsets out of order", ErrInvalidFormat, h.Name)
	}
	tableLen := uint64(h.FeatureCount) * uint64(rowSize)
	if h.OffsetTable+tableLen > h.OffsetStrings {
		return nil, 0, fmt.Errorf("%w: layer %q row table overruns string table", ErrInvalidFormat, h.Name)
	}
	strs, err := format.DecodeStringTable(area[h.OffsetStrings:h.OffsetWStrings])
	if err != nil {
		return nil, 0, invalid(err)
	}
	wstrs, err := format.DecodeWStringTable(area[h.OffsetWStrings:])
	if err != nil {
		return nil, 0, invalid(err)
	}

	l := &Layer{
		db:      db,
		index:   index,
		header:  h,
		fields:  fields,
		rowSize: rowSize,
		layout: geometry.Layout{
			Type:   h.GeometryType,
			Coords: h.CoordFormat,
			BBox:   h.BBox,
			Extent: format.Extent{MinX: h.MinX, MinY: h.MinY, MaxX: h.MaxX, MaxY: h.MaxY},
		},
		geom:  area[:h.OffsetTable],
		table: area[h.OffsetTable : h.OffsetTable+tableLen],
		strs:  strs,
		wstrs: wstrs,
	}
	l.fieldByName = make(map[string]int, len(fields))
	for j, f := range fields {
		if _, dup := l.fieldByName[f.Name]; !dup {
			l.fieldByName[f.Name] = j
		}
	}
	if err := l.indexGeometry(); err != nil {
		return nil, 0, err
	}
	return l, h.TotalSize, nil
}

// indexGeometry records the start of every geometry record.
func (l *Layer) indexGeometry() error {
	if l.layout.Type == format.GeometryNone {
		return nil
	}
	count := int(l.header.FeatureCount)
	if uint64(count)*uint64(l.minRecordSize()) > uint64(len(l.geom)) {
		return fmt.Errorf("%w: layer %q: %d features cannot fit in %d geometry bytes",
			ErrInvalidFormat, l.Name(), count, len(l.geom))
	}
	offsets := make([]int, count+1)
	pos := 0
	for i := range count {
		size, err := l.layout.Size(l.geom[pos:])
		if err != nil {
			return fmt.Errorf("%w: layer %q feature %d: %w", ErrInvalidFormat, l.Name(), i, err)
		}
		offsets[i] = pos
		pos += size
	}
	offsets[count] = pos
	l.offsets = offsets
	return nil
}

func (l *Layer) minRecordSize() int {
	switch l.layout.Type {
	case format.GeometryAny:
		return 4
	case format.GeometryPoint:
		return l.layout.Coords.Size()
	case format.GeometryLineString, format.GeometryPolygon:
		if l.layout.BBox {
			return 2 + format.BBoxSize
		}
		return 2
	default:
		return 0
	}
}
