// Package geometry encodes and decodes the per-feature geometry records of a
// fastdb layer.
package geometry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"github.com/meigma/fastdb/core/internal/format"
)

var (
	// ErrTruncated is returned when a record extends past the geometry area.
	ErrTruncated = errors.New("geometry record truncated")

	// ErrMismatch is returned when a geometry does not fit the layer type.
	ErrMismatch = errors.New("geometry does not match layer type")

	// ErrTooLarge is returned when a part or point count does not fit in 16 bits.
	ErrTooLarge = errors.New("geometry too large")
)

// Layout describes how the records of one layer are encoded.
type Layout struct {
	Type   format.GeometryType
	Coords format.CoordFormat
	BBox   bool
	Extent format.Extent
}

func (l Layout) hasBBox() bool {
	return l.BBox && l.Type != format.GeometryPoint
}

// Size returns the length of the record at the start of b.
func (l Layout) Size(b []byte) (int, error) {
	switch l.Type {
	case format.GeometryNone:
		return 0, nil
	case format.GeometryAny:
		if len(b) < 4 {
			return 0, ErrTruncated
		}
		n := uint64(binary.LittleEndian.Uint32(b)) + 4
		if n > uint64(len(b)) {
			return 0, ErrTruncated
		}
		return int(n), nil
	case format.GeometryPoint:
		if len(b) < l.Coords.Size() {
			return 0, ErrTruncated
		}
		return l.Coords.Size(), nil
	}

	pos := 0
	if l.hasBBox() {
		pos += format.BBoxSize
	}
	if len(b) < pos+2 {
		return 0, ErrTruncated
	}
	nparts := int(binary.LittleEndian.Uint16(b[pos:]))
	pos += 2
	cs := l.Coords.Size()
	for range nparts {
		if len(b) < pos+3 {
			return 0, ErrTruncated
		}
		npoints := int(binary.LittleEndian.Uint16(b[pos+1:]))
		pos += 3 + npoints*cs
		if pos > len(b) {
			return 0, ErrTruncated
		}
	}
	return pos, nil
}

// Payload returns the bytes a chunk exposes for the record rec.
// For any-type layers that is the raw payload without its length prefix.
func (l Layout) Payload(rec []byte) []byte {
	switch l.Type {
	case format.GeometryNone:
		return nil
	case format.GeometryAny:
		return rec[4:]
	default:
		return rec
	}
}

// StoredBBox returns the bounding box stored in front of a line or polygon record.
func (l Layout) StoredBBox(rec []byte) (orb.Bound, bool) {
	if !l.hasBBox() || (l.Type != format.GeometryLineString && l.Type != format.GeometryPolygon) || len(rec) < format.BBoxSize {
		return orb.Bound{}, false
	}
	minX, minY, maxX, maxY := format.BBox(rec, l.Extent)
	return orb.Bound{Min: orb.Point{minX, minY}, Max: orb.Point{maxX, maxY}}, true
}

// Part is one decoded part of a record.
type Part struct {
	Type   format.PartType
	Points []orb.Point
}

// Parts decodes the parts of a point, line or polygon record.
func (l Layout) Parts(rec []byte) ([]Part, error) {
	switch l.Type {
	case format.GeometryPoint:
		if len(rec) < l.Coords.Size() {
			return nil, ErrTruncated
		}
		x, y := format.Coord(rec, l.Coords, l.Extent)
		return []Part{{Type: format.PartPoint, Points: []orb.Point{{x, y}}}}, nil
	case format.GeometryLineString, format.GeometryPolygon:
	default:
		return nil, fmt.Errorf("%w: %s layers carry no coordinates", ErrMismatch, l.Type)
	}

	pos := 0
	if l.hasBBox() {
		pos += format.BBoxSize
	}
	if len(rec) < pos+2 {
		return nil, ErrTruncated
	}
	nparts := int(binary.LittleEndian.Uint16(rec[pos:]))
	pos += 2
	cs := l.Coords.Size()
	parts := make([]Part, 0, nparts)
	for range nparts {
		if len(rec) < pos+3 {
			return nil, ErrTruncated
		}
		pt := format.PartType(rec[pos])
		npoints := int(binary.LittleEndian.Uint16(rec[pos+1:]))
		pos += 3
		if len(rec) < pos+npoints*cs {
			return nil, ErrTruncated
		}
		pts := make([]orb.Point, npoints)
		for i := range pts {
			x, y := format.Coord(rec[pos:], l.Coords, l.Extent)
			pts[i] = orb.Point{x, y}
			pos += cs
		}
		parts = append(parts, Part{Type: pt, Points: pts})
	}
	return parts, nil
}

// Decode decodes a record into an orb geometry.
//
// Line layers yield a LineString or MultiLineString, polygon layers a Polygon
// or MultiPolygon. Parts that do not fit the layer type are collected into an
// orb.Collection alongside the main geometry.
func (l Layout) Decode(rec []byte) (orb.Geometry, error) {
	parts, err := l.Parts(rec)
	if err != nil {
		return nil, err
	}
	if l.Type == format.GeometryPoint {
		return parts[0].Points[0], nil
	}

	var (
		lines    orb.MultiLineString
		polygons orb.MultiPolygon
		extra    orb.Collection
	)
	for _, p := range parts {
		switch p.Type {
		case format.PartLineString:
			lines = append(lines, orb.LineString(p.Points))
		case format.PartRingExternal:
			polygons = append(polygons, orb.Polygon{orb.Ring(p.Points)})
		case format.PartRingInternal:
			if len(polygons) == 0 {
				polygons = append(polygons, orb.Polygon{nil})
			}
			last := len(polygons) - 1
			polygons[last] = append(polygons[last], orb.Ring(p.Points))
		case format.PartPoint:
			for _, pt := range p.Points {
				extra = append(extra, pt)
			}
		default:
			return nil, fmt.Errorf("%w: unknown part type %d", format.ErrInvalid, p.Type)
		}
	}

	var main orb.Geometry
	switch {
	case l.Type == format.GeometryLineString && len(lines) == 1:
		main = lines[0]
	case l.Type == format.GeometryLineString:
		main = lines
	case len(polygons) == 1:
		main = polygons[0]
	default:
		main = polygons
	}
	if len(extra) == 0 {
		return main, nil
	}
	return append(orb.Collection{main}, extra...), nil
}

// Append encodes g as a record of this layout and appends it to dst.
func (l Layout) Append(dst []byte, g orb.Geometry) ([]byte, error) {
	switch l.Type {
	case format.GeometryNone:
		return dst, nil
	case format.GeometryAny:
		return nil, fmt.Errorf("%w: any layers take raw bytes", ErrMismatch)
	case format.GeometryPoint:
		p, ok := g.(orb.Point)
		if !ok {
			if mp, isMulti := g.(orb.MultiPoint); isMulti && len(mp) == 1 {
				p, ok = mp[0], true
			}
		}
		if !ok {
			return nil, fmt.Errorf("%w: point layer got %s", ErrMismatch, g.GeoJSONType())
		}
		return appendCoord(dst, l, p), nil
	}

	parts, err := l.partsOf(g)
	if err != nil {
		return nil, err
	}
	if len(parts) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d parts", ErrTooLarge, len(parts))
	}
	if l.hasBBox() {
		b := g.Bound()
		tx := (l.Extent.MaxX - l.Extent.MinX) / 0xFFFF
		ty := (l.Extent.MaxY - l.Extent.MinY) / 0xFFFF
		var box [format.BBoxSize]byte
		format.PutBBox(box[:], l.Extent, b.Min[0]-tx, b.Min[1]-ty, b.Max[0]+tx, b.Max[1]+ty)
		dst = append(dst, box[:]...)
	}
	dst = binary.LittleEndian.AppendUint16(dst, uint16(len(parts)))
	for _, p := range parts {
		if len(p.Points) > math.MaxUint16 {
			return nil, fmt.Errorf("%w: %d points in one part", ErrTooLarge, len(p.Points))
		}
		dst = append(dst, byte(p.Type))
		dst = binary.LittleEndian.AppendUint16(dst, uint16(len(p.Points)))
		for _, pt := range p.Points {
			dst = appendCoord(dst, l, pt)
		}
	}
	return dst, nil
}

// AppendRaw appends an any-type record holding payload.
func AppendRaw(dst, payload []byte) ([]byte, error) {
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: raw payload of %d bytes", ErrTooLarge, len(payload))
	}
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(payload)))
	return append(dst, payload...), nil
}

func (l Layout) partsOf(g orb.Geometry) ([]Part, error) {
	switch l.Type {
	case format.GeometryLineString:
		switch v := g.(type) {
		case orb.LineString:
			return []Part{{Type: format.PartLineString, Points: v}}, nil
		case orb.MultiLineString:
			parts := make([]Part, len(v))
			for i, ls := range v {
				parts[i] = Part{Type: format.PartLineString, Points: ls}
			}
			return parts, nil
		}
	case format.GeometryPolygon:
		switch v := g.(type) {
		case orb.Polygon:
			return polygonParts(nil, v), nil
		case orb.MultiPolygon:
			var parts []Part
			for _, poly := range v {
				parts = polygonParts(parts, poly)
			}
			return parts, nil
		}
	}
	return nil, fmt.Errorf("%w: %s layer got %s", ErrMismatch, l.Type, g.GeoJSONType())
}

func polygonParts(parts []Part, poly orb.Polygon) []Part {
	for i, ring := range poly {
		pt := format.PartRingInternal
		if i == 0 {
			pt = format.PartRingExternal
		}
		parts = append(parts, Part{Type: pt, Points: ring})
	}
	return parts
}

func appendCoord(dst []byte, l Layout, p orb.Point) []byte {
	var buf [16]byte
	format.PutCoord(buf[:], l.Coords, l.Extent, p[0], p[1])
	return append(dst, buf[:l.Coords.Size()]...)
}
