package fastdb

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/meigma/fastdb/core/internal/format"
)

// Feature is a handle to one feature of a layer.
type Feature struct {
	layer *Layer
	index int
}

// Index returns the feature's position in its layer.
func (f *Feature) Index() int { return f.index }

// Layer returns the layer holding the feature.
func (f *Feature) Layer() *Layer { return f.layer }

// Ref returns a reference to this feature.
func (f *Feature) Ref() FeatureRef {
	return FeatureRef{Layer: uint16(f.layer.index), Feature: uint32(f.index)} //nolint:gosec // bounded by header widths
}

// Geometry decodes the feature geometry.
// Layers of type any or none return ErrNoGeometry.
func (f *Feature) Geometry() (orb.Geometry, error) {
	switch f.layer.layout.Type {
	case format.GeometryPoint, format.GeometryLineString, format.GeometryPolygon:
	default:
		return nil, fmt.Errorf("%w: layer %q is %s", ErrNoGeometry, f.layer.Name(), f.layer.layout.Type)
	}
	g, err := f.layer.layout.Decode(f.layer.record(f.index))
	if err != nil {
		return nil, fmt.Errorf("%w: layer %q feature %d: %w", ErrInvalidFormat, f.layer.Name(), f.index, err)
	}
	return g, nil
}

// BBox returns the feature's bounding box. ok is false for layers without
// coordinates.
func (f *Feature) BBox() (b orb.Bound, ok bool, err error) {
	switch f.layer.layout.Type {
	case format.GeometryPoint, format.GeometryLineString, format.GeometryPolygon:
	default:
		return orb.Bound{}, false, nil
	}
	b, err = f.layer.bound(f.index)
	if err != nil {
		return orb.Bound{}, false, err
	}
	return b, true, nil
}

// GeometryLikeChunk returns the feature's geometry bytes as stored.
//
// For layers of type any this is the raw payload, for coordinate layers the
// encoded record, and for layers of type none an empty chunk. The chunk
// aliases the database buffer.
func (f *Feature) GeometryLikeChunk() Chunk {
	return Chunk{data: f.layer.layout.Payload(f.layer.record(f.index))}
}

// Row returns the feature's raw row bytes. The slice aliases the database buffer.
func (f *Feature) Row() []byte {
	return f.layer.row(f.index)
}

func (f *Feature) field(i int) (*FieldDesc, error) {
	if err := checkIndex("field", i, len(f.layer.fields)); err != nil {
		return nil, err
	}
	return &f.layer.fields[i], nil
}

// Float returns numeric field i as a float64. Integer fields are widened.
func (f *Feature) Float(i int) (float64, error) {
	fd, err := f.field(i)
	if err != nil {
		return 0, err
	}
	v, ok := fd.Float(f.Row())
	if !ok {
		return 0, fmt.Errorf("%w: field %q is %s, not numeric", ErrFieldType, fd.Name, fd.Type)
	}
	return v, nil
}

// Int returns integer field i.
func (f *Feature) Int(i int) (int64, error) {
	fd, err := f.field(i)
	if err != nil {
		return 0, err
	}
	v, ok := fd.Int(f.Row())
	if !ok {
		return 0, fmt.Errorf("%w: field %q is %s, not an integer", ErrFieldType, fd.Name, fd.Type)
	}
	return v, nil
}

// String returns STR or WSTR field i.
func (f *Feature) String(i int) (string, error) {
	fd, err := f.field(i)
	if err != nil {
		return "", err
	}
	if !fd.Type.IsString() {
		return "", fmt.Errorf("%w: field %q is %s, not a string", ErrFieldType, fd.Name, fd.Type)
	}
	return f.layer.str(f.index, i)
}

// FieldRef returns reference field i.
func (f *Feature) FieldRef(i int) (FeatureRef, error) {
	fd, err := f.field(i)
	if err != nil {
		return FeatureRef{}, err
	}
	if fd.Type != format.FieldREF {
		return FeatureRef{}, fmt.Errorf("%w: field %q is %s, not a reference", ErrFieldType, fd.Name, fd.Type)
	}
	return readRef(f.Row()[fd.Offset:]), nil
}

// Value returns field i as the type Column would produce.
func (f *Feature) Value(i int) (any, error) {
	if _, err := f.field(i); err != nil {
		return nil, err
	}
	return f.layer.value(f.index, i)
}

// SetFloat rewrites numeric field i in place. Normalised fields are quantised
// over their range; integer fields need an integral value that fits.
//
// Writes are not synchronised with concurrent readers of the same row.
func (f *Feature) SetFloat(i int, v float64) error {
	fd, err := f.writable(i)
	if err != nil {
		return err
	}
	if !fd.Type.IsInteger() && !fd.Type.IsFloat() {
		return fmt.Errorf("%w: field %q is %s, not numeric", ErrFieldType, fd.Name, fd.Type)
	}
	return rangeErr(fd, fd.PutFloat(f.Row(), v), v)
}

// SetInt rewrites integer field i in place.
func (f *Feature) SetInt(i int, v int64) error {
	fd, err := f.writable(i)
	if err != nil {
		return err
	}
	if !fd.Type.IsInteger() {
		return fmt.Errorf("%w: field %q is %s, not an integer", ErrFieldType, fd.Name, fd.Type)
	}
	return rangeErr(fd, fd.PutInt(f.Row(), v), v)
}

func (f *Feature) writable(i int) (*FieldDesc, error) {
	if f.layer.db.readOnly {
		return nil, ErrReadOnly
	}
	return f.field(i)
}

func rangeErr(fd *FieldDesc, err error, v any) error {
	if errors.Is(err, format.ErrRange) {
		return fmt.Errorf("%w: %v does not fit field %q (%s)", ErrValueRange, v, fd.Name, fd.Type)
	}
	return err
}

// SetCookie attaches user data to the feature and returns the previous value.
// Cookies live in memory only and are shared by all handles to the feature.
func (f *Feature) SetCookie(v any) any {
	prev, _ := f.layer.cookies.Swap(f.index, v)
	return prev
}

// Cookie returns the user data attached with SetCookie, or nil.
func (f *Feature) Cookie() any {
	v, _ := f.layer.cookies.Load(f.index)
	return v
}
