package fastdb

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/paulmach/orb"

	"github.com/meigma/fastdb/core/internal/format"
)

// Column materialises field i for every feature.
//
// Integer fields yield int64, normalised and float fields float64, string
// fields string and reference fields FeatureRef. The result always has
// FeatureCount elements.
func (l *Layer) Column(i int) ([]any, error) {
	if err := checkIndex("field", i, len(l.fields)); err != nil {
		return nil, err
	}
	out := make([]any, l.FeatureCount())
	for r := range out {
		v, err := l.value(r, i)
		if err != nil {
			return nil, err
		}
		out[r] = v
	}
	return out, nil
}

// Float64Column materialises a numeric field as float64.
func (l *Layer) Float64Column(i int) ([]float64, error) {
	if err := checkIndex("field", i, len(l.fields)); err != nil {
		return nil, err
	}
	f := &l.fields[i]
	if !f.Type.IsInteger() && !f.Type.IsFloat() {
		return nil, fmt.Errorf("%w: field %q is %s", ErrFieldType, f.Name, f.Type)
	}
	out := make([]float64, l.FeatureCount())
	for r := range out {
		out[r], _ = f.Float(l.row(r))
	}
	return out, nil
}

// Int64Column materialises an integer field.
func (l *Layer) Int64Column(i int) ([]int64, error) {
	if err := checkIndex("field", i, len(l.fields)); err != nil {
		return nil, err
	}
	f := &l.fields[i]
	if !f.Type.IsInteger() {
		return nil, fmt.Errorf("%w: field %q is %s", ErrFieldType, f.Name, f.Type)
	}
	out := make([]int64, l.FeatureCount())
	for r := range out {
		out[r], _ = f.Int(l.row(r))
	}
	return out, nil
}

// StringColumn materialises a STR or WSTR field.
func (l *Layer) StringColumn(i int) ([]string, error) {
	if err := checkIndex("field", i, len(l.fields)); err != nil {
		return nil, err
	}
	if !l.fields[i].Type.IsString() {
		return nil, fmt.Errorf("%w: field %q is %s", ErrFieldType, l.fields[i].Name, l.fields[i].Type)
	}
	out := make([]string, l.FeatureCount())
	for r := range out {
		s, err := l.str(r, i)
		if err != nil {
			return nil, err
		}
		out[r] = s
	}
	return out, nil
}

// Query returns the indices of features whose bounding box intersects b.
// Stored bounding boxes are used when the layer has them.
func (l *Layer) Query(b orb.Bound) (*roaring.Bitmap, error) {
	switch l.layout.Type {
	case format.GeometryPoint, format.GeometryLineString, format.GeometryPolygon:
	default:
		return nil, fmt.Errorf("%w: layer %q is %s", ErrNoGeometry, l.Name(), l.layout.Type)
	}
	out := roaring.New()
	for i := range l.FeatureCount() {
		fb, err := l.bound(i)
		if err != nil {
			return nil, err
		}
		if fb.Intersects(b) {
			out.Add(uint32(i)) //nolint:gosec // feature counts are u32
		}
	}
	return out, nil
}

// bound returns the bounding box of feature i, preferring the stored one.
func (l *Layer) bound(i int) (orb.Bound, error) {
	rec := l.record(i)
	if box, ok := l.layout.StoredBBox(rec); ok {
		return box, nil
	}
	g, err := l.layout.Decode(rec)
	if err != nil {
		return orb.Bound{}, fmt.Errorf("%w: layer %q feature %d: %w", ErrInvalidFormat, l.Name(), i, err)
	}
	return g.Bound(), nil
}

func (l *Layer) value(r, i int) (any, error) {
	f := &l.fields[i]
	row := l.row(r)
	switch {
	case f.Type.IsInteger():
		v, _ := f.Int(row)
		return v, nil
	case f.Type.IsFloat():
		v, _ := f.Float(row)
		return v, nil
	case f.Type.IsString():
		return l.str(r, i)
	case f.Type == format.FieldREF:
		return readRef(row[f.Offset:]), nil
	default:
		return nil, fmt.Errorf("%w: field %q has type %s", ErrInvalidFormat, f.Name, f.Type)
	}
}

func (l *Layer) str(r, i int) (string, error) {
	f := &l.fields[i]
	idx := f.StringIndex(l.row(r))
	table := l.strs
	if f.Type == format.FieldWSTR {
		table = l.wstrs
	}
	if uint64(idx) >= uint64(len(table)) {
		return "", fmt.Errorf("%w: field %q row %d: string index %d outside table of %d",
			ErrInvalidFormat, f.Name, r, idx, len(table))
	}
	return table[idx], nil
}
