package fastdb

import (
	"iter"
	"sync"

	"github.com/paulmach/orb"

	"github.com/meigma/fastdb/core/internal/format"
	"github.com/meigma/fastdb/core/internal/geometry"
)

// Layer is one named table of features within a database.
type Layer struct {
	db          *DB
	index       int
	header      format.LayerHeader
	fields      []FieldDesc
	fieldByName map[string]int
	rowSize     int
	layout      geometry.Layout

	geom    []byte
	table   []byte
	strs    []string
	wstrs   []string
	offsets []int // start of each geometry record, plus the end of the last

	handles sync.Map // int -> *Feature
	cookies sync.Map // int -> any
}

// DB returns the database the layer belongs to.
func (l *Layer) DB() *DB { return l.db }

// Index returns the layer's position in the database.
func (l *Layer) Index() int { return l.index }

// Name returns the layer name.
func (l *Layer) Name() string { return l.header.Name }

// GeometryType returns the kind of geometry stored per feature.
func (l *Layer) GeometryType() GeometryType { return l.header.GeometryType }

// CoordFormat returns the coordinate encoding.
func (l *Layer) CoordFormat() CoordFormat { return l.header.CoordFormat }

// HasBBox reports whether line and polygon records carry a bounding box.
func (l *Layer) HasBBox() bool { return l.header.BBox }

// StringTableU32 reports whether string indices are 32 bits wide.
func (l *Layer) StringTableU32() bool { return l.header.StringTableU32 }

// FeatureCount returns the number of features.
func (l *Layer) FeatureCount() int { return int(l.header.FeatureCount) }

// FieldCount returns the number of fields per row.
func (l *Layer) FieldCount() int { return len(l.fields) }

// RowSize returns the size in bytes of one row.
func (l *Layer) RowSize() int { return l.rowSize }

// Extent returns the layer extent used to quantise coordinates.
func (l *Layer) Extent() orb.Bound {
	h := l.header
	return orb.Bound{Min: orb.Point{h.MinX, h.MinY}, Max: orb.Point{h.MaxX, h.MaxY}}
}

// Field returns the descriptor of field i.
func (l *Layer) Field(i int) (FieldDesc, error) {
	if err := checkIndex("field", i, len(l.fields)); err != nil {
		return FieldDesc{}, err
	}
	return l.fields[i], nil
}

// Fields iterates over the field descriptors.
func (l *Layer) Fields() iter.Seq2[int, FieldDesc] {
	return func(yield func(int, FieldDesc) bool) {
		for i, f := range l.fields {
			if !yield(i, f) {
				return
			}
		}
	}
}

// FieldIndex returns the index of the first field called name.
func (l *Layer) FieldIndex(name string) (int, bool) {
	i, ok := l.fieldByName[name]
	return i, ok
}

// FieldOffset returns the byte offset of field i within a row.
func (l *Layer) FieldOffset(i int) (int, error) {
	if err := checkIndex("field", i, len(l.fields)); err != nil {
		return 0, err
	}
	return int(l.fields[i].Offset), nil
}

// TryGetFeature returns the feature at index i. It reports false rather than
// failing when i is outside the layer. Repeated calls return the same handle.
func (l *Layer) TryGetFeature(i int) (*Feature, bool) {
	if i < 0 || i >= l.FeatureCount() {
		return nil, false
	}
	if f, ok := l.handles.Load(i); ok {
		return f.(*Feature), true //nolint:forcetypeassert // only *Feature is stored
	}
	f, _ := l.handles.LoadOrStore(i, &Feature{layer: l, index: i})
	return f.(*Feature), true //nolint:forcetypeassert // only *Feature is stored
}

// Feature returns the feature at index i, or an *IndexError.
func (l *Layer) Feature(i int) (*Feature, error) {
	f, ok := l.TryGetFeature(i)
	if !ok {
		return nil, &IndexError{Kind: "feature", Index: i, Len: l.FeatureCount()}
	}
	return f, nil
}

// Features iterates over every feature in order.
func (l *Layer) Features() iter.Seq2[int, *Feature] {
	return func(yield func(int, *Feature) bool) {
		for i := range l.FeatureCount() {
			f, _ := l.TryGetFeature(i)
			if !yield(i, f) {
				return
			}
		}
	}
}

// Cursor returns a sequential cursor positioned before the first feature.
func (l *Layer) Cursor() *Cursor {
	return &Cursor{layer: l, row: -1}
}

func (l *Layer) row(i int) []byte {
	off := i * l.rowSize
	return l.table[off : off+l.rowSize : off+l.rowSize]
}

func (l *Layer) record(i int) []byte {
	if l.offsets == nil {
		return nil
	}
	return l.geom[l.offsets[i]:l.offsets[i+1]]
}

// Cursor walks the features of a layer in order.
// A Cursor must not be shared between goroutines.
type Cursor struct {
	layer *Layer
	row   int
}

// Next advances to the next feature and reports whether one exists.
func (c *Cursor) Next() bool {
	if c.row+1 >= c.layer.FeatureCount() {
		c.row = c.layer.FeatureCount()
		return false
	}
	c.row++
	return true
}

// Row returns the index of the current feature, or -1 before the first Next.
func (c *Cursor) Row() int {
	return c.row
}

// Rewind moves the cursor back before the first feature.
func (c *Cursor) Rewind() {
	c.row = -1
}

// Feature returns the current feature, or nil when the cursor is not on one.
func (c *Cursor) Feature() *Feature {
	f, ok := c.layer.TryGetFeature(c.row)
	if !ok {
		return nil
	}
	return f
}
