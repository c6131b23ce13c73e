package fastdb

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/encoding/wkt"

	"github.com/meigma/fastdb/core/internal/format"
	"github.com/meigma/fastdb/core/internal/geometry"
	"github.com/meigma/fastdb/core/internal/sizing"
)

var defaultExtent = format.Extent{MinX: -180, MinY: -90, MaxX: 180, MaxY: 90}

// layerDefaults are the settings a new layer inherits from the previous one.
type layerDefaults struct {
	geometryType GeometryType
	coordFormat  CoordFormat
	bbox         bool
	strU32       bool
	extent       format.Extent
	extentSet    bool
}

// Builder assembles a database in memory.
//
// Layers are written one at a time: CreateLayer, AddField, then AddFeature
// for every feature, then End. A Builder is not safe for concurrent use.
type Builder struct {
	cfg      buildConfig
	layers   []*LayerBuilder
	open     *LayerBuilder
	defaults layerDefaults
	names    []nameEntry
}

type nameEntry struct {
	name string
	ref  FeatureRef
}

// NewBuilder creates an empty Builder.
func NewBuilder(opts ...BuildOption) *Builder {
	b := &Builder{
		defaults: layerDefaults{
			geometryType: GeometryPoint,
			coordFormat:  CoordF32,
			extent:       defaultExtent,
		},
	}
	for _, opt := range opts {
		opt(&b.cfg)
	}
	return b
}

// log returns the logger, falling back to a discard logger if nil.
func (b *Builder) log() *slog.Logger {
	if b.cfg.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.cfg.logger
}

// CreateLayer starts a new layer. It inherits the geometry type, coordinate
// format, bounding box flag, string index width and extent of the previous
// layer; the first layer defaults to f32 points over (-180,-90,180,90).
//
// Errors, including a previous layer left open, are reported by End.
func (b *Builder) CreateLayer(name string) *LayerBuilder {
	lb := b.newLayer(name, len(b.layers), b.defaults)
	switch {
	case b.open != nil:
		lb.fail(fmt.Errorf("%w: layer %q is still open", ErrBuilder, b.open.name))
		return lb
	case name == NameLayer:
		lb.fail(fmt.Errorf("%w: layer name %q is reserved", ErrBuilder, name))
		return lb
	case len(name) >= format.NameSize:
		lb.fail(fmt.Errorf("%w: layer name %q longer than %d bytes", ErrBuilder, name, format.NameSize-1))
		return lb
	case len(b.layers) >= math.MaxUint16:
		lb.fail(fmt.Errorf("%w: too many layers", ErrBuilder))
		return lb
	}
	b.layers = append(b.layers, lb)
	b.open = lb
	return lb
}

func (b *Builder) newLayer(name string, index int, d layerDefaults) *LayerBuilder {
	return &LayerBuilder{
		b:         b,
		index:     index,
		name:      name,
		d:         d,
		strIndex:  make(map[string]uint32),
		wstrIndex: make(map[string]uint32),
	}
}

// LayerBuilder accumulates the fields and features of one layer.
// The first error is kept and returned by End and every later call.
type LayerBuilder struct {
	b     *Builder
	index int
	name  string
	d     layerDefaults

	fields  []FieldDesc
	rowSize int

	geom  []byte
	rows  []byte
	count int

	strs      []string
	strIndex  map[string]uint32
	wstrs     []string
	wstrIndex map[string]uint32

	clamped int
	open    *FeatureBuilder
	ended   bool
	err     error
}

func (lb *LayerBuilder) fail(err error) {
	if lb.err == nil {
		lb.err = err
	}
}

// Err returns the first error recorded for the layer.
func (lb *LayerBuilder) Err() error {
	return lb.err
}

func (lb *LayerBuilder) checkSchema(what string) bool {
	if lb.err != nil {
		return false
	}
	if lb.ended || lb.count > 0 || lb.open != nil {
		lb.fail(fmt.Errorf("%w: layer %q: %s after features were added", ErrBuilder, lb.name, what))
		return false
	}
	return true
}

// SetGeometryType sets the geometry stored per feature. The bounding box flag
// only applies to line and polygon layers.
func (lb *LayerBuilder) SetGeometryType(gt GeometryType, cf CoordFormat, bbox bool) *LayerBuilder {
	if !lb.checkSchema("SetGeometryType") {
		return lb
	}
	if !gt.Valid() {
		lb.fail(fmt.Errorf("%w: layer %q: unknown geometry type %s", ErrBuilder, lb.name, gt))
		return lb
	}
	if (gt == GeometryPoint || gt == GeometryLineString || gt == GeometryPolygon) && !cf.Valid() {
		lb.fail(fmt.Errorf("%w: layer %q: unknown coordinate format %s", ErrBuilder, lb.name, cf))
		return lb
	}
	lb.d.geometryType = gt
	if cf.Valid() {
		lb.d.coordFormat = cf
	}
	lb.d.bbox = bbox && (gt == GeometryLineString || gt == GeometryPolygon)
	return lb
}

// SetExtent sets the rectangle that Tx coordinates and bounding boxes are
// quantised to.
func (lb *LayerBuilder) SetExtent(b orb.Bound) *LayerBuilder {
	if !lb.checkSchema("SetExtent") {
		return lb
	}
	ext := format.Extent{MinX: b.Min[0], MinY: b.Min[1], MaxX: b.Max[0], MaxY: b.Max[1]}
	if ext.Empty() {
		lb.fail(fmt.Errorf("%w: layer %q: empty extent %v", ErrBuilder, lb.name, b))
		return lb
	}
	lb.d.extent = ext
	lb.d.extentSet = true
	return lb
}

// EnableStringTableU32 widens string indices to 32 bits. It must be called
// before any field is added.
func (lb *LayerBuilder) EnableStringTableU32(enabled bool) *LayerBuilder {
	if !lb.checkSchema("EnableStringTableU32") {
		return lb
	}
	if len(lb.fields) > 0 {
		lb.fail(fmt.Errorf("%w: layer %q: string width changed after fields were added", ErrBuilder, lb.name))
		return lb
	}
	lb.d.strU32 = enabled
	return lb
}

// AddField appends a field to the row layout and returns its index.
// vmin and vmax give the range of normalised fields and are ignored otherwise.
func (lb *LayerBuilder) AddField(name string, t FieldType, vmin, vmax float64) (int, error) {
	if !lb.checkSchema("AddField") {
		return -1, lb.err
	}
	switch {
	case !t.Valid():
		lb.fail(fmt.Errorf("%w: field %q: unknown type %s", ErrBuilder, name, t))
	case len(name) >= format.FieldNameSize:
		lb.fail(fmt.Errorf("%w: field name %q longer than %d bytes", ErrBuilder, name, format.FieldNameSize-1))
	case (t == FieldU8N || t == FieldU16N) && !(vmax > vmin):
		lb.fail(fmt.Errorf("%w: field %q: empty range [%g,%g]", ErrBuilder, name, vmin, vmax))
	case len(lb.fields) >= math.MaxUint16:
		lb.fail(fmt.Errorf("%w: too many fields", ErrBuilder))
	}
	if lb.err != nil {
		return -1, lb.err
	}
	size := t.Size(lb.d.strU32)
	lb.fields = append(lb.fields, FieldDesc{
		Name:   name,
		Type:   t,
		Size:   uint16(size),
		Offset: uint32(lb.rowSize),
		VMin:   vmin,
		VMax:   vmax,
	})
	lb.rowSize += size
	return len(lb.fields) - 1, nil
}

func (lb *LayerBuilder) layout() geometry.Layout {
	return geometry.Layout{
		Type:   lb.d.geometryType,
		Coords: lb.d.coordFormat,
		BBox:   lb.d.bbox,
		Extent: lb.d.extent,
	}
}

// AddFeature starts a new feature. It must be finished with End before the
// next one is added.
func (lb *LayerBuilder) AddFeature() *FeatureBuilder {
	fb := &FeatureBuilder{
		lb:  lb,
		row: make([]byte, lb.rowSize),
		set: make([]bool, len(lb.fields)),
	}
	switch {
	case lb.err != nil:
		fb.err = lb.err
	case lb.ended:
		fb.err = fmt.Errorf("%w: layer %q already ended", ErrBuilder, lb.name)
	case lb.open != nil:
		fb.err = fmt.Errorf("%w: layer %q: previous feature not ended", ErrBuilder, lb.name)
	default:
		lb.open = fb
		if lb.count == 0 && !lb.d.extentSet && (lb.d.coordFormat.Normalized() || lb.d.bbox) &&
			lb.d.geometryType != GeometryAny && lb.d.geometryType != GeometryNone {
			lb.b.log().Warn("layer extent not set; quantising to the default extent",
				"layer", lb.name, "coords", lb.d.coordFormat.String(), "bbox", lb.d.bbox)
		}
	}
	return fb
}

// End finishes the layer. Its settings become the defaults for the next layer.
func (lb *LayerBuilder) End() error {
	if lb.open != nil {
		lb.fail(fmt.Errorf("%w: layer %q: feature not ended", ErrBuilder, lb.name))
	}
	if lb.b.open == lb {
		lb.b.open = nil
		lb.b.defaults = lb.d
	}
	if !lb.ended && lb.clamped > 0 {
		lb.b.log().Warn("coordinates clamped to layer extent", "layer", lb.name, "features", lb.clamped)
	}
	lb.ended = true
	return lb.err
}

// intern returns the table index of s, adding it when new.
func (lb *LayerBuilder) intern(s string, wide bool) (uint32, error) {
	index, table := lb.strIndex, &lb.strs
	if wide {
		index, table = lb.wstrIndex, &lb.wstrs
	}
	if i, ok := index[s]; ok {
		return i, nil
	}
	limit := math.MaxUint16 + 1
	if lb.d.strU32 {
		limit = math.MaxUint32
	}
	if len(*table) >= limit {
		return 0, fmt.Errorf("%w: layer %q: string table full; enable 32-bit string indices", ErrValueRange, lb.name)
	}
	i := uint32(len(*table)) //nolint:gosec // bounded above
	*table = append(*table, s)
	index[s] = i
	return i, nil
}

// FeatureBuilder sets the geometry and fields of one feature.
// The first error is kept and returned by End.
type FeatureBuilder struct {
	lb      *LayerBuilder
	row     []byte
	set     []bool
	geom    []byte
	hasGeom bool
	name    string
	hasName bool
	done    bool
	err     error
}

func (fb *FeatureBuilder) fail(err error) *FeatureBuilder {
	if fb.err == nil {
		fb.err = err
	}
	return fb
}

// SetGeometry encodes g for a point, line or polygon layer.
// Tx coordinates outside the layer extent are clamped.
func (fb *FeatureBuilder) SetGeometry(g orb.Geometry) *FeatureBuilder {
	if fb.err != nil {
		return fb
	}
	if g == nil {
		return fb.fail(fmt.Errorf("%w: nil geometry", ErrBuilder))
	}
	l := fb.lb.layout()
	if l.Type == GeometryAny || l.Type == GeometryNone {
		return fb.fail(fmt.Errorf("%w: layer %q is %s", ErrNoGeometry, fb.lb.name, l.Type))
	}
	rec, err := l.Append(nil, g)
	if err != nil {
		return fb.fail(fmt.Errorf("%w: layer %q: %w", ErrBuilder, fb.lb.name, err))
	}
	if l.Coords.Normalized() && !contains(l.Extent, g.Bound()) {
		fb.lb.clamped++
	}
	fb.geom, fb.hasGeom = rec, true
	return fb
}

// SetGeometryWKT parses well-known text and calls SetGeometry.
func (fb *FeatureBuilder) SetGeometryWKT(s string) *FeatureBuilder {
	if fb.err != nil {
		return fb
	}
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return fb.fail(fmt.Errorf("%w: parse wkt: %w", ErrBuilder, err))
	}
	return fb.SetGeometry(g)
}

// SetGeometryWKB parses well-known binary and calls SetGeometry.
func (fb *FeatureBuilder) SetGeometryWKB(b []byte) *FeatureBuilder {
	if fb.err != nil {
		return fb
	}
	g, err := wkb.Unmarshal(b)
	if err != nil {
		return fb.fail(fmt.Errorf("%w: parse wkb: %w", ErrBuilder, err))
	}
	return fb.SetGeometry(g)
}

// SetGeometryRaw stores payload as the feature's bytes on a layer of type any.
func (fb *FeatureBuilder) SetGeometryRaw(payload []byte) *FeatureBuilder {
	if fb.err != nil {
		return fb
	}
	if fb.lb.d.geometryType != GeometryAny {
		return fb.fail(fmt.Errorf("%w: raw bytes on %s layer %q", ErrBuilder, fb.lb.d.geometryType, fb.lb.name))
	}
	rec, err := geometry.AppendRaw(nil, payload)
	if err != nil {
		return fb.fail(fmt.Errorf("%w: %w", ErrBuilder, err))
	}
	fb.geom, fb.hasGeom = rec, true
	return fb
}

func (fb *FeatureBuilder) field(i int) (*FieldDesc, bool) {
	if fb.err != nil {
		return nil, false
	}
	if err := checkIndex("field", i, len(fb.lb.fields)); err != nil {
		fb.fail(err)
		return nil, false
	}
	fb.set[i] = true
	return &fb.lb.fields[i], true
}

// SetFloat sets numeric field i.
func (fb *FeatureBuilder) SetFloat(i int, v float64) *FeatureBuilder {
	fd, ok := fb.field(i)
	if !ok {
		return fb
	}
	if !fd.Type.IsInteger() && !fd.Type.IsFloat() {
		return fb.fail(fmt.Errorf("%w: field %q is %s, not numeric", ErrFieldType, fd.Name, fd.Type))
	}
	if err := rangeErr(fd, fd.PutFloat(fb.row, v), v); err != nil {
		fb.fail(err)
	}
	return fb
}

// SetInt sets integer field i.
func (fb *FeatureBuilder) SetInt(i int, v int64) *FeatureBuilder {
	fd, ok := fb.field(i)
	if !ok {
		return fb
	}
	if !fd.Type.IsInteger() {
		return fb.fail(fmt.Errorf("%w: field %q is %s, not an integer", ErrFieldType, fd.Name, fd.Type))
	}
	if err := rangeErr(fd, fd.PutInt(fb.row, v), v); err != nil {
		fb.fail(err)
	}
	return fb
}

// SetString sets STR or WSTR field i. Equal strings share one table entry.
func (fb *FeatureBuilder) SetString(i int, s string) *FeatureBuilder {
	fd, ok := fb.field(i)
	if !ok {
		return fb
	}
	if !fd.Type.IsString() {
		return fb.fail(fmt.Errorf("%w: field %q is %s, not a string", ErrFieldType, fd.Name, fd.Type))
	}
	idx, err := fb.lb.intern(s, fd.Type == FieldWSTR)
	if err != nil {
		return fb.fail(err)
	}
	if err := fd.PutStringIndex(fb.row, idx); err != nil {
		return fb.fail(rangeErr(fd, err, idx))
	}
	return fb
}

// SetRef sets reference field i.
func (fb *FeatureBuilder) SetRef(i int, ref FeatureRef) *FeatureBuilder {
	fd, ok := fb.field(i)
	if !ok {
		return fb
	}
	if fd.Type != FieldREF {
		return fb.fail(fmt.Errorf("%w: field %q is %s, not a reference", ErrFieldType, fd.Name, fd.Type))
	}
	if !ref.storable() {
		return fb.fail(fmt.Errorf("%w: reference %s exceeds 24-bit feature index", ErrValueRange, ref))
	}
	format.PutRef(fb.row[fd.Offset:], ref.Layer, ref.Feature)
	return fb
}

// SetName records the feature under name in the database name index.
func (fb *FeatureBuilder) SetName(name string) *FeatureBuilder {
	if fb.err != nil {
		return fb
	}
	fb.name, fb.hasName = name, true
	return fb
}

// End appends the feature to its layer and returns a reference to it.
func (fb *FeatureBuilder) End() (FeatureRef, error) {
	lb := fb.lb
	if fb.done {
		return FeatureRef{}, fmt.Errorf("%w: feature already ended", ErrBuilder)
	}
	fb.done = true
	if lb.open == fb {
		lb.open = nil
	}
	if fb.err != nil {
		return FeatureRef{}, fb.err
	}

	switch lb.d.geometryType {
	case GeometryPoint, GeometryLineString, GeometryPolygon:
		if !fb.hasGeom {
			return FeatureRef{}, fmt.Errorf("%w: layer %q feature %d has no geometry", ErrBuilder, lb.name, lb.count)
		}
	case GeometryAny:
		if !fb.hasGeom {
			fb.geom, _ = geometry.AppendRaw(nil, nil)
		}
	}
	if _, err := sizing.ToUint32(lb.count+1, ErrSizeOverflow); err != nil {
		return FeatureRef{}, err
	}
	ref := FeatureRef{Layer: uint16(lb.index), Feature: uint32(lb.count)} //nolint:gosec // both checked
	if fb.hasName && !ref.storable() {
		return FeatureRef{}, fmt.Errorf("%w: named feature %s exceeds 24-bit feature index", ErrValueRange, ref)
	}
	for i, fd := range lb.fields {
		if fb.set[i] || !fd.Type.IsString() {
			continue
		}
		idx, err := lb.intern("", fd.Type == FieldWSTR)
		if err != nil {
			return FeatureRef{}, err
		}
		if err := fd.PutStringIndex(fb.row, idx); err != nil {
			return FeatureRef{}, rangeErr(&fd, err, idx)
		}
	}

	lb.geom = append(lb.geom, fb.geom...)
	lb.rows = append(lb.rows, fb.row...)
	lb.count++
	if fb.hasName {
		lb.b.names = append(lb.b.names, nameEntry{name: fb.name, ref: ref})
	}
	return ref, nil
}

func contains(e format.Extent, b orb.Bound) bool {
	return b.Min[0] >= e.MinX && b.Min[1] >= e.MinY && b.Max[0] <= e.MaxX && b.Max[1] <= e.MaxY
}
