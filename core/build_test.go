package fastdb

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderInheritsLayerSettings(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	first := b.CreateLayer("roads").
		SetGeometryType(GeometryLineString, CoordTx16, true).
		SetExtent(orb.Bound{Min: orb.Point{-10, -10}, Max: orb.Point{10, 10}})
	_, err := first.AddFeature().SetGeometry(orb.LineString{{-5, -5}, {5, 5}}).End()
	require.NoError(t, err)
	require.NoError(t, first.End())

	second := b.CreateLayer("rails")
	_, err = second.AddFeature().SetGeometryWKT("MULTILINESTRING ((0 0, 1 1), (2 2, 3 3))").End()
	require.NoError(t, err)
	require.NoError(t, second.End())

	data, err := b.Bytes()
	require.NoError(t, err)
	db, err := LoadBytes(data)
	require.NoError(t, err)

	rails := mustLayer(t, db, "rails")
	assert.Equal(t, GeometryLineString, rails.GeometryType())
	assert.Equal(t, CoordTx16, rails.CoordFormat())
	assert.True(t, rails.HasBBox())
	assert.Equal(t, orb.Bound{Min: orb.Point{-10, -10}, Max: orb.Point{10, 10}}, rails.Extent())

	f, err := rails.Feature(0)
	require.NoError(t, err)
	g, err := f.Geometry()
	require.NoError(t, err)
	mls, ok := g.(orb.MultiLineString)
	require.True(t, ok, "got %T", g)
	assert.Len(t, mls, 2)
}

func TestBuilderDefaultLayer(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	l := b.CreateLayer("places")
	pt := orb.Point{13.25, 52.5}
	_, err := l.AddFeature().SetGeometryWKB(wkb.MustMarshal(pt)).End()
	require.NoError(t, err)
	require.NoError(t, l.End())

	data, err := b.Bytes()
	require.NoError(t, err)
	db, err := LoadBytes(data)
	require.NoError(t, err)

	places, err := db.Layer(0)
	require.NoError(t, err)
	assert.Equal(t, GeometryPoint, places.GeometryType())
	assert.Equal(t, CoordF32, places.CoordFormat())
	f, err := places.Feature(0)
	require.NoError(t, err)
	g, err := f.Geometry()
	require.NoError(t, err)
	assert.Equal(t, pt, g)
}

func TestBuilderPolygonWithHole(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	l := b.CreateLayer("lakes").SetGeometryType(GeometryPolygon, CoordF64, false)
	poly := orb.Polygon{
		{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
		{{2, 2}, {4, 2}, {4, 4}, {2, 4}, {2, 2}},
	}
	multi := orb.MultiPolygon{poly, {{{20, 20}, {30, 20}, {30, 30}, {20, 20}}}}
	_, err := l.AddFeature().SetGeometry(poly).End()
	require.NoError(t, err)
	_, err = l.AddFeature().SetGeometry(multi).End()
	require.NoError(t, err)
	require.NoError(t, l.End())

	data, err := b.Bytes()
	require.NoError(t, err)
	db, err := LoadBytes(data)
	require.NoError(t, err)
	lakes := mustLayer(t, db, "lakes")

	f, err := lakes.Feature(0)
	require.NoError(t, err)
	g, err := f.Geometry()
	require.NoError(t, err)
	assert.Equal(t, poly, g)

	f, err = lakes.Feature(1)
	require.NoError(t, err)
	g, err = f.Geometry()
	require.NoError(t, err)
	assert.Equal(t, multi, g)
}

func TestBuilderLayerErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		build func(b *Builder) *LayerBuilder
	}{
		{"reserved name", func(b *Builder) *LayerBuilder { return b.CreateLayer(NameLayer) }},
		{"long name", func(b *Builder) *LayerBuilder {
			return b.CreateLayer(string(bytes.Repeat([]byte("n"), 64)))
		}},
		{"empty extent", func(b *Builder) *LayerBuilder {
			return b.CreateLayer("l").SetExtent(orb.Bound{Min: orb.Point{1, 1}, Max: orb.Point{1, 5}})
		}},
		{"bad geometry type", func(b *Builder) *LayerBuilder {
			return b.CreateLayer("l").SetGeometryType(GeometryType(42), CoordF32, false)
		}},
		{"schema after features", func(b *Builder) *LayerBuilder {
			l := b.CreateLayer("l")
			_, _ = l.AddFeature().SetGeometry(orb.Point{}).End()
			_, _ = l.AddField("late", FieldU8, 0, 0)
			return l
		}},
		{"string width after fields", func(b *Builder) *LayerBuilder {
			l := b.CreateLayer("l")
			_, _ = l.AddField("name", FieldSTR, 0, 0)
			return l.EnableStringTableU32(true)
		}},
		{"empty normalised range", func(b *Builder) *LayerBuilder {
			l := b.CreateLayer("l")
			_, _ = l.AddField("n", FieldU16N, 5, 5)
			return l
		}},
		{"long field name", func(b *Builder) *LayerBuilder {
			l := b.CreateLayer("l")
			_, _ = l.AddField("a_very_long_field_name", FieldU8, 0, 0)
			return l
		}},
		{"feature left open", func(b *Builder) *LayerBuilder {
			l := b.CreateLayer("l")
			l.AddFeature()
			return l
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := NewBuilder()
			l := tt.build(b)
			require.ErrorIs(t, l.End(), ErrBuilder)
			require.ErrorIs(t, l.Err(), ErrBuilder)
		})
	}
}

func TestBuilderLayerLeftOpen(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	open := b.CreateLayer("first")
	second := b.CreateLayer("second")
	require.ErrorIs(t, second.End(), ErrBuilder)

	_, err := b.Bytes()
	require.ErrorIs(t, err, ErrBuilder)

	require.NoError(t, open.End())
	_, err = b.Bytes()
	require.NoError(t, err)
}

func TestBuilderFeatureErrors(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	l := b.CreateLayer("l").SetGeometryType(GeometryPoint, CoordF64, false)
	u8, err := l.AddField("small", FieldU8, 0, 0)
	require.NoError(t, err)
	ref, err := l.AddField("ref", FieldREF, 0, 0)
	require.NoError(t, err)

	_, err = l.AddFeature().End()
	require.ErrorIs(t, err, ErrBuilder, "point features need a geometry")

	_, err = l.AddFeature().SetGeometry(orb.LineString{{0, 0}, {1, 1}}).End()
	require.ErrorIs(t, err, ErrBuilder)

	_, err = l.AddFeature().SetGeometry(orb.Point{}).SetInt(u8, 300).End()
	require.ErrorIs(t, err, ErrValueRange)

	_, err = l.AddFeature().SetGeometry(orb.Point{}).SetString(u8, "x").End()
	require.ErrorIs(t, err, ErrFieldType)

	_, err = l.AddFeature().SetGeometry(orb.Point{}).SetRef(ref, FeatureRef{Feature: 1 << 24}).End()
	require.ErrorIs(t, err, ErrValueRange)

	_, err = l.AddFeature().SetGeometryRaw([]byte{1}).End()
	require.ErrorIs(t, err, ErrBuilder)

	_, err = l.AddFeature().SetGeometryWKT("POINT (1").End()
	require.ErrorIs(t, err, ErrBuilder)

	_, err = l.AddFeature().SetGeometry(orb.Point{}).SetInt(5, 1).End()
	require.ErrorIs(t, err, ErrOutOfRange)

	fb := l.AddFeature().SetGeometry(orb.Point{1, 1})
	got, err := fb.End()
	require.NoError(t, err)
	assert.Equal(t, FeatureRef{Layer: 0, Feature: 0}, got, "failed features are not counted")
	_, err = fb.End()
	require.ErrorIs(t, err, ErrBuilder)

	require.NoError(t, l.End())
	_, err = l.AddFeature().SetGeometry(orb.Point{}).End()
	require.ErrorIs(t, err, ErrBuilder)
}

func TestBuilderStringTables(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	l := b.CreateLayer("words").SetGeometryType(GeometryNone, 0, false).EnableStringTableU32(true)
	word, err := l.AddField("word", FieldSTR, 0, 0)
	require.NoError(t, err)
	wide, err := l.AddField("wide", FieldWSTR, 0, 0)
	require.NoError(t, err)
	for _, w := range []string{"a", "b", "a", "a"} {
		_, err := l.AddFeature().SetString(word, w).SetString(wide, "日本"+w).End()
		require.NoError(t, err)
	}
	require.NoError(t, l.End())

	assert.Len(t, l.strs, 2, "equal strings share one entry")
	assert.Len(t, l.wstrs, 2)

	data, err := b.Bytes()
	require.NoError(t, err)
	db, err := LoadBytes(data)
	require.NoError(t, err)
	words := mustLayer(t, db, "words")
	assert.True(t, words.StringTableU32())
	assert.Equal(t, 8, words.RowSize())

	got, err := words.StringColumn(word)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "a", "a"}, got)
	got, err = words.StringColumn(wide)
	require.NoError(t, err)
	assert.Equal(t, "日本b", got[1])
}

func TestBuilderWarnings(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	b := NewBuilder(BuildWithLogger(logger))
	l := b.CreateLayer("grid").SetGeometryType(GeometryPoint, CoordTx16, false)
	_, err := l.AddFeature().SetGeometry(orb.Point{500, 0}).End()
	require.NoError(t, err)
	require.NoError(t, l.End())

	assert.Contains(t, logs.String(), "layer extent not set")
	assert.Contains(t, logs.String(), "coordinates clamped")

	data, err := b.Bytes()
	require.NoError(t, err)
	db, err := LoadBytes(data)
	require.NoError(t, err)
	f, err := mustLayer(t, db, "grid").Feature(0)
	require.NoError(t, err)
	g, err := f.Geometry()
	require.NoError(t, err)
	assert.InDelta(t, 180, g.(orb.Point)[0], 0.01)
}

func TestBuilderSave(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "sample.db")
	require.NoError(t, buildSample(t, BuildWithCompression(CompressionZstd)).Save(path))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")

	db, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, db.LayerCount())
	assert.Equal(t, loadSample(t).Digest(), db.Digest())
}

func TestBuilderWriteToCountsStoredBytes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	n, err := buildSample(t, BuildWithCompression(CompressionLZ4)).WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
}
