package fastdb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
)

// Field indices of the "cities" layer built by buildSample.
const (
	cityName = iota
	cityPopulation
	cityScore
	cityLocal
	cityCapitalOf
)

// buildSample builds a database with a point layer of cities, a polygon
// layer of countries, a raw layer and a layer without geometry.
func buildSample(t *testing.T, opts ...BuildOption) *Builder {
	t.Helper()
	b := NewBuilder(opts...)

	countries := b.CreateLayer("countries").
		SetGeometryType(GeometryPolygon, CoordTx24, true).
		SetExtent(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{100, 100}})
	nameField, err := countries.AddField("name", FieldSTR, 0, 0)
	require.NoError(t, err)
	_, err = countries.AddFeature().
		SetGeometry(orb.Polygon{{{0, 0}, {40, 0}, {40, 40}, {0, 40}, {0, 0}}}).
		SetString(nameField, "Westland").
		SetName("westland").
		End()
	require.NoError(t, err)
	_, err = countries.AddFeature().
		SetGeometry(orb.Polygon{{{50, 50}, {90, 50}, {90, 90}, {50, 90}, {50, 50}}}).
		SetString(nameField, "Eastland").
		End()
	require.NoError(t, err)
	require.NoError(t, countries.End())

	cities := b.CreateLayer("cities").SetGeometryType(GeometryPoint, CoordF64, false)
	for _, f := range []struct {
		name string
		t    FieldType
		min  float64
		max  float64
	}{
		{"name", FieldSTR, 0, 0},
		{"population", FieldU32, 0, 0},
		{"score", FieldU8N, 0, 10},
		{"local", FieldWSTR, 0, 0},
		{"capital_of", FieldREF, 0, 0},
	} {
		_, err := cities.AddField(f.name, f.t, f.min, f.max)
		require.NoError(t, err)
	}
	_, err = cities.AddFeature().
		SetGeometry(orb.Point{10, 10}).
		SetString(cityName, "Alpha").
		SetInt(cityPopulation, 120000).
		SetFloat(cityScore, 7.5).
		SetString(cityLocal, "Älpha").
		SetRef(cityCapitalOf, FeatureRef{Layer: 0, Feature: 0}).
		SetName("alpha").
		End()
	require.NoError(t, err)
	_, err = cities.AddFeature().
		SetGeometry(orb.Point{70, 70}).
		SetString(cityName, "Beta").
		SetInt(cityPopulation, 5000).
		SetFloat(cityScore, 2).
		SetRef(cityCapitalOf, FeatureRef{Layer: 0, Feature: 1}).
		End()
	require.NoError(t, err)
	_, err = cities.AddFeature().
		SetGeometry(orb.Point{12, 11}).
		SetString(cityName, "Alpha").
		SetInt(cityPopulation, 300).
		End()
	require.NoError(t, err)
	require.NoError(t, cities.End())

	blobs := b.CreateLayer("blobs").SetGeometryType(GeometryAny, 0, false)
	_, err = blobs.AddFeature().SetGeometryRaw([]byte{1, 2, 3, 4, 5, 6, 7, 8}).End()
	require.NoError(t, err)
	_, err = blobs.AddFeature().SetGeometryRaw([]byte{9, 9, 9}).End()
	require.NoError(t, err)
	require.NoError(t, blobs.End())

	attrs := b.CreateLayer("attrs").SetGeometryType(GeometryNone, 0, false)
	valueField, err := attrs.AddField("value", FieldF64, 0, 0)
	require.NoError(t, err)
	_, err = attrs.AddFeature().SetFloat(valueField, 3.25).End()
	require.NoError(t, err)
	require.NoError(t, attrs.End())

	return b
}

func sampleBytes(t *testing.T, opts ...BuildOption) []byte {
	t.Helper()
	data, err := buildSample(t, opts...).Bytes()
	require.NoError(t, err)
	return data
}

func sampleFile(t *testing.T, opts ...BuildOption) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.db")
	require.NoError(t, os.WriteFile(path, sampleBytes(t, opts...), 0o600))
	return path
}

func loadSample(t *testing.T) *DB {
	t.Helper()
	db, err := LoadBytes(sampleBytes(t))
	require.NoError(t, err)
	return db
}

func mustLayer(t *testing.T, db *DB, name string) *Layer {
	t.Helper()
	l, ok := db.LayerByName(name)
	require.True(t, ok, "layer %q", name)
	return l
}
