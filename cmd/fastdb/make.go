package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"

	core "github.com/meigma/fastdb/core"
)

// makeConfig is the TOML description of a database built by make.
//
//	output = "world.fdb"
//	compression = "zstd"
//
//	[[layer]]
//	name = "cities"
//	source = "cities.geojson"
//	coords = "tx24"
//	name_property = "name"
//	[layer.types]
//	population = "f32"
//	notes = "skip"
type makeConfig struct {
	Output      string        `toml:"output"`
	Compression string        `toml:"compression"`
	Layers      []layerConfig `toml:"layer"`
}

type layerConfig struct {
	Name   string `toml:"name"`
	Source string `toml:"source"`

	// Geometry defaults to the type of the first feature.
	Geometry string `toml:"geometry"`
	Coords   string `toml:"coords"`
	BBox     bool   `toml:"bbox"`

	// Extent defaults to the bounds of the source features.
	Extent []float64 `toml:"extent"`

	StringTableU32 bool   `toml:"string_table_u32"`
	NameProperty   string `toml:"name_property"`

	// Types overrides inferred field types by property name. "skip" drops
	// the property.
	Types map[string]string `toml:"types"`
}

const skipField = "skip"

func newMakeCommand(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "make <config.toml>",
		Short: "Build a database from GeoJSON sources described in a TOML file.",
		Long: `Build a database from GeoJSON sources described in a TOML file.

Each [[layer]] reads one GeoJSON FeatureCollection. Properties become
fields: strings are stored as str, integers as i32 and other numbers as
f64 unless [layer.types] says otherwise. Source paths are relative to the
configuration file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.make(cmd.Context(), args[0], output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (overrides the configuration)")
	return cmd
}

func (a *app) make(_ context.Context, configPath, output string) error {
	var cfg makeConfig
	if _, err := toml.DecodeFile(configPath, &cfg); err != nil {
		return fmt.Errorf("read %s: %w", configPath, err)
	}
	if output == "" && cfg.Output != "" {
		output = cfg.Output
		if !filepath.IsAbs(output) {
			output = filepath.Join(filepath.Dir(configPath), output)
		}
	}
	if output == "" {
		return errors.New("no output path: set output in the configuration or pass -o")
	}
	if len(cfg.Layers) == 0 {
		return fmt.Errorf("%s: no layers", configPath)
	}

	compression := core.CompressionNone
	if cfg.Compression != "" {
		c, ok := compressions[strings.ToLower(cfg.Compression)]
		if !ok {
			return fmt.Errorf("unknown compression %q", cfg.Compression)
		}
		compression = c
	}

	b := core.NewBuilder(core.BuildWithCompression(compression), core.BuildWithLogger(a.logger))
	dir := filepath.Dir(configPath)
	for _, lc := range cfg.Layers {
		if err := buildLayer(b, dir, lc); err != nil {
			return fmt.Errorf("layer %q: %w", lc.Name, err)
		}
	}
	data, err := b.Bytes()
	if err != nil {
		return err
	}
	if err := core.WriteFile(output, data); err != nil {
		return err
	}

	a.logger.Info("database written",
		"path", output,
		"layers", len(cfg.Layers),
		"size", humanize.IBytes(uint64(len(data))),
		"compression", compression)
	return nil
}

func buildLayer(b *core.Builder, dir string, lc layerConfig) error {
	if lc.Source == "" {
		return errors.New("no source")
	}
	src := lc.Source
	if !filepath.IsAbs(src) {
		src = filepath.Join(dir, src)
	}
	raw, err := os.ReadFile(src) //nolint:gosec // paths come from the user's configuration
	if err != nil {
		return err
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", src, err)
	}

	gt, err := layerGeometry(lc, fc)
	if err != nil {
		return err
	}
	cf := core.CoordF32
	if lc.Coords != "" {
		v, ok := coordFormats[strings.ToLower(lc.Coords)]
		if !ok {
			return fmt.Errorf("unknown coordinate format %q", lc.Coords)
		}
		cf = v
	}
	fields, err := inferFields(fc, lc.Types)
	if err != nil {
		return err
	}

	l := b.CreateLayer(lc.Name).
		SetGeometryType(gt, cf, lc.BBox).
		EnableStringTableU32(lc.StringTableU32)
	if ext, ok, err := layerExtent(lc, fc); err != nil {
		return err
	} else if ok {
		l.SetExtent(ext)
	}
	for _, f := range fields {
		if _, err := l.AddField(f.name, f.typ, 0, 0); err != nil {
			return err
		}
	}

	for i, gf := range fc.Features {
		fb := l.AddFeature()
		switch gt {
		case core.GeometryNone:
		case core.GeometryAny:
			// Any layers keep the geometry as WKB.
			if gf.Geometry != nil {
				payload, err := wkb.Marshal(gf.Geometry)
				if err != nil {
					return fmt.Errorf("feature %d: %w", i, err)
				}
				fb.SetGeometryRaw(payload)
			}
		default:
			fb.SetGeometry(gf.Geometry)
		}
		for j, f := range fields {
			setProperty(fb, j, f.typ, gf.Properties[f.name])
		}
		if lc.NameProperty != "" {
			if name, ok := gf.Properties[lc.NameProperty].(string); ok && name != "" {
				fb.SetName(name)
			}
		}
		if _, err := fb.End(); err != nil {
			return fmt.Errorf("feature %d: %w", i, err)
		}
	}
	return l.End()
}

func layerGeometry(lc layerConfig, fc *geojson.FeatureCollection) (core.GeometryType, error) {
	if lc.Geometry != "" {
		gt, ok := geometryTypes[strings.ToLower(lc.Geometry)]
		if !ok {
			return 0, fmt.Errorf("unknown geometry type %q", lc.Geometry)
		}
		return gt, nil
	}
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		switch f.Geometry.(type) {
		case orb.Point, orb.MultiPoint:
			return core.GeometryPoint, nil
		case orb.LineString, orb.MultiLineString:
			return core.GeometryLineString, nil
		case orb.Polygon, orb.MultiPolygon, orb.Ring:
			return core.GeometryPolygon, nil
		default:
			return 0, fmt.Errorf("cannot infer a layer type from %s", f.Geometry.GeoJSONType())
		}
	}
	return core.GeometryNone, nil
}

func layerExtent(lc layerConfig, fc *geojson.FeatureCollection) (orb.Bound, bool, error) {
	if len(lc.Extent) > 0 {
		if len(lc.Extent) != 4 {
			return orb.Bound{}, false, fmt.Errorf("extent needs 4 numbers, got %d", len(lc.Extent))
		}
		e := lc.Extent
		return orb.Bound{Min: orb.Point{e[0], e[1]}, Max: orb.Point{e[2], e[3]}}, true, nil
	}
	var (
		bound orb.Bound
		found bool
	)
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		if !found {
			bound, found = f.Geometry.Bound(), true
			continue
		}
		bound = bound.Union(f.Geometry.Bound())
	}
	// A degenerate extent keeps the builder default.
	if !found || bound.Max[0] <= bound.Min[0] || bound.Max[1] <= bound.Min[1] {
		return orb.Bound{}, false, nil
	}
	return bound, true, nil
}

type fieldSpec struct {
	name string
	typ  core.FieldType
}

// inferFields derives one field per property, in name order.
func inferFields(fc *geojson.FeatureCollection, overrides map[string]string) ([]fieldSpec, error) {
	kinds := make(map[string]core.FieldType)
	for _, f := range fc.Features {
		for k, v := range f.Properties {
			t, ok := valueType(v)
			if !ok {
				continue
			}
			prev, seen := kinds[k]
			kinds[k] = widen(prev, t, seen)
		}
	}
	for k, name := range overrides {
		if name == skipField {
			kinds[k] = 0
			continue
		}
		t, ok := fieldTypes[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("property %q: unknown field type %q", k, name)
		}
		if t == core.FieldU8N || t == core.FieldU16N || t == core.FieldREF {
			return nil, fmt.Errorf("property %q: field type %s cannot be built from GeoJSON", k, t)
		}
		kinds[k] = t
	}

	names := make([]string, 0, len(kinds))
	for k, t := range kinds {
		if t != 0 {
			names = append(names, k)
		}
	}
	slices.Sort(names)
	fields := make([]fieldSpec, len(names))
	for i, n := range names {
		fields[i] = fieldSpec{name: n, typ: kinds[n]}
	}
	return fields, nil
}

func valueType(v any) (core.FieldType, bool) {
	switch x := v.(type) {
	case string:
		return core.FieldSTR, true
	case bool:
		return core.FieldU8, true
	case float64:
		if x == math.Trunc(x) && x >= math.MinInt32 && x <= math.MaxInt32 {
			return core.FieldI32, true
		}
		return core.FieldF64, true
	default:
		return 0, false
	}
}

// widen merges the type seen so far with a new value's type. Strings win,
// then f64, then i32.
func widen(prev, next core.FieldType, seen bool) core.FieldType {
	if !seen || prev == next {
		return next
	}
	switch {
	case prev == core.FieldSTR || next == core.FieldSTR:
		return core.FieldSTR
	case prev == core.FieldF64 || next == core.FieldF64:
		return core.FieldF64
	default:
		return core.FieldI32
	}
}

// setProperty writes v into field i. Missing values leave the zero value.
func setProperty(fb *core.FeatureBuilder, i int, t core.FieldType, v any) {
	if v == nil {
		return
	}
	switch {
	case t.IsString():
		if s, ok := v.(string); ok {
			fb.SetString(i, s)
		} else {
			fb.SetString(i, fmt.Sprint(v))
		}
	case t.IsInteger():
		switch x := v.(type) {
		case float64:
			fb.SetInt(i, int64(x))
		case bool:
			if x {
				fb.SetInt(i, 1)
			} else {
				fb.SetInt(i, 0)
			}
		}
	case t.IsFloat():
		if x, ok := v.(float64); ok {
			fb.SetFloat(i, x)
		}
	}
}

func byName[T fmt.Stringer](vs ...T) map[string]T {
	m := make(map[string]T, len(vs))
	for _, v := range vs {
		m[v.String()] = v
	}
	return m
}

var (
	geometryTypes = byName(core.GeometryAny, core.GeometryPoint, core.GeometryLineString,
		core.GeometryPolygon, core.GeometryNone)
	coordFormats = byName(core.CoordF32, core.CoordF64, core.CoordTx16, core.CoordTx24, core.CoordTx32)
	fieldTypes   = byName(core.FieldU8, core.FieldU16, core.FieldU32, core.FieldI32, core.FieldU8N,
		core.FieldU16N, core.FieldF32, core.FieldF64, core.FieldSTR, core.FieldWSTR, core.FieldREF)
	compressions = byName(core.CompressionNone, core.CompressionZstd, core.CompressionLZ4)
)
