package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/paulmach/orb"
	"github.com/spf13/cobra"

	"github.com/meigma/fastdb"
	core "github.com/meigma/fastdb/core"
	"github.com/meigma/fastdb/tile"
)

type tilesOptions struct {
	bbox    string
	level   int
	workers int
}

func newTilesCommand(a *app) *cobra.Command {
	var o tilesOptions
	cmd := &cobra.Command{
		Use:   "tiles <catalog>",
		Short: "Select and load the tiles of a catalog that cover a bounding box.",
		Long: `Select and load the tiles of a catalog that cover a bounding box.

Tiles are listed coarse to fine with the number of layers each one holds.
Relative tile paths are resolved against the catalog's directory; tile
paths may also be remote locations.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.tiles(cmd.Context(), args[0], o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.bbox, "bbox", "-180,-90,180,90", "query box as minx,miny,maxx,maxy")
	f.IntVar(&o.level, "level", tile.MaxLevels-1, "finest level to select")
	f.IntVar(&o.workers, "workers", 0, "load tiles on this many background workers")
	return cmd
}

func (a *app) tiles(ctx context.Context, catalogPath string, o tilesOptions) error {
	query, err := parseBBox(o.bbox)
	if err != nil {
		return err
	}
	cat, err := tile.LoadCatalog(catalogPath)
	if err != nil {
		return err
	}
	c, err := a.client()
	if err != nil {
		return err
	}

	opts := []tile.Option{
		tile.WithLogger(a.logger),
		tile.WithLoader(func(ctx context.Context, path string) (*fastdb.DB, error) {
			return c.Load(ctx, path)
		}),
	}
	if o.workers > 0 {
		opts = append(opts, tile.WithBackgroundLoading(o.workers))
	}
	tdb, err := tile.New(opts...)
	if err != nil {
		return err
	}
	defer tdb.Close()

	if err := tdb.RegisterCatalog(cat, filepath.Dir(catalogPath)); err != nil {
		return err
	}
	selected, loadErr := tdb.Take(ctx, o.level, query)

	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "level\tpath\tloaded\tlayers")
	for _, t := range selected {
		layers := "-"
		if db := t.Data(); db != nil {
			layers = strconv.Itoa(db.LayerCount())
		}
		fmt.Fprintf(w, "%d\t%s\t%t\t%s\n", t.Level, t.Path, t.Loaded(), layers)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	a.logger.Debug("tiles selected", "selected", len(selected), "registered", len(cat.Tiles), "loaded", tdb.LoadedCount())
	return loadErr
}

type catalogOptions struct {
	level int
	time  float64
}

func newCatalogCommand(a *app) *cobra.Command {
	var o catalogOptions
	cmd := &cobra.Command{
		Use:   "catalog <catalog> <location>...",
		Short: "Add databases to a tile catalog, creating it if needed.",
		Long: `Add databases to a tile catalog, creating it if needed.

Each database is loaded to compute its bound, the union of its layer
extents. Local paths are stored relative to the catalog's directory.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.catalog(cmd.Context(), args[0], args[1:], o)
		},
	}
	cmd.Flags().IntVar(&o.level, "level", 0, "tile level of the added databases")
	cmd.Flags().Float64Var(&o.time, "time", 0, "tile time of the added databases")
	return cmd
}

func (a *app) catalog(ctx context.Context, catalogPath string, locations []string, o catalogOptions) error {
	if o.level < 0 || o.level >= tile.MaxLevels {
		return fmt.Errorf("level %d outside [0,%d)", o.level, tile.MaxLevels)
	}
	cat, err := tile.LoadCatalog(catalogPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cat = &tile.Catalog{}
	case err != nil:
		return err
	}

	c, err := a.client()
	if err != nil {
		return err
	}
	dir := filepath.Dir(catalogPath)
	for _, location := range locations {
		bound, err := databaseBound(ctx, c, location)
		if err != nil {
			return err
		}
		path := location
		if loc, err := fastdb.ParseLocation(location); err == nil && loc.Scheme == fastdb.SchemeFile {
			if rel, err := filepath.Rel(dir, loc.Path); err == nil {
				path = rel
			}
		}
		cat.Add(tile.Entry{Path: path, Level: uint8(o.level), Time: o.time, Bound: bound}) //nolint:gosec // checked above
		a.logger.Debug("tile added", "path", path, "bound", bound)
	}
	if err := tile.SaveCatalog(catalogPath, cat); err != nil {
		return err
	}
	a.printf("%s: %d tiles\n", catalogPath, len(cat.Tiles))
	return nil
}

func databaseBound(ctx context.Context, c *fastdb.Client, location string) (orb.Bound, error) {
	db, err := c.Load(ctx, location)
	if err != nil {
		return orb.Bound{}, err
	}
	defer db.Close()

	var (
		bound orb.Bound
		found bool
	)
	for _, l := range db.Layers() {
		if l.Name() == core.NameLayer {
			continue
		}
		if !found {
			bound, found = l.Extent(), true
			continue
		}
		bound = bound.Union(l.Extent())
	}
	if !found {
		return orb.Bound{}, fmt.Errorf("%s: no layers", location)
	}
	return bound, nil
}

func parseBBox(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("bbox %q: want minx,miny,maxx,maxy", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("bbox %q: %w", s, err)
		}
		v[i] = f
	}
	if v[2] < v[0] || v[3] < v[1] {
		return orb.Bound{}, fmt.Errorf("bbox %q: max below min", s)
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}
