package tile

import (
	"errors"
	"fmt"
	"io"
	"os"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/paulmach/orb"

	"github.com/meigma/fastdb/tile/internal/fb"
)

// catalogVersion is the catalog format written by WriteCatalog.
const catalogVersion = 1

// ErrCatalog is returned for catalogs that cannot be decoded.
var ErrCatalog = errors.New("tile: invalid catalog")

// Entry describes one tile database in a catalog.
//
// Path is relative to the catalog's directory unless it is absolute.
type Entry struct {
	Path  string
	Level uint8
	Time  float64
	Bound orb.Bound
}

// Catalog lists the tiles of a tile database.
type Catalog struct {
	Tiles []Entry
}

// Add appends an entry.
func (c *Catalog) Add(e Entry) {
	c.Tiles = append(c.Tiles, e)
}

// Marshal encodes the catalog as a FlatBuffers buffer.
func (c *Catalog) Marshal() []byte {
	builder := flatbuffers.NewBuilder(64 + 64*len(c.Tiles))

	offsets := make([]flatbuffers.UOffsetT, len(c.Tiles))
	for i, e := range c.Tiles {
		path := builder.CreateString(e.Path)
		fb.TileStart(builder)
		fb.TileAddPath(builder, path)
		fb.TileAddLevel(builder, e.Level)
		fb.TileAddTime(builder, e.Time)
		fb.TileAddMinX(builder, e.Bound.Min[0])
		fb.TileAddMinY(builder, e.Bound.Min[1])
		fb.TileAddMaxX(builder, e.Bound.Max[0])
		fb.TileAddMaxY(builder, e.Bound.Max[1])
		offsets[i] = fb.TileEnd(builder)
	}

	fb.CatalogStartTilesVector(builder, len(offsets))
	for i := len(offsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(offsets[i])
	}
	tiles := builder.EndVector(len(offsets))

	fb.CatalogStart(builder)
	fb.CatalogAddVersion(builder, catalogVersion)
	fb.CatalogAddTiles(builder, tiles)
	fb.FinishCatalogBuffer(builder, fb.CatalogEnd(builder))
	return builder.FinishedBytes()
}

// WriteCatalog writes the encoded catalog to w.
func WriteCatalog(w io.Writer, c *Catalog) error {
	if _, err := w.Write(c.Marshal()); err != nil {
		return fmt.Errorf("tile: write catalog: %w", err)
	}
	return nil
}

// ReadCatalog decodes a catalog produced by WriteCatalog.
func ReadCatalog(data []byte) (cat *Catalog, err error) {
	defer func() {
		if r := recover(); r != nil {
			cat = nil
			err = fmt.Errorf("%w: %v", ErrCatalog, r)
		}
	}()
	if len(data) < 8 || !fb.CatalogBufferHasIdentifier(data) {
		return nil, fmt.Errorf("%w: missing identifier", ErrCatalog)
	}

	root := fb.GetRootAsCatalog(data, 0)
	if v := root.Version(); v != catalogVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCatalog, v)
	}

	n := root.TilesLength()
	cat = &Catalog{Tiles: make([]Entry, 0, n)}
	var t fb.Tile
	for i := range n {
		root.Tiles(&t, i)
		path := t.Path()
		if len(path) == 0 {
			return nil, fmt.Errorf("%w: tile %d has no path", ErrCatalog, i)
		}
		cat.Tiles = append(cat.Tiles, Entry{
			Path:  string(path),
			Level: t.Level(),
			Time:  t.Time(),
			Bound: orb.Bound{
				Min: orb.Point{t.MinX(), t.MinY()},
				Max: orb.Point{t.MaxX(), t.MaxY()},
			},
		})
	}
	return cat, nil
}

// LoadCatalog reads and decodes the catalog file at path.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tile: read catalog: %w", err)
	}
	return ReadCatalog(data)
}

// SaveCatalog writes the catalog to path.
func SaveCatalog(path string, c *Catalog) error {
	if err := os.WriteFile(path, c.Marshal(), 0o644); err != nil {
		return fmt.Errorf("tile: save catalog: %w", err)
	}
	return nil
}
