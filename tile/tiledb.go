// Package tile serves a set of fastdb databases arranged as a tile pyramid.
//
// Each tile is a separate database file registered with a level, a time stamp
// and a bounding box. Take picks the tiles needed to draw a rectangle at a
// given level of detail and loads them on demand, either inline or on a pool
// of background workers. Shrink releases the tiles that have gone unused for
// the longest.
package tile

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	fastdb "github.com/meigma/fastdb/core"
)

// MaxLevels is the number of levels a tile database accepts (0 to 31).
const MaxLevels = 32

// defaultQueueSize bounds the background load queue.
const defaultQueueSize = 256

// ErrClosed is returned by operations on a closed tile database.
var ErrClosed = errors.New("tile: database closed")

// Loader opens the database for a tile.
type Loader func(ctx context.Context, path string) (*fastdb.DB, error)

// Tile is a registered tile database.
type Tile struct {
	Path  string
	Level uint8
	Time  float64
	Bound orb.Bound

	id        uint32
	data      atomic.Pointer[fastdb.DB]
	lastFrame uint64
}

// ID returns the registration index of the tile.
func (t *Tile) ID() uint32 {
	return t.id
}

// Data returns the loaded database, or nil while the tile is not loaded.
//
// The database is closed when the tile is evicted by Shrink or the tile
// database is closed.
func (t *Tile) Data() *fastdb.DB {
	return t.data.Load()
}

// Loaded reports whether the tile's database is in memory.
func (t *Tile) Loaded() bool {
	return t.data.Load() != nil
}

// DB selects and loads tiles.
//
// A DB is safe for concurrent use.
type DB struct {
	mu      sync.Mutex
	sel     *Selector
	tiles   []*Tile
	loaded  []*Tile
	pending map[*Tile]struct{}
	frame   uint64
	closed  bool

	loader    Loader
	dbOpts    []fastdb.Option
	logger    *slog.Logger
	workers   int
	queueSize int
	limiter   *rate.Limiter
	registry  prometheus.Registerer
	metrics   *metrics

	flight singleflight.Group
	queue  chan *Tile
	cancel context.CancelFunc
	group  *errgroup.Group
}

// New returns an empty tile database.
func New(opts ...Option) (*DB, error) {
	d := &DB{
		sel:       NewSelector(MaxLevels),
		pending:   make(map[*Tile]struct{}),
		queueSize: defaultQueueSize,
		metrics:   newMetrics(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.loader == nil {
		d.loader = d.loadFile
	}
	if d.registry != nil {
		if err := d.metrics.register(d.registry); err != nil {
			return nil, err
		}
	}
	if d.workers > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		g, gctx := errgroup.WithContext(ctx)
		d.queue = make(chan *Tile, d.queueSize)
		d.cancel = cancel
		d.group = g
		for range d.workers {
			g.Go(func() error { return d.work(gctx) })
		}
	}
	return d, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (d *DB) log() *slog.Logger {
	if d.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.logger
}

func (d *DB) loadFile(_ context.Context, path string) (*fastdb.DB, error) {
	return fastdb.Load(path, d.dbOpts...)
}

// Register adds the tile database at path.
func (d *DB) Register(path string, level uint8, t float64, bound orb.Bound) (*Tile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	tile := &Tile{
		Path:  path,
		Level: level,
		Time:  t,
		Bound: bound,
		id:    uint32(len(d.tiles)), //nolint:gosec // bounded by memory long before 2^32 tiles
	}
	if _, err := d.sel.Register(Box{ID: tile.id, Level: level, Time: t, Bound: bound, Cookie: tile}); err != nil {
		return nil, fmt.Errorf("register %s: %w", path, err)
	}
	d.tiles = append(d.tiles, tile)
	return tile, nil
}

// RegisterCatalog registers every entry of cat. Relative paths are resolved
// against dir.
func (d *DB) RegisterCatalog(cat *Catalog, dir string) error {
	for _, e := range cat.Tiles {
		path := e.Path
		if dir != "" && !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		if _, err := d.Register(path, e.Level, e.Time, e.Bound); err != nil {
			return err
		}
	}
	return nil
}

// Tiles returns the registered tiles in registration order.
func (d *DB) Tiles() []*Tile {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.tiles)
}

// LoadedCount returns the number of tiles held in memory.
func (d *DB) LoadedCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.loaded)
}

// Frame returns the number of Take calls so far.
func (d *DB) Frame() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frame
}

// Take selects the tiles that draw query at maxLevel, coarse to fine.
//
// Selected tiles that are not yet loaded are returned together with the
// loaded coarser tiles covering for them. Without background loading they
// are loaded before Take returns; the selection is returned even if some
// loads fail, and the error joins those failures. With background loading
// they are queued and show up as loaded in a later Take.
func (d *DB) Take(ctx context.Context, maxLevel int, query orb.Bound) ([]*Tile, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrClosed
	}
	d.frame++
	boxes := d.sel.Take(maxLevel, query, func(b *Box) bool {
		return b.Cookie.(*Tile).Loaded()
	})
	tiles := make([]*Tile, len(boxes))
	var missing []*Tile
	for i, b := range boxes {
		t := b.Cookie.(*Tile)
		t.lastFrame = d.frame
		tiles[i] = t
		switch {
		case t.Loaded():
		case d.queue != nil:
			d.enqueue(t)
		default:
			missing = append(missing, t)
		}
	}
	d.mu.Unlock()

	d.metrics.takes.Inc()
	d.metrics.selected.Observe(float64(len(tiles)))

	var errs []error
	for _, t := range missing {
		if err := d.load(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return tiles, errors.Join(errs...)
}

// enqueue hands t to the background workers. d.mu must be held.
func (d *DB) enqueue(t *Tile) {
	if _, ok := d.pending[t]; ok {
		return
	}
	select {
	case d.queue <- t:
		d.pending[t] = struct{}{}
	default:
		d.log().Warn("tile load queue full", "path", t.Path)
	}
}

func (d *DB) work(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-d.queue:
			if err := d.load(ctx, t); err != nil && ctx.Err() == nil {
				d.log().Warn("tile load failed", "path", t.Path, "error", err)
			}
			d.mu.Lock()
			delete(d.pending, t)
			d.mu.Unlock()
		}
	}
}

// load opens t's database once, however many callers ask for it.
func (d *DB) load(ctx context.Context, t *Tile) error {
	_, err, _ := d.flight.Do(strconv.FormatUint(uint64(t.id), 10), func() (any, error) {
		if t.Loaded() {
			return nil, nil
		}
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("tile: load %s: %w", t.Path, err)
			}
		}

		start := time.Now()
		db, err := d.loader(ctx, t.Path)
		d.metrics.loadTime.Observe(time.Since(start).Seconds())
		if err != nil {
			d.metrics.loads.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("tile: load %s: %w", t.Path, err)
		}

		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			_ = db.Close()
			return nil, ErrClosed
		}
		t.data.Store(db)
		d.loaded = append(d.loaded, t)
		d.metrics.loaded.Set(float64(len(d.loaded)))
		d.mu.Unlock()

		d.metrics.loads.WithLabelValues("ok").Inc()
		d.log().Debug("tile loaded", "path", t.Path, "level", t.Level)
		return nil, nil
	})
	return err
}

// Shrink closes the least recently taken tiles until at most maxTiles remain
// loaded.
func (d *DB) Shrink(maxTiles int) error {
	maxTiles = max(maxTiles, 0)

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.loaded) <= maxTiles {
		return nil
	}
	slices.SortStableFunc(d.loaded, func(a, b *Tile) int {
		return cmp.Compare(b.lastFrame, a.lastFrame)
	})

	var errs []error
	for _, t := range d.loaded[maxTiles:] {
		if db := t.data.Swap(nil); db != nil {
			errs = append(errs, db.Close())
		}
		d.metrics.evictions.Inc()
		d.log().Debug("tile evicted", "path", t.Path, "frame", t.lastFrame)
	}
	clear(d.loaded[maxTiles:])
	d.loaded = d.loaded[:maxTiles]
	d.metrics.loaded.Set(float64(len(d.loaded)))
	return errors.Join(errs...)
}

// Close stops the background workers and closes every loaded tile.
func (d *DB) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	if d.cancel != nil {
		d.cancel()
		_ = d.group.Wait()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	var errs []error
	for _, t := range d.loaded {
		if db := t.data.Swap(nil); db != nil {
			errs = append(errs, db.Close())
		}
	}
	d.loaded = nil
	d.metrics.loaded.Set(0)
	return errors.Join(errs...)
}
