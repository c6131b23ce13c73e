package fastdb

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/opencontainers/go-digest"
	"golang.org/x/time/rate"

	"github.com/meigma/fastdb/core/cache"
	"github.com/meigma/fastdb/core/internal/compress"
	"github.com/meigma/fastdb/core/internal/format"
	"github.com/meigma/fastdb/core/internal/platform"
	"github.com/meigma/fastdb/core/internal/sizing"
)

// ReadChunkSize bounds a single ReadAt against a ByteSource. Rate limiters
// wrapped around a source need a burst of at least this many bytes.
const ReadChunkSize = 4 << 20

// ByteSource provides random access to stored database bytes.
//
// Implementations exist for local files, HTTP range requests, S3 and MinIO.
// SourceID must return a stable identifier for the underlying content.
type ByteSource interface {
	io.ReaderAt
	Size() int64
	SourceID() string
}

// ContextReaderAt is implemented by sources whose reads can be cancelled.
// Open prefers it over ReadAt so the caller's context reaches every request.
type ContextReaderAt interface {
	ReadAtContext(ctx context.Context, p []byte, off int64) (int, error)
}

// DB is a loaded database.
//
// A DB is safe for concurrent reads. It must not be used after Close.
type DB struct {
	data     []byte
	layers   []*Layer
	byName   map[string]int
	readOnly bool
	release  func() error
	closed   atomic.Bool

	logger   *slog.Logger
	useMmap  bool
	maxSize  uint64
	cache    cache.Cache
	expected digest.Digest
	limiter  *rate.Limiter

	digestOnce sync.Once
	digest     digest.Digest
	namesOnce  sync.Once
	names      map[string]FeatureRef
}

// log returns the logger, falling back to a discard logger if nil.
func (db *DB) log() *slog.Logger {
	if db.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return db.logger
}

func newDB(opts []Option) *DB {
	db := &DB{maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Load opens the database file at path.
//
// Any failure, including a missing file, is reported as a *LoadError.
func Load(path string, opts ...Option) (*DB, error) {
	db := newDB(opts)
	if err := db.loadFile(path); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	db.log().Debug("database loaded",
		"path", path,
		"layers", len(db.layers),
		"bytes", len(db.data),
		"mapped", db.readOnly)
	return db, nil
}

// LoadBytes parses a database held in memory. Compressed frames are
// decompressed; otherwise data is used in place and must not be modified
// by the caller afterwards.
func LoadBytes(data []byte, opts ...Option) (*DB, error) {
	db := newDB(opts)
	if err := db.initStored(data); err != nil {
		return nil, &LoadError{Err: err}
	}
	return db, nil
}

// DetectCompression reports the frame wrapping stored database bytes.
func DetectCompression(stored []byte) Compression {
	return compress.Detect(stored)
}

// Open reads a database from src into memory.
//
// With WithCache, the stored bytes are served from and written to the cache.
// A cached entry that fails to parse is deleted and fetched again.
func Open(ctx context.Context, src ByteSource, opts ...Option) (*DB, error) {
	db := newDB(opts)
	if err := db.open(ctx, src); err != nil {
		return nil, &LoadError{Path: src.SourceID(), Err: err}
	}
	return db, nil
}

func (db *DB) open(ctx context.Context, src ByteSource) error {
	key := sourceKey(src.SourceID())
	if db.cache != nil {
		if data, ok := db.cache.Get(key); ok {
			err := db.initStored(data)
			if err == nil {
				db.log().Debug("database served from cache", "source", src.SourceID())
				return nil
			}
			db.log().Warn("dropping unreadable cache entry", "source", src.SourceID(), "error", err)
			if delErr := db.cache.Delete(key); delErr != nil {
				db.log().Warn("cache delete failed", "error", delErr)
			}
		}
	}

	data, err := readSource(ctx, src, db.maxSize, db.limiter)
	if err != nil {
		return err
	}
	if err := db.initStored(data); err != nil {
		return err
	}
	if db.cache != nil {
		if err := db.cache.Put(key, data); err != nil {
			db.log().Warn("cache put failed", "source", src.SourceID(), "error", err)
		}
	}
	return nil
}

// sourceKey derives the cache key for a source identifier.
func sourceKey(id string) []byte {
	sum := sha256.Sum256([]byte(id))
	return sum[:]
}

// readSource reads src in ReadChunkSize pieces. A non-nil limiter is charged
// for every piece before it is requested.
func readSource(ctx context.Context, src ByteSource, maxSize uint64, limiter *rate.Limiter) ([]byte, error) {
	size := src.Size()
	if size < 0 {
		return nil, fmt.Errorf("source %s reports negative size", src.SourceID())
	}
	if maxSize > 0 && uint64(size) > maxSize {
		return nil, ErrSizeOverflow
	}
	n, err := sizing.ToInt(uint64(size), ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	data := make([]byte, n)
	for off := 0; off < n; off += ReadChunkSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(off+ReadChunkSize, n)
		if limiter != nil {
			if err := limiter.WaitN(ctx, min(end-off, limiter.Burst())); err != nil {
				return nil, fmt.Errorf("read %s at %d: %w", src.SourceID(), off, err)
			}
		}
		got, err := readAt(ctx, src, data[off:end], int64(off))
		if err != nil && !(errors.Is(err, io.EOF) && got == end-off) {
			return nil, fmt.Errorf("read %s at %d: %w", src.SourceID(), off, err)
		}
	}
	return data, nil
}

func readAt(ctx context.Context, src ByteSource, p []byte, off int64) (int, error) {
	if cr, ok := src.(ContextReaderAt); ok {
		return cr.ReadAtContext(ctx, p, off)
	}
	return src.ReadAt(p, off)
}

func (db *DB) loadFile(path string) error {
	f, err := os.Open(path) //nolint:gosec // caller chooses the path
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}
	if db.maxSize > 0 && uint64(info.Size()) > db.maxSize {
		return ErrSizeOverflow
	}
	size, err := sizing.ToInt(uint64(info.Size()), ErrSizeOverflow)
	if err != nil {
		return err
	}

	if !db.useMmap {
		data := make([]byte, size)
		if _, err := io.ReadFull(f, data); err != nil {
			return err
		}
		return db.initStored(data)
	}

	data, release, err := platform.Map(f, size)
	if err != nil {
		return err
	}
	if compress.Detect(data) != format.CompressionNone {
		defer release() //nolint:errcheck // decoded copy no longer references the mapping
		return db.initStored(data)
	}
	if err := db.verify(data); err != nil {
		_ = release()
		return err
	}
	if err := db.init(data); err != nil {
		_ = release()
		return err
	}
	db.readOnly = platform.Mapped
	db.release = release
	return nil
}

// initStored verifies and decompresses stored bytes, then parses them.
func (db *DB) initStored(stored []byte) error {
	if err := db.verify(stored); err != nil {
		return err
	}
	data, err := compress.Decode(stored, db.maxSize)
	if err != nil {
		if errors.Is(err, compress.ErrTooLarge) {
			return ErrSizeOverflow
		}
		return fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	return db.init(data)
}

func (db *DB) verify(stored []byte) error {
	if db.expected == "" {
		return nil
	}
	if err := db.expected.Validate(); err != nil {
		return err
	}
	v := db.expected.Verifier()
	_, _ = v.Write(stored) //nolint:errcheck // hash writes never fail
	if !v.Verified() {
		return fmt.Errorf("%w: expected %s", ErrDigestMismatch, db.expected)
	}
	return nil
}

func (db *DB) init(data []byte) error {
	layers, err := parse(db, data)
	if err != nil {
		return err
	}
	db.data = data
	db.layers = layers
	db.byName = make(map[string]int, len(layers))
	for i, l := range layers {
		if _, dup := db.byName[l.Name()]; !dup {
			db.byName[l.Name()] = i
		}
	}
	return nil
}

// LayerCount returns the number of layers.
func (db *DB) LayerCount() int {
	return len(db.layers)
}

// Layer returns the layer at index i, or an *IndexError.
func (db *DB) Layer(i int) (*Layer, error) {
	if err := checkIndex("layer", i, len(db.layers)); err != nil {
		return nil, err
	}
	return db.layers[i], nil
}

// Layers iterates over all layers in file order.
func (db *DB) Layers() iter.Seq2[int, *Layer] {
	return func(yield func(int, *Layer) bool) {
		for i, l := range db.layers {
			if !yield(i, l) {
				return
			}
		}
	}
}

// LayerByName returns the first layer called name.
func (db *DB) LayerByName(name string) (*Layer, bool) {
	i, ok := db.byName[name]
	if !ok {
		return nil, false
	}
	return db.layers[i], true
}

// TryGetFeature resolves a feature reference. It reports false when the
// reference points outside the database.
func (db *DB) TryGetFeature(ref FeatureRef) (*Feature, bool) {
	if int(ref.Layer) >= len(db.layers) {
		return nil, false
	}
	return db.layers[ref.Layer].TryGetFeature(int(ref.Feature))
}

// Buffer returns the decompressed database bytes.
func (db *DB) Buffer() []byte {
	return db.data
}

// Digest returns the sha256 digest of the decompressed database bytes.
func (db *DB) Digest() digest.Digest {
	db.digestOnce.Do(func() {
		db.digest = digest.FromBytes(db.data)
	})
	return db.digest
}

// ReadOnly reports whether the database is memory mapped.
func (db *DB) ReadOnly() bool {
	return db.readOnly
}

// Close releases a memory mapping. It is safe to call more than once.
func (db *DB) Close() error {
	if db.closed.Swap(true) {
		return nil
	}
	if db.release != nil {
		return db.release()
	}
	return nil
}
