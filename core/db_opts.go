package fastdb

import (
	"log/slog"

	"github.com/opencontainers/go-digest"
	"golang.org/x/time/rate"

	"github.com/meigma/fastdb/core/cache"
)

// DefaultMaxSize is the default limit on decompressed database size (4 GiB).
const DefaultMaxSize = 4 << 30

// Option configures how a database is loaded.
type Option func(*DB)

// WithLogger sets the logger for load diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(db *DB) {
		db.logger = logger
	}
}

// WithMmap maps local files read-only instead of reading them into memory.
// Compressed files are always decompressed into memory. A mapped database
// rejects in-place field updates with ErrReadOnly.
func WithMmap(enabled bool) Option {
	return func(db *DB) {
		db.useMmap = enabled
	}
}

// WithMaxSize limits both the stored and the decompressed database size.
// Set limit to 0 to disable the limit.
func WithMaxSize(limit uint64) Option {
	return func(db *DB) {
		db.maxSize = limit
	}
}

// WithCache caches database bytes fetched by Open.
//
// Entries are keyed by the sha256 of the source identifier, so sources must
// return identifiers that change with their content.
func WithCache(c cache.Cache) Option {
	return func(db *DB) {
		db.cache = c
	}
}

// WithExpectedDigest verifies the bytes as stored (before decompression)
// against d and fails the load with ErrDigestMismatch on a difference.
func WithExpectedDigest(d digest.Digest) Option {
	return func(db *DB) {
		db.expected = d
	}
}

// WithReadRate paces the reads Open issues against its source. Each
// ReadChunkSize piece waits on limiter first; cache hits and local files are
// not charged.
func WithReadRate(limiter *rate.Limiter) Option {
	return func(db *DB) {
		db.limiter = limiter
	}
}
