package tile

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	fastdb "github.com/meigma/fastdb/core"
)

// Option configures a DB.
type Option func(*DB)

// WithLoader replaces the default loader, which opens tiles with
// fastdb.Load.
func WithLoader(l Loader) Option {
	return func(d *DB) {
		d.loader = l
	}
}

// WithDatabaseOptions passes opts to fastdb.Load in the default loader.
func WithDatabaseOptions(opts ...fastdb.Option) Option {
	return func(d *DB) {
		d.dbOpts = append(d.dbOpts, opts...)
	}
}

// WithLogger sets the logger for load and eviction events.
func WithLogger(logger *slog.Logger) Option {
	return func(d *DB) {
		d.logger = logger
	}
}

// WithBackgroundLoading loads tiles on workers goroutines instead of inside
// Take. Zero keeps loading inline.
func WithBackgroundLoading(workers int) Option {
	return func(d *DB) {
		d.workers = max(workers, 0)
	}
}

// WithQueueSize bounds the number of tiles waiting for a background worker.
// Tiles selected while the queue is full are queued by a later Take.
func WithQueueSize(n int) Option {
	return func(d *DB) {
		if n > 0 {
			d.queueSize = n
		}
	}
}

// WithLoadRate limits how often tiles are loaded.
func WithLoadRate(limiter *rate.Limiter) Option {
	return func(d *DB) {
		d.limiter = limiter
	}
}

// WithMetrics registers the tile database's collectors with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(d *DB) {
		d.registry = reg
	}
}
