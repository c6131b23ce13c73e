package registry

import fastdb "github.com/meigma/fastdb/core"

// PullOption configures a Pull.
type PullOption func(*pullConfig)

type pullConfig struct {
	skipCache    bool
	fullDownload bool
	dbOpts       []fastdb.Option
}

// WithDatabaseOptions passes options to fastdb.Open, such as WithCache or
// WithMaxSize.
func WithDatabaseOptions(opts ...fastdb.Option) PullOption {
	return func(cfg *pullConfig) {
		cfg.dbOpts = append(cfg.dbOpts, opts...)
	}
}

// WithPullSkipCache ignores cached manifests.
func WithPullSkipCache() PullOption {
	return func(cfg *pullConfig) {
		cfg.skipCache = true
	}
}

// WithFullDownload fetches the database as one blob instead of reading it
// with HTTP range requests.
func WithFullDownload() PullOption {
	return func(cfg *pullConfig) {
		cfg.fullDownload = true
	}
}
