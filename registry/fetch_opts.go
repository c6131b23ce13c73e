package registry

// FetchOption configures Fetch.
type FetchOption func(*fetchConfig)

type fetchConfig struct {
	skipCache bool
}

// WithSkipCache ignores cached manifests. The fetched manifest still
// refreshes the cache.
func WithSkipCache() FetchOption {
	return func(cfg *fetchConfig) {
		cfg.skipCache = true
	}
}
