package fastdb

import "log/slog"

// buildConfig holds configuration for database creation.
type buildConfig struct {
	compression Compression
	logger      *slog.Logger
}

// BuildOption configures a Builder.
type BuildOption func(*buildConfig)

// BuildWithCompression frames the output with zstd or lz4.
// Use CompressionNone (the default) to write the database as is.
func BuildWithCompression(c Compression) BuildOption {
	return func(cfg *buildConfig) {
		cfg.compression = c
	}
}

// BuildWithLogger sets the logger for build warnings such as an unset extent
// on a quantised layer or coordinates clamped to the extent.
func BuildWithLogger(logger *slog.Logger) BuildOption {
	return func(cfg *buildConfig) {
		cfg.logger = logger
	}
}
