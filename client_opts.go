package fastdb

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/minio/minio-go/v7"
	"golang.org/x/time/rate"

	core "github.com/meigma/fastdb/core"
	"github.com/meigma/fastdb/core/cache"
	"github.com/meigma/fastdb/core/cache/disk"
	miniosrc "github.com/meigma/fastdb/core/minio"
	s3src "github.com/meigma/fastdb/core/s3"
	"github.com/meigma/fastdb/registry/oras"
)

// Option configures a Client.
type Option func(*Client) error

// DefaultCacheSize is the cache limit used by WithCacheDir.
const DefaultCacheSize int64 = 1 << 30

// --- Logging ---

// WithLogger sets the logger used by the client and everything it loads.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// --- Caching ---

// WithCacheDir keeps remote databases in a disk cache under dir, limited
// to DefaultCacheSize.
func WithCacheDir(dir string) Option {
	return WithCacheDirSize(dir, DefaultCacheSize)
}

// WithCacheDirSize is WithCacheDir with an explicit limit in bytes.
// Zero means unlimited.
func WithCacheDirSize(dir string, maxBytes int64) Option {
	return func(c *Client) error {
		if dir == "" {
			return errors.New("fastdb: empty cache directory")
		}
		dc, err := disk.New(dir, disk.WithMaxBytes(maxBytes))
		if err != nil {
			return err
		}
		c.cache = dc
		return nil
	}
}

// WithCache uses a custom cache for remote databases.
func WithCache(cc cache.Cache) Option {
	return func(c *Client) error {
		c.cache = cc
		return nil
	}
}

// --- Loading ---

// WithDatabaseOptions passes options to every core load, for example
// core.WithMmap(true) or core.WithMaxSize.
func WithDatabaseOptions(opts ...core.Option) Option {
	return func(c *Client) error {
		c.dbOpts = append(c.dbOpts, opts...)
		return nil
	}
}

// --- HTTP ---

// WithHTTPClient sets the client for http(s) locations.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithDownloadRate limits downloads from http(s), s3, minio and oci locations
// to bytesPerSecond. Cached databases and local files are not limited.
func WithDownloadRate(bytesPerSecond int) Option {
	return func(c *Client) error {
		if bytesPerSecond <= 0 {
			return errors.New("fastdb: download rate must be positive")
		}
		c.limiter = rate.NewLimiter(rate.Limit(bytesPerSecond), max(bytesPerSecond, core.ReadChunkSize))
		return nil
	}
}

// --- Object stores ---

// WithS3Client uses client for s3:// locations.
func WithS3Client(client s3src.Client) Option {
	return func(c *Client) error {
		c.s3 = client
		return nil
	}
}

// WithS3Config builds the S3 client from cfg on first use.
func WithS3Config(cfg s3src.ClientConfig) Option {
	return func(c *Client) error {
		c.s3Config = cfg
		return nil
	}
}

// WithMinio connects minio:// locations to endpoint ("host:port").
func WithMinio(endpoint, accessKey, secretKey string, secure bool) Option {
	return func(c *Client) error {
		client, err := miniosrc.NewClient(endpoint, accessKey, secretKey, secure)
		if err != nil {
			return err
		}
		c.minio = client
		return nil
	}
}

// WithMinioClient uses client for minio:// locations.
func WithMinioClient(client *minio.Client) Option {
	return func(c *Client) error {
		c.minio = client
		return nil
	}
}

// --- Registry authentication ---

// WithDockerConfig reads registry credentials from ~/.docker/config.json.
func WithDockerConfig() Option {
	return func(c *Client) error {
		c.orasOpts = append(c.orasOpts, oras.WithDockerConfig())
		return nil
	}
}

// WithStaticCredentials sets a username and password for one registry host.
func WithStaticCredentials(registry, username, password string) Option {
	return func(c *Client) error {
		c.orasOpts = append(c.orasOpts, oras.WithStaticCredentials(registry, username, password))
		return nil
	}
}

// WithStaticToken sets a bearer token for one registry host.
func WithStaticToken(registry, token string) Option {
	return func(c *Client) error {
		c.orasOpts = append(c.orasOpts, oras.WithStaticToken(registry, token))
		return nil
	}
}

// WithAnonymous ignores any configured registry credentials.
func WithAnonymous() Option {
	return func(c *Client) error {
		c.orasOpts = append(c.orasOpts, oras.WithAnonymous())
		return nil
	}
}

// --- Registry transport ---

// WithPlainHTTP talks to registries over HTTP, for local registries.
func WithPlainHTTP(enabled bool) Option {
	return func(c *Client) error {
		c.orasOpts = append(c.orasOpts, oras.WithPlainHTTP(enabled))
		return nil
	}
}

// WithUserAgent sets the User-Agent sent to registries.
func WithUserAgent(ua string) Option {
	return func(c *Client) error {
		c.orasOpts = append(c.orasOpts, oras.WithUserAgent(ua))
		return nil
	}
}
