package fastdb

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/minio/minio-go/v7"
	"golang.org/x/time/rate"

	core "github.com/meigma/fastdb/core"
	"github.com/meigma/fastdb/core/cache"
	s3src "github.com/meigma/fastdb/core/s3"
	"github.com/meigma/fastdb/registry"
	"github.com/meigma/fastdb/registry/oras"
)

// Client loads and publishes databases by location. It is safe for
// concurrent use.
type Client struct {
	logger     *slog.Logger
	cache      cache.Cache
	dbOpts     []core.Option
	httpClient *http.Client
	limiter    *rate.Limiter

	s3Config s3src.ClientConfig
	minio    *minio.Client

	orasOpts []oras.Option
	registry *registry.Client

	s3Mu sync.Mutex
	s3   s3src.Client
}

// NewClient creates a client.
//
// If no registry authentication is configured, anonymous access is used.
// S3 is configured from the default AWS chain on first use unless
// WithS3Client or WithS3Config says otherwise.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	regOpts := []registry.Option{registry.WithOrasOptions(c.orasOpts...)}
	if c.logger != nil {
		regOpts = append(regOpts, registry.WithLogger(c.logger))
	}
	c.registry = registry.New(regOpts...)
	return c, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (c *Client) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// Registry returns the OCI registry client used for oci:// locations.
func (c *Client) Registry() *registry.Client {
	return c.registry
}

// s3Client returns the configured S3 client, building one from the AWS
// configuration chain on first use.
func (c *Client) s3Client(ctx context.Context) (s3src.Client, error) {
	c.s3Mu.Lock()
	defer c.s3Mu.Unlock()
	if c.s3 != nil {
		return c.s3, nil
	}
	client, err := s3src.NewClient(ctx, c.s3Config)
	if err != nil {
		return nil, err
	}
	c.s3 = client
	return client, nil
}

// databaseOptions returns the options for core loads. The cache only
// applies to remote sources.
func (c *Client) databaseOptions(remote bool) []core.Option {
	opts := append([]core.Option(nil), c.dbOpts...)
	if c.logger != nil {
		opts = append(opts, core.WithLogger(c.logger))
	}
	if remote && c.cache != nil {
		opts = append(opts, core.WithCache(c.cache))
	}
	if remote && c.limiter != nil {
		opts = append(opts, core.WithReadRate(c.limiter))
	}
	return opts
}
