package registry

import (
	"log/slog"

	"github.com/meigma/fastdb/core/cache"
	"github.com/meigma/fastdb/registry/oras"
)

// Client pushes and pulls databases in OCI registries.
type Client struct {
	oci           OCIClient
	manifestCache cache.Cache
	logger        *slog.Logger

	// orasOpts are passed to the default oras client.
	orasOpts []oras.Option
}

// log returns the logger, falling back to a discard logger if nil.
func (c *Client) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// New creates a client.
//
// Without WithOCIClient an oras client is built from the pass-through
// options (WithPlainHTTP, WithDockerConfig and so on).
func New(opts ...Option) *Client {
	c := &Client{}
	for _, opt := range opts {
		opt(c)
	}
	if c.oci == nil {
		orasOpts := c.orasOpts
		if c.logger != nil {
			orasOpts = append(orasOpts, oras.WithLogger(c.logger))
		}
		c.oci = oras.New(orasOpts...)
	}
	return c
}
