package registry

import (
	"log/slog"

	"github.com/meigma/fastdb/core/cache"
	"github.com/meigma/fastdb/registry/oras"
)

// Option configures a Client.
type Option func(*Client)

// WithOCIClient replaces the oras client, mostly for tests.
func WithOCIClient(oci OCIClient) Option {
	return func(c *Client) {
		c.oci = oci
	}
}

// WithLogger sets the logger. It is also handed to the default oras client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithManifestCache keeps fetched manifests keyed by digest. Manifests are
// immutable, so entries never go stale.
func WithManifestCache(mc cache.Cache) Option {
	return func(c *Client) {
		c.manifestCache = mc
	}
}

// WithPlainHTTP talks to registries over HTTP.
func WithPlainHTTP(enabled bool) Option {
	return func(c *Client) {
		c.orasOpts = append(c.orasOpts, oras.WithPlainHTTP(enabled))
	}
}

// WithDockerConfig reads credentials from ~/.docker/config.json.
func WithDockerConfig() Option {
	return func(c *Client) {
		c.orasOpts = append(c.orasOpts, oras.WithDockerConfig())
	}
}

// WithStaticCredentials authenticates to registry with a username and
// password.
func WithStaticCredentials(registry, username, password string) Option {
	return func(c *Client) {
		c.orasOpts = append(c.orasOpts, oras.WithStaticCredentials(registry, username, password))
	}
}

// WithStaticToken authenticates to registry with a bearer token.
func WithStaticToken(registry, token string) Option {
	return func(c *Client) {
		c.orasOpts = append(c.orasOpts, oras.WithStaticToken(registry, token))
	}
}

// WithAnonymous disables credential lookup.
func WithAnonymous() Option {
	return func(c *Client) {
		c.orasOpts = append(c.orasOpts, oras.WithAnonymous())
	}
}

// WithUserAgent sets the User-Agent sent to registries.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.orasOpts = append(c.orasOpts, oras.WithUserAgent(ua))
	}
}

// WithOrasOptions passes options to the default oras client.
func WithOrasOptions(opts ...oras.Option) Option {
	return func(c *Client) {
		c.orasOpts = append(c.orasOpts, opts...)
	}
}
