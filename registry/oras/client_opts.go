package oras

import (
	"log/slog"
	"net/http"

	"oras.land/oras-go/v2/registry/remote/credentials"
)

// Option configures a Client.
type Option func(*Client)

// WithCredentialStore looks up credentials in store.
func WithCredentialStore(store credentials.Store) Option {
	return func(c *Client) {
		c.credStore = store
	}
}

// WithStaticCredentials authenticates to registry with a username and
// password.
func WithStaticCredentials(registry, username, password string) Option {
	return func(c *Client) {
		c.credStore = StaticCredentials(registry, username, password)
	}
}

// WithStaticToken authenticates to registry with a bearer token.
func WithStaticToken(registry, token string) Option {
	return func(c *Client) {
		c.credStore = StaticToken(registry, token)
	}
}

// WithDockerConfig reads credentials from the Docker configuration. When it
// cannot be loaded the client stays anonymous.
func WithDockerConfig() Option {
	return func(c *Client) {
		store, err := DockerCredentials()
		if err != nil {
			c.log().Debug("docker credentials unavailable", "error", err)
			return
		}
		c.credStore = store
	}
}

// WithAnonymous skips credential lookup entirely.
func WithAnonymous() Option {
	return func(c *Client) {
		c.anonymous = true
	}
}

// WithPlainHTTP talks to registries over HTTP instead of HTTPS.
func WithPlainHTTP(enabled bool) Option {
	return func(c *Client) {
		c.plainHTTP = enabled
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithHTTPClient replaces the retrying default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}
