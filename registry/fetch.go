package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Fetch retrieves the manifest of a database without downloading it.
func (c *Client) Fetch(ctx context.Context, ref string, opts ...FetchOption) (*DatabaseManifest, error) {
	cfg := fetchConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	parsed, err := parseRef(ref)
	if err != nil {
		return nil, err
	}
	if parsed.Reference == "" {
		return nil, fmt.Errorf("%w: %q must include a tag or digest", ErrInvalidReference, ref)
	}

	dgst, err := c.resolveDigest(ctx, ref, parsed.Reference)
	if err != nil {
		return nil, err
	}

	if !cfg.skipCache {
		if m, ok := c.cachedManifest(dgst); ok {
			return m, nil
		}
	}

	desc, err := descriptorFromDigest(dgst)
	if err != nil {
		return nil, err
	}
	raw, rawBytes, err := c.oci.FetchManifest(ctx, ref, &desc)
	if err != nil {
		return nil, mapOCIError(err)
	}
	manifest, err := parseDatabaseManifest(&raw, dgst)
	if err != nil {
		return nil, err
	}

	if c.manifestCache != nil {
		if err := c.manifestCache.Put([]byte(dgst), rawBytes); err != nil {
			c.log().Warn("manifest cache put failed", "digest", dgst, "error", err)
		}
	}
	return manifest, nil
}

// resolveDigest returns reference unchanged when it is a digest and asks the
// registry otherwise.
func (c *Client) resolveDigest(ctx context.Context, ref, reference string) (string, error) {
	if isDigest(reference) {
		c.log().Debug("resolving reference", "ref", ref, "type", "digest")
		return reference, nil
	}
	c.log().Debug("resolving reference", "ref", ref, "type", "tag")
	desc, err := c.oci.Resolve(ctx, ref, reference)
	if err != nil {
		return "", mapOCIError(err)
	}
	return desc.Digest.String(), nil
}

// cachedManifest returns a cached manifest. Entries that no longer match
// their digest or fail to parse are dropped.
func (c *Client) cachedManifest(dgst string) (*DatabaseManifest, bool) {
	if c.manifestCache == nil {
		return nil, false
	}
	key := []byte(dgst)
	raw, ok := c.manifestCache.Get(key)
	if !ok {
		c.log().Debug("manifest cache miss", "digest", dgst)
		return nil, false
	}

	var manifest ocispec.Manifest
	var parsed *DatabaseManifest
	err := verifyDigest(raw, dgst)
	if err == nil {
		err = json.Unmarshal(raw, &manifest)
	}
	if err == nil {
		parsed, err = parseDatabaseManifest(&manifest, dgst)
	}
	if err != nil {
		c.log().Warn("corrupted manifest cache entry deleted", "digest", dgst, "error", err)
		_ = c.manifestCache.Delete(key) //nolint:errcheck // best-effort cleanup
		return nil, false
	}
	c.log().Debug("manifest cache hit", "digest", dgst)
	return parsed, true
}

func verifyDigest(data []byte, dgst string) error {
	d, err := digest.Parse(dgst)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	if got := d.Algorithm().FromBytes(data); got != d {
		return fmt.Errorf("%w: expected %s, got %s", ErrDigestMismatch, d, got)
	}
	return nil
}
