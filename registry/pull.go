package registry

import (
	"context"
	"errors"
	"fmt"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	fastdb "github.com/meigma/fastdb/core"
	fastdbhttp "github.com/meigma/fastdb/core/http"
)

// Pull loads the database at ref.
//
// The stored bytes are checked against the layer digest before they are
// parsed. Pass fastdb.WithCache through WithDatabaseOptions to keep a local
// copy; entries are keyed by the layer digest and shared across tags.
func (c *Client) Pull(ctx context.Context, ref string, opts ...PullOption) (*fastdb.DB, error) {
	cfg := pullConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	c.log().Info("pulling database", "ref", ref)

	var fetchOpts []FetchOption
	if cfg.skipCache {
		fetchOpts = append(fetchOpts, WithSkipCache())
	}
	manifest, err := c.Fetch(ctx, ref, fetchOpts...)
	if err != nil {
		return nil, err
	}
	desc := manifest.DatabaseDescriptor()

	src, err := c.source(ctx, ref, desc, cfg.fullDownload)
	if err != nil {
		return nil, err
	}

	dbOpts := append([]fastdb.Option{
		fastdb.WithExpectedDigest(desc.Digest),
	}, cfg.dbOpts...)
	if c.logger != nil {
		dbOpts = append(dbOpts, fastdb.WithLogger(c.logger))
	}
	db, err := fastdb.Open(ctx, src, dbOpts...)
	if err != nil {
		if errors.Is(err, fastdb.ErrDigestMismatch) {
			return nil, fmt.Errorf("%w: %w", ErrDigestMismatch, err)
		}
		return nil, err
	}

	c.log().Debug("pulled database",
		"ref", ref,
		"digest", desc.Digest,
		"layers", db.LayerCount())
	return db, nil
}

// source picks a range-request source when the OCI client can authorise
// plain HTTP requests, and a whole-blob source otherwise.
func (c *Client) source(ctx context.Context, ref string, desc ocispec.Descriptor, full bool) (fastdb.ByteSource, error) {
	rr, ok := c.oci.(rangeReader)
	if full || !ok {
		return newBlobSource(ctx, c.oci, ref, desc), nil
	}

	blobURL, err := rr.BlobURL(ref, desc.Digest.String())
	if err != nil {
		return nil, fmt.Errorf("build blob URL: %w", mapOCIError(err))
	}
	hc, err := rr.AuthClient(ref)
	if err != nil {
		return nil, fmt.Errorf("auth client: %w", mapOCIError(err))
	}
	src, err := fastdbhttp.NewSource(ctx, blobURL,
		fastdbhttp.WithClient(hc),
		fastdbhttp.WithSourceID(desc.Digest.String()),
		fastdbhttp.WithLogger(c.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("open database blob: %w", mapOCIError(err))
	}
	if src.Size() != desc.Size {
		return nil, fmt.Errorf("%w: blob is %d bytes, manifest says %d", ErrDigestMismatch, src.Size(), desc.Size)
	}
	c.log().Debug("reading database with range requests", "url", blobURL)
	return src, nil
}
