package fastdb

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	core "github.com/meigma/fastdb/core"
	miniosrc "github.com/meigma/fastdb/core/minio"
	s3src "github.com/meigma/fastdb/core/s3"
	"github.com/meigma/fastdb/registry"
)

// Publish writes stored database bytes to location after checking that they
// parse. Compressed frames are written as they are.
//
// For oci:// locations it returns the manifest digest; otherwise it returns
// the location. http(s) locations are read-only.
func (c *Client) Publish(ctx context.Context, location string, stored []byte, opts ...registry.PushOption) (string, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return "", err
	}

	switch loc.Scheme {
	case SchemeOCI:
		// Push validates the bytes itself.
		return c.registry.Push(ctx, loc.Path, stored, opts...)
	case SchemeHTTP:
		return "", fmt.Errorf("%w: cannot publish to %s", ErrUnsupportedLocation, location)
	}

	db, err := core.LoadBytes(stored)
	if err != nil {
		return "", fmt.Errorf("publish: %w", err)
	}
	_ = db.Close()

	switch loc.Scheme {
	case SchemeFile:
		err = core.WriteFile(loc.Path, stored)
	case SchemeS3:
		var client s3src.Client
		client, err = c.s3Client(ctx)
		if err == nil {
			err = s3src.Put(ctx, client, loc.Bucket, loc.Path, bytes.NewReader(stored))
		}
	case SchemeMinio:
		if c.minio == nil {
			return "", fmt.Errorf("%w: minio (use WithMinio)", ErrNotConfigured)
		}
		err = miniosrc.Put(ctx, c.minio, loc.Bucket, loc.Path, bytes.NewReader(stored), int64(len(stored)))
	}
	if err != nil {
		return "", fmt.Errorf("publish %s: %w", location, err)
	}

	c.log().Info("database published", "location", location, "bytes", len(stored))
	return location, nil
}

// PublishFile publishes the database file at path.
func (c *Client) PublishFile(ctx context.Context, location, path string, opts ...registry.PushOption) (string, error) {
	stored, err := os.ReadFile(path) //nolint:gosec // caller chooses the path
	if err != nil {
		return "", fmt.Errorf("publish: %w", err)
	}
	opts = append([]registry.PushOption{registry.WithTitle(filepath.Base(path))}, opts...)
	return c.Publish(ctx, location, stored, opts...)
}
