package fastdb

import (
	"context"
	"errors"
	"fmt"

	core "github.com/meigma/fastdb/core"
	fastdbhttp "github.com/meigma/fastdb/core/http"
	miniosrc "github.com/meigma/fastdb/core/minio"
	s3src "github.com/meigma/fastdb/core/s3"
	"github.com/meigma/fastdb/registry"
)

// Load opens the database at location.
//
// Every failure, including an unparseable location, is a *LoadError whose
// Path is the location string.
func (c *Client) Load(ctx context.Context, location string) (*DB, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return nil, &LoadError{Path: location, Err: err}
	}

	db, err := c.load(ctx, loc)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = location
			return nil, le
		}
		return nil, &LoadError{Path: location, Err: err}
	}

	c.log().Info("database loaded",
		"location", location,
		"scheme", loc.Scheme,
		"layers", db.LayerCount())
	return db, nil
}

func (c *Client) load(ctx context.Context, loc Location) (*DB, error) {
	switch loc.Scheme {
	case SchemeFile:
		return core.Load(loc.Path, c.databaseOptions(false)...)
	case SchemeOCI:
		return c.registry.Pull(ctx, loc.Path,
			registry.WithDatabaseOptions(c.databaseOptions(true)...))
	}

	src, err := c.source(ctx, loc)
	if err != nil {
		return nil, err
	}
	return core.Open(ctx, src, c.databaseOptions(true)...)
}

// source opens a byte source for remote, non-registry locations.
func (c *Client) source(ctx context.Context, loc Location) (core.ByteSource, error) {
	switch loc.Scheme {
	case SchemeHTTP:
		return fastdbhttp.NewSource(ctx, loc.Path,
			fastdbhttp.WithClient(c.httpClient),
			fastdbhttp.WithConditionalHeaders(),
			fastdbhttp.WithLogger(c.logger))
	case SchemeS3:
		client, err := c.s3Client(ctx)
		if err != nil {
			return nil, err
		}
		return s3src.NewSource(ctx, client, loc.Bucket, loc.Path)
	case SchemeMinio:
		if c.minio == nil {
			return nil, fmt.Errorf("%w: minio (use WithMinio)", ErrNotConfigured)
		}
		return miniosrc.NewSource(ctx, c.minio, loc.Bucket, loc.Path)
	default:
		return nil, fmt.Errorf("%w: scheme %q", ErrUnsupportedLocation, loc.Scheme)
	}
}
