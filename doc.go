// Package fastdb loads and publishes fastdb vector databases wherever they
// are stored.
//
// The file format and the read API live in the [core] subpackage. This
// package adds a [Client] that resolves a location string to a database:
//
//	/data/world.fdb                   local file, memory-mapped on request
//	https://example.com/world.fdb     HTTP range requests
//	s3://bucket/world.fdb             Amazon S3
//	minio://bucket/world.fdb          MinIO or another S3-compatible store
//	oci://ghcr.io/org/world:v1        OCI registry artifact
//
// # Quick Start
//
//	c, err := fastdb.NewClient(
//	    fastdb.WithDockerConfig(),
//	    fastdb.WithCacheDir("/var/cache/fastdb"),
//	)
//	if err != nil {
//	    return err
//	}
//	db, err := c.Load(ctx, "oci://ghcr.io/org/world:v1")
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	layer, err := db.Layer(0)
//
// Remote databases are read fully into memory. With a cache directory the
// stored bytes are kept on disk and reused; OCI databases are keyed by
// their content digest, HTTP and object store databases by URL and ETag.
//
// [core]: https://pkg.go.dev/github.com/meigma/fastdb/core
package fastdb
