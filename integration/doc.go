//go:build integration

// Package integration exercises fastdb against real services.
//
// The tests need Docker: they start a registry:2 container for oci://
// locations and a MinIO container for minio:// and s3:// locations.
// Run with: go test -tags=integration ./integration/...
package integration
