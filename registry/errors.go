package registry

import "errors"

// Sentinel errors for registry operations.
var (
	// ErrNotFound is returned when no database exists at the reference.
	ErrNotFound = errors.New("registry: not found")

	// ErrInvalidReference is returned when a reference string is malformed.
	ErrInvalidReference = errors.New("registry: invalid reference")

	// ErrInvalidManifest is returned when a manifest does not describe a
	// fastdb database.
	ErrInvalidManifest = errors.New("registry: invalid database manifest")

	// ErrMissingDatabase is returned when a manifest has no database layer.
	ErrMissingDatabase = errors.New("registry: missing database layer")

	// ErrDigestMismatch is returned when content does not match its digest.
	ErrDigestMismatch = errors.New("registry: digest mismatch")
)
