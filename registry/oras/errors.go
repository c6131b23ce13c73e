package oras

import "errors"

// Sentinel errors for registry operations.
var (
	// ErrNotFound is returned when a blob, manifest or tag does not exist.
	ErrNotFound = errors.New("oci: not found")

	// ErrUnauthorized is returned when the registry rejects the credentials.
	ErrUnauthorized = errors.New("oci: unauthorized")

	// ErrForbidden is returned when the credentials lack access.
	ErrForbidden = errors.New("oci: forbidden")

	// ErrInvalidReference is returned for malformed references.
	ErrInvalidReference = errors.New("oci: invalid reference")

	// ErrInvalidDescriptor is returned for nil descriptors or descriptors
	// without a valid digest and size.
	ErrInvalidDescriptor = errors.New("oci: invalid descriptor")

	// ErrManifestInvalid is returned when a manifest cannot be decoded.
	ErrManifestInvalid = errors.New("oci: invalid manifest")
)
