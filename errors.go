package fastdb

import (
	"errors"

	core "github.com/meigma/fastdb/core"
	"github.com/meigma/fastdb/registry"
)

// Sentinel errors for locations.
var (
	// ErrInvalidLocation is returned for empty or malformed locations.
	ErrInvalidLocation = errors.New("fastdb: invalid location")

	// ErrUnsupportedLocation is returned for unknown schemes and for
	// publishing to read-only schemes.
	ErrUnsupportedLocation = errors.New("fastdb: unsupported location")

	// ErrNotConfigured is returned when a location needs a storage client
	// that was not configured.
	ErrNotConfigured = errors.New("fastdb: storage client not configured")
)

// Errors re-exported from core.
var (
	// ErrLoad is wrapped by every LoadError.
	ErrLoad = core.ErrLoad

	// ErrOutOfRange is wrapped by every IndexError.
	ErrOutOfRange = core.ErrOutOfRange

	// ErrUnsupportedType is wrapped by every UnsupportedTypeError.
	ErrUnsupportedType = core.ErrUnsupportedType

	// ErrInvalidFormat is returned when database bytes are malformed.
	ErrInvalidFormat = core.ErrInvalidFormat
)

// Errors re-exported from registry.
var (
	// ErrNotFound is returned when no database exists at an OCI reference.
	ErrNotFound = registry.ErrNotFound

	// ErrDigestMismatch is returned when a pulled database does not match
	// its manifest.
	ErrDigestMismatch = registry.ErrDigestMismatch
)

// Types re-exported from core.
type (
	// DB is a loaded database.
	DB = core.DB

	// Layer is one layer of a DB.
	Layer = core.Layer

	// Feature is one row of a Layer.
	Feature = core.Feature

	// Chunk is the stored geometry of a Feature.
	Chunk = core.Chunk

	// LoadError reports a database that could not be loaded.
	LoadError = core.LoadError

	// IndexError reports a layer, field or feature index out of range.
	IndexError = core.IndexError

	// UnsupportedTypeError reports an element type Chunk cannot produce.
	UnsupportedTypeError = core.UnsupportedTypeError
)
