package registry

import (
	"fmt"
	"strconv"
	"time"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	fastdb "github.com/meigma/fastdb/core"
)

// DatabaseManifest wraps the OCI manifest of a pushed database.
type DatabaseManifest struct {
	raw      ocispec.Manifest
	digest   string
	database ocispec.Descriptor
	created  time.Time
}

// DatabaseDescriptor returns the descriptor of the database layer.
func (m *DatabaseManifest) DatabaseDescriptor() ocispec.Descriptor {
	return m.database
}

// Digest returns the manifest digest.
func (m *DatabaseManifest) Digest() string {
	return m.digest
}

// Size returns the stored size of the database layer.
func (m *DatabaseManifest) Size() int64 {
	return m.database.Size
}

// Compression reports the frame recorded in the layer media type.
func (m *DatabaseManifest) Compression() fastdb.Compression {
	switch m.database.MediaType {
	case MediaTypeDatabaseZstd:
		return fastdb.CompressionZstd
	case MediaTypeDatabaseLZ4:
		return fastdb.CompressionLZ4
	default:
		return fastdb.CompressionNone
	}
}

// LayerCount returns the layer count annotation, or -1 if absent.
func (m *DatabaseManifest) LayerCount() int {
	n, err := strconv.Atoi(m.raw.Annotations[AnnotationLayerCount])
	if err != nil {
		return -1
	}
	return n
}

// Annotations returns the manifest annotations.
func (m *DatabaseManifest) Annotations() map[string]string {
	return m.raw.Annotations
}

// Created returns the creation time, or the zero time when the annotation
// is missing or malformed.
func (m *DatabaseManifest) Created() time.Time {
	return m.created
}

// Raw returns the underlying OCI manifest.
func (m *DatabaseManifest) Raw() ocispec.Manifest {
	return m.raw
}

func parseDatabaseManifest(manifest *ocispec.Manifest, digest string) (*DatabaseManifest, error) {
	if manifest.MediaType != ocispec.MediaTypeImageManifest {
		return nil, fmt.Errorf("%w: unexpected manifest media type %q", ErrInvalidManifest, manifest.MediaType)
	}
	if manifest.ArtifactType != ArtifactType {
		return nil, fmt.Errorf("%w: unexpected artifact type %q", ErrInvalidManifest, manifest.ArtifactType)
	}

	var database ocispec.Descriptor
	found := false
	for _, layer := range manifest.Layers {
		if !isDatabaseMediaType(layer.MediaType) {
			continue
		}
		if found {
			return nil, fmt.Errorf("%w: multiple database layers", ErrInvalidManifest)
		}
		database = layer
		found = true
	}
	if !found {
		return nil, ErrMissingDatabase
	}
	if len(manifest.Layers) != 1 {
		return nil, fmt.Errorf("%w: expected 1 layer, got %d", ErrInvalidManifest, len(manifest.Layers))
	}
	if err := database.Digest.Validate(); err != nil {
		return nil, fmt.Errorf("%w: layer digest: %v", ErrInvalidManifest, err)
	}
	if database.Size < 0 {
		return nil, fmt.Errorf("%w: negative layer size", ErrInvalidManifest)
	}

	var created time.Time
	if ts, ok := manifest.Annotations[ocispec.AnnotationCreated]; ok {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			created = t
		}
	}

	return &DatabaseManifest{
		raw:      *manifest,
		digest:   digest,
		database: database,
		created:  created,
	}, nil
}
