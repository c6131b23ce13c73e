package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/opencontainers/image-spec/specs-go"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fastdb "github.com/meigma/fastdb/core"
	"github.com/meigma/fastdb/core/testutil"
	"github.com/meigma/fastdb/registry/oras"
)

func layerDesc(mediaType string, data []byte) ocispec.Descriptor {
	return ocispec.Descriptor{
		MediaType: mediaType,
		Digest:    digest.FromBytes(data),
		Size:      int64(len(data)),
	}
}

func TestParseDatabaseManifest(t *testing.T) {
	t.Parallel()

	db := layerDesc(MediaTypeDatabaseZstd, []byte("db"))
	valid := func() ocispec.Manifest {
		return ocispec.Manifest{
			Versioned:    specs.Versioned{SchemaVersion: 2},
			MediaType:    ocispec.MediaTypeImageManifest,
			ArtifactType: ArtifactType,
			Layers:       []ocispec.Descriptor{db},
			Annotations: map[string]string{
				ocispec.AnnotationCreated: "2024-05-01T10:00:00Z",
				AnnotationLayerCount:      "4",
			},
		}
	}

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		m := valid()
		parsed, err := parseDatabaseManifest(&m, "sha256:abc")
		require.NoError(t, err)
		assert.Equal(t, "sha256:abc", parsed.Digest())
		assert.Equal(t, db, parsed.DatabaseDescriptor())
		assert.Equal(t, fastdb.CompressionZstd, parsed.Compression())
		assert.Equal(t, 4, parsed.LayerCount())
		assert.Equal(t, 2024, parsed.Created().Year())
		assert.Equal(t, ArtifactType, parsed.Raw().ArtifactType)
		assert.Equal(t, "4", parsed.Annotations()[AnnotationLayerCount])
	})

	t.Run("missing annotations", func(t *testing.T) {
		t.Parallel()
		m := valid()
		m.Annotations = nil
		parsed, err := parseDatabaseManifest(&m, "sha256:abc")
		require.NoError(t, err)
		assert.Equal(t, -1, parsed.LayerCount())
		assert.True(t, parsed.Created().IsZero())
	})

	tests := []struct {
		name   string
		mutate func(*ocispec.Manifest)
		want   error
	}{
		{"index media type", func(m *ocispec.Manifest) { m.MediaType = ocispec.MediaTypeImageIndex }, ErrInvalidManifest},
		{"foreign artifact", func(m *ocispec.Manifest) { m.ArtifactType = "application/vnd.other" }, ErrInvalidManifest},
		{"no layers", func(m *ocispec.Manifest) { m.Layers = nil }, ErrMissingDatabase},
		{"foreign layer only", func(m *ocispec.Manifest) {
			m.Layers = []ocispec.Descriptor{layerDesc("application/octet-stream", []byte("x"))}
		}, ErrMissingDatabase},
		{"two databases", func(m *ocispec.Manifest) { m.Layers = append(m.Layers, db) }, ErrInvalidManifest},
		{"extra layer", func(m *ocispec.Manifest) {
			m.Layers = append(m.Layers, layerDesc("application/octet-stream", []byte("x")))
		}, ErrInvalidManifest},
		{"bad digest", func(m *ocispec.Manifest) { m.Layers[0].Digest = "sha256:zz" }, ErrInvalidManifest},
		{"negative size", func(m *ocispec.Manifest) { m.Layers[0].Size = -1 }, ErrInvalidManifest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := valid()
			m.Layers = append([]ocispec.Descriptor(nil), m.Layers...)
			tt.mutate(&m)
			_, err := parseDatabaseManifest(&m, "sha256:abc")
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFetchRequiresReference(t *testing.T) {
	t.Parallel()

	c := New(WithOCIClient(&mockOCIClient{}))
	_, err := c.Fetch(context.Background(), "registry.example/db")
	require.ErrorIs(t, err, ErrInvalidReference)
}

func TestFetchMapsNotFound(t *testing.T) {
	t.Parallel()

	mock := &mockOCIClient{
		ResolveFunc: func(context.Context, string, string) (ocispec.Descriptor, error) {
			return ocispec.Descriptor{}, fmt.Errorf("%w: tag unknown", oras.ErrNotFound)
		},
	}
	c := New(WithOCIClient(mock))
	_, err := c.Fetch(context.Background(), "registry.example/db:v1")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, err, oras.ErrNotFound)
}

func TestFetchManifestCache(t *testing.T) {
	t.Parallel()

	stored := testDatabase(t, "a")
	mock := mockArtifact(t, stored, stored)
	mc := testutil.NewMockCache()
	c := New(WithOCIClient(mock), WithManifestCache(mc))
	ctx := context.Background()

	first, err := c.Fetch(ctx, "registry.example/db:v1")
	require.NoError(t, err)
	second, err := c.Fetch(ctx, "registry.example/db:v1")
	require.NoError(t, err)

	assert.Equal(t, first.Digest(), second.Digest())
	assert.Equal(t, 1, mock.fetchManifestCalls)
	assert.Equal(t, 1, mc.Len())

	_, err = c.Fetch(ctx, "registry.example/db:v1", WithSkipCache())
	require.NoError(t, err)
	assert.Equal(t, 2, mock.fetchManifestCalls)
}

func TestFetchDropsCorruptCacheEntry(t *testing.T) {
	t.Parallel()

	stored := testDatabase(t, "a")
	mock := mockArtifact(t, stored, stored)
	mc := testutil.NewMockCache()
	c := New(WithOCIClient(mock), WithManifestCache(mc))
	ctx := context.Background()

	desc, err := mock.Resolve(ctx, "", "v1")
	require.NoError(t, err)
	require.NoError(t, mc.Put([]byte(desc.Digest.String()), []byte("{garbage")))

	manifest, err := c.Fetch(ctx, "registry.example/db:v1")
	require.NoError(t, err)
	assert.Equal(t, desc.Digest.String(), manifest.Digest())
	assert.Equal(t, 1, mock.fetchManifestCalls)

	cached, ok := mc.Get([]byte(desc.Digest.String()))
	require.True(t, ok)
	var m ocispec.Manifest
	require.NoError(t, json.Unmarshal(cached, &m))
	assert.Equal(t, ArtifactType, m.ArtifactType)
}

func TestFetchRejectsForeignArtifact(t *testing.T) {
	t.Parallel()

	c, srv := newRegistryClient(t)
	raw, err := json.Marshal(ocispec.Manifest{
		Versioned:    specs.Versioned{SchemaVersion: 2},
		MediaType:    ocispec.MediaTypeImageManifest,
		ArtifactType: "application/vnd.example.other",
		Config:       ocispec.DescriptorEmptyJSON,
	})
	require.NoError(t, err)
	srv.PutManifest("db", "other", ocispec.MediaTypeImageManifest, raw)

	_, err = c.Fetch(context.Background(), srv.Ref("db", "other"))
	require.ErrorIs(t, err, ErrInvalidManifest)
}

func TestTag(t *testing.T) {
	t.Parallel()

	c, srv := newRegistryClient(t)
	dgst, err := c.Push(context.Background(), srv.Ref("db", "v1"), testDatabase(t, "a"))
	require.NoError(t, err)

	require.NoError(t, c.Tag(context.Background(), srv.Ref("db", "prod"), dgst))

	manifest, err := c.Fetch(context.Background(), srv.Ref("db", "prod"))
	require.NoError(t, err)
	assert.Equal(t, dgst, manifest.Digest())
}

func TestTagRejects(t *testing.T) {
	t.Parallel()

	c := New(WithOCIClient(&mockOCIClient{}))
	ctx := context.Background()
	valid := digest.FromString("x").String()

	require.ErrorIs(t, c.Tag(ctx, "registry.example/db", valid), ErrInvalidReference)
	require.ErrorIs(t, c.Tag(ctx, "registry.example/db@"+valid, valid), ErrInvalidReference)
	require.ErrorIs(t, c.Tag(ctx, "registry.example/db:v1", "not-a-digest"), ErrInvalidReference)
}

func TestMapOCIError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, mapOCIError(nil))
	require.ErrorIs(t, mapOCIError(oras.ErrNotFound), ErrNotFound)
	require.ErrorIs(t, mapOCIError(oras.ErrInvalidReference), ErrInvalidReference)
	already := fmt.Errorf("wrapped: %w", ErrNotFound)
	assert.Same(t, already, mapOCIError(already))
	assert.Equal(t, errNotImplemented, mapOCIError(errNotImplemented))
}

func TestIsDigest(t *testing.T) {
	t.Parallel()

	assert.True(t, isDigest(digest.FromString("x").String()))
	assert.False(t, isDigest("v1"))
	assert.False(t, isDigest("sha256:short"))
}
