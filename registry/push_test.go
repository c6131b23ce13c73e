package registry

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fastdb "github.com/meigma/fastdb/core"
)

func TestPushWritesArtifact(t *testing.T) {
	t.Parallel()

	c, srv := newRegistryClient(t)
	stored := testDatabase(t, "roads")

	dgst, err := c.Push(context.Background(), srv.Ref("maps/roads", "v1"), stored,
		WithAnnotations(map[string]string{"org.opencontainers.image.source": "test"}),
		WithTitle("roads.fdb"),
	)
	require.NoError(t, err)

	raw, ok := srv.Manifest("maps/roads", "v1")
	require.True(t, ok)
	assert.Equal(t, dgst, digest.FromBytes(raw).String())

	var manifest ocispec.Manifest
	require.NoError(t, json.Unmarshal(raw, &manifest))
	assert.Equal(t, ArtifactType, manifest.ArtifactType)
	assert.Equal(t, ocispec.MediaTypeEmptyJSON, manifest.Config.MediaType)
	assert.Equal(t, "1", manifest.Annotations[AnnotationLayerCount])
	assert.Equal(t, "test", manifest.Annotations["org.opencontainers.image.source"])
	assert.NotEmpty(t, manifest.Annotations[ocispec.AnnotationCreated])

	require.Len(t, manifest.Layers, 1)
	layer := manifest.Layers[0]
	assert.Equal(t, MediaTypeDatabase, layer.MediaType)
	assert.Equal(t, digest.FromBytes(stored), layer.Digest)
	assert.Equal(t, int64(len(stored)), layer.Size)
	assert.Equal(t, "roads.fdb", layer.Annotations[ocispec.AnnotationTitle])

	blob, ok := srv.Blob("maps/roads", layer.Digest)
	require.True(t, ok)
	assert.Equal(t, stored, blob)
}

func TestPushCompressedMediaType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		compression fastdb.Compression
		mediaType   string
	}{
		{"none", fastdb.CompressionNone, MediaTypeDatabase},
		{"zstd", fastdb.CompressionZstd, MediaTypeDatabaseZstd},
		{"lz4", fastdb.CompressionLZ4, MediaTypeDatabaseLZ4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, srv := newRegistryClient(t)
			stored := testDatabase(t, "parcels", fastdb.BuildWithCompression(tt.compression))
			ref := srv.Ref("parcels", "v1")

			_, err := c.Push(context.Background(), ref, stored)
			require.NoError(t, err)

			manifest, err := c.Fetch(context.Background(), ref)
			require.NoError(t, err)
			assert.Equal(t, tt.mediaType, manifest.DatabaseDescriptor().MediaType)
			assert.Equal(t, tt.compression, manifest.Compression())
			assert.Equal(t, int64(len(stored)), manifest.Size())
		})
	}
}

func TestPushAdditionalTags(t *testing.T) {
	t.Parallel()

	c, srv := newRegistryClient(t)
	dgst, err := c.Push(context.Background(), srv.Ref("db", "v2"), testDatabase(t, "a"),
		WithTags("latest", "stable"))
	require.NoError(t, err)

	for _, tag := range []string{"v2", "latest", "stable"} {
		manifest, err := c.Fetch(context.Background(), srv.Ref("db", tag))
		require.NoError(t, err, tag)
		assert.Equal(t, dgst, manifest.Digest(), tag)
	}
}

func TestPushFile(t *testing.T) {
	t.Parallel()

	c, srv := newRegistryClient(t)
	path := filepath.Join(t.TempDir(), "world.fdb")
	require.NoError(t, os.WriteFile(path, testDatabase(t, "world"), 0o600))

	_, err := c.PushFile(context.Background(), srv.Ref("world", "v1"), path)
	require.NoError(t, err)

	manifest, err := c.Fetch(context.Background(), srv.Ref("world", "v1"))
	require.NoError(t, err)
	assert.Equal(t, "world.fdb", manifest.DatabaseDescriptor().Annotations[ocispec.AnnotationTitle])
	assert.Equal(t, 1, manifest.LayerCount())

	_, err = c.PushFile(context.Background(), srv.Ref("world", "v1"), filepath.Join(t.TempDir(), "missing.fdb"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestPushRejects(t *testing.T) {
	t.Parallel()

	// Nothing may reach the registry for rejected pushes.
	c := New(WithOCIClient(&mockOCIClient{}))
	stored := testDatabase(t, "a")
	ctx := context.Background()

	_, err := c.Push(ctx, "registry.example/db", stored)
	require.ErrorIs(t, err, ErrInvalidReference)

	_, err = c.Push(ctx, "registry.example/db@"+digest.FromBytes(stored).String(), stored)
	require.ErrorIs(t, err, ErrInvalidReference)

	_, err = c.Push(ctx, "not a ref", stored)
	require.ErrorIs(t, err, ErrInvalidReference)

	_, err = c.Push(ctx, "registry.example/db:v1", []byte("not a database"))
	require.ErrorIs(t, err, fastdb.ErrLoad)
}

func TestPushReportsBlobFailure(t *testing.T) {
	t.Parallel()

	mock := &mockOCIClient{}
	c := New(WithOCIClient(mock))

	_, err := c.Push(context.Background(), "registry.example/db:v1", testDatabase(t, "a"))
	require.ErrorIs(t, err, errNotImplemented)
	assert.Contains(t, err.Error(), "push config")
}
