package registry

import (
	"context"
	"errors"
	"io"
	"testing"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"

	fastdb "github.com/meigma/fastdb/core"
	"github.com/meigma/fastdb/registry/oras"
	"github.com/meigma/fastdb/registry/registrytest"
)

// testDatabase encodes a database with one point layer.
func testDatabase(t *testing.T, layer string, opts ...fastdb.BuildOption) []byte {
	t.Helper()
	b := fastdb.NewBuilder(opts...)
	l := b.CreateLayer(layer)
	for i := range 3 {
		_, err := l.AddFeature().SetGeometry(orb.Point{float64(i), float64(i)}).End()
		require.NoError(t, err)
	}
	require.NoError(t, l.End())
	data, err := b.Bytes()
	require.NoError(t, err)
	return data
}

// newRegistryClient returns a client for an in-memory registry.
func newRegistryClient(t *testing.T, opts ...registrytest.Option) (*Client, *registrytest.Server) {
	t.Helper()
	srv := registrytest.New(t, opts...)
	return New(WithPlainHTTP(true)), srv
}

// wholeBlobClient hides the range-request methods of the oras client.
type wholeBlobClient struct {
	OCIClient
}

func newWholeBlobClient() *wholeBlobClient {
	return &wholeBlobClient{OCIClient: oras.New(oras.WithPlainHTTP(true))}
}

var errNotImplemented = errors.New("not implemented in mock")

// mockOCIClient lets each test supply only the calls it expects.
type mockOCIClient struct {
	ResolveFunc       func(ctx context.Context, repoRef, ref string) (ocispec.Descriptor, error)
	FetchManifestFunc func(ctx context.Context, repoRef string, expected *ocispec.Descriptor) (ocispec.Manifest, []byte, error)
	FetchBlobFunc     func(ctx context.Context, repoRef string, desc *ocispec.Descriptor) (io.ReadCloser, error)
	PushBlobFunc      func(ctx context.Context, repoRef string, desc *ocispec.Descriptor, r io.Reader) error
	PushManifestFunc  func(ctx context.Context, repoRef, tag string, manifest *ocispec.Manifest) (ocispec.Descriptor, error)
	TagFunc           func(ctx context.Context, repoRef string, desc *ocispec.Descriptor, tag string) error

	fetchManifestCalls int
}

func (m *mockOCIClient) Resolve(ctx context.Context, repoRef, ref string) (ocispec.Descriptor, error) {
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, repoRef, ref)
	}
	return ocispec.Descriptor{}, errNotImplemented
}

func (m *mockOCIClient) FetchManifest(ctx context.Context, repoRef string, expected *ocispec.Descriptor) (ocispec.Manifest, []byte, error) {
	m.fetchManifestCalls++
	if m.FetchManifestFunc != nil {
		return m.FetchManifestFunc(ctx, repoRef, expected)
	}
	return ocispec.Manifest{}, nil, errNotImplemented
}

func (m *mockOCIClient) FetchBlob(ctx context.Context, repoRef string, desc *ocispec.Descriptor) (io.ReadCloser, error) {
	if m.FetchBlobFunc != nil {
		return m.FetchBlobFunc(ctx, repoRef, desc)
	}
	return nil, errNotImplemented
}

func (m *mockOCIClient) PushBlob(ctx context.Context, repoRef string, desc *ocispec.Descriptor, r io.Reader) error {
	if m.PushBlobFunc != nil {
		return m.PushBlobFunc(ctx, repoRef, desc, r)
	}
	return errNotImplemented
}

func (m *mockOCIClient) PushManifest(ctx context.Context, repoRef, tag string, manifest *ocispec.Manifest) (ocispec.Descriptor, error) {
	if m.PushManifestFunc != nil {
		return m.PushManifestFunc(ctx, repoRef, tag, manifest)
	}
	return ocispec.Descriptor{}, errNotImplemented
}

func (m *mockOCIClient) Tag(ctx context.Context, repoRef string, desc *ocispec.Descriptor, tag string) error {
	if m.TagFunc != nil {
		return m.TagFunc(ctx, repoRef, desc, tag)
	}
	return errNotImplemented
}
