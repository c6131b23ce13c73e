package registry

import (
	"context"
	"io"
	"net/http"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// OCIClient is the set of registry operations the client needs.
//
// The oras subpackage provides the default implementation.
type OCIClient interface {
	// PushBlob uploads a blob; desc carries its digest and size.
	PushBlob(ctx context.Context, repoRef string, desc *ocispec.Descriptor, r io.Reader) error

	// FetchBlob opens a blob. The caller closes the reader.
	FetchBlob(ctx context.Context, repoRef string, desc *ocispec.Descriptor) (io.ReadCloser, error)

	// PushManifest uploads a manifest under tag.
	PushManifest(ctx context.Context, repoRef, tag string, manifest *ocispec.Manifest) (ocispec.Descriptor, error)

	// FetchManifest downloads a manifest by digest, returning it decoded and raw.
	FetchManifest(ctx context.Context, repoRef string, expected *ocispec.Descriptor) (ocispec.Manifest, []byte, error)

	// Resolve resolves a tag or digest to a descriptor.
	Resolve(ctx context.Context, repoRef, ref string) (ocispec.Descriptor, error)

	// Tag points tag at an existing manifest.
	Tag(ctx context.Context, repoRef string, desc *ocispec.Descriptor, tag string) error
}

// rangeReader is implemented by clients that can serve blobs to plain HTTP
// range requests.
type rangeReader interface {
	BlobURL(repoRef, digest string) (string, error)
	AuthClient(repoRef string) (*http.Client, error)
}
