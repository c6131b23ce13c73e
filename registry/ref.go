package registry

import (
	"fmt"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2/registry"
)

// parseRef parses registry/repository[:tag|@digest].
func parseRef(ref string) (registry.Reference, error) {
	r, err := registry.ParseReference(ref)
	if err != nil {
		return registry.Reference{}, fmt.Errorf("%w: %q", ErrInvalidReference, ref)
	}
	return r, nil
}

// tagOf returns the tag of ref, failing when it has none.
func tagOf(ref string) (string, error) {
	r, err := parseRef(ref)
	if err != nil {
		return "", err
	}
	if r.Reference == "" || isDigest(r.Reference) {
		return "", fmt.Errorf("%w: %q must include a tag", ErrInvalidReference, ref)
	}
	return r.Reference, nil
}

// isDigest reports whether a reference is a digest rather than a tag.
func isDigest(ref string) bool {
	_, err := digest.Parse(ref)
	return err == nil
}

// descriptorFromDigest builds a descriptor carrying only a digest. Size 0
// lets FetchManifest accept any size.
func descriptorFromDigest(dgst string) (ocispec.Descriptor, error) {
	d, err := digest.Parse(dgst)
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("%w: invalid digest %q", ErrInvalidReference, dgst)
	}
	return ocispec.Descriptor{Digest: d}, nil
}
