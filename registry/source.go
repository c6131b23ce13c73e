package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// blobSource is a fastdb.ByteSource over a registry blob for clients that
// cannot serve range requests. The blob is fetched whole on the first read.
// ctx bounds that fetch; the source does not outlive Pull.
type blobSource struct {
	ctx  context.Context
	oci  OCIClient
	ref  string
	desc ocispec.Descriptor

	once sync.Once
	data []byte
	err  error
}

func newBlobSource(ctx context.Context, oci OCIClient, ref string, desc ocispec.Descriptor) *blobSource {
	return &blobSource{ctx: ctx, oci: oci, ref: ref, desc: desc}
}

func (s *blobSource) Size() int64 {
	return s.desc.Size
}

// SourceID is the blob digest, so cached copies are shared across tags.
func (s *blobSource) SourceID() string {
	return s.desc.Digest.String()
}

func (s *blobSource) ReadAt(p []byte, off int64) (int, error) {
	s.once.Do(s.fetch)
	if s.err != nil {
		return 0, s.err
	}
	if off < 0 {
		return 0, errors.New("registry: negative offset")
	}
	if off >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (s *blobSource) fetch() {
	rc, err := s.oci.FetchBlob(s.ctx, s.ref, &s.desc)
	if err != nil {
		s.err = fmt.Errorf("fetch database blob: %w", mapOCIError(err))
		return
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, s.desc.Size+1))
	if err != nil {
		s.err = fmt.Errorf("read database blob: %w", err)
		return
	}
	if int64(len(data)) != s.desc.Size {
		s.err = fmt.Errorf("%w: blob is %d bytes, manifest says %d", ErrDigestMismatch, len(data), s.desc.Size)
		return
	}
	s.data = data
}
