// Package minio reads and uploads fastdb databases on MinIO and other
// S3-compatible object stores.
package minio

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrNotFound is returned when the object does not exist.
var ErrNotFound = errors.New("minio: object not found")

// NewClient connects to endpoint ("host:port") with static credentials.
// Empty keys make anonymous requests.
func NewClient(endpoint, accessKey, secretKey string, secure bool) (*minio.Client, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
		Region: "us-east-1",
	})
	if err != nil {
		return nil, fmt.Errorf("minio: connect %s: %w", endpoint, err)
	}
	return client, nil
}

// Source reads an object with ranged GetObject calls.
// It satisfies fastdb.ByteSource.
type Source struct {
	client *minio.Client
	bucket string
	key    string
	size   int64
	etag   string
}

// NewSource stats the object for its size and ETag.
func NewSource(ctx context.Context, client *minio.Client, bucket, key string) (*Source, error) {
	info, err := client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, key)
		}
		return nil, fmt.Errorf("minio: stat %s/%s: %w", bucket, key, err)
	}
	return &Source{
		client: client,
		bucket: bucket,
		key:    key,
		size:   info.Size,
		etag:   info.ETag,
	}, nil
}

func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound", "NoSuchBucket":
		return true
	default:
		return false
	}
}

// Size returns the object size.
func (s *Source) Size() int64 {
	return s.size
}

// SourceID identifies the object version by its ETag.
func (s *Source) SourceID() string {
	return fmt.Sprintf("minio://%s/%s|etag:%s", s.bucket, s.key, s.etag)
}

// ReadAt implements io.ReaderAt with a background context.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	return s.ReadAtContext(context.Background(), p, off)
}

// ReadAtContext reads len(p) bytes at off.
func (s *Source) ReadAtContext(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 {
		return 0, fmt.Errorf("minio: read at %d: negative offset", off)
	}
	if off >= s.size {
		return 0, io.EOF
	}
	want := min(int64(len(p)), s.size-off)

	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(off, off+want-1); err != nil {
		return 0, err
	}
	if s.etag != "" {
		if err := opts.SetMatchETag(s.etag); err != nil {
			return 0, err
		}
	}
	obj, err := s.client.GetObject(ctx, s.bucket, s.key, opts)
	if err != nil {
		return 0, fmt.Errorf("minio: get %s/%s: %w", s.bucket, s.key, err)
	}
	defer obj.Close()

	n, err := io.ReadFull(obj, p[:want])
	if err != nil {
		return n, err
	}
	if want < int64(len(p)) {
		return n, io.EOF
	}
	return n, nil
}

// Put uploads size bytes from r to bucket/key. A negative size streams the
// upload in parts.
func Put(ctx context.Context, client *minio.Client, bucket, key string, r io.Reader, size int64) error {
	_, err := client.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{
		ContentType: "application/vnd.fastdb.database.v1",
	})
	if err != nil {
		return fmt.Errorf("minio: put %s/%s: %w", bucket, key, err)
	}
	return nil
}
