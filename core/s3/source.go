// Package s3 reads and uploads fastdb databases stored in Amazon S3.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrNotFound is returned when the object does not exist.
var ErrNotFound = errors.New("s3: object not found")

// Client is the subset of *s3.Client used here.
type Client interface {
	manager.UploadAPIClient
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ClientConfig selects the endpoint and credentials for NewClient.
// Zero values fall back to the default AWS configuration chain.
type ClientConfig struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PathStyle bool
}

// NewClient builds an S3 client from the default AWS configuration,
// overridden by cfg.
func NewClient(ctx context.Context, cfg ClientConfig) (*s3.Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	}), nil
}

// Source reads an S3 object with ranged GetObject calls.
// It satisfies fastdb.ByteSource.
type Source struct {
	client Client
	bucket string
	key    string
	size   int64
	etag   string
}

// NewSource looks up the object's size and ETag.
func NewSource(ctx context.Context, client Client, bucket, key string) (*Source, error) {
	head, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrNotFound, bucket, key)
		}
		return nil, fmt.Errorf("s3: head s3://%s/%s: %w", bucket, key, err)
	}
	s := &Source{
		client: client,
		bucket: bucket,
		key:    key,
		size:   aws.ToInt64(head.ContentLength),
		etag:   aws.ToString(head.ETag),
	}
	return s, nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	return errors.As(err, &nf) || errors.As(err, &nsk)
}

// Size returns the object size.
func (s *Source) Size() int64 {
	return s.size
}

// SourceID identifies the object version by its ETag.
func (s *Source) SourceID() string {
	return fmt.Sprintf("s3://%s/%s|etag:%s", s.bucket, s.key, s.etag)
}

// ReadAt implements io.ReaderAt with a background context.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	return s.ReadAtContext(context.Background(), p, off)
}

// ReadAtContext reads len(p) bytes at off. Reads are pinned to the ETag seen
// by NewSource.
func (s *Source) ReadAtContext(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 {
		return 0, fmt.Errorf("s3: read at %d: negative offset", off)
	}
	if off >= s.size {
		return 0, io.EOF
	}
	want := min(int64(len(p)), s.size-off)

	in := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, off+want-1)),
	}
	if s.etag != "" {
		in.IfMatch = aws.String(s.etag)
	}
	resp, err := s.client.GetObject(ctx, in)
	if err != nil {
		return 0, fmt.Errorf("s3: get s3://%s/%s: %w", s.bucket, s.key, err)
	}
	defer resp.Body.Close()

	n, err := io.ReadFull(resp.Body, p[:want])
	if err != nil {
		return n, err
	}
	if want < int64(len(p)) {
		return n, io.EOF
	}
	return n, nil
}

// PutOption configures Put.
type PutOption func(*manager.Uploader)

// WithPartSize sets the multipart part size in bytes.
func WithPartSize(size int64) PutOption {
	return func(u *manager.Uploader) {
		u.PartSize = size
	}
}

// WithConcurrency sets the number of parts uploaded in parallel.
func WithConcurrency(n int) PutOption {
	return func(u *manager.Uploader) {
		u.Concurrency = n
	}
}

// Put uploads r to bucket/key, switching to multipart uploads for large
// databases.
func Put(ctx context.Context, client Client, bucket, key string, r io.Reader, opts ...PutOption) error {
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 8 << 20
		for _, opt := range opts {
			opt(u)
		}
	})
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String("application/vnd.fastdb.database.v1"),
	})
	if err != nil {
		return fmt.Errorf("s3: put s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}
