package s3

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.HeadObjectOutput)
	return out, args.Error(1)
}

func (m *mockClient) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.GetObjectOutput)
	return out, args.Error(1)
}

func (m *mockClient) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if in.Body != nil {
		data, err := io.ReadAll(in.Body)
		if err != nil {
			return nil, err
		}
		in.Body = bytes.NewReader(data)
	}
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func (m *mockClient) UploadPart(ctx context.Context, in *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.UploadPartOutput)
	return out, args.Error(1)
}

func (m *mockClient) CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.CreateMultipartUploadOutput)
	return out, args.Error(1)
}

func (m *mockClient) CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.CompleteMultipartUploadOutput)
	return out, args.Error(1)
}

func (m *mockClient) AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.AbortMultipartUploadOutput)
	return out, args.Error(1)
}

func headFor(bucket, key string) any {
	return mock.MatchedBy(func(in *s3.HeadObjectInput) bool {
		return aws.ToString(in.Bucket) == bucket && aws.ToString(in.Key) == key
	})
}

func TestNewSourceNotFound(t *testing.T) {
	t.Parallel()

	client := new(mockClient)
	client.On("HeadObject", mock.Anything, headFor("maps", "missing.db")).Return(nil, &types.NotFound{}).Once()

	_, err := NewSource(context.Background(), client, "maps", "missing.db")
	require.ErrorIs(t, err, ErrNotFound)
	client.AssertExpectations(t)
}

func TestSourceReadAt(t *testing.T) {
	t.Parallel()

	client := new(mockClient)
	client.On("HeadObject", mock.Anything, headFor("maps", "world.db")).Return(&s3.HeadObjectOutput{
		ContentLength: aws.Int64(10),
		ETag:          aws.String(`"abc"`),
	}, nil).Once()
	client.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return aws.ToString(in.Range) == "bytes=0-4" && aws.ToString(in.IfMatch) == `"abc"`
	})).Return(&s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte("hello")))}, nil).Once()
	client.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return aws.ToString(in.Range) == "bytes=8-9"
	})).Return(&s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte("ld")))}, nil).Once()

	src, err := NewSource(context.Background(), client, "maps", "world.db")
	require.NoError(t, err)
	assert.Equal(t, int64(10), src.Size())
	assert.Equal(t, `s3://maps/world.db|etag:"abc"`, src.SourceID())

	buf := make([]byte, 5)
	n, err := src.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	n, err = src.ReadAt(buf, 8)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, "ld", string(buf[:n]))

	_, err = src.ReadAt(buf, 10)
	assert.Equal(t, io.EOF, err)

	client.AssertExpectations(t)
}

func TestPut(t *testing.T) {
	t.Parallel()

	client := new(mockClient)
	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		body, ok := in.Body.(*bytes.Reader)
		if !ok {
			return false
		}
		data, _ := io.ReadAll(body)
		_, _ = body.Seek(0, io.SeekStart)
		return aws.ToString(in.Bucket) == "maps" &&
			aws.ToString(in.Key) == "out.db" &&
			string(data) == "database"
	})).Return(&s3.PutObjectOutput{}, nil).Once()

	err := Put(context.Background(), client, "maps", "out.db", bytes.NewReader([]byte("database")), WithConcurrency(1))
	require.NoError(t, err)
	client.AssertExpectations(t)
}
