package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockPutter implements objectPutter for testing.
type mockPutter struct {
	mock.Mock
}

func (m *mockPutter) PutObject(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

func TestNewS3Publisher(t *testing.T) {
	cfg := S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Prefix:          "/samples/",
		Endpoint:        "http://localhost:4566", // LocalStack-like endpoint
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	}

	p, err := NewS3Publisher(cfg)
	require.NoError(t, err)
	assert.Equal(t, "test-bucket", p.bucket)
	assert.Equal(t, "us-east-1", p.region)
	assert.Equal(t, "samples", p.prefix)
}

func TestS3Publisher_Key(t *testing.T) {
	withPrefix := newS3Publisher(&mockPutter{}, S3Config{Bucket: "b", Region: "r", Prefix: "batches/42"})
	assert.Equal(t, "batches/42/clip-3-01-02-003.png", withPrefix.Key("/out/clip-3-01-02-003.png"))

	noPrefix := newS3Publisher(&mockPutter{}, S3Config{Bucket: "b", Region: "r"})
	assert.Equal(t, "clip-3-01-02-003.png", noPrefix.Key("/out/clip-3-01-02-003.png"))
}

func TestS3Publisher_URL(t *testing.T) {
	amazon := newS3Publisher(&mockPutter{}, S3Config{Bucket: "frames", Region: "eu-west-1"})
	assert.Equal(t, "https://frames.s3.eu-west-1.amazonaws.com/a.png", amazon.URL("a.png"))

	custom := newS3Publisher(&mockPutter{}, S3Config{Bucket: "frames", Endpoint: "http://minio:9000/"})
	assert.Equal(t, "http://minio:9000/frames/a.png", custom.URL("a.png"))
}

func TestS3Publisher_Publish(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip-0-00-05-000.png")
	require.NoError(t, os.WriteFile(path, []byte("png data"), 0o600))

	t.Run("uploads file contents", func(t *testing.T) {
		putter := &mockPutter{}
		putter.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
			body, err := io.ReadAll(in.Body)
			return err == nil &&
				string(body) == "png data" &&
				aws.ToString(in.Bucket) == "frames" &&
				aws.ToString(in.Key) == "run/clip-0-00-05-000.png" &&
				aws.ToString(in.ContentType) == "image/png"
		})).Return(&s3.PutObjectOutput{}, nil)

		p := newS3Publisher(putter, S3Config{Bucket: "frames", Region: "us-east-1", Prefix: "run"})
		url, err := p.Publish(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, "https://frames.s3.us-east-1.amazonaws.com/run/clip-0-00-05-000.png", url)
		putter.AssertExpectations(t)
	})

	t.Run("upload failure", func(t *testing.T) {
		putter := &mockPutter{}
		putter.On("PutObject", mock.Anything, mock.Anything).Return(nil, errors.New("access denied"))

		p := newS3Publisher(putter, S3Config{Bucket: "frames", Region: "us-east-1"})
		_, err := p.Publish(context.Background(), path)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrPublish)
		assert.Contains(t, err.Error(), "access denied")
	})

	t.Run("missing file", func(t *testing.T) {
		putter := &mockPutter{}
		p := newS3Publisher(putter, S3Config{Bucket: "frames", Region: "us-east-1"})

		_, err := p.Publish(context.Background(), filepath.Join(dir, "missing.png"))
		assert.ErrorIs(t, err, ErrPublish)
		putter.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything)
	})
}
