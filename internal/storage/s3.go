package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Compile-time check that S3Publisher implements Publisher.
var _ Publisher = (*S3Publisher)(nil)

// S3Config holds the configuration for S3 publishing.
type S3Config struct {
	Bucket          string
	Region          string
	Prefix          string // Optional: key prefix for uploaded samples
	Endpoint        string // Optional: for custom S3-compatible endpoints
	AccessKeyID     string // Optional: AWS access key ID
	SecretAccessKey string // Optional: AWS secret access key
}

// objectPutter is the subset of the S3 client used for uploads.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher mirrors every sample into an S3 bucket. The local file stays
// in the target directory.
type S3Publisher struct {
	client   objectPutter
	bucket   string
	region   string
	prefix   string
	endpoint string
}

// NewS3Publisher creates a new S3Publisher from cfg.
func NewS3Publisher(cfg S3Config) (*S3Publisher, error) {
	var configOpts []func(*config.LoadOptions) error
	configOpts = append(configOpts, config.WithRegion(cfg.Region))

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return newS3Publisher(s3.NewFromConfig(awsCfg, clientOpts...), cfg), nil
}

func newS3Publisher(client objectPutter, cfg S3Config) *S3Publisher {
	return &S3Publisher{
		client:   client,
		bucket:   cfg.Bucket,
		region:   cfg.Region,
		prefix:   strings.Trim(cfg.Prefix, "/"),
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
	}
}

// Publish uploads the file at p and returns the object URL.
func (s *S3Publisher) Publish(ctx context.Context, p string) (string, error) {
	f, err := os.Open(p) // #nosec G304 - p is a sample the executor just wrote
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %w", ErrPublish, p, err)
	}
	defer func() { _ = f.Close() }()

	key := s.Key(p)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("image/png"),
	})
	if err != nil {
		return "", fmt.Errorf("%w: upload to S3: %w", ErrPublish, err)
	}

	return s.URL(key), nil
}

// Key returns the object key a local sample is uploaded under.
func (s *S3Publisher) Key(p string) string {
	name := filepath.Base(p)
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// URL returns the public URL of key.
func (s *S3Publisher) URL(key string) string {
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
