package source

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const defaultMaxObjectBytes = 64 * 1024 * 1024

// S3Config configures access to an S3 compatible object store.
type S3Config struct {
	Region         string `json:"region,omitempty" yaml:"region,omitempty"`
	Endpoint       string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	ForcePathStyle bool   `json:"force_path_style,omitempty" yaml:"force_path_style,omitempty"`
	AccessKey      string `json:"access_key,omitempty" yaml:"access_key,omitempty"`
	SecretKey      string `json:"secret_key,omitempty" yaml:"secret_key,omitempty"`
	SessionToken   string `json:"session_token,omitempty" yaml:"session_token,omitempty"`
	MaxObjectBytes int64  `json:"max_object_bytes,omitempty" yaml:"max_object_bytes,omitempty"`
}

// NewS3Client builds a client from cfg, falling back to the default AWS
// credential chain when no static keys are given.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, cfg.SessionToken),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

func isS3(path string) bool {
	return strings.HasPrefix(path, "s3://")
}

// ParseS3URL splits s3://bucket/key into its parts.
func ParseS3URL(url string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(url, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 url: %q", url)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("s3 url %q has no bucket", url)
	}
	return bucket, key, nil
}

func fetchS3(ctx context.Context, url string, cfg S3Config) ([]byte, error) {
	bucket, key, err := ParseS3URL(url)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, fmt.Errorf("s3 url %q has no key", url)
	}
	client, err := NewS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}

	resp, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("getting %s: %w", url, err)
	}
	defer resp.Body.Close()

	limit := cfg.MaxObjectBytes
	if limit <= 0 {
		limit = defaultMaxObjectBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("object %s exceeds %d bytes", url, limit)
	}
	return data, nil
}
