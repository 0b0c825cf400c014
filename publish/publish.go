// Package publish uploads a compiled site to a directory or an S3 bucket.
package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"

	"github.com/crosstab/crosstab-go/internal/logging"
	"github.com/crosstab/crosstab-go/source"
	"github.com/crosstab/crosstab-go/unified"
)

const (
	cacheImmutable  = "public, max-age=31536000, immutable"
	cacheRevalidate = "no-cache"
)

// Target receives site files keyed by slash separated path.
type Target interface {
	// Exists reports whether path is already published. Assets are
	// content addressed, so an existing asset never needs rewriting.
	Exists(ctx context.Context, path string) (bool, error)
	Put(ctx context.Context, path string, data []byte) error
	String() string
}

// Result lists what a publish wrote and skipped.
type Result struct {
	Written []string
	Skipped []string
}

// Publish lays out bundle as site files and writes them to target. The
// bundle file is written last so readers never see it before its assets.
func Publish(ctx context.Context, bundle *unified.Bundle, target Target, log *logrus.Entry) (*Result, error) {
	if log == nil {
		log = logging.Discard()
	}
	files, err := unified.SiteFiles(bundle)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, p := range unified.SortedPaths(files) {
		if p == unified.BundleFile {
			continue
		}
		exists, err := target.Exists(ctx, p)
		if err != nil {
			return result, fmt.Errorf("checking %s: %w", p, err)
		}
		if exists {
			result.Skipped = append(result.Skipped, p)
			continue
		}
		if err := target.Put(ctx, p, files[p]); err != nil {
			return result, fmt.Errorf("publishing %s: %w", p, err)
		}
		result.Written = append(result.Written, p)
		log.WithField("path", p).Debug("published asset")
	}

	if err := target.Put(ctx, unified.BundleFile, files[unified.BundleFile]); err != nil {
		return result, fmt.Errorf("publishing %s: %w", unified.BundleFile, err)
	}
	result.Written = append(result.Written, unified.BundleFile)

	log.WithFields(logrus.Fields{
		"target":  target.String(),
		"written": len(result.Written),
		"skipped": len(result.Skipped),
	}).Info("published site")
	return result, nil
}

// NewTarget returns an S3 target for s3://bucket/prefix locations and a
// directory target otherwise.
func NewTarget(ctx context.Context, location string, cfg source.S3Config) (Target, error) {
	if !strings.HasPrefix(location, "s3://") {
		return &DirTarget{Dir: location}, nil
	}
	bucket, prefix, err := source.ParseS3URL(location)
	if err != nil {
		return nil, err
	}
	client, err := source.NewS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &S3Target{Client: client, Bucket: bucket, Prefix: prefix}, nil
}

// DirTarget writes files below a local directory.
type DirTarget struct {
	Dir string
}

func (t *DirTarget) file(p string) string {
	return filepath.Join(t.Dir, filepath.FromSlash(p))
}

func (t *DirTarget) Exists(_ context.Context, p string) (bool, error) {
	if !strings.HasPrefix(p, unified.AssetDir+"/") {
		return false, nil
	}
	_, err := os.Stat(t.file(p))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (t *DirTarget) Put(_ context.Context, p string, data []byte) error {
	target := t.file(p)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	return os.WriteFile(target, data, 0644)
}

func (t *DirTarget) String() string {
	return t.Dir
}

// S3API is the part of the S3 client a target uses.
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Target writes files as objects below Prefix in Bucket.
type S3Target struct {
	Client S3API
	Bucket string
	Prefix string
}

func (t *S3Target) key(p string) string {
	prefix := strings.Trim(t.Prefix, "/")
	if prefix == "" {
		return p
	}
	return path.Join(prefix, p)
}

func (t *S3Target) Exists(ctx context.Context, p string) (bool, error) {
	if !strings.HasPrefix(p, unified.AssetDir+"/") {
		return false, nil
	}
	_, err := t.Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(t.Bucket),
		Key:    aws.String(t.key(p)),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, err
}

func (t *S3Target) Put(ctx context.Context, p string, data []byte) error {
	cache := cacheRevalidate
	if strings.HasPrefix(p, unified.AssetDir+"/") {
		cache = cacheImmutable
	}
	_, err := t.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(t.Bucket),
		Key:          aws.String(t.key(p)),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String("application/json"),
		CacheControl: aws.String(cache),
	})
	return err
}

func (t *S3Target) String() string {
	return "s3://" + t.Bucket + "/" + strings.Trim(t.Prefix, "/")
}
