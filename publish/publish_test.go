package publish

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosstab/crosstab-go/compiler"
	"github.com/crosstab/crosstab-go/internal/testutils"
	"github.com/crosstab/crosstab-go/source"
	"github.com/crosstab/crosstab-go/unified"
)

func bundle(t *testing.T) *unified.Bundle {
	t.Helper()
	b, err := compiler.New().Compile(testutils.RegionYear())
	require.NoError(t, err)
	return b
}

func TestPublishDir(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b := bundle(t)

	result, err := Publish(ctx, b, &DirTarget{Dir: dir}, nil)
	require.NoError(t, err)
	assetPath := unified.AssetDir + "/" + b.AssetIDs[0] + ".json"
	assert.Equal(t, []string{assetPath, unified.BundleFile}, result.Written)

	loaded, err := unified.LoadSite(dir)
	require.NoError(t, err)
	assert.Equal(t, b.ID, loaded.ID)
	require.Len(t, loaded.Assets, 1)

	result, err = Publish(ctx, b, &DirTarget{Dir: dir}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{assetPath}, result.Skipped)
	assert.Equal(t, []string{unified.BundleFile}, result.Written)
}

type fakeS3 struct {
	objects map[string][]byte
	cache   map[string]string
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[*in.Bucket+"/"+*in.Key]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := *in.Bucket + "/" + *in.Key
	f.objects[key] = data
	f.cache[key] = *in.CacheControl
	return &s3.PutObjectOutput{}, nil
}

func TestPublishS3(t *testing.T) {
	ctx := context.Background()
	client := &fakeS3{objects: make(map[string][]byte), cache: make(map[string]string)}
	target := &S3Target{Client: client, Bucket: "sites", Prefix: "/dash/"}
	b := bundle(t)

	_, err := Publish(ctx, b, target, nil)
	require.NoError(t, err)

	assetKey := "sites/dash/assets/" + b.AssetIDs[0] + ".json"
	require.Contains(t, client.objects, "sites/dash/bundle.json")
	require.Contains(t, client.objects, assetKey)
	assert.Equal(t, cacheImmutable, client.cache[assetKey])
	assert.Equal(t, cacheRevalidate, client.cache["sites/dash/bundle.json"])
	assert.Equal(t, "s3://sites/dash", target.String())

	files := map[string][]byte{}
	for key, data := range client.objects {
		files[strings.TrimPrefix(key, "sites/dash/")] = data
	}
	loaded, err := unified.FromSiteFiles(files)
	require.NoError(t, err)
	assert.Equal(t, b.AssetIDs, loaded.AssetIDs)

	result, err := Publish(ctx, b, target, nil)
	require.NoError(t, err)
	assert.Len(t, result.Skipped, 1)
}

func TestNewTarget(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "site")
	target, err := NewTarget(ctx, dir, source.S3Config{})
	require.NoError(t, err)
	assert.Equal(t, &DirTarget{Dir: dir}, target)

	target, err = NewTarget(ctx, "s3://bucket/prefix", source.S3Config{Region: "eu-west-1", AccessKey: "a", SecretKey: "b"})
	require.NoError(t, err)
	s3Target, ok := target.(*S3Target)
	require.True(t, ok)
	assert.Equal(t, "bucket", s3Target.Bucket)
	assert.Equal(t, "prefix", s3Target.Prefix)

	_, err = NewTarget(ctx, "s3:///nobucket", source.S3Config{})
	assert.Error(t, err)
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "targets are created lazily")
}
