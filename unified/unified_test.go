package unified

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/google/go-containerregistry/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosstab/crosstab-go/analysis"
	"github.com/crosstab/crosstab-go/dataset"
	"github.com/crosstab/crosstab-go/inputs"
	"github.com/crosstab/crosstab-go/pipeline"
)

func testBundle(t *testing.T) *Bundle {
	t.Helper()
	store := dataset.NewStore()
	id, err := store.Intern(dataset.FromRecords([]map[string]interface{}{
		{"region": "A", "year": 2020},
		{"region": "B", "year": 2021},
	}))
	require.NoError(t, err)

	return NewBundleBuilder("Sales").
		WithRevision("abc123").
		WithInputs([]inputs.Spec{{ID: "region", Kind: inputs.SelectSingle, Variable: "region", Domain: inputs.Values("A", "B")}}).
		WithGraph(analysis.Descriptor{Order: []string{"region"}}).
		WithAssets(store.Assets()).
		AddPredicate(Predicate{ID: "by_year", Formula: "~ region == \"A\"", Variables: []string{"region"}, Expr: `test(state["region"], "==", "A")`}).
		AddChart(Chart{
			ID:        "by_year",
			Binding:   pipeline.Binding{ChartID: "by_year", Type: pipeline.Bar, Dataset: id, Roles: map[pipeline.Role]string{pipeline.RoleX: "year"}},
			Predicate: "by_year",
		}).
		Build()
}

func TestBuilderStampsIdentity(t *testing.T) {
	b := testBundle(t)
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, FormatVersion, b.Format)
	assert.WithinDuration(t, time.Now(), b.CreatedAt, time.Minute)
	require.Len(t, b.AssetIDs, 1)
	assert.True(t, strings.HasPrefix(b.AssetIDs[0], "ds_"))

	asset, ok := b.Asset(b.AssetIDs[0])
	require.True(t, ok)
	assert.Len(t, asset.Rows, 2)
	_, ok = b.Predicate("by_year")
	assert.True(t, ok)
	_, ok = b.Predicate("missing")
	assert.False(t, ok)
}

func TestSiteRoundTrip(t *testing.T) {
	b := testBundle(t)
	files, err := SiteFiles(b)
	require.NoError(t, err)
	assert.Equal(t, []string{"assets/" + b.AssetIDs[0] + ".json", "bundle.json"}, SortedPaths(files))
	assert.NotContains(t, string(files[BundleFile]), `"rows"`)

	dir := t.TempDir()
	require.NoError(t, WriteSite(dir, b))
	loaded, err := LoadSite(dir)
	require.NoError(t, err)
	assert.Equal(t, b.ID, loaded.ID)
	require.Len(t, loaded.Assets, 1)
	assert.Equal(t, b.Assets[0].Hash, loaded.Assets[0].Hash)
	assert.Equal(t, b.Charts[0].Binding.Dataset, loaded.Charts[0].Binding.Dataset)

	fromMemory, err := FromSiteFiles(files)
	require.NoError(t, err)
	assert.Len(t, fromMemory.Assets, 1)

	delete(files, "assets/"+b.AssetIDs[0]+".json")
	_, err = FromSiteFiles(files)
	assert.ErrorContains(t, err, "no asset")
}

func TestSaveAndLoadInlinedBundle(t *testing.T) {
	b := testBundle(t)
	path := filepath.Join(t.TempDir(), "bundle.json")
	require.NoError(t, SaveBundle(b, path))

	loaded, err := LoadBundle(path)
	require.NoError(t, err)
	require.Len(t, loaded.Assets, 1)
	assert.Equal(t, b.Assets[0].Rows, loaded.Assets[0].Rows)
	assert.Equal(t, b.Inputs, loaded.Inputs)
}

func TestCheckFormat(t *testing.T) {
	tests := []struct {
		version string
		ok      bool
	}{
		{"1.0.0", true},
		{"1.0.7", true},
		{"v1.0", true},
		{"1.1.0", false},
		{"2.0.0", false},
		{"0.9.0", false},
		{"", false},
		{"1.x", false},
	}
	for _, tt := range tests {
		err := CheckFormat(tt.version)
		if tt.ok {
			assert.NoError(t, err, tt.version)
		} else {
			assert.Error(t, err, tt.version)
		}
	}

	_, err := ParseBundle([]byte(`{"format":"2.0.0"}`))
	assert.ErrorContains(t, err, "not supported")
}

func TestRevision(t *testing.T) {
	dir := t.TempDir()
	rev, err := Revision(dir)
	require.NoError(t, err)
	assert.Empty(t, rev)

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	rev, err = Revision(dir)
	require.NoError(t, err)
	assert.Empty(t, rev, "no commits yet")

	path := filepath.Join(dir, "dashboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte("title: x\n"), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("dashboard.yaml")
	require.NoError(t, err)
	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Dev", Email: "dev@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	rev, err = Revision(sub)
	require.NoError(t, err)
	assert.Equal(t, hash.String(), rev)

	require.NoError(t, os.WriteFile(path, []byte("title: y\n"), 0o644))
	rev, err = Revision(dir)
	require.NoError(t, err)
	assert.Equal(t, hash.String()+"-dirty", rev)
}

func TestOCIPushPull(t *testing.T) {
	server := httptest.NewServer(registry.New())
	defer server.Close()

	ref := strings.TrimPrefix(server.URL, "http://") + "/dashboards/sales:v1"
	b := testBundle(t)

	digest, err := NewOCIBundlePusher(b).Push(context.Background(), ref)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(digest, "sha256:"))

	out := t.TempDir()
	pulled, err := NewOCIBundlePuller(out).Pull(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, b.ID, pulled.ID)
	require.Len(t, pulled.Assets, 1)
	assert.Equal(t, b.Assets[0].Hash, pulled.Assets[0].Hash)

	fromDisk, err := LoadSite(out)
	require.NoError(t, err)
	assert.Equal(t, b.ID, fromDisk.ID)

	resolved, err := Resolve(context.Background(), ref, ResolveOptions{CacheDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, b.ID, resolved.ID)
}

func TestResolveVerifiesChecksum(t *testing.T) {
	b := testBundle(t)
	dir := t.TempDir()
	require.NoError(t, WriteSite(dir, b))

	data, err := os.ReadFile(filepath.Join(dir, BundleFile))
	require.NoError(t, err)

	resolved, err := Resolve(context.Background(), dir, ResolveOptions{Checksum: Checksum(data)})
	require.NoError(t, err)
	assert.Equal(t, b.ID, resolved.ID)

	_, err = Resolve(context.Background(), dir, ResolveOptions{Checksum: "sha256:00"})
	assert.ErrorContains(t, err, "checksum mismatch")
}

func TestReadTarLayerRejectsEscapes(t *testing.T) {
	data, err := createLayerTar(map[string][]byte{"../evil": []byte("x")})
	require.NoError(t, err)
	err = readTarLayer(strings.NewReader(string(data)), map[string][]byte{})
	assert.ErrorContains(t, err, "escapes")
}
