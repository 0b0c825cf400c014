package unified

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
)

const (
	// BundleFile is the bundle document of a site.
	BundleFile = "bundle.json"
	// AssetDir holds one <id>.json file per asset.
	AssetDir = "assets"
)

// SiteFiles lays a bundle out as static files: the bundle document without
// inlined assets, plus one file per asset. Keys are slash separated paths.
func SiteFiles(bundle *Bundle) (map[string][]byte, error) {
	files := make(map[string][]byte, len(bundle.Assets)+1)

	stripped := *bundle
	stripped.Assets = nil
	stripped.AssetIDs = make([]string, 0, len(bundle.Assets))
	for _, asset := range bundle.Assets {
		data, err := json.Marshal(asset)
		if err != nil {
			return nil, fmt.Errorf("marshaling asset %s: %w", asset.ID, err)
		}
		files[path.Join(AssetDir, asset.ID+".json")] = data
		stripped.AssetIDs = append(stripped.AssetIDs, asset.ID)
	}
	sort.Strings(stripped.AssetIDs)

	data, err := json.MarshalIndent(&stripped, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling bundle: %w", err)
	}
	files[BundleFile] = data
	return files, nil
}

// SortedPaths returns the file paths of a site in a stable order.
func SortedPaths(files map[string][]byte) []string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// WriteSite writes the site files of bundle under dir.
func WriteSite(dir string, bundle *Bundle) error {
	files, err := SiteFiles(bundle)
	if err != nil {
		return err
	}
	for _, p := range SortedPaths(files) {
		target := filepath.Join(dir, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", p, err)
		}
		if err := os.WriteFile(target, files[p], 0644); err != nil {
			return fmt.Errorf("writing %s: %w", p, err)
		}
	}
	return nil
}

// LoadSite loads a bundle written by WriteSite.
func LoadSite(dir string) (*Bundle, error) {
	return LoadBundle(filepath.Join(dir, BundleFile))
}

// FromSiteFiles rebuilds a bundle from in-memory site files.
func FromSiteFiles(files map[string][]byte) (*Bundle, error) {
	data, ok := files[BundleFile]
	if !ok {
		return nil, fmt.Errorf("site has no %s", BundleFile)
	}
	bundle, err := ParseBundle(data)
	if err != nil {
		return nil, err
	}
	if len(bundle.Assets) > 0 {
		return bundle, nil
	}
	for _, id := range bundle.AssetIDs {
		raw, ok := files[path.Join(AssetDir, id+".json")]
		if !ok {
			return nil, fmt.Errorf("site has no asset %s", id)
		}
		asset, err := parseAsset(id, raw)
		if err != nil {
			return nil, err
		}
		bundle.Assets = append(bundle.Assets, asset)
	}
	return bundle, nil
}
