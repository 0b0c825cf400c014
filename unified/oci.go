package unified

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/tarball"
)

// OCIBundlePusher handles pushing bundles to OCI registries
type OCIBundlePusher struct {
	bundle *Bundle
}

// NewOCIBundlePusher creates a new OCI bundle pusher
func NewOCIBundlePusher(bundle *Bundle) *OCIBundlePusher {
	return &OCIBundlePusher{bundle: bundle}
}

// Push writes the bundle site to imageRef as two layers: the assets, then
// the bundle document. It returns the pushed manifest digest.
func (p *OCIBundlePusher) Push(ctx context.Context, imageRef string) (string, error) {
	ref, err := name.ParseReference(imageRef)
	if err != nil {
		return "", fmt.Errorf("parsing reference: %w", err)
	}

	files, err := SiteFiles(p.bundle)
	if err != nil {
		return "", err
	}
	assets := make(map[string][]byte, len(files)-1)
	for path, data := range files {
		if path != BundleFile {
			assets[path] = data
		}
	}

	img := empty.Image
	for _, layer := range []struct {
		name  string
		files map[string][]byte
	}{
		{"assets", assets},
		{"bundle", map[string][]byte{BundleFile: files[BundleFile]}},
	} {
		layerBytes, err := createLayerTar(layer.files)
		if err != nil {
			return "", fmt.Errorf("creating %s layer: %w", layer.name, err)
		}
		layerImage, err := tarball.LayerFromReader(bytes.NewReader(layerBytes))
		if err != nil {
			return "", fmt.Errorf("creating %s layer image: %w", layer.name, err)
		}
		img, err = mutate.AppendLayers(img, layerImage)
		if err != nil {
			return "", fmt.Errorf("appending %s layer: %w", layer.name, err)
		}
	}

	configFile, err := img.ConfigFile()
	if err != nil {
		return "", fmt.Errorf("getting config file: %w", err)
	}
	configFile.Config.Labels = map[string]string{
		"org.crosstab.bundle.id":       p.bundle.ID,
		"org.crosstab.bundle.title":    p.bundle.Title,
		"org.crosstab.bundle.format":   p.bundle.Format,
		"org.crosstab.bundle.revision": p.bundle.Revision,
	}
	img, err = mutate.Config(img, configFile.Config)
	if err != nil {
		return "", fmt.Errorf("updating image config: %w", err)
	}

	if err := remote.Write(ref, img,
		remote.WithContext(ctx),
		remote.WithAuthFromKeychain(authn.DefaultKeychain),
	); err != nil {
		return "", fmt.Errorf("pushing image: %w", err)
	}

	digest, err := img.Digest()
	if err != nil {
		return "", fmt.Errorf("computing digest: %w", err)
	}
	return digest.String(), nil
}

// createLayerTar creates a tar archive of files in path order.
func createLayerTar(files map[string][]byte) ([]byte, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	for _, path := range SortedPaths(files) {
		data := files[path]
		if err := tw.WriteHeader(&tar.Header{
			Name: path,
			Size: int64(len(data)),
			Mode: 0644,
		}); err != nil {
			return nil, fmt.Errorf("writing header for %s: %w", path, err)
		}
		if _, err := tw.Write(data); err != nil {
			return nil, fmt.Errorf("writing content for %s: %w", path, err)
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("closing tar writer: %w", err)
	}
	return buf.Bytes(), nil
}

// OCIBundlePuller handles pulling bundles from OCI registries
type OCIBundlePuller struct {
	outputDir string
}

// NewOCIBundlePuller creates a puller. When outputDir is not empty the
// pulled site files are also written there.
func NewOCIBundlePuller(outputDir string) *OCIBundlePuller {
	return &OCIBundlePuller{outputDir: outputDir}
}

// Pull pulls a bundle from an OCI registry
func (p *OCIBundlePuller) Pull(ctx context.Context, imageRef string) (*Bundle, error) {
	ref, err := name.ParseReference(imageRef)
	if err != nil {
		return nil, fmt.Errorf("parsing reference: %w", err)
	}

	img, err := remote.Image(ref,
		remote.WithContext(ctx),
		remote.WithAuthFromKeychain(authn.DefaultKeychain),
	)
	if err != nil {
		return nil, fmt.Errorf("pulling image: %w", err)
	}

	layers, err := img.Layers()
	if err != nil {
		return nil, fmt.Errorf("getting layers: %w", err)
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("image has no layers")
	}

	files := make(map[string][]byte)
	for i, layer := range layers {
		rc, err := layer.Uncompressed()
		if err != nil {
			return nil, fmt.Errorf("getting layer %d: %w", i, err)
		}
		err = readTarLayer(rc, files)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("extracting layer %d: %w", i, err)
		}
	}

	bundle, err := FromSiteFiles(files)
	if err != nil {
		return nil, err
	}

	if p.outputDir != "" {
		for _, path := range SortedPaths(files) {
			target := filepath.Join(p.outputDir, filepath.FromSlash(path))
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return nil, fmt.Errorf("creating directory for %s: %w", path, err)
			}
			if err := os.WriteFile(target, files[path], 0644); err != nil {
				return nil, fmt.Errorf("writing %s: %w", path, err)
			}
		}
	}
	return bundle, nil
}

// readTarLayer collects the regular files of a tar stream. Entries that
// would escape the site root are rejected.
func readTarLayer(r io.Reader, files map[string][]byte) error {
	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar header: %w", err)
		}
		if header.FileInfo().IsDir() {
			continue
		}
		clean := filepath.ToSlash(filepath.Clean(header.Name))
		if strings.HasPrefix(clean, "../") || strings.HasPrefix(clean, "/") {
			return fmt.Errorf("tar entry %q escapes the site", header.Name)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return fmt.Errorf("reading %s: %w", header.Name, err)
		}
		files[clean] = data
	}
}
