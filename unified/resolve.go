package unified

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ResolveOptions configures Resolve.
type ResolveOptions struct {
	// Checksum, when set, must match the bundle document as "sha256:<hex>".
	Checksum string
	// CacheDir receives the files of bundles pulled from a registry.
	CacheDir string
}

// Resolve opens a bundle from a site directory, a bundle file, or an OCI
// reference, in that order of preference.
func Resolve(ctx context.Context, location string, opts ResolveOptions) (*Bundle, error) {
	if info, err := os.Stat(location); err == nil {
		path := location
		if info.IsDir() {
			path = filepath.Join(location, BundleFile)
		}
		if err := verifyFileChecksum(path, opts.Checksum); err != nil {
			return nil, err
		}
		return LoadBundle(path)
	}

	var outputDir string
	if opts.CacheDir != "" {
		outputDir = filepath.Join(opts.CacheDir, sanitizeRefName(location))
	}
	bundle, err := NewOCIBundlePuller(outputDir).Pull(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", location, err)
	}
	if opts.Checksum != "" {
		files, err := SiteFiles(bundle)
		if err != nil {
			return nil, err
		}
		if !checksumsMatch(opts.Checksum, checksumBytes(files[BundleFile])) {
			return nil, fmt.Errorf("checksum mismatch for %s", location)
		}
	}
	return bundle, nil
}

func verifyFileChecksum(path, expected string) error {
	if expected == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading bundle: %w", err)
	}
	if actual := checksumBytes(data); !checksumsMatch(expected, actual) {
		return fmt.Errorf("checksum mismatch for %s: got %s", path, actual)
	}
	return nil
}

// Checksum returns the checksum Resolve compares against.
func Checksum(data []byte) string {
	return checksumBytes(data)
}

func sanitizeRefName(value string) string {
	replacer := strings.NewReplacer("/", "_", ":", "_", "@", "_")
	return replacer.Replace(value)
}

func checksumBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

func normalizeChecksum(value string) string {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	trimmed = strings.TrimPrefix(trimmed, "sha256:")
	return "sha256:" + trimmed
}

func checksumsMatch(expected, actual string) bool {
	return normalizeChecksum(expected) == normalizeChecksum(actual)
}
