package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/crosstab/crosstab-go/dataset"
	"github.com/crosstab/crosstab-go/source"
)

// Load reads a declaration file, applies the chart defaults and loads
// every declared dataset source relative to the file's directory.
func Load(ctx context.Context, path string) (*Dashboard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dashboard: %w", err)
	}
	d, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if err := d.LoadData(ctx, filepath.Dir(path)); err != nil {
		return nil, err
	}
	return d, nil
}

// Parse decodes a declaration. ext selects JSON for ".json" and YAML
// otherwise.
func Parse(data []byte, ext string) (*Dashboard, error) {
	d := &Dashboard{}
	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(data, d); err != nil {
			return nil, fmt.Errorf("parsing dashboard json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, d); err != nil {
			return nil, fmt.Errorf("parsing dashboard yaml: %w", err)
		}
	}
	for i, chart := range d.Charts {
		d.Charts[i] = d.Defaults.Apply(chart)
	}
	return d, nil
}

// LoadData loads the declared sources that have no dataset in Data yet.
func (d *Dashboard) LoadData(ctx context.Context, baseDir string) error {
	if d.Data == nil {
		d.Data = make(map[string]*dataset.Dataset, len(d.Sources))
	}
	names := make([]string, 0, len(d.Sources))
	for name := range d.Sources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, ok := d.Data[name]; ok {
			continue
		}
		loaded, err := source.Load(ctx, d.Sources[name], baseDir)
		if err != nil {
			return fmt.Errorf("loading dataset %s: %w", name, err)
		}
		d.Data[name] = loaded
	}
	return nil
}

// DatasetNames returns every dataset name, sourced or supplied, sorted.
func (d *Dashboard) DatasetNames() []string {
	seen := make(map[string]struct{}, len(d.Data)+len(d.Sources))
	for name := range d.Data {
		seen[name] = struct{}{}
	}
	for name := range d.Sources {
		seen[name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
