package unified

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/crosstab/crosstab-go/analysis"
	"github.com/crosstab/crosstab-go/dataset"
	"github.com/crosstab/crosstab-go/inputs"
	"github.com/crosstab/crosstab-go/pipeline"
)

// FormatVersion is the bundle layout version written by this package.
const FormatVersion = "1.0.0"

// Bundle is a compiled dashboard: everything the runtime needs to refilter
// and redraw without the declaration or the original data sources.
type Bundle struct {
	ID          string              `json:"id"`
	Format      string              `json:"format"`
	Title       string              `json:"title,omitempty"`
	Revision    string              `json:"revision,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	Inputs      []inputs.Spec       `json:"inputs"`
	Graph       analysis.Descriptor `json:"graph"`
	Predicates  []Predicate         `json:"predicates,omitempty"`
	Charts      []Chart             `json:"charts"`
	Elements    []Element           `json:"elements,omitempty"`
	TitleMap    map[string]string   `json:"title_map,omitempty"`
	AssetIDs    []string            `json:"asset_ids"`
	Assets      []*dataset.Asset    `json:"assets,omitempty"`
	Diagnostics []Diagnostic        `json:"diagnostics,omitempty"`
}

// Predicate is a compiled visibility condition. Expr is the same condition
// as an expr-lang program over the input state.
type Predicate struct {
	ID        string   `json:"id"`
	Formula   string   `json:"formula"`
	Variables []string `json:"variables"`
	Expr      string   `json:"expr"`
}

// Chart is a compiled chart. Binding.Dataset is the asset id.
type Chart struct {
	ID        string           `json:"id"`
	Title     string           `json:"title,omitempty"`
	Binding   pipeline.Binding `json:"binding"`
	Predicate string           `json:"predicate,omitempty"`

	// Inputs are the ids whose changes redraw the chart.
	Inputs []string `json:"inputs,omitempty"`
}

// Element is a conditionally shown page element.
type Element struct {
	ID        string `json:"id"`
	Kind      string `json:"kind,omitempty"`
	Content   string `json:"content,omitempty"`
	Predicate string `json:"predicate,omitempty"`
}

// Diagnostic is a non-fatal finding recorded at compile time.
type Diagnostic struct {
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Subject  string `json:"subject,omitempty"`
	Message  string `json:"message"`
}

// Asset returns the asset with id.
func (b *Bundle) Asset(id string) (*dataset.Asset, bool) {
	for _, asset := range b.Assets {
		if asset.ID == id {
			return asset, true
		}
	}
	return nil, false
}

// Predicate returns the predicate with id.
func (b *Bundle) Predicate(id string) (Predicate, bool) {
	for _, p := range b.Predicates {
		if p.ID == id {
			return p, true
		}
	}
	return Predicate{}, false
}

// BundleBuilder helps construct a bundle
type BundleBuilder struct {
	bundle *Bundle
}

// NewBundleBuilder creates a new bundle builder
func NewBundleBuilder(title string) *BundleBuilder {
	return &BundleBuilder{
		bundle: &Bundle{
			ID:        uuid.NewString(),
			Format:    FormatVersion,
			Title:     title,
			CreatedAt: time.Now().UTC(),
		},
	}
}

// WithRevision stamps the bundle with a source revision.
func (bb *BundleBuilder) WithRevision(revision string) *BundleBuilder {
	bb.bundle.Revision = revision
	return bb
}

// WithInputs sets the input specs in declaration order.
func (bb *BundleBuilder) WithInputs(specs []inputs.Spec) *BundleBuilder {
	bb.bundle.Inputs = append([]inputs.Spec(nil), specs...)
	return bb
}

// WithGraph sets the linked-input update plan.
func (bb *BundleBuilder) WithGraph(graph analysis.Descriptor) *BundleBuilder {
	bb.bundle.Graph = graph
	return bb
}

// WithTitleMap sets the placeholder title map.
func (bb *BundleBuilder) WithTitleMap(titles map[string]string) *BundleBuilder {
	bb.bundle.TitleMap = titles
	return bb
}

// WithAssets sets the interned datasets.
func (bb *BundleBuilder) WithAssets(assets []*dataset.Asset) *BundleBuilder {
	bb.bundle.Assets = assets
	return bb
}

// AddPredicate appends a visibility predicate.
func (bb *BundleBuilder) AddPredicate(p Predicate) *BundleBuilder {
	bb.bundle.Predicates = append(bb.bundle.Predicates, p)
	return bb
}

// AddChart appends a chart.
func (bb *BundleBuilder) AddChart(c Chart) *BundleBuilder {
	bb.bundle.Charts = append(bb.bundle.Charts, c)
	return bb
}

// AddElement appends a page element.
func (bb *BundleBuilder) AddElement(e Element) *BundleBuilder {
	bb.bundle.Elements = append(bb.bundle.Elements, e)
	return bb
}

// AddDiagnostics appends compile-time findings.
func (bb *BundleBuilder) AddDiagnostics(diags ...Diagnostic) *BundleBuilder {
	bb.bundle.Diagnostics = append(bb.bundle.Diagnostics, diags...)
	return bb
}

// Build finalizes the asset index and returns the bundle.
func (bb *BundleBuilder) Build() *Bundle {
	ids := make([]string, 0, len(bb.bundle.Assets))
	for _, asset := range bb.bundle.Assets {
		ids = append(ids, asset.ID)
	}
	sort.Strings(ids)
	bb.bundle.AssetIDs = ids
	return bb.bundle
}

// SaveBundle saves a bundle with its assets inlined to a single file.
func SaveBundle(bundle *Bundle, filePath string) error {
	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling bundle: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("writing bundle: %w", err)
	}

	return nil
}

// LoadBundle loads a bundle from disk. Assets that are not inlined are read
// from the assets directory next to the file.
func LoadBundle(filePath string) (*Bundle, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading bundle: %w", err)
	}

	bundle, err := ParseBundle(data)
	if err != nil {
		return nil, err
	}

	if len(bundle.Assets) == 0 && len(bundle.AssetIDs) > 0 {
		dir := filepath.Join(filepath.Dir(filePath), AssetDir)
		for _, id := range bundle.AssetIDs {
			raw, err := os.ReadFile(filepath.Join(dir, id+".json"))
			if err != nil {
				return nil, fmt.Errorf("reading asset %s: %w", id, err)
			}
			asset, err := parseAsset(id, raw)
			if err != nil {
				return nil, err
			}
			bundle.Assets = append(bundle.Assets, asset)
		}
	}
	return bundle, nil
}

// ParseBundle decodes a bundle and checks its format version.
func ParseBundle(data []byte) (*Bundle, error) {
	var bundle Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("unmarshaling bundle: %w", err)
	}
	if err := CheckFormat(bundle.Format); err != nil {
		return nil, err
	}
	return &bundle, nil
}

func parseAsset(id string, data []byte) (*dataset.Asset, error) {
	var asset dataset.Asset
	if err := json.Unmarshal(data, &asset); err != nil {
		return nil, fmt.Errorf("unmarshaling asset %s: %w", id, err)
	}
	if asset.ID != id {
		return nil, fmt.Errorf("asset file %s holds asset %s", id, asset.ID)
	}
	return &asset, nil
}
