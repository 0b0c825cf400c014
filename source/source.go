// Package source loads datasets from files, databases and object storage.
package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/crosstab/crosstab-go/dataset"
)

// Format names an encoding of dataset rows.
type Format string

const (
	CSV     Format = "csv"
	JSON    Format = "json"
	NDJSON  Format = "ndjson"
	Parquet Format = "parquet"
	SQL     Format = "sql"
)

// Spec describes where a dataset comes from.
type Spec struct {
	// Format of the payload. Inferred from the path extension when empty.
	Format Format `json:"format,omitempty" yaml:"format,omitempty"`

	// Path is a file path, relative to the declaration, or an s3:// URL.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Records is a gjson path selecting the record array of a JSON payload.
	Records string `json:"records,omitempty" yaml:"records,omitempty"`

	// Columns fixes the column order. Record sources default to sorted keys.
	Columns []string `json:"columns,omitempty" yaml:"columns,omitempty"`

	// Driver is sqlite, postgres or mysql for SQL sources.
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty"`
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	Query  string `json:"query,omitempty" yaml:"query,omitempty"`

	S3 S3Config `json:"s3,omitempty" yaml:"s3,omitempty"`
}

func (s Spec) format() Format {
	if s.Format != "" {
		return Format(strings.ToLower(string(s.Format)))
	}
	if s.Driver != "" {
		return SQL
	}
	switch strings.ToLower(filepath.Ext(s.Path)) {
	case ".csv":
		return CSV
	case ".ndjson", ".jsonl":
		return NDJSON
	case ".parquet":
		return Parquet
	}
	return JSON
}

// LocalPath returns the file a local file source reads. SQL and S3
// sources have none.
func (s Spec) LocalPath(baseDir string) (string, bool) {
	if s.format() == SQL || s.Path == "" || isS3(s.Path) {
		return "", false
	}
	if !filepath.IsAbs(s.Path) && baseDir != "" {
		return filepath.Join(baseDir, s.Path), true
	}
	return s.Path, true
}

// Load reads the dataset described by spec. Relative paths resolve
// against baseDir.
func Load(ctx context.Context, spec Spec, baseDir string) (*dataset.Dataset, error) {
	if spec.format() == SQL {
		return Query(ctx, spec)
	}
	if spec.Path == "" {
		return nil, fmt.Errorf("source: path is required for %s data", spec.format())
	}

	var payload []byte
	if isS3(spec.Path) {
		data, err := fetchS3(ctx, spec.Path, spec.S3)
		if err != nil {
			return nil, err
		}
		payload = data
	} else {
		path, _ := spec.LocalPath(baseDir)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading dataset: %w", err)
		}
		payload = data
	}

	d, err := Decode(payload, spec)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", spec.Path, err)
	}
	return d, nil
}

// Decode parses payload in the format named by spec.
func Decode(payload []byte, spec Spec) (*dataset.Dataset, error) {
	switch spec.format() {
	case CSV:
		return decodeCSV(payload, spec.Columns)
	case NDJSON:
		records, err := decodeNDJSON(payload)
		if err != nil {
			return nil, err
		}
		return dataset.FromRecords(records, spec.Columns...), nil
	case Parquet:
		records, err := decodeParquet(payload)
		if err != nil {
			return nil, err
		}
		return dataset.FromRecords(records, spec.Columns...), nil
	case JSON:
		records, err := decodeJSON(payload, spec.Records)
		if err != nil {
			return nil, err
		}
		return dataset.FromRecords(records, spec.Columns...), nil
	}
	return nil, fmt.Errorf("unsupported format %q", spec.Format)
}

// decodeCSV reads a header row followed by records. Empty cells are
// missing values; "true" and "false" cells are booleans.
func decodeCSV(payload []byte, order []string) (*dataset.Dataset, error) {
	reader := csv.NewReader(bytes.NewReader(payload))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return dataset.New(order, nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}

	var records []map[string]interface{}
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		record := make(map[string]interface{}, len(header))
		for i, name := range header {
			if i < len(fields) {
				record[name] = csvValue(fields[i])
			}
		}
		records = append(records, record)
	}

	if len(order) == 0 {
		order = header
	}
	return dataset.FromRecords(records, order...), nil
}

func csvValue(field string) interface{} {
	switch strings.TrimSpace(field) {
	case "":
		return nil
	case "true", "TRUE", "True":
		return true
	case "false", "FALSE", "False":
		return false
	}
	return field
}

func normalizeRecord(value interface{}) map[string]interface{} {
	if record, ok := value.(map[string]interface{}); ok {
		return record
	}
	return map[string]interface{}{"value": value}
}

func decodeNDJSON(payload []byte) ([]map[string]interface{}, error) {
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()
	var records []map[string]interface{}
	for {
		var value interface{}
		err := decoder.Decode(&value)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", len(records)+1, err)
		}
		records = append(records, normalizeRecord(value))
	}
	return records, nil
}
