package source

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosstab/crosstab-go/dataset"
)

func TestDecodeCSV(t *testing.T) {
	payload := []byte("region,year,sales,online\nA,2020,10,true\nB,2021,,false\n")

	d, err := Decode(payload, Spec{Format: CSV})
	require.NoError(t, err)

	assert.Equal(t, []string{"region", "year", "sales", "online"}, d.Schema.Names())
	assert.Equal(t, []dataset.Column{
		{Name: "region", Type: dataset.String},
		{Name: "year", Type: dataset.Number},
		{Name: "sales", Type: dataset.Number},
		{Name: "online", Type: dataset.Bool},
	}, d.Schema.Columns)
	assert.Equal(t, [][]interface{}{
		{"A", 2020.0, 10.0, true},
		{"B", 2021.0, nil, false},
	}, d.Rows)
}

func TestDecodeJSONRecordsPath(t *testing.T) {
	payload := []byte(`{"meta":{"n":2},"data":{"rows":[
		{"region":"A","year":2020,"tags":["x"]},
		{"region":"B","year":2021,"tags":null}
	]}}`)

	d, err := Decode(payload, Spec{Records: "data.rows", Columns: []string{"region", "year", "tags"}})
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{
		{"A", 2020.0, `["x"]`},
		{"B", 2021.0, nil},
	}, d.Rows)

	_, err = Decode(payload, Spec{Records: "data.missing"})
	assert.ErrorContains(t, err, "not found")

	_, err = Decode([]byte(`{"broken"`), Spec{Format: JSON})
	assert.Error(t, err)
}

func TestDecodeNDJSON(t *testing.T) {
	payload := []byte("{\"a\":1,\"b\":\"x\"}\n\n{\"a\":2.5,\"b\":\"y\"}\n")

	d, err := Decode(payload, Spec{Path: "events.ndjson"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, d.Schema.Names())
	assert.Equal(t, [][]interface{}{{1.0, "x"}, {2.5, "y"}}, d.Rows)
}

func TestFormatInference(t *testing.T) {
	tests := []struct {
		spec Spec
		want Format
	}{
		{Spec{Path: "a.csv"}, CSV},
		{Spec{Path: "a.JSONL"}, NDJSON},
		{Spec{Path: "s3://b/a.parquet"}, Parquet},
		{Spec{Path: "a.json"}, JSON},
		{Spec{Path: "a.txt", Format: "CSV"}, CSV},
		{Spec{Driver: "sqlite"}, SQL},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.spec.format(), tt.spec.Path)
	}
}

func TestLoadResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sales.csv"), []byte("region,sales\nA,1\n"), 0o644))

	d, err := Load(context.Background(), Spec{Path: "sales.csv"}, dir)
	require.NoError(t, err)
	assert.Len(t, d.Rows, 1)

	_, err = Load(context.Background(), Spec{Path: "missing.csv"}, dir)
	assert.Error(t, err)

	_, err = Load(context.Background(), Spec{Format: CSV}, dir)
	assert.ErrorContains(t, err, "path is required")
}

func TestQuerySQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "survey.db")
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE answers (region TEXT, year INTEGER, score REAL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO answers VALUES ('A', 2020, 1.5), ('B', 2021, 3)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	d, err := Load(context.Background(), Spec{
		Driver: "sqlite",
		DSN:    dsn,
		Query:  "SELECT region, year, score FROM answers ORDER BY region",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"region", "year", "score"}, d.Schema.Names())
	assert.Equal(t, [][]interface{}{{"A", 2020.0, 1.5}, {"B", 2021.0, 3.0}}, d.Rows)

	d, err = Query(context.Background(), Spec{
		Driver:  "sqlite",
		DSN:     dsn,
		Query:   "SELECT region, year FROM answers WHERE year > 2020",
		Columns: []string{"year", "region"},
	})
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{{2021.0, "B"}}, d.Rows)

	_, err = Query(context.Background(), Spec{Driver: "oracle", DSN: "x", Query: "SELECT 1"})
	assert.ErrorContains(t, err, "unsupported driver")
}

func TestParseS3URL(t *testing.T) {
	bucket, key, err := ParseS3URL("s3://reports/2024/sales.csv")
	require.NoError(t, err)
	assert.Equal(t, "reports", bucket)
	assert.Equal(t, "2024/sales.csv", key)

	_, _, err = ParseS3URL("https://example.com/x")
	assert.Error(t, err)
	_, _, err = ParseS3URL("s3:///x")
	assert.Error(t, err)
}

func TestLocalPath(t *testing.T) {
	p, ok := Spec{Path: "data/sales.csv"}.LocalPath("/srv/dash")
	assert.True(t, ok)
	assert.Equal(t, filepath.Join("/srv/dash", "data/sales.csv"), p)

	_, ok = Spec{Path: "s3://bucket/sales.csv"}.LocalPath("/srv/dash")
	assert.False(t, ok)
	_, ok = Spec{Driver: "sqlite", DSN: "x.db", Query: "select 1"}.LocalPath("/srv/dash")
	assert.False(t, ok)
}
