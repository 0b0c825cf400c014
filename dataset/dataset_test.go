package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func survey(t *testing.T) *Dataset {
	t.Helper()
	d, err := FromColumns(map[string][]interface{}{
		"region": {"A", "A", "B"},
		"year":   {2020, 2021, 2020},
	}, "region", "year")
	require.NoError(t, err)
	return d
}

func TestFromColumnsInfersSchema(t *testing.T) {
	d := survey(t)
	assert.Equal(t, []Column{{Name: "region", Type: String}, {Name: "year", Type: Number}}, d.Schema.Columns)
	assert.Equal(t, [][]interface{}{{"A", 2020.0}, {"A", 2021.0}, {"B", 2020.0}}, d.Rows)

	_, err := FromColumns(map[string][]interface{}{"a": {1}, "b": {1, 2}}, "a", "b")
	assert.Error(t, err)
}

func TestInferSchema(t *testing.T) {
	schema := InferSchema([]string{"flag", "n", "mixed", "empty"}, [][]interface{}{
		{true, "1.5", "x", nil},
		{false, 2, 3, nil},
		{nil, nil, nil, nil},
	})
	assert.Equal(t, []ColumnType{Bool, Number, String, String}, []ColumnType{
		schema.Columns[0].Type, schema.Columns[1].Type, schema.Columns[2].Type, schema.Columns[3].Type,
	})
}

func TestFromRecordsSortsColumns(t *testing.T) {
	d := FromRecords([]map[string]interface{}{
		{"year": 2020, "region": "A"},
		{"region": "B", "score": 3.5},
	})
	assert.Equal(t, []string{"region", "score", "year"}, d.Schema.Names())
	assert.Equal(t, []interface{}{"B", 3.5, nil}, d.Rows[1])
}

func TestWhereAndDistinct(t *testing.T) {
	d := survey(t)

	filtered, err := d.Where("year", "2020")
	require.NoError(t, err)
	assert.Len(t, filtered.Rows, 2)
	assert.Len(t, d.Rows, 3)

	_, err = d.Where("missing", 1)
	assert.Error(t, err)

	assert.Equal(t, []interface{}{2020.0, 2021.0}, d.Distinct("year"))
	assert.Equal(t, []interface{}{"A", "B"}, d.Distinct("region"))

	empty := d.Filter(func([]interface{}) bool { return false })
	assert.NotNil(t, empty.Rows)
	assert.Empty(t, empty.Rows)
}

func TestInternDeduplicates(t *testing.T) {
	store := NewStore()

	first, err := store.Intern(survey(t))
	require.NoError(t, err)
	second, err := store.Intern(survey(t))
	require.NoError(t, err)

	same, err := FromColumns(map[string][]interface{}{
		"region": {"A", "A", "B"},
		"year":   {"2020", 2021.0, int64(2020)},
	}, "region", "year")
	require.NoError(t, err)
	third, err := store.Intern(same)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, first, third)
	assert.Len(t, store.Assets(), 1)
	assert.Equal(t, 3, store.Refs()[first])
	assert.Regexp(t, `^ds_[0-9a-f]{16}$`, first)

	other, err := store.Intern(FromRecords([]map[string]interface{}{{"region": "C"}}))
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
	assert.Len(t, store.Assets(), 2)

	asset, ok := store.Get(first)
	require.True(t, ok)
	assert.Len(t, asset.Hash, 64)
	assert.Equal(t, first, "ds_"+asset.Hash[:16])
}

func TestStoreAddVerifiesHash(t *testing.T) {
	src := NewStore()
	id, err := src.Intern(survey(t))
	require.NoError(t, err)
	asset, _ := src.Get(id)

	dst := NewStore()
	copied := *asset
	require.NoError(t, dst.Add(&copied))
	_, ok := dst.Get(id)
	assert.True(t, ok)

	tampered := *asset
	tampered.Rows = [][]interface{}{{"Z", 1.0}}
	assert.Error(t, NewStore().Add(&tampered))
}
