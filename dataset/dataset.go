// Package dataset holds tabular chart data and the content-addressed
// store that deduplicates it.
package dataset

import (
	"fmt"
	"sort"

	"github.com/crosstab/crosstab-go/common"
)

// ColumnType is the type of a dataset column.
type ColumnType string

const (
	String ColumnType = "string"
	Number ColumnType = "number"
	Bool   ColumnType = "bool"
)

// Column describes one dataset column.
type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// Schema is the ordered list of columns.
type Schema struct {
	Columns []Column `json:"columns"`
}

// Index returns the position of the named column, or -1.
func (s Schema) Index(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Lookup returns the named column.
func (s Schema) Lookup(name string) (Column, bool) {
	if i := s.Index(name); i >= 0 {
		return s.Columns[i], true
	}
	return Column{}, false
}

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Dataset is a table of rows whose values follow the schema.
type Dataset struct {
	Schema Schema          `json:"schema"`
	Rows   [][]interface{} `json:"rows"`
}

// FromColumns builds a dataset from column vectors. order fixes the column
// order; when empty, columns sort by name.
func FromColumns(columns map[string][]interface{}, order ...string) (*Dataset, error) {
	if len(order) == 0 {
		for name := range columns {
			order = append(order, name)
		}
		sort.Strings(order)
	}

	length := -1
	for _, name := range order {
		values, ok := columns[name]
		if !ok {
			return nil, fmt.Errorf("column %q not provided", name)
		}
		if length >= 0 && len(values) != length {
			return nil, fmt.Errorf("column %q has %d values, expected %d", name, len(values), length)
		}
		length = len(values)
	}
	if length < 0 {
		length = 0
	}

	rows := make([][]interface{}, length)
	for r := range rows {
		row := make([]interface{}, len(order))
		for c, name := range order {
			row[c] = columns[name][r]
		}
		rows[r] = row
	}
	return New(order, rows), nil
}

// FromRecords builds a dataset from keyed records. Columns follow order, or
// sorted key names across all records when order is empty.
func FromRecords(records []map[string]interface{}, order ...string) *Dataset {
	if len(order) == 0 {
		seen := make(map[string]struct{})
		for _, record := range records {
			for key := range record {
				if _, ok := seen[key]; !ok {
					seen[key] = struct{}{}
					order = append(order, key)
				}
			}
		}
		sort.Strings(order)
	}

	rows := make([][]interface{}, len(records))
	for r, record := range records {
		row := make([]interface{}, len(order))
		for c, name := range order {
			row[c] = record[name]
		}
		rows[r] = row
	}
	return New(order, rows)
}

// New infers a schema for rows and normalizes their values to it.
func New(names []string, rows [][]interface{}) *Dataset {
	schema := InferSchema(names, rows)
	return &Dataset{Schema: schema, Rows: normalizeRows(schema, rows)}
}

// InferSchema types each column: bool when every value is a bool, number
// when every value coerces to a number, string otherwise. Nil values are
// ignored; an all-nil column is a string column.
func InferSchema(names []string, rows [][]interface{}) Schema {
	schema := Schema{Columns: make([]Column, len(names))}
	for c, name := range names {
		allBool, allNumber, present := true, true, false
		for _, row := range rows {
			if c >= len(row) || row[c] == nil {
				continue
			}
			present = true
			if _, ok := row[c].(bool); !ok {
				allBool = false
			}
			if _, ok := common.ToFloat(row[c]); !ok {
				allNumber = false
			}
		}
		typ := String
		switch {
		case !present:
		case allBool:
			typ = Bool
		case allNumber:
			typ = Number
		}
		schema.Columns[c] = Column{Name: name, Type: typ}
	}
	return schema
}

func normalizeRows(schema Schema, rows [][]interface{}) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for r, row := range rows {
		normalized := make([]interface{}, len(schema.Columns))
		for c, col := range schema.Columns {
			if c < len(row) {
				normalized[c] = normalizeValue(col.Type, row[c])
			}
		}
		out[r] = normalized
	}
	return out
}

func normalizeValue(typ ColumnType, v interface{}) interface{} {
	if v == nil {
		return nil
	}
	switch typ {
	case Number:
		if f, ok := common.ToFloat(v); ok {
			return f
		}
		return nil
	case Bool:
		return common.ToBool(v)
	}
	return common.Label(v)
}

// Normalized returns a copy whose values follow the schema types.
func (d *Dataset) Normalized() *Dataset {
	return &Dataset{Schema: d.Schema, Rows: normalizeRows(d.Schema, d.Rows)}
}

// Column returns the values of the named column.
func (d *Dataset) Column(name string) ([]interface{}, bool) {
	c := d.Schema.Index(name)
	if c < 0 {
		return nil, false
	}
	values := make([]interface{}, len(d.Rows))
	for r, row := range d.Rows {
		values[r] = row[c]
	}
	return values, true
}

// Filter returns a dataset with the rows keep accepts. Rows are shared.
func (d *Dataset) Filter(keep func(row []interface{}) bool) *Dataset {
	out := &Dataset{Schema: d.Schema}
	for _, row := range d.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	if out.Rows == nil {
		out.Rows = [][]interface{}{}
	}
	return out
}

// Where keeps the rows whose column value equals one of values.
func (d *Dataset) Where(column string, values ...interface{}) (*Dataset, error) {
	c := d.Schema.Index(column)
	if c < 0 {
		return nil, fmt.Errorf("column %q not in schema", column)
	}
	keys := make(map[string]struct{}, len(values))
	for _, v := range values {
		keys[common.Key(v)] = struct{}{}
	}
	return d.Filter(func(row []interface{}) bool {
		if row[c] == nil {
			return false
		}
		_, ok := keys[common.Key(row[c])]
		return ok
	}), nil
}

// Distinct returns the non-nil values of a column in natural order.
func (d *Dataset) Distinct(column string) []interface{} {
	c := d.Schema.Index(column)
	if c < 0 {
		return nil
	}
	seen := make(map[string]struct{})
	var out []interface{}
	for _, row := range d.Rows {
		v := row[c]
		if v == nil {
			continue
		}
		key := common.Key(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	common.SortValues(out)
	return out
}
