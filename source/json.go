package source

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// decodeJSON reads records from a JSON payload. recordsPath selects the
// record array; an object at the path is a single record.
func decodeJSON(payload []byte, recordsPath string) ([]map[string]interface{}, error) {
	if !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("invalid json")
	}
	result := gjson.ParseBytes(payload)
	if recordsPath != "" {
		result = result.Get(recordsPath)
		if !result.Exists() {
			return nil, fmt.Errorf("records path %q not found", recordsPath)
		}
	}

	var records []map[string]interface{}
	if result.IsArray() {
		result.ForEach(func(_, item gjson.Result) bool {
			records = append(records, toRecord(item))
			return true
		})
		return records, nil
	}
	return append(records, toRecord(result)), nil
}

func toRecord(item gjson.Result) map[string]interface{} {
	if !item.IsObject() {
		return map[string]interface{}{"value": resultValue(item)}
	}
	record := make(map[string]interface{})
	item.ForEach(func(key, value gjson.Result) bool {
		record[key.String()] = resultValue(value)
		return true
	})
	return record
}

// resultValue keeps scalars typed. Nested objects and arrays stay as raw
// JSON text.
func resultValue(r gjson.Result) interface{} {
	switch r.Type {
	case gjson.Null:
		return nil
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.Number:
		return r.Float()
	case gjson.String:
		return r.Str
	}
	return r.Raw
}
