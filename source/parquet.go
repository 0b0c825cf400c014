package source

import (
	"bytes"
	"io"

	"github.com/parquet-go/parquet-go"
)

func decodeParquet(payload []byte) ([]map[string]interface{}, error) {
	reader := parquet.NewGenericReader[map[string]interface{}](bytes.NewReader(payload))
	defer reader.Close()

	var records []map[string]interface{}
	batch := make([]map[string]interface{}, 256)
	for {
		n, err := reader.Read(batch)
		for i := 0; i < n; i++ {
			records = append(records, parquetRecord(batch[i]))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return records, nil
}

// parquetRecord turns byte array columns into text.
func parquetRecord(record map[string]interface{}) map[string]interface{} {
	for key, value := range record {
		if b, ok := value.([]byte); ok {
			record[key] = string(b)
		}
	}
	return record
}
