package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite"

	"github.com/crosstab/crosstab-go/dataset"
)

// Query runs spec.Query against spec.DSN and returns the result set as a dataset.
// Columns keep the query's select order unless spec.Columns is set.
func Query(ctx context.Context, spec Spec) (*dataset.Dataset, error) {
	if strings.TrimSpace(spec.Query) == "" {
		return nil, fmt.Errorf("source: query is required for sql data")
	}
	if spec.DSN == "" {
		return nil, fmt.Errorf("source: dsn is required for sql data")
	}

	var (
		names []string
		rows  [][]interface{}
		err   error
	)
	switch strings.ToLower(spec.Driver) {
	case "postgres", "postgresql", "pgx":
		names, rows, err = queryPostgres(ctx, spec)
	case "sqlite", "sqlite3":
		names, rows, err = queryDB(ctx, "sqlite", spec)
	case "mysql":
		names, rows, err = queryDB(ctx, "mysql", spec)
	default:
		return nil, fmt.Errorf("source: unsupported driver %q", spec.Driver)
	}
	if err != nil {
		return nil, err
	}

	if len(spec.Columns) == 0 {
		return dataset.New(names, rows), nil
	}
	records := make([]map[string]interface{}, len(rows))
	for r, row := range rows {
		record := make(map[string]interface{}, len(names))
		for c, name := range names {
			record[name] = row[c]
		}
		records[r] = record
	}
	return dataset.FromRecords(records, spec.Columns...), nil
}

func queryPostgres(ctx context.Context, spec Spec) ([]string, [][]interface{}, error) {
	pool, err := pgxpool.New(ctx, spec.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pool.Close()

	rows, err := pool.Query(ctx, spec.Query)
	if err != nil {
		return nil, nil, fmt.Errorf("running query: %w", err)
	}
	defer rows.Close()

	var names []string
	for _, fd := range rows.FieldDescriptions() {
		names = append(names, fd.Name)
	}
	var out [][]interface{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, nil, fmt.Errorf("reading row: %w", err)
		}
		row := make([]interface{}, len(values))
		for i, v := range values {
			row[i] = sqlValue(v)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading rows: %w", err)
	}
	return names, out, nil
}

func queryDB(ctx context.Context, driver string, spec Spec) ([]string, [][]interface{}, error) {
	db, err := sql.Open(driver, spec.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s connection: %w", driver, err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, spec.Query)
	if err != nil {
		return nil, nil, fmt.Errorf("running query: %w", err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("reading columns: %w", err)
	}
	var out [][]interface{}
	for rows.Next() {
		values := make([]interface{}, len(names))
		ptrs := make([]interface{}, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("reading row: %w", err)
		}
		for i, v := range values {
			values[i] = sqlValue(v)
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading rows: %w", err)
	}
	return names, out, nil
}

func sqlValue(v interface{}) interface{} {
	switch value := v.(type) {
	case []byte:
		return string(value)
	case time.Time:
		return value.UTC().Format(time.RFC3339)
	case pgtype.Numeric:
		f, err := value.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	}
	return v
}
