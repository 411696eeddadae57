package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// LakeReader scans study datasets out of a DuckDB connection into
// in-memory Datasets. The engine itself never touches the connection;
// this is the loading collaborator in front of it.
type LakeReader struct {
	db *sql.DB
}

// NewLakeReader wraps an open DuckDB connection.
func NewLakeReader(db *sql.DB) *LakeReader {
	return &LakeReader{db: db}
}

// Read scans the named table into a Dataset. Column types are derived
// from the DuckDB column types; NULL cells become missing cells.
func (r *LakeReader) Read(ctx context.Context, table string) (*Dataset, error) {
	if !validTableName(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM %q`, table))
	if err != nil {
		return nil, fmt.Errorf("read table %q: %w", table, err)
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("column types for %q: %w", table, err)
	}

	names := make([]string, len(colTypes))
	types := make([]ColumnType, len(colTypes))
	for i, ct := range colTypes {
		names[i] = ct.Name()
		types[i] = mapDBType(ct.DatabaseTypeName())
	}

	cells := make([][]interface{}, len(colTypes))
	scan := make([]interface{}, len(colTypes))
	for i := range scan {
		scan[i] = new(interface{})
	}

	for rows.Next() {
		if err := rows.Scan(scan...); err != nil {
			return nil, fmt.Errorf("scan %q: %w", table, err)
		}
		for i := range scan {
			v := *(scan[i].(*interface{}))
			cells[i] = append(cells[i], coerceCell(types[i], v))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %q: %w", table, err)
	}

	cols := make([]*Column, len(colTypes))
	for i := range colTypes {
		col, err := NewColumn(names[i], types[i], cells[i])
		if err != nil {
			return nil, err
		}
		cols[i] = col
	}
	return New(table, cols...)
}

// validTableName rejects anything that could escape the quoted identifier.
func validTableName(name string) bool {
	return name != "" && !strings.ContainsAny(name, `"';`)
}

func mapDBType(dbType string) ColumnType {
	switch strings.ToUpper(dbType) {
	case "TINYINT", "SMALLINT", "INTEGER", "BIGINT", "INT", "INT2", "INT4", "INT8", "HUGEINT":
		return Integer
	case "FLOAT", "REAL", "DOUBLE", "DECIMAL", "NUMERIC", "FLOAT4", "FLOAT8":
		return Float
	case "BOOLEAN", "BOOL":
		return Bool
	default:
		return String
	}
}

// coerceCell normalizes driver-specific scan values into the dataset's
// canonical cell types (float64, int64, string, bool, or nil).
func coerceCell(typ ColumnType, v interface{}) interface{} {
	if v == nil {
		return nil
	}
	switch typ {
	case Float:
		switch n := v.(type) {
		case float64:
			return n
		case float32:
			return float64(n)
		case int64:
			return float64(n)
		case int32:
			return float64(n)
		}
	case Integer:
		switch n := v.(type) {
		case int64:
			return n
		case int32:
			return int64(n)
		case int16:
			return int64(n)
		case int8:
			return int64(n)
		case int:
			return int64(n)
		case uint64:
			return int64(n)
		}
	case String:
		switch s := v.(type) {
		case string:
			return s
		case []byte:
			return string(s)
		}
	case Bool:
		if b, ok := v.(bool); ok {
			return b
		}
	}
	// Leave unrecognized values as-is; NewColumn reports the mismatch.
	return v
}
