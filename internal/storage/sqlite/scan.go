package sqlite

import (
	"database/sql"

	"github.com/morphexe/vestige/internal/storage"
)

// scanRows materializes *sql.Rows into storage.Row maps keyed by column
// name, the shape every backend (sqlite, postgres) returns so the
// repository layer never imports database/sql directly.
func scanRows(rows *sql.Rows) ([]storage.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []storage.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(storage.Row, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
