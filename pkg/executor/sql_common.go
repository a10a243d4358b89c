package executor

import (
	"database/sql"
	"time"
)

// scanRows reads every row of rows into a Result, normalizing each cell
// per spec.md §4.2: timestamps render as ISO-8601 strings, byte slices
// decode to strings, everything else passes through as-is. The
// MaxResultRows cap and truncation flag are applied by Ok.
func scanRows(rows *sql.Rows, start time.Time) (Result, error) {
	columns, err := rows.Columns()
	if err != nil {
		return Result{}, err
	}

	values := make([]interface{}, len(columns))
	scanDest := make([]interface{}, len(columns))
	for i := range values {
		scanDest[i] = &values[i]
	}

	var out [][]interface{}
	for rows.Next() {
		if err := rows.Scan(scanDest...); err != nil {
			return Result{}, err
		}
		row := make([]interface{}, len(columns))
		for i, v := range values {
			row[i] = normalizeSQLValue(v)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return Result{}, err
	}

	return Ok(columns, out, time.Since(start).Milliseconds()), nil
}

func normalizeSQLValue(v interface{}) interface{} {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	default:
		return val
	}
}
