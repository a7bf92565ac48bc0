package session

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// RowForm selects how Read materializes rows.
type RowForm int

const (
	// NamedRows returns each row keyed by column name.
	NamedRows RowForm = iota
	// PositionalRows returns each row as an ordered slice, used when DDL text
	// must be read verbatim by position.
	PositionalRows
)

// Rows is a fully read result set. Exactly one of Named or Positional is
// populated, according to the RowForm passed to Read.
type Rows struct {
	Columns    []string
	Named      []map[string]any
	Positional [][]any
}

// Len returns the number of rows.
func (r *Rows) Len() int {
	if r == nil {
		return 0
	}
	if r.Named != nil {
		return len(r.Named)
	}
	return len(r.Positional)
}

func scanRows(rows *sql.Rows, form RowForm) (*Rows, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("get columns: %w", err)
	}
	out := &Rows{Columns: cols}
	if form == NamedRows {
		out.Named = []map[string]any{}
	} else {
		out.Positional = [][]any{}
	}

	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}

		if form == NamedRows {
			record := make(map[string]any, len(cols))
			for i, col := range cols {
				record[col] = values[i]
			}
			out.Named = append(out.Named, record)
		} else {
			out.Positional = append(out.Positional, values)
		}
	}
	return out, rows.Err()
}

// String renders a scanned value as text; nil becomes "".
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

// Int converts a scanned value to int64.
func Int(v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case uint64:
		return int64(t), nil
	case float64:
		return int64(t), nil
	default:
		s := strings.TrimSpace(String(v))
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", s)
		}
		return n, nil
	}
}
