// Package engine holds the tabular result shape shared by every query engine backend.
package engine

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ResultSet is the rows returned by one statement, in engine order.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

func (r *ResultSet) Empty() bool {
	return r == nil || len(r.Rows) == 0
}

func (r *ResultSet) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// Row returns row i keyed by column name. Missing trailing cells are left out.
func (r *ResultSet) Row(i int) Row {
	row := make(Row, len(r.Columns))
	for c, name := range r.Columns {
		if c < len(r.Rows[i]) {
			row[name] = r.Rows[i][c]
		}
	}
	return row
}

// Row is a single result row keyed by column name.
type Row map[string]any

// String returns the column as text. Byte slices are converted, numbers formatted.
func (r Row) String(col string) (string, bool) {
	v, ok := r[col]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case []byte:
		return string(t), true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int64:
		return strconv.FormatInt(t, 10), true
	default:
		return fmt.Sprint(t), true
	}
}

// Float returns the column as a float64, parsing text representations.
func (r Row) Float(col string) (float64, bool) {
	v, ok := r[col]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(string(t), 64)
		return f, err == nil
	}
	return 0, false
}
