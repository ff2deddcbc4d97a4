package database

import (
	"fmt"

	"github.com/koustreak/rowmap/internal/value"
)

// ScanRow reads a single row, such as the RETURNING clause of an insert,
// into a map keyed by columns.
func ScanRow(row Row, columns []string) (map[string]any, error) {
	dest, err := scanRaw(row, len(columns))
	if err != nil {
		return nil, err
	}

	result := make(map[string]any, len(columns))
	for i, col := range columns {
		result[col] = dest[i]
	}
	return result, nil
}

// scanRaw scans n columns into *any targets so the driver can write any type.
func scanRaw(row Row, n int) ([]any, error) {
	dest := make([]any, n)
	destPtrs := make([]any, n)
	for i := range dest {
		destPtrs[i] = &dest[i]
	}
	if err := row.Scan(destPtrs...); err != nil {
		return nil, errQuery("failed to scan row", err)
	}
	return dest, nil
}

// Cursor walks a result set one row at a time and hands the current row to
// the record layer without converting it up front: Column normalises a
// single value (enough to read an STI discriminator) and Values returns a
// sequential reader ordered for a particular model.
type Cursor struct {
	rows    Rows
	columns []string
	index   map[string]int
	raw     []any
	err     error
}

// NewCursor reads the column list of rows. The cursor owns rows and closes
// them in Close.
func NewCursor(rows Rows) (*Cursor, error) {
	columns, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, errQuery("failed to read column names", err)
	}
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c]; !dup {
			index[c] = i
		}
	}
	return &Cursor{rows: rows, columns: columns, index: index}, nil
}

// Next advances to the next row and scans it.
func (c *Cursor) Next() bool {
	if c.err != nil || !c.rows.Next() {
		return false
	}
	raw, err := scanRaw(c.rows, len(c.columns))
	if err != nil {
		c.err = err
		return false
	}
	c.raw = raw
	return true
}

// Err returns the first scan or iteration error.
func (c *Cursor) Err() error {
	if c.err != nil {
		return c.err
	}
	if err := c.rows.Err(); err != nil {
		return errQuery("error during row iteration", err)
	}
	return nil
}

// Close releases the underlying rows.
func (c *Cursor) Close() {
	c.rows.Close()
}

// Columns returns the result-set column names.
func (c *Cursor) Columns() []string {
	return append([]string(nil), c.columns...)
}

// Column returns one value of the current row.
func (c *Cursor) Column(name string) (value.Value, bool) {
	i, ok := c.index[name]
	if !ok || c.raw == nil {
		return value.Null(), false
	}
	return value.FromAny(c.raw[i]), true
}

// Values returns a sequential reader over the current row restricted to
// columns, in that order.
func (c *Cursor) Values(columns []string) (*value.Reader, error) {
	ordered := make([]any, len(columns))
	for i, col := range columns {
		j, ok := c.index[col]
		if !ok {
			return nil, errQuery(fmt.Sprintf("column %q is not part of the result set", col), nil)
		}
		ordered[i] = c.raw[j]
	}
	return value.NewReader(ordered), nil
}
