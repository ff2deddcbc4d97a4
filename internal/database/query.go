package database

import (
	"fmt"
	"strings"
)

// Dialect controls which SQL placeholder and quoting style the builders emit.
type Dialect int

const (
	// DialectPostgres uses $1, $2, … placeholders and "double quotes".
	DialectPostgres Dialect = iota

	// DialectMySQL uses ? placeholders and `backticks`.
	DialectMySQL
)

// validOps is the allowlist of comparison operators for WHERE clauses.
// Any operator not in this list is rejected to prevent SQL injection
// through the operator position (which cannot be parameterized).
var validOps = map[string]bool{
	"=":     true,
	"!=":    true,
	"<>":    true,
	"<":     true,
	">":     true,
	"<=":    true,
	">=":    true,
	"LIKE":  true,
	"ILIKE": true,
	"IN":    true,
}

type whereClause struct {
	column string
	op     string
	value  any
}

// statement carries what every builder shares: target table, dialect and
// the running placeholder index.
type statement struct {
	table   string
	dialect Dialect
	where   []whereClause
	args    []any
}

// placeholder returns the correct parameter placeholder for the dialect and
// records the argument.
// Postgres: $1, $2, …   MySQL: ? (index is ignored)
func (s *statement) placeholder(arg any) string {
	s.args = append(s.args, arg)
	if s.dialect == DialectMySQL {
		return "?"
	}
	return fmt.Sprintf("$%d", len(s.args))
}

func (s *statement) quote(name string) string {
	if s.dialect == DialectMySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (s *statement) quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = s.quote(n)
	}
	return strings.Join(quoted, ", ")
}

func (s *statement) writeWhere(sb *strings.Builder) error {
	if len(s.where) == 0 {
		return nil
	}
	parts := make([]string, 0, len(s.where))
	for _, w := range s.where {
		op := strings.ToUpper(w.op)
		if !validOps[op] {
			return errInvalidInput(fmt.Sprintf("unsupported WHERE operator: %q", w.op))
		}
		if op == "IN" {
			list, ok := w.value.([]any)
			if !ok || len(list) == 0 {
				return errInvalidInput(fmt.Sprintf("IN on %q needs a non-empty []any", w.column))
			}
			ph := make([]string, len(list))
			for i, v := range list {
				ph[i] = s.placeholder(v)
			}
			parts = append(parts, fmt.Sprintf("%s IN (%s)", s.quote(w.column), strings.Join(ph, ", ")))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %s %s", s.quote(w.column), op, s.placeholder(w.value)))
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(strings.Join(parts, " AND "))
	return nil
}

// SelectBuilder constructs a parameterized SELECT query using a fluent API.
// Values are never interpolated into the SQL string; they are passed as args.
//
// Usage (Postgres):
//
//	sql, args, err := Select("users", DialectPostgres).
//	    Columns("id", "name", "email").
//	    Where("active", "=", true).
//	    OrderBy("created_at", Desc).
//	    Limit(20).
//	    Offset(0).
//	    Build()
type SelectBuilder struct {
	statement
	columns []string
	orderBy []orderClause
	limit   *int
	offset  *int
}

// SortDirection controls the ORDER BY direction.
type SortDirection bool

const (
	Asc  SortDirection = false
	Desc SortDirection = true
)

type orderClause struct {
	column string
	dir    SortDirection
}

// Select starts a new SelectBuilder for the given table and dialect.
func Select(table string, d Dialect) *SelectBuilder {
	return &SelectBuilder{statement: statement{table: table, dialect: d}}
}

// Columns restricts the SELECT to the specified columns.
// If not called, SELECT * is used.
func (b *SelectBuilder) Columns(cols ...string) *SelectBuilder {
	b.columns = cols
	return b
}

// Where adds a WHERE condition. op must be one of the allowed comparison
// operators (=, !=, <, >, <=, >=, LIKE, ILIKE).
// Multiple calls are combined with AND.
func (b *SelectBuilder) Where(column, op string, value any) *SelectBuilder {
	b.where = append(b.where, whereClause{column, op, value})
	return b
}

// OrderBy appends an ORDER BY clause for the given column and direction.
func (b *SelectBuilder) OrderBy(column string, dir SortDirection) *SelectBuilder {
	b.orderBy = append(b.orderBy, orderClause{column, dir})
	return b
}

// Limit sets the maximum number of rows to return.
func (b *SelectBuilder) Limit(n int) *SelectBuilder {
	b.limit = &n
	return b
}

// Offset sets the number of rows to skip (for pagination).
func (b *SelectBuilder) Offset(n int) *SelectBuilder {
	b.offset = &n
	return b
}

// Build produces the final SQL string and argument slice.
// Returns an error if any WHERE operator is not in the allowlist.
func (b *SelectBuilder) Build() (string, []any, error) {
	b.args = nil

	cols := "*"
	if len(b.columns) > 0 {
		cols = b.quoteAll(b.columns)
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(cols)
	sb.WriteString(" FROM ")
	sb.WriteString(b.quote(b.table))

	if err := b.writeWhere(&sb); err != nil {
		return "", nil, err
	}

	if len(b.orderBy) > 0 {
		parts := make([]string, len(b.orderBy))
		for i, o := range b.orderBy {
			dir := "ASC"
			if o.dir == Desc {
				dir = "DESC"
			}
			parts[i] = fmt.Sprintf("%s %s", b.quote(o.column), dir)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(parts, ", "))
	}

	if b.limit != nil {
		sb.WriteString(" LIMIT " + b.placeholder(*b.limit))
	}
	if b.offset != nil {
		sb.WriteString(" OFFSET " + b.placeholder(*b.offset))
	}

	return sb.String(), b.args, nil
}

// InsertBuilder constructs a single-row INSERT from parallel column and
// value lists, such as the ones a record's insert arguments produce.
type InsertBuilder struct {
	statement
	columns   []string
	values    []any
	returning []string
}

// Insert starts a new InsertBuilder.
func Insert(table string, d Dialect) *InsertBuilder {
	return &InsertBuilder{statement: statement{table: table, dialect: d}}
}

// Values sets the columns and their values; both lists must be aligned.
func (b *InsertBuilder) Values(columns []string, values []any) *InsertBuilder {
	b.columns = columns
	b.values = values
	return b
}

// Returning asks Postgres to return the given columns. It is ignored for
// MySQL, which reports generated keys through Result.LastInsertID.
func (b *InsertBuilder) Returning(cols ...string) *InsertBuilder {
	b.returning = cols
	return b
}

// Build produces the final SQL string and argument slice.
func (b *InsertBuilder) Build() (string, []any, error) {
	b.args = nil
	if len(b.columns) != len(b.values) {
		return "", nil, errInvalidInput(fmt.Sprintf(
			"insert into %s: %d columns but %d values", b.table, len(b.columns), len(b.values)))
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(b.quote(b.table))

	if len(b.columns) == 0 {
		if b.dialect == DialectMySQL {
			sb.WriteString(" () VALUES ()")
		} else {
			sb.WriteString(" DEFAULT VALUES")
		}
	} else {
		ph := make([]string, len(b.values))
		for i, v := range b.values {
			ph[i] = b.placeholder(v)
		}
		sb.WriteString(" (" + b.quoteAll(b.columns) + ")")
		sb.WriteString(" VALUES (" + strings.Join(ph, ", ") + ")")
	}

	if len(b.returning) > 0 && b.dialect == DialectPostgres {
		sb.WriteString(" RETURNING " + b.quoteAll(b.returning))
	}
	return sb.String(), b.args, nil
}

// UpdateBuilder constructs an UPDATE … SET … WHERE … statement.
type UpdateBuilder struct {
	statement
	columns []string
	values  []any
}

// Update starts a new UpdateBuilder.
func Update(table string, d Dialect) *UpdateBuilder {
	return &UpdateBuilder{statement: statement{table: table, dialect: d}}
}

// Set assigns values to columns; both lists must be aligned.
func (b *UpdateBuilder) Set(columns []string, values []any) *UpdateBuilder {
	b.columns = columns
	b.values = values
	return b
}

// Where adds a WHERE condition, combined with AND.
func (b *UpdateBuilder) Where(column, op string, value any) *UpdateBuilder {
	b.where = append(b.where, whereClause{column, op, value})
	return b
}

// Build produces the final SQL string and argument slice. An UPDATE
// without a WHERE clause is refused.
func (b *UpdateBuilder) Build() (string, []any, error) {
	b.args = nil
	if len(b.columns) == 0 {
		return "", nil, errInvalidInput("update " + b.table + ": nothing to set")
	}
	if len(b.columns) != len(b.values) {
		return "", nil, errInvalidInput(fmt.Sprintf(
			"update %s: %d columns but %d values", b.table, len(b.columns), len(b.values)))
	}
	if len(b.where) == 0 {
		return "", nil, errInvalidInput("update " + b.table + ": refusing to update without WHERE")
	}

	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(b.quote(b.table))
	sb.WriteString(" SET ")
	for i, c := range b.columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(b.quote(c) + " = " + b.placeholder(b.values[i]))
	}
	if err := b.writeWhere(&sb); err != nil {
		return "", nil, err
	}
	return sb.String(), b.args, nil
}

// DeleteBuilder constructs a DELETE … WHERE … statement.
type DeleteBuilder struct {
	statement
}

// Delete starts a new DeleteBuilder.
func Delete(table string, d Dialect) *DeleteBuilder {
	return &DeleteBuilder{statement: statement{table: table, dialect: d}}
}

// Where adds a WHERE condition, combined with AND.
func (b *DeleteBuilder) Where(column, op string, value any) *DeleteBuilder {
	b.where = append(b.where, whereClause{column, op, value})
	return b
}

// Build produces the final SQL string and argument slice. A DELETE
// without a WHERE clause is refused.
func (b *DeleteBuilder) Build() (string, []any, error) {
	b.args = nil
	if len(b.where) == 0 {
		return "", nil, errInvalidInput("delete from " + b.table + ": refusing to delete without WHERE")
	}
	var sb strings.Builder
	sb.WriteString("DELETE FROM ")
	sb.WriteString(b.quote(b.table))
	if err := b.writeWhere(&sb); err != nil {
		return "", nil, err
	}
	return sb.String(), b.args, nil
}
