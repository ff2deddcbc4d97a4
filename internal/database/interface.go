package database

import "context"

// DB is what the persist and schema layers need from a SQL engine. The
// postgres and mysql packages implement it; nothing above this package
// imports them except the command that picks one.
type DB interface {
	Ping(ctx context.Context) error
	Close()

	// Query runs sql and returns a cursor over its result set.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// QueryRow runs sql for a single row, e.g. INSERT ... RETURNING.
	QueryRow(ctx context.Context, sql string, args ...any) (Row, error)

	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, sql string, args ...any) (Result, error)

	// ListTables returns the user tables of the current schema or database.
	ListTables(ctx context.Context) ([]string, error)

	TableExists(ctx context.Context, table string) (bool, error)

	// InspectSchema reads information_schema for every table. It issues
	// several queries per table; call it once and keep the result.
	InspectSchema(ctx context.Context) (*Schema, error)
}

// Rows is a forward-only result set. Close must be called even when
// iteration stops on an error.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Columns() ([]string, error)
	Close()
	Err() error
}

// Row is the single row returned by QueryRow.
type Row interface {
	Scan(dest ...any) error
}

// Result describes the effect of an Exec.
type Result struct {
	RowsAffected int64
	// LastInsertID is reported by drivers that support it (MySQL); it is
	// zero elsewhere, use RETURNING instead.
	LastInsertID int64
}
