package database

import "sort"

// ColumnInfo describes a single column in a table
type ColumnInfo struct {
	Name            string
	DataType        string  // information_schema data_type: integer, text, timestamptz, …
	Nullable        bool
	Default         *string // nil if no default
	IsPrimary       bool
	IsUnique        bool
	IsAutoIncrement bool // serial / identity / AUTO_INCREMENT
}

// ForeignKey describes a column referencing another table.
type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
}

// TableInfo describes a table and its columns in ordinal order.
type TableInfo struct {
	Name        string
	Columns     []*ColumnInfo
	PrimaryKey  []string
	ForeignKeys []*ForeignKey
}

// Schema is the introspected database, keyed by table name.
type Schema struct {
	Tables map[string]*TableInfo
}

// TableNames returns the table names in lexical order.
func (s *Schema) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for n := range s.Tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// --- helpers ---

func toSet(ss []string) map[string]bool {
	m := make(map[string]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}

// MarkKeys flags the primary and unique columns of t.
func MarkKeys(t *TableInfo, uniqueCols []string) {
	pkSet := toSet(t.PrimaryKey)
	uqSet := toSet(uniqueCols)
	for _, col := range t.Columns {
		col.IsPrimary = col.IsPrimary || pkSet[col.Name]
		col.IsUnique = col.IsUnique || uqSet[col.Name]
	}
}
