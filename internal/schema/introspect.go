package schema

import (
	"fmt"

	"github.com/koustreak/rowmap/internal/database"
	"github.com/koustreak/rowmap/internal/errs"
)

// FromTable derives a definition from an introspected table. Columns keep
// their ordinal order and their names as attribute names; column defaults
// are left to the database, so no attribute carries a Default.
//
// Only the first auto-increment primary key column is marked
// auto-generated. Composite keys keep their other columns as caller-supplied
// primaries.
func FromTable(info *database.TableInfo) (*Definition, error) {
	if info == nil || len(info.Columns) == 0 {
		return nil, errs.New(errs.ErrKindInvalidInput, "table has no columns")
	}

	attrs := make([]Attribute, 0, len(info.Columns))
	auto := false
	for _, col := range info.Columns {
		typ, converter := SQLType(col.DataType)
		a := Attribute{
			Name:      col.Name,
			Type:      typ,
			Nullable:  col.Nullable,
			Primary:   col.IsPrimary,
			Converter: converter,
		}
		if col.IsPrimary && col.IsAutoIncrement && !auto {
			a.AutoGenerated = true
			auto = true
		}
		attrs = append(attrs, a)
	}

	def, err := Define(ModelName(info.Name), Table(info.Name), Attr(attrs...))
	if err != nil {
		return nil, fmt.Errorf("table %q: %w", info.Name, err)
	}
	return def, nil
}

// FromSchema derives one definition per table, in table-name order.
func FromSchema(s *database.Schema) ([]*Definition, error) {
	defs := make([]*Definition, 0, len(s.Tables))
	for _, name := range s.TableNames() {
		def, err := FromTable(s.Tables[name])
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}
