package record

import "github.com/koustreak/rowmap/internal/schema"

// ArgumentsToSave returns one column/value pair per changed persisted
// attribute, in declaration order. Both slices are empty when nothing
// changed.
func (r *Record) ArgumentsToSave() ([]string, []any) {
	return r.arguments(func(a schema.Attribute) bool {
		return r.store.IsChanged(a.Name)
	})
}

// ArgumentsToInsert returns one column/value pair per persisted attribute
// except an auto-generated primary key, in declaration order. Unset
// attributes without a default insert null.
func (r *Record) ArgumentsToInsert() ([]string, []any) {
	return r.arguments(func(a schema.Attribute) bool {
		return !a.IsAutoPrimary()
	})
}

// arguments walks the persisted attributes selected by keep. When several
// attributes share a column, the first one declared supplies the value.
func (r *Record) arguments(keep func(schema.Attribute) bool) ([]string, []any) {
	attrs := r.model.def.Persisted()
	cols := make([]string, 0, len(attrs))
	vals := make([]any, 0, len(attrs))
	seen := make(map[string]struct{}, len(attrs))
	for _, a := range attrs {
		if !keep(a) {
			continue
		}
		if _, dup := seen[a.Column]; dup {
			continue
		}
		seen[a.Column] = struct{}{}
		cols = append(cols, a.Column)
		vals = append(vals, detach(r.store.values[a.Name]))
	}
	return cols, vals
}
