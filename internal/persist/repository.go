// Package persist runs records through a database.DB: it builds statements
// from a record's insert and save arguments and materializes result rows,
// dispatching single-table-inheritance rows to their subtype model.
package persist

import (
	"context"
	"fmt"

	"github.com/koustreak/rowmap/internal/database"
	"github.com/koustreak/rowmap/internal/errs"
	"github.com/koustreak/rowmap/internal/logger"
	"github.com/koustreak/rowmap/internal/record"
	"github.com/koustreak/rowmap/internal/schema"
)

// Repository persists records of any model. It holds no per-model state
// and is safe for concurrent use as long as the DB is.
type Repository struct {
	db      database.DB
	dialect database.Dialect
}

// New returns a repository emitting SQL for dialect.
func New(db database.DB, dialect database.Dialect) *Repository {
	return &Repository{db: db, dialect: dialect}
}

// All loads every row of m's table. For a base model with subtypes each row
// becomes the model its discriminator selects; for a subtype only its own
// rows are read.
func (r *Repository) All(ctx context.Context, m *record.Model) ([]*record.Record, error) {
	b := database.Select(m.Table(), r.dialect).Columns(selectColumns(m)...)
	scope(b, m)
	if pk, ok := m.Definition().PrimaryKey(); ok {
		b.OrderBy(pk.Column, database.Asc)
	}
	return r.query(ctx, m, b)
}

// Get loads the record whose primary key equals pk. It fails with a
// not-found error when no row matches.
func (r *Repository) Get(ctx context.Context, m *record.Model, pk any) (*record.Record, error) {
	key, ok := m.Definition().PrimaryKey()
	if !ok {
		return nil, errs.New(errs.ErrKindInvalidInput, m.Name()+": model has no primary key")
	}
	args, err := m.Wire([]string{key.Column}, []any{pk})
	if err != nil {
		return nil, err
	}

	b := database.Select(m.Table(), r.dialect).
		Columns(selectColumns(m)...).
		Where(key.Column, "=", args[0]).
		Limit(1)
	scope(b, m)

	recs, err := r.query(ctx, m, b)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, errs.ForAttribute(errs.ErrKindNotFound, m.Name(), key.Name, fmt.Sprintf("no row with %s = %v", key.Column, pk))
	}
	return recs[0], nil
}

func (r *Repository) query(ctx context.Context, m *record.Model, b *database.SelectBuilder) ([]*record.Record, error) {
	sql, args, err := b.Build()
	if err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx).With().Model(m.Name()).Str("query", sql).Logger()
	log.Debug("loading records")

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, errs.WithQuery(err, sql)
	}
	cur, err := database.NewCursor(rows)
	if err != nil {
		return nil, errs.WithQuery(err, sql)
	}
	defer cur.Close()

	disc, dispatch := discriminatorColumn(m)
	out := make([]*record.Record, 0)
	for cur.Next() {
		target := m
		if dispatch {
			v, ok := cur.Column(disc)
			if !ok {
				e := errs.ForAttribute(errs.ErrKindDataTypeMismatch, m.Root().Name(),
					m.Root().Definition().Discriminator(), fmt.Sprintf("result set has no discriminator column %q", disc))
				return nil, errs.WithQuery(e, sql)
			}
			if target, err = m.Resolve(v); err != nil {
				return nil, errs.WithQuery(err, sql)
			}
		}
		row, err := cur.Values(target.Columns())
		if err != nil {
			return nil, errs.WithQuery(err, sql)
		}
		rec, err := target.FromRow(row, record.WithQuery(sql))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := cur.Err(); err != nil {
		return nil, errs.WithQuery(err, sql)
	}
	log.With().Int("rows", len(out)).Logger().Debug("records loaded")
	return out, nil
}

// Save inserts a new record and updates a persisted one.
func (r *Repository) Save(ctx context.Context, rec *record.Record) error {
	if rec.IsPersisted() {
		return r.Update(ctx, rec)
	}
	return r.Insert(ctx, rec)
}

// Insert validates rec and writes every persisted attribute. A generated
// primary key is read back into the record, which is then clean.
func (r *Repository) Insert(ctx context.Context, rec *record.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	m := rec.Model()
	cols, vals := rec.ArgumentsToInsert()
	args, err := m.Wire(cols, vals)
	if err != nil {
		return err
	}

	b := database.Insert(m.Table(), r.dialect).Values(cols, args)
	auto, hasAuto := autoKey(m)
	if hasAuto && r.dialect == database.DialectPostgres {
		b.Returning(auto.Column)
	}
	sql, args, err := b.Build()
	if err != nil {
		return err
	}
	log := logger.FromContext(ctx).With().Model(m.Name()).Str("query", sql).Logger()

	switch {
	case hasAuto && r.dialect == database.DialectPostgres:
		row, err := r.db.QueryRow(ctx, sql, args...)
		if err != nil {
			return errs.WithQuery(err, sql)
		}
		got, err := database.ScanRow(row, []string{auto.Column})
		if err != nil {
			return errs.WithQuery(err, sql)
		}
		if err := rec.Hydrate(auto.Name, got[auto.Column]); err != nil {
			return errs.WithQuery(err, sql)
		}
	default:
		res, err := r.db.Exec(ctx, sql, args...)
		if err != nil {
			return errs.WithQuery(err, sql)
		}
		if hasAuto {
			if err := rec.Hydrate(auto.Name, res.LastInsertID); err != nil {
				return errs.WithQuery(err, sql)
			}
		}
	}

	rec.MarkPersisted()
	log.Debug("record inserted")
	return nil
}

// Update writes the changed attributes of a persisted record. A record
// without changes is left alone and no statement is sent.
func (r *Repository) Update(ctx context.Context, rec *record.Record) error {
	m := rec.Model()
	if !rec.IsPersisted() {
		return errs.New(errs.ErrKindInvalidInput, m.Name()+": cannot update a record that was never saved")
	}
	if !rec.HasChanges() {
		return nil
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	key, pk, err := primaryKey(rec)
	if err != nil {
		return err
	}
	cols, vals := rec.ArgumentsToSave()
	args, err := m.Wire(cols, vals)
	if err != nil {
		return err
	}
	sql, args, err := database.Update(m.Table(), r.dialect).
		Set(cols, args).
		Where(key.Column, "=", pk).
		Build()
	if err != nil {
		return err
	}
	if err := r.exec(ctx, m, key, sql, args); err != nil {
		return err
	}

	rec.MarkPersisted()
	logger.FromContext(ctx).With().Model(m.Name()).Str("query", sql).Int("columns", len(cols)).Logger().
		Debug("record updated")
	return nil
}

// Delete removes the row of a persisted record.
func (r *Repository) Delete(ctx context.Context, rec *record.Record) error {
	m := rec.Model()
	if !rec.IsPersisted() {
		return errs.New(errs.ErrKindInvalidInput, m.Name()+": cannot delete a record that was never saved")
	}
	key, pk, err := primaryKey(rec)
	if err != nil {
		return err
	}
	sql, args, err := database.Delete(m.Table(), r.dialect).Where(key.Column, "=", pk).Build()
	if err != nil {
		return err
	}
	if err := r.exec(ctx, m, key, sql, args); err != nil {
		return err
	}
	logger.FromContext(ctx).DebugWith("record deleted", map[string]interface{}{
		"model": m.Name(),
		"query": sql,
		"key":   pk,
	})
	return nil
}

func (r *Repository) exec(ctx context.Context, m *record.Model, key schema.Attribute, sql string, args []any) error {
	res, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return errs.WithQuery(err, sql)
	}
	if res.RowsAffected == 0 {
		e := errs.ForAttribute(errs.ErrKindNotFound, m.Name(), key.Name, "no row matched the primary key")
		e.Query = sql
		return e
	}
	return nil
}

// primaryKey returns the key attribute of rec and its encoded value.
func primaryKey(rec *record.Record) (schema.Attribute, any, error) {
	m := rec.Model()
	key, pk, ok := rec.PrimaryKey()
	if !ok {
		return schema.Attribute{}, nil, errs.New(errs.ErrKindInvalidInput, m.Name()+": model has no primary key")
	}
	if pk == nil {
		return schema.Attribute{}, nil, errs.ForAttribute(errs.ErrKindInvalidInput, m.Name(), key.Name, "primary key is not set")
	}
	args, err := m.Wire([]string{key.Column}, []any{pk})
	if err != nil {
		return schema.Attribute{}, nil, err
	}
	return key, args[0], nil
}

func autoKey(m *record.Model) (schema.Attribute, bool) {
	key, ok := m.Definition().PrimaryKey()
	if !ok || !key.IsAutoPrimary() {
		return schema.Attribute{}, false
	}
	return key, true
}

// discriminatorColumn reports the STI column of m, if it has one.
func discriminatorColumn(m *record.Model) (string, bool) {
	root := m.Root().Definition()
	if root.Discriminator() == "" {
		return "", false
	}
	a, _ := root.Attribute(root.Discriminator())
	return a.Column, true
}

// scope restricts a subtype's reads to its own rows and those of the
// subtypes registered below it.
func scope(b *database.SelectBuilder, m *record.Model) {
	disc, ok := discriminatorColumn(m)
	if !ok || m.STI() == "" {
		return
	}
	values := []any{m.STI()}
	for _, sub := range subtreeOf(m) {
		values = append(values, sub.STI())
	}
	if len(values) == 1 {
		b.Where(disc, "=", values[0])
		return
	}
	b.Where(disc, "IN", values)
}

// selectColumns lists the columns of m followed by those only its subtypes
// declare, so one statement can serve every model a row may resolve to.
func selectColumns(m *record.Model) []string {
	cols := m.Columns()
	seen := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		seen[c] = struct{}{}
	}
	for _, sub := range subtreeOf(m) {
		for _, c := range sub.Columns() {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				cols = append(cols, c)
			}
		}
	}
	return cols
}

// subtreeOf lists the models registered below m, depth first, that rows
// read through m may resolve to.
func subtreeOf(m *record.Model) []*record.Model {
	var out []*record.Model
	for _, sub := range m.Subtypes() {
		if sub == m {
			continue
		}
		if sub.Parent() == m {
			out = append(out, sub)
			out = append(out, subtreeOf(sub)...)
		}
	}
	return out
}
