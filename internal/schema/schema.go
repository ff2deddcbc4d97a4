// Package schema holds the definition-time metadata of a model: its ordered
// attributes, the column each one maps to, and how fragments declared in
// different places (mixins, base models, schema documents) are merged.
//
// A Definition is built once with Define and never mutated afterwards, so it
// can be shared freely between goroutines.
//
//	timestamps := schema.Fragment("Timestamps",
//	    schema.Attribute{Name: "created_at", Type: schema.Time(), Default: schema.Expr("now", now)},
//	)
//	users, err := schema.Define("User",
//	    schema.Attr(schema.Attribute{Name: "id", Type: schema.Int64(), Primary: true, AutoGenerated: true}),
//	    schema.Attr(schema.Attribute{Name: "name", Type: schema.String()}),
//	    schema.Mixin(timestamps),
//	)
package schema

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
	"github.com/koustreak/rowmap/internal/errs"
)

// Definition is the ordered attribute set of one model.
type Definition struct {
	model         string
	table         string
	discriminator string

	attrs    []Attribute
	byName   map[string]int
	byColumn map[string]int
}

// Option configures a Definition under construction. Options apply in
// order, so a later Attr or Mixin overrides an earlier same-named attribute.
type Option func(*Definition)

// Attr declares attributes owned by the model itself.
func Attr(attrs ...Attribute) Option {
	return func(d *Definition) {
		d.mergeAttrs(attrs)
	}
}

// Mixin merges every attribute of f. A non-empty table or discriminator
// on f is inherited as well.
func Mixin(f *Definition) Option {
	return func(d *Definition) {
		d.merge(f)
	}
}

// Table sets the physical table name.
func Table(name string) Option {
	return func(d *Definition) {
		d.table = name
	}
}

// Discriminator enables single-table inheritance on the named attribute.
func Discriminator(attr string) Option {
	return func(d *Definition) {
		d.discriminator = attr
	}
}

// Fragment builds an unvalidated attribute set meant to be mixed into
// other definitions.
func Fragment(name string, attrs ...Attribute) *Definition {
	d := &Definition{model: name}
	d.mergeAttrs(attrs)
	return d
}

// Define builds and validates the definition of model. The table defaults
// to the pluralised snake_case model name.
func Define(model string, opts ...Option) (*Definition, error) {
	d := &Definition{model: model}
	d.reindex()
	for _, opt := range opts {
		opt(d)
	}
	if d.table == "" {
		d.table = TableName(model)
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// MustDefine is Define for package-level declarations; an invalid
// definition is a programming error and panics.
func MustDefine(model string, opts ...Option) *Definition {
	d, err := Define(model, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

// Merge returns a new definition holding d's attributes followed by f's.
// A name already present moves to its position in f and takes f's
// declaration; unseen names keep their order.
func (d *Definition) Merge(f *Definition) *Definition {
	out := d.clone()
	out.merge(f)
	return out
}

// WithDefault returns a copy of d where the named attribute has default
// def. The attribute keeps its position.
func (d *Definition) WithDefault(name string, def *Default) (*Definition, error) {
	i, ok := d.byName[name]
	if !ok {
		return nil, errs.ForAttribute(errs.ErrKindUnknownAttribute, d.model, name, "attribute is not declared")
	}
	out := d.clone()
	out.attrs[i].Default = def
	return out, nil
}

func (d *Definition) merge(f *Definition) {
	if f == nil {
		return
	}
	if f.table != "" {
		d.table = f.table
	}
	if f.discriminator != "" {
		d.discriminator = f.discriminator
	}
	d.mergeAttrs(f.attrs)
}

func (d *Definition) mergeAttrs(attrs []Attribute) {
	for _, a := range attrs {
		a = a.normalized()
		if i, ok := d.indexOf(a.Name); ok {
			d.attrs = append(d.attrs[:i], d.attrs[i+1:]...)
		}
		d.attrs = append(d.attrs, a)
		d.reindex()
	}
}

func (d *Definition) indexOf(name string) (int, bool) {
	for i, a := range d.attrs {
		if a.Name == name {
			return i, true
		}
	}
	return 0, false
}

func (d *Definition) reindex() {
	d.byName = make(map[string]int, len(d.attrs))
	d.byColumn = make(map[string]int, len(d.attrs))
	for i, a := range d.attrs {
		d.byName[a.Name] = i
		if a.Virtual {
			continue
		}
		// Aliased columns resolve to the first declaration.
		if _, seen := d.byColumn[a.Column]; !seen {
			d.byColumn[a.Column] = i
		}
	}
}

func (d *Definition) clone() *Definition {
	out := &Definition{
		model:         d.model,
		table:         d.table,
		discriminator: d.discriminator,
		attrs:         append([]Attribute(nil), d.attrs...),
	}
	out.reindex()
	return out
}

func (d *Definition) validate() error {
	if d.model == "" {
		return errs.New(errs.ErrKindInvalidDefinition, "model name is required")
	}

	var autoPrimary string
	for _, a := range d.attrs {
		fail := func(format string, args ...any) error {
			return errs.ForAttribute(errs.ErrKindInvalidDefinition, d.model, a.Name, fmt.Sprintf(format, args...))
		}
		switch {
		case a.Name == "":
			return errs.New(errs.ErrKindInvalidDefinition, d.model+": attribute name is required")
		case !a.Type.valid():
			return fail("invalid type %q", a.Type.String())
		case a.AutoGenerated && !a.Primary:
			return fail("only primary keys can be auto-generated")
		case a.Virtual && a.Primary:
			return fail("a virtual attribute cannot be a primary key")
		}
		if a.IsAutoPrimary() {
			if autoPrimary != "" {
				return fail("second auto-generated primary key (already declared on %q)", autoPrimary)
			}
			autoPrimary = a.Name
		}
	}

	if d.discriminator != "" {
		a, ok := d.Attribute(d.discriminator)
		if !ok || a.Virtual {
			return errs.ForAttribute(errs.ErrKindInvalidDefinition, d.model, d.discriminator, "discriminator is not a persisted attribute")
		}
		if a.Type.Kind != KindString {
			return errs.ForAttribute(errs.ErrKindInvalidDefinition, d.model, d.discriminator, "discriminator must be a string attribute")
		}
	}
	return nil
}

// --- Accessors ---

func (d *Definition) Model() string { return d.model }

func (d *Definition) Table() string { return d.table }

// Discriminator is the STI attribute name, or "" when polymorphism is off.
func (d *Definition) Discriminator() string { return d.discriminator }

// Attribute resolves a logical name.
func (d *Definition) Attribute(name string) (Attribute, bool) {
	i, ok := d.byName[name]
	if !ok {
		return Attribute{}, false
	}
	return d.attrs[i], true
}

// ByColumn resolves a physical column to its persisted attribute.
func (d *Definition) ByColumn(column string) (Attribute, bool) {
	i, ok := d.byColumn[column]
	if !ok {
		return Attribute{}, false
	}
	return d.attrs[i], true
}

// Attributes returns every attribute in declaration order.
func (d *Definition) Attributes() []Attribute {
	return append([]Attribute(nil), d.attrs...)
}

// Persisted returns the non-virtual attributes in declaration order; this
// is the column order rows are read in.
func (d *Definition) Persisted() []Attribute {
	out := make([]Attribute, 0, len(d.attrs))
	for _, a := range d.attrs {
		if !a.Virtual {
			out = append(out, a)
		}
	}
	return out
}

// FieldCount is the number of non-virtual attributes.
func (d *Definition) FieldCount() int {
	n := 0
	for _, a := range d.attrs {
		if !a.Virtual {
			n++
		}
	}
	return n
}

// Columns lists the persisted columns in row order.
func (d *Definition) Columns() []string {
	cols := make([]string, 0, len(d.attrs))
	for _, a := range d.attrs {
		if !a.Virtual {
			cols = append(cols, a.Column)
		}
	}
	return cols
}

// ColumnIndex is the position of the named attribute in Columns.
func (d *Definition) ColumnIndex(name string) (int, bool) {
	n := 0
	for _, a := range d.attrs {
		if a.Virtual {
			continue
		}
		if a.Name == name {
			return n, true
		}
		n++
	}
	return 0, false
}

// PrimaryKey returns the first primary-key attribute.
func (d *Definition) PrimaryKey() (Attribute, bool) {
	for _, a := range d.attrs {
		if a.Primary {
			return a, true
		}
	}
	return Attribute{}, false
}

// Metadata describes one attribute.
func (d *Definition) Metadata(name string) (Metadata, error) {
	a, ok := d.Attribute(name)
	if !ok {
		return Metadata{}, errs.ForAttribute(errs.ErrKindUnknownAttribute, d.model, name, "attribute is not declared")
	}
	return a.Metadata(), nil
}

// ColumnsTuple describes every persisted attribute in row order.
func (d *Definition) ColumnsTuple() []Metadata {
	out := make([]Metadata, 0, len(d.attrs))
	for _, a := range d.attrs {
		if !a.Virtual {
			out = append(out, a.Metadata())
		}
	}
	return out
}

// --- Naming ---

// TableName derives a table from a model name: "UserAccount" -> "user_accounts".
func TableName(model string) string {
	return inflection.Plural(snakeCase(model))
}

// ModelName derives a model name from a table: "user_accounts" -> "UserAccount".
func ModelName(table string) string {
	parts := strings.Split(inflection.Singular(table), "_")
	var sb strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		r := []rune(p)
		r[0] = unicode.ToUpper(r[0])
		sb.WriteString(string(r))
	}
	return sb.String()
}

func snakeCase(s string) string {
	var sb strings.Builder
	r := []rune(s)
	for i, c := range r {
		if unicode.IsUpper(c) {
			if i > 0 && (unicode.IsLower(r[i-1]) || (i+1 < len(r) && unicode.IsLower(r[i+1]))) {
				sb.WriteByte('_')
			}
			c = unicode.ToLower(c)
		}
		sb.WriteRune(c)
	}
	return sb.String()
}
