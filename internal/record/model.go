// Package record turns schema definitions into typed, change-tracked
// records.
//
// A Model compiles one schema.Definition together with a caster and,
// for single-table inheritance, the mapping from discriminator values to
// subtype models. Records are created empty (defaults applied), from
// caller input (every supplied attribute marked changed) or from a row
// (clean).
//
//	users, _ := record.NewModel(def)
//	u, err := users.FromMap(map[string]any{"name": "Deepthi", "age": 18})
//	cols, vals := u.ArgumentsToInsert() // [name age] [Deepthi 18]
package record

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/koustreak/rowmap/internal/cast"
	"github.com/koustreak/rowmap/internal/errs"
	"github.com/koustreak/rowmap/internal/logger"
	"github.com/koustreak/rowmap/internal/schema"
	"github.com/koustreak/rowmap/internal/value"
)

// Model is the runtime form of a definition. It is immutable once its
// subtypes are registered and may be shared between goroutines.
type Model struct {
	def        *schema.Definition
	caster     *cast.Caster
	validators []Validator

	// sti is shared by a base model and all of its subtypes.
	sti      *inheritance
	stiValue string
	parent   *Model
}

type inheritance struct {
	root  *Model
	attr  string
	index int
	types map[string]*Model
}

// Option configures a Model.
type Option func(*Model)

// WithCaster replaces the process-wide caster.
func WithCaster(c *cast.Caster) Option {
	return func(m *Model) {
		m.caster = c
	}
}

// WithValidator appends a validation collaborator.
func WithValidator(v Validator) Option {
	return func(m *Model) {
		m.validators = append(m.validators, v)
	}
}

// NewModel compiles def. Every converter the definition names must be
// registered and every default must cast to its attribute's type.
func NewModel(def *schema.Definition, opts ...Option) (*Model, error) {
	m := &Model{def: def, caster: cast.Default()}
	for _, opt := range opts {
		opt(m)
	}

	for _, a := range def.Attributes() {
		if err := m.caster.Check(def.Model(), a); err != nil {
			return nil, err
		}
		if a.Default == nil || a.Virtual {
			continue
		}
		if _, err := m.caster.Cast(def.Model(), a, value.FromAny(a.Default.Resolve()), cast.OriginInput); err != nil {
			return nil, errs.ForAttribute(errs.ErrKindInvalidDefinition, def.Model(), a.Name,
				fmt.Sprintf("default %s does not fit: %v", a.Default, err))
		}
	}

	if disc := def.Discriminator(); disc != "" {
		idx, _ := def.ColumnIndex(disc)
		m.sti = &inheritance{root: m, attr: disc, index: idx, types: make(map[string]*Model)}
	}
	return m, nil
}

// MustModel is NewModel for package-level declarations.
func MustModel(def *schema.Definition, opts ...Option) *Model {
	m, err := NewModel(def, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

// Subtype registers def as the model selected by discriminator value v.
// def must persist every attribute of m first, in m's order, with the same
// columns and types; it inherits m's caster and validators.
func (m *Model) Subtype(v string, def *schema.Definition, opts ...Option) (*Model, error) {
	if m.sti == nil {
		return nil, errs.New(errs.ErrKindInvalidDefinition, m.Name()+": subtypes need a discriminator")
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, errs.New(errs.ErrKindInvalidDefinition, m.Name()+": blank discriminator value is reserved for the base model")
	}
	if _, dup := m.sti.types[v]; dup {
		return nil, errs.Newf(errs.ErrKindInvalidDefinition, "%s: discriminator value %q is already registered", m.Name(), v)
	}
	if def.Discriminator() != m.sti.attr {
		return nil, errs.New(errs.ErrKindInvalidDefinition,
			fmt.Sprintf("%s: discriminator %q differs from %s's %q", def.Model(), def.Discriminator(), m.Name(), m.sti.attr))
	}
	if err := extends(def, m.def); err != nil {
		return nil, err
	}

	def, err := def.WithDefault(m.sti.attr, schema.Literal(v))
	if err != nil {
		return nil, err
	}

	base := []Option{WithCaster(m.caster)}
	for _, val := range m.validators {
		base = append(base, WithValidator(val))
	}
	sub, err := NewModel(def, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	sub.sti = m.sti
	sub.stiValue = v
	sub.parent = m
	m.sti.types[v] = sub

	logger.Global().With().Model(m.sti.root.Name()).Str("subtype", def.Model()).Str("sti", v).Logger().
		Debug("sti subtype registered")
	return sub, nil
}

// extends checks that the persisted attributes of base are a prefix of
// those of sub.
func extends(sub, base *schema.Definition) error {
	want := base.Persisted()
	got := sub.Persisted()
	if len(got) < len(want) {
		return errs.New(errs.ErrKindInvalidDefinition,
			fmt.Sprintf("%s: does not declare every attribute of %s", sub.Model(), base.Model()))
	}
	for i, a := range want {
		b := got[i]
		if a.Name != b.Name || a.Column != b.Column || !a.Type.Equal(b.Type) {
			return errs.ForAttribute(errs.ErrKindInvalidDefinition, sub.Model(), b.Name,
				fmt.Sprintf("position %d must be %s.%s (%s)", i, base.Model(), a.Name, a.Type))
		}
	}
	return nil
}

// --- Accessors ---

func (m *Model) Name() string { return m.def.Model() }

func (m *Model) Definition() *schema.Definition { return m.def }

func (m *Model) Caster() *cast.Caster { return m.caster }

// Table is the physical table; subtypes share their base table.
func (m *Model) Table() string { return m.def.Table() }

// Columns lists the persisted columns in row order.
func (m *Model) Columns() []string { return m.def.Columns() }

// STI is the discriminator value of a subtype, "" for a base model.
func (m *Model) STI() string { return m.stiValue }

// Parent is the model a subtype was registered on.
func (m *Model) Parent() *Model { return m.parent }

// Root is the base of the inheritance tree, m itself without one.
func (m *Model) Root() *Model {
	if m.sti == nil {
		return m
	}
	return m.sti.root
}

// Subtypes lists every model registered in m's inheritance tree, ordered
// by discriminator value.
func (m *Model) Subtypes() []*Model {
	if m.sti == nil {
		return nil
	}
	keys := make([]string, 0, len(m.sti.types))
	for k := range m.sti.types {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*Model, len(keys))
	for i, k := range keys {
		out[i] = m.sti.types[k]
	}
	return out
}

// --- Construction ---

// New returns an empty record with defaults applied. Defaults do not count
// as changes.
func (m *Model) New() *Record {
	r := &Record{model: m, store: NewStore(m.def)}
	for _, a := range m.def.Attributes() {
		switch {
		case a.Default == nil:
		case a.Virtual:
			r.store.SetVirtual(a.Name, a.Default.Resolve())
		default:
			r.store.load(a.Name, m.defaultValue(a))
		}
	}
	return r
}

// defaultValue resolves and casts the default of a. Literal defaults are
// checked by NewModel; an expression that stops fitting its attribute is a
// definition bug.
func (m *Model) defaultValue(a schema.Attribute) any {
	v, err := m.caster.Cast(m.Name(), a, value.FromAny(a.Default.Resolve()), cast.OriginInput)
	if err != nil {
		panic(fmt.Sprintf("record: default of %s.%s: %v", m.Name(), a.Name, err))
	}
	return v
}

// FromMap builds a record from caller input. Unknown keys are rejected;
// every supplied attribute is marked changed.
func (m *Model) FromMap(in map[string]any) (*Record, error) {
	return From(m, in)
}

// From is FromMap for any string-like key, e.g. schema.Name.
func From[K ~string](m *Model, in map[K]any) (*Record, error) {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := m.def.Attribute(k); !ok {
			return nil, errs.ForAttribute(errs.ErrKindUnknownAttribute, m.Name(), k, "attribute is not declared")
		}
	}

	r := m.New()
	for _, a := range m.def.Attributes() {
		v, ok := in[K(a.Name)]
		if !ok {
			continue
		}
		if err := r.Set(a.Name, v); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// FromStruct builds a record from the exported fields of a struct (or a
// pointer to one). The field name is the attribute name unless a
// `rowmap:"name"` tag says otherwise; `rowmap:"-"` skips the field.
func (m *Model) FromStruct(v any) (*Record, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, errs.New(errs.ErrKindInvalidInput, m.Name()+": nil struct")
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "%s: %T is not a struct", m.Name(), v)
	}

	in := make(map[string]any, rv.NumField())
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("rowmap"); ok {
			if tag == "-" {
				continue
			}
			name, _, _ = strings.Cut(tag, ",")
		}
		in[name] = rv.Field(i).Interface()
	}
	return m.FromMap(in)
}

// LoadOption configures row materialization.
type LoadOption func(*loadConfig)

type loadConfig struct {
	query string
}

// WithQuery attaches the statement that produced the row to any error.
func WithQuery(sql string) LoadOption {
	return func(c *loadConfig) {
		c.query = sql
	}
}

// FromRow consumes exactly one value per persisted attribute, in column
// order. The resulting record is clean and persisted.
func (m *Model) FromRow(row *value.Reader, opts ...LoadOption) (*Record, error) {
	var cfg loadConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &Record{model: m, store: NewStore(m.def), persisted: true}
	for _, a := range m.def.Persisted() {
		in, err := row.Read()
		if err != nil {
			e := errs.ForAttribute(errs.ErrKindDataTypeMismatch, m.Name(), a.Name,
				fmt.Sprintf("row has no value for column %q", a.Column))
			e.Cause = err
			return nil, errs.WithQuery(e, cfg.query)
		}
		v, err := m.caster.Cast(m.Name(), a, in, cast.OriginRow)
		if err != nil {
			return nil, errs.WithQuery(err, cfg.query)
		}
		r.store.load(a.Name, v)
	}
	return r, nil
}

// Resolve picks the model for a discriminator value: null or blank selects
// the base model, a registered value its subtype. Models without a
// discriminator resolve to themselves.
func (m *Model) Resolve(discriminator value.Value) (*Model, error) {
	if m.sti == nil {
		return m, nil
	}
	if discriminator.IsNull() {
		return m.sti.root, nil
	}
	s, ok := discriminator.Text()
	if !ok {
		return nil, errs.ForAttribute(errs.ErrKindDataTypeMismatch, m.sti.root.Name(), m.sti.attr,
			fmt.Sprintf("cannot cast %s to string", discriminator.Shape()))
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return m.sti.root, nil
	}
	sub, ok := m.sti.types[s]
	if !ok {
		return nil, errs.ForAttribute(errs.ErrKindUnknownSTIType, m.sti.root.Name(), m.sti.attr,
			fmt.Sprintf("no subtype registered for %q", s))
	}
	return sub, nil
}

// Load dispatches on the discriminator, peeked at its column position
// without consuming anything, then materializes the row with the selected
// model. Rows laid out for a subtype must therefore start with the base
// columns.
func (m *Model) Load(row *value.Reader, opts ...LoadOption) (*Record, error) {
	if m.sti == nil {
		return m.FromRow(row, opts...)
	}

	var cfg loadConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	disc, err := row.Peek(m.sti.index)
	if err != nil {
		e := errs.ForAttribute(errs.ErrKindDataTypeMismatch, m.sti.root.Name(), m.sti.attr, "row has no discriminator column")
		e.Cause = err
		return nil, errs.WithQuery(e, cfg.query)
	}
	target, err := m.Resolve(disc)
	if err != nil {
		return nil, errs.WithQuery(err, cfg.query)
	}
	return target.FromRow(row, opts...)
}

// Wire encodes statement arguments: each value goes through the converter
// of the attribute that owns its column.
func (m *Model) Wire(columns []string, values []any) ([]any, error) {
	if len(columns) != len(values) {
		return nil, errs.New(errs.ErrKindInvalidInput,
			fmt.Sprintf("%s: %d columns but %d values", m.Name(), len(columns), len(values)))
	}
	out := make([]any, len(values))
	for i, col := range columns {
		a, ok := m.def.ByColumn(col)
		if !ok {
			return nil, errs.ForAttribute(errs.ErrKindUnknownAttribute, m.Name(), col, "column is not mapped")
		}
		v, err := m.caster.Encode(m.Name(), a, values[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
