package schema

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Name is an attribute's logical identifier when used as a map key, the
// counterpart of a plain string column name.
type Name string

// Attribute is one declared field of a model.
type Attribute struct {
	// Name is the logical identifier used by getters, setters and projections.
	Name string
	// Column is the physical column; empty means Name.
	Column string
	Type   Type

	Nullable bool
	Default  *Default

	Primary bool
	// AutoGenerated marks a primary key populated by storage on insert.
	AutoGenerated bool

	// Converter names a registered converter. Custom types use Type.Name
	// when this is empty.
	Converter string

	// Virtual attributes have no column; they are excluded from row
	// reading, diffing and projections.
	Virtual bool
}

// ConverterName is the converter the caster should consult, or "".
func (a Attribute) ConverterName() string {
	if a.Converter != "" {
		return a.Converter
	}
	t := a.Type
	for t.Kind == KindArray && t.Elem != nil {
		t = *t.Elem
	}
	if t.Kind == KindCustom {
		return t.Name
	}
	return ""
}

// IsAutoPrimary reports whether storage generates this key on insert.
func (a Attribute) IsAutoPrimary() bool {
	return a.Primary && a.AutoGenerated
}

func (a Attribute) normalized() Attribute {
	if a.Column == "" {
		a.Column = a.Name
	}
	if a.Virtual {
		a.Column = ""
	}
	return a
}

// Default is a literal value or a deferred expression evaluated when a
// record is created.
type Default struct {
	value any
	expr  func() any
	name  string
}

// Literal returns a default that always yields v.
func Literal(v any) *Default {
	return &Default{value: v}
}

// Expr returns a default computed by fn each time it is resolved.
func Expr(name string, fn func() any) *Default {
	return &Default{expr: fn, name: name}
}

func (d *Default) Resolve() any {
	if d.expr != nil {
		return d.expr()
	}
	return d.value
}

func (d *Default) IsExpr() bool {
	return d.expr != nil
}

// Describe renders the default for metadata: the literal itself, or the
// expression name followed by "()".
func (d *Default) Describe() any {
	if d.expr != nil {
		return d.name + "()"
	}
	return d.value
}

func (d *Default) String() string {
	return fmt.Sprint(d.Describe())
}

var (
	exprMu      sync.RWMutex
	expressions = map[string]func() any{
		"now":  func() any { return time.Now().UTC() },
		"uuid": func() any { return uuid.NewString() },
	}
)

// RegisterExpr makes a named default expression available to schema
// documents (`default_expr: name`). Call during startup only.
func RegisterExpr(name string, fn func() any) {
	exprMu.Lock()
	defer exprMu.Unlock()
	expressions[name] = fn
}

// LookupExpr returns the named default expression.
func LookupExpr(name string) (*Default, bool) {
	exprMu.RLock()
	defer exprMu.RUnlock()
	fn, ok := expressions[name]
	if !ok {
		return nil, false
	}
	return Expr(name, fn), true
}

// Metadata is the read-only description of one attribute returned to
// tooling and used in error messages.
type Metadata struct {
	Name          string `json:"name"`
	Column        string `json:"column,omitempty"`
	Type          string `json:"type"`
	Signature     string `json:"signature"`
	Nullable      bool   `json:"nullable"`
	Primary       bool   `json:"primary"`
	AutoGenerated bool   `json:"auto_generated"`
	Virtual       bool   `json:"virtual,omitempty"`
	Converter     string `json:"converter,omitempty"`
	HasDefault    bool   `json:"has_default"`
	Default       any    `json:"default,omitempty"`
}

// Metadata describes a.
func (a Attribute) Metadata() Metadata {
	m := Metadata{
		Name:          a.Name,
		Column:        a.Column,
		Type:          a.Type.String(),
		Signature:     a.Type.Signature(a.Nullable),
		Nullable:      a.Nullable,
		Primary:       a.Primary,
		AutoGenerated: a.AutoGenerated,
		Virtual:       a.Virtual,
		Converter:     a.ConverterName(),
	}
	if a.Default != nil {
		m.HasDefault = true
		m.Default = a.Default.Describe()
	}
	return m
}
