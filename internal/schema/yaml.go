package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/koustreak/rowmap/internal/errs"
	"go.yaml.in/yaml/v3"
)

// Document is one schema file. A stream may hold several documents
// separated by "---".
//
//	models:
//	  - name: Timestamps
//	    fragment: true
//	    attributes:
//	      - {name: created_at, type: time, default_expr: now}
//	  - name: Vehicle
//	    discriminator: type
//	    mixins: [Timestamps]
//	    attributes:
//	      - {name: id, type: int64, primary: true, auto: true}
//	      - {name: type, type: string, nullable: true}
//	  - name: Car
//	    inherits: Vehicle
//	    sti: car
//	    attributes:
//	      - {name: doors, type: int16, nullable: true}
type Document struct {
	Models []ModelDoc `yaml:"models"`
}

// ModelDoc declares a model or, with Fragment set, a mixin.
type ModelDoc struct {
	Name          string         `yaml:"name"`
	Fragment      bool           `yaml:"fragment,omitempty"`
	Table         string         `yaml:"table,omitempty"`
	Discriminator string         `yaml:"discriminator,omitempty"`
	Inherits      string         `yaml:"inherits,omitempty"`
	STI           string         `yaml:"sti,omitempty"`
	Mixins        []string       `yaml:"mixins,omitempty"`
	Attributes    []AttributeDoc `yaml:"attributes"`
}

// AttributeDoc is the document form of an Attribute.
type AttributeDoc struct {
	Name        string `yaml:"name"`
	Column      string `yaml:"column,omitempty"`
	Type        string `yaml:"type"`
	Nullable    bool   `yaml:"nullable,omitempty"`
	Primary     bool   `yaml:"primary,omitempty"`
	Auto        bool   `yaml:"auto,omitempty"`
	Converter   string `yaml:"converter,omitempty"`
	Virtual     bool   `yaml:"virtual,omitempty"`
	Default     any    `yaml:"default,omitempty"`
	DefaultExpr string `yaml:"default_expr,omitempty"`
}

func (a AttributeDoc) attribute() (Attribute, error) {
	typ, err := ParseType(a.Type)
	if err != nil {
		return Attribute{}, err
	}
	out := Attribute{
		Name:          a.Name,
		Column:        a.Column,
		Type:          typ,
		Nullable:      a.Nullable,
		Primary:       a.Primary,
		AutoGenerated: a.Auto,
		Converter:     a.Converter,
		Virtual:       a.Virtual,
	}
	switch {
	case a.DefaultExpr != "" && a.Default != nil:
		return Attribute{}, fmt.Errorf("default and default_expr are mutually exclusive")
	case a.DefaultExpr != "":
		def, ok := LookupExpr(a.DefaultExpr)
		if !ok {
			return Attribute{}, fmt.Errorf("unknown default expression %q", a.DefaultExpr)
		}
		out.Default = def
	case a.Default != nil:
		out.Default = Literal(a.Default)
	}
	return out, nil
}

// Declared is a composed model together with its inheritance link.
type Declared struct {
	Definition *Definition
	// Inherits names the STI base model, or "".
	Inherits string
	// STI is the discriminator value selecting this model; it defaults to
	// the model name.
	STI string
}

// Catalog collects model and fragment declarations from any number of
// documents. Declarations may reference each other regardless of the order
// or the file they appear in.
type Catalog struct {
	docs  []ModelDoc
	index map[string]int
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{index: make(map[string]int)}
}

// Add appends the declarations of doc. Names must be unique across the
// catalog.
func (c *Catalog) Add(doc Document) error {
	for _, m := range doc.Models {
		if m.Name == "" {
			return errs.New(errs.ErrKindInvalidDefinition, "schema document: model without a name")
		}
		if _, dup := c.index[m.Name]; dup {
			return errs.Newf(errs.ErrKindInvalidDefinition, "schema document: %q declared twice", m.Name)
		}
		c.index[m.Name] = len(c.docs)
		c.docs = append(c.docs, m)
	}
	return nil
}

// Len is the number of declarations, fragments included.
func (c *Catalog) Len() int { return len(c.docs) }

// Definitions composes every non-fragment declaration, in the order they
// were added. Mixins and the inherited base are merged before the model's
// own attributes.
func (c *Catalog) Definitions() ([]Declared, error) {
	built := make(map[string]*Definition, len(c.docs))
	visiting := make(map[string]bool)

	out := make([]Declared, 0, len(c.docs))
	for _, m := range c.docs {
		def, err := c.build(m.Name, built, visiting)
		if err != nil {
			return nil, err
		}
		if m.Fragment {
			continue
		}
		d := Declared{Definition: def, Inherits: m.Inherits}
		if m.Inherits != "" {
			d.STI = m.STI
			if d.STI == "" {
				d.STI = m.Name
			}
		}
		out = append(out, d)
	}
	return out, nil
}

func (c *Catalog) build(name string, built map[string]*Definition, visiting map[string]bool) (*Definition, error) {
	if def, ok := built[name]; ok {
		return def, nil
	}
	i, ok := c.index[name]
	if !ok {
		return nil, errs.Newf(errs.ErrKindInvalidDefinition, "schema document: %q is not declared", name)
	}
	if visiting[name] {
		return nil, errs.Newf(errs.ErrKindInvalidDefinition, "schema document: %q includes itself", name)
	}
	visiting[name] = true
	defer delete(visiting, name)

	m := c.docs[i]
	attrs := make([]Attribute, 0, len(m.Attributes))
	for _, ad := range m.Attributes {
		a, err := ad.attribute()
		if err != nil {
			return nil, errs.ForAttribute(errs.ErrKindInvalidDefinition, m.Name, ad.Name, err.Error())
		}
		attrs = append(attrs, a)
	}

	var opts []Option
	if m.Inherits != "" {
		base, err := c.build(m.Inherits, built, visiting)
		if err != nil {
			return nil, err
		}
		if base.Discriminator() == "" {
			return nil, errs.New(errs.ErrKindInvalidDefinition,
				fmt.Sprintf("schema document: %q inherits %q, which has no discriminator", m.Name, m.Inherits))
		}
		opts = append(opts, Mixin(base))
	}
	for _, mixin := range m.Mixins {
		f, err := c.build(mixin, built, visiting)
		if err != nil {
			return nil, err
		}
		opts = append(opts, Mixin(f))
	}
	opts = append(opts, Attr(attrs...))
	if m.Table != "" {
		opts = append(opts, Table(m.Table))
	}
	if m.Discriminator != "" {
		opts = append(opts, Discriminator(m.Discriminator))
	}

	var def *Definition
	if m.Fragment {
		def = Fragment(m.Name)
		for _, opt := range opts {
			opt(def)
		}
	} else {
		var err error
		if def, err = Define(m.Name, opts...); err != nil {
			return nil, err
		}
	}
	built[name] = def
	return def, nil
}

// LoadYAML reads every document in r into a new catalog.
func LoadYAML(r io.Reader) (*Catalog, error) {
	c := NewCatalog()
	if err := c.ReadYAML(r); err != nil {
		return nil, err
	}
	return c, nil
}

// ReadYAML adds every document in r to c.
func (c *Catalog) ReadYAML(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	for {
		var doc Document
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errs.Wrap(errs.ErrKindInvalidInput, "failed to decode schema document", err)
		}
		if err := c.Add(doc); err != nil {
			return err
		}
	}
}

// LoadDir reads every *.yaml and *.yml file in dir, in file-name order.
func LoadDir(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindNotFound, "failed to read schema directory "+dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !isSchemaFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	c := NewCatalog()
	for _, name := range names {
		if err := c.readFile(filepath.Join(dir, name)); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) readFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errs.Wrap(errs.ErrKindNotFound, "failed to open "+path, err)
	}
	defer f.Close()

	if err := c.ReadYAML(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func isSchemaFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// MarshalYAML renders defs as one document. Each definition is written
// flat: its mixins and base are already merged into its attributes.
func MarshalYAML(defs ...*Definition) ([]byte, error) {
	doc := Document{Models: make([]ModelDoc, 0, len(defs))}
	for _, d := range defs {
		doc.Models = append(doc.Models, d.document())
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to encode schema document", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *Definition) document() ModelDoc {
	m := ModelDoc{
		Name:          d.model,
		Discriminator: d.discriminator,
		Attributes:    make([]AttributeDoc, 0, len(d.attrs)),
	}
	if d.table != TableName(d.model) {
		m.Table = d.table
	}
	for _, a := range d.attrs {
		ad := AttributeDoc{
			Name:      a.Name,
			Type:      a.Type.String(),
			Nullable:  a.Nullable,
			Primary:   a.Primary,
			Auto:      a.AutoGenerated,
			Converter: a.Converter,
			Virtual:   a.Virtual,
		}
		if a.Column != a.Name && !a.Virtual {
			ad.Column = a.Column
		}
		if a.Default != nil {
			if a.Default.IsExpr() {
				ad.DefaultExpr = a.Default.name
			} else {
				ad.Default = a.Default.value
			}
		}
		m.Attributes = append(m.Attributes, ad)
	}
	return m
}
