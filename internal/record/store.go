package record

import (
	"reflect"

	"github.com/koustreak/rowmap/internal/errs"
	"github.com/koustreak/rowmap/internal/schema"
)

// Store holds the typed attribute values of one record and the set of
// attributes written since the last clean boundary.
//
// An attribute missing from values is unset; one present with a nil value
// holds null. Virtual attributes, declared or not, live in a side channel
// that diffing and projections never see.
//
// A Store is owned by a single record and is not safe for concurrent
// mutation.
type Store struct {
	def     *schema.Definition
	values  map[string]any
	changed map[string]struct{}
	virtual map[string]any
}

// NewStore returns an empty store for def.
func NewStore(def *schema.Definition) *Store {
	return &Store{
		def:     def,
		values:  make(map[string]any, def.FieldCount()),
		changed: make(map[string]struct{}),
	}
}

func (s *Store) persisted(name string) (schema.Attribute, error) {
	a, ok := s.def.Attribute(name)
	if !ok {
		return schema.Attribute{}, errs.ForAttribute(errs.ErrKindUnknownAttribute, s.def.Model(), name, "attribute is not declared")
	}
	return a, nil
}

// Get returns the value of name and whether it is set.
func (s *Store) Get(name string) (any, bool, error) {
	a, err := s.persisted(name)
	if err != nil {
		return nil, false, err
	}
	if a.Virtual {
		v, ok := s.Virtual(name)
		return v, ok, nil
	}
	v, ok := s.values[name]
	return detach(v), ok, nil
}

// Set stores v and marks name changed. v must already have the attribute's
// Go type; casting is the caller's job. Declared virtual attributes go to
// the side channel and are never marked.
func (s *Store) Set(name string, v any) error {
	a, err := s.persisted(name)
	if err != nil {
		return err
	}
	if a.Virtual {
		s.SetVirtual(name, v)
		return nil
	}
	s.values[name] = detach(v)
	s.changed[name] = struct{}{}
	return nil
}

// load stores v without marking it changed.
func (s *Store) load(name string, v any) {
	s.values[name] = detach(v)
}

// IsSet reports whether name holds a value, null included.
func (s *Store) IsSet(name string) bool {
	_, ok := s.values[name]
	return ok
}

func (s *Store) IsChanged(name string) bool {
	_, ok := s.changed[name]
	return ok
}

// Changed lists the changed attributes in declaration order.
func (s *Store) Changed() []string {
	if len(s.changed) == 0 {
		return nil
	}
	out := make([]string, 0, len(s.changed))
	for _, a := range s.def.Attributes() {
		if s.IsChanged(a.Name) {
			out = append(out, a.Name)
		}
	}
	return out
}

// ResetChanged empties the changed set.
func (s *Store) ResetChanged() {
	clear(s.changed)
}

// SetVirtual stores a helper value outside the schema.
func (s *Store) SetVirtual(name string, v any) {
	if s.virtual == nil {
		s.virtual = make(map[string]any)
	}
	s.virtual[name] = v
}

func (s *Store) Virtual(name string) (any, bool) {
	v, ok := s.virtual[name]
	return v, ok
}

// detach copies mutable values so a store never shares memory with its
// callers.
func detach(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		if x == nil {
			return x
		}
		return append([]byte(nil), x...)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = detach(e)
		}
		return out
	case []any:
		if x == nil {
			return x
		}
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = detach(e)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice || rv.IsNil() {
		return v
	}
	out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
	for i := 0; i < rv.Len(); i++ {
		e := rv.Index(i)
		if c := detach(e.Interface()); c != nil {
			out.Index(i).Set(reflect.ValueOf(c))
		}
	}
	return out.Interface()
}
