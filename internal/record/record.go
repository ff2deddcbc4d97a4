package record

import (
	"errors"
	"fmt"

	"github.com/koustreak/rowmap/internal/cast"
	"github.com/koustreak/rowmap/internal/errs"
	"github.com/koustreak/rowmap/internal/schema"
	"github.com/koustreak/rowmap/internal/value"
)

// Record is one instance of a model. It exclusively owns its Store; a
// Record must not be mutated from more than one goroutine.
type Record struct {
	model     *Model
	store     *Store
	persisted bool
}

func (r *Record) Model() *Model { return r.model }

// Type is the model name, the concrete subtype for STI records.
func (r *Record) Type() string { return r.model.Name() }

// Get returns the value of name; nil when the attribute is unset or null.
func (r *Record) Get(name string) (any, error) {
	v, _, err := r.store.Get(name)
	return v, err
}

// Lookup is Get that also reports whether the attribute is set.
func (r *Record) Lookup(name string) (any, bool, error) {
	return r.store.Get(name)
}

// Set casts v to the attribute's type and stores it. Any write marks the
// attribute changed, even when the value is unchanged.
func (r *Record) Set(name string, v any) error {
	a, ok := r.model.def.Attribute(name)
	if !ok {
		return errs.ForAttribute(errs.ErrKindUnknownAttribute, r.model.Name(), name, "attribute is not declared")
	}
	if a.Virtual {
		r.store.SetVirtual(name, v)
		return nil
	}
	typed, err := r.model.caster.Cast(r.model.Name(), a, value.FromAny(v), cast.OriginInput)
	if err != nil {
		return err
	}
	return r.store.Set(name, typed)
}

// Hydrate writes a storage-provided value (e.g. a generated key) without
// marking the attribute changed.
func (r *Record) Hydrate(name string, v any) error {
	a, ok := r.model.def.Attribute(name)
	if !ok || a.Virtual {
		return errs.ForAttribute(errs.ErrKindUnknownAttribute, r.model.Name(), name, "attribute is not persisted")
	}
	typed, err := r.model.caster.Cast(r.model.Name(), a, value.FromAny(v), cast.OriginRow)
	if err != nil {
		return err
	}
	r.store.load(name, typed)
	return nil
}

// IsSet reports whether name holds a value, null included.
func (r *Record) IsSet(name string) bool { return r.store.IsSet(name) }

func (r *Record) IsChanged(name string) bool { return r.store.IsChanged(name) }

// Changed lists the attributes written since the last clean boundary, in
// declaration order.
func (r *Record) Changed() []string { return r.store.Changed() }

// HasChanges reports whether any persisted attribute was written.
func (r *Record) HasChanges() bool { return len(r.store.changed) > 0 }

// ClearChanges empties the changed set.
func (r *Record) ClearChanges() { r.store.ResetChanged() }

// MarkPersisted records a successful save: the record is clean and exists
// in storage.
func (r *Record) MarkPersisted() {
	r.store.ResetChanged()
	r.persisted = true
}

// IsPersisted is true for records loaded from or saved to storage.
func (r *Record) IsPersisted() bool { return r.persisted }

// SetVirtual stores a helper value that is never diffed or projected.
func (r *Record) SetVirtual(name string, v any) { r.store.SetVirtual(name, v) }

func (r *Record) Virtual(name string) (any, bool) { return r.store.Virtual(name) }

// PrimaryKey returns the primary-key attribute and its current value.
func (r *Record) PrimaryKey() (schema.Attribute, any, bool) {
	a, ok := r.model.def.PrimaryKey()
	if !ok {
		return schema.Attribute{}, nil, false
	}
	v, _, _ := r.store.Get(a.Name)
	return a, v, true
}

// Validate runs the model's validators. A single failure is returned as
// is; several are joined.
func (r *Record) Validate() error {
	var failures []error
	for _, v := range r.model.validators {
		if err := v.Validate(r); err != nil {
			failures = append(failures, err)
		}
	}
	switch len(failures) {
	case 0:
		return nil
	case 1:
		return failures[0]
	default:
		return errors.Join(failures...)
	}
}

// As returns the value of name as T. Unset and null attributes yield the
// zero T.
func As[T any](r *Record, name string) (T, error) {
	var zero T
	v, err := r.Get(name)
	if err != nil || v == nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, errs.ForAttribute(errs.ErrKindInvalidInput, r.model.Name(), name,
			fmt.Sprintf("holds %T, not %T", v, zero))
	}
	return t, nil
}
