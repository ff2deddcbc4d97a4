package record

import (
	"bytes"
	"encoding/json"
	"iter"
	"time"

	"github.com/rs/zerolog"

	"github.com/koustreak/rowmap/internal/schema"
)

// Projection is an ordered attribute view of a record. It holds copies of
// the record's values, so later writes to the record do not show through.
type Projection[K ~string] struct {
	keys []K
	vals []any
}

func (p Projection[K]) Len() int { return len(p.keys) }

// Keys returns the attribute names in declaration order.
func (p Projection[K]) Keys() []K { return append([]K(nil), p.keys...) }

// Values returns the values aligned with Keys.
func (p Projection[K]) Values() []any {
	out := make([]any, len(p.vals))
	for i, v := range p.vals {
		out[i] = detach(v)
	}
	return out
}

// Get returns the value projected under k.
func (p Projection[K]) Get(k K) (any, bool) {
	for i, key := range p.keys {
		if key == k {
			return detach(p.vals[i]), true
		}
	}
	return nil, false
}

// All iterates the pairs in declaration order.
func (p Projection[K]) All() iter.Seq2[K, any] {
	return func(yield func(K, any) bool) {
		for i, k := range p.keys {
			if !yield(k, detach(p.vals[i])) {
				return
			}
		}
	}
}

// MarshalJSON writes an object whose keys keep declaration order.
func (p Projection[K]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(k))
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(p.vals[i])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func project[K ~string](r *Record) Projection[K] {
	attrs := r.model.def.Persisted()
	p := Projection[K]{
		keys: make([]K, 0, len(attrs)),
		vals: make([]any, 0, len(attrs)),
	}
	for _, a := range attrs {
		p.keys = append(p.keys, K(a.Name))
		p.vals = append(p.vals, detach(r.store.values[a.Name]))
	}
	return p
}

// Named projects the persisted attributes keyed by schema.Name. Virtual
// attributes are never included.
func (r *Record) Named() Projection[schema.Name] { return project[schema.Name](r) }

// Strings is Named keyed by plain strings.
func (r *Record) Strings() Projection[string] { return project[string](r) }

// MarshalJSON encodes the string projection.
func (r *Record) MarshalJSON() ([]byte, error) {
	return r.Strings().MarshalJSON()
}

// MarshalZerologObject lets a record be attached to a log line with
// logger.Context.Object.
func (r *Record) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", r.Type())
	for k, v := range r.Strings().All() {
		switch x := v.(type) {
		case nil:
			e.Interface(k, nil)
		case string:
			e.Str(k, x)
		case bool:
			e.Bool(k, x)
		case int64:
			e.Int64(k, x)
		case float64:
			e.Float64(k, x)
		case time.Time:
			e.Time(k, x)
		case []byte:
			e.Hex(k, x)
		default:
			e.Interface(k, x)
		}
	}
}
