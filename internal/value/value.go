// Package value defines the closed set of wire shapes a row reader or a
// generic key-value input can hand to the caster.
//
// Every value coming from a driver or a caller is normalised into a Value
// before casting, so the caster can switch exhaustively on Kind instead of
// type-asserting on whatever a driver happened to return. Shapes the package
// does not recognise become KindNative and are only castable through a
// registered converter.
package value

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"time"
)

// Kind is the runtime shape of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindString
	KindBool
	KindTime
	KindBytes
	KindJSON
	KindSeq
	KindNative
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindBytes:
		return "bytes"
	case KindJSON:
		return "json"
	case KindSeq:
		return "seq"
	case KindNative:
		return "native"
	default:
		return "unknown"
	}
}

// Value is an immutable tagged value. The zero Value is null.
type Value struct {
	kind Kind

	i        int64
	u        uint64
	unsigned bool // integer stored in u

	f   float64
	s   string
	b   bool
	t   time.Time
	raw []byte
	seq []Value
	any any // JSON document or native driver value
}

// --- Constructors ---

func Null() Value { return Value{} }

func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Uint keeps unsigned integers above math.MaxInt64 exact.
func Uint(u uint64) Value {
	if u <= math.MaxInt64 {
		return Value{kind: KindInt, i: int64(u)}
	}
	return Value{kind: KindInt, u: u, unsigned: true}
}

func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

func String(s string) Value { return Value{kind: KindString, s: s} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func Time(t time.Time) Value { return Value{kind: KindTime, t: t} }

// Bytes copies b; the Value never aliases caller memory.
func Bytes(b []byte) Value {
	if b == nil {
		return Value{kind: KindBytes, raw: []byte{}}
	}
	return Value{kind: KindBytes, raw: append([]byte(nil), b...)}
}

// JSON wraps an already-decoded JSON document (map, slice or scalar).
func JSON(doc any) Value { return Value{kind: KindJSON, any: doc} }

func Seq(elems ...Value) Value {
	return Value{kind: KindSeq, seq: append([]Value(nil), elems...)}
}

// Native wraps a driver value the package has no dedicated shape for,
// e.g. pgtype.Numeric. A nil v is null.
func Native(v any) Value {
	if v == nil {
		return Null()
	}
	return Value{kind: KindNative, any: v}
}

// --- Accessors ---

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// Int64 returns the integer, ok is false for non-integers and for unsigned
// values that do not fit.
func (v Value) Int64() (int64, bool) {
	if v.kind != KindInt || v.unsigned {
		return 0, false
	}
	return v.i, true
}

// Uint64 returns the integer, ok is false for non-integers and negatives.
func (v Value) Uint64() (uint64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	if v.unsigned {
		return v.u, true
	}
	if v.i < 0 {
		return 0, false
	}
	return uint64(v.i), true
}

func (v Value) Float64() (float64, bool) {
	if v.kind != KindFloat {
		return 0, false
	}
	return v.f, true
}

func (v Value) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

func (v Value) Boolean() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) Timestamp() (time.Time, bool) {
	if v.kind != KindTime {
		return time.Time{}, false
	}
	return v.t, true
}

// ByteSlice returns a copy of the bytes.
func (v Value) ByteSlice() ([]byte, bool) {
	if v.kind != KindBytes {
		return nil, false
	}
	return append([]byte(nil), v.raw...), true
}

func (v Value) Document() (any, bool) {
	if v.kind != KindJSON {
		return nil, false
	}
	return v.any, true
}

func (v Value) Elems() ([]Value, bool) {
	if v.kind != KindSeq {
		return nil, false
	}
	return append([]Value(nil), v.seq...), true
}

func (v Value) NativeValue() (any, bool) {
	if v.kind != KindNative {
		return nil, false
	}
	return v.any, true
}

// Text returns the value as text when it is a string or bytes.
func (v Value) Text() (string, bool) {
	switch v.kind {
	case KindString:
		return v.s, true
	case KindBytes:
		return string(v.raw), true
	default:
		return "", false
	}
}

// Shape names the runtime shape for error messages; native values include
// their Go type.
func (v Value) Shape() string {
	if v.kind == KindNative {
		return fmt.Sprintf("native(%T)", v.any)
	}
	return v.kind.String()
}

// Interface converts the value back into plain Go values
// (int64/uint64, float64, string, bool, time.Time, []byte, []any, …).
func (v Value) Interface() any {
	switch v.kind {
	case KindInt:
		if v.unsigned {
			return v.u
		}
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindBool:
		return v.b
	case KindTime:
		return v.t
	case KindBytes:
		return append([]byte(nil), v.raw...)
	case KindJSON, KindNative:
		return v.any
	case KindSeq:
		out := make([]any, len(v.seq))
		for i, e := range v.seq {
			out[i] = e.Interface()
		}
		return out
	default:
		return nil
	}
}

func (v Value) String() string {
	if v.kind == KindNull {
		return "null"
	}
	return fmt.Sprintf("%s(%v)", v.kind, v.Interface())
}

// FromAny normalises a Go or driver value. Pointers are dereferenced (nil
// is null), database/sql Null* wrappers are unwrapped, slices other than
// []byte become sequences, and anything unrecognised becomes native.
func FromAny(in any) Value {
	switch x := in.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case int:
		return Int(int64(x))
	case int8:
		return Int(int64(x))
	case int16:
		return Int(int64(x))
	case int32:
		return Int(int64(x))
	case int64:
		return Int(x)
	case uint:
		return Uint(uint64(x))
	case uint8:
		return Uint(uint64(x))
	case uint16:
		return Uint(uint64(x))
	case uint32:
		return Uint(uint64(x))
	case uint64:
		return Uint(x)
	case float32:
		return Float(float64(x))
	case float64:
		return Float(x)
	case string:
		return String(x)
	case bool:
		return Bool(x)
	case time.Time:
		return Time(x)
	case []byte:
		return Bytes(x)
	case json.RawMessage:
		var doc any
		if err := json.Unmarshal(x, &doc); err != nil {
			return Bytes(x)
		}
		return JSON(doc)
	case map[string]any:
		return JSON(x)
	case []any:
		elems := make([]Value, len(x))
		for i, e := range x {
			elems[i] = FromAny(e)
		}
		return Value{kind: KindSeq, seq: elems}
	case sql.NullString:
		return nullable(x.Valid, x.String)
	case sql.NullInt64:
		return nullable(x.Valid, x.Int64)
	case sql.NullInt32:
		return nullable(x.Valid, x.Int32)
	case sql.NullInt16:
		return nullable(x.Valid, x.Int16)
	case sql.NullByte:
		return nullable(x.Valid, x.Byte)
	case sql.NullFloat64:
		return nullable(x.Valid, x.Float64)
	case sql.NullBool:
		return nullable(x.Valid, x.Bool)
	case sql.NullTime:
		return nullable(x.Valid, x.Time)
	}

	rv := reflect.ValueOf(in)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return Null()
		}
		return FromAny(rv.Elem().Interface())
	case reflect.Slice:
		if rv.IsNil() {
			return Null()
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return Bytes(rv.Bytes())
		}
		elems := make([]Value, rv.Len())
		for i := range elems {
			elems[i] = FromAny(rv.Index(i).Interface())
		}
		return Value{kind: KindSeq, seq: elems}
	// Named types over a basic kind (type Status string, time.Duration)
	// take the shape of their underlying kind.
	case reflect.String:
		return String(rv.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Uint(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float())
	case reflect.Bool:
		return Bool(rv.Bool())
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		if rv.IsNil() {
			return Null()
		}
		doc := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			doc[iter.Key().String()] = iter.Value().Interface()
		}
		return JSON(doc)
	}
	return Native(in)
}

func nullable(valid bool, v any) Value {
	if !valid {
		return Null()
	}
	return FromAny(v)
}
