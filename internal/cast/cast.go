// Package cast converts dynamic values into the declared type of an
// attribute.
//
// A cast either yields a value of exactly the attribute's Go type or fails
// with an *errs.Error naming the model, the attribute, the source shape and
// the target type. Values read from storage fail with DataTypeMismatch;
// caller-supplied values fail with DataTypeCasting.
//
// Go types produced per semantic kind:
//
//	int8 … int64, uint8 … uint64, float32, float64   same-named Go type
//	string, bool, time                               string, bool, time.Time
//	bytes                                            []byte (never aliased)
//	json                                             any (decoded document)
//	array(T)                                         []T, []any for json/custom T
//	custom                                           whatever the converter decodes
package cast

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sync"
	"time"

	"github.com/koustreak/rowmap/internal/errs"
	"github.com/koustreak/rowmap/internal/schema"
	"github.com/koustreak/rowmap/internal/value"
)

// Origin tells where a value comes from; it only selects the error kind.
type Origin int

const (
	// OriginRow is a value read from a result set.
	OriginRow Origin = iota
	// OriginInput is a value supplied by the caller (maps, setters).
	OriginInput
)

func (o Origin) String() string {
	if o == OriginRow {
		return "row"
	}
	return "input"
}

func (o Origin) kind() errs.ErrKind {
	if o == OriginRow {
		return errs.ErrKindDataTypeMismatch
	}
	return errs.ErrKindDataTypeCasting
}

var (
	errShape    = errors.New("shape mismatch")
	errNull     = errors.New("null value")
	errRange    = errors.New("value out of range")
	errFraction = errors.New("value has a fractional part")
)

// Caster holds the converter registry. The zero value is not usable; call
// New. Register during startup; Cast is safe for concurrent use.
type Caster struct {
	mu         sync.RWMutex
	converters map[string]Converter
}

// New returns a caster with the built-in decimal and uuid converters.
func New() *Caster {
	c := &Caster{converters: make(map[string]Converter)}
	_ = c.Register(Decimal())
	_ = c.Register(UUID())
	return c
}

var defaultCaster = New()

// Default is the process-wide caster used when a model does not bring its
// own.
func Default() *Caster { return defaultCaster }

// Register adds conv. Names are unique.
func (c *Caster) Register(conv Converter) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.converters[conv.Name()]; dup {
		return errs.Newf(errs.ErrKindInvalidDefinition, "converter %q is already registered", conv.Name())
	}
	c.converters[conv.Name()] = conv
	return nil
}

// Lookup returns the converter registered under name.
func (c *Caster) Lookup(name string) (Converter, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	conv, ok := c.converters[name]
	return conv, ok
}

func (c *Caster) converterFor(model string, attr schema.Attribute) (Converter, error) {
	name := attr.ConverterName()
	if name == "" {
		return nil, nil
	}
	conv, ok := c.Lookup(name)
	if !ok {
		return nil, errs.ForAttribute(errs.ErrKindInvalidDefinition, model, attr.Name,
			fmt.Sprintf("converter %q is not registered", name))
	}
	return conv, nil
}

// Check verifies that every converter attr needs is registered.
func (c *Caster) Check(model string, attr schema.Attribute) error {
	_, err := c.converterFor(model, attr)
	return err
}

// Cast converts in to the Go type of attr. The cast is atomic: on error
// nothing is returned.
func (c *Caster) Cast(model string, attr schema.Attribute, in value.Value, origin Origin) (any, error) {
	conv, err := c.converterFor(model, attr)
	if err != nil {
		return nil, err
	}

	if in.IsNull() {
		if attr.Nullable {
			return nil, nil
		}
		return nil, failure(model, attr, in, origin, nil)
	}

	out, err := c.convert(attr.Type, conv, in)
	if err == nil && out == nil && !attr.Nullable {
		err = errNull
	}
	if err != nil {
		return nil, failure(model, attr, in, origin, err)
	}
	return out, nil
}

func failure(model string, attr schema.Attribute, in value.Value, origin Origin, cause error) error {
	e := errs.ForAttribute(origin.kind(), model, attr.Name,
		fmt.Sprintf("cannot cast %s to %s", in.Shape(), attr.Type.Signature(attr.Nullable)))
	if cause != nil && cause != errShape {
		e.Cause = cause
	}
	return e
}

func (c *Caster) convert(t schema.Type, conv Converter, in value.Value) (any, error) {
	if t.Kind == schema.KindArray {
		return c.convertArray(t, conv, in)
	}

	if conv != nil && conv.Accepts(in.Kind()) {
		out, err := conv.Decode(in)
		if err != nil || out == nil || t.Kind == schema.KindCustom {
			return out, err
		}
		// The decoded value still has to fit the declared kind.
		return castScalar(t, value.FromAny(out))
	}
	if t.Kind == schema.KindCustom {
		return nil, errShape
	}
	return castScalar(t, in)
}

func (c *Caster) convertArray(t schema.Type, conv Converter, in value.Value) (any, error) {
	elems, err := sequence(in)
	if err != nil {
		return nil, err
	}

	out := reflect.MakeSlice(reflect.SliceOf(goType(*t.Elem)), len(elems), len(elems))
	for i, e := range elems {
		if e.IsNull() {
			return nil, fmt.Errorf("element %d: %w", i, errNull)
		}
		v, err := c.convert(*t.Elem, conv, e)
		if err != nil {
			return nil, fmt.Errorf("element %d (%s): %w", i, e.Shape(), err)
		}
		if v == nil {
			return nil, fmt.Errorf("element %d: %w", i, errNull)
		}
		out.Index(i).Set(reflect.ValueOf(v))
	}
	return out.Interface(), nil
}

// sequence accepts native sequences and JSON arrays, decoded or as text.
func sequence(in value.Value) ([]value.Value, error) {
	switch in.Kind() {
	case value.KindSeq:
		elems, _ := in.Elems()
		return elems, nil
	case value.KindJSON:
		doc, _ := in.Document()
		if arr, ok := doc.([]any); ok {
			return toValues(arr), nil
		}
	case value.KindString, value.KindBytes:
		text, _ := in.Text()
		var arr []any
		if err := json.Unmarshal([]byte(text), &arr); err != nil {
			return nil, err
		}
		return toValues(arr), nil
	}
	return nil, errShape
}

func toValues(arr []any) []value.Value {
	out := make([]value.Value, len(arr))
	for i, a := range arr {
		out[i] = value.FromAny(a)
	}
	return out
}

var anyType = reflect.TypeOf((*any)(nil)).Elem()

func goType(t schema.Type) reflect.Type {
	switch t.Kind {
	case schema.KindInt8:
		return reflect.TypeOf(int8(0))
	case schema.KindInt16:
		return reflect.TypeOf(int16(0))
	case schema.KindInt32:
		return reflect.TypeOf(int32(0))
	case schema.KindInt64:
		return reflect.TypeOf(int64(0))
	case schema.KindUint8:
		return reflect.TypeOf(uint8(0))
	case schema.KindUint16:
		return reflect.TypeOf(uint16(0))
	case schema.KindUint32:
		return reflect.TypeOf(uint32(0))
	case schema.KindUint64:
		return reflect.TypeOf(uint64(0))
	case schema.KindFloat32:
		return reflect.TypeOf(float32(0))
	case schema.KindFloat64:
		return reflect.TypeOf(float64(0))
	case schema.KindString:
		return reflect.TypeOf("")
	case schema.KindBool:
		return reflect.TypeOf(false)
	case schema.KindTime:
		return reflect.TypeOf(time.Time{})
	case schema.KindBytes:
		return reflect.TypeOf([]byte(nil))
	case schema.KindArray:
		return reflect.SliceOf(goType(*t.Elem))
	default:
		return anyType
	}
}

func castScalar(t schema.Type, in value.Value) (any, error) {
	if in.IsNull() {
		return nil, errNull
	}

	k := t.Kind
	switch {
	case k.IsSigned():
		i, err := toSigned(in, k.Bits())
		if err != nil {
			return nil, err
		}
		switch k {
		case schema.KindInt8:
			return int8(i), nil
		case schema.KindInt16:
			return int16(i), nil
		case schema.KindInt32:
			return int32(i), nil
		default:
			return i, nil
		}

	case k.IsUnsigned():
		u, err := toUnsigned(in, k.Bits())
		if err != nil {
			return nil, err
		}
		switch k {
		case schema.KindUint8:
			return uint8(u), nil
		case schema.KindUint16:
			return uint16(u), nil
		case schema.KindUint32:
			return uint32(u), nil
		default:
			return u, nil
		}

	case k.IsFloat():
		f, err := toFloat(in)
		if err != nil {
			return nil, err
		}
		if k == schema.KindFloat32 {
			if math.Abs(f) > math.MaxFloat32 && !math.IsInf(f, 0) {
				return nil, errRange
			}
			return float32(f), nil
		}
		return f, nil
	}

	switch k {
	case schema.KindString:
		if s, ok := in.Text(); ok {
			return s, nil
		}
	case schema.KindBool:
		if b, ok := in.Boolean(); ok {
			return b, nil
		}
		// MySQL reports BOOL columns as TINYINT(1).
		if i, ok := in.Int64(); ok {
			switch i {
			case 0:
				return false, nil
			case 1:
				return true, nil
			}
			return nil, errRange
		}
	case schema.KindTime:
		if ts, ok := in.Timestamp(); ok {
			return ts, nil
		}
	case schema.KindBytes:
		if b, ok := in.ByteSlice(); ok {
			return b, nil
		}
		if s, ok := in.Str(); ok {
			return []byte(s), nil
		}
	case schema.KindJSON:
		return toJSON(in)
	}
	return nil, errShape
}

func toSigned(in value.Value, bits int) (int64, error) {
	var i int64
	switch in.Kind() {
	case value.KindInt:
		n, ok := in.Int64()
		if !ok {
			return 0, errRange
		}
		i = n
	case value.KindFloat:
		f, _ := in.Float64()
		if err := integral(f); err != nil {
			return 0, err
		}
		if f < math.MinInt64 || f >= float64(1<<63) {
			return 0, errRange
		}
		i = int64(f)
	default:
		return 0, errShape
	}

	lo := int64(math.MinInt64) >> (64 - bits)
	hi := int64(math.MaxInt64) >> (64 - bits)
	if i < lo || i > hi {
		return 0, errRange
	}
	return i, nil
}

func toUnsigned(in value.Value, bits int) (uint64, error) {
	var u uint64
	switch in.Kind() {
	case value.KindInt:
		n, ok := in.Uint64()
		if !ok {
			return 0, errRange
		}
		u = n
	case value.KindFloat:
		f, _ := in.Float64()
		if err := integral(f); err != nil {
			return 0, err
		}
		if f < 0 || f >= float64(1<<64) {
			return 0, errRange
		}
		u = uint64(f)
	default:
		return 0, errShape
	}

	if u > uint64(math.MaxUint64)>>(64-bits) {
		return 0, errRange
	}
	return u, nil
}

func integral(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return errRange
	}
	if f != math.Trunc(f) {
		return errFraction
	}
	return nil
}

func toFloat(in value.Value) (float64, error) {
	switch in.Kind() {
	case value.KindFloat:
		f, _ := in.Float64()
		return f, nil
	case value.KindInt:
		if i, ok := in.Int64(); ok {
			return float64(i), nil
		}
		u, _ := in.Uint64()
		return float64(u), nil
	}
	return 0, errShape
}

// toJSON accepts decoded documents, JSON text and plain scalars. Text that
// is not valid JSON is taken as a JSON string when it arrives as a string
// and rejected when it arrives as bytes.
func toJSON(in value.Value) (any, error) {
	switch in.Kind() {
	case value.KindJSON:
		doc, _ := in.Document()
		return doc, nil
	case value.KindBytes:
		b, _ := in.ByteSlice()
		var doc any
		if err := json.Unmarshal(b, &doc); err != nil {
			return nil, err
		}
		return doc, nil
	case value.KindString:
		s, _ := in.Str()
		var doc any
		if err := json.Unmarshal([]byte(s), &doc); err != nil {
			return s, nil
		}
		return doc, nil
	case value.KindInt, value.KindFloat, value.KindBool, value.KindSeq, value.KindTime:
		return in.Interface(), nil
	}
	return nil, errShape
}

// Encode turns a typed attribute value into a statement argument: values
// with a converter go through it, JSON documents are rendered as text,
// everything else passes unchanged.
func (c *Caster) Encode(model string, attr schema.Attribute, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	conv, err := c.converterFor(model, attr)
	if err != nil {
		return nil, err
	}

	out, err := encode(attr.Type, conv, v)
	if err != nil {
		return nil, errs.ForAttribute(errs.ErrKindInvalidInput, model, attr.Name, "cannot encode value: "+err.Error())
	}
	return out, nil
}

func encode(t schema.Type, conv Converter, v any) (any, error) {
	switch {
	case t.Kind == schema.KindArray && conv != nil:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice {
			return nil, fmt.Errorf("%T is not a slice", v)
		}
		out := make([]any, rv.Len())
		for i := range out {
			e, err := encode(*t.Elem, conv, rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = e
		}
		return out, nil
	case conv != nil:
		return conv.Encode(v)
	case t.Kind == schema.KindJSON:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
	return v, nil
}
