package cast

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/koustreak/rowmap/internal/value"
	"github.com/shopspring/decimal"
)

// Converter is a bidirectional transform between a wire representation and
// an attribute's semantic type.
type Converter interface {
	Name() string

	// Accepts reports whether Decode understands values of kind k.
	Accepts(k value.Kind) bool

	// Decode turns a wire value into the semantic value.
	Decode(in value.Value) (any, error)

	// Encode turns a semantic value back into a statement argument.
	Encode(v any) (any, error)
}

type funcConverter struct {
	name    string
	accepts map[value.Kind]bool
	decode  func(value.Value) (any, error)
	encode  func(any) (any, error)
}

// NewConverter builds a Converter from plain functions. A nil encode
// passes values through unchanged.
func NewConverter(name string, accepts []value.Kind, decode func(value.Value) (any, error), encode func(any) (any, error)) Converter {
	set := make(map[value.Kind]bool, len(accepts))
	for _, k := range accepts {
		set[k] = true
	}
	if encode == nil {
		encode = func(v any) (any, error) { return v, nil }
	}
	return &funcConverter{name: name, accepts: set, decode: decode, encode: encode}
}

func (c *funcConverter) Name() string                       { return c.name }
func (c *funcConverter) Accepts(k value.Kind) bool          { return c.accepts[k] }
func (c *funcConverter) Decode(in value.Value) (any, error) { return c.decode(in) }
func (c *funcConverter) Encode(v any) (any, error)          { return c.encode(v) }

// --- decimal ---

// Decimal normalises fixed-point wire values (pgtype.Numeric from pgx,
// DECIMAL text from MySQL, decimal.Decimal from callers) to float64 and
// encodes floats back as exact decimal text.
func Decimal() Converter {
	return NewConverter("decimal",
		[]value.Kind{value.KindNative, value.KindString, value.KindBytes, value.KindInt, value.KindFloat},
		decodeDecimal,
		encodeDecimal,
	)
}

func decodeDecimal(in value.Value) (any, error) {
	switch in.Kind() {
	case value.KindInt:
		if i, ok := in.Int64(); ok {
			return float64(i), nil
		}
		u, _ := in.Uint64()
		return float64(u), nil
	case value.KindFloat:
		f, _ := in.Float64()
		return f, nil
	case value.KindString, value.KindBytes:
		s, _ := in.Text()
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, err
		}
		return d.InexactFloat64(), nil
	}

	native, _ := in.NativeValue()
	switch n := native.(type) {
	case pgtype.Numeric:
		if !n.Valid {
			return nil, nil
		}
		f, err := n.Float64Value()
		if err != nil {
			return nil, err
		}
		return f.Float64, nil
	case decimal.Decimal:
		return n.InexactFloat64(), nil
	case decimal.NullDecimal:
		if !n.Valid {
			return nil, nil
		}
		return n.Decimal.InexactFloat64(), nil
	}
	return nil, fmt.Errorf("decimal: unsupported %s", in.Shape())
}

func encodeDecimal(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case float64:
		return decimal.NewFromFloat(x).String(), nil
	case float32:
		return decimal.NewFromFloat32(x).String(), nil
	case int64:
		return decimal.NewFromInt(x).String(), nil
	case int:
		return decimal.NewFromInt(int64(x)).String(), nil
	case decimal.Decimal:
		return x.String(), nil
	case string:
		d, err := decimal.NewFromString(x)
		if err != nil {
			return nil, err
		}
		return d.String(), nil
	}
	return nil, fmt.Errorf("decimal: cannot encode %T", v)
}

// --- uuid ---

// UUID decodes textual, 16-byte and driver-native UUIDs into uuid.UUID and
// encodes them as canonical text.
func UUID() Converter {
	return NewConverter("uuid",
		[]value.Kind{value.KindString, value.KindBytes, value.KindNative},
		decodeUUID,
		encodeUUID,
	)
}

func decodeUUID(in value.Value) (any, error) {
	switch in.Kind() {
	case value.KindString:
		s, _ := in.Str()
		return uuid.Parse(s)
	case value.KindBytes:
		b, _ := in.ByteSlice()
		if len(b) == 16 {
			return uuid.FromBytes(b)
		}
		return uuid.ParseBytes(b)
	}

	native, _ := in.NativeValue()
	switch u := native.(type) {
	case uuid.UUID:
		return u, nil
	case [16]byte:
		return uuid.UUID(u), nil
	case pgtype.UUID:
		if !u.Valid {
			return nil, nil
		}
		return uuid.UUID(u.Bytes), nil
	}
	return nil, fmt.Errorf("uuid: unsupported %s", in.Shape())
}

func encodeUUID(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case uuid.UUID:
		return x.String(), nil
	case [16]byte:
		return uuid.UUID(x).String(), nil
	case string:
		u, err := uuid.Parse(x)
		if err != nil {
			return nil, err
		}
		return u.String(), nil
	}
	return nil, fmt.Errorf("uuid: cannot encode %T", v)
}
