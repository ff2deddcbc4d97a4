package schema

import (
	"fmt"
	"strings"
)

// Kind is the semantic type family of an attribute.
type Kind int

const (
	_ Kind = iota // zero value is an undeclared type

	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindString
	KindBool
	KindTime
	KindBytes
	KindJSON
	KindArray
	KindCustom // resolved through a converter named by Type.Name
)

var kindNames = map[Kind]string{
	KindInt8:    "int8",
	KindInt16:   "int16",
	KindInt32:   "int32",
	KindInt64:   "int64",
	KindUint8:   "uint8",
	KindUint16:  "uint16",
	KindUint32:  "uint32",
	KindUint64:  "uint64",
	KindFloat32: "float32",
	KindFloat64: "float64",
	KindString:  "string",
	KindBool:    "bool",
	KindTime:    "time",
	KindBytes:   "bytes",
	KindJSON:    "json",
	KindArray:   "array",
	KindCustom:  "custom",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "invalid"
}

func (k Kind) IsInteger() bool {
	return k.IsSigned() || k.IsUnsigned()
}

func (k Kind) IsSigned() bool {
	switch k {
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return true
	default:
		return false
	}
}

func (k Kind) IsUnsigned() bool {
	switch k {
	case KindUint8, KindUint16, KindUint32, KindUint64:
		return true
	default:
		return false
	}
}

func (k Kind) IsFloat() bool {
	return k == KindFloat32 || k == KindFloat64
}

// Bits is the storage width of numeric kinds.
func (k Kind) Bits() int {
	switch k {
	case KindInt8, KindUint8:
		return 8
	case KindInt16, KindUint16:
		return 16
	case KindInt32, KindUint32, KindFloat32:
		return 32
	case KindInt64, KindUint64, KindFloat64:
		return 64
	default:
		panic("only numeric kinds have a meaningful width, requested for: " + k.String())
	}
}

// Type is a semantic attribute type. Elem is set for arrays, Name for
// custom (converter-backed) types.
type Type struct {
	Kind Kind
	Elem *Type
	Name string
}

func Int8() Type    { return Type{Kind: KindInt8} }
func Int16() Type   { return Type{Kind: KindInt16} }
func Int32() Type   { return Type{Kind: KindInt32} }
func Int64() Type   { return Type{Kind: KindInt64} }
func Uint8() Type   { return Type{Kind: KindUint8} }
func Uint16() Type  { return Type{Kind: KindUint16} }
func Uint32() Type  { return Type{Kind: KindUint32} }
func Uint64() Type  { return Type{Kind: KindUint64} }
func Float32() Type { return Type{Kind: KindFloat32} }
func Float64() Type { return Type{Kind: KindFloat64} }
func String() Type  { return Type{Kind: KindString} }
func Bool() Type    { return Type{Kind: KindBool} }
func Time() Type    { return Type{Kind: KindTime} }
func Bytes() Type   { return Type{Kind: KindBytes} }
func JSON() Type    { return Type{Kind: KindJSON} }

func ArrayOf(elem Type) Type {
	return Type{Kind: KindArray, Elem: &elem}
}

func Custom(name string) Type {
	return Type{Kind: KindCustom, Name: name}
}

func (t Type) String() string {
	switch t.Kind {
	case KindArray:
		if t.Elem == nil {
			return "array(?)"
		}
		return "array(" + t.Elem.String() + ")"
	case KindCustom:
		return t.Name
	default:
		return t.Kind.String()
	}
}

// Signature is the type as shown by metadata tooling; nullable types carry
// a trailing "?".
func (t Type) Signature(nullable bool) string {
	if nullable {
		return t.String() + "?"
	}
	return t.String()
}

func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind || t.Name != o.Name {
		return false
	}
	if t.Elem == nil || o.Elem == nil {
		return t.Elem == o.Elem
	}
	return t.Elem.Equal(*o.Elem)
}

func (t Type) valid() bool {
	switch t.Kind {
	case 0:
		return false
	case KindArray:
		return t.Elem != nil && t.Elem.valid()
	case KindCustom:
		return t.Name != ""
	default:
		return true
	}
}

var typeAliases = map[string]Kind{
	"int":       KindInt64,
	"integer":   KindInt32,
	"bigint":    KindInt64,
	"smallint":  KindInt16,
	"uint":      KindUint64,
	"float":     KindFloat64,
	"double":    KindFloat64,
	"text":      KindString,
	"boolean":   KindBool,
	"timestamp": KindTime,
	"datetime":  KindTime,
	"binary":    KindBytes,
	"blob":      KindBytes,
}

// ParseType reads the textual form produced by Type.String, plus a few
// common aliases. Unknown names become custom types.
//
//	ParseType("int32")          // int32
//	ParseType("array(string)")  // array of string
//	ParseType("uuid")           // custom type resolved by the "uuid" converter
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Type{}, fmt.Errorf("empty type")
	}

	if strings.HasPrefix(s, "array(") {
		if !strings.HasSuffix(s, ")") {
			return Type{}, fmt.Errorf("type %q: unbalanced parenthesis", s)
		}
		elem, err := ParseType(s[len("array(") : len(s)-1])
		if err != nil {
			return Type{}, fmt.Errorf("type %q: %w", s, err)
		}
		return ArrayOf(elem), nil
	}
	if strings.ContainsAny(s, "() ") {
		return Type{}, fmt.Errorf("type %q: malformed", s)
	}

	for k, n := range kindNames {
		if n == s && k != KindArray && k != KindCustom {
			return Type{Kind: k}, nil
		}
	}
	if k, ok := typeAliases[s]; ok {
		return Type{Kind: k}, nil
	}
	return Custom(s), nil
}

// SQLType maps an information_schema data_type (Postgres or MySQL) to a
// semantic type. converter names the converter the column needs, if any.
func SQLType(dataType string) (t Type, converter string) {
	dt := strings.ToLower(strings.TrimSpace(dataType))
	switch {
	case dt == "smallint":
		return Int16(), ""
	case dt == "tinyint":
		return Int8(), ""
	case dt == "integer" || dt == "int" || dt == "mediumint":
		return Int32(), ""
	case dt == "bigint":
		return Int64(), ""
	case dt == "real" || dt == "float":
		return Float32(), ""
	case dt == "double precision" || dt == "double":
		return Float64(), ""
	case dt == "numeric" || dt == "decimal":
		return Float64(), "decimal"
	case dt == "boolean" || dt == "bool" || dt == "bit":
		return Bool(), ""
	case strings.HasPrefix(dt, "timestamp") || dt == "datetime" || dt == "date":
		return Time(), ""
	case dt == "bytea" || strings.HasSuffix(dt, "blob") || strings.HasSuffix(dt, "binary"):
		return Bytes(), ""
	case dt == "json" || dt == "jsonb":
		return JSON(), ""
	case dt == "uuid":
		return Custom("uuid"), ""
	case dt == "array":
		return ArrayOf(String()), ""
	default:
		// character varying, text, enum, time, interval, user-defined …
		return String(), ""
	}
}
