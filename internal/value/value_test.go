package value

import (
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type opaque struct{ digits string }

type status string

type blob []byte

func TestFromAny_Kinds(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	name := "Deepthi"
	var nilPtr *string

	tests := []struct {
		name string
		in   any
		kind Kind
	}{
		{"nil", nil, KindNull},
		{"int", 18, KindInt},
		{"int8", int8(-3), KindInt},
		{"int32", int32(7), KindInt},
		{"uint64 big", uint64(math.MaxUint64), KindInt},
		{"float32", float32(1.5), KindFloat},
		{"string", "x", KindString},
		{"bool", true, KindBool},
		{"time", now, KindTime},
		{"bytes", []byte("abc"), KindBytes},
		{"raw json", json.RawMessage(`{"a":1}`), KindJSON},
		{"broken raw json", json.RawMessage(`{`), KindBytes},
		{"map", map[string]any{"a": 1}, KindJSON},
		{"any slice", []any{1, "a"}, KindSeq},
		{"typed slice", []string{"a", "b"}, KindSeq},
		{"pointer", &name, KindString},
		{"nil pointer", nilPtr, KindNull},
		{"null string invalid", sql.NullString{}, KindNull},
		{"null int valid", sql.NullInt64{Int64: 4, Valid: true}, KindInt},
		{"uuid-like array", [16]byte{1}, KindNative},
		{"struct", opaque{"1.5"}, KindNative},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, FromAny(tt.in).Kind())
		})
	}
}

func TestFromAny_NamedTypes(t *testing.T) {
	s, ok := FromAny(status("queued")).Text()
	require.True(t, ok)
	assert.Equal(t, "queued", s)

	d, ok := FromAny(5 * time.Second).Int64()
	require.True(t, ok)
	assert.Equal(t, int64(5*time.Second), d)

	b, ok := FromAny(blob("abc")).ByteSlice()
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), b)

	doc := FromAny(map[string]string{"tier": "gold"})
	require.Equal(t, KindJSON, doc.Kind())
	assert.Equal(t, map[string]any{"tier": "gold"}, doc.Interface())

	assert.Equal(t, KindNull, FromAny(map[string]string(nil)).Kind())
	assert.Equal(t, KindNative, FromAny(map[int]string{1: "a"}).Kind())
}

func TestIntegerWidths(t *testing.T) {
	v := FromAny(uint64(math.MaxUint64))
	_, ok := v.Int64()
	assert.False(t, ok, "uint64 above MaxInt64 must not pass as int64")
	u, ok := v.Uint64()
	require.True(t, ok)
	assert.Equal(t, uint64(math.MaxUint64), u)

	neg := Int(-1)
	_, ok = neg.Uint64()
	assert.False(t, ok)

	small := Uint(12)
	i, ok := small.Int64()
	require.True(t, ok)
	assert.Equal(t, int64(12), i)
}

func TestBytesAreCopied(t *testing.T) {
	src := []byte("abc")
	v := FromAny(src)
	src[0] = 'z'

	got, ok := v.ByteSlice()
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), got)

	got[1] = 'q'
	again, _ := v.ByteSlice()
	assert.Equal(t, []byte("abc"), again)
}

func TestShape(t *testing.T) {
	assert.Equal(t, "null", Null().Shape())
	assert.Equal(t, "string", String("a").Shape())
	assert.Equal(t, "native(value.opaque)", Native(opaque{}).Shape())
	assert.True(t, Native(nil).IsNull())
}

func TestSeqInterface(t *testing.T) {
	v := FromAny([]int32{1, 2})
	assert.Equal(t, []any{int64(1), int64(2)}, v.Interface())

	elems, ok := v.Elems()
	require.True(t, ok)
	assert.Len(t, elems, 2)
}

func TestText(t *testing.T) {
	s, ok := Bytes([]byte("admin")).Text()
	require.True(t, ok)
	assert.Equal(t, "admin", s)

	_, ok = Int(1).Text()
	assert.False(t, ok)
}

func TestReader(t *testing.T) {
	r := NewReader([]any{int64(1), "Deepthi", nil})

	peeked, err := r.Peek(1)
	require.NoError(t, err)
	assert.Equal(t, String("Deepthi"), peeked)
	assert.Equal(t, 3, r.Remaining(), "peek must not consume")

	first, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, Int(1), first)

	_, err = r.Read()
	require.NoError(t, err)
	last, err := r.Read()
	require.NoError(t, err)
	assert.True(t, last.IsNull())

	_, err = r.Read()
	assert.True(t, errors.Is(err, ErrExhausted))

	_, err = r.Peek(0)
	assert.True(t, errors.Is(err, ErrExhausted))
}
