package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/koustreak/rowmap/internal/errs"
	"github.com/koustreak/rowmap/internal/logger"
	"github.com/koustreak/rowmap/internal/schema"
	"github.com/koustreak/rowmap/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userDef(t *testing.T, extra ...schema.Attribute) *schema.Definition {
	t.Helper()
	def, err := schema.Define("User",
		schema.Attr(
			schema.Attribute{Name: "id", Type: schema.Int64(), Primary: true, AutoGenerated: true},
			schema.Attribute{Name: "name", Type: schema.String()},
			schema.Attribute{Name: "age", Type: schema.Int32(), Nullable: true},
		),
		schema.Attr(extra...),
	)
	require.NoError(t, err)
	return def
}

func userModel(t *testing.T, opts ...Option) *Model {
	t.Helper()
	m, err := NewModel(userDef(t), opts...)
	require.NoError(t, err)
	return m
}

func TestRecord_Deepthi(t *testing.T) {
	users := userModel(t)

	u, err := users.FromMap(map[string]any{"name": "Deepthi", "age": 18})
	require.NoError(t, err)

	name, err := u.Get("name")
	require.NoError(t, err)
	assert.Equal(t, "Deepthi", name)

	age, err := As[int32](u, "age")
	require.NoError(t, err)
	assert.Equal(t, int32(18), age)

	cols, vals := u.ArgumentsToInsert()
	assert.Equal(t, []string{"name", "age"}, cols)
	assert.Equal(t, []any{"Deepthi", int32(18)}, vals)
}

func TestRecord_NullIntoNonNullable(t *testing.T) {
	users := userModel(t)

	_, err := users.FromMap(map[string]any{"name": nil})
	require.Error(t, err)
	assert.True(t, errs.IsDataTypeCasting(err))

	var e *errs.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "User", e.Model)
	assert.Equal(t, "name", e.Attribute)
	assert.Contains(t, e.Error(), "string")
}

func TestRecord_UnknownAttribute(t *testing.T) {
	users := userModel(t)

	_, err := users.FromMap(map[string]any{"name": "x", "nickname": "y"})
	assert.True(t, errs.IsUnknownAttribute(err))

	u := users.New()
	assert.True(t, errs.IsUnknownAttribute(u.Set("nickname", "y")))
	_, err = u.Get("nickname")
	assert.True(t, errs.IsUnknownAttribute(err))
}

func TestRecord_ChangeTracking(t *testing.T) {
	users := userModel(t)

	t.Run("from input marks supplied keys", func(t *testing.T) {
		u, err := users.FromMap(map[string]any{"age": 3, "name": "a"})
		require.NoError(t, err)
		assert.Equal(t, []string{"name", "age"}, u.Changed())
		assert.False(t, u.IsChanged("id"))
		assert.False(t, u.IsPersisted())
	})

	t.Run("from row is clean", func(t *testing.T) {
		u, err := users.FromRow(value.NewReader([]any{int64(7), "Ravi", nil}))
		require.NoError(t, err)
		assert.Empty(t, u.Changed())
		assert.True(t, u.IsPersisted())
		assert.True(t, u.IsSet("age"))

		cols, vals := u.ArgumentsToSave()
		assert.Empty(t, cols)
		assert.Empty(t, vals)
	})

	t.Run("same value still marks", func(t *testing.T) {
		u, err := users.FromRow(value.NewReader([]any{int64(7), "Ravi", int64(30)}))
		require.NoError(t, err)
		require.NoError(t, u.Set("name", "Ravi"))
		assert.Equal(t, []string{"name"}, u.Changed())

		cols, vals := u.ArgumentsToSave()
		assert.Equal(t, []string{"name"}, cols)
		assert.Equal(t, []any{"Ravi"}, vals)
	})

	t.Run("failed set leaves state untouched", func(t *testing.T) {
		u, err := users.FromRow(value.NewReader([]any{int64(7), "Ravi", int64(30)}))
		require.NoError(t, err)
		assert.True(t, errs.IsDataTypeCasting(u.Set("age", "thirty")))
		assert.Empty(t, u.Changed())
		age, _ := u.Get("age")
		assert.Equal(t, int32(30), age)
	})

	t.Run("mark persisted clears", func(t *testing.T) {
		u, err := users.FromMap(map[string]any{"name": "a"})
		require.NoError(t, err)
		require.NoError(t, u.Hydrate("id", int64(99)))
		assert.False(t, u.IsChanged("id"))
		u.MarkPersisted()
		assert.False(t, u.HasChanges())
		assert.True(t, u.IsPersisted())

		_, id, ok := u.PrimaryKey()
		require.True(t, ok)
		assert.Equal(t, int64(99), id)
	})
}

func TestRecord_Defaults(t *testing.T) {
	def := userDef(t,
		schema.Attribute{Name: "role", Type: schema.String(), Default: schema.Literal("member")},
		schema.Attribute{Name: "draft", Type: schema.Bool(), Virtual: true, Default: schema.Literal(true)},
	)
	users, err := NewModel(def)
	require.NoError(t, err)

	u := users.New()
	assert.Empty(t, u.Changed())
	role, err := u.Get("role")
	require.NoError(t, err)
	assert.Equal(t, "member", role)

	draft, ok := u.Virtual("draft")
	require.True(t, ok)
	assert.Equal(t, true, draft)

	cols, vals := u.ArgumentsToInsert()
	assert.Equal(t, []string{"name", "age", "role"}, cols)
	assert.Equal(t, []any{nil, nil, "member"}, vals)
}

func TestRecord_BadDefault(t *testing.T) {
	def := userDef(t, schema.Attribute{Name: "score", Type: schema.Int16(), Default: schema.Literal("high")})

	_, err := NewModel(def)
	assert.True(t, errs.IsInvalidDefinition(err))
}

func TestRecord_Aliasing(t *testing.T) {
	def, err := schema.Define("Person", schema.Attr(
		schema.Attribute{Name: "id", Type: schema.Int64(), Primary: true},
		schema.Attribute{Name: "name1", Column: "first_name", Type: schema.String()},
		schema.Attribute{Name: "nick", Column: "first_name", Type: schema.String(), Nullable: true},
		schema.Attribute{Name: "score", Type: schema.Int32(), Virtual: true},
	))
	require.NoError(t, err)
	people, err := NewModel(def)
	require.NoError(t, err)

	p, err := people.FromMap(map[string]any{"id": 1, "name1": "Asha", "nick": "A", "score": 5})
	require.NoError(t, err)

	meta, err := def.Metadata("name1")
	require.NoError(t, err)
	assert.Equal(t, "name1", meta.Name)
	assert.Equal(t, "first_name", meta.Column)

	assert.Equal(t, []schema.Name{"id", "name1", "nick"}, p.Named().Keys())

	cols, vals := p.ArgumentsToInsert()
	assert.Equal(t, []string{"id", "first_name"}, cols)
	assert.Equal(t, []any{int64(1), "Asha"}, vals)

	cols, _ = p.ArgumentsToSave()
	assert.Equal(t, []string{"id", "first_name"}, cols)

	score, ok := p.Virtual("score")
	require.True(t, ok)
	assert.Equal(t, 5, score)
}

func TestRecord_StoreIsDetached(t *testing.T) {
	def, err := schema.Define("Blob", schema.Attr(
		schema.Attribute{Name: "data", Type: schema.Bytes()},
		schema.Attribute{Name: "tags", Type: schema.ArrayOf(schema.String())},
	))
	require.NoError(t, err)
	blobs, err := NewModel(def)
	require.NoError(t, err)

	data := []byte("abc")
	b, err := blobs.FromMap(map[string]any{"data": data, "tags": []string{"x"}})
	require.NoError(t, err)
	data[0] = 'z'

	got, _ := b.Get("data")
	assert.Equal(t, []byte("abc"), got)

	got.([]byte)[1] = 'q'
	tags, _ := As[[]string](b, "tags")
	tags[0] = "y"

	_, vals := b.ArgumentsToInsert()
	assert.Equal(t, []any{[]byte("abc"), []string{"x"}}, vals)
}

func TestRecord_As(t *testing.T) {
	users := userModel(t)
	u := users.New()

	age, err := As[int32](u, "age")
	require.NoError(t, err)
	assert.Zero(t, age)

	require.NoError(t, u.Set("name", "x"))
	_, err = As[int64](u, "name")
	assert.True(t, errs.IsInvalidInput(err))
}

func TestRecord_Validate(t *testing.T) {
	errClosed := errors.New("registrations are closed")

	named := ValidatorFunc(func(r *Record) error {
		fe := FieldErrors{}
		if name, _ := As[string](r, "name"); name == "" {
			fe.Add("name", "can't be blank")
		}
		return fe.Err()
	})
	closed := ValidatorFunc(func(*Record) error { return errClosed })

	t.Run("single error is verbatim", func(t *testing.T) {
		users := userModel(t, WithValidator(named))
		u := users.New()

		err := u.Validate()
		var fe FieldErrors
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, []string{"can't be blank"}, fe["name"])
		assert.Equal(t, "name can't be blank", err.Error())

		require.NoError(t, u.Set("name", "ok"))
		assert.NoError(t, u.Validate())
	})

	t.Run("several are joined", func(t *testing.T) {
		users := userModel(t, WithValidator(named), WithValidator(closed))
		err := users.New().Validate()
		assert.ErrorIs(t, err, errClosed)

		var fe FieldErrors
		assert.True(t, errors.As(err, &fe))
	})
}

func TestFieldErrors_Error(t *testing.T) {
	fe := FieldErrors{}
	assert.NoError(t, fe.Err())

	fe.Add("name", "can't be blank")
	fe.Add("age", "must be positive")
	fe.Add("name", "is too short")
	assert.Equal(t, "age must be positive; name can't be blank, is too short", fe.Error())
}

func TestRecord_JSON(t *testing.T) {
	users := userModel(t)
	u, err := users.FromMap(map[string]any{"name": "Deepthi", "age": 18})
	require.NoError(t, err)

	out, err := json.Marshal(u)
	require.NoError(t, err)
	assert.Equal(t, `{"id":null,"name":"Deepthi","age":18}`, string(out))
}

func TestRecord_LogObject(t *testing.T) {
	users := userModel(t)
	u, err := users.FromMap(map[string]any{"name": "Deepthi", "age": 18})
	require.NoError(t, err)

	var buf bytes.Buffer
	log := logger.New(&logger.Config{Level: "info", Format: "json", Output: &buf})
	log.With().Object("record", u).Logger().Info("saved")

	var line struct {
		Record map[string]any `json:"record"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "User", line.Record["type"])
	assert.Equal(t, "Deepthi", line.Record["name"])
	assert.Equal(t, 18.0, line.Record["age"])
	assert.Nil(t, line.Record["id"])
}
