package record

import (
	"errors"
	"testing"
	"time"

	"github.com/koustreak/rowmap/internal/errs"
	"github.com/koustreak/rowmap/internal/schema"
	"github.com/koustreak/rowmap/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type vehicles struct {
	base, a, b *Model
}

func vehicleModels(t *testing.T) vehicles {
	t.Helper()
	base, err := schema.Define("Vehicle",
		schema.Attr(
			schema.Attribute{Name: "id", Type: schema.Int64(), Primary: true, AutoGenerated: true},
			schema.Attribute{Name: "type", Type: schema.String(), Nullable: true},
			schema.Attribute{Name: "wheels", Type: schema.Int16(), Nullable: true},
		),
		schema.Discriminator("type"),
	)
	require.NoError(t, err)

	v, err := NewModel(base)
	require.NoError(t, err)

	aDef, err := schema.Define("Car", schema.Mixin(base),
		schema.Attr(schema.Attribute{Name: "doors", Type: schema.Int16(), Nullable: true}))
	require.NoError(t, err)
	a, err := v.Subtype("A", aDef)
	require.NoError(t, err)

	bDef, err := schema.Define("Truck", schema.Mixin(base),
		schema.Attr(schema.Attribute{Name: "payload", Type: schema.Float64(), Nullable: true}))
	require.NoError(t, err)
	b, err := v.Subtype("B", bDef)
	require.NoError(t, err)

	return vehicles{base: v, a: a, b: b}
}

func TestModel_STIDispatch(t *testing.T) {
	vs := vehicleModels(t)

	t.Run("registered value", func(t *testing.T) {
		r, err := vs.base.Load(value.NewReader([]any{int64(1), "A", 4, 5}))
		require.NoError(t, err)
		assert.Same(t, vs.a, r.Model())
		assert.Equal(t, "Car", r.Type())
		doors, _ := r.Get("doors")
		assert.Equal(t, int16(5), doors)
		assert.Empty(t, r.Changed())
	})

	t.Run("second subtype", func(t *testing.T) {
		r, err := vs.base.Load(value.NewReader([]any{int64(2), "B", 6, 3.5}))
		require.NoError(t, err)
		assert.Same(t, vs.b, r.Model())
	})

	t.Run("blank selects base", func(t *testing.T) {
		for _, disc := range []any{"", "  ", nil} {
			r, err := vs.base.Load(value.NewReader([]any{int64(3), disc, 4}))
			require.NoError(t, err)
			assert.Same(t, vs.base, r.Model())
		}
	})

	t.Run("unregistered value", func(t *testing.T) {
		_, err := vs.base.Load(value.NewReader([]any{int64(4), "Z", 4}), WithQuery("SELECT * FROM vehicles"))
		require.Error(t, err)
		assert.True(t, errs.IsUnknownSTIType(err))

		var e *errs.Error
		require.True(t, errors.As(err, &e))
		assert.Equal(t, "Vehicle", e.Model)
		assert.Contains(t, e.Message, `"Z"`)
		assert.Equal(t, "SELECT * FROM vehicles", e.Query)
	})

	t.Run("subtype model dispatches too", func(t *testing.T) {
		r, err := vs.a.Load(value.NewReader([]any{int64(5), "B", 6, 1.0}))
		require.NoError(t, err)
		assert.Same(t, vs.b, r.Model())
	})

	t.Run("dispatch does not consume the row", func(t *testing.T) {
		_, err := vs.base.Load(value.NewReader([]any{int64(6), "A", "wheels"}))
		assert.True(t, errs.IsDataTypeMismatch(err))
		var e *errs.Error
		require.True(t, errors.As(err, &e))
		assert.Equal(t, "wheels", e.Attribute)
	})
}

func TestModel_SubtypeDefaults(t *testing.T) {
	vs := vehicleModels(t)

	car := vs.a.New()
	disc, err := car.Get("type")
	require.NoError(t, err)
	assert.Equal(t, "A", disc)
	assert.Empty(t, car.Changed())

	cols, vals := car.ArgumentsToInsert()
	assert.Equal(t, []string{"type", "wheels", "doors"}, cols)
	assert.Equal(t, []any{"A", nil, nil}, vals)

	assert.Equal(t, "vehicles", vs.a.Table())
	assert.Same(t, vs.base, vs.a.Parent())
	assert.Same(t, vs.base, vs.b.Root())
	assert.Equal(t, "B", vs.b.STI())
	assert.Equal(t, []*Model{vs.a, vs.b}, vs.base.Subtypes())
}

func TestModel_SubtypeErrors(t *testing.T) {
	vs := vehicleModels(t)
	baseDef := vs.base.Definition()

	sub := func(name string, opts ...schema.Option) *schema.Definition {
		d, err := schema.Define(name, opts...)
		require.NoError(t, err)
		return d
	}

	tests := []struct {
		name  string
		model *Model
		value string
		def   *schema.Definition
	}{
		{"no discriminator", userModel(t), "A", sub("Admin", schema.Attr(schema.Attribute{Name: "name", Type: schema.String()}))},
		{"blank value", vs.base, " ", sub("Bike", schema.Mixin(baseDef))},
		{"duplicate value", vs.base, "A", sub("Bike", schema.Mixin(baseDef))},
		{"missing base attribute", vs.base, "C", sub("Bike",
			schema.Attr(
				schema.Attribute{Name: "id", Type: schema.Int64(), Primary: true, AutoGenerated: true},
				schema.Attribute{Name: "type", Type: schema.String(), Nullable: true},
			),
			schema.Discriminator("type"))},
		{"reordered base attribute", vs.base, "C", sub("Bike",
			schema.Attr(
				schema.Attribute{Name: "type", Type: schema.String(), Nullable: true},
				schema.Attribute{Name: "id", Type: schema.Int64(), Primary: true, AutoGenerated: true},
				schema.Attribute{Name: "wheels", Type: schema.Int16(), Nullable: true},
			),
			schema.Discriminator("type"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.model.Subtype(tt.value, tt.def)
			assert.True(t, errs.IsInvalidDefinition(err), "got %v", err)
		})
	}
}

func TestModel_Resolve(t *testing.T) {
	vs := vehicleModels(t)

	m, err := vs.base.Resolve(value.Bytes([]byte("A")))
	require.NoError(t, err)
	assert.Same(t, vs.a, m)

	_, err = vs.base.Resolve(value.Int(1))
	assert.True(t, errs.IsDataTypeMismatch(err))

	users := userModel(t)
	m, err = users.Resolve(value.String("anything"))
	require.NoError(t, err)
	assert.Same(t, users, m)
}

func TestModel_FromRow(t *testing.T) {
	users := userModel(t)
	const query = "SELECT id, name, age FROM users"

	t.Run("casts in column order", func(t *testing.T) {
		u, err := users.FromRow(value.NewReader([]any{int64(1), []byte("Deepthi"), int64(18)}))
		require.NoError(t, err)
		name, _ := u.Get("name")
		assert.Equal(t, "Deepthi", name)
		age, _ := u.Get("age")
		assert.Equal(t, int32(18), age)
	})

	t.Run("null into non-nullable", func(t *testing.T) {
		_, err := users.FromRow(value.NewReader([]any{int64(1), nil, nil}), WithQuery(query))
		require.Error(t, err)
		assert.True(t, errs.IsDataTypeMismatch(err))

		var e *errs.Error
		require.True(t, errors.As(err, &e))
		assert.Equal(t, "name", e.Attribute)
		assert.Equal(t, query, e.Query)
	})

	t.Run("short row", func(t *testing.T) {
		_, err := users.FromRow(value.NewReader([]any{int64(1)}))
		assert.True(t, errs.IsDataTypeMismatch(err))
		assert.ErrorIs(t, err, value.ErrExhausted)
	})

	t.Run("reads exactly field count", func(t *testing.T) {
		row := value.NewReader([]any{int64(1), "a", nil, "next"})
		_, err := users.FromRow(row)
		require.NoError(t, err)
		assert.Equal(t, 1, row.Remaining())
	})
}

func TestModel_FromStruct(t *testing.T) {
	users := userModel(t)

	type signup struct {
		Name   string `rowmap:"name"`
		Age    int32  `rowmap:"age,omitempty"`
		Secret string `rowmap:"-"`
		note   string
	}

	u, err := users.FromStruct(&signup{Name: "Deepthi", Age: 18, Secret: "x", note: "y"})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age"}, u.Changed())

	_, err = users.FromStruct(42)
	assert.True(t, errs.IsInvalidInput(err))

	_, err = users.FromStruct(struct{ Email string }{"a@b"})
	assert.True(t, errs.IsUnknownAttribute(err))
}

type jobStatus string

func TestModel_NamedGoTypes(t *testing.T) {
	def, err := schema.Define("Job", schema.Attr(
		schema.Attribute{Name: "id", Type: schema.Int64(), Primary: true},
		schema.Attribute{Name: "status", Type: schema.String()},
		schema.Attribute{Name: "timeout", Type: schema.Int64(), Nullable: true},
		schema.Attribute{Name: "labels", Type: schema.JSON(), Nullable: true},
	))
	require.NoError(t, err)
	jobs, err := NewModel(def)
	require.NoError(t, err)

	j, err := jobs.FromMap(map[string]any{
		"status":  jobStatus("queued"),
		"timeout": 5 * time.Second,
		"labels":  map[string]string{"team": "infra"},
	})
	require.NoError(t, err)

	status, _ := j.Get("status")
	assert.Equal(t, "queued", status)
	timeout, _ := j.Get("timeout")
	assert.Equal(t, int64(5*time.Second), timeout)
	labels, _ := j.Get("labels")
	assert.Equal(t, map[string]any{"team": "infra"}, labels)

	type job struct {
		Status  jobStatus     `rowmap:"status"`
		Timeout time.Duration `rowmap:"timeout"`
	}
	j, err = jobs.FromStruct(job{Status: "running", Timeout: time.Minute})
	require.NoError(t, err)
	status, _ = j.Get("status")
	assert.Equal(t, "running", status)
	assert.Equal(t, []string{"status", "timeout"}, j.Changed())
}

func TestModel_FromNamedKeys(t *testing.T) {
	users := userModel(t)

	u, err := From(users, map[schema.Name]any{"name": "Deepthi"})
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, u.Changed())
}

func TestModel_Wire(t *testing.T) {
	def, err := schema.Define("Doc", schema.Attr(
		schema.Attribute{Name: "id", Type: schema.Int64(), Primary: true},
		schema.Attribute{Name: "body", Type: schema.JSON()},
	))
	require.NoError(t, err)
	docs, err := NewModel(def)
	require.NoError(t, err)

	out, err := docs.Wire([]string{"id", "body"}, []any{int64(1), map[string]any{"a": 1.0}})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), `{"a":1}`}, out)

	_, err = docs.Wire([]string{"missing"}, []any{1})
	assert.True(t, errs.IsUnknownAttribute(err))
}
