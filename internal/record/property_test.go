package record

import (
	"reflect"
	"testing"

	"github.com/koustreak/rowmap/internal/value"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestProperty_ChangeTracking(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	users := userModel(t)

	properties.Property("records from a row start clean", prop.ForAll(
		func(id int64, name string, age int32, null bool) bool {
			var rawAge any = age
			if null {
				rawAge = nil
			}
			r, err := users.FromRow(value.NewReader([]any{id, name, rawAge}))
			return err == nil && len(r.Changed()) == 0 && !r.HasChanges()
		},
		gen.Int64(),
		gen.AlphaString(),
		gen.Int32(),
		gen.Bool(),
	))

	properties.Property("every supplied key is changed", prop.ForAll(
		func(name string, age int32, withAge bool) bool {
			in := map[string]any{"name": name}
			want := []string{"name"}
			if withAge {
				in["age"] = age
				want = append(want, "age")
			}
			r, err := users.FromMap(in)
			return err == nil && reflect.DeepEqual(want, r.Changed())
		},
		gen.AlphaString(),
		gen.Int32(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestProperty_RoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	users := userModel(t)

	properties.Property("insert arguments echo the input in column order", prop.ForAll(
		func(name string, age int64) bool {
			r, err := users.FromMap(map[string]any{"age": age, "name": name})
			if err != nil {
				return false
			}
			cols, vals := r.ArgumentsToInsert()
			return reflect.DeepEqual([]string{"name", "age"}, cols) &&
				reflect.DeepEqual([]any{name, int32(age)}, vals)
		},
		gen.AlphaString(),
		gen.Int64Range(-1<<31, 1<<31-1),
	))

	properties.Property("projections are idempotent", prop.ForAll(
		func(id int64, name string, age int32) bool {
			r, err := users.FromRow(value.NewReader([]any{id, name, age}))
			if err != nil {
				return false
			}
			first, second := r.Named(), r.Named()
			if !reflect.DeepEqual(first.Keys(), second.Keys()) || !reflect.DeepEqual(first.Values(), second.Values()) {
				return false
			}
			a, errA := r.Strings().MarshalJSON()
			b, errB := r.Strings().MarshalJSON()
			return errA == nil && errB == nil && string(a) == string(b)
		},
		gen.Int64(),
		gen.AlphaString(),
		gen.Int32(),
	))

	properties.TestingRun(t)
}
