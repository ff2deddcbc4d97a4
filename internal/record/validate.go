package record

import (
	"fmt"
	"sort"
	"strings"
)

// Validator inspects a record before it is written. The record package
// does not interpret the returned error; Record.Validate hands it back
// unchanged.
type Validator interface {
	Validate(r *Record) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(r *Record) error

func (f ValidatorFunc) Validate(r *Record) error { return f(r) }

// FieldErrors collects messages per attribute.
type FieldErrors map[string][]string

// Add records msg against field.
func (fe FieldErrors) Add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

// Err returns fe as an error, or nil when it is empty.
func (fe FieldErrors) Err() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}

func (fe FieldErrors) Error() string {
	if len(fe) == 0 {
		return "no validation errors"
	}
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var sb strings.Builder
	for i, f := range fields {
		if i > 0 {
			sb.WriteString("; ")
		}
		fmt.Fprintf(&sb, "%s %s", f, strings.Join(fe[f], ", "))
	}
	return sb.String()
}
