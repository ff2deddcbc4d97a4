package value

import (
	"errors"
	"fmt"
)

// ErrExhausted is returned by Reader.Read once every value has been consumed.
var ErrExhausted = errors.New("row reader exhausted")

// Reader is a sequential cursor over one row of raw driver values.
// Values are normalised lazily: Read and Peek only convert the value they
// return.
type Reader struct {
	raw []any
	pos int
}

// NewReader wraps raw; the slice is not copied and must not be modified
// while the reader is in use.
func NewReader(raw []any) *Reader {
	return &Reader{raw: raw}
}

// Read returns the next value.
func (r *Reader) Read() (Value, error) {
	if r.pos >= len(r.raw) {
		return Null(), ErrExhausted
	}
	v := FromAny(r.raw[r.pos])
	r.pos++
	return v, nil
}

// Peek returns the value offset positions ahead of the cursor without
// consuming anything.
func (r *Reader) Peek(offset int) (Value, error) {
	i := r.pos + offset
	if offset < 0 || i >= len(r.raw) {
		return Null(), fmt.Errorf("peek at offset %d: %w", offset, ErrExhausted)
	}
	return FromAny(r.raw[i]), nil
}

// Remaining is the number of unread values.
func (r *Reader) Remaining() int {
	return len(r.raw) - r.pos
}
