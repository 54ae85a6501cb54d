package expect

// Field holds an expected value for one request field, or nothing at all.
// The zero Field is Skip: the field is not checked.
//
// Skip is distinct from a nil value, so an expected JSON null is written as
// Value[any](nil).
type Field[T any] struct {
	value T
	set   bool
}

// Value returns a Field that will be checked against v.
func Value[T any](v T) Field[T] {
	return Field[T]{value: v, set: true}
}

// Skip returns a Field that will not be checked.
func Skip[T any]() Field[T] {
	return Field[T]{}
}

// Get returns the expected value, and false if the field is skipped.
func (f Field[T]) Get() (T, bool) {
	return f.value, f.set
}

// IsSkip reports whether the field is not checked.
func (f Field[T]) IsSkip() bool {
	return !f.set
}
