package compare

import (
	"fmt"
)

// FieldMismatchError reports a request field that differs from what was expected.
type FieldMismatchError struct {
	// Field is the name of the request field, eg. "url" or "headers".
	Field    string
	Label    string
	Expected interface{}
	Actual   interface{}
	// Diff is a go-cmp diff of Expected and Actual.
	Diff string
}

func (e *FieldMismatchError) Error() string {
	return fmt.Sprintf("%s\n%#v != %#v\ndiff (-expected +actual):\n%s", e.Label, e.Expected, e.Actual, e.Diff)
}

// MalformedJSONError reports a request body that should have been JSON but was not.
type MalformedJSONError struct {
	Body []byte
	Err  error
}

func (e *MalformedJSONError) Error() string {
	return fmt.Sprintf("JSON is broken! body: %q: %v", e.Body, e.Err)
}

func (e *MalformedJSONError) Unwrap() error {
	return e.Err
}
