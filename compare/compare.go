/*
Package compare checks single fields of an observed HTTP request against expected values.

Every function returns nil when the field matches, a *FieldMismatchError when it does not,
and a *MalformedJSONError when a JSON comparison meets a body that is not JSON.
*/
package compare

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	gocmp "github.com/google/go-cmp/cmp"
	"github.com/tidwall/gjson"

	"github.com/circleci/reqassert/expect"
	"github.com/circleci/reqassert/testing/httprecorder"
)

const (
	LabelURL     = "Wrong URL!"
	LabelMethod  = "Wrong method!"
	LabelJSON    = "Wrong body!"
	LabelBody    = "Wrong body"
	LabelHeaders = "Wrong headers!"
)

var errInvalidJSON = errors.New("invalid JSON")

// URL tolerates a trailing slash the client added: when actual ends in a slash
// and expected does not, one is appended to expected. Slashes are never removed.
func URL(expected, actual string) error {
	if strings.HasSuffix(actual, "/") && !strings.HasSuffix(expected, "/") {
		expected += "/"
	}
	if expected == actual {
		return nil
	}
	return mismatch("url", LabelURL, expected, actual)
}

// Method treats an empty expected method as GET.
func Method(expected expect.Method, actual string) error {
	if expected.String() == actual {
		return nil
	}
	return mismatch("method", LabelMethod, expected.String(), actual)
}

// JSON decodes body and compares it structurally with expected. Expected is
// round tripped through encoding/json first, so structs and typed maps compare
// equal to the generic values the body decodes to (float64, string, bool, nil,
// []interface{} and map[string]interface{}).
func JSON(expected interface{}, body []byte) error {
	if !gjson.ValidBytes(body) {
		return &MalformedJSONError{Body: body, Err: errInvalidJSON}
	}
	actual := gjson.ParseBytes(body).Value()

	want, err := normaliseJSON(expected)
	if err != nil {
		return fmt.Errorf("expected JSON: %w", err)
	}
	if gocmp.Equal(want, actual) {
		return nil
	}
	return mismatch("json", LabelJSON, want, actual)
}

// Body compares raw bodies byte for byte. A nil body equals an empty one.
func Body(expected, actual []byte) error {
	if bytes.Equal(expected, actual) {
		return nil
	}
	return mismatch("body", LabelBody, string(expected), string(actual))
}

// Headers requires the observed headers to be exactly the expected set.
func Headers(expected map[string]string, actual http.Header) error {
	want := httprecorder.HeaderFromMap(expected)
	got := httprecorder.FlatHeader(actual)
	if gocmp.Equal(want, got) {
		return nil
	}
	return mismatch("headers", LabelHeaders, want, got)
}

// HeadersContain requires every expected header to be present with the expected
// value. Other observed headers are ignored.
func HeadersContain(expected map[string]string, actual http.Header) error {
	want := httprecorder.HeaderFromMap(expected)
	got := httprecorder.FlatHeader(actual)

	keys := make([]string, 0, len(want))
	for k := range want {
		keys = append(keys, k)
	}
	only := httprecorder.OnlyHeaders(keys...)
	if gocmp.Equal(want, got, only) {
		return nil
	}

	projected := http.Header{}
	for _, k := range keys {
		if v, ok := got[k]; ok {
			projected[k] = v
		}
	}
	return mismatch("headers", LabelHeaders, want, projected)
}

func normaliseJSON(v interface{}) (interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	err = json.Unmarshal(b, &out)
	return out, err
}

func mismatch(field, label string, expected, actual interface{}) *FieldMismatchError {
	return &FieldMismatchError{
		Field:    field,
		Label:    label,
		Expected: expected,
		Actual:   actual,
		Diff:     gocmp.Diff(expected, actual),
	}
}
