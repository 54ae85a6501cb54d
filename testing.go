package reqassert

import (
	"context"
	"net/http"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/circleci/reqassert/expect"
	"github.com/circleci/reqassert/testing/testcontext"
)

// ForT reports through t.Run.
func ForT(t *testing.T) Reporter {
	return tReporter{t: t}
}

type tReporter struct {
	t *testing.T
}

// tbReporter is implemented by reporters backed by a testing.TB. The harness
// marks its own frames as helpers on it, so failures point at the caller.
type tbReporter interface {
	testingTB() testing.TB
}

func (r tReporter) testingTB() testing.TB {
	return r.t
}

func (r tReporter) SubTest(name string, check func(t assert.TestingT)) {
	r.t.Helper()
	r.t.Run(name, func(t *testing.T) {
		t.Helper()
		check(t)
	})
}

// Wrap decorates a test function so it runs with requests intercepted and
// verified. The test is the one the returned function is called with.
func Wrap(requests []expect.Request, body func(t *testing.T, client *http.Client) error) func(t *testing.T) {
	return func(t *testing.T) {
		t.Helper()
		With(t, requests, func(client *http.Client) error {
			return body(t, client)
		})
	}
}

// With runs body with requests intercepted, then verifies them under sub-tests
// of t. An error returned by body fails t.
func With(t *testing.T, requests []expect.Request, body func(client *http.Client) error) {
	t.Helper()
	s := New(ForT(t), Config{Requests: requests})
	err := s.Run(testcontext.New(t), func(_ context.Context, client *http.Client) error {
		return body(client)
	})
	if err != nil {
		t.Fatal(err)
	}
}
