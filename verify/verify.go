// Package verify lines up the requests a test expected with the requests that were
// actually made, position by position, and reports every position that does not match.
package verify

import (
	"fmt"

	"gotest.tools/v3/assert/cmp"

	"github.com/circleci/reqassert/compare"
	"github.com/circleci/reqassert/expect"
	"github.com/circleci/reqassert/testing/httprecorder"
)

// Result is the outcome for one position in the request sequence.
type Result struct {
	Index int
	// Name names the sub-test the result is reported under.
	Name string
	// Expected and Observed are nil when the sequence had no entry at Index.
	Expected *expect.Request
	Observed *httprecorder.Request
	Err      error
}

func (r Result) Passed() bool {
	return r.Err == nil
}

// CausedBy chains a failed result to the error the test body itself returned.
func (r Result) CausedBy(cause error) Result {
	if r.Err == nil || cause == nil {
		return r
	}
	r.Err = &ChainedError{Err: r.Err, Cause: cause}
	return r
}

// Check adapts the result for use with gotest.tools assertions.
func (r Result) Check() cmp.Comparison {
	return func() cmp.Result {
		if r.Err == nil {
			return cmp.ResultSuccess
		}
		return cmp.ResultFailure(r.Err.Error())
	}
}

// slot is one side of a position. A sequence shorter than the other is padded
// with empty slots.
type slot[T any] struct {
	value   T
	present bool
}

func pad[T any](items []T, n int) []slot[T] {
	slots := make([]slot[T], n)
	for i := range items {
		slots[i] = slot[T]{value: items[i], present: true}
	}
	return slots
}

// Verify pairs expected and observed requests by position. There is one result
// per position up to the length of the longer sequence.
func Verify(expected []expect.Request, observed []httprecorder.Request) []Result {
	n := len(expected)
	if len(observed) > n {
		n = len(observed)
	}
	exp := pad(expected, n)
	obs := pad(observed, n)

	results := make([]Result, n)
	for i := 0; i < n; i++ {
		res := Result{Index: i}
		if exp[i].present {
			res.Expected = &exp[i].value
			res.Name = exp[i].value.String()
		} else {
			res.Name = fmt.Sprintf("[Unexpected] %s", obs[i].value.String())
		}
		if obs[i].present {
			res.Observed = &obs[i].value
		}
		res.Err = check(exp[i], obs[i])
		results[i] = res
	}
	return results
}

// Failed returns only the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed() {
			failed = append(failed, r)
		}
	}
	return failed
}

func check(e slot[expect.Request], o slot[httprecorder.Request]) error {
	if !o.present {
		return &MissingRequestError{Expected: e.value}
	}
	if !e.present {
		return &UnexpectedRequestError{Observed: o.value}
	}
	return Compare(e.value, o.value)
}

// Compare checks every field of an observed request against an expectation and
// returns the first mismatch. URL and method are always checked, the other fields
// only when they are not skipped.
func Compare(e expect.Request, o httprecorder.Request) error {
	if err := compare.URL(e.URL, o.URL.String()); err != nil {
		return err
	}
	if err := compare.Method(e.Method, o.Method); err != nil {
		return err
	}
	if v, ok := e.JSON.Get(); ok {
		body, err := o.DecodedBody()
		if err != nil {
			return &compare.MalformedJSONError{Body: o.Body, Err: err}
		}
		if err := compare.JSON(v, body); err != nil {
			return err
		}
	}
	if v, ok := e.Body.Get(); ok {
		if err := compare.Body(v, o.Body); err != nil {
			return err
		}
	}
	if v, ok := e.Headers.Get(); ok {
		if err := compare.Headers(v, o.Header); err != nil {
			return err
		}
	}
	if v, ok := e.HeadersContain.Get(); ok {
		if err := compare.HeadersContain(v, o.Header); err != nil {
			return err
		}
	}
	return nil
}
