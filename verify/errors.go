package verify

import (
	"fmt"

	"github.com/circleci/reqassert/expect"
	"github.com/circleci/reqassert/testing/httprecorder"
)

const (
	msgMissing    = "The pending request is missing!"
	msgUnexpected = "This request is unexpected!"
)

// MissingRequestError is an expected request that was never made.
type MissingRequestError struct {
	Expected expect.Request
}

func (e *MissingRequestError) Error() string {
	return fmt.Sprintf("%s expected: %s", msgMissing, e.Expected)
}

// UnexpectedRequestError is a request that was made with no expectation left to match it.
type UnexpectedRequestError struct {
	Observed httprecorder.Request
}

func (e *UnexpectedRequestError) Error() string {
	return fmt.Sprintf("%s observed: %s", msgUnexpected, e.Observed.String())
}

// ChainedError is a verification failure found after the test body had already
// failed with Cause.
type ChainedError struct {
	Err   error
	Cause error
}

func (e *ChainedError) Error() string {
	return fmt.Sprintf("%v\ncaused by: %v", e.Err, e.Cause)
}

func (e *ChainedError) Unwrap() []error {
	return []error{e.Err, e.Cause}
}
