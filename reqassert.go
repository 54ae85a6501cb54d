package reqassert

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"gotest.tools/v3/assert"

	"github.com/circleci/reqassert/expect"
	"github.com/circleci/reqassert/intercept"
	"github.com/circleci/reqassert/testing/httprecorder"
	"github.com/circleci/reqassert/verify"
)

var (
	ErrState      = errors.New("scope is in the wrong state")
	errBodyExited = errors.New("test body exited before returning")
)

// Stub answers and records the calls made by the code under test.
// intercept.Transport and stubserver.Server both implement it.
type Stub interface {
	Register(method, url string, resp expect.Response) error
	Activate(ctx context.Context) error
	Deactivate(ctx context.Context) error
	// RecordedCalls returns the calls made while active, in call order.
	RecordedCalls() []httprecorder.Request
	Client() *http.Client
}

// Reporter runs check as a named sub-test.
type Reporter interface {
	SubTest(name string, check func(t assert.TestingT))
}

type helperT interface {
	Helper()
}

// Config configures a Scope.
type Config struct {
	// Requests are the expected requests, in the order they should be made.
	Requests []expect.Request
	// Stub defaults to an intercept.Transport.
	Stub Stub
}

type State int

const (
	Idle State = iota
	Armed
	Executing
	Verifying
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Executing:
		return "executing"
	case Verifying:
		return "verifying"
	case Done:
		return "done"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Body is the test code run inside a Scope. client is bound to the stub.
type Body func(ctx context.Context, client *http.Client) error

// Scope is a single interception window followed by verification.
// A Scope is used once.
type Scope struct {
	reporter Reporter
	requests []expect.Request
	stub     Stub
	state    State
	results  []verify.Result
}

func New(r Reporter, cfg Config) *Scope {
	requests := make([]expect.Request, len(cfg.Requests))
	copy(requests, cfg.Requests)
	return &Scope{
		reporter: r,
		requests: requests,
		stub:     cfg.Stub,
	}
}

func (s *Scope) State() State {
	return s.state
}

// Results returns the verification results once the scope is done.
func (s *Scope) Results() []verify.Result {
	return s.results
}

func (s *Scope) Client() *http.Client {
	if s.stub == nil {
		return http.DefaultClient
	}
	return s.stub.Client()
}

// Enter registers every expected request with the stub and activates it.
func (s *Scope) Enter(ctx context.Context) error {
	if s.state != Idle {
		return fmt.Errorf("enter: %w: %s", ErrState, s.state)
	}
	for i, r := range s.requests {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("expected request %d: %w", i, err)
		}
	}

	if s.stub == nil {
		s.stub = intercept.New(ctx)
	}
	for _, r := range s.requests {
		err := s.stub.Register(r.Method.String(), r.URL, r.Response)
		if err != nil {
			return err
		}
	}
	if err := s.stub.Activate(ctx); err != nil {
		return fmt.Errorf("activate: %w", err)
	}

	s.state = Armed
	return nil
}

// Exit deactivates the stub, then verifies the recorded calls and reports one
// sub-test per position. Failures are chained to bodyErr.
//
// bodyErr is returned, unless it is the connection error from a call that
// matched nothing, which verification has already reported as unexpected.
func (s *Scope) Exit(ctx context.Context, bodyErr error) error {
	if s.state != Armed && s.state != Executing {
		return fmt.Errorf("exit: %w: %s", ErrState, s.state)
	}
	if r, ok := s.reporter.(tbReporter); ok {
		r.testingTB().Helper()
	}
	deactivateErr := s.stub.Deactivate(ctx)

	s.state = Verifying
	s.results = verify.Verify(s.requests, s.stub.RecordedCalls())
	for _, res := range s.results {
		res := res.CausedBy(bodyErr)
		s.reporter.SubTest(res.Name, func(t assert.TestingT) {
			if h, ok := t.(helperT); ok {
				h.Helper()
			}
			assert.Check(t, res.Check())
		})
	}
	s.state = Done

	failed := verify.Failed(s.results)
	zerolog.Ctx(ctx).Debug().
		Int("expected", len(s.requests)).
		Int("positions", len(s.results)).
		Int("failed", len(failed)).
		Msg("requests verified")

	if intercept.IsConnectionError(bodyErr) {
		bodyErr = nil
	}
	if deactivateErr != nil {
		return errors.Join(bodyErr, fmt.Errorf("deactivate: %w", deactivateErr))
	}
	return bodyErr
}

// Run enters the scope, runs body and exits. If body panics, or exits its
// goroutine as t.FailNow does, the scope is still exited and verified before
// the panic carries on.
func (s *Scope) Run(ctx context.Context, body Body) error {
	if r, ok := s.reporter.(tbReporter); ok {
		r.testingTB().Helper()
	}
	if err := s.Enter(ctx); err != nil {
		return err
	}
	s.state = Executing

	returned := false
	defer func() {
		if returned {
			return
		}
		r := recover()
		cause := errBodyExited
		if r != nil {
			cause = fmt.Errorf("test body panicked: %v", r)
		}
		_ = s.Exit(ctx, cause)
		if r != nil {
			panic(r)
		}
	}()

	err := body(ctx, s.Client())
	returned = true
	return s.Exit(ctx, err)
}
