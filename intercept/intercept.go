/*
Package intercept answers outbound HTTP calls with canned responses instead of letting
them reach the network, and records every call in the order it was made.

Registered routes are served by an httpmock MockTransport. Calls that match no route fail
with a *ConnectionError, the same way an unreachable host would.
*/
package intercept

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/jarcoal/httpmock"
	"github.com/rs/zerolog"

	"github.com/circleci/reqassert/expect"
	"github.com/circleci/reqassert/internal/responses"
	"github.com/circleci/reqassert/testing/httprecorder"
	"github.com/circleci/reqassert/testing/httprecorder/httpnetrecorder"
)

var (
	ErrActive   = errors.New("interception is active")
	ErrInactive = errors.New("interception is not active")
)

// ConnectionError is returned for a call that matched no registered route.
type ConnectionError struct {
	Method string
	URL    string
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection refused by interception: no expectation registered for %s %s", e.Method, e.URL)
}

// IsConnectionError reports whether any error in err's chain is a *ConnectionError.
// Errors returned by an http.Client wrap it in a *url.Error.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// Transport is an http.RoundTripper serving registered responses.
type Transport struct {
	log  zerolog.Logger
	mock *httpmock.MockTransport
	rec  *httprecorder.RequestRecorder
	rt   http.RoundTripper

	mu     sync.Mutex
	routes map[string]*responses.Queue
	active bool
	saved  http.RoundTripper
}

func New(ctx context.Context) *Transport {
	t := &Transport{
		log:    *zerolog.Ctx(ctx),
		mock:   httpmock.NewMockTransport(),
		rec:    httprecorder.New(),
		routes: make(map[string]*responses.Queue),
	}
	t.mock.RegisterNoResponder(t.unmatched)
	t.rt = httpnetrecorder.Transport(ctx, t.rec, t.mock)
	return t
}

// Register adds a canned response for method and rawURL. Registering the same
// route again queues another response: calls take them in order, and the last
// one keeps being served.
func (t *Transport) Register(method, rawURL string, resp expect.Response) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("register %s %s: %w", method, rawURL, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active {
		return ErrActive
	}

	key := method + " " + rawURL
	q, ok := t.routes[key]
	if !ok {
		q = &responses.Queue{}
		t.routes[key] = q
		responder := t.responder(q)
		t.mock.RegisterResponder(method, rawURL, responder)
		// a client may send a bare host with a trailing slash
		if u.Path == "" && u.RawQuery == "" {
			t.mock.RegisterResponder(method, rawURL+"/", responder)
		}
	}
	q.Push(resp)

	t.log.Debug().Str("method", method).Str("url", rawURL).Int("status", resp.StatusCode()).
		Msg("expectation registered")
	return nil
}

// Activate routes http.DefaultTransport through t until Deactivate is called.
func (t *Transport) Activate(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active {
		return nil
	}
	t.active = true
	t.saved = http.DefaultTransport
	http.DefaultTransport = t
	t.log.Debug().Int("routes", len(t.routes)).Msg("interception activated")
	return nil
}

// Deactivate restores http.DefaultTransport. It is safe to call more than once.
func (t *Transport) Deactivate(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		return nil
	}
	t.active = false
	http.DefaultTransport = t.saved
	t.saved = nil
	t.log.Debug().
		Int("calls", t.rec.Len()).
		Int("mock_calls", t.mock.GetTotalCallCount()).
		Msg("interception deactivated")
	return nil
}

func (t *Transport) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// RoundTrip records the call and answers it from the registered routes.
func (t *Transport) RoundTrip(r *http.Request) (*http.Response, error) {
	if !t.Active() {
		return nil, fmt.Errorf("%s %s: %w", r.Method, r.URL, ErrInactive)
	}
	return t.rt.RoundTrip(r)
}

// Client returns a client that uses t directly, for code that does not use
// http.DefaultTransport.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}

// RecordedCalls returns every call made while active, in call order.
func (t *Transport) RecordedCalls() []httprecorder.Request {
	return t.rec.AllRequests()
}

func (t *Transport) responder(q *responses.Queue) httpmock.Responder {
	return func(r *http.Request) (*http.Response, error) {
		resp := q.Next()
		t.log.Debug().Str("method", r.Method).Str("url", r.URL.String()).Int("status", resp.StatusCode()).
			Msg("call intercepted")
		return respond(r, resp)
	}
}

func (t *Transport) unmatched(r *http.Request) (*http.Response, error) {
	t.log.Warn().Str("method", r.Method).Str("url", r.URL.String()).Msg("unmatched call")
	return nil, &ConnectionError{Method: r.Method, URL: r.URL.String()}
}

func respond(r *http.Request, resp expect.Response) (*http.Response, error) {
	var res *http.Response
	if resp.JSON != nil {
		var err error
		res, err = httpmock.NewJsonResponse(resp.StatusCode(), resp.JSON)
		if err != nil {
			return nil, fmt.Errorf("encode response for %s %s: %w", r.Method, r.URL, err)
		}
	} else {
		res = httpmock.NewBytesResponse(resp.StatusCode(), resp.Body)
	}
	if res.Header == nil {
		res.Header = http.Header{}
	}
	for k, vs := range resp.Header {
		for _, v := range vs {
			res.Header.Add(k, v)
		}
	}
	res.Request = r
	return res, nil
}
