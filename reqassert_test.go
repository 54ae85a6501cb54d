package reqassert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"github.com/circleci/reqassert/expect"
	"github.com/circleci/reqassert/intercept"
	"github.com/circleci/reqassert/stubserver"
	"github.com/circleci/reqassert/testing/fakereporter"
	"github.com/circleci/reqassert/testing/testcontext"
)

func TestScope_NoRequestMade(t *testing.T) {
	rep, err := run(t, []expect.Request{expect.Get("http://a.b.c")}, func(ctx context.Context, c *http.Client) error {
		return nil
	})
	assert.Check(t, err)

	failures := rep.Failures()
	assert.Assert(t, cmp.Len(failures, 1))
	assert.Check(t, cmp.Equal(failures[0].Name, "GET http://a.b.c"))
	assert.Check(t, cmp.Contains(failures[0].Message(), "The pending request is missing!"))
	assert.Check(t, failures[0].HasHelper("github.com/circleci/reqassert.(*Scope).Exit.func"),
		"got %v", failures[0].Helpers)
}

func TestScope_UnexpectedRequest(t *testing.T) {
	rep, err := run(t, nil, func(ctx context.Context, c *http.Client) error {
		_, err := http.Get("http://a.b.c")
		return err
	})
	assert.Check(t, err, "the connection error should be suppressed")

	failures := rep.Failures()
	assert.Assert(t, cmp.Len(failures, 1))
	assert.Check(t, cmp.Equal(failures[0].Name, "[Unexpected] GET http://a.b.c"))
	assert.Check(t, cmp.Contains(failures[0].Message(), "This request is unexpected!"))
}

func TestScope_AllParameters(t *testing.T) {
	const u = "https://aa.bb.cc/"

	tests := []struct {
		name     string
		expected expect.Request
		correct  func(t *testing.T) *http.Request
		wrong    func(t *testing.T) *http.Request
		message  string
	}{
		{
			name:     "url",
			expected: expect.Post("http://a.b"),
			correct:  newRequest("POST", "http://a.b", "", nil),
			wrong:    newRequest("POST", "http://a.b.c", "", nil),
			message:  "Wrong URL!",
		},
		{
			name:     "method",
			expected: expect.Post(u),
			correct:  newRequest("POST", u, "", nil),
			wrong:    newRequest("PUT", u, "", nil),
			message:  "Wrong method!",
		},
		{
			name:     "json",
			expected: expect.Post(u).WithJSON(map[string]string{"a": "b"}),
			correct:  newRequest("POST", u, `{"a": "b"}`, nil),
			wrong:    newRequest("POST", u, `{"a": "c"}`, nil),
			message:  "Wrong body!",
		},
		{
			name:     "json broken",
			expected: expect.Post(u).WithJSON(map[string]string{"a": "b"}),
			correct:  newRequest("POST", u, `{"a": "b"}`, nil),
			wrong:    newRequest("POST", u, `{"a": `, nil),
			message:  "JSON is broken!",
		},
		{
			name:     "body",
			expected: expect.Post(u).WithBody([]byte("123")),
			correct:  newRequest("POST", u, "123", nil),
			wrong:    newRequest("POST", u, "124", nil),
			message:  "Wrong body\n",
		},
		{
			name:     "headers",
			expected: expect.Post(u).WithHeaders(map[string]string{"a": "b"}),
			correct:  newRequest("POST", u, "", http.Header{"A": {"b"}}),
			wrong:    newRequest("POST", u, "", http.Header{"A": {"b"}, "C": {"d"}}),
			message:  "Wrong headers!",
		},
		{
			name:     "headers contain",
			expected: expect.Post(u).WithHeadersContaining(map[string]string{"a": "b"}),
			correct:  newRequest("POST", u, "", http.Header{"A": {"b"}, "C": {"d"}}),
			wrong:    newRequest("POST", u, "", http.Header{"A": {"e"}, "C": {"d"}}),
			message:  "Wrong headers!",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name+" correct", func(t *testing.T) {
			rep, err := run(t, []expect.Request{tt.expected}, func(ctx context.Context, c *http.Client) error {
				return do(c, tt.correct(t))
			})
			assert.Check(t, err)
			assert.Check(t, cmp.Len(rep.SubTests(), 1))
			assert.Check(t, cmp.Len(rep.Failures(), 0))
		})

		t.Run(tt.name+" incorrect", func(t *testing.T) {
			rep, _ := run(t, []expect.Request{tt.expected}, func(ctx context.Context, c *http.Client) error {
				return do(c, tt.wrong(t))
			})
			failures := rep.Failures()
			assert.Assert(t, cmp.Len(failures, 1))
			assert.Check(t, cmp.Contains(failures[0].Message(), tt.message))
		})
	}
}

func TestScope_Response(t *testing.T) {
	var status int
	var body map[string]string
	rep, err := run(t, []expect.Request{
		expect.Get("http://a.b").RespondJSON(http.StatusAccepted, map[string]string{"aa": "bb"}),
	}, func(ctx context.Context, c *http.Client) error {
		res, err := c.Get("http://a.b")
		if err != nil {
			return err
		}
		defer res.Body.Close()
		status = res.StatusCode
		b, err := io.ReadAll(res.Body)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, &body)
	})
	assert.Check(t, err)
	assert.Check(t, cmp.Len(rep.Failures(), 0))
	assert.Check(t, cmp.Equal(status, http.StatusAccepted))
	assert.Check(t, cmp.DeepEqual(body, map[string]string{"aa": "bb"}))
}

func TestScope_SeveralRequests(t *testing.T) {
	var results []string
	rep, err := run(t, []expect.Request{
		expect.Get("http://a.b.c").RespondJSON(http.StatusOK, 1),
		expect.Get("http://a.b.c/1").RespondJSON(http.StatusOK, 2),
		expect.Get("http://a.b.c/2").RespondJSON(http.StatusOK, 3),
	}, func(ctx context.Context, c *http.Client) error {
		for _, u := range []string{"http://a.b.c", "http://a.b.c/wrong", "http://a.b.c/2"} {
			res, err := http.Get(u)
			if intercept.IsConnectionError(err) {
				continue
			}
			if err != nil {
				return err
			}
			b, err := io.ReadAll(res.Body)
			_ = res.Body.Close()
			if err != nil {
				return err
			}
			results = append(results, string(b))
		}
		return nil
	})
	assert.Check(t, err)
	assert.Check(t, cmp.DeepEqual(results, []string{"1", "3"}))

	subTests := rep.SubTests()
	assert.Assert(t, cmp.Len(subTests, 3))
	assert.Check(t, !subTests[0].Failed)
	assert.Check(t, subTests[1].Failed)
	assert.Check(t, !subTests[2].Failed)

	msg := subTests[1].Message()
	assert.Check(t, cmp.Equal(subTests[1].Name, "GET http://a.b.c/1"))
	assert.Check(t, cmp.Contains(msg, "Wrong URL!"))
	assert.Check(t, cmp.Contains(msg, "http://a.b.c/wrong"))
}

func TestScope_BodyErrorPropagates(t *testing.T) {
	bodyErr := errors.New("the code under test failed")
	rep, err := run(t, []expect.Request{expect.Get("http://a.b.c")}, func(ctx context.Context, c *http.Client) error {
		return bodyErr
	})
	assert.Check(t, cmp.ErrorIs(err, bodyErr))

	failures := rep.Failures()
	assert.Assert(t, cmp.Len(failures, 1))
	assert.Check(t, cmp.Contains(failures[0].Message(), "The pending request is missing!"))
	assert.Check(t, cmp.Contains(failures[0].Message(), "caused by: the code under test failed"))
}

func TestScope_PanicStillDeactivatesAndVerifies(t *testing.T) {
	original := http.DefaultTransport
	rep := fakereporter.New()
	s := New(rep, Config{Requests: []expect.Request{expect.Get("http://a.b.c")}})

	func() {
		defer func() {
			assert.Check(t, cmp.Equal(recover(), "boom"))
		}()
		_ = s.Run(testcontext.New(t), func(ctx context.Context, c *http.Client) error {
			panic("boom")
		})
	}()

	assert.Check(t, http.DefaultTransport == original)
	assert.Check(t, cmp.Equal(s.State(), Done))
	failures := rep.Failures()
	assert.Assert(t, cmp.Len(failures, 1))
	assert.Check(t, cmp.Contains(failures[0].Message(), "test body panicked: boom"))
}

func TestScope_Lifecycle(t *testing.T) {
	ctx := testcontext.New(t)
	rep := fakereporter.New()
	s := New(rep, Config{Requests: []expect.Request{expect.Get("http://a.b.c")}})
	assert.Check(t, cmp.Equal(s.State(), Idle))

	t.Run("exit before enter is refused", func(t *testing.T) {
		assert.Check(t, cmp.ErrorIs(s.Exit(ctx, nil), ErrState))
	})

	t.Run("enter arms the scope", func(t *testing.T) {
		assert.Assert(t, s.Enter(ctx))
		assert.Check(t, cmp.Equal(s.State(), Armed))
		assert.Check(t, cmp.ErrorIs(s.Enter(ctx), ErrState))
	})

	t.Run("calls are intercepted while armed", func(t *testing.T) {
		res, err := s.Client().Get("http://a.b.c")
		assert.Assert(t, err)
		assert.Check(t, res.Body.Close())
	})

	t.Run("exit verifies", func(t *testing.T) {
		assert.Check(t, s.Exit(ctx, nil))
		assert.Check(t, cmp.Equal(s.State(), Done))
		assert.Check(t, cmp.Len(s.Results(), 1))
		assert.Check(t, cmp.Len(rep.Failures(), 0))
		assert.Check(t, cmp.ErrorIs(s.Exit(ctx, nil), ErrState))
	})
}

func TestScope_InvalidExpectation(t *testing.T) {
	s := New(fakereporter.New(), Config{Requests: []expect.Request{expect.New("FETCH", "http://a.b.c")}})
	err := s.Enter(testcontext.New(t))
	assert.Check(t, cmp.ErrorIs(err, expect.ErrUnknownMethod))
	assert.Check(t, cmp.Equal(s.State(), Idle))
}

func TestScope_GzipJSONBody(t *testing.T) {
	rep, err := run(t, []expect.Request{
		expect.Post("http://a.b/c").WithJSON(map[string]string{"a": "b"}),
	}, func(ctx context.Context, c *http.Client) error {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write([]byte(`{"a":"b"}`)); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
		req, err := http.NewRequest("POST", "http://a.b/c", &buf)
		if err != nil {
			return err
		}
		req.Header.Set("Content-Encoding", "gzip")
		return do(c, req)
	})
	assert.Check(t, err)
	assert.Check(t, cmp.Len(rep.Failures(), 0))
}

func TestScope_StubServer(t *testing.T) {
	ctx := testcontext.New(t)
	srv := stubserver.New(ctx)
	rep := fakereporter.New()

	s := New(rep, Config{
		Stub: srv,
		Requests: []expect.Request{
			expect.Post(srv.URL() + "/login").
				WithJSON(map[string]string{"username": "the name"}).
				RespondJSON(http.StatusOK, map[string]string{"access_token": "the-token"}),
			expect.Get(srv.URL() + "/posts/3"),
		},
	})
	err := s.Run(ctx, func(ctx context.Context, c *http.Client) error {
		res, err := c.Post(srv.URL()+"/login", "application/json", strings.NewReader(`{"username":"the name"}`))
		if err != nil {
			return err
		}
		_ = res.Body.Close()
		res, err = c.Get(srv.URL() + "/posts/4")
		if err != nil {
			return err
		}
		return res.Body.Close()
	})
	assert.Check(t, err)

	failures := rep.Failures()
	assert.Assert(t, cmp.Len(failures, 1))
	assert.Check(t, cmp.Equal(failures[0].Name, "GET "+srv.URL()+"/posts/3"))
	assert.Check(t, cmp.Contains(failures[0].Message(), "Wrong URL!"))
}

func TestWrap(t *testing.T) {
	t.Run("decorated", Wrap([]expect.Request{
		expect.Get("http://my.site/posts/3").RespondJSON(http.StatusOK, map[string]int{"likes": 42}),
	}, func(t *testing.T, client *http.Client) error {
		res, err := client.Get("http://my.site/posts/3")
		if err != nil {
			return err
		}
		defer res.Body.Close()
		assert.Check(t, cmp.Equal(res.StatusCode, http.StatusOK))
		return nil
	}))
}

func TestForT_ExposesTestForHelpers(t *testing.T) {
	r, ok := ForT(t).(tbReporter)
	assert.Assert(t, ok)
	assert.Check(t, r.testingTB() == testing.TB(t))
}

func TestWith(t *testing.T) {
	With(t, []expect.Request{
		expect.Delete("http://my.site/posts/3").RespondBody(http.StatusNoContent, nil),
	}, func(client *http.Client) error {
		req, err := http.NewRequest("DELETE", "http://my.site/posts/3", nil)
		if err != nil {
			return err
		}
		return do(client, req)
	})
}

func run(t *testing.T, requests []expect.Request, body Body) (*fakereporter.Reporter, error) {
	t.Helper()
	rep := fakereporter.New()
	err := New(rep, Config{Requests: requests}).Run(testcontext.New(t), body)
	return rep, err
}

func newRequest(method, url, body string, h http.Header) func(t *testing.T) *http.Request {
	return func(t *testing.T) *http.Request {
		t.Helper()
		var r io.Reader
		if body != "" {
			r = strings.NewReader(body)
		}
		req, err := http.NewRequest(method, url, r)
		assert.Assert(t, err)
		for k, vs := range h {
			req.Header[k] = vs
		}
		return req
	}
}

func do(c *http.Client, req *http.Request) error {
	res, err := c.Do(req)
	if err != nil {
		return err
	}
	return res.Body.Close()
}
