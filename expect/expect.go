// Package expect describes the outbound HTTP requests a test expects to be made,
// and the canned responses to answer them with.
package expect

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrMissingURL    = errors.New("expected request has no URL")
	ErrUnknownMethod = errors.New("unknown method")
)

// Method is an HTTP method. The empty Method means GET.
type Method string

const (
	GET     Method = http.MethodGet
	POST    Method = http.MethodPost
	PUT     Method = http.MethodPut
	PATCH   Method = http.MethodPatch
	DELETE  Method = http.MethodDelete
	HEAD    Method = http.MethodHead
	OPTIONS Method = http.MethodOptions
)

// String returns the method, or GET when m is empty.
func (m Method) String() string {
	if m == "" {
		return http.MethodGet
	}
	return string(m)
}

// Valid reports whether m is one of the supported methods.
func (m Method) Valid() bool {
	switch Method(m.String()) {
	case GET, POST, PUT, PATCH, DELETE, HEAD, OPTIONS:
		return true
	}
	return false
}

// Response is the canned answer to an expected request.
type Response struct {
	// Status defaults to 200
	Status int
	// JSON, if not nil, is encoded as the response body.
	JSON interface{}
	// Body is used as the response body when JSON is nil.
	Body   []byte
	Header http.Header
}

// StatusCode returns the status to respond with.
func (r Response) StatusCode() int {
	if r.Status == 0 {
		return http.StatusOK
	}
	return r.Status
}

// Request is one expected outbound request. It should be treated as a value,
// the With and Respond helpers return modified copies.
type Request struct {
	URL    string
	Method Method

	// JSON is compared structurally against the decoded request body.
	JSON Field[interface{}]
	// Body is compared byte for byte against the request body.
	Body Field[[]byte]
	// Headers must equal the full set of request headers.
	Headers Field[map[string]string]
	// HeadersContain must be a subset of the request headers.
	HeadersContain Field[map[string]string]

	Response Response
}

// New returns an expectation for a request to url that checks only the URL and
// method, and is answered with an empty 200.
func New(method Method, url string) Request {
	return Request{Method: method, URL: url}
}

// Get expects a GET request to url.
func Get(url string) Request { return New(GET, url) }

// Post expects a POST request to url.
func Post(url string) Request { return New(POST, url) }

// Put expects a PUT request to url.
func Put(url string) Request { return New(PUT, url) }

// Patch expects a PATCH request to url.
func Patch(url string) Request { return New(PATCH, url) }

// Delete expects a DELETE request to url.
func Delete(url string) Request { return New(DELETE, url) }

// Head expects a HEAD request to url.
func Head(url string) Request { return New(HEAD, url) }

// Options expects an OPTIONS request to url.
func Options(url string) Request { return New(OPTIONS, url) }

// WithJSON expects the request body to decode to the same JSON as v.
func (r Request) WithJSON(v interface{}) Request {
	r.JSON = Value(v)
	return r
}

// WithBody expects the request body to be exactly b.
func (r Request) WithBody(b []byte) Request {
	r.Body = Value(append([]byte(nil), b...))
	return r
}

// WithHeaders expects the request to carry exactly the headers in h.
func (r Request) WithHeaders(h map[string]string) Request {
	r.Headers = Value(copyMap(h))
	return r
}

// WithHeadersContaining expects the request headers to include h.
func (r Request) WithHeadersContaining(h map[string]string) Request {
	r.HeadersContain = Value(copyMap(h))
	return r
}

// RespondJSON answers with status and v encoded as JSON.
func (r Request) RespondJSON(status int, v interface{}) Request {
	r.Response.Status = status
	r.Response.JSON = v
	return r
}

// RespondBody answers with status and the raw body b.
func (r Request) RespondBody(status int, b []byte) Request {
	r.Response.Status = status
	r.Response.JSON = nil
	r.Response.Body = append([]byte(nil), b...)
	return r
}

// RespondHeader adds a header to the response.
func (r Request) RespondHeader(key, value string) Request {
	h := r.Response.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Add(key, value)
	r.Response.Header = h
	return r
}

// Validate checks the request can be registered with a stub.
func (r Request) Validate() error {
	if r.URL == "" {
		return ErrMissingURL
	}
	if !r.Method.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownMethod, string(r.Method))
	}
	return nil
}

// String returns the method and URL, as used for sub-test names.
func (r Request) String() string {
	return fmt.Sprintf("%s %s", r.Method, r.URL)
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
