package httprecorder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// Request is a recorded copy of an HTTP request.
type Request struct {
	Method string
	URL    url.URL
	Header http.Header
	// Body is nil if the request had no body
	Body []byte
}

func (r *Request) StringBody() string {
	return string(r.Body)
}

// Decode decodes the JSON from the request into the supplied pointer
func (r *Request) Decode(x interface{}) error {
	b, err := r.DecodedBody()
	if err != nil {
		return err
	}
	return json.Unmarshal(b, x)
}

// DecodedBody returns the body with any gzip content encoding removed.
func (r *Request) DecodedBody() (_ []byte, err error) {
	if r.Header.Get("Content-Encoding") != "gzip" || len(r.Body) == 0 {
		return r.Body, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(r.Body))
	if err != nil {
		return nil, fmt.Errorf("gzip body: %w", err)
	}
	defer func() {
		cerr := zr.Close()
		if err == nil {
			err = cerr
		}
	}()
	return io.ReadAll(zr)
}

func (r *Request) String() string {
	return fmt.Sprintf("%s %s", r.Method, r.URL.String())
}

type RequestRecorder struct {
	mu       sync.RWMutex
	requests []Request
}

func New() *RequestRecorder {
	return &RequestRecorder{}
}

// Record stores a copy of the request, replacing its body so the caller can
// still consume it.
func (r *RequestRecorder) Record(request *http.Request) (err error) {
	req := Request{
		Method: request.Method,
		URL:    *request.URL,
		Header: request.Header.Clone(),
	}
	if req.Header == nil {
		req.Header = http.Header{}
	}

	if request.Body != nil && request.Body != http.NoBody {
		req.Body, err = io.ReadAll(request.Body)
		_ = request.Body.Close()
		if err != nil {
			return err
		}
		request.Body = io.NopCloser(bytes.NewReader(req.Body))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)

	return nil
}

func (r *RequestRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = nil
}

func (r *RequestRecorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.requests)
}

// AllRequests returns the recorded requests in the order they were made.
func (r *RequestRecorder) AllRequests() []Request {
	r.mu.RLock()
	defer r.mu.RUnlock()
	requests := make([]Request, len(r.requests))
	copy(requests, r.requests)
	return requests
}
