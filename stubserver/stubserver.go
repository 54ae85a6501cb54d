/*
Package stubserver is a fake HTTP server answering expected requests with canned responses.

It suits code under test that is configured with a base URL rather than an http.Client.
Requests to routes that were not registered are answered with 502 Bad Gateway, and like
every other request they are recorded, so verification reports them as unexpected.
*/
package stubserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/circleci/reqassert/expect"
	"github.com/circleci/reqassert/internal/responses"
	"github.com/circleci/reqassert/testing/httprecorder"
	"github.com/circleci/reqassert/testing/httprecorder/ginrecorder"
)

var ErrStarted = errors.New("server already started")

var once sync.Once

type Server struct {
	log    zerolog.Logger
	engine *gin.Engine
	srv    *httptest.Server
	rec    *httprecorder.RequestRecorder

	mu      sync.Mutex
	routes  map[string]*responses.Queue
	started bool
	closed  bool
}

func New(ctx context.Context) *Server {
	once.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	s := &Server{
		log:    *zerolog.Ctx(ctx),
		rec:    httprecorder.New(),
		routes: make(map[string]*responses.Queue),
	}

	r := gin.New()
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.UseRawPath = true
	r.Use(
		ginrecorder.Middleware(ctx, s.rec),
		gin.Recovery(),
	)
	r.NoRoute(s.unmatched)
	s.engine = r

	// the listener exists before Start, so URL is known while building expectations
	s.srv = httptest.NewUnstartedServer(r)
	return s
}

// URL is the base URL of the server, eg. http://127.0.0.1:41234
func (s *Server) URL() string {
	return "http://" + s.srv.Listener.Addr().String()
}

// Register adds a canned response for method and the path of rawURL. Repeated
// registrations queue their responses as intercept.Transport does.
func (s *Server) Register(method, rawURL string, resp expect.Response) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("register %s %s: %w", method, rawURL, err)
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrStarted
	}

	key := method + " " + path
	q, ok := s.routes[key]
	if !ok {
		q = &responses.Queue{}
		s.routes[key] = q
		s.engine.Handle(method, path, s.handler(q))
		if !strings.HasSuffix(path, "/") {
			s.engine.Handle(method, path+"/", s.handler(q))
		}
	}
	q.Push(resp)

	s.log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode()).
		Msg("expectation registered")
	return nil
}

// Activate starts serving.
func (s *Server) Activate(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if s.closed {
		return errors.New("server closed")
	}
	s.started = true
	s.srv.Start()
	s.log.Debug().Str("url", s.srv.URL).Int("routes", len(s.routes)).Msg("stub server started")
	return nil
}

// Deactivate stops the server. It is safe to call more than once.
func (s *Server) Deactivate(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.srv.Close()
	s.log.Debug().Int("calls", s.rec.Len()).Msg("stub server stopped")
	return nil
}

// Client returns a client for the server. Before Activate it is http.DefaultClient.
func (s *Server) Client() *http.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return http.DefaultClient
	}
	return s.srv.Client()
}

// RecordedCalls returns the requests the server received, with absolute URLs.
func (s *Server) RecordedCalls() []httprecorder.Request {
	calls := s.rec.AllRequests()
	host := s.srv.Listener.Addr().String()
	for i := range calls {
		calls[i].URL.Scheme = "http"
		calls[i].URL.Host = host
	}
	return calls
}

func (s *Server) handler(q *responses.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := q.Next()
		for k, vs := range resp.Header {
			for _, v := range vs {
				c.Writer.Header().Add(k, v)
			}
		}
		switch {
		case resp.JSON != nil:
			c.JSON(resp.StatusCode(), resp.JSON)
		case len(resp.Body) > 0:
			c.Data(resp.StatusCode(), "application/octet-stream", resp.Body)
		default:
			c.Status(resp.StatusCode())
		}
	}
}

func (s *Server) unmatched(c *gin.Context) {
	s.log.Warn().Str("method", c.Request.Method).Str("path", c.Request.URL.Path).Msg("unmatched call")
	c.JSON(http.StatusBadGateway, gin.H{
		"error": fmt.Sprintf("no expectation registered for %s %s", c.Request.Method, c.Request.URL.Path),
	})
}
