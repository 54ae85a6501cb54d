/*
Package httpnetrecorder wires a httprecorder into net/http, either on the client side as a
RoundTripper or on the server side as a handler middleware.
*/
package httpnetrecorder

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/circleci/reqassert/testing/httprecorder"
)

// Middleware records every request before handing it to h. It is for fake
// servers built on a plain http.Handler; gin based ones use ginrecorder.
func Middleware(ctx context.Context, rec *httprecorder.RequestRecorder, h http.Handler) http.Handler {
	log := zerolog.Ctx(ctx)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := rec.Record(r)
		if err != nil {
			log.Error().Err(err).Msg("problem recording HTTP request")
		}
		h.ServeHTTP(w, r)
	})
}

// Transport records every outgoing request before handing it to next.
// The request passed on is a clone, so the caller's request is left untouched.
func Transport(ctx context.Context, rec *httprecorder.RequestRecorder, next http.RoundTripper) http.RoundTripper {
	log := zerolog.Ctx(ctx)
	return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		r = r.Clone(r.Context())
		err := rec.Record(r)
		if err != nil {
			log.Error().Err(err).Str("method", r.Method).Str("url", r.URL.String()).
				Msg("problem recording HTTP request")
		}
		return next.RoundTrip(r)
	})
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
