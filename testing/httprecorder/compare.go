package httprecorder

import (
	"net/http"
	"strings"

	gocmp "github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// OnlyHeaders restricts a comparison of http.Header values to the named headers.
// Names must be in canonical form.
func OnlyHeaders(headers ...string) gocmp.Option {
	return cmpopts.IgnoreMapEntries(func(h string, _ []string) bool {
		return !contains(headers, h)
	})
}

// FlatHeader joins multi-valued headers with ", " so each header has a single value.
func FlatHeader(h http.Header) http.Header {
	flat := make(http.Header, len(h))
	for k, v := range h {
		flat[http.CanonicalHeaderKey(k)] = []string{strings.Join(v, ", ")}
	}
	return flat
}

// HeaderFromMap builds a single valued http.Header with canonical names.
func HeaderFromMap(m map[string]string) http.Header {
	h := make(http.Header, len(m))
	for k, v := range m {
		h[http.CanonicalHeaderKey(k)] = []string{v}
	}
	return h
}

func contains(headers []string, h string) bool {
	for _, header := range headers {
		if header == h {
			return true
		}
	}
	return false
}
