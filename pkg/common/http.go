package common

import (
	_ "embed"
	"net/http"
	"strings"
	"time"
)

//go:embed VERSION
var version string

// Version is the release version embedded at build time.
func Version() string {
	return strings.TrimSpace(version)
}

type headerTransport struct {
	transport http.RoundTripper
	headers   http.Header
}

// RoundTrip sets the fixed headers on a clone of the request before passing
// it on.
func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid modifying the original request's headers
	// which might be shared or reused
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		if req.Header.Get(k) == "" {
			req.Header[k] = v
		}
	}
	return t.transport.RoundTrip(req)
}

// HTTPClient returns a default http client with a default user-agent set
func HTTPClient(timeout time.Duration) *http.Client {
	return HTTPClientWithHeaders(timeout, nil)
}

// HTTPClientWithHeaders returns an http client that adds the given headers to
// every request that does not already carry them. The user-agent is always
// set.
func HTTPClientWithHeaders(timeout time.Duration, headers http.Header) *http.Client {
	h := headers.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set("User-Agent", "mtecbridge/"+Version())

	return &http.Client{
		Transport: &headerTransport{
			transport: http.DefaultTransport,
			headers:   h,
		},
		Timeout: timeout,
	}
}
