package httputil

import (
	"net/http"
	"time"
)

// DefaultTimeout covers a full multi-year weather file download.
const DefaultTimeout = 2 * time.Minute

const UserAgent = "vocmax (+https://github.com/lox/vocmax)"

// NewClient returns an HTTP client for weather mirrors. A zero timeout uses
// DefaultTimeout.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &userAgent{next: http.DefaultTransport},
	}
}

type userAgent struct {
	next http.RoundTripper
}

func (u *userAgent) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return u.next.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", UserAgent)
	return u.next.RoundTrip(r)
}
