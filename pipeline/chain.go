package pipeline

import (
	"context"
	"net/http"
	"strings"
)

const (
	// SkipLoadingHeader marks a request that must not show the busy indicator.
	SkipLoadingHeader = "X-Skip-Loading"
	// RequestIDHeader carries the per-request correlation id.
	RequestIDHeader = "X-Request-ID"
)

// Middleware wraps a RoundTripper.
type Middleware func(next http.RoundTripper) http.RoundTripper

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Chain wraps base so that mws[0] sees the request first.
func Chain(base http.RoundTripper, mws ...Middleware) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	rt := base
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			rt = mws[i](rt)
		}
	}
	return rt
}

// Auth endpoints that must never carry a bearer token.
var publicAuthEndpoints = []string{
	"/auth/login",
	"/auth/register",
	"/auth/refresh",
	"/auth/forgot-password",
	"/auth/reset-password",
}

// IsPublicAuthPath reports whether path is an endpoint called without credentials.
func IsPublicAuthPath(path string) bool {
	path = strings.TrimSuffix(path, "/")
	for _, suffix := range publicAuthEndpoints {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

// IsAuthPath reports whether path belongs to the auth API. 401s on these paths are
// never recovered by refreshing.
func IsAuthPath(path string) bool {
	return strings.Contains(path, "/auth/")
}

// SkipLoading marks req so the busy indicator stays hidden for it.
func SkipLoading(req *http.Request) {
	req.Header.Set(SkipLoadingHeader, "true")
}

type noReportKey struct{}
type attemptKey struct{}

// WithoutReporting marks requests made with ctx so failures are returned to the
// caller without user notifications.
func WithoutReporting(ctx context.Context) context.Context {
	return context.WithValue(ctx, noReportKey{}, true)
}

func reportingDisabled(ctx context.Context) bool {
	v, _ := ctx.Value(noReportKey{}).(bool)
	return v
}

func withAttempt(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, attemptKey{}, n)
}

// Attempt returns how many times the request in ctx has been replayed.
func Attempt(ctx context.Context) int {
	n, _ := ctx.Value(attemptKey{}).(int)
	return n
}

func cloneRequest(req *http.Request) *http.Request {
	return req.Clone(req.Context())
}

func is2xx(resp *http.Response) bool {
	return resp != nil && resp.StatusCode >= 200 && resp.StatusCode < 300
}
