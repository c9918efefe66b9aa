package pipeline

import (
	"context"
	"net/http"
)

// TokenSource supplies the bearer token and records activity.
type TokenSource interface {
	// AccessToken returns a token that is present and not expired.
	AccessToken(ctx context.Context) (string, bool)
	// Touch records that an authenticated call succeeded.
	Touch(ctx context.Context)
}

// Attach adds "Authorization: Bearer <token>" to requests for non-public paths that do
// not already carry an Authorization header. Public auth endpoints always have the
// header removed. A 2xx answer to a request that carried the stored token touches the
// activity record.
func Attach(tokens TokenSource) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if IsPublicAuthPath(req.URL.Path) {
				if req.Header.Get("Authorization") != "" {
					req = cloneRequest(req)
					req.Header.Del("Authorization")
				}
				return next.RoundTrip(req)
			}

			attached := false
			if req.Header.Get("Authorization") == "" {
				if token, ok := tokens.AccessToken(req.Context()); ok {
					req = cloneRequest(req)
					req.Header.Set("Authorization", "Bearer "+token)
					attached = true
				}
			}

			resp, err := next.RoundTrip(req)
			if attached && err == nil && is2xx(resp) {
				tokens.Touch(req.Context())
			}
			return resp, err
		})
	}
}
