package pipeline

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RequestID sets X-Request-ID to a random UUID when the caller did not set one.
func RequestID() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get(RequestIDHeader) == "" {
				req = cloneRequest(req)
				req.Header.Set(RequestIDHeader, uuid.NewString())
			}
			return next.RoundTrip(req)
		})
	}
}

// Timing calls observe with the duration and outcome of every round trip.
func Timing(observe func(d time.Duration, err error)) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(req)
			observe(time.Since(start), err)
			return resp, err
		})
	}
}
