// Package pipeline builds the http.RoundTripper chain every backend request passes
// through.
//
// Stages, outermost first, as assembled by the root client:
//
//   - [RequestID] tags the request with X-Request-ID.
//   - [Busy] shows the busy indicator for the life of the request unless the
//     X-Skip-Loading header is present (the header is stripped before sending).
//   - [Report] turns every response with status >= 400 and every transport failure
//     into an *apierror.Error, notifies the user, and returns the error.
//   - [Recover] answers a 401 on a non-auth endpoint with one shared refresh and a
//     single replay of the request.
//   - [Attach] adds the bearer token to non-auth requests.
//
// # Response contract
//
// Unlike a plain transport, the assembled chain returns an error for HTTP failures
// rather than a response. Callers receive a nil response and an error that unwraps
// to *apierror.Error; successful responses are returned untouched.
//
// # What this package must NOT do
//
//   - Store tokens or decide session state (it depends on [TokenSource] and [Refresher]).
//   - Retry anything other than a single authentication failure.
//   - Swallow an error after reporting it.
package pipeline
