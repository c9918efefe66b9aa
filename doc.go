// Package authclient manages the signed-in session of the bakery admin client:
// token acquisition, refresh-on-401 with a single shared refresh, activity tracking,
// startup restoration and the HTTP request pipeline that authenticates feature
// calls.
//
// Client methods are safe to call from multiple goroutines after initialization
// through [Builder.Build].
//
// # Architecture boundaries
//
// authclient is the public surface. It exposes [Client], [Builder], [Config], the
// sealed [State] values and metric types. Token storage lives in session, claims
// decoding in jwt, request stages in pipeline, error classification in apierror and
// user feedback in notify. Restore and login decisions are pure functions under
// internal/flows.
//
// # What this package must NOT do
//
//   - Verify token signatures. Decoded claims are advisory; the backend decides.
//   - Expose storage media or the singleflight group in its public API.
//   - Import middleware or the metrics exporters (they import authclient).
//
// # Concurrency contract
//
// At most one refresh is in flight per Client. Requests that hit a 401 while it
// runs wait for it and are replayed once with the new token. A caller giving up
// never cancels the shared refresh.
package authclient
