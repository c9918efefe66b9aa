// Package middleware exposes the route guards of the admin shell.
//
// # Guards
//
//   - [Protected] / [RequireAuthenticated]: authenticated sessions only; others go
//     to the login page with the requested path preserved.
//   - [GuestOnly] / [RequireGuest]: anonymous sessions only; signed-in users go to
//     the landing page.
//   - [RequireRole]: authenticated sessions holding one of the listed roles.
//
// The pure functions decide from a State; the net/http adapters first wait for any
// in-flight refresh through Client.Settled, then answer with a 302.
//
// # Architecture boundaries
//
// This package translates session state into navigation decisions. It does NOT
// talk to the backend; all session knowledge comes from authclient.
//
// # What this package must NOT do
//
//   - Decode or inspect tokens.
//   - Trigger a refresh or a logout.
//   - Treat a Refreshing session as authenticated without waiting for it to settle.
package middleware
