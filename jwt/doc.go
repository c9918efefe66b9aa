// Package jwt decodes the payload of bearer access tokens on the client side.
//
// The decoder reads the subject and expiry claims so the session layer can decide
// whether a stored access token is still usable before a request is sent.
//
// # Architecture boundaries
//
// Decoding is advisory. The backend verifies signatures; this package only parses
// the base64url payload segment and never holds signing keys.
//
// # What this package must NOT do
//
//   - Treat a decoded token as proof of identity or authorization.
//   - Read or write token storage (the session package owns storage).
//   - Perform network I/O.
package jwt
