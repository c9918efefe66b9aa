// Package internal holds helpers private to authclient.
//
// # Sub-packages
//
//   - flows: pure decisions for startup restore, login replies and re-authentication
//   - wire: the backend's {success, message, data, timestamp} response envelope
//   - logging: zerolog construction and token fingerprints
//   - backendtest: an in-process fake of the bakery API for tests and examples
//
// # What this package must NOT do
//
//   - Export types that appear in the public authclient API.
package internal
