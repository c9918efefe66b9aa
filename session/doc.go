// Package session persists the client side of an authenticated session: the token
// pair, the cached identity, and the activity record used to judge freshness.
//
// # Media
//
// A [Medium] is a key/value backend. [MemoryMedium] keeps values for the life of the
// process (ttlcache), [RedisMedium] and [FileMedium] survive restarts. The [Store]
// routes each key to a medium according to its [Durability] policy.
//
// # Architecture boundaries
//
// This package owns storage only. It does NOT decode tokens, call the backend, or
// decide whether a session may be restored; the root client does that using the
// values read here.
//
// # What this package must NOT do
//
//   - Import the root client package (no upward imports).
//   - Surface medium failures to callers of [Store] (failures are logged and read as absent).
//   - Log token values.
package session
