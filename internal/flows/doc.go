// Package flows holds the pure decision functions behind Client operations.
//
// Each function takes a plain input struct or error and returns a verdict. The
// Client gathers the inputs from its store, tracker and decoder, asks flows what to
// do, then performs the side effects itself.
//
// # Architecture boundaries
//
// flows knows the apierror taxonomy and nothing else of the module. It never reads
// storage, never performs HTTP calls and never touches session state.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import authclient (to avoid import cycles).
//   - Perform I/O.
package flows
