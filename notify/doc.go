// Package notify delivers user-facing feedback produced by the request pipeline:
// error notifications and the global busy indicator.
//
// # Notifications
//
// A [Notifier] receives one [Notification] per reported failure (one per field for
// validation errors). Sinks are synchronous; wrap a slow sink in a [Dispatcher] to
// move delivery off the request goroutine, and in [Dedupe] to collapse the burst of
// identical messages produced when several queued requests fail together.
//
// # Busy indicator
//
// An [Indicator] is shown and hidden once per request. [Spinner] aggregates
// concurrent requests into a single visible/hidden signal.
//
// # What this package must NOT do
//
//   - Classify errors or inspect HTTP responses (the pipeline does that).
//   - Block the caller indefinitely; a closed Dispatcher drops events.
package notify
