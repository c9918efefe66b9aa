// Package prometheus exposes client metrics to Prometheus.
//
// [NewCollector] adapts a Client's metrics snapshot to a prometheus.Collector and
// [Handler] serves it. Counters are named bakeryauth_*_total; the single histogram
// is bakeryauth_request_latency_seconds.
//
// # What this package must NOT do
//
//   - Register in the global Prometheus registry. Callers mount the Handler or
//     register the Collector themselves.
//   - Mutate client state.
package prometheus
