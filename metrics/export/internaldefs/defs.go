package internaldefs

import (
	authclient "github.com/cronos-bakery/authclient"
)

// CounterDef names one client counter.
type CounterDef struct {
	ID   authclient.MetricID
	Name string
	Help string
}

// HistogramDef names one client histogram.
type HistogramDef struct {
	ID   authclient.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in output order.
var CounterDefs = []CounterDef{
	{ID: authclient.MetricLoginSuccess, Name: "bakeryauth_login_success_total", Help: "Logins that established a session."},
	{ID: authclient.MetricLoginFailure, Name: "bakeryauth_login_failure_total", Help: "Logins rejected by the backend or the transport."},
	{ID: authclient.MetricLoginTwoFactorRequired, Name: "bakeryauth_login_two_factor_required_total", Help: "Logins that stopped at the one-time code step."},
	{ID: authclient.MetricLogout, Name: "bakeryauth_logout_total", Help: "Local logouts, forced or requested."},
	{ID: authclient.MetricLogoutServerFailure, Name: "bakeryauth_logout_server_failure_total", Help: "Best-effort server logouts that failed."},
	{ID: authclient.MetricRefreshSuccess, Name: "bakeryauth_refresh_success_total", Help: "Completed token refreshes."},
	{ID: authclient.MetricRefreshFailure, Name: "bakeryauth_refresh_failure_total", Help: "Refreshes that ended the session."},
	{ID: authclient.MetricRefreshShared, Name: "bakeryauth_refresh_shared_total", Help: "Callers that joined a refresh already in flight."},
	{ID: authclient.MetricRestoreFresh, Name: "bakeryauth_restore_fresh_total", Help: "Startup restores without a network call."},
	{ID: authclient.MetricRestoreRefreshed, Name: "bakeryauth_restore_refreshed_total", Help: "Startup restores completed through a refresh."},
	{ID: authclient.MetricRestoreFailed, Name: "bakeryauth_restore_failed_total", Help: "Startup restores that left the session anonymous."},
	{ID: authclient.MetricRequestRetried, Name: "bakeryauth_request_retried_total", Help: "Requests replayed after a 401."},
	{ID: authclient.MetricRequestError, Name: "bakeryauth_request_error_total", Help: "Requests that ended in an API error."},
	{ID: authclient.MetricReauthSuccess, Name: "bakeryauth_reauth_success_total", Help: "Successful re-authentications."},
	{ID: authclient.MetricReauthFailure, Name: "bakeryauth_reauth_failure_total", Help: "Failed re-authentications."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: authclient.MetricRequestLatency, Name: "bakeryauth_request_latency_seconds", Help: "API round-trip latency."},
}

// NotificationsDroppedName is the counter for notifications lost to backpressure.
const (
	NotificationsDroppedName = "bakeryauth_notifications_dropped_total"
	NotificationsDroppedHelp = "Notifications dropped because the dispatcher queue was full."
)

// HistogramBounds are the bucket upper bounds in seconds, as Prometheus labels.
var HistogramBounds = []string{
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"+Inf",
}

// HistogramBoundValues are HistogramBounds without the +Inf bucket.
var HistogramBoundValues = []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// HistogramBoundSuffix renders HistogramBounds as metric name suffixes.
var HistogramBoundSuffix = []string{
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
