package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	authclient "github.com/cronos-bakery/authclient"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

type fakeSource struct {
	snapshot authclient.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() authclient.MetricsSnapshot { return f.snapshot }
func (f fakeSource) NotificationsDropped() uint64                { return f.dropped }

func gather(t *testing.T, src fakeSource) map[string]*dto.MetricFamily {
	t.Helper()
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollectorFromSource(src))
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func TestCollectorOnlyDroppedWhenMetricsDisabled(t *testing.T) {
	families := gather(t, fakeSource{snapshot: authclient.MetricsSnapshot{
		Counters:   map[authclient.MetricID]uint64{},
		Histograms: map[authclient.MetricID][]uint64{},
	}})

	if len(families) != 1 {
		t.Fatalf("expected only the dropped counter, got %d families", len(families))
	}
	if _, ok := families["bakeryauth_notifications_dropped_total"]; !ok {
		t.Fatal("expected dropped counter")
	}
}

func TestCollectorCountersAndHistogram(t *testing.T) {
	families := gather(t, fakeSource{
		snapshot: authclient.MetricsSnapshot{
			Counters: map[authclient.MetricID]uint64{
				authclient.MetricLoginSuccess:  7,
				authclient.MetricRefreshShared: 11,
			},
			Histograms: map[authclient.MetricID][]uint64{
				authclient.MetricRequestLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	if got := families["bakeryauth_login_success_total"].GetMetric()[0].GetCounter().GetValue(); got != 7 {
		t.Fatalf("expected login success 7, got %v", got)
	}
	if got := families["bakeryauth_refresh_shared_total"].GetMetric()[0].GetCounter().GetValue(); got != 11 {
		t.Fatalf("expected shared refreshes 11, got %v", got)
	}
	if got := families["bakeryauth_notifications_dropped_total"].GetMetric()[0].GetCounter().GetValue(); got != 2 {
		t.Fatalf("expected dropped 2, got %v", got)
	}

	h := families["bakeryauth_request_latency_seconds"].GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 36 {
		t.Fatalf("expected 36 samples, got %d", h.GetSampleCount())
	}
	first := h.GetBucket()[0]
	if first.GetUpperBound() != 0.025 || first.GetCumulativeCount() != 1 {
		t.Fatalf("unexpected first bucket %v", first)
	}
	last := h.GetBucket()[len(h.GetBucket())-1]
	if last.GetUpperBound() != 2.5 || last.GetCumulativeCount() != 28 {
		t.Fatalf("unexpected last bucket %v", last)
	}
}

func TestHandlerServesTextFormat(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{snapshot: authclient.MetricsSnapshot{
		Counters:   map[authclient.MetricID]uint64{authclient.MetricLoginSuccess: 1},
		Histograms: map[authclient.MetricID][]uint64{},
	}})

	rec := httptest.NewRecorder()
	Handler(c).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "bakeryauth_login_success_total 1") {
		t.Fatalf("expected login counter in output, got:\n%s", body)
	}
}

func BenchmarkCollect(b *testing.B) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollectorFromSource(fakeSource{
		snapshot: authclient.MetricsSnapshot{
			Counters: map[authclient.MetricID]uint64{
				authclient.MetricLoginSuccess:   1000,
				authclient.MetricLoginFailure:   40,
				authclient.MetricRefreshSuccess: 800,
				authclient.MetricRequestRetried: 30,
			},
			Histograms: map[authclient.MetricID][]uint64{
				authclient.MetricRequestLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	}))

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = reg.Gather()
	}
}
