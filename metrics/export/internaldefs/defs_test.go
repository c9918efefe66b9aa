package internaldefs

import (
	"strings"
	"testing"

	authclient "github.com/cronos-bakery/authclient"
)

func TestEveryCounterIsExported(t *testing.T) {
	seen := map[authclient.MetricID]bool{}
	names := map[string]bool{}
	for _, def := range CounterDefs {
		if seen[def.ID] {
			t.Fatalf("metric %d defined twice", def.ID)
		}
		if names[def.Name] {
			t.Fatalf("name %s defined twice", def.Name)
		}
		if !strings.HasPrefix(def.Name, "bakeryauth_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("unexpected counter name %s", def.Name)
		}
		seen[def.ID] = true
		names[def.Name] = true
	}

	snap := authclient.NewMetrics(authclient.MetricsConfig{Enabled: true}).Snapshot()
	for id := range snap.Counters {
		if !seen[id] {
			t.Fatalf("counter %d has no export definition", id)
		}
	}
}

func TestBoundsLineUp(t *testing.T) {
	if len(HistogramBounds) != 8 || len(HistogramBoundSuffix) != 8 || len(HistogramBoundValues) != 7 {
		t.Fatal("bucket tables out of sync")
	}
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	if got != [8]uint64{1, 3, 6, 6, 6, 6, 6, 6} {
		t.Fatalf("unexpected cumulative buckets %v", got)
	}
}
