package session

import (
	"context"
	"testing"
	"time"
)

func TestTrackerFreshnessWindow(t *testing.T) {
	ctx := context.Background()
	durable := NewMemoryMedium()
	defer durable.Close()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tracker := NewTracker(NewStore(nil, durable, DurabilityPersistent), func() time.Time { return now })

	if tracker.IsFresh(ctx) {
		t.Fatal("no activity recorded must not be fresh")
	}

	tracker.Touch(ctx)
	now = now.Add(SessionWindow - time.Second)
	if !tracker.IsFresh(ctx) {
		t.Fatal("activity inside the window must be fresh")
	}

	now = now.Add(time.Second)
	if tracker.IsFresh(ctx) {
		t.Fatal("activity exactly one window ago must be stale")
	}
}

func TestTrackerSessionStartAndClear(t *testing.T) {
	ctx := context.Background()
	durable := NewMemoryMedium()
	defer durable.Close()

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	now := start
	tracker := NewTracker(NewStore(nil, durable, DurabilityPersistent), func() time.Time { return now })

	tracker.MarkSessionStart(ctx)
	now = now.Add(5 * time.Minute)
	tracker.Touch(ctx)

	got, ok := tracker.SessionStart(ctx)
	if !ok || !got.Equal(start) {
		t.Fatalf("expected session start %v, got %v ok=%v", start, got, ok)
	}
	last, ok := tracker.LastActivity(ctx)
	if !ok || !last.Equal(now) {
		t.Fatalf("expected last activity %v, got %v", now, last)
	}

	tracker.Clear(ctx)
	if _, ok := tracker.SessionStart(ctx); ok {
		t.Fatal("expected session start cleared")
	}
	if tracker.IsFresh(ctx) {
		t.Fatal("cleared tracker must not be fresh")
	}
}

func TestTrackerIgnoresGarbageTimestamps(t *testing.T) {
	ctx := context.Background()
	durable := NewMemoryMedium()
	defer durable.Close()

	_ = durable.Set(ctx, KeyLastActivity, "yesterday", 0)
	tracker := NewTracker(NewStore(nil, durable, DurabilityPersistent), nil)
	if tracker.IsFresh(ctx) {
		t.Fatal("unparseable timestamp must not be fresh")
	}
}
