package session

import (
	"context"
	"strconv"
	"time"
)

// SessionWindow is how long after the last recorded activity a stored session is
// still considered fresh.
const SessionWindow = 30 * time.Minute

// Tracker records activity timestamps next to the refresh token.
type Tracker struct {
	store *Store
	now   func() time.Time
}

// NewTracker returns a Tracker writing through store. A nil now uses time.Now.
func NewTracker(store *Store, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{store: store, now: now}
}

// Touch records the current time as the last activity.
func (t *Tracker) Touch(ctx context.Context) {
	t.write(ctx, KeyLastActivity, t.now())
}

// MarkSessionStart records the current time as both session start and last activity.
func (t *Tracker) MarkSessionStart(ctx context.Context) {
	now := t.now()
	t.write(ctx, KeySessionTimestamp, now)
	t.write(ctx, KeyLastActivity, now)
}

// LastActivity returns the last recorded activity.
func (t *Tracker) LastActivity(ctx context.Context) (time.Time, bool) {
	return t.read(ctx, KeyLastActivity)
}

// SessionStart returns when the current session began.
func (t *Tracker) SessionStart(ctx context.Context) (time.Time, bool) {
	return t.read(ctx, KeySessionTimestamp)
}

// IsFresh reports whether the last activity is less than SessionWindow ago.
// A missing or unreadable record is not fresh.
func (t *Tracker) IsFresh(ctx context.Context) bool {
	last, ok := t.LastActivity(ctx)
	if !ok {
		return false
	}
	return t.now().Sub(last) < SessionWindow
}

// Clear removes both timestamps.
func (t *Tracker) Clear(ctx context.Context) {
	t.store.deleteDurable(ctx, KeyLastActivity, KeySessionTimestamp)
}

func (t *Tracker) write(ctx context.Context, key string, at time.Time) {
	t.store.set(ctx, t.store.durable, key, strconv.FormatInt(at.UnixMilli(), 10), 0)
}

func (t *Tracker) read(ctx context.Context, key string) (time.Time, bool) {
	raw, ok := t.store.get(ctx, t.store.durable, key)
	if !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
