package notify

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Dedupe suppresses a notification identical to one forwarded within the window.
// Notifications are identical when level, field and message match; the request
// that raised them is not part of the comparison.
type Dedupe struct {
	next   Notifier
	seen   *ttlcache.Cache[string, struct{}]
	window time.Duration
}

// NewDedupe wraps next. A window of zero or less forwards everything.
func NewDedupe(next Notifier, window time.Duration) *Dedupe {
	if next == nil {
		next = NoOp{}
	}
	seen := ttlcache.New[string, struct{}](
		ttlcache.WithTTL[string, struct{}](window),
		ttlcache.WithDisableTouchOnHit[string, struct{}](),
	)
	go seen.Start()
	return &Dedupe{next: next, seen: seen, window: window}
}

func (d *Dedupe) Notify(ctx context.Context, n Notification) {
	if d.window <= 0 {
		d.next.Notify(ctx, n)
		return
	}
	key := string(n.Level) + "\x00" + n.Field + "\x00" + n.Message
	if _, found := d.seen.GetOrSet(key, struct{}{}); found {
		return
	}
	d.next.Notify(ctx, n)
}

// Close stops the expiry loop.
func (d *Dedupe) Close() {
	d.seen.Stop()
}
