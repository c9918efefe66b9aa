package authclient

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cronos-bakery/authclient/internal/backendtest"
	"github.com/cronos-bakery/authclient/notify"
	"github.com/cronos-bakery/authclient/session"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	t       *testing.T
	backend *backendtest.Backend
	baseURL string
	durable *session.MemoryMedium
	clock   *testClock
	sink    *notify.ChannelSink
	spinner *notify.Spinner
}

func newHarness(t *testing.T, opts ...backendtest.Option) *harness {
	t.Helper()
	backend, baseURL := backendtest.NewServer(t, opts...)
	durable := session.NewMemoryMedium()
	t.Cleanup(durable.Close)

	return &harness{
		t:       t,
		backend: backend,
		baseURL: baseURL,
		durable: durable,
		clock:   newTestClock(),
		sink:    notify.NewChannelSink(64),
		spinner: notify.NewSpinner(nil),
	}
}

// client builds a Client over the harness's durable medium. Building a second
// client over the same medium simulates a process restart.
func (h *harness) client(mutate ...func(*Config)) *Client {
	h.t.Helper()

	cfg := DefaultConfig()
	cfg.API.BaseURL = h.baseURL
	cfg.Notifications.DedupeWindow = 0
	for _, m := range mutate {
		m(&cfg)
	}

	c, err := New().
		WithConfig(cfg).
		WithMedium(h.durable).
		WithNotifier(h.sink).
		WithIndicator(h.spinner).
		WithClock(h.clock.Now).
		Build()
	if err != nil {
		h.t.Fatalf("build client: %v", err)
	}
	h.t.Cleanup(func() { _ = c.Close() })
	return c
}

func (h *harness) login(c *Client, username, password string) *LoginResult {
	h.t.Helper()
	res, err := c.Login(context.Background(), Credentials{Username: username, Password: password})
	if err != nil {
		h.t.Fatalf("login %s: %v", username, err)
	}
	return res
}

func (h *harness) notifications() []notify.Notification {
	var out []notify.Notification
	for {
		select {
		case n := <-h.sink.Events():
			out = append(out, n)
		default:
			return out
		}
	}
}

func persistent(cfg *Config) {
	cfg.Storage.Durability = session.DurabilityPersistent
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
