package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func TestRedisMediumSetGetDelete(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	m := NewRedisMedium(rdb)

	if err := m.Set(ctx, "bakery:refresh_token", "r-1", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := m.Set(ctx, "bakery:access_token", "a-1", time.Minute); err != nil {
		t.Fatalf("set with ttl: %v", err)
	}
	if ttl := mr.TTL("bakery:access_token"); ttl != time.Minute {
		t.Fatalf("expected ttl 1m, got %v", ttl)
	}
	if ttl := mr.TTL("bakery:refresh_token"); ttl != 0 {
		t.Fatalf("expected no ttl on refresh token, got %v", ttl)
	}

	v, ok, err := m.Get(ctx, "bakery:refresh_token")
	if err != nil || !ok || v != "r-1" {
		t.Fatalf("get: %q ok=%v err=%v", v, ok, err)
	}

	if err := m.Delete(ctx, "bakery:refresh_token", "bakery:access_token", "bakery:missing"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := m.Get(ctx, "bakery:refresh_token"); ok {
		t.Fatal("expected key deleted")
	}
}

func TestRedisMediumAbsentKeyIsNotAnError(t *testing.T) {
	_, rdb := newTestRedis(t)
	_, ok, err := NewRedisMedium(rdb).Get(context.Background(), "nope")
	if ok || err != nil {
		t.Fatalf("expected clean absence, ok=%v err=%v", ok, err)
	}
}

func TestRedisMediumOutageWrapsError(t *testing.T) {
	mr, rdb := newTestRedis(t)
	mr.Close()

	_, _, err := NewRedisMedium(rdb).Get(context.Background(), "k")
	if !errors.Is(err, ErrMediumUnavailable) {
		t.Fatalf("expected ErrMediumUnavailable, got %v", err)
	}
}

func TestStoreOverRedisTreatsOutageAsAbsent(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	store := NewStore(nil, NewRedisMedium(rdb), DurabilitySplit)

	store.SetRefreshToken(ctx, "r-1")
	if _, ok := store.RefreshToken(ctx); !ok {
		t.Fatal("expected refresh token while redis is up")
	}

	mr.Close()
	if v, ok := store.RefreshToken(ctx); ok || v != "" {
		t.Fatalf("expected absence during outage, got %q", v)
	}
	store.Clear(ctx)
}
