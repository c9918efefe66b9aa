package session

import (
	"context"
	"testing"
	"time"
)

type cachedUser struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

func newSplitStore(t *testing.T) (*Store, *MemoryMedium, *MemoryMedium) {
	t.Helper()
	scoped := NewMemoryMedium()
	durable := NewMemoryMedium()
	t.Cleanup(func() {
		scoped.Close()
		durable.Close()
	})
	return NewStore(scoped, durable, DurabilitySplit, WithKeyPrefix("bakery:")), scoped, durable
}

func TestStoreSplitKeepsAccessTokenSessionScoped(t *testing.T) {
	ctx := context.Background()
	store, scoped, durable := newSplitStore(t)

	store.SetAccessToken(ctx, "access-1", time.Minute)
	store.SetRefreshToken(ctx, "refresh-1")

	if _, ok, _ := durable.Get(ctx, "bakery:access_token"); ok {
		t.Fatal("access token leaked into durable medium")
	}
	if v, ok, _ := scoped.Get(ctx, "bakery:access_token"); !ok || v != "access-1" {
		t.Fatalf("expected access token in scoped medium, got %q ok=%v", v, ok)
	}
	if v, ok, _ := durable.Get(ctx, "bakery:refresh_token"); !ok || v != "refresh-1" {
		t.Fatalf("expected refresh token in durable medium, got %q ok=%v", v, ok)
	}

	// A new process sees only the durable medium.
	restarted := NewStore(NewMemoryMedium(), durable, DurabilitySplit, WithKeyPrefix("bakery:"))
	if _, ok := restarted.AccessToken(ctx); ok {
		t.Fatal("access token must not survive a restart under split durability")
	}
	if v, ok := restarted.RefreshToken(ctx); !ok || v != "refresh-1" {
		t.Fatalf("refresh token should survive restart, got %q ok=%v", v, ok)
	}
}

func TestStorePersistentKeepsEverythingDurable(t *testing.T) {
	ctx := context.Background()
	durable := NewMemoryMedium()
	defer durable.Close()

	store := NewStore(nil, durable, DurabilityPersistent)
	store.SetAccessToken(ctx, "access-1", 0)
	store.SetRefreshToken(ctx, "refresh-1")

	restarted := NewStore(nil, durable, DurabilityPersistent)
	if v, ok := restarted.AccessToken(ctx); !ok || v != "access-1" {
		t.Fatalf("expected durable access token, got %q ok=%v", v, ok)
	}
}

func TestStoreAbsenceIsEmptyAndFalse(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newSplitStore(t)

	if v, ok := store.AccessToken(ctx); ok || v != "" {
		t.Fatalf("expected absent access token, got %q", v)
	}
	if v, ok := store.RefreshToken(ctx); ok || v != "" {
		t.Fatalf("expected absent refresh token, got %q", v)
	}
	var u cachedUser
	if store.User(ctx, &u) {
		t.Fatal("expected no cached identity")
	}
}

func TestStoreUserRoundTripAndCorruption(t *testing.T) {
	ctx := context.Background()
	store, _, durable := newSplitStore(t)

	store.SetUser(ctx, cachedUser{ID: 7, Username: "baker", Roles: []string{"ADMIN"}})
	var got cachedUser
	if !store.User(ctx, &got) {
		t.Fatal("expected cached identity")
	}
	if got.ID != 7 || got.Username != "baker" || len(got.Roles) != 1 {
		t.Fatalf("unexpected identity %+v", got)
	}

	_ = durable.Set(ctx, "bakery:user_data", "{not json", 0)
	if store.User(ctx, &got) {
		t.Fatal("undecodable identity must read as absent")
	}
}

func TestStoreClearRemovesEverything(t *testing.T) {
	ctx := context.Background()
	store, scoped, durable := newSplitStore(t)
	tracker := NewTracker(store, nil)

	store.SetAccessToken(ctx, "access-1", time.Minute)
	store.SetRefreshToken(ctx, "refresh-1")
	store.SetUser(ctx, cachedUser{ID: 1})
	tracker.MarkSessionStart(ctx)

	store.Clear(ctx)

	if scoped.Len() != 0 || durable.Len() != 0 {
		t.Fatalf("expected empty media, scoped=%d durable=%d", scoped.Len(), durable.Len())
	}
	if _, ok := tracker.LastActivity(ctx); ok {
		t.Fatal("activity record must be cleared with the token pair")
	}
}

func TestMemoryMediumHonoursTTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMedium()
	defer m.Close()

	_ = m.Set(ctx, "k", "v", 20*time.Millisecond)
	if _, ok, _ := m.Get(ctx, "k"); !ok {
		t.Fatal("expected value before ttl")
	}
	time.Sleep(60 * time.Millisecond)
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatal("expected value to expire")
	}
}

func TestStoreAccessExpiryFollowsAccessToken(t *testing.T) {
	ctx := context.Background()
	store, scoped, durable := newSplitStore(t)

	at := time.UnixMilli(time.Now().Add(15 * time.Minute).UnixMilli())
	store.SetAccessToken(ctx, "A1", 15*time.Minute)
	store.SetAccessExpiry(ctx, at, 15*time.Minute)

	if _, ok, _ := durable.Get(ctx, "bakery:"+KeyAccessExpiry); ok {
		t.Fatal("access token expiry leaked into durable medium")
	}
	if _, ok, _ := scoped.Get(ctx, "bakery:"+KeyAccessExpiry); !ok {
		t.Fatal("expected access token expiry in scoped medium")
	}
	if got, ok := store.AccessExpiry(ctx); !ok || !got.Equal(at) {
		t.Fatalf("expected expiry %v, got %v ok=%v", at, got, ok)
	}

	store.SetAccessExpiry(ctx, time.Time{}, 0)
	if _, ok := store.AccessExpiry(ctx); ok {
		t.Fatal("zero expiry must remove the record")
	}

	store.SetAccessExpiry(ctx, at, 0)
	store.Clear(ctx)
	if _, ok := store.AccessExpiry(ctx); ok {
		t.Fatal("clear must remove the access token expiry")
	}
}
