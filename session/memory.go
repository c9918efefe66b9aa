package session

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryMedium keeps values in process memory. Entries with a ttl are evicted when
// it elapses; everything is gone when the process exits.
type MemoryMedium struct {
	cache *ttlcache.Cache[string, string]
}

// NewMemoryMedium starts the cache's expiry loop. Call Close to stop it.
func NewMemoryMedium() *MemoryMedium {
	cache := ttlcache.New[string, string](
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	go cache.Start()
	return &MemoryMedium{cache: cache}
}

func (m *MemoryMedium) Get(_ context.Context, key string) (string, bool, error) {
	item := m.cache.Get(key)
	if item == nil || item.IsExpired() {
		return "", false, nil
	}
	return item.Value(), true, nil
}

func (m *MemoryMedium) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	m.cache.Set(key, value, ttl)
	return nil
}

func (m *MemoryMedium) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		m.cache.Delete(key)
	}
	return nil
}

// Len returns the number of live entries.
func (m *MemoryMedium) Len() int {
	return m.cache.Len()
}

// Close stops the expiry loop.
func (m *MemoryMedium) Close() {
	m.cache.Stop()
}
