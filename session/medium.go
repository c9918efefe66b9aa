package session

import (
	"context"
	"errors"
	"time"
)

// ErrMediumUnavailable wraps backend failures reported by a Medium.
var ErrMediumUnavailable = errors.New("session medium unavailable")

// Storage keys. Each is prefixed by the Store's key prefix before reaching a medium.
const (
	KeyAccessToken      = "access_token"
	KeyAccessExpiry     = "access_token_expires_at"
	KeyRefreshToken     = "refresh_token"
	KeyUser             = "user_data"
	KeySessionTimestamp = "session_timestamp"
	KeyLastActivity     = "last_activity"
)

// AllKeys lists every key the Store writes.
var AllKeys = []string{
	KeyAccessToken,
	KeyAccessExpiry,
	KeyRefreshToken,
	KeyUser,
	KeySessionTimestamp,
	KeyLastActivity,
}

// Medium is a string key/value backend.
//
// Get reports absence with ok=false and a nil error. A ttl of zero or less on Set
// stores the value without expiry. Delete ignores missing keys.
type Medium interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Durability selects where the access token lives.
type Durability string

const (
	// DurabilitySplit keeps the access token in the session-scoped medium and
	// everything else in the durable medium.
	DurabilitySplit Durability = "split"
	// DurabilityPersistent keeps every key in the durable medium.
	DurabilityPersistent Durability = "persistent"
)

// Valid reports whether d is a known policy.
func (d Durability) Valid() bool {
	return d == DurabilitySplit || d == DurabilityPersistent
}
