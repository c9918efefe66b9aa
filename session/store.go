package session

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Store reads and writes the token pair and cached identity.
//
// Store never returns medium errors. A failed read is logged and reported as absent;
// a failed write is logged and dropped.
type Store struct {
	scoped     Medium
	durable    Medium
	durability Durability
	prefix     string
	log        zerolog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithKeyPrefix namespaces every key, e.g. "bakery:".
func WithKeyPrefix(prefix string) StoreOption {
	return func(s *Store) { s.prefix = prefix }
}

// WithLogger sets the logger used for medium failures.
func WithLogger(log zerolog.Logger) StoreOption {
	return func(s *Store) { s.log = log }
}

// NewStore routes keys between a session-scoped and a durable medium.
//
// With DurabilityPersistent the scoped medium is unused and may be nil. A nil durable
// medium, or a nil scoped medium under DurabilitySplit, is replaced by a fresh
// MemoryMedium.
func NewStore(scoped, durable Medium, durability Durability, opts ...StoreOption) *Store {
	if !durability.Valid() {
		durability = DurabilitySplit
	}
	if durable == nil {
		durable = NewMemoryMedium()
	}
	if scoped == nil {
		if durability == DurabilityPersistent {
			scoped = durable
		} else {
			scoped = NewMemoryMedium()
		}
	}

	s := &Store{
		scoped:     scoped,
		durable:    durable,
		durability: durability,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Durability returns the configured policy.
func (s *Store) Durability() Durability {
	return s.durability
}

func (s *Store) accessMedium() Medium {
	if s.durability == DurabilitySplit {
		return s.scoped
	}
	return s.durable
}

// SetAccessToken stores token. A positive ttl bounds how long the medium keeps it.
func (s *Store) SetAccessToken(ctx context.Context, token string, ttl time.Duration) {
	s.set(ctx, s.accessMedium(), KeyAccessToken, token, ttl)
}

// AccessToken returns the stored access token.
func (s *Store) AccessToken(ctx context.Context) (string, bool) {
	return s.get(ctx, s.accessMedium(), KeyAccessToken)
}

// SetAccessExpiry records when the access token stops being usable. It lives in the
// same medium as the token. The zero time removes the record.
func (s *Store) SetAccessExpiry(ctx context.Context, at time.Time, ttl time.Duration) {
	m := s.accessMedium()
	if at.IsZero() {
		if err := m.Delete(ctx, s.key(KeyAccessExpiry)); err != nil {
			s.log.Warn().Err(err).Str("key", KeyAccessExpiry).Msg("session: delete failed")
		}
		return
	}
	s.set(ctx, m, KeyAccessExpiry, strconv.FormatInt(at.UnixMilli(), 10), ttl)
}

// AccessExpiry returns the recorded access token expiry.
func (s *Store) AccessExpiry(ctx context.Context) (time.Time, bool) {
	raw, ok := s.get(ctx, s.accessMedium(), KeyAccessExpiry)
	if !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.log.Warn().Err(err).Msg("session: discard unreadable access token expiry")
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// SetRefreshToken stores token in the durable medium without expiry.
func (s *Store) SetRefreshToken(ctx context.Context, token string) {
	s.set(ctx, s.durable, KeyRefreshToken, token, 0)
}

// RefreshToken returns the stored refresh token.
func (s *Store) RefreshToken(ctx context.Context) (string, bool) {
	return s.get(ctx, s.durable, KeyRefreshToken)
}

// SetUser stores user as JSON.
func (s *Store) SetUser(ctx context.Context, user any) {
	data, err := json.Marshal(user)
	if err != nil {
		s.log.Warn().Err(err).Msg("session: encode cached identity")
		return
	}
	s.set(ctx, s.durable, KeyUser, string(data), 0)
}

// User decodes the cached identity into dst. It reports false when nothing is
// cached or the cached value does not decode.
func (s *Store) User(ctx context.Context, dst any) bool {
	raw, ok := s.get(ctx, s.durable, KeyUser)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		s.log.Warn().Err(err).Msg("session: discard undecodable cached identity")
		return false
	}
	return true
}

// Clear removes the token pair, identity and activity record from both media.
func (s *Store) Clear(ctx context.Context) {
	keys := make([]string, 0, len(AllKeys))
	for _, k := range AllKeys {
		keys = append(keys, s.key(k))
	}
	if err := s.durable.Delete(ctx, keys...); err != nil {
		s.log.Warn().Err(err).Msg("session: clear durable medium")
	}
	if s.scoped != s.durable {
		if err := s.scoped.Delete(ctx, keys...); err != nil {
			s.log.Warn().Err(err).Msg("session: clear scoped medium")
		}
	}
}

func (s *Store) key(k string) string {
	return s.prefix + k
}

func (s *Store) get(ctx context.Context, m Medium, k string) (string, bool) {
	value, ok, err := m.Get(ctx, s.key(k))
	if err != nil {
		s.log.Warn().Err(err).Str("key", k).Msg("session: read failed, treating as absent")
		return "", false
	}
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

func (s *Store) set(ctx context.Context, m Medium, k, value string, ttl time.Duration) {
	if err := m.Set(ctx, s.key(k), value, ttl); err != nil {
		s.log.Warn().Err(err).Str("key", k).Msg("session: write failed")
	}
}

func (s *Store) deleteDurable(ctx context.Context, keys ...string) {
	prefixed := make([]string, 0, len(keys))
	for _, k := range keys {
		prefixed = append(prefixed, s.key(k))
	}
	if err := s.durable.Delete(ctx, prefixed...); err != nil {
		s.log.Warn().Err(err).Msg("session: delete failed")
	}
}
