package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrDecode is returned when a token cannot be split or its payload cannot be parsed.
var ErrDecode = errors.New("token decode failed")

// Claims is the subset of the access token payload the client relies on.
//
// Subject and ExpiresAt come from the registered claims. Username, Email and Roles
// are read when the backend includes them and are used only to rebuild a cached
// identity after a refresh.
type Claims struct {
	Username string   `json:"username,omitempty"`
	Email    string   `json:"email,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Expiry returns the exp claim, or the zero time when the token carries none.
func (c *Claims) Expiry() time.Time {
	if c == nil || c.RegisteredClaims.ExpiresAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.ExpiresAt.Time
}

// Decoder parses access token payloads without verifying signatures.
//
// Decoder instances are immutable after construction and safe for concurrent use.
type Decoder struct {
	parser *jwt.Parser
	leeway time.Duration
}

// NewDecoder returns a Decoder that considers a token expired leeway before its
// exp claim. A negative leeway is treated as zero.
func NewDecoder(leeway time.Duration) *Decoder {
	if leeway < 0 {
		leeway = 0
	}
	return &Decoder{
		parser: jwt.NewParser(jwt.WithoutClaimsValidation()),
		leeway: leeway,
	}
}

// Decode parses the payload segment of token.
//
// Decode returns an error wrapping ErrDecode for empty input, input without three
// segments, or a payload that is not valid base64url-encoded JSON.
func (d *Decoder) Decode(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrDecode)
	}
	if strings.Count(token, ".") != 2 {
		return nil, fmt.Errorf("%w: token must have three segments", ErrDecode)
	}

	claims := &Claims{}
	if _, _, err := d.parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return claims, nil
}

// IsExpired reports whether token is unusable at now.
//
// Tokens that fail to decode, or that carry no exp claim, are reported as expired.
func (d *Decoder) IsExpired(token string, now time.Time) bool {
	claims, err := d.Decode(token)
	if err != nil {
		return true
	}
	exp := claims.Expiry()
	if exp.IsZero() {
		return true
	}
	return !now.Before(exp.Add(-d.leeway))
}

// ExpiresIn returns the remaining lifetime of token at now, floored at zero.
func (d *Decoder) ExpiresIn(token string, now time.Time) (time.Duration, error) {
	claims, err := d.Decode(token)
	if err != nil {
		return 0, err
	}
	exp := claims.Expiry()
	if exp.IsZero() {
		return 0, nil
	}
	remaining := exp.Sub(now)
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}
