// Package token resolves the bearer credential used for calls to the
// hosted query platform. Resolution is fail-closed: when no credential
// can be found the caller gets ErrNoToken, never an empty string.
package token

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoToken is returned when no credential is available from any source.
var ErrNoToken = errors.New("token: no credential available")

// expirySkew is how long before the exp claim a token stops being handed
// out, covering clock drift and the request's own latency.
const expirySkew = 30 * time.Second

// Source hands out the platform bearer token. An explicitly provided
// token (per-user, forwarded by the platform proxy) wins over the
// process-level token from the environment.
type Source struct {
	mu    sync.RWMutex
	token string
}

// NewSource builds a Source seeded with an explicit token, which may be
// empty; in that case Token falls back to the environment.
func NewSource(explicit string) *Source {
	return &Source{token: explicit}
}

// Token returns the current credential or ErrNoToken. An explicit token
// past its exp claim is treated as absent so a stale forwarded credential
// degrades to the process-level token instead of a guaranteed 401 upstream.
func (s *Source) Token() (string, error) {
	s.mu.RLock()
	t := s.token
	s.mu.RUnlock()
	if t != "" && !Expired(t, expirySkew) {
		return t, nil
	}
	if t := os.Getenv("DATABRICKS_TOKEN"); t != "" {
		return t, nil
	}
	if t := os.Getenv("DB_TOKEN"); t != "" {
		return t, nil
	}
	return "", ErrNoToken
}

// Set replaces the explicit token, e.g. when the platform proxy forwards
// a fresh per-request credential.
func (s *Source) Set(t string) {
	s.mu.Lock()
	s.token = t
	s.mu.Unlock()
}

// ExpiresAt reports the exp claim of a JWT-shaped token without verifying
// its signature (we only need the expiry, the platform verifies the rest).
// Opaque tokens return a zero time and no error is treated as fatal.
func ExpiresAt(raw string) (time.Time, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, err
	}
	return exp.Time, nil
}

// Expired reports whether a JWT-shaped token is past its exp claim, with
// a safety skew. Tokens without a readable expiry are assumed live.
func Expired(raw string, skew time.Duration) bool {
	exp, err := ExpiresAt(raw)
	if err != nil || exp.IsZero() {
		return false
	}
	return time.Now().Add(skew).After(exp)
}
