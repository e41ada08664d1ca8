// Package auth issues and verifies bearer tokens scoped to a single
// sub-queue, and gates access to restricted sub-queues behind them.
// Tokens are github.com/golang-jwt/jwt/v5 JWTs signed with a shared
// secret; there is no package-level state, only an explicit
// TokenProvider holding the secret and default TTL.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the JWT payload: a single sub-queue claim plus the standard
// issued-at/expiry fields.
type Claims struct {
	SubQueue string `json:"subQueue"`
	jwt.RegisteredClaims
}

// TokenProvider issues and verifies signed bearer tokens whose claim is
// exactly one sub-queue identifier. A TokenProvider constructed
// with an empty secret refuses to issue tokens and rejects every token on
// verify.
type TokenProvider struct {
	secret     []byte
	defaultTTL time.Duration
}

// NewTokenProvider returns a TokenProvider signing with secret and
// defaulting to defaultTTL when Issue is called without an explicit ttl.
func NewTokenProvider(secret string, defaultTTL time.Duration) *TokenProvider {
	return &TokenProvider{secret: []byte(secret), defaultTTL: defaultTTL}
}

// Issue creates a signed token whose claim is exactly subQueue. ttl of
// zero uses the provider's default TTL; a negative ttl issues a token
// with no expiry.
func (p *TokenProvider) Issue(subQueue string, ttl time.Duration) (string, error) {
	if len(p.secret) == 0 {
		return "", errors.New("auth: token secret not configured")
	}
	if ttl == 0 {
		ttl = p.defaultTTL
	}

	now := time.Now()
	claims := Claims{
		SubQueue: subQueue,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.secret)
}

// Verify validates signature and expiry and returns the token's claimed
// sub-queue.
func (p *TokenProvider) Verify(tokenStr string) (string, error) {
	if len(p.secret) == 0 {
		return "", errors.New("auth: token secret not configured")
	}

	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", errors.New("auth: token invalid or expired")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.SubQueue == "" {
		return "", errors.New("auth: token missing sub-queue claim")
	}
	return claims.SubQueue, nil
}
