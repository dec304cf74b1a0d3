// Package token mints and verifies the credentials Arx hands to clients.
//
// Access tokens are short-lived, self-contained JWTs: validity is proven
// entirely by signature and expiry, and they are never persisted. Refresh
// tokens are long-lived, high-entropy opaque secrets returned to the caller
// exactly once; the session ledger stores only a one-way hash of them.
// The two are signed and generated from independent material so that
// compromise of one secret cannot forge the other kind of token.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultAccessTTL keeps the access window short; a stolen access
	// token is useful only for minutes.
	DefaultAccessTTL = 15 * time.Minute

	// DefaultRefreshTTL bounds how long a device can stay signed in
	// without re-authenticating.
	DefaultRefreshTTL = 7 * 24 * time.Hour

	refreshTokenBytes = 32
)

// Verification failures. The guard pipeline maps both to the same generic
// unauthorized response; the distinction exists for logging only.
var (
	ErrExpired          = errors.New("token: expired")
	ErrInvalidSignature = errors.New("token: invalid signature")
)

// Principal is the authenticated identity embedded in an access token.
type Principal struct {
	UserID   string
	TenantID string
	Role     string
	Email    string
}

// Claims is the access token payload.
type Claims struct {
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// Pair is one issuance: a signed access token and an opaque refresh token.
type Pair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Config holds the issuer's signing material and lifetimes.
type Config struct {
	SigningMethod jwt.SigningMethod
	AccessSecret  []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Issuer mints access/refresh pairs and verifies access tokens. It holds no
// storage; refresh-token bookkeeping belongs to the session ledger.
type Issuer struct {
	config Config
}

func NewIssuer(config Config) *Issuer {
	if config.SigningMethod == nil {
		config.SigningMethod = jwt.SigningMethodHS256
	}
	if config.AccessTTL <= 0 {
		config.AccessTTL = DefaultAccessTTL
	}
	if config.RefreshTTL <= 0 {
		config.RefreshTTL = DefaultRefreshTTL
	}
	return &Issuer{config: config}
}

// RefreshTTL exposes the configured refresh lifetime for ledger records.
func (i *Issuer) RefreshTTL() time.Duration { return i.config.RefreshTTL }

// Issue mints a fresh pair for the principal. The refresh token plaintext
// is returned once and never retained here.
func (i *Issuer) Issue(p Principal) (*Pair, error) {
	now := time.Now()

	accessExpiry := now.Add(i.config.AccessTTL)
	claims := Claims{
		TenantID: p.TenantID,
		Role:     p.Role,
		Email:    p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			ExpiresAt: jwt.NewNumericDate(accessExpiry),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	access, err := jwt.NewWithClaims(i.config.SigningMethod, claims).SignedString(i.config.AccessSecret)
	if err != nil {
		return nil, fmt.Errorf("token: failed to sign access token: %w", err)
	}

	refresh, err := NewRefreshToken()
	if err != nil {
		return nil, err
	}

	return &Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExpiry,
		RefreshExpiresAt: now.Add(i.config.RefreshTTL),
	}, nil
}

// Verify parses and validates an access token, returning its claims.
// Expired tokens fail with ErrExpired, everything else with
// ErrInvalidSignature.
func (i *Issuer) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != i.config.SigningMethod.Alg() {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return i.config.AccessSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalidSignature
	}
	return claims, nil
}

// Principal reconstructs the authenticated identity from verified claims.
func (c *Claims) Principal() Principal {
	return Principal{
		UserID:   c.Subject,
		TenantID: c.TenantID,
		Role:     c.Role,
		Email:    c.Email,
	}
}

// NewRefreshToken generates a high-entropy opaque refresh token.
func NewRefreshToken() (string, error) {
	raw := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("token: failed to generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
