// Package jwtx signs and verifies the two token kinds the portal issues:
// long-lived access tokens and short-lived MFA-pending tickets. Both are
// HS256 JWTs over a shared signing secret; the "typ" claim keeps one from
// being presented where the other is expected.
package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token type tags carried in the "typ" claim.
const (
	// TokenTypeAccess marks a regular API access token.
	TokenTypeAccess = "access"
	// TokenTypeMFAPending marks the intermediate ticket issued between a
	// successful password check and MFA completion. It grants nothing but
	// the right to attempt MFA.
	TokenTypeMFAPending = "mfa_pending"
)

// Default TTLs. Overridable per-service via config.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
	DefaultMFATicketTTL    = 5 * time.Minute
)

// Claims are the JWT claims for both token kinds.
type Claims struct {
	jwt.RegisteredClaims

	// TokenType discriminates access tokens from MFA-pending tickets.
	TokenType string `json:"typ"`

	// Role is the principal's role (patient, provider, admin). Only set on
	// access tokens; the access gate reads it without a store round trip.
	Role string `json:"role,omitempty"`

	// Username for the authenticated user. Access tokens only.
	Username string `json:"username,omitempty"`
}

// NewAccessClaims builds claims for an API access token.
func NewAccessClaims(subject, role, username, issuer string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: registered(subject, issuer, ttl, now),
		TokenType:        TokenTypeAccess,
		Role:             role,
		Username:         username,
	}
}

// NewMFAPendingClaims builds claims for an MFA-pending ticket. Deliberately
// carries no role or username: the ticket is not an identity assertion.
func NewMFAPendingClaims(subject, issuer string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: registered(subject, issuer, ttl, now),
		TokenType:        TokenTypeMFAPending,
	}
}

func registered(subject, issuer string, ttl time.Duration, now time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        newJTI(),
	}
}

// newJTI returns a URL-safe random identifier for the "jti" claim.
func newJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
