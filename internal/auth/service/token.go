package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/securemed/portal/internal/auth/domain"
	"github.com/securemed/portal/internal/auth/store"
	"github.com/securemed/portal/pkg/cryptox"
	"github.com/securemed/portal/pkg/idx"
	"github.com/securemed/portal/pkg/jwtx"
	"github.com/securemed/portal/pkg/slogx"
)

// TokenService mints access/refresh token pairs and handles rotation and
// revocation of the opaque refresh tokens.
type TokenService struct {
	Store      store.Store
	Codec      *jwtx.Codec
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Issue signs an access token for the user and persists a fresh refresh
// token fingerprint.
func (s *TokenService) Issue(ctx context.Context, u domain.User) (*domain.TokenPair, error) {
	now := time.Now()

	claims := jwtx.NewAccessClaims(u.ID, u.Role.String(), u.Username, s.Issuer, s.AccessTTL, now)
	accessToken, err := s.Codec.Sign(claims)
	if err != nil {
		return nil, err
	}

	refreshOpaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}

	rt := domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    u.ID,
		TokenHash: cryptox.FingerprintToken(refreshOpaque),
		ExpiresAt: now.Add(s.RefreshTTL),
		Revoked:   false,
	}
	if err := s.Store.RefreshTokens().CreateRefreshToken(ctx, rt); err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshOpaque,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.AccessTTL.Seconds()),
	}, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a
// new pair is issued atomically, so a replayed old token fails cleanly.
func (s *TokenService) Refresh(ctx context.Context, refreshOpaque string) (*domain.TokenPair, error) {
	now := time.Now()
	log := slogx.FromContext(ctx)

	fp := cryptox.FingerprintToken(refreshOpaque)
	rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}

	if rt.Revoked || now.After(rt.ExpiresAt) {
		return nil, ErrInvalidRefresh
	}

	u, err := s.Store.Users().GetUserByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}

	// A locked account must not be able to keep minting access tokens.
	if u.LockedAt(now) {
		return nil, &LockedError{Until: *u.LockedUntil}
	}

	claims := jwtx.NewAccessClaims(u.ID, u.Role.String(), u.Username, s.Issuer, s.AccessTTL, now)
	accessToken, err := s.Codec.Sign(claims)
	if err != nil {
		return nil, err
	}

	newOpaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}

	newRT := domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    u.ID,
		TokenHash: cryptox.FingerprintToken(newOpaque),
		ExpiresAt: now.Add(s.RefreshTTL),
		Revoked:   false,
	}

	if err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().RevokeRefreshToken(ctx, fp); err != nil {
			return err
		}
		return tx.RefreshTokens().CreateRefreshToken(ctx, newRT)
	}); err != nil {
		return nil, err
	}

	log.Debug("refresh token rotated", slog.String("user_id", u.ID))

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: newOpaque,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.AccessTTL.Seconds()),
	}, nil
}

// Revoke revokes a single refresh token by its opaque value. Revoking a
// token that does not exist is not an error; logout must be idempotent.
func (s *TokenService) Revoke(ctx context.Context, refreshOpaque string) error {
	return s.Store.RefreshTokens().RevokeRefreshToken(ctx, cryptox.FingerprintToken(refreshOpaque))
}

// RevokeAllForUser bulk-revokes every live refresh token for a user, e.g.
// after MFA deactivation.
func (s *TokenService) RevokeAllForUser(ctx context.Context, userID string) error {
	return s.Store.RefreshTokens().RevokeAllUserRefreshTokens(ctx, userID)
}
