package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/securemed/portal/internal/auth/domain"
	"github.com/securemed/portal/pkg/jwtx"
)

func TestTokenIssueAndRefresh(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	codec := newTestCodec(t)
	svc := newTestTokenService(st, codec)

	u := seedUser(t, st, "alice", "correct-horse-battery!", domain.RoleAdmin)

	pair, err := svc.Issue(ctx, u)
	require.NoError(t, err)
	require.Equal(t, "Bearer", pair.TokenType)
	require.Equal(t, int64(900), pair.ExpiresIn)

	claims, err := codec.VerifyType(pair.AccessToken, jwtx.TokenTypeAccess)
	require.NoError(t, err)
	require.Equal(t, "admin", claims.Role)

	t.Run("refresh rotates the token", func(t *testing.T) {
		next, err := svc.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
		require.NotEqual(t, pair.RefreshToken, next.RefreshToken)
		require.NotEmpty(t, next.AccessToken)

		// Old token was revoked by the rotation.
		_, err = svc.Refresh(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidRefresh)

		pair = next
	})

	t.Run("revoked token cannot refresh", func(t *testing.T) {
		require.NoError(t, svc.Revoke(ctx, pair.RefreshToken))
		_, err := svc.Refresh(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidRefresh)
	})

	t.Run("revoke is idempotent", func(t *testing.T) {
		require.NoError(t, svc.Revoke(ctx, pair.RefreshToken))
		require.NoError(t, svc.Revoke(ctx, "never-issued"))
	})

	t.Run("garbage refresh token rejected", func(t *testing.T) {
		_, err := svc.Refresh(ctx, "garbage")
		require.ErrorIs(t, err, ErrInvalidRefresh)
	})
}

func TestRefreshRespectsLock(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newTestTokenService(st, newTestCodec(t))

	u := seedUser(t, st, "bob", "correct-horse-battery!", domain.RolePatient)

	pair, err := svc.Issue(ctx, u)
	require.NoError(t, err)

	require.NoError(t, st.Users().LockAccount(ctx, u.ID, time.Now().Add(10*time.Minute)))

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	var locked *LockedError
	require.ErrorAs(t, err, &locked)
}

func TestRevokeAllForUser(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newTestTokenService(st, newTestCodec(t))

	u := seedUser(t, st, "carol", "correct-horse-battery!", domain.RolePatient)

	first, err := svc.Issue(ctx, u)
	require.NoError(t, err)
	second, err := svc.Issue(ctx, u)
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAllForUser(ctx, u.ID))

	_, err = svc.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefresh)
	_, err = svc.Refresh(ctx, second.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefresh)
}
