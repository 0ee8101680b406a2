package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/securemed/portal/internal/auth/domain"
	"github.com/securemed/portal/internal/auth/store/drivers/sqlite"
	"github.com/securemed/portal/pkg/cryptox"
	"github.com/securemed/portal/pkg/idx"
	"github.com/securemed/portal/pkg/jwtx"
)

const testIssuer = "SecureMed"

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

func newTestCodec(t *testing.T) *jwtx.Codec {
	t.Helper()

	codec, err := jwtx.NewCodec([]byte("test-signing-secret"), testIssuer)
	require.NoError(t, err)
	return codec
}

func newTestTokenService(st *sqlite.Store, codec *jwtx.Codec) *TokenService {
	return &TokenService{
		Store:      st,
		Codec:      codec,
		Issuer:     testIssuer,
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}
}

func newTestLoginService(st *sqlite.Store, codec *jwtx.Codec) *LoginService {
	return &LoginService{
		Store:        st,
		Tokens:       newTestTokenService(st, codec),
		Codec:        codec,
		Issuer:       testIssuer,
		Lockout:      DefaultLockoutPolicy(),
		MFATicketTTL: 5 * time.Minute,
	}
}

func seedUser(t *testing.T, st *sqlite.Store, username, password string, role domain.Role) domain.User {
	t.Helper()

	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)

	u := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		Role:         role,
	}
	require.NoError(t, st.Users().CreateUser(context.Background(), u))
	return u
}
