package jwtx

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testIssuer = "securemed-test"

func testCodec(t *testing.T) *Codec {
	t.Helper()
	codec, err := NewCodec([]byte("0123456789abcdef0123456789abcdef"), testIssuer)
	require.NoError(t, err)
	return codec
}

func TestNewCodecRequiresSecret(t *testing.T) {
	t.Parallel()

	_, err := NewCodec(nil, testIssuer)
	require.Error(t, err)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	t.Parallel()
	codec := testCodec(t)

	now := time.Now()
	claims := NewAccessClaims("user-1", "provider", "drsmith", testIssuer, time.Hour, now)
	token, err := codec.Sign(claims)
	require.NoError(t, err)

	got, err := codec.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", got.Subject)
	require.Equal(t, TokenTypeAccess, got.TokenType)
	require.Equal(t, "provider", got.Role)
	require.Equal(t, "drsmith", got.Username)
	require.Equal(t, testIssuer, got.Issuer)
	require.NotEmpty(t, got.ID)
}

func TestVerifyRejectsTamperedAndForeignTokens(t *testing.T) {
	t.Parallel()
	codec := testCodec(t)

	token, err := codec.Sign(NewAccessClaims("user-1", "patient", "pat", testIssuer, time.Hour, time.Now()))
	require.NoError(t, err)

	_, err = codec.Verify(token + "x")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = codec.Verify("not.a.jwt")
	require.ErrorIs(t, err, ErrInvalidToken)

	// Signed with a different secret.
	other, err := NewCodec([]byte("another-secret-another-secret!!!"), testIssuer)
	require.NoError(t, err)
	foreign, err := other.Sign(NewAccessClaims("user-1", "patient", "pat", testIssuer, time.Hour, time.Now()))
	require.NoError(t, err)
	_, err = codec.Verify(foreign)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	t.Parallel()
	codec := testCodec(t)

	// Same secret, different issuer claim.
	same, err := NewCodec([]byte("0123456789abcdef0123456789abcdef"), "someone-else")
	require.NoError(t, err)
	token, err := same.Sign(NewAccessClaims("user-1", "patient", "pat", "someone-else", time.Hour, time.Now()))
	require.NoError(t, err)

	_, err = codec.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyReportsExpiryDistinctly(t *testing.T) {
	t.Parallel()
	codec := testCodec(t)

	// Issued long enough ago that the verification leeway cannot save it.
	stale := time.Now().Add(-time.Hour)
	token, err := codec.Sign(NewMFAPendingClaims("user-1", testIssuer, 5*time.Minute, stale))
	require.NoError(t, err)

	_, err = codec.Verify(token)
	require.ErrorIs(t, err, ErrExpired)
}

func TestVerifyTypeEnforcesTokenKind(t *testing.T) {
	t.Parallel()
	codec := testCodec(t)

	now := time.Now()
	access, err := codec.Sign(NewAccessClaims("user-1", "patient", "pat", testIssuer, time.Hour, now))
	require.NoError(t, err)
	ticket, err := codec.Sign(NewMFAPendingClaims("user-1", testIssuer, 5*time.Minute, now))
	require.NoError(t, err)

	_, err = codec.VerifyType(access, TokenTypeMFAPending)
	require.ErrorIs(t, err, ErrWrongType)

	_, err = codec.VerifyType(ticket, TokenTypeAccess)
	require.ErrorIs(t, err, ErrWrongType)

	got, err := codec.VerifyType(ticket, TokenTypeMFAPending)
	require.NoError(t, err)
	require.Equal(t, "user-1", got.Subject)
	require.Empty(t, got.Role, "pending tickets carry no role")
}

func TestVerifyRejectsAlgorithmConfusion(t *testing.T) {
	t.Parallel()
	codec := testCodec(t)

	// alg=none token for the same claims must never validate.
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone,
		NewAccessClaims("user-1", "admin", "root", testIssuer, time.Hour, time.Now()))
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = codec.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}
