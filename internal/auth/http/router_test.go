package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/securemed/portal/internal/auth/domain"
	"github.com/securemed/portal/internal/auth/service"
	"github.com/securemed/portal/internal/auth/store/drivers/sqlite"
	"github.com/securemed/portal/pkg/cryptox"
	"github.com/securemed/portal/pkg/idx"
	"github.com/securemed/portal/pkg/jwtx"
	"github.com/securemed/portal/pkg/slogx"
)

func newTestRouter(t *testing.T) (*Router, *sqlite.Store, *jwtx.Codec) {
	t.Helper()

	// Keep the token buckets out of the way; these tests hammer single
	// endpoints from one address.
	t.Setenv("AUTH_RATE_STRICT_RPS", "1000")
	t.Setenv("AUTH_RATE_STRICT_BURST", "1000")
	t.Setenv("AUTH_RATE_MODERATE_RPS", "1000")
	t.Setenv("AUTH_RATE_MODERATE_BURST", "1000")
	t.Setenv("AUTH_RATE_LENIENT_RPS", "1000")
	t.Setenv("AUTH_RATE_LENIENT_BURST", "1000")

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	codec, err := jwtx.NewCodec([]byte("router-test-secret"), "SecureMed")
	require.NoError(t, err)

	logger := slogx.New(slogx.Config{Service: "auth", Level: "error", Format: "json"})

	tokens := &service.TokenService{
		Store:      st,
		Codec:      codec,
		Issuer:     "SecureMed",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}

	r := NewRouter(codec, "test", st, logger)
	r.TokenService = tokens
	r.LoginService = &service.LoginService{
		Store:        st,
		Tokens:       tokens,
		Codec:        codec,
		Issuer:       "SecureMed",
		Lockout:      service.DefaultLockoutPolicy(),
		MFATicketTTL: 5 * time.Minute,
	}
	r.MFAService = &service.MFAService{Store: st, Issuer: "SecureMed"}
	r.InviteService = &service.InviteService{Store: st}
	r.UserService = &service.UserService{Store: st}
	r.ApplyRoutes()

	return r, st, codec
}

func seedRouterUser(t *testing.T, st *sqlite.Store, username, password string, role domain.Role) domain.User {
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

func doJSON(t *testing.T, h http.Handler, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestFullAuthenticationFlow(t *testing.T) {
	r, st, codec := newTestRouter(t)
	seedRouterUser(t, st, "root", "admin-password-1!", domain.RoleAdmin)

	// Admin logs in.
	rec := doJSON(t, r, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "root", "password": "admin-password-1!",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	adminTokens := decode[tokenResponse](t, rec)
	require.NotEmpty(t, adminTokens.AccessToken)

	// Admin invites a patient.
	rec = doJSON(t, r, http.MethodPost, "/api/auth/invites/send", adminTokens.AccessToken, map[string]string{
		"email": "pat@example.com", "role": "patient",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	invite := decode[inviteResponse](t, rec)
	require.NotEmpty(t, invite.InvitationToken)

	// Resending is idempotent and returns the same token.
	rec = doJSON(t, r, http.MethodPost, "/api/auth/invites/send", adminTokens.AccessToken, map[string]string{
		"email": "pat@example.com", "role": "patient",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, invite.InvitationToken, decode[inviteResponse](t, rec).InvitationToken)

	// The invitee checks the token.
	rec = doJSON(t, r, http.MethodGet, "/api/auth/invites/verify?token="+invite.InvitationToken, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	verify := decode[inviteVerifyResponse](t, rec)
	require.True(t, verify.Valid)
	require.Equal(t, "pat@example.com", verify.Email)

	// Registration.
	rec = doJSON(t, r, http.MethodPost, "/api/auth/register", "", map[string]any{
		"invitation_token": invite.InvitationToken,
		"email":            "pat@example.com",
		"username":         "pat",
		"password":         "patient-password-1!",
		"confirm_password": "patient-password-1!",
		"captcha_token":    true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	registered := decode[registerResponse](t, rec)
	require.Equal(t, "patient", registered.Role)

	// The same invitation cannot be redeemed twice.
	rec = doJSON(t, r, http.MethodPost, "/api/auth/register", "", map[string]any{
		"invitation_token": invite.InvitationToken,
		"email":            "pat@example.com",
		"username":         "pat2",
		"password":         "patient-password-1!",
		"confirm_password": "patient-password-1!",
		"captcha_token":    true,
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	// Patient logs in; no MFA yet, tokens come straight back.
	rec = doJSON(t, r, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "pat", "password": "patient-password-1!",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	patTokens := decode[tokenResponse](t, rec)

	// Role segregation.
	rec = doJSON(t, r, http.MethodGet, "/api/patient/dashboard", patTokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/api/doctor/dashboard", patTokens.AccessToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "provider access only")

	rec = doJSON(t, r, http.MethodGet, "/api/admin/dashboard", "", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// MFA enrollment.
	rec = doJSON(t, r, http.MethodPost, "/api/auth/mfa/setup", patTokens.AccessToken, map[string]string{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	setup := decode[mfaSetupResponse](t, rec)
	require.NotEmpty(t, setup.Secret)

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	rec = doJSON(t, r, http.MethodPost, "/api/auth/mfa/verify", patTokens.AccessToken, map[string]string{
		"otp_code": code,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	recovery := decode[recoveryCodesResponse](t, rec)
	require.Len(t, recovery.RecoveryCodes, service.DefaultRecoveryCodeCount)

	// Next login demands the second factor.
	rec = doJSON(t, r, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "pat", "password": "patient-password-1!",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decode[mfaPendingResponse](t, rec)
	require.True(t, pending.MFARequired)
	require.NotEmpty(t, pending.MFATicket)

	// The ticket is not an access token.
	rec = doJSON(t, r, http.MethodGet, "/api/auth/userinfo", pending.MFATicket, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Complete with TOTP.
	code, err = totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	rec = doJSON(t, r, http.MethodPost, "/api/auth/login/mfa", "", map[string]string{
		"mfa_ticket": pending.MFATicket, "otp_code": code,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	mfaTokens := decode[tokenResponse](t, rec)

	// Userinfo reflects MFA state.
	rec = doJSON(t, r, http.MethodGet, "/api/auth/userinfo", mfaTokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode[userInfoResponse](t, rec)
	require.True(t, info.MFAEnabled)
	require.Equal(t, service.DefaultRecoveryCodeCount, info.RecoveryCodesRemaining)

	// An expired ticket is rejected.
	expired, err := codec.Sign(jwtx.NewMFAPendingClaims(registered.UserID, "SecureMed", -10*time.Minute, time.Now()))
	require.NoError(t, err)
	rec = doJSON(t, r, http.MethodPost, "/api/auth/login/mfa", "", map[string]string{
		"mfa_ticket": expired, "otp_code": code,
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "expired")

	// Refresh rotates, logout revokes.
	rec = doJSON(t, r, http.MethodPost, "/api/auth/refresh", "", map[string]string{
		"refresh_token": mfaTokens.RefreshToken,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	rotated := decode[tokenResponse](t, rec)
	require.NotEqual(t, mfaTokens.RefreshToken, rotated.RefreshToken)

	rec = doJSON(t, r, http.MethodPost, "/api/auth/logout", rotated.AccessToken, map[string]string{
		"refresh_token": rotated.RefreshToken,
	})
	require.Equal(t, http.StatusResetContent, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/api/auth/refresh", "", map[string]string{
		"refresh_token": rotated.RefreshToken,
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginLockoutOverHTTP(t *testing.T) {
	r, st, _ := newTestRouter(t)
	seedRouterUser(t, st, "bob", "correct-password-1!", domain.RolePatient)

	for i := 0; i < 5; i++ {
		rec := doJSON(t, r, http.MethodPost, "/api/auth/login", "", map[string]string{
			"username": "bob", "password": "wrong",
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), "attempts remaining")
	}

	rec := doJSON(t, r, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "bob", "password": "wrong",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "locked")

	// Correct password is refused while the lock holds.
	rec = doJSON(t, r, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "bob", "password": "correct-password-1!",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestInviteSendRequiresAdmin(t *testing.T) {
	r, st, _ := newTestRouter(t)
	seedRouterUser(t, st, "pat", "patient-password-1!", domain.RolePatient)

	rec := doJSON(t, r, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "pat", "password": "patient-password-1!",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	tokens := decode[tokenResponse](t, rec)

	rec = doJSON(t, r, http.MethodPost, "/api/auth/invites/send", tokens.AccessToken, map[string]string{
		"email": "x@example.com", "role": "patient",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Anonymous callers are turned away before the handler runs.
	rec = doJSON(t, r, http.MethodPost, "/api/auth/invites/send", "", map[string]string{
		"email": "x@example.com", "role": "patient",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodGet, "/livez", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = doJSON(t, r, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
