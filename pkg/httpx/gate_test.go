package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/securemed/portal/pkg/httpx"
	"github.com/securemed/portal/pkg/jwtx"
)

var gateRules = []httpx.GateRule{
	{Prefix: "/api/doctor/", Role: "provider", Message: "forbidden: provider access only"},
	{Prefix: "/api/patient/", Role: "patient", Message: "forbidden: patient access only"},
	{Prefix: "/api/admin/", Role: "admin", Message: "forbidden: admin access only"},
}

func gatedHandler(t *testing.T, codec *jwtx.Codec) http.Handler {
	t.Helper()

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return httpx.Chain(ok,
		httpx.ResolveBearer(codec),
		httpx.AccessGate(gateRules),
	)
}

func signAccess(t *testing.T, codec *jwtx.Codec, role string) string {
	t.Helper()

	claims := jwtx.NewAccessClaims("user-1", role, "alice", "SecureMed", 15*time.Minute, time.Now())
	token, err := codec.Sign(claims)
	require.NoError(t, err)
	return token
}

func TestAccessGateMatchingRole(t *testing.T) {
	codec, err := jwtx.NewCodec([]byte("test-secret"), "SecureMed")
	require.NoError(t, err)
	h := gatedHandler(t, codec)

	for path, role := range map[string]string{
		"/api/doctor/dashboard":  "provider",
		"/api/patient/dashboard": "patient",
		"/api/admin/dashboard":   "admin",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+signAccess(t, codec, role))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestAccessGateWrongRole(t *testing.T) {
	codec, err := jwtx.NewCodec([]byte("test-secret"), "SecureMed")
	require.NoError(t, err)
	h := gatedHandler(t, codec)

	req := httptest.NewRequest(http.MethodGet, "/api/doctor/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+signAccess(t, codec, "patient"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "provider access only")
}

func TestAccessGateAnonymous(t *testing.T) {
	codec, err := jwtx.NewCodec([]byte("test-secret"), "SecureMed")
	require.NoError(t, err)
	h := gatedHandler(t, codec)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/dashboard", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "admin access only")
}

func TestAccessGateUnguardedPath(t *testing.T) {
	codec, err := jwtx.NewCodec([]byte("test-secret"), "SecureMed")
	require.NoError(t, err)
	h := gatedHandler(t, codec)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/userinfo", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAccessGateRejectsMFAPendingTicket(t *testing.T) {
	codec, err := jwtx.NewCodec([]byte("test-secret"), "SecureMed")
	require.NoError(t, err)
	h := gatedHandler(t, codec)

	claims := jwtx.NewMFAPendingClaims("user-1", "SecureMed", 5*time.Minute, time.Now())
	ticket, err := codec.Sign(claims)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/patient/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+ticket)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}
