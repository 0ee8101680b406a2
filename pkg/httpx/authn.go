package httpx

import (
	"net/http"
	"strings"

	"github.com/securemed/portal/pkg/jwtx"
)

// ResolveBearer verifies an Authorization: Bearer access token and, when
// valid, attaches the principal to the request context. Requests with a
// missing, malformed or expired token pass through as anonymous; it is up
// to RequireAuth or the access gate to reject them.
func ResolveBearer(codec *jwtx.Codec) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := codec.VerifyType(raw, jwtx.TokenTypeAccess)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), claims)))
		})
	}
}

// RequireAuth rejects anonymous requests with 401 and a WWW-Authenticate
// challenge. It assumes ResolveBearer already ran.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserID(r.Context()) == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="securemed"`)
			WriteError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}
