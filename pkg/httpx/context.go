package httpx

import (
	"context"

	"github.com/securemed/portal/pkg/jwtx"
)

type ctxKey string

const (
	ctxKeyUserID   ctxKey = "user_id"
	ctxKeyRole     ctxKey = "role"
	ctxKeyUsername ctxKey = "username"
	ctxKeyClaims   ctxKey = "claims"
)

// WithPrincipal stores the authenticated principal in the request context.
func WithPrincipal(ctx context.Context, claims jwtx.Claims) context.Context {
	ctx = context.WithValue(ctx, ctxKeyUserID, claims.Subject)
	ctx = context.WithValue(ctx, ctxKeyRole, claims.Role)
	ctx = context.WithValue(ctx, ctxKeyUsername, claims.Username)
	return context.WithValue(ctx, ctxKeyClaims, claims)
}

// UserID returns the authenticated user id, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyUserID).(string)
	return v
}

// Role returns the authenticated user's role, or "" for anonymous requests.
func Role(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRole).(string)
	return v
}

// Username returns the authenticated username, or "" for anonymous requests.
func Username(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyUsername).(string)
	return v
}

// ClaimsFromContext returns the full verified claims when present.
func ClaimsFromContext(ctx context.Context) (jwtx.Claims, bool) {
	v, ok := ctx.Value(ctxKeyClaims).(jwtx.Claims)
	return v, ok
}
