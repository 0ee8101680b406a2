package httpx

import (
	"net/http"
	"strings"
)

// GateRule maps a path prefix to the role allowed through it.
type GateRule struct {
	Prefix  string
	Role    string
	Message string
}

// AccessGate enforces role segregation by path prefix. Requests outside
// every guarded prefix pass through untouched; requests inside a guarded
// prefix must carry the matching role. Anonymous requests inside a guarded
// prefix are rejected the same way as wrong-role ones, so the gate leaks
// nothing about which roles exist beyond the one the caller already probed.
func AccessGate(rules []GateRule) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, rule := range rules {
				if !strings.HasPrefix(r.URL.Path, rule.Prefix) {
					continue
				}
				if Role(r.Context()) != rule.Role {
					WriteError(w, http.StatusForbidden, rule.Message)
					return
				}
				break
			}
			next.ServeHTTP(w, r)
		})
	}
}
