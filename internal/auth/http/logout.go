package http

import (
	"encoding/json"
	"net/http"

	"github.com/securemed/portal/internal/auth/service"
	"github.com/securemed/portal/pkg/httpx"
)

type LogoutHandler struct {
	TokenService *service.TokenService
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ServeHTTP revokes the presented refresh token. Responds 205 so clients
// reset their view; revoking an unknown token is still a successful
// logout.
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadJSON(w)
		return
	}
	if req.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	if err := h.TokenService.Revoke(r.Context(), req.RefreshToken); err != nil {
		writeServerError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusResetContent)
}
