package http

import (
	"net/http"

	"github.com/securemed/portal/internal/auth/service"
	"github.com/securemed/portal/pkg/httpx"
)

type UserInfoHandler struct {
	UserService *service.UserService
	MFAService  *service.MFAService
}

type userInfoResponse struct {
	UserID                 string `json:"user_id"`
	Username               string `json:"username"`
	Email                  string `json:"email"`
	Role                   string `json:"role"`
	MFAEnabled             bool   `json:"mfa_enabled"`
	RecoveryCodesRemaining int    `json:"recovery_codes_remaining"`
}

// ServeHTTP returns the authenticated user's profile and MFA status.
func (h *UserInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := httpx.UserID(ctx)

	user, err := h.UserService.GetByID(ctx, userID)
	if err != nil {
		writeServerError(w, r, err)
		return
	}

	enabled, remaining, err := h.MFAService.Status(ctx, userID)
	if err != nil {
		writeServerError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, userInfoResponse{
		UserID:                 user.ID,
		Username:               user.Username,
		Email:                  user.Email,
		Role:                   user.Role.String(),
		MFAEnabled:             enabled,
		RecoveryCodesRemaining: remaining,
	})
}
