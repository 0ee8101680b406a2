package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/securemed/portal/internal/auth/service"
	"github.com/securemed/portal/pkg/httpx"
)

type RegisterHandler struct {
	InviteService *service.InviteService
}

type registerRequest struct {
	InvitationToken string `json:"invitation_token"`
	Email           string `json:"email"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	CaptchaToken    bool   `json:"captcha_token"`
}

type registerResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// ServeHTTP creates an account from a valid invitation.
func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadJSON(w)
		return
	}

	u, err := h.InviteService.Redeem(r.Context(), service.Registration{
		Token:           req.InvitationToken,
		Email:           req.Email,
		Username:        req.Username,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		CaptchaVerified: req.CaptchaToken,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvitationNotFound):
			httpx.WriteError(w, http.StatusNotFound, "invitation not found")
		case errors.Is(err, service.ErrInvitationUsed):
			httpx.WriteError(w, http.StatusConflict, "invitation has already been used")
		case errors.Is(err, service.ErrInvitationExpired):
			httpx.WriteError(w, http.StatusGone, "invitation has expired")
		case errors.Is(err, service.ErrCaptchaRequired),
			errors.Is(err, service.ErrEmailMismatch),
			errors.Is(err, service.ErrPasswordConfirmation),
			errors.Is(err, service.ErrPasswordTooShort),
			errors.Is(err, service.ErrPasswordNeedsSpecial),
			errors.Is(err, service.ErrInvalidInviteRequest):
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrUsernameAlreadyTaken):
			httpx.WriteError(w, http.StatusConflict, "username already taken")
		default:
			writeServerError(w, r, err)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, registerResponse{
		UserID:   u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role.String(),
	})
}
