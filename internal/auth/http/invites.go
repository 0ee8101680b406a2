package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/securemed/portal/internal/auth/domain"
	"github.com/securemed/portal/internal/auth/service"
	"github.com/securemed/portal/pkg/httpx"
)

type InviteHandler struct {
	InviteService *service.InviteService
}

type inviteSendRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type inviteResponse struct {
	InvitationToken string `json:"invitation_token"`
	Email           string `json:"email"`
	Role            string `json:"role"`
	ExpiresAt       string `json:"expires_at"`
	Reissued        bool   `json:"reissued"`
}

// HandleSend issues (or idempotently re-issues) an invitation. Admin only;
// the router authenticates, the role is checked here because the endpoint
// lives outside the gated path prefixes.
func (h *InviteHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	if httpx.Role(r.Context()) != domain.RoleAdmin.String() {
		httpx.WriteError(w, http.StatusForbidden, "admin access required")
		return
	}

	var req inviteSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadJSON(w)
		return
	}

	inv, created, err := h.InviteService.Issue(r.Context(), req.Email, req.Role, httpx.UserID(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInviteRequest):
			httpx.WriteError(w, http.StatusBadRequest, "a valid email address is required")
		case errors.Is(err, service.ErrInvalidRole):
			httpx.WriteError(w, http.StatusBadRequest, "role must be patient, provider or admin")
		case errors.Is(err, service.ErrEmailAlreadyRegistered):
			httpx.WriteError(w, http.StatusConflict, "email already registered")
		default:
			writeServerError(w, r, err)
		}
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	httpx.WriteJSON(w, status, inviteResponse{
		InvitationToken: inv.Token,
		Email:           inv.Email,
		Role:            inv.Role.String(),
		ExpiresAt:       inv.ExpiresAt.UTC().Format(time.RFC3339),
		Reissued:        !created,
	})
}

type inviteVerifyResponse struct {
	Valid     bool   `json:"valid"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// HandleVerify checks an invitation token ahead of the signup form. The
// failure states are distinguished so the page can explain what happened.
func (h *InviteHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		httpx.WriteError(w, http.StatusBadRequest, "token query parameter is required")
		return
	}

	inv, err := h.InviteService.Verify(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvitationNotFound):
			httpx.WriteError(w, http.StatusNotFound, "invitation not found")
		case errors.Is(err, service.ErrInvitationUsed):
			httpx.WriteError(w, http.StatusConflict, "invitation has already been used")
		case errors.Is(err, service.ErrInvitationExpired):
			httpx.WriteError(w, http.StatusGone, "invitation has expired")
		default:
			writeServerError(w, r, err)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, inviteVerifyResponse{
		Valid:     true,
		Email:     inv.Email,
		Role:      inv.Role.String(),
		ExpiresAt: inv.ExpiresAt.UTC().Format(time.RFC3339),
	})
}
