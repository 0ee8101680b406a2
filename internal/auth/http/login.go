package http

import (
	"encoding/json"
	"net/http"

	"github.com/securemed/portal/internal/auth/service"
	"github.com/securemed/portal/pkg/httpx"
)

type LoginHandler struct {
	LoginService *service.LoginService
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type mfaPendingResponse struct {
	MFARequired bool   `json:"mfa_required"`
	MFATicket   string `json:"mfa_ticket"`
}

// ServeHTTP handles the password phase of login. Accounts with MFA active
// get a short-lived ticket instead of tokens.
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadJSON(w)
		return
	}
	if req.Username == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	res, err := h.LoginService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeAuthFailure(w, r, err)
		return
	}

	if res.MFARequired {
		httpx.WriteJSON(w, http.StatusOK, mfaPendingResponse{
			MFARequired: true,
			MFATicket:   res.MFATicket,
		})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		TokenType:    res.Tokens.TokenType,
		ExpiresIn:    res.Tokens.ExpiresIn,
	})
}

type MFALoginHandler struct {
	LoginService *service.LoginService
}

type mfaLoginRequest struct {
	MFATicket    string `json:"mfa_ticket"`
	OTPCode      string `json:"otp_code,omitempty"`
	RecoveryCode string `json:"recovery_code,omitempty"`
}

// ServeHTTP completes login by redeeming an MFA ticket with a TOTP code or
// a recovery code.
func (h *MFALoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req mfaLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadJSON(w)
		return
	}
	if req.MFATicket == "" {
		httpx.WriteError(w, http.StatusBadRequest, "mfa_ticket is required")
		return
	}
	if (req.OTPCode == "") == (req.RecoveryCode == "") {
		httpx.WriteError(w, http.StatusBadRequest, "exactly one of otp_code or recovery_code is required")
		return
	}

	res, err := h.LoginService.CompleteMFA(r.Context(), req.MFATicket, req.OTPCode, req.RecoveryCode)
	if err != nil {
		writeAuthFailure(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		TokenType:    res.Tokens.TokenType,
		ExpiresIn:    res.Tokens.ExpiresIn,
	})
}
