package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/securemed/portal/internal/auth/service"
	"github.com/securemed/portal/pkg/httpx"
)

type MFAHandler struct {
	MFAService *service.MFAService
}

type mfaSetupResponse struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
}

// HandleSetup starts TOTP enrollment for the authenticated user.
func (h *MFAHandler) HandleSetup(w http.ResponseWriter, r *http.Request) {
	setup, err := h.MFAService.Setup(r.Context(), httpx.UserID(r.Context()))
	if err != nil {
		if errors.Is(err, service.ErrMFAAlreadyEnabled) {
			httpx.WriteError(w, http.StatusConflict, "MFA is already enabled")
			return
		}
		writeServerError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, mfaSetupResponse{
		Secret:     setup.Secret,
		OTPAuthURL: setup.OTPAuthURL,
	})
}

type mfaVerifyRequest struct {
	OTPCode string `json:"otp_code"`
}

type recoveryCodesResponse struct {
	RecoveryCodes []string `json:"recovery_codes"`
}

// HandleVerify activates MFA once the enrolled device proves it can
// produce a valid code, and returns the one-time view of the recovery
// codes.
func (h *MFAHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req mfaVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadJSON(w)
		return
	}
	if req.OTPCode == "" {
		httpx.WriteError(w, http.StatusBadRequest, "otp_code is required")
		return
	}

	codes, err := h.MFAService.VerifyAndEnable(r.Context(), httpx.UserID(r.Context()), req.OTPCode)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidOTP):
			httpx.WriteError(w, http.StatusUnauthorized, "invalid one-time code")
		case errors.Is(err, service.ErrMFANotEnrolled):
			httpx.WriteError(w, http.StatusBadRequest, "MFA enrollment not started")
		case errors.Is(err, service.ErrMFAAlreadyEnabled):
			httpx.WriteError(w, http.StatusConflict, "MFA is already enabled")
		default:
			writeServerError(w, r, err)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, recoveryCodesResponse{RecoveryCodes: codes})
}

type mfaDeactivateRequest struct {
	Password string `json:"password"`
	OTPCode  string `json:"otp_code"`
}

// HandleDeactivate turns MFA off; requires both password and a current
// code.
func (h *MFAHandler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	var req mfaDeactivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadJSON(w)
		return
	}
	if req.Password == "" || req.OTPCode == "" {
		httpx.WriteError(w, http.StatusBadRequest, "password and otp_code are required")
		return
	}

	err := h.MFAService.Deactivate(r.Context(), httpx.UserID(r.Context()), req.Password, req.OTPCode)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			httpx.WriteError(w, http.StatusUnauthorized, "invalid password")
		case errors.Is(err, service.ErrInvalidOTP):
			httpx.WriteError(w, http.StatusUnauthorized, "invalid one-time code")
		case errors.Is(err, service.ErrMFANotEnabled):
			httpx.WriteError(w, http.StatusBadRequest, "MFA is not enabled")
		default:
			writeServerError(w, r, err)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type mfaRegenerateRequest struct {
	Password string `json:"password"`
}

// HandleRegenerateRecoveryCodes replaces the recovery code set.
func (h *MFAHandler) HandleRegenerateRecoveryCodes(w http.ResponseWriter, r *http.Request) {
	var req mfaRegenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadJSON(w)
		return
	}
	if req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "password is required")
		return
	}

	codes, err := h.MFAService.RegenerateRecoveryCodes(r.Context(), httpx.UserID(r.Context()), req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			httpx.WriteError(w, http.StatusUnauthorized, "invalid password")
		case errors.Is(err, service.ErrMFANotEnabled):
			httpx.WriteError(w, http.StatusBadRequest, "MFA is not enabled")
		default:
			writeServerError(w, r, err)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, recoveryCodesResponse{RecoveryCodes: codes})
}
