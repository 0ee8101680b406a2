// Package http exposes the portal's authentication API over JSON.
package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/securemed/portal/internal/auth/service"
	"github.com/securemed/portal/pkg/httpx"
	"github.com/securemed/portal/pkg/slogx"
)

type errorResponse struct {
	Error       string `json:"error"`
	LockedUntil string `json:"locked_until,omitempty"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// writeAuthFailure maps the login error taxonomy onto HTTP responses. The
// attempts-remaining hint is surfaced when the service disclosed one.
func writeAuthFailure(w http.ResponseWriter, r *http.Request, err error) bool {
	log := slogx.FromContext(r.Context())

	var locked *service.LockedError
	if errors.As(err, &locked) {
		minutes := int(time.Until(locked.Until).Round(time.Minute).Minutes())
		if minutes < 1 {
			minutes = 1
		}
		httpx.WriteJSON(w, http.StatusForbidden, errorResponse{
			Error:       fmt.Sprintf("account locked due to too many failed attempts; try again in %d minutes", minutes),
			LockedUntil: locked.Until.UTC().Format(time.RFC3339),
		})
		return true
	}

	var rae *service.RemainingAttemptsError
	if errors.As(err, &rae) {
		msg := rae.Err.Error()
		if rae.Remaining >= 0 {
			msg = fmt.Sprintf("%s; %d attempts remaining", msg, rae.Remaining)
		}
		httpx.WriteError(w, http.StatusUnauthorized, msg)
		return true
	}

	switch {
	case errors.Is(err, service.ErrTicketExpired):
		httpx.WriteError(w, http.StatusUnauthorized, "MFA session expired, log in again")
	case errors.Is(err, service.ErrInvalidTicket):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid MFA session")
	case errors.Is(err, service.ErrAmbiguousMFACode):
		httpx.WriteError(w, http.StatusBadRequest, service.ErrAmbiguousMFACode.Error())
	case errors.Is(err, service.ErrMFANotEnabled):
		httpx.WriteError(w, http.StatusBadRequest, service.ErrMFANotEnabled.Error())
	default:
		log.Error("authentication handler error", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
	return true
}

func writeServerError(w http.ResponseWriter, r *http.Request, err error) {
	slogx.FromContext(r.Context()).Error("handler error", "err", err)
	httpx.WriteError(w, http.StatusInternalServerError, "internal server error")
}

func writeBadJSON(w http.ResponseWriter) {
	httpx.WriteError(w, http.StatusBadRequest, "invalid JSON body")
}
