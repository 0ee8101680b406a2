package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidOTP          = errors.New("invalid one-time code")
	ErrInvalidRecoveryCode = errors.New("invalid recovery code")
	ErrInvalidTicket       = errors.New("invalid MFA ticket")
	ErrAmbiguousMFACode    = errors.New("exactly one of one-time code or recovery code must be provided")
	ErrTicketExpired       = errors.New("MFA ticket expired")
	ErrInvalidRefresh      = errors.New("invalid refresh token")

	ErrMFANotEnabled     = errors.New("MFA not enabled for this user")
	ErrMFANotEnrolled    = errors.New("MFA enrollment not started")
	ErrMFAAlreadyEnabled = errors.New("MFA already enabled for this user")
)

// RemainingAttemptsError wraps a credential failure with the number of
// attempts the user has left before the account locks. Remaining is -1
// when the count must not be disclosed (e.g. unknown username).
type RemainingAttemptsError struct {
	Err       error
	Remaining int
}

func (e *RemainingAttemptsError) Error() string {
	if e.Remaining < 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s (%d attempts remaining)", e.Err, e.Remaining)
}

func (e *RemainingAttemptsError) Unwrap() error { return e.Err }

// LockedError signals the account is locked until the given time.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.Format(time.RFC3339))
}
