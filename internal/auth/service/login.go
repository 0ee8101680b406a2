package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/securemed/portal/internal/auth/domain"
	"github.com/securemed/portal/internal/auth/store"
	"github.com/securemed/portal/pkg/cryptox"
	"github.com/securemed/portal/pkg/jwtx"
	"github.com/securemed/portal/pkg/slogx"
)

// DefaultLoginSkew is how many 30s steps of clock drift are tolerated when
// checking a TOTP code at login. Wide on purpose: device clocks in the
// field drift, and the lockout counter bounds brute force anyway.
const DefaultLoginSkew = 6

// LoginService runs the two-phase login flow. Phase one checks the
// password under the lockout policy; accounts with MFA active get a
// short-lived MFA-pending ticket instead of tokens. Phase two redeems the
// ticket with a TOTP code or a recovery code.
type LoginService struct {
	Store   store.Store
	Tokens  *TokenService
	Codec   *jwtx.Codec
	Issuer  string
	Lockout LockoutPolicy

	MFATicketTTL time.Duration
	LoginSkew    uint
}

// LoginResult is the outcome of a successful phase-one login. Exactly one
// of Tokens or MFATicket is set.
type LoginResult struct {
	MFARequired bool
	MFATicket   string
	Tokens      *domain.TokenPair
	User        domain.User
}

// Login verifies the identifier (username, or email when it contains an
// "@") and password.
//
// Failures increment the per-user counter atomically; crossing the policy
// threshold locks the account. An elapsed lock is wiped before the attempt
// is judged, so the first login after the lock window starts from a clean
// slate.
func (s *LoginService) Login(ctx context.Context, identifier, password string) (LoginResult, error) {
	now := time.Now()
	log := slogx.FromContext(ctx)

	u, err := s.lookupUser(ctx, identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Unknown usernames get the generic failure without an
			// attempts count, so the response does not confirm existence.
			return LoginResult{}, &RemainingAttemptsError{Err: ErrInvalidCredentials, Remaining: -1}
		}
		return LoginResult{}, err
	}

	if s.Lockout.Lapsed(u.LockedUntil, now) {
		if err := s.Store.Users().ResetLockout(ctx, u.ID); err != nil {
			return LoginResult{}, err
		}
		u.FailedLoginAttempts = 0
		u.LockedUntil = nil
	}

	if u.LockedAt(now) {
		log.Warn("login attempt on locked account", slog.String("user_id", u.ID))
		return LoginResult{}, &LockedError{Until: *u.LockedUntil}
	}

	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			return LoginResult{}, err
		}
		return LoginResult{}, s.recordFailure(ctx, u.ID, ErrInvalidCredentials, now)
	}

	if u.FailedLoginAttempts > 0 || u.LockedUntil != nil {
		if err := s.Store.Users().ResetLockout(ctx, u.ID); err != nil {
			return LoginResult{}, err
		}
	}

	if u.MFAActive() {
		ticket, err := s.Codec.Sign(jwtx.NewMFAPendingClaims(u.ID, s.Issuer, s.MFATicketTTL, now))
		if err != nil {
			return LoginResult{}, err
		}
		log.Debug("password accepted, MFA pending", slog.String("user_id", u.ID))
		return LoginResult{MFARequired: true, MFATicket: ticket, User: u}, nil
	}

	pair, err := s.Tokens.Issue(ctx, u)
	if err != nil {
		return LoginResult{}, err
	}

	log.Info("user logged in",
		slog.String("user_id", u.ID),
		slog.String("role", u.Role.String()),
		slog.Bool("mfa", false),
	)
	return LoginResult{Tokens: pair, User: u}, nil
}

// CompleteMFA redeems an MFA-pending ticket with exactly one of a TOTP
// code or a recovery code; supplying both (or neither) is rejected before
// anything is checked. Failed codes feed the same lockout counter as bad
// passwords.
func (s *LoginService) CompleteMFA(ctx context.Context, ticket, otpCode, recoveryCode string) (LoginResult, error) {
	now := time.Now()
	log := slogx.FromContext(ctx)

	if (otpCode == "") == (recoveryCode == "") {
		return LoginResult{}, ErrAmbiguousMFACode
	}

	claims, err := s.Codec.VerifyType(ticket, jwtx.TokenTypeMFAPending)
	if err != nil {
		if errors.Is(err, jwtx.ErrExpired) {
			return LoginResult{}, ErrTicketExpired
		}
		return LoginResult{}, ErrInvalidTicket
	}

	// The codec allows a little clock-skew leeway, which is right for
	// access tokens but not for the pending ticket: its five minutes are
	// a hard ceiling on the window between password and code.
	if claims.ExpiresAt != nil && now.After(claims.ExpiresAt.Time) {
		return LoginResult{}, ErrTicketExpired
	}

	u, err := s.Store.Users().GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LoginResult{}, ErrInvalidTicket
		}
		return LoginResult{}, err
	}

	if !u.MFAActive() {
		return LoginResult{}, ErrMFANotEnabled
	}

	if s.Lockout.Lapsed(u.LockedUntil, now) {
		if err := s.Store.Users().ResetLockout(ctx, u.ID); err != nil {
			return LoginResult{}, err
		}
		u.LockedUntil = nil
	}
	if u.LockedAt(now) {
		return LoginResult{}, &LockedError{Until: *u.LockedUntil}
	}

	switch {
	case otpCode != "":
		ok, err := totp.ValidateCustom(otpCode, *u.MFASecret, now, totp.ValidateOpts{
			Period:    30,
			Skew:      s.loginSkew(),
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		})
		if err != nil || !ok {
			return LoginResult{}, s.recordFailure(ctx, u.ID, ErrInvalidOTP, now)
		}

	case recoveryCode != "":
		consumed, err := s.Store.RecoveryCodes().ConsumeRecoveryCode(ctx, u.ID,
			cryptox.FingerprintToken(recoveryCode))
		if err != nil {
			return LoginResult{}, err
		}
		if !consumed {
			return LoginResult{}, s.recordFailure(ctx, u.ID, ErrInvalidRecoveryCode, now)
		}
		log.Info("recovery code consumed", slog.String("user_id", u.ID))
	}

	if err := s.Store.Users().ResetLockout(ctx, u.ID); err != nil {
		return LoginResult{}, err
	}

	pair, err := s.Tokens.Issue(ctx, u)
	if err != nil {
		return LoginResult{}, err
	}

	log.Info("user logged in",
		slog.String("user_id", u.ID),
		slog.String("role", u.Role.String()),
		slog.Bool("mfa", true),
	)
	return LoginResult{Tokens: pair, User: u}, nil
}

// recordFailure bumps the counter and converts the result into either a
// remaining-attempts warning or a fresh lock.
func (s *LoginService) recordFailure(ctx context.Context, userID string, cause error, now time.Time) error {
	log := slogx.FromContext(ctx)

	attempts, err := s.Store.Users().IncrementFailedAttempts(ctx, userID)
	if err != nil {
		return err
	}

	if s.Lockout.ShouldLock(attempts) {
		until := s.Lockout.LockUntil(now)
		if err := s.Store.Users().LockAccount(ctx, userID, until); err != nil {
			return err
		}
		log.Warn("account locked",
			slog.String("user_id", userID),
			slog.Int("attempts", attempts),
			slog.Time("until", until),
		)
		return &LockedError{Until: until}
	}

	log.Info("authentication failure",
		slog.String("user_id", userID),
		slog.Int("attempts", attempts),
	)
	return &RemainingAttemptsError{Err: cause, Remaining: s.Lockout.Remaining(attempts)}
}

func (s *LoginService) lookupUser(ctx context.Context, identifier string) (domain.User, error) {
	if strings.Contains(identifier, "@") {
		return s.Store.Users().GetUserByEmail(ctx, strings.ToLower(identifier))
	}
	return s.Store.Users().GetUserByUsername(ctx, identifier)
}

func (s *LoginService) loginSkew() uint {
	if s.LoginSkew == 0 {
		return DefaultLoginSkew
	}
	return s.LoginSkew
}
