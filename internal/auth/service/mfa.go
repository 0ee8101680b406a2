package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/securemed/portal/internal/auth/store"
	"github.com/securemed/portal/pkg/cryptox"
	"github.com/securemed/portal/pkg/slogx"
)

const (
	// DefaultRecoveryCodeCount is how many single-use recovery codes a user
	// holds at any time.
	DefaultRecoveryCodeCount = 10

	// DefaultEnableSkew keeps activation tight: the code must come from the
	// current or adjacent 30s step.
	DefaultEnableSkew = 1

	// DefaultDeactivateSkew is slightly wider; turning MFA off already
	// requires the password as well.
	DefaultDeactivateSkew = 3
)

// MFAService manages TOTP enrollment, activation, deactivation and the
// recovery code set.
type MFAService struct {
	Store  store.Store
	Issuer string

	RecoveryCodeCount int
	EnableSkew        uint
	DeactivateSkew    uint
}

// MFASetup is what enrollment hands back for the authenticator app.
type MFASetup struct {
	Secret     string
	OTPAuthURL string
}

// Setup generates a TOTP secret for the user and stores it as pending.
// MFA is not active until VerifyAndEnable confirms a code from the
// enrolled device. Calling Setup again before activation rotates the
// pending secret.
func (s *MFAService) Setup(ctx context.Context, userID string) (MFASetup, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return MFASetup{}, err
	}
	if u.MFAActive() {
		return MFASetup{}, ErrMFAAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: u.Email,
		Period:      30,
		SecretSize:  20, // 160-bit secret per RFC 4226
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return MFASetup{}, err
	}

	if err := s.Store.Users().UpdateMFASecret(ctx, userID, key.Secret()); err != nil {
		return MFASetup{}, err
	}

	return MFASetup{Secret: key.Secret(), OTPAuthURL: key.URL()}, nil
}

// VerifyAndEnable activates MFA after proving the enrolled device can
// produce a valid code, then mints the recovery code set. The plaintext
// codes are returned exactly once; only fingerprints are stored.
func (s *MFAService) VerifyAndEnable(ctx context.Context, userID, code string) ([]string, error) {
	log := slogx.FromContext(ctx)

	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.MFASecret == nil || *u.MFASecret == "" {
		return nil, ErrMFANotEnrolled
	}
	if u.MFAEnabled != nil {
		return nil, ErrMFAAlreadyEnabled
	}

	ok, err := totp.ValidateCustom(code, *u.MFASecret, time.Now(), totp.ValidateOpts{
		Period:    30,
		Skew:      defaultSkew(s.EnableSkew, DefaultEnableSkew),
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil || !ok {
		return nil, ErrInvalidOTP
	}

	codes, err := cryptox.GenerateRecoveryCodes(s.recoveryCodeCount())
	if err != nil {
		return nil, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RecoveryCodes().ReplaceRecoveryCodes(ctx, userID, fingerprintAll(codes)); err != nil {
			return err
		}
		return tx.Users().EnableMFA(ctx, userID)
	})
	if err != nil {
		return nil, err
	}

	log.Info("MFA enabled", slog.String("user_id", userID))
	return codes, nil
}

// Deactivate turns MFA off. It demands both the password and a fresh TOTP
// code, and revokes every live refresh token so stolen sessions cannot
// outlive the downgrade. Recovery codes are left in place as the audit
// trail of the enrollment; re-enabling replaces them wholesale.
func (s *MFAService) Deactivate(ctx context.Context, userID, password, code string) error {
	log := slogx.FromContext(ctx)

	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !u.MFAActive() {
		return ErrMFANotEnabled
	}

	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return ErrInvalidCredentials
		}
		return err
	}

	ok, err := totp.ValidateCustom(code, *u.MFASecret, time.Now(), totp.ValidateOpts{
		Period:    30,
		Skew:      defaultSkew(s.DeactivateSkew, DefaultDeactivateSkew),
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil || !ok {
		return ErrInvalidOTP
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().RevokeAllUserRefreshTokens(ctx, userID); err != nil {
			return err
		}
		return tx.Users().DisableMFA(ctx, userID)
	})
	if err != nil {
		return err
	}

	log.Info("MFA deactivated", slog.String("user_id", userID))
	return nil
}

// RegenerateRecoveryCodes replaces the whole recovery code set after
// re-confirming the password. Old codes stop working immediately.
func (s *MFAService) RegenerateRecoveryCodes(ctx context.Context, userID, password string) ([]string, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.MFAActive() {
		return nil, ErrMFANotEnabled
	}

	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	codes, err := cryptox.GenerateRecoveryCodes(s.recoveryCodeCount())
	if err != nil {
		return nil, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		return tx.RecoveryCodes().ReplaceRecoveryCodes(ctx, userID, fingerprintAll(codes))
	})
	if err != nil {
		return nil, err
	}

	return codes, nil
}

// Status reports whether MFA is active and how many recovery codes remain.
func (s *MFAService) Status(ctx context.Context, userID string) (enabled bool, recoveryCodes int, err error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return false, 0, err
	}
	if !u.MFAActive() {
		return false, 0, nil
	}
	n, err := s.Store.RecoveryCodes().CountRecoveryCodes(ctx, userID)
	if err != nil {
		return false, 0, err
	}
	return true, n, nil
}

func (s *MFAService) recoveryCodeCount() int {
	if s.RecoveryCodeCount <= 0 {
		return DefaultRecoveryCodeCount
	}
	return s.RecoveryCodeCount
}

func defaultSkew(v, fallback uint) uint {
	if v == 0 {
		return fallback
	}
	return v
}

func fingerprintAll(codes []string) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = cryptox.FingerprintToken(c)
	}
	return out
}
