package store

import (
	"context"
	"errors"
	"time"

	"github.com/securemed/portal/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement it.
// Sub-repositories keep concerns tidy and testable, and make it harder to
// accidentally nest transactions.
type Store interface {
	Users() Users
	Invitations() Invitations
	RecoveryCodes() RecoveryCodes
	RefreshTokens() RefreshTokens

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. Same repos plus Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername is the login lookup.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by the app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// IncrementFailedAttempts bumps the failed-login counter atomically and
	// returns the new count. Single UPDATE..RETURNING so concurrent failures
	// never lose an increment.
	IncrementFailedAttempts(ctx context.Context, userID string) (int, error)

	// LockAccount sets locked_until. The failure counter is left in place so
	// a lapsed lock can be told apart from a clean slate.
	LockAccount(ctx context.Context, userID string, until time.Time) error

	// ResetLockout clears the counter and any lock timestamp.
	ResetLockout(ctx context.Context, userID string) error

	// UpdateMFASecret stores a pending TOTP secret. Passing "" clears it.
	UpdateMFASecret(ctx context.Context, userID string, secret string) error

	// EnableMFA stamps mfa_enabled with the current time.
	EnableMFA(ctx context.Context, userID string) error

	// DisableMFA clears mfa_enabled and mfa_secret.
	DisableMFA(ctx context.Context, userID string) error

	DeleteUser(ctx context.Context, userID string) error

	// IsEmpty reports whether the table has no users.
	IsEmpty(ctx context.Context) (bool, error)
}

type Invitations interface {
	// CreateInvitation writes a new invitation. The token is stored raw so
	// a repeat invite for the same email can return the original link.
	CreateInvitation(ctx context.Context, inv domain.Invitation) error

	GetInvitationByToken(ctx context.Context, token string) (domain.Invitation, error)

	// GetActiveInvitationByEmail returns the unused, unexpired invitation
	// for an email if one exists. Drives idempotent re-issue.
	GetActiveInvitationByEmail(ctx context.Context, email string) (domain.Invitation, error)

	// MarkInvitationUsed flips used only if it was not already set, and
	// records who redeemed it. Returns ErrAlreadyExists when the invitation
	// was consumed concurrently.
	MarkInvitationUsed(ctx context.Context, invitationID, usedByUserID string) error
}

type RecoveryCodes interface {
	// ReplaceRecoveryCodes deletes any existing fingerprints for the user
	// and inserts the new set.
	ReplaceRecoveryCodes(ctx context.Context, userID string, fingerprints []string) error

	// ConsumeRecoveryCode deletes one fingerprint if present and reports
	// whether it existed. Single conditional DELETE, so a code can only be
	// redeemed once even under concurrent attempts.
	ConsumeRecoveryCode(ctx context.Context, userID string, fingerprint string) (bool, error)

	CountRecoveryCodes(ctx context.Context, userID string) (int, error)
}

type RefreshTokens interface {
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash looks up by fingerprint (base64url SHA-256).
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// RevokeRefreshToken flips revoked=1, sets updated_at.
	RevokeRefreshToken(ctx context.Context, hash string) error

	// RevokeAllUserRefreshTokens bulk revocation, e.g. on MFA deactivation.
	RevokeAllUserRefreshTokens(ctx context.Context, userID string) error

	// DeleteExpiredRefreshTokens is housekeeping.
	DeleteExpiredRefreshTokens(ctx context.Context) error
}
