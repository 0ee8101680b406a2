package sqlite

import (
	"context"
	"time"

	"github.com/securemed/portal/internal/auth/store"
)

type recoveryCodesRepo struct {
	db dbtx
}

func (r *recoveryCodesRepo) ReplaceRecoveryCodes(ctx context.Context, userID string, fingerprints []string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM mfa_recovery_codes WHERE user_id = ?`, userID); err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, fp := range fingerprints {
		if _, err := r.db.ExecContext(ctx, `
			INSERT INTO mfa_recovery_codes (user_id, code_hash, created_at)
			VALUES (?, ?, ?)`,
			userID, fp, now); err != nil {
			return mapConstraint(err)
		}
	}
	return nil
}

func (r *recoveryCodesRepo) ConsumeRecoveryCode(ctx context.Context, userID string, fingerprint string) (bool, error) {
	// Single conditional DELETE. Two racing attempts with the same code get
	// exactly one success between them.
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM mfa_recovery_codes WHERE user_id = ? AND code_hash = ?`,
		userID, fingerprint)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *recoveryCodesRepo) CountRecoveryCodes(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mfa_recovery_codes WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

var _ store.RecoveryCodes = (*recoveryCodesRepo)(nil)
