package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/securemed/portal/internal/auth/domain"
	"github.com/securemed/portal/internal/auth/store"
)

type invitationsRepo struct {
	db dbtx
}

const invitationColumns = `id, email, token, role, created_by, expires_at, used, used_by,
	used_at, created_at, updated_at`

func scanInvitation(row *sql.Row) (domain.Invitation, error) {
	var (
		inv    domain.Invitation
		role   string
		usedBy sql.NullString
		usedAt sql.NullTime
	)

	err := row.Scan(&inv.ID, &inv.Email, &inv.Token, &role, &inv.CreatedBy,
		&inv.ExpiresAt, &inv.Used, &usedBy, &usedAt, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return domain.Invitation{}, mapNotFound(err)
	}

	inv.Role = domain.Role(role)
	inv.UsedBy = mapNullString(usedBy)
	inv.UsedAt = mapNullTimePtr(usedAt)
	return inv, nil
}

func (r *invitationsRepo) CreateInvitation(ctx context.Context, inv domain.Invitation) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO invitations (id, email, token, role, created_by, expires_at,
			used, used_by, used_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, NULL, NULL, ?, ?)`,
		inv.ID, inv.Email, inv.Token, string(inv.Role), inv.CreatedBy,
		inv.ExpiresAt.UTC(), now, now)
	return mapConstraint(err)
}

func (r *invitationsRepo) GetInvitationByToken(ctx context.Context, token string) (domain.Invitation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE token = ?`, token)
	return scanInvitation(row)
}

func (r *invitationsRepo) GetActiveInvitationByEmail(ctx context.Context, email string) (domain.Invitation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+invitationColumns+`
		FROM invitations
		WHERE email = ? AND used = 0 AND expires_at > ?
		ORDER BY created_at DESC
		LIMIT 1`,
		email, time.Now().UTC())
	return scanInvitation(row)
}

func (r *invitationsRepo) MarkInvitationUsed(ctx context.Context, invitationID, usedByUserID string) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE invitations
		SET used = 1, used_by = ?, used_at = ?, updated_at = ?
		WHERE id = ? AND used = 0`,
		usedByUserID, now, now, invitationID)
	if err != nil {
		return err
	}

	// Zero rows means a concurrent redemption won, or the id is bogus.
	// Either way the caller must not proceed with registration.
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrAlreadyExists
	}
	return nil
}

var _ store.Invitations = (*invitationsRepo)(nil)
