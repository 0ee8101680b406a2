package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/securemed/portal/internal/auth/domain"
	"github.com/securemed/portal/internal/auth/store"
	"github.com/securemed/portal/pkg/cryptox"
	"github.com/securemed/portal/pkg/idx"
	"github.com/securemed/portal/pkg/slogx"
)

// DefaultInviteTTL is how long an invitation link stays redeemable.
const DefaultInviteTTL = 48 * time.Hour

var (
	ErrInvalidInviteRequest   = errors.New("invalid invite request")
	ErrInvalidRole            = errors.New("invalid role")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvitationNotFound     = errors.New("invitation not found")
	ErrInvitationUsed         = errors.New("invitation has already been used")
	ErrInvitationExpired      = errors.New("invitation has expired")
	ErrUsernameAlreadyTaken   = errors.New("username already taken")
	ErrEmailMismatch          = errors.New("email does not match invitation")
	ErrPasswordConfirmation   = errors.New("passwords do not match")
	ErrCaptchaRequired        = errors.New("captcha verification required")
	ErrPasswordTooShort       = errors.New("password must be at least 12 characters")
	ErrPasswordNeedsSpecial   = errors.New("password must contain at least one special character")
)

const passwordMinLength = 12

// InviteService issues, verifies and redeems invitation tokens.
// Registration is invitation-only: there is no open signup path.
type InviteService struct {
	Store store.Store
	TTL   time.Duration
}

// Issue creates an invitation for an email address, or returns the
// existing one when an unexpired, unused invitation is already out for
// that address. The returned bool reports whether a new one was minted.
func (s *InviteService) Issue(ctx context.Context, email, roleName, createdBy string) (domain.Invitation, bool, error) {
	log := slogx.FromContext(ctx)

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.Invitation{}, false, ErrInvalidInviteRequest
	}

	if roleName == "" {
		roleName = domain.RolePatient.String()
	}
	role, err := domain.ParseRole(roleName)
	if err != nil {
		log.Warn("invite requested with unknown role", slog.String("role", roleName))
		return domain.Invitation{}, false, ErrInvalidRole
	}

	// An address that already has an account gets no invitation.
	if _, err := s.Store.Users().GetUserByEmail(ctx, email); err == nil {
		return domain.Invitation{}, false, ErrEmailAlreadyRegistered
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.Invitation{}, false, err
	}

	// Idempotent re-issue: resending the invite returns the original link
	// instead of invalidating it with a fresh token.
	existing, err := s.Store.Invitations().GetActiveInvitationByEmail(ctx, email)
	if err == nil {
		log.Debug("existing invitation returned",
			slog.String("invitation_id", existing.ID),
			slog.String("email", email),
		)
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.Invitation{}, false, err
	}

	inv := domain.Invitation{
		ID:        idx.New().String(),
		Email:     email,
		Token:     uuid.NewString(),
		Role:      role,
		CreatedBy: createdBy,
		ExpiresAt: time.Now().Add(s.ttl()),
	}

	if err := s.Store.Invitations().CreateInvitation(ctx, inv); err != nil {
		return domain.Invitation{}, false, err
	}

	log.Info("invitation issued",
		slog.String("invitation_id", inv.ID),
		slog.String("email", email),
		slog.String("role", role.String()),
		slog.Time("expires_at", inv.ExpiresAt),
	)
	return inv, true, nil
}

// Verify checks an invitation token ahead of registration, distinguishing
// unknown, already-used and expired tokens so the signup page can show a
// precise message.
func (s *InviteService) Verify(ctx context.Context, token string) (domain.Invitation, error) {
	inv, err := s.Store.Invitations().GetInvitationByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Invitation{}, ErrInvitationNotFound
		}
		return domain.Invitation{}, err
	}
	if inv.Used {
		return domain.Invitation{}, ErrInvitationUsed
	}
	if inv.ExpiredAt(time.Now()) {
		return domain.Invitation{}, ErrInvitationExpired
	}
	return inv, nil
}

// Registration carries the signup form. The email must restate the
// invited address exactly; the stored role always comes from the
// invitation, never from the caller.
type Registration struct {
	Token           string
	Email           string
	Username        string
	Password        string
	ConfirmPassword string
	CaptchaVerified bool
}

// Redeem validates the invitation and the registration form, then creates
// the user and consumes the invitation atomically. A concurrent redemption
// of the same token loses with ErrInvitationUsed.
func (s *InviteService) Redeem(ctx context.Context, reg Registration) (domain.User, error) {
	log := slogx.FromContext(ctx)

	inv, err := s.Verify(ctx, reg.Token)
	if err != nil {
		return domain.User{}, err
	}

	if !reg.CaptchaVerified {
		return domain.User{}, ErrCaptchaRequired
	}

	// The form restates the email; a link redeemed for a different address
	// is refused. Case-sensitive against the stored (lowercased) address.
	if reg.Email != inv.Email {
		return domain.User{}, ErrEmailMismatch
	}

	reg.Username = strings.TrimSpace(reg.Username)
	if reg.Username == "" {
		return domain.User{}, ErrInvalidInviteRequest
	}
	if reg.Password != reg.ConfirmPassword {
		return domain.User{}, ErrPasswordConfirmation
	}
	if err := ValidatePassword(reg.Password); err != nil {
		return domain.User{}, err
	}

	if _, err := s.Store.Users().GetUserByUsername(ctx, reg.Username); err == nil {
		return domain.User{}, ErrUsernameAlreadyTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.User{}, err
	}

	passwordHash, err := cryptox.HashPassword(reg.Password)
	if err != nil {
		return domain.User{}, err
	}

	newUser := domain.User{
		ID:           idx.New().String(),
		Username:     reg.Username,
		Email:        inv.Email,
		PasswordHash: passwordHash,
		Role:         inv.Role,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Invitations().MarkInvitationUsed(ctx, inv.ID, newUser.ID); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrInvitationUsed
			}
			return err
		}
		if err := tx.Users().CreateUser(ctx, newUser); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrUsernameAlreadyTaken
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}

	log.Info("user registered via invitation",
		slog.String("user_id", newUser.ID),
		slog.String("username", newUser.Username),
		slog.String("invitation_id", inv.ID),
		slog.String("role", newUser.Role.String()),
	)
	return newUser, nil
}

// ValidatePassword enforces the registration password policy: minimum
// length plus at least one special character.
func ValidatePassword(password string) error {
	if len(password) < passwordMinLength {
		return ErrPasswordTooShort
	}
	if !strings.ContainsAny(password, "!@#$%^&*()-_=+[]{};:'\",.<>/?\\|`~") {
		return ErrPasswordNeedsSpecial
	}
	return nil
}

func (s *InviteService) ttl() time.Duration {
	if s.TTL <= 0 {
		return DefaultInviteTTL
	}
	return s.TTL
}
