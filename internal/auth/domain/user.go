package domain

import "time"

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string // argon2id encoded
	Role         Role

	MFAEnabled *time.Time // when MFA was activated (nullable)
	MFASecret  *string    // TOTP secret, base32 (nullable)

	FailedLoginAttempts int
	LockedUntil         *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MFAActive reports whether the user has completed MFA activation.
func (u *User) MFAActive() bool {
	return u.MFAEnabled != nil && u.MFASecret != nil
}

// LockedAt reports whether the account lock is in force at the given time.
// An elapsed lock does not count as locked; the login path resets it.
func (u *User) LockedAt(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}
