package domain

import "time"

// Invitation gates registration: only holders of an unexpired, unused
// invitation token may create an account. The token is stored raw so that
// re-inviting the same address returns the original link instead of
// minting a second one.
type Invitation struct {
	ID        string
	Email     string
	Token     string // uuid4, the value mailed to the invitee
	Role      Role   // role the redeeming user will receive
	CreatedBy string // admin user id, empty for system-issued invitations
	ExpiresAt time.Time
	Used      bool
	UsedBy    string     // empty until redeemed
	UsedAt    *time.Time // set iff Used
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExpiredAt reports whether the invitation has lapsed at the given time.
func (i *Invitation) ExpiredAt(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
