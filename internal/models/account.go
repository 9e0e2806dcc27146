package models

import (
	"time"

	"github.com/google/uuid"
)

// Account statuses
const (
	AccountStatusActive   = "active"
	AccountStatusInactive = "inactive"
)

// Account is the minimal credential record the authentication flow
// verifies against. Profile management lives elsewhere; this carries
// only what the login path needs.
type Account struct {
	ID            uuid.UUID  `db:"id"`
	Email         string     `db:"email"`
	PasswordHash  string     `db:"password_hash"`
	Role          string     `db:"role"`
	Status        string     `db:"status"`
	EmailVerified bool       `db:"email_verified"`
	LockedUntil   *time.Time `db:"locked_until"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

// Locked reports whether the account is under a temporary lock.
func (a *Account) Locked(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}
