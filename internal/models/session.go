package models

import (
	"time"

	"github.com/google/uuid"
)

// ActiveSession tracks one long-lived refresh credential. Only a one-way
// hash of the credential is ever stored; lookups recompute the hash.
// Sessions are deactivated, never physically removed, outside retention.
type ActiveSession struct {
	ID             uuid.UUID `db:"id"`
	ActorID        uuid.UUID `db:"actor_id"`
	CredentialHash string    `db:"credential_hash"`
	IPAddress      string    `db:"ip_address"`
	UserAgent      string    `db:"user_agent"`
	DeviceType     string    `db:"device_type"`
	Browser        string    `db:"browser"`
	OS             string    `db:"os"`
	Active         bool      `db:"active"`
	LastActivityAt time.Time `db:"last_activity_at"`
	ExpiresAt      time.Time `db:"expires_at"`
	CreatedAt      time.Time `db:"created_at"`
}

// Expired reports whether the session's absolute expiry has passed.
// Expiry is independent of activity.
func (s *ActiveSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
