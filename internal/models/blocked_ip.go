package models

import (
	"time"

	"github.com/google/uuid"
)

// Who created a block
const (
	BlockedBySystem = "system"
	BlockedByAdmin  = "admin"
)

// BlockedIP is the durable record of a denied origin IP. At most one
// active row exists per IP value; re-triggered blocks update the
// existing row instead of inserting a duplicate.
type BlockedIP struct {
	ID                uuid.UUID  `db:"id"`
	IPAddress         string     `db:"ip_address"`
	Reason            string     `db:"reason"`
	BlockedBy         string     `db:"blocked_by"`
	AdminID           *uuid.UUID `db:"admin_id"`
	Permanent         bool       `db:"permanent"`
	ExpiresAt         *time.Time `db:"expires_at"`
	AttemptsSinceBlock int       `db:"attempts_since_block"`
	Active            bool       `db:"active"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

// Expired reports whether the block's expiry has passed. Permanent
// blocks never expire.
func (b *BlockedIP) Expired(now time.Time) bool {
	if b.Permanent || b.ExpiresAt == nil {
		return false
	}
	return now.After(*b.ExpiresAt)
}

// BlocklistStats summarizes the current state of the block registry.
type BlocklistStats struct {
	TotalActive        int `json:"total_active"`
	Permanent          int `json:"permanent"`
	AutoBlocked        int `json:"auto_blocked"`
	ManuallyBlocked    int `json:"manually_blocked"`
	AttemptsSinceBlock int `json:"attempts_since_block"`
}
