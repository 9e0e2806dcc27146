package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventTypeLoginSuccess      = "login_success"
	EventTypeLoginFailure      = "login_failure"
	EventTypeRateLimitExceeded = "rate_limit_exceeded"
	EventTypeIPBlocked         = "ip_blocked"
	EventTypeIPUnblocked       = "ip_unblocked"
	EventTypeSessionCreated    = "session_created"
	EventTypeSessionRevoked    = "session_revoked"
)

// Severity levels, lowest to highest
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// SecurityEvent is an immutable record of a security-relevant
// occurrence. The review marker is the only part settable after the
// fact, and only once.
type SecurityEvent struct {
	ID          uuid.UUID     `db:"id"`
	EventType   string        `db:"event_type"`
	Severity    string        `db:"severity"`
	IPAddress   string        `db:"ip_address"`
	ActorID     *uuid.UUID    `db:"actor_id"`
	Email       *string       `db:"email"`
	Endpoint    *string       `db:"endpoint"`
	Method      *string       `db:"method"`
	Description string        `db:"description"`
	Metadata    EventMetadata `db:"metadata"`
	Reviewed    bool          `db:"reviewed"`
	ReviewedBy  *uuid.UUID    `db:"reviewed_by"`
	ReviewedAt  *time.Time    `db:"reviewed_at"`
	ReviewNotes *string       `db:"review_notes"`
	CreatedAt   time.Time     `db:"created_at"`
}

// EventFilter narrows security event queries.
type EventFilter struct {
	EventType *string
	Severity  *string
	IPAddress *string
	Reviewed  *bool
	From      *time.Time
	To        *time.Time
}

// EventStats aggregates events over a trailing window.
type EventStats struct {
	Total           int            `json:"total"`
	ByType          map[string]int `json:"by_type"`
	BySeverity      map[string]int `json:"by_severity"`
	UnreviewedCount int            `json:"unreviewed_count"`
	TopOffenderIPs  []IPCount      `json:"top_offender_ips"`
}

// IPCount pairs an origin IP with an occurrence count.
type IPCount struct {
	IPAddress string `json:"ip_address"`
	Count     int    `json:"count"`
}

// EventMetadata holds structured context for an event, stored as JSONB.
type EventMetadata map[string]interface{}

// Scan implements sql.Scanner for JSONB
func (m *EventMetadata) Scan(value interface{}) error {
	if value == nil {
		*m = make(EventMetadata)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return ErrBadRequest
	}

	var out map[string]interface{}
	if err := json.Unmarshal(bytes, &out); err != nil {
		return err
	}
	*m = EventMetadata(out)
	return nil
}

// Value implements driver.Valuer for JSONB
func (m EventMetadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}
