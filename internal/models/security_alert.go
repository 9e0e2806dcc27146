package models

import (
	"time"

	"github.com/google/uuid"
)

// Alert types produced by correlation
const (
	AlertTypeBruteForce           = "brute_force_attack"
	AlertTypeMultipleFailedLogins = "multiple_failed_logins"
	AlertTypeAPIAbuse             = "api_abuse"
	AlertTypeSuspiciousActivity   = "suspicious_activity"
)

// Alert lifecycle: active -> investigating -> resolved | dismissed.
// Resolved and dismissed are terminal; reopening is not supported.
const (
	AlertStatusActive        = "active"
	AlertStatusInvestigating = "investigating"
	AlertStatusResolved      = "resolved"
	AlertStatusDismissed     = "dismissed"
)

// alertTransitions is the exhaustive transition table. Absent keys are
// terminal states.
var alertTransitions = map[string][]string{
	AlertStatusActive:        {AlertStatusInvestigating, AlertStatusResolved, AlertStatusDismissed},
	AlertStatusInvestigating: {AlertStatusResolved, AlertStatusDismissed},
}

// CanTransitionAlert reports whether an alert may move from one status
// to another.
func CanTransitionAlert(from, to string) bool {
	for _, allowed := range alertTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// SecurityAlert is a derived, mutable record of an escalated pattern.
// Created only by correlation logic; all later transitions are
// admin-driven.
type SecurityAlert struct {
	ID              uuid.UUID   `db:"id"`
	AlertType       string      `db:"alert_type"`
	Severity        string      `db:"severity"`
	Title           string      `db:"title"`
	Description     string      `db:"description"`
	ActorID         *uuid.UUID  `db:"actor_id"`
	IPAddress       *string     `db:"ip_address"`
	RelatedEventIDs []string    `db:"related_event_ids"`
	Status          string      `db:"status"`
	AssignedTo      *uuid.UUID  `db:"assigned_to"`
	Resolution      *string     `db:"resolution"`
	ResolvedBy      *uuid.UUID  `db:"resolved_by"`
	ResolvedAt      *time.Time  `db:"resolved_at"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
}
