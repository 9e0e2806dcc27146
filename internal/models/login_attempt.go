package models

import (
	"time"

	"github.com/google/uuid"
)

// Failure reasons recorded with unsuccessful login attempts
const (
	FailureReasonInvalidEmail     = "invalid_email"
	FailureReasonInvalidPassword  = "invalid_password"
	FailureReasonAccountLocked    = "account_locked"
	FailureReasonAccountInactive  = "account_inactive"
	FailureReasonEmailNotVerified = "email_not_verified"
	FailureReasonRateLimited      = "rate_limited"
	FailureReasonIPBlocked        = "ip_blocked"
)

// LoginAttempt is an immutable record of one authentication attempt.
// Rows are only ever removed by retention cleanup.
type LoginAttempt struct {
	ID            uuid.UUID  `db:"id"`
	Email         string     `db:"email"`
	IPAddress     string     `db:"ip_address"`
	UserAgent     string     `db:"user_agent"`
	Success       bool       `db:"success"`
	FailureReason *string    `db:"failure_reason"`
	ActorID       *uuid.UUID `db:"actor_id"`
	AttemptedAt   time.Time  `db:"attempted_at"`
}

// AdmissionDecision is the outcome of the pre-credential login gate.
type AdmissionDecision struct {
	Allowed           bool   `json:"allowed"`
	Reason            string `json:"reason,omitempty"`
	RemainingAttempts int    `json:"remaining_attempts"`
	WaitSeconds       int    `json:"wait_seconds,omitempty"`
}

// FailureResult reports the state of the failure window after recording
// a failed attempt.
type FailureResult struct {
	ShouldBlock            bool `json:"should_block"`
	FailedAttemptsInWindow int  `json:"failed_attempts_in_window"`
}
