package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Policy denials. Callers must surface these as distinguishable
	// outcomes, never as generic failures.
	ErrIPBlocked         = errors.New("origin ip is blocked")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// State machine violations
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrAlreadyReviewed   = errors.New("event already reviewed")

	// Account state errors
	ErrAccountInactive  = errors.New("account is inactive")
	ErrAccountLocked    = errors.New("account is temporarily locked")
	ErrEmailNotVerified = errors.New("email address not verified")

	// Session errors
	ErrSessionExpired = errors.New("session has expired")
)
