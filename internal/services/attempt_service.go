package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aegisauth/aegis/internal/models"
	"github.com/google/uuid"
)

// AttemptRepository defines the interface for login attempt storage operations
type AttemptRepository interface {
	RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error
	CountFailuresByIP(ctx context.Context, ipAddress string, since time.Time) (int, error)
	CountFailuresByEmail(ctx context.Context, email string, since time.Time) (int, error)
	CountAttemptsByIP(ctx context.Context, ipAddress string, since time.Time) (int, error)
	CountRateLimitedByIP(ctx context.Context, ipAddress string, since time.Time) (int, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// BlocklistGate is the slice of the blocklist the tracker needs: the
// admission check and the auto-block trigger.
type BlocklistGate interface {
	IsBlocked(ctx context.Context, ipAddress string) bool
	AutoBlock(ctx context.Context, ipAddress, reason string) (*models.BlockedIP, error)
}

// AlertCorrelator re-evaluates alert conditions after new facts arrive.
type AlertCorrelator interface {
	CheckAndCreateAlerts(ctx context.Context, ipAddress, email string) error
}

// AttemptService records login attempts as immutable facts and derives
// every counter from them on demand. There are no stored counters to
// reset or drift.
type AttemptService struct {
	repo      AttemptRepository
	config    *ConfigService
	blocklist BlocklistGate
	alerts    AlertCorrelator
	events    *EventService
	logger    *slog.Logger
}

// NewAttemptService creates a new AttemptService
func NewAttemptService(repo AttemptRepository, config *ConfigService, blocklist BlocklistGate, alerts AlertCorrelator, events *EventService, logger *slog.Logger) *AttemptService {
	return &AttemptService{
		repo:      repo,
		config:    config,
		blocklist: blocklist,
		alerts:    alerts,
		events:    events,
		logger:    logger,
	}
}

// CanAttemptLogin runs the pre-credential admission gates in order:
// blocklist membership first, then the per-minute attempt rate. Both
// gates are evaluated before any credential work happens.
func (s *AttemptService) CanAttemptLogin(ctx context.Context, ipAddress string) *models.AdmissionDecision {
	if s.blocklist.IsBlocked(ctx, ipAddress) {
		return &models.AdmissionDecision{
			Allowed: false,
			Reason:  models.FailureReasonIPBlocked,
		}
	}

	maxPerMinute := s.config.GetInt(ctx, models.ConfigKeyMaxAttemptsPerMinute, 5)
	count, err := s.repo.CountAttemptsByIP(ctx, ipAddress, time.Now().Add(-time.Minute))
	if err != nil {
		// Fail open: an unavailable counter must not lock out logins.
		s.logger.Error("attempt rate check failed, failing open",
			slog.String("ip_address", ipAddress),
			slog.Any("error", err))
		return &models.AdmissionDecision{Allowed: true, RemainingAttempts: maxPerMinute}
	}

	if count >= maxPerMinute {
		return &models.AdmissionDecision{
			Allowed:     false,
			Reason:      models.FailureReasonRateLimited,
			WaitSeconds: 60,
		}
	}

	return &models.AdmissionDecision{
		Allowed:           true,
		RemainingAttempts: maxPerMinute - count,
	}
}

// RecordSuccess writes a successful attempt and its event
func (s *AttemptService) RecordSuccess(ctx context.Context, ipAddress, email, userAgent string, actorID uuid.UUID) error {
	err := s.repo.RecordAttempt(ctx, &models.LoginAttempt{
		Email:     email,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Success:   true,
		ActorID:   &actorID,
	})
	if err != nil {
		return fmt.Errorf("failed to record login attempt: %w", err)
	}

	if _, err := s.events.Record(ctx, &models.SecurityEvent{
		EventType:   models.EventTypeLoginSuccess,
		Severity:    models.SeverityLow,
		IPAddress:   ipAddress,
		ActorID:     &actorID,
		Email:       &email,
		Description: "Successful login",
	}); err != nil {
		s.logger.Error("failed to record login_success event", slog.Any("error", err))
	}

	return nil
}

// RecordFailure writes a failed attempt, recomputes the failure window
// for the IP, escalates event severity with the count, and triggers an
// automatic block at the configured threshold. Alert correlation runs
// afterwards; its failure never propagates.
func (s *AttemptService) RecordFailure(ctx context.Context, ipAddress, email, userAgent, failureReason string) (*models.FailureResult, error) {
	err := s.repo.RecordAttempt(ctx, &models.LoginAttempt{
		Email:         email,
		IPAddress:     ipAddress,
		UserAgent:     userAgent,
		Success:       false,
		FailureReason: &failureReason,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record login attempt: %w", err)
	}

	windowMinutes := s.config.GetInt(ctx, models.ConfigKeyFailureWindowMinutes, 15)
	threshold := s.config.GetInt(ctx, models.ConfigKeyAutoBlockThreshold, 10)
	since := time.Now().Add(-time.Duration(windowMinutes) * time.Minute)

	count, err := s.repo.CountFailuresByIP(ctx, ipAddress, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count failures: %w", err)
	}

	result := &models.FailureResult{FailedAttemptsInWindow: count}

	// Rate-limit denials get their own event type; everything else is a
	// plain failed login.
	eventType := models.EventTypeLoginFailure
	description := fmt.Sprintf("Failed login attempt: %s", failureReason)
	if failureReason == models.FailureReasonRateLimited {
		eventType = models.EventTypeRateLimitExceeded
		description = "Login attempt rejected by rate limit"
	}

	if _, err := s.events.Record(ctx, &models.SecurityEvent{
		EventType:   eventType,
		Severity:    failureSeverity(count, threshold),
		IPAddress:   ipAddress,
		Email:       &email,
		Description: description,
		Metadata: models.EventMetadata{
			"failure_reason":     failureReason,
			"failures_in_window": count,
		},
	}); err != nil {
		s.logger.Error("failed to record login_failure event", slog.Any("error", err))
	}

	if count >= threshold {
		result.ShouldBlock = true
		reason := fmt.Sprintf("%d failed login attempts in %d minutes", count, windowMinutes)
		if _, err := s.blocklist.AutoBlock(ctx, ipAddress, reason); err != nil {
			s.logger.Error("failed to auto-block ip",
				slog.String("ip_address", ipAddress),
				slog.Any("error", err))
		}
	}

	if err := s.alerts.CheckAndCreateAlerts(ctx, ipAddress, email); err != nil {
		s.logger.Error("alert correlation failed",
			slog.String("ip_address", ipAddress),
			slog.Any("error", err))
	}

	return result, nil
}

// failureSeverity maps the size of the failure window to an event
// severity. Crossing the auto-block threshold is the critical case.
func failureSeverity(count, threshold int) string {
	switch {
	case count >= threshold:
		return models.SeverityCritical
	case count >= 5:
		return models.SeverityHigh
	case count >= 3:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// FailureCountForIP recomputes the current failure window for an IP
func (s *AttemptService) FailureCountForIP(ctx context.Context, ipAddress string) (int, error) {
	windowMinutes := s.config.GetInt(ctx, models.ConfigKeyFailureWindowMinutes, 15)
	since := time.Now().Add(-time.Duration(windowMinutes) * time.Minute)
	return s.repo.CountFailuresByIP(ctx, ipAddress, since)
}

// PurgeOlderThan removes attempts past the retention horizon
func (s *AttemptService) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.repo.DeleteOlderThan(ctx, cutoff)
}
