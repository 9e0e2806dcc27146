package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aegisauth/aegis/internal/models"
	"github.com/google/uuid"
)

// AlertRepository defines the interface for security alert storage operations
type AlertRepository interface {
	Insert(ctx context.Context, alert *models.SecurityAlert) (*models.SecurityAlert, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.SecurityAlert, error)
	ListByStatus(ctx context.Context, statuses []string, limit, offset int) ([]*models.SecurityAlert, error)
	HasOpenAlert(ctx context.Context, alertType, ipAddress string) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, resolution *string, resolvedBy *uuid.UUID, resolvedAt *time.Time) (*models.SecurityAlert, error)
	Assign(ctx context.Context, id, assigneeID uuid.UUID) (*models.SecurityAlert, error)
	CountActiveBySeverity(ctx context.Context) (map[string]int, error)
}

// AttemptCounter is the slice of attempt tracking the correlator reads
type AttemptCounter interface {
	CountFailuresByIP(ctx context.Context, ipAddress string, since time.Time) (int, error)
	CountRateLimitedByIP(ctx context.Context, ipAddress string, since time.Time) (int, error)
}

// EventFinder looks up recent events so alerts can reference them
type EventFinder interface {
	Query(ctx context.Context, filter models.EventFilter, limit, offset int) ([]*models.SecurityEvent, int, error)
}

// AlertService correlates raw security facts into alerts and runs the
// alert review workflow. Alerts are only ever created here; everything
// after creation is admin-driven.
type AlertService struct {
	repo     AlertRepository
	attempts AttemptCounter
	events   EventFinder
	config   *ConfigService
	notifier Notifier
	logger   *slog.Logger
}

// NewAlertService creates a new AlertService
func NewAlertService(repo AlertRepository, attempts AttemptCounter, events EventFinder, config *ConfigService, notifier Notifier, logger *slog.Logger) *AlertService {
	return &AlertService{
		repo:     repo,
		attempts: attempts,
		events:   events,
		config:   config,
		notifier: notifier,
		logger:   logger,
	}
}

// CheckAndCreateAlerts re-evaluates alert conditions for an IP after new
// facts arrive. Conditions are recomputed from the raw attempt log each
// time; an open alert of the same type for the same IP suppresses a
// duplicate.
func (s *AlertService) CheckAndCreateAlerts(ctx context.Context, ipAddress, email string) error {
	windowMinutes := s.config.GetInt(ctx, models.ConfigKeyFailureWindowMinutes, 15)
	since := time.Now().Add(-time.Duration(windowMinutes) * time.Minute)

	failures, err := s.attempts.CountFailuresByIP(ctx, ipAddress, since)
	if err != nil {
		return fmt.Errorf("failed to count failures for correlation: %w", err)
	}

	highThreshold := s.config.GetInt(ctx, models.ConfigKeyAlertFailedLoginHigh, 10)
	mediumThreshold := s.config.GetInt(ctx, models.ConfigKeyAlertFailedLoginMedium, 5)

	switch {
	case failures >= highThreshold:
		err = s.raise(ctx, models.AlertTypeBruteForce, models.SeverityHigh, ipAddress, since,
			fmt.Sprintf("Possible brute force attack from %s", ipAddress),
			fmt.Sprintf("%d failed login attempts from %s within %d minutes, most recently against %s", failures, ipAddress, windowMinutes, email))
	case failures >= mediumThreshold:
		err = s.raise(ctx, models.AlertTypeMultipleFailedLogins, models.SeverityMedium, ipAddress, since,
			fmt.Sprintf("Multiple failed logins from %s", ipAddress),
			fmt.Sprintf("%d failed login attempts from %s within %d minutes", failures, ipAddress, windowMinutes))
	}
	if err != nil {
		return err
	}

	abuseThreshold := s.config.GetInt(ctx, models.ConfigKeyAlertRateLimitAbuse, 10)
	rateLimited, err := s.attempts.CountRateLimitedByIP(ctx, ipAddress, since)
	if err != nil {
		return fmt.Errorf("failed to count rate limit denials for correlation: %w", err)
	}

	if rateLimited >= abuseThreshold {
		return s.raise(ctx, models.AlertTypeAPIAbuse, models.SeverityMedium, ipAddress, since,
			fmt.Sprintf("API abuse from %s", ipAddress),
			fmt.Sprintf("%d requests denied at the rate limit for %s within %d minutes", rateLimited, ipAddress, windowMinutes))
	}

	return nil
}

// raise creates one alert unless an open alert of the same type already
// covers the IP. Recent events for the IP are linked for the reviewer.
func (s *AlertService) raise(ctx context.Context, alertType, severity, ipAddress string, since time.Time, title, description string) error {
	open, err := s.repo.HasOpenAlert(ctx, alertType, ipAddress)
	if err != nil {
		return fmt.Errorf("failed to check open alerts: %w", err)
	}
	if open {
		return nil
	}

	alert := &models.SecurityAlert{
		AlertType:       alertType,
		Severity:        severity,
		Title:           title,
		Description:     description,
		IPAddress:       &ipAddress,
		RelatedEventIDs: s.recentEventIDs(ctx, ipAddress, since),
	}

	return s.Raise(ctx, alert)
}

// Raise persists a new alert in the active status and notifies the
// operator for high and critical severities. Notification failures are
// logged, never propagated.
func (s *AlertService) Raise(ctx context.Context, alert *models.SecurityAlert) error {
	created, err := s.repo.Insert(ctx, alert)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}

	s.logger.Warn("security alert raised",
		slog.String("alert_id", created.ID.String()),
		slog.String("alert_type", created.AlertType),
		slog.String("severity", created.Severity))

	if created.Severity == models.SeverityHigh || created.Severity == models.SeverityCritical {
		if err := s.notifier.NotifyAlert(ctx, created); err != nil {
			s.logger.Error("failed to notify operator of alert",
				slog.String("alert_id", created.ID.String()),
				slog.Any("error", err))
		}
	}

	return nil
}

func (s *AlertService) recentEventIDs(ctx context.Context, ipAddress string, since time.Time) []string {
	events, _, err := s.events.Query(ctx, models.EventFilter{
		IPAddress: &ipAddress,
		From:      &since,
	}, 20, 0)
	if err != nil {
		s.logger.Warn("failed to link related events",
			slog.String("ip_address", ipAddress),
			slog.Any("error", err))
		return nil
	}

	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID.String())
	}
	return ids
}

// GetByID returns one alert
func (s *AlertService) GetByID(ctx context.Context, id uuid.UUID) (*models.SecurityAlert, error) {
	return s.repo.GetByID(ctx, id)
}

// FindActive returns alerts still needing attention, newest first
func (s *AlertService) FindActive(ctx context.Context, limit, offset int) ([]*models.SecurityAlert, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByStatus(ctx, []string{models.AlertStatusActive, models.AlertStatusInvestigating}, limit, offset)
}

// List returns alerts in the given statuses, newest first. An empty
// status list means all statuses.
func (s *AlertService) List(ctx context.Context, statuses []string, limit, offset int) ([]*models.SecurityAlert, error) {
	if len(statuses) == 0 {
		statuses = []string{models.AlertStatusActive, models.AlertStatusInvestigating, models.AlertStatusResolved, models.AlertStatusDismissed}
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByStatus(ctx, statuses, limit, offset)
}

// UpdateStatus moves an alert through its lifecycle. Invalid moves,
// including any attempt to leave a terminal status, return
// ErrInvalidTransition with the alert unchanged. Resolution context is
// stamped when entering a terminal status.
func (s *AlertService) UpdateStatus(ctx context.Context, id uuid.UUID, status string, resolution *string, actorID uuid.UUID) (*models.SecurityAlert, error) {
	alert, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !models.CanTransitionAlert(alert.Status, status) {
		return nil, models.ErrInvalidTransition
	}

	var resolvedBy *uuid.UUID
	var resolvedAt *time.Time
	if status == models.AlertStatusResolved || status == models.AlertStatusDismissed {
		resolvedBy = &actorID
		now := time.Now()
		resolvedAt = &now
	} else {
		resolution = nil
	}

	updated, err := s.repo.UpdateStatus(ctx, id, status, resolution, resolvedBy, resolvedAt)
	if err != nil {
		return nil, err
	}

	s.logger.Info("alert status changed",
		slog.String("alert_id", id.String()),
		slog.String("from", alert.Status),
		slog.String("to", status),
		slog.String("actor_id", actorID.String()))

	return updated, nil
}

// Assign hands an alert to a reviewer and forces it into investigating.
// Terminal alerts cannot be assigned.
func (s *AlertService) Assign(ctx context.Context, id, assigneeID uuid.UUID) (*models.SecurityAlert, error) {
	alert, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if alert.Status != models.AlertStatusActive && alert.Status != models.AlertStatusInvestigating {
		return nil, models.ErrInvalidTransition
	}

	return s.repo.Assign(ctx, id, assigneeID)
}

// CountActiveBySeverity summarizes open alerts for dashboards
func (s *AlertService) CountActiveBySeverity(ctx context.Context) (map[string]int, error) {
	return s.repo.CountActiveBySeverity(ctx)
}
