package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aegisauth/aegis/internal/models"
	pkglogger "github.com/aegisauth/aegis/pkg/logger"
	"github.com/google/uuid"
)

// EventRepository defines the interface for event log storage operations
type EventRepository interface {
	Insert(ctx context.Context, event *models.SecurityEvent) (*models.SecurityEvent, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.SecurityEvent, error)
	Query(ctx context.Context, filter models.EventFilter, limit, offset int) ([]*models.SecurityEvent, int, error)
	MarkReviewed(ctx context.Context, id, reviewerID uuid.UUID, notes *string) (*models.SecurityEvent, error)
	CountsSince(ctx context.Context, since time.Time) (int, map[string]int, map[string]int, int, error)
	TopOffenderIPs(ctx context.Context, since time.Time, limit int) ([]models.IPCount, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// EventService is the append-only security event log with dual-write
// (durable row + structured log line). It holds no decision logic.
type EventService struct {
	repo      EventRepository
	notifier  Notifier
	secLogger *pkglogger.SecurityLogger
	logger    *slog.Logger
}

// NewEventService creates a new EventService
func NewEventService(repo EventRepository, notifier Notifier, secLogger *pkglogger.SecurityLogger, logger *slog.Logger) *EventService {
	return &EventService{
		repo:      repo,
		notifier:  notifier,
		secLogger: secLogger,
		logger:    logger,
	}
}

// Record appends one event. Critical events are additionally pushed to
// the operator notifier; notification failures are logged, never
// propagated, so the append itself stays authoritative.
func (s *EventService) Record(ctx context.Context, event *models.SecurityEvent) (*models.SecurityEvent, error) {
	if event.Severity == "" {
		event.Severity = models.SeverityLow
	}

	created, err := s.repo.Insert(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("failed to record security event: %w", err)
	}

	rec := pkglogger.SecurityRecord{
		EventType:   created.EventType,
		Severity:    created.Severity,
		IPAddress:   created.IPAddress,
		Description: created.Description,
	}
	if created.ActorID != nil {
		rec.ActorID = created.ActorID.String()
	}
	if created.Email != nil {
		rec.Email = *created.Email
	}
	s.secLogger.LogEvent(rec)

	if created.Severity == models.SeverityCritical {
		if err := s.notifier.NotifyCriticalEvent(ctx, created); err != nil {
			s.logger.Error("failed to notify operator of critical event",
				slog.String("event_id", created.ID.String()),
				slog.Any("error", err))
		}
	}

	return created, nil
}

// Query returns filtered events with the total match count
func (s *EventService) Query(ctx context.Context, filter models.EventFilter, limit, offset int) ([]*models.SecurityEvent, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	return s.repo.Query(ctx, filter, limit, offset)
}

// MarkReviewed sets the review marker on an event exactly once.
// Reviewing an already-reviewed event returns ErrAlreadyReviewed with
// the row unchanged.
func (s *EventService) MarkReviewed(ctx context.Context, id, reviewerID uuid.UUID, notes *string) (*models.SecurityEvent, error) {
	event, err := s.repo.MarkReviewed(ctx, id, reviewerID, notes)
	if err != nil {
		return nil, err
	}

	s.logger.Info("security event reviewed",
		slog.String("event_id", id.String()),
		slog.String("reviewer_id", reviewerID.String()))

	return event, nil
}

// Stats aggregates events over a trailing window of whole days
func (s *EventService) Stats(ctx context.Context, windowDays int) (*models.EventStats, error) {
	if windowDays <= 0 {
		windowDays = 7
	}
	since := time.Now().AddDate(0, 0, -windowDays)

	total, byType, bySeverity, unreviewed, err := s.repo.CountsSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate event stats: %w", err)
	}

	offenders, err := s.repo.TopOffenderIPs(ctx, since, 10)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate top offenders: %w", err)
	}

	return &models.EventStats{
		Total:           total,
		ByType:          byType,
		BySeverity:      bySeverity,
		UnreviewedCount: unreviewed,
		TopOffenderIPs:  offenders,
	}, nil
}

// PurgeOlderThan removes events past the retention horizon
func (s *EventService) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.repo.DeleteOlderThan(ctx, cutoff)
}
