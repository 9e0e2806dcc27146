package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aegisauth/aegis/internal/models"
	"github.com/google/uuid"
)

// SessionRepository defines the interface for active session storage operations
type SessionRepository interface {
	Insert(ctx context.Context, session *models.ActiveSession) (*models.ActiveSession, error)
	GetActiveByCredentialHash(ctx context.Context, hash string) (*models.ActiveSession, error)
	UpdateActivity(ctx context.Context, hash string, at time.Time) error
	DeactivateByCredentialHash(ctx context.Context, hash string) (bool, error)
	DeactivateByID(ctx context.Context, id, actorID uuid.UUID) (bool, error)
	DeactivateAllForActor(ctx context.Context, actorID uuid.UUID) (int64, error)
	CountActiveForActor(ctx context.Context, actorID uuid.UUID) (int, error)
	ListActiveForActor(ctx context.Context, actorID uuid.UUID) ([]*models.ActiveSession, error)
	DeactivateOldestForActor(ctx context.Context, actorID uuid.UUID, n int) (int64, error)
	DeactivateExpired(ctx context.Context) (int64, error)
}

// SessionService manages the lifecycle of refresh-credential sessions:
// creation under the per-actor cap, activity tracking, revocation, and
// expiry.
type SessionService struct {
	repo   SessionRepository
	config *ConfigService
	events *EventService
	logger *slog.Logger
}

// NewSessionService creates a new SessionService
func NewSessionService(repo SessionRepository, config *ConfigService, events *EventService, logger *slog.Logger) *SessionService {
	return &SessionService{
		repo:   repo,
		config: config,
		events: events,
		logger: logger,
	}
}

// HashCredential produces the stored form of a refresh credential.
// SHA-256 keeps the lookup deterministic; the credential itself carries
// 256 bits of entropy so a salt adds nothing here.
func HashCredential(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}

// Create registers a session for a freshly issued credential. When the
// actor is at the configured cap the least recently active sessions are
// evicted, counting the new session against the cap, so the actor never
// exceeds it.
func (s *SessionService) Create(ctx context.Context, actorID uuid.UUID, credential, ipAddress, userAgent string) (*models.ActiveSession, error) {
	maxSessions := s.config.GetInt(ctx, models.ConfigKeyMaxActiveSessions, 5)
	lifetimeHours := s.config.GetInt(ctx, models.ConfigKeySessionLifetimeHours, 168)

	count, err := s.repo.CountActiveForActor(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to count active sessions: %w", err)
	}

	if count >= maxSessions {
		evict := count - maxSessions + 1
		evicted, err := s.repo.DeactivateOldestForActor(ctx, actorID, evict)
		if err != nil {
			return nil, fmt.Errorf("failed to evict oldest sessions: %w", err)
		}
		s.logger.Info("evicted sessions over cap",
			slog.String("actor_id", actorID.String()),
			slog.Int64("evicted", evicted))
	}

	deviceType, browser, os := parseUserAgent(userAgent)
	now := time.Now()

	session, err := s.repo.Insert(ctx, &models.ActiveSession{
		ActorID:        actorID,
		CredentialHash: HashCredential(credential),
		IPAddress:      ipAddress,
		UserAgent:      userAgent,
		DeviceType:     deviceType,
		Browser:        browser,
		OS:             os,
		Active:         true,
		LastActivityAt: now,
		ExpiresAt:      now.Add(time.Duration(lifetimeHours) * time.Hour),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if _, err := s.events.Record(ctx, &models.SecurityEvent{
		EventType:   models.EventTypeSessionCreated,
		Severity:    models.SeverityLow,
		IPAddress:   ipAddress,
		ActorID:     &actorID,
		Description: fmt.Sprintf("Session created on %s (%s)", deviceType, browser),
	}); err != nil {
		s.logger.Error("failed to record session_created event", slog.Any("error", err))
	}

	return session, nil
}

// FindByCredential resolves a presented credential to its active
// session. A session found past its expiry is deactivated on the spot
// and reported as ErrSessionExpired.
func (s *SessionService) FindByCredential(ctx context.Context, credential string) (*models.ActiveSession, error) {
	hash := HashCredential(credential)

	session, err := s.repo.GetActiveByCredentialHash(ctx, hash)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		return nil, err
	}

	if session.Expired(time.Now()) {
		if _, err := s.repo.DeactivateByCredentialHash(ctx, hash); err != nil {
			s.logger.Error("failed to deactivate expired session",
				slog.String("session_id", session.ID.String()),
				slog.Any("error", err))
		}
		return nil, models.ErrSessionExpired
	}

	return session, nil
}

// Touch bumps the session's last activity timestamp. Activity never
// extends the absolute expiry.
func (s *SessionService) Touch(ctx context.Context, credential string) error {
	return s.repo.UpdateActivity(ctx, HashCredential(credential), time.Now())
}

// Revoke deactivates the session behind a presented credential
func (s *SessionService) Revoke(ctx context.Context, credential, ipAddress string, actorID uuid.UUID) error {
	revoked, err := s.repo.DeactivateByCredentialHash(ctx, HashCredential(credential))
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	if !revoked {
		return models.ErrNotFound
	}

	s.recordRevocation(ctx, ipAddress, actorID, "Session revoked by logout")
	return nil
}

// RevokeByID deactivates one of the actor's sessions by ID. The actor
// scope prevents revoking another actor's session.
func (s *SessionService) RevokeByID(ctx context.Context, sessionID, actorID uuid.UUID, ipAddress string) error {
	revoked, err := s.repo.DeactivateByID(ctx, sessionID, actorID)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	if !revoked {
		return models.ErrNotFound
	}

	s.recordRevocation(ctx, ipAddress, actorID, "Session revoked by owner")
	return nil
}

// RevokeAll deactivates every active session the actor holds
func (s *SessionService) RevokeAll(ctx context.Context, actorID uuid.UUID, ipAddress string) (int64, error) {
	n, err := s.repo.DeactivateAllForActor(ctx, actorID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke sessions: %w", err)
	}

	if n > 0 {
		s.recordRevocation(ctx, ipAddress, actorID, fmt.Sprintf("All %d sessions revoked", n))
	}
	return n, nil
}

// ListActive returns the actor's active sessions, most recently used first
func (s *SessionService) ListActive(ctx context.Context, actorID uuid.UUID) ([]*models.ActiveSession, error) {
	return s.repo.ListActiveForActor(ctx, actorID)
}

// SweepExpired deactivates sessions past their absolute expiry
func (s *SessionService) SweepExpired(ctx context.Context) (int64, error) {
	return s.repo.DeactivateExpired(ctx)
}

func (s *SessionService) recordRevocation(ctx context.Context, ipAddress string, actorID uuid.UUID, description string) {
	if _, err := s.events.Record(ctx, &models.SecurityEvent{
		EventType:   models.EventTypeSessionRevoked,
		Severity:    models.SeverityLow,
		IPAddress:   ipAddress,
		ActorID:     &actorID,
		Description: description,
	}); err != nil {
		s.logger.Error("failed to record session_revoked event", slog.Any("error", err))
	}
}

// parseUserAgent extracts coarse device details from a raw user agent
// string. Best effort only; anything unrecognized comes back unknown.
func parseUserAgent(userAgent string) (deviceType, browser, os string) {
	deviceType, browser, os = "unknown", "unknown", "unknown"
	ua := strings.ToLower(userAgent)

	switch {
	case strings.Contains(ua, "mobile"), strings.Contains(ua, "android"), strings.Contains(ua, "iphone"):
		deviceType = "mobile"
	case strings.Contains(ua, "tablet"), strings.Contains(ua, "ipad"):
		deviceType = "tablet"
	case ua != "":
		deviceType = "desktop"
	}

	switch {
	case strings.Contains(ua, "edg/"):
		browser = "Edge"
	case strings.Contains(ua, "chrome"):
		browser = "Chrome"
	case strings.Contains(ua, "safari") && !strings.Contains(ua, "chrome"):
		browser = "Safari"
	case strings.Contains(ua, "firefox"):
		browser = "Firefox"
	case strings.Contains(ua, "curl"), strings.Contains(ua, "wget"), strings.Contains(ua, "python"):
		browser = "CLI"
	}

	switch {
	case strings.Contains(ua, "windows"):
		os = "Windows"
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"):
		// iOS user agents mention "like Mac OS X", so check these first.
		os = "iOS"
	case strings.Contains(ua, "android"):
		os = "Android"
	case strings.Contains(ua, "mac os"), strings.Contains(ua, "macos"):
		os = "macOS"
	case strings.Contains(ua, "linux"):
		os = "Linux"
	}

	return deviceType, browser, os
}
