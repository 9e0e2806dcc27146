package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aegisauth/aegis/internal/models"
	"github.com/google/uuid"
)

// BlocklistRepository defines the interface for blocked IP storage operations
type BlocklistRepository interface {
	GetActiveByIP(ctx context.Context, ipAddress string) (*models.BlockedIP, error)
	ListActiveIPs(ctx context.Context) ([]string, error)
	ListActive(ctx context.Context, limit, offset int) ([]*models.BlockedIP, error)
	Insert(ctx context.Context, block *models.BlockedIP) (*models.BlockedIP, error)
	UpdateBlock(ctx context.Context, id uuid.UUID, reason, blockedBy string, adminID *uuid.UUID, permanent bool, expiresAt *time.Time) (*models.BlockedIP, error)
	Deactivate(ctx context.Context, ipAddress string) (bool, error)
	IncrementAttempts(ctx context.Context, ipAddress string) error
	DeactivateExpired(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (*models.BlocklistStats, error)
}

// BlocklistService maintains the IP block registry and a TTL-refreshed
// in-process set of blocked IPs so membership checks stay off the hot
// database path. Staleness up to one TTL is accepted.
type BlocklistService struct {
	repo   BlocklistRepository
	config *ConfigService
	events *EventService
	logger *slog.Logger

	mu          sync.RWMutex
	blocked     map[string]struct{}
	lastRefresh time.Time
}

// NewBlocklistService creates a new BlocklistService
func NewBlocklistService(repo BlocklistRepository, config *ConfigService, events *EventService, logger *slog.Logger) *BlocklistService {
	return &BlocklistService{
		repo:    repo,
		config:  config,
		events:  events,
		logger:  logger,
		blocked: make(map[string]struct{}),
	}
}

// IsBlocked reports whether an IP is currently denied. The cached set
// answers the common negative case; a cache hit is re-validated against
// storage so an expired block is lifted lazily rather than waiting for
// the sweeper. Storage errors fail open.
func (s *BlocklistService) IsBlocked(ctx context.Context, ipAddress string) bool {
	s.refreshIfStale(ctx)

	s.mu.RLock()
	_, hit := s.blocked[ipAddress]
	s.mu.RUnlock()

	if !hit {
		return false
	}

	block, err := s.repo.GetActiveByIP(ctx, ipAddress)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.removeCached(ipAddress)
			return false
		}
		s.logger.Error("blocklist lookup failed, failing open",
			slog.String("ip_address", ipAddress),
			slog.Any("error", err))
		return false
	}

	if block.Expired(time.Now()) {
		if _, err := s.repo.Deactivate(ctx, ipAddress); err != nil {
			s.logger.Error("failed to deactivate expired block",
				slog.String("ip_address", ipAddress),
				slog.Any("error", err))
		}
		s.removeCached(ipAddress)
		return false
	}

	if err := s.repo.IncrementAttempts(ctx, ipAddress); err != nil {
		s.logger.Warn("failed to count attempt against block",
			slog.String("ip_address", ipAddress),
			slog.Any("error", err))
	}

	return true
}

// refreshIfStale swaps in a fresh snapshot of active IPs once the TTL
// has elapsed. On refresh failure the previous snapshot stays in place.
func (s *BlocklistService) refreshIfStale(ctx context.Context) {
	ttl := time.Duration(s.config.GetInt(ctx, models.ConfigKeyBlocklistCacheTTLSeconds, 60)) * time.Second

	s.mu.RLock()
	stale := time.Since(s.lastRefresh) >= ttl
	s.mu.RUnlock()

	if !stale {
		return
	}

	ips, err := s.repo.ListActiveIPs(ctx)
	if err != nil {
		s.logger.Error("blocklist cache refresh failed, keeping previous snapshot",
			slog.Any("error", err))
		s.mu.Lock()
		s.lastRefresh = time.Now()
		s.mu.Unlock()
		return
	}

	next := make(map[string]struct{}, len(ips))
	for _, ip := range ips {
		next[ip] = struct{}{}
	}

	s.mu.Lock()
	s.blocked = next
	s.lastRefresh = time.Now()
	s.mu.Unlock()
}

func (s *BlocklistService) removeCached(ipAddress string) {
	s.mu.Lock()
	delete(s.blocked, ipAddress)
	s.mu.Unlock()
}

func (s *BlocklistService) addCached(ipAddress string) {
	s.mu.Lock()
	s.blocked[ipAddress] = struct{}{}
	s.mu.Unlock()
}

// AutoBlock creates or refreshes a system block for an IP that crossed
// the failure threshold. Duration comes from config; an existing active
// row for the IP is updated in place.
func (s *BlocklistService) AutoBlock(ctx context.Context, ipAddress, reason string) (*models.BlockedIP, error) {
	durationMinutes := s.config.GetInt(ctx, models.ConfigKeyAutoBlockDurationMinutes, 30)
	expiresAt := time.Now().Add(time.Duration(durationMinutes) * time.Minute)

	block, err := s.upsertBlock(ctx, ipAddress, reason, models.BlockedBySystem, nil, false, &expiresAt)
	if err != nil {
		return nil, err
	}

	if _, err := s.events.Record(ctx, &models.SecurityEvent{
		EventType:   models.EventTypeIPBlocked,
		Severity:    models.SeverityHigh,
		IPAddress:   ipAddress,
		Description: fmt.Sprintf("IP automatically blocked: %s", reason),
		Metadata: models.EventMetadata{
			"blocked_by":       models.BlockedBySystem,
			"duration_minutes": durationMinutes,
		},
	}); err != nil {
		s.logger.Error("failed to record ip_blocked event", slog.Any("error", err))
	}

	return block, nil
}

// BlockManually creates or refreshes an admin-initiated block. A nil
// expiry with permanent=false falls back to the configured auto-block
// duration.
func (s *BlocklistService) BlockManually(ctx context.Context, ipAddress, reason string, adminID uuid.UUID, permanent bool, expiresAt *time.Time) (*models.BlockedIP, error) {
	if !permanent && expiresAt == nil {
		durationMinutes := s.config.GetInt(ctx, models.ConfigKeyAutoBlockDurationMinutes, 30)
		t := time.Now().Add(time.Duration(durationMinutes) * time.Minute)
		expiresAt = &t
	}
	if permanent {
		expiresAt = nil
	}

	block, err := s.upsertBlock(ctx, ipAddress, reason, models.BlockedByAdmin, &adminID, permanent, expiresAt)
	if err != nil {
		return nil, err
	}

	if _, err := s.events.Record(ctx, &models.SecurityEvent{
		EventType:   models.EventTypeIPBlocked,
		Severity:    models.SeverityMedium,
		IPAddress:   ipAddress,
		ActorID:     &adminID,
		Description: fmt.Sprintf("IP manually blocked: %s", reason),
		Metadata: models.EventMetadata{
			"blocked_by": models.BlockedByAdmin,
			"permanent":  permanent,
		},
	}); err != nil {
		s.logger.Error("failed to record ip_blocked event", slog.Any("error", err))
	}

	return block, nil
}

// upsertBlock enforces the one-active-row-per-IP invariant: an existing
// active block is updated with the new terms, otherwise a row is
// inserted. The cache is updated immediately so the block takes effect
// on this instance without waiting for the TTL.
func (s *BlocklistService) upsertBlock(ctx context.Context, ipAddress, reason, blockedBy string, adminID *uuid.UUID, permanent bool, expiresAt *time.Time) (*models.BlockedIP, error) {
	existing, err := s.repo.GetActiveByIP(ctx, ipAddress)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing block: %w", err)
	}

	// A system block never weakens an existing one: permanence, a later
	// expiry, and admin attribution all survive a re-triggered
	// auto-block. Admin updates apply their terms verbatim.
	if existing != nil && blockedBy == models.BlockedBySystem {
		if existing.Permanent {
			permanent = true
			expiresAt = nil
		} else if existing.ExpiresAt == nil || (expiresAt != nil && existing.ExpiresAt.After(*expiresAt)) {
			expiresAt = existing.ExpiresAt
		}
		if existing.BlockedBy == models.BlockedByAdmin {
			blockedBy = existing.BlockedBy
			adminID = existing.AdminID
			reason = existing.Reason
		}
	}

	var block *models.BlockedIP
	if existing != nil {
		block, err = s.repo.UpdateBlock(ctx, existing.ID, reason, blockedBy, adminID, permanent, expiresAt)
	} else {
		block, err = s.repo.Insert(ctx, &models.BlockedIP{
			IPAddress: ipAddress,
			Reason:    reason,
			BlockedBy: blockedBy,
			AdminID:   adminID,
			Permanent: permanent,
			ExpiresAt: expiresAt,
			Active:    true,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to persist block: %w", err)
	}

	s.addCached(ipAddress)

	s.logger.Info("ip blocked",
		slog.String("ip_address", ipAddress),
		slog.String("blocked_by", blockedBy),
		slog.Bool("permanent", permanent))

	return block, nil
}

// Unblock lifts an active block. Returns ErrNotFound when no active
// block exists for the IP.
func (s *BlocklistService) Unblock(ctx context.Context, ipAddress string, adminID uuid.UUID) error {
	removed, err := s.repo.Deactivate(ctx, ipAddress)
	if err != nil {
		return fmt.Errorf("failed to unblock ip: %w", err)
	}
	if !removed {
		return models.ErrNotFound
	}

	s.removeCached(ipAddress)

	if _, err := s.events.Record(ctx, &models.SecurityEvent{
		EventType:   models.EventTypeIPUnblocked,
		Severity:    models.SeverityLow,
		IPAddress:   ipAddress,
		ActorID:     &adminID,
		Description: "IP block lifted by administrator",
	}); err != nil {
		s.logger.Error("failed to record ip_unblocked event", slog.Any("error", err))
	}

	return nil
}

// ListActive returns the active blocks, newest first
func (s *BlocklistService) ListActive(ctx context.Context, limit, offset int) ([]*models.BlockedIP, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListActive(ctx, limit, offset)
}

// Stats summarizes the block registry
func (s *BlocklistService) Stats(ctx context.Context) (*models.BlocklistStats, error) {
	return s.repo.Stats(ctx)
}

// SweepExpired deactivates blocks past their expiry and forces a cache
// refresh on the next check. Called by the background cleanup manager.
func (s *BlocklistService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeactivateExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired blocks: %w", err)
	}

	if n > 0 {
		s.mu.Lock()
		s.lastRefresh = time.Time{}
		s.mu.Unlock()
	}

	return n, nil
}
