package services

import (
	"context"
	"time"

	"github.com/aegisauth/aegis/internal/models"
	"github.com/google/uuid"
)

// MockConfigRepository implements ConfigRepository for testing
type MockConfigRepository struct {
	GetByKeyFunc     func(ctx context.Context, key string) (*models.SecurityConfig, error)
	GetAllFunc       func(ctx context.Context) ([]*models.SecurityConfig, error)
	CreateFunc       func(ctx context.Context, cfg *models.SecurityConfig) (*models.SecurityConfig, error)
	UpdateFunc       func(ctx context.Context, key, value string, modifiedBy uuid.UUID) (*models.SecurityConfig, error)
	SeedDefaultsFunc func(ctx context.Context, defaults []models.ConfigDefault) error
}

func (m *MockConfigRepository) GetByKey(ctx context.Context, key string) (*models.SecurityConfig, error) {
	if m.GetByKeyFunc != nil {
		return m.GetByKeyFunc(ctx, key)
	}
	return nil, models.ErrNotFound
}

func (m *MockConfigRepository) GetAll(ctx context.Context) ([]*models.SecurityConfig, error) {
	if m.GetAllFunc != nil {
		return m.GetAllFunc(ctx)
	}
	return []*models.SecurityConfig{}, nil
}

func (m *MockConfigRepository) Create(ctx context.Context, cfg *models.SecurityConfig) (*models.SecurityConfig, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, cfg)
	}
	return cfg, nil
}

func (m *MockConfigRepository) Update(ctx context.Context, key, value string, modifiedBy uuid.UUID) (*models.SecurityConfig, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, key, value, modifiedBy)
	}
	return nil, models.ErrNotFound
}

func (m *MockConfigRepository) SeedDefaults(ctx context.Context, defaults []models.ConfigDefault) error {
	if m.SeedDefaultsFunc != nil {
		return m.SeedDefaultsFunc(ctx, defaults)
	}
	return nil
}

// MockEventRepository implements EventRepository for testing
type MockEventRepository struct {
	InsertFunc          func(ctx context.Context, event *models.SecurityEvent) (*models.SecurityEvent, error)
	GetByIDFunc         func(ctx context.Context, id uuid.UUID) (*models.SecurityEvent, error)
	QueryFunc           func(ctx context.Context, filter models.EventFilter, limit, offset int) ([]*models.SecurityEvent, int, error)
	MarkReviewedFunc    func(ctx context.Context, id, reviewerID uuid.UUID, notes *string) (*models.SecurityEvent, error)
	CountsSinceFunc     func(ctx context.Context, since time.Time) (int, map[string]int, map[string]int, int, error)
	TopOffenderIPsFunc  func(ctx context.Context, since time.Time, limit int) ([]models.IPCount, error)
	DeleteOlderThanFunc func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *MockEventRepository) Insert(ctx context.Context, event *models.SecurityEvent) (*models.SecurityEvent, error) {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, event)
	}
	out := *event
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	out.CreatedAt = time.Now()
	return &out, nil
}

func (m *MockEventRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SecurityEvent, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockEventRepository) Query(ctx context.Context, filter models.EventFilter, limit, offset int) ([]*models.SecurityEvent, int, error) {
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, filter, limit, offset)
	}
	return []*models.SecurityEvent{}, 0, nil
}

func (m *MockEventRepository) MarkReviewed(ctx context.Context, id, reviewerID uuid.UUID, notes *string) (*models.SecurityEvent, error) {
	if m.MarkReviewedFunc != nil {
		return m.MarkReviewedFunc(ctx, id, reviewerID, notes)
	}
	return nil, models.ErrNotFound
}

func (m *MockEventRepository) CountsSince(ctx context.Context, since time.Time) (int, map[string]int, map[string]int, int, error) {
	if m.CountsSinceFunc != nil {
		return m.CountsSinceFunc(ctx, since)
	}
	return 0, map[string]int{}, map[string]int{}, 0, nil
}

func (m *MockEventRepository) TopOffenderIPs(ctx context.Context, since time.Time, limit int) ([]models.IPCount, error) {
	if m.TopOffenderIPsFunc != nil {
		return m.TopOffenderIPsFunc(ctx, since, limit)
	}
	return []models.IPCount{}, nil
}

func (m *MockEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.DeleteOlderThanFunc != nil {
		return m.DeleteOlderThanFunc(ctx, cutoff)
	}
	return 0, nil
}

// MockBlocklistRepository implements BlocklistRepository for testing
type MockBlocklistRepository struct {
	GetActiveByIPFunc     func(ctx context.Context, ipAddress string) (*models.BlockedIP, error)
	ListActiveIPsFunc     func(ctx context.Context) ([]string, error)
	ListActiveFunc        func(ctx context.Context, limit, offset int) ([]*models.BlockedIP, error)
	InsertFunc            func(ctx context.Context, block *models.BlockedIP) (*models.BlockedIP, error)
	UpdateBlockFunc       func(ctx context.Context, id uuid.UUID, reason, blockedBy string, adminID *uuid.UUID, permanent bool, expiresAt *time.Time) (*models.BlockedIP, error)
	DeactivateFunc        func(ctx context.Context, ipAddress string) (bool, error)
	IncrementAttemptsFunc func(ctx context.Context, ipAddress string) error
	DeactivateExpiredFunc func(ctx context.Context) (int64, error)
	StatsFunc             func(ctx context.Context) (*models.BlocklistStats, error)
}

func (m *MockBlocklistRepository) GetActiveByIP(ctx context.Context, ipAddress string) (*models.BlockedIP, error) {
	if m.GetActiveByIPFunc != nil {
		return m.GetActiveByIPFunc(ctx, ipAddress)
	}
	return nil, models.ErrNotFound
}

func (m *MockBlocklistRepository) ListActiveIPs(ctx context.Context) ([]string, error) {
	if m.ListActiveIPsFunc != nil {
		return m.ListActiveIPsFunc(ctx)
	}
	return []string{}, nil
}

func (m *MockBlocklistRepository) ListActive(ctx context.Context, limit, offset int) ([]*models.BlockedIP, error) {
	if m.ListActiveFunc != nil {
		return m.ListActiveFunc(ctx, limit, offset)
	}
	return []*models.BlockedIP{}, nil
}

func (m *MockBlocklistRepository) Insert(ctx context.Context, block *models.BlockedIP) (*models.BlockedIP, error) {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, block)
	}
	out := *block
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	out.CreatedAt = time.Now()
	return &out, nil
}

func (m *MockBlocklistRepository) UpdateBlock(ctx context.Context, id uuid.UUID, reason, blockedBy string, adminID *uuid.UUID, permanent bool, expiresAt *time.Time) (*models.BlockedIP, error) {
	if m.UpdateBlockFunc != nil {
		return m.UpdateBlockFunc(ctx, id, reason, blockedBy, adminID, permanent, expiresAt)
	}
	return nil, models.ErrNotFound
}

func (m *MockBlocklistRepository) Deactivate(ctx context.Context, ipAddress string) (bool, error) {
	if m.DeactivateFunc != nil {
		return m.DeactivateFunc(ctx, ipAddress)
	}
	return false, nil
}

func (m *MockBlocklistRepository) IncrementAttempts(ctx context.Context, ipAddress string) error {
	if m.IncrementAttemptsFunc != nil {
		return m.IncrementAttemptsFunc(ctx, ipAddress)
	}
	return nil
}

func (m *MockBlocklistRepository) DeactivateExpired(ctx context.Context) (int64, error) {
	if m.DeactivateExpiredFunc != nil {
		return m.DeactivateExpiredFunc(ctx)
	}
	return 0, nil
}

func (m *MockBlocklistRepository) Stats(ctx context.Context) (*models.BlocklistStats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx)
	}
	return &models.BlocklistStats{}, nil
}

// MockAttemptRepository implements AttemptRepository for testing
type MockAttemptRepository struct {
	RecordAttemptFunc        func(ctx context.Context, attempt *models.LoginAttempt) error
	CountFailuresByIPFunc    func(ctx context.Context, ipAddress string, since time.Time) (int, error)
	CountFailuresByEmailFunc func(ctx context.Context, email string, since time.Time) (int, error)
	CountAttemptsByIPFunc    func(ctx context.Context, ipAddress string, since time.Time) (int, error)
	CountRateLimitedByIPFunc func(ctx context.Context, ipAddress string, since time.Time) (int, error)
	DeleteOlderThanFunc      func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *MockAttemptRepository) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	if m.RecordAttemptFunc != nil {
		return m.RecordAttemptFunc(ctx, attempt)
	}
	return nil
}

func (m *MockAttemptRepository) CountFailuresByIP(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	if m.CountFailuresByIPFunc != nil {
		return m.CountFailuresByIPFunc(ctx, ipAddress, since)
	}
	return 0, nil
}

func (m *MockAttemptRepository) CountFailuresByEmail(ctx context.Context, email string, since time.Time) (int, error) {
	if m.CountFailuresByEmailFunc != nil {
		return m.CountFailuresByEmailFunc(ctx, email, since)
	}
	return 0, nil
}

func (m *MockAttemptRepository) CountAttemptsByIP(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	if m.CountAttemptsByIPFunc != nil {
		return m.CountAttemptsByIPFunc(ctx, ipAddress, since)
	}
	return 0, nil
}

func (m *MockAttemptRepository) CountRateLimitedByIP(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	if m.CountRateLimitedByIPFunc != nil {
		return m.CountRateLimitedByIPFunc(ctx, ipAddress, since)
	}
	return 0, nil
}

func (m *MockAttemptRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.DeleteOlderThanFunc != nil {
		return m.DeleteOlderThanFunc(ctx, cutoff)
	}
	return 0, nil
}

// MockSessionRepository implements SessionRepository for testing
type MockSessionRepository struct {
	InsertFunc                     func(ctx context.Context, session *models.ActiveSession) (*models.ActiveSession, error)
	GetActiveByCredentialHashFunc  func(ctx context.Context, hash string) (*models.ActiveSession, error)
	UpdateActivityFunc             func(ctx context.Context, hash string, at time.Time) error
	DeactivateByCredentialHashFunc func(ctx context.Context, hash string) (bool, error)
	DeactivateByIDFunc             func(ctx context.Context, id, actorID uuid.UUID) (bool, error)
	DeactivateAllForActorFunc      func(ctx context.Context, actorID uuid.UUID) (int64, error)
	CountActiveForActorFunc        func(ctx context.Context, actorID uuid.UUID) (int, error)
	ListActiveForActorFunc         func(ctx context.Context, actorID uuid.UUID) ([]*models.ActiveSession, error)
	DeactivateOldestForActorFunc   func(ctx context.Context, actorID uuid.UUID, n int) (int64, error)
	DeactivateExpiredFunc          func(ctx context.Context) (int64, error)
}

func (m *MockSessionRepository) Insert(ctx context.Context, session *models.ActiveSession) (*models.ActiveSession, error) {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, session)
	}
	out := *session
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	out.CreatedAt = time.Now()
	return &out, nil
}

func (m *MockSessionRepository) GetActiveByCredentialHash(ctx context.Context, hash string) (*models.ActiveSession, error) {
	if m.GetActiveByCredentialHashFunc != nil {
		return m.GetActiveByCredentialHashFunc(ctx, hash)
	}
	return nil, models.ErrNotFound
}

func (m *MockSessionRepository) UpdateActivity(ctx context.Context, hash string, at time.Time) error {
	if m.UpdateActivityFunc != nil {
		return m.UpdateActivityFunc(ctx, hash, at)
	}
	return nil
}

func (m *MockSessionRepository) DeactivateByCredentialHash(ctx context.Context, hash string) (bool, error) {
	if m.DeactivateByCredentialHashFunc != nil {
		return m.DeactivateByCredentialHashFunc(ctx, hash)
	}
	return false, nil
}

func (m *MockSessionRepository) DeactivateByID(ctx context.Context, id, actorID uuid.UUID) (bool, error) {
	if m.DeactivateByIDFunc != nil {
		return m.DeactivateByIDFunc(ctx, id, actorID)
	}
	return false, nil
}

func (m *MockSessionRepository) DeactivateAllForActor(ctx context.Context, actorID uuid.UUID) (int64, error) {
	if m.DeactivateAllForActorFunc != nil {
		return m.DeactivateAllForActorFunc(ctx, actorID)
	}
	return 0, nil
}

func (m *MockSessionRepository) CountActiveForActor(ctx context.Context, actorID uuid.UUID) (int, error) {
	if m.CountActiveForActorFunc != nil {
		return m.CountActiveForActorFunc(ctx, actorID)
	}
	return 0, nil
}

func (m *MockSessionRepository) ListActiveForActor(ctx context.Context, actorID uuid.UUID) ([]*models.ActiveSession, error) {
	if m.ListActiveForActorFunc != nil {
		return m.ListActiveForActorFunc(ctx, actorID)
	}
	return []*models.ActiveSession{}, nil
}

func (m *MockSessionRepository) DeactivateOldestForActor(ctx context.Context, actorID uuid.UUID, n int) (int64, error) {
	if m.DeactivateOldestForActorFunc != nil {
		return m.DeactivateOldestForActorFunc(ctx, actorID, n)
	}
	return 0, nil
}

func (m *MockSessionRepository) DeactivateExpired(ctx context.Context) (int64, error) {
	if m.DeactivateExpiredFunc != nil {
		return m.DeactivateExpiredFunc(ctx)
	}
	return 0, nil
}

// MockAlertRepository implements AlertRepository for testing
type MockAlertRepository struct {
	InsertFunc                func(ctx context.Context, alert *models.SecurityAlert) (*models.SecurityAlert, error)
	GetByIDFunc               func(ctx context.Context, id uuid.UUID) (*models.SecurityAlert, error)
	ListByStatusFunc          func(ctx context.Context, statuses []string, limit, offset int) ([]*models.SecurityAlert, error)
	HasOpenAlertFunc          func(ctx context.Context, alertType, ipAddress string) (bool, error)
	UpdateStatusFunc          func(ctx context.Context, id uuid.UUID, status string, resolution *string, resolvedBy *uuid.UUID, resolvedAt *time.Time) (*models.SecurityAlert, error)
	AssignFunc                func(ctx context.Context, id, assigneeID uuid.UUID) (*models.SecurityAlert, error)
	CountActiveBySeverityFunc func(ctx context.Context) (map[string]int, error)
}

func (m *MockAlertRepository) Insert(ctx context.Context, alert *models.SecurityAlert) (*models.SecurityAlert, error) {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, alert)
	}
	out := *alert
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	out.Status = models.AlertStatusActive
	out.CreatedAt = time.Now()
	return &out, nil
}

func (m *MockAlertRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SecurityAlert, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockAlertRepository) ListByStatus(ctx context.Context, statuses []string, limit, offset int) ([]*models.SecurityAlert, error) {
	if m.ListByStatusFunc != nil {
		return m.ListByStatusFunc(ctx, statuses, limit, offset)
	}
	return []*models.SecurityAlert{}, nil
}

func (m *MockAlertRepository) HasOpenAlert(ctx context.Context, alertType, ipAddress string) (bool, error) {
	if m.HasOpenAlertFunc != nil {
		return m.HasOpenAlertFunc(ctx, alertType, ipAddress)
	}
	return false, nil
}

func (m *MockAlertRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, resolution *string, resolvedBy *uuid.UUID, resolvedAt *time.Time) (*models.SecurityAlert, error) {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, status, resolution, resolvedBy, resolvedAt)
	}
	return nil, models.ErrNotFound
}

func (m *MockAlertRepository) Assign(ctx context.Context, id, assigneeID uuid.UUID) (*models.SecurityAlert, error) {
	if m.AssignFunc != nil {
		return m.AssignFunc(ctx, id, assigneeID)
	}
	return nil, models.ErrNotFound
}

func (m *MockAlertRepository) CountActiveBySeverity(ctx context.Context) (map[string]int, error) {
	if m.CountActiveBySeverityFunc != nil {
		return m.CountActiveBySeverityFunc(ctx)
	}
	return map[string]int{}, nil
}

// MockAccountRepository implements AccountRepository for testing
type MockAccountRepository struct {
	GetByEmailFunc func(ctx context.Context, email string) (*models.Account, error)
	GetByIDFunc    func(ctx context.Context, id uuid.UUID) (*models.Account, error)
	CreateFunc     func(ctx context.Context, account *models.Account) (*models.Account, error)
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	return account, nil
}

// MockBlocklistGate implements BlocklistGate for testing
type MockBlocklistGate struct {
	IsBlockedFunc func(ctx context.Context, ipAddress string) bool
	AutoBlockFunc func(ctx context.Context, ipAddress, reason string) (*models.BlockedIP, error)

	AutoBlockCalls int
}

func (m *MockBlocklistGate) IsBlocked(ctx context.Context, ipAddress string) bool {
	if m.IsBlockedFunc != nil {
		return m.IsBlockedFunc(ctx, ipAddress)
	}
	return false
}

func (m *MockBlocklistGate) AutoBlock(ctx context.Context, ipAddress, reason string) (*models.BlockedIP, error) {
	m.AutoBlockCalls++
	if m.AutoBlockFunc != nil {
		return m.AutoBlockFunc(ctx, ipAddress, reason)
	}
	return &models.BlockedIP{ID: uuid.New(), IPAddress: ipAddress, Reason: reason, Active: true}, nil
}

// MockAlertCorrelator implements AlertCorrelator for testing
type MockAlertCorrelator struct {
	CheckAndCreateAlertsFunc func(ctx context.Context, ipAddress, email string) error

	Calls int
}

func (m *MockAlertCorrelator) CheckAndCreateAlerts(ctx context.Context, ipAddress, email string) error {
	m.Calls++
	if m.CheckAndCreateAlertsFunc != nil {
		return m.CheckAndCreateAlertsFunc(ctx, ipAddress, email)
	}
	return nil
}

// MockNotifier implements Notifier for testing
type MockNotifier struct {
	NotifyCriticalEventFunc func(ctx context.Context, event *models.SecurityEvent) error
	NotifyAlertFunc         func(ctx context.Context, alert *models.SecurityAlert) error

	CriticalEventCalls int
	AlertCalls         int
}

func (m *MockNotifier) NotifyCriticalEvent(ctx context.Context, event *models.SecurityEvent) error {
	m.CriticalEventCalls++
	if m.NotifyCriticalEventFunc != nil {
		return m.NotifyCriticalEventFunc(ctx, event)
	}
	return nil
}

func (m *MockNotifier) NotifyAlert(ctx context.Context, alert *models.SecurityAlert) error {
	m.AlertCalls++
	if m.NotifyAlertFunc != nil {
		return m.NotifyAlertFunc(ctx, alert)
	}
	return nil
}
