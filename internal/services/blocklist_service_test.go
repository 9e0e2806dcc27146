package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/aegisauth/aegis/internal/models"
	"github.com/aegisauth/aegis/internal/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestBlocklistServiceIsBlocked_UnknownIPAllowed(t *testing.T) {
	repo := &services.MockBlocklistRepository{
		ListActiveIPsFunc: func(ctx context.Context) ([]string, error) {
			return []string{"10.0.0.1"}, nil
		},
	}
	service := services.NewBlocklistService(repo, newTestConfig(nil), newTestEventService(&services.MockEventRepository{}, nil), testLogger())

	assert.False(t, service.IsBlocked(context.Background(), "192.168.1.1"))
}

func TestBlocklistServiceIsBlocked_ActiveBlockDenied(t *testing.T) {
	expires := time.Now().Add(30 * time.Minute)
	incremented := 0
	repo := &services.MockBlocklistRepository{
		ListActiveIPsFunc: func(ctx context.Context) ([]string, error) {
			return []string{"10.0.0.1"}, nil
		},
		GetActiveByIPFunc: func(ctx context.Context, ip string) (*models.BlockedIP, error) {
			return &models.BlockedIP{ID: uuid.New(), IPAddress: ip, Active: true, ExpiresAt: &expires}, nil
		},
		IncrementAttemptsFunc: func(ctx context.Context, ip string) error {
			incremented++
			return nil
		},
	}
	service := services.NewBlocklistService(repo, newTestConfig(nil), newTestEventService(&services.MockEventRepository{}, nil), testLogger())

	assert.True(t, service.IsBlocked(context.Background(), "10.0.0.1"))
	assert.Equal(t, 1, incremented)
}

func TestBlocklistServiceIsBlocked_ExpiredBlockLiftedLazily(t *testing.T) {
	expires := time.Now().Add(-time.Minute)
	deactivated := false
	repo := &services.MockBlocklistRepository{
		ListActiveIPsFunc: func(ctx context.Context) ([]string, error) {
			return []string{"10.0.0.1"}, nil
		},
		GetActiveByIPFunc: func(ctx context.Context, ip string) (*models.BlockedIP, error) {
			return &models.BlockedIP{ID: uuid.New(), IPAddress: ip, Active: true, ExpiresAt: &expires}, nil
		},
		DeactivateFunc: func(ctx context.Context, ip string) (bool, error) {
			deactivated = true
			return true, nil
		},
	}
	service := services.NewBlocklistService(repo, newTestConfig(nil), newTestEventService(&services.MockEventRepository{}, nil), testLogger())

	assert.False(t, service.IsBlocked(context.Background(), "10.0.0.1"))
	assert.True(t, deactivated)
}

func TestBlocklistServiceIsBlocked_PermanentBlockNeverExpires(t *testing.T) {
	repo := &services.MockBlocklistRepository{
		ListActiveIPsFunc: func(ctx context.Context) ([]string, error) {
			return []string{"10.0.0.1"}, nil
		},
		GetActiveByIPFunc: func(ctx context.Context, ip string) (*models.BlockedIP, error) {
			return &models.BlockedIP{ID: uuid.New(), IPAddress: ip, Active: true, Permanent: true}, nil
		},
	}
	service := services.NewBlocklistService(repo, newTestConfig(nil), newTestEventService(&services.MockEventRepository{}, nil), testLogger())

	assert.True(t, service.IsBlocked(context.Background(), "10.0.0.1"))
}

func TestBlocklistServiceIsBlocked_RefreshFailureFailsOpen(t *testing.T) {
	repo := &services.MockBlocklistRepository{
		ListActiveIPsFunc: func(ctx context.Context) ([]string, error) {
			return nil, assert.AnError
		},
	}
	service := services.NewBlocklistService(repo, newTestConfig(nil), newTestEventService(&services.MockEventRepository{}, nil), testLogger())

	assert.False(t, service.IsBlocked(context.Background(), "10.0.0.1"))
}

func TestBlocklistServiceAutoBlock_InsertsAndRecordsEvent(t *testing.T) {
	var inserted *models.BlockedIP
	var event *models.SecurityEvent
	repo := &services.MockBlocklistRepository{
		InsertFunc: func(ctx context.Context, block *models.BlockedIP) (*models.BlockedIP, error) {
			inserted = block
			out := *block
			out.ID = uuid.New()
			return &out, nil
		},
	}
	eventRepo := &services.MockEventRepository{
		InsertFunc: func(ctx context.Context, e *models.SecurityEvent) (*models.SecurityEvent, error) {
			event = e
			out := *e
			out.ID = uuid.New()
			return &out, nil
		},
	}
	service := services.NewBlocklistService(repo, newTestConfig(nil), newTestEventService(eventRepo, nil), testLogger())

	block, err := service.AutoBlock(context.Background(), "10.0.0.1", "too many failures")

	assert.NoError(t, err)
	assert.Equal(t, models.BlockedBySystem, block.BlockedBy)
	assert.False(t, inserted.Permanent)
	assert.NotNil(t, inserted.ExpiresAt)
	assert.Equal(t, models.EventTypeIPBlocked, event.EventType)
	assert.Equal(t, models.SeverityHigh, event.Severity)

	// The block takes effect immediately.
	repo.ListActiveIPsFunc = func(ctx context.Context) ([]string, error) {
		return []string{"10.0.0.1"}, nil
	}
	repo.GetActiveByIPFunc = func(ctx context.Context, ip string) (*models.BlockedIP, error) {
		return block, nil
	}
	assert.True(t, service.IsBlocked(context.Background(), "10.0.0.1"))
}

func TestBlocklistServiceAutoBlock_ExistingBlockUpdatedInPlace(t *testing.T) {
	existingID := uuid.New()
	updated := false
	repo := &services.MockBlocklistRepository{
		GetActiveByIPFunc: func(ctx context.Context, ip string) (*models.BlockedIP, error) {
			return &models.BlockedIP{ID: existingID, IPAddress: ip, Active: true}, nil
		},
		UpdateBlockFunc: func(ctx context.Context, id uuid.UUID, reason, blockedBy string, adminID *uuid.UUID, permanent bool, expiresAt *time.Time) (*models.BlockedIP, error) {
			updated = true
			assert.Equal(t, existingID, id)
			return &models.BlockedIP{ID: id, IPAddress: "10.0.0.1", Reason: reason, BlockedBy: blockedBy, Active: true}, nil
		},
		InsertFunc: func(ctx context.Context, block *models.BlockedIP) (*models.BlockedIP, error) {
			t.Fatal("insert must not run when an active block exists")
			return nil, nil
		},
	}
	service := services.NewBlocklistService(repo, newTestConfig(nil), newTestEventService(&services.MockEventRepository{}, nil), testLogger())

	_, err := service.AutoBlock(context.Background(), "10.0.0.1", "again")

	assert.NoError(t, err)
	assert.True(t, updated)
}

func TestBlocklistServiceAutoBlock_PermanentAdminBlockNotDemoted(t *testing.T) {
	existingID := uuid.New()
	adminID := uuid.New()
	var gotBlockedBy string
	var gotAdminID *uuid.UUID
	var gotPermanent bool
	var gotExpiry *time.Time
	repo := &services.MockBlocklistRepository{
		GetActiveByIPFunc: func(ctx context.Context, ip string) (*models.BlockedIP, error) {
			return &models.BlockedIP{
				ID:        existingID,
				IPAddress: ip,
				Reason:    "repeat offender",
				BlockedBy: models.BlockedByAdmin,
				AdminID:   &adminID,
				Permanent: true,
				Active:    true,
			}, nil
		},
		UpdateBlockFunc: func(ctx context.Context, id uuid.UUID, reason, blockedBy string, aID *uuid.UUID, permanent bool, expiresAt *time.Time) (*models.BlockedIP, error) {
			gotBlockedBy = blockedBy
			gotAdminID = aID
			gotPermanent = permanent
			gotExpiry = expiresAt
			return &models.BlockedIP{ID: id, IPAddress: "10.0.0.1", Reason: reason, BlockedBy: blockedBy, AdminID: aID, Permanent: permanent, Active: true}, nil
		},
	}
	service := services.NewBlocklistService(repo, newTestConfig(nil), newTestEventService(&services.MockEventRepository{}, nil), testLogger())

	block, err := service.AutoBlock(context.Background(), "10.0.0.1", "failure threshold exceeded")

	assert.NoError(t, err)
	assert.True(t, gotPermanent)
	assert.Nil(t, gotExpiry)
	assert.Equal(t, models.BlockedByAdmin, gotBlockedBy)
	assert.Equal(t, adminID, *gotAdminID)
	assert.True(t, block.Permanent)
}

func TestBlocklistServiceAutoBlock_LaterExpiryNotShortened(t *testing.T) {
	existingExpiry := time.Now().Add(24 * time.Hour)
	var gotExpiry *time.Time
	repo := &services.MockBlocklistRepository{
		GetActiveByIPFunc: func(ctx context.Context, ip string) (*models.BlockedIP, error) {
			return &models.BlockedIP{
				ID:        uuid.New(),
				IPAddress: ip,
				BlockedBy: models.BlockedBySystem,
				ExpiresAt: &existingExpiry,
				Active:    true,
			}, nil
		},
		UpdateBlockFunc: func(ctx context.Context, id uuid.UUID, reason, blockedBy string, adminID *uuid.UUID, permanent bool, expiresAt *time.Time) (*models.BlockedIP, error) {
			gotExpiry = expiresAt
			return &models.BlockedIP{ID: id, IPAddress: "10.0.0.1", BlockedBy: blockedBy, ExpiresAt: expiresAt, Active: true}, nil
		},
	}
	service := services.NewBlocklistService(repo, newTestConfig(nil), newTestEventService(&services.MockEventRepository{}, nil), testLogger())

	_, err := service.AutoBlock(context.Background(), "10.0.0.1", "again")

	assert.NoError(t, err)
	assert.NotNil(t, gotExpiry)
	assert.True(t, gotExpiry.Equal(existingExpiry))
}

func TestBlocklistServiceBlockManually_PermanentHasNoExpiry(t *testing.T) {
	var inserted *models.BlockedIP
	repo := &services.MockBlocklistRepository{
		InsertFunc: func(ctx context.Context, block *models.BlockedIP) (*models.BlockedIP, error) {
			inserted = block
			out := *block
			out.ID = uuid.New()
			return &out, nil
		},
	}
	service := services.NewBlocklistService(repo, newTestConfig(nil), newTestEventService(&services.MockEventRepository{}, nil), testLogger())

	adminID := uuid.New()
	_, err := service.BlockManually(context.Background(), "10.0.0.1", "abuse", adminID, true, nil)

	assert.NoError(t, err)
	assert.True(t, inserted.Permanent)
	assert.Nil(t, inserted.ExpiresAt)
	assert.Equal(t, models.BlockedByAdmin, inserted.BlockedBy)
	assert.Equal(t, adminID, *inserted.AdminID)
}

func TestBlocklistServiceUnblock_MissingBlockNotFound(t *testing.T) {
	repo := &services.MockBlocklistRepository{
		DeactivateFunc: func(ctx context.Context, ip string) (bool, error) {
			return false, nil
		},
	}
	service := services.NewBlocklistService(repo, newTestConfig(nil), newTestEventService(&services.MockEventRepository{}, nil), testLogger())

	err := service.Unblock(context.Background(), "10.0.0.1", uuid.New())

	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestBlocklistServiceUnblock_RecordsEvent(t *testing.T) {
	var event *models.SecurityEvent
	repo := &services.MockBlocklistRepository{
		DeactivateFunc: func(ctx context.Context, ip string) (bool, error) {
			return true, nil
		},
	}
	eventRepo := &services.MockEventRepository{
		InsertFunc: func(ctx context.Context, e *models.SecurityEvent) (*models.SecurityEvent, error) {
			event = e
			out := *e
			out.ID = uuid.New()
			return &out, nil
		},
	}
	service := services.NewBlocklistService(repo, newTestConfig(nil), newTestEventService(eventRepo, nil), testLogger())

	err := service.Unblock(context.Background(), "10.0.0.1", uuid.New())

	assert.NoError(t, err)
	assert.Equal(t, models.EventTypeIPUnblocked, event.EventType)
}
