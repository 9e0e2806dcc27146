package services_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/aegisauth/aegis/internal/models"
	"github.com/aegisauth/aegis/internal/services"
	"github.com/aegisauth/aegis/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestConfig builds a ConfigService whose repository serves the
// given key/value pairs. Keys not in the map behave as missing.
func newTestConfig(values map[string]string) *services.ConfigService {
	repo := &services.MockConfigRepository{
		GetByKeyFunc: func(ctx context.Context, key string) (*models.SecurityConfig, error) {
			if v, ok := values[key]; ok {
				return &models.SecurityConfig{ID: uuid.New(), Key: key, Value: v}, nil
			}
			return nil, models.ErrNotFound
		},
	}
	return services.NewConfigService(repo, testLogger())
}

// newTestEventService builds an EventService over a mock repository and
// notifier for wiring into other services under test.
func newTestEventService(repo *services.MockEventRepository, notifier services.Notifier) *services.EventService {
	if notifier == nil {
		notifier = services.NoopNotifier{}
	}
	return services.NewEventService(repo, notifier, logger.NewSecurityLogger(testLogger()), testLogger())
}

func TestConfigServiceBootstrap_SeedsAndLoads(t *testing.T) {
	seeded := false
	repo := &services.MockConfigRepository{
		SeedDefaultsFunc: func(ctx context.Context, defaults []models.ConfigDefault) error {
			seeded = true
			assert.NotEmpty(t, defaults)
			return nil
		},
		GetAllFunc: func(ctx context.Context) ([]*models.SecurityConfig, error) {
			return []*models.SecurityConfig{
				{Key: models.ConfigKeyAutoBlockThreshold, Value: "10"},
			}, nil
		},
	}

	service := services.NewConfigService(repo, testLogger())
	err := service.Bootstrap(context.Background())

	assert.NoError(t, err)
	assert.True(t, seeded)
	assert.Equal(t, 10, service.GetInt(context.Background(), models.ConfigKeyAutoBlockThreshold, 99))
}

func TestConfigServiceGetInt_FallsBackToDefault(t *testing.T) {
	service := newTestConfig(map[string]string{})

	got := service.GetInt(context.Background(), models.ConfigKeyMaxActiveSessions, 5)

	assert.Equal(t, 5, got)
}

func TestConfigServiceGetInt_MalformedValueUsesDefault(t *testing.T) {
	service := newTestConfig(map[string]string{
		models.ConfigKeyMaxActiveSessions: "not-a-number",
	})

	got := service.GetInt(context.Background(), models.ConfigKeyMaxActiveSessions, 5)

	assert.Equal(t, 5, got)
}

func TestConfigServiceGetBool_ParsesStoredValue(t *testing.T) {
	service := newTestConfig(map[string]string{
		models.ConfigKeyRequireVerifiedEmail: "false",
	})

	got := service.GetBool(context.Background(), models.ConfigKeyRequireVerifiedEmail, true)

	assert.False(t, got)
}

func TestConfigServiceLookup_FillsSnapshotLazily(t *testing.T) {
	calls := 0
	repo := &services.MockConfigRepository{
		GetByKeyFunc: func(ctx context.Context, key string) (*models.SecurityConfig, error) {
			calls++
			return &models.SecurityConfig{Key: key, Value: "7"}, nil
		},
	}
	service := services.NewConfigService(repo, testLogger())

	first := service.GetInt(context.Background(), models.ConfigKeyAutoBlockThreshold, 0)
	second := service.GetInt(context.Background(), models.ConfigKeyAutoBlockThreshold, 0)

	assert.Equal(t, 7, first)
	assert.Equal(t, 7, second)
	assert.Equal(t, 1, calls)
}

func TestConfigServiceUpdate_RefreshesSnapshot(t *testing.T) {
	repo := &services.MockConfigRepository{
		UpdateFunc: func(ctx context.Context, key, value string, modifiedBy uuid.UUID) (*models.SecurityConfig, error) {
			return &models.SecurityConfig{Key: key, Value: value}, nil
		},
	}
	service := services.NewConfigService(repo, testLogger())

	_, err := service.Update(context.Background(), models.ConfigKeyAutoBlockThreshold, "20", uuid.New())

	assert.NoError(t, err)
	assert.Equal(t, 20, service.GetInt(context.Background(), models.ConfigKeyAutoBlockThreshold, 0))
}

func TestConfigServiceUpdate_StorageFailureLeavesSnapshot(t *testing.T) {
	repo := &services.MockConfigRepository{
		UpdateFunc: func(ctx context.Context, key, value string, modifiedBy uuid.UUID) (*models.SecurityConfig, error) {
			return nil, models.ErrNotFound
		},
	}
	service := services.NewConfigService(repo, testLogger())

	_, err := service.Update(context.Background(), "missing_key", "1", uuid.New())

	assert.ErrorIs(t, err, models.ErrNotFound)
}
