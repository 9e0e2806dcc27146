package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"

	"github.com/aegisauth/aegis/internal/models"
	"github.com/google/uuid"
)

// ConfigRepository defines the interface for config storage operations
type ConfigRepository interface {
	GetByKey(ctx context.Context, key string) (*models.SecurityConfig, error)
	GetAll(ctx context.Context) ([]*models.SecurityConfig, error)
	Create(ctx context.Context, cfg *models.SecurityConfig) (*models.SecurityConfig, error)
	Update(ctx context.Context, key, value string, modifiedBy uuid.UUID) (*models.SecurityConfig, error)
	SeedDefaults(ctx context.Context, defaults []models.ConfigDefault) error
}

// ConfigService is the process-wide store for runtime-tunable security
// policy. Reads come from an in-memory snapshot populated at boot and
// after every write; a key missing from the snapshot falls back to a
// direct lookup and fills the map lazily. Typed getters never fail:
// missing or malformed values yield the caller-supplied default.
type ConfigService struct {
	repo   ConfigRepository
	logger *slog.Logger

	mu     sync.RWMutex
	values map[string]string
}

// NewConfigService creates a new ConfigService
func NewConfigService(repo ConfigRepository, logger *slog.Logger) *ConfigService {
	return &ConfigService{
		repo:   repo,
		logger: logger,
		values: make(map[string]string),
	}
}

// Bootstrap seeds missing defaults and loads the initial snapshot.
// Seeding is idempotent; repeated boots change nothing.
func (s *ConfigService) Bootstrap(ctx context.Context) error {
	if err := s.repo.SeedDefaults(ctx, models.ConfigDefaults); err != nil {
		return err
	}
	return s.Refresh(ctx)
}

// Refresh replaces the snapshot wholesale from durable storage
func (s *ConfigService) Refresh(ctx context.Context) error {
	configs, err := s.repo.GetAll(ctx)
	if err != nil {
		return err
	}

	values := make(map[string]string, len(configs))
	for _, cfg := range configs {
		values[cfg.Key] = cfg.Value
	}

	s.mu.Lock()
	s.values = values
	s.mu.Unlock()

	return nil
}

// lookup reads a raw value from the snapshot, falling back to durable
// storage on a miss and filling the map lazily. The boolean reports
// whether any value was found.
func (s *ConfigService) lookup(ctx context.Context, key string) (string, bool) {
	s.mu.RLock()
	value, ok := s.values[key]
	s.mu.RUnlock()
	if ok {
		return value, true
	}

	cfg, err := s.repo.GetByKey(ctx, key)
	if err != nil {
		return "", false
	}

	s.mu.Lock()
	s.values[key] = cfg.Value
	s.mu.Unlock()

	return cfg.Value, true
}

// GetString returns the string value for a key, or the default
func (s *ConfigService) GetString(ctx context.Context, key, defaultVal string) string {
	if value, ok := s.lookup(ctx, key); ok {
		return value
	}
	return defaultVal
}

// GetInt returns the numeric value for a key, or the default
func (s *ConfigService) GetInt(ctx context.Context, key string, defaultVal int) int {
	value, ok := s.lookup(ctx, key)
	if !ok {
		return defaultVal
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		s.logger.Warn("malformed numeric config value, using default",
			slog.String("key", key), slog.String("value", value))
		return defaultVal
	}
	return n
}

// GetBool returns the boolean value for a key, or the default
func (s *ConfigService) GetBool(ctx context.Context, key string, defaultVal bool) bool {
	value, ok := s.lookup(ctx, key)
	if !ok {
		return defaultVal
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		s.logger.Warn("malformed boolean config value, using default",
			slog.String("key", key), slog.String("value", value))
		return defaultVal
	}
	return b
}

// GetJSON unmarshals the value for a key into dest. Returns false and
// leaves dest untouched when the key is missing or malformed.
func (s *ConfigService) GetJSON(ctx context.Context, key string, dest interface{}) bool {
	value, ok := s.lookup(ctx, key)
	if !ok {
		return false
	}

	if err := json.Unmarshal([]byte(value), dest); err != nil {
		s.logger.Warn("malformed json config value, using default",
			slog.String("key", key))
		return false
	}
	return true
}

// List returns every stored config entry for the admin surface
func (s *ConfigService) List(ctx context.Context) ([]*models.SecurityConfig, error) {
	return s.repo.GetAll(ctx)
}

// Update changes a stored value through the admin path and refreshes
// the snapshot entry. Cache and storage are eventually consistent; the
// write itself is the ordering point.
func (s *ConfigService) Update(ctx context.Context, key, value string, modifiedBy uuid.UUID) (*models.SecurityConfig, error) {
	cfg, err := s.repo.Update(ctx, key, value, modifiedBy)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.values[cfg.Key] = cfg.Value
	s.mu.Unlock()

	s.logger.Info("security config updated",
		slog.String("key", key),
		slog.String("modified_by", modifiedBy.String()))

	return cfg, nil
}

// Create inserts a new config entry and adds it to the snapshot
func (s *ConfigService) Create(ctx context.Context, cfg *models.SecurityConfig) (*models.SecurityConfig, error) {
	created, err := s.repo.Create(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.values[created.Key] = created.Value
	s.mu.Unlock()

	return created, nil
}
