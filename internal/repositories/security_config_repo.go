package repositories

import (
	"context"
	"fmt"

	"github.com/aegisauth/aegis/internal/database"
	"github.com/aegisauth/aegis/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SecurityConfigRepository handles database operations for runtime config
type SecurityConfigRepository struct {
	pool *pgxpool.Pool
}

// NewSecurityConfigRepository creates a new SecurityConfigRepository
func NewSecurityConfigRepository(db *database.DB) *SecurityConfigRepository {
	return &SecurityConfigRepository{pool: db.Pool}
}

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

const configColumns = `id, key, value, value_type, category, description, last_modified_by, created_at, updated_at`

func scanConfigRow(scanner rowScanner) (*models.SecurityConfig, error) {
	var cfg models.SecurityConfig

	err := scanner.Scan(
		&cfg.ID, &cfg.Key, &cfg.Value, &cfg.ValueType, &cfg.Category,
		&cfg.Description, &cfg.LastModifiedBy, &cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &cfg, nil
}

// GetByKey returns the config entry for a key
func (r *SecurityConfigRepository) GetByKey(ctx context.Context, key string) (*models.SecurityConfig, error) {
	query := `SELECT ` + configColumns + ` FROM security_configs WHERE key = $1`
	return scanConfigRow(r.pool.QueryRow(ctx, query, key))
}

// GetAll returns every config entry, used to populate the in-memory snapshot
func (r *SecurityConfigRepository) GetAll(ctx context.Context) ([]*models.SecurityConfig, error) {
	query := `SELECT ` + configColumns + ` FROM security_configs ORDER BY category, key`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	configs := make([]*models.SecurityConfig, 0)
	for rows.Next() {
		cfg, err := scanConfigRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan config: %w", err)
		}
		configs = append(configs, cfg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating config rows: %w", err)
	}

	return configs, nil
}

// Create inserts a new config entry
func (r *SecurityConfigRepository) Create(ctx context.Context, cfg *models.SecurityConfig) (*models.SecurityConfig, error) {
	query := `
		INSERT INTO security_configs (id, key, value, value_type, category, description, last_modified_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + configColumns

	return scanConfigRow(r.pool.QueryRow(ctx, query,
		uuid.New(), cfg.Key, cfg.Value, cfg.ValueType, cfg.Category,
		cfg.Description, cfg.LastModifiedBy,
	))
}

// Update changes the stored value for a key and records who changed it
func (r *SecurityConfigRepository) Update(ctx context.Context, key, value string, modifiedBy uuid.UUID) (*models.SecurityConfig, error) {
	query := `
		UPDATE security_configs
		SET value = $2, last_modified_by = $3, updated_at = NOW()
		WHERE key = $1
		RETURNING ` + configColumns

	return scanConfigRow(r.pool.QueryRow(ctx, query, key, value, modifiedBy))
}

// SeedDefaults inserts missing default keys. Existing rows are left
// untouched, so repeated boots are idempotent.
func (r *SecurityConfigRepository) SeedDefaults(ctx context.Context, defaults []models.ConfigDefault) error {
	batch := &pgx.Batch{}
	for _, d := range defaults {
		batch.Queue(`
			INSERT INTO security_configs (id, key, value, value_type, category, description)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (key) DO NOTHING
		`, uuid.New(), d.Key, d.Value, d.ValueType, d.Category, d.Description)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range defaults {
		if _, err := results.Exec(); err != nil {
			return database.MapPostgresError(err)
		}
	}

	return nil
}
