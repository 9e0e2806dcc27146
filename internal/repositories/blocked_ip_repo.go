package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/aegisauth/aegis/internal/database"
	"github.com/aegisauth/aegis/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BlockedIPRepository handles database operations for the IP blocklist
type BlockedIPRepository struct {
	pool *pgxpool.Pool
}

// NewBlockedIPRepository creates a new BlockedIPRepository
func NewBlockedIPRepository(db *database.DB) *BlockedIPRepository {
	return &BlockedIPRepository{pool: db.Pool}
}

const blockedIPColumns = `id, ip_address, reason, blocked_by, admin_id, permanent, expires_at, attempts_since_block, active, created_at, updated_at`

func scanBlockedIPRow(scanner rowScanner) (*models.BlockedIP, error) {
	var b models.BlockedIP

	err := scanner.Scan(
		&b.ID, &b.IPAddress, &b.Reason, &b.BlockedBy, &b.AdminID,
		&b.Permanent, &b.ExpiresAt, &b.AttemptsSinceBlock, &b.Active,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &b, nil
}

// GetActiveByIP returns the active block row for an IP, or ErrNotFound
func (r *BlockedIPRepository) GetActiveByIP(ctx context.Context, ipAddress string) (*models.BlockedIP, error) {
	query := `SELECT ` + blockedIPColumns + ` FROM blocked_ips WHERE ip_address = $1 AND active = true`
	return scanBlockedIPRow(r.pool.QueryRow(ctx, query, ipAddress))
}

// ListActiveIPs returns the IP values of every active block. Used to
// refresh the in-process cache wholesale.
func (r *BlockedIPRepository) ListActiveIPs(ctx context.Context) ([]string, error) {
	query := `SELECT ip_address FROM blocked_ips WHERE active = true`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	ips := make([]string, 0)
	for rows.Next() {
		var ip string
		if err := rows.Scan(&ip); err != nil {
			return nil, fmt.Errorf("failed to scan blocked ip: %w", err)
		}
		ips = append(ips, ip)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating blocked ip rows: %w", err)
	}

	return ips, nil
}

// ListActive returns active block rows for the admin surface
func (r *BlockedIPRepository) ListActive(ctx context.Context, limit, offset int) ([]*models.BlockedIP, error) {
	query := `
		SELECT ` + blockedIPColumns + ` FROM blocked_ips
		WHERE active = true
		ORDER BY updated_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	blocks := make([]*models.BlockedIP, 0)
	for rows.Next() {
		b, err := scanBlockedIPRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan blocked ip: %w", err)
		}
		blocks = append(blocks, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating blocked ip rows: %w", err)
	}

	return blocks, nil
}

// Insert creates a new block row
func (r *BlockedIPRepository) Insert(ctx context.Context, block *models.BlockedIP) (*models.BlockedIP, error) {
	query := `
		INSERT INTO blocked_ips (id, ip_address, reason, blocked_by, admin_id, permanent, expires_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true)
		RETURNING ` + blockedIPColumns

	return scanBlockedIPRow(r.pool.QueryRow(ctx, query,
		uuid.New(), block.IPAddress, block.Reason, block.BlockedBy,
		block.AdminID, block.Permanent, block.ExpiresAt,
	))
}

// UpdateBlock overwrites reason, expiry and permanence on an existing
// row. Re-triggered blocks reuse their row so at most one active row
// exists per IP.
func (r *BlockedIPRepository) UpdateBlock(ctx context.Context, id uuid.UUID, reason, blockedBy string, adminID *uuid.UUID, permanent bool, expiresAt *time.Time) (*models.BlockedIP, error) {
	query := `
		UPDATE blocked_ips
		SET reason = $2, blocked_by = $3, admin_id = $4, permanent = $5,
		    expires_at = $6, active = true, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + blockedIPColumns

	return scanBlockedIPRow(r.pool.QueryRow(ctx, query, id, reason, blockedBy, adminID, permanent, expiresAt))
}

// Deactivate clears the active flag on the block for an IP. Returns
// false when no active block existed.
func (r *BlockedIPRepository) Deactivate(ctx context.Context, ipAddress string) (bool, error) {
	query := `UPDATE blocked_ips SET active = false, updated_at = NOW() WHERE ip_address = $1 AND active = true`

	result, err := r.pool.Exec(ctx, query, ipAddress)
	if err != nil {
		return false, database.MapPostgresError(err)
	}

	return result.RowsAffected() > 0, nil
}

// IncrementAttempts bumps the attempts-since-block counter for an IP
func (r *BlockedIPRepository) IncrementAttempts(ctx context.Context, ipAddress string) error {
	query := `
		UPDATE blocked_ips
		SET attempts_since_block = attempts_since_block + 1, updated_at = NOW()
		WHERE ip_address = $1 AND active = true
	`

	_, err := r.pool.Exec(ctx, query, ipAddress)
	return database.MapPostgresError(err)
}

// DeactivateExpired clears every active, non-permanent block past its
// expiry and returns how many rows changed. Re-running is a no-op.
func (r *BlockedIPRepository) DeactivateExpired(ctx context.Context) (int64, error) {
	query := `
		UPDATE blocked_ips
		SET active = false, updated_at = NOW()
		WHERE active = true AND permanent = false AND expires_at IS NOT NULL AND expires_at < NOW()
	`

	result, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}

// Stats aggregates the current state of the blocklist
func (r *BlockedIPRepository) Stats(ctx context.Context) (*models.BlocklistStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE permanent),
			COUNT(*) FILTER (WHERE blocked_by = $1),
			COUNT(*) FILTER (WHERE blocked_by = $2),
			COALESCE(SUM(attempts_since_block), 0)
		FROM blocked_ips
		WHERE active = true
	`

	var stats models.BlocklistStats
	err := r.pool.QueryRow(ctx, query, models.BlockedBySystem, models.BlockedByAdmin).Scan(
		&stats.TotalActive, &stats.Permanent, &stats.AutoBlocked,
		&stats.ManuallyBlocked, &stats.AttemptsSinceBlock,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &stats, nil
}
