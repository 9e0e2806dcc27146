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

// SessionRepository handles database operations for active sessions
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{pool: db.Pool}
}

const sessionColumns = `id, actor_id, credential_hash, ip_address, user_agent, device_type, browser, os, active, last_activity_at, expires_at, created_at`

func scanSessionRow(scanner rowScanner) (*models.ActiveSession, error) {
	var s models.ActiveSession

	err := scanner.Scan(
		&s.ID, &s.ActorID, &s.CredentialHash, &s.IPAddress, &s.UserAgent,
		&s.DeviceType, &s.Browser, &s.OS, &s.Active,
		&s.LastActivityAt, &s.ExpiresAt, &s.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &s, nil
}

// Insert creates a new session row
func (r *SessionRepository) Insert(ctx context.Context, session *models.ActiveSession) (*models.ActiveSession, error) {
	query := `
		INSERT INTO active_sessions (id, actor_id, credential_hash, ip_address, user_agent, device_type, browser, os, active, last_activity_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true, NOW(), $9)
		RETURNING ` + sessionColumns

	return scanSessionRow(r.pool.QueryRow(ctx, query,
		uuid.New(), session.ActorID, session.CredentialHash, session.IPAddress,
		session.UserAgent, session.DeviceType, session.Browser, session.OS,
		session.ExpiresAt,
	))
}

// GetActiveByCredentialHash returns the active session holding a
// credential hash, or ErrNotFound
func (r *SessionRepository) GetActiveByCredentialHash(ctx context.Context, hash string) (*models.ActiveSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM active_sessions WHERE credential_hash = $1 AND active = true`
	return scanSessionRow(r.pool.QueryRow(ctx, query, hash))
}

// UpdateActivity stamps last activity on an active session
func (r *SessionRepository) UpdateActivity(ctx context.Context, hash string, at time.Time) error {
	query := `UPDATE active_sessions SET last_activity_at = $2 WHERE credential_hash = $1 AND active = true`

	_, err := r.pool.Exec(ctx, query, hash, at)
	return database.MapPostgresError(err)
}

// DeactivateByCredentialHash revokes the session holding a credential
// hash. Returns false when no active session matched.
func (r *SessionRepository) DeactivateByCredentialHash(ctx context.Context, hash string) (bool, error) {
	query := `UPDATE active_sessions SET active = false WHERE credential_hash = $1 AND active = true`

	result, err := r.pool.Exec(ctx, query, hash)
	if err != nil {
		return false, database.MapPostgresError(err)
	}

	return result.RowsAffected() > 0, nil
}

// DeactivateByID revokes one session by ID, scoped to its owner
func (r *SessionRepository) DeactivateByID(ctx context.Context, id, actorID uuid.UUID) (bool, error) {
	query := `UPDATE active_sessions SET active = false WHERE id = $1 AND actor_id = $2 AND active = true`

	result, err := r.pool.Exec(ctx, query, id, actorID)
	if err != nil {
		return false, database.MapPostgresError(err)
	}

	return result.RowsAffected() > 0, nil
}

// DeactivateAllForActor revokes every active session an actor holds
func (r *SessionRepository) DeactivateAllForActor(ctx context.Context, actorID uuid.UUID) (int64, error) {
	query := `UPDATE active_sessions SET active = false WHERE actor_id = $1 AND active = true`

	result, err := r.pool.Exec(ctx, query, actorID)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}

// CountActiveForActor counts an actor's active sessions
func (r *SessionRepository) CountActiveForActor(ctx context.Context, actorID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM active_sessions WHERE actor_id = $1 AND active = true`

	var count int
	err := r.pool.QueryRow(ctx, query, actorID).Scan(&count)
	return count, database.MapPostgresError(err)
}

// ListActiveForActor returns an actor's active sessions, most recently
// active first
func (r *SessionRepository) ListActiveForActor(ctx context.Context, actorID uuid.UUID) ([]*models.ActiveSession, error) {
	query := `
		SELECT ` + sessionColumns + ` FROM active_sessions
		WHERE actor_id = $1 AND active = true
		ORDER BY last_activity_at DESC
	`

	rows, err := r.pool.Query(ctx, query, actorID)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	sessions := make([]*models.ActiveSession, 0)
	for rows.Next() {
		s, err := scanSessionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session rows: %w", err)
	}

	return sessions, nil
}

// DeactivateOldestForActor revokes the n least-recently-active sessions
// an actor holds. Used for cap eviction before inserting a new session.
func (r *SessionRepository) DeactivateOldestForActor(ctx context.Context, actorID uuid.UUID, n int) (int64, error) {
	query := `
		UPDATE active_sessions SET active = false
		WHERE id IN (
			SELECT id FROM active_sessions
			WHERE actor_id = $1 AND active = true
			ORDER BY last_activity_at ASC
			LIMIT $2
		)
	`

	result, err := r.pool.Exec(ctx, query, actorID, n)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}

// DeactivateExpired revokes sessions past their absolute expiry
func (r *SessionRepository) DeactivateExpired(ctx context.Context) (int64, error) {
	query := `UPDATE active_sessions SET active = false WHERE active = true AND expires_at < NOW()`

	result, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}
