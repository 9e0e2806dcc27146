package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/aegisauth/aegis/internal/database"
	"github.com/aegisauth/aegis/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

// SecurityAlertRepository handles database operations for alerts
type SecurityAlertRepository struct {
	pool *pgxpool.Pool
}

// NewSecurityAlertRepository creates a new SecurityAlertRepository
func NewSecurityAlertRepository(db *database.DB) *SecurityAlertRepository {
	return &SecurityAlertRepository{pool: db.Pool}
}

const alertColumns = `id, alert_type, severity, title, description, actor_id, ip_address, related_event_ids, status, assigned_to, resolution, resolved_by, resolved_at, created_at, updated_at`

func scanAlertRow(scanner rowScanner) (*models.SecurityAlert, error) {
	var a models.SecurityAlert

	err := scanner.Scan(
		&a.ID, &a.AlertType, &a.Severity, &a.Title, &a.Description,
		&a.ActorID, &a.IPAddress, pq.Array(&a.RelatedEventIDs),
		&a.Status, &a.AssignedTo, &a.Resolution, &a.ResolvedBy,
		&a.ResolvedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &a, nil
}

func scanAlertRows(rows pgx.Rows) ([]*models.SecurityAlert, error) {
	defer rows.Close()

	alerts := make([]*models.SecurityAlert, 0)
	for rows.Next() {
		a, err := scanAlertRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alert rows: %w", err)
	}

	return alerts, nil
}

// Insert creates a new alert in the active status
func (r *SecurityAlertRepository) Insert(ctx context.Context, alert *models.SecurityAlert) (*models.SecurityAlert, error) {
	query := `
		INSERT INTO security_alerts (id, alert_type, severity, title, description, actor_id, ip_address, related_event_ids, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + alertColumns

	return scanAlertRow(r.pool.QueryRow(ctx, query,
		uuid.New(), alert.AlertType, alert.Severity, alert.Title,
		alert.Description, alert.ActorID, alert.IPAddress,
		pq.Array(alert.RelatedEventIDs), models.AlertStatusActive,
	))
}

// GetByID returns one alert
func (r *SecurityAlertRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SecurityAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM security_alerts WHERE id = $1`
	return scanAlertRow(r.pool.QueryRow(ctx, query, id))
}

// ListByStatus returns alerts in the given statuses, newest first
func (r *SecurityAlertRepository) ListByStatus(ctx context.Context, statuses []string, limit, offset int) ([]*models.SecurityAlert, error) {
	query := `
		SELECT ` + alertColumns + ` FROM security_alerts
		WHERE status = ANY($1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, statuses, limit, offset)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return scanAlertRows(rows)
}

// HasOpenAlert reports whether an unresolved alert of the given type
// already exists for an IP. Used to suppress duplicate correlation.
func (r *SecurityAlertRepository) HasOpenAlert(ctx context.Context, alertType, ipAddress string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM security_alerts
			WHERE alert_type = $1 AND ip_address = $2 AND status = ANY($3)
		)
	`

	open := []string{models.AlertStatusActive, models.AlertStatusInvestigating}

	var exists bool
	err := r.pool.QueryRow(ctx, query, alertType, ipAddress, open).Scan(&exists)
	return exists, database.MapPostgresError(err)
}

// UpdateStatus moves an alert into a new status, stamping resolution
// fields for terminal states
func (r *SecurityAlertRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, resolution *string, resolvedBy *uuid.UUID, resolvedAt *time.Time) (*models.SecurityAlert, error) {
	query := `
		UPDATE security_alerts
		SET status = $2, resolution = $3, resolved_by = $4, resolved_at = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + alertColumns

	return scanAlertRow(r.pool.QueryRow(ctx, query, id, status, resolution, resolvedBy, resolvedAt))
}

// Assign sets the assignee and moves the alert to investigating
func (r *SecurityAlertRepository) Assign(ctx context.Context, id, assigneeID uuid.UUID) (*models.SecurityAlert, error) {
	query := `
		UPDATE security_alerts
		SET assigned_to = $2, status = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + alertColumns

	return scanAlertRow(r.pool.QueryRow(ctx, query, id, assigneeID, models.AlertStatusInvestigating))
}

// CountActiveBySeverity counts unresolved alerts grouped by severity
func (r *SecurityAlertRepository) CountActiveBySeverity(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT severity, COUNT(*)
		FROM security_alerts
		WHERE status = ANY($1)
		GROUP BY severity
	`

	open := []string{models.AlertStatusActive, models.AlertStatusInvestigating}

	rows, err := r.pool.Query(ctx, query, open)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var severity string
		var count int
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, fmt.Errorf("failed to scan severity count: %w", err)
		}
		counts[severity] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating severity counts: %w", err)
	}

	return counts, nil
}
