package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aegisauth/aegis/internal/database"
	"github.com/aegisauth/aegis/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SecurityEventRepository handles database operations for the event log
type SecurityEventRepository struct {
	pool *pgxpool.Pool
}

// NewSecurityEventRepository creates a new SecurityEventRepository
func NewSecurityEventRepository(db *database.DB) *SecurityEventRepository {
	return &SecurityEventRepository{pool: db.Pool}
}

const eventColumns = `id, event_type, severity, ip_address, actor_id, email, endpoint, method, description, metadata, reviewed, reviewed_by, reviewed_at, review_notes, created_at`

func scanEventRow(scanner rowScanner) (*models.SecurityEvent, error) {
	var e models.SecurityEvent

	err := scanner.Scan(
		&e.ID, &e.EventType, &e.Severity, &e.IPAddress, &e.ActorID,
		&e.Email, &e.Endpoint, &e.Method, &e.Description, &e.Metadata,
		&e.Reviewed, &e.ReviewedBy, &e.ReviewedAt, &e.ReviewNotes, &e.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &e, nil
}

func scanEventRows(rows pgx.Rows) ([]*models.SecurityEvent, error) {
	defer rows.Close()

	events := make([]*models.SecurityEvent, 0)
	for rows.Next() {
		e, err := scanEventRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan security event: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating security event rows: %w", err)
	}

	return events, nil
}

// Insert appends one event row
func (r *SecurityEventRepository) Insert(ctx context.Context, event *models.SecurityEvent) (*models.SecurityEvent, error) {
	query := `
		INSERT INTO security_events (id, event_type, severity, ip_address, actor_id, email, endpoint, method, description, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + eventColumns

	return scanEventRow(r.pool.QueryRow(ctx, query,
		uuid.New(), event.EventType, event.Severity, event.IPAddress,
		event.ActorID, event.Email, event.Endpoint, event.Method,
		event.Description, event.Metadata,
	))
}

// GetByID returns one event
func (r *SecurityEventRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SecurityEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM security_events WHERE id = $1`
	return scanEventRow(r.pool.QueryRow(ctx, query, id))
}

// filterClause builds the WHERE clause shared by Query and its count.
// Filters compose with AND; absent filters match everything.
func filterClause(filter models.EventFilter) (string, []interface{}) {
	where := " WHERE 1=1"
	args := make([]interface{}, 0, 6)

	add := func(clause string, value interface{}) {
		args = append(args, value)
		where += fmt.Sprintf(clause, len(args))
	}

	if filter.EventType != nil {
		add(" AND event_type = $%d", *filter.EventType)
	}
	if filter.Severity != nil {
		add(" AND severity = $%d", *filter.Severity)
	}
	if filter.IPAddress != nil {
		add(" AND ip_address = $%d", *filter.IPAddress)
	}
	if filter.Reviewed != nil {
		add(" AND reviewed = $%d", *filter.Reviewed)
	}
	if filter.From != nil {
		add(" AND created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add(" AND created_at <= $%d", *filter.To)
	}

	return where, args
}

// Query returns a filtered, paginated slice of events plus the total
// match count
func (r *SecurityEventRepository) Query(ctx context.Context, filter models.EventFilter, limit, offset int) ([]*models.SecurityEvent, int, error) {
	where, args := filterClause(filter)

	var total int
	countQuery := `SELECT COUNT(*) FROM security_events` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, database.MapPostgresError(err)
	}

	query := `SELECT ` + eventColumns + ` FROM security_events` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, database.MapPostgresError(err)
	}

	events, err := scanEventRows(rows)
	if err != nil {
		return nil, 0, err
	}

	return events, total, nil
}

// MarkReviewed stamps the review marker on an unreviewed event. Returns
// ErrNotFound when the event does not exist and ErrAlreadyReviewed when
// the marker was already set; the row is left unchanged either way.
func (r *SecurityEventRepository) MarkReviewed(ctx context.Context, id, reviewerID uuid.UUID, notes *string) (*models.SecurityEvent, error) {
	query := `
		UPDATE security_events
		SET reviewed = true, reviewed_by = $2, reviewed_at = NOW(), review_notes = $3
		WHERE id = $1 AND reviewed = false
		RETURNING ` + eventColumns

	event, err := scanEventRow(r.pool.QueryRow(ctx, query, id, reviewerID, notes))
	if errors.Is(err, models.ErrNotFound) {
		// Distinguish a missing event from a double review
		if _, getErr := r.GetByID(ctx, id); getErr == nil {
			return nil, models.ErrAlreadyReviewed
		}
		return nil, models.ErrNotFound
	}
	return event, err
}

// CountsSince aggregates totals, per-type and per-severity counts plus
// the unreviewed backlog over a trailing window
func (r *SecurityEventRepository) CountsSince(ctx context.Context, since time.Time) (int, map[string]int, map[string]int, int, error) {
	byType := make(map[string]int)
	bySeverity := make(map[string]int)
	total := 0
	unreviewed := 0

	rows, err := r.pool.Query(ctx, `
		SELECT event_type, severity, COUNT(*), COUNT(*) FILTER (WHERE reviewed = false)
		FROM security_events
		WHERE created_at >= $1
		GROUP BY event_type, severity
	`, since)
	if err != nil {
		return 0, nil, nil, 0, database.MapPostgresError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var eventType, severity string
		var count, unreviewedCount int
		if err := rows.Scan(&eventType, &severity, &count, &unreviewedCount); err != nil {
			return 0, nil, nil, 0, fmt.Errorf("failed to scan event counts: %w", err)
		}
		byType[eventType] += count
		bySeverity[severity] += count
		total += count
		unreviewed += unreviewedCount
	}

	if err := rows.Err(); err != nil {
		return 0, nil, nil, 0, fmt.Errorf("error iterating event counts: %w", err)
	}

	return total, byType, bySeverity, unreviewed, nil
}

// TopOffenderIPs returns the origin IPs with the most events in a
// trailing window
func (r *SecurityEventRepository) TopOffenderIPs(ctx context.Context, since time.Time, limit int) ([]models.IPCount, error) {
	query := `
		SELECT ip_address, COUNT(*) AS n
		FROM security_events
		WHERE created_at >= $1 AND ip_address <> ''
		GROUP BY ip_address
		ORDER BY n DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, since, limit)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	offenders := make([]models.IPCount, 0, limit)
	for rows.Next() {
		var ic models.IPCount
		if err := rows.Scan(&ic.IPAddress, &ic.Count); err != nil {
			return nil, fmt.Errorf("failed to scan offender row: %w", err)
		}
		offenders = append(offenders, ic)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating offender rows: %w", err)
	}

	return offenders, nil
}

// DeleteOlderThan removes events past the retention horizon
func (r *SecurityEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM security_events WHERE created_at < $1`

	result, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}
