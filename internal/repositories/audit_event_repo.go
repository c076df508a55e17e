package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/sentinel/internal/database"
	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/google/uuid"
)

// AuditEventRepository is append-only; there is no update or delete.
type AuditEventRepository struct {
	db *database.DB
}

func NewAuditEventRepository(db *database.DB) *AuditEventRepository {
	return &AuditEventRepository{db: db}
}

func (r *AuditEventRepository) Append(ctx context.Context, event *models.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	query := `
		INSERT INTO audit_events (id, actor_id, actor_label, action, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		event.ID, event.ActorID, event.ActorLabel, event.Action, event.Details, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit event: %w", database.MapPostgresError(err))
	}
	return nil
}

// List returns the most recent events, newest first
func (r *AuditEventRepository) List(ctx context.Context, limit int) ([]*models.AuditEvent, error) {
	query := `
		SELECT id, actor_id, actor_label, action, details, created_at
		FROM audit_events
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	events := make([]*models.AuditEvent, 0)
	for rows.Next() {
		var e models.AuditEvent
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActorLabel, &e.Action, &e.Details, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit events: %w", err)
	}
	return events, nil
}

func (r *AuditEventRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_events WHERE created_at >= $1`, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count audit events: %w", err)
	}
	return n, nil
}

// TimestampsSince returns event times at or after since; bucketing by local
// day happens in the service so the time zone stays in one place.
func (r *AuditEventRepository) TimestampsSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT created_at FROM audit_events WHERE created_at >= $1`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit timestamps: %w", err)
	}
	defer rows.Close()

	stamps := make([]time.Time, 0)
	for rows.Next() {
		var ts time.Time
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("failed to scan audit timestamp: %w", err)
		}
		stamps = append(stamps, ts)
	}
	return stamps, rows.Err()
}
