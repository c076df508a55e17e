package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/sentinel/internal/database"
	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type AccessRequestRepository struct {
	db *database.DB
}

func NewAccessRequestRepository(db *database.DB) *AccessRequestRepository {
	return &AccessRequestRepository{db: db}
}

const accessRequestColumns = `id, requester_id, requester_email, resource_id, status, requested_at, decided_at, decided_by`

func scanAccessRequestRow(row rowScanner) (*models.AccessRequest, error) {
	var req models.AccessRequest
	err := row.Scan(
		&req.ID, &req.RequesterID, &req.RequesterEmail, &req.ResourceID,
		&req.Status, &req.RequestedAt, &req.DecidedAt, &req.DecidedBy,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &req, nil
}

func scanAccessRequestRows(rows pgx.Rows) ([]*models.AccessRequest, error) {
	defer rows.Close()

	requests := make([]*models.AccessRequest, 0)
	for rows.Next() {
		req, err := scanAccessRequestRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan access request: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating access request rows: %w", err)
	}
	return requests, nil
}

// Create inserts a pending request. A second active request for the same
// (requester, resource) pair violates access_requests_one_active and maps to
// models.ErrConflict.
func (r *AccessRequestRepository) Create(ctx context.Context, req *models.AccessRequest) (*models.AccessRequest, error) {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	query := `
		INSERT INTO access_requests (id, requester_id, requester_email, resource_id, status, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + accessRequestColumns

	created, err := scanAccessRequestRow(r.db.Pool.QueryRow(ctx, query,
		id, req.RequesterID, req.RequesterEmail, req.ResourceID, req.Status, req.RequestedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create access request: %w", err)
	}
	return created, nil
}

// FindActive returns the pending or approved request for the pair, if any
func (r *AccessRequestRepository) FindActive(ctx context.Context, requesterID, resourceID string) (*models.AccessRequest, error) {
	query := `SELECT ` + accessRequestColumns + ` FROM access_requests
		WHERE requester_id = $1 AND resource_id = $2 AND status IN ('pending', 'approved')
		LIMIT 1`
	return scanAccessRequestRow(r.db.Pool.QueryRow(ctx, query, requesterID, resourceID))
}

func (r *AccessRequestRepository) GetByID(ctx context.Context, id string) (*models.AccessRequest, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}
	query := `SELECT ` + accessRequestColumns + ` FROM access_requests WHERE id = $1`
	return scanAccessRequestRow(r.db.Pool.QueryRow(ctx, query, id))
}

// Transition moves a request to next inside a transaction, holding the row lock
// between the legality check and the write. It returns the updated request and
// the status it had before.
func (r *AccessRequestRepository) Transition(ctx context.Context, id string, next models.RequestStatus, decidedBy string, at time.Time) (*models.AccessRequest, models.RequestStatus, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, "", models.ErrNotFound
	}

	var updated *models.AccessRequest
	var previous models.RequestStatus

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		current, err := scanAccessRequestRow(tx.QueryRow(ctx,
			`SELECT `+accessRequestColumns+` FROM access_requests WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		previous = current.Status
		if !current.Status.CanTransitionTo(next) {
			return models.ErrInvalidTransition
		}

		updated, err = scanAccessRequestRow(tx.QueryRow(ctx, `
			UPDATE access_requests SET status = $2, decided_at = $3, decided_by = $4
			WHERE id = $1
			RETURNING `+accessRequestColumns,
			id, next, at, decidedBy,
		))
		return err
	})
	if err != nil {
		return nil, previous, err
	}

	return updated, previous, nil
}

// List returns requests newest first, optionally filtered by status
func (r *AccessRequestRepository) List(ctx context.Context, status models.RequestStatus) ([]*models.AccessRequest, error) {
	var rows pgx.Rows
	var err error
	if status == "" {
		rows, err = r.db.Pool.Query(ctx, `SELECT `+accessRequestColumns+` FROM access_requests ORDER BY requested_at DESC`)
	} else {
		rows, err = r.db.Pool.Query(ctx, `SELECT `+accessRequestColumns+` FROM access_requests
			WHERE status = $1 ORDER BY requested_at DESC`, status)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query access requests: %w", err)
	}
	return scanAccessRequestRows(rows)
}

func (r *AccessRequestRepository) ListByRequester(ctx context.Context, requesterID string) ([]*models.AccessRequest, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+accessRequestColumns+` FROM access_requests
		WHERE requester_id = $1 ORDER BY requested_at DESC`, requesterID)
	if err != nil {
		return nil, fmt.Errorf("failed to query access requests: %w", err)
	}
	return scanAccessRequestRows(rows)
}

func (r *AccessRequestRepository) CountByStatus(ctx context.Context, status models.RequestStatus) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM access_requests WHERE status = $1`, status).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count access requests: %w", err)
	}
	return n, nil
}
