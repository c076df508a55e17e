package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/sentinel/internal/database"
	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// maxUpdateAttempts bounds optimistic-concurrency retries in Update
const maxUpdateAttempts = 5

// rowScanner covers pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

type AccountRepository struct {
	db *database.DB
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, email, name, credential_hash, role, is_root, blocked, blocked_until,
	login_window_start, login_window_end, max_attempts_per_day, attempts_today, last_attempt_date,
	two_factor_enabled, two_factor_secret, pending_2fa_secret, pending_2fa_expires,
	face_embedding, last_os_used, version, created_at, updated_at`

// scanAccountRow handles nullable columns and populates an Account from a row
func scanAccountRow(row rowScanner) (*models.Account, error) {
	var a models.Account
	var windowStart, windowEnd, twoFactorSecret, pendingSecret *string
	var pendingExpires *time.Time
	var twoFactorEnabled bool

	err := row.Scan(
		&a.ID, &a.Email, &a.Name, &a.CredentialHash, &a.Role, &a.IsRoot, &a.Blocked, &a.BlockedUntil,
		&windowStart, &windowEnd, &a.MaxAttemptsPerDay, &a.AttemptsToday, &a.LastAttemptDate,
		&twoFactorEnabled, &twoFactorSecret, &pendingSecret, &pendingExpires,
		&a.FaceEmbedding, &a.LastOsUsed, &a.Version, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if windowStart != nil && windowEnd != nil {
		a.LoginWindow = &models.LoginWindow{Start: *windowStart, End: *windowEnd}
	}
	if twoFactorEnabled || twoFactorSecret != nil {
		a.TwoFactor = &models.TwoFactor{Enabled: twoFactorEnabled}
		if twoFactorSecret != nil {
			a.TwoFactor.Secret = *twoFactorSecret
		}
	}
	if pendingSecret != nil && pendingExpires != nil {
		a.PendingTwoFactor = &models.PendingTwoFactor{Secret: *pendingSecret, ExpiresAt: *pendingExpires}
	}

	return &a, nil
}

func scanAccountRows(rows pgx.Rows) ([]*models.Account, error) {
	defer rows.Close()

	accounts := make([]*models.Account, 0)
	for rows.Next() {
		a, err := scanAccountRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account rows: %w", err)
	}
	return accounts, nil
}

// mutableArgs flattens the columns Update may change, in SET order
func mutableArgs(a *models.Account) []any {
	var windowStart, windowEnd, twoFactorSecret, pendingSecret *string
	var pendingExpires *time.Time
	twoFactorEnabled := false

	if a.LoginWindow != nil {
		windowStart, windowEnd = &a.LoginWindow.Start, &a.LoginWindow.End
	}
	if a.TwoFactor != nil {
		twoFactorEnabled = a.TwoFactor.Enabled
		if a.TwoFactor.Secret != "" {
			twoFactorSecret = &a.TwoFactor.Secret
		}
	}
	if a.PendingTwoFactor != nil {
		pendingSecret, pendingExpires = &a.PendingTwoFactor.Secret, &a.PendingTwoFactor.ExpiresAt
	}

	return []any{
		a.Email, a.Name, a.CredentialHash, a.Role, a.Blocked, a.BlockedUntil,
		windowStart, windowEnd, a.MaxAttemptsPerDay, a.AttemptsToday, a.LastAttemptDate,
		twoFactorEnabled, twoFactorSecret, pendingSecret, pendingExpires,
		a.FaceEmbedding, a.LastOsUsed,
	}
}

// Create inserts a new account. Duplicate e-mails map to models.ErrConflict.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	id := account.ID
	if id == "" {
		id = uuid.NewString()
	}

	query := `
		INSERT INTO accounts (
			email, name, credential_hash, role, blocked, blocked_until,
			login_window_start, login_window_end, max_attempts_per_day, attempts_today, last_attempt_date,
			two_factor_enabled, two_factor_secret, pending_2fa_secret, pending_2fa_expires,
			face_embedding, last_os_used, id, is_root
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING ` + accountColumns

	args := append(mutableArgs(account), id, account.IsRoot)
	created, err := scanAccountRow(r.db.Pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return created, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccountRow(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return scanAccountRow(r.db.Pool.QueryRow(ctx, query, email))
}

func (r *AccountRepository) List(ctx context.Context) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at ASC`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	return scanAccountRows(rows)
}

// ListFaceCandidates returns users with an enrolled face embedding
func (r *AccountRepository) ListFaceCandidates(ctx context.Context) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts
		WHERE role = 'user' AND face_embedding IS NOT NULL AND cardinality(face_embedding) > 0`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query face candidates: %w", err)
	}
	return scanAccountRows(rows)
}

func (r *AccountRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return n, nil
}

// Update applies fn to a fresh copy of the account and writes it back with a
// compare-and-set on version. On a lost race the account is re-read and fn runs
// again, so fn must derive everything from the account it is given. An error
// from fn aborts without writing.
func (r *AccountRepository) Update(ctx context.Context, id string, fn func(*models.Account) error) (*models.Account, error) {
	query := `
		UPDATE accounts SET
			email = $1, name = $2, credential_hash = $3, role = $4, blocked = $5, blocked_until = $6,
			login_window_start = $7, login_window_end = $8, max_attempts_per_day = $9,
			attempts_today = $10, last_attempt_date = $11,
			two_factor_enabled = $12, two_factor_secret = $13, pending_2fa_secret = $14, pending_2fa_expires = $15,
			face_embedding = $16, last_os_used = $17,
			version = version + 1, updated_at = NOW()
		WHERE id = $18 AND version = $19
		RETURNING updated_at`

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		current, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		next := current.Clone()
		if err := fn(next); err != nil {
			return nil, err
		}

		args := append(mutableArgs(next), current.ID, current.Version)
		var updatedAt time.Time
		err = r.db.Pool.QueryRow(ctx, query, args...).Scan(&updatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to update account: %w", database.MapPostgresError(err))
		}
		next.Version = current.Version + 1
		next.UpdatedAt = updatedAt
		return next, nil
	}

	return nil, models.ErrVersionConflict
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return models.ErrNotFound
	}
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1 AND NOT is_root`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return models.ErrProtectedAccountViolation
	}
	return nil
}
