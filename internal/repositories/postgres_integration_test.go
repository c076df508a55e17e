//go:build integration

package repositories

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/sentinel/internal/database"
	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts a throwaway PostgreSQL container and applies the embedded migrations
func setupPostgres(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("sentinel"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()
	require.NoError(t, database.MigrateDB(ctx, sqlDB))

	return database.New(pool, nil)
}

func truncateAll(t *testing.T, db *database.DB) {
	t.Helper()
	for _, table := range []string{"revoked_tokens", "notifications", "audit_events", "access_requests", "accounts"} {
		_, err := db.Pool.Exec(context.Background(), fmt.Sprintf("TRUNCATE TABLE %s CASCADE", pq.QuoteIdentifier(table)))
		require.NoError(t, err)
	}
}

func TestPostgres_Repositories(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()

	accounts := NewAccountRepository(db)
	requests := NewAccessRequestRepository(db)

	t.Run("concurrent updates serialize through the version column", func(t *testing.T) {
		truncateAll(t, db)

		acc, err := accounts.Create(ctx, &models.Account{
			Email: "dana@example.com", CredentialHash: "x", Role: models.RoleUser, MaxAttemptsPerDay: 5,
		})
		require.NoError(t, err)

		const workers = 4
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := accounts.Update(ctx, acc.ID, func(a *models.Account) error {
					a.AttemptsToday++
					return nil
				})
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		succeeded := 0
		for err := range errs {
			if err == nil {
				succeeded++
			} else {
				assert.ErrorIs(t, err, models.ErrVersionConflict)
			}
		}

		got, err := accounts.GetByID(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, succeeded, got.AttemptsToday)
		assert.Equal(t, int64(1+succeeded), got.Version)
	})

	t.Run("one active request per requester and resource", func(t *testing.T) {
		truncateAll(t, db)

		acc, err := accounts.Create(ctx, &models.Account{
			Email: "erin@example.com", CredentialHash: "x", Role: models.RoleUser, MaxAttemptsPerDay: 5,
		})
		require.NoError(t, err)

		newRequest := func() *models.AccessRequest {
			return &models.AccessRequest{
				RequesterID: acc.ID, RequesterEmail: acc.Email, ResourceID: "payroll.xlsx",
				Status: models.RequestPending, RequestedAt: time.Now().UTC(),
			}
		}

		first, err := requests.Create(ctx, newRequest())
		require.NoError(t, err)

		_, err = requests.Create(ctx, newRequest())
		assert.ErrorIs(t, err, models.ErrConflict)

		_, _, err = requests.Transition(ctx, first.ID, models.RequestRejected, acc.ID, time.Now().UTC())
		require.NoError(t, err)

		_, err = requests.Create(ctx, newRequest())
		assert.NoError(t, err)
	})
}
