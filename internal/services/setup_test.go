package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/BradenHooton/sentinel/internal/face"
	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/BradenHooton/sentinel/internal/repositories/memory"
	pkglogger "github.com/BradenHooton/sentinel/pkg/logger"
	"github.com/stretchr/testify/require"
)

const (
	testRootEmail    = "root@example.com"
	testRootPassword = "rootpass123"
)

// testStart is a Tuesday at noon UTC
var testStart = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	clock         *FakeClock
	accounts      *memory.AccountStore
	requests      *memory.AccessRequestStore
	events        *memory.AuditEventStore
	notifications *memory.NotificationStore
	revocations   *memory.TokenRevocationStore
	hasher        *PlainHasher
	totp          *MockTotpProvider
	sink          *RecordingSink

	audit     *AuditService
	account   *AccountService
	admission *AdmissionService
	twoFactor *TwoFactorService
	ledger    *AccessRequestService
	overview  *OverviewService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithEvents(t, nil)
}

// newTestEnvWithEvents swaps the audit event store, e.g. for failure injection
func newTestEnvWithEvents(t *testing.T, events AuditEventStore) *testEnv {
	t.Helper()

	env := &testEnv{
		clock:         NewFakeClock(testStart),
		accounts:      memory.NewAccountStore(),
		requests:      memory.NewAccessRequestStore(),
		events:        memory.NewAuditEventStore(),
		notifications: memory.NewNotificationStore(),
		revocations:   memory.NewTokenRevocationStore(),
		hasher:        &PlainHasher{},
		totp:          &MockTotpProvider{},
		sink:          &RecordingSink{},
	}
	if events == nil {
		events = env.events
	}

	logger := discardLogger()
	env.audit = NewAuditService(events, env.notifications, pkglogger.NewAuditLogger(logger), logger, env.clock)
	env.audit.SetNotificationSink(env.sink)

	env.account = NewAccountService(env.accounts, env.hasher, env.audit, logger, env.clock, AccountPolicy{
		RootEmail:          testRootEmail,
		RootPassword:       testRootPassword,
		DefaultMaxAttempts: 5,
	})
	env.admission = NewAdmissionService(AdmissionDeps{
		Accounts:    env.accounts,
		Revocations: env.revocations,
		Root:        env.account,
		Hasher:      env.hasher,
		Matcher:     face.NewMatcher(face.DefaultThreshold),
		Totp:        env.totp,
		Sealer:      PrefixSealer{},
		Sessions:    &MockSessionIssuer{},
		Audit:       env.audit,
		Logger:      logger,
		Clock:       env.clock,
	}, AdmissionPolicy{
		Location:              time.UTC,
		LockoutDuration:       2 * time.Minute,
		MaxCredentialFailures: 2,
		AllowedClientOS:       []string{"win", "android"},
	})
	env.twoFactor = NewTwoFactorService(env.accounts, env.totp, PrefixSealer{}, &MockQrEncoder{}, env.audit, logger, env.clock, 10*time.Minute)
	env.ledger = NewAccessRequestService(env.requests, env.accounts, env.audit, logger, env.clock)
	env.overview = NewOverviewService(env.accounts, env.requests, events, env.clock, time.UTC)
	return env
}

func (e *testEnv) seed(t *testing.T, a *models.Account) *models.Account {
	t.Helper()
	if a.CredentialHash == "" {
		a.CredentialHash = "hashed:password1"
	}
	created, err := e.accounts.Create(context.Background(), a)
	require.NoError(t, err)
	return created
}

func (e *testEnv) seedUser(t *testing.T, email string) *models.Account {
	t.Helper()
	return e.seed(t, &models.Account{Email: email, Name: "Test User", Role: models.RoleUser, MaxAttemptsPerDay: 5})
}

func (e *testEnv) seedAdmin(t *testing.T, email string) *models.Account {
	t.Helper()
	return e.seed(t, &models.Account{Email: email, Name: "Test Admin", Role: models.RoleAdmin, MaxAttemptsPerDay: 5})
}

func (e *testEnv) reload(t *testing.T, id string) *models.Account {
	t.Helper()
	a, err := e.accounts.GetByID(context.Background(), id)
	require.NoError(t, err)
	return a
}

func (e *testEnv) actions(t *testing.T) []models.AuditAction {
	t.Helper()
	events, err := e.events.List(context.Background(), 1000)
	require.NoError(t, err)
	// List is newest first; tests read chronologically
	out := make([]models.AuditAction, len(events))
	for i, ev := range events {
		out[len(events)-1-i] = ev.Action
	}
	return out
}

func (e *testEnv) lastEvent(t *testing.T) *models.AuditEvent {
	t.Helper()
	events, err := e.events.List(context.Background(), 1)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	return events[0]
}
