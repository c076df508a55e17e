package services

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rootActor(t *testing.T, env *testEnv) (Actor, *models.Account) {
	t.Helper()
	root, err := env.account.EnsureRootAdmin(context.Background())
	require.NoError(t, err)
	return Actor{ID: root.ID, Label: root.Email}, root
}

func TestEnsureRootAdmin_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.account.EnsureRootAdmin(ctx)
	require.NoError(t, err)
	second, err := env.account.EnsureRootAdmin(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	count, err := env.accounts.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	items := env.sink.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "Primary admin account root@example.com created.", items[0].Message)
}

func TestAddAccount(t *testing.T) {
	env := newTestEnv(t)
	actor, _ := rootActor(t, env)
	ctx := context.Background()

	created, err := env.account.Add(ctx, actor, NewAccountInput{
		Email:         "  New.User@Example.com",
		Name:          "New User",
		Password:      "s3cretpass",
		LoginWindow:   &models.LoginWindow{Start: "08:00", End: "18:00"},
		FaceEmbedding: []float64{0.3, 0.3},
	})
	require.NoError(t, err)
	assert.Equal(t, "new.user@example.com", created.Email)
	assert.Equal(t, models.RoleUser, created.Role)
	assert.Equal(t, 5, created.MaxAttemptsPerDay)
	assert.Equal(t, "hashed:s3cretpass", created.CredentialHash)

	event := env.lastEvent(t)
	assert.Equal(t, models.ActionUserAdded, event.Action)
	assert.Equal(t, created.ID, event.Details["added_user_id"])
	assert.Equal(t, true, event.Details["face_data_added"])
}

func TestAddAccount_Validation(t *testing.T) {
	env := newTestEnv(t)
	actor, _ := rootActor(t, env)

	cases := []struct {
		name string
		in   NewAccountInput
	}{
		{"missing email", NewAccountInput{Password: "s3cretpass"}},
		{"bad role", NewAccountInput{Email: "x@example.com", Password: "s3cretpass", Role: "owner"}},
		{"weak password", NewAccountInput{Email: "x@example.com", Password: "short"}},
		{"bad window", NewAccountInput{Email: "x@example.com", Password: "s3cretpass", LoginWindow: &models.LoginWindow{Start: "9:00", End: "17:00"}}},
		{"inverted window", NewAccountInput{Email: "x@example.com", Password: "s3cretpass", LoginWindow: &models.LoginWindow{Start: "18:00", End: "08:00"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.account.Add(context.Background(), actor, tc.in)
			assert.ErrorIs(t, err, models.ErrBadRequest)
		})
	}
}

func TestAddAccount_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	actor, _ := rootActor(t, env)
	env.seedUser(t, "taken@example.com")

	_, err := env.account.Add(context.Background(), actor, NewAccountInput{Email: "taken@example.com", Password: "s3cretpass"})
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestAddAccount_RequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "user@example.com")

	_, err := env.account.Add(context.Background(), Actor{ID: user.ID}, NewAccountInput{Email: "x@example.com", Password: "s3cretpass"})
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestUpdateAccount_RootGuards(t *testing.T) {
	env := newTestEnv(t)
	actor, root := rootActor(t, env)
	ctx := context.Background()

	demote := models.RoleUser
	_, err := env.account.Update(ctx, actor, root.ID, AccountPatch{Role: &demote})
	assert.ErrorIs(t, err, models.ErrProtectedAccountViolation)
	assert.Equal(t, models.ActionProtectedAccount, env.lastEvent(t).Action)

	block := true
	_, err = env.account.Update(ctx, actor, root.ID, AccountPatch{Blocked: &block, BlockMinutes: 5})
	assert.ErrorIs(t, err, models.ErrProtectedAccountViolation)

	stored := env.reload(t, root.ID)
	assert.Equal(t, models.RoleAdmin, stored.Role)
	assert.False(t, stored.Blocked)

	name := "Chief"
	updated, err := env.account.Update(ctx, actor, root.ID, AccountPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Chief", updated.Name)
}

func TestUpdateAccount_BlockAndUnblock(t *testing.T) {
	env := newTestEnv(t)
	actor, _ := rootActor(t, env)
	ctx := context.Background()
	user := env.seedUser(t, "user@example.com")

	block := true
	updated, err := env.account.Update(ctx, actor, user.ID, AccountPatch{Blocked: &block, BlockMinutes: 30})
	require.NoError(t, err)
	assert.True(t, updated.Blocked)
	require.NotNil(t, updated.BlockedUntil)
	assert.True(t, updated.BlockedUntil.Equal(testStart.Add(30*time.Minute)))

	event := env.lastEvent(t)
	assert.Equal(t, models.ActionUserUpdated, event.Action)
	assert.Equal(t, []string{"blocked"}, event.Details["updates_applied"])

	unblock := false
	updated, err = env.account.Update(ctx, actor, user.ID, AccountPatch{Blocked: &unblock})
	require.NoError(t, err)
	assert.False(t, updated.Blocked)
	assert.Nil(t, updated.BlockedUntil)
}

func TestUpdateAccount_PasswordAndWindow(t *testing.T) {
	env := newTestEnv(t)
	actor, _ := rootActor(t, env)
	ctx := context.Background()
	user := env.seed(t, &models.Account{
		Email:       "user@example.com",
		Role:        models.RoleUser,
		LoginWindow: &models.LoginWindow{Start: "08:00", End: "09:00"},
	})

	password := "n3wpassword"
	updated, err := env.account.Update(ctx, actor, user.ID, AccountPatch{Password: &password, ClearLoginWindow: true})
	require.NoError(t, err)
	assert.Equal(t, "hashed:n3wpassword", updated.CredentialHash)
	assert.Nil(t, updated.LoginWindow)
}

func TestDeleteAccount(t *testing.T) {
	env := newTestEnv(t)
	actor, root := rootActor(t, env)
	ctx := context.Background()
	user := env.seedUser(t, "user@example.com")

	require.NoError(t, env.account.Delete(ctx, actor, user.ID))
	_, err := env.accounts.GetByID(ctx, user.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	event := env.lastEvent(t)
	assert.Equal(t, models.ActionUserDeleted, event.Action)
	assert.Equal(t, "user@example.com", event.Details["deleted_user_email"])

	err = env.account.Delete(ctx, actor, root.ID)
	assert.ErrorIs(t, err, models.ErrProtectedAccountViolation)
	assert.Equal(t, models.ActionProtectedAccount, env.lastEvent(t).Action)

	err = env.account.Delete(ctx, actor, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
