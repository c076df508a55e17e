package services

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestAccess_DuplicateWhilePendingAllowedAfterReject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "alice@example.com")
	admin := env.seedAdmin(t, "ops@example.com")
	actor := Actor{ID: admin.ID, Label: admin.Email}

	first, err := env.ledger.RequestAccess(ctx, user.ID, "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, first.Status)
	assert.Equal(t, user.Email, first.RequesterEmail)

	_, err = env.ledger.RequestAccess(ctx, user.ID, "report.pdf")
	require.ErrorIs(t, err, models.ErrDuplicateRequest)
	var typed *models.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, models.RequestPending, typed.ExistingStatus)
	assert.Equal(t, models.ActionAccessRequestDuplicate, env.lastEvent(t).Action)

	_, err = env.ledger.Decide(ctx, first.ID, models.RequestRejected, actor)
	require.NoError(t, err)

	second, err := env.ledger.RequestAccess(ctx, user.ID, "report.pdf")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	mine, err := env.ledger.ListMine(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID)
}

func TestRequestAccess_DuplicateWhileApproved(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "alice@example.com")
	admin := env.seedAdmin(t, "ops@example.com")

	req, err := env.ledger.RequestAccess(ctx, user.ID, "vault")
	require.NoError(t, err)
	_, err = env.ledger.Decide(ctx, req.ID, models.RequestApproved, Actor{ID: admin.ID, Label: admin.Email})
	require.NoError(t, err)

	_, err = env.ledger.RequestAccess(ctx, user.ID, "vault")
	var typed *models.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, models.KindDuplicateRequest, typed.Kind)
	assert.Equal(t, models.RequestApproved, typed.ExistingStatus)
}

func TestRequestAccess_NotifiesOperators(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "alice@example.com")

	_, err := env.ledger.RequestAccess(context.Background(), user.ID, "budget.xlsx")
	require.NoError(t, err)

	assert.Equal(t, models.ActionAccessRequestSent, env.lastEvent(t).Action)
	items := env.sink.Items()
	require.Len(t, items, 1)
	assert.Equal(t, models.NotificationAccessRequest, items[0].ActionType)
	assert.Equal(t, "User alice@example.com requested access to budget.xlsx.", items[0].Message)
}

func TestRequestAccess_RequiresResource(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "alice@example.com")

	_, err := env.ledger.RequestAccess(context.Background(), user.ID, "  ")
	assert.ErrorIs(t, err, models.ErrBadRequest)

	event := env.lastEvent(t)
	assert.Equal(t, models.ActionAccessRequestDenied, event.Action)
	assert.Equal(t, string(models.KindBadRequest), event.Details["reason"])
}

func TestRequestAccess_UnknownRequesterIsAudited(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.ledger.RequestAccess(context.Background(), "ghost-id", "report.pdf")
	assert.ErrorIs(t, err, models.ErrNotFound)

	event := env.lastEvent(t)
	assert.Equal(t, models.ActionAccessRequestDenied, event.Action)
	assert.Equal(t, "ghost-id", event.ActorID)
	assert.Equal(t, string(models.KindNotFound), event.Details["reason"])
	assert.Equal(t, "report.pdf", event.Details["resource_id"])
}

func TestDecide_RejectedInputIsAudited(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "alice@example.com")
	admin := env.seedAdmin(t, "ops@example.com")
	actor := Actor{ID: admin.ID, Label: admin.Email}

	req, err := env.ledger.RequestAccess(ctx, user.ID, "report.pdf")
	require.NoError(t, err)

	_, err = env.ledger.Decide(ctx, req.ID, models.RequestPending, actor)
	assert.ErrorIs(t, err, models.ErrBadRequest)
	event := env.lastEvent(t)
	assert.Equal(t, models.ActionRequestDecisionDenied, event.Action)
	assert.Equal(t, string(models.KindBadRequest), event.Details["reason"])
	assert.Equal(t, "pending", event.Details["decision"])

	_, err = env.ledger.Decide(ctx, "missing-request", models.RequestApproved, actor)
	assert.ErrorIs(t, err, models.ErrNotFound)
	event = env.lastEvent(t)
	assert.Equal(t, models.ActionRequestDecisionDenied, event.Action)
	assert.Equal(t, string(models.KindNotFound), event.Details["reason"])
	assert.Equal(t, "missing-request", event.Details["request_id"])
}

func TestDecide_RevokeEmitsRequestRevoked(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "alice@example.com")
	admin := env.seedAdmin(t, "ops@example.com")
	actor := Actor{ID: admin.ID, Label: admin.Email}

	req, err := env.ledger.RequestAccess(ctx, user.ID, "report.pdf")
	require.NoError(t, err)

	approved, err := env.ledger.Decide(ctx, req.ID, models.RequestApproved, actor)
	require.NoError(t, err)
	assert.Equal(t, models.RequestApproved, approved.Status)
	require.NotNil(t, approved.DecidedBy)
	assert.Equal(t, admin.ID, *approved.DecidedBy)
	require.NotNil(t, approved.DecidedAt)
	assert.True(t, approved.DecidedAt.Equal(testStart))

	revoked, err := env.ledger.Decide(ctx, req.ID, models.RequestRevoked, actor)
	require.NoError(t, err)
	assert.Equal(t, models.RequestRevoked, revoked.Status)

	event := env.lastEvent(t)
	assert.Equal(t, models.ActionRequestRevoked, event.Action)
	assert.Equal(t, "approved", event.Details["previous_status"])
	assert.Equal(t, "revoked", event.Details["new_status"])
	assert.Equal(t, user.ID, event.Details["target_user_id"])
}

func TestDecide_IllegalTransitions(t *testing.T) {
	cases := []struct {
		name  string
		setup []models.RequestStatus
		next  models.RequestStatus
	}{
		{"revoke pending", nil, models.RequestRevoked},
		{"approve rejected", []models.RequestStatus{models.RequestRejected}, models.RequestApproved},
		{"reject approved", []models.RequestStatus{models.RequestApproved}, models.RequestRejected},
		{"approve revoked", []models.RequestStatus{models.RequestApproved, models.RequestRevoked}, models.RequestApproved},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			user := env.seedUser(t, "alice@example.com")
			admin := env.seedAdmin(t, "ops@example.com")
			actor := Actor{ID: admin.ID, Label: admin.Email}

			req, err := env.ledger.RequestAccess(ctx, user.ID, "report.pdf")
			require.NoError(t, err)
			for _, step := range tc.setup {
				_, err := env.ledger.Decide(ctx, req.ID, step, actor)
				require.NoError(t, err)
			}

			_, err = env.ledger.Decide(ctx, req.ID, tc.next, actor)
			assert.ErrorIs(t, err, models.ErrInvalidTransition)
			assert.Equal(t, models.ActionRequestDecisionDenied, env.lastEvent(t).Action)
		})
	}
}

func TestDecide_NonAdminUnauthorized(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "alice@example.com")

	req, err := env.ledger.RequestAccess(ctx, user.ID, "report.pdf")
	require.NoError(t, err)

	_, err = env.ledger.Decide(ctx, req.ID, models.RequestApproved, Actor{ID: user.ID, Label: user.Email})
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	event := env.lastEvent(t)
	assert.Equal(t, models.ActionRequestDecisionDenied, event.Action)
	assert.Equal(t, string(models.KindUnauthorized), event.Details["reason"])

	stored, err := env.requests.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, stored.Status)
}

func TestDecide_RejectsUnknownDecision(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAdmin(t, "ops@example.com")

	_, err := env.ledger.Decide(context.Background(), "whatever", models.RequestPending, Actor{ID: admin.ID})
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestListAccessRequests_FilterByStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "alice@example.com")
	admin := env.seedAdmin(t, "ops@example.com")

	a, err := env.ledger.RequestAccess(ctx, user.ID, "a")
	require.NoError(t, err)
	_, err = env.ledger.RequestAccess(ctx, user.ID, "b")
	require.NoError(t, err)
	_, err = env.ledger.Decide(ctx, a.ID, models.RequestApproved, Actor{ID: admin.ID})
	require.NoError(t, err)

	pending, err := env.ledger.List(ctx, models.RequestPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "b", pending[0].ResourceID)

	all, err := env.ledger.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestListMine_NewestFirstAndScoped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.seedUser(t, "alice@example.com")
	bob := env.seedUser(t, "bob@example.com")

	_, err := env.ledger.RequestAccess(ctx, alice.ID, "first.pdf")
	require.NoError(t, err)
	env.clock.Advance(time.Minute)
	_, err = env.ledger.RequestAccess(ctx, alice.ID, "second.pdf")
	require.NoError(t, err)
	_, err = env.ledger.RequestAccess(ctx, bob.ID, "other.pdf")
	require.NoError(t, err)

	mine, err := env.ledger.ListMine(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "second.pdf", mine[0].ResourceID)
	assert.Equal(t, "first.pdf", mine[1].ResourceID)
}
