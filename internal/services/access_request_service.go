package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BradenHooton/sentinel/internal/models"
)

// AccessRequestService runs the request/approve/revoke lifecycle for protected resources
type AccessRequestService struct {
	requests AccessRequestStore
	accounts IdentityStore
	audit    *AuditService
	logger   *slog.Logger
	clock    Clock
}

// NewAccessRequestService creates a new AccessRequestService
func NewAccessRequestService(requests AccessRequestStore, accounts IdentityStore, audit *AuditService, logger *slog.Logger, clock Clock) *AccessRequestService {
	return &AccessRequestService{
		requests: requests,
		accounts: accounts,
		audit:    audit,
		logger:   logger,
		clock:    clock,
	}
}

// RequestAccess files a pending request. A requester may hold at most one
// pending or approved request per resource.
func (s *AccessRequestService) RequestAccess(ctx context.Context, requesterID, resourceID string) (*models.AccessRequest, error) {
	resourceID = strings.TrimSpace(resourceID)
	if resourceID == "" {
		s.audit.RecordDenial(ctx, requesterID, requesterID, models.ActionAccessRequestDenied, models.KindBadRequest,
			models.AuditDetails{"resource_id": resourceID})
		return nil, badRequest("resource id is required")
	}

	requester, err := s.accounts.GetByID(ctx, requesterID)
	if errors.Is(err, models.ErrNotFound) {
		s.audit.RecordDenial(ctx, requesterID, requesterID, models.ActionAccessRequestDenied, models.KindNotFound,
			models.AuditDetails{"resource_id": resourceID})
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	existing, err := s.requests.FindActive(ctx, requester.ID, resourceID)
	switch {
	case err == nil:
		return nil, s.duplicate(ctx, requester, existing)
	case !errors.Is(err, models.ErrNotFound):
		return nil, fmt.Errorf("failed to check active requests: %w", err)
	}

	created, err := s.requests.Create(ctx, &models.AccessRequest{
		RequesterID:    requester.ID,
		RequesterEmail: requester.Email,
		ResourceID:     resourceID,
		Status:         models.RequestPending,
		RequestedAt:    s.clock.Now().UTC(),
	})
	if errors.Is(err, models.ErrConflict) {
		// lost the race against a concurrent request for the same resource
		existing, findErr := s.requests.FindActive(ctx, requester.ID, resourceID)
		if findErr != nil {
			return nil, models.NewDuplicateRequestError(models.RequestPending)
		}
		return nil, s.duplicate(ctx, requester, existing)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create access request: %w", err)
	}

	s.audit.Record(ctx, requester.ID, requester.Email, models.ActionAccessRequestSent, models.AuditDetails{
		"request_id":  created.ID,
		"resource_id": created.ResourceID,
	})
	s.audit.Notify(ctx, fmt.Sprintf("User %s requested access to %s.", requester.Email, created.ResourceID),
		models.NotificationAccessRequest, models.AuditDetails{
			"request_id":  created.ID,
			"user_id":     requester.ID,
			"resource_id": created.ResourceID,
		})
	return created, nil
}

func (s *AccessRequestService) duplicate(ctx context.Context, requester *models.Account, existing *models.AccessRequest) error {
	s.audit.RecordDenial(ctx, requester.ID, requester.Email, models.ActionAccessRequestDuplicate, models.KindDuplicateRequest,
		models.AuditDetails{
			"request_id":      existing.ID,
			"resource_id":     existing.ResourceID,
			"existing_status": string(existing.Status),
		})
	return models.NewDuplicateRequestError(existing.Status)
}

// Decide applies an administrator's decision to a request
func (s *AccessRequestService) Decide(ctx context.Context, requestID string, decision models.RequestStatus, actor Actor) (*models.AccessRequest, error) {
	if _, ok := models.ParseDecision(string(decision)); !ok {
		s.audit.RecordDenial(ctx, actor.ID, actor.Label, models.ActionRequestDecisionDenied, models.KindBadRequest,
			models.AuditDetails{"request_id": requestID, "decision": string(decision)})
		return nil, badRequest("decision must be approved, rejected or revoked")
	}

	if _, err := requireAdmin(ctx, s.accounts, actor); err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			s.audit.RecordDenial(ctx, actor.ID, actor.Label, models.ActionRequestDecisionDenied, models.KindUnauthorized,
				models.AuditDetails{"request_id": requestID, "decision": string(decision)})
		}
		return nil, err
	}

	updated, previous, err := s.requests.Transition(ctx, requestID, decision, actor.ID, s.clock.Now().UTC())
	if errors.Is(err, models.ErrInvalidTransition) {
		s.audit.RecordDenial(ctx, actor.ID, actor.Label, models.ActionRequestDecisionDenied, models.KindInvalidTransition,
			models.AuditDetails{
				"request_id":      requestID,
				"decision":        string(decision),
				"previous_status": string(previous),
			})
		return nil, err
	}
	if errors.Is(err, models.ErrNotFound) {
		s.audit.RecordDenial(ctx, actor.ID, actor.Label, models.ActionRequestDecisionDenied, models.KindNotFound,
			models.AuditDetails{"request_id": requestID, "decision": string(decision)})
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actor.ID, actor.Label, models.DecisionAction(decision), models.AuditDetails{
		"request_id":      updated.ID,
		"resource_id":     updated.ResourceID,
		"target_user_id":  updated.RequesterID,
		"previous_status": string(previous),
		"new_status":      string(updated.Status),
	})
	return updated, nil
}

// List returns requests newest first, optionally filtered by status
func (s *AccessRequestService) List(ctx context.Context, status models.RequestStatus) ([]*models.AccessRequest, error) {
	requests, err := s.requests.List(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list access requests: %w", err)
	}
	return requests, nil
}

// ListMine returns the requester's own requests, newest first
func (s *AccessRequestService) ListMine(ctx context.Context, requesterID string) ([]*models.AccessRequest, error) {
	requests, err := s.requests.ListByRequester(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list access requests: %w", err)
	}
	return requests, nil
}
