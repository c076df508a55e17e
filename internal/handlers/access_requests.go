package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/sentinel/internal/auth"
	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/BradenHooton/sentinel/internal/services"
	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
	"github.com/go-chi/chi/v5"
)

// AccessRequestServiceInterface defines the access-request lifecycle operations
type AccessRequestServiceInterface interface {
	RequestAccess(ctx context.Context, requesterID, resourceID string) (*models.AccessRequest, error)
	Decide(ctx context.Context, requestID string, decision models.RequestStatus, actor services.Actor) (*models.AccessRequest, error)
	List(ctx context.Context, status models.RequestStatus) ([]*models.AccessRequest, error)
	ListMine(ctx context.Context, requesterID string) ([]*models.AccessRequest, error)
}

// AccessRequestHandler handles access-request HTTP requests
type AccessRequestHandler struct {
	service AccessRequestServiceInterface
	logger  *slog.Logger
}

func NewAccessRequestHandler(service AccessRequestServiceInterface, logger *slog.Logger) *AccessRequestHandler {
	return &AccessRequestHandler{service: service, logger: logger}
}

// CreateAccessRequest represents the request body for requesting access
type CreateAccessRequest struct {
	ResourceID string `json:"resource_id" validate:"required,max=512"`
}

// DecisionRequest represents an administrator's decision on a request
type DecisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approved rejected revoked"`
}

func actorFromClaims(claims *models.TokenClaims) services.Actor {
	return services.Actor{ID: claims.AccountID, Label: claims.Email}
}

// Create handles POST /access-requests
func (h *AccessRequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req CreateAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	created, err := h.service.RequestAccess(r.Context(), claims.AccountID, req.ResourceID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, created)
}

// ListMine handles GET /access-requests/mine
func (h *AccessRequestHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	requests, err := h.service.ListMine(r.Context(), claims.AccountID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, requests)
}

// List handles GET /admin/access-requests, optionally filtered by ?status=
func (h *AccessRequestHandler) List(w http.ResponseWriter, r *http.Request) {
	status := models.RequestStatus(r.URL.Query().Get("status"))
	switch status {
	case "", models.RequestPending, models.RequestApproved, models.RequestRejected, models.RequestRevoked:
	default:
		pkghttp.WriteBadRequest(w, "status must be one of: pending approved rejected revoked")
		return
	}

	requests, err := h.service.List(r.Context(), status)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, requests)
}

// Decide handles POST /admin/access-requests/{id}/decision
func (h *AccessRequestHandler) Decide(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	decision, _ := models.ParseDecision(req.Decision)
	updated, err := h.service.Decide(r.Context(), chi.URLParam(r, "id"), decision, actorFromClaims(claims))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, updated)
}
