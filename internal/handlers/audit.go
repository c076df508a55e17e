package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/BradenHooton/sentinel/internal/auth"
	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/BradenHooton/sentinel/internal/services"
	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
	"github.com/go-chi/chi/v5"
)

// AuditServiceInterface defines the audit trail and notification inbox reads
type AuditServiceInterface interface {
	ListEvents(ctx context.Context, limit int) ([]*models.AuditEvent, error)
	ListNotifications(ctx context.Context, limit int) ([]*models.Notification, error)
	Acknowledge(ctx context.Context, id string) error
	AcknowledgeAll(ctx context.Context, actor services.Actor) (int, error)
}

// OverviewServiceInterface defines the operator dashboard reads
type OverviewServiceInterface interface {
	Dashboard(ctx context.Context) (*models.DashboardCounts, error)
	DailyActivityCounts(ctx context.Context, days int) ([]models.DailyActivityCount, error)
}

// AuditHandler serves the audit log, notifications and the operator overview
type AuditHandler struct {
	audit    AuditServiceInterface
	overview OverviewServiceInterface
	logger   *slog.Logger
}

func NewAuditHandler(audit AuditServiceInterface, overview OverviewServiceInterface, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{audit: audit, overview: overview, logger: logger}
}

// MarkAllReadResponse reports how many notifications were acknowledged
type MarkAllReadResponse struct {
	Updated int `json:"updated"`
}

// intQuery reads a non-negative integer query parameter. Absent yields 0.
func intQuery(r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ListEvents handles GET /admin/audit-events?limit=
func (h *AuditHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit, ok := intQuery(r, "limit")
	if !ok {
		pkghttp.WriteBadRequest(w, "limit must be a non-negative integer")
		return
	}

	events, err := h.audit.ListEvents(r.Context(), limit)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, events)
}

// ListNotifications handles GET /admin/notifications?limit=
func (h *AuditHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	limit, ok := intQuery(r, "limit")
	if !ok {
		pkghttp.WriteBadRequest(w, "limit must be a non-negative integer")
		return
	}

	notifications, err := h.audit.ListNotifications(r.Context(), limit)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, notifications)
}

// Acknowledge handles POST /admin/notifications/{id}/read
func (h *AuditHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	if err := h.audit.Acknowledge(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AcknowledgeAll handles POST /admin/notifications/read-all
func (h *AuditHandler) AcknowledgeAll(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	count, err := h.audit.AcknowledgeAll(r.Context(), actorFromClaims(claims))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MarkAllReadResponse{Updated: count})
}

// Dashboard handles GET /admin/dashboard
func (h *AuditHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	counts, err := h.overview.Dashboard(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, counts)
}

// DailyActivity handles GET /admin/activity/daily?days=
func (h *AuditHandler) DailyActivity(w http.ResponseWriter, r *http.Request) {
	days, ok := intQuery(r, "days")
	if !ok {
		pkghttp.WriteBadRequest(w, "days must be a non-negative integer")
		return
	}

	buckets, err := h.overview.DailyActivityCounts(r.Context(), days)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, buckets)
}
