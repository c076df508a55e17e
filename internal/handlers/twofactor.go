package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/sentinel/internal/auth"
	"github.com/BradenHooton/sentinel/internal/models"
	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
)

// TwoFactorServiceInterface defines TOTP enrollment operations
type TwoFactorServiceInterface interface {
	Enroll(ctx context.Context, accountID string) (*models.TwoFactorEnrollment, error)
	Confirm(ctx context.Context, accountID, code string) error
	Disable(ctx context.Context, accountID string) error
	Status(ctx context.Context, accountID string) (*models.TwoFactorStatus, error)
}

// TwoFactorHandler lets an administrator manage TOTP on their own account
type TwoFactorHandler struct {
	service TwoFactorServiceInterface
	logger  *slog.Logger
}

func NewTwoFactorHandler(service TwoFactorServiceInterface, logger *slog.Logger) *TwoFactorHandler {
	return &TwoFactorHandler{service: service, logger: logger}
}

// ConfirmTwoFactorRequest carries the first code from the authenticator app
type ConfirmTwoFactorRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// Enroll handles POST /admin/2fa/enroll
func (h *TwoFactorHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	enrollment, err := h.service.Enroll(r.Context(), claims.AccountID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, enrollment)
}

// Confirm handles POST /admin/2fa/confirm
func (h *TwoFactorHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req ConfirmTwoFactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.Confirm(r.Context(), claims.AccountID, req.Code); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "two-factor authentication enabled"})
}

// Disable handles DELETE /admin/2fa
func (h *TwoFactorHandler) Disable(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	if err := h.service.Disable(r.Context(), claims.AccountID); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Status handles GET /admin/2fa
func (h *TwoFactorHandler) Status(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	status, err := h.service.Status(r.Context(), claims.AccountID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, status)
}
