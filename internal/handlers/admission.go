package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/sentinel/internal/auth"
	"github.com/BradenHooton/sentinel/internal/models"
	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
)

// AdmissionServiceInterface defines the admission business logic used by the handler
type AdmissionServiceInterface interface {
	Login(ctx context.Context, email, credential, clientOS string) (*models.AdmissionResult, error)
	FaceLogin(ctx context.Context, probe []float64, clientOS string) (*models.AdmissionResult, error)
	VerifyTwoFactor(ctx context.Context, accountID, code, clientOS string) (*models.AdmissionResult, error)
	Logout(ctx context.Context, accountID, email, jti string, expiresAt time.Time) error
}

// AdmissionHandler handles login, face login, second factor and logout requests
type AdmissionHandler struct {
	service AdmissionServiceInterface
	logger  *slog.Logger
}

// NewAdmissionHandler creates a new AdmissionHandler
func NewAdmissionHandler(service AdmissionServiceInterface, logger *slog.Logger) *AdmissionHandler {
	return &AdmissionHandler{service: service, logger: logger}
}

// Request DTOs

// LoginRequest represents the request body for login. ClientOS falls back to
// the User-Agent header when omitted.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
	ClientOS string `json:"client_os" validate:"max=256"`
}

// FaceLoginRequest carries a face embedding computed on the client
type FaceLoginRequest struct {
	Embedding []float64 `json:"embedding" validate:"required,min=1,max=4096"`
	ClientOS  string    `json:"client_os" validate:"max=256"`
}

// VerifyTwoFactorRequest completes a login that asked for a second factor
type VerifyTwoFactorRequest struct {
	AccountID string `json:"account_id" validate:"required"`
	Code      string `json:"code" validate:"required,len=6,numeric"`
	ClientOS  string `json:"client_os" validate:"max=256"`
}

// SecondFactorResponse is returned with 202 when a TOTP code is still needed
type SecondFactorResponse struct {
	Status    string `json:"status"`
	AccountID string `json:"account_id"`
}

func clientOS(r *http.Request, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	return r.Header.Get("User-Agent")
}

// Login handles POST /auth/login
func (h *AdmissionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password, clientOS(r, req.ClientOS))
	h.writeResult(w, result, err)
}

// FaceLogin handles POST /auth/face-login
func (h *AdmissionHandler) FaceLogin(w http.ResponseWriter, r *http.Request) {
	var req FaceLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.FaceLogin(r.Context(), req.Embedding, clientOS(r, req.ClientOS))
	h.writeResult(w, result, err)
}

// VerifyTwoFactor handles POST /auth/2fa/verify
func (h *AdmissionHandler) VerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req VerifyTwoFactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.VerifyTwoFactor(r.Context(), req.AccountID, req.Code, clientOS(r, req.ClientOS))
	h.writeResult(w, result, err)
}

// Logout handles POST /auth/logout. The presented token is revoked.
func (h *AdmissionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	if err := h.service.Logout(r.Context(), claims.AccountID, claims.Email, claims.ID, expiresAt); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *AdmissionHandler) writeResult(w http.ResponseWriter, result *models.AdmissionResult, err error) {
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	switch result.Outcome {
	case models.OutcomeSuccess:
		pkghttp.WriteJSON(w, http.StatusOK, result.Session)
	case models.OutcomeNeedsSecondFactor:
		pkghttp.WriteJSON(w, http.StatusAccepted, SecondFactorResponse{
			Status:    string(models.OutcomeNeedsSecondFactor),
			AccountID: result.AccountID,
		})
	default:
		writeServiceError(w, h.logger, result.Denial)
	}
}
