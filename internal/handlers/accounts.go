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

// AccountServiceInterface defines account administration operations
type AccountServiceInterface interface {
	List(ctx context.Context) ([]*models.Account, error)
	Add(ctx context.Context, actor services.Actor, in services.NewAccountInput) (*models.Account, error)
	Update(ctx context.Context, actor services.Actor, id string, patch services.AccountPatch) (*models.Account, error)
	Delete(ctx context.Context, actor services.Actor, id string) error
}

// AccountHandler handles account administration HTTP requests
type AccountHandler struct {
	service AccountServiceInterface
	logger  *slog.Logger
}

func NewAccountHandler(service AccountServiceInterface, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{service: service, logger: logger}
}

// LoginWindowRequest is the wire form of a login window
type LoginWindowRequest struct {
	Start string `json:"start" validate:"required,hhmm"`
	End   string `json:"end" validate:"required,hhmm"`
}

func (w *LoginWindowRequest) toModel() *models.LoginWindow {
	if w == nil {
		return nil
	}
	return &models.LoginWindow{Start: w.Start, End: w.End}
}

// CreateAccountRequest represents the request body for adding an account
type CreateAccountRequest struct {
	Email             string              `json:"email" validate:"required,email"`
	Name              string              `json:"name" validate:"max=255"`
	Password          string              `json:"password" validate:"required,min=8,max=72"`
	Role              string              `json:"role" validate:"omitempty,oneof=admin user"`
	MaxAttemptsPerDay *int                `json:"max_attempts_per_day" validate:"omitempty,gte=0,lte=1000"`
	LoginWindow       *LoginWindowRequest `json:"login_window"`
	FaceEmbedding     []float64           `json:"face_embedding" validate:"max=4096"`
}

// UpdateAccountRequest represents a partial account update. Absent fields are untouched.
type UpdateAccountRequest struct {
	Email             *string             `json:"email" validate:"omitempty,email"`
	Name              *string             `json:"name" validate:"omitempty,max=255"`
	Password          *string             `json:"password" validate:"omitempty,min=8,max=72"`
	Role              *string             `json:"role" validate:"omitempty,oneof=admin user"`
	MaxAttemptsPerDay *int                `json:"max_attempts_per_day" validate:"omitempty,gte=0,lte=1000"`
	LoginWindow       *LoginWindowRequest `json:"login_window"`
	ClearLoginWindow  bool                `json:"clear_login_window"`
	FaceEmbedding     []float64           `json:"face_embedding" validate:"max=4096"`
	ClearFace         bool                `json:"clear_face_embedding"`
	Blocked           *bool               `json:"blocked"`
	BlockMinutes      int                 `json:"block_minutes" validate:"gte=0,lte=525600"`
}

func views(accounts []*models.Account) []models.AccountView {
	out := make([]models.AccountView, len(accounts))
	for i, a := range accounts {
		out[i] = a.View()
	}
	return out
}

// List handles GET /admin/accounts
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.List(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, views(accounts))
}

// Create handles POST /admin/accounts
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	created, err := h.service.Add(r.Context(), actorFromClaims(claims), services.NewAccountInput{
		Email:             req.Email,
		Name:              req.Name,
		Password:          req.Password,
		Role:              req.Role,
		MaxAttemptsPerDay: req.MaxAttemptsPerDay,
		LoginWindow:       req.LoginWindow.toModel(),
		FaceEmbedding:     req.FaceEmbedding,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, created.View())
}

// Update handles PUT /admin/accounts/{id}
func (h *AccountHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req UpdateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	updated, err := h.service.Update(r.Context(), actorFromClaims(claims), chi.URLParam(r, "id"), services.AccountPatch{
		Email:             req.Email,
		Name:              req.Name,
		Password:          req.Password,
		Role:              req.Role,
		MaxAttemptsPerDay: req.MaxAttemptsPerDay,
		LoginWindow:       req.LoginWindow.toModel(),
		ClearLoginWindow:  req.ClearLoginWindow,
		FaceEmbedding:     req.FaceEmbedding,
		ClearFace:         req.ClearFace,
		Blocked:           req.Blocked,
		BlockMinutes:      req.BlockMinutes,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, updated.View())
}

// Delete handles DELETE /admin/accounts/{id}
func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	if err := h.service.Delete(r.Context(), actorFromClaims(claims), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
