package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/sentinel/internal/auth"
	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/BradenHooton/sentinel/internal/services"
	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

// NewTestLogger returns a logger that discards everything
func NewTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithClaimsContext adds session claims to the request context for authenticated endpoints
func WithClaimsContext(req *http.Request, accountID, email, role string) *http.Request {
	claims := &models.TokenClaims{
		AccountID: accountID,
		Email:     email,
		Role:      role,
	}
	claims.ID = "jti-" + accountID
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response and returns it
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) pkghttp.ErrorResponse {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
	return resp
}

// WithChiRouteContext adds chi URL parameters to request context for testing
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// WithChiIDFromURL uses the last path segment as the "id" route parameter.
// Paths with a trailing action segment (/x/{id}/read) take the segment before it.
func WithChiIDFromURL(r *http.Request, trailing ...string) *http.Request {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if n := len(parts) - len(trailing); len(parts) >= 2 && n >= 1 {
		return WithChiRouteContext(r, map[string]string{"id": parts[n-1]})
	}
	return r
}

// ============================================================================
// Service mocks
// ============================================================================

// MockAdmissionService implements AdmissionServiceInterface for testing
type MockAdmissionService struct {
	LoginFunc           func(ctx context.Context, email, credential, clientOS string) (*models.AdmissionResult, error)
	FaceLoginFunc       func(ctx context.Context, probe []float64, clientOS string) (*models.AdmissionResult, error)
	VerifyTwoFactorFunc func(ctx context.Context, accountID, code, clientOS string) (*models.AdmissionResult, error)
	LogoutFunc          func(ctx context.Context, accountID, email, jti string, expiresAt time.Time) error
}

func (m *MockAdmissionService) Login(ctx context.Context, email, credential, clientOS string) (*models.AdmissionResult, error) {
	if m.LoginFunc == nil {
		return models.Denied(models.NewInvalidCredentialsError(nil)), nil
	}
	return m.LoginFunc(ctx, email, credential, clientOS)
}

func (m *MockAdmissionService) FaceLogin(ctx context.Context, probe []float64, clientOS string) (*models.AdmissionResult, error) {
	if m.FaceLoginFunc == nil {
		return models.Denied(models.ErrInvalidCredentials), nil
	}
	return m.FaceLoginFunc(ctx, probe, clientOS)
}

func (m *MockAdmissionService) VerifyTwoFactor(ctx context.Context, accountID, code, clientOS string) (*models.AdmissionResult, error) {
	if m.VerifyTwoFactorFunc == nil {
		return models.Denied(models.ErrTwoFactorInvalid), nil
	}
	return m.VerifyTwoFactorFunc(ctx, accountID, code, clientOS)
}

func (m *MockAdmissionService) Logout(ctx context.Context, accountID, email, jti string, expiresAt time.Time) error {
	if m.LogoutFunc == nil {
		return nil
	}
	return m.LogoutFunc(ctx, accountID, email, jti, expiresAt)
}

// MockTwoFactorService implements TwoFactorServiceInterface for testing
type MockTwoFactorService struct {
	EnrollFunc  func(ctx context.Context, accountID string) (*models.TwoFactorEnrollment, error)
	ConfirmFunc func(ctx context.Context, accountID, code string) error
	DisableFunc func(ctx context.Context, accountID string) error
	StatusFunc  func(ctx context.Context, accountID string) (*models.TwoFactorStatus, error)
}

func (m *MockTwoFactorService) Enroll(ctx context.Context, accountID string) (*models.TwoFactorEnrollment, error) {
	if m.EnrollFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.EnrollFunc(ctx, accountID)
}

func (m *MockTwoFactorService) Confirm(ctx context.Context, accountID, code string) error {
	if m.ConfirmFunc == nil {
		return nil
	}
	return m.ConfirmFunc(ctx, accountID, code)
}

func (m *MockTwoFactorService) Disable(ctx context.Context, accountID string) error {
	if m.DisableFunc == nil {
		return nil
	}
	return m.DisableFunc(ctx, accountID)
}

func (m *MockTwoFactorService) Status(ctx context.Context, accountID string) (*models.TwoFactorStatus, error) {
	if m.StatusFunc == nil {
		return &models.TwoFactorStatus{}, nil
	}
	return m.StatusFunc(ctx, accountID)
}

// MockAccessRequestService implements AccessRequestServiceInterface for testing
type MockAccessRequestService struct {
	RequestAccessFunc func(ctx context.Context, requesterID, resourceID string) (*models.AccessRequest, error)
	DecideFunc        func(ctx context.Context, requestID string, decision models.RequestStatus, actor services.Actor) (*models.AccessRequest, error)
	ListFunc          func(ctx context.Context, status models.RequestStatus) ([]*models.AccessRequest, error)
	ListMineFunc      func(ctx context.Context, requesterID string) ([]*models.AccessRequest, error)
}

func (m *MockAccessRequestService) RequestAccess(ctx context.Context, requesterID, resourceID string) (*models.AccessRequest, error) {
	if m.RequestAccessFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.RequestAccessFunc(ctx, requesterID, resourceID)
}

func (m *MockAccessRequestService) Decide(ctx context.Context, requestID string, decision models.RequestStatus, actor services.Actor) (*models.AccessRequest, error) {
	if m.DecideFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.DecideFunc(ctx, requestID, decision, actor)
}

func (m *MockAccessRequestService) List(ctx context.Context, status models.RequestStatus) ([]*models.AccessRequest, error) {
	if m.ListFunc == nil {
		return []*models.AccessRequest{}, nil
	}
	return m.ListFunc(ctx, status)
}

func (m *MockAccessRequestService) ListMine(ctx context.Context, requesterID string) ([]*models.AccessRequest, error) {
	if m.ListMineFunc == nil {
		return []*models.AccessRequest{}, nil
	}
	return m.ListMineFunc(ctx, requesterID)
}

// MockAccountService implements AccountServiceInterface for testing
type MockAccountService struct {
	ListFunc   func(ctx context.Context) ([]*models.Account, error)
	AddFunc    func(ctx context.Context, actor services.Actor, in services.NewAccountInput) (*models.Account, error)
	UpdateFunc func(ctx context.Context, actor services.Actor, id string, patch services.AccountPatch) (*models.Account, error)
	DeleteFunc func(ctx context.Context, actor services.Actor, id string) error
}

func (m *MockAccountService) List(ctx context.Context) ([]*models.Account, error) {
	if m.ListFunc == nil {
		return []*models.Account{}, nil
	}
	return m.ListFunc(ctx)
}

func (m *MockAccountService) Add(ctx context.Context, actor services.Actor, in services.NewAccountInput) (*models.Account, error) {
	if m.AddFunc == nil {
		return nil, models.ErrConflict
	}
	return m.AddFunc(ctx, actor, in)
}

func (m *MockAccountService) Update(ctx context.Context, actor services.Actor, id string, patch services.AccountPatch) (*models.Account, error) {
	if m.UpdateFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateFunc(ctx, actor, id, patch)
}

func (m *MockAccountService) Delete(ctx context.Context, actor services.Actor, id string) error {
	if m.DeleteFunc == nil {
		return nil
	}
	return m.DeleteFunc(ctx, actor, id)
}

// MockAuditService implements AuditServiceInterface for testing
type MockAuditService struct {
	ListEventsFunc        func(ctx context.Context, limit int) ([]*models.AuditEvent, error)
	ListNotificationsFunc func(ctx context.Context, limit int) ([]*models.Notification, error)
	AcknowledgeFunc       func(ctx context.Context, id string) error
	AcknowledgeAllFunc    func(ctx context.Context, actor services.Actor) (int, error)
}

func (m *MockAuditService) ListEvents(ctx context.Context, limit int) ([]*models.AuditEvent, error) {
	if m.ListEventsFunc == nil {
		return []*models.AuditEvent{}, nil
	}
	return m.ListEventsFunc(ctx, limit)
}

func (m *MockAuditService) ListNotifications(ctx context.Context, limit int) ([]*models.Notification, error) {
	if m.ListNotificationsFunc == nil {
		return []*models.Notification{}, nil
	}
	return m.ListNotificationsFunc(ctx, limit)
}

func (m *MockAuditService) Acknowledge(ctx context.Context, id string) error {
	if m.AcknowledgeFunc == nil {
		return nil
	}
	return m.AcknowledgeFunc(ctx, id)
}

func (m *MockAuditService) AcknowledgeAll(ctx context.Context, actor services.Actor) (int, error) {
	if m.AcknowledgeAllFunc == nil {
		return 0, nil
	}
	return m.AcknowledgeAllFunc(ctx, actor)
}

// MockOverviewService implements OverviewServiceInterface for testing
type MockOverviewService struct {
	DashboardFunc           func(ctx context.Context) (*models.DashboardCounts, error)
	DailyActivityCountsFunc func(ctx context.Context, days int) ([]models.DailyActivityCount, error)
}

func (m *MockOverviewService) Dashboard(ctx context.Context) (*models.DashboardCounts, error) {
	if m.DashboardFunc == nil {
		return &models.DashboardCounts{}, nil
	}
	return m.DashboardFunc(ctx)
}

func (m *MockOverviewService) DailyActivityCounts(ctx context.Context, days int) ([]models.DailyActivityCount, error) {
	if m.DailyActivityCountsFunc == nil {
		return []models.DailyActivityCount{}, nil
	}
	return m.DailyActivityCountsFunc(ctx, days)
}
