package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/sentinel/internal/handlers"
	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/stretchr/testify/assert"
)

func adminRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	return handlers.WithClaimsContext(handlers.NewTestRequest(t, method, url, body), "admin-1", "admin@example.com", models.RoleAdmin)
}

func TestTwoFactorEnroll(t *testing.T) {
	expires := time.Date(2026, 3, 10, 12, 10, 0, 0, time.UTC)
	mock := &handlers.MockTwoFactorService{
		EnrollFunc: func(ctx context.Context, accountID string) (*models.TwoFactorEnrollment, error) {
			assert.Equal(t, "admin-1", accountID)
			return &models.TwoFactorEnrollment{
				Secret:          "JBSWY3DPEHPK3PXP",
				ProvisioningURI: "otpauth://totp/Sentinel:admin@example.com",
				ExpiresAt:       expires,
			}, nil
		},
	}

	handler := handlers.NewTwoFactorHandler(mock, handlers.NewTestLogger())
	w := httptest.NewRecorder()
	handler.Enroll(w, adminRequest(t, "POST", "/admin/2fa/enroll", nil))

	var resp models.TwoFactorEnrollment
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", resp.Secret)
	assert.True(t, expires.Equal(resp.ExpiresAt))
}

func TestTwoFactorConfirm_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"missing", models.ErrEnrollmentMissing, http.StatusBadRequest, "enrollment_missing"},
		{"expired", models.ErrEnrollmentExpired, http.StatusGone, "enrollment_expired"},
		{"wrong code", models.ErrTwoFactorInvalid, http.StatusUnauthorized, "two_factor_invalid"},
		{"not admin", models.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &handlers.MockTwoFactorService{
				ConfirmFunc: func(ctx context.Context, accountID, code string) error {
					return tt.err
				},
			}
			handler := handlers.NewTwoFactorHandler(mock, handlers.NewTestLogger())
			w := httptest.NewRecorder()
			handler.Confirm(w, adminRequest(t, "POST", "/admin/2fa/confirm", handlers.ConfirmTwoFactorRequest{Code: "123456"}))

			handlers.AssertErrorResponse(t, w, tt.status, tt.code)
		})
	}
}

func TestTwoFactorConfirm_Success(t *testing.T) {
	handler := handlers.NewTwoFactorHandler(&handlers.MockTwoFactorService{}, handlers.NewTestLogger())
	w := httptest.NewRecorder()
	handler.Confirm(w, adminRequest(t, "POST", "/admin/2fa/confirm", handlers.ConfirmTwoFactorRequest{Code: "123456"}))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTwoFactorDisableAndStatus(t *testing.T) {
	mock := &handlers.MockTwoFactorService{
		StatusFunc: func(ctx context.Context, accountID string) (*models.TwoFactorStatus, error) {
			return &models.TwoFactorStatus{Enabled: true}, nil
		},
	}
	handler := handlers.NewTwoFactorHandler(mock, handlers.NewTestLogger())

	w := httptest.NewRecorder()
	handler.Disable(w, adminRequest(t, "DELETE", "/admin/2fa", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	handler.Status(w, adminRequest(t, "GET", "/admin/2fa", nil))
	var resp models.TwoFactorStatus
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.True(t, resp.Enabled)
}
