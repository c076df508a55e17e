package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/sentinel/internal/models"
	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
)

// statusForKind maps an error kind to its HTTP status
func statusForKind(kind models.ErrorKind) int {
	switch kind {
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindInvalidCredentials, models.KindTwoFactorRequired, models.KindTwoFactorInvalid:
		return http.StatusUnauthorized
	case models.KindAccountBlocked:
		return http.StatusLocked
	case models.KindDailyLimitExceeded:
		return http.StatusTooManyRequests
	case models.KindOsNotAllowed, models.KindTimeWindowDenied, models.KindUnauthorized, models.KindProtectedAccountViolation:
		return http.StatusForbidden
	case models.KindEnrollmentMissing, models.KindBadRequest:
		return http.StatusBadRequest
	case models.KindEnrollmentExpired:
		return http.StatusGone
	case models.KindDuplicateRequest, models.KindInvalidTransition, models.KindConflict, models.KindVersionConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError writes a typed service error as a JSON envelope. Untyped
// errors are logged and reported as internal errors without detail.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var typed *models.Error
	if !errors.As(err, &typed) {
		logger.Error("request failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "internal server error")
		return
	}

	resp := pkghttp.ErrorResponse{
		Error:   string(typed.Kind),
		Message: typed.Error(),
	}

	meta := make(map[string]any)
	if typed.RemainingMinutes > 0 {
		meta["remaining_minutes"] = typed.RemainingMinutes
	}
	if typed.AttemptsRemaining != nil {
		meta["attempts_remaining"] = *typed.AttemptsRemaining
	}
	if typed.ExistingStatus != "" {
		meta["existing_status"] = string(typed.ExistingStatus)
	}
	if len(meta) > 0 {
		resp.Meta = meta
	}

	pkghttp.WriteErrorResponse(w, statusForKind(typed.Kind), resp)
}
