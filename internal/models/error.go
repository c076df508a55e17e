package models

import (
	"errors"
	"fmt"
)

// ErrorKind tags every failure the services return. Callers branch on the kind,
// never on the message.
type ErrorKind string

const (
	KindNotFound                  ErrorKind = "not_found"
	KindInvalidCredentials        ErrorKind = "invalid_credentials"
	KindAccountBlocked            ErrorKind = "account_blocked"
	KindDailyLimitExceeded        ErrorKind = "daily_limit_exceeded"
	KindOsNotAllowed              ErrorKind = "os_not_allowed"
	KindTimeWindowDenied          ErrorKind = "time_window_denied"
	KindTwoFactorRequired         ErrorKind = "two_factor_required"
	KindTwoFactorInvalid          ErrorKind = "two_factor_invalid"
	KindEnrollmentMissing         ErrorKind = "enrollment_missing"
	KindEnrollmentExpired         ErrorKind = "enrollment_expired"
	KindDuplicateRequest          ErrorKind = "duplicate_request"
	KindInvalidTransition         ErrorKind = "invalid_transition"
	KindUnauthorized              ErrorKind = "unauthorized"
	KindProtectedAccountViolation ErrorKind = "protected_account_violation"
	KindConflict                  ErrorKind = "conflict"
	KindBadRequest                ErrorKind = "bad_request"
	KindVersionConflict           ErrorKind = "version_conflict"
)

// Error is the typed failure value. Only the fields relevant to Kind are set.
type Error struct {
	Kind              ErrorKind
	Message           string
	RemainingMinutes  int
	AttemptsRemaining *int
	ExistingStatus    RequestStatus
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

// Is matches any *Error of the same kind, so sentinel comparisons ignore payload.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinel errors, one per kind
var (
	ErrNotFound                  = &Error{Kind: KindNotFound, Message: "resource not found"}
	ErrInvalidCredentials        = &Error{Kind: KindInvalidCredentials, Message: "invalid credentials"}
	ErrAccountBlocked            = &Error{Kind: KindAccountBlocked, Message: "account is temporarily blocked"}
	ErrDailyLimitExceeded        = &Error{Kind: KindDailyLimitExceeded, Message: "daily login attempt limit exceeded"}
	ErrOsNotAllowed              = &Error{Kind: KindOsNotAllowed, Message: "operating system not allowed"}
	ErrTimeWindowDenied          = &Error{Kind: KindTimeWindowDenied, Message: "login not allowed at this time"}
	ErrTwoFactorRequired         = &Error{Kind: KindTwoFactorRequired, Message: "two-factor authentication required"}
	ErrTwoFactorInvalid          = &Error{Kind: KindTwoFactorInvalid, Message: "invalid two-factor code"}
	ErrEnrollmentMissing         = &Error{Kind: KindEnrollmentMissing, Message: "no pending two-factor enrollment"}
	ErrEnrollmentExpired         = &Error{Kind: KindEnrollmentExpired, Message: "two-factor enrollment expired"}
	ErrDuplicateRequest          = &Error{Kind: KindDuplicateRequest, Message: "an active access request already exists"}
	ErrInvalidTransition         = &Error{Kind: KindInvalidTransition, Message: "invalid access request transition"}
	ErrUnauthorized              = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrProtectedAccountViolation = &Error{Kind: KindProtectedAccountViolation, Message: "operation not permitted on the root administrator"}
	ErrConflict                  = &Error{Kind: KindConflict, Message: "resource already exists"}
	ErrBadRequest                = &Error{Kind: KindBadRequest, Message: "bad request"}
	ErrVersionConflict           = &Error{Kind: KindVersionConflict, Message: "concurrent modification"}
)

// NewAccountBlockedError reports a block with the minutes left until it lifts.
// Zero means the block has no expiry.
func NewAccountBlockedError(remainingMinutes int) *Error {
	msg := "account is blocked"
	if remainingMinutes > 0 {
		msg = fmt.Sprintf("account is blocked, try again in %d minute(s)", remainingMinutes)
	}
	return &Error{Kind: KindAccountBlocked, Message: msg, RemainingMinutes: remainingMinutes}
}

// NewInvalidCredentialsError reports a credential mismatch. remaining is nil for
// roles that are never blocked for failures.
func NewInvalidCredentialsError(remaining *int) *Error {
	msg := "invalid credentials"
	if remaining != nil {
		msg = fmt.Sprintf("invalid credentials, %d attempt(s) remaining before block", *remaining)
	}
	return &Error{Kind: KindInvalidCredentials, Message: msg, AttemptsRemaining: remaining}
}

// NewDuplicateRequestError reports the status of the request that is still active
func NewDuplicateRequestError(existing RequestStatus) *Error {
	return &Error{
		Kind:           KindDuplicateRequest,
		Message:        fmt.Sprintf("an access request is already %s", existing),
		ExistingStatus: existing,
	}
}

// KindOf extracts the kind from err, or "" when err is not a typed error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
