package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims are the JWT claims carried by a session token
type TokenClaims struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// Session is returned on successful admission. It never carries secrets.
type Session struct {
	Account   AccountView `json:"account"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// AdmissionOutcome tags the three shapes an admission decision can take
type AdmissionOutcome string

const (
	OutcomeSuccess           AdmissionOutcome = "success"
	OutcomeNeedsSecondFactor AdmissionOutcome = "needs_second_factor"
	OutcomeDenied            AdmissionOutcome = "denied"
)

// AdmissionResult is the result of login, face login and second-factor checks.
// Exactly one of Session, AccountID or Denial is meaningful, selected by Outcome.
type AdmissionResult struct {
	Outcome   AdmissionOutcome
	Session   *Session
	AccountID string
	Denial    *Error
}

// Admitted builds a success result
func Admitted(session *Session) *AdmissionResult {
	return &AdmissionResult{Outcome: OutcomeSuccess, Session: session}
}

// NeedsSecondFactor builds a result asking the caller to verify a TOTP code
func NeedsSecondFactor(accountID string) *AdmissionResult {
	return &AdmissionResult{Outcome: OutcomeNeedsSecondFactor, AccountID: accountID}
}

// Denied builds a denial result
func Denied(reason *Error) *AdmissionResult {
	return &AdmissionResult{Outcome: OutcomeDenied, Denial: reason}
}

// TwoFactorEnrollment is handed to an admin starting TOTP setup
type TwoFactorEnrollment struct {
	Secret          string    `json:"secret"`
	ProvisioningURI string    `json:"provisioning_uri"`
	QRCodeDataURL   string    `json:"qr_code_data_url,omitempty"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// TwoFactorStatus summarizes an account's TOTP state
type TwoFactorStatus struct {
	Enabled           bool       `json:"enabled"`
	EnrollmentPending bool       `json:"enrollment_pending"`
	EnrollmentExpires *time.Time `json:"enrollment_expires_at,omitempty"`
}
