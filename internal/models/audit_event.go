package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AuditAction tags an audit event. New actions must be added here, never built
// from free text.
type AuditAction string

// Admission actions
const (
	ActionLoginFailNotFound            AuditAction = "login_fail_not_found"
	ActionUserAutoUnblocked            AuditAction = "user_auto_unblocked"
	ActionLoginFailBlocked             AuditAction = "login_fail_blocked"
	ActionLoginFailDailyLimit          AuditAction = "login_fail_daily_limit_hit_block_2_min"
	ActionLoginFailPassword            AuditAction = "login_fail_password"
	ActionLoginFailCredentialsBlocked  AuditAction = "login_fail_credentials_block_2_attempts"
	ActionLoginFailOsBlocked           AuditAction = "login_fail_os_block"
	ActionLoginFailTimeDenied          AuditAction = "login_fail_time_denied"
	ActionLoginSecondFactorRequired    AuditAction = "login_2fa_required"
	ActionLoginFail2FAToken            AuditAction = "login_fail_2fa_token"
	ActionLoginSuccessAdmin            AuditAction = "login_success_admin"
	ActionLoginSuccessUser             AuditAction = "login_success_user"
	ActionFaceLoginFailNoMatch         AuditAction = "face_login_fail_no_match"
	ActionLogoutSuccess                AuditAction = "logout_success"
	ActionAdmin2FAEnrollmentStarted    AuditAction = "admin_2fa_enrollment_started"
	ActionAdmin2FAEnabled              AuditAction = "admin_2fa_enabled"
	ActionAdmin2FAConfirmFailed        AuditAction = "admin_2fa_confirm_failed"
	ActionAdmin2FAEnrollmentExpired    AuditAction = "admin_2fa_enrollment_expired"
	ActionAdmin2FADisabled             AuditAction = "admin_2fa_disabled"
	ActionAdminNotificationsMarkedRead AuditAction = "admin_notifications_marked_read"
)

// Ledger and administration actions
const (
	ActionAccessRequestSent      AuditAction = "file_access_request_sent"
	ActionAccessRequestDuplicate AuditAction = "file_access_request_duplicate"
	ActionAccessRequestDenied    AuditAction = "file_access_request_denied"
	ActionRequestApproved        AuditAction = "request_approved"
	ActionRequestRejected        AuditAction = "request_rejected"
	ActionRequestRevoked         AuditAction = "request_revoked"
	ActionRequestDecisionDenied  AuditAction = "request_decision_denied"
	ActionAdminUserCreated       AuditAction = "admin_user_created"
	ActionUserAdded              AuditAction = "user_added"
	ActionUserUpdated            AuditAction = "user_updated"
	ActionUserDeleted            AuditAction = "user_deleted"
	ActionProtectedAccount       AuditAction = "protected_account_violation"
)

// LoginSuccessAction returns login_success_{role}
func LoginSuccessAction(role string) AuditAction {
	if role == RoleAdmin {
		return ActionLoginSuccessAdmin
	}
	return ActionLoginSuccessUser
}

// DecisionAction maps a request decision to its audit action
func DecisionAction(status RequestStatus) AuditAction {
	switch status {
	case RequestApproved:
		return ActionRequestApproved
	case RequestRejected:
		return ActionRequestRejected
	default:
		return ActionRequestRevoked
	}
}

// AuditEvent is an immutable record of a decision or administrative action
type AuditEvent struct {
	ID         string       `json:"id"`
	ActorID    string       `json:"actor_id"`
	ActorLabel string       `json:"actor_label"`
	Action     AuditAction  `json:"action"`
	Timestamp  time.Time    `json:"timestamp"`
	Details    AuditDetails `json:"details,omitempty"`
}

// AuditDetails holds additional context for audit events and notifications
type AuditDetails map[string]any

// Scan implements sql.Scanner for JSONB
func (d *AuditDetails) Scan(value any) error {
	if value == nil {
		*d = make(AuditDetails)
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported details type %T", value)
	}

	m := make(map[string]any)
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	*d = AuditDetails(m)
	return nil
}

// Value implements driver.Valuer for JSONB
func (d AuditDetails) Value() (driver.Value, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(d))
}

// DailyActivityCount is one bucket of the activity histogram
type DailyActivityCount struct {
	Date  string `json:"date"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// DashboardCounts summarizes the operator overview
type DashboardCounts struct {
	Accounts         int `json:"accounts"`
	PendingRequests  int `json:"pending_requests"`
	RecentActivities int `json:"recent_activities"`
}
