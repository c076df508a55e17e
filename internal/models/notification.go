package models

import "time"

// NotificationType categorizes operator notifications
type NotificationType string

const (
	NotificationLogin         NotificationType = "login"
	NotificationLogout        NotificationType = "logout"
	NotificationAccessRequest NotificationType = "access_request"
	NotificationInfo          NotificationType = "info"
)

// Notification is an operator-facing message derived from an audit event
type Notification struct {
	ID          string           `json:"id"`
	Message     string           `json:"message"`
	ActionType  NotificationType `json:"action_type"`
	RelatedInfo AuditDetails     `json:"related_info,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
	IsRead      bool             `json:"is_read"`
}
