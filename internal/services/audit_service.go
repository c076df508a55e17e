package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/sentinel/internal/models"
	pkglogger "github.com/BradenHooton/sentinel/pkg/logger"
	"github.com/google/uuid"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// AuditService handles audit logging with dual-write pattern (slog + store)
// and the operator notification feed derived from it.
type AuditService struct {
	events        AuditEventStore
	notifications NotificationStore
	sink          NotificationSink
	auditLogger   *pkglogger.AuditLogger
	logger        *slog.Logger
	clock         Clock
}

// NewAuditService creates a new AuditService
func NewAuditService(events AuditEventStore, notifications NotificationStore, auditLogger *pkglogger.AuditLogger, logger *slog.Logger, clock Clock) *AuditService {
	return &AuditService{
		events:        events,
		notifications: notifications,
		auditLogger:   auditLogger,
		logger:        logger,
		clock:         clock,
	}
}

// SetNotificationSink forwards every stored notification to sink.
// Call before the service starts handling requests.
func (s *AuditService) SetNotificationSink(sink NotificationSink) {
	s.sink = sink
}

// Record appends an audit event. Persistence failures are logged and swallowed:
// the business operation that triggered the event has already been decided.
func (s *AuditService) Record(ctx context.Context, actorID, actorLabel string, action models.AuditAction, details models.AuditDetails) {
	s.append(ctx, actorID, actorLabel, action, false, details)
}

// RecordDenial appends an audit event for a refused operation, tagging the reason
func (s *AuditService) RecordDenial(ctx context.Context, actorID, actorLabel string, action models.AuditAction, reason models.ErrorKind, details models.AuditDetails) {
	if details == nil {
		details = models.AuditDetails{}
	}
	details["reason"] = string(reason)
	s.append(ctx, actorID, actorLabel, action, true, details)
}

func (s *AuditService) append(ctx context.Context, actorID, actorLabel string, action models.AuditAction, denied bool, details models.AuditDetails) {
	event := &models.AuditEvent{
		ID:         uuid.NewString(),
		ActorID:    actorID,
		ActorLabel: actorLabel,
		Action:     action,
		Timestamp:  s.clock.Now().UTC(),
		Details:    details,
	}

	// Dual-write: immediate slog output
	s.auditLogger.Log(ctx, pkglogger.AuditEntry{
		Action:     string(action),
		ActorID:    actorID,
		ActorLabel: actorLabel,
		Denied:     denied,
		Timestamp:  event.Timestamp,
		Details:    details,
	})

	if err := s.events.Append(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist audit event",
			slog.String("action", string(action)),
			slog.Any("error", err),
		)
	}
}

// Notify stores an operator notification and hands it to the sink. Failures
// are logged only.
func (s *AuditService) Notify(ctx context.Context, message string, actionType models.NotificationType, related models.AuditDetails) {
	n := &models.Notification{
		ID:          uuid.NewString(),
		Message:     message,
		ActionType:  actionType,
		RelatedInfo: related,
		Timestamp:   s.clock.Now().UTC(),
	}

	if err := s.notifications.Create(ctx, n); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist notification",
			slog.String("action_type", string(actionType)),
			slog.Any("error", err),
		)
		return
	}

	if s.sink != nil && !s.sink.Enqueue(*n) {
		s.logger.WarnContext(ctx, "notification dispatch queue full, e-mail skipped",
			slog.String("notification_id", n.ID),
		)
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}

// ListEvents returns the most recent audit events, newest first
func (s *AuditService) ListEvents(ctx context.Context, limit int) ([]*models.AuditEvent, error) {
	events, err := s.events.List(ctx, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	return events, nil
}

// ListNotifications returns the most recent notifications, newest first
func (s *AuditService) ListNotifications(ctx context.Context, limit int) ([]*models.Notification, error) {
	notifications, err := s.notifications.List(ctx, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

// Acknowledge marks one notification read
func (s *AuditService) Acknowledge(ctx context.Context, id string) error {
	return s.notifications.MarkRead(ctx, id)
}

// AcknowledgeAll marks every unread notification read and audits the count
func (s *AuditService) AcknowledgeAll(ctx context.Context, actor Actor) (int, error) {
	count, err := s.notifications.MarkAllRead(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to acknowledge notifications: %w", err)
	}

	s.Record(ctx, actor.ID, actor.Label, models.ActionAdminNotificationsMarkedRead, models.AuditDetails{"count": count})
	return count, nil
}
