package logger

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

// AuditEntry is the log-side mirror of a persisted audit event
type AuditEntry struct {
	Action     string
	ActorID    string
	ActorLabel string
	Denied     bool
	Timestamp  time.Time
	Details    map[string]any
}

// AuditLogger writes audit entries to slog
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// Log emits entry at Info, or Warn when it records a denial. Actor labels that
// look like e-mail addresses are masked.
func (al *AuditLogger) Log(ctx context.Context, entry AuditEntry) {
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	attrs := []slog.Attr{
		slog.String("audit_type", "admission"),
		slog.String("action", entry.Action),
		slog.String("timestamp", ts.UTC().Format(time.RFC3339)),
	}
	if entry.ActorID != "" {
		attrs = append(attrs, slog.String("actor_id", entry.ActorID))
	}
	if entry.ActorLabel != "" {
		attrs = append(attrs, slog.String("actor", maskLabel(entry.ActorLabel)))
	}

	keys := make([]string, 0, len(entry.Details))
	for k := range entry.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, entry.Details[k]))
	}

	level := slog.LevelInfo
	if entry.Denied {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}

func maskLabel(label string) string {
	for i := 0; i < len(label); i++ {
		if label[i] == '@' {
			return SanitizedEmail(label)
		}
	}
	return label
}
