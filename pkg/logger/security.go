package logger

import (
	"context"
	"log/slog"
	"time"
)

// SecurityRecord is the slog-side shape of a security occurrence.
type SecurityRecord struct {
	EventType   string
	Severity    string
	IPAddress   string
	ActorID     string
	Email       string
	Description string
	Metadata    map[string]string
}

// SecurityLogger emits structured security log lines alongside the
// durable event log. Severity picks the log level so operators can
// filter on it without parsing attributes.
type SecurityLogger struct {
	logger *slog.Logger
}

// NewSecurityLogger creates a new security logger
func NewSecurityLogger(logger *slog.Logger) *SecurityLogger {
	return &SecurityLogger{
		logger: logger,
	}
}

// LogEvent logs a security occurrence at a level derived from its severity.
func (sl *SecurityLogger) LogEvent(rec SecurityRecord) {
	attrs := []slog.Attr{
		slog.String("event_type", rec.EventType),
		slog.String("severity", rec.Severity),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if rec.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", rec.IPAddress))
	}
	if rec.ActorID != "" {
		attrs = append(attrs, slog.String("actor_id", rec.ActorID))
	}
	if rec.Email != "" {
		attrs = append(attrs, slog.String("email", SanitizedEmail(rec.Email)))
	}
	if rec.Description != "" {
		attrs = append(attrs, slog.String("description", rec.Description))
	}
	for k, v := range rec.Metadata {
		attrs = append(attrs, slog.String(k, v))
	}

	sl.logger.LogAttrs(context.Background(), levelFor(rec.Severity), "security_event", attrs...)
}

// levelFor maps event severity to a slog level. Unknown severities log
// at Info rather than being dropped.
func levelFor(severity string) slog.Level {
	switch severity {
	case "critical":
		return slog.LevelError
	case "high":
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
