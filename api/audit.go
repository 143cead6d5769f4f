package api

import (
	"log/slog"
	"net/http"
	"time"
)

// AuditEvent identifies the type of security-relevant action being logged.
type AuditEvent string

const (
	AuditAccountCreated  AuditEvent = "account_created"
	AuditUnlockSuccess   AuditEvent = "unlock_success"
	AuditUnlockFailure   AuditEvent = "unlock_failure"
	AuditLock            AuditEvent = "lock"
	AuditPasswordRotated AuditEvent = "password_rotated"
	AuditRotateFailure   AuditEvent = "rotate_failure"
	AuditEntryCreated    AuditEvent = "entry_created"
	AuditEntryUpdated    AuditEvent = "entry_updated"
	AuditEntryDeleted    AuditEvent = "entry_deleted"
	AuditFolderCreated   AuditEvent = "folder_created"
	AuditFolderDeleted   AuditEvent = "folder_deleted"
)

// auditLogger wraps slog.Logger for structured security audit logging.
// Audit entries carry identifiers only, never passwords or plaintext.
type auditLogger struct {
	logger *slog.Logger
}

func newAuditLogger(logger *slog.Logger) *auditLogger {
	return &auditLogger{
		logger: logger.With("component", "audit"),
	}
}

func (al *auditLogger) log(event AuditEvent, r *http.Request, attrs ...slog.Attr) {
	baseAttrs := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	baseAttrs = append(baseAttrs, attrs...)
	al.logger.LogAttrs(r.Context(), slog.LevelInfo, "audit", baseAttrs...)
}

// logEvent is a convenience for events with an account ID.
func (al *auditLogger) logEvent(event AuditEvent, r *http.Request, accountID string, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.String("account_id", accountID),
	}
	attrs = append(attrs, extra...)
	al.log(event, r, attrs...)
}

// logFailure logs a failed attempt without echoing any secret material.
func (al *auditLogger) logFailure(event AuditEvent, r *http.Request, accountID, reason string) {
	al.log(event, r,
		slog.String("account_id", accountID),
		slog.String("reason", reason),
	)
}
