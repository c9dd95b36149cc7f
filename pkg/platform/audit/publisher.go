package audit

import (
	"context"
	"log/slog"

	id "siaga/pkg/domain"
	"siaga/pkg/requestcontext"
)

// Publisher accepts events without blocking the caller.
type Publisher interface {
	Emit(ctx context.Context, event Event)
}

// Sink receives batches of events from a publisher.
type Sink interface {
	Write(ctx context.Context, events []Event) error
}

// LogAudit writes the event to the structured log and hands it to the
// publisher, which may be nil. attrs is a key/value list of strings; identifier,
// user_id, session_id, ip and reason are lifted into the event when present.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher Publisher, event AuditEvent, attrs ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attrs = append(attrs, "request_id", requestID)
	}

	if logger != nil {
		args := append(attrs, "event", string(event), "log_type", "audit")
		logger.InfoContext(ctx, string(event), args...)
	}
	if publisher == nil {
		return
	}

	e := Event{
		Action:    string(event),
		Subject:   extractString(attrs, "identifier", "user_id", "ip"),
		IP:        extractString(attrs, "ip"),
		Reason:    extractString(attrs, "reason"),
		RequestID: requestID,
		Severity:  event.Severity(),
		UserID:    requestcontext.UserID(ctx),
		SessionID: requestcontext.SessionID(ctx),
	}
	if userID, err := id.ParseUserID(extractString(attrs, "user_id")); err == nil {
		e.UserID = userID
	}
	if sessionID, err := id.ParseSessionID(extractString(attrs, "session_id")); err == nil {
		e.SessionID = sessionID
	}
	publisher.Emit(ctx, e)
}

// extractString returns the first non-empty string value among keys.
func extractString(attrs []any, keys ...string) string {
	for _, key := range keys {
		for i := 0; i+1 < len(attrs); i += 2 {
			if k, ok := attrs[i].(string); ok && k == key {
				if v, ok := attrs[i+1].(string); ok && v != "" {
					return v
				}
			}
		}
	}
	return ""
}
