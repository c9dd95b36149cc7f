package audit

import (
	"time"

	id "siaga/pkg/domain"
)

// Severity levels route events in downstream SIEM pipelines.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event captures a security-relevant action. Keep it transport-agnostic so
// sinks can fan out.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	// Subject is the entity involved: a user id, an anonymised IP or a hashed identity.
	Subject   string       `json:"subject,omitempty"`
	UserID    id.UserID    `json:"user_id,omitzero"`
	SessionID id.SessionID `json:"session_id,omitzero"`
	IP        string       `json:"ip,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	RequestID string       `json:"request_id,omitempty"`
	Severity  Severity     `json:"severity"`
}

type AuditEvent string

const (
	EventLoginSucceeded       AuditEvent = "login_succeeded"
	EventLoginFailed          AuditEvent = "login_failed"
	EventSessionCreated       AuditEvent = "session_created"
	EventSessionRevoked       AuditEvent = "session_revoked"
	EventSessionsRevoked      AuditEvent = "sessions_revoked"
	EventSessionElevated      AuditEvent = "session_elevated"
	EventTokenRefreshed       AuditEvent = "token_refreshed"
	EventRefreshReplayed      AuditEvent = "refresh_token_replayed"
	EventDeviceMismatch       AuditEvent = "device_binding_mismatch"
	EventAccessDenied         AuditEvent = "access_denied"
	EventPasswordReset        AuditEvent = "password_reset"
	EventRateLimitExceeded    AuditEvent = "rate_limit_exceeded"
	EventAuthLockoutTriggered AuditEvent = "auth_lockout_triggered"
	EventAuthLockoutCleared   AuditEvent = "auth_lockout_cleared"
	EventRateLimitDegraded    AuditEvent = "rate_limit_degraded"
)

var eventSeverities = map[AuditEvent]Severity{
	EventLoginFailed:          SeverityWarning,
	EventAccessDenied:         SeverityWarning,
	EventRateLimitExceeded:    SeverityWarning,
	EventAuthLockoutTriggered: SeverityWarning,
	EventRateLimitDegraded:    SeverityWarning,
	EventRefreshReplayed:      SeverityCritical,
	EventDeviceMismatch:       SeverityCritical,
}

// Severity returns the default severity for the event. Unknown and routine
// events are informational.
func (e AuditEvent) Severity() Severity {
	if s, ok := eventSeverities[e]; ok {
		return s
	}
	return SeverityInfo
}
