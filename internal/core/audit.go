package core

import "time"

// AuditEntry records one security-relevant event: a login attempt, a token
// issuance or an access decision.
type AuditEntry struct {
	// ID is the unique request ID (X-Correlation-ID).
	ID string `json:"id"`

	// Time is the timestamp of the event.
	Time time.Time `json:"time"`

	// Action describes what happened (e.g. "idp.login", "resource.decide").
	Action string `json:"action"`

	// Subject identifies who made the request, when known.
	Subject string `json:"subject,omitempty"`

	// Path is the requested resource path, for decision events.
	Path string `json:"path,omitempty"`

	// Effect and Reason carry the decision outcome, for decision events.
	Effect Effect `json:"effect,omitempty"`
	Reason Reason `json:"reason,omitempty"`

	// TokenFingerprint identifies an issued token without exposing it.
	TokenFingerprint string `json:"token_fingerprint,omitempty"`

	Error string `json:"error,omitempty"`
}

type Auditor interface {
	Log(entry AuditEntry) error
	Close() error
}
