package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - Audit writes are best-effort; do not block the access flow on them.

type Event struct {
	ID string `json:"id" db:"id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// UserID is the Telegram user whose request caused the event.
	UserID int64 `json:"user_id,omitempty" db:"user_id"`

	// CallID links the event to a call tracking record.
	CallID string `json:"call_id,omitempty" db:"call_id"`

	// Action is which actuator was involved, if any.
	Action string `json:"action,omitempty" db:"action"`

	// Status is the terminal call status for outcome events.
	Status string `json:"status,omitempty" db:"status"`

	// Disposition is the raw provider disposition for outcome events.
	Disposition string `json:"disposition,omitempty" db:"disposition"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeAccessRequested EventType = "access_requested"
	EventTypeAccessOutcome   EventType = "access_outcome"
	EventTypeAdminAction     EventType = "admin_action"
)
