package calls

import "time"

// ActionType identifies which physical actuator an outbound call targets.
type ActionType string

const (
	ActionDoor ActionType = "door" // хвіртка, pedestrian door
	ActionGate ActionType = "gate" // ворота, vehicle gate
)

// Status is the lifecycle field of a call record. A record starts pending and
// moves exactly once into one of the terminal states.
type Status string

const (
	StatusPending Status = "pending"

	StatusSuccess       Status = "success"
	StatusBusy          Status = "busy"
	StatusNoAnswer      Status = "no_answer"
	StatusMisconfigured Status = "misconfigured"
	StatusFailed        Status = "failed"
	StatusTimeout       Status = "timeout"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusBusy, StatusNoAnswer, StatusMisconfigured, StatusFailed, StatusTimeout:
		return true
	default:
		return false
	}
}

// CallRecord is one outbound call attempt.
//
// Invariants:
// - CallID is unique and immutable once created.
// - TargetNumber is always stored normalized (phone.Normalize form).
// - Status leaves pending at most once; the store enforces this on Resolve.
type CallRecord struct {
	CallID string `json:"call_id" db:"call_id"`

	UserID int64 `json:"user_id" db:"user_id"`
	ChatID int64 `json:"chat_id" db:"chat_id"`

	Action       ActionType `json:"action_type" db:"action_type"`
	TargetNumber string     `json:"target_number" db:"target_number"`

	StartTime time.Time `json:"start_time" db:"start_time"`
	Status    Status    `json:"status" db:"status"`

	// ProviderCallID is attached once the telephony provider's webhook
	// reports its own id; it then becomes the authoritative correlation key.
	ProviderCallID string `json:"provider_call_id,omitempty" db:"provider_call_id"`
}

// EventCallEnded is the only webhook event that carries a call outcome.
// All other events are acknowledged and ignored.
const EventCallEnded = "NOTIFY_END"

// Notification is a validated provider webhook payload.
type Notification struct {
	Event          string `json:"event"`
	CallerID       string `json:"caller_id"`
	CalledDID      string `json:"called_did"`
	Disposition    string `json:"disposition"`
	Duration       int    `json:"duration"`
	ProviderCallID string `json:"pbx_call_id,omitempty"`
}

// Outcome categorizes what processing did with a notification.
type Outcome string

const (
	// OutcomeProcessed: a record was matched, transitioned and the user notified.
	OutcomeProcessed Outcome = "processed"
	// OutcomeUntracked: the notification references our actuator but no
	// pending record matched. Expected for calls placed outside the bot.
	OutcomeUntracked Outcome = "untracked"
	// OutcomeIgnored: not a call-ended event, or a call between numbers we
	// do not track at all.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeMalformed: payload missing required fields; nothing mutated.
	OutcomeMalformed Outcome = "malformed"
)

// Result is the explicit processing result returned to the webhook boundary.
// Business-level conditions (no match, busy) are values here, never errors.
type Result struct {
	Success bool    `json:"success"`
	Outcome Outcome `json:"outcome"`
	CallID  string  `json:"call_id,omitempty"`
	Status  Status  `json:"status,omitempty"`
	Message string  `json:"message,omitempty"`
}
