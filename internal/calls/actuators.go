package calls

import "clinic-concierge/internal/phone"

// Actuators is the static table of the two known actuator numbers, stored
// normalized. Webhook traffic is attributed to an actuator by exact match
// against this table; anything else on the same telephony account is not
// ours.
type Actuators struct {
	door string
	gate string
}

func NewActuators(doorNumber, gateNumber string) Actuators {
	return Actuators{
		door: phone.Normalize(doorNumber),
		gate: phone.Normalize(gateNumber),
	}
}

// Number returns the normalized dial target for an action.
func (a Actuators) Number(action ActionType) string {
	if action == ActionGate {
		return a.gate
	}
	return a.door
}

// Lookup resolves a raw phone number to an actuator, if it is one.
func (a Actuators) Lookup(raw string) (ActionType, string, bool) {
	n := phone.Normalize(raw)
	switch n {
	case "":
		return "", "", false
	case a.door:
		return ActionDoor, a.door, true
	case a.gate:
		return ActionGate, a.gate, true
	default:
		return "", "", false
	}
}

// Name returns the Ukrainian accusative name used in user-facing messages.
func (a ActionType) Name() string {
	if a == ActionGate {
		return "ворота"
	}
	return "хвіртку"
}
