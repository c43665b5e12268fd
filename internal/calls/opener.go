package calls

import (
	"context"
	"fmt"

	"clinic-concierge/pkg/logger"
)

// Dialer places the outbound callback call. Implemented by the telephony
// provider adapter.
type Dialer interface {
	Dial(ctx context.Context, toNumber string) error
}

// Opener is the bot-side entry point: register the attempt, then fire the
// callback request. Registration happens first so the provider's webhook can
// never arrive before the record exists.
type Opener struct {
	registrar *Registrar
	store     Store
	dialer    Dialer
	actuators Actuators
	audit     Auditor
}

func NewOpener(registrar *Registrar, store Store, dialer Dialer, actuators Actuators, audit Auditor) *Opener {
	if audit == nil {
		audit = NopAuditor{}
	}
	return &Opener{
		registrar: registrar,
		store:     store,
		dialer:    dialer,
		actuators: actuators,
		audit:     audit,
	}
}

// Open triggers the actuator for a user and returns the tracking call id.
//
// If registration fails the call is not placed at all: an untrackable call
// would leave the user without any outcome message. If the dial fails after
// registration, the record is closed as failed so the janitor never times it
// out with a misleading message.
func (o *Opener) Open(ctx context.Context, userID, chatID int64, action ActionType) (string, error) {
	target := o.actuators.Number(action)
	if target == "" {
		return "", fmt.Errorf("no number configured for action %q", action)
	}

	callID, err := o.registrar.Register(ctx, userID, chatID, action, target)
	if err != nil {
		return "", fmt.Errorf("register call: %w", err)
	}

	o.audit.AccessRequested(ctx, CallRecord{
		CallID:       callID,
		UserID:       userID,
		ChatID:       chatID,
		Action:       action,
		TargetNumber: target,
	})

	if err := o.dialer.Dial(ctx, target); err != nil {
		if _, rerr := o.store.Resolve(ctx, callID, StatusFailed, ""); rerr != nil {
			logger.From(ctx).Error("failed to close record after dial error", "call_id", callID, "err", rerr)
		}
		return callID, fmt.Errorf("dial %s: %w", target, err)
	}
	return callID, nil
}
