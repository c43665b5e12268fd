package calls

import (
	"context"
	"fmt"
	"time"

	"clinic-concierge/internal/phone"
	"clinic-concierge/pkg/logger"
)

// Registrar creates the call record at call-placement time, before any
// provider confirmation exists. Registration must complete before the
// outbound request is fired so a webhook arriving immediately afterwards
// cannot race ahead of the record's existence.
type Registrar struct {
	store Store
	now   func() time.Time
}

func NewRegistrar(store Store) *Registrar {
	return &Registrar{store: store, now: time.Now}
}

// SetClock overrides the time source; tests use fixed clocks.
func (r *Registrar) SetClock(now func() time.Time) { r.now = now }

// Register inserts a pending record and returns its call id.
// Call ids are "{user_id}_{unix_nanos}"; nanosecond resolution makes them
// unique for practical purposes within a single process.
func (r *Registrar) Register(ctx context.Context, userID, chatID int64, action ActionType, targetNumber string) (string, error) {
	now := r.now()
	callID := fmt.Sprintf("%d_%d", userID, now.UnixNano())

	rec := CallRecord{
		CallID:       callID,
		UserID:       userID,
		ChatID:       chatID,
		Action:       action,
		TargetNumber: phone.Normalize(targetNumber),
		StartTime:    now,
		Status:       StatusPending,
	}
	if err := r.store.Insert(ctx, rec); err != nil {
		return "", err
	}

	logger.From(ctx).Info("call registered",
		"call_id", callID,
		"action", string(action),
		"target", rec.TargetNumber,
	)
	return callID, nil
}
