package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clinic-concierge/internal/calls"
	"clinic-concierge/pkg/logger"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only. No Update/Delete methods are provided.
type Repository interface {
	Append(ctx context.Context, e Event) error
	List(ctx context.Context, limit int) ([]Event, error)
}

// Service records the access trail. It implements calls.Auditor: failures
// are logged and swallowed so a broken audit store can never keep a gate
// from opening.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// AccessRequested records that a user asked to open an actuator.
func (s *Service) AccessRequested(ctx context.Context, rec calls.CallRecord) {
	err := s.Append(ctx, Event{
		Type:    EventTypeAccessRequested,
		UserID:  rec.UserID,
		CallID:  rec.CallID,
		Action:  string(rec.Action),
		Message: fmt.Sprintf("callback requested to %s", rec.TargetNumber),
	})
	if err != nil {
		logger.From(ctx).Warn("audit append failed", "err", err, "call_id", rec.CallID)
	}
}

// AccessOutcome records the terminal status of a tracked call.
func (s *Service) AccessOutcome(ctx context.Context, rec calls.CallRecord, status calls.Status, disposition string) {
	err := s.Append(ctx, Event{
		Type:        EventTypeAccessOutcome,
		UserID:      rec.UserID,
		CallID:      rec.CallID,
		Action:      string(rec.Action),
		Status:      string(status),
		Disposition: disposition,
	})
	if err != nil {
		logger.From(ctx).Warn("audit append failed", "err", err, "call_id", rec.CallID)
	}
}

// LogAdminAction records an operator action on the admin surface.
func (s *Service) LogAdminAction(ctx context.Context, operator, message string) error {
	return s.Append(ctx, Event{
		Type:    EventTypeAdminAction,
		Message: fmt.Sprintf("%s: %s", operator, message),
	})
}

// Recent returns the newest events for the admin surface.
func (s *Service) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.List(ctx, limit)
}
