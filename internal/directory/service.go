package directory

import (
	"context"

	"clinic-concierge/internal/phone"
	"clinic-concierge/pkg/logger"
)

// Service answers the one question the bot keeps asking: may this Telegram
// user operate the actuators?
type Service struct {
	store  Store
	admins map[int64]bool
}

func NewService(store Store, adminIDs []int64) *Service {
	admins := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}
	return &Service{store: store, admins: admins}
}

// IsAdmin reports whether the user is a configured administrator.
func (s *Service) IsAdmin(telegramID int64) bool { return s.admins[telegramID] }

// IsAuthorized checks admins first, then requires a shared contact whose
// normalized phone matches a client record exactly.
func (s *Service) IsAuthorized(ctx context.Context, telegramID int64) (bool, error) {
	if s.admins[telegramID] {
		return true, nil
	}

	u, ok, err := s.store.FindUser(ctx, telegramID)
	if err != nil {
		return false, err
	}
	if !ok || u.Phone == "" {
		return false, nil
	}

	_, ok, err = s.store.FindClientByPhone(ctx, u.Phone)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// ClientCount reports the size of the mirrored client book.
func (s *Service) ClientCount(ctx context.Context) (int64, error) {
	return s.store.CountClients(ctx)
}

// Contact returns the stored Telegram contact for a user, if any.
func (s *Service) Contact(ctx context.Context, telegramID int64) (User, bool, error) {
	return s.store.FindUser(ctx, telegramID)
}

// RegisterContact stores a shared Telegram contact and reports whether it
// authorizes the user. The raw phone is normalized before storage so all
// later checks are exact matches.
func (s *Service) RegisterContact(ctx context.Context, telegramID int64, rawPhone, username, firstName string) (bool, error) {
	u := User{
		TelegramID: telegramID,
		Phone:      phone.Normalize(rawPhone),
		Username:   username,
		FirstName:  firstName,
	}
	if err := s.store.UpsertUser(ctx, u); err != nil {
		return false, err
	}
	logger.From(ctx).Info("contact registered", "telegram_id", telegramID)

	return s.IsAuthorized(ctx, telegramID)
}
