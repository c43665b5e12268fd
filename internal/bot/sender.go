package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// API is the slice of tgbotapi.BotAPI the bot uses to talk back; tests
// substitute a recorder.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// TelegramSender implements calls.Sender on top of the Bot API, so the
// webhook processor and the janitor can message users without knowing about
// Telegram.
type TelegramSender struct {
	api API
}

func NewTelegramSender(api API) *TelegramSender {
	return &TelegramSender{api: api}
}

func (s *TelegramSender) Send(ctx context.Context, chatID int64, text string, htmlMarkup bool) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if htmlMarkup {
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
	}
	_, err := s.api.Send(msg)
	return err
}
