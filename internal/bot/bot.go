// Package bot is the Telegram front door: command dispatch, the contact
// authorization flow and the actuator commands. All call-outcome logic lives
// in internal/calls; the bot only starts calls and relays messages.
package bot

import (
	"context"
	"fmt"
	"time"

	"clinic-concierge/internal/calls"
	"clinic-concierge/internal/config"
	"clinic-concierge/internal/directory"
	"clinic-concierge/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Opener starts an actuator call. Implemented by calls.Opener.
type Opener interface {
	Open(ctx context.Context, userID, chatID int64, action calls.ActionType) (string, error)
}

// Limiter caps actuator commands per user. Implemented by ratelimit.Limiter.
type Limiter interface {
	Allow(ctx context.Context, userID int64) (bool, error)
}

// Syncer triggers a CRM sync on demand. Implemented by crm.Syncer.
type Syncer interface {
	Sync(ctx context.Context) (int, error)
}

type Bot struct {
	api     API
	dir     *directory.Service
	opener  Opener
	store   calls.Store
	limiter Limiter
	syncer  Syncer
	cfg     config.TelegramConfig

	startedAt time.Time
}

func New(api API, dir *directory.Service, opener Opener, store calls.Store, limiter Limiter, syncer Syncer, cfg config.TelegramConfig) *Bot {
	return &Bot{
		api:       api,
		dir:       dir,
		opener:    opener,
		store:     store,
		limiter:   limiter,
		syncer:    syncer,
		cfg:       cfg,
		startedAt: time.Now(),
	}
}

// Run consumes long-polling updates until ctx is cancelled. Each update is
// handled inline; Telegram updates for one chat arrive in order and the
// dial path is non-blocking.
func (b *Bot) Run(ctx context.Context, tg *tgbotapi.BotAPI) {
	log := logger.From(ctx)

	b.registerCommands()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := tg.GetUpdatesChan(u)

	log.Info("bot polling started", "username", tg.Self.UserName)
	for {
		select {
		case <-ctx.Done():
			tg.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// registerCommands publishes the command menu; failure is cosmetic.
func (b *Bot) registerCommands() {
	cmds := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: "Авторизація та список команд"},
		tgbotapi.BotCommand{Command: "hvirtka", Description: "Відкрити хвіртку"},
		tgbotapi.BotCommand{Command: "vorota", Description: "Відкрити ворота"},
		tgbotapi.BotCommand{Command: "call", Description: "Зателефонувати лікарю"},
		tgbotapi.BotCommand{Command: "map", Description: "Розташування на мапі"},
		tgbotapi.BotCommand{Command: "scheme", Description: "Схема ЖК Графський"},
	)
	_, _ = b.api.Request(cmds)
}

// HandleUpdate dispatches one update. It never returns an error: every
// failure path ends in a user-facing message or a log line.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	log := logger.From(ctx).With("telegram_id", msg.From.ID, "chat_id", msg.Chat.ID)
	ctx = logger.With(ctx, log)

	if msg.Contact != nil {
		b.handleContact(ctx, msg)
		return
	}
	if !msg.IsCommand() {
		return
	}

	switch msg.Command() {
	case "start":
		b.handleStart(ctx, msg)
	case "hvirtka":
		b.handleActuator(ctx, msg, calls.ActionDoor)
	case "vorota":
		b.handleActuator(ctx, msg, calls.ActionGate)
	case "call":
		b.reply(ctx, msg.Chat.ID, callDoctor(b.cfg.DoctorPhone))
	case "map":
		b.reply(ctx, msg.Chat.ID, mapLocation(b.cfg.MapURL))
	case "scheme":
		b.reply(ctx, msg.Chat.ID, buildingScheme(b.cfg.SchemeURL))
	case "status":
		b.handleStatus(ctx, msg)
	case "sync":
		b.handleSync(ctx, msg)
	default:
		log.Debug("unknown command", "command", msg.Command())
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	log := logger.From(ctx)

	ok, err := b.dir.IsAuthorized(ctx, msg.From.ID)
	if err != nil {
		log.Error("authorization check failed", "err", err)
		b.reply(ctx, msg.Chat.ID, msgContactDenied)
		return
	}
	if ok {
		b.reply(ctx, msg.Chat.ID, welcomeAuthorized(msg.From.FirstName))
		return
	}

	b.reply(ctx, msg.Chat.ID, welcomeUnauthorized(msg.From.FirstName))

	prompt := tgbotapi.NewMessage(msg.Chat.ID, msgShareContact)
	btn := tgbotapi.NewKeyboardButtonContact(msgShareButton)
	kb := tgbotapi.NewReplyKeyboard(tgbotapi.NewKeyboardButtonRow(btn))
	kb.OneTimeKeyboard = true
	kb.ResizeKeyboard = true
	prompt.ReplyMarkup = kb
	if _, err := b.api.Send(prompt); err != nil {
		log.Error("contact prompt failed", "err", err)
	}
}

func (b *Bot) handleContact(ctx context.Context, msg *tgbotapi.Message) {
	log := logger.From(ctx)
	contact := msg.Contact

	// Only the user's own contact authorizes; forwarded cards do not.
	if contact.UserID != 0 && contact.UserID != msg.From.ID {
		b.replyPlain(ctx, msg.Chat.ID, msgContactDenied, tgbotapi.NewRemoveKeyboard(false))
		return
	}

	ok, err := b.dir.RegisterContact(ctx, msg.From.ID, contact.PhoneNumber, msg.From.UserName, msg.From.FirstName)
	if err != nil {
		log.Error("contact registration failed", "err", err)
		b.replyPlain(ctx, msg.Chat.ID, dialFailed(b.cfg.SupportPhone), tgbotapi.NewRemoveKeyboard(false))
		return
	}

	if ok {
		b.replyPlain(ctx, msg.Chat.ID, msgContactAccepted, tgbotapi.NewRemoveKeyboard(false))
		return
	}

	b.replyPlain(ctx, msg.Chat.ID, msgContactDenied, tgbotapi.NewRemoveKeyboard(false))
	b.notifyAdmins(ctx, unauthorizedAttemptAlert(msg.From.ID, msg.From.UserName, msg.From.FirstName, contact.PhoneNumber))
}

func (b *Bot) handleActuator(ctx context.Context, msg *tgbotapi.Message, action calls.ActionType) {
	log := logger.From(ctx)

	ok, err := b.dir.IsAuthorized(ctx, msg.From.ID)
	if err != nil {
		log.Error("authorization check failed", "err", err)
		b.reply(ctx, msg.Chat.ID, dialFailed(b.cfg.SupportPhone))
		return
	}
	if !ok {
		log.Warn("unauthorized actuator attempt", "action", action)
		b.reply(ctx, msg.Chat.ID, msgNotAuthorized)
		return
	}

	if b.limiter != nil {
		allowed, err := b.limiter.Allow(ctx, msg.From.ID)
		if err != nil {
			// A broken limiter must not lock patients out.
			log.Error("rate limiter unavailable", "err", err)
		} else if !allowed {
			log.Warn("rate limited", "action", action)
			b.reply(ctx, msg.Chat.ID, msgRateLimited)
			return
		}
	}

	typing := tgbotapi.NewChatAction(msg.Chat.ID, tgbotapi.ChatTyping)
	_, _ = b.api.Request(typing)
	b.reply(ctx, msg.Chat.ID, msgPickingKeys)

	callID, err := b.opener.Open(ctx, msg.From.ID, msg.Chat.ID, action)
	if err != nil {
		log.Error("actuator call failed", "action", action, "call_id", callID, "err", err)
		b.reply(ctx, msg.Chat.ID, dialFailed(b.cfg.SupportPhone))
		return
	}
	// The confirmation or failure message arrives from the webhook
	// processor once the provider reports the call outcome.
	log.Info("actuator call placed", "action", action, "call_id", callID)
}

func (b *Bot) handleStatus(ctx context.Context, msg *tgbotapi.Message) {
	log := logger.From(ctx)
	if !b.dir.IsAdmin(msg.From.ID) {
		b.reply(ctx, msg.Chat.ID, msgAdminOnly)
		return
	}

	clients, err := b.dir.ClientCount(ctx)
	if err != nil {
		log.Error("client count failed", "err", err)
	}
	recent, err := b.store.ListRecent(ctx, 24*time.Hour)
	if err != nil {
		log.Error("recent calls lookup failed", "err", err)
	}
	pending := 0
	for _, r := range recent {
		if r.Status == calls.StatusPending {
			pending++
		}
	}

	text := fmt.Sprintf("📊 Статус:\n\n"+
		"🤖 Бот: ✅ Працює (з %s)\n"+
		"🏥 Клієнтів у базі: %d\n"+
		"📞 Дзвінків за добу: %d (очікують: %d)",
		b.startedAt.Format("2006-01-02 15:04"), clients, len(recent), pending)

	if u, ok, err := b.dir.Contact(ctx, msg.From.ID); err != nil {
		log.Error("contact lookup failed", "err", err)
	} else if ok {
		text += fmt.Sprintf("\n📱 Ваш телефон: %s", u.Phone)
	}
	b.reply(ctx, msg.Chat.ID, text)
}

func (b *Bot) handleSync(ctx context.Context, msg *tgbotapi.Message) {
	log := logger.From(ctx)
	if !b.dir.IsAdmin(msg.From.ID) {
		b.reply(ctx, msg.Chat.ID, msgAdminOnly)
		return
	}

	b.reply(ctx, msg.Chat.ID, "🔄 Ручна синхронізація клієнтів запущена...")
	n, err := b.syncer.Sync(ctx)
	if err != nil {
		log.Error("manual sync failed", "err", err)
		b.reply(ctx, msg.Chat.ID, "❌ Помилка при синхронізації, перевірте логи")
		return
	}
	b.reply(ctx, msg.Chat.ID, fmt.Sprintf("✅ Синхронізація завершена: оновлено %d клієнтів", n))
}

func (b *Bot) notifyAdmins(ctx context.Context, text string) {
	for _, chatID := range b.cfg.AdminChatIDs {
		b.reply(ctx, chatID, text)
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		logger.From(ctx).Error("send failed", "chat_id", chatID, "err", err)
	}
}

func (b *Bot) replyPlain(ctx context.Context, chatID int64, text string, markup any) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	if _, err := b.api.Send(msg); err != nil {
		logger.From(ctx).Error("send failed", "chat_id", chatID, "err", err)
	}
}
