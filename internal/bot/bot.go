// Package bot содержит главный модуль бота — запуск polling, фильтрацию
// и маршрутизацию команд к обработчикам фич.
package bot

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/bear-tycoon/internal/bot/filters"
	"serotonyl.ru/bear-tycoon/internal/bot/middleware"
	"serotonyl.ru/bear-tycoon/internal/common"
	"serotonyl.ru/bear-tycoon/internal/config"
	"serotonyl.ru/bear-tycoon/internal/features/battle"
	"serotonyl.ru/bear-tycoon/internal/features/cases"
	"serotonyl.ru/bear-tycoon/internal/features/economy"
	"serotonyl.ru/bear-tycoon/internal/features/fusion"
	"serotonyl.ru/bear-tycoon/internal/features/market"
	"serotonyl.ru/bear-tycoon/internal/features/pets"
	"serotonyl.ru/bear-tycoon/internal/features/streak"
	"serotonyl.ru/bear-tycoon/internal/features/subscription"
	"serotonyl.ru/bear-tycoon/internal/features/upgrades"
	"serotonyl.ru/bear-tycoon/internal/metrics"
	"serotonyl.ru/bear-tycoon/internal/models"
	"serotonyl.ru/bear-tycoon/internal/notify"
)

// Handlers — обработчики команд всех фич.
type Handlers struct {
	Economy      *economy.Handler
	Streak       *streak.Handler
	Pets         *pets.Handler
	Cases        *cases.Handler
	Upgrades     *upgrades.Handler
	Subscription *subscription.Handler
	Fusion       *fusion.Handler
	Market       *market.Handler
	Battle       *battle.Handler
}

// Bot — главная структура бота, объединяющая все компоненты.
type Bot struct {
	api    *tgbotapi.BotAPI
	sender notify.Sender
	cfg    *config.Config

	chatFilter  *filters.ChatFilter
	rateLimiter *middleware.RateLimiter
	metrics     *metrics.Metrics

	accounts *economy.Service
	streaks  *streak.Service
	handlers Handlers

	parser *CommandParser
	now    common.Clock

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
}

// New создаёт новый экземпляр бота со всеми зависимостями.
// api нужен только для polling; ответы уходят через sender.
func New(
	api *tgbotapi.BotAPI,
	sender notify.Sender,
	cfg *config.Config,
	accounts *economy.Service,
	streaks *streak.Service,
	handlers Handlers,
	m *metrics.Metrics,
	now common.Clock,
) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	return &Bot{
		api:         api,
		sender:      sender,
		cfg:         cfg,
		chatFilter:  filters.NewChatFilter(cfg.BotGroupChatID),
		rateLimiter: middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		metrics:     m,
		accounts:    accounts,
		streaks:     streaks,
		handlers:    handlers,
		parser:      NewCommandParser(),
		now:         now,
		inflight:    make(chan struct{}, maxInFlight),
	}
}

// Start запускает polling обновлений от Telegram и блокируется до отмены ctx.
func (b *Bot) Start(ctx context.Context) error {
	defer b.rateLimiter.Close()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.BotUpdateTimeoutSeconds

	updates := b.api.GetUpdatesChan(u)

	log.WithFields(log.Fields{
		"max_inflight": b.cfg.BotMaxInflight,
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Бот запущен и ожидает сообщения...")

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			b.api.StopReceivingUpdates()
			b.drain()
			return nil

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				return nil
			}

			// лимит параллелизма
			b.inflight <- struct{}{}
			go func(upd tgbotapi.Update) {
				defer func() { <-b.inflight }()
				b.HandleUpdate(ctx, upd)
			}(update)
		}
	}
}

// drain ждёт завершения обрабатываемых апдейтов.
func (b *Bot) drain() {
	for i := 0; i < cap(b.inflight); i++ {
		b.inflight <- struct{}{}
	}
}

// HandleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	cmd := "unknown"
	defer middleware.RecoverFromPanic(func() {
		b.metrics.Errors.WithLabelValues(cmd).Inc()
		if update.Message != nil && update.Message.Chat != nil {
			notify.Text(b.sender, update.Message.Chat.ID, "❌ Что-то пошло не так, попробуй позже")
		}
	})

	message := update.Message
	if message == nil || message.Text == "" {
		return
	}
	if !b.chatFilter.CheckAccess(message) {
		return
	}

	// Логируем входящее
	middleware.LogMessage(message)

	// Rate limiting
	if !b.rateLimiter.Allow(message.From.ID) {
		b.metrics.Limited.Inc()
		log.WithField("user_id", message.From.ID).Debug("rate limited")
		return
	}

	name, args, isCommand := b.parser.ParseCommand(message.Text)
	if !isCommand {
		if message.Chat.IsPrivate() {
			notify.Text(b.sender, message.Chat.ID, "🐻 Не понял. Список команд: /help")
		}
		return
	}
	log.WithFields(log.Fields{"cmd": name, "args": args}).Debug("parsed command")

	acc, created, err := b.account(ctx, message, name, args)
	if err != nil {
		log.WithError(err).WithField("user_id", message.From.ID).Error("Не удалось получить аккаунт")
		notify.Text(b.sender, message.Chat.ID, common.UserMessage(err))
		return
	}

	// Любая команда — вход в игру за сегодня
	if _, _, err := b.streaks.Touch(ctx, acc.ID, b.now()); err != nil {
		log.WithError(err).WithField("account_id", acc.ID).Warn("Не удалось отметить вход")
	}

	cmd = name
	if !b.routeCommand(ctx, message.Chat.ID, acc, created, name, args) {
		cmd = "unknown"
	}
	b.metrics.Commands.WithLabelValues(cmd).Inc()
}

// account находит или создаёт аккаунт отправителя. Реферальный код
// учитывается только в /start и только при создании аккаунта.
func (b *Bot) account(ctx context.Context, message *tgbotapi.Message, cmd string, args []string) (*models.Account, bool, error) {
	var referrerID *int64
	if cmd == "start" && len(args) > 0 {
		if id, err := common.ParseID(args[0]); err == nil {
			referrerID = &id
		}
	}

	chatID := message.From.ID
	acc, created, err := b.accounts.Register(ctx, chatID, message.From.UserName, referrerID, b.now())
	if errors.Is(err, common.ErrInvalidReferrer) {
		log.WithField("referrer_id", *referrerID).Info("Неверный реферальный код, регистрируем без него")
		return b.accounts.Register(ctx, chatID, message.From.UserName, nil, b.now())
	}
	return acc, created, err
}
