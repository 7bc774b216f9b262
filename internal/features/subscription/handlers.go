// Package subscription — handlers.go обрабатывает команду /sub:
//
//	/sub             статус подписки и тарифы
//	/sub vip         купить или продлить тариф
//	/sub auto on|off автопродление
package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/bear-tycoon/internal/common"
	"serotonyl.ru/bear-tycoon/internal/models"
	"serotonyl.ru/bear-tycoon/internal/notify"
)

// Handler обрабатывает команды подписки.
type Handler struct {
	service *Service
	bot     notify.Sender
	loc     *time.Location
	now     common.Clock
}

// NewHandler создаёт обработчик команд подписки.
func NewHandler(service *Service, bot notify.Sender, loc *time.Location, now common.Clock) *Handler {
	return &Handler{service: service, bot: bot, loc: loc, now: now}
}

// HandleSub разбирает подкоманду /sub.
func (h *Handler) HandleSub(ctx context.Context, chatID int64, acc *models.Account, args []string) {
	if len(args) == 0 {
		h.handleStatus(ctx, chatID, acc)
		return
	}

	arg := strings.ToLower(args[0])
	if arg == "auto" {
		if len(args) < 2 || (args[1] != "on" && args[1] != "off") {
			h.sendMessage(chatID, "❌ Формат: /sub auto on|off")
			return
		}
		sub, err := h.service.SetAutoRenew(ctx, acc.ID, args[1] == "on", h.now())
		if err != nil {
			h.sendError(chatID, err)
			return
		}
		state := "выключено"
		if sub.AutoRenew {
			state = "включено"
		}
		h.sendMessage(chatID, "🔁 Автопродление "+state)
		return
	}

	sub, err := h.service.Purchase(ctx, acc.ID, arg, h.now())
	if err != nil {
		h.sendError(chatID, err)
		return
	}
	plan, _ := Lookup(sub.Tier)
	h.sendMessage(chatID, fmt.Sprintf("⭐ Подписка %s активна до %s\n+%s%% к доходу, комиссии -%s%%, вывод до %s",
		plan.Title, common.FormatDateTime(sub.ExpiresAt, h.loc),
		plan.IncomeBonusPct, plan.FeeReductionPct, common.FormatCrypto(plan.WithdrawLimit)))
}

func (h *Handler) handleStatus(ctx context.Context, chatID int64, acc *models.Account) {
	var b strings.Builder

	sub, err := h.service.Get(ctx, acc.ID)
	switch {
	case errors.Is(err, common.ErrNotFound):
		b.WriteString("⭐ Подписки нет\n")
	case err != nil:
		h.sendError(chatID, err)
		return
	case sub.ActiveAt(h.now()):
		auto := "выкл"
		if sub.AutoRenew {
			auto = "вкл"
		}
		fmt.Fprintf(&b, "⭐ %s до %s (автопродление %s)\n", sub.Tier, common.FormatDateTime(sub.ExpiresAt, h.loc), auto)
	default:
		fmt.Fprintf(&b, "⭐ Подписка %s закончилась %s\n", sub.Tier, common.FormatDateTime(sub.ExpiresAt, h.loc))
	}

	b.WriteString("\nТарифы на 30 дней:\n")
	for _, p := range Plans {
		fmt.Fprintf(&b, "%s (/sub %s): %s, +%s%% к доходу, комиссии -%s%%\n",
			p.Title, p.Tier, common.FormatCrypto(p.Price), p.IncomeBonusPct, p.FeeReductionPct)
	}
	h.sendMessage(chatID, b.String())
}

func (h *Handler) sendError(chatID int64, err error) {
	log.WithError(err).WithField("command", "sub").Warn("Команда не выполнена")
	h.sendMessage(chatID, common.UserMessage(err))
}

// sendMessage — вспомогательный метод для отправки текстовых сообщений.
func (h *Handler) sendMessage(chatID int64, text string) {
	notify.Text(h.bot, chatID, text)
}
