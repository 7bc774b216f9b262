// Package pets — handlers.go обрабатывает команды питомцев:
// /pets, /shop, /buy, /collect, /levelup, /tokenize.
package pets

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/bear-tycoon/internal/common"
	"serotonyl.ru/bear-tycoon/internal/models"
	"serotonyl.ru/bear-tycoon/internal/notify"
)

// Handler обрабатывает команды питомцев.
type Handler struct {
	service *Service
	bot     notify.Sender
	now     common.Clock
}

// NewHandler создаёт обработчик команд питомцев.
func NewHandler(service *Service, bot notify.Sender, now common.Clock) *Handler {
	return &Handler{service: service, bot: bot, now: now}
}

// HandleList — /pets: список медведей и доход в час.
func (h *Handler) HandleList(ctx context.Context, chatID int64, acc *models.Account) {
	owned, err := h.service.List(ctx, acc.ID)
	if err != nil {
		h.sendError(chatID, "pets", err)
		return
	}
	if len(owned) == 0 {
		h.sendMessage(chatID, "🐻 У тебя пока нет медведей. Загляни в магазин: /shop")
		return
	}

	var (
		b     strings.Builder
		total = decimal.Zero
	)
	b.WriteString("🐻 Твои медведи:\n")
	for _, p := range owned {
		fmt.Fprintf(&b, "#%d %s (%s, ур. %d) %s/ч", p.ID, p.Variant, p.Tier, p.Level, Yield(p).StringFixed(2))
		if p.Locked {
			b.WriteString(" 🔒")
		}
		b.WriteString("\n")
		if !p.Locked {
			total = total.Add(Yield(p))
		}
	}
	fmt.Fprintf(&b, "\nДоход: %s/ч без бонусов\nСила: %s", total.StringFixed(2), Power(owned).StringFixed(2))
	h.sendMessage(chatID, b.String())
}

// HandleShop — /shop: цены магазина.
func (h *Handler) HandleShop(ctx context.Context, chatID int64) {
	var b strings.Builder
	b.WriteString("🏪 Магазин медведей:\n")
	for _, tier := range []models.PetTier{models.TierCommon, models.TierRare, models.TierEpic, models.TierLegendary} {
		price, ok := ShopPrice(tier)
		if !ok {
			fmt.Fprintf(&b, "%s: только из кейсов и слияния\n", tier)
			continue
		}
		fmt.Fprintf(&b, "%s: %s, %s/ч\n", tier, common.FormatCoins(price), BaseYield(tier))
	}
	b.WriteString("\nКупить: /buy common\nРедкие уровни открываются улучшением «Магазин»: /upgrades")
	h.sendMessage(chatID, b.String())
}

// HandleBuy — /buy rare.
func (h *Handler) HandleBuy(ctx context.Context, chatID int64, acc *models.Account, args []string) {
	tier := models.TierCommon
	if len(args) > 0 {
		var ok bool
		if tier, ok = models.ParseTier(args[0]); !ok {
			h.sendMessage(chatID, "❌ Формат: /buy common|rare|epic")
			return
		}
	}

	pet, err := h.service.Buy(ctx, acc.ID, tier, h.now())
	if err != nil {
		h.sendError(chatID, "buy", err)
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("🎉 Новый медведь: %s (#%d, %s)\nПриносит %s/ч", pet.Variant, pet.ID, pet.Tier, Yield(pet).StringFixed(2)))
}

// HandleCollect — /collect: забрать накопленный доход.
func (h *Handler) HandleCollect(ctx context.Context, chatID int64, acc *models.Account) {
	income, err := h.service.Collect(ctx, acc.ID, h.now())
	if err != nil {
		h.sendError(chatID, "collect", err)
		return
	}
	if income.IsZero() {
		h.sendMessage(chatID, "🍯 Пока нечего собирать")
		return
	}
	h.sendMessage(chatID, "🍯 Собрано: +"+common.FormatCoins(income))
}

// HandleLevelUp — /levelup 12.
func (h *Handler) HandleLevelUp(ctx context.Context, chatID int64, acc *models.Account, args []string) {
	if len(args) < 1 {
		h.sendMessage(chatID, "❌ Формат: /levelup номер_медведя")
		return
	}
	id, err := common.ParseID(args[0])
	if err != nil {
		h.sendMessage(chatID, common.UserMessage(err))
		return
	}

	pet, cost, err := h.service.LevelUp(ctx, acc.ID, id, h.now())
	if err != nil {
		h.sendError(chatID, "levelup", err)
		return
	}
	text := fmt.Sprintf("⬆️ %s теперь %d ур. (-%s)\nДоход: %s/ч", pet.Variant, pet.Level, common.FormatCoins(cost), Yield(pet).StringFixed(2))
	if pet.Level < MaxLevel {
		text += "\nСледующий уровень: " + common.FormatCoins(LevelUpCost(pet.Tier, pet.Level))
	}
	h.sendMessage(chatID, text)
}

// HandleTokenize — /tokenize 12: превратить медведя в коллекционный токен.
func (h *Handler) HandleTokenize(ctx context.Context, chatID int64, acc *models.Account, args []string) {
	if len(args) < 1 {
		h.sendMessage(chatID, fmt.Sprintf("❌ Формат: /tokenize номер_медведя\nСтоимость: %s", common.FormatCrypto(TokenizePrice)))
		return
	}
	id, err := common.ParseID(args[0])
	if err != nil {
		h.sendMessage(chatID, common.UserMessage(err))
		return
	}

	pet, err := h.service.Tokenize(ctx, acc.ID, id, h.now())
	if err != nil {
		h.sendError(chatID, "tokenize", err)
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("💎 %s стал коллекционным токеном\nID: %s", pet.Variant, pet.TokenID))
}

func (h *Handler) sendError(chatID int64, cmd string, err error) {
	log.WithError(err).WithField("command", cmd).Warn("Команда не выполнена")
	h.sendMessage(chatID, common.UserMessage(err))
}

// sendMessage — вспомогательный метод для отправки текстовых сообщений.
func (h *Handler) sendMessage(chatID int64, text string) {
	notify.Text(h.bot, chatID, text)
}
