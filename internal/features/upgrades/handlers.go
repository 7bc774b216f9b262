// Package upgrades — handlers.go обрабатывает /upgrades и /upgrade.
package upgrades

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/bear-tycoon/internal/common"
	"serotonyl.ru/bear-tycoon/internal/models"
	"serotonyl.ru/bear-tycoon/internal/notify"
)

// Handler обрабатывает команды улучшений.
type Handler struct {
	service *Service
	bot     notify.Sender
	now     common.Clock
}

// NewHandler создаёт обработчик команд улучшений.
func NewHandler(service *Service, bot notify.Sender, now common.Clock) *Handler {
	return &Handler{service: service, bot: bot, now: now}
}

// HandleList — /upgrades: уровни, эффекты и цена следующего уровня.
func (h *Handler) HandleList(ctx context.Context, chatID int64, acc *models.Account) {
	levels, err := h.service.Levels(ctx, acc.ID)
	if err != nil {
		log.WithError(err).Error("Ошибка получения улучшений")
		h.sendMessage(chatID, common.UserMessage(err))
		return
	}

	var b strings.Builder
	b.WriteString("🛠 Улучшения:\n")
	for _, t := range Tracks {
		level := levels[t.ID]
		effect, _ := EffectOf(t.ID, level)
		fmt.Fprintf(&b, "\n%s (/upgrade %s): ур. %d/%d, %s\n", t.Title, t.ID, level, t.MaxLevel, describe(effect))
		if level < t.MaxLevel {
			fmt.Fprintf(&b, "  следующий: %s\n", common.FormatCoins(t.Cost(level)))
		}
	}
	h.sendMessage(chatID, b.String())
}

// HandleBuy — /upgrade income.
func (h *Handler) HandleBuy(ctx context.Context, chatID int64, acc *models.Account, args []string) {
	if len(args) < 1 {
		h.sendMessage(chatID, "❌ Формат: /upgrade income|storage|daily_bonus|shop")
		return
	}

	p, err := h.service.Buy(ctx, acc.ID, strings.ToLower(args[0]), h.now())
	if err != nil {
		log.WithError(err).WithField("track", args[0]).Warn("Улучшение не куплено")
		h.sendMessage(chatID, common.UserMessage(err))
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("🛠 %s: ур. %d (-%s)\nТеперь: %s",
		p.Track.Title, p.NewLevel, common.FormatCoins(p.Cost), describe(p.Effect)))
}

func describe(e Effect) string {
	switch e.Kind {
	case EffectPercent:
		return fmt.Sprintf("+%s%% к доходу", e.Percent)
	case EffectTime:
		return fmt.Sprintf("доход копится %d ч", int(e.Duration.Hours()))
	case EffectFlat:
		return fmt.Sprintf("+%s к награде дня", common.FormatCoins(e.Flat))
	case EffectTier:
		return "магазин до " + e.MaxTier.String()
	}
	return ""
}

// sendMessage — вспомогательный метод для отправки текстовых сообщений.
func (h *Handler) sendMessage(chatID int64, text string) {
	notify.Text(h.bot, chatID, text)
}
