package fusion

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/bear-tycoon/internal/common"
	"serotonyl.ru/bear-tycoon/internal/models"
	"serotonyl.ru/bear-tycoon/internal/notify"
)

// Handler обрабатывает /fuse.
type Handler struct {
	service *Service
	bot     notify.Sender
	now     common.Clock
}

// NewHandler создаёт обработчик слияния.
func NewHandler(service *Service, bot notify.Sender, now common.Clock) *Handler {
	return &Handler{service: service, bot: bot, now: now}
}

// HandleFuse — /fuse common [id ...]. Без номеров берёт первых подходящих.
func (h *Handler) HandleFuse(ctx context.Context, chatID int64, acc *models.Account, args []string) {
	if len(args) < 1 {
		h.sendMessage(chatID, fmt.Sprintf("❌ Формат: /fuse common|rare|epic [номера %d медведей]", Arity))
		return
	}
	tier, ok := models.ParseTier(args[0])
	if !ok {
		h.sendMessage(chatID, "❌ Неизвестный уровень: "+args[0])
		return
	}

	var ids []int64
	if len(args) > 1 {
		for _, a := range args[1:] {
			id, err := common.ParseID(a)
			if err != nil {
				h.sendMessage(chatID, "❌ Неверный номер медведя: "+a)
				return
			}
			ids = append(ids, id)
		}
	} else {
		var err error
		ids, err = h.service.Candidates(ctx, acc.ID, tier)
		if err != nil {
			log.WithError(err).Error("Ошибка подбора питомцев для слияния")
			h.sendMessage(chatID, common.UserMessage(err))
			return
		}
		if len(ids) < Arity {
			h.sendMessage(chatID, fmt.Sprintf("🧬 Нужно %d свободных медведей уровня %s, у тебя %d", Arity, tier, len(ids)))
			return
		}
	}

	out, err := h.service.Fuse(ctx, acc.ID, ids, tier, h.now())
	if err != nil {
		log.WithError(err).WithField("account_id", acc.ID).Warn("Слияние не выполнено")
		h.sendMessage(chatID, common.UserMessage(err))
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("🧬 %d медведей %s слились в %s (#%d, %s)!", Arity, tier, out.Variant, out.ID, out.Tier))
}

// sendMessage — вспомогательный метод для отправки текстовых сообщений.
func (h *Handler) sendMessage(chatID int64, text string) {
	notify.Text(h.bot, chatID, text)
}
