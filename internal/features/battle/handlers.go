package battle

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/bear-tycoon/internal/common"
	"serotonyl.ru/bear-tycoon/internal/models"
	"serotonyl.ru/bear-tycoon/internal/notify"
)

// Handler обрабатывает /battle.
type Handler struct {
	service *Service
	bot     notify.Sender
	now     common.Clock
}

// NewHandler создаёт обработчик боёв.
func NewHandler(service *Service, bot notify.Sender, now common.Clock) *Handler {
	return &Handler{service: service, bot: bot, now: now}
}

// HandleBattle — /battle код_соперника ставка. Код — реферальный код (ID аккаунта).
func (h *Handler) HandleBattle(ctx context.Context, chatID int64, acc *models.Account, args []string) {
	if len(args) < 2 {
		h.sendMessage(chatID, "❌ Формат: /battle код_соперника ставка")
		return
	}
	opponentID, err := common.ParseID(args[0])
	if err != nil {
		h.sendMessage(chatID, common.UserMessage(err))
		return
	}
	stake, err := common.ParseAmount(args[1])
	if err != nil {
		h.sendMessage(chatID, common.UserMessage(err))
		return
	}

	res, err := h.service.Fight(ctx, acc.ID, opponentID, stake, h.now())
	if err != nil {
		log.WithError(err).WithField("account_id", acc.ID).Warn("Бой не состоялся")
		h.sendMessage(chatID, common.UserMessage(err))
		return
	}

	text := fmt.Sprintf("⚔️ Сила: %s против %s\n", res.ChallengerPower.StringFixed(2), res.OpponentPower.StringFixed(2))
	if res.WinnerID == acc.ID {
		text += "🏆 Победа! +" + common.FormatCoins(res.Stake)
	} else {
		text += "💀 Поражение. -" + common.FormatCoins(res.Stake)
	}
	h.sendMessage(chatID, text)
}

// sendMessage — вспомогательный метод для отправки текстовых сообщений.
func (h *Handler) sendMessage(chatID int64, text string) {
	notify.Text(h.bot, chatID, text)
}
