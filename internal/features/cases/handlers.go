// Package cases — handlers.go обрабатывает команды /cases, /case и /casestats.
package cases

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/bear-tycoon/internal/common"
	"serotonyl.ru/bear-tycoon/internal/models"
	"serotonyl.ru/bear-tycoon/internal/notify"
)

// Handler обрабатывает команды кейсов.
type Handler struct {
	service *Service
	bot     notify.Sender
	now     common.Clock
}

// NewHandler создаёт обработчик команд кейсов.
func NewHandler(service *Service, bot notify.Sender, now common.Clock) *Handler {
	return &Handler{service: service, bot: bot, now: now}
}

// HandleList — /cases: кейсы, цены и шансы.
func (h *Handler) HandleList(ctx context.Context, chatID int64) {
	var b strings.Builder
	b.WriteString("🎁 Кейсы:\n")
	for _, t := range Tables {
		fmt.Fprintf(&b, "\n%s (/case %s): %s\n", t.Title, t.Tier, price(t))
		for _, e := range t.Entries {
			fmt.Fprintf(&b, "  %s: %s%%\n", e.Label(), chance(e.Weight, t.Total))
		}
	}
	h.sendMessage(chatID, b.String())
}

// HandleOpen — /case rare.
//
// Формат ответа:
//
//	🎁 Редкий кейс (-1 000 монет)
//	Выпало: 800 монет [uncommon]
func (h *Handler) HandleOpen(ctx context.Context, chatID int64, acc *models.Account, args []string) {
	tier := "common"
	if len(args) > 0 {
		tier = strings.ToLower(args[0])
	}

	res, err := h.service.OpenCase(ctx, acc.ID, tier, h.now())
	if err != nil {
		log.WithError(err).WithFields(log.Fields{"account_id": acc.ID, "case": tier}).Warn("Кейс не открыт")
		h.sendMessage(chatID, common.UserMessage(err))
		return
	}

	text := fmt.Sprintf("🎁 %s (-%s)\nВыпало: %s [%s]", res.Case.Title, price(res.Case), res.Entry.Label(), res.Entry.Rarity)
	if res.Pet != nil {
		text += fmt.Sprintf("\n🐻 %s (#%d) уже в твоей берлоге", res.Pet.Variant, res.Pet.ID)
	}
	h.sendMessage(chatID, text)
}

// HandleStats — /casestats.
func (h *Handler) HandleStats(ctx context.Context, chatID int64, acc *models.Account) {
	st, err := h.service.CaseStats(ctx, acc.ID)
	if err != nil {
		log.WithError(err).Error("Ошибка статистики кейсов")
		h.sendMessage(chatID, common.UserMessage(err))
		return
	}
	if st.Opened == 0 {
		h.sendMessage(chatID, "🎁 Ты ещё не открыл ни одного кейса: /cases")
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("📊 Открыто кейсов: %d\nПотрачено: %s\nПолучено: %s\nRTP: %s%%",
		st.Opened, common.FormatCoins(st.Spent), common.FormatCoins(st.Earned), st.RTP.StringFixed(2)))
}

func price(t *Table) string {
	if t.CostAsset == models.AssetCrypto {
		return common.FormatCrypto(t.Cost)
	}
	return common.FormatCoins(t.Cost)
}

// chance — вес в процентах с одним знаком.
func chance(weight, total int) string {
	if total <= 0 {
		return "0"
	}
	return fmt.Sprintf("%.1f", float64(weight)*100/float64(total))
}

// sendMessage — вспомогательный метод для отправки текстовых сообщений.
func (h *Handler) sendMessage(chatID int64, text string) {
	notify.Text(h.bot, chatID, text)
}
