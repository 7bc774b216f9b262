package market

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/bear-tycoon/internal/common"
	"serotonyl.ru/bear-tycoon/internal/models"
	"serotonyl.ru/bear-tycoon/internal/notify"
)

// Handler обрабатывает команды маркета: /market, /sell, /purchase, /unlist.
type Handler struct {
	service *Service
	bot     notify.Sender
	now     common.Clock
}

// NewHandler создаёт обработчик маркета.
func NewHandler(service *Service, bot notify.Sender, now common.Clock) *Handler {
	return &Handler{service: service, bot: bot, now: now}
}

// HandleList — /market: последние активные лоты.
func (h *Handler) HandleList(ctx context.Context, chatID int64) {
	lots, err := h.service.Active(ctx, 20)
	if err != nil {
		h.sendError(chatID, "market", err)
		return
	}
	if len(lots) == 0 {
		h.sendMessage(chatID, "🛒 На маркете пусто. Выставить медведя: /sell номер цена")
		return
	}

	var b strings.Builder
	b.WriteString("🛒 Лоты:\n")
	for _, l := range lots {
		fmt.Fprintf(&b, "Лот %d: медведь #%d за %s\n", l.ID, l.PetID, common.FormatCoins(l.Price))
	}
	b.WriteString("\nКупить: /purchase номер_лота")
	h.sendMessage(chatID, b.String())
}

// HandleSell — /sell 12 1500.
func (h *Handler) HandleSell(ctx context.Context, chatID int64, acc *models.Account, args []string) {
	if len(args) < 2 {
		h.sendMessage(chatID, "❌ Формат: /sell номер_медведя цена")
		return
	}
	petID, err := common.ParseID(args[0])
	if err != nil {
		h.sendMessage(chatID, common.UserMessage(err))
		return
	}
	price, err := common.ParseAmount(args[1])
	if err != nil {
		h.sendMessage(chatID, common.UserMessage(err))
		return
	}

	l, err := h.service.List(ctx, acc.ID, petID, price, h.now())
	if err != nil {
		h.sendError(chatID, "sell", err)
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("🏷 Лот %d выставлен за %s\nСнять: /unlist %d", l.ID, common.FormatCoins(l.Price), l.ID))
}

// HandleBuy — /purchase 7.
func (h *Handler) HandleBuy(ctx context.Context, chatID int64, acc *models.Account, args []string) {
	if len(args) < 1 {
		h.sendMessage(chatID, "❌ Формат: /purchase номер_лота")
		return
	}
	id, err := common.ParseID(args[0])
	if err != nil {
		h.sendMessage(chatID, common.UserMessage(err))
		return
	}

	sale, err := h.service.Buy(ctx, acc.ID, id, h.now())
	if err != nil {
		h.sendError(chatID, "purchase", err)
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("🛒 Куплен %s (#%d) за %s", sale.Pet.Variant, sale.Pet.ID, common.FormatCoins(sale.Listing.Price)))
}

// HandleCancel — /unlist 7.
func (h *Handler) HandleCancel(ctx context.Context, chatID int64, acc *models.Account, args []string) {
	if len(args) < 1 {
		h.sendMessage(chatID, "❌ Формат: /unlist номер_лота")
		return
	}
	id, err := common.ParseID(args[0])
	if err != nil {
		h.sendMessage(chatID, common.UserMessage(err))
		return
	}
	if err := h.service.Cancel(ctx, acc.ID, id); err != nil {
		h.sendError(chatID, "unlist", err)
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("🏷 Лот %d снят с продажи", id))
}

func (h *Handler) sendError(chatID int64, cmd string, err error) {
	log.WithError(err).WithField("command", cmd).Warn("Команда не выполнена")
	h.sendMessage(chatID, common.UserMessage(err))
}

// sendMessage — вспомогательный метод для отправки текстовых сообщений.
func (h *Handler) sendMessage(chatID int64, text string) {
	notify.Text(h.bot, chatID, text)
}
