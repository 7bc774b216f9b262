// Package economy — handlers.go обрабатывает команды счёта:
// /start, /balance, /exchange, /withdraw, /history, /ref.
package economy

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/bear-tycoon/internal/common"
	"serotonyl.ru/bear-tycoon/internal/models"
	"serotonyl.ru/bear-tycoon/internal/notify"
)

// Handler обрабатывает команды экономики.
type Handler struct {
	service *Service       // Сервис экономики
	bot     notify.Sender  // API Telegram для отправки ответов
	loc     *time.Location // Часовой пояс для дат в ответах
	now     common.Clock
}

// NewHandler создаёт новый обработчик команд счёта.
func NewHandler(service *Service, bot notify.Sender, loc *time.Location, now common.Clock) *Handler {
	return &Handler{service: service, bot: bot, loc: loc, now: now}
}

// HandleStart приветствует игрока. created — аккаунт только что создан.
func (h *Handler) HandleStart(ctx context.Context, chatID int64, acc *models.Account, created bool) {
	var b strings.Builder
	if created {
		fmt.Fprintf(&b, "🐻 Добро пожаловать в Bear Tycoon!\nНа старте у тебя %s.\n\n", common.FormatCoins(acc.Balance))
	} else {
		b.WriteString("🐻 С возвращением!\n\n")
	}
	b.WriteString("Покупай медведей (/shop), они приносят монеты каждый час (/collect).\n")
	b.WriteString("Кейсы: /cases. Ежедневная награда: /daily. Колесо: /wheel.\n")
	b.WriteString("10 медведей одного уровня сливаются в одного редкого: /fuse.\n\n")
	fmt.Fprintf(&b, "Твой реферальный код: %d\nДруг вводит /start %d, а ты получаешь 20%% с его покупок.", acc.ID, acc.ID)
	h.sendMessage(chatID, b.String())
}

// HandleBalance показывает балансы и подписку.
//
// Формат ответа:
//
//	💰 Баланс: 1 250 монет
//	🪙 BRC: 12.5000 BRC
func (h *Handler) HandleBalance(ctx context.Context, chatID int64, acc *models.Account) {
	fresh, err := h.service.GetAccount(ctx, acc.ID)
	if err != nil {
		log.WithError(err).WithField("account_id", acc.ID).Error("Ошибка получения баланса")
		h.sendMessage(chatID, "❌ Ошибка получения баланса")
		return
	}

	text := fmt.Sprintf("💰 Баланс: %s\n🪙 BRC: %s", common.FormatCoins(fresh.Balance), common.FormatCrypto(fresh.Crypto))
	if fresh.IsPremium && fresh.PremiumUntil != nil {
		text += "\n⭐ Подписка до " + common.FormatDateTime(*fresh.PremiumUntil, h.loc)
	}
	h.sendMessage(chatID, text)
}

// HandleExchange — /exchange 1000: монеты в BRC.
func (h *Handler) HandleExchange(ctx context.Context, chatID int64, acc *models.Account, args []string) {
	if len(args) < 1 {
		cfg := h.service.Config()
		h.sendMessage(chatID, fmt.Sprintf("❌ Формат: /exchange монеты\nКурс: 1 BRC = %s, комиссия %s%%",
			common.FormatCoins(cfg.ExchangeRate), cfg.ExchangeFeePct))
		return
	}
	amount, err := common.ParseAmount(args[0])
	if err != nil {
		h.sendMessage(chatID, common.UserMessage(err))
		return
	}

	res, err := h.service.Exchange(ctx, acc.ID, amount, h.now())
	if err != nil {
		h.sendError(chatID, "exchange", err)
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("💱 Обменяно %s на %s (комиссия %s%%)",
		common.FormatCoins(res.CoinsSpent), common.FormatCrypto(res.CryptoReceived), res.FeePct))
}

// HandleWithdraw — /withdraw 5: вывод BRC.
func (h *Handler) HandleWithdraw(ctx context.Context, chatID int64, acc *models.Account, args []string) {
	if len(args) < 1 {
		h.sendMessage(chatID, "❌ Формат: /withdraw сумма_BRC")
		return
	}
	amount, err := common.ParseAmount(args[0])
	if err != nil {
		h.sendMessage(chatID, common.UserMessage(err))
		return
	}

	res, err := h.service.Withdraw(ctx, acc.ID, amount, h.now())
	if err != nil {
		h.sendError(chatID, "withdraw", err)
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("📤 Заявка на вывод %s принята\nОстаток: %s",
		common.FormatCrypto(res.Amount), common.FormatCrypto(res.Left)))
}

// HandleHistory — последние 10 операций.
func (h *Handler) HandleHistory(ctx context.Context, chatID int64, acc *models.Account) {
	txs, err := h.service.History(ctx, acc.ID, 10)
	if err != nil {
		log.WithError(err).Error("Ошибка получения истории транзакций")
		h.sendMessage(chatID, "❌ Ошибка получения истории транзакций")
		return
	}
	if len(txs) == 0 {
		h.sendMessage(chatID, "📜 Операций пока нет")
		return
	}

	var b strings.Builder
	b.WriteString("📜 Последние операции:\n")
	for _, tr := range txs {
		unit := "монет"
		if tr.Asset == models.AssetCrypto {
			unit = "BRC"
		}
		fmt.Fprintf(&b, "%s  %s %s  %s\n", common.FormatDateTime(tr.CreatedAt, h.loc), common.FormatSigned(tr.Amount), unit, tr.Category)
	}
	h.sendMessage(chatID, b.String())
}

// HandleReferrals — заработок на рефералах по уровням.
func (h *Handler) HandleReferrals(ctx context.Context, chatID int64, acc *models.Account) {
	fresh, err := h.service.GetAccount(ctx, acc.ID)
	if err != nil {
		h.sendError(chatID, "ref", err)
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🤝 Реферальный код: %d\n", fresh.ID)
	for i, e := range fresh.ReferralEarnings {
		fmt.Fprintf(&b, "%d уровень: %s\n", i+1, common.FormatCoins(e))
	}
	fmt.Fprintf(&b, "Всего: %s", common.FormatCoins(fresh.TotalReferralEarnings()))
	h.sendMessage(chatID, b.String())
}

func (h *Handler) sendError(chatID int64, cmd string, err error) {
	log.WithError(err).WithField("command", cmd).Warn("Команда не выполнена")
	h.sendMessage(chatID, common.UserMessage(err))
}

// sendMessage — вспомогательный метод для отправки текстовых сообщений.
func (h *Handler) sendMessage(chatID int64, text string) {
	notify.Text(h.bot, chatID, text)
}
