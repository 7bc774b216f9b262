// Package streak — handlers.go обрабатывает команды /daily, /wheel и /streak.
package streak

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/bear-tycoon/internal/common"
	"serotonyl.ru/bear-tycoon/internal/models"
	"serotonyl.ru/bear-tycoon/internal/notify"
)

// Handler обрабатывает команды ежедневных наград.
type Handler struct {
	service *Service
	bot     notify.Sender
	now     common.Clock
}

// NewHandler создаёт обработчик команд серии.
func NewHandler(service *Service, bot notify.Sender, now common.Clock) *Handler {
	return &Handler{service: service, bot: bot, now: now}
}

// HandleDaily — /daily: награда за день серии.
//
// Формат ответа:
//
//	🔥 День 7 из 30
//	+400 монет, +1.0000 BRC (веха!)
func (h *Handler) HandleDaily(ctx context.Context, chatID int64, acc *models.Account) {
	res, err := h.service.Claim(ctx, acc.ID, h.now())
	if errors.Is(err, common.ErrAlreadyClaimed) {
		h.sendMessage(chatID, "⏳ Награда за сегодня уже получена. Приходи завтра!\nА колесо фортуны уже ждёт: /wheel")
		return
	}
	if err != nil {
		log.WithError(err).WithField("account_id", acc.ID).Error("Ошибка выдачи награды дня")
		h.sendMessage(chatID, common.UserMessage(err))
		return
	}

	var b strings.Builder
	if res.Status == StatusReset {
		b.WriteString("💨 Серия прервалась, начинаем заново\n")
	}
	fmt.Fprintf(&b, "🔥 День %d из %d\n+%s", res.Streak.Day, models.StreakCycle, common.FormatCoins(res.Reward.Coins))
	if res.Reward.Milestone {
		fmt.Fprintf(&b, ", +%s (веха!)", common.FormatCrypto(res.Reward.Crypto))
	}
	b.WriteString("\n🎡 Теперь можно крутить колесо: /wheel")
	h.sendMessage(chatID, b.String())
}

// HandleWheel — /wheel: колесо фортуны.
func (h *Handler) HandleWheel(ctx context.Context, chatID int64, acc *models.Account) {
	res, err := h.service.SpinWheel(ctx, acc.ID, h.now())
	if errors.Is(err, common.ErrWheelUnavailable) {
		h.sendMessage(chatID, "🎡 Колесо доступно раз в день после /daily")
		return
	}
	if err != nil {
		log.WithError(err).WithField("account_id", acc.ID).Error("Ошибка колеса фортуны")
		h.sendMessage(chatID, common.UserMessage(err))
		return
	}

	switch res.Prize.Kind {
	case PrizeCoins:
		h.sendMessage(chatID, "🎡 Выпало: "+common.FormatCoins(res.Prize.Amount))
	case PrizeCrypto:
		h.sendMessage(chatID, "🎡 Выпало: "+common.FormatCrypto(res.Prize.Amount))
	case PrizeBoost:
		text := fmt.Sprintf("🎡 Выпал буст x%s на %s для всех медведей!", res.Prize.Multiplier, res.Prize.Duration)
		if res.Collected.IsPositive() {
			text += "\nНакопленный доход собран: +" + common.FormatCoins(res.Collected)
		}
		h.sendMessage(chatID, text)
	}
}

// HandleStreak — /streak: состояние серии.
func (h *Handler) HandleStreak(ctx context.Context, chatID int64, acc *models.Account) {
	rec, err := h.service.Get(ctx, acc.ID)
	if errors.Is(err, common.ErrNotFound) {
		h.sendMessage(chatID, "🔥 Серия ещё не началась. Забери первую награду: /daily")
		return
	}
	if err != nil {
		log.WithError(err).Error("Ошибка получения серии")
		h.sendMessage(chatID, common.UserMessage(err))
		return
	}

	claimed := "ждёт: /daily"
	if rec.ClaimedToday && rec.LastClaimAt != nil && common.SameDay(*rec.LastClaimAt, h.now(), h.service.loc) {
		claimed = "получена"
	}
	next := rec.Day%models.StreakCycle + 1
	reward, _ := RewardFor(next)
	h.sendMessage(chatID, fmt.Sprintf("🔥 Серия: %d %s\nВсего входов: %d\nНаграда за сегодня %s\nЗавтра: %s",
		rec.Day, common.PluralizeDays(rec.Day), rec.TotalLogins, claimed, common.FormatCoins(reward.Coins)))
}

// sendMessage — вспомогательный метод для отправки текстовых сообщений.
func (h *Handler) sendMessage(chatID int64, text string) {
	notify.Text(h.bot, chatID, text)
}
