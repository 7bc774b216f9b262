package notify

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"serotonyl.ru/bear-tycoon/internal/common"
	"serotonyl.ru/bear-tycoon/internal/events"
)

// Wanted — нужно ли уведомлять игрока о событии.
// Остальные события игрок видит в ответе на свою команду.
func Wanted(ev events.Event) bool {
	switch ev.Type {
	case events.ReferralPaid,
		events.SubscriptionRenewed,
		events.SubscriptionExpired,
		events.SubscriptionExpiring,
		events.MarketSale:
		return true
	case events.BattleFinished:
		return ev.Data["challenger"] != "true"
	}
	return false
}

// Format строит текст уведомления. ok=false — событие не уведомляется.
func Format(ev events.Event, loc *time.Location) (text string, ok bool) {
	if !Wanted(ev) {
		return "", false
	}
	d := ev.Data

	switch ev.Type {
	case events.ReferralPaid:
		return fmt.Sprintf("🤝 Реферал %s уровня принёс тебе %s",
			d["tier"], common.FormatCoins(amount(d["amount"]))), true

	case events.SubscriptionRenewed:
		return fmt.Sprintf("🔁 Подписка %s продлена до %s",
			d["tier"], formatTime(d["expires_at"], loc)), true

	case events.SubscriptionExpired:
		return fmt.Sprintf("⌛ Подписка %s закончилась. Оформить снова: /sub %s", d["tier"], d["tier"]), true

	case events.SubscriptionExpiring:
		text = fmt.Sprintf("⏰ Подписка %s заканчивается %s", d["tier"], formatTime(d["expires_at"], loc))
		if d["auto_renew"] == "true" {
			text += "\nПродлим автоматически, если хватит BRC на счету"
		} else {
			text += "\nАвтопродление выключено: /sub auto on"
		}
		return text, true

	case events.MarketSale:
		return fmt.Sprintf("🛒 %s продан за %s\nТебе начислено %s",
			d["variant"], common.FormatCoins(amount(d["price"])), common.FormatCoins(amount(d["gets"]))), true

	case events.BattleFinished:
		stake := common.FormatCoins(amount(d["stake"]))
		if d["won"] == "true" {
			return fmt.Sprintf("⚔️ Тебя вызвали на бой, и ты победил! +%s", stake), true
		}
		return fmt.Sprintf("⚔️ Тебя вызвали на бой, и ты проиграл. -%s", stake), true
	}
	return "", false
}

func amount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func formatTime(s string, loc *time.Location) string {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return common.FormatDateTime(t, loc)
}
