package pets

import (
	"time"

	"github.com/shopspring/decimal"

	"serotonyl.ru/bear-tycoon/internal/models"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// hours переводит длительность в часы без потери точности до секунды.
func hours(d time.Duration) decimal.Decimal {
	if d <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(d / time.Second)).Div(decimal.NewFromInt(3600))
}

// Accrued — доход питомца с момента последнего сбора до now, без бонусов аккаунта.
// Копится не дольше storageCap; часть интервала под бустом умножается на множитель буста.
// Коллекционные (заблокированные) питомцы не приносят дохода.
func Accrued(p *models.Pet, now time.Time, storageCap time.Duration) decimal.Decimal {
	if p.Locked {
		return decimal.Zero
	}
	start := p.LastCollectedAt
	if earliest := now.Add(-storageCap); start.Before(earliest) {
		start = earliest
	}
	if !now.After(start) {
		return decimal.Zero
	}

	base := hours(now.Sub(start))
	total := base
	if p.BoostUntil != nil && p.BoostMultiplier.GreaterThan(one) && p.BoostUntil.After(start) {
		boostEnd := *p.BoostUntil
		if boostEnd.After(now) {
			boostEnd = now
		}
		boosted := hours(boostEnd.Sub(start))
		total = total.Add(boosted.Mul(p.BoostMultiplier.Sub(one)))
	}
	return Yield(p).Mul(total)
}

// Income — доход всех питомцев с учётом бонусов подписки и улучшения «Доход», в процентах.
func Income(owned []*models.Pet, now time.Time, storageCap time.Duration, bonusPct decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, p := range owned {
		total = total.Add(Accrued(p, now, storageCap))
	}
	return total.Mul(hundred.Add(bonusPct)).Div(hundred)
}
