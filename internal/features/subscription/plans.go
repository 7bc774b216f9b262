// Package subscription — премиум-подписки: покупка, продление, автопродление
// и отключение привилегий по истечении.
// plans.go описывает тарифы.
package subscription

import (
	"time"

	"github.com/shopspring/decimal"
)

// Period — срок одной оплаты подписки.
const Period = 30 * 24 * time.Hour

// Plan — тариф подписки. Цена в BRC.
type Plan struct {
	Tier            string
	Title           string
	Price           decimal.Decimal
	IncomeBonusPct  decimal.Decimal
	FeeReductionPct decimal.Decimal
	WithdrawLimit   decimal.Decimal
}

// Plans — тарифы от младшего к старшему.
var Plans = []Plan{
	{
		Tier:            "premium",
		Title:           "Премиум",
		Price:           decimal.NewFromInt(100),
		IncomeBonusPct:  decimal.NewFromInt(10),
		FeeReductionPct: decimal.NewFromInt(25),
		WithdrawLimit:   decimal.NewFromInt(500),
	},
	{
		Tier:            "vip",
		Title:           "VIP",
		Price:           decimal.NewFromInt(250),
		IncomeBonusPct:  decimal.NewFromInt(25),
		FeeReductionPct: decimal.NewFromInt(50),
		WithdrawLimit:   decimal.NewFromInt(2000),
	},
	{
		Tier:            "platinum",
		Title:           "Платинум",
		Price:           decimal.NewFromInt(600),
		IncomeBonusPct:  decimal.NewFromInt(50),
		FeeReductionPct: decimal.NewFromInt(100),
		WithdrawLimit:   decimal.NewFromInt(10000),
	},
}

// Lookup находит тариф по названию.
func Lookup(tier string) (Plan, bool) {
	for _, p := range Plans {
		if p.Tier == tier {
			return p, true
		}
	}
	return Plan{}, false
}

// SweepResult — итог одного прохода проверки подписок.
type SweepResult struct {
	Checked int
	Renewed int
	Expired int
	Failed  int
}
