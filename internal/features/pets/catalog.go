// Package pets — медведи, которые приносят монеты каждый час.
// catalog.go: разновидности, базовый доход и цены магазина по уровням редкости.
package pets

import (
	"github.com/shopspring/decimal"

	"serotonyl.ru/bear-tycoon/internal/models"
)

// MaxLevel — максимальный уровень питомца.
const MaxLevel = 25

type tierInfo struct {
	variants  []string
	baseYield decimal.Decimal // монет в час на 1-м уровне
	price     decimal.Decimal // цена в магазине (legendary не продаётся, это оценка)
	forSale   bool
}

var catalog = map[models.PetTier]tierInfo{
	models.TierCommon: {
		variants:  []string{"Бурый медведь", "Гризли", "Барибал"},
		baseYield: decimal.NewFromInt(10),
		price:     decimal.NewFromInt(1000),
		forSale:   true,
	},
	models.TierRare: {
		variants:  []string{"Белый медведь", "Панда", "Губач"},
		baseYield: decimal.NewFromInt(60),
		price:     decimal.NewFromInt(5000),
		forSale:   true,
	},
	models.TierEpic: {
		variants:  []string{"Медведь-воин", "Космический медведь"},
		baseYield: decimal.NewFromInt(350),
		price:     decimal.NewFromInt(25000),
		forSale:   true,
	},
	models.TierLegendary: {
		variants:  []string{"Золотой медведь", "Медведь-император"},
		baseYield: decimal.NewFromInt(2000),
		price:     decimal.NewFromInt(125000),
	},
}

// Variants — разновидности уровня редкости.
func Variants(tier models.PetTier) []string {
	return catalog[tier].variants
}

// BaseYield — доход в час питомца 1-го уровня.
func BaseYield(tier models.PetTier) decimal.Decimal {
	return catalog[tier].baseYield
}

// ShopPrice — цена в магазине. ok=false, если уровень не продаётся.
func ShopPrice(tier models.PetTier) (decimal.Decimal, bool) {
	info, found := catalog[tier]
	return info.price, found && info.forSale
}

// Value — оценка питомца в монетах (для статистики кейсов и стоимости прокачки).
func Value(tier models.PetTier) decimal.Decimal {
	return catalog[tier].price
}

// Yield — доход в час с учётом уровня: +10% за каждый уровень после первого.
func Yield(p *models.Pet) decimal.Decimal {
	level := max(p.Level, 1)
	factor := decimal.NewFromInt(int64(level - 1)).Mul(decimal.RequireFromString("0.1")).Add(decimal.NewFromInt(1))
	return p.BaseYield.Mul(factor)
}

// LevelUpCost — цена перехода с level на level+1: floor(value * 0.5 * 1.5^(level-1)).
func LevelUpCost(tier models.PetTier, level int) decimal.Decimal {
	cost := Value(tier).Mul(decimal.RequireFromString("0.5"))
	mult := decimal.RequireFromString("1.5")
	for i := 1; i < level; i++ {
		cost = cost.Mul(mult)
	}
	return cost.Floor()
}

// Power — сила владельца в бою: сумма дохода всех питомцев, минимум 1.
func Power(owned []*models.Pet) decimal.Decimal {
	total := decimal.Zero
	for _, p := range owned {
		total = total.Add(Yield(p))
	}
	if total.LessThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return total
}
