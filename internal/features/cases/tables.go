// Package cases реализует кейсы: таблицы наград с весами и открытие кейса.
// tables.go описывает таблицы и сам розыгрыш.
package cases

import (
	"fmt"

	"github.com/shopspring/decimal"

	"serotonyl.ru/bear-tycoon/internal/models"
	"serotonyl.ru/bear-tycoon/internal/random"
)

// Entry — одна строка таблицы наград.
type Entry struct {
	Kind    models.RewardKind
	Amount  decimal.Decimal // Для монет и крипты
	PetTier models.PetTier  // Для питомца
	Rarity  string
	Weight  int
}

// Label — короткое описание награды для сообщений.
func (e Entry) Label() string {
	switch e.Kind {
	case models.RewardCrypto:
		return e.Amount.String() + " BRC"
	case models.RewardPet:
		return "питомец " + e.PetTier.String()
	default:
		return e.Amount.String() + " монет"
	}
}

// Table — кейс: цена и упорядоченный список наград.
// Порядок важен: при розыгрыше побеждает первая строка, накопленный вес
// которой >= выпавшего числа.
type Table struct {
	Tier      string
	Title     string
	CostAsset models.Asset
	Cost      decimal.Decimal
	Total     int // Объявленная сумма весов
	Entries   []Entry
}

// Weights возвращает веса строк в порядке таблицы.
func (t *Table) Weights() []int {
	w := make([]int, len(t.Entries))
	for i, e := range t.Entries {
		w[i] = e.Weight
	}
	return w
}

func coins(v int64, rarity string, weight int) Entry {
	return Entry{Kind: models.RewardCoins, Amount: decimal.NewFromInt(v), Rarity: rarity, Weight: weight}
}

func crypto(v string, rarity string, weight int) Entry {
	return Entry{Kind: models.RewardCrypto, Amount: decimal.RequireFromString(v), Rarity: rarity, Weight: weight}
}

func pet(tier models.PetTier, rarity string, weight int) Entry {
	return Entry{Kind: models.RewardPet, PetTier: tier, Rarity: rarity, Weight: weight}
}

// Редкость награды
const (
	RarityCommon    = "common"
	RarityUncommon  = "uncommon"
	RarityRare      = "rare"
	RarityEpic      = "epic"
	RarityLegendary = "legendary"
)

// Tables — все кейсы в порядке цены.
var Tables = []*Table{
	{
		Tier: "common", Title: "Обычный кейс",
		CostAsset: models.AssetCoins, Cost: decimal.NewFromInt(200), Total: 1000,
		Entries: []Entry{
			coins(50, RarityCommon, 400),
			coins(150, RarityCommon, 300),
			coins(400, RarityUncommon, 180),
			coins(1000, RarityRare, 60),
			pet(models.TierCommon, RarityRare, 50),
			crypto("0.5", RarityEpic, 9),
			pet(models.TierRare, RarityLegendary, 1),
		},
	},
	{
		Tier: "rare", Title: "Редкий кейс",
		CostAsset: models.AssetCoins, Cost: decimal.NewFromInt(1000), Total: 1000,
		Entries: []Entry{
			coins(300, RarityCommon, 400),
			coins(800, RarityCommon, 300),
			coins(2000, RarityUncommon, 150),
			pet(models.TierCommon, RarityRare, 100),
			crypto("1", RarityRare, 40),
			pet(models.TierRare, RarityEpic, 9),
			pet(models.TierEpic, RarityLegendary, 1),
		},
	},
	{
		Tier: "epic", Title: "Эпический кейс",
		CostAsset: models.AssetCoins, Cost: decimal.NewFromInt(5000), Total: 1000,
		Entries: []Entry{
			coins(1500, RarityCommon, 400),
			coins(4000, RarityCommon, 300),
			coins(10000, RarityUncommon, 150),
			pet(models.TierRare, RarityRare, 100),
			crypto("5", RarityRare, 40),
			pet(models.TierEpic, RarityEpic, 9),
			pet(models.TierLegendary, RarityLegendary, 1),
		},
	},
	{
		Tier: "legendary", Title: "Легендарный кейс",
		CostAsset: models.AssetCrypto, Cost: decimal.NewFromInt(10), Total: 1000,
		Entries: []Entry{
			coins(3000, RarityCommon, 350),
			crypto("5", RarityCommon, 300),
			crypto("12", RarityUncommon, 200),
			pet(models.TierEpic, RarityRare, 120),
			crypto("30", RarityEpic, 25),
			pet(models.TierLegendary, RarityLegendary, 5),
		},
	},
}

// Lookup находит кейс по названию.
func Lookup(tier string) (*Table, bool) {
	for _, t := range Tables {
		if t.Tier == tier {
			return t, true
		}
	}
	return nil, false
}

// Draw разыгрывает одну награду: равномерное число в [1, Total],
// затем проход по накопленным весам.
func Draw(t *Table, src random.Source) (Entry, error) {
	if got := random.Total(t.Weights()); got != t.Total {
		return Entry{}, fmt.Errorf("кейс %s: сумма весов %d, объявлено %d", t.Tier, got, t.Total)
	}
	i, err := random.Pick(t.Weights(), src.UniformInt(1, t.Total))
	if err != nil {
		return Entry{}, err
	}
	return t.Entries[i], nil
}
