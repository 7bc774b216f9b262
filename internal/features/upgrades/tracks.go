// Package upgrades — ветки улучшений аккаунта.
// tracks.go описывает ветки, формулу стоимости и эффекты. Всё здесь — чистые функции.
package upgrades

import (
	"time"

	"github.com/shopspring/decimal"

	"serotonyl.ru/bear-tycoon/internal/models"
)

// Ветки улучшений
const (
	TrackIncome     = "income"      // +% к доходу питомцев
	TrackStorage    = "storage"     // Сколько часов копится доход офлайн
	TrackDailyBonus = "daily_bonus" // +монет к ежедневной награде
	TrackShop       = "shop"        // Открывает уровни магазина питомцев
)

// EffectKind — тип эффекта ветки.
type EffectKind string

const (
	EffectPercent EffectKind = "percent"
	EffectTime    EffectKind = "time"
	EffectFlat    EffectKind = "flat"
	EffectTier    EffectKind = "tier"
)

// Track — описание ветки.
type Track struct {
	ID         string
	Title      string
	Kind       EffectKind
	MaxLevel   int
	BaseCost   decimal.Decimal
	Multiplier decimal.Decimal
}

// Tracks — все ветки в порядке показа.
var Tracks = []Track{
	{ID: TrackIncome, Title: "Доход", Kind: EffectPercent, MaxLevel: 20, BaseCost: decimal.NewFromInt(500), Multiplier: decimal.RequireFromString("1.5")},
	{ID: TrackStorage, Title: "Хранилище", Kind: EffectTime, MaxLevel: 21, BaseCost: decimal.NewFromInt(300), Multiplier: decimal.RequireFromString("1.4")},
	{ID: TrackDailyBonus, Title: "Ежедневный бонус", Kind: EffectFlat, MaxLevel: 10, BaseCost: decimal.NewFromInt(1000), Multiplier: decimal.RequireFromString("1.8")},
	{ID: TrackShop, Title: "Магазин", Kind: EffectTier, MaxLevel: 2, BaseCost: decimal.NewFromInt(10000), Multiplier: decimal.NewFromInt(5)},
}

// Lookup ищет ветку по ID.
func Lookup(id string) (Track, bool) {
	for _, t := range Tracks {
		if t.ID == id {
			return t, true
		}
	}
	return Track{}, false
}

// Cost — цена перехода с уровня level на level+1: floor(base * multiplier^level).
// Степень считается умножением в decimal, без потери точности.
func (t Track) Cost(level int) decimal.Decimal {
	cost := t.BaseCost
	for i := 0; i < level; i++ {
		cost = cost.Mul(t.Multiplier)
	}
	return cost.Floor()
}

// Effect — значение эффекта ветки на уровне. Заполнено поле, соответствующее Kind.
type Effect struct {
	Kind     EffectKind
	Percent  decimal.Decimal
	Duration time.Duration
	Flat     decimal.Decimal
	MaxTier  models.PetTier
}

// EffectOf возвращает эффект ветки на уровне level (уровень обрезается до [0, MaxLevel]).
func EffectOf(trackID string, level int) (Effect, bool) {
	t, ok := Lookup(trackID)
	if !ok {
		return Effect{}, false
	}
	level = max(0, min(level, t.MaxLevel))

	e := Effect{Kind: t.Kind}
	switch t.ID {
	case TrackIncome:
		e.Percent = decimal.NewFromInt(int64(5 * level))
	case TrackStorage:
		e.Duration = 3*time.Hour + time.Duration(level)*time.Hour
	case TrackDailyBonus:
		e.Flat = decimal.NewFromInt(int64(50 * level))
	case TrackShop:
		e.MaxTier = models.TierCommon + models.PetTier(level)
	}
	return e, true
}

// Levels — уровни аккаунта по веткам с удобными геттерами эффектов.
type Levels map[string]int

// IncomeBonusPct — бонус к доходу питомцев, %.
func (l Levels) IncomeBonusPct() decimal.Decimal {
	e, _ := EffectOf(TrackIncome, l[TrackIncome])
	return e.Percent
}

// StorageCap — максимум времени, за который копится доход.
func (l Levels) StorageCap() time.Duration {
	e, _ := EffectOf(TrackStorage, l[TrackStorage])
	return e.Duration
}

// DailyBonus — надбавка к ежедневной награде в монетах.
func (l Levels) DailyBonus() decimal.Decimal {
	e, _ := EffectOf(TrackDailyBonus, l[TrackDailyBonus])
	return e.Flat
}

// ShopMaxTier — старший уровень питомцев, доступный в магазине.
func (l Levels) ShopMaxTier() models.PetTier {
	e, _ := EffectOf(TrackShop, l[TrackShop])
	return e.MaxTier
}
