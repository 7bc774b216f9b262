package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PetTier — редкость питомца. Порядок важен: common < rare < epic < legendary.
type PetTier int

const (
	TierCommon PetTier = iota
	TierRare
	TierEpic
	TierLegendary
)

var tierNames = [...]string{"common", "rare", "epic", "legendary"}

func (t PetTier) String() string {
	if t < TierCommon || t > TierLegendary {
		return fmt.Sprintf("tier(%d)", int(t))
	}
	return tierNames[t]
}

// Valid проверяет, что уровень известен.
func (t PetTier) Valid() bool {
	return t >= TierCommon && t <= TierLegendary
}

// Next возвращает следующий уровень. У legendary следующего нет.
func (t PetTier) Next() (PetTier, bool) {
	if !t.Valid() || t == TierLegendary {
		return t, false
	}
	return t + 1, true
}

// ParseTier разбирает название уровня ("rare", "Epic").
func ParseTier(s string) (PetTier, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range tierNames {
		if name == s {
			return PetTier(i), true
		}
	}
	return 0, false
}

// Pet — медведь, который приносит монеты каждый час.
type Pet struct {
	ID              int64           `db:"id"`
	OwnerID         int64           `db:"owner_id"`
	Tier            PetTier         `db:"tier"`
	Variant         string          `db:"variant"`           // Название разновидности ("Панда")
	Level           int             `db:"level"`             // 1..MaxPetLevel
	BaseYield       decimal.Decimal `db:"base_yield"`        // Монет в час на 1-м уровне
	BoostMultiplier decimal.Decimal `db:"boost_multiplier"`  // Множитель буста (1 — без буста)
	BoostUntil      *time.Time      `db:"boost_until"`       // До какого момента действует буст
	LastCollectedAt time.Time       `db:"last_collected_at"` // С какого момента копится доход
	Locked          bool            `db:"locked"`            // Превращён в коллекционный токен
	TokenID         string          `db:"token_id"`          // Хэш токена (пусто, пока не заблокирован)
	CreatedAt       time.Time       `db:"created_at"`
}
