// Package streak управляет ежедневными входами: серия дней, награда за день
// и колесо фортуны.
// models.go описывает статусы серии, награды и призы колеса.
package streak

import (
	"time"

	"github.com/shopspring/decimal"

	"serotonyl.ru/bear-tycoon/internal/models"
)

// Status — чем закончился вход игрока.
type Status string

const (
	StatusCreated        Status = "created"         // Первый вход, серия = 1
	StatusAlreadyClaimed Status = "already_claimed" // Сегодня уже заходил и забрал награду
	StatusPending        Status = "pending"         // Сегодня уже заходил, награда ждёт
	StatusContinued      Status = "continued"       // Вчера заходил, серия +1
	StatusReset          Status = "reset"           // Пропустил день, серия = 1
)

// Changed — изменился ли стрик (нужно ли его сохранять).
func (s Status) Changed() bool {
	return s != StatusAlreadyClaimed && s != StatusPending
}

// Reward — награда за день серии.
type Reward struct {
	Day       int
	Coins     decimal.Decimal
	Crypto    decimal.Decimal // Бонус вехи (дни 7, 14, 21, 30)
	Milestone bool
}

// ClaimResult — итог получения ежедневной награды.
type ClaimResult struct {
	Streak models.Streak
	Reward Reward // Монеты уже с бонусом улучшения «Ежедневный бонус»
	Status Status // Как изменилась серия перед получением
}

// PrizeKind — тип приза колеса фортуны.
type PrizeKind string

const (
	PrizeCoins  PrizeKind = "coins"
	PrizeCrypto PrizeKind = "crypto"
	PrizeBoost  PrizeKind = "boost"
)

// Prize — сектор колеса фортуны.
type Prize struct {
	Kind       PrizeKind
	Amount     decimal.Decimal // Монеты или крипта
	Multiplier decimal.Decimal // Для буста
	Duration   time.Duration   // Для буста
	Weight     int
}

// WheelResult — итог вращения колеса.
type WheelResult struct {
	Prize Prize
	// Доход, собранный перед включением буста (только для PrizeBoost)
	Collected decimal.Decimal
}
