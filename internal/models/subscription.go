package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubscriptionStatus — статус подписки.
type SubscriptionStatus string

const (
	SubscriptionActive  SubscriptionStatus = "active"
	SubscriptionExpired SubscriptionStatus = "expired"
)

// Subscription — премиум-подписка. Не больше одной строки на аккаунт:
// повторная покупка перезаписывает строку.
type Subscription struct {
	ID              int64              `db:"id"`
	AccountID       int64              `db:"account_id"`
	Tier            string             `db:"tier"`
	IncomeBonusPct  decimal.Decimal    `db:"income_bonus_pct"`  // +% к доходу питомцев
	FeeReductionPct decimal.Decimal    `db:"fee_reduction_pct"` // Скидка на комиссии, %
	WithdrawLimit   decimal.Decimal    `db:"withdraw_limit"`    // Лимит вывода за раз
	Status          SubscriptionStatus `db:"status"`
	StartedAt       time.Time          `db:"started_at"`
	ExpiresAt       time.Time          `db:"expires_at"`
	AutoRenew       bool               `db:"auto_renew"`
	UpdatedAt       time.Time          `db:"updated_at"`
}

// Benefits — действующие привилегии аккаунта.
type Benefits struct {
	Tier            string
	IncomeBonusPct  decimal.Decimal
	FeeReductionPct decimal.Decimal
	WithdrawLimit   decimal.Decimal // Ноль — лимита тарифа нет, действует лимит по умолчанию
}

// ActiveAt проверяет, что подписка действует в момент now.
func (s *Subscription) ActiveAt(now time.Time) bool {
	return s != nil && s.Status == SubscriptionActive && now.Before(s.ExpiresAt)
}

// BenefitsAt возвращает привилегии подписки в момент now.
// Для отсутствующей или истёкшей подписки — нулевые значения.
func (s *Subscription) BenefitsAt(now time.Time) Benefits {
	if !s.ActiveAt(now) {
		return Benefits{}
	}
	return Benefits{
		Tier:            s.Tier,
		IncomeBonusPct:  s.IncomeBonusPct,
		FeeReductionPct: s.FeeReductionPct,
		WithdrawLimit:   s.WithdrawLimit,
	}
}
