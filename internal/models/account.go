// Package models описывает сущности игровой экономики, общие для всех фич:
// аккаунты, питомцев, журнал транзакций, стрики, подписки и лоты маркета.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Asset — валюта счёта.
type Asset string

const (
	AssetCoins  Asset = "coins"  // Игровые монеты (2 знака после запятой)
	AssetCrypto Asset = "crypto" // Крипто-актив BRC (4 знака после запятой)
)

// ReferralTiers — глубина реферальной цепочки.
const ReferralTiers = 3

// Account представляет игрока.
// Создаётся при первом контакте с ботом и никогда не удаляется.
type Account struct {
	ID           int64           `db:"id"`            // Внутренний ID (единственный ключ для связей)
	ChatID       int64           `db:"chat_id"`       // Telegram chat ID (уникальный)
	Username     string          `db:"username"`      // @username (может быть пустым)
	Balance      decimal.Decimal `db:"balance"`       // Монеты
	Crypto       decimal.Decimal `db:"crypto"`        // Крипто-баланс
	IsPremium    bool            `db:"is_premium"`    // Активна ли подписка
	PremiumUntil *time.Time      `db:"premium_until"` // До какого момента активна подписка
	ReferrerID   *int64          `db:"referrer_id"`   // Кто пригласил (внутренний ID)
	// Заработано на рефералах по уровням: [0] — прямые, [1] — второй, [2] — третий уровень
	ReferralEarnings [ReferralTiers]decimal.Decimal `db:"-"`
	CreatedAt        time.Time                      `db:"created_at"`
	UpdatedAt        time.Time                      `db:"updated_at"`
}

// BalanceOf возвращает баланс указанной валюты.
func (a *Account) BalanceOf(asset Asset) decimal.Decimal {
	if asset == AssetCrypto {
		return a.Crypto
	}
	return a.Balance
}

// Adjust изменяет баланс указанной валюты на delta (со знаком).
func (a *Account) Adjust(asset Asset, delta decimal.Decimal) {
	if asset == AssetCrypto {
		a.Crypto = a.Crypto.Add(delta)
		return
	}
	a.Balance = a.Balance.Add(delta)
}

// TotalReferralEarnings — сколько всего заработано на рефералах.
func (a *Account) TotalReferralEarnings() decimal.Decimal {
	total := decimal.Zero
	for _, e := range a.ReferralEarnings {
		total = total.Add(e)
	}
	return total
}
