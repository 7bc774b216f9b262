// Package economy управляет счетами игроков: монеты и крипта BRC.
// models.go описывает параметры экономики и результаты операций.
package economy

import (
	"github.com/shopspring/decimal"
)

// Config — параметры экономики (из переменных окружения).
type Config struct {
	StartingBalance decimal.Decimal // Стартовый баланс монет нового игрока
	ExchangeRate    decimal.Decimal // Сколько монет стоит 1 BRC
	ExchangeFeePct  decimal.Decimal // Комиссия обмена, %
	WithdrawLimit   decimal.Decimal // Лимит одного вывода без подписки, BRC
}

// CryptoToCoins переводит сумму BRC в монеты по курсу.
func (c Config) CryptoToCoins(crypto decimal.Decimal) decimal.Decimal {
	return crypto.Mul(c.ExchangeRate)
}

// ExchangeResult — итог обмена монет на крипту.
type ExchangeResult struct {
	CoinsSpent     decimal.Decimal
	CryptoReceived decimal.Decimal
	FeePct         decimal.Decimal // Применённая комиссия с учётом скидки подписки
}

// WithdrawResult — итог вывода крипты.
type WithdrawResult struct {
	Amount decimal.Decimal
	Limit  decimal.Decimal
	Left   decimal.Decimal // Остаток крипты
}
