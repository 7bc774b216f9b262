// Package common — pluralize.go форматирует суммы для сообщений бота.
// Основная логика плюрализации реализована в helpers.go.
package common

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FormatCoins создаёт строку вида "1 250 монет" или "12.5 монет".
// Дробные суммы всегда склоняются как «монет».
func FormatCoins(amount decimal.Decimal) string {
	if amount.IsInteger() {
		n := amount.IntPart()
		return fmt.Sprintf("%s %s", FormatNumber(n), PluralizeCoins(n))
	}
	return fmt.Sprintf("%s монет", amount.StringFixed(2))
}

// FormatCrypto создаёт строку вида "12.5000 BRC".
func FormatCrypto(amount decimal.Decimal) string {
	return amount.StringFixed(4) + " BRC"
}

// FormatSigned добавляет «+» к неотрицательной сумме.
//
// Примеры:
//
//	FormatSigned(100)  → "+100"
//	FormatSigned(-50)  → "-50"
func FormatSigned(amount decimal.Decimal) string {
	if amount.Sign() >= 0 {
		return "+" + amount.String()
	}
	return amount.String()
}

// FormatNumber форматирует число с разделителями тысяч (пробелами).
// Пример: FormatNumber(2350) → "2 350"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}

	// Рекурсивно добавляем разделители
	rest := n / 1000
	last := n % 1000
	return fmt.Sprintf("%s %03d", FormatNumber(rest), last)
}
