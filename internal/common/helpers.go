// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: русская плюрализация, форматирование сумм, работа с календарными днями.
package common

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Clock возвращает текущее время. Сервисы получают его снаружи,
// чтобы тесты могли зафиксировать «сейчас».
type Clock func() time.Time

// SystemClock — реальные часы.
func SystemClock() time.Time {
	return time.Now().UTC()
}

// LoadLocation загружает часовой пояс игры.
// Если tzdata недоступна — для Europe/Moscow используем UTC+3 вручную, иначе UTC.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err == nil {
		return loc
	}
	if name == "Europe/Moscow" {
		return time.FixedZone("MSK", 3*60*60)
	}
	return time.UTC
}

// DayStart возвращает полночь календарного дня t в часовом поясе loc.
func DayStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DaysBetween — сколько календарных дней прошло от from до to (в поясе loc).
// Тот же день → 0, вчера → 1. Считаем по датам, а не по 24-часовым интервалам,
// поэтому переход на летнее время ничего не ломает.
func DaysBetween(from, to time.Time, loc *time.Location) int {
	a := DayStart(from, loc)
	b := DayStart(to, loc)
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// SameDay проверяет, что два момента попадают в один календарный день.
func SameDay(a, b time.Time, loc *time.Location) bool {
	return DaysBetween(a, b, loc) == 0
}

// Coins округляет сумму монет до двух знаков (вниз).
func Coins(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(2)
}

// Crypto округляет сумму крипты до четырёх знаков (вниз).
func Crypto(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(4)
}

// Percent возвращает d * pct / 100.
func Percent(d, pct decimal.Decimal) decimal.Decimal {
	return d.Mul(pct).Div(decimal.NewFromInt(100))
}

// PluralizeCoins возвращает правильную форму слова «монета» для числа n.
//
// Правила русского языка:
//   - n%10==1 И n%100!=11 → "монета" (1, 21, 31, 101, ...)
//   - n%10 в [2,3,4] И n%100 НЕ в [12,13,14] → "монеты" (2, 3, 4, 22, 23, ...)
//   - Остальные случаи → "монет" (0, 5-20, 25-30, 100, ...)
func PluralizeCoins(n int64) string {
	absN := int64(math.Abs(float64(n)))
	lastDigit := absN % 10
	lastTwoDigits := absN % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return "монета"
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return "монеты"
	}
	return "монет"
}

// PluralizeDays возвращает правильную форму слова «день» для числа n.
func PluralizeDays(n int) string {
	absN := int(math.Abs(float64(n)))
	lastDigit := absN % 10
	lastTwoDigits := absN % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return "день"
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return "дня"
	}
	return "дней"
}

// FormatDateTime форматирует время в формат "02.01.2006 15:04" в поясе loc.
func FormatDateTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("02.01.2006 15:04")
}

// ParseAmount разбирает сумму из аргумента команды. Принимает «1,5» и «1.5».
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", "."))
	if err != nil || !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParseID разбирает числовой ID из аргумента команды («#12» или «12»).
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(s), "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrNotFound
	}
	return id, nil
}
