// Package common — errors.go определяет доменные ошибки,
// которые используются во всех модулях экономики.
// Обработчики различают их через errors.Is / errors.As
// и показывают пользователю понятное сообщение.
package common

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Ошибки баланса и операций со счётом
var (
	// ErrInsufficientFunds — на счёте недостаточно монет или крипты
	ErrInsufficientFunds = errors.New("недостаточно средств")
	// ErrInvalidAmount — некорректная сумма (ноль или отрицательная)
	ErrInvalidAmount = errors.New("сумма должна быть положительной")
	// ErrNotFound — запись (аккаунт, питомец, лот) не найдена
	ErrNotFound = errors.New("запись не найдена")
	// ErrInvalidReferrer — пригласивший не существует или это сам пользователь
	ErrInvalidReferrer = errors.New("некорректный реферер")
	// ErrWithdrawLimit — сумма вывода больше лимита тарифа
	ErrWithdrawLimit = errors.New("превышен лимит вывода")
)

// Ошибки игровых механик
var (
	// ErrUnknownCaseTier — такого кейса нет
	ErrUnknownCaseTier = errors.New("неизвестный кейс")
	// ErrInvalidFusion — набор питомцев не подходит для слияния
	ErrInvalidFusion = errors.New("некорректное слияние")
	// ErrInvalidUpgradeTrack — такой ветки улучшений нет
	ErrInvalidUpgradeTrack = errors.New("неизвестное улучшение")
	// ErrMaxLevelReached — достигнут максимальный уровень
	ErrMaxLevelReached = errors.New("достигнут максимальный уровень")
	// ErrAlreadyClaimed — награда за сегодня уже получена
	ErrAlreadyClaimed = errors.New("награда за сегодня уже получена")
	// ErrWheelUnavailable — колесо фортуны сегодня недоступно
	ErrWheelUnavailable = errors.New("колесо фортуны недоступно")
	// ErrPetLocked — питомец превращён в коллекционный токен
	ErrPetLocked = errors.New("питомец заблокирован")
	// ErrTierLocked — уровень магазина ещё не открыт
	ErrTierLocked = errors.New("этот уровень магазина ещё закрыт")
	// ErrUnknownPlan — такого тарифа подписки нет
	ErrUnknownPlan = errors.New("неизвестный тариф")
)

// Ошибки маркета
var (
	// ErrListingClosed — лот уже продан или снят
	ErrListingClosed = errors.New("лот уже закрыт")
	// ErrSelfTrade — попытка купить собственный лот или сразиться с собой
	ErrSelfTrade = errors.New("нельзя торговать с самим собой")
	// ErrAlreadyListed — питомец уже выставлен на продажу
	ErrAlreadyListed = errors.New("питомец уже выставлен на продажу")
)

// InsufficientFundsError несёт детали нехватки средств.
// errors.Is(err, ErrInsufficientFunds) == true.
type InsufficientFundsError struct {
	Asset string
	Need  decimal.Decimal
	Have  decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("недостаточно средств (%s): нужно %s, есть %s", e.Asset, e.Need, e.Have)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// UserMessage возвращает текст ошибки для ответа в чат.
// Неизвестные ошибки не раскрываются пользователю.
func UserMessage(err error) string {
	var funds *InsufficientFundsError
	if errors.As(err, &funds) {
		need := funds.Need.String()
		if funds.Asset == "crypto" {
			return fmt.Sprintf("❌ Не хватает BRC: нужно %s, на счету %s", need, funds.Have.String())
		}
		return fmt.Sprintf("❌ Не хватает монет: нужно %s, на счету %s", need, funds.Have.String())
	}
	for _, known := range []error{
		ErrInsufficientFunds, ErrInvalidAmount, ErrNotFound, ErrInvalidReferrer, ErrWithdrawLimit,
		ErrUnknownCaseTier, ErrInvalidFusion, ErrInvalidUpgradeTrack, ErrMaxLevelReached,
		ErrAlreadyClaimed, ErrWheelUnavailable, ErrPetLocked, ErrTierLocked, ErrUnknownPlan,
		ErrListingClosed, ErrSelfTrade, ErrAlreadyListed,
	} {
		if errors.Is(err, known) {
			return "❌ " + capitalize(known.Error())
		}
	}
	return "❌ Что-то пошло не так, попробуй позже"
}

func capitalize(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
