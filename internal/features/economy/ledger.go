// Package economy — ledger.go: единственный способ изменить баланс.
// Каждое начисление и списание пишет запись в журнал транзакций,
// поэтому сумма журнала по валюте всегда равна балансу.
package economy

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"serotonyl.ru/bear-tycoon/internal/common"
	"serotonyl.ru/bear-tycoon/internal/db"
	"serotonyl.ru/bear-tycoon/internal/models"
)

// Round приводит сумму к точности валюты: монеты — 2 знака, крипта — 4 (вниз).
func Round(asset models.Asset, amount decimal.Decimal) decimal.Decimal {
	if asset == models.AssetCrypto {
		return common.Crypto(amount)
	}
	return common.Coins(amount)
}

// Credit начисляет amount на счёт acc. acc должен быть получен через LockAccount
// в этой же транзакции. Нулевая сумма после округления ничего не делает.
func Credit(ctx context.Context, tx db.Tx, acc *models.Account, asset models.Asset, amount decimal.Decimal, category, note string, now time.Time) error {
	amount = Round(asset, amount)
	if amount.IsNegative() {
		return common.ErrInvalidAmount
	}
	if amount.IsZero() {
		return nil
	}
	return apply(ctx, tx, acc, asset, amount, category, note, now)
}

// Debit списывает amount со счёта acc. При нехватке средств возвращает
// *common.InsufficientFundsError и ничего не меняет.
func Debit(ctx context.Context, tx db.Tx, acc *models.Account, asset models.Asset, amount decimal.Decimal, category, note string, now time.Time) error {
	amount = Round(asset, amount)
	if !amount.IsPositive() {
		return common.ErrInvalidAmount
	}
	if err := EnsureFunds(acc, asset, amount); err != nil {
		return err
	}
	return apply(ctx, tx, acc, asset, amount.Neg(), category, note, now)
}

// EnsureFunds проверяет, что на счёте есть amount.
func EnsureFunds(acc *models.Account, asset models.Asset, amount decimal.Decimal) error {
	have := acc.BalanceOf(asset)
	if have.LessThan(amount) {
		return &common.InsufficientFundsError{Asset: string(asset), Need: amount, Have: have}
	}
	return nil
}

func apply(ctx context.Context, tx db.Tx, acc *models.Account, asset models.Asset, delta decimal.Decimal, category, note string, now time.Time) error {
	acc.Adjust(asset, delta)
	if err := tx.UpdateAccount(ctx, acc); err != nil {
		acc.Adjust(asset, delta.Neg())
		return fmt.Errorf("ошибка обновления баланса: %w", err)
	}
	err := tx.AppendTransaction(ctx, &models.Transaction{
		AccountID: acc.ID,
		Asset:     asset,
		Amount:    delta,
		Category:  category,
		Note:      note,
		CreatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("ошибка записи транзакции: %w", err)
	}
	return nil
}
