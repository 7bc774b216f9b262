// Package testkit — общие помощники для тестов сервисов:
// хранилище в памяти, готовые аккаунты и питомцы, проверка журнала.
package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"serotonyl.ru/bear-tycoon/internal/db"
	"serotonyl.ru/bear-tycoon/internal/db/memory"
	"serotonyl.ru/bear-tycoon/internal/models"
)

// Now — фиксированное «сейчас» для тестов (полдень по Москве).
var Now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

// MSK — часовой пояс игры в тестах.
var MSK = time.FixedZone("MSK", 3*60*60)

// NewStore возвращает пустое хранилище в памяти.
func NewStore() *memory.Store {
	return memory.New()
}

// D — короткая запись decimal из строки.
func D(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Account создаёт аккаунт с заданными балансами. Балансы проводятся
// через журнал (welcome_bonus), чтобы сумма журнала совпадала с балансом.
func Account(t testing.TB, store db.Store, chatID int64, coins, crypto string, referrerID *int64) *models.Account {
	t.Helper()
	ctx := context.Background()
	acc := &models.Account{
		ChatID:     chatID,
		Username:   "user",
		Balance:    D(coins),
		Crypto:     D(crypto),
		ReferrerID: referrerID,
		CreatedAt:  Now,
	}
	err := store.WithTx(ctx, func(tx db.Tx) error {
		if err := tx.CreateAccount(ctx, acc); err != nil {
			return err
		}
		for asset, amount := range map[models.Asset]decimal.Decimal{
			models.AssetCoins:  acc.Balance,
			models.AssetCrypto: acc.Crypto,
		} {
			if amount.IsZero() {
				continue
			}
			if err := tx.AppendTransaction(ctx, &models.Transaction{
				AccountID: acc.ID, Asset: asset, Amount: amount, Category: models.TxWelcomeBonus, CreatedAt: Now,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return acc
}

// Reload перечитывает аккаунт из хранилища.
func Reload(t testing.TB, store db.Store, id int64) *models.Account {
	t.Helper()
	ctx := context.Background()
	var acc *models.Account
	err := store.WithTx(ctx, func(tx db.Tx) error {
		var err error
		acc, err = tx.GetAccount(ctx, id)
		return err
	})
	if err != nil {
		t.Fatalf("reload account %d: %v", id, err)
	}
	return acc
}

// Pets создаёт n питомцев уровня tier у владельца.
func Pets(t testing.TB, store db.Store, ownerID int64, tier models.PetTier, n int) []*models.Pet {
	t.Helper()
	ctx := context.Background()
	out := make([]*models.Pet, 0, n)
	err := store.WithTx(ctx, func(tx db.Tx) error {
		for i := 0; i < n; i++ {
			p := &models.Pet{
				OwnerID:         ownerID,
				Tier:            tier,
				Variant:         "Тестовый медведь",
				Level:           1,
				BaseYield:       decimal.NewFromInt(10),
				BoostMultiplier: decimal.NewFromInt(1),
				LastCollectedAt: Now,
				CreatedAt:       Now,
			}
			if err := tx.CreatePet(ctx, p); err != nil {
				return err
			}
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("create pets: %v", err)
	}
	return out
}

// PetIDs возвращает ID питомцев.
func PetIDs(pets []*models.Pet) []int64 {
	ids := make([]int64, len(pets))
	for i, p := range pets {
		ids[i] = p.ID
	}
	return ids
}

// ListPets возвращает питомцев владельца.
func ListPets(t testing.TB, store db.Store, ownerID int64) []*models.Pet {
	t.Helper()
	ctx := context.Background()
	var out []*models.Pet
	err := store.WithTx(ctx, func(tx db.Tx) error {
		var err error
		out, err = tx.ListPets(ctx, ownerID)
		return err
	})
	if err != nil {
		t.Fatalf("list pets: %v", err)
	}
	return out
}

// Transactions возвращает журнал аккаунта (новые первыми).
func Transactions(t testing.TB, store db.Store, accountID int64) []*models.Transaction {
	t.Helper()
	ctx := context.Background()
	var out []*models.Transaction
	err := store.WithTx(ctx, func(tx db.Tx) error {
		var err error
		out, err = tx.ListTransactions(ctx, accountID, 0)
		return err
	})
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	return out
}

// AssertBalance сравнивает баланс валюты с ожидаемым.
func AssertBalance(t testing.TB, store db.Store, id int64, asset models.Asset, want string) {
	t.Helper()
	got := Reload(t, store, id).BalanceOf(asset)
	if !got.Equal(D(want)) {
		t.Fatalf("account %d %s balance = %s, want %s", id, asset, got, want)
	}
}

// AssertLedgerBalanced проверяет, что сумма журнала равна балансу по каждой валюте.
func AssertLedgerBalanced(t testing.TB, store db.Store, id int64) {
	t.Helper()
	ctx := context.Background()
	acc := Reload(t, store, id)
	_ = store.WithTx(ctx, func(tx db.Tx) error {
		for _, asset := range []models.Asset{models.AssetCoins, models.AssetCrypto} {
			sum, err := tx.SumTransactions(ctx, id, asset)
			if err != nil {
				t.Fatalf("sum transactions: %v", err)
			}
			if !sum.Equal(acc.BalanceOf(asset)) {
				t.Fatalf("account %d %s: ledger sum %s != balance %s", id, asset, sum, acc.BalanceOf(asset))
			}
		}
		return nil
	})
}

// CountCategory — сколько записей журнала с категорией category.
func CountCategory(txs []*models.Transaction, category string) int {
	n := 0
	for _, tr := range txs {
		if tr.Category == category {
			n++
		}
	}
	return n
}
