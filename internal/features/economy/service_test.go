package economy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"serotonyl.ru/bear-tycoon/internal/common"
	"serotonyl.ru/bear-tycoon/internal/db"
	"serotonyl.ru/bear-tycoon/internal/lock"
	"serotonyl.ru/bear-tycoon/internal/models"
	"serotonyl.ru/bear-tycoon/internal/testkit"
)

func testConfig() Config {
	return Config{
		StartingBalance: decimal.NewFromInt(1000),
		ExchangeRate:    decimal.NewFromInt(1000),
		ExchangeFeePct:  decimal.NewFromInt(3),
		WithdrawLimit:   decimal.NewFromInt(100),
	}
}

func TestRegisterLogsWelcomeBonus(t *testing.T) {
	store := testkit.NewStore()
	svc := NewService(store, lock.NewLocal(), testConfig())
	ctx := context.Background()

	acc, created, err := svc.Register(ctx, 555, "bear", nil, testkit.Now)
	if err != nil || !created {
		t.Fatalf("Register = %v, created=%v", err, created)
	}
	testkit.AssertBalance(t, store, acc.ID, models.AssetCoins, "1000")
	testkit.AssertLedgerBalanced(t, store, acc.ID)

	again, created, err := svc.Register(ctx, 555, "bear", nil, testkit.Now)
	if err != nil || created || again.ID != acc.ID {
		t.Fatalf("second Register = %+v created=%v err=%v", again, created, err)
	}
	testkit.AssertBalance(t, store, acc.ID, models.AssetCoins, "1000")
}

func TestRegisterReferrerValidation(t *testing.T) {
	store := testkit.NewStore()
	svc := NewService(store, lock.NewLocal(), testConfig())
	ctx := context.Background()

	missing := int64(999)
	if _, _, err := svc.Register(ctx, 1, "a", &missing, testkit.Now); !errors.Is(err, common.ErrInvalidReferrer) {
		t.Fatalf("err = %v, want ErrInvalidReferrer", err)
	}

	parent, _, _ := svc.Register(ctx, 2, "parent", nil, testkit.Now)
	child, created, err := svc.Register(ctx, 3, "child", &parent.ID, testkit.Now)
	if err != nil || !created {
		t.Fatalf("Register child: %v", err)
	}
	if child.ReferrerID == nil || *child.ReferrerID != parent.ID {
		t.Fatalf("ReferrerID = %v, want %d", child.ReferrerID, parent.ID)
	}
}

func TestDebitInsufficientFundsChangesNothing(t *testing.T) {
	store := testkit.NewStore()
	acc := testkit.Account(t, store, 1, "50", "0", nil)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx db.Tx) error {
		locked, err := tx.LockAccount(ctx, acc.ID)
		if err != nil {
			return err
		}
		return Debit(ctx, tx, locked, models.AssetCoins, decimal.NewFromInt(200), models.TxCaseCost, "", testkit.Now)
	})
	var ife *common.InsufficientFundsError
	if !errors.As(err, &ife) {
		t.Fatalf("err = %v, want InsufficientFundsError", err)
	}
	if !ife.Need.Equal(decimal.NewFromInt(200)) || !ife.Have.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("error details = %+v", ife)
	}
	testkit.AssertBalance(t, store, acc.ID, models.AssetCoins, "50")
	if n := len(testkit.Transactions(t, store, acc.ID)); n != 1 {
		t.Fatalf("transactions = %d, want 1", n)
	}
}

func TestCreditRoundsToAssetPrecision(t *testing.T) {
	store := testkit.NewStore()
	acc := testkit.Account(t, store, 1, "0", "0", nil)
	ctx := context.Background()

	_ = store.WithTx(ctx, func(tx db.Tx) error {
		locked, _ := tx.LockAccount(ctx, acc.ID)
		if err := Credit(ctx, tx, locked, models.AssetCoins, testkit.D("10.129"), models.TxPetIncome, "", testkit.Now); err != nil {
			t.Fatalf("credit coins: %v", err)
		}
		return Credit(ctx, tx, locked, models.AssetCrypto, testkit.D("0.123456"), models.TxExchangeIn, "", testkit.Now)
	})
	testkit.AssertBalance(t, store, acc.ID, models.AssetCoins, "10.12")
	testkit.AssertBalance(t, store, acc.ID, models.AssetCrypto, "0.1234")
	testkit.AssertLedgerBalanced(t, store, acc.ID)
}

func TestExchange(t *testing.T) {
	store := testkit.NewStore()
	svc := NewService(store, lock.NewLocal(), testConfig())
	acc := testkit.Account(t, store, 1, "10000", "0", nil)

	res, err := svc.Exchange(context.Background(), acc.ID, decimal.NewFromInt(10000), testkit.Now)
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	// 10000 / 1000 * 0.97
	if !res.CryptoReceived.Equal(testkit.D("9.7")) {
		t.Fatalf("crypto = %s, want 9.7", res.CryptoReceived)
	}
	testkit.AssertBalance(t, store, acc.ID, models.AssetCoins, "0")
	testkit.AssertBalance(t, store, acc.ID, models.AssetCrypto, "9.7")
	testkit.AssertLedgerBalanced(t, store, acc.ID)
}

func TestExchangeFeeReducedBySubscription(t *testing.T) {
	store := testkit.NewStore()
	svc := NewService(store, lock.NewLocal(), testConfig())
	acc := testkit.Account(t, store, 1, "1000", "0", nil)
	saveSubscription(t, store, acc.ID, "50", "2000", testkit.Now.Add(24*time.Hour))

	res, err := svc.Exchange(context.Background(), acc.ID, decimal.NewFromInt(1000), testkit.Now)
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if !res.FeePct.Equal(testkit.D("1.5")) || !res.CryptoReceived.Equal(testkit.D("0.985")) {
		t.Fatalf("fee=%s crypto=%s, want 1.5 and 0.985", res.FeePct, res.CryptoReceived)
	}
}

func TestWithdrawLimit(t *testing.T) {
	store := testkit.NewStore()
	svc := NewService(store, lock.NewLocal(), testConfig())
	acc := testkit.Account(t, store, 1, "0", "1000", nil)
	ctx := context.Background()

	if _, err := svc.Withdraw(ctx, acc.ID, decimal.NewFromInt(150), testkit.Now); !errors.Is(err, common.ErrWithdrawLimit) {
		t.Fatalf("err = %v, want ErrWithdrawLimit", err)
	}
	testkit.AssertBalance(t, store, acc.ID, models.AssetCrypto, "1000")

	saveSubscription(t, store, acc.ID, "25", "500", testkit.Now.Add(time.Hour))
	res, err := svc.Withdraw(ctx, acc.ID, decimal.NewFromInt(150), testkit.Now)
	if err != nil {
		t.Fatalf("Withdraw with subscription: %v", err)
	}
	if !res.Left.Equal(decimal.NewFromInt(850)) {
		t.Fatalf("left = %s, want 850", res.Left)
	}
	testkit.AssertLedgerBalanced(t, store, acc.ID)
}

func TestInvalidAmounts(t *testing.T) {
	store := testkit.NewStore()
	svc := NewService(store, lock.NewLocal(), testConfig())
	acc := testkit.Account(t, store, 1, "100", "100", nil)
	ctx := context.Background()

	if _, err := svc.Exchange(ctx, acc.ID, decimal.Zero, testkit.Now); !errors.Is(err, common.ErrInvalidAmount) {
		t.Fatalf("Exchange(0) err = %v", err)
	}
	if _, err := svc.Withdraw(ctx, acc.ID, decimal.NewFromInt(-1), testkit.Now); !errors.Is(err, common.ErrInvalidAmount) {
		t.Fatalf("Withdraw(-1) err = %v", err)
	}
}

func TestReducedFee(t *testing.T) {
	cases := []struct{ fee, reduction, want string }{
		{"5", "0", "5"},
		{"5", "25", "3.75"},
		{"3", "50", "1.5"},
		{"5", "100", "0"},
	}
	for _, tc := range cases {
		if got := ReducedFee(testkit.D(tc.fee), testkit.D(tc.reduction)); !got.Equal(testkit.D(tc.want)) {
			t.Fatalf("ReducedFee(%s, %s) = %s, want %s", tc.fee, tc.reduction, got, tc.want)
		}
	}
}

func saveSubscription(t *testing.T, store db.Store, accountID int64, feeReduction, limit string, expires time.Time) {
	t.Helper()
	ctx := context.Background()
	err := store.WithTx(ctx, func(tx db.Tx) error {
		return tx.SaveSubscription(ctx, &models.Subscription{
			AccountID:       accountID,
			Tier:            "test",
			FeeReductionPct: testkit.D(feeReduction),
			WithdrawLimit:   testkit.D(limit),
			Status:          models.SubscriptionActive,
			StartedAt:       testkit.Now,
			ExpiresAt:       expires,
		})
	})
	if err != nil {
		t.Fatalf("save subscription: %v", err)
	}
}
