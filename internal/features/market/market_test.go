package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"serotonyl.ru/bear-tycoon/internal/common"
	"serotonyl.ru/bear-tycoon/internal/db"
	"serotonyl.ru/bear-tycoon/internal/events"
	"serotonyl.ru/bear-tycoon/internal/lock"
	"serotonyl.ru/bear-tycoon/internal/models"
	"serotonyl.ru/bear-tycoon/internal/testkit"
)

func newService(store db.Store, bus events.Publisher) *Service {
	return NewService(store, lock.NewLocal(), bus, decimal.NewFromInt(5))
}

func TestFee(t *testing.T) {
	cases := []struct {
		price, reduction, want string
	}{
		{"1000", "0", "50"},
		{"1000", "25", "37.5"},
		{"1000", "100", "0"},
		{"33.33", "0", "1.66"},
	}
	for _, tc := range cases {
		got := Fee(testkit.D(tc.price), decimal.NewFromInt(5), testkit.D(tc.reduction))
		if !got.Equal(testkit.D(tc.want)) {
			t.Fatalf("Fee(%s, -%s%%) = %s, want %s", tc.price, tc.reduction, got, tc.want)
		}
	}
}

func TestListAndBuy(t *testing.T) {
	store := testkit.NewStore()
	bus := &events.Recorder{}
	svc := newService(store, bus)
	seller := testkit.Account(t, store, 1, "0", "0", nil)
	buyer := testkit.Account(t, store, 2, "5000", "0", nil)
	pet := testkit.Pets(t, store, seller.ID, models.TierCommon, 1)[0]
	ctx := context.Background()

	l, err := svc.List(ctx, seller.ID, pet.ID, decimal.NewFromInt(1000), testkit.Now)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if _, err := svc.List(ctx, seller.ID, pet.ID, decimal.NewFromInt(900), testkit.Now); !errors.Is(err, common.ErrAlreadyListed) {
		t.Fatalf("second List err = %v", err)
	}

	// продавец не забирал доход 2 часа: 20 монет остаются ему
	now := testkit.Now.Add(2 * time.Hour)
	sale, err := svc.Buy(ctx, buyer.ID, l.ID, now)
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if !sale.Fee.Equal(decimal.NewFromInt(50)) || sale.Pet.OwnerID != buyer.ID || !sale.Pet.LastCollectedAt.Equal(now) {
		t.Fatalf("sale = %+v", sale)
	}
	testkit.AssertBalance(t, store, buyer.ID, models.AssetCoins, "4000")
	testkit.AssertBalance(t, store, seller.ID, models.AssetCoins, "970")
	testkit.AssertLedgerBalanced(t, store, seller.ID)
	testkit.AssertLedgerBalanced(t, store, buyer.ID)

	if n := len(testkit.ListPets(t, store, buyer.ID)); n != 1 {
		t.Fatalf("buyer pets = %d", n)
	}
	if _, err := svc.Buy(ctx, buyer.ID, l.ID, now); !errors.Is(err, common.ErrListingClosed) {
		t.Fatalf("rebuy err = %v", err)
	}
	if bus.Count(events.MarketSale) != 1 {
		t.Fatalf("sale events = %d", bus.Count(events.MarketSale))
	}
}

func TestBuyWithSellerSubscription(t *testing.T) {
	store := testkit.NewStore()
	svc := newService(store, &events.Recorder{})
	seller := testkit.Account(t, store, 1, "0", "0", nil)
	buyer := testkit.Account(t, store, 2, "1000", "0", nil)
	pet := testkit.Pets(t, store, seller.ID, models.TierCommon, 1)[0]
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx db.Tx) error {
		return tx.SaveSubscription(ctx, &models.Subscription{
			AccountID: seller.ID, Tier: "vip", FeeReductionPct: decimal.NewFromInt(50),
			Status: models.SubscriptionActive, StartedAt: testkit.Now, ExpiresAt: testkit.Now.Add(time.Hour),
		})
	})
	if err != nil {
		t.Fatalf("save subscription: %v", err)
	}

	l, _ := svc.List(ctx, seller.ID, pet.ID, decimal.NewFromInt(1000), testkit.Now)
	sale, err := svc.Buy(ctx, buyer.ID, l.ID, testkit.Now)
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if !sale.Fee.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("fee = %s, want 25", sale.Fee)
	}
	testkit.AssertBalance(t, store, seller.ID, models.AssetCoins, "975")
}

func TestBuyErrors(t *testing.T) {
	store := testkit.NewStore()
	svc := newService(store, &events.Recorder{})
	seller := testkit.Account(t, store, 1, "0", "0", nil)
	poor := testkit.Account(t, store, 2, "999", "0", nil)
	pet := testkit.Pets(t, store, seller.ID, models.TierCommon, 1)[0]
	ctx := context.Background()

	l, _ := svc.List(ctx, seller.ID, pet.ID, decimal.NewFromInt(1000), testkit.Now)
	if _, err := svc.Buy(ctx, seller.ID, l.ID, testkit.Now); !errors.Is(err, common.ErrSelfTrade) {
		t.Fatalf("self buy err = %v", err)
	}
	if _, err := svc.Buy(ctx, poor.ID, l.ID, testkit.Now); !errors.Is(err, common.ErrInsufficientFunds) {
		t.Fatalf("poor buy err = %v", err)
	}
	if got := testkit.ListPets(t, store, seller.ID); len(got) != 1 {
		t.Fatalf("pet moved after failed buy")
	}
	testkit.AssertBalance(t, store, poor.ID, models.AssetCoins, "999")

	if err := svc.Cancel(ctx, poor.ID, l.ID); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("foreign cancel err = %v", err)
	}
	if err := svc.Cancel(ctx, seller.ID, l.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := svc.Cancel(ctx, seller.ID, l.ID); !errors.Is(err, common.ErrListingClosed) {
		t.Fatalf("second cancel err = %v", err)
	}
	if active, _ := svc.Active(ctx, 10); len(active) != 0 {
		t.Fatalf("active listings = %d", len(active))
	}
}

func TestListRejects(t *testing.T) {
	store := testkit.NewStore()
	svc := newService(store, &events.Recorder{})
	seller := testkit.Account(t, store, 1, "0", "0", nil)
	other := testkit.Account(t, store, 2, "0", "0", nil)
	owned := testkit.Pets(t, store, seller.ID, models.TierCommon, 2)
	ctx := context.Background()

	if _, err := svc.List(ctx, seller.ID, owned[0].ID, decimal.Zero, testkit.Now); !errors.Is(err, common.ErrInvalidAmount) {
		t.Fatalf("zero price err = %v", err)
	}
	if _, err := svc.List(ctx, other.ID, owned[0].ID, decimal.NewFromInt(10), testkit.Now); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("foreign pet err = %v", err)
	}
	err := store.WithTx(ctx, func(tx db.Tx) error {
		owned[1].Locked = true
		return tx.UpdatePet(ctx, owned[1])
	})
	if err != nil {
		t.Fatalf("lock pet: %v", err)
	}
	if _, err := svc.List(ctx, seller.ID, owned[1].ID, decimal.NewFromInt(10), testkit.Now); !errors.Is(err, common.ErrPetLocked) {
		t.Fatalf("locked pet err = %v", err)
	}
}
