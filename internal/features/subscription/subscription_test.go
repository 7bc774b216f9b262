package subscription

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"serotonyl.ru/bear-tycoon/internal/cache"
	"serotonyl.ru/bear-tycoon/internal/common"
	"serotonyl.ru/bear-tycoon/internal/db"
	"serotonyl.ru/bear-tycoon/internal/events"
	"serotonyl.ru/bear-tycoon/internal/features/economy"
	"serotonyl.ru/bear-tycoon/internal/lock"
	"serotonyl.ru/bear-tycoon/internal/models"
	"serotonyl.ru/bear-tycoon/internal/testkit"
)

const day = 24 * time.Hour

var testEconomy = economy.Config{
	StartingBalance: decimal.NewFromInt(1000),
	ExchangeRate:    decimal.NewFromInt(1000),
	ExchangeFeePct:  decimal.NewFromInt(3),
	WithdrawLimit:   decimal.NewFromInt(100),
}

func newService(store db.Store, bus events.Publisher) *Service {
	return NewService(store, lock.NewLocal(), bus, cache.NewLocalFlags(func() time.Time { return testkit.Now }), testEconomy)
}

func TestPurchaseAndExpire(t *testing.T) {
	store := testkit.NewStore()
	bus := &events.Recorder{}
	svc := newService(store, bus)
	acc := testkit.Account(t, store, 1, "0", "150", nil)
	ctx := context.Background()

	sub, err := svc.Purchase(ctx, acc.ID, "premium", testkit.Now)
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	if !sub.ExpiresAt.Equal(testkit.Now.Add(Period)) || !sub.AutoRenew || sub.Status != models.SubscriptionActive {
		t.Fatalf("sub = %+v", sub)
	}
	testkit.AssertBalance(t, store, acc.ID, models.AssetCrypto, "50")
	if got := testkit.Reload(t, store, acc.ID); !got.IsPremium || got.PremiumUntil == nil {
		t.Fatalf("account not premium: %+v", got)
	}

	res, err := svc.CheckExpired(ctx, testkit.Now.Add(31*day))
	if err != nil {
		t.Fatalf("CheckExpired: %v", err)
	}
	if res.Expired != 1 || res.Renewed != 0 {
		t.Fatalf("sweep = %+v", res)
	}
	got, _ := svc.Get(ctx, acc.ID)
	if got.Status != models.SubscriptionExpired || got.AutoRenew {
		t.Fatalf("sub after sweep = %+v", got)
	}
	after := testkit.Reload(t, store, acc.ID)
	if after.IsPremium || after.PremiumUntil != nil {
		t.Fatalf("premium not cleared: %+v", after)
	}
	testkit.AssertBalance(t, store, acc.ID, models.AssetCrypto, "50")
	testkit.AssertLedgerBalanced(t, store, acc.ID)
	if bus.Count(events.SubscriptionExpired) != 1 {
		t.Fatalf("expired events = %d", bus.Count(events.SubscriptionExpired))
	}

	b, _ := svc.Benefits(ctx, acc.ID, testkit.Now.Add(31*day))
	if b.Tier != "" || !b.IncomeBonusPct.IsZero() {
		t.Fatalf("benefits after expiry = %+v", b)
	}
}

func TestPurchaseSameTierExtends(t *testing.T) {
	store := testkit.NewStore()
	svc := newService(store, &events.Recorder{})
	acc := testkit.Account(t, store, 1, "0", "200", nil)
	ctx := context.Background()

	first, _ := svc.Purchase(ctx, acc.ID, "premium", testkit.Now)
	second, err := svc.Purchase(ctx, acc.ID, "premium", testkit.Now.Add(day))
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	if second.ID != first.ID || !second.ExpiresAt.Equal(testkit.Now.Add(2*Period)) || !second.StartedAt.Equal(testkit.Now) {
		t.Fatalf("extended sub = %+v", second)
	}
	testkit.AssertBalance(t, store, acc.ID, models.AssetCrypto, "0")
}

func TestPurchaseOtherTierSupersedes(t *testing.T) {
	store := testkit.NewStore()
	svc := newService(store, &events.Recorder{})
	acc := testkit.Account(t, store, 1, "0", "350", nil)
	ctx := context.Background()

	first, _ := svc.Purchase(ctx, acc.ID, "premium", testkit.Now)
	now := testkit.Now.Add(10 * day)
	vip, err := svc.Purchase(ctx, acc.ID, "vip", now)
	if err != nil {
		t.Fatalf("Purchase vip: %v", err)
	}
	if vip.ID != first.ID || vip.Tier != "vip" || !vip.ExpiresAt.Equal(now.Add(Period)) {
		t.Fatalf("vip = %+v", vip)
	}
	b, _ := svc.Benefits(ctx, acc.ID, now)
	if !b.FeeReductionPct.Equal(decimal.NewFromInt(50)) || !b.WithdrawLimit.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("benefits = %+v", b)
	}
}

func TestPurchaseErrors(t *testing.T) {
	store := testkit.NewStore()
	svc := newService(store, &events.Recorder{})
	acc := testkit.Account(t, store, 1, "0", "99.9999", nil)
	ctx := context.Background()

	if _, err := svc.Purchase(ctx, acc.ID, "gold", testkit.Now); !errors.Is(err, common.ErrUnknownPlan) {
		t.Fatalf("unknown plan err = %v", err)
	}
	if _, err := svc.Purchase(ctx, acc.ID, "premium", testkit.Now); !errors.Is(err, common.ErrInsufficientFunds) {
		t.Fatalf("poor err = %v", err)
	}
	if _, err := svc.Get(ctx, acc.ID); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("subscription created: %v", err)
	}
	testkit.AssertBalance(t, store, acc.ID, models.AssetCrypto, "99.9999")
}

func TestPurchasePaysReferral(t *testing.T) {
	store := testkit.NewStore()
	bus := &events.Recorder{}
	svc := newService(store, bus)
	grand := testkit.Account(t, store, 1, "0", "0", nil)
	parent := testkit.Account(t, store, 2, "0", "0", &grand.ID)
	acc := testkit.Account(t, store, 3, "0", "100", &parent.ID)

	if _, err := svc.Purchase(context.Background(), acc.ID, "premium", testkit.Now); err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	// 100 BRC = 100000 монет
	testkit.AssertBalance(t, store, parent.ID, models.AssetCoins, "20000")
	testkit.AssertBalance(t, store, grand.ID, models.AssetCoins, "10000")
	if bus.Count(events.ReferralPaid) != 2 {
		t.Fatalf("referral events = %d", bus.Count(events.ReferralPaid))
	}
}

func TestRenewalChargesOnce(t *testing.T) {
	store := testkit.NewStore()
	bus := &events.Recorder{}
	svc := newService(store, bus)
	acc := testkit.Account(t, store, 1, "0", "250", nil)
	ctx := context.Background()

	if _, err := svc.Purchase(ctx, acc.ID, "premium", testkit.Now); err != nil {
		t.Fatalf("Purchase: %v", err)
	}

	sweepAt := testkit.Now.Add(31 * day)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.CheckExpired(ctx, sweepAt); err != nil {
				t.Errorf("CheckExpired: %v", err)
			}
		}()
	}
	wg.Wait()

	testkit.AssertBalance(t, store, acc.ID, models.AssetCrypto, "50")
	sub, _ := svc.Get(ctx, acc.ID)
	if sub.Status != models.SubscriptionActive || !sub.ExpiresAt.Equal(testkit.Now.Add(2*Period)) {
		t.Fatalf("renewed sub = %+v", sub)
	}
	if bus.Count(events.SubscriptionRenewed) != 1 {
		t.Fatalf("renewed events = %d", bus.Count(events.SubscriptionRenewed))
	}
	testkit.AssertLedgerBalanced(t, store, acc.ID)

	// второе продление уже не по карману
	res, _ := svc.CheckExpired(ctx, testkit.Now.Add(61*day))
	if res.Expired != 1 {
		t.Fatalf("second sweep = %+v", res)
	}
}

func TestRenewalAfterLongPause(t *testing.T) {
	store := testkit.NewStore()
	svc := newService(store, &events.Recorder{})
	acc := testkit.Account(t, store, 1, "0", "200", nil)
	ctx := context.Background()

	if _, err := svc.Purchase(ctx, acc.ID, "premium", testkit.Now); err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	// свип не запускался 70 дней: продлеваем от now, а не от старого срока
	now := testkit.Now.Add(70 * day)
	if _, err := svc.CheckExpired(ctx, now); err != nil {
		t.Fatalf("CheckExpired: %v", err)
	}
	sub, _ := svc.Get(ctx, acc.ID)
	if !sub.ExpiresAt.Equal(now.Add(Period)) {
		t.Fatalf("expires = %s, want %s", sub.ExpiresAt, now.Add(Period))
	}
}

func TestAutoRenewOff(t *testing.T) {
	store := testkit.NewStore()
	svc := newService(store, &events.Recorder{})
	acc := testkit.Account(t, store, 1, "0", "500", nil)
	ctx := context.Background()

	if _, err := svc.Purchase(ctx, acc.ID, "premium", testkit.Now); err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	if _, err := svc.SetAutoRenew(ctx, acc.ID, false, testkit.Now); err != nil {
		t.Fatalf("SetAutoRenew: %v", err)
	}
	res, _ := svc.CheckExpired(ctx, testkit.Now.Add(31*day))
	if res.Expired != 1 {
		t.Fatalf("sweep = %+v", res)
	}
	testkit.AssertBalance(t, store, acc.ID, models.AssetCrypto, "400")
}

func TestNotifyExpiringOnce(t *testing.T) {
	store := testkit.NewStore()
	bus := &events.Recorder{}
	svc := newService(store, bus)
	acc := testkit.Account(t, store, 1, "0", "100", nil)
	ctx := context.Background()

	if _, err := svc.Purchase(ctx, acc.ID, "premium", testkit.Now); err != nil {
		t.Fatalf("Purchase: %v", err)
	}

	if n, _ := svc.NotifyExpiring(ctx, testkit.Now.Add(10*day), day); n != 0 {
		t.Fatalf("early notices = %d", n)
	}
	now := testkit.Now.Add(29*day + 12*time.Hour)
	for i, want := range []int{1, 0} {
		n, err := svc.NotifyExpiring(ctx, now, day)
		if err != nil || n != want {
			t.Fatalf("pass %d: sent %d, %v; want %d", i, n, err, want)
		}
	}
	if bus.Count(events.SubscriptionExpiring) != 1 {
		t.Fatalf("expiring events = %d", bus.Count(events.SubscriptionExpiring))
	}
}
