package upgrades

import (
	"context"
	"errors"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"

	"serotonyl.ru/bear-tycoon/internal/common"
	"serotonyl.ru/bear-tycoon/internal/events"
	"serotonyl.ru/bear-tycoon/internal/lock"
	"serotonyl.ru/bear-tycoon/internal/models"
	"serotonyl.ru/bear-tycoon/internal/testkit"
)

func TestCost(t *testing.T) {
	cases := []struct {
		track string
		level int
		want  string
	}{
		{TrackIncome, 0, "500"},
		{TrackIncome, 1, "750"},
		{TrackIncome, 2, "1125"},
		{TrackIncome, 3, "1687"}, // 1687.5 -> floor
		{TrackStorage, 2, "588"}, // 300 * 1.96
		{TrackDailyBonus, 1, "1800"},
		{TrackShop, 1, "50000"},
	}
	for _, tc := range cases {
		track, _ := Lookup(tc.track)
		if got := track.Cost(tc.level); !got.Equal(testkit.D(tc.want)) {
			t.Fatalf("%s.Cost(%d) = %s, want %s", tc.track, tc.level, got, tc.want)
		}
	}
}

func TestEffectOf(t *testing.T) {
	e, _ := EffectOf(TrackIncome, 4)
	if e.Kind != EffectPercent || !e.Percent.Equal(testkit.D("20")) {
		t.Fatalf("income effect = %+v", e)
	}
	e, _ = EffectOf(TrackStorage, 0)
	if e.Duration != 3*time.Hour {
		t.Fatalf("storage level 0 = %s, want 3h", e.Duration)
	}
	e, _ = EffectOf(TrackStorage, 21)
	if e.Duration != 24*time.Hour {
		t.Fatalf("storage max = %s, want 24h", e.Duration)
	}
	e, _ = EffectOf(TrackDailyBonus, 3)
	if !e.Flat.Equal(testkit.D("150")) {
		t.Fatalf("daily bonus = %s", e.Flat)
	}
	e, _ = EffectOf(TrackShop, 2)
	if e.MaxTier != models.TierEpic {
		t.Fatalf("shop tier = %s, want epic", e.MaxTier)
	}
	if _, ok := EffectOf("speed", 1); ok {
		t.Fatal("unknown track resolved")
	}
}

func TestBuy(t *testing.T) {
	store := testkit.NewStore()
	bus := &events.Recorder{}
	svc := NewService(store, lock.NewLocal(), bus)
	parent := testkit.Account(t, store, 1, "0", "0", nil)
	acc := testkit.Account(t, store, 2, "2000", "0", &parent.ID)
	ctx := context.Background()

	p, err := svc.Buy(ctx, acc.ID, TrackIncome, testkit.Now)
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if p.NewLevel != 1 || !p.Cost.Equal(testkit.D("500")) {
		t.Fatalf("purchase = %+v", p)
	}
	p, err = svc.Buy(ctx, acc.ID, TrackIncome, testkit.Now)
	if err != nil || !p.Cost.Equal(testkit.D("750")) {
		t.Fatalf("second Buy = %+v, %v", p, err)
	}

	testkit.AssertBalance(t, store, acc.ID, models.AssetCoins, "750")
	testkit.AssertBalance(t, store, parent.ID, models.AssetCoins, "250") // 20% от 1250
	testkit.AssertLedgerBalanced(t, store, acc.ID)

	levels, _ := svc.Levels(ctx, acc.ID)
	if levels[TrackIncome] != 2 || !levels.IncomeBonusPct().Equal(testkit.D("10")) {
		t.Fatalf("levels = %v", levels)
	}
	if bus.Count(events.UpgradePurchased) != 2 || bus.Count(events.ReferralPaid) != 2 {
		t.Fatalf("events = %+v", bus.Events())
	}
}

func TestBuyErrors(t *testing.T) {
	store := testkit.NewStore()
	svc := NewService(store, lock.NewLocal(), &events.Recorder{})
	acc := testkit.Account(t, store, 1, "100", "0", nil)
	ctx := context.Background()

	if _, err := svc.Buy(ctx, acc.ID, "speed", testkit.Now); !errors.Is(err, common.ErrInvalidUpgradeTrack) {
		t.Fatalf("unknown track err = %v", err)
	}
	if _, err := svc.Buy(ctx, acc.ID, TrackIncome, testkit.Now); !errors.Is(err, common.ErrInsufficientFunds) {
		t.Fatalf("poor err = %v", err)
	}
	testkit.AssertBalance(t, store, acc.ID, models.AssetCoins, "100")
	if levels, _ := svc.Levels(ctx, acc.ID); levels[TrackIncome] != 0 {
		t.Fatalf("level changed after failed buy: %v", levels)
	}
}

func TestBuyAtMaxLevel(t *testing.T) {
	store := testkit.NewStore()
	svc := NewService(store, lock.NewLocal(), &events.Recorder{})
	acc := testkit.Account(t, store, 1, "1000000", "0", nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.Buy(ctx, acc.ID, TrackShop, testkit.Now); err != nil {
			t.Fatalf("Buy shop %d: %v", i+1, err)
		}
	}
	if _, err := svc.Buy(ctx, acc.ID, TrackShop, testkit.Now); !errors.Is(err, common.ErrMaxLevelReached) {
		t.Fatalf("err = %v, want ErrMaxLevelReached", err)
	}
	// 10000 + 50000
	testkit.AssertBalance(t, store, acc.ID, models.AssetCoins, "940000")
}

func TestBuyLogsNewLevel(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	store := testkit.NewStore()
	svc := NewService(store, lock.NewLocal(), &events.Recorder{})
	acc := testkit.Account(t, store, 1, "500", "0", nil)

	if _, err := svc.Buy(context.Background(), acc.ID, TrackIncome, testkit.Now); err != nil {
		t.Fatalf("Buy: %v", err)
	}
	for _, e := range hook.AllEntries() {
		if e.Message != "Куплено улучшение" {
			continue
		}
		if e.Data["new_level"] != 1 {
			t.Fatalf("new_level = %v, want 1", e.Data["new_level"])
		}
		if _, ok := e.Data["level"]; ok {
			t.Fatal("entry uses reserved field level")
		}
		return
	}
	t.Fatal("purchase was not logged")
}
