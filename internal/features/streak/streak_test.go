package streak

import (
	"context"
	"errors"
	"testing"
	"time"

	"serotonyl.ru/bear-tycoon/internal/common"
	"serotonyl.ru/bear-tycoon/internal/db"
	"serotonyl.ru/bear-tycoon/internal/events"
	"serotonyl.ru/bear-tycoon/internal/features/upgrades"
	"serotonyl.ru/bear-tycoon/internal/lock"
	"serotonyl.ru/bear-tycoon/internal/models"
	"serotonyl.ru/bear-tycoon/internal/random"
	"serotonyl.ru/bear-tycoon/internal/testkit"
)

const day = 24 * time.Hour

func newService(store db.Store, bus events.Publisher, rng random.Source) *Service {
	return NewService(store, lock.NewLocal(), bus, rng, testkit.MSK)
}

func TestAdvance(t *testing.T) {
	now := testkit.Now
	rec := func(d int, last time.Time, claimed bool) *models.Streak {
		return &models.Streak{AccountID: 1, Day: d, TotalLogins: 10, LastLoginAt: last, ClaimedToday: claimed}
	}

	cases := []struct {
		name    string
		rec     *models.Streak
		now     time.Time
		day     int
		status  Status
		claimed bool
	}{
		{"no record", nil, now, 1, StatusCreated, false},
		{"same day pending", rec(4, now.Add(-time.Hour), false), now, 4, StatusPending, false},
		{"same day claimed", rec(4, now.Add(-time.Hour), true), now, 4, StatusAlreadyClaimed, true},
		{"next day", rec(4, now, true), now.Add(day), 5, StatusContinued, false},
		{"missed a day", rec(4, now, true), now.Add(2 * day), 1, StatusReset, false},
		{"wraps after 30", rec(30, now, true), now.Add(day), 1, StatusContinued, false},
		// 23:30 и 00:30 по Москве — разные дни, хотя прошёл час
		{"midnight in game zone", rec(2, time.Date(2026, 3, 10, 20, 30, 0, 0, time.UTC), true),
			time.Date(2026, 3, 10, 21, 30, 0, 0, time.UTC), 3, StatusContinued, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, status := Advance(tc.rec, 1, tc.now, testkit.MSK)
			if status != tc.status || got.Day != tc.day || got.ClaimedToday != tc.claimed {
				t.Fatalf("Advance = day %d claimed %v %s, want day %d claimed %v %s",
					got.Day, got.ClaimedToday, status, tc.day, tc.claimed, tc.status)
			}
		})
	}
}

func TestAdvanceDoesNotMutateInput(t *testing.T) {
	rec := &models.Streak{AccountID: 1, Day: 3, LastLoginAt: testkit.Now}
	Advance(rec, 1, testkit.Now.Add(day), testkit.MSK)
	if rec.Day != 3 {
		t.Fatalf("input mutated: day = %d", rec.Day)
	}
}

func TestScheduleIncreasing(t *testing.T) {
	for i := 1; i < len(Schedule); i++ {
		if !Schedule[i].Coins.GreaterThan(Schedule[i-1].Coins) {
			t.Fatalf("day %d coins %s not greater than day %d", i+1, Schedule[i].Coins, i)
		}
	}
	for _, d := range []int{7, 14, 21, 30} {
		r, _ := RewardFor(d)
		if !r.Milestone || !r.Crypto.IsPositive() {
			t.Fatalf("day %d is not a milestone: %+v", d, r)
		}
	}
	if _, err := RewardFor(31); err == nil {
		t.Fatal("RewardFor(31) succeeded")
	}
}

func TestTouchSequence(t *testing.T) {
	store := testkit.NewStore()
	svc := newService(store, &events.Recorder{}, random.NewSeeded(1))
	acc := testkit.Account(t, store, 1, "0", "0", nil)
	ctx := context.Background()

	for i, want := range []int{1, 2, 3} {
		got, _, err := svc.Touch(ctx, acc.ID, testkit.Now.Add(time.Duration(i)*day))
		if err != nil {
			t.Fatalf("Touch: %v", err)
		}
		if got.Day != want {
			t.Fatalf("day %d: streak = %d, want %d", i, got.Day, want)
		}
	}

	got, status, _ := svc.Touch(ctx, acc.ID, testkit.Now.Add(5*day))
	if got.Day != 1 || status != StatusReset {
		t.Fatalf("after gap: day %d %s", got.Day, status)
	}
	rec, err := svc.Get(ctx, acc.ID)
	if err != nil || rec.TotalLogins != 4 {
		t.Fatalf("Get = %+v, %v", rec, err)
	}
}

func TestClaimOncePerDay(t *testing.T) {
	store := testkit.NewStore()
	bus := &events.Recorder{}
	svc := newService(store, bus, random.NewSeeded(1))
	acc := testkit.Account(t, store, 1, "0", "0", nil)
	ctx := context.Background()

	res, err := svc.Claim(ctx, acc.ID, testkit.Now)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if res.Streak.Day != 1 || !res.Reward.Coins.Equal(testkit.D("100")) {
		t.Fatalf("result = %+v", res)
	}
	if _, err := svc.Claim(ctx, acc.ID, testkit.Now.Add(3*time.Hour)); !errors.Is(err, common.ErrAlreadyClaimed) {
		t.Fatalf("second Claim err = %v", err)
	}
	testkit.AssertBalance(t, store, acc.ID, models.AssetCoins, "100")

	res, err = svc.Claim(ctx, acc.ID, testkit.Now.Add(day))
	if err != nil || res.Streak.Day != 2 || !res.Reward.Coins.Equal(testkit.D("150")) {
		t.Fatalf("next day = %+v, %v", res, err)
	}
	testkit.AssertBalance(t, store, acc.ID, models.AssetCoins, "250")
	testkit.AssertLedgerBalanced(t, store, acc.ID)
	if bus.Count(events.StreakClaimed) != 2 {
		t.Fatalf("claimed events = %d", bus.Count(events.StreakClaimed))
	}
}

func TestClaimMilestoneAndDailyBonus(t *testing.T) {
	store := testkit.NewStore()
	svc := newService(store, &events.Recorder{}, random.NewSeeded(1))
	acc := testkit.Account(t, store, 1, "0", "0", nil)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx db.Tx) error {
		if err := tx.SetUpgradeLevel(ctx, acc.ID, upgrades.TrackDailyBonus, 2); err != nil {
			return err
		}
		return tx.SaveStreak(ctx, &models.Streak{
			AccountID: acc.ID, Day: 6, TotalLogins: 6, LastLoginAt: testkit.Now.Add(-day), ClaimedToday: true,
		})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	res, err := svc.Claim(ctx, acc.ID, testkit.Now)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	// 100 + 50*6 за 7-й день и +100 от улучшения
	if res.Streak.Day != 7 || !res.Reward.Coins.Equal(testkit.D("500")) || !res.Reward.Crypto.Equal(testkit.D("1")) {
		t.Fatalf("result = %+v", res)
	}
	testkit.AssertBalance(t, store, acc.ID, models.AssetCrypto, "1")
	testkit.AssertLedgerBalanced(t, store, acc.ID)
}

func TestSpinWheel(t *testing.T) {
	store := testkit.NewStore()
	// 1 -> первый сектор: 200 монет
	svc := newService(store, &events.Recorder{}, random.NewScripted(1))
	acc := testkit.Account(t, store, 1, "0", "0", nil)
	ctx := context.Background()

	if _, err := svc.SpinWheel(ctx, acc.ID, testkit.Now); !errors.Is(err, common.ErrWheelUnavailable) {
		t.Fatalf("spin before claim err = %v", err)
	}
	if _, err := svc.Claim(ctx, acc.ID, testkit.Now); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	res, err := svc.SpinWheel(ctx, acc.ID, testkit.Now.Add(time.Minute))
	if err != nil || res.Prize.Kind != PrizeCoins {
		t.Fatalf("SpinWheel = %+v, %v", res, err)
	}
	if _, err := svc.SpinWheel(ctx, acc.ID, testkit.Now.Add(time.Hour)); !errors.Is(err, common.ErrWheelUnavailable) {
		t.Fatalf("second spin err = %v", err)
	}
	testkit.AssertBalance(t, store, acc.ID, models.AssetCoins, "300")

	// на следующий день колесо снова закрыто до получения награды
	if _, err := svc.SpinWheel(ctx, acc.ID, testkit.Now.Add(day)); !errors.Is(err, common.ErrWheelUnavailable) {
		t.Fatalf("next day spin before claim err = %v", err)
	}
}

func TestSpinWheelBoost(t *testing.T) {
	store := testkit.NewStore()
	svc := newService(store, &events.Recorder{}, random.NewScripted(100))
	acc := testkit.Account(t, store, 1, "0", "0", nil)
	testkit.Pets(t, store, acc.ID, models.TierCommon, 2)
	ctx := context.Background()

	if _, err := svc.Claim(ctx, acc.ID, testkit.Now); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	now := testkit.Now.Add(time.Hour)
	res, err := svc.SpinWheel(ctx, acc.ID, now)
	if err != nil {
		t.Fatalf("SpinWheel: %v", err)
	}
	if res.Prize.Kind != PrizeBoost || !res.Collected.Equal(testkit.D("20")) {
		t.Fatalf("result = %+v", res)
	}
	for _, p := range testkit.ListPets(t, store, acc.ID) {
		if p.BoostUntil == nil || !p.BoostUntil.Equal(now.Add(2*time.Hour)) || !p.BoostMultiplier.Equal(testkit.D("2")) {
			t.Fatalf("pet boost = %v x%s", p.BoostUntil, p.BoostMultiplier)
		}
	}
	// 100 за день + 20 собранного дохода
	testkit.AssertBalance(t, store, acc.ID, models.AssetCoins, "120")
}
