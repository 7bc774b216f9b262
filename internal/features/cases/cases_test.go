package cases

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"serotonyl.ru/bear-tycoon/internal/common"
	"serotonyl.ru/bear-tycoon/internal/db"
	"serotonyl.ru/bear-tycoon/internal/events"
	"serotonyl.ru/bear-tycoon/internal/features/economy"
	"serotonyl.ru/bear-tycoon/internal/lock"
	"serotonyl.ru/bear-tycoon/internal/models"
	"serotonyl.ru/bear-tycoon/internal/random"
	"serotonyl.ru/bear-tycoon/internal/testkit"
)

var testEconomy = economy.Config{
	StartingBalance: decimal.NewFromInt(1000),
	ExchangeRate:    decimal.NewFromInt(1000),
	ExchangeFeePct:  decimal.NewFromInt(3),
	WithdrawLimit:   decimal.NewFromInt(100),
}

func newService(store db.Store, bus events.Publisher, rng random.Source) *Service {
	return NewService(store, lock.NewLocal(), bus, rng, testEconomy)
}

func TestTablesDeclaredTotals(t *testing.T) {
	for _, table := range Tables {
		if got := random.Total(table.Weights()); got != table.Total {
			t.Fatalf("%s: weights sum = %d, want %d", table.Tier, got, table.Total)
		}
		for _, e := range table.Entries {
			if e.Weight <= 0 {
				t.Fatalf("%s: non-positive weight in %+v", table.Tier, e)
			}
		}
	}
}

func TestDrawWalksCumulativeWeights(t *testing.T) {
	table, _ := Lookup("common")
	cases := []struct {
		draw int
		want int
	}{
		{1, 0},
		{400, 0},
		{401, 1},
		{700, 1},
		{701, 2},
		{999, 5},
		{1000, 6},
	}
	for _, tc := range cases {
		got, err := Draw(table, random.NewScripted(tc.draw))
		if err != nil {
			t.Fatalf("Draw(%d): %v", tc.draw, err)
		}
		if want := table.Entries[tc.want]; got != want {
			t.Fatalf("Draw(%d) = %+v, want %+v", tc.draw, got, want)
		}
	}
}

func TestDrawDeterministic(t *testing.T) {
	for _, table := range Tables {
		a, b := random.NewSeeded(42), random.NewSeeded(42)
		for i := 0; i < 200; i++ {
			x, err := Draw(table, a)
			if err != nil {
				t.Fatalf("Draw: %v", err)
			}
			y, _ := Draw(table, b)
			if x != y {
				t.Fatalf("%s draw %d: %+v != %+v", table.Tier, i, x, y)
			}
		}
	}
}

func TestDrawRejectsWrongTotal(t *testing.T) {
	table := &Table{Tier: "broken", Total: 10, Entries: []Entry{coins(1, RarityCommon, 5)}}
	if _, err := Draw(table, random.NewSeeded(1)); err == nil {
		t.Fatal("expected error for mismatched total")
	}
}

func TestOpenCaseCommonScenario(t *testing.T) {
	store := testkit.NewStore()
	bus := &events.Recorder{}
	// 401 -> вторая строка: 150 монет
	svc := newService(store, bus, random.NewScripted(401))
	acc := testkit.Account(t, store, 1, "100000", "0", nil)

	res, err := svc.OpenCase(context.Background(), acc.ID, "common", testkit.Now)
	if err != nil {
		t.Fatalf("OpenCase: %v", err)
	}
	if res.Entry.Kind != models.RewardCoins || !res.Entry.Amount.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("entry = %+v", res.Entry)
	}
	testkit.AssertBalance(t, store, acc.ID, models.AssetCoins, "99950")
	testkit.AssertLedgerBalanced(t, store, acc.ID)

	var debit, credit *models.Transaction
	for _, tr := range testkit.Transactions(t, store, acc.ID) {
		switch tr.Category {
		case models.TxCaseCost:
			debit = tr
		case models.TxCaseReward:
			credit = tr
		}
	}
	if debit == nil || !debit.Amount.Equal(decimal.NewFromInt(-200)) {
		t.Fatalf("debit = %+v", debit)
	}
	if credit == nil || !credit.Amount.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("credit = %+v", credit)
	}
	if bus.Count(events.RewardGranted) != 1 {
		t.Fatalf("reward events = %d", bus.Count(events.RewardGranted))
	}
}

func TestOpenCaseSeededBalance(t *testing.T) {
	store := testkit.NewStore()
	svc := newService(store, &events.Recorder{}, random.NewSeeded(7))
	acc := testkit.Account(t, store, 1, "100000", "0", nil)

	res, err := svc.OpenCase(context.Background(), acc.ID, "common", testkit.Now)
	if err != nil {
		t.Fatalf("OpenCase: %v", err)
	}
	want := decimal.NewFromInt(100000 - 200)
	if res.Entry.Kind == models.RewardCoins {
		want = want.Add(res.Entry.Amount)
	}
	if got := testkit.Reload(t, store, acc.ID).Balance; !got.Equal(want) {
		t.Fatalf("balance = %s, want %s", got, want)
	}
	testkit.AssertLedgerBalanced(t, store, acc.ID)
}

func TestOpenCasePetReward(t *testing.T) {
	store := testkit.NewStore()
	svc := newService(store, &events.Recorder{}, random.NewScripted(1000))
	acc := testkit.Account(t, store, 1, "200", "0", nil)

	res, err := svc.OpenCase(context.Background(), acc.ID, "common", testkit.Now)
	if err != nil {
		t.Fatalf("OpenCase: %v", err)
	}
	if res.Pet == nil || res.Pet.Tier != models.TierRare || res.Pet.OwnerID != acc.ID {
		t.Fatalf("pet = %+v", res.Pet)
	}
	if n := len(testkit.ListPets(t, store, acc.ID)); n != 1 {
		t.Fatalf("pets = %d, want 1", n)
	}
	testkit.AssertBalance(t, store, acc.ID, models.AssetCoins, "0")
}

func TestOpenCaseInsufficientFunds(t *testing.T) {
	store := testkit.NewStore()
	svc := newService(store, &events.Recorder{}, random.NewSeeded(1))
	acc := testkit.Account(t, store, 1, "199.99", "9.9999", nil)
	ctx := context.Background()

	for _, tier := range []string{"common", "legendary"} {
		_, err := svc.OpenCase(ctx, acc.ID, tier, testkit.Now)
		var ife *common.InsufficientFundsError
		if !errors.As(err, &ife) {
			t.Fatalf("%s: err = %v, want InsufficientFundsError", tier, err)
		}
	}

	after := testkit.Reload(t, store, acc.ID)
	if after.Balance.String() != "199.99" || after.Crypto.String() != "9.9999" {
		t.Fatalf("balances changed: %s / %s", after.Balance, after.Crypto)
	}
	if n := len(testkit.Transactions(t, store, acc.ID)); n != 2 {
		t.Fatalf("transactions = %d, want only welcome entries", n)
	}
	if n := len(testkit.ListPets(t, store, acc.ID)); n != 0 {
		t.Fatalf("pets = %d", n)
	}
	st, _ := svc.CaseStats(ctx, acc.ID)
	if st.Opened != 0 {
		t.Fatalf("openings = %d", st.Opened)
	}
}

func TestOpenCaseUnknownTier(t *testing.T) {
	store := testkit.NewStore()
	svc := newService(store, &events.Recorder{}, random.NewSeeded(1))
	acc := testkit.Account(t, store, 1, "1000", "0", nil)

	if _, err := svc.OpenCase(context.Background(), acc.ID, "mythic", testkit.Now); !errors.Is(err, common.ErrUnknownCaseTier) {
		t.Fatalf("err = %v", err)
	}
	testkit.AssertBalance(t, store, acc.ID, models.AssetCoins, "1000")
}

func TestOpenCasePaysNoReferral(t *testing.T) {
	store := testkit.NewStore()
	bus := &events.Recorder{}
	svc := newService(store, bus, random.NewSeeded(3))
	parent := testkit.Account(t, store, 1, "0", "0", nil)
	acc := testkit.Account(t, store, 2, "5000", "0", &parent.ID)

	for i := 0; i < 5; i++ {
		if _, err := svc.OpenCase(context.Background(), acc.ID, "rare", testkit.Now); err != nil {
			t.Fatalf("OpenCase: %v", err)
		}
	}
	testkit.AssertBalance(t, store, parent.ID, models.AssetCoins, "0")
	if bus.Count(events.ReferralPaid) != 0 {
		t.Fatal("referral paid on case spending")
	}
}

func TestCaseStats(t *testing.T) {
	store := testkit.NewStore()
	// common: 1000 монет, common: rare-питомец (5000), legendary: 12 BRC
	svc := newService(store, &events.Recorder{}, random.NewScripted(900, 1000, 1, 700))
	acc := testkit.Account(t, store, 1, "1000", "10", nil)
	ctx := context.Background()

	for _, tier := range []string{"common", "common", "legendary"} {
		if _, err := svc.OpenCase(ctx, acc.ID, tier, testkit.Now); err != nil {
			t.Fatalf("OpenCase %s: %v", tier, err)
		}
	}
	st, err := svc.CaseStats(ctx, acc.ID)
	if err != nil {
		t.Fatalf("CaseStats: %v", err)
	}
	// потрачено 200+200+10*1000, получено 1000+5000+12*1000
	if st.Opened != 3 || !st.Spent.Equal(decimal.NewFromInt(10400)) || !st.Earned.Equal(decimal.NewFromInt(18000)) {
		t.Fatalf("stats = %+v", st)
	}
	if !st.RTP.Equal(testkit.D("173.08")) {
		t.Fatalf("RTP = %s, want 173.08", st.RTP)
	}
}
