package app

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"serotonyl.ru/bear-tycoon/internal/bot"
	"serotonyl.ru/bear-tycoon/internal/cache"
	"serotonyl.ru/bear-tycoon/internal/config"
	"serotonyl.ru/bear-tycoon/internal/db"
	"serotonyl.ru/bear-tycoon/internal/events"
	"serotonyl.ru/bear-tycoon/internal/lock"
	"serotonyl.ru/bear-tycoon/internal/metrics"
	"serotonyl.ru/bear-tycoon/internal/models"
	"serotonyl.ru/bear-tycoon/internal/notify"
	"serotonyl.ru/bear-tycoon/internal/random"
	"serotonyl.ru/bear-tycoon/internal/testkit"
)

type harness struct {
	bot      *bot.Bot
	services *Services
	outbox   *notify.Outbox
	bus      *events.Recorder
	store    db.Store
	metrics  *metrics.Metrics
}

func testConfig() *config.Config {
	return &config.Config{
		StorageDriver:          config.StorageMemory,
		BotMaxInflight:         4,
		RateLimitRequests:      100,
		RateLimitWindow:        time.Minute,
		EconomyStartingBalance: testkit.D("1000"),
		EconomyExchangeRate:    testkit.D("1000"),
		EconomyExchangeFeePct:  testkit.D("3"),
		EconomyMarketFeePct:    testkit.D("5"),
		EconomyWithdrawLimit:   testkit.D("100"),
		AppTimezone:            "Europe/Moscow",
	}
}

func newHarness(t *testing.T, cfg *config.Config) *harness {
	t.Helper()
	now := func() time.Time { return testkit.Now }
	bus := &events.Recorder{}
	store := testkit.NewStore()
	s := NewServices(Infra{
		Store:  store,
		Locker: lock.NewLocal(),
		Flags:  cache.NewLocalFlags(now),
		Bus:    bus,
		Rand:   random.NewSeeded(7),
		Loc:    testkit.MSK,
	}, cfg)
	outbox := &notify.Outbox{}
	m := metrics.New(prometheus.NewRegistry())
	b := bot.New(nil, outbox, cfg, s.Economy, s.Streak, NewHandlers(s, outbox, testkit.MSK, now), m, now)
	return &harness{bot: b, services: s, outbox: outbox, bus: bus, store: store, metrics: m}
}

// say отправляет боту сообщение из лички пользователя userID.
func (h *harness) say(userID int64, text string) string {
	h.outbox.Reset()
	h.bot.HandleUpdate(context.Background(), tgbotapi.Update{
		Message: &tgbotapi.Message{
			From: &tgbotapi.User{ID: userID, UserName: "u" + strconv.FormatInt(userID, 10)},
			Chat: &tgbotapi.Chat{ID: userID, Type: "private"},
			Text: text,
		},
	})
	return h.outbox.Last()
}

func (h *harness) account(t *testing.T, userID int64) *models.Account {
	t.Helper()
	acc, err := h.services.Economy.GetAccountByChatID(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetAccountByChatID(%d): %v", userID, err)
	}
	return acc
}

func TestReferralFlowThroughBot(t *testing.T) {
	h := newHarness(t, testConfig())

	if reply := h.say(100, "/start"); !strings.Contains(reply, "Добро пожаловать") {
		t.Fatalf("start reply = %q", reply)
	}
	inviter := h.account(t, 100)

	reply := h.say(200, "/start "+strconv.FormatInt(inviter.ID, 10))
	if !strings.Contains(reply, "Добро пожаловать") {
		t.Fatalf("referred start reply = %q", reply)
	}
	invited := h.account(t, 200)
	if invited.ReferrerID == nil || *invited.ReferrerID != inviter.ID {
		t.Fatalf("referrer = %v, want %d", invited.ReferrerID, inviter.ID)
	}

	if reply := h.say(200, "/buy common"); !strings.Contains(reply, "Новый медведь") {
		t.Fatalf("buy reply = %q", reply)
	}
	testkit.AssertBalance(t, h.store, invited.ID, models.AssetCoins, "0")
	testkit.AssertBalance(t, h.store, inviter.ID, models.AssetCoins, "1200")
	if n := h.bus.Count(events.ReferralPaid); n != 1 {
		t.Fatalf("referral events = %d, want 1", n)
	}

	if reply := h.say(100, "!баланс"); !strings.Contains(reply, "Баланс") {
		t.Fatalf("balance reply = %q", reply)
	}
	if got := testutil.ToFloat64(h.metrics.Commands.WithLabelValues("balance")); got != 1 {
		t.Fatalf("balance commands = %v, want 1", got)
	}
}

func TestUnknownReferrerStillRegisters(t *testing.T) {
	h := newHarness(t, testConfig())

	if reply := h.say(300, "/start 999"); !strings.Contains(reply, "Добро пожаловать") {
		t.Fatalf("start reply = %q", reply)
	}
	if acc := h.account(t, 300); acc.ReferrerID != nil {
		t.Fatalf("referrer = %d, want none", *acc.ReferrerID)
	}
}

func TestUnknownCommandAndPlainText(t *testing.T) {
	h := newHarness(t, testConfig())

	if reply := h.say(100, "/dance"); !strings.Contains(reply, "Такой команды нет") {
		t.Fatalf("unknown reply = %q", reply)
	}
	if got := testutil.ToFloat64(h.metrics.Commands.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("unknown commands = %v, want 1", got)
	}
	if reply := h.say(100, "привет"); !strings.Contains(reply, "/help") {
		t.Fatalf("plain text reply = %q", reply)
	}
}

func TestDailyTwiceSameDay(t *testing.T) {
	h := newHarness(t, testConfig())

	if reply := h.say(100, "/daily"); !strings.Contains(reply, "День 1") {
		t.Fatalf("first daily = %q", reply)
	}
	if reply := h.say(100, "/daily"); !strings.Contains(reply, "уже получена") {
		t.Fatalf("second daily = %q", reply)
	}
}

func TestRateLimitDropsUpdates(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRequests = 1
	h := newHarness(t, cfg)

	if reply := h.say(100, "/help"); reply == "" {
		t.Fatal("first command got no reply")
	}
	if reply := h.say(100, "/help"); reply != "" {
		t.Fatalf("limited command replied %q", reply)
	}
	if got := testutil.ToFloat64(h.metrics.Limited); got != 1 {
		t.Fatalf("limited = %v, want 1", got)
	}
}
