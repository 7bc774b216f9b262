// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: хранилище, блокировки, шина событий, сервисы,
// обработчики, бот, планировщик и HTTP-сервер метрик.
package app

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"serotonyl.ru/bear-tycoon/internal/bot"
	"serotonyl.ru/bear-tycoon/internal/cache"
	"serotonyl.ru/bear-tycoon/internal/common"
	"serotonyl.ru/bear-tycoon/internal/config"
	"serotonyl.ru/bear-tycoon/internal/db"
	"serotonyl.ru/bear-tycoon/internal/db/memory"
	"serotonyl.ru/bear-tycoon/internal/db/postgres"
	"serotonyl.ru/bear-tycoon/internal/events"
	"serotonyl.ru/bear-tycoon/internal/features/battle"
	"serotonyl.ru/bear-tycoon/internal/features/cases"
	"serotonyl.ru/bear-tycoon/internal/features/economy"
	"serotonyl.ru/bear-tycoon/internal/features/fusion"
	"serotonyl.ru/bear-tycoon/internal/features/market"
	"serotonyl.ru/bear-tycoon/internal/features/pets"
	"serotonyl.ru/bear-tycoon/internal/features/streak"
	"serotonyl.ru/bear-tycoon/internal/features/subscription"
	"serotonyl.ru/bear-tycoon/internal/features/upgrades"
	"serotonyl.ru/bear-tycoon/internal/jobs"
	"serotonyl.ru/bear-tycoon/internal/lock"
	"serotonyl.ru/bear-tycoon/internal/metrics"
	"serotonyl.ru/bear-tycoon/internal/notify"
	"serotonyl.ru/bear-tycoon/internal/random"
)

// Services — доменные сервисы поверх одного хранилища.
type Services struct {
	Economy      *economy.Service
	Streak       *streak.Service
	Pets         *pets.Service
	Cases        *cases.Service
	Upgrades     *upgrades.Service
	Subscription *subscription.Service
	Fusion       *fusion.Service
	Market       *market.Service
	Battle       *battle.Service
}

// Infra — общая инфраструктура сервисов.
type Infra struct {
	Store  db.Store
	Locker lock.Locker
	Flags  cache.Flags
	Bus    events.Publisher
	Rand   random.Source
	Loc    *time.Location
}

// App содержит все компоненты приложения.
type App struct {
	cfg       *config.Config
	Services  *Services
	Bot       *bot.Bot
	Notifier  *notify.Notifier
	Scheduler *jobs.Scheduler
	Registry  *prometheus.Registry

	closers []func()
}

// EconomyConfig переносит параметры экономики из конфигурации.
func EconomyConfig(cfg *config.Config) economy.Config {
	return economy.Config{
		StartingBalance: cfg.EconomyStartingBalance,
		ExchangeRate:    cfg.EconomyExchangeRate,
		ExchangeFeePct:  cfg.EconomyExchangeFeePct,
		WithdrawLimit:   cfg.EconomyWithdrawLimit,
	}
}

// NewServices собирает сервисы. Порядок не важен: зависимости между
// фичами идут через пакетные функции, а не через экземпляры сервисов.
func NewServices(in Infra, cfg *config.Config) *Services {
	ecfg := EconomyConfig(cfg)
	return &Services{
		Economy:      economy.NewService(in.Store, in.Locker, ecfg),
		Streak:       streak.NewService(in.Store, in.Locker, in.Bus, in.Rand, in.Loc),
		Pets:         pets.NewService(in.Store, in.Locker, in.Bus, in.Rand),
		Cases:        cases.NewService(in.Store, in.Locker, in.Bus, in.Rand, ecfg),
		Upgrades:     upgrades.NewService(in.Store, in.Locker, in.Bus),
		Subscription: subscription.NewService(in.Store, in.Locker, in.Bus, in.Flags, ecfg),
		Fusion:       fusion.NewService(in.Store, in.Locker, in.Bus, in.Rand),
		Market:       market.NewService(in.Store, in.Locker, in.Bus, cfg.EconomyMarketFeePct),
		Battle:       battle.NewService(in.Store, in.Locker, in.Bus, in.Rand),
	}
}

// NewHandlers создаёт обработчики команд для сервисов.
func NewHandlers(s *Services, sender notify.Sender, loc *time.Location, now common.Clock) bot.Handlers {
	return bot.Handlers{
		Economy:      economy.NewHandler(s.Economy, sender, loc, now),
		Streak:       streak.NewHandler(s.Streak, sender, now),
		Pets:         pets.NewHandler(s.Pets, sender, now),
		Cases:        cases.NewHandler(s.Cases, sender, now),
		Upgrades:     upgrades.NewHandler(s.Upgrades, sender, now),
		Subscription: subscription.NewHandler(s.Subscription, sender, loc, now),
		Fusion:       fusion.NewHandler(s.Fusion, sender, now),
		Market:       market.NewHandler(s.Market, sender, now),
		Battle:       battle.NewHandler(s.Battle, sender, now),
	}
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{cfg: cfg}
	loc := common.LoadLocation(cfg.AppTimezone)
	now := common.SystemClock

	// === 1. Хранилище ===
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)

	// === 2. Блокировки и флаги ===
	locker, flags, err := a.coordination(ctx, cfg, now)
	if err != nil {
		a.Close()
		return nil, err
	}

	// === 3. Telegram Bot API ===
	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	botAPI.Debug = cfg.AppEnv == "development"
	log.Infof("Авторизован как @%s", botAPI.Self.UserName)

	// === 4. Шина событий, метрики, уведомления ===
	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(a.Registry)

	a.Notifier = notify.New(botAPI, loc, cfg.BotNotifyQueue)
	bus := events.NewBus()
	bus.Subscribe(m.Observe)
	bus.Subscribe(a.Notifier.Handle)

	seed := cfg.RandomSeed
	if seed == 0 {
		seed = random.NewSeed()
	}

	// === 5. Сервисы и обработчики ===
	a.Services = NewServices(Infra{
		Store:  store,
		Locker: locker,
		Flags:  flags,
		Bus:    bus,
		Rand:   random.NewSeeded(seed),
		Loc:    loc,
	}, cfg)
	handlers := NewHandlers(a.Services, botAPI, loc, now)

	// === 6. Бот и планировщик ===
	a.Bot = bot.New(botAPI, botAPI, cfg, a.Services.Economy, a.Services.Streak, handlers, m, now)
	a.Scheduler = jobs.NewScheduler(a.Services.Subscription, jobs.Schedule{
		SubscriptionSweep: cfg.JobsSubscriptionSweep,
		ExpiringNotice:    cfg.JobsExpiringNotice,
		ExpiringWindow:    cfg.JobsExpiringWindow,
	}, loc, now)

	return a, nil
}

// Run запускает бота, рассылку, планировщик и сервер метрик.
// Падение любого из них останавливает остальные.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.Bot.Start(ctx) })
	g.Go(func() error { return a.Notifier.Run(ctx) })
	g.Go(func() error { return a.Scheduler.Run(ctx) })
	if a.cfg.MetricsAddr != "" {
		g.Go(func() error { return metrics.Serve(ctx, a.cfg.MetricsAddr, metrics.Router(a.Registry)) })
	}

	return g.Wait()
}

// Close освобождает ресурсы в обратном порядке.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// openStore открывает хранилище по STORAGE_DRIVER.
func openStore(ctx context.Context, cfg *config.Config) (db.Store, error) {
	if cfg.StorageDriver == config.StorageMemory {
		log.Warn("Хранилище в памяти: данные пропадут после рестарта")
		return memory.New(), nil
	}

	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}
	return postgres.NewStore(pool), nil
}

// coordination выбирает блокировки и флаги: Redis, если задан адрес,
// иначе память процесса (только для одного экземпляра бота).
func (a *App) coordination(ctx context.Context, cfg *config.Config, now common.Clock) (lock.Locker, cache.Flags, error) {
	if cfg.RedisAddr == "" {
		return lock.NewLocal(), cache.NewLocalFlags(now), nil
	}

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	a.closers = append(a.closers, func() {
		if err := rdb.Close(); err != nil {
			log.WithError(err).Warn("Ошибка закрытия Redis")
		}
	})
	return lock.NewRedis(rdb, cfg.RedisLockTTL), cache.NewRedisFlags(rdb), nil
}
