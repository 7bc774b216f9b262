// Package config загружает конфигурацию бота из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры,
// перед этим godotenv подхватывает необязательный файл .env.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// Драйверы хранилища
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Telegram ---
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`

	// --- Storage ---
	// postgres — продакшен, memory — локальный запуск без базы (данные теряются при рестарте)
	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"postgres"`

	// --- Database ---
	// Дефолт "postgres" — имя сервиса в docker-compose, для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"botuser"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"bear_tycoon"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Redis ---
	// Пустой адрес — блокировки и флаги уведомлений живут в памяти процесса.
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:""`
	RedisPassword string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	RedisLockTTL  time.Duration `envconfig:"REDIS_LOCK_TTL" default:"10s"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Moscow"`
	// Зерно генератора случайных чисел. 0 — случайное зерно при старте.
	RandomSeed uint64 `envconfig:"RANDOM_SEED" default:"0"`

	// --- Bot runtime ---
	// Сколько апдейтов обрабатываем параллельно. Иначе "go на каждый апдейт" = утечка памяти при флуде.
	BotMaxInflight int `envconfig:"BOT_MAX_INFLIGHT" default:"64"`
	// Таймаут long polling (секунды)
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`
	// Чат сообщества, где бот тоже отвечает. 0 — только личка.
	BotGroupChatID int64 `envconfig:"BOT_GROUP_CHAT_ID" default:"0"`
	// Размер очереди уведомлений
	BotNotifyQueue int `envconfig:"BOT_NOTIFY_QUEUE" default:"1024"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"10"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Economy ---
	EconomyStartingBalance decimal.Decimal `envconfig:"ECONOMY_STARTING_BALANCE" default:"1000"`
	// Сколько монет стоит 1 BRC
	EconomyExchangeRate   decimal.Decimal `envconfig:"ECONOMY_EXCHANGE_RATE" default:"1000"`
	EconomyExchangeFeePct decimal.Decimal `envconfig:"ECONOMY_EXCHANGE_FEE_PCT" default:"3"`
	EconomyMarketFeePct   decimal.Decimal `envconfig:"ECONOMY_MARKET_FEE_PCT" default:"5"`
	// Лимит одного вывода без подписки (BRC)
	EconomyWithdrawLimit decimal.Decimal `envconfig:"ECONOMY_WITHDRAW_LIMIT" default:"100"`

	// --- Jobs ---
	JobsSubscriptionSweep string        `envconfig:"JOBS_SUBSCRIPTION_SWEEP" default:"*/10 * * * *"`
	JobsExpiringNotice    string        `envconfig:"JOBS_EXPIRING_NOTICE" default:"0 * * * *"`
	JobsExpiringWindow    time.Duration `envconfig:"JOBS_EXPIRING_WINDOW" default:"24h"`

	// --- Metrics ---
	// Пустой адрес — HTTP-сервер метрик не запускается.
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// Validate проверяет согласованность настроек.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StoragePostgres:
		if c.DBPassword == "" {
			return errors.New("DB_PASSWORD обязателен для STORAGE_DRIVER=postgres")
		}
		if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return errors.New("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("неизвестный STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.BotMaxInflight <= 0 {
		return errors.New("BOT_MAX_INFLIGHT должен быть > 0")
	}
	if c.BotUpdateTimeoutSeconds <= 0 {
		return errors.New("BOT_UPDATE_TIMEOUT_SECONDS должен быть > 0")
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return errors.New("RATE_LIMIT_REQUESTS и RATE_LIMIT_WINDOW должны быть > 0")
	}
	if !c.EconomyExchangeRate.IsPositive() {
		return errors.New("ECONOMY_EXCHANGE_RATE должен быть > 0")
	}
	if c.EconomyStartingBalance.IsNegative() {
		return errors.New("ECONOMY_STARTING_BALANCE не может быть отрицательным")
	}
	for name, pct := range map[string]decimal.Decimal{
		"ECONOMY_EXCHANGE_FEE_PCT": c.EconomyExchangeFeePct,
		"ECONOMY_MARKET_FEE_PCT":   c.EconomyMarketFeePct,
	} {
		if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("%s должен быть в диапазоне 0..100", name)
		}
	}
	return nil
}

// Load читает .env (если есть) и переменные окружения и заполняет Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("не удалось прочитать .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
