// Package postgres — queries.go содержит миграции схемы и их исполнение.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ExecMigrationSQL выполняет один SQL-запрос миграции в транзакции.
// Если запрос упадёт — транзакция откатится автоматически.
// Возвращает true, если миграция применена сейчас, и false, если уже была.
func ExecMigrationSQL(ctx context.Context, pool *pgxpool.Pool, version int, sql string) (bool, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	// Откатываем транзакцию, если что-то пошло не так
	defer tx.Rollback(ctx)

	// Проверяем, не была ли эта миграция уже применена
	var exists bool
	err = tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", version,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки миграции: %w", err)
	}
	if exists {
		return false, nil
	}

	if _, err := tx.Exec(ctx, sql); err != nil {
		return false, fmt.Errorf("ошибка выполнения миграции %d: %w", version, err)
	}

	if _, err := tx.Exec(ctx,
		"INSERT INTO schema_migrations (version) VALUES ($1)", version,
	); err != nil {
		return false, fmt.Errorf("ошибка записи версии миграции: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

type migration struct {
	version int
	name    string
	sql     string
}

// SQL-миграции встроены в код для упрощения деплоя.
var migrations = []migration{
	{1, "accounts", migration001Accounts},
	{2, "pets", migration002Pets},
	{3, "streaks", migration003Streaks},
	{4, "subscriptions", migration004Subscriptions},
	{5, "history", migration005History},
	{6, "upgrades", migration006Upgrades},
	{7, "market", migration007Market},
}

var migration001Accounts = `
CREATE TABLE IF NOT EXISTS accounts (
    id BIGSERIAL PRIMARY KEY,
    chat_id BIGINT UNIQUE NOT NULL,
    username VARCHAR(255) NOT NULL DEFAULT '',
    balance NUMERIC(20,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
    crypto NUMERIC(20,4) NOT NULL DEFAULT 0 CHECK (crypto >= 0),
    is_premium BOOLEAN NOT NULL DEFAULT FALSE,
    premium_until TIMESTAMPTZ,
    referrer_id BIGINT REFERENCES accounts(id),
    referral_t1 NUMERIC(20,2) NOT NULL DEFAULT 0,
    referral_t2 NUMERIC(20,2) NOT NULL DEFAULT 0,
    referral_t3 NUMERIC(20,2) NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (referrer_id IS NULL OR referrer_id <> id)
);
CREATE INDEX IF NOT EXISTS idx_accounts_referrer ON accounts(referrer_id);
CREATE TABLE IF NOT EXISTS transactions (
    id BIGSERIAL PRIMARY KEY,
    account_id BIGINT NOT NULL REFERENCES accounts(id),
    asset VARCHAR(16) NOT NULL,
    amount NUMERIC(20,4) NOT NULL,
    category VARCHAR(50) NOT NULL,
    note TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_id, id DESC);
`

var migration002Pets = `
CREATE TABLE IF NOT EXISTS pets (
    id BIGSERIAL PRIMARY KEY,
    owner_id BIGINT NOT NULL REFERENCES accounts(id),
    tier SMALLINT NOT NULL,
    variant VARCHAR(64) NOT NULL,
    level INTEGER NOT NULL DEFAULT 1,
    base_yield NUMERIC(20,2) NOT NULL,
    boost_multiplier NUMERIC(10,2) NOT NULL DEFAULT 1,
    boost_until TIMESTAMPTZ,
    last_collected_at TIMESTAMPTZ NOT NULL,
    locked BOOLEAN NOT NULL DEFAULT FALSE,
    token_id VARCHAR(64) NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_pets_owner ON pets(owner_id);
`

var migration003Streaks = `
CREATE TABLE IF NOT EXISTS streaks (
    account_id BIGINT PRIMARY KEY REFERENCES accounts(id),
    day INTEGER NOT NULL CHECK (day BETWEEN 1 AND 30),
    total_logins INTEGER NOT NULL DEFAULT 0,
    last_login_at TIMESTAMPTZ NOT NULL,
    claimed_today BOOLEAN NOT NULL DEFAULT FALSE,
    last_claim_at TIMESTAMPTZ,
    last_wheel_at TIMESTAMPTZ
);
`

var migration004Subscriptions = `
CREATE TABLE IF NOT EXISTS subscriptions (
    id BIGSERIAL PRIMARY KEY,
    account_id BIGINT UNIQUE NOT NULL REFERENCES accounts(id),
    tier VARCHAR(32) NOT NULL,
    income_bonus_pct NUMERIC(6,2) NOT NULL,
    fee_reduction_pct NUMERIC(6,2) NOT NULL,
    withdraw_limit NUMERIC(20,4) NOT NULL,
    status VARCHAR(16) NOT NULL,
    started_at TIMESTAMPTZ NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL,
    auto_renew BOOLEAN NOT NULL DEFAULT TRUE,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_subscriptions_due ON subscriptions(status, expires_at);
`

var migration005History = `
CREATE TABLE IF NOT EXISTS case_openings (
    id BIGSERIAL PRIMARY KEY,
    account_id BIGINT NOT NULL REFERENCES accounts(id),
    case_tier VARCHAR(32) NOT NULL,
    cost_asset VARCHAR(16) NOT NULL,
    cost NUMERIC(20,4) NOT NULL,
    reward_kind VARCHAR(16) NOT NULL,
    reward_amount NUMERIC(20,4) NOT NULL DEFAULT 0,
    reward_pet_tier SMALLINT NOT NULL DEFAULT 0,
    rarity VARCHAR(32) NOT NULL,
    pet_id BIGINT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_case_openings_account ON case_openings(account_id);
CREATE TABLE IF NOT EXISTS fusion_events (
    id BIGSERIAL PRIMARY KEY,
    account_id BIGINT NOT NULL REFERENCES accounts(id),
    input_tier SMALLINT NOT NULL,
    burned_pet_ids BIGINT[] NOT NULL,
    output_pet_id BIGINT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

var migration006Upgrades = `
CREATE TABLE IF NOT EXISTS upgrade_levels (
    account_id BIGINT NOT NULL REFERENCES accounts(id),
    track VARCHAR(32) NOT NULL,
    level INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (account_id, track)
);
`

var migration007Market = `
CREATE TABLE IF NOT EXISTS listings (
    id BIGSERIAL PRIMARY KEY,
    pet_id BIGINT NOT NULL,
    seller_id BIGINT NOT NULL REFERENCES accounts(id),
    price NUMERIC(20,2) NOT NULL CHECK (price > 0),
    status VARCHAR(16) NOT NULL,
    buyer_id BIGINT REFERENCES accounts(id),
    sold_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_listings_active_pet ON listings(pet_id) WHERE status = 'active';
`
