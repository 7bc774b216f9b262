// Package postgres — store.go реализует db.Store на pgx.
// Каждая операция сервиса выполняется в одной транзакции БД;
// LockAccount берёт строку аккаунта через SELECT ... FOR UPDATE.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"serotonyl.ru/bear-tycoon/internal/common"
	"serotonyl.ru/bear-tycoon/internal/db"
	"serotonyl.ru/bear-tycoon/internal/models"
)

// Store — хранилище поверх пула соединений.
type Store struct {
	pool *pgxpool.Pool
}

var _ db.Store = (*Store)(nil)

// NewStore создаёт хранилище. Пул принадлежит хранилищу: Close закрывает его.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// WithTx открывает транзакцию, выполняет fn и фиксирует результат.
// Если fn вернула ошибку — транзакция откатывается.
func (s *Store) WithTx(ctx context.Context, fn func(tx db.Tx) error) error {
	pgTx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer pgTx.Rollback(ctx)

	if err := fn(&tx{tx: pgTx}); err != nil {
		return err
	}
	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

// Close закрывает пул соединений.
func (s *Store) Close() {
	s.pool.Close()
}

type tx struct {
	tx pgx.Tx
}

// notFound превращает pgx.ErrNoRows в common.ErrNotFound.
func notFound(err error, what string, id int64) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", what, id, common.ErrNotFound)
	}
	return fmt.Errorf("ошибка чтения (%s %d): %w", what, id, err)
}

// --- Аккаунты ---

const accountColumns = `id, chat_id, username, balance, crypto, is_premium, premium_until,
	referrer_id, referral_t1, referral_t2, referral_t3, created_at, updated_at`

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(
		&a.ID, &a.ChatID, &a.Username, &a.Balance, &a.Crypto, &a.IsPremium, &a.PremiumUntil,
		&a.ReferrerID, &a.ReferralEarnings[0], &a.ReferralEarnings[1], &a.ReferralEarnings[2],
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (t *tx) CreateAccount(ctx context.Context, a *models.Account) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.UpdatedAt = a.CreatedAt
	err := t.tx.QueryRow(ctx, `
		INSERT INTO accounts (chat_id, username, balance, crypto, is_premium, premium_until,
			referrer_id, referral_t1, referral_t2, referral_t3, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		RETURNING id
	`, a.ChatID, a.Username, a.Balance, a.Crypto, a.IsPremium, a.PremiumUntil,
		a.ReferrerID, a.ReferralEarnings[0], a.ReferralEarnings[1], a.ReferralEarnings[2], a.CreatedAt,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("ошибка создания аккаунта: %w", err)
	}
	return nil
}

func (t *tx) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	a, err := scanAccount(t.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "аккаунт", id)
	}
	return a, nil
}

func (t *tx) GetAccountByChatID(ctx context.Context, chatID int64) (*models.Account, error) {
	a, err := scanAccount(t.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE chat_id = $1`, chatID))
	if err != nil {
		return nil, notFound(err, "аккаунт chat_id", chatID)
	}
	return a, nil
}

func (t *tx) LockAccount(ctx context.Context, id int64) (*models.Account, error) {
	a, err := scanAccount(t.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "аккаунт", id)
	}
	return a, nil
}

func (t *tx) UpdateAccount(ctx context.Context, a *models.Account) error {
	a.UpdatedAt = time.Now().UTC()
	tag, err := t.tx.Exec(ctx, `
		UPDATE accounts
		SET username = $2, balance = $3, crypto = $4, is_premium = $5, premium_until = $6,
			referral_t1 = $7, referral_t2 = $8, referral_t3 = $9, updated_at = $10
		WHERE id = $1
	`, a.ID, a.Username, a.Balance, a.Crypto, a.IsPremium, a.PremiumUntil,
		a.ReferralEarnings[0], a.ReferralEarnings[1], a.ReferralEarnings[2], a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка обновления аккаунта: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("аккаунт %d: %w", a.ID, common.ErrNotFound)
	}
	return nil
}

// --- Журнал ---

func (t *tx) AppendTransaction(ctx context.Context, tr *models.Transaction) error {
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = time.Now().UTC()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO transactions (account_id, asset, amount, category, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, tr.AccountID, string(tr.Asset), tr.Amount, tr.Category, tr.Note, tr.CreatedAt).Scan(&tr.ID)
	if err != nil {
		return fmt.Errorf("ошибка записи транзакции: %w", err)
	}
	return nil
}

func (t *tx) ListTransactions(ctx context.Context, accountID int64, limit int) ([]*models.Transaction, error) {
	query := `
		SELECT id, account_id, asset, amount, category, note, created_at
		FROM transactions
		WHERE account_id = $1
		ORDER BY id DESC
	`
	args := []any{accountID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения транзакций: %w", err)
	}
	defer rows.Close()

	var out []*models.Transaction
	for rows.Next() {
		var tr models.Transaction
		var asset string
		if err := rows.Scan(&tr.ID, &tr.AccountID, &asset, &tr.Amount, &tr.Category, &tr.Note, &tr.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка чтения транзакции: %w", err)
		}
		tr.Asset = models.Asset(asset)
		out = append(out, &tr)
	}
	return out, rows.Err()
}

func (t *tx) SumTransactions(ctx context.Context, accountID int64, asset models.Asset) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := t.tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE account_id = $1 AND asset = $2
	`, accountID, string(asset)).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ошибка подсчёта транзакций: %w", err)
	}
	return sum, nil
}

// --- Питомцы ---

const petColumns = `id, owner_id, tier, variant, level, base_yield, boost_multiplier, boost_until,
	last_collected_at, locked, token_id, created_at`

func scanPet(row pgx.Row) (*models.Pet, error) {
	var p models.Pet
	var tier int16
	err := row.Scan(&p.ID, &p.OwnerID, &tier, &p.Variant, &p.Level, &p.BaseYield, &p.BoostMultiplier,
		&p.BoostUntil, &p.LastCollectedAt, &p.Locked, &p.TokenID, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Tier = models.PetTier(tier)
	return &p, nil
}

func (t *tx) CreatePet(ctx context.Context, p *models.Pet) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO pets (owner_id, tier, variant, level, base_yield, boost_multiplier, boost_until,
			last_collected_at, locked, token_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`, p.OwnerID, int16(p.Tier), p.Variant, p.Level, p.BaseYield, p.BoostMultiplier, p.BoostUntil,
		p.LastCollectedAt, p.Locked, p.TokenID, p.CreatedAt).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("ошибка создания питомца: %w", err)
	}
	return nil
}

func (t *tx) GetPet(ctx context.Context, id int64) (*models.Pet, error) {
	p, err := scanPet(t.tx.QueryRow(ctx, `SELECT `+petColumns+` FROM pets WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "питомец", id)
	}
	return p, nil
}

func (t *tx) UpdatePet(ctx context.Context, p *models.Pet) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE pets
		SET owner_id = $2, level = $3, base_yield = $4, boost_multiplier = $5, boost_until = $6,
			last_collected_at = $7, locked = $8, token_id = $9
		WHERE id = $1
	`, p.ID, p.OwnerID, p.Level, p.BaseYield, p.BoostMultiplier, p.BoostUntil,
		p.LastCollectedAt, p.Locked, p.TokenID)
	if err != nil {
		return fmt.Errorf("ошибка обновления питомца: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("питомец %d: %w", p.ID, common.ErrNotFound)
	}
	return nil
}

func (t *tx) DeletePet(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM pets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления питомца: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("питомец %d: %w", id, common.ErrNotFound)
	}
	return nil
}

func (t *tx) ListPets(ctx context.Context, ownerID int64) ([]*models.Pet, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+petColumns+` FROM pets WHERE owner_id = $1 ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения питомцев: %w", err)
	}
	defer rows.Close()

	var out []*models.Pet
	for rows.Next() {
		p, err := scanPet(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения питомца: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// --- Стрики ---

func (t *tx) GetStreak(ctx context.Context, accountID int64) (*models.Streak, error) {
	var s models.Streak
	err := t.tx.QueryRow(ctx, `
		SELECT account_id, day, total_logins, last_login_at, claimed_today, last_claim_at, last_wheel_at
		FROM streaks WHERE account_id = $1
	`, accountID).Scan(&s.AccountID, &s.Day, &s.TotalLogins, &s.LastLoginAt, &s.ClaimedToday, &s.LastClaimAt, &s.LastWheelAt)
	if err != nil {
		return nil, notFound(err, "стрик", accountID)
	}
	return &s, nil
}

func (t *tx) SaveStreak(ctx context.Context, s *models.Streak) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO streaks (account_id, day, total_logins, last_login_at, claimed_today, last_claim_at, last_wheel_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (account_id) DO UPDATE
		SET day = EXCLUDED.day, total_logins = EXCLUDED.total_logins, last_login_at = EXCLUDED.last_login_at,
			claimed_today = EXCLUDED.claimed_today, last_claim_at = EXCLUDED.last_claim_at,
			last_wheel_at = EXCLUDED.last_wheel_at
	`, s.AccountID, s.Day, s.TotalLogins, s.LastLoginAt, s.ClaimedToday, s.LastClaimAt, s.LastWheelAt)
	if err != nil {
		return fmt.Errorf("ошибка сохранения стрика: %w", err)
	}
	return nil
}

// --- Подписки ---

const subscriptionColumns = `id, account_id, tier, income_bonus_pct, fee_reduction_pct, withdraw_limit,
	status, started_at, expires_at, auto_renew, updated_at`

func scanSubscription(row pgx.Row) (*models.Subscription, error) {
	var s models.Subscription
	var status string
	err := row.Scan(&s.ID, &s.AccountID, &s.Tier, &s.IncomeBonusPct, &s.FeeReductionPct, &s.WithdrawLimit,
		&status, &s.StartedAt, &s.ExpiresAt, &s.AutoRenew, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Status = models.SubscriptionStatus(status)
	return &s, nil
}

func (t *tx) GetSubscription(ctx context.Context, accountID int64) (*models.Subscription, error) {
	s, err := scanSubscription(t.tx.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE account_id = $1 FOR UPDATE`, accountID))
	if err != nil {
		return nil, notFound(err, "подписка", accountID)
	}
	return s, nil
}

func (t *tx) SaveSubscription(ctx context.Context, s *models.Subscription) error {
	s.UpdatedAt = time.Now().UTC()
	err := t.tx.QueryRow(ctx, `
		INSERT INTO subscriptions (account_id, tier, income_bonus_pct, fee_reduction_pct, withdraw_limit,
			status, started_at, expires_at, auto_renew, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (account_id) DO UPDATE
		SET tier = EXCLUDED.tier, income_bonus_pct = EXCLUDED.income_bonus_pct,
			fee_reduction_pct = EXCLUDED.fee_reduction_pct, withdraw_limit = EXCLUDED.withdraw_limit,
			status = EXCLUDED.status, started_at = EXCLUDED.started_at, expires_at = EXCLUDED.expires_at,
			auto_renew = EXCLUDED.auto_renew, updated_at = EXCLUDED.updated_at
		RETURNING id
	`, s.AccountID, s.Tier, s.IncomeBonusPct, s.FeeReductionPct, s.WithdrawLimit,
		string(s.Status), s.StartedAt, s.ExpiresAt, s.AutoRenew, s.UpdatedAt).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("ошибка сохранения подписки: %w", err)
	}
	return nil
}

func (t *tx) ListDueSubscriptions(ctx context.Context, before time.Time) ([]*models.Subscription, error) {
	return t.querySubscriptions(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE status = 'active' AND expires_at < $1
		ORDER BY account_id
	`, before)
}

func (t *tx) ListExpiringSubscriptions(ctx context.Context, from, to time.Time) ([]*models.Subscription, error) {
	return t.querySubscriptions(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE status = 'active' AND expires_at >= $1 AND expires_at < $2
		ORDER BY account_id
	`, from, to)
}

func (t *tx) querySubscriptions(ctx context.Context, query string, args ...any) ([]*models.Subscription, error) {
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения подписок: %w", err)
	}
	defer rows.Close()

	var out []*models.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения подписки: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// --- История ---

func (t *tx) AppendCaseOpening(ctx context.Context, o *models.CaseOpening) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO case_openings (account_id, case_tier, cost_asset, cost, reward_kind, reward_amount,
			reward_pet_tier, rarity, pet_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, o.AccountID, o.CaseTier, string(o.CostAsset), o.Cost, string(o.RewardKind), o.RewardAmount,
		int16(o.RewardTier), o.Rarity, o.PetID, o.CreatedAt).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("ошибка записи открытия кейса: %w", err)
	}
	return nil
}

func (t *tx) ListCaseOpenings(ctx context.Context, accountID int64) ([]*models.CaseOpening, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, account_id, case_tier, cost_asset, cost, reward_kind, reward_amount,
			reward_pet_tier, rarity, pet_id, created_at
		FROM case_openings WHERE account_id = $1 ORDER BY id
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории кейсов: %w", err)
	}
	defer rows.Close()

	var out []*models.CaseOpening
	for rows.Next() {
		var o models.CaseOpening
		var costAsset, kind string
		var tier int16
		if err := rows.Scan(&o.ID, &o.AccountID, &o.CaseTier, &costAsset, &o.Cost, &kind, &o.RewardAmount,
			&tier, &o.Rarity, &o.PetID, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка чтения истории кейсов: %w", err)
		}
		o.CostAsset = models.Asset(costAsset)
		o.RewardKind = models.RewardKind(kind)
		o.RewardTier = models.PetTier(tier)
		out = append(out, &o)
	}
	return out, rows.Err()
}

func (t *tx) AppendFusion(ctx context.Context, e *models.FusionEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO fusion_events (account_id, input_tier, burned_pet_ids, output_pet_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, e.AccountID, int16(e.InputTier), e.BurnedPetIDs, e.OutputPetID, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("ошибка записи слияния: %w", err)
	}
	return nil
}

// --- Улучшения ---

func (t *tx) GetUpgradeLevels(ctx context.Context, accountID int64) (map[string]int, error) {
	rows, err := t.tx.Query(ctx, `SELECT track, level FROM upgrade_levels WHERE account_id = $1`, accountID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения улучшений: %w", err)
	}
	defer rows.Close()

	levels := make(map[string]int)
	for rows.Next() {
		var track string
		var level int
		if err := rows.Scan(&track, &level); err != nil {
			return nil, fmt.Errorf("ошибка чтения улучшения: %w", err)
		}
		levels[track] = level
	}
	return levels, rows.Err()
}

func (t *tx) SetUpgradeLevel(ctx context.Context, accountID int64, track string, level int) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO upgrade_levels (account_id, track, level)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id, track) DO UPDATE SET level = EXCLUDED.level
	`, accountID, track, level)
	if err != nil {
		return fmt.Errorf("ошибка сохранения улучшения: %w", err)
	}
	return nil
}

// --- Маркет ---

const listingColumns = `id, pet_id, seller_id, price, status, buyer_id, sold_at, created_at`

func scanListing(row pgx.Row) (*models.Listing, error) {
	var l models.Listing
	var status string
	if err := row.Scan(&l.ID, &l.PetID, &l.SellerID, &l.Price, &status, &l.BuyerID, &l.SoldAt, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.Status = models.ListingStatus(status)
	return &l, nil
}

func (t *tx) CreateListing(ctx context.Context, l *models.Listing) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO listings (pet_id, seller_id, price, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, l.PetID, l.SellerID, l.Price, string(l.Status), l.CreatedAt).Scan(&l.ID)
	if err != nil {
		return fmt.Errorf("ошибка создания лота: %w", err)
	}
	return nil
}

func (t *tx) GetListing(ctx context.Context, id int64) (*models.Listing, error) {
	l, err := scanListing(t.tx.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "лот", id)
	}
	return l, nil
}

func (t *tx) UpdateListing(ctx context.Context, l *models.Listing) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE listings SET price = $2, status = $3, buyer_id = $4, sold_at = $5 WHERE id = $1
	`, l.ID, l.Price, string(l.Status), l.BuyerID, l.SoldAt)
	if err != nil {
		return fmt.Errorf("ошибка обновления лота: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("лот %d: %w", l.ID, common.ErrNotFound)
	}
	return nil
}

func (t *tx) GetActiveListingByPet(ctx context.Context, petID int64) (*models.Listing, error) {
	l, err := scanListing(t.tx.QueryRow(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE pet_id = $1 AND status = 'active'`, petID))
	if err != nil {
		return nil, notFound(err, "активный лот питомца", petID)
	}
	return l, nil
}

func (t *tx) ListActiveListings(ctx context.Context, limit int) ([]*models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE status = 'active' ORDER BY id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения лотов: %w", err)
	}
	defer rows.Close()

	var out []*models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения лота: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
