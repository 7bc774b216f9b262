// Package db описывает транзакционное хранилище экономики.
// Все сервисы работают только через Store.WithTx: либо все шаги операции
// фиксируются вместе, либо ни один.
//
// Реализации: postgres (pgx, продакшен) и memory (тесты и локальный запуск).
// Методы «не найдено» возвращают ошибку, для которой
// errors.Is(err, common.ErrNotFound) == true.
package db

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"serotonyl.ru/bear-tycoon/internal/models"
)

// Store — хранилище с поддержкой транзакций.
type Store interface {
	// WithTx выполняет fn в одной транзакции. Ошибка fn откатывает всё.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	// Close освобождает ресурсы хранилища.
	Close()
}

// Tx — набор операций, доступных внутри транзакции.
type Tx interface {
	AccountRepo
	LedgerRepo
	PetRepo
	StreakRepo
	SubscriptionRepo
	HistoryRepo
	UpgradeRepo
	ListingRepo
}

// AccountRepo — аккаунты игроков.
type AccountRepo interface {
	// CreateAccount сохраняет аккаунт и проставляет ID и CreatedAt.
	CreateAccount(ctx context.Context, a *models.Account) error
	GetAccount(ctx context.Context, id int64) (*models.Account, error)
	GetAccountByChatID(ctx context.Context, chatID int64) (*models.Account, error)
	// LockAccount читает аккаунт с блокировкой строки до конца транзакции.
	LockAccount(ctx context.Context, id int64) (*models.Account, error)
	UpdateAccount(ctx context.Context, a *models.Account) error
}

// LedgerRepo — журнал транзакций (только добавление).
type LedgerRepo interface {
	AppendTransaction(ctx context.Context, t *models.Transaction) error
	// ListTransactions возвращает последние limit записей, новые первыми.
	ListTransactions(ctx context.Context, accountID int64, limit int) ([]*models.Transaction, error)
	SumTransactions(ctx context.Context, accountID int64, asset models.Asset) (decimal.Decimal, error)
}

// PetRepo — питомцы.
type PetRepo interface {
	CreatePet(ctx context.Context, p *models.Pet) error
	GetPet(ctx context.Context, id int64) (*models.Pet, error)
	UpdatePet(ctx context.Context, p *models.Pet) error
	DeletePet(ctx context.Context, id int64) error
	// ListPets возвращает питомцев владельца в порядке ID.
	ListPets(ctx context.Context, ownerID int64) ([]*models.Pet, error)
}

// StreakRepo — ежедневные стрики.
type StreakRepo interface {
	GetStreak(ctx context.Context, accountID int64) (*models.Streak, error)
	// SaveStreak создаёт или перезаписывает запись стрика.
	SaveStreak(ctx context.Context, s *models.Streak) error
}

// SubscriptionRepo — подписки.
type SubscriptionRepo interface {
	GetSubscription(ctx context.Context, accountID int64) (*models.Subscription, error)
	// SaveSubscription создаёт или перезаписывает единственную строку аккаунта.
	SaveSubscription(ctx context.Context, s *models.Subscription) error
	// ListDueSubscriptions — активные подписки с expires_at < before.
	ListDueSubscriptions(ctx context.Context, before time.Time) ([]*models.Subscription, error)
	// ListExpiringSubscriptions — активные подписки с expires_at в [from, to).
	ListExpiringSubscriptions(ctx context.Context, from, to time.Time) ([]*models.Subscription, error)
}

// HistoryRepo — история кейсов и слияний.
type HistoryRepo interface {
	AppendCaseOpening(ctx context.Context, o *models.CaseOpening) error
	ListCaseOpenings(ctx context.Context, accountID int64) ([]*models.CaseOpening, error)
	AppendFusion(ctx context.Context, e *models.FusionEvent) error
}

// UpgradeRepo — уровни веток улучшений.
type UpgradeRepo interface {
	// GetUpgradeLevels возвращает уровни по веткам. Отсутствующая ветка = 0.
	GetUpgradeLevels(ctx context.Context, accountID int64) (map[string]int, error)
	SetUpgradeLevel(ctx context.Context, accountID int64, track string, level int) error
}

// ListingRepo — лоты P2P-маркета.
type ListingRepo interface {
	CreateListing(ctx context.Context, l *models.Listing) error
	GetListing(ctx context.Context, id int64) (*models.Listing, error)
	UpdateListing(ctx context.Context, l *models.Listing) error
	// GetActiveListingByPet возвращает активный лот питомца или ErrNotFound.
	GetActiveListingByPet(ctx context.Context, petID int64) (*models.Listing, error)
	ListActiveListings(ctx context.Context, limit int) ([]*models.Listing, error)
}
