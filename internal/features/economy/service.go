// Package economy — service.go содержит бизнес-логику счетов:
// регистрация, обмен монет на крипту, вывод и история транзакций.
package economy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/bear-tycoon/internal/common"
	"serotonyl.ru/bear-tycoon/internal/db"
	"serotonyl.ru/bear-tycoon/internal/lock"
	"serotonyl.ru/bear-tycoon/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Service управляет счетами игроков.
type Service struct {
	store  db.Store
	locker lock.Locker
	cfg    Config
}

// NewService создаёт сервис экономики.
func NewService(store db.Store, locker lock.Locker, cfg Config) *Service {
	return &Service{store: store, locker: locker, cfg: cfg}
}

// Config возвращает параметры экономики.
func (s *Service) Config() Config {
	return s.cfg
}

// Register создаёт аккаунт при первом контакте с ботом.
// Если аккаунт с таким chatID уже есть — возвращает его и created=false,
// реферер в этом случае игнорируется (связь ставится только при создании).
// referrerID — внутренний ID пригласившего; он должен существовать.
func (s *Service) Register(ctx context.Context, chatID int64, username string, referrerID *int64, now time.Time) (acc *models.Account, created bool, err error) {
	err = s.store.WithTx(ctx, func(tx db.Tx) error {
		existing, err := tx.GetAccountByChatID(ctx, chatID)
		if err == nil {
			acc = existing
			return nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return err
		}

		if referrerID != nil {
			ref, err := tx.GetAccount(ctx, *referrerID)
			if errors.Is(err, common.ErrNotFound) || (err == nil && ref.ChatID == chatID) {
				return common.ErrInvalidReferrer
			}
			if err != nil {
				return err
			}
		}

		acc = &models.Account{
			ChatID:     chatID,
			Username:   username,
			Balance:    decimal.Zero,
			Crypto:     decimal.Zero,
			ReferrerID: referrerID,
			CreatedAt:  now,
		}
		if err := tx.CreateAccount(ctx, acc); err != nil {
			return err
		}
		if s.cfg.StartingBalance.IsPositive() {
			if err := Credit(ctx, tx, acc, models.AssetCoins, s.cfg.StartingBalance, models.TxWelcomeBonus, "Стартовый бонус", now); err != nil {
				return err
			}
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("ошибка регистрации chat_id=%d: %w", chatID, err)
	}

	if created {
		fields := log.Fields{"account_id": acc.ID, "chat_id": chatID}
		if referrerID != nil {
			fields["referrer_id"] = *referrerID
		}
		log.WithFields(fields).Info("Новый игрок")
	}
	return acc, created, nil
}

// GetAccount возвращает аккаунт по внутреннему ID.
func (s *Service) GetAccount(ctx context.Context, accountID int64) (*models.Account, error) {
	var acc *models.Account
	err := s.store.WithTx(ctx, func(tx db.Tx) error {
		var err error
		acc, err = tx.GetAccount(ctx, accountID)
		return err
	})
	return acc, err
}

// GetAccountByChatID возвращает аккаунт по Telegram chat ID.
func (s *Service) GetAccountByChatID(ctx context.Context, chatID int64) (*models.Account, error) {
	var acc *models.Account
	err := s.store.WithTx(ctx, func(tx db.Tx) error {
		var err error
		acc, err = tx.GetAccountByChatID(ctx, chatID)
		return err
	})
	return acc, err
}

// Exchange меняет монеты на крипту по курсу.
// Комиссия обмена уменьшается на процент скидки подписки.
func (s *Service) Exchange(ctx context.Context, accountID int64, coins decimal.Decimal, now time.Time) (*ExchangeResult, error) {
	coins = common.Coins(coins)
	if !coins.IsPositive() {
		return nil, common.ErrInvalidAmount
	}

	unlock, err := s.locker.Lock(ctx, lock.AccountKey(accountID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var res *ExchangeResult
	err = s.store.WithTx(ctx, func(tx db.Tx) error {
		acc, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		benefits, err := ActiveBenefits(ctx, tx, accountID, now)
		if err != nil {
			return err
		}

		feePct := ReducedFee(s.cfg.ExchangeFeePct, benefits.FeeReductionPct)
		crypto := common.Crypto(coins.Div(s.cfg.ExchangeRate).Mul(hundred.Sub(feePct)).Div(hundred))
		if !crypto.IsPositive() {
			return common.ErrInvalidAmount
		}

		if err := Debit(ctx, tx, acc, models.AssetCoins, coins, models.TxExchangeOut, "Обмен на BRC", now); err != nil {
			return err
		}
		if err := Credit(ctx, tx, acc, models.AssetCrypto, crypto, models.TxExchangeIn, "Обмен монет", now); err != nil {
			return err
		}
		res = &ExchangeResult{CoinsSpent: coins, CryptoReceived: crypto, FeePct: feePct}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"account_id": accountID,
		"coins":      res.CoinsSpent.String(),
		"crypto":     res.CryptoReceived.String(),
	}).Info("Обмен выполнен")
	return res, nil
}

// Withdraw выводит крипту (выплата симулируется записью в журнал).
// Сумма ограничена лимитом тарифа подписки, без подписки — лимитом по умолчанию.
func (s *Service) Withdraw(ctx context.Context, accountID int64, amount decimal.Decimal, now time.Time) (*WithdrawResult, error) {
	amount = common.Crypto(amount)
	if !amount.IsPositive() {
		return nil, common.ErrInvalidAmount
	}

	unlock, err := s.locker.Lock(ctx, lock.AccountKey(accountID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var res *WithdrawResult
	err = s.store.WithTx(ctx, func(tx db.Tx) error {
		acc, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		benefits, err := ActiveBenefits(ctx, tx, accountID, now)
		if err != nil {
			return err
		}
		limit := s.cfg.WithdrawLimit
		if benefits.WithdrawLimit.IsPositive() {
			limit = benefits.WithdrawLimit
		}
		if amount.GreaterThan(limit) {
			return fmt.Errorf("%w: максимум %s", common.ErrWithdrawLimit, limit)
		}
		if err := Debit(ctx, tx, acc, models.AssetCrypto, amount, models.TxWithdraw, "Вывод BRC", now); err != nil {
			return err
		}
		res = &WithdrawResult{Amount: amount, Limit: limit, Left: acc.Crypto}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"account_id": accountID, "amount": amount.String()}).Info("Вывод BRC")
	return res, nil
}

// History возвращает последние limit транзакций, новые первыми.
func (s *Service) History(ctx context.Context, accountID int64, limit int) ([]*models.Transaction, error) {
	var out []*models.Transaction
	err := s.store.WithTx(ctx, func(tx db.Tx) error {
		var err error
		out, err = tx.ListTransactions(ctx, accountID, limit)
		return err
	})
	return out, err
}

// ActiveBenefits читает привилегии подписки аккаунта на момент now.
// Нет подписки — нулевые значения.
func ActiveBenefits(ctx context.Context, tx db.Tx, accountID int64, now time.Time) (models.Benefits, error) {
	sub, err := tx.GetSubscription(ctx, accountID)
	if errors.Is(err, common.ErrNotFound) {
		return models.Benefits{}, nil
	}
	if err != nil {
		return models.Benefits{}, err
	}
	return sub.BenefitsAt(now), nil
}

// ReducedFee уменьшает комиссию feePct на reductionPct процентов.
// Скидка 100% обнуляет комиссию.
func ReducedFee(feePct, reductionPct decimal.Decimal) decimal.Decimal {
	if reductionPct.GreaterThanOrEqual(hundred) {
		return decimal.Zero
	}
	return feePct.Mul(hundred.Sub(reductionPct)).Div(hundred)
}
