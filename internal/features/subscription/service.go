// Package subscription — service.go: жизненный цикл подписки.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/bear-tycoon/internal/cache"
	"serotonyl.ru/bear-tycoon/internal/common"
	"serotonyl.ru/bear-tycoon/internal/db"
	"serotonyl.ru/bear-tycoon/internal/events"
	"serotonyl.ru/bear-tycoon/internal/features/economy"
	"serotonyl.ru/bear-tycoon/internal/features/referral"
	"serotonyl.ru/bear-tycoon/internal/lock"
	"serotonyl.ru/bear-tycoon/internal/models"
)

// Service управляет подписками.
type Service struct {
	store  db.Store
	locker lock.Locker
	bus    events.Publisher
	flags  cache.Flags
	cfg    economy.Config
}

// NewService создаёт сервис подписок. flags нужны, чтобы не напоминать
// об окончании подписки дважды; cfg — для пересчёта цены в монеты для рефералов.
func NewService(store db.Store, locker lock.Locker, bus events.Publisher, flags cache.Flags, cfg economy.Config) *Service {
	return &Service{store: store, locker: locker, bus: bus, flags: flags, cfg: cfg}
}

// Get возвращает подписку аккаунта (в том числе истёкшую) или ErrNotFound.
func (s *Service) Get(ctx context.Context, accountID int64) (*models.Subscription, error) {
	var sub *models.Subscription
	err := s.store.WithTx(ctx, func(tx db.Tx) error {
		var err error
		sub, err = tx.GetSubscription(ctx, accountID)
		return err
	})
	return sub, err
}

// Benefits возвращает действующие привилегии аккаунта.
func (s *Service) Benefits(ctx context.Context, accountID int64, now time.Time) (models.Benefits, error) {
	var b models.Benefits
	err := s.store.WithTx(ctx, func(tx db.Tx) error {
		var err error
		b, err = economy.ActiveBenefits(ctx, tx, accountID, now)
		return err
	})
	return b, err
}

// Purchase покупает или продлевает подписку.
// Тот же действующий тариф продлевается на Period от текущего окончания,
// другой тариф заменяет строку: старт сейчас, окончание через Period.
func (s *Service) Purchase(ctx context.Context, accountID int64, tier string, now time.Time) (*models.Subscription, error) {
	plan, ok := Lookup(tier)
	if !ok {
		return nil, common.ErrUnknownPlan
	}

	unlock, err := s.locker.Lock(ctx, lock.AccountKey(accountID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		sub     *models.Subscription
		payouts []referral.Payout
		chatID  int64
	)
	err = s.store.WithTx(ctx, func(tx db.Tx) error {
		acc, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		chatID = acc.ChatID

		existing, err := tx.GetSubscription(ctx, accountID)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return err
		}

		if err := economy.Debit(ctx, tx, acc, models.AssetCrypto, plan.Price, models.TxSubscription, "Подписка "+plan.Title, now); err != nil {
			return err
		}

		sub = &models.Subscription{AccountID: accountID, StartedAt: now, ExpiresAt: now.Add(Period)}
		if existing != nil {
			sub.ID = existing.ID
			if existing.ActiveAt(now) && existing.Tier == plan.Tier {
				sub.StartedAt = existing.StartedAt
				sub.ExpiresAt = existing.ExpiresAt.Add(Period)
			}
		}
		applyPlan(sub, plan)
		sub.Status = models.SubscriptionActive
		sub.AutoRenew = true
		sub.UpdatedAt = now
		if err := tx.SaveSubscription(ctx, sub); err != nil {
			return err
		}

		if err := markPremium(ctx, tx, acc, sub); err != nil {
			return err
		}
		payouts, err = referral.Distribute(ctx, tx, acc, s.cfg.CryptoToCoins(plan.Price), now)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"account_id": accountID,
		"tier":       sub.Tier,
		"expires_at": sub.ExpiresAt,
	}).Info("Куплена подписка")

	evs := []events.Event{events.New(events.SubscriptionPurchased, accountID, chatID, now, map[string]string{
		"tier":       sub.Tier,
		"expires_at": sub.ExpiresAt.Format(time.RFC3339),
	})}
	s.bus.Publish(append(evs, referral.Events(payouts, now)...)...)
	return sub, nil
}

// SetAutoRenew включает или выключает автопродление.
func (s *Service) SetAutoRenew(ctx context.Context, accountID int64, on bool, now time.Time) (*models.Subscription, error) {
	unlock, err := s.locker.Lock(ctx, lock.AccountKey(accountID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var sub *models.Subscription
	err = s.store.WithTx(ctx, func(tx db.Tx) error {
		var err error
		sub, err = tx.GetSubscription(ctx, accountID)
		if err != nil {
			return err
		}
		if sub.Status != models.SubscriptionActive {
			return fmt.Errorf("подписка не активна: %w", common.ErrNotFound)
		}
		sub.AutoRenew = on
		sub.UpdatedAt = now
		return tx.SaveSubscription(ctx, sub)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// CheckExpired обрабатывает подписки, срок которых истёк к моменту now:
// продлевает с автопродлением при достатке крипты, остальные отключает.
// Каждая подписка — отдельная транзакция под блокировкой аккаунта; строка
// перечитывается, поэтому повторный или параллельный проход не спишет дважды.
func (s *Service) CheckExpired(ctx context.Context, now time.Time) (SweepResult, error) {
	var due []*models.Subscription
	err := s.store.WithTx(ctx, func(tx db.Tx) error {
		var err error
		due, err = tx.ListDueSubscriptions(ctx, now)
		return err
	})
	if err != nil {
		return SweepResult{}, fmt.Errorf("список истёкших подписок: %w", err)
	}

	res := SweepResult{Checked: len(due)}
	for _, d := range due {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		renewed, expired, err := s.settle(ctx, d.AccountID, now)
		switch {
		case err != nil:
			res.Failed++
			log.WithError(err).WithField("account_id", d.AccountID).Error("Ошибка обработки подписки")
		case renewed:
			res.Renewed++
		case expired:
			res.Expired++
		}
	}

	if res.Checked > 0 {
		log.WithFields(log.Fields{
			"checked": res.Checked,
			"renewed": res.Renewed,
			"expired": res.Expired,
			"failed":  res.Failed,
		}).Info("Проверка подписок завершена")
	}
	return res, nil
}

// settle продлевает или отключает одну подписку.
func (s *Service) settle(ctx context.Context, accountID int64, now time.Time) (renewed, expired bool, err error) {
	unlock, err := s.locker.Lock(ctx, lock.AccountKey(accountID))
	if err != nil {
		return false, false, err
	}
	defer unlock()

	var (
		evs    []events.Event
		sub    *models.Subscription
		chatID int64
	)
	err = s.store.WithTx(ctx, func(tx db.Tx) error {
		acc, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		chatID = acc.ChatID

		sub, err = tx.GetSubscription(ctx, accountID)
		if err != nil {
			return err
		}
		// Уже продлена или отключена другим проходом
		if sub.Status != models.SubscriptionActive || !sub.ExpiresAt.Before(now) {
			return nil
		}

		plan, known := Lookup(sub.Tier)
		if sub.AutoRenew && known && acc.Crypto.GreaterThanOrEqual(plan.Price) {
			if err := economy.Debit(ctx, tx, acc, models.AssetCrypto, plan.Price, models.TxSubscriptionRenewal, "Автопродление "+plan.Title, now); err != nil {
				return err
			}
			sub.ExpiresAt = sub.ExpiresAt.Add(Period)
			if !sub.ExpiresAt.After(now) {
				sub.ExpiresAt = now.Add(Period)
			}
			applyPlan(sub, plan)
			sub.UpdatedAt = now
			if err := tx.SaveSubscription(ctx, sub); err != nil {
				return err
			}
			if err := markPremium(ctx, tx, acc, sub); err != nil {
				return err
			}
			payouts, err := referral.Distribute(ctx, tx, acc, s.cfg.CryptoToCoins(plan.Price), now)
			if err != nil {
				return err
			}
			renewed = true
			evs = referral.Events(payouts, now)
			return nil
		}

		sub.Status = models.SubscriptionExpired
		sub.AutoRenew = false
		sub.UpdatedAt = now
		if err := tx.SaveSubscription(ctx, sub); err != nil {
			return err
		}
		acc.IsPremium = false
		acc.PremiumUntil = nil
		if err := tx.UpdateAccount(ctx, acc); err != nil {
			return err
		}
		expired = true
		return nil
	})
	if err != nil {
		return false, false, err
	}

	switch {
	case renewed:
		log.WithFields(log.Fields{"account_id": accountID, "expires_at": sub.ExpiresAt}).Info("Подписка продлена")
		evs = append(evs, events.New(events.SubscriptionRenewed, accountID, chatID, now, map[string]string{
			"tier":       sub.Tier,
			"expires_at": sub.ExpiresAt.Format(time.RFC3339),
		}))
	case expired:
		log.WithFields(log.Fields{"account_id": accountID, "tier": sub.Tier}).Info("Подписка истекла")
		evs = append(evs, events.New(events.SubscriptionExpired, accountID, chatID, now, map[string]string{
			"tier": sub.Tier,
		}))
	}
	s.bus.Publish(evs...)
	return renewed, expired, nil
}

// NotifyExpiring публикует напоминание для подписок, которые закончатся
// в ближайшие window. Одно напоминание на каждый срок окончания.
func (s *Service) NotifyExpiring(ctx context.Context, now time.Time, window time.Duration) (int, error) {
	type item struct {
		sub    *models.Subscription
		chatID int64
	}
	var items []item
	err := s.store.WithTx(ctx, func(tx db.Tx) error {
		subs, err := tx.ListExpiringSubscriptions(ctx, now, now.Add(window))
		if err != nil {
			return err
		}
		for _, sub := range subs {
			acc, err := tx.GetAccount(ctx, sub.AccountID)
			if err != nil {
				return err
			}
			items = append(items, item{sub: sub, chatID: acc.ChatID})
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("список подписок на исходе: %w", err)
	}

	sent := 0
	for _, it := range items {
		key := fmt.Sprintf("sub-expiring:%d:%d", it.sub.AccountID, it.sub.ExpiresAt.Unix())
		first, err := s.flags.SetOnce(ctx, key, 2*window)
		if err != nil {
			log.WithError(err).WithField("account_id", it.sub.AccountID).Warn("Не удалось поставить флаг напоминания")
			continue
		}
		if !first {
			continue
		}
		s.bus.Publish(events.New(events.SubscriptionExpiring, it.sub.AccountID, it.chatID, now, map[string]string{
			"tier":       it.sub.Tier,
			"expires_at": it.sub.ExpiresAt.Format(time.RFC3339),
			"auto_renew": fmt.Sprint(it.sub.AutoRenew),
		}))
		sent++
	}
	return sent, nil
}

func applyPlan(sub *models.Subscription, plan Plan) {
	sub.Tier = plan.Tier
	sub.IncomeBonusPct = plan.IncomeBonusPct
	sub.FeeReductionPct = plan.FeeReductionPct
	sub.WithdrawLimit = plan.WithdrawLimit
}

func markPremium(ctx context.Context, tx db.Tx, acc *models.Account, sub *models.Subscription) error {
	until := sub.ExpiresAt
	acc.IsPremium = true
	acc.PremiumUntil = &until
	return tx.UpdateAccount(ctx, acc)
}
