// Package streak — service.go: вход, получение награды дня и колесо фортуны.
package streak

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/bear-tycoon/internal/common"
	"serotonyl.ru/bear-tycoon/internal/db"
	"serotonyl.ru/bear-tycoon/internal/events"
	"serotonyl.ru/bear-tycoon/internal/features/economy"
	"serotonyl.ru/bear-tycoon/internal/features/pets"
	"serotonyl.ru/bear-tycoon/internal/features/upgrades"
	"serotonyl.ru/bear-tycoon/internal/lock"
	"serotonyl.ru/bear-tycoon/internal/models"
	"serotonyl.ru/bear-tycoon/internal/random"
)

// Service управляет стриками.
type Service struct {
	store  db.Store
	locker lock.Locker
	bus    events.Publisher
	rng    random.Source
	loc    *time.Location // Часовой пояс, в котором считаются календарные дни
}

// NewService создаёт сервис стриков.
func NewService(store db.Store, locker lock.Locker, bus events.Publisher, rng random.Source, loc *time.Location) *Service {
	return &Service{store: store, locker: locker, bus: bus, rng: rng, loc: loc}
}

// Get возвращает стрик игрока. Если записи нет — ErrNotFound.
func (s *Service) Get(ctx context.Context, accountID int64) (*models.Streak, error) {
	var rec *models.Streak
	err := s.store.WithTx(ctx, func(tx db.Tx) error {
		var err error
		rec, err = tx.GetStreak(ctx, accountID)
		return err
	})
	return rec, err
}

// Touch отмечает вход игрока.
func (s *Service) Touch(ctx context.Context, accountID int64, now time.Time) (models.Streak, Status, error) {
	unlock, err := s.locker.Lock(ctx, lock.AccountKey(accountID))
	if err != nil {
		return models.Streak{}, "", err
	}
	defer unlock()

	var (
		next   models.Streak
		status Status
	)
	err = s.store.WithTx(ctx, func(tx db.Tx) error {
		var err error
		next, status, err = s.touch(ctx, tx, accountID, now)
		return err
	})
	if err != nil {
		return models.Streak{}, "", err
	}
	if status == StatusReset {
		log.WithField("account_id", accountID).Debug("Серия входов сброшена")
	}
	return next, status, nil
}

func (s *Service) touch(ctx context.Context, tx db.Tx, accountID int64, now time.Time) (models.Streak, Status, error) {
	rec, err := tx.GetStreak(ctx, accountID)
	if errors.Is(err, common.ErrNotFound) {
		rec, err = nil, nil
	}
	if err != nil {
		return models.Streak{}, "", err
	}

	next, status := Advance(rec, accountID, now, s.loc)
	if status.Changed() {
		if err := tx.SaveStreak(ctx, &next); err != nil {
			return models.Streak{}, "", err
		}
	}
	return next, status, nil
}

// Claim выдаёт награду за текущий день серии. Перед этим отмечает вход,
// поэтому отдельный Touch не нужен. Второй вызов в тот же день — ErrAlreadyClaimed.
func (s *Service) Claim(ctx context.Context, accountID int64, now time.Time) (*ClaimResult, error) {
	unlock, err := s.locker.Lock(ctx, lock.AccountKey(accountID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		res    ClaimResult
		chatID int64
	)
	err = s.store.WithTx(ctx, func(tx db.Tx) error {
		acc, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		chatID = acc.ChatID

		next, status, err := s.touch(ctx, tx, accountID, now)
		if err != nil {
			return err
		}
		if status == StatusAlreadyClaimed {
			return common.ErrAlreadyClaimed
		}

		reward, err := RewardFor(next.Day)
		if err != nil {
			return err
		}
		levels, err := upgrades.Load(ctx, tx, accountID)
		if err != nil {
			return err
		}
		reward.Coins = reward.Coins.Add(levels.DailyBonus())

		note := fmt.Sprintf("Награда за %d-й день", next.Day)
		if err := economy.Credit(ctx, tx, acc, models.AssetCoins, reward.Coins, models.TxStreakReward, note, now); err != nil {
			return err
		}
		if err := economy.Credit(ctx, tx, acc, models.AssetCrypto, reward.Crypto, models.TxStreakReward, note+" (веха)", now); err != nil {
			return err
		}

		next.ClaimedToday = true
		next.LastClaimAt = &now
		if err := tx.SaveStreak(ctx, &next); err != nil {
			return err
		}
		res = ClaimResult{Streak: next, Reward: reward, Status: status}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"account_id": accountID,
		"day":        res.Streak.Day,
		"coins":      res.Reward.Coins.String(),
		"crypto":     res.Reward.Crypto.String(),
	}).Info("Выдана ежедневная награда")

	s.bus.Publish(events.New(events.StreakClaimed, accountID, chatID, now, map[string]string{
		"day":    fmt.Sprint(res.Streak.Day),
		"coins":  res.Reward.Coins.String(),
		"crypto": res.Reward.Crypto.String(),
	}))
	return &res, nil
}

// SpinWheel крутит колесо фортуны. Доступно раз в день после получения награды дня.
func (s *Service) SpinWheel(ctx context.Context, accountID int64, now time.Time) (*WheelResult, error) {
	unlock, err := s.locker.Lock(ctx, lock.AccountKey(accountID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		res    WheelResult
		chatID int64
	)
	err = s.store.WithTx(ctx, func(tx db.Tx) error {
		acc, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		chatID = acc.ChatID

		rec, err := tx.GetStreak(ctx, accountID)
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrWheelUnavailable
		}
		if err != nil {
			return err
		}
		if !WheelAvailable(rec, now, s.loc) {
			return common.ErrWheelUnavailable
		}

		res.Prize, err = random.Choose(s.rng, WheelPrizes, wheelWeights())
		if err != nil {
			return err
		}
		switch res.Prize.Kind {
		case PrizeCoins:
			err = economy.Credit(ctx, tx, acc, models.AssetCoins, res.Prize.Amount, models.TxWheelReward, "Колесо фортуны", now)
		case PrizeCrypto:
			err = economy.Credit(ctx, tx, acc, models.AssetCrypto, res.Prize.Amount, models.TxWheelReward, "Колесо фортуны", now)
		case PrizeBoost:
			res.Collected, err = pets.ApplyBoost(ctx, tx, acc, res.Prize.Multiplier, res.Prize.Duration, now)
		}
		if err != nil {
			return err
		}

		rec.LastWheelAt = &now
		return tx.SaveStreak(ctx, rec)
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"account_id": accountID, "prize": res.Prize.Kind}).Info("Колесо фортуны")
	s.bus.Publish(events.New(events.WheelSpun, accountID, chatID, now, map[string]string{
		"prize":  string(res.Prize.Kind),
		"amount": res.Prize.Amount.String(),
	}))
	return &res, nil
}
