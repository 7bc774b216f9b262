// Package upgrades — service.go: покупка уровней улучшений.
package upgrades

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/bear-tycoon/internal/common"
	"serotonyl.ru/bear-tycoon/internal/db"
	"serotonyl.ru/bear-tycoon/internal/events"
	"serotonyl.ru/bear-tycoon/internal/features/economy"
	"serotonyl.ru/bear-tycoon/internal/features/referral"
	"serotonyl.ru/bear-tycoon/internal/lock"
	"serotonyl.ru/bear-tycoon/internal/models"
)

// Purchase — итог покупки уровня.
type Purchase struct {
	Track    Track
	NewLevel int
	Cost     decimal.Decimal
	Effect   Effect
}

// Service продаёт уровни улучшений.
type Service struct {
	store  db.Store
	locker lock.Locker
	bus    events.Publisher
}

// NewService создаёт сервис улучшений.
func NewService(store db.Store, locker lock.Locker, bus events.Publisher) *Service {
	return &Service{store: store, locker: locker, bus: bus}
}

// Load читает уровни аккаунта внутри транзакции.
func Load(ctx context.Context, tx db.Tx, accountID int64) (Levels, error) {
	levels, err := tx.GetUpgradeLevels(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения улучшений: %w", err)
	}
	return Levels(levels), nil
}

// Levels возвращает уровни аккаунта по всем веткам.
func (s *Service) Levels(ctx context.Context, accountID int64) (Levels, error) {
	var levels Levels
	err := s.store.WithTx(ctx, func(tx db.Tx) error {
		var err error
		levels, err = Load(ctx, tx, accountID)
		return err
	})
	return levels, err
}

// Buy покупает следующий уровень ветки trackID.
func (s *Service) Buy(ctx context.Context, accountID int64, trackID string, now time.Time) (*Purchase, error) {
	track, ok := Lookup(trackID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrInvalidUpgradeTrack, trackID)
	}

	unlock, err := s.locker.Lock(ctx, lock.AccountKey(accountID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		res     *Purchase
		payouts []referral.Payout
		chatID  int64
	)
	err = s.store.WithTx(ctx, func(tx db.Tx) error {
		acc, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		chatID = acc.ChatID

		levels, err := Load(ctx, tx, accountID)
		if err != nil {
			return err
		}
		level := levels[track.ID]
		if level >= track.MaxLevel {
			return common.ErrMaxLevelReached
		}

		cost := track.Cost(level)
		note := fmt.Sprintf("Улучшение «%s» до %d ур.", track.Title, level+1)
		if err := economy.Debit(ctx, tx, acc, models.AssetCoins, cost, models.TxUpgrade, note, now); err != nil {
			return err
		}
		if err := tx.SetUpgradeLevel(ctx, accountID, track.ID, level+1); err != nil {
			return err
		}
		payouts, err = referral.Distribute(ctx, tx, acc, cost, now)
		if err != nil {
			return err
		}

		effect, _ := EffectOf(track.ID, level+1)
		res = &Purchase{Track: track, NewLevel: level + 1, Cost: cost, Effect: effect}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"account_id": accountID,
		"track":      track.ID,
		"new_level":  res.NewLevel,
		"cost":       res.Cost.String(),
	}).Info("Куплено улучшение")

	evs := []events.Event{events.New(events.UpgradePurchased, accountID, chatID, now, map[string]string{
		"track": track.ID,
		"level": fmt.Sprint(res.NewLevel),
	})}
	s.bus.Publish(append(evs, referral.Events(payouts, now)...)...)
	return res, nil
}
