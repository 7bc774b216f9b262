// Package cases — service.go: открытие кейса и статистика RTP.
package cases

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
	"serotonyl.ru/bear-tycoon/internal/features/pets"
	"serotonyl.ru/bear-tycoon/internal/lock"
	"serotonyl.ru/bear-tycoon/internal/models"
	"serotonyl.ru/bear-tycoon/internal/random"
)

// Result — итог открытия кейса.
type Result struct {
	Case  *Table
	Entry Entry
	Pet   *models.Pet // Только для награды-питомца
}

// Stats — статистика кейсов игрока. Суммы в монетах.
type Stats struct {
	Opened int
	Spent  decimal.Decimal
	Earned decimal.Decimal
	RTP    decimal.Decimal // Earned / Spent * 100, 0 если ничего не потрачено
}

// Service открывает кейсы.
type Service struct {
	store  db.Store
	locker lock.Locker
	bus    events.Publisher
	rng    random.Source
	cfg    economy.Config
}

// NewService создаёт сервис кейсов. cfg нужен для пересчёта крипты в монеты в статистике.
func NewService(store db.Store, locker lock.Locker, bus events.Publisher, rng random.Source, cfg economy.Config) *Service {
	return &Service{store: store, locker: locker, bus: bus, rng: rng, cfg: cfg}
}

// OpenCase списывает цену кейса, разыгрывает и выдаёт награду.
// Всё в одной транзакции: при любой ошибке списание откатывается.
// Траты на кейсы не платят реферальных.
func (s *Service) OpenCase(ctx context.Context, accountID int64, tier string, now time.Time) (*Result, error) {
	table, ok := Lookup(tier)
	if !ok {
		return nil, common.ErrUnknownCaseTier
	}

	unlock, err := s.locker.Lock(ctx, lock.AccountKey(accountID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	res := &Result{Case: table}
	var chatID int64
	err = s.store.WithTx(ctx, func(tx db.Tx) error {
		acc, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		chatID = acc.ChatID

		if err := economy.Debit(ctx, tx, acc, table.CostAsset, table.Cost, models.TxCaseCost, table.Title, now); err != nil {
			return err
		}

		res.Entry, err = Draw(table, s.rng)
		if err != nil {
			return err
		}

		opening := &models.CaseOpening{
			AccountID:  accountID,
			CaseTier:   table.Tier,
			CostAsset:  table.CostAsset,
			Cost:       table.Cost,
			RewardKind: res.Entry.Kind,
			Rarity:     res.Entry.Rarity,
			CreatedAt:  now,
		}
		note := fmt.Sprintf("%s: %s", table.Title, res.Entry.Label())
		switch res.Entry.Kind {
		case models.RewardCoins:
			err = economy.Credit(ctx, tx, acc, models.AssetCoins, res.Entry.Amount, models.TxCaseReward, note, now)
			opening.RewardAmount = res.Entry.Amount
		case models.RewardCrypto:
			err = economy.Credit(ctx, tx, acc, models.AssetCrypto, res.Entry.Amount, models.TxCaseReward, note, now)
			opening.RewardAmount = res.Entry.Amount
		case models.RewardPet:
			res.Pet, err = pets.Mint(ctx, tx, s.rng, accountID, res.Entry.PetTier, now)
			if err == nil {
				opening.RewardTier = res.Entry.PetTier
				opening.PetID = &res.Pet.ID
			}
		default:
			err = fmt.Errorf("неизвестный тип награды %q", res.Entry.Kind)
		}
		if err != nil {
			return err
		}
		return tx.AppendCaseOpening(ctx, opening)
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"account_id": accountID,
		"case":       table.Tier,
		"reward":     res.Entry.Label(),
		"rarity":     res.Entry.Rarity,
	}).Info("Открыт кейс")

	s.bus.Publish(events.New(events.RewardGranted, accountID, chatID, now, map[string]string{
		"case":   table.Tier,
		"rarity": res.Entry.Rarity,
		"kind":   string(res.Entry.Kind),
		"reward": res.Entry.Label(),
	}))
	return res, nil
}

// CaseStats считает статистику по истории открытий.
// Крипта пересчитывается по курсу, питомцы оцениваются по цене магазина.
func (s *Service) CaseStats(ctx context.Context, accountID int64) (*Stats, error) {
	var openings []*models.CaseOpening
	err := s.store.WithTx(ctx, func(tx db.Tx) error {
		var err error
		openings, err = tx.ListCaseOpenings(ctx, accountID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("история кейсов: %w", err)
	}

	st := &Stats{Opened: len(openings), Spent: decimal.Zero, Earned: decimal.Zero, RTP: decimal.Zero}
	for _, o := range openings {
		st.Spent = st.Spent.Add(s.coinValue(o.CostAsset, o.Cost))
		switch o.RewardKind {
		case models.RewardCoins:
			st.Earned = st.Earned.Add(o.RewardAmount)
		case models.RewardCrypto:
			st.Earned = st.Earned.Add(s.cfg.CryptoToCoins(o.RewardAmount))
		case models.RewardPet:
			st.Earned = st.Earned.Add(pets.Value(o.RewardTier))
		}
	}
	if st.Spent.IsPositive() {
		st.RTP = st.Earned.Div(st.Spent).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return st, nil
}

func (s *Service) coinValue(asset models.Asset, amount decimal.Decimal) decimal.Decimal {
	if asset == models.AssetCrypto {
		return s.cfg.CryptoToCoins(amount)
	}
	return amount
}
