// Package battle — бой двух игроков на ставку. Один взвешенный жребий:
// шанс победы пропорционален силе питомцев.
package battle

import (
	"context"
	"strconv"
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

// Result — итог боя.
type Result struct {
	WinnerID        int64
	LoserID         int64
	Stake           decimal.Decimal
	ChallengerPower decimal.Decimal
	OpponentPower   decimal.Decimal
}

// Service проводит бои.
type Service struct {
	store  db.Store
	locker lock.Locker
	bus    events.Publisher
	rng    random.Source
}

// NewService создаёт сервис боёв.
func NewService(store db.Store, locker lock.Locker, bus events.Publisher, rng random.Source) *Service {
	return &Service{store: store, locker: locker, bus: bus, rng: rng}
}

// Weights переводит силу в целые веса жребия (сотые доли).
func Weights(a, b decimal.Decimal) []int {
	return []int{
		int(a.Mul(decimal.NewFromInt(100)).IntPart()),
		int(b.Mul(decimal.NewFromInt(100)).IntPart()),
	}
}

// Fight — бой challenger против opponent на ставку stake монет.
// Оба должны иметь ставку на счету. Проигравший платит победителю.
func (s *Service) Fight(ctx context.Context, challengerID, opponentID int64, stake decimal.Decimal, now time.Time) (*Result, error) {
	stake = common.Coins(stake)
	if !stake.IsPositive() {
		return nil, common.ErrInvalidAmount
	}
	if challengerID == opponentID {
		return nil, common.ErrSelfTrade
	}

	unlock, err := lock.LockAccounts(ctx, s.locker, challengerID, opponentID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	res := &Result{Stake: stake}
	chats := map[int64]int64{}
	err = s.store.WithTx(ctx, func(tx db.Tx) error {
		ids := []int64{challengerID, opponentID}
		if challengerID > opponentID {
			ids[0], ids[1] = ids[1], ids[0]
		}
		accs := map[int64]*models.Account{}
		for _, id := range ids {
			acc, err := tx.LockAccount(ctx, id)
			if err != nil {
				return err
			}
			accs[id] = acc
			chats[id] = acc.ChatID
		}
		for _, id := range []int64{challengerID, opponentID} {
			if err := economy.EnsureFunds(accs[id], models.AssetCoins, stake); err != nil {
				return err
			}
		}

		powers := map[int64]decimal.Decimal{}
		for _, id := range ids {
			owned, err := tx.ListPets(ctx, id)
			if err != nil {
				return err
			}
			powers[id] = pets.Power(owned)
		}
		res.ChallengerPower, res.OpponentPower = powers[challengerID], powers[opponentID]

		res.WinnerID, err = random.Choose(s.rng, []int64{challengerID, opponentID}, Weights(res.ChallengerPower, res.OpponentPower))
		if err != nil {
			return err
		}
		res.LoserID = opponentID
		if res.WinnerID == opponentID {
			res.LoserID = challengerID
		}

		if err := economy.Debit(ctx, tx, accs[res.LoserID], models.AssetCoins, stake, models.TxBattleStake, "Проигранный бой", now); err != nil {
			return err
		}
		return economy.Credit(ctx, tx, accs[res.WinnerID], models.AssetCoins, stake, models.TxBattleWin, "Выигранный бой", now)
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"winner_id": res.WinnerID,
		"loser_id":  res.LoserID,
		"stake":     stake.String(),
	}).Info("Бой завершён")

	for _, id := range []int64{res.WinnerID, res.LoserID} {
		s.bus.Publish(events.New(events.BattleFinished, id, chats[id], now, map[string]string{
			"winner_id":  strconv.FormatInt(res.WinnerID, 10),
			"stake":      stake.String(),
			"won":        strconv.FormatBool(id == res.WinnerID),
			"challenger": strconv.FormatBool(id == challengerID),
		}))
	}
	return res, nil
}
