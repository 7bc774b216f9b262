// Package referral начисляет реферальные комиссии.
// Когда игрок тратит монеты, три ближайших пригласивших вверх по цепочке
// получают 20%, 10% и 5% от суммы. Начисление идёт в той же транзакции,
// что и трата.
package referral

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"serotonyl.ru/bear-tycoon/internal/common"
	"serotonyl.ru/bear-tycoon/internal/db"
	"serotonyl.ru/bear-tycoon/internal/events"
	"serotonyl.ru/bear-tycoon/internal/features/economy"
	"serotonyl.ru/bear-tycoon/internal/models"
)

// Rates — доля комиссии по уровням, в процентах.
var Rates = [models.ReferralTiers]decimal.Decimal{
	decimal.NewFromInt(20),
	decimal.NewFromInt(10),
	decimal.NewFromInt(5),
}

// Payout — одно начисление пригласившему.
type Payout struct {
	AccountID int64
	ChatID    int64
	Tier      int // 1..3
	Amount    decimal.Decimal
}

// Distribute поднимается по цепочке рефереров от spender не больше чем на три шага
// и начисляет каждому комиссию с amount (в монетах).
// Останавливается на первом отсутствующем реферере.
func Distribute(ctx context.Context, tx db.Tx, spender *models.Account, amount decimal.Decimal, now time.Time) ([]Payout, error) {
	if !amount.IsPositive() {
		return nil, nil
	}

	var payouts []Payout
	next := spender.ReferrerID
	for tier := 1; tier <= models.ReferralTiers && next != nil; tier++ {
		if *next == spender.ID {
			break
		}
		ref, err := tx.LockAccount(ctx, *next)
		if errors.Is(err, common.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("реферер %d: %w", *next, err)
		}

		share := common.Coins(common.Percent(amount, Rates[tier-1]))
		if share.IsPositive() {
			ref.ReferralEarnings[tier-1] = ref.ReferralEarnings[tier-1].Add(share)
			note := fmt.Sprintf("Реферал %d-го уровня", tier)
			if err := economy.Credit(ctx, tx, ref, models.AssetCoins, share, models.ReferralCategory(tier), note, now); err != nil {
				return nil, err
			}
			payouts = append(payouts, Payout{AccountID: ref.ID, ChatID: ref.ChatID, Tier: tier, Amount: share})
		}
		next = ref.ReferrerID
	}
	return payouts, nil
}

// Events превращает начисления в события для уведомлений.
func Events(payouts []Payout, now time.Time) []events.Event {
	out := make([]events.Event, 0, len(payouts))
	for _, p := range payouts {
		out = append(out, events.New(events.ReferralPaid, p.AccountID, p.ChatID, now, map[string]string{
			"tier":   strconv.Itoa(p.Tier),
			"amount": p.Amount.String(),
		}))
	}
	return out
}
