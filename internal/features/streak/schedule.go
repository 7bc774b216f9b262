package streak

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"serotonyl.ru/bear-tycoon/internal/common"
	"serotonyl.ru/bear-tycoon/internal/models"
)

// Schedule — награды за дни 1..30. Монеты растут каждый день,
// на вехах 7/14/21/30 дополнительно выдаётся крипта.
var Schedule = buildSchedule()

var milestones = map[int]decimal.Decimal{
	7:  decimal.NewFromInt(1),
	14: decimal.NewFromInt(2),
	21: decimal.NewFromInt(3),
	30: decimal.NewFromInt(5),
}

func buildSchedule() [models.StreakCycle]Reward {
	var out [models.StreakCycle]Reward
	for i := range out {
		day := i + 1
		r := Reward{
			Day:    day,
			Coins:  decimal.NewFromInt(int64(100 + 50*(day-1))),
			Crypto: decimal.Zero,
		}
		if c, ok := milestones[day]; ok {
			r.Crypto = c
			r.Milestone = true
		}
		out[i] = r
	}
	return out
}

// RewardFor возвращает награду за день серии (1..30).
func RewardFor(day int) (Reward, error) {
	if day < 1 || day > models.StreakCycle {
		return Reward{}, fmt.Errorf("день серии %d вне диапазона 1..%d", day, models.StreakCycle)
	}
	return Schedule[day-1], nil
}

// WheelPrizes — сектора колеса фортуны.
var WheelPrizes = []Prize{
	{Kind: PrizeCoins, Amount: decimal.NewFromInt(200), Weight: 40},
	{Kind: PrizeCoins, Amount: decimal.NewFromInt(500), Weight: 25},
	{Kind: PrizeCoins, Amount: decimal.NewFromInt(1000), Weight: 10},
	{Kind: PrizeCrypto, Amount: decimal.RequireFromString("0.5"), Weight: 10},
	{Kind: PrizeCrypto, Amount: decimal.NewFromInt(1), Weight: 5},
	{Kind: PrizeBoost, Multiplier: decimal.NewFromInt(2), Duration: 2 * time.Hour, Weight: 10},
}

func wheelWeights() []int {
	w := make([]int, len(WheelPrizes))
	for i, p := range WheelPrizes {
		w[i] = p.Weight
	}
	return w
}

// Advance — переход серии при входе игрока в момент now.
// Календарные дни считаются в поясе loc. rec == nil — записи ещё нет.
// Возвращает новое состояние (rec не меняется) и статус перехода.
func Advance(rec *models.Streak, accountID int64, now time.Time, loc *time.Location) (models.Streak, Status) {
	if rec == nil {
		return models.Streak{
			AccountID:   accountID,
			Day:         1,
			TotalLogins: 1,
			LastLoginAt: now,
		}, StatusCreated
	}

	next := *rec
	days := common.DaysBetween(rec.LastLoginAt, now, loc)
	if days <= 0 {
		// тот же день (или часы ушли назад)
		if rec.ClaimedToday {
			return next, StatusAlreadyClaimed
		}
		return next, StatusPending
	}

	next.TotalLogins++
	next.LastLoginAt = now
	next.ClaimedToday = false
	if days == 1 {
		next.Day++
		if next.Day > models.StreakCycle {
			next.Day = 1
		}
		return next, StatusContinued
	}
	next.Day = 1
	return next, StatusReset
}

// WheelAvailable — можно ли крутить колесо: сегодняшняя награда получена,
// а колесо сегодня ещё не крутили.
func WheelAvailable(rec *models.Streak, now time.Time, loc *time.Location) bool {
	if rec == nil || rec.LastClaimAt == nil || !common.SameDay(*rec.LastClaimAt, now, loc) {
		return false
	}
	return rec.LastWheelAt == nil || !common.SameDay(*rec.LastWheelAt, now, loc)
}
