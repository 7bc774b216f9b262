package models

import "time"

// StreakCycle — длина цикла ежедневных наград. После 30-го дня снова 1-й.
const StreakCycle = 30

// Streak — состояние ежедневного входа игрока. Одна запись на аккаунт.
type Streak struct {
	AccountID    int64      `db:"account_id"`
	Day          int        `db:"day"`           // Текущий день серии (1..30)
	TotalLogins  int        `db:"total_logins"`  // Сколько всего дней заходил
	LastLoginAt  time.Time  `db:"last_login_at"` // Последний вход
	ClaimedToday bool       `db:"claimed_today"` // Награда за сегодня получена?
	LastClaimAt  *time.Time `db:"last_claim_at"` // Когда получена последняя награда
	LastWheelAt  *time.Time `db:"last_wheel_at"` // Когда последний раз крутил колесо
}
