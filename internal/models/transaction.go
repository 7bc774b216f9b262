package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction — неизменяемая запись журнала.
// Сумма со знаком: списания отрицательные, начисления положительные.
type Transaction struct {
	ID        int64           `db:"id"`
	AccountID int64           `db:"account_id"`
	Asset     Asset           `db:"asset"`
	Amount    decimal.Decimal `db:"amount"`
	Category  string          `db:"category"`
	Note      string          `db:"note"`
	CreatedAt time.Time       `db:"created_at"`
}

// Категории транзакций
const (
	TxWelcomeBonus        = "welcome_bonus"        // Стартовый баланс
	TxCaseCost            = "case_cost"            // Оплата кейса
	TxCaseReward          = "case_reward"          // Награда из кейса
	TxStreakReward        = "streak_reward"        // Ежедневная награда
	TxWheelReward         = "wheel_reward"         // Колесо фортуны
	TxReferralTier1       = "referral_t1"          // Реферальные 1-го уровня
	TxReferralTier2       = "referral_t2"          // Реферальные 2-го уровня
	TxReferralTier3       = "referral_t3"          // Реферальные 3-го уровня
	TxSubscription        = "subscription"         // Покупка подписки
	TxSubscriptionRenewal = "subscription_renewal" // Автопродление
	TxUpgrade             = "upgrade"              // Покупка улучшения
	TxPetPurchase         = "pet_purchase"         // Покупка питомца в магазине
	TxPetLevelUp          = "pet_level_up"         // Прокачка питомца
	TxPetIncome           = "pet_income"           // Сбор дохода
	TxCollectibleMint     = "collectible_mint"     // Превращение в коллекционный токен
	TxMarketPurchase      = "market_purchase"      // Покупка на маркете
	TxMarketSale          = "market_sale"          // Продажа на маркете (за вычетом комиссии)
	TxExchangeOut         = "exchange_out"         // Обмен: списание монет
	TxExchangeIn          = "exchange_in"          // Обмен: зачисление крипты
	TxWithdraw            = "withdraw"             // Вывод крипты
	TxBattleStake         = "battle_stake"         // Проигранная ставка
	TxBattleWin           = "battle_win"           // Выигранная ставка
)

// ReferralCategory возвращает категорию транзакции для уровня 1..3.
func ReferralCategory(tier int) string {
	switch tier {
	case 1:
		return TxReferralTier1
	case 2:
		return TxReferralTier2
	default:
		return TxReferralTier3
	}
}
