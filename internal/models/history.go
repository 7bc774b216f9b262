package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RewardKind — что выпало из кейса.
type RewardKind string

const (
	RewardCoins  RewardKind = "coins"
	RewardCrypto RewardKind = "crypto"
	RewardPet    RewardKind = "pet"
)

// CaseOpening — запись истории открытия кейса (для статистики RTP).
type CaseOpening struct {
	ID           int64           `db:"id"`
	AccountID    int64           `db:"account_id"`
	CaseTier     string          `db:"case_tier"`
	CostAsset    Asset           `db:"cost_asset"`
	Cost         decimal.Decimal `db:"cost"`
	RewardKind   RewardKind      `db:"reward_kind"`
	RewardAmount decimal.Decimal `db:"reward_amount"`   // Для монет и крипты
	RewardTier   PetTier         `db:"reward_pet_tier"` // Для питомца
	Rarity       string          `db:"rarity"`
	PetID        *int64          `db:"pet_id"`
	CreatedAt    time.Time       `db:"created_at"`
}

// FusionEvent — запись о слиянии питомцев.
type FusionEvent struct {
	ID           int64     `db:"id"`
	AccountID    int64     `db:"account_id"`
	InputTier    PetTier   `db:"input_tier"`
	BurnedPetIDs []int64   `db:"burned_pet_ids"`
	OutputPetID  int64     `db:"output_pet_id"`
	CreatedAt    time.Time `db:"created_at"`
}
