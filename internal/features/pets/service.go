// Package pets — service.go: создание, покупка, прокачка питомцев,
// сбор дохода и превращение в коллекционный токен.
package pets

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"

	"serotonyl.ru/bear-tycoon/internal/common"
	"serotonyl.ru/bear-tycoon/internal/db"
	"serotonyl.ru/bear-tycoon/internal/events"
	"serotonyl.ru/bear-tycoon/internal/features/economy"
	"serotonyl.ru/bear-tycoon/internal/features/referral"
	"serotonyl.ru/bear-tycoon/internal/features/upgrades"
	"serotonyl.ru/bear-tycoon/internal/lock"
	"serotonyl.ru/bear-tycoon/internal/models"
	"serotonyl.ru/bear-tycoon/internal/random"
)

// TokenizePrice — стоимость превращения питомца в коллекционный токен, BRC.
var TokenizePrice = decimal.NewFromInt(1)

// Service управляет питомцами.
type Service struct {
	store  db.Store
	locker lock.Locker
	bus    events.Publisher
	rng    random.Source
}

// NewService создаёт сервис питомцев.
func NewService(store db.Store, locker lock.Locker, bus events.Publisher, rng random.Source) *Service {
	return &Service{store: store, locker: locker, bus: bus, rng: rng}
}

// Mint создаёт питомца уровня tier со случайной разновидностью.
// Единственная точка рождения питомца: магазин, кейсы и слияние вызывают её.
func Mint(ctx context.Context, tx db.Tx, rng random.Source, ownerID int64, tier models.PetTier, now time.Time) (*models.Pet, error) {
	if !tier.Valid() {
		return nil, fmt.Errorf("неизвестный уровень питомца %d", tier)
	}
	variants := Variants(tier)
	p := &models.Pet{
		OwnerID:         ownerID,
		Tier:            tier,
		Variant:         variants[rng.UniformInt(0, len(variants)-1)],
		Level:           1,
		BaseYield:       BaseYield(tier),
		BoostMultiplier: one,
		LastCollectedAt: now,
		CreatedAt:       now,
	}
	if err := tx.CreatePet(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// List возвращает питомцев аккаунта.
func (s *Service) List(ctx context.Context, accountID int64) ([]*models.Pet, error) {
	var out []*models.Pet
	err := s.store.WithTx(ctx, func(tx db.Tx) error {
		var err error
		out, err = tx.ListPets(ctx, accountID)
		return err
	})
	return out, err
}

// Buy покупает питомца в магазине. Уровень должен быть открыт веткой «Магазин».
func (s *Service) Buy(ctx context.Context, accountID int64, tier models.PetTier, now time.Time) (*models.Pet, error) {
	price, forSale := ShopPrice(tier)
	if !forSale {
		return nil, common.ErrTierLocked
	}

	unlock, err := s.locker.Lock(ctx, lock.AccountKey(accountID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		pet     *models.Pet
		payouts []referral.Payout
		chatID  int64
	)
	err = s.store.WithTx(ctx, func(tx db.Tx) error {
		acc, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		chatID = acc.ChatID

		levels, err := upgrades.Load(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if tier > levels.ShopMaxTier() {
			return common.ErrTierLocked
		}

		if err := economy.Debit(ctx, tx, acc, models.AssetCoins, price, models.TxPetPurchase, "Покупка питомца: "+tier.String(), now); err != nil {
			return err
		}
		pet, err = Mint(ctx, tx, s.rng, accountID, tier, now)
		if err != nil {
			return err
		}
		payouts, err = referral.Distribute(ctx, tx, acc, price, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"account_id": accountID,
		"pet_id":     pet.ID,
		"tier":       tier.String(),
	}).Info("Куплен питомец")

	evs := []events.Event{events.New(events.PetPurchased, accountID, chatID, now, map[string]string{
		"tier":    tier.String(),
		"variant": pet.Variant,
	})}
	s.bus.Publish(append(evs, referral.Events(payouts, now)...)...)
	return pet, nil
}

// LevelUp повышает уровень питомца на 1.
func (s *Service) LevelUp(ctx context.Context, accountID, petID int64, now time.Time) (*models.Pet, decimal.Decimal, error) {
	unlock, err := s.locker.Lock(ctx, lock.AccountKey(accountID))
	if err != nil {
		return nil, decimal.Zero, err
	}
	defer unlock()

	var (
		pet     *models.Pet
		cost    decimal.Decimal
		payouts []referral.Payout
	)
	err = s.store.WithTx(ctx, func(tx db.Tx) error {
		acc, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		// Накопленное забирается по старому уровню
		if _, err := CollectTx(ctx, tx, acc, now); err != nil {
			return err
		}
		pet, err = ownedPet(ctx, tx, accountID, petID)
		if err != nil {
			return err
		}
		if pet.Locked {
			return common.ErrPetLocked
		}
		if pet.Level >= MaxLevel {
			return common.ErrMaxLevelReached
		}

		cost = LevelUpCost(pet.Tier, pet.Level)
		note := fmt.Sprintf("Прокачка %s до %d ур.", pet.Variant, pet.Level+1)
		if err := economy.Debit(ctx, tx, acc, models.AssetCoins, cost, models.TxPetLevelUp, note, now); err != nil {
			return err
		}
		pet.Level++
		if err := tx.UpdatePet(ctx, pet); err != nil {
			return err
		}
		payouts, err = referral.Distribute(ctx, tx, acc, cost, now)
		return err
	})
	if err != nil {
		return nil, decimal.Zero, err
	}

	log.WithFields(log.Fields{"account_id": accountID, "pet_id": petID, "pet_level": pet.Level}).Info("Питомец прокачан")
	s.bus.Publish(referral.Events(payouts, now)...)
	return pet, cost, nil
}

// Collect собирает накопленный доход всех питомцев.
func (s *Service) Collect(ctx context.Context, accountID int64, now time.Time) (decimal.Decimal, error) {
	unlock, err := s.locker.Lock(ctx, lock.AccountKey(accountID))
	if err != nil {
		return decimal.Zero, err
	}
	defer unlock()

	var income decimal.Decimal
	err = s.store.WithTx(ctx, func(tx db.Tx) error {
		acc, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		income, err = CollectTx(ctx, tx, acc, now)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}

	if income.IsPositive() {
		log.WithFields(log.Fields{"account_id": accountID, "income": income.String()}).Debug("Собран доход")
	}
	return income, nil
}

// CollectTx начисляет доход питомцев и перезапускает их счётчики.
// acc должен быть заблокирован в этой же транзакции.
func CollectTx(ctx context.Context, tx db.Tx, acc *models.Account, now time.Time) (decimal.Decimal, error) {
	owned, err := tx.ListPets(ctx, acc.ID)
	if err != nil {
		return decimal.Zero, err
	}
	if len(owned) == 0 {
		return decimal.Zero, nil
	}

	levels, err := upgrades.Load(ctx, tx, acc.ID)
	if err != nil {
		return decimal.Zero, err
	}
	benefits, err := economy.ActiveBenefits(ctx, tx, acc.ID, now)
	if err != nil {
		return decimal.Zero, err
	}

	bonus := levels.IncomeBonusPct().Add(benefits.IncomeBonusPct)
	income := common.Coins(Income(owned, now, levels.StorageCap(), bonus))

	for _, p := range owned {
		p.LastCollectedAt = now
		if p.BoostUntil != nil && !p.BoostUntil.After(now) {
			p.BoostUntil = nil
			p.BoostMultiplier = one
		}
		if err := tx.UpdatePet(ctx, p); err != nil {
			return decimal.Zero, err
		}
	}
	if err := economy.Credit(ctx, tx, acc, models.AssetCoins, income, models.TxPetIncome, "Доход питомцев", now); err != nil {
		return decimal.Zero, err
	}
	return income, nil
}

// ApplyBoost собирает накопленный доход и включает буст дохода всем питомцам аккаунта.
// Доход собирается заранее, чтобы буст не задним числом увеличил прошлые часы.
func ApplyBoost(ctx context.Context, tx db.Tx, acc *models.Account, multiplier decimal.Decimal, d time.Duration, now time.Time) (decimal.Decimal, error) {
	income, err := CollectTx(ctx, tx, acc, now)
	if err != nil {
		return decimal.Zero, err
	}
	owned, err := tx.ListPets(ctx, acc.ID)
	if err != nil {
		return decimal.Zero, err
	}
	until := now.Add(d)
	for _, p := range owned {
		p.BoostMultiplier = multiplier
		p.BoostUntil = &until
		if err := tx.UpdatePet(ctx, p); err != nil {
			return decimal.Zero, err
		}
	}
	return income, nil
}

// Tokenize превращает питомца в коллекционный токен: стоит TokenizePrice BRC,
// питомец блокируется (нельзя прокачать, слить или продать), накопленный доход
// зачисляется до блокировки.
func (s *Service) Tokenize(ctx context.Context, accountID, petID int64, now time.Time) (*models.Pet, error) {
	unlock, err := s.locker.Lock(ctx, lock.AccountKey(accountID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		pet    *models.Pet
		chatID int64
	)
	err = s.store.WithTx(ctx, func(tx db.Tx) error {
		acc, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		chatID = acc.ChatID
		// После блокировки питомец не копит доход, поэтому сначала сбор
		if _, err := CollectTx(ctx, tx, acc, now); err != nil {
			return err
		}
		pet, err = ownedPet(ctx, tx, accountID, petID)
		if err != nil {
			return err
		}
		if pet.Locked {
			return common.ErrPetLocked
		}
		if listed, err := IsListed(ctx, tx, petID); err != nil {
			return err
		} else if listed {
			return common.ErrAlreadyListed
		}

		if err := economy.Debit(ctx, tx, acc, models.AssetCrypto, TokenizePrice, models.TxCollectibleMint, "Коллекционный токен", now); err != nil {
			return err
		}
		pet.Locked = true
		pet.TokenID = TokenID(pet, now)
		return tx.UpdatePet(ctx, pet)
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"account_id": accountID, "pet_id": petID, "token": pet.TokenID}).Info("Выпущен коллекционный токен")
	s.bus.Publish(events.New(events.CollectibleMinted, accountID, chatID, now, map[string]string{
		"pet_id": fmt.Sprint(petID),
		"token":  pet.TokenID,
	}))
	return pet, nil
}

// TokenID — hex(BLAKE2b-256) от владельца, питомца, разновидности, уровня редкости и времени.
func TokenID(p *models.Pet, now time.Time) string {
	sum := blake2b.Sum256([]byte(fmt.Sprintf("%d|%d|%s|%s|%d", p.OwnerID, p.ID, p.Variant, p.Tier, now.UnixNano())))
	return hex.EncodeToString(sum[:])
}

// IsListed проверяет, выставлен ли питомец на маркет.
func IsListed(ctx context.Context, tx db.Tx, petID int64) (bool, error) {
	_, err := tx.GetActiveListingByPet(ctx, petID)
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ownedPet читает питомца и проверяет владельца.
func ownedPet(ctx context.Context, tx db.Tx, ownerID, petID int64) (*models.Pet, error) {
	p, err := tx.GetPet(ctx, petID)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != ownerID {
		return nil, fmt.Errorf("питомец %d: %w", petID, common.ErrNotFound)
	}
	return p, nil
}
