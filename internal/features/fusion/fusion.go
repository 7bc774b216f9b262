// Package fusion — слияние питомцев: ровно Arity питомцев одного уровня
// сгорают, взамен появляется один питомец следующего уровня.
package fusion

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/bear-tycoon/internal/common"
	"serotonyl.ru/bear-tycoon/internal/db"
	"serotonyl.ru/bear-tycoon/internal/events"
	"serotonyl.ru/bear-tycoon/internal/features/pets"
	"serotonyl.ru/bear-tycoon/internal/lock"
	"serotonyl.ru/bear-tycoon/internal/models"
	"serotonyl.ru/bear-tycoon/internal/random"
)

// Arity — сколько питомцев нужно для слияния.
const Arity = 10

// Service выполняет слияния.
type Service struct {
	store  db.Store
	locker lock.Locker
	bus    events.Publisher
	rng    random.Source
}

// NewService создаёт сервис слияния.
func NewService(store db.Store, locker lock.Locker, bus events.Publisher, rng random.Source) *Service {
	return &Service{store: store, locker: locker, bus: bus, rng: rng}
}

// invalid оборачивает причину в ErrInvalidFusion.
func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrInvalidFusion, fmt.Sprintf(format, args...))
}

// Validate проверяет набор ID до обращения к хранилищу.
func Validate(petIDs []int64, inputTier models.PetTier) (models.PetTier, error) {
	if len(petIDs) != Arity {
		return 0, invalid("нужно ровно %d питомцев, передано %d", Arity, len(petIDs))
	}
	seen := make(map[int64]struct{}, len(petIDs))
	for _, id := range petIDs {
		if _, dup := seen[id]; dup {
			return 0, invalid("питомец %d указан дважды", id)
		}
		seen[id] = struct{}{}
	}
	next, ok := inputTier.Next()
	if !ok {
		return 0, invalid("уровень %s нельзя слить", inputTier)
	}
	return next, nil
}

// Fuse сжигает питомцев petIDs уровня inputTier и создаёт одного питомца следующего уровня.
// Питомцы должны принадлежать аккаунту, не быть заблокированы и не стоять на маркете.
func (s *Service) Fuse(ctx context.Context, accountID int64, petIDs []int64, inputTier models.PetTier, now time.Time) (*models.Pet, error) {
	outTier, err := Validate(petIDs, inputTier)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, lock.AccountKey(accountID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		out    *models.Pet
		chatID int64
	)
	err = s.store.WithTx(ctx, func(tx db.Tx) error {
		acc, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		chatID = acc.ChatID

		for _, id := range petIDs {
			p, err := tx.GetPet(ctx, id)
			if errors.Is(err, common.ErrNotFound) {
				return invalid("питомца %d нет", id)
			}
			if err != nil {
				return err
			}
			switch {
			case p.OwnerID != accountID:
				return invalid("питомец %d чужой", id)
			case p.Tier != inputTier:
				return invalid("питомец %d уровня %s, нужен %s", id, p.Tier, inputTier)
			case p.Locked:
				return invalid("питомец %d превращён в коллекционный токен", id)
			}
			listed, err := pets.IsListed(ctx, tx, id)
			if err != nil {
				return err
			}
			if listed {
				return invalid("питомец %d выставлен на маркет", id)
			}
		}

		// Доход сгорающих питомцев не пропадает
		if _, err := pets.CollectTx(ctx, tx, acc, now); err != nil {
			return err
		}
		for _, id := range petIDs {
			if err := tx.DeletePet(ctx, id); err != nil {
				return err
			}
		}

		out, err = pets.Mint(ctx, tx, s.rng, accountID, outTier, now)
		if err != nil {
			return err
		}
		burned := make([]int64, len(petIDs))
		copy(burned, petIDs)
		return tx.AppendFusion(ctx, &models.FusionEvent{
			AccountID:    accountID,
			InputTier:    inputTier,
			BurnedPetIDs: burned,
			OutputPetID:  out.ID,
			CreatedAt:    now,
		})
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"account_id": accountID,
		"input_tier": inputTier.String(),
		"output_pet": out.ID,
	}).Info("Слияние питомцев")

	s.bus.Publish(events.New(events.FusionCompleted, accountID, chatID, now, map[string]string{
		"tier":    out.Tier.String(),
		"variant": out.Variant,
		"pet_id":  strconv.FormatInt(out.ID, 10),
	}))
	return out, nil
}

// Candidates возвращает до Arity питомцев уровня tier, пригодных для слияния:
// не заблокированных и не выставленных на маркет. Нужен боту для команды «слить все».
func (s *Service) Candidates(ctx context.Context, accountID int64, tier models.PetTier) ([]int64, error) {
	var ids []int64
	err := s.store.WithTx(ctx, func(tx db.Tx) error {
		owned, err := tx.ListPets(ctx, accountID)
		if err != nil {
			return err
		}
		for _, p := range owned {
			if p.Tier != tier || p.Locked {
				continue
			}
			listed, err := pets.IsListed(ctx, tx, p.ID)
			if err != nil {
				return err
			}
			if !listed {
				ids = append(ids, p.ID)
			}
			if len(ids) == Arity {
				break
			}
		}
		return nil
	})
	return ids, err
}
