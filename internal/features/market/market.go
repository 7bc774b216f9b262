// Package market — P2P-маркет питомцев: выставить, снять, купить.
// Продавец получает цену за вычетом комиссии; скидка подписки продавца
// уменьшает комиссию.
package market

import (
	"context"
	"fmt"
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
)

// Sale — итог покупки лота.
type Sale struct {
	Listing    *models.Listing
	Pet        *models.Pet
	Fee        decimal.Decimal
	SellerGets decimal.Decimal
}

// Service — маркет.
type Service struct {
	store  db.Store
	locker lock.Locker
	bus    events.Publisher
	feePct decimal.Decimal
}

// NewService создаёт маркет с комиссией feePct процентов.
func NewService(store db.Store, locker lock.Locker, bus events.Publisher, feePct decimal.Decimal) *Service {
	return &Service{store: store, locker: locker, bus: bus, feePct: feePct}
}

// Fee — комиссия с цены с учётом скидки продавца.
func Fee(price, feePct, reductionPct decimal.Decimal) decimal.Decimal {
	return common.Coins(common.Percent(price, economy.ReducedFee(feePct, reductionPct)))
}

// List выставляет питомца на продажу.
func (s *Service) List(ctx context.Context, sellerID, petID int64, price decimal.Decimal, now time.Time) (*models.Listing, error) {
	price = common.Coins(price)
	if !price.IsPositive() {
		return nil, common.ErrInvalidAmount
	}

	unlock, err := s.locker.Lock(ctx, lock.AccountKey(sellerID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var l *models.Listing
	err = s.store.WithTx(ctx, func(tx db.Tx) error {
		p, err := tx.GetPet(ctx, petID)
		if err != nil {
			return err
		}
		if p.OwnerID != sellerID {
			return fmt.Errorf("питомец %d: %w", petID, common.ErrNotFound)
		}
		if p.Locked {
			return common.ErrPetLocked
		}
		listed, err := pets.IsListed(ctx, tx, petID)
		if err != nil {
			return err
		}
		if listed {
			return common.ErrAlreadyListed
		}

		l = &models.Listing{
			PetID:     petID,
			SellerID:  sellerID,
			Price:     price,
			Status:    models.ListingActive,
			CreatedAt: now,
		}
		return tx.CreateListing(ctx, l)
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"listing_id": l.ID, "pet_id": petID, "price": price.String()}).Info("Лот выставлен")
	return l, nil
}

// Cancel снимает свой активный лот.
func (s *Service) Cancel(ctx context.Context, sellerID, listingID int64) error {
	unlock, err := s.locker.Lock(ctx, lock.AccountKey(sellerID))
	if err != nil {
		return err
	}
	defer unlock()

	return s.store.WithTx(ctx, func(tx db.Tx) error {
		l, err := tx.GetListing(ctx, listingID)
		if err != nil {
			return err
		}
		if l.SellerID != sellerID {
			return fmt.Errorf("лот %d: %w", listingID, common.ErrNotFound)
		}
		if l.Status != models.ListingActive {
			return common.ErrListingClosed
		}
		l.Status = models.ListingCancelled
		return tx.UpdateListing(ctx, l)
	})
}

// Active возвращает активные лоты.
func (s *Service) Active(ctx context.Context, limit int) ([]*models.Listing, error) {
	var out []*models.Listing
	err := s.store.WithTx(ctx, func(tx db.Tx) error {
		var err error
		out, err = tx.ListActiveListings(ctx, limit)
		return err
	})
	return out, err
}

// Buy покупает лот. Блокирует покупателя и продавца в порядке ID.
func (s *Service) Buy(ctx context.Context, buyerID, listingID int64, now time.Time) (*Sale, error) {
	var sellerID int64
	err := s.store.WithTx(ctx, func(tx db.Tx) error {
		l, err := tx.GetListing(ctx, listingID)
		if err != nil {
			return err
		}
		sellerID = l.SellerID
		return nil
	})
	if err != nil {
		return nil, err
	}
	if sellerID == buyerID {
		return nil, common.ErrSelfTrade
	}

	unlock, err := lock.LockAccounts(ctx, s.locker, buyerID, sellerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		sale       Sale
		sellerChat int64
	)
	err = s.store.WithTx(ctx, func(tx db.Tx) error {
		l, err := tx.GetListing(ctx, listingID)
		if err != nil {
			return err
		}
		if l.Status != models.ListingActive {
			return common.ErrListingClosed
		}

		// строки аккаунтов блокируем в порядке ID, как и ключи выше
		first, second := buyerID, l.SellerID
		if first > second {
			first, second = second, first
		}
		locked := map[int64]*models.Account{}
		for _, id := range []int64{first, second} {
			acc, err := tx.LockAccount(ctx, id)
			if err != nil {
				return err
			}
			locked[id] = acc
		}
		buyer, seller := locked[buyerID], locked[l.SellerID]
		sellerChat = seller.ChatID

		p, err := tx.GetPet(ctx, l.PetID)
		if err != nil {
			return err
		}
		if p.OwnerID != seller.ID || p.Locked {
			return common.ErrListingClosed
		}

		benefits, err := economy.ActiveBenefits(ctx, tx, seller.ID, now)
		if err != nil {
			return err
		}
		fee := Fee(l.Price, s.feePct, benefits.FeeReductionPct)
		gets := l.Price.Sub(fee)

		if err := economy.Debit(ctx, tx, buyer, models.AssetCoins, l.Price, models.TxMarketPurchase, "Покупка "+p.Variant, now); err != nil {
			return err
		}
		// Доход продавца до продажи остаётся у продавца
		if _, err := pets.CollectTx(ctx, tx, seller, now); err != nil {
			return err
		}
		if err := economy.Credit(ctx, tx, seller, models.AssetCoins, gets, models.TxMarketSale, "Продажа "+p.Variant, now); err != nil {
			return err
		}

		p, err = tx.GetPet(ctx, l.PetID)
		if err != nil {
			return err
		}
		p.OwnerID = buyer.ID
		p.LastCollectedAt = now
		if err := tx.UpdatePet(ctx, p); err != nil {
			return err
		}

		l.Status = models.ListingSold
		l.BuyerID = &buyer.ID
		l.SoldAt = &now
		if err := tx.UpdateListing(ctx, l); err != nil {
			return err
		}
		sale = Sale{Listing: l, Pet: p, Fee: fee, SellerGets: gets}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"listing_id": listingID,
		"buyer_id":   buyerID,
		"seller_id":  sellerID,
		"price":      sale.Listing.Price.String(),
		"fee":        sale.Fee.String(),
	}).Info("Лот продан")

	s.bus.Publish(events.New(events.MarketSale, sellerID, sellerChat, now, map[string]string{
		"listing_id": strconv.FormatInt(listingID, 10),
		"variant":    sale.Pet.Variant,
		"price":      sale.Listing.Price.String(),
		"gets":       sale.SellerGets.String(),
	}))
	return &sale, nil
}
