package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ListingStatus — статус лота. sold и cancelled — конечные.
type ListingStatus string

const (
	ListingActive    ListingStatus = "active"
	ListingSold      ListingStatus = "sold"
	ListingCancelled ListingStatus = "cancelled"
)

// Listing — лот P2P-маркета.
type Listing struct {
	ID        int64           `db:"id"`
	PetID     int64           `db:"pet_id"`
	SellerID  int64           `db:"seller_id"`
	Price     decimal.Decimal `db:"price"`
	Status    ListingStatus   `db:"status"`
	BuyerID   *int64          `db:"buyer_id"`
	SoldAt    *time.Time      `db:"sold_at"`
	CreatedAt time.Time       `db:"created_at"`
}
