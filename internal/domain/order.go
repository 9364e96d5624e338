package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order is the immutable record of a completed checkout.
type Order struct {
	ID         uuid.UUID       `json:"id"`
	Products   []Product       `json:"products"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Date       time.Time       `json:"date"`
}

// NewOrder snapshots products into a new order dated at.
// TotalPrice is always the sum of the snapshot's prices.
func NewOrder(products []Product, at time.Time) Order {
	snapshot := make([]Product, len(products))
	copy(snapshot, products)
	return Order{
		ID:         uuid.New(),
		Products:   snapshot,
		TotalPrice: Total(snapshot),
		Date:       at,
	}
}

// Clone returns a copy that shares no backing array with o.
func (o Order) Clone() Order {
	products := make([]Product, len(o.Products))
	copy(products, o.Products)
	o.Products = products
	return o
}
