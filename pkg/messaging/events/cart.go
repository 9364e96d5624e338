package events

import (
	"encoding/json"
	"time"

	"github.com/abgdnv/shopcart/pkg/messaging"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartChangedEvent is emitted after every cart mutation.
type CartChangedEvent struct {
	Kind      string          `json:"kind"`
	ItemCount int             `json:"item_count"`
	Total     decimal.Decimal `json:"total"`
	At        time.Time       `json:"at"`
}

func (c CartChangedEvent) Subject() string {
	return messaging.CartChangedSubject
}

func (c CartChangedEvent) Payload() ([]byte, error) {
	return json.Marshal(c)
}

// OrderPlacedEvent is emitted once per successful checkout.
type OrderPlacedEvent struct {
	OrderID    uuid.UUID       `json:"order_id"`
	ItemCount  int             `json:"item_count"`
	TotalPrice decimal.Decimal `json:"total_price"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (o OrderPlacedEvent) Subject() string {
	return messaging.OrdersPlacedSubject
}

func (o OrderPlacedEvent) Payload() ([]byte, error) {
	return json.Marshal(o)
}
