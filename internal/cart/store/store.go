// Package store provides key-value persistence slots for the cart and the order history.
package store

import (
	"context"
)

// Slot names used by the cart store.
const (
	CartSlot   = "cart"
	OrdersSlot = "orders"
)

// SlotStore is an interface for named key-value persistence slots.
// It abstracts the underlying data store, allowing for different implementations (e.g., in-memory, file, redis, database).
type SlotStore interface {
	// Get returns the raw content of a slot.
	// Returns ErrSlotNotFound if the slot has never been written or was deleted.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put replaces the content of a slot.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes a slot. Deleting an absent slot is not an error.
	Delete(ctx context.Context, key string) error
}
