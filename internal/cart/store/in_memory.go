package store

import (
	"context"
	"sync"

	carterrors "github.com/abgdnv/shopcart/internal/cart/errors"
)

// inMemory implements SlotStore using an in-memory map.
type inMemory struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

// NewInMemoryStore creates a new instance of SlotStore that lives as long as the process.
func NewInMemoryStore() SlotStore {
	return &inMemory{
		slots: make(map[string][]byte),
	}
}

// Get returns a copy of the slot content.
func (s *inMemory) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.slots[key]
	if !ok {
		return nil, carterrors.ErrSlotNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Put stores a copy of value.
func (s *inMemory) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := make([]byte, len(value))
	copy(v, value)
	s.slots[key] = v
	return nil
}

// Delete removes the slot.
func (s *inMemory) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.slots, key)
	return nil
}
