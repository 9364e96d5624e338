package service

import (
	"context"
	"time"

	"github.com/abgdnv/shopcart/internal/domain"
)

// ChangeKind names the operation that produced a Change.
type ChangeKind string

const (
	ChangeAdded          ChangeKind = "added"
	ChangeRemoved        ChangeKind = "removed"
	ChangeCheckedOut     ChangeKind = "checked_out"
	ChangeHistoryCleared ChangeKind = "history_cleared"
	ChangeReset          ChangeKind = "reset"
	ChangeLoaded         ChangeKind = "loaded"
)

// Change is the state observed right after a mutation.
// The slices are copies owned by the listener.
type Change struct {
	Kind         ChangeKind
	CartItems    []domain.Product
	OrderHistory []domain.Order
	// Order is the order created by a checkout, nil for other kinds.
	Order *domain.Order
	// At is the store clock reading when the change was made.
	At time.Time

	seq uint64
}

// Listener is called synchronously after every mutation, in subscription order.
// Changes are delivered in the order the mutations were applied, even when
// mutations run concurrently. A listener runs outside the store lock, so it may
// read the store, but it must not mutate it.
type Listener func(ctx context.Context, change Change)

type subscription struct {
	id int
	fn Listener
}

// Subscribe registers l and returns a function that unregisters it.
func (s *CartStore) Subscribe(l Listener) (unsubscribe func()) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, subscription{id: id, fn: l})

	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		for i, sub := range s.listeners {
			if sub.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// notify waits until every earlier change has been delivered, then calls the listeners.
func (s *CartStore) notify(ctx context.Context, change Change) {
	s.deliverMu.Lock()
	for s.delivered+1 != change.seq {
		s.deliverCond.Wait()
	}
	s.deliverMu.Unlock()
	defer func() {
		s.deliverMu.Lock()
		s.delivered = change.seq
		s.deliverCond.Broadcast()
		s.deliverMu.Unlock()
	}()

	s.listenersMu.RLock()
	listeners := make([]subscription, len(s.listeners))
	copy(listeners, s.listeners)
	s.listenersMu.RUnlock()

	for _, sub := range listeners {
		sub.fn(ctx, change)
	}
}
