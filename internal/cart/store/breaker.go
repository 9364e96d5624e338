package store

import (
	"context"
	"errors"

	carterrors "github.com/abgdnv/shopcart/internal/cart/errors"
	"github.com/abgdnv/shopcart/pkg/config"
	"github.com/sony/gobreaker/v2"
)

// breakerStore guards a remote SlotStore with a circuit breaker.
// While the breaker is open calls fail fast with gobreaker.ErrOpenState.
type breakerStore struct {
	next SlotStore
	cb   *gobreaker.CircuitBreaker[[]byte]
}

// WithCircuitBreaker wraps next so repeated backend failures stop reaching it.
// A missing slot and a cancelled context are not backend failures.
func WithCircuitBreaker(name string, next SlotStore, cfg config.CircuitBreakerConfig) SlotStore {
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			total := counts.TotalSuccesses + counts.TotalFailures
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures ||
				(total > cfg.ConsecutiveFailures &&
					float64(counts.TotalFailures)/float64(total)*100 > float64(cfg.ErrorRatePercent))
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, carterrors.ErrSlotNotFound) ||
				errors.Is(err, context.Canceled)
		},
	}
	return &breakerStore{next: next, cb: gobreaker.NewCircuitBreaker[[]byte](st)}
}

func (b *breakerStore) Get(ctx context.Context, key string) ([]byte, error) {
	return b.cb.Execute(func() ([]byte, error) {
		return b.next.Get(ctx, key)
	})
}

func (b *breakerStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := b.cb.Execute(func() ([]byte, error) {
		return nil, b.next.Put(ctx, key, value)
	})
	return err
}

func (b *breakerStore) Delete(ctx context.Context, key string) error {
	_, err := b.cb.Execute(func() ([]byte, error) {
		return nil, b.next.Delete(ctx, key)
	})
	return err
}
