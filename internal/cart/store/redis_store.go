package store

import (
	"context"
	"errors"
	"fmt"

	carterrors "github.com/abgdnv/shopcart/internal/cart/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps slots as plain string keys named <prefix>:<slot>.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisStore creates a new instance of SlotStore backed by Redis.
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "shopcart"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) key(slot string) string {
	return r.prefix + ":" + slot
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, carterrors.ErrSlotNotFound
		}
		return nil, fmt.Errorf("%w %s: %w", carterrors.ErrReadSlot, key, err)
	}
	return data, nil
}

func (r *RedisStore) Put(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("%w %s: %w", carterrors.ErrWriteSlot, key, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("%w %s: %w", carterrors.ErrDeleteSlot, key, err)
	}
	return nil
}
