package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	carterrors "github.com/abgdnv/shopcart/internal/cart/errors"
	"github.com/abgdnv/shopcart/pkg/config"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSlotStoreContract runs the behaviour every SlotStore must share.
func testSlotStoreContract(t *testing.T, s SlotStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("absent slot", func(t *testing.T) {
		_, err := s.Get(ctx, "absent")
		assert.ErrorIs(t, err, carterrors.ErrSlotNotFound)
	})

	t.Run("put then get", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, CartSlot, []byte(`[{"name":"a"}]`)))
		got, err := s.Get(ctx, CartSlot)
		require.NoError(t, err)
		assert.JSONEq(t, `[{"name":"a"}]`, string(got))
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, OrdersSlot, []byte(`[1]`)))
		require.NoError(t, s.Put(ctx, OrdersSlot, []byte(`[1,2]`)))
		got, err := s.Get(ctx, OrdersSlot)
		require.NoError(t, err)
		assert.JSONEq(t, `[1,2]`, string(got))
	})

	t.Run("slots are independent", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, CartSlot, []byte(`["cart"]`)))
		require.NoError(t, s.Put(ctx, OrdersSlot, []byte(`["orders"]`)))
		cart, err := s.Get(ctx, CartSlot)
		require.NoError(t, err)
		assert.JSONEq(t, `["cart"]`, string(cart))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, CartSlot, []byte(`[]`)))
		require.NoError(t, s.Delete(ctx, CartSlot))
		_, err := s.Get(ctx, CartSlot)
		assert.ErrorIs(t, err, carterrors.ErrSlotNotFound)
		require.NoError(t, s.Delete(ctx, CartSlot), "deleting an absent slot is not an error")
	})
}

func Test_InMemoryStore(t *testing.T) {
	testSlotStoreContract(t, NewInMemoryStore())
}

func Test_InMemoryStore_CopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	value := []byte(`[1]`)
	require.NoError(t, s.Put(ctx, CartSlot, value))

	value[1] = '9'
	got, err := s.Get(ctx, CartSlot)
	require.NoError(t, err)
	got[1] = '8'

	again, err := s.Get(ctx, CartSlot)
	require.NoError(t, err)
	assert.Equal(t, `[1]`, string(again))
}

func Test_FileStore(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "nested", "slots"))
	require.NoError(t, err)
	testSlotStoreContract(t, s)
}

func Test_FileStore_LayoutAndNames(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, CartSlot, []byte(`[]`)))
	_, statErr := os.Stat(filepath.Join(dir, "cart.json"))
	assert.NoError(t, statErr)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files must be left behind")

	assert.Error(t, s.Put(ctx, "../escape", []byte(`[]`)))
	_, err = s.Get(ctx, "a/b")
	assert.Error(t, err)
}

func Test_FileStore_OverwriteReplacesContent(t *testing.T) {
	// given
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, OrdersSlot, []byte(`[{"first":true}]`)))

	// when
	require.NoError(t, s.Put(ctx, OrdersSlot, []byte(`[]`)))

	// then
	onDisk, err := os.ReadFile(filepath.Join(dir, "orders.json"))
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(onDisk))
	tmps, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, tmps)
}

func Test_FileStore_CancelledContext(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Put(ctx, CartSlot, []byte(`[]`)), context.Canceled)
}

// failingStore fails every call with err.
type failingStore struct {
	err   error
	calls int
}

func (f *failingStore) Get(context.Context, string) ([]byte, error) {
	f.calls++
	return nil, f.err
}

func (f *failingStore) Put(context.Context, string, []byte) error {
	f.calls++
	return f.err
}

func (f *failingStore) Delete(context.Context, string) error {
	f.calls++
	return f.err
}

func Test_WithCircuitBreaker(t *testing.T) {
	cfg := config.CircuitBreakerConfig{ConsecutiveFailures: 2, ErrorRatePercent: 100, OpenTimeout: time.Minute}
	ctx := context.Background()

	t.Run("opens after consecutive failures", func(t *testing.T) {
		// given
		backend := &failingStore{err: errors.New("connection refused")}
		s := WithCircuitBreaker("test", backend, cfg)

		// when
		_ = s.Put(ctx, CartSlot, nil)
		_ = s.Put(ctx, CartSlot, nil)
		err := s.Put(ctx, CartSlot, nil)

		// then
		assert.ErrorIs(t, err, gobreaker.ErrOpenState)
		assert.Equal(t, 2, backend.calls)
	})

	t.Run("missing slots do not trip", func(t *testing.T) {
		backend := &failingStore{err: carterrors.ErrSlotNotFound}
		s := WithCircuitBreaker("test", backend, cfg)

		for range 5 {
			_, err := s.Get(ctx, CartSlot)
			assert.ErrorIs(t, err, carterrors.ErrSlotNotFound)
		}
		assert.Equal(t, 5, backend.calls)
	})

	t.Run("passes through", func(t *testing.T) {
		s := WithCircuitBreaker("test", NewInMemoryStore(), cfg)
		testSlotStoreContract(t, s)
	})
}

func Test_toPgxScheme(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@h:5432/db", toPgxScheme("postgres://u:p@h:5432/db"))
	assert.Equal(t, "pgx5://u:p@h:5432/db", toPgxScheme("postgresql://u:p@h:5432/db"))
	assert.Equal(t, "pgx5://h/db", toPgxScheme("pgx5://h/db"))
}
