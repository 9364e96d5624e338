package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	carterrors "github.com/abgdnv/shopcart/internal/cart/errors"
	"github.com/abgdnv/shopcart/internal/cart/store"
	"github.com/abgdnv/shopcart/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T, slots store.SlotStore, opts ...Option) *CartStore {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewCartStore(slots, discardLogger(), opts...)
}

func product(t *testing.T, name string, price int64) domain.Product {
	t.Helper()
	p, err := domain.NewProduct(name, decimal.NewFromInt(price), name+".png")
	require.NoError(t, err)
	return p
}

func assertProducts(t *testing.T, expected, actual []domain.Product) {
	t.Helper()
	require.Len(t, actual, len(expected))
	for i := range expected {
		assert.True(t, expected[i].Equal(actual[i]), "product %d: expected %+v, got %+v", i, expected[i], actual[i])
	}
}

// flakyStore wraps an in-memory store and fails writes while failing is set.
type flakyStore struct {
	store.SlotStore
	failing bool
}

var errBackendDown = errors.New("backend down")

func (f *flakyStore) Put(ctx context.Context, key string, value []byte) error {
	if f.failing {
		return errBackendDown
	}
	return f.SlotStore.Put(ctx, key, value)
}

func (f *flakyStore) Delete(ctx context.Context, key string) error {
	if f.failing {
		return errBackendDown
	}
	return f.SlotStore.Delete(ctx, key)
}

func Test_CartStore_AddToCart(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, store.NewInMemoryStore())
	p1, p2 := product(t, "P1", 10), product(t, "P2", 5)
	added := []domain.Product{p1, p2, p1, p2, p2}

	for _, p := range added {
		require.NoError(t, s.AddToCart(ctx, p))
	}

	assertProducts(t, added, s.CartItems())
	assert.True(t, decimal.NewFromInt(35).Equal(s.CartTotal()))
}

func Test_CartStore_RemoveFromCart(t *testing.T) {
	ctx := context.Background()
	p0, p1, p2, p3 := product(t, "P0", 1), product(t, "P1", 2), product(t, "P2", 3), product(t, "P3", 4)

	testCases := []struct {
		name        string
		index       int
		expected    []domain.Product
		expectError error
	}{
		{name: "first", index: 0, expected: []domain.Product{p1, p2, p3}},
		{name: "middle", index: 2, expected: []domain.Product{p0, p1, p3}},
		{name: "last", index: 3, expected: []domain.Product{p0, p1, p2}},
		{name: "negative", index: -1, expected: []domain.Product{p0, p1, p2, p3}, expectError: carterrors.ErrIndexOutOfRange},
		{name: "past end", index: 4, expected: []domain.Product{p0, p1, p2, p3}, expectError: carterrors.ErrIndexOutOfRange},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			s := newTestStore(t, store.NewInMemoryStore())
			for _, p := range []domain.Product{p0, p1, p2, p3} {
				require.NoError(t, s.AddToCart(ctx, p))
			}
			// when
			err := s.RemoveFromCart(ctx, tc.index)
			// then
			if tc.expectError != nil {
				assert.ErrorIs(t, err, tc.expectError)
			} else {
				require.NoError(t, err)
			}
			assertProducts(t, tc.expected, s.CartItems())
		})
	}
}

func Test_CartStore_RemoveFromCart_EmptyCart(t *testing.T) {
	s := newTestStore(t, store.NewInMemoryStore())

	err := s.RemoveFromCart(context.Background(), 0)

	assert.ErrorIs(t, err, carterrors.ErrIndexOutOfRange)
	assert.Empty(t, s.CartItems())
}

func Test_CartStore_Checkout(t *testing.T) {
	// given
	ctx := context.Background()
	s := newTestStore(t, store.NewInMemoryStore())
	p1, p2 := product(t, "P1", 10), product(t, "P2", 5)
	require.NoError(t, s.AddToCart(ctx, p1))
	require.NoError(t, s.AddToCart(ctx, p2))

	// when
	order, err := s.Checkout(ctx)

	// then
	require.NoError(t, err)
	assert.NotZero(t, order.ID)
	assert.True(t, decimal.NewFromInt(15).Equal(order.TotalPrice))
	assert.Equal(t, fixedNow, order.Date)
	assertProducts(t, []domain.Product{p1, p2}, order.Products)
	assert.Empty(t, s.CartItems())
	history := s.OrderHistory()
	require.Len(t, history, 1)
	assert.Equal(t, order.ID, history[0].ID)
}

func Test_CartStore_Checkout_EmptyCart(t *testing.T) {
	ctx := context.Background()

	t.Run("permitted by default", func(t *testing.T) {
		s := newTestStore(t, store.NewInMemoryStore())

		order, err := s.Checkout(ctx)

		require.NoError(t, err)
		assert.True(t, order.TotalPrice.IsZero())
		assert.Empty(t, order.Products)
		assert.Len(t, s.OrderHistory(), 1)
	})

	t.Run("rejected when configured", func(t *testing.T) {
		slots := store.NewInMemoryStore()
		s := newTestStore(t, slots, WithRejectEmptyCheckout())

		_, err := s.Checkout(ctx)

		assert.ErrorIs(t, err, carterrors.ErrEmptyCart)
		assert.Empty(t, s.OrderHistory())
		_, getErr := slots.Get(ctx, store.OrdersSlot)
		assert.ErrorIs(t, getErr, carterrors.ErrSlotNotFound, "nothing must be persisted")
	})

	t.Run("rejection does not block non-empty carts", func(t *testing.T) {
		s := newTestStore(t, store.NewInMemoryStore(), WithRejectEmptyCheckout())
		require.NoError(t, s.AddToCart(ctx, product(t, "P", 1)))

		_, err := s.Checkout(ctx)

		require.NoError(t, err)
	})
}

func Test_CartStore_HistoryIsAppendOnly(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, store.NewInMemoryStore())
	var placed []domain.Order

	for i := range 4 {
		require.NoError(t, s.AddToCart(ctx, product(t, "P", int64(i+1))))
		if i%2 == 0 {
			require.NoError(t, s.AddToCart(ctx, product(t, "Q", 1)))
			require.NoError(t, s.RemoveFromCart(ctx, 0))
		}
		order, err := s.Checkout(ctx)
		require.NoError(t, err)
		placed = append(placed, order)

		history := s.OrderHistory()
		require.Len(t, history, len(placed))
		for j := range placed {
			assert.Equal(t, placed[j].ID, history[j].ID)
			assert.True(t, placed[j].TotalPrice.Equal(history[j].TotalPrice))
		}
	}
}

func Test_CartStore_ReadsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, store.NewInMemoryStore())
	p := product(t, "P", 1)
	require.NoError(t, s.AddToCart(ctx, p))
	_, err := s.Checkout(ctx)
	require.NoError(t, err)

	history := s.OrderHistory()
	history[0].Products[0] = product(t, "tampered", 99)
	history[0].TotalPrice = decimal.NewFromInt(99)

	fresh := s.OrderHistory()
	assert.True(t, p.Equal(fresh[0].Products[0]))
	assert.True(t, decimal.NewFromInt(1).Equal(fresh[0].TotalPrice))
}

func Test_CartStore_ClearHistoryAndReset(t *testing.T) {
	ctx := context.Background()
	slots := store.NewInMemoryStore()
	s := newTestStore(t, slots)
	require.NoError(t, s.AddToCart(ctx, product(t, "P", 1)))
	_, err := s.Checkout(ctx)
	require.NoError(t, err)
	require.NoError(t, s.AddToCart(ctx, product(t, "Q", 2)))

	require.NoError(t, s.ClearHistory(ctx))
	assert.Empty(t, s.OrderHistory())
	assert.Len(t, s.CartItems(), 1, "clearing history keeps the cart")

	require.NoError(t, s.Reset(ctx))
	assert.Empty(t, s.CartItems())
	_, getErr := slots.Get(ctx, store.CartSlot)
	assert.ErrorIs(t, getErr, carterrors.ErrSlotNotFound)
}

func Test_CartStore_PersistsEveryMutation(t *testing.T) {
	// given
	ctx := context.Background()
	slots := store.NewInMemoryStore()
	s := newTestStore(t, slots)
	p1, p2 := product(t, "P1", 10), product(t, "P2", 5)

	// when
	require.NoError(t, s.AddToCart(ctx, p1))
	require.NoError(t, s.AddToCart(ctx, p2))
	require.NoError(t, s.RemoveFromCart(ctx, 0))

	// then
	restored := newTestStore(t, slots)
	restored.Load(ctx)
	assertProducts(t, []domain.Product{p2}, restored.CartItems())
	assert.Empty(t, restored.OrderHistory())

	// when
	_, err := s.Checkout(ctx)
	require.NoError(t, err)

	// then
	restored.Load(ctx)
	assert.Empty(t, restored.CartItems())
	require.Len(t, restored.OrderHistory(), 1)
	assertProducts(t, []domain.Product{p2}, restored.OrderHistory()[0].Products)
	assert.True(t, fixedNow.Equal(restored.OrderHistory()[0].Date))
}

func Test_CartStore_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	slots := store.NewInMemoryStore()
	s := newTestStore(t, slots)
	p1, _ := domain.NewProduct("Fractional", decimal.RequireFromString("0.10"), "f.png")
	p2, _ := domain.NewProduct("Big", decimal.RequireFromString("1234567.89"), "b.png")
	p3 := product(t, "Free", 0)
	cart := []domain.Product{p1, p2, p3, p1}
	for _, p := range cart {
		require.NoError(t, s.AddToCart(ctx, p))
	}

	require.NoError(t, s.SaveCart(ctx))
	require.NoError(t, s.SaveOrders(ctx))
	restored := newTestStore(t, slots)
	restored.LoadCart(ctx)
	restored.LoadOrders(ctx)

	assertProducts(t, cart, restored.CartItems())
	assert.Empty(t, restored.OrderHistory())
}

func Test_CartStore_Load_MalformedOrAbsent(t *testing.T) {
	ctx := context.Background()
	valid := product(t, "P", 1)

	testCases := []struct {
		name   string
		cart   []byte
		orders []byte
	}{
		{name: "absent"},
		{name: "garbage", cart: []byte("{not json"), orders: []byte("<xml/>")},
		{name: "wrong shape", cart: []byte(`{"id":"x"}`), orders: []byte(`"orders"`)},
		{name: "null", cart: []byte(`null`), orders: []byte(`null`)},
		{name: "negative price", cart: []byte(`[{"id":"` + valid.ID.String() + `","name":"P","price":"-1","image":""}]`)},
		{name: "inconsistent total", orders: []byte(`[{"id":"` + valid.ID.String() + `","products":[],"totalPrice":"5","date":"2024-01-01T00:00:00Z"}]`)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given a store holding state that Load must replace
			slots := store.NewInMemoryStore()
			s := newTestStore(t, slots)
			require.NoError(t, s.AddToCart(ctx, valid))
			_, err := s.Checkout(ctx)
			require.NoError(t, err)
			require.NoError(t, s.AddToCart(ctx, valid))

			require.NoError(t, slots.Delete(ctx, store.CartSlot))
			require.NoError(t, slots.Delete(ctx, store.OrdersSlot))
			if tc.cart != nil {
				require.NoError(t, slots.Put(ctx, store.CartSlot, tc.cart))
			}
			if tc.orders != nil {
				require.NoError(t, slots.Put(ctx, store.OrdersSlot, tc.orders))
			}

			// when
			s.Load(ctx)

			// then
			assert.NotNil(t, s.CartItems())
			assert.Empty(t, s.CartItems())
			assert.NotNil(t, s.OrderHistory())
			assert.Empty(t, s.OrderHistory())
		})
	}
}

func Test_CartStore_Load_ReadFailureStartsEmpty(t *testing.T) {
	s := newTestStore(t, &failingReadStore{})

	s.Load(context.Background())

	assert.Empty(t, s.CartItems())
	assert.Empty(t, s.OrderHistory())
}

type failingReadStore struct{ store.SlotStore }

func (failingReadStore) Get(context.Context, string) ([]byte, error) { return nil, errBackendDown }

func Test_CartStore_PersistFailureKeepsMemoryState(t *testing.T) {
	// given
	ctx := context.Background()
	slots := &flakyStore{SlotStore: store.NewInMemoryStore()}
	s := newTestStore(t, slots)
	p1, p2 := product(t, "P1", 10), product(t, "P2", 5)
	require.NoError(t, s.AddToCart(ctx, p1))
	slots.failing = true

	// when
	addErr := s.AddToCart(ctx, p2)
	order, checkoutErr := s.Checkout(ctx)

	// then
	assert.ErrorIs(t, addErr, carterrors.ErrPersist)
	assert.ErrorIs(t, addErr, errBackendDown)
	assert.ErrorIs(t, checkoutErr, carterrors.ErrPersist)
	assert.True(t, decimal.NewFromInt(15).Equal(order.TotalPrice))
	assert.Empty(t, s.CartItems())
	require.Len(t, s.OrderHistory(), 1)

	// when the backend recovers the next write catches up
	slots.failing = false
	require.NoError(t, s.SaveOrders(ctx))
	restored := newTestStore(t, slots)
	restored.Load(ctx)
	require.Len(t, restored.OrderHistory(), 1)
	assert.Equal(t, order.ID, restored.OrderHistory()[0].ID)
}

func Test_CartStore_Subscribe(t *testing.T) {
	// given
	ctx := context.Background()
	s := newTestStore(t, store.NewInMemoryStore())
	var changes []Change
	unsubscribe := s.Subscribe(func(_ context.Context, c Change) {
		// listeners may read the store
		assert.Len(t, s.CartItems(), len(c.CartItems))
		changes = append(changes, c)
	})
	p := product(t, "P", 3)

	// when
	require.NoError(t, s.AddToCart(ctx, p))
	require.NoError(t, s.AddToCart(ctx, p))
	require.NoError(t, s.RemoveFromCart(ctx, 1))
	_, err := s.Checkout(ctx)
	require.NoError(t, err)
	assert.Error(t, s.RemoveFromCart(ctx, 5))
	unsubscribe()
	require.NoError(t, s.AddToCart(ctx, p))

	// then
	require.Len(t, changes, 4, "failed removal and post-unsubscribe changes are not delivered")
	assert.Equal(t, []ChangeKind{ChangeAdded, ChangeAdded, ChangeRemoved, ChangeCheckedOut},
		[]ChangeKind{changes[0].Kind, changes[1].Kind, changes[2].Kind, changes[3].Kind})
	assert.Len(t, changes[1].CartItems, 2)
	assert.Nil(t, changes[2].Order)
	require.NotNil(t, changes[3].Order)
	assert.Empty(t, changes[3].CartItems)
	assert.Len(t, changes[3].OrderHistory, 1)
	assert.True(t, decimal.NewFromInt(3).Equal(changes[3].Order.TotalPrice))
}

func Test_CartStore_Subscribe_Order(t *testing.T) {
	s := newTestStore(t, store.NewInMemoryStore())
	var calls []string
	s.Subscribe(func(context.Context, Change) { calls = append(calls, "first") })
	unsubscribe := s.Subscribe(func(context.Context, Change) { calls = append(calls, "second") })
	s.Subscribe(func(context.Context, Change) { calls = append(calls, "third") })
	unsubscribe()

	require.NoError(t, s.AddToCart(context.Background(), product(t, "P", 1)))

	assert.Equal(t, []string{"first", "third"}, calls)
}

func Test_CartStore_Subscribe_DeliversInMutationOrder(t *testing.T) {
	// given a listener that stalls on the first change
	ctx := context.Background()
	s := newTestStore(t, store.NewInMemoryStore())
	p1, p2 := product(t, "P1", 1), product(t, "P2", 2)
	entered := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	var delivered []int
	s.Subscribe(func(_ context.Context, c Change) {
		mu.Lock()
		first := len(delivered) == 0
		delivered = append(delivered, len(c.CartItems))
		mu.Unlock()
		if first {
			close(entered)
			<-release
		}
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, s.AddToCart(ctx, p1))
	}()
	<-entered

	// when a second mutation completes while the first change is still being delivered
	go func() {
		defer wg.Done()
		assert.NoError(t, s.AddToCart(ctx, p2))
	}()
	require.Eventually(t, func() bool { return len(s.CartItems()) == 2 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	// then listeners saw the changes in the order they were applied
	assert.Equal(t, []int{1, 2}, delivered)
}
