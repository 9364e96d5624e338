// Package service implements the cart and order history state and its persistence.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	carterrors "github.com/abgdnv/shopcart/internal/cart/errors"
	"github.com/abgdnv/shopcart/internal/cart/store"
	"github.com/abgdnv/shopcart/internal/domain"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CartStore owns the active cart and the order history.
// Every mutation is applied in memory first, then persisted, then announced to listeners.
// A persistence failure is reported to the caller wrapped in ErrPersist but never
// undoes or corrupts the in-memory state.
//
// One CartStore is meant to be constructed at startup and shared by reference.
// Methods are safe for concurrent use; calls are serialized.
type CartStore struct {
	mu           sync.Mutex
	slots        store.SlotStore
	logger       *slog.Logger
	now          func() time.Time
	rejectEmpty  bool
	cartItems    []domain.Product
	orderHistory []domain.Order

	listenersMu sync.RWMutex
	listeners   []subscription
	nextID      int

	// seq numbers changes under mu; delivered is the last seq handed to listeners.
	seq         uint64
	deliverMu   sync.Mutex
	deliverCond *sync.Cond
	delivered   uint64

	metrics *storeMetrics
}

type storeMetrics struct {
	itemsAdded      metric.Int64Counter
	itemsRemoved    metric.Int64Counter
	ordersCreated   metric.Int64Counter
	persistFailures metric.Int64Counter
}

// Option configures a CartStore.
type Option func(*CartStore)

// WithClock overrides the time source used to date orders and changes.
func WithClock(now func() time.Time) Option {
	return func(s *CartStore) { s.now = now }
}

// WithRejectEmptyCheckout makes Checkout fail with ErrEmptyCart instead of
// recording a zero-total order when the cart is empty.
func WithRejectEmptyCheckout() Option {
	return func(s *CartStore) { s.rejectEmpty = true }
}

// NewCartStore creates an empty CartStore persisting into slots.
// Call Load to restore previously saved state.
func NewCartStore(slots store.SlotStore, logger *slog.Logger, opts ...Option) *CartStore {
	s := &CartStore{
		slots:        slots,
		logger:       logger.With("component", "cartstore"),
		now:          time.Now,
		cartItems:    []domain.Product{},
		orderHistory: []domain.Order{},
		metrics:      newStoreMetrics(),
	}
	s.deliverCond = sync.NewCond(&s.deliverMu)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newStoreMetrics() *storeMetrics {
	meter := otel.Meter("shopcart")
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			panic(fmt.Sprintf("failed to create %s counter: %v", name, err))
		}
		return c
	}
	return &storeMetrics{
		itemsAdded:      counter("cart_items_added", "Total number of products added to the cart"),
		itemsRemoved:    counter("cart_items_removed", "Total number of products removed from the cart"),
		ordersCreated:   counter("orders_created", "Total number of created orders"),
		persistFailures: counter("persist_failures", "Total number of failed slot writes"),
	}
}

// CartItems returns a copy of the cart in insertion order.
func (s *CartStore) CartItems() []domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneProducts(s.cartItems)
}

// OrderHistory returns a copy of the order history in checkout order.
func (s *CartStore) OrderHistory() []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneOrders(s.orderHistory)
}

// CartTotal returns the sum of the prices currently in the cart.
func (s *CartStore) CartTotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Total(s.cartItems)
}

// AddToCart appends product to the cart and persists the cart.
func (s *CartStore) AddToCart(ctx context.Context, product domain.Product) error {
	s.mu.Lock()
	s.cartItems = append(s.cartItems, product)
	err := s.saveCartLocked(ctx)
	change := s.changeLocked(ChangeAdded)
	s.mu.Unlock()

	s.metrics.itemsAdded.Add(ctx, 1)
	s.logger.DebugContext(ctx, "Product added to cart", "product_id", product.ID, "items", len(change.CartItems))
	s.notify(ctx, change)
	return err
}

// RemoveFromCart removes the product at index, shifting later items left, and persists the cart.
// An index outside [0, len) returns ErrIndexOutOfRange and changes nothing.
func (s *CartStore) RemoveFromCart(ctx context.Context, index int) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.cartItems) {
		size := len(s.cartItems)
		s.mu.Unlock()
		return fmt.Errorf("remove index %d from cart of %d: %w", index, size, carterrors.ErrIndexOutOfRange)
	}
	removed := s.cartItems[index]
	items := make([]domain.Product, 0, len(s.cartItems)-1)
	items = append(items, s.cartItems[:index]...)
	s.cartItems = append(items, s.cartItems[index+1:]...)
	err := s.saveCartLocked(ctx)
	change := s.changeLocked(ChangeRemoved)
	s.mu.Unlock()

	s.metrics.itemsRemoved.Add(ctx, 1)
	s.logger.DebugContext(ctx, "Product removed from cart", "product_id", removed.ID, "index", index)
	s.notify(ctx, change)
	return err
}

// Checkout turns the cart into a new order appended to the history, then empties the cart.
// Both collections are persisted. An empty cart yields a zero-total order with no products
// unless the store was built WithRejectEmptyCheckout.
func (s *CartStore) Checkout(ctx context.Context) (domain.Order, error) {
	s.mu.Lock()
	if s.rejectEmpty && len(s.cartItems) == 0 {
		s.mu.Unlock()
		return domain.Order{}, carterrors.ErrEmptyCart
	}
	order := domain.NewOrder(s.cartItems, s.now())
	s.orderHistory = append(s.orderHistory, order)
	s.cartItems = []domain.Product{}
	cartErr := s.saveCartLocked(ctx)
	ordersErr := s.saveOrdersLocked(ctx)
	change := s.changeLocked(ChangeCheckedOut)
	change.At = order.Date
	placed := order.Clone()
	change.Order = &placed
	s.mu.Unlock()

	s.metrics.ordersCreated.Add(ctx, 1, metric.WithAttributes(attribute.Bool("empty", len(order.Products) == 0)))
	s.logger.InfoContext(ctx, "Order placed", "order_id", order.ID, "items", len(order.Products), "total", order.TotalPrice.String())
	s.notify(ctx, change)
	return order.Clone(), firstErr(cartErr, ordersErr)
}

// ClearHistory empties the order history and persists it.
// It is the only operation that shortens the history.
func (s *CartStore) ClearHistory(ctx context.Context) error {
	s.mu.Lock()
	cleared := len(s.orderHistory)
	s.orderHistory = []domain.Order{}
	err := s.saveOrdersLocked(ctx)
	change := s.changeLocked(ChangeHistoryCleared)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Order history cleared", "orders", cleared)
	s.notify(ctx, change)
	return err
}

// Reset empties both collections and deletes their slots.
func (s *CartStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	s.cartItems = []domain.Product{}
	s.orderHistory = []domain.Order{}
	cartErr := s.deleteSlotLocked(ctx, store.CartSlot)
	ordersErr := s.deleteSlotLocked(ctx, store.OrdersSlot)
	change := s.changeLocked(ChangeReset)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Store reset")
	s.notify(ctx, change)
	return firstErr(cartErr, ordersErr)
}

// SaveCart writes the cart to its slot.
func (s *CartStore) SaveCart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveCartLocked(ctx)
}

// SaveOrders writes the order history to its slot.
func (s *CartStore) SaveOrders(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveOrdersLocked(ctx)
}

// Load restores both collections from their slots. See LoadCart and LoadOrders.
func (s *CartStore) Load(ctx context.Context) {
	s.mu.Lock()
	s.cartItems = s.loadSlotProductsLocked(ctx)
	s.orderHistory = s.loadSlotOrdersLocked(ctx)
	change := s.changeLocked(ChangeLoaded)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "State loaded", "cart_items", len(change.CartItems), "orders", len(change.OrderHistory))
	s.notify(ctx, change)
}

// LoadCart replaces the cart with the content of its slot.
// Absent, unreadable or malformed data yields an empty cart; no error reaches the caller.
func (s *CartStore) LoadCart(ctx context.Context) {
	s.mu.Lock()
	s.cartItems = s.loadSlotProductsLocked(ctx)
	change := s.changeLocked(ChangeLoaded)
	s.mu.Unlock()
	s.notify(ctx, change)
}

// LoadOrders replaces the order history with the content of its slot.
// Absent, unreadable or malformed data yields an empty history; no error reaches the caller.
func (s *CartStore) LoadOrders(ctx context.Context) {
	s.mu.Lock()
	s.orderHistory = s.loadSlotOrdersLocked(ctx)
	change := s.changeLocked(ChangeLoaded)
	s.mu.Unlock()
	s.notify(ctx, change)
}

func (s *CartStore) saveCartLocked(ctx context.Context) error {
	data, err := encodeProducts(s.cartItems)
	if err != nil {
		return s.persistFailed(ctx, store.CartSlot, err)
	}
	if err := s.slots.Put(ctx, store.CartSlot, data); err != nil {
		return s.persistFailed(ctx, store.CartSlot, err)
	}
	return nil
}

func (s *CartStore) saveOrdersLocked(ctx context.Context) error {
	data, err := encodeOrders(s.orderHistory)
	if err != nil {
		return s.persistFailed(ctx, store.OrdersSlot, err)
	}
	if err := s.slots.Put(ctx, store.OrdersSlot, data); err != nil {
		return s.persistFailed(ctx, store.OrdersSlot, err)
	}
	return nil
}

func (s *CartStore) deleteSlotLocked(ctx context.Context, slot string) error {
	if err := s.slots.Delete(ctx, slot); err != nil {
		return s.persistFailed(ctx, slot, err)
	}
	return nil
}

func (s *CartStore) persistFailed(ctx context.Context, slot string, err error) error {
	s.metrics.persistFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("slot", slot)))
	s.logger.ErrorContext(ctx, "Failed to persist slot", "slot", slot, "error", err)
	return fmt.Errorf("%w %s: %w", carterrors.ErrPersist, slot, err)
}

func (s *CartStore) loadSlotProductsLocked(ctx context.Context) []domain.Product {
	data, ok := s.readSlot(ctx, store.CartSlot)
	if !ok {
		return []domain.Product{}
	}
	products, err := decodeProducts(data)
	if err != nil {
		s.logger.WarnContext(ctx, "Discarding malformed slot", "slot", store.CartSlot, "error", err)
		return []domain.Product{}
	}
	return products
}

func (s *CartStore) loadSlotOrdersLocked(ctx context.Context) []domain.Order {
	data, ok := s.readSlot(ctx, store.OrdersSlot)
	if !ok {
		return []domain.Order{}
	}
	orders, err := decodeOrders(data)
	if err != nil {
		s.logger.WarnContext(ctx, "Discarding malformed slot", "slot", store.OrdersSlot, "error", err)
		return []domain.Order{}
	}
	return orders
}

func (s *CartStore) readSlot(ctx context.Context, slot string) ([]byte, bool) {
	data, err := s.slots.Get(ctx, slot)
	if err != nil {
		if errors.Is(err, carterrors.ErrSlotNotFound) {
			s.logger.DebugContext(ctx, "Slot is empty", "slot", slot)
		} else {
			s.logger.WarnContext(ctx, "Failed to read slot, starting empty", "slot", slot, "error", err)
		}
		return nil, false
	}
	return data, true
}

func (s *CartStore) changeLocked(kind ChangeKind) Change {
	s.seq++
	return Change{
		Kind:         kind,
		CartItems:    cloneProducts(s.cartItems),
		OrderHistory: cloneOrders(s.orderHistory),
		At:           s.now(),
		seq:          s.seq,
	}
}

func cloneProducts(in []domain.Product) []domain.Product {
	out := make([]domain.Product, len(in))
	copy(out, in)
	return out
}

func cloneOrders(in []domain.Order) []domain.Order {
	out := make([]domain.Order, len(in))
	for i, o := range in {
		out[i] = o.Clone()
	}
	return out
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
