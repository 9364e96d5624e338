package service

import (
	"context"
	"log/slog"

	"github.com/abgdnv/shopcart/internal/domain"
	"github.com/abgdnv/shopcart/pkg/messaging"
	"github.com/abgdnv/shopcart/pkg/messaging/events"
)

// NewEventNotifier returns a Listener that publishes cart changes and placed orders.
// Publish errors are logged and swallowed so a broker outage never fails a cart operation.
func NewEventNotifier(publisher messaging.Publisher, logger *slog.Logger) Listener {
	logger = logger.With("component", "notifier")
	return func(ctx context.Context, change Change) {
		if change.Kind == ChangeLoaded {
			return
		}
		publish(ctx, publisher, logger, events.CartChangedEvent{
			Kind:      string(change.Kind),
			ItemCount: len(change.CartItems),
			Total:     domain.Total(change.CartItems),
			At:        change.At.UTC(),
		})
		if change.Order != nil {
			publish(ctx, publisher, logger, events.OrderPlacedEvent{
				OrderID:    change.Order.ID,
				ItemCount:  len(change.Order.Products),
				TotalPrice: change.Order.TotalPrice,
				CreatedAt:  change.Order.Date,
			})
		}
	}
}

func publish(ctx context.Context, publisher messaging.Publisher, logger *slog.Logger, event messaging.Event) {
	if err := publisher.Publish(ctx, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish event", "subject", event.Subject(), "error", err)
	}
}
