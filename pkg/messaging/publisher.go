// Package messaging defines the event contract used to announce cart state changes.
package messaging

import (
	"context"
)

const (
	// SubjectPrefix is the common prefix of every subject the application publishes on.
	SubjectPrefix = "shopcart."

	CartChangedSubject  = SubjectPrefix + "cart.changed"
	OrdersPlacedSubject = SubjectPrefix + "orders.placed"
)

type Event interface {
	Subject() string
	Payload() ([]byte, error)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
