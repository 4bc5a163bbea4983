package marketplace

import (
	"context"
	"time"
)

// EventType names a lifecycle event emitted after a committed transition
type EventType string

const (
	EventRequestSubmitted EventType = "request.submitted"
	EventRequestAccepted  EventType = "request.accepted"
	EventRequestDeclined  EventType = "request.declined"
	EventRequestExpired   EventType = "request.expired"
	EventOrderDelivered   EventType = "order.delivered"
	EventOrderCompleted   EventType = "order.completed"
	EventOrderCancelled   EventType = "order.cancelled"
	EventReviewSubmitted  EventType = "review.submitted"
)

// Event is the payload handed to a Notifier
type Event struct {
	Type       EventType `json:"type"`
	EntityID   string    `json:"entity_id"`
	BuyerID    string    `json:"buyer_id"`
	SellerID   string    `json:"seller_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Notifier delivers events to whoever is listening. Implementations may be
// asynchronous; the marketplace never waits on delivery beyond Publish.
type Notifier interface {
	Publish(ctx context.Context, ev Event) error
}

// NotifierFunc adapts a function to the Notifier interface
type NotifierFunc func(ctx context.Context, ev Event) error

func (f NotifierFunc) Publish(ctx context.Context, ev Event) error { return f(ctx, ev) }

type nopNotifier struct{}

func (nopNotifier) Publish(context.Context, Event) error { return nil }

func requestEvent(t EventType, r *HireRequest, at time.Time) Event {
	return Event{Type: t, EntityID: r.ID, BuyerID: r.BuyerID, SellerID: r.SellerID, OccurredAt: at}
}

func orderEvent(t EventType, o *Order, at time.Time) Event {
	return Event{Type: t, EntityID: o.ID, BuyerID: o.BuyerID, SellerID: o.SellerID, OccurredAt: at}
}
