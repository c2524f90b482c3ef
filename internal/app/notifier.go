/**
 * @description
 * Adapter that publishes subscription lifecycle events through the message
 * broker producer. Kept behind the Notifier interface so the sweep can be
 * tested with an in-memory fake.
 */
package app

import (
	"context"

	"github.com/coursehub/subscription-service/internal/domain"
)

// Publisher is the subset of the broker producer the notifier uses.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body interface{}) error
}

// EventNotifier publishes lifecycle events to the topic exchange.
type EventNotifier struct {
	publisher Publisher
}

// NewEventNotifier creates a notifier backed by the given publisher.
func NewEventNotifier(publisher Publisher) *EventNotifier {
	return &EventNotifier{publisher: publisher}
}

// NotifyExpiring publishes a threshold-crossing notice.
func (n *EventNotifier) NotifyExpiring(ctx context.Context, ev domain.SubscriptionExpiringEvent) error {
	return n.publisher.Publish(ctx, domain.RoutingKeySubscriptionExpiring, ev)
}

// NotifyExpired publishes an expiry notice.
func (n *EventNotifier) NotifyExpired(ctx context.Context, ev domain.SubscriptionExpiredEvent) error {
	return n.publisher.Publish(ctx, domain.RoutingKeySubscriptionExpired, ev)
}
