/**
 * @description
 * Event payloads published to the message broker by the daily sweep.
 * Downstream consumers (mailers, in-app notification feeds) subscribe to the
 * routing keys defined here.
 */
package domain

import "time"

// Routing keys for subscription events on the topic exchange.
const (
	RoutingKeySubscriptionExpiring = "subscription.expiring"
	RoutingKeySubscriptionExpired  = "subscription.expired"
)

// SubscriptionExpiringEvent is emitted once per threshold crossing
// (7, 3 and 1 days before expiry).
type SubscriptionExpiringEvent struct {
	UserID         string    `json:"user_id"`
	SubscriptionID string    `json:"subscription_id"`
	ThresholdDays  int       `json:"threshold_days"`
	EndsAt         time.Time `json:"ends_at"`
}

// SubscriptionExpiredEvent is emitted when the sweep flips a lapsed
// subscription to expired.
type SubscriptionExpiredEvent struct {
	UserID         string    `json:"user_id"`
	SubscriptionID string    `json:"subscription_id"`
	ExpiredAt      time.Time `json:"expired_at"`
}
