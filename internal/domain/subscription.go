/**
 * @description
 * This file defines the core subscription entity and its lifecycle state machine.
 * All state changes go through methods on Subscription so that the transition
 * rules and notification-flag bookkeeping live in one place; the store and the
 * sweep job never mutate fields directly.
 */
package domain

import (
	"fmt"
	"math"
	"time"
)

// SubscriptionStatus represents the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	StatusPending   SubscriptionStatus = "pending"
	StatusActive    SubscriptionStatus = "active"
	StatusExpired   SubscriptionStatus = "expired"
	StatusCancelled SubscriptionStatus = "cancelled"
)

// ExpiryNoticeThresholds are the days-before-expiry checkpoints, smallest first.
// At most one notice is sent per checkpoint per billing period.
var ExpiryNoticeThresholds = []int{1, 3, 7}

// statusTransitions defines the allowed state changes. 'cancelled' is terminal.
var statusTransitions = map[SubscriptionStatus][]SubscriptionStatus{
	StatusPending:   {StatusActive, StatusCancelled},
	StatusActive:    {StatusExpired, StatusCancelled},
	StatusExpired:   {StatusActive, StatusCancelled},
	StatusCancelled: {},
}

// CanTransitionTo reports whether a change from s to target is allowed.
func (s SubscriptionStatus) CanTransitionTo(target SubscriptionStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Subscription represents a user's subscription to a plan.
// A nil EndsAt means the subscription is lifetime and never lapses on its own.
type Subscription struct {
	ID                 string             `json:"id"`
	UserID             string             `json:"user_id"`
	PlanID             string             `json:"plan_id"`
	Status             SubscriptionStatus `json:"status"`
	StartsAt           time.Time          `json:"starts_at"`
	EndsAt             *time.Time         `json:"ends_at,omitempty"`
	AutoRenew          bool               `json:"auto_renew"`
	SevenDayNoticeSent bool               `json:"seven_day_notice_sent"`
	ThreeDayNoticeSent bool               `json:"three_day_notice_sent"`
	OneDayNoticeSent   bool               `json:"one_day_notice_sent"`
	CancellationReason *string            `json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time         `json:"cancelled_at,omitempty"`
}

// SubscriptionStatusView is the DTO returned to clients asking for their
// current subscription state.
type SubscriptionStatusView struct {
	Status        SubscriptionStatus `json:"status"`
	PlanID        string             `json:"plan_id"`
	EndsAt        *time.Time         `json:"ends_at,omitempty"`
	DaysRemaining *int               `json:"days_remaining,omitempty"`
	AutoRenew     bool               `json:"auto_renew"`
	IsActive      bool               `json:"is_active"`
}

// IsLifetime reports whether the subscription has no expiry date.
func (s *Subscription) IsLifetime() bool {
	return s.EndsAt == nil
}

// IsActive reports whether the subscription grants access at the given time.
// Lifetime subscriptions are active for as long as their status is active.
func (s *Subscription) IsActive(now time.Time) bool {
	if s.Status != StatusActive {
		return false
	}
	return s.EndsAt == nil || s.EndsAt.After(now)
}

// DaysRemaining returns the whole days left until expiry, rounded up.
// It returns nil for lifetime subscriptions and 0 once the end date has passed.
func (s *Subscription) DaysRemaining(now time.Time) *int {
	if s.EndsAt == nil {
		return nil
	}
	days := 0
	if s.EndsAt.After(now) {
		days = int(math.Ceil(s.EndsAt.Sub(now).Hours() / 24))
	}
	return &days
}

// Activate transitions a pending or expired subscription to active.
// Payment confirmation is the usual caller.
func (s *Subscription) Activate() error {
	if !s.Status.CanTransitionTo(StatusActive) {
		return fmt.Errorf("%w: cannot activate subscription in status %q", ErrInvalidTransition, s.Status)
	}
	s.Status = StatusActive
	return nil
}

// MarkExpired transitions an active subscription whose end date has passed
// to expired. The daily sweep is the only expected caller.
func (s *Subscription) MarkExpired() error {
	if !s.Status.CanTransitionTo(StatusExpired) {
		return fmt.Errorf("%w: cannot expire subscription in status %q", ErrInvalidTransition, s.Status)
	}
	s.Status = StatusExpired
	return nil
}

// Cancel terminally cancels the subscription, forces auto-renew off and
// records the reason and timestamp. Cancelling twice is rejected so a second
// call cannot overwrite the original reason.
func (s *Subscription) Cancel(reason string, now time.Time) error {
	if s.Status == StatusCancelled {
		return fmt.Errorf("%w: subscription is already cancelled", ErrInvalidTransition)
	}
	s.Status = StatusCancelled
	s.AutoRenew = false
	s.CancelledAt = &now
	if reason != "" {
		s.CancellationReason = &reason
	}
	return nil
}

// Extend pushes the end date forward by the given number of days, based off
// the later of the current end date and now, and forces the subscription back
// to active. All three expiry-notice flags are reset so the new period gets
// its own reminders. Extending a lifetime subscription is a successful no-op.
func (s *Subscription) Extend(days int, now time.Time) error {
	if days <= 0 {
		return fmt.Errorf("%w: extension days must be positive, got %d", ErrValidation, days)
	}
	if s.Status == StatusCancelled {
		return fmt.Errorf("%w: cannot extend a cancelled subscription", ErrInvalidTransition)
	}
	if s.EndsAt == nil {
		return nil
	}
	base := now
	if s.EndsAt.After(now) {
		base = *s.EndsAt
	}
	newEnd := base.AddDate(0, 0, days)
	s.EndsAt = &newEnd
	s.Status = StatusActive
	s.SevenDayNoticeSent = false
	s.ThreeDayNoticeSent = false
	s.OneDayNoticeSent = false
	return nil
}

// ExpiryNoticeThreshold returns the notification checkpoint the subscription
// currently falls under: the smallest of {1, 3, 7} that is >= the days
// remaining. It returns 0 when no notice is due (lifetime, already lapsed,
// or more than 7 days out).
func (s *Subscription) ExpiryNoticeThreshold(now time.Time) int {
	days := s.DaysRemaining(now)
	if days == nil || *days <= 0 {
		return 0
	}
	for _, t := range ExpiryNoticeThresholds {
		if *days <= t {
			return t
		}
	}
	return 0
}

// ShouldNotifyExpiry reports whether the subscription is inside any
// expiry-notice window at the given time.
func (s *Subscription) ShouldNotifyExpiry(now time.Time) bool {
	return s.ExpiryNoticeThreshold(now) != 0
}

// NoticeSent reports whether the notice for the given threshold has already
// been sent this period.
func (s *Subscription) NoticeSent(threshold int) bool {
	switch threshold {
	case 7:
		return s.SevenDayNoticeSent
	case 3:
		return s.ThreeDayNoticeSent
	case 1:
		return s.OneDayNoticeSent
	}
	return false
}

// MarkNoticeSent records that the notice for the given threshold went out.
// Flags are monotonic within a period; only Extend resets them.
func (s *Subscription) MarkNoticeSent(threshold int) {
	switch threshold {
	case 7:
		s.SevenDayNoticeSent = true
	case 3:
		s.ThreeDayNoticeSent = true
	case 1:
		s.OneDayNoticeSent = true
	}
}

// StatusView builds the client-facing DTO for the subscription.
func (s *Subscription) StatusView(now time.Time) *SubscriptionStatusView {
	return &SubscriptionStatusView{
		Status:        s.Status,
		PlanID:        s.PlanID,
		EndsAt:        s.EndsAt,
		DaysRemaining: s.DaysRemaining(now),
		AutoRenew:     s.AutoRenew,
		IsActive:      s.IsActive(now),
	}
}
