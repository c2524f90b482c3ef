package domain

import (
	"errors"
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func endingIn(d time.Duration) *time.Time {
	t := testNow.Add(d)
	return &t
}

func activeSub(endsAt *time.Time) *Subscription {
	return &Subscription{
		ID:       "sub-1",
		UserID:   "user-1",
		PlanID:   "plan-1",
		Status:   StatusActive,
		StartsAt: testNow.AddDate(0, -1, 0),
		EndsAt:   endsAt,
	}
}

func TestIsActive(t *testing.T) {
	tests := []struct {
		name   string
		status SubscriptionStatus
		endsAt *time.Time
		want   bool
	}{
		{"active with future end", StatusActive, endingIn(48 * time.Hour), true},
		{"active lifetime", StatusActive, nil, true},
		{"active but lapsed", StatusActive, endingIn(-time.Hour), false},
		{"pending", StatusPending, endingIn(48 * time.Hour), false},
		{"cancelled lifetime", StatusCancelled, nil, false},
		{"expired", StatusExpired, endingIn(-time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &Subscription{Status: tt.status, EndsAt: tt.endsAt}
			if got := sub.IsActive(testNow); got != tt.want {
				t.Fatalf("IsActive = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDaysRemaining(t *testing.T) {
	if got := activeSub(nil).DaysRemaining(testNow); got != nil {
		t.Fatalf("lifetime subscription should have nil days remaining, got %d", *got)
	}

	tests := []struct {
		name   string
		endsAt *time.Time
		want   int
	}{
		{"one hour left rounds up to 1", endingIn(time.Hour), 1},
		{"exactly past", endingIn(0), 0},
		{"five days past", endingIn(-5 * 24 * time.Hour), 0},
		{"two and a half days rounds up to 3", endingIn(60 * time.Hour), 3},
		{"exactly seven days", endingIn(7 * 24 * time.Hour), 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := activeSub(tt.endsAt).DaysRemaining(testNow)
			if got == nil {
				t.Fatal("expected non-nil days remaining")
			}
			if *got != tt.want {
				t.Fatalf("DaysRemaining = %d, want %d", *got, tt.want)
			}
		})
	}
}

func TestDaysRemainingMonotonic(t *testing.T) {
	sub := activeSub(endingIn(6 * 24 * time.Hour))
	prev := *sub.DaysRemaining(testNow)
	for h := 1; h <= 200; h += 7 {
		cur := *sub.DaysRemaining(testNow.Add(time.Duration(h) * time.Hour))
		if cur > prev {
			t.Fatalf("days remaining increased from %d to %d as time advanced", prev, cur)
		}
		prev = cur
	}
}

func TestExpiryNoticeThreshold(t *testing.T) {
	tests := []struct {
		name   string
		endsAt *time.Time
		want   int
	}{
		{"lifetime", nil, 0},
		{"lapsed", endingIn(-time.Hour), 0},
		{"ten days out", endingIn(10 * 24 * time.Hour), 0},
		{"five days out", endingIn(5 * 24 * time.Hour), 7},
		{"exactly seven days", endingIn(7 * 24 * time.Hour), 7},
		{"two days out", endingIn(2 * 24 * time.Hour), 3},
		{"one hour out", endingIn(time.Hour), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := activeSub(tt.endsAt)
			if got := sub.ExpiryNoticeThreshold(testNow); got != tt.want {
				t.Fatalf("ExpiryNoticeThreshold = %d, want %d", got, tt.want)
			}
			if want := tt.want != 0; sub.ShouldNotifyExpiry(testNow) != want {
				t.Fatalf("ShouldNotifyExpiry = %v, want %v", !want, want)
			}
		})
	}
}

func TestActivate(t *testing.T) {
	for _, status := range []SubscriptionStatus{StatusPending, StatusExpired} {
		sub := &Subscription{Status: status}
		if err := sub.Activate(); err != nil {
			t.Fatalf("Activate from %s: %v", status, err)
		}
		if sub.Status != StatusActive {
			t.Fatalf("status = %s, want active", sub.Status)
		}
	}

	for _, status := range []SubscriptionStatus{StatusActive, StatusCancelled} {
		sub := &Subscription{Status: status}
		if err := sub.Activate(); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("Activate from %s: want ErrInvalidTransition, got %v", status, err)
		}
	}
}

func TestCancel(t *testing.T) {
	sub := activeSub(nil)
	sub.AutoRenew = true

	if err := sub.Cancel("no longer needed", testNow); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if sub.Status != StatusCancelled {
		t.Fatalf("status = %s, want cancelled", sub.Status)
	}
	if sub.AutoRenew {
		t.Fatal("auto_renew should be forced off on cancel")
	}
	if sub.CancelledAt == nil || !sub.CancelledAt.Equal(testNow) {
		t.Fatalf("cancelled_at = %v, want %v", sub.CancelledAt, testNow)
	}
	if sub.CancellationReason == nil || *sub.CancellationReason != "no longer needed" {
		t.Fatalf("cancellation_reason = %v, want original reason", sub.CancellationReason)
	}
	if sub.IsActive(testNow) {
		t.Fatal("cancelled subscription must not be active")
	}

	// Cancelled is terminal.
	if err := sub.Cancel("changed my mind", testNow.Add(time.Hour)); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second Cancel: want ErrInvalidTransition, got %v", err)
	}
	if *sub.CancellationReason != "no longer needed" {
		t.Fatal("rejected second cancel must not overwrite the original reason")
	}
	if err := sub.Activate(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Activate after cancel: want ErrInvalidTransition, got %v", err)
	}
	if err := sub.Extend(30, testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Extend after cancel: want ErrInvalidTransition, got %v", err)
	}
}

func TestExtend(t *testing.T) {
	t.Run("rejects non-positive days", func(t *testing.T) {
		sub := activeSub(endingIn(24 * time.Hour))
		for _, days := range []int{0, -5} {
			if err := sub.Extend(days, testNow); !errors.Is(err, ErrValidation) {
				t.Fatalf("Extend(%d): want ErrValidation, got %v", days, err)
			}
		}
	})

	t.Run("lifetime is a no-op", func(t *testing.T) {
		sub := activeSub(nil)
		before := *sub
		if err := sub.Extend(30, testNow); err != nil {
			t.Fatalf("Extend: %v", err)
		}
		if *sub != before {
			t.Fatal("extending a lifetime subscription must leave it unchanged")
		}
	})

	t.Run("extends from the current end when in the future", func(t *testing.T) {
		sub := activeSub(endingIn(48 * time.Hour))
		if err := sub.Extend(30, testNow); err != nil {
			t.Fatalf("Extend: %v", err)
		}
		want := testNow.Add(48 * time.Hour).AddDate(0, 0, 30)
		if !sub.EndsAt.Equal(want) {
			t.Fatalf("ends_at = %v, want %v", sub.EndsAt, want)
		}
	})

	t.Run("extends from now when lapsed", func(t *testing.T) {
		sub := activeSub(endingIn(-10 * 24 * time.Hour))
		sub.Status = StatusExpired
		if err := sub.Extend(30, testNow); err != nil {
			t.Fatalf("Extend: %v", err)
		}
		want := testNow.AddDate(0, 0, 30)
		if !sub.EndsAt.Equal(want) {
			t.Fatalf("ends_at = %v, want %v (extension must base off now, not the stale end)", sub.EndsAt, want)
		}
		if sub.Status != StatusActive {
			t.Fatalf("status = %s, want active after extend", sub.Status)
		}
		got := *sub.DaysRemaining(testNow)
		if got < 29 || got > 31 {
			t.Fatalf("days remaining after 30-day extend = %d, want ~30", got)
		}
	})

	t.Run("resets notice flags", func(t *testing.T) {
		sub := activeSub(endingIn(5 * 24 * time.Hour))
		sub.SevenDayNoticeSent = true
		sub.ThreeDayNoticeSent = true
		sub.OneDayNoticeSent = true
		if err := sub.Extend(60, testNow); err != nil {
			t.Fatalf("Extend: %v", err)
		}
		if sub.SevenDayNoticeSent || sub.ThreeDayNoticeSent || sub.OneDayNoticeSent {
			t.Fatal("extend must reset all expiry-notice flags for the new period")
		}
	})
}

func TestNoticeFlags(t *testing.T) {
	sub := activeSub(endingIn(5 * 24 * time.Hour))
	for _, threshold := range []int{7, 3, 1} {
		if sub.NoticeSent(threshold) {
			t.Fatalf("threshold %d should start unsent", threshold)
		}
		sub.MarkNoticeSent(threshold)
		if !sub.NoticeSent(threshold) {
			t.Fatalf("threshold %d not recorded as sent", threshold)
		}
	}
	// Unknown thresholds are ignored rather than recorded.
	sub.MarkNoticeSent(5)
	if sub.NoticeSent(5) {
		t.Fatal("unknown threshold must not be recorded")
	}
}

func TestStatusTransitionsTerminal(t *testing.T) {
	for _, target := range []SubscriptionStatus{StatusPending, StatusActive, StatusExpired, StatusCancelled} {
		if StatusCancelled.CanTransitionTo(target) {
			t.Fatalf("cancelled must not transition to %s", target)
		}
	}
}
