/**
 * @description
 * Scheduled job implementations for the subscription service. The daily
 * expiry sweep flips lapsed subscriptions to expired and emits 7/3/1-day
 * expiry notices. The sweep is idempotent within a day: notice flags on the
 * row prevent double-sends and a redis lock skips overlapping runs.
 */
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/coursehub/subscription-service/internal/domain"
)

// SweepRepository defines the database operations the sweep needs.
type SweepRepository interface {
	ListActiveEnding(ctx context.Context) ([]domain.Subscription, error)
	UpdateSubscription(ctx context.Context, id string, mutate func(*domain.Subscription) error) (*domain.Subscription, error)
}

// Notifier publishes subscription lifecycle events to downstream consumers.
type Notifier interface {
	NotifyExpiring(ctx context.Context, ev domain.SubscriptionExpiringEvent) error
	NotifyExpired(ctx context.Context, ev domain.SubscriptionExpiredEvent) error
}

// SweepLock guards against concurrent sweep runs across instances.
type SweepLock interface {
	TryLock(ctx context.Context) (token string, acquired bool, err error)
	Unlock(ctx context.Context, token string) error
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	repo     SweepRepository
	notifier Notifier
	lock     SweepLock
	logger   *slog.Logger

	// baseCtx is cancelled on shutdown so a long scan stops between rows.
	baseCtx context.Context
}

// NewJobs creates a new Jobs runner. baseCtx should be the process lifetime
// context; cancelling it interrupts a running sweep at the next row boundary.
func NewJobs(baseCtx context.Context, repo SweepRepository, notifier Notifier, lock SweepLock, logger *slog.Logger) *Jobs {
	return &Jobs{
		repo:     repo,
		notifier: notifier,
		lock:     lock,
		logger:   logger,
		baseCtx:  baseCtx,
	}
}

// ProcessSubscriptionExpiry is the cron entry point for the daily sweep.
func (j *Jobs) ProcessSubscriptionExpiry() {
	ctx := j.baseCtx

	token, acquired, err := j.lock.TryLock(ctx)
	if err != nil {
		j.logger.Error("sweep lock check failed, proceeding without lock", "error", err)
	} else if !acquired {
		j.logger.Info("expiry sweep already running elsewhere, skipping")
		return
	} else {
		defer func() {
			if err := j.lock.Unlock(ctx, token); err != nil {
				j.logger.Error("failed to release sweep lock", "error", err)
			}
		}()
	}

	j.logger.Info("starting subscription expiry sweep")
	j.runSweep(ctx, time.Now())
	j.logger.Info("subscription expiry sweep finished")
}

// runSweep evaluates every active subscription with an end date against the
// lifecycle rules at the given time. Row failures are logged and the scan
// continues; each row's update is atomic under its own row lock.
func (j *Jobs) runSweep(ctx context.Context, now time.Time) {
	subs, err := j.repo.ListActiveEnding(ctx)
	if err != nil {
		j.logger.Error("failed to list subscriptions for sweep", "error", err)
		return
	}
	if len(subs) == 0 {
		j.logger.Info("no subscriptions with end dates to evaluate")
		return
	}

	j.logger.Info("evaluating subscriptions", "count", len(subs))

	for _, sub := range subs {
		if ctx.Err() != nil {
			j.logger.Info("sweep cancelled, stopping between rows")
			return
		}
		if err := j.sweepOne(ctx, sub.ID, now); err != nil {
			j.logger.Error("failed to process subscription", "subscription_id", sub.ID, "error", err)
		}
	}
}

// sweepOne re-reads one subscription under a row lock and applies whichever
// of the two sweep effects is due: expiry, or a threshold notice. The notice
// is published before the flag is set; a publish failure rolls the flag
// back, so a retried run re-sends (at-least-once).
func (j *Jobs) sweepOne(ctx context.Context, subscriptionID string, now time.Time) error {
	var expiredEvent *domain.SubscriptionExpiredEvent

	_, err := j.repo.UpdateSubscription(ctx, subscriptionID, func(sub *domain.Subscription) error {
		// State may have changed since the list query (cancel, extend,
		// a concurrent sweep). Re-check under the lock.
		if sub.Status != domain.StatusActive || sub.EndsAt == nil {
			return nil
		}

		if !sub.EndsAt.After(now) {
			if err := sub.MarkExpired(); err != nil {
				return err
			}
			expiredEvent = &domain.SubscriptionExpiredEvent{
				UserID:         sub.UserID,
				SubscriptionID: sub.ID,
				ExpiredAt:      now,
			}
			return nil
		}

		threshold := sub.ExpiryNoticeThreshold(now)
		if threshold == 0 || sub.NoticeSent(threshold) {
			return nil
		}

		ev := domain.SubscriptionExpiringEvent{
			UserID:         sub.UserID,
			SubscriptionID: sub.ID,
			ThresholdDays:  threshold,
			EndsAt:         *sub.EndsAt,
		}
		if err := j.notifier.NotifyExpiring(ctx, ev); err != nil {
			return err
		}
		sub.MarkNoticeSent(threshold)
		j.logger.Info("sent expiry notice",
			"subscription_id", sub.ID, "threshold_days", threshold)
		return nil
	})
	if err != nil {
		return err
	}

	// The expired event is informational; a publish failure must not undo
	// the committed status change.
	if expiredEvent != nil {
		j.logger.Info("subscription expired", "subscription_id", subscriptionID)
		if err := j.notifier.NotifyExpired(ctx, *expiredEvent); err != nil {
			j.logger.Error("failed to publish expired event",
				"subscription_id", subscriptionID, "error", err)
		}
	}
	return nil
}
