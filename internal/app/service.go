/**
 * @description
 * This file contains the core business logic for the subscription service.
 * The Service layer orchestrates the repository and the domain state machine:
 * checkout creates a pending subscription plus a pending payment, the gateway
 * callback completes the payment and activates the subscription, and plan
 * administration runs validation and normalization explicitly before save.
 */
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coursehub/subscription-service/internal/domain"
)

// Repository defines the database operations the service needs.
type Repository interface {
	GetSubscription(ctx context.Context, id string) (*domain.Subscription, error)
	GetSubscriptionByUserID(ctx context.Context, userID string) (*domain.Subscription, error)
	CreateSubscription(ctx context.Context, sub *domain.Subscription) error
	UpdateSubscription(ctx context.Context, id string, mutate func(*domain.Subscription) error) (*domain.Subscription, error)

	GetPlan(ctx context.Context, id string) (*domain.Plan, error)
	ListPlans(ctx context.Context) ([]domain.Plan, error)
	CreatePlan(ctx context.Context, plan *domain.Plan) error
	UpdatePlan(ctx context.Context, plan *domain.Plan) error
	SoftDeletePlan(ctx context.Context, id string) error
	NextPlanSortOrder(ctx context.Context) (int, error)

	GetPayment(ctx context.Context, id string) (*domain.Payment, error)
	CreatePayment(ctx context.Context, p *domain.Payment) error
	UpdatePayment(ctx context.Context, p *domain.Payment) error
}

// Service provides the business logic for subscription management.
type Service struct {
	repo Repository
}

// NewService creates a new subscription service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CheckoutResult is returned by Subscribe: the new pending subscription and
// the payment the gateway should now collect.
type CheckoutResult struct {
	Subscription *domain.Subscription `json:"subscription"`
	Payment      *domain.Payment      `json:"payment"`
}

// Subscribe creates a pending subscription for the user on the given plan
// together with a pending payment record. walletAmount is the portion of the
// price covered from the user's wallet; the remainder is owed to the gateway.
func (s *Service) Subscribe(ctx context.Context, userID, planID, method string, walletAmount int64) (*CheckoutResult, error) {
	plan, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !plan.Active || plan.DeletedAt != nil {
		return nil, fmt.Errorf("%w: plan %q is not available for purchase", domain.ErrValidation, plan.Slug)
	}
	if walletAmount < 0 || walletAmount > plan.Price {
		return nil, fmt.Errorf("%w: wallet amount must be between 0 and the plan price", domain.ErrValidation)
	}

	now := time.Now()
	sub := &domain.Subscription{
		ID:       uuid.NewString(),
		UserID:   userID,
		PlanID:   plan.ID,
		Status:   domain.StatusPending,
		StartsAt: now,
	}
	if days, ok := plan.CycleDuration(); ok {
		endsAt := now.AddDate(0, 0, days)
		sub.EndsAt = &endsAt
		sub.AutoRenew = true
	}

	if err := s.repo.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	payment := &domain.Payment{
		ID:             uuid.NewString(),
		SubscriptionID: sub.ID,
		UserID:         userID,
		Amount:         plan.Price,
		WalletAmount:   walletAmount,
		GatewayAmount:  plan.Price - walletAmount,
		Status:         domain.PaymentPending,
		Method:         method,
	}
	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		return nil, err
	}

	return &CheckoutResult{Subscription: sub, Payment: payment}, nil
}

// CompletePayment records a successful gateway callback and then activates
// the paid subscription. The two steps are sequential, not atomic: a crash
// in between leaves a completed payment against a pending subscription,
// which the gateway's callback retry resolves (completing an already
// completed payment is rejected, but activation is re-attempted).
func (s *Service) CompletePayment(ctx context.Context, paymentID, transactionID string) (*domain.Subscription, error) {
	payment, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if !payment.IsCompleted() {
		if err := payment.MarkCompleted(transactionID, now); err != nil {
			return nil, err
		}
		if err := s.repo.UpdatePayment(ctx, payment); err != nil {
			return nil, err
		}
	}

	return s.repo.UpdateSubscription(ctx, payment.SubscriptionID, func(sub *domain.Subscription) error {
		if sub.Status == domain.StatusActive {
			return nil
		}
		return sub.Activate()
	})
}

// FailPayment records a failed gateway callback. The subscription stays
// pending; the user can retry, which completes the same payment record.
func (s *Service) FailPayment(ctx context.Context, paymentID string, gatewayResponse json.RawMessage) (*domain.Payment, error) {
	payment, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := payment.MarkFailed(gatewayResponse); err != nil {
		return nil, err
	}
	if err := s.repo.UpdatePayment(ctx, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

// RefundPayment records a refund decided by the external refund workflow.
func (s *Service) RefundPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	payment, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := payment.MarkRefunded(); err != nil {
		return nil, err
	}
	if err := s.repo.UpdatePayment(ctx, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

// GetStatus returns the user's current subscription state.
func (s *Service) GetStatus(ctx context.Context, userID string) (*domain.SubscriptionStatusView, error) {
	sub, err := s.repo.GetSubscriptionByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return sub.StatusView(time.Now()), nil
}

// Cancel terminally cancels the user's subscription.
func (s *Service) Cancel(ctx context.Context, userID, reason string) (*domain.Subscription, error) {
	sub, err := s.repo.GetSubscriptionByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return s.repo.UpdateSubscription(ctx, sub.ID, func(fresh *domain.Subscription) error {
		return fresh.Cancel(reason, now)
	})
}

// Extend pushes a subscription's end date forward by the given number of
// days. Used by renewal flows and by back-office adjustments.
func (s *Service) Extend(ctx context.Context, subscriptionID string, days int) (*domain.Subscription, error) {
	now := time.Now()
	return s.repo.UpdateSubscription(ctx, subscriptionID, func(sub *domain.Subscription) error {
		return sub.Extend(days, now)
	})
}

// ListPlans returns the purchasable catalog.
func (s *Service) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	return s.repo.ListPlans(ctx)
}

// GetPlan returns a single plan by id.
func (s *Service) GetPlan(ctx context.Context, id string) (*domain.Plan, error) {
	return s.repo.GetPlan(ctx, id)
}

// CreatePlan validates and normalizes a new plan, then saves it. Slug and
// sort-order assignment happen here, visibly, rather than in a persistence
// hook.
func (s *Service) CreatePlan(ctx context.Context, plan *domain.Plan) (*domain.Plan, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	plan.ID = uuid.NewString()
	if plan.Slug == "" {
		plan.Slug = slugify(plan.Name)
	}
	if plan.SortOrder == 0 {
		next, err := s.repo.NextPlanSortOrder(ctx)
		if err != nil {
			return nil, err
		}
		plan.SortOrder = next
	}
	if err := s.repo.CreatePlan(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// UpdatePlan validates and saves changes to an existing plan.
func (s *Service) UpdatePlan(ctx context.Context, plan *domain.Plan) (*domain.Plan, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if plan.Slug == "" {
		plan.Slug = slugify(plan.Name)
	}
	if err := s.repo.UpdatePlan(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// DeletePlan soft-deletes a plan. The store refuses while subscriptions
// still reference it.
func (s *Service) DeletePlan(ctx context.Context, id string) error {
	return s.repo.SoftDeletePlan(ctx, id)
}

// slugify turns a display name into a URL-safe slug.
func slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
