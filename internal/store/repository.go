/**
 * @description
 * This file implements the data access layer for the subscription service.
 * It contains all the SQL for plans, subscriptions and payments, plus the
 * row-locked read-modify-write helper every subscription mutation goes
 * through so concurrent extends and the daily sweep cannot lose updates.
 */
package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coursehub/subscription-service/internal/domain"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrPlanNotFound         = errors.New("plan not found")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPlanInUse            = errors.New("plan is referenced by subscriptions")
)

// Repository handles database operations for plans, subscriptions and payments.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const subscriptionColumns = `
	id, user_id, plan_id, status, starts_at, ends_at, auto_renew,
	seven_day_notice_sent, three_day_notice_sent, one_day_notice_sent,
	cancellation_reason, cancelled_at
`

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := row.Scan(
		&sub.ID,
		&sub.UserID,
		&sub.PlanID,
		&sub.Status,
		&sub.StartsAt,
		&sub.EndsAt,
		&sub.AutoRenew,
		&sub.SevenDayNoticeSent,
		&sub.ThreeDayNoticeSent,
		&sub.OneDayNoticeSent,
		&sub.CancellationReason,
		&sub.CancelledAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// GetSubscription retrieves a subscription by its id.
func (r *Repository) GetSubscription(ctx context.Context, id string) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	return scanSubscription(r.db.QueryRow(ctx, query, id))
}

// GetSubscriptionByUserID retrieves the most recent subscription for a user.
func (r *Repository) GetSubscriptionByUserID(ctx context.Context, userID string) (*domain.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY starts_at DESC
		LIMIT 1
	`
	return scanSubscription(r.db.QueryRow(ctx, query, userID))
}

// CreateSubscription inserts a new subscription row.
func (r *Repository) CreateSubscription(ctx context.Context, sub *domain.Subscription) error {
	query := `
		INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.Exec(ctx, query,
		sub.ID,
		sub.UserID,
		sub.PlanID,
		sub.Status,
		sub.StartsAt,
		sub.EndsAt,
		sub.AutoRenew,
		sub.SevenDayNoticeSent,
		sub.ThreeDayNoticeSent,
		sub.OneDayNoticeSent,
		sub.CancellationReason,
		sub.CancelledAt,
	)
	return err
}

// UpdateSubscription mutates a subscription under a row lock. The row is
// re-read with FOR UPDATE inside a transaction, the mutate callback is
// applied to the fresh state, and the result is written back. Returning an
// error from mutate rolls the whole thing back.
func (r *Repository) UpdateSubscription(ctx context.Context, id string, mutate func(*domain.Subscription) error) (*domain.Subscription, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1 FOR UPDATE`
	sub, err := scanSubscription(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	if err := mutate(sub); err != nil {
		return nil, err
	}

	update := `
		UPDATE subscriptions
		SET status = $2,
			ends_at = $3,
			auto_renew = $4,
			seven_day_notice_sent = $5,
			three_day_notice_sent = $6,
			one_day_notice_sent = $7,
			cancellation_reason = $8,
			cancelled_at = $9,
			updated_at = NOW()
		WHERE id = $1
	`
	_, err = tx.Exec(ctx, update,
		sub.ID,
		sub.Status,
		sub.EndsAt,
		sub.AutoRenew,
		sub.SevenDayNoticeSent,
		sub.ThreeDayNoticeSent,
		sub.OneDayNoticeSent,
		sub.CancellationReason,
		sub.CancelledAt,
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return sub, nil
}

// ListActiveEnding fetches all active subscriptions that have an end date,
// i.e. the candidate set for the daily expiry sweep. Lifetime subscriptions
// (ends_at IS NULL) never appear here.
func (r *Repository) ListActiveEnding(ctx context.Context) ([]domain.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE status = 'active' AND ends_at IS NOT NULL
		ORDER BY ends_at
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

const planColumns = `
	id, name, slug, billing_cycle, duration_days, price, commission_rate,
	features, active, sort_order, deleted_at
`

func scanPlan(row pgx.Row) (*domain.Plan, error) {
	var plan domain.Plan
	err := row.Scan(
		&plan.ID,
		&plan.Name,
		&plan.Slug,
		&plan.BillingCycle,
		&plan.DurationDays,
		&plan.Price,
		&plan.CommissionRate,
		&plan.Features,
		&plan.Active,
		&plan.SortOrder,
		&plan.DeletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return &plan, nil
}

// GetPlan retrieves a plan by id. Soft-deleted plans are still resolvable
// because historical subscriptions reference them.
func (r *Repository) GetPlan(ctx context.Context, id string) (*domain.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1`
	return scanPlan(r.db.QueryRow(ctx, query, id))
}

// ListPlans returns all non-deleted plans ordered for display.
func (r *Repository) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM plans
		WHERE deleted_at IS NULL
		ORDER BY sort_order, name
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []domain.Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *plan)
	}
	return plans, rows.Err()
}

// CreatePlan inserts a new plan row.
func (r *Repository) CreatePlan(ctx context.Context, plan *domain.Plan) error {
	query := `
		INSERT INTO plans (id, name, slug, billing_cycle, duration_days, price,
			commission_rate, features, active, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.Exec(ctx, query,
		plan.ID,
		plan.Name,
		plan.Slug,
		plan.BillingCycle,
		plan.DurationDays,
		plan.Price,
		plan.CommissionRate,
		plan.Features,
		plan.Active,
		plan.SortOrder,
	)
	return err
}

// UpdatePlan writes the mutable plan fields back.
func (r *Repository) UpdatePlan(ctx context.Context, plan *domain.Plan) error {
	query := `
		UPDATE plans
		SET name = $2, slug = $3, billing_cycle = $4, duration_days = $5,
			price = $6, commission_rate = $7, features = $8, active = $9,
			sort_order = $10, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	tag, err := r.db.Exec(ctx, query,
		plan.ID,
		plan.Name,
		plan.Slug,
		plan.BillingCycle,
		plan.DurationDays,
		plan.Price,
		plan.CommissionRate,
		plan.Features,
		plan.Active,
		plan.SortOrder,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPlanNotFound
	}
	return nil
}

// SoftDeletePlan marks a plan deleted. The delete is refused while any
// subscription still references the plan so historical records keep a
// resolvable plan id.
func (r *Repository) SoftDeletePlan(ctx context.Context, id string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var inUse bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM subscriptions WHERE plan_id = $1)`, id,
	).Scan(&inUse)
	if err != nil {
		return err
	}
	if inUse {
		return ErrPlanInUse
	}

	tag, err := tx.Exec(ctx,
		`UPDATE plans SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPlanNotFound
	}
	return tx.Commit(ctx)
}

// NextPlanSortOrder returns the next free sort position. Assigning it is an
// explicit service-layer step, not a save hook.
func (r *Repository) NextPlanSortOrder(ctx context.Context) (int, error) {
	var next int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(sort_order), 0) + 1 FROM plans WHERE deleted_at IS NULL`,
	).Scan(&next)
	return next, err
}

const paymentColumns = `
	id, subscription_id, user_id, amount, wallet_amount, gateway_amount,
	status, method, transaction_id, gateway_response, paid_at
`

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(
		&p.ID,
		&p.SubscriptionID,
		&p.UserID,
		&p.Amount,
		&p.WalletAmount,
		&p.GatewayAmount,
		&p.Status,
		&p.Method,
		&p.TransactionID,
		&p.GatewayResponse,
		&p.PaidAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetPayment retrieves a payment by id.
func (r *Repository) GetPayment(ctx context.Context, id string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM subscription_payments WHERE id = $1`
	return scanPayment(r.db.QueryRow(ctx, query, id))
}

// CreatePayment inserts a new payment row.
func (r *Repository) CreatePayment(ctx context.Context, p *domain.Payment) error {
	query := `
		INSERT INTO subscription_payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Exec(ctx, query,
		p.ID,
		p.SubscriptionID,
		p.UserID,
		p.Amount,
		p.WalletAmount,
		p.GatewayAmount,
		p.Status,
		p.Method,
		p.TransactionID,
		p.GatewayResponse,
		p.PaidAt,
	)
	return err
}

// UpdatePayment writes a payment's status fields back after a gateway callback.
func (r *Repository) UpdatePayment(ctx context.Context, p *domain.Payment) error {
	query := `
		UPDATE subscription_payments
		SET status = $2, transaction_id = $3, gateway_response = $4,
			paid_at = $5, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query,
		p.ID,
		p.Status,
		p.TransactionID,
		p.GatewayResponse,
		p.PaidAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}
