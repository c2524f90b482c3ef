/**
 * @description
 * This file defines the payment record attached to a subscription checkout
 * and its status transitions. Completing a payment does not touch the
 * subscription; the service layer calls both steps in sequence so the two
 * are independently testable and retryable.
 */
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// PaymentStatus represents the state of a payment attempt.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Payment represents a single payment attempt for a subscription.
// Amount is always WalletAmount + GatewayAmount; the service enforces the
// split when it creates the record.
type Payment struct {
	ID              string          `json:"id"`
	SubscriptionID  string          `json:"subscription_id"`
	UserID          string          `json:"user_id"`
	Amount          int64           `json:"amount"`
	WalletAmount    int64           `json:"wallet_amount"`
	GatewayAmount   int64           `json:"gateway_amount"`
	Status          PaymentStatus   `json:"status"`
	Method          string          `json:"method"`
	TransactionID   *string         `json:"transaction_id,omitempty"`
	GatewayResponse json.RawMessage `json:"gateway_response,omitempty"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
}

// MarkCompleted transitions the payment to completed and stamps paid_at.
// Retrying after a failure is allowed; a completed or refunded payment is not
// completable again.
func (p *Payment) MarkCompleted(transactionID string, now time.Time) error {
	if p.Status != PaymentPending && p.Status != PaymentFailed {
		return fmt.Errorf("%w: cannot complete payment in status %q", ErrInvalidTransition, p.Status)
	}
	p.Status = PaymentCompleted
	p.PaidAt = &now
	if transactionID != "" {
		p.TransactionID = &transactionID
	}
	return nil
}

// MarkFailed transitions a pending payment to failed and keeps the raw
// gateway response for later inspection.
func (p *Payment) MarkFailed(gatewayResponse json.RawMessage) error {
	if p.Status != PaymentPending {
		return fmt.Errorf("%w: cannot fail payment in status %q", ErrInvalidTransition, p.Status)
	}
	p.Status = PaymentFailed
	if len(gatewayResponse) > 0 {
		p.GatewayResponse = gatewayResponse
	}
	return nil
}

// MarkRefunded records a refund decided by the external refund workflow.
func (p *Payment) MarkRefunded() error {
	if p.Status != PaymentCompleted {
		return fmt.Errorf("%w: cannot refund payment in status %q", ErrInvalidTransition, p.Status)
	}
	p.Status = PaymentRefunded
	return nil
}

// IsCompleted reports whether the payment went through.
func (p *Payment) IsCompleted() bool {
	return p.Status == PaymentCompleted
}
