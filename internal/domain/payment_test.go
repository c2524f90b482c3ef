package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func pendingPayment() *Payment {
	return &Payment{
		ID:             "pay-1",
		SubscriptionID: "sub-1",
		UserID:         "user-1",
		Amount:         4999,
		WalletAmount:   1000,
		GatewayAmount:  3999,
		Status:         PaymentPending,
		Method:         "card",
	}
}

func TestMarkCompleted(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	p := pendingPayment()
	if err := p.MarkCompleted("txn-42", now); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	if !p.IsCompleted() {
		t.Fatal("payment should be completed")
	}
	if p.PaidAt == nil || !p.PaidAt.Equal(now) {
		t.Fatalf("paid_at = %v, want %v", p.PaidAt, now)
	}
	if p.TransactionID == nil || *p.TransactionID != "txn-42" {
		t.Fatalf("transaction_id = %v, want txn-42", p.TransactionID)
	}

	// Completing twice is rejected.
	if err := p.MarkCompleted("txn-43", now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second MarkCompleted: want ErrInvalidTransition, got %v", err)
	}
}

func TestMarkCompletedAfterFailure(t *testing.T) {
	now := time.Now()
	p := pendingPayment()
	if err := p.MarkFailed(json.RawMessage(`{"code":"card_declined"}`)); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if p.Status != PaymentFailed {
		t.Fatalf("status = %s, want failed", p.Status)
	}
	// Retrying after a failure is allowed.
	if err := p.MarkCompleted("", now); err != nil {
		t.Fatalf("MarkCompleted after failure: %v", err)
	}
	if p.TransactionID != nil {
		t.Fatal("empty transaction id must not be stored")
	}
}

func TestMarkFailedPreconditions(t *testing.T) {
	p := pendingPayment()
	if err := p.MarkCompleted("txn", time.Now()); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	if err := p.MarkFailed(nil); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("MarkFailed on completed: want ErrInvalidTransition, got %v", err)
	}
}

func TestMarkRefunded(t *testing.T) {
	p := pendingPayment()
	if err := p.MarkRefunded(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("refund of pending payment: want ErrInvalidTransition, got %v", err)
	}
	if err := p.MarkCompleted("txn", time.Now()); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	if err := p.MarkRefunded(); err != nil {
		t.Fatalf("MarkRefunded: %v", err)
	}
	if p.Status != PaymentRefunded {
		t.Fatalf("status = %s, want refunded", p.Status)
	}
}
