/**
 * @description
 * This file defines the purchasable plan catalog entity: billing cycles,
 * the fixed cycle-duration table and plan-level validation. Duration rules
 * are pure functions of the plan's attributes.
 */
package domain

import (
	"fmt"
	"time"
)

// BillingCycle is the recurrence unit of a plan.
type BillingCycle string

const (
	CycleMonthly    BillingCycle = "monthly"
	CycleQuarterly  BillingCycle = "quarterly"
	CycleSemiAnnual BillingCycle = "semi_annual"
	CycleYearly     BillingCycle = "yearly"
	CycleLifetime   BillingCycle = "lifetime"
	CycleCustom     BillingCycle = "custom"
)

// cycleDays is the fixed duration table for the standard billing cycles.
var cycleDays = map[BillingCycle]int{
	CycleMonthly:    30,
	CycleQuarterly:  90,
	CycleSemiAnnual: 180,
	CycleYearly:     365,
}

// Plan represents a purchasable subscription plan.
// DurationDays is an explicit per-plan override; for standard cycles it is
// usually nil and the fixed table applies.
type Plan struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Slug           string       `json:"slug"`
	BillingCycle   BillingCycle `json:"billing_cycle"`
	DurationDays   *int         `json:"duration_days,omitempty"`
	Price          int64        `json:"price"` // minor currency units
	CommissionRate float64      `json:"commission_rate"`
	Features       []string     `json:"features"`
	Active         bool         `json:"active"`
	SortOrder      int          `json:"sort_order"`
	DeletedAt      *time.Time   `json:"deleted_at,omitempty"`
}

// IsLifetime reports whether the plan never expires.
func (p *Plan) IsLifetime() bool {
	return p.BillingCycle == CycleLifetime
}

// CycleDuration resolves the plan's period length in days. Custom plans use
// their own duration; standard cycles take an explicit override when set,
// else the fixed table. The second return is false for lifetime plans and
// for plans with no resolvable duration.
func (p *Plan) CycleDuration() (int, bool) {
	if p.BillingCycle == CycleCustom {
		if p.DurationDays != nil && *p.DurationDays > 0 {
			return *p.DurationDays, true
		}
		return 0, false
	}
	if p.IsLifetime() {
		return 0, false
	}
	if p.DurationDays != nil && *p.DurationDays > 0 {
		return *p.DurationDays, true
	}
	if days, ok := cycleDays[p.BillingCycle]; ok {
		return days, true
	}
	return 0, false
}

// Validate checks the plan configuration. Invalid configurations are rejected
// here, at creation/update time, never at use time.
func (p *Plan) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: plan name is required", ErrValidation)
	}
	if p.Price < 0 {
		return fmt.Errorf("%w: plan price cannot be negative", ErrValidation)
	}
	if p.CommissionRate < 0 || p.CommissionRate > 100 {
		return fmt.Errorf("%w: commission rate must be between 0 and 100", ErrValidation)
	}
	switch p.BillingCycle {
	case CycleMonthly, CycleQuarterly, CycleSemiAnnual, CycleYearly, CycleLifetime:
	case CycleCustom:
		if p.DurationDays == nil || *p.DurationDays <= 0 {
			return fmt.Errorf("%w: custom billing cycle requires a positive duration_days", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown billing cycle %q", ErrValidation, p.BillingCycle)
	}
	if p.DurationDays != nil && *p.DurationDays <= 0 {
		return fmt.Errorf("%w: duration_days override must be positive", ErrValidation)
	}
	return nil
}
