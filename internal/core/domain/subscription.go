package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus is the lifecycle state of a recurring agreement.
type SubscriptionStatus string

const (
	SubscriptionStatusTrial             SubscriptionStatus = "TRIAL"
	SubscriptionStatusActive            SubscriptionStatus = "ACTIVE"
	SubscriptionStatusPastDue           SubscriptionStatus = "PAST_DUE"
	SubscriptionStatusCanceled          SubscriptionStatus = "CANCELED"
	SubscriptionStatusIncomplete        SubscriptionStatus = "INCOMPLETE"
	SubscriptionStatusIncompleteExpired SubscriptionStatus = "INCOMPLETE_EXPIRED"
)

// IsTerminal returns true for states a subscription never leaves.
func (s SubscriptionStatus) IsTerminal() bool {
	return s == SubscriptionStatusCanceled || s == SubscriptionStatusIncompleteExpired
}

// BillingModel distinguishes who initiates the recurring charge.
type BillingModel string

const (
	// BillingPrepaid: the platform charges a vaulted payment method each period.
	BillingPrepaid BillingModel = "PREPAID"
	// BillingManaged: the provider hosts the recurring agreement and charges
	// on its own schedule; our state advances via webhooks.
	BillingManaged BillingModel = "MANAGED"
)

// IntervalUnit is the billing period unit.
type IntervalUnit string

const (
	IntervalDay   IntervalUnit = "DAY"
	IntervalWeek  IntervalUnit = "WEEK"
	IntervalMonth IntervalUnit = "MONTH"
	IntervalYear  IntervalUnit = "YEAR"
)

// CustomerSubscription is a recurring billing agreement. Mutated only by
// the renewal scheduler and the webhook pipeline.
type CustomerSubscription struct {
	ID                   uuid.UUID          `json:"id"`
	CustomerID           uuid.UUID          `json:"customer_id"`
	MerchantID           uuid.UUID          `json:"merchant_id"`
	ProductID            uuid.UUID          `json:"product_id"`
	Provider             Provider           `json:"provider"`
	AccountID            string             `json:"account_id"`
	BillingModel         BillingModel       `json:"billing_model"`
	Status               SubscriptionStatus `json:"status"`
	CurrentPeriodStart   time.Time          `json:"current_period_start"`
	CurrentPeriodEnd     time.Time          `json:"current_period_end"`
	IntervalUnit         IntervalUnit       `json:"interval_unit"`
	IntervalCount        int                `json:"interval_count"`
	PriceCents           int64              `json:"price_cents"`
	Currency             string             `json:"currency"`
	VaultPaymentMethodID *uuid.UUID         `json:"vault_payment_method_id,omitempty"`
	StatusReason         *string            `json:"status_reason,omitempty"`
	CanceledAt           *time.Time         `json:"canceled_at,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// Due reports whether the subscription needs renewal at the given time.
func (s *CustomerSubscription) Due(now time.Time) bool {
	if s.Status.IsTerminal() {
		return false
	}
	return !s.CurrentPeriodEnd.After(now)
}

// NextPeriod computes the boundaries of the period starting at from,
// using the subscription's interval unit and count.
func (s *CustomerSubscription) NextPeriod(from time.Time) (start, end time.Time) {
	start = from
	count := s.IntervalCount
	if count <= 0 {
		count = 1
	}
	switch s.IntervalUnit {
	case IntervalDay:
		end = start.AddDate(0, 0, count)
	case IntervalWeek:
		end = start.AddDate(0, 0, 7*count)
	case IntervalYear:
		end = start.AddDate(count, 0, 0)
	default: // month
		end = start.AddDate(0, count, 0)
	}
	return start, end
}

// PeriodKey identifies a billing period by its start date (UTC). It is
// part of the deterministic renewal order id, so a retried renewal for the
// same cycle maps to the same transaction.
func PeriodKey(periodStart time.Time) string {
	return periodStart.UTC().Format("20060102")
}

// RenewalOrderID builds the deterministic provider order id for one
// renewal cycle of a subscription.
func RenewalOrderID(subscriptionID uuid.UUID, periodKey string) string {
	return fmt.Sprintf("ren:%s:%s", subscriptionID, periodKey)
}

// RenewalTransactionID derives a stable UUID (v5) for a renewal attempt so
// repeated executions upsert the same transaction row.
func RenewalTransactionID(provider Provider, orderID string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(string(provider)+"/"+orderID))
}
