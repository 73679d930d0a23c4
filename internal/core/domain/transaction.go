package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionStatus represents the lifecycle state of a payment attempt.
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "PENDING"
	TransactionStatusProcessing TransactionStatus = "PROCESSING"
	TransactionStatusPaid       TransactionStatus = "PAID"
	TransactionStatusFailed     TransactionStatus = "FAILED"
	TransactionStatusRefunded   TransactionStatus = "REFUNDED"
	TransactionStatusChargeback TransactionStatus = "CHARGEBACK"
)

// IsTerminal returns true if the status is final. Terminal statuses are
// never overwritten by non-terminal ones (last-terminal-wins).
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case TransactionStatusPaid, TransactionStatusFailed,
		TransactionStatusRefunded, TransactionStatusChargeback:
		return true
	}
	return false
}

// PaymentTransaction is one attempt to move money. It is idempotent per
// (provider, provider_order_id): initiators and the webhook pipeline both
// write it through a conditional upsert, never a second insert.
type PaymentTransaction struct {
	ID              uuid.UUID         `json:"id"`
	Provider        Provider          `json:"provider"`
	ProviderOrderID string            `json:"provider_order_id"`
	MerchantID      uuid.UUID         `json:"merchant_id"`
	CustomerID      uuid.UUID         `json:"customer_id"`
	SubscriptionID  *uuid.UUID        `json:"subscription_id,omitempty"`
	AmountCents     int64             `json:"amount_cents"`
	Currency        string            `json:"currency"`
	Method          PaymentMethodType `json:"method"`
	Status          TransactionStatus `json:"status"`
	StatusV2        string            `json:"status_v2"` // provider-native status string
	FailureReason   *string           `json:"failure_reason,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	ProcessedAt     *time.Time        `json:"processed_at,omitempty"`
}

// IsTerminal returns true if the transaction reached a final state.
func (t *PaymentTransaction) IsTerminal() bool {
	return t.Status.IsTerminal()
}
