package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Customer is the unified buyer identity: exactly one row per
// (merchant_id, normalized email), enforced by a unique index and a
// merge-on-write upsert.
type Customer struct {
	ID         uuid.UUID `json:"id"`
	MerchantID uuid.UUID `json:"merchant_id"`
	Email      string    `json:"email"` // always normalized lowercase
	Name       string    `json:"name"`
	Phone      *string   `json:"phone,omitempty"`
	Document   *string   `json:"document,omitempty"` // CPF/CNPJ or equivalent
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NormalizeEmail lowercases and trims an email for identity matching.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CustomerProvider links a unified customer to one provider's customer
// record. Unique per (provider, account_id, provider_customer_id) and per
// (customer_id, provider, account_id).
type CustomerProvider struct {
	ID                 uuid.UUID `json:"id"`
	CustomerID         uuid.UUID `json:"customer_id"`
	Provider           Provider  `json:"provider"`
	AccountID          string    `json:"account_id"`
	ProviderCustomerID string    `json:"provider_customer_id"`
	CreatedAt          time.Time `json:"created_at"`
}
