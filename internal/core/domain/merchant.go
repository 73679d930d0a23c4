package domain

import (
	"time"

	"github.com/google/uuid"
)

// MerchantStatus represents the account state of a merchant.
type MerchantStatus string

const (
	MerchantStatusActive   MerchantStatus = "ACTIVE"
	MerchantStatusInactive MerchantStatus = "INACTIVE"
)

// Merchant is a tenant's payable entity. Merchants are never deleted,
// only deactivated.
type Merchant struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	Country   string         `json:"country"` // ISO 3166-1 alpha-2
	Status    MerchantStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// IsActive returns true if the merchant can transact.
func (m *Merchant) IsActive() bool {
	return m.Status == MerchantStatusActive
}

// MerchantIntegration is one enabled provider connection for a merchant.
type MerchantIntegration struct {
	ID          uuid.UUID `json:"id"`
	MerchantID  uuid.UUID `json:"merchant_id"`
	Provider    Provider  `json:"provider"`
	AccountID   string    `json:"account_id"` // provider-side account/recipient id
	Active      bool      `json:"active"`
	ConnectedAt time.Time `json:"connected_at"`
}
