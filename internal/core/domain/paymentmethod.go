package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PaymentMethodStatus is the lifecycle state of a vaulted instrument.
type PaymentMethodStatus string

const (
	PaymentMethodStatusActive  PaymentMethodStatus = "ACTIVE"
	PaymentMethodStatusExpired PaymentMethodStatus = "EXPIRED"
	PaymentMethodStatusRevoked PaymentMethodStatus = "REVOKED"
)

// CustomerPaymentMethod is a tokenized, vaulted payment instrument.
// Unique per (provider, account_id, provider_payment_method_id); at most
// one is_default=true per (customer_id, provider, account_id).
type CustomerPaymentMethod struct {
	ID                      uuid.UUID           `json:"id"`
	CustomerID              uuid.UUID           `json:"customer_id"`
	Provider                Provider            `json:"provider"`
	AccountID               string              `json:"account_id"`
	ProviderPaymentMethodID string              `json:"provider_payment_method_id"` // the vault token
	Brand                   string              `json:"brand"`
	Last4                   string              `json:"last4"`
	ExpMonth                int                 `json:"exp_month"`
	ExpYear                 int                 `json:"exp_year"`
	IsDefault               bool                `json:"is_default"`
	Fingerprint             string              `json:"fingerprint"`
	Status                  PaymentMethodStatus `json:"status"`
	CreatedAt               time.Time           `json:"created_at"`
	UpdatedAt               time.Time           `json:"updated_at"`
}

// CardFingerprint derives a stable identifier for a physical card from its
// attributes, used to detect re-tokenization of the same instrument when
// the provider does not supply its own fingerprint.
func CardFingerprint(brand, last4 string, expMonth, expYear int) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%02d|%04d", brand, last4, expMonth, expYear))
	return hex.EncodeToString(sum[:])
}

// Usable reports whether the method can be charged at the given time.
func (m *CustomerPaymentMethod) Usable(now time.Time) bool {
	if m.Status != PaymentMethodStatusActive {
		return false
	}
	if m.ExpYear == 0 {
		return true
	}
	// Cards are valid through the last day of the expiry month.
	expiry := time.Date(m.ExpYear, time.Month(m.ExpMonth), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return now.Before(expiry)
}
