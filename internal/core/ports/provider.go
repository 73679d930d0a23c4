package ports

import (
	"context"
	"errors"

	"payment-orchestrator/internal/core/domain"
)

// ErrOutcomeUnknown is returned by provider adapters when a call timed out
// or the response was lost. The charge may still have settled upstream, so
// the caller must reconcile via webhook or a status query instead of
// assuming failure.
var ErrOutcomeUnknown = errors.New("provider outcome unknown")

// ChargeStatus is the provider's synchronous answer to a charge request.
type ChargeStatus string

const (
	ChargeSucceeded ChargeStatus = "succeeded"
	ChargeFailed    ChargeStatus = "failed"
	ChargePending   ChargeStatus = "pending" // settles asynchronously via webhook
)

// CustomerData is the minimal profile sent when creating a provider-side
// customer record.
type CustomerData struct {
	Email    string
	Name     string
	Phone    string
	Document string
}

// ChargeRequest asks a provider to move money using a vaulted token.
type ChargeRequest struct {
	OrderID            string // our idempotency key at the provider
	AmountCents        int64
	Currency           string
	ProviderCustomerID string
	PaymentMethodToken string
	Description        string
}

// VaultableCard is the reusable instrument a provider attaches to a
// charge response when the buyer's card was tokenized for later use.
type VaultableCard struct {
	Token       string // provider payment-method token, valid beyond this charge
	Brand       string
	Last4       string
	ExpMonth    int
	ExpYear     int
	Fingerprint string // provider-computed; empty when the provider has none
}

// ChargeResult is the normalized provider response for a charge.
type ChargeResult struct {
	ProviderChargeID string
	Status           ChargeStatus
	RawStatus        string // provider-native status string
	FailureReason    string
	Card             *VaultableCard // nil when no reusable token was returned
}

// ProviderAdapter is the outbound contract with one payment provider.
// All calls carry bounded timeouts.
type ProviderAdapter interface {
	Name() domain.Provider
	// Async reports whether charges settle via webhook rather than in the
	// synchronous response.
	Async() bool
	CreateCustomer(ctx context.Context, data CustomerData) (providerCustomerID string, err error)
	CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	GetCharge(ctx context.Context, orderID string) (*ChargeResult, error)
	// VerifySignature checks the provider's webhook signature. Providers
	// that do not sign return true.
	VerifySignature(payload []byte, signature string) bool
	// ParseWebhook normalizes a provider callback payload. An error means
	// the payload is malformed and must be quarantined, not retried.
	ParseWebhook(payload []byte) (*domain.ProviderEvent, error)
}

// ProviderRegistry resolves adapters by provider code.
type ProviderRegistry interface {
	Adapter(p domain.Provider) (ProviderAdapter, error)
}
