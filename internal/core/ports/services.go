package ports

import (
	"context"
	"time"

	"payment-orchestrator/internal/core/domain"

	"github.com/google/uuid"
)

// RouteDecision is the outcome of one provider selection.
type RouteDecision struct {
	Provider  domain.Provider
	AccountID string     // merchant's account at the chosen provider, if connected
	RuleID    *uuid.UUID // matched routing rule, if any
	// ConfigError marks a decision where no active provider could be found
	// and the platform default was returned unconditionally. Paths that move
	// money must treat this as a configuration error, not a usable route.
	ConfigError bool
}

// RoutingService selects exactly one provider for a charge. Deterministic
// for identical inputs and rule sets.
type RoutingService interface {
	SelectProvider(ctx context.Context, q RouteQuery) (*RouteDecision, error)
}

// CustomerProfile carries mutable profile fields for identity resolution.
// Blank fields never overwrite populated ones.
type CustomerProfile struct {
	Name     string
	Phone    string
	Document string
}

// IdentityService maintains the provider-agnostic customer identity.
type IdentityService interface {
	ResolveOrCreateCustomer(ctx context.Context, merchantID uuid.UUID, email string, profile CustomerProfile) (*domain.Customer, error)
	EnsureProviderLink(ctx context.Context, customerID uuid.UUID, provider domain.Provider, accountID, providerCustomerID string) (*domain.CustomerProvider, error)
}

// SaveCardRequest vaults a tokenized card.
type SaveCardRequest struct {
	CustomerID          uuid.UUID
	Provider            domain.Provider
	AccountID           string
	Token               string // provider payment-method token
	Brand               string
	Last4               string
	ExpMonth            int
	ExpYear             int
	ProviderFingerprint string // optional; computed from card attributes if empty
	SetAsDefault        bool
}

// VaultService manages tokenized payment methods.
type VaultService interface {
	SaveCard(ctx context.Context, req SaveCardRequest) (*domain.CustomerPaymentMethod, error)
	ListCards(ctx context.Context, customerID uuid.UUID, provider *domain.Provider) ([]domain.CustomerPaymentMethod, error)
}

// CheckoutRequest creates a charge for a buyer.
type CheckoutRequest struct {
	MerchantID  uuid.UUID
	OfferID     *uuid.UUID
	ProductID   *uuid.UUID
	Reference   string // merchant-supplied idempotency reference
	Email       string
	Profile     CustomerProfile
	AmountCents int64
	Currency    string
	Country     *string
	Method      *domain.PaymentMethodType
	// VaultPaymentMethodID charges an already-vaulted method; Token charges
	// a freshly tokenized one.
	VaultPaymentMethodID *uuid.UUID
	Token                string
}

// CheckoutResult is returned to the checkout collaborator.
type CheckoutResult struct {
	Transaction       *domain.PaymentTransaction `json:"transaction"`
	ProviderReference string                     `json:"provider_reference"`
}

// CheckoutService performs routing + identity resolution + provider
// charge creation.
type CheckoutService interface {
	Create(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
	Finalize(ctx context.Context, merchantID uuid.UUID, reference string) (*domain.PaymentTransaction, error)
}

// IngestAck is the receipt returned to a provider webhook delivery.
type IngestAck struct {
	EventID        string `json:"event_id,omitempty"`
	Duplicate      bool   `json:"duplicate"`
	Classification string `json:"classification,omitempty"` // set for quarantined payloads
}

// WebhookIngestService is the inbound webhook pipeline.
type WebhookIngestService interface {
	// Ingest handles one delivery. Malformed payloads are accepted and
	// quarantined, never returned as errors.
	Ingest(ctx context.Context, provider domain.Provider, payload []byte) (*IngestAck, error)
	// ProcessPending re-dispatches events whose retry time has come.
	// Returns the number of events that reached a final outcome.
	ProcessPending(ctx context.Context, limit int) (int, error)
}

// RenewalOutcome is the terminal result of one renewal task execution.
type RenewalOutcome string

const (
	RenewalSkipped RenewalOutcome = "skipped"  // not due, terminal, or already handled
	RenewalRenewed RenewalOutcome = "renewed"  // charged and period advanced
	RenewalPending RenewalOutcome = "pending"  // charge in flight, webhook will settle
	RenewalPastDue RenewalOutcome = "past_due" // business failure recorded
)

// RenewalService advances due subscriptions. RenewOne is safe to invoke
// repeatedly for the same billing period.
type RenewalService interface {
	ListDue(ctx context.Context, provider domain.Provider, model domain.BillingModel, now time.Time, limit int) ([]uuid.UUID, error)
	RenewOne(ctx context.Context, subscriptionID uuid.UUID) (RenewalOutcome, error)
}

// Event is an analytics/messaging notification emitted by the core.
type Event struct {
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload"`
}

// Event types emitted for collaborators.
const (
	EventSubscriptionBilled = "subscription_billed"
	EventCustomerUpdated    = "customer_updated"
	EventTransactionUpdated = "transaction_updated"
)

// EventEmitter publishes events best-effort: failures are logged by the
// caller and never fail the originating payment operation.
type EventEmitter interface {
	Emit(ctx context.Context, event Event) error
}

// ProviderStatus is one merchant/provider readiness row for diagnostics.
type ProviderStatus struct {
	Provider   domain.Provider `json:"provider"`
	Active     bool            `json:"active"`
	AccountID  string          `json:"account_id,omitempty"`
	Configured bool            `json:"configured"` // adapter credentials present
	Issues     []string        `json:"issues,omitempty"`
}

// DiagnosticsService is the read-only admin surface.
type DiagnosticsService interface {
	ProviderStatus(ctx context.Context, merchantID uuid.UUID) ([]ProviderStatus, error)
	TransactionStats(ctx context.Context, merchantID uuid.UUID) (*TransactionStats, error)
}

// TokenClaims holds the parsed claims of an admin-surface token.
type TokenClaims struct {
	Subject    string
	MerchantID uuid.UUID
}

// TokenService validates tokens minted by the external auth collaborator.
type TokenService interface {
	Validate(tokenString string) (*TokenClaims, error)
}
