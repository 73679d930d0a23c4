package ports

import (
	"context"
	"time"

	"payment-orchestrator/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MerchantRepository defines read operations over merchants and their
// provider integrations.
type MerchantRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error)
	ListIntegrations(ctx context.Context, merchantID uuid.UUID) ([]domain.MerchantIntegration, error)
}

// CustomerRepository defines persistence for the unified identity store.
type CustomerRepository interface {
	// Upsert inserts or merges a customer by (merchant_id, email). Populated
	// fields on the existing row are never overwritten with blanks.
	Upsert(ctx context.Context, c *domain.Customer) (*domain.Customer, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error)
	GetByEmail(ctx context.Context, merchantID uuid.UUID, email string) (*domain.Customer, error)
	// EnsureProviderLink upserts a customer-provider link, never duplicating.
	EnsureProviderLink(ctx context.Context, link *domain.CustomerProvider) (*domain.CustomerProvider, error)
	GetProviderLink(ctx context.Context, customerID uuid.UUID, provider domain.Provider, accountID string) (*domain.CustomerProvider, error)
}

// PaymentMethodRepository defines persistence for the vault.
type PaymentMethodRepository interface {
	// Save upserts by (provider, account_id, provider_payment_method_id).
	Save(ctx context.Context, m *domain.CustomerPaymentMethod) (*domain.CustomerPaymentMethod, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.CustomerPaymentMethod, error)
	GetByFingerprint(ctx context.Context, customerID uuid.UUID, provider domain.Provider, accountID, fingerprint string) (*domain.CustomerPaymentMethod, error)
	// SetDefault flips the default flag to methodID for the (customer,
	// provider, account) scope in a single statement, so there is no window
	// with zero or two defaults.
	SetDefault(ctx context.Context, customerID uuid.UUID, provider domain.Provider, accountID string, methodID uuid.UUID) error
	GetDefault(ctx context.Context, customerID uuid.UUID, provider domain.Provider, accountID string) (*domain.CustomerPaymentMethod, error)
	// List returns ACTIVE methods, optionally filtered by provider.
	List(ctx context.Context, customerID uuid.UUID, provider *domain.Provider) ([]domain.CustomerPaymentMethod, error)
}

// SubscriptionRepository defines persistence for recurring agreements.
type SubscriptionRepository interface {
	Create(ctx context.Context, s *domain.CustomerSubscription) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.CustomerSubscription, error)
	// ListDueIDs returns subscriptions due for renewal for one (provider,
	// billing model) family, oldest period end first.
	ListDueIDs(ctx context.Context, provider domain.Provider, model domain.BillingModel, now time.Time, limit int) ([]uuid.UUID, error)
	// AdvancePeriod moves the subscription into the next billing period.
	// Guarded by expectedEnd (compare-and-set) so a cycle advances at most
	// once; returns advanced=false when another writer already moved it.
	AdvancePeriod(ctx context.Context, tx pgx.Tx, id uuid.UUID, start, end time.Time, expectedEnd time.Time) (advanced bool, err error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SubscriptionStatus, reason *string) error
}

// TransactionRepository defines persistence for payment transactions.
// All writes go through conditional upserts keyed by
// (provider, provider_order_id).
type TransactionRepository interface {
	// Upsert inserts the transaction or updates mutable fields of the
	// existing row. A terminal status on the stored row is never regressed
	// to a non-terminal one (last-terminal-wins).
	Upsert(ctx context.Context, t *domain.PaymentTransaction) (*domain.PaymentTransaction, error)
	// UpsertTx is Upsert inside a caller-managed database transaction.
	UpsertTx(ctx context.Context, tx pgx.Tx, t *domain.PaymentTransaction) (*domain.PaymentTransaction, error)
	GetByProviderOrderID(ctx context.Context, provider domain.Provider, orderID string) (*domain.PaymentTransaction, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentTransaction, error)
	GetStats(ctx context.Context, merchantID uuid.UUID) (*TransactionStats, error)
}

// TransactionStats holds aggregated counters for the admin diagnostics
// surface.
type TransactionStats struct {
	Total      int64
	Paid       int64
	Failed     int64
	Pending    int64
	PaidCents  int64
	ByProvider map[domain.Provider]int64
}

// RouteQuery carries the inputs of one provider-selection call.
type RouteQuery struct {
	MerchantID uuid.UUID
	OfferID    *uuid.UUID
	ProductID  *uuid.UUID
	Country    *string
	Method     *domain.PaymentMethodType
}

// RoutingRepository loads routing configuration.
type RoutingRepository interface {
	// Snapshot loads offer preference, price records, active rules and
	// merchant integrations in one consistent read.
	Snapshot(ctx context.Context, q RouteQuery) (*domain.RoutingSnapshot, error)
}

// WebhookEventRepository defines persistence for received provider events.
type WebhookEventRepository interface {
	// Insert persists the event if (provider, provider_event_id) is new.
	// On conflict it returns created=false with the existing row.
	Insert(ctx context.Context, e *domain.WebhookEvent) (created bool, existing *domain.WebhookEvent, err error)
	GetByProviderEventID(ctx context.Context, provider domain.Provider, providerEventID string) (*domain.WebhookEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, errClass, lastError string, retryCount int, nextRetryAt time.Time) error
	MarkDeadLetter(ctx context.Context, id uuid.UUID, errClass, reason string) error
	// ListRetryable returns unprocessed, non-dead-lettered events whose
	// next_retry_at has passed.
	ListRetryable(ctx context.Context, now time.Time, limit int) ([]domain.WebhookEvent, error)
}

// DedupStore is the fast-path (Redis) check for already-seen webhook
// events. A miss is never authoritative; the DB unique index is.
type DedupStore interface {
	// CheckAndSet atomically records the event id, returning true if it was
	// not seen before.
	CheckAndSet(ctx context.Context, provider domain.Provider, eventID string, ttl time.Duration) (bool, error)
}

// IdempotencyCache caches checkout responses by idempotency key.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // nil, nil on miss
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
