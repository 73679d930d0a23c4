package domain

import (
	"time"

	"github.com/google/uuid"
)

// Error classifications recorded on webhook events that could not be
// processed.
const (
	WebhookErrorMalformed = "malformed" // unparseable or missing event id; never retried
	WebhookErrorHandler   = "handler"   // handler failure; retried with backoff
)

// WebhookEvent is a received provider callback and its processing outcome.
// Deduplicated by (provider, provider_event_id); the raw payload is
// persisted before any side effect so no event is lost on a crash.
type WebhookEvent struct {
	ID               uuid.UUID  `json:"id"`
	Provider         Provider   `json:"provider"`
	ProviderEventID  string     `json:"provider_event_id"`
	Type             string     `json:"type"`
	Payload          []byte     `json:"payload"`
	Processed        bool       `json:"processed"`
	ErrorClass       *string    `json:"error_class,omitempty"`
	LastError        *string    `json:"last_error,omitempty"`
	RetryCount       int        `json:"retry_count"`
	NextRetryAt      *time.Time `json:"next_retry_at,omitempty"`
	DeadLetter       bool       `json:"dead_letter"`
	DeadLetterReason *string    `json:"dead_letter_reason,omitempty"`
	ReceivedAt       time.Time  `json:"received_at"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Exhausted reports whether the event has used up its retry budget.
func (e *WebhookEvent) Exhausted(maxRetries int) bool {
	return e.RetryCount >= maxRetries
}

// ProviderEvent is the normalized view of a provider callback after
// parsing, independent of each provider's payload shape.
type ProviderEvent struct {
	EventID        string
	Type           string
	OrderID        string
	Status         string            // provider-native status
	MappedStatus   TransactionStatus // normalized status, empty when unmappable
	SubscriptionID *uuid.UUID
	AmountCents    int64
	Currency       string
}
