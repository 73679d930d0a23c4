package domain

import (
	"github.com/google/uuid"
)

// PaymentRoutingRule is an admin-configured routing preference. The core
// only reads these; the admin UI owns writes.
type PaymentRoutingRule struct {
	ID         uuid.UUID          `json:"id"`
	MerchantID uuid.UUID          `json:"merchant_id"`
	OfferID    *uuid.UUID         `json:"offer_id,omitempty"`
	ProductID  *uuid.UUID         `json:"product_id,omitempty"`
	Country    *string            `json:"country,omitempty"` // nil = any
	Method     *PaymentMethodType `json:"method,omitempty"`  // nil = any
	Provider   Provider           `json:"provider"`
	Priority   int                `json:"priority"` // lower wins
	IsActive   bool               `json:"is_active"`
}

// Matches reports whether the rule's country/method constraints accept the
// request. A nil constraint is a wildcard.
func (r *PaymentRoutingRule) Matches(country *string, method *PaymentMethodType) bool {
	if r.Country != nil && (country == nil || *r.Country != *country) {
		return false
	}
	if r.Method != nil && (method == nil || *r.Method != *method) {
		return false
	}
	return true
}

// Offer is a sellable configuration of a product. Only the routing-relevant
// fields live in the core.
type Offer struct {
	ID                uuid.UUID `json:"id"`
	MerchantID        uuid.UUID `json:"merchant_id"`
	ProductID         uuid.UUID `json:"product_id"`
	PreferredProvider *Provider `json:"preferred_provider,omitempty"`
}

// OfferPrice is a currency-scoped price record for an offer in a country.
// Position preserves the admin-configured listing order.
type OfferPrice struct {
	ID         uuid.UUID `json:"id"`
	OfferID    uuid.UUID `json:"offer_id"`
	Country    string    `json:"country"`
	Currency   string    `json:"currency"`
	PriceCents int64     `json:"price_cents"`
	Provider   Provider  `json:"provider"`
	Position   int       `json:"position"`
}

// RoutingSnapshot is everything a single provider-selection call needs,
// loaded consistently in one read so no partially-applied rule set can be
// observed.
type RoutingSnapshot struct {
	Offer        *Offer
	Prices       []OfferPrice
	Rules        []PaymentRoutingRule
	Integrations []MerchantIntegration
}
