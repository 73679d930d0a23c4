package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Stripe adapter. Card charges settle synchronously; disputes and refunds
// arrive via webhook.
type Stripe struct {
	client        *apiClient
	webhookSecret string
}

// NewStripe creates the STRIPE adapter.
func NewStripe(httpClient HTTPClient, baseURL, apiKey, webhookSecret string, timeout time.Duration, log zerolog.Logger) *Stripe {
	return &Stripe{
		client:        newAPIClient(httpClient, baseURL, apiKey, timeout, log.With().Str("provider", "STRIPE").Logger()),
		webhookSecret: webhookSecret,
	}
}

func (s *Stripe) Name() domain.Provider { return domain.ProviderStripe }
func (s *Stripe) Async() bool           { return false }

type stripeCustomerResponse struct {
	ID string `json:"id"`
}

func (s *Stripe) CreateCustomer(ctx context.Context, data ports.CustomerData) (string, error) {
	var resp stripeCustomerResponse
	err := s.client.doJSON(ctx, http.MethodPost, "/v1/customers", map[string]string{
		"email": data.Email,
		"name":  data.Name,
		"phone": data.Phone,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("stripe create customer: %w", err)
	}
	return resp.ID, nil
}

type stripeIntentResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"` // succeeded, requires_payment_method, processing
	DeclineCode string `json:"decline_code,omitempty"`
	// The expanded payment_method object, present when the card was
	// attached to the customer for off-session reuse.
	PaymentMethod *struct {
		ID   string `json:"id"`
		Card struct {
			Brand       string `json:"brand"`
			Last4       string `json:"last4"`
			ExpMonth    int    `json:"exp_month"`
			ExpYear     int    `json:"exp_year"`
			Fingerprint string `json:"fingerprint"`
		} `json:"card"`
	} `json:"payment_method,omitempty"`
}

func (s *Stripe) CreateCharge(ctx context.Context, req ports.ChargeRequest) (*ports.ChargeResult, error) {
	var resp stripeIntentResponse
	err := s.client.doJSON(ctx, http.MethodPost, "/v1/payment_intents", map[string]any{
		"amount":         req.AmountCents,
		"currency":       req.Currency,
		"customer":       req.ProviderCustomerID,
		"payment_method": req.PaymentMethodToken,
		"confirm":        true,
		"description":    req.Description,
		"metadata":       map[string]string{"order_id": req.OrderID},
		// Retried submissions of the same order replay the original intent.
		"idempotency_key": req.OrderID,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("stripe create charge: %w", err)
	}
	return stripeResult(&resp), nil
}

func (s *Stripe) GetCharge(ctx context.Context, orderID string) (*ports.ChargeResult, error) {
	var resp stripeIntentResponse
	err := s.client.doJSON(ctx, http.MethodGet, "/v1/payment_intents/search?metadata[order_id]="+orderID, nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("stripe get charge: %w", err)
	}
	return stripeResult(&resp), nil
}

func stripeResult(resp *stripeIntentResponse) *ports.ChargeResult {
	result := &ports.ChargeResult{
		ProviderChargeID: resp.ID,
		RawStatus:        resp.Status,
		FailureReason:    resp.DeclineCode,
	}
	switch resp.Status {
	case "succeeded":
		result.Status = ports.ChargeSucceeded
	case "requires_payment_method", "canceled":
		result.Status = ports.ChargeFailed
	default:
		result.Status = ports.ChargePending
	}
	if pm := resp.PaymentMethod; pm != nil && pm.ID != "" {
		result.Card = &ports.VaultableCard{
			Token:       pm.ID,
			Brand:       pm.Card.Brand,
			Last4:       pm.Card.Last4,
			ExpMonth:    pm.Card.ExpMonth,
			ExpYear:     pm.Card.ExpYear,
			Fingerprint: pm.Card.Fingerprint,
		}
	}
	return result
}

// VerifySignature checks the Stripe-Signature HMAC over the raw payload.
func (s *Stripe) VerifySignature(payload []byte, signature string) bool {
	return verifyHMAC(payload, signature, s.webhookSecret)
}

type stripeWebhookPayload struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID          string `json:"id"`
			Status      string `json:"status"`
			Amount      int64  `json:"amount"`
			Currency    string `json:"currency"`
			DeclineCode string `json:"decline_code,omitempty"`
			Metadata    struct {
				OrderID        string `json:"order_id"`
				SubscriptionID string `json:"subscription_id,omitempty"`
			} `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// ParseWebhook normalizes a Stripe event envelope.
func (s *Stripe) ParseWebhook(payload []byte) (*domain.ProviderEvent, error) {
	var p stripeWebhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("parse stripe webhook: %w", err)
	}
	if p.ID == "" || p.Data.Object.Metadata.OrderID == "" {
		return nil, fmt.Errorf("stripe webhook missing event id or order_id metadata")
	}

	event := &domain.ProviderEvent{
		EventID:      p.ID,
		Type:         p.Type,
		OrderID:      p.Data.Object.Metadata.OrderID,
		Status:       p.Data.Object.Status,
		MappedStatus: stripeStatus(p.Type, p.Data.Object.Status),
		AmountCents:  p.Data.Object.Amount,
		Currency:     p.Data.Object.Currency,
	}
	if sid := p.Data.Object.Metadata.SubscriptionID; sid != "" {
		id, err := uuid.Parse(sid)
		if err != nil {
			return nil, fmt.Errorf("stripe webhook subscription_id: %w", err)
		}
		event.SubscriptionID = &id
	}
	return event, nil
}

func stripeStatus(eventType, status string) domain.TransactionStatus {
	switch eventType {
	case "charge.refunded":
		return domain.TransactionStatusRefunded
	case "charge.dispute.created":
		return domain.TransactionStatusChargeback
	}
	switch status {
	case "succeeded":
		return domain.TransactionStatusPaid
	case "requires_payment_method", "canceled":
		return domain.TransactionStatusFailed
	case "processing":
		return domain.TransactionStatusProcessing
	}
	return ""
}
