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

// KRXPay is the platform's default acquirer. Charges settle in the
// synchronous response; webhooks confirm refunds and chargebacks.
type KRXPay struct {
	client        *apiClient
	webhookSecret string
}

// NewKRXPay creates the KRXPAY adapter.
func NewKRXPay(httpClient HTTPClient, baseURL, apiKey, webhookSecret string, timeout time.Duration, log zerolog.Logger) *KRXPay {
	return &KRXPay{
		client:        newAPIClient(httpClient, baseURL, apiKey, timeout, log.With().Str("provider", "KRXPAY").Logger()),
		webhookSecret: webhookSecret,
	}
}

func (k *KRXPay) Name() domain.Provider { return domain.ProviderKRXPay }
func (k *KRXPay) Async() bool           { return false }

type krxCustomerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Document string `json:"document,omitempty"`
}

type krxCustomerResponse struct {
	CustomerID string `json:"customer_id"`
}

// CreateCustomer registers the buyer at KRXPAY and returns its id.
func (k *KRXPay) CreateCustomer(ctx context.Context, data ports.CustomerData) (string, error) {
	var resp krxCustomerResponse
	err := k.client.doJSON(ctx, http.MethodPost, "/v1/customers", krxCustomerRequest{
		Email:    data.Email,
		Name:     data.Name,
		Phone:    data.Phone,
		Document: data.Document,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("krxpay create customer: %w", err)
	}
	return resp.CustomerID, nil
}

type krxChargeRequest struct {
	OrderID     string `json:"order_id"`
	CustomerID  string `json:"customer_id"`
	CardToken   string `json:"card_token"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Description string `json:"description,omitempty"`
}

type krxChargeResponse struct {
	ChargeID      string       `json:"charge_id"`
	Status        string       `json:"status"` // approved, declined, pending
	DeclineReason string       `json:"decline_reason,omitempty"`
	Card          *krxCardInfo `json:"card,omitempty"`
}

// krxCardInfo is present when KRXPAY stored the card for reuse.
type krxCardInfo struct {
	Token       string `json:"token"`
	Brand       string `json:"brand"`
	Last4       string `json:"last4"`
	ExpMonth    int    `json:"exp_month"`
	ExpYear     int    `json:"exp_year"`
	Fingerprint string `json:"fingerprint"`
}

// CreateCharge submits a charge keyed by our order id. KRXPAY treats the
// order id as an idempotency key and replays the original response on a
// duplicate submission.
func (k *KRXPay) CreateCharge(ctx context.Context, req ports.ChargeRequest) (*ports.ChargeResult, error) {
	var resp krxChargeResponse
	err := k.client.doJSON(ctx, http.MethodPost, "/v1/charges", krxChargeRequest{
		OrderID:     req.OrderID,
		CustomerID:  req.ProviderCustomerID,
		CardToken:   req.PaymentMethodToken,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		Description: req.Description,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("krxpay create charge: %w", err)
	}
	return krxResult(&resp), nil
}

// GetCharge queries the current state of a charge by order id.
func (k *KRXPay) GetCharge(ctx context.Context, orderID string) (*ports.ChargeResult, error) {
	var resp krxChargeResponse
	if err := k.client.doJSON(ctx, http.MethodGet, "/v1/charges/"+orderID, nil, &resp); err != nil {
		return nil, fmt.Errorf("krxpay get charge: %w", err)
	}
	return krxResult(&resp), nil
}

func krxResult(resp *krxChargeResponse) *ports.ChargeResult {
	result := &ports.ChargeResult{
		ProviderChargeID: resp.ChargeID,
		RawStatus:        resp.Status,
		FailureReason:    resp.DeclineReason,
	}
	switch resp.Status {
	case "approved":
		result.Status = ports.ChargeSucceeded
	case "declined":
		result.Status = ports.ChargeFailed
	default:
		result.Status = ports.ChargePending
	}
	if c := resp.Card; c != nil && c.Token != "" {
		result.Card = &ports.VaultableCard{
			Token:       c.Token,
			Brand:       c.Brand,
			Last4:       c.Last4,
			ExpMonth:    c.ExpMonth,
			ExpYear:     c.ExpYear,
			Fingerprint: c.Fingerprint,
		}
	}
	return result
}

// VerifySignature checks the X-KRX-Signature HMAC.
func (k *KRXPay) VerifySignature(payload []byte, signature string) bool {
	return verifyHMAC(payload, signature, k.webhookSecret)
}

type krxWebhookPayload struct {
	EventID        string `json:"event_id"`
	Event          string `json:"event"`
	OrderID        string `json:"order_id"`
	Status         string `json:"status"`
	AmountCents    int64  `json:"amount_cents"`
	Currency       string `json:"currency"`
	SubscriptionID string `json:"subscription_id,omitempty"`
}

// ParseWebhook normalizes a KRXPAY callback.
func (k *KRXPay) ParseWebhook(payload []byte) (*domain.ProviderEvent, error) {
	var p krxWebhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("parse krxpay webhook: %w", err)
	}
	if p.EventID == "" || p.OrderID == "" {
		return nil, fmt.Errorf("krxpay webhook missing event_id or order_id")
	}

	event := &domain.ProviderEvent{
		EventID:      p.EventID,
		Type:         p.Event,
		OrderID:      p.OrderID,
		Status:       p.Status,
		MappedStatus: krxStatus(p.Status),
		AmountCents:  p.AmountCents,
		Currency:     p.Currency,
	}
	if p.SubscriptionID != "" {
		id, err := uuid.Parse(p.SubscriptionID)
		if err != nil {
			return nil, fmt.Errorf("krxpay webhook subscription_id: %w", err)
		}
		event.SubscriptionID = &id
	}
	return event, nil
}

func krxStatus(s string) domain.TransactionStatus {
	switch s {
	case "approved":
		return domain.TransactionStatusPaid
	case "declined":
		return domain.TransactionStatusFailed
	case "refunded":
		return domain.TransactionStatusRefunded
	case "chargeback":
		return domain.TransactionStatusChargeback
	case "pending":
		return domain.TransactionStatusPending
	}
	return ""
}
