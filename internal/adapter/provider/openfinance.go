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

// OpenFinance adapter for account-to-account payments. Every payment
// settles asynchronously: the synchronous response only acknowledges the
// payment initiation, and the outcome arrives via webhook.
type OpenFinance struct {
	client        *apiClient
	webhookSecret string
}

// NewOpenFinance creates the OPENFINANCE adapter.
func NewOpenFinance(httpClient HTTPClient, baseURL, apiKey, webhookSecret string, timeout time.Duration, log zerolog.Logger) *OpenFinance {
	return &OpenFinance{
		client:        newAPIClient(httpClient, baseURL, apiKey, timeout, log.With().Str("provider", "OPENFINANCE").Logger()),
		webhookSecret: webhookSecret,
	}
}

func (o *OpenFinance) Name() domain.Provider { return domain.ProviderOpenFinance }
func (o *OpenFinance) Async() bool           { return true }

type ofConsentResponse struct {
	ConsentID string `json:"consent_id"`
}

// CreateCustomer registers a payment consent holder.
func (o *OpenFinance) CreateCustomer(ctx context.Context, data ports.CustomerData) (string, error) {
	var resp ofConsentResponse
	err := o.client.doJSON(ctx, http.MethodPost, "/payments/v1/consent-holders", map[string]string{
		"email":    data.Email,
		"name":     data.Name,
		"document": data.Document,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("openfinance create consent holder: %w", err)
	}
	return resp.ConsentID, nil
}

type ofPaymentResponse struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"` // RCVD, ACSC, RJCT
	Reason    string `json:"rejection_reason,omitempty"`
}

// CreateCharge initiates an account-to-account payment. The initiation is
// always acknowledged as pending.
func (o *OpenFinance) CreateCharge(ctx context.Context, req ports.ChargeRequest) (*ports.ChargeResult, error) {
	var resp ofPaymentResponse
	err := o.client.doJSON(ctx, http.MethodPost, "/payments/v1/pix/payments", map[string]any{
		"end_to_end_id": req.OrderID,
		"consent_id":    req.ProviderCustomerID,
		"amount_cents":  req.AmountCents,
		"currency":      req.Currency,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("openfinance initiate payment: %w", err)
	}
	return ofResult(&resp), nil
}

func (o *OpenFinance) GetCharge(ctx context.Context, orderID string) (*ports.ChargeResult, error) {
	var resp ofPaymentResponse
	if err := o.client.doJSON(ctx, http.MethodGet, "/payments/v1/pix/payments/"+orderID, nil, &resp); err != nil {
		return nil, fmt.Errorf("openfinance get payment: %w", err)
	}
	return ofResult(&resp), nil
}

func ofResult(resp *ofPaymentResponse) *ports.ChargeResult {
	result := &ports.ChargeResult{
		ProviderChargeID: resp.PaymentID,
		RawStatus:        resp.Status,
		FailureReason:    resp.Reason,
	}
	switch resp.Status {
	case "ACSC": // settled
		result.Status = ports.ChargeSucceeded
	case "RJCT":
		result.Status = ports.ChargeFailed
	default:
		result.Status = ports.ChargePending
	}
	return result
}

// VerifySignature checks the directory-issued HMAC.
func (o *OpenFinance) VerifySignature(payload []byte, signature string) bool {
	return verifyHMAC(payload, signature, o.webhookSecret)
}

type ofWebhookPayload struct {
	EventID     string `json:"event_id"`
	EventType   string `json:"event_type"`
	EndToEndID  string `json:"end_to_end_id"`
	Status      string `json:"status"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Reference   string `json:"reference,omitempty"` // subscription id when recurring
}

// ParseWebhook normalizes an Open Finance payment-status callback.
func (o *OpenFinance) ParseWebhook(payload []byte) (*domain.ProviderEvent, error) {
	var p ofWebhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("parse openfinance webhook: %w", err)
	}
	if p.EventID == "" || p.EndToEndID == "" {
		return nil, fmt.Errorf("openfinance webhook missing event_id or end_to_end_id")
	}

	event := &domain.ProviderEvent{
		EventID:      p.EventID,
		Type:         p.EventType,
		OrderID:      p.EndToEndID,
		Status:       p.Status,
		MappedStatus: ofStatus(p.Status),
		AmountCents:  p.AmountCents,
		Currency:     p.Currency,
	}
	if p.Reference != "" {
		id, err := uuid.Parse(p.Reference)
		if err != nil {
			return nil, fmt.Errorf("openfinance webhook reference: %w", err)
		}
		event.SubscriptionID = &id
	}
	return event, nil
}

func ofStatus(s string) domain.TransactionStatus {
	switch s {
	case "ACSC":
		return domain.TransactionStatusPaid
	case "RJCT":
		return domain.TransactionStatusFailed
	case "RCVD", "PDNG":
		return domain.TransactionStatusProcessing
	}
	return ""
}
