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

// Appmax adapter. Appmax does not sign webhooks, so deliveries are
// authenticated only by the event id lookup against our own records.
type Appmax struct {
	client *apiClient
}

// NewAppmax creates the APPMAX adapter.
func NewAppmax(httpClient HTTPClient, baseURL, apiKey string, timeout time.Duration, log zerolog.Logger) *Appmax {
	return &Appmax{
		client: newAPIClient(httpClient, baseURL, apiKey, timeout, log.With().Str("provider", "APPMAX").Logger()),
	}
}

func (a *Appmax) Name() domain.Provider { return domain.ProviderAppmax }
func (a *Appmax) Async() bool           { return false }

type appmaxCustomerResponse struct {
	Data struct {
		ID int64 `json:"id"`
	} `json:"data"`
}

func (a *Appmax) CreateCustomer(ctx context.Context, data ports.CustomerData) (string, error) {
	var resp appmaxCustomerResponse
	err := a.client.doJSON(ctx, http.MethodPost, "/v3/customer", map[string]string{
		"email":     data.Email,
		"fullname":  data.Name,
		"telephone": data.Phone,
		"document":  data.Document,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("appmax create customer: %w", err)
	}
	return fmt.Sprintf("%d", resp.Data.ID), nil
}

type appmaxOrderResponse struct {
	Data struct {
		ID     int64  `json:"id"`
		Status string `json:"status"` // aprovado, recusado, pendente, estornado
		Reason string `json:"reason,omitempty"`
	} `json:"data"`
}

func (a *Appmax) CreateCharge(ctx context.Context, req ports.ChargeRequest) (*ports.ChargeResult, error) {
	var resp appmaxOrderResponse
	err := a.client.doJSON(ctx, http.MethodPost, "/v3/payment/credit-card", map[string]any{
		"external_id": req.OrderID,
		"customer_id": req.ProviderCustomerID,
		"token":       req.PaymentMethodToken,
		"total":       req.AmountCents,
		"currency":    req.Currency,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("appmax create charge: %w", err)
	}
	return appmaxResult(&resp), nil
}

func (a *Appmax) GetCharge(ctx context.Context, orderID string) (*ports.ChargeResult, error) {
	var resp appmaxOrderResponse
	if err := a.client.doJSON(ctx, http.MethodGet, "/v3/order/external/"+orderID, nil, &resp); err != nil {
		return nil, fmt.Errorf("appmax get charge: %w", err)
	}
	return appmaxResult(&resp), nil
}

func appmaxResult(resp *appmaxOrderResponse) *ports.ChargeResult {
	result := &ports.ChargeResult{
		ProviderChargeID: fmt.Sprintf("%d", resp.Data.ID),
		RawStatus:        resp.Data.Status,
		FailureReason:    resp.Data.Reason,
	}
	switch resp.Data.Status {
	case "aprovado":
		result.Status = ports.ChargeSucceeded
	case "recusado":
		result.Status = ports.ChargeFailed
	default:
		result.Status = ports.ChargePending
	}
	return result
}

// VerifySignature always passes: Appmax deliveries carry no signature.
func (a *Appmax) VerifySignature(payload []byte, signature string) bool {
	return true
}

type appmaxWebhookPayload struct {
	ID    string `json:"id"`
	Event string `json:"event"`
	Data  struct {
		ExternalID     string `json:"external_id"`
		Status         string `json:"status"`
		Total          int64  `json:"total"`
		Currency       string `json:"currency"`
		SubscriptionID string `json:"subscription_id,omitempty"`
	} `json:"data"`
}

// ParseWebhook normalizes an Appmax callback.
func (a *Appmax) ParseWebhook(payload []byte) (*domain.ProviderEvent, error) {
	var p appmaxWebhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("parse appmax webhook: %w", err)
	}
	if p.ID == "" || p.Data.ExternalID == "" {
		return nil, fmt.Errorf("appmax webhook missing id or external_id")
	}

	event := &domain.ProviderEvent{
		EventID:      p.ID,
		Type:         p.Event,
		OrderID:      p.Data.ExternalID,
		Status:       p.Data.Status,
		MappedStatus: appmaxStatus(p.Data.Status),
		AmountCents:  p.Data.Total,
		Currency:     p.Data.Currency,
	}
	if sid := p.Data.SubscriptionID; sid != "" {
		id, err := uuid.Parse(sid)
		if err != nil {
			return nil, fmt.Errorf("appmax webhook subscription_id: %w", err)
		}
		event.SubscriptionID = &id
	}
	return event, nil
}

func appmaxStatus(s string) domain.TransactionStatus {
	switch s {
	case "aprovado":
		return domain.TransactionStatusPaid
	case "recusado":
		return domain.TransactionStatusFailed
	case "estornado":
		return domain.TransactionStatusRefunded
	case "chargeback":
		return domain.TransactionStatusChargeback
	case "pendente":
		return domain.TransactionStatusPending
	}
	return ""
}
