package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"
	"payment-orchestrator/internal/core/ports/mocks"
	"payment-orchestrator/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type webhookHandlerDeps struct {
	router    *gin.Engine
	ingestSvc *mocks.MockWebhookIngestService
	registry  *mocks.MockProviderRegistry
	adapter   *mocks.MockProviderAdapter
	ctrl      *gomock.Controller
}

func setupWebhookHandler(t *testing.T) *webhookHandlerDeps {
	gin.SetMode(gin.TestMode)
	ctrl := gomock.NewController(t)
	d := &webhookHandlerDeps{
		ingestSvc: mocks.NewMockWebhookIngestService(ctrl),
		registry:  mocks.NewMockProviderRegistry(ctrl),
		adapter:   mocks.NewMockProviderAdapter(ctrl),
		ctrl:      ctrl,
	}
	h := NewWebhookHandler(d.ingestSvc, d.registry, zerolog.Nop())
	d.router = gin.New()
	d.router.POST("/webhooks/:provider", h.Receive)
	return d
}

func postWebhook(router *gin.Engine, provider, signature string, payload []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/"+provider, bytes.NewReader(payload))
	if signature != "" {
		req.Header.Set("X-Signature", signature)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhookHandler_Receive_Acknowledged(t *testing.T) {
	d := setupWebhookHandler(t)
	defer d.ctrl.Finish()

	payload := []byte(`{"event_id":"evt_1","order_id":"o","status":"approved"}`)

	d.registry.EXPECT().Adapter(domain.ProviderKRXPay).Return(d.adapter, nil)
	d.adapter.EXPECT().VerifySignature(payload, "sig").Return(true)
	d.ingestSvc.EXPECT().Ingest(gomock.Any(), domain.ProviderKRXPay, payload).
		Return(&ports.IngestAck{EventID: "evt_1"}, nil)

	w := postWebhook(d.router, "KRXPAY", "sig", payload)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data ports.IngestAck `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "evt_1", resp.Data.EventID)
	assert.False(t, resp.Data.Duplicate)
}

func TestWebhookHandler_Receive_DuplicateStillAcknowledged(t *testing.T) {
	d := setupWebhookHandler(t)
	defer d.ctrl.Finish()

	payload := []byte(`{"event_id":"evt_1"}`)

	d.registry.EXPECT().Adapter(domain.ProviderStripe).Return(d.adapter, nil)
	d.adapter.EXPECT().VerifySignature(payload, "sig").Return(true)
	d.ingestSvc.EXPECT().Ingest(gomock.Any(), domain.ProviderStripe, payload).
		Return(&ports.IngestAck{EventID: "evt_1", Duplicate: true}, nil)

	w := postWebhook(d.router, "STRIPE", "sig", payload)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhookHandler_Receive_UnknownProvider(t *testing.T) {
	d := setupWebhookHandler(t)
	defer d.ctrl.Finish()

	w := postWebhook(d.router, "PAGSEGURO", "sig", []byte(`{}`))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhookHandler_Receive_BadSignature(t *testing.T) {
	d := setupWebhookHandler(t)
	defer d.ctrl.Finish()

	payload := []byte(`{"event_id":"evt_1"}`)

	d.registry.EXPECT().Adapter(domain.ProviderKRXPay).Return(d.adapter, nil)
	d.adapter.EXPECT().VerifySignature(payload, "forged").Return(false)

	w := postWebhook(d.router, "KRXPAY", "forged", payload)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var resp struct {
		ErrorCode string `json:"error_code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "HOOK_002", resp.ErrorCode)
}

func TestWebhookHandler_Receive_ProviderNotConfigured(t *testing.T) {
	d := setupWebhookHandler(t)
	defer d.ctrl.Finish()

	d.registry.EXPECT().Adapter(domain.ProviderAppmax).
		Return(nil, apperror.ErrProviderNotConfigured("APPMAX"))

	w := postWebhook(d.router, "APPMAX", "", []byte(`{}`))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
