package handler

import (
	"io"

	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"
	"payment-orchestrator/pkg/apperror"
	"payment-orchestrator/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// WebhookHandler receives provider callbacks.
type WebhookHandler struct {
	ingestSvc ports.WebhookIngestService
	registry  ports.ProviderRegistry
	log       zerolog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(ingestSvc ports.WebhookIngestService, registry ports.ProviderRegistry, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{ingestSvc: ingestSvc, registry: registry, log: log}
}

// Receive handles POST /webhooks/:provider. Every readable delivery is
// answered 200: providers re-deliver on anything else, and a payload we
// cannot process now is either quarantined or retried from storage.
func (h *WebhookHandler) Receive(c *gin.Context) {
	provider := domain.Provider(c.Param("provider"))
	if !provider.Valid() {
		response.Error(c, apperror.ErrNotFound("provider"))
		return
	}

	adapter, err := h.registry.Adapter(provider)
	if err != nil {
		response.Error(c, err)
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, apperror.Validation("cannot read request body"))
		return
	}

	signature := c.GetHeader("X-Signature")
	if !adapter.VerifySignature(payload, signature) {
		// A rejected signature is the one case worth a non-200: the sender
		// is not the provider.
		response.Error(c, apperror.ErrInvalidWebhookSignature())
		return
	}

	ack, err := h.ingestSvc.Ingest(c.Request.Context(), provider, payload)
	if err != nil {
		h.log.Error().Err(err).Str("provider", string(provider)).Msg("webhook ingest failed")
		response.Error(c, err)
		return
	}

	response.OK(c, ack)
}
