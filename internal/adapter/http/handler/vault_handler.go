package handler

import (
	"payment-orchestrator/internal/adapter/http/dto"
	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"
	"payment-orchestrator/pkg/apperror"
	"payment-orchestrator/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// VaultHandler handles payment method vault endpoints.
type VaultHandler struct {
	vaultSvc ports.VaultService
}

// NewVaultHandler creates a new VaultHandler.
func NewVaultHandler(vaultSvc ports.VaultService) *VaultHandler {
	return &VaultHandler{vaultSvc: vaultSvc}
}

// SaveCard handles POST /api/v1/vault/cards.
func (h *VaultHandler) SaveCard(c *gin.Context) {
	var req dto.SaveCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	method, err := h.vaultSvc.SaveCard(c.Request.Context(), ports.SaveCardRequest{
		CustomerID:          uuid.MustParse(req.CustomerID),
		Provider:            domain.Provider(req.Provider),
		AccountID:           req.AccountID,
		Token:               req.Token,
		Brand:               req.Brand,
		Last4:               req.Last4,
		ExpMonth:            req.ExpMonth,
		ExpYear:             req.ExpYear,
		ProviderFingerprint: req.ProviderFingerprint,
		SetAsDefault:        req.SetAsDefault,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toPaymentMethodResponse(method))
}

// ListCards handles GET /api/v1/vault/cards/:customer_id.
func (h *VaultHandler) ListCards(c *gin.Context) {
	customerID, err := uuid.Parse(c.Param("customer_id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid customer id"))
		return
	}

	var provider *domain.Provider
	if p := c.Query("provider"); p != "" {
		pv := domain.Provider(p)
		if !pv.Valid() {
			response.Error(c, apperror.Validation("invalid provider"))
			return
		}
		provider = &pv
	}

	methods, err := h.vaultSvc.ListCards(c.Request.Context(), customerID, provider)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.PaymentMethodResponse, 0, len(methods))
	for i := range methods {
		out = append(out, toPaymentMethodResponse(&methods[i]))
	}
	response.OK(c, out)
}

func toPaymentMethodResponse(m *domain.CustomerPaymentMethod) dto.PaymentMethodResponse {
	return dto.PaymentMethodResponse{
		ID:        m.ID.String(),
		Provider:  string(m.Provider),
		Brand:     m.Brand,
		Last4:     m.Last4,
		ExpMonth:  m.ExpMonth,
		ExpYear:   m.ExpYear,
		IsDefault: m.IsDefault,
		Status:    string(m.Status),
	}
}
