package handler

import (
	"payment-orchestrator/internal/adapter/http/dto"
	"payment-orchestrator/internal/adapter/http/middleware"
	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"
	"payment-orchestrator/pkg/apperror"
	"payment-orchestrator/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CheckoutHandler handles checkout endpoints.
type CheckoutHandler struct {
	checkoutSvc ports.CheckoutService
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(checkoutSvc ports.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkoutSvc: checkoutSvc}
}

// Create handles POST /api/v1/checkouts.
func (h *CheckoutHandler) Create(c *gin.Context) {
	merchantID, ok := c.Get(middleware.CtxMerchantID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CheckoutCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	svcReq := ports.CheckoutRequest{
		MerchantID:  merchantID.(uuid.UUID),
		Reference:   req.Reference,
		Email:       req.Email,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		Country:     req.Country,
		Token:       req.Token,
		Profile: ports.CustomerProfile{
			Name:     req.Name,
			Phone:    req.Phone,
			Document: req.Document,
		},
	}
	if req.Method != nil {
		m := domain.PaymentMethodType(*req.Method)
		svcReq.Method = &m
	}
	// uuid format already validated by the binding
	if req.OfferID != nil {
		id := uuid.MustParse(*req.OfferID)
		svcReq.OfferID = &id
	}
	if req.ProductID != nil {
		id := uuid.MustParse(*req.ProductID)
		svcReq.ProductID = &id
	}
	if req.VaultPaymentMethodID != nil {
		id := uuid.MustParse(*req.VaultPaymentMethodID)
		svcReq.VaultPaymentMethodID = &id
	}

	result, err := h.checkoutSvc.Create(c.Request.Context(), svcReq)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toCheckoutResponse(result))
}

// Finalize handles POST /api/v1/checkouts/:reference/finalize, reconciling
// a checkout whose outcome was lost.
func (h *CheckoutHandler) Finalize(c *gin.Context) {
	merchantID, ok := c.Get(middleware.CtxMerchantID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	reference := c.Param("reference")
	if reference == "" {
		response.Error(c, apperror.Validation("reference is required"))
		return
	}

	txn, err := h.checkoutSvc.Finalize(c.Request.Context(), merchantID.(uuid.UUID), reference)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toTransactionResponse(txn))
}

func toCheckoutResponse(result *ports.CheckoutResult) dto.CheckoutResponse {
	return dto.CheckoutResponse{
		Transaction:       toTransactionResponse(result.Transaction),
		ProviderReference: result.ProviderReference,
	}
}

// toTransactionResponse converts domain.PaymentTransaction to DTO.
func toTransactionResponse(tx *domain.PaymentTransaction) dto.TransactionResponse {
	resp := dto.TransactionResponse{
		ID:              tx.ID.String(),
		Provider:        string(tx.Provider),
		ProviderOrderID: tx.ProviderOrderID,
		AmountCents:     tx.AmountCents,
		Currency:        tx.Currency,
		Status:          string(tx.Status),
		FailureReason:   tx.FailureReason,
		CreatedAt:       tx.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if tx.ProcessedAt != nil {
		s := tx.ProcessedAt.Format("2006-01-02T15:04:05Z07:00")
		resp.ProcessedAt = &s
	}
	return resp
}
