package handler

import (
	"payment-orchestrator/internal/adapter/http/dto"
	"payment-orchestrator/internal/adapter/http/middleware"
	"payment-orchestrator/internal/core/ports"
	"payment-orchestrator/pkg/apperror"
	"payment-orchestrator/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminHandler serves the read-only diagnostics surface.
type AdminHandler struct {
	diagSvc ports.DiagnosticsService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(diagSvc ports.DiagnosticsService) *AdminHandler {
	return &AdminHandler{diagSvc: diagSvc}
}

// ProviderStatus handles GET /api/v1/admin/providers.
func (h *AdminHandler) ProviderStatus(c *gin.Context) {
	merchantID, ok := c.Get(middleware.CtxMerchantID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	statuses, err := h.diagSvc.ProviderStatus(c.Request.Context(), merchantID.(uuid.UUID))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, statuses)
}

// Stats handles GET /api/v1/admin/stats.
func (h *AdminHandler) Stats(c *gin.Context) {
	merchantID, ok := c.Get(middleware.CtxMerchantID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	stats, err := h.diagSvc.TransactionStats(c.Request.Context(), merchantID.(uuid.UUID))
	if err != nil {
		response.Error(c, err)
		return
	}

	out := dto.StatsResponse{
		Total:      stats.Total,
		Paid:       stats.Paid,
		Failed:     stats.Failed,
		Pending:    stats.Pending,
		PaidCents:  stats.PaidCents,
		ByProvider: make(map[string]int64, len(stats.ByProvider)),
	}
	for p, n := range stats.ByProvider {
		out.ByProvider[string(p)] = n
	}
	response.OK(c, out)
}

// HealthCheck returns deep health of PostgreSQL and Redis.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		type depStatus struct {
			Status string `json:"status"`
			Error  string `json:"error,omitempty"`
		}

		deps := make(map[string]depStatus)
		allHealthy := true

		for _, checker := range checkers {
			if err := checker.Ping(c.Request.Context()); err != nil {
				deps[checker.Name()] = depStatus{Status: "unhealthy", Error: err.Error()}
				allHealthy = false
			} else {
				deps[checker.Name()] = depStatus{Status: "healthy"}
			}
		}

		status := "healthy"
		httpCode := 200
		if !allHealthy {
			status = "degraded"
			httpCode = 503
		}

		c.JSON(httpCode, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	}
}
