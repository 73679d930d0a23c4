package service

import (
	"context"
	"fmt"

	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"
	"payment-orchestrator/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// configChecker reports whether adapter credentials exist for a provider.
type configChecker interface {
	Configured(p domain.Provider) bool
}

// DiagnosticsServiceImpl implements ports.DiagnosticsService: a read-only
// admin surface over provider readiness and transaction counters.
type DiagnosticsServiceImpl struct {
	merchantRepo ports.MerchantRepository
	txRepo       ports.TransactionRepository
	configured   configChecker
	log          zerolog.Logger
}

// NewDiagnosticsService creates a new DiagnosticsServiceImpl.
func NewDiagnosticsService(merchantRepo ports.MerchantRepository, txRepo ports.TransactionRepository, configured configChecker, log zerolog.Logger) *DiagnosticsServiceImpl {
	return &DiagnosticsServiceImpl{
		merchantRepo: merchantRepo,
		txRepo:       txRepo,
		configured:   configured,
		log:          log,
	}
}

// ProviderStatus reports, per provider, whether the merchant could route
// a charge there and why not.
func (s *DiagnosticsServiceImpl) ProviderStatus(ctx context.Context, merchantID uuid.UUID) ([]ports.ProviderStatus, error) {
	merchant, err := s.merchantRepo.GetByID(ctx, merchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load merchant: %w", err))
	}
	if merchant == nil {
		return nil, apperror.ErrNotFound("merchant")
	}

	integrations, err := s.merchantRepo.ListIntegrations(ctx, merchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list integrations: %w", err))
	}
	byProvider := make(map[domain.Provider]domain.MerchantIntegration)
	for _, it := range integrations {
		if it.Active {
			if _, seen := byProvider[it.Provider]; !seen {
				byProvider[it.Provider] = it
			}
		}
	}

	out := make([]ports.ProviderStatus, 0, len(domain.AllProviders))
	for _, p := range domain.AllProviders {
		status := ports.ProviderStatus{
			Provider:   p,
			Configured: s.configured.Configured(p),
		}
		if it, ok := byProvider[p]; ok {
			status.Active = true
			status.AccountID = it.AccountID
		} else {
			status.Issues = append(status.Issues, "no active merchant integration")
		}
		if !status.Configured {
			status.Issues = append(status.Issues, "provider adapter not configured")
		}
		out = append(out, status)
	}
	return out, nil
}

// TransactionStats returns aggregated transaction counters.
func (s *DiagnosticsServiceImpl) TransactionStats(ctx context.Context, merchantID uuid.UUID) (*ports.TransactionStats, error) {
	stats, err := s.txRepo.GetStats(ctx, merchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load transaction stats: %w", err))
	}
	return stats, nil
}
