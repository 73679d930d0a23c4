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

// VaultServiceImpl implements ports.VaultService. Only provider tokens
// are stored, never PAN data; fingerprints collapse re-tokenizations of
// the same physical card into one vault entry.
type VaultServiceImpl struct {
	pmRepo ports.PaymentMethodRepository
	log    zerolog.Logger
}

// NewVaultService creates a new VaultServiceImpl.
func NewVaultService(pmRepo ports.PaymentMethodRepository, log zerolog.Logger) *VaultServiceImpl {
	return &VaultServiceImpl{pmRepo: pmRepo, log: log}
}

// SaveCard vaults a tokenized card. A fingerprint match reuses the
// existing entry instead of creating a duplicate.
func (s *VaultServiceImpl) SaveCard(ctx context.Context, req ports.SaveCardRequest) (*domain.CustomerPaymentMethod, error) {
	if req.Token == "" {
		return nil, apperror.Validation("payment method token is required")
	}

	fingerprint := req.ProviderFingerprint
	if fingerprint == "" {
		fingerprint = domain.CardFingerprint(req.Brand, req.Last4, req.ExpMonth, req.ExpYear)
	}

	existing, err := s.pmRepo.GetByFingerprint(ctx, req.CustomerID, req.Provider, req.AccountID, fingerprint)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("fingerprint lookup: %w", err))
	}
	if existing != nil {
		if req.SetAsDefault && !existing.IsDefault {
			if err := s.pmRepo.SetDefault(ctx, req.CustomerID, req.Provider, req.AccountID, existing.ID); err != nil {
				return nil, apperror.InternalError(fmt.Errorf("set default: %w", err))
			}
			existing.IsDefault = true
		}
		s.log.Debug().
			Str("customer_id", req.CustomerID.String()).
			Str("method_id", existing.ID.String()).
			Msg("Card fingerprint matched existing vault entry")
		return existing, nil
	}

	method := &domain.CustomerPaymentMethod{
		ID:                      uuid.New(),
		CustomerID:              req.CustomerID,
		Provider:                req.Provider,
		AccountID:               req.AccountID,
		ProviderPaymentMethodID: req.Token,
		Brand:                   req.Brand,
		Last4:                   req.Last4,
		ExpMonth:                req.ExpMonth,
		ExpYear:                 req.ExpYear,
		Fingerprint:             fingerprint,
		Status:                  domain.PaymentMethodStatusActive,
	}

	saved, err := s.pmRepo.Save(ctx, method)
	if err != nil {
		// The provider token exists but was not vaulted; it must not be
		// silently lost, the buyer would have to re-enter the card.
		s.log.Error().Err(err).
			Str("customer_id", req.CustomerID.String()).
			Str("provider", string(req.Provider)).
			Str("fingerprint", fingerprint).
			Msg("Orphaned provider token: vault persistence failed after tokenization")
		return nil, apperror.ErrVaultPersistence(err)
	}

	// First card for this scope becomes the default even when not requested.
	makeDefault := req.SetAsDefault
	if !makeDefault {
		current, err := s.pmRepo.GetDefault(ctx, req.CustomerID, req.Provider, req.AccountID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("default lookup: %w", err))
		}
		makeDefault = current == nil
	}
	if makeDefault {
		if err := s.pmRepo.SetDefault(ctx, req.CustomerID, req.Provider, req.AccountID, saved.ID); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("set default: %w", err))
		}
		saved.IsDefault = true
	}

	return saved, nil
}

// ListCards returns the customer's active vaulted methods.
func (s *VaultServiceImpl) ListCards(ctx context.Context, customerID uuid.UUID, provider *domain.Provider) ([]domain.CustomerPaymentMethod, error) {
	methods, err := s.pmRepo.List(ctx, customerID, provider)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list payment methods: %w", err))
	}
	return methods, nil
}
