package service

import (
	"context"
	"fmt"
	"time"

	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"
	"payment-orchestrator/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// IdentityServiceImpl implements ports.IdentityService over the unified
// customer store.
type IdentityServiceImpl struct {
	customerRepo ports.CustomerRepository
	emitter      ports.EventEmitter
	log          zerolog.Logger
}

// NewIdentityService creates a new IdentityServiceImpl.
func NewIdentityService(customerRepo ports.CustomerRepository, emitter ports.EventEmitter, log zerolog.Logger) *IdentityServiceImpl {
	return &IdentityServiceImpl{
		customerRepo: customerRepo,
		emitter:      emitter,
		log:          log,
	}
}

// ResolveOrCreateCustomer finds or creates the unified customer for
// (merchant, email). Profile fields merge into the existing row without
// blanks overwriting populated values; the repository upsert enforces
// that, so concurrent resolutions of the same email converge on one row.
func (s *IdentityServiceImpl) ResolveOrCreateCustomer(ctx context.Context, merchantID uuid.UUID, email string, profile ports.CustomerProfile) (*domain.Customer, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, apperror.Validation("email is required")
	}

	candidate := &domain.Customer{
		ID:         uuid.New(),
		MerchantID: merchantID,
		Email:      email,
		Name:       profile.Name,
	}
	if profile.Phone != "" {
		candidate.Phone = &profile.Phone
	}
	if profile.Document != "" {
		candidate.Document = &profile.Document
	}

	customer, err := s.customerRepo.Upsert(ctx, candidate)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("upsert customer: %w", err))
	}

	if err := s.emitter.Emit(ctx, ports.Event{
		Type:       ports.EventCustomerUpdated,
		OccurredAt: time.Now().UTC(),
		Payload: map[string]any{
			"customer_id": customer.ID.String(),
			"merchant_id": merchantID.String(),
		},
	}); err != nil {
		s.log.Warn().Err(err).Msg("customer_updated event not published")
	}

	return customer, nil
}

// EnsureProviderLink records the customer's identity at one provider
// account, reusing the existing link if present.
func (s *IdentityServiceImpl) EnsureProviderLink(ctx context.Context, customerID uuid.UUID, provider domain.Provider, accountID, providerCustomerID string) (*domain.CustomerProvider, error) {
	link, err := s.customerRepo.EnsureProviderLink(ctx, &domain.CustomerProvider{
		ID:                 uuid.New(),
		CustomerID:         customerID,
		Provider:           provider,
		AccountID:          accountID,
		ProviderCustomerID: providerCustomerID,
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("ensure provider link: %w", err))
	}
	return link, nil
}
