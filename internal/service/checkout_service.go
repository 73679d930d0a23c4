package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"
	"payment-orchestrator/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const checkoutIdempotencyTTL = 24 * time.Hour

// checkoutOrderID derives the deterministic provider order id for a
// merchant checkout reference. Retried requests with the same reference
// converge on the same transaction row.
func checkoutOrderID(merchantID uuid.UUID, reference string) string {
	return fmt.Sprintf("chk:%s:%s", merchantID, reference)
}

// CheckoutServiceImpl implements ports.CheckoutService: routing, identity
// resolution, vault lookup and provider charge creation for one payment.
type CheckoutServiceImpl struct {
	merchantRepo ports.MerchantRepository
	customerRepo ports.CustomerRepository
	pmRepo       ports.PaymentMethodRepository
	txRepo       ports.TransactionRepository
	routing      ports.RoutingService
	identity     ports.IdentityService
	vault        ports.VaultService
	registry     ports.ProviderRegistry
	idempCache   ports.IdempotencyCache
	emitter      ports.EventEmitter
	log          zerolog.Logger
}

// NewCheckoutService creates a new CheckoutServiceImpl.
func NewCheckoutService(
	merchantRepo ports.MerchantRepository,
	customerRepo ports.CustomerRepository,
	pmRepo ports.PaymentMethodRepository,
	txRepo ports.TransactionRepository,
	routing ports.RoutingService,
	identity ports.IdentityService,
	vault ports.VaultService,
	registry ports.ProviderRegistry,
	idempCache ports.IdempotencyCache,
	emitter ports.EventEmitter,
	log zerolog.Logger,
) *CheckoutServiceImpl {
	return &CheckoutServiceImpl{
		merchantRepo: merchantRepo,
		customerRepo: customerRepo,
		pmRepo:       pmRepo,
		txRepo:       txRepo,
		routing:      routing,
		identity:     identity,
		vault:        vault,
		registry:     registry,
		idempCache:   idempCache,
		emitter:      emitter,
		log:          log,
	}
}

// Create processes one checkout. Safe to retry with the same reference:
// layer 1 is the Redis response cache, layer 2 the conditional upsert
// keyed by the deterministic order id.
func (s *CheckoutServiceImpl) Create(ctx context.Context, req ports.CheckoutRequest) (*ports.CheckoutResult, error) {
	if req.AmountCents <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.Reference == "" {
		return nil, apperror.Validation("reference is required")
	}

	idempKey := fmt.Sprintf("checkout:%s:%s", req.MerchantID, req.Reference)

	// Layer 1: Redis idempotency check
	cached, err := s.idempCache.Get(ctx, idempKey)
	if err != nil {
		s.log.Warn().Err(err).Str("key", idempKey).Msg("redis idempotency check failed, falling through to DB")
	}
	if cached != nil {
		var result ports.CheckoutResult
		if err := json.Unmarshal(cached, &result); err == nil {
			return &result, nil
		}
		s.log.Warn().Str("key", idempKey).Msg("corrupt idempotency cache entry, recomputing")
	}

	merchant, err := s.merchantRepo.GetByID(ctx, req.MerchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load merchant: %w", err))
	}
	if merchant == nil {
		return nil, apperror.ErrNotFound("merchant")
	}
	if !merchant.IsActive() {
		return nil, apperror.ErrNotFound("merchant")
	}

	route, err := s.routing.SelectProvider(ctx, ports.RouteQuery{
		MerchantID: req.MerchantID,
		OfferID:    req.OfferID,
		ProductID:  req.ProductID,
		Country:    req.Country,
		Method:     req.Method,
	})
	if err != nil {
		return nil, err
	}
	if route.ConfigError {
		return nil, apperror.ErrNoActiveProvider()
	}

	adapter, err := s.registry.Adapter(route.Provider)
	if err != nil {
		return nil, err
	}

	orderID := checkoutOrderID(req.MerchantID, req.Reference)

	// Layer 2: an earlier attempt may already hold the transaction. Routing
	// is deterministic, so the retry lands on the same provider.
	existing, err := s.txRepo.GetByProviderOrderID(ctx, route.Provider, orderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
	}
	if existing != nil && existing.Status != domain.TransactionStatusPending {
		return &ports.CheckoutResult{Transaction: existing, ProviderReference: existing.StatusV2}, nil
	}

	customer, err := s.identity.ResolveOrCreateCustomer(ctx, req.MerchantID, req.Email, req.Profile)
	if err != nil {
		return nil, err
	}

	link, err := s.ensureProviderCustomer(ctx, adapter, customer, route)
	if err != nil {
		return nil, err
	}

	token, err := s.resolveToken(ctx, req, customer.ID, route)
	if err != nil {
		return nil, err
	}

	method := domain.MethodCard
	if req.Method != nil {
		method = *req.Method
	}

	// Persist the attempt before contacting the provider, so a crash or a
	// lost response leaves a PENDING row for reconciliation.
	txn := &domain.PaymentTransaction{
		ID:              uuid.New(),
		Provider:        route.Provider,
		ProviderOrderID: orderID,
		MerchantID:      req.MerchantID,
		CustomerID:      customer.ID,
		AmountCents:     req.AmountCents,
		Currency:        req.Currency,
		Method:          method,
		Status:          domain.TransactionStatusPending,
	}
	txn, err = s.txRepo.Upsert(ctx, txn)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("persist pending transaction: %w", err))
	}

	result, chargeErr := adapter.CreateCharge(ctx, ports.ChargeRequest{
		OrderID:            orderID,
		AmountCents:        req.AmountCents,
		Currency:           req.Currency,
		ProviderCustomerID: link.ProviderCustomerID,
		PaymentMethodToken: token,
	})
	if chargeErr != nil {
		return s.handleChargeError(ctx, txn, chargeErr)
	}

	txn = s.applyChargeResult(txn, result)
	txn, err = s.txRepo.Upsert(ctx, txn)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("persist charge result: %w", err))
	}

	out := &ports.CheckoutResult{Transaction: txn, ProviderReference: result.ProviderChargeID}
	s.cacheResult(ctx, idempKey, out)
	s.emitTransactionUpdated(ctx, txn)
	return out, nil
}

// Finalize reconciles a checkout whose outcome was lost, querying the
// provider for the current charge state.
func (s *CheckoutServiceImpl) Finalize(ctx context.Context, merchantID uuid.UUID, reference string) (*domain.PaymentTransaction, error) {
	orderID := checkoutOrderID(merchantID, reference)

	var txn *domain.PaymentTransaction
	for _, p := range domain.AllProviders {
		t, err := s.txRepo.GetByProviderOrderID(ctx, p, orderID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("lookup transaction: %w", err))
		}
		if t != nil {
			txn = t
			break
		}
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("transaction")
	}
	if txn.IsTerminal() {
		return txn, nil
	}

	adapter, err := s.registry.Adapter(txn.Provider)
	if err != nil {
		return nil, err
	}
	result, err := adapter.GetCharge(ctx, orderID)
	if err != nil {
		if errors.Is(err, ports.ErrOutcomeUnknown) {
			return txn, nil
		}
		return nil, apperror.ErrProviderUnavailable(err)
	}

	txn = s.applyChargeResult(txn, result)
	txn, err = s.txRepo.Upsert(ctx, txn)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("persist reconciled transaction: %w", err))
	}
	s.vaultReturnedCard(ctx, txn, result.Card)
	s.emitTransactionUpdated(ctx, txn)
	return txn, nil
}

// vaultReturnedCard stores the reusable instrument a provider attached to
// a charge. The charge outcome is already settled, so a vault failure is
// logged and never surfaced to the caller.
func (s *CheckoutServiceImpl) vaultReturnedCard(ctx context.Context, txn *domain.PaymentTransaction, card *ports.VaultableCard) {
	if card == nil || card.Token == "" {
		return
	}

	accountID, err := s.integrationAccount(ctx, txn.MerchantID, txn.Provider)
	if err != nil {
		s.log.Warn().Err(err).
			Str("customer_id", txn.CustomerID.String()).
			Str("provider", string(txn.Provider)).
			Msg("Returned card not vaulted")
		return
	}

	if _, err := s.vault.SaveCard(ctx, ports.SaveCardRequest{
		CustomerID:          txn.CustomerID,
		Provider:            txn.Provider,
		AccountID:           accountID,
		Token:               card.Token,
		Brand:               card.Brand,
		Last4:               card.Last4,
		ExpMonth:            card.ExpMonth,
		ExpYear:             card.ExpYear,
		ProviderFingerprint: card.Fingerprint,
	}); err != nil {
		s.log.Warn().Err(err).
			Str("customer_id", txn.CustomerID.String()).
			Str("provider", string(txn.Provider)).
			Msg("Returned card not vaulted")
	}
}

// integrationAccount resolves the merchant's active account at a provider.
func (s *CheckoutServiceImpl) integrationAccount(ctx context.Context, merchantID uuid.UUID, provider domain.Provider) (string, error) {
	integrations, err := s.merchantRepo.ListIntegrations(ctx, merchantID)
	if err != nil {
		return "", fmt.Errorf("list integrations: %w", err)
	}
	for _, it := range integrations {
		if it.Provider == provider && it.Active {
			return it.AccountID, nil
		}
	}
	return "", fmt.Errorf("no active %s integration for merchant %s", provider, merchantID)
}

func (s *CheckoutServiceImpl) ensureProviderCustomer(ctx context.Context, adapter ports.ProviderAdapter, customer *domain.Customer, route *ports.RouteDecision) (*domain.CustomerProvider, error) {
	link, err := s.customerRepo.GetProviderLink(ctx, customer.ID, route.Provider, route.AccountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load provider link: %w", err))
	}
	if link != nil {
		return link, nil
	}

	data := ports.CustomerData{Email: customer.Email, Name: customer.Name}
	if customer.Phone != nil {
		data.Phone = *customer.Phone
	}
	if customer.Document != nil {
		data.Document = *customer.Document
	}
	providerCustomerID, err := adapter.CreateCustomer(ctx, data)
	if err != nil {
		return nil, apperror.ErrProviderUnavailable(fmt.Errorf("create provider customer: %w", err))
	}
	return s.identity.EnsureProviderLink(ctx, customer.ID, route.Provider, route.AccountID, providerCustomerID)
}

func (s *CheckoutServiceImpl) resolveToken(ctx context.Context, req ports.CheckoutRequest, customerID uuid.UUID, route *ports.RouteDecision) (string, error) {
	if req.VaultPaymentMethodID != nil {
		method, err := s.pmRepo.GetByID(ctx, *req.VaultPaymentMethodID)
		if err != nil {
			return "", apperror.InternalError(fmt.Errorf("load payment method: %w", err))
		}
		if method == nil || method.CustomerID != customerID {
			return "", apperror.ErrNotFound("payment method")
		}
		if !method.Usable(time.Now().UTC()) {
			return "", apperror.ErrNoPaymentMethod()
		}
		if method.Provider != route.Provider {
			// Tokens are provider-scoped and cannot cross acquirers.
			return "", apperror.ErrNoPaymentMethod()
		}
		return method.ProviderPaymentMethodID, nil
	}
	if req.Token == "" {
		return "", apperror.ErrNoPaymentMethod()
	}
	return req.Token, nil
}

func (s *CheckoutServiceImpl) handleChargeError(ctx context.Context, txn *domain.PaymentTransaction, chargeErr error) (*ports.CheckoutResult, error) {
	if errors.Is(chargeErr, ports.ErrOutcomeUnknown) {
		// The charge may have settled; the PENDING row stays for webhook or
		// Finalize reconciliation. Never retried blindly.
		s.log.Warn().Err(chargeErr).
			Str("order_id", txn.ProviderOrderID).
			Str("provider", string(txn.Provider)).
			Msg("Charge outcome unknown, left pending for reconciliation")
		return &ports.CheckoutResult{Transaction: txn}, nil
	}
	return nil, apperror.ErrProviderUnavailable(chargeErr)
}

func (s *CheckoutServiceImpl) applyChargeResult(txn *domain.PaymentTransaction, result *ports.ChargeResult) *domain.PaymentTransaction {
	txn.StatusV2 = result.RawStatus
	switch result.Status {
	case ports.ChargeSucceeded:
		now := time.Now().UTC()
		txn.Status = domain.TransactionStatusPaid
		txn.ProcessedAt = &now
	case ports.ChargeFailed:
		txn.Status = domain.TransactionStatusFailed
		if result.FailureReason != "" {
			reason := result.FailureReason
			txn.FailureReason = &reason
		}
	default:
		txn.Status = domain.TransactionStatusProcessing
	}
	return txn
}

func (s *CheckoutServiceImpl) cacheResult(ctx context.Context, key string, result *ports.CheckoutResult) {
	payload, err := json.Marshal(result)
	if err != nil {
		s.log.Warn().Err(err).Msg("marshal checkout result for cache")
		return
	}
	if err := s.idempCache.Set(ctx, key, payload, checkoutIdempotencyTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("idempotency cache write failed")
	}
}

func (s *CheckoutServiceImpl) emitTransactionUpdated(ctx context.Context, txn *domain.PaymentTransaction) {
	if err := s.emitter.Emit(ctx, ports.Event{
		Type:       ports.EventTransactionUpdated,
		OccurredAt: time.Now().UTC(),
		Payload: map[string]any{
			"transaction_id": txn.ID.String(),
			"provider":       string(txn.Provider),
			"status":         string(txn.Status),
		},
	}); err != nil {
		s.log.Warn().Err(err).Msg("transaction_updated event not published")
	}
}
