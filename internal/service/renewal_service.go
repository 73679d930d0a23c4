package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payment-orchestrator/config"
	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"
	"payment-orchestrator/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RenewalServiceImpl implements ports.RenewalService. The cardinal rule:
// a subscription is never charged twice for the same billing period. The
// deterministic order id per (subscription, period) makes every retry,
// crash replay and concurrent execution converge on one transaction row.
type RenewalServiceImpl struct {
	subRepo      ports.SubscriptionRepository
	txRepo       ports.TransactionRepository
	pmRepo       ports.PaymentMethodRepository
	customerRepo ports.CustomerRepository
	registry     ports.ProviderRegistry
	transactor   ports.DBTransactor
	emitter      ports.EventEmitter
	cfg          config.RenewalConfig
	log          zerolog.Logger
}

// NewRenewalService creates a new RenewalServiceImpl.
func NewRenewalService(
	subRepo ports.SubscriptionRepository,
	txRepo ports.TransactionRepository,
	pmRepo ports.PaymentMethodRepository,
	customerRepo ports.CustomerRepository,
	registry ports.ProviderRegistry,
	transactor ports.DBTransactor,
	emitter ports.EventEmitter,
	cfg config.RenewalConfig,
	log zerolog.Logger,
) *RenewalServiceImpl {
	return &RenewalServiceImpl{
		subRepo:      subRepo,
		txRepo:       txRepo,
		pmRepo:       pmRepo,
		customerRepo: customerRepo,
		registry:     registry,
		transactor:   transactor,
		emitter:      emitter,
		cfg:          cfg,
		log:          log,
	}
}

// ListDue returns subscriptions due for renewal in one (provider,
// billing model) family.
func (s *RenewalServiceImpl) ListDue(ctx context.Context, provider domain.Provider, model domain.BillingModel, now time.Time, limit int) ([]uuid.UUID, error) {
	return s.subRepo.ListDueIDs(ctx, provider, model, now, limit)
}

// RenewOne processes one due subscription to a terminal outcome for this
// cycle. A returned error is transient and safe to retry; business
// failures (decline, missing payment method) are absorbed into PAST_DUE
// and never retried by the caller.
func (s *RenewalServiceImpl) RenewOne(ctx context.Context, subscriptionID uuid.UUID) (ports.RenewalOutcome, error) {
	sub, err := s.subRepo.GetByID(ctx, subscriptionID)
	if err != nil {
		return ports.RenewalSkipped, fmt.Errorf("load subscription: %w", err)
	}
	if sub == nil {
		return ports.RenewalSkipped, apperror.ErrNotFound("subscription")
	}

	now := time.Now().UTC()
	if sub.Status.IsTerminal() || !sub.Due(now) {
		return ports.RenewalSkipped, nil
	}

	if sub.BillingModel == domain.BillingManaged {
		return s.renewManaged(ctx, sub, now)
	}
	return s.renewPrepaid(ctx, sub, now)
}

// renewManaged handles provider-hosted agreements. The provider charges
// on its own schedule and our state advances via webhooks; the scheduler
// only marks the subscription past due after the grace window.
func (s *RenewalServiceImpl) renewManaged(ctx context.Context, sub *domain.CustomerSubscription, now time.Time) (ports.RenewalOutcome, error) {
	if now.Before(sub.CurrentPeriodEnd.Add(s.cfg.GracePeriod)) {
		return ports.RenewalSkipped, nil
	}
	reason := "provider did not confirm renewal within grace period"
	if err := s.subRepo.UpdateStatus(ctx, sub.ID, domain.SubscriptionStatusPastDue, &reason); err != nil {
		return ports.RenewalSkipped, fmt.Errorf("mark past due: %w", err)
	}
	s.log.Warn().
		Str("subscription_id", sub.ID.String()).
		Time("period_end", sub.CurrentPeriodEnd).
		Msg("Managed subscription past grace period without provider confirmation")
	return ports.RenewalPastDue, nil
}

// renewPrepaid charges the vaulted payment method for the next period.
func (s *RenewalServiceImpl) renewPrepaid(ctx context.Context, sub *domain.CustomerSubscription, now time.Time) (ports.RenewalOutcome, error) {
	periodKey := domain.PeriodKey(sub.CurrentPeriodEnd)
	orderID := domain.RenewalOrderID(sub.ID, periodKey)

	// A previous execution may already own this cycle.
	existing, err := s.txRepo.GetByProviderOrderID(ctx, sub.Provider, orderID)
	if err != nil {
		return ports.RenewalSkipped, fmt.Errorf("load renewal transaction: %w", err)
	}
	if existing != nil {
		return s.resumeExisting(ctx, sub, existing)
	}

	adapter, err := s.registry.Adapter(sub.Provider)
	if err != nil {
		// No adapter is a platform configuration problem; retrying later may
		// resolve it, so the subscription is left untouched.
		return ports.RenewalSkipped, err
	}

	method, outcome, err := s.chargeableMethod(ctx, sub, now)
	if method == nil {
		return outcome, err
	}

	link, err := s.customerRepo.GetProviderLink(ctx, sub.CustomerID, sub.Provider, sub.AccountID)
	if err != nil {
		return ports.RenewalSkipped, fmt.Errorf("load provider link: %w", err)
	}
	if link == nil {
		reason := "customer has no record at the subscription's provider"
		return s.markPastDue(ctx, sub, reason)
	}

	// Persist the attempt before charging: a crash between the provider
	// call and the write leaves a PENDING row that the next execution and
	// the webhook pipeline both converge on.
	txn := &domain.PaymentTransaction{
		ID:              domain.RenewalTransactionID(sub.Provider, orderID),
		Provider:        sub.Provider,
		ProviderOrderID: orderID,
		MerchantID:      sub.MerchantID,
		CustomerID:      sub.CustomerID,
		SubscriptionID:  &sub.ID,
		AmountCents:     sub.PriceCents,
		Currency:        sub.Currency,
		Method:          domain.MethodCard,
		Status:          domain.TransactionStatusPending,
	}
	if txn, err = s.txRepo.Upsert(ctx, txn); err != nil {
		return ports.RenewalSkipped, fmt.Errorf("persist pending renewal: %w", err)
	}

	result, chargeErr := adapter.CreateCharge(ctx, ports.ChargeRequest{
		OrderID:            orderID,
		AmountCents:        sub.PriceCents,
		Currency:           sub.Currency,
		ProviderCustomerID: link.ProviderCustomerID,
		PaymentMethodToken: method.ProviderPaymentMethodID,
		Description:        "subscription renewal " + periodKey,
	})
	if chargeErr != nil {
		if errors.Is(chargeErr, ports.ErrOutcomeUnknown) {
			// The charge may have settled. The PENDING row plus the
			// deterministic order id guarantee reconciliation cannot
			// double-charge.
			s.log.Warn().Err(chargeErr).
				Str("order_id", orderID).
				Msg("Renewal charge outcome unknown, awaiting reconciliation")
			return ports.RenewalPending, nil
		}
		// Transport failure before the provider accepted the order: the
		// caller retries, and the provider-side idempotency on orderID
		// absorbs a duplicate submission.
		return ports.RenewalSkipped, fmt.Errorf("renewal charge: %w", chargeErr)
	}

	return s.settleCharge(ctx, sub, txn, result)
}

// resumeExisting finishes a cycle whose transaction row already exists.
func (s *RenewalServiceImpl) resumeExisting(ctx context.Context, sub *domain.CustomerSubscription, txn *domain.PaymentTransaction) (ports.RenewalOutcome, error) {
	switch txn.Status {
	case domain.TransactionStatusPaid:
		// Charged but the period advance may have been lost to a crash.
		if err := s.advancePeriod(ctx, sub, txn); err != nil {
			return ports.RenewalSkipped, err
		}
		return ports.RenewalRenewed, nil
	case domain.TransactionStatusFailed:
		reason := "renewal charge declined"
		if txn.FailureReason != nil {
			reason = *txn.FailureReason
		}
		return s.markPastDue(ctx, sub, reason)
	default:
		// PENDING or PROCESSING: a charge is in flight; the webhook pipeline
		// or reconciliation will settle it. Never submit a second charge.
		return ports.RenewalPending, nil
	}
}

// chargeableMethod resolves the instrument to charge. A missing or
// unusable method is a business failure, not a retryable error.
func (s *RenewalServiceImpl) chargeableMethod(ctx context.Context, sub *domain.CustomerSubscription, now time.Time) (*domain.CustomerPaymentMethod, ports.RenewalOutcome, error) {
	var method *domain.CustomerPaymentMethod
	var err error
	if sub.VaultPaymentMethodID != nil {
		method, err = s.pmRepo.GetByID(ctx, *sub.VaultPaymentMethodID)
	} else {
		method, err = s.pmRepo.GetDefault(ctx, sub.CustomerID, sub.Provider, sub.AccountID)
	}
	if err != nil {
		return nil, ports.RenewalSkipped, fmt.Errorf("load payment method: %w", err)
	}
	if method == nil || !method.Usable(now) {
		reason := "no usable payment method on file"
		outcome, err := s.markPastDue(ctx, sub, reason)
		return nil, outcome, err
	}
	return method, "", nil
}

// settleCharge applies the synchronous provider answer.
func (s *RenewalServiceImpl) settleCharge(ctx context.Context, sub *domain.CustomerSubscription, txn *domain.PaymentTransaction, result *ports.ChargeResult) (ports.RenewalOutcome, error) {
	txn.StatusV2 = result.RawStatus

	switch result.Status {
	case ports.ChargeSucceeded:
		now := time.Now().UTC()
		txn.Status = domain.TransactionStatusPaid
		txn.ProcessedAt = &now
		if err := s.advanceWithTransaction(ctx, sub, txn); err != nil {
			return ports.RenewalSkipped, err
		}
		if err := s.emitter.Emit(ctx, ports.Event{
			Type:       ports.EventSubscriptionBilled,
			OccurredAt: now,
			Payload: map[string]any{
				"subscription_id": sub.ID.String(),
				"transaction_id":  txn.ID.String(),
				"amount_cents":    txn.AmountCents,
			},
		}); err != nil {
			s.log.Warn().Err(err).Msg("subscription_billed event not published")
		}
		s.log.Info().
			Str("subscription_id", sub.ID.String()).
			Str("order_id", txn.ProviderOrderID).
			Msg("Subscription renewed")
		return ports.RenewalRenewed, nil

	case ports.ChargeFailed:
		txn.Status = domain.TransactionStatusFailed
		if result.FailureReason != "" {
			reason := result.FailureReason
			txn.FailureReason = &reason
		}
		if _, err := s.txRepo.Upsert(ctx, txn); err != nil {
			return ports.RenewalSkipped, fmt.Errorf("persist failed renewal: %w", err)
		}
		reason := "renewal charge declined"
		if result.FailureReason != "" {
			reason = result.FailureReason
		}
		return s.markPastDue(ctx, sub, reason)

	default:
		txn.Status = domain.TransactionStatusProcessing
		if _, err := s.txRepo.Upsert(ctx, txn); err != nil {
			return ports.RenewalSkipped, fmt.Errorf("persist processing renewal: %w", err)
		}
		return ports.RenewalPending, nil
	}
}

// advanceWithTransaction writes the PAID transaction and the period
// advance in one database transaction.
func (s *RenewalServiceImpl) advanceWithTransaction(ctx context.Context, sub *domain.CustomerSubscription, txn *domain.PaymentTransaction) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if _, err := s.txRepo.UpsertTx(ctx, dbTx, txn); err != nil {
		return fmt.Errorf("upsert paid renewal: %w", err)
	}
	start, end := sub.NextPeriod(sub.CurrentPeriodEnd)
	advanced, err := s.subRepo.AdvancePeriod(ctx, dbTx, sub.ID, start, end, sub.CurrentPeriodEnd)
	if err != nil {
		return fmt.Errorf("advance period: %w", err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if !advanced {
		s.log.Debug().
			Str("subscription_id", sub.ID.String()).
			Msg("Billing period already advanced by a concurrent writer")
	}
	return nil
}

// advancePeriod re-runs only the period advance for an already-PAID
// cycle.
func (s *RenewalServiceImpl) advancePeriod(ctx context.Context, sub *domain.CustomerSubscription, txn *domain.PaymentTransaction) error {
	return s.advanceWithTransaction(ctx, sub, txn)
}

// markPastDue records a business failure for this cycle.
func (s *RenewalServiceImpl) markPastDue(ctx context.Context, sub *domain.CustomerSubscription, reason string) (ports.RenewalOutcome, error) {
	if err := s.subRepo.UpdateStatus(ctx, sub.ID, domain.SubscriptionStatusPastDue, &reason); err != nil {
		return ports.RenewalSkipped, fmt.Errorf("mark past due: %w", err)
	}
	s.log.Warn().
		Str("subscription_id", sub.ID.String()).
		Str("reason", reason).
		Msg("Subscription past due")
	return ports.RenewalPastDue, nil
}
