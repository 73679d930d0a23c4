package service

import (
	"context"
	"fmt"
	"time"

	"payment-orchestrator/config"
	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"
	"payment-orchestrator/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// WebhookServiceImpl implements ports.WebhookIngestService. Providers
// deliver at least once; the pipeline converges on exactly-once side
// effects through the (provider, provider_event_id) unique index and
// conditional transaction upserts.
type WebhookServiceImpl struct {
	eventRepo  ports.WebhookEventRepository
	txRepo     ports.TransactionRepository
	subRepo    ports.SubscriptionRepository
	dedup      ports.DedupStore
	registry   ports.ProviderRegistry
	transactor ports.DBTransactor
	emitter    ports.EventEmitter
	cfg        config.WebhookConfig
	log        zerolog.Logger
}

// NewWebhookService creates a new WebhookServiceImpl.
func NewWebhookService(
	eventRepo ports.WebhookEventRepository,
	txRepo ports.TransactionRepository,
	subRepo ports.SubscriptionRepository,
	dedup ports.DedupStore,
	registry ports.ProviderRegistry,
	transactor ports.DBTransactor,
	emitter ports.EventEmitter,
	cfg config.WebhookConfig,
	log zerolog.Logger,
) *WebhookServiceImpl {
	return &WebhookServiceImpl{
		eventRepo:  eventRepo,
		txRepo:     txRepo,
		subRepo:    subRepo,
		dedup:      dedup,
		registry:   registry,
		transactor: transactor,
		emitter:    emitter,
		cfg:        cfg,
		log:        log,
	}
}

// Ingest handles one provider delivery. The raw payload is persisted
// before any side effect; a handler failure is retried by the worker, so
// the delivery is still acknowledged.
func (s *WebhookServiceImpl) Ingest(ctx context.Context, provider domain.Provider, payload []byte) (*ports.IngestAck, error) {
	adapter, err := s.registry.Adapter(provider)
	if err != nil {
		return nil, err
	}

	parsed, parseErr := adapter.ParseWebhook(payload)
	if parseErr != nil {
		return s.quarantine(ctx, provider, payload, parseErr)
	}

	// Fast path: Redis remembers recently seen event ids. A miss is never
	// authoritative, the DB unique index below is.
	fresh, err := s.dedup.CheckAndSet(ctx, provider, parsed.EventID, s.cfg.DedupTTL)
	if err != nil {
		s.log.Warn().Err(err).Msg("redis dedup check failed, falling through to DB")
	} else if !fresh {
		existing, err := s.eventRepo.GetByProviderEventID(ctx, provider, parsed.EventID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("dedup lookup: %w", err))
		}
		if existing != nil {
			return &ports.IngestAck{EventID: parsed.EventID, Duplicate: true}, nil
		}
	}

	created, _, err := s.eventRepo.Insert(ctx, &domain.WebhookEvent{
		ID:              uuid.New(),
		Provider:        provider,
		ProviderEventID: parsed.EventID,
		Type:            parsed.Type,
		Payload:         payload,
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("persist webhook event: %w", err))
	}
	if !created {
		return &ports.IngestAck{EventID: parsed.EventID, Duplicate: true}, nil
	}

	stored, err := s.eventRepo.GetByProviderEventID(ctx, provider, parsed.EventID)
	if err != nil || stored == nil {
		return nil, apperror.InternalError(fmt.Errorf("reload webhook event: %w", err))
	}

	if dispatchErr := s.dispatch(ctx, provider, parsed); dispatchErr != nil {
		s.scheduleRetry(ctx, stored, dispatchErr)
		return &ports.IngestAck{EventID: parsed.EventID}, nil
	}

	if err := s.eventRepo.MarkProcessed(ctx, stored.ID); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark processed: %w", err))
	}
	return &ports.IngestAck{EventID: parsed.EventID}, nil
}

// quarantine records an unparseable delivery straight into the dead
// letter queue. The delivery is acknowledged: redelivering a malformed
// payload can never succeed.
func (s *WebhookServiceImpl) quarantine(ctx context.Context, provider domain.Provider, payload []byte, parseErr error) (*ports.IngestAck, error) {
	errClass := domain.WebhookErrorMalformed
	msg := parseErr.Error()
	reason := "unparseable payload"
	_, _, err := s.eventRepo.Insert(ctx, &domain.WebhookEvent{
		ID:       uuid.New(),
		Provider: provider,
		// No provider event id exists; a synthetic one keeps the unique
		// index satisfied without ever colliding with a real delivery.
		ProviderEventID:  "malformed:" + uuid.NewString(),
		Type:             "unknown",
		Payload:          payload,
		ErrorClass:       &errClass,
		LastError:        &msg,
		DeadLetter:       true,
		DeadLetterReason: &reason,
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("quarantine webhook event: %w", err))
	}

	s.log.Warn().Err(parseErr).Str("provider", string(provider)).Msg("Malformed webhook quarantined")
	return &ports.IngestAck{Classification: domain.WebhookErrorMalformed}, nil
}

// ProcessPending re-dispatches events whose retry time has come. Returns
// how many reached a final outcome (processed or dead-lettered).
func (s *WebhookServiceImpl) ProcessPending(ctx context.Context, limit int) (int, error) {
	events, err := s.eventRepo.ListRetryable(ctx, time.Now().UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("list retryable events: %w", err)
	}

	finals := 0
	for i := range events {
		e := &events[i]
		adapter, err := s.registry.Adapter(e.Provider)
		if err != nil {
			s.log.Error().Str("provider", string(e.Provider)).Msg("retryable event for unconfigured provider")
			continue
		}
		parsed, parseErr := adapter.ParseWebhook(e.Payload)
		if parseErr != nil {
			// Payload was parseable at ingest time; treat as corrupt now.
			if err := s.eventRepo.MarkDeadLetter(ctx, e.ID, domain.WebhookErrorMalformed, parseErr.Error()); err != nil {
				s.log.Error().Err(err).Msg("mark dead letter failed")
				continue
			}
			finals++
			continue
		}

		if dispatchErr := s.dispatch(ctx, e.Provider, parsed); dispatchErr != nil {
			if s.retryOrDeadLetter(ctx, e, dispatchErr) {
				finals++
			}
			continue
		}
		if err := s.eventRepo.MarkProcessed(ctx, e.ID); err != nil {
			s.log.Error().Err(err).Msg("mark processed failed")
			continue
		}
		finals++
	}
	return finals, nil
}

// scheduleRetry records the first handler failure of a freshly ingested
// event.
func (s *WebhookServiceImpl) scheduleRetry(ctx context.Context, e *domain.WebhookEvent, dispatchErr error) {
	next := time.Now().UTC().Add(backoffDelay(s.cfg.BaseDelay, s.cfg.MaxDelay, 0))
	if err := s.eventRepo.MarkFailed(ctx, e.ID, domain.WebhookErrorHandler, dispatchErr.Error(), 1, next); err != nil {
		s.log.Error().Err(err).Str("event_id", e.ProviderEventID).Msg("mark failed failed")
		return
	}
	s.log.Warn().Err(dispatchErr).
		Str("event_id", e.ProviderEventID).
		Time("next_retry_at", next).
		Msg("Webhook handler failed, retry scheduled")
}

// retryOrDeadLetter advances the retry counter. The event is re-dispatched
// MaxRetries times after the initial failure; only a failure beyond that
// budget parks it in the dead letter queue. Returns true when the event
// reached a final state.
func (s *WebhookServiceImpl) retryOrDeadLetter(ctx context.Context, e *domain.WebhookEvent, dispatchErr error) bool {
	attempt := e.RetryCount + 1
	if attempt > s.cfg.MaxRetries {
		if err := s.eventRepo.MarkDeadLetter(ctx, e.ID, domain.WebhookErrorHandler, dispatchErr.Error()); err != nil {
			s.log.Error().Err(err).Msg("mark dead letter failed")
			return false
		}
		s.log.Error().Err(dispatchErr).
			Str("event_id", e.ProviderEventID).
			Int("attempts", attempt).
			Msg("Webhook retries exhausted, dead-lettered")
		return true
	}

	next := time.Now().UTC().Add(backoffDelay(s.cfg.BaseDelay, s.cfg.MaxDelay, attempt))
	if err := s.eventRepo.MarkFailed(ctx, e.ID, domain.WebhookErrorHandler, dispatchErr.Error(), attempt, next); err != nil {
		s.log.Error().Err(err).Msg("mark failed failed")
	}
	return false
}

// dispatch applies one normalized event to the transaction and
// subscription state. Idempotent: the conditional upsert and the
// period-advance CAS both absorb replays.
func (s *WebhookServiceImpl) dispatch(ctx context.Context, provider domain.Provider, ev *domain.ProviderEvent) error {
	if ev.MappedStatus == "" {
		// Unknown event type: acknowledged and recorded, no state change.
		s.log.Debug().
			Str("provider", string(provider)).
			Str("type", ev.Type).
			Str("status", ev.Status).
			Msg("Webhook event type has no transaction mapping, ignoring")
		return nil
	}

	txn, err := s.txRepo.GetByProviderOrderID(ctx, provider, ev.OrderID)
	if err != nil {
		return fmt.Errorf("load transaction: %w", err)
	}
	if txn == nil {
		txn, err = s.synthesizeTransaction(ctx, provider, ev)
		if err != nil {
			return err
		}
	}

	txn.Status = ev.MappedStatus
	txn.StatusV2 = ev.Status
	if ev.MappedStatus == domain.TransactionStatusPaid && txn.ProcessedAt == nil {
		now := time.Now().UTC()
		txn.ProcessedAt = &now
	}

	if ev.SubscriptionID != nil {
		if err := s.applySubscriptionEffect(ctx, txn, ev); err != nil {
			return err
		}
	} else {
		if txn, err = s.txRepo.Upsert(ctx, txn); err != nil {
			return fmt.Errorf("upsert transaction: %w", err)
		}
	}

	if err := s.emitter.Emit(ctx, ports.Event{
		Type:       ports.EventTransactionUpdated,
		OccurredAt: time.Now().UTC(),
		Payload: map[string]any{
			"transaction_id": txn.ID.String(),
			"provider":       string(provider),
			"status":         string(txn.Status),
		},
	}); err != nil {
		s.log.Warn().Err(err).Msg("transaction_updated event not published")
	}
	return nil
}

// synthesizeTransaction creates the transaction row for a charge we did
// not initiate, such as a provider-managed subscription billing.
func (s *WebhookServiceImpl) synthesizeTransaction(ctx context.Context, provider domain.Provider, ev *domain.ProviderEvent) (*domain.PaymentTransaction, error) {
	if ev.SubscriptionID == nil {
		return nil, fmt.Errorf("no transaction for order %s and no subscription reference", ev.OrderID)
	}
	sub, err := s.subRepo.GetByID(ctx, *ev.SubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	if sub == nil {
		return nil, fmt.Errorf("subscription %s not found for order %s", ev.SubscriptionID, ev.OrderID)
	}
	return &domain.PaymentTransaction{
		ID:              domain.RenewalTransactionID(provider, ev.OrderID),
		Provider:        provider,
		ProviderOrderID: ev.OrderID,
		MerchantID:      sub.MerchantID,
		CustomerID:      sub.CustomerID,
		SubscriptionID:  ev.SubscriptionID,
		AmountCents:     ev.AmountCents,
		Currency:        ev.Currency,
		Method:          domain.MethodCard,
	}, nil
}

// applySubscriptionEffect writes the transaction and the subscription
// transition atomically. A PAID billing advances the period through a
// compare-and-set on the current period end, so a replayed event can
// never advance twice.
func (s *WebhookServiceImpl) applySubscriptionEffect(ctx context.Context, txn *domain.PaymentTransaction, ev *domain.ProviderEvent) error {
	sub, err := s.subRepo.GetByID(ctx, *ev.SubscriptionID)
	if err != nil {
		return fmt.Errorf("load subscription: %w", err)
	}
	if sub == nil {
		return fmt.Errorf("subscription %s not found", ev.SubscriptionID)
	}

	switch ev.MappedStatus {
	case domain.TransactionStatusPaid:
		dbTx, err := s.transactor.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer dbTx.Rollback(ctx) //nolint:errcheck

		if _, err := s.txRepo.UpsertTx(ctx, dbTx, txn); err != nil {
			return fmt.Errorf("upsert transaction: %w", err)
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
		if err := s.emitter.Emit(ctx, ports.Event{
			Type:       ports.EventSubscriptionBilled,
			OccurredAt: time.Now().UTC(),
			Payload: map[string]any{
				"subscription_id": sub.ID.String(),
				"transaction_id":  txn.ID.String(),
				"amount_cents":    txn.AmountCents,
			},
		}); err != nil {
			s.log.Warn().Err(err).Msg("subscription_billed event not published")
		}
		return nil

	case domain.TransactionStatusFailed:
		if _, err := s.txRepo.Upsert(ctx, txn); err != nil {
			return fmt.Errorf("upsert transaction: %w", err)
		}
		if sub.Status.IsTerminal() {
			return nil
		}
		reason := "provider reported billing failure"
		if txn.FailureReason != nil {
			reason = *txn.FailureReason
		}
		if err := s.subRepo.UpdateStatus(ctx, sub.ID, domain.SubscriptionStatusPastDue, &reason); err != nil {
			return fmt.Errorf("mark past due: %w", err)
		}
		return nil

	default:
		_, err := s.txRepo.Upsert(ctx, txn)
		return err
	}
}

// backoffDelay is capped exponential backoff: base * 2^attempt, at most
// max.
func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
