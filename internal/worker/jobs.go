package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"payment-orchestrator/config"
	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RenewalJobs builds one sweep job per (provider, billing model) family,
// so a slow or failing provider never starves the others.
func RenewalJobs(svc ports.RenewalService, cfg config.RenewalConfig, log zerolog.Logger) []Job {
	var jobs []Job
	for _, provider := range domain.AllProviders {
		for _, model := range []domain.BillingModel{domain.BillingPrepaid, domain.BillingManaged} {
			p, m := provider, model
			jobs = append(jobs, Job{
				Name:         fmt.Sprintf("renewal:%s:%s", p, m),
				PollInterval: cfg.PollInterval,
				Execute: func(ctx context.Context) error {
					return sweepRenewals(ctx, svc, p, m, cfg, log)
				},
			})
		}
	}
	return jobs
}

// sweepRenewals processes one batch of due subscriptions with bounded
// concurrency. Transient failures are retried with capped exponential
// backoff before the subscription is left for the next sweep.
func sweepRenewals(ctx context.Context, svc ports.RenewalService, provider domain.Provider, model domain.BillingModel, cfg config.RenewalConfig, log zerolog.Logger) error {
	ids, err := svc.ListDue(ctx, provider, model, time.Now().UTC(), cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("list due subscriptions: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	log.Info().
		Str("provider", string(provider)).
		Str("billing_model", string(model)).
		Int("due", len(ids)).
		Msg("Renewal sweep started")

	sem := make(chan struct{}, cfg.Concurrency)
	var wg sync.WaitGroup
	for _, id := range ids {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(subID uuid.UUID) {
			defer wg.Done()
			defer func() { <-sem }()
			renewWithRetry(ctx, svc, subID, cfg, log)
		}(id)
	}
	wg.Wait()
	return nil
}

func renewWithRetry(ctx context.Context, svc ports.RenewalService, subID uuid.UUID, cfg config.RenewalConfig, log zerolog.Logger) {
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if !sleepCtx(ctx, Backoff(cfg.BaseDelay, cfg.MaxDelay, attempt-1)) {
				return
			}
		}
		outcome, err := svc.RenewOne(ctx, subID)
		if err == nil {
			log.Debug().
				Str("subscription_id", subID.String()).
				Str("outcome", string(outcome)).
				Msg("Renewal task finished")
			return
		}
		lastErr = err
	}
	// Left for the next sweep; the deterministic order id makes the rerun
	// safe.
	log.Error().Err(lastErr).
		Str("subscription_id", subID.String()).
		Int("attempts", cfg.MaxAttempts).
		Msg("Renewal task exhausted retries")
}

// WebhookRetryJob re-dispatches failed webhook events on a schedule.
func WebhookRetryJob(svc ports.WebhookIngestService, cfg config.WebhookConfig, log zerolog.Logger) Job {
	return Job{
		Name:         "webhook:retry",
		PollInterval: cfg.PollInterval,
		Execute: func(ctx context.Context) error {
			n, err := svc.ProcessPending(ctx, cfg.BatchSize)
			if err != nil {
				return err
			}
			if n > 0 {
				log.Info().Int("finalized", n).Msg("Webhook retry pass finished")
			}
			return nil
		},
	}
}

// Backoff is capped exponential backoff: base doubled per attempt, never
// above max.
func Backoff(base, max time.Duration, attempt int) time.Duration {
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

// sleepCtx sleeps unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
