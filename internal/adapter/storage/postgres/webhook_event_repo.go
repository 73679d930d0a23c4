package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payment-orchestrator/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const webhookEventColumns = `id, provider, provider_event_id, type, payload, processed,
	error_class, last_error, retry_count, next_retry_at, dead_letter, dead_letter_reason,
	received_at, processed_at, updated_at`

// WebhookEventRepo implements ports.WebhookEventRepository.
type WebhookEventRepo struct {
	pool Pool
}

// NewWebhookEventRepo creates a new WebhookEventRepo.
func NewWebhookEventRepo(pool Pool) *WebhookEventRepo {
	return &WebhookEventRepo{pool: pool}
}

// Insert persists a received event. The unique index on
// (provider, provider_event_id) absorbs provider redelivery: on conflict
// nothing is written and the existing row is returned with created=false.
func (r *WebhookEventRepo) Insert(ctx context.Context, e *domain.WebhookEvent) (bool, *domain.WebhookEvent, error) {
	query := `INSERT INTO webhook_events
		(id, provider, provider_event_id, type, payload, processed,
		 error_class, last_error, retry_count, next_retry_at, dead_letter, dead_letter_reason,
		 received_at, processed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), $13, now())
		ON CONFLICT (provider, provider_event_id) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query,
		e.ID, e.Provider, e.ProviderEventID, e.Type, e.Payload, e.Processed,
		e.ErrorClass, e.LastError, e.RetryCount, e.NextRetryAt, e.DeadLetter, e.DeadLetterReason,
		e.ProcessedAt,
	)
	if err != nil {
		return false, nil, fmt.Errorf("insert webhook event: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil, nil
	}

	existing, err := r.GetByProviderEventID(ctx, e.Provider, e.ProviderEventID)
	if err != nil {
		return false, nil, err
	}
	return false, existing, nil
}

// GetByProviderEventID fetches an event by its provider-native id.
func (r *WebhookEventRepo) GetByProviderEventID(ctx context.Context, provider domain.Provider, providerEventID string) (*domain.WebhookEvent, error) {
	query := `SELECT ` + webhookEventColumns + ` FROM webhook_events
		WHERE provider = $1 AND provider_event_id = $2`
	return r.scanEvent(r.pool.QueryRow(ctx, query, provider, providerEventID))
}

// MarkProcessed records a successful dispatch.
func (r *WebhookEventRepo) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE webhook_events
		SET processed = true, processed_at = now(), next_retry_at = NULL, updated_at = now()
		WHERE id = $1`
	return r.exec(ctx, query, id)
}

// MarkFailed records a failed dispatch and schedules the next retry.
func (r *WebhookEventRepo) MarkFailed(ctx context.Context, id uuid.UUID, errClass, lastError string, retryCount int, nextRetryAt time.Time) error {
	query := `UPDATE webhook_events
		SET error_class = $2, last_error = $3, retry_count = $4, next_retry_at = $5, updated_at = now()
		WHERE id = $1`
	return r.exec(ctx, query, id, errClass, lastError, retryCount, nextRetryAt)
}

// MarkDeadLetter parks an event for manual intervention; automatic
// retrying stops here.
func (r *WebhookEventRepo) MarkDeadLetter(ctx context.Context, id uuid.UUID, errClass, reason string) error {
	query := `UPDATE webhook_events
		SET dead_letter = true, dead_letter_reason = $3, error_class = $2,
			next_retry_at = NULL, updated_at = now()
		WHERE id = $1`
	return r.exec(ctx, query, id, errClass, reason)
}

// ListRetryable returns unprocessed events whose retry time has passed,
// oldest first.
func (r *WebhookEventRepo) ListRetryable(ctx context.Context, now time.Time, limit int) ([]domain.WebhookEvent, error) {
	query := `SELECT ` + webhookEventColumns + ` FROM webhook_events
		WHERE processed = false AND dead_letter = false
			AND next_retry_at IS NOT NULL AND next_retry_at <= $1
		ORDER BY next_retry_at ASC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list retryable webhook events: %w", err)
	}
	defer rows.Close()

	var out []domain.WebhookEvent
	for rows.Next() {
		var e domain.WebhookEvent
		if err := rows.Scan(
			&e.ID, &e.Provider, &e.ProviderEventID, &e.Type, &e.Payload, &e.Processed,
			&e.ErrorClass, &e.LastError, &e.RetryCount, &e.NextRetryAt, &e.DeadLetter, &e.DeadLetterReason,
			&e.ReceivedAt, &e.ProcessedAt, &e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan webhook event row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate webhook event rows: %w", err)
	}
	return out, nil
}

func (r *WebhookEventRepo) exec(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update webhook event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("webhook event not found")
	}
	return nil
}

func (r *WebhookEventRepo) scanEvent(row pgx.Row) (*domain.WebhookEvent, error) {
	e := &domain.WebhookEvent{}
	err := row.Scan(
		&e.ID, &e.Provider, &e.ProviderEventID, &e.Type, &e.Payload, &e.Processed,
		&e.ErrorClass, &e.LastError, &e.RetryCount, &e.NextRetryAt, &e.DeadLetter, &e.DeadLetterReason,
		&e.ReceivedAt, &e.ProcessedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan webhook event: %w", err)
	}
	return e, nil
}
