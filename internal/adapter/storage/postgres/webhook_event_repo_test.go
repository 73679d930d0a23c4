package postgres

import (
	"context"
	"testing"
	"time"

	"payment-orchestrator/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWebhookEvent() *domain.WebhookEvent {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.WebhookEvent{
		ID:              uuid.New(),
		Provider:        domain.ProviderKRXPay,
		ProviderEventID: "evt_abc123",
		Type:            "payment.approved",
		Payload:         []byte(`{"id":"evt_abc123"}`),
		ReceivedAt:      now,
		UpdatedAt:       now,
	}
}

func webhookEventColumnNames() []string {
	return []string{"id", "provider", "provider_event_id", "type", "payload", "processed",
		"error_class", "last_error", "retry_count", "next_retry_at", "dead_letter", "dead_letter_reason",
		"received_at", "processed_at", "updated_at"}
}

func webhookEventRow(e *domain.WebhookEvent) *pgxmock.Rows {
	return pgxmock.NewRows(webhookEventColumnNames()).AddRow(
		e.ID, e.Provider, e.ProviderEventID, e.Type, e.Payload, e.Processed,
		e.ErrorClass, e.LastError, e.RetryCount, e.NextRetryAt, e.DeadLetter, e.DeadLetterReason,
		e.ReceivedAt, e.ProcessedAt, e.UpdatedAt,
	)
}

func TestWebhookEventRepo_Insert_New(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWebhookEventRepo(mock)
	event := newTestWebhookEvent()

	mock.ExpectExec("INSERT INTO webhook_events").
		WithArgs(
			event.ID, event.Provider, event.ProviderEventID, event.Type, event.Payload, event.Processed,
			event.ErrorClass, event.LastError, event.RetryCount, event.NextRetryAt, event.DeadLetter, event.DeadLetterReason,
			event.ProcessedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	created, existing, err := repo.Insert(context.Background(), event)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Nil(t, existing)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookEventRepo_Insert_Duplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWebhookEventRepo(mock)
	event := newTestWebhookEvent()

	stored := *event
	stored.Processed = true

	// ON CONFLICT DO NOTHING affects zero rows on redelivery; the repo then
	// loads the stored row so the caller can decide how to acknowledge.
	mock.ExpectExec("INSERT INTO webhook_events").
		WithArgs(
			event.ID, event.Provider, event.ProviderEventID, event.Type, event.Payload, event.Processed,
			event.ErrorClass, event.LastError, event.RetryCount, event.NextRetryAt, event.DeadLetter, event.DeadLetterReason,
			event.ProcessedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("SELECT .+ FROM webhook_events").
		WithArgs(event.Provider, event.ProviderEventID).
		WillReturnRows(webhookEventRow(&stored))

	created, existing, err := repo.Insert(context.Background(), event)
	require.NoError(t, err)
	assert.False(t, created)
	require.NotNil(t, existing)
	assert.True(t, existing.Processed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookEventRepo_MarkProcessed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWebhookEventRepo(mock)
	id := uuid.New()

	mock.ExpectExec("UPDATE webhook_events").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, repo.MarkProcessed(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookEventRepo_MarkFailed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWebhookEventRepo(mock)
	id := uuid.New()
	next := time.Now().Add(30 * time.Second)

	mock.ExpectExec("UPDATE webhook_events").
		WithArgs(id, domain.WebhookErrorHandler, "transaction lookup failed", 2, next).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.MarkFailed(context.Background(), id, domain.WebhookErrorHandler, "transaction lookup failed", 2, next)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookEventRepo_MarkDeadLetter(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWebhookEventRepo(mock)
	id := uuid.New()

	mock.ExpectExec("UPDATE webhook_events").
		WithArgs(id, domain.WebhookErrorHandler, "retry budget exhausted").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.MarkDeadLetter(context.Background(), id, domain.WebhookErrorHandler, "retry budget exhausted")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookEventRepo_MarkProcessed_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWebhookEventRepo(mock)

	mock.ExpectExec("UPDATE webhook_events").
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.MarkProcessed(context.Background(), uuid.New())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookEventRepo_ListRetryable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWebhookEventRepo(mock)
	now := time.Now().UTC()

	e1 := newTestWebhookEvent()
	e2 := newTestWebhookEvent()
	e2.ProviderEventID = "evt_def456"

	rows := pgxmock.NewRows(webhookEventColumnNames())
	for _, e := range []*domain.WebhookEvent{e1, e2} {
		rows.AddRow(
			e.ID, e.Provider, e.ProviderEventID, e.Type, e.Payload, e.Processed,
			e.ErrorClass, e.LastError, e.RetryCount, e.NextRetryAt, e.DeadLetter, e.DeadLetterReason,
			e.ReceivedAt, e.ProcessedAt, e.UpdatedAt,
		)
	}

	mock.ExpectQuery("SELECT .+ FROM webhook_events").
		WithArgs(now, 100).
		WillReturnRows(rows)

	out, err := repo.ListRetryable(context.Background(), now, 100)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, e1.ProviderEventID, out[0].ProviderEventID)
	assert.Equal(t, e2.ProviderEventID, out[1].ProviderEventID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
