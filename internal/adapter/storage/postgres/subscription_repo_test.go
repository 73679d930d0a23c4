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

func TestSubscriptionRepo_AdvancePeriod(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSubscriptionRepo(mock)
	id := uuid.New()
	expectedEnd := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	newEnd := expectedEnd.AddDate(0, 1, 0)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE customer_subscriptions").
		WithArgs(id, expectedEnd, newEnd, expectedEnd).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	advanced, err := repo.AdvancePeriod(context.Background(), tx, id, expectedEnd, newEnd, expectedEnd)
	require.NoError(t, err)
	assert.True(t, advanced)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionRepo_AdvancePeriod_AlreadyAdvanced(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSubscriptionRepo(mock)
	id := uuid.New()
	expectedEnd := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	newEnd := expectedEnd.AddDate(0, 1, 0)

	// A concurrent renewal moved current_period_end already: the guard
	// matches zero rows and the caller sees advanced=false, no error.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE customer_subscriptions").
		WithArgs(id, expectedEnd, newEnd, expectedEnd).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	advanced, err := repo.AdvancePeriod(context.Background(), tx, id, expectedEnd, newEnd, expectedEnd)
	require.NoError(t, err)
	assert.False(t, advanced)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionRepo_ListDueIDs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSubscriptionRepo(mock)
	now := time.Now().UTC()
	id1, id2 := uuid.New(), uuid.New()

	mock.ExpectQuery("SELECT id FROM customer_subscriptions").
		WithArgs(domain.ProviderKRXPay, domain.BillingPrepaid, now, 200).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(id1).AddRow(id2))

	ids, err := repo.ListDueIDs(context.Background(), domain.ProviderKRXPay, domain.BillingPrepaid, now, 200)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id1, id2}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionRepo_UpdateStatus_Terminal(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSubscriptionRepo(mock)
	id := uuid.New()
	reason := "card declined"

	mock.ExpectExec("UPDATE customer_subscriptions").
		WithArgs(id, domain.SubscriptionStatusPastDue, &reason).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.UpdateStatus(context.Background(), id, domain.SubscriptionStatusPastDue, &reason)
	assert.Error(t, err, "canceled subscriptions must not change status")
	assert.NoError(t, mock.ExpectationsWereMet())
}
