package postgres

import (
	"context"
	"errors"
	"fmt"

	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, provider, provider_order_id, merchant_id, customer_id, subscription_id,
	amount_cents, currency, method, status, status_v2, failure_reason, created_at, updated_at, processed_at`

// upsertTransactionQuery implements the conditional status upsert keyed by
// (provider, provider_order_id). Last-terminal-wins: once the stored row
// is in a terminal status, a non-terminal incoming status leaves it
// untouched; terminal statuses (e.g. a refund after a payment) still apply.
const upsertTransactionQuery = `INSERT INTO payment_transactions
	(id, provider, provider_order_id, merchant_id, customer_id, subscription_id,
	 amount_cents, currency, method, status, status_v2, failure_reason, created_at, updated_at, processed_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now(), $13)
	ON CONFLICT (provider, provider_order_id) DO UPDATE SET
		status = CASE
			WHEN payment_transactions.status IN ('PAID', 'FAILED', 'REFUNDED', 'CHARGEBACK')
				AND EXCLUDED.status IN ('PENDING', 'PROCESSING')
			THEN payment_transactions.status
			ELSE EXCLUDED.status
		END,
		status_v2 = CASE
			WHEN payment_transactions.status IN ('PAID', 'FAILED', 'REFUNDED', 'CHARGEBACK')
				AND EXCLUDED.status IN ('PENDING', 'PROCESSING')
			THEN payment_transactions.status_v2
			ELSE EXCLUDED.status_v2
		END,
		failure_reason = COALESCE(EXCLUDED.failure_reason, payment_transactions.failure_reason),
		processed_at = COALESCE(payment_transactions.processed_at, EXCLUDED.processed_at),
		updated_at = now()
	RETURNING ` + transactionColumns

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Upsert writes a transaction idempotently per (provider, provider_order_id).
func (r *TransactionRepo) Upsert(ctx context.Context, t *domain.PaymentTransaction) (*domain.PaymentTransaction, error) {
	return r.scanTransaction(r.pool.QueryRow(ctx, upsertTransactionQuery, upsertArgs(t)...))
}

// UpsertTx is Upsert inside a caller-managed database transaction.
func (r *TransactionRepo) UpsertTx(ctx context.Context, tx pgx.Tx, t *domain.PaymentTransaction) (*domain.PaymentTransaction, error) {
	return r.scanTransaction(tx.QueryRow(ctx, upsertTransactionQuery, upsertArgs(t)...))
}

func upsertArgs(t *domain.PaymentTransaction) []any {
	return []any{
		t.ID, t.Provider, t.ProviderOrderID, t.MerchantID, t.CustomerID, t.SubscriptionID,
		t.AmountCents, t.Currency, t.Method, t.Status, t.StatusV2, t.FailureReason, t.ProcessedAt,
	}
}

// GetByProviderOrderID fetches a transaction by its provider-scoped order id.
func (r *TransactionRepo) GetByProviderOrderID(ctx context.Context, provider domain.Provider, orderID string) (*domain.PaymentTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM payment_transactions
		WHERE provider = $1 AND provider_order_id = $2`
	return r.scanTransaction(r.pool.QueryRow(ctx, query, provider, orderID))
}

// GetByID fetches a transaction by UUID.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM payment_transactions WHERE id = $1`
	return r.scanTransaction(r.pool.QueryRow(ctx, query, id))
}

// GetStats retrieves aggregated transaction counters for a merchant.
func (r *TransactionRepo) GetStats(ctx context.Context, merchantID uuid.UUID) (*ports.TransactionStats, error) {
	query := `SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE status = 'PAID') AS paid,
		COUNT(*) FILTER (WHERE status = 'FAILED') AS failed,
		COUNT(*) FILTER (WHERE status IN ('PENDING', 'PROCESSING')) AS pending,
		COALESCE(SUM(amount_cents) FILTER (WHERE status = 'PAID'), 0) AS paid_cents
		FROM payment_transactions WHERE merchant_id = $1`

	stats := &ports.TransactionStats{ByProvider: map[domain.Provider]int64{}}
	err := r.pool.QueryRow(ctx, query, merchantID).Scan(
		&stats.Total, &stats.Paid, &stats.Failed, &stats.Pending, &stats.PaidCents,
	)
	if err != nil {
		return nil, fmt.Errorf("get transaction stats: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT provider, COUNT(*) FROM payment_transactions WHERE merchant_id = $1 GROUP BY provider`,
		merchantID)
	if err != nil {
		return nil, fmt.Errorf("get per-provider stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p domain.Provider
		var n int64
		if err := rows.Scan(&p, &n); err != nil {
			return nil, fmt.Errorf("scan provider stat row: %w", err)
		}
		stats.ByProvider[p] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate provider stat rows: %w", err)
	}
	return stats, nil
}

func (r *TransactionRepo) scanTransaction(row pgx.Row) (*domain.PaymentTransaction, error) {
	t := &domain.PaymentTransaction{}
	err := row.Scan(
		&t.ID, &t.Provider, &t.ProviderOrderID, &t.MerchantID, &t.CustomerID, &t.SubscriptionID,
		&t.AmountCents, &t.Currency, &t.Method, &t.Status, &t.StatusV2, &t.FailureReason,
		&t.CreatedAt, &t.UpdatedAt, &t.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return t, nil
}
