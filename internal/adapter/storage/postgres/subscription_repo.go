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

const subscriptionColumns = `id, customer_id, merchant_id, product_id, provider, account_id,
	billing_model, status, current_period_start, current_period_end, interval_unit, interval_count,
	price_cents, currency, vault_payment_method_id, status_reason, canceled_at, created_at, updated_at`

// SubscriptionRepo implements ports.SubscriptionRepository.
type SubscriptionRepo struct {
	pool Pool
}

// NewSubscriptionRepo creates a new SubscriptionRepo.
func NewSubscriptionRepo(pool Pool) *SubscriptionRepo {
	return &SubscriptionRepo{pool: pool}
}

// Create inserts a new subscription.
func (r *SubscriptionRepo) Create(ctx context.Context, s *domain.CustomerSubscription) error {
	query := `INSERT INTO customer_subscriptions
		(id, customer_id, merchant_id, product_id, provider, account_id,
		 billing_model, status, current_period_start, current_period_end, interval_unit, interval_count,
		 price_cents, currency, vault_payment_method_id, status_reason, canceled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, now(), now())`

	_, err := r.pool.Exec(ctx, query,
		s.ID, s.CustomerID, s.MerchantID, s.ProductID, s.Provider, s.AccountID,
		s.BillingModel, s.Status, s.CurrentPeriodStart, s.CurrentPeriodEnd, s.IntervalUnit, s.IntervalCount,
		s.PriceCents, s.Currency, s.VaultPaymentMethodID, s.StatusReason, s.CanceledAt,
	)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

// GetByID fetches a subscription by UUID.
func (r *SubscriptionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.CustomerSubscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM customer_subscriptions WHERE id = $1`
	return r.scanSubscription(r.pool.QueryRow(ctx, query, id))
}

// ListDueIDs returns ids of subscriptions due for renewal in one
// (provider, billing model) family, oldest period end first.
func (r *SubscriptionRepo) ListDueIDs(ctx context.Context, provider domain.Provider, model domain.BillingModel, now time.Time, limit int) ([]uuid.UUID, error) {
	query := `SELECT id FROM customer_subscriptions
		WHERE provider = $1 AND billing_model = $2
			AND status IN ('TRIAL', 'ACTIVE', 'PAST_DUE')
			AND current_period_end <= $3
		ORDER BY current_period_end ASC
		LIMIT $4`

	rows, err := r.pool.Query(ctx, query, provider, model, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due subscriptions: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan due subscription id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due subscription ids: %w", err)
	}
	return ids, nil
}

// AdvancePeriod moves the subscription to the next billing period and
// ACTIVE status. The expectedEnd guard makes the advance a compare-and-set:
// when a concurrent renewal already moved the period, zero rows match and
// advanced=false is returned, so one cycle never advances twice.
func (r *SubscriptionRepo) AdvancePeriod(ctx context.Context, tx pgx.Tx, id uuid.UUID, start, end time.Time, expectedEnd time.Time) (bool, error) {
	query := `UPDATE customer_subscriptions
		SET status = 'ACTIVE', current_period_start = $2, current_period_end = $3,
			status_reason = NULL, updated_at = now()
		WHERE id = $1 AND current_period_end = $4
			AND status NOT IN ('CANCELED', 'INCOMPLETE_EXPIRED')`

	tag, err := tx.Exec(ctx, query, id, start, end, expectedEnd)
	if err != nil {
		return false, fmt.Errorf("advance subscription period: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateStatus sets the subscription status with an optional reason.
// Terminal states are never left.
func (r *SubscriptionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SubscriptionStatus, reason *string) error {
	query := `UPDATE customer_subscriptions
		SET status = $2, status_reason = $3,
			canceled_at = CASE WHEN $2 = 'CANCELED' THEN now() ELSE canceled_at END,
			updated_at = now()
		WHERE id = $1 AND status NOT IN ('CANCELED', 'INCOMPLETE_EXPIRED')`

	tag, err := r.pool.Exec(ctx, query, id, status, reason)
	if err != nil {
		return fmt.Errorf("update subscription status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("subscription not found or terminal: %s", id)
	}
	return nil
}

func (r *SubscriptionRepo) scanSubscription(row pgx.Row) (*domain.CustomerSubscription, error) {
	s := &domain.CustomerSubscription{}
	err := row.Scan(
		&s.ID, &s.CustomerID, &s.MerchantID, &s.ProductID, &s.Provider, &s.AccountID,
		&s.BillingModel, &s.Status, &s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.IntervalUnit, &s.IntervalCount,
		&s.PriceCents, &s.Currency, &s.VaultPaymentMethodID, &s.StatusReason, &s.CanceledAt,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	return s, nil
}
