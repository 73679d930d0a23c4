package postgres

import (
	"context"
	"errors"
	"fmt"

	"payment-orchestrator/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const paymentMethodColumns = `id, customer_id, provider, account_id, provider_payment_method_id,
	brand, last4, exp_month, exp_year, is_default, fingerprint, status, created_at, updated_at`

// PaymentMethodRepo implements ports.PaymentMethodRepository.
type PaymentMethodRepo struct {
	pool Pool
}

// NewPaymentMethodRepo creates a new PaymentMethodRepo.
func NewPaymentMethodRepo(pool Pool) *PaymentMethodRepo {
	return &PaymentMethodRepo{pool: pool}
}

// Save upserts a vaulted method by (provider, account_id,
// provider_payment_method_id). Re-tokenizations of the same token refresh
// metadata instead of inserting a second row.
func (r *PaymentMethodRepo) Save(ctx context.Context, m *domain.CustomerPaymentMethod) (*domain.CustomerPaymentMethod, error) {
	query := `INSERT INTO customer_payment_methods
		(id, customer_id, provider, account_id, provider_payment_method_id,
		 brand, last4, exp_month, exp_year, is_default, fingerprint, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
		ON CONFLICT (provider, account_id, provider_payment_method_id) DO UPDATE SET
			brand = EXCLUDED.brand,
			last4 = EXCLUDED.last4,
			exp_month = EXCLUDED.exp_month,
			exp_year = EXCLUDED.exp_year,
			fingerprint = EXCLUDED.fingerprint,
			status = EXCLUDED.status,
			updated_at = now()
		RETURNING ` + paymentMethodColumns

	return r.scanMethod(r.pool.QueryRow(ctx, query,
		m.ID, m.CustomerID, m.Provider, m.AccountID, m.ProviderPaymentMethodID,
		m.Brand, m.Last4, m.ExpMonth, m.ExpYear, m.IsDefault, m.Fingerprint, m.Status,
	))
}

// GetByID fetches a method by UUID.
func (r *PaymentMethodRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.CustomerPaymentMethod, error) {
	query := `SELECT ` + paymentMethodColumns + ` FROM customer_payment_methods WHERE id = $1`
	return r.scanMethod(r.pool.QueryRow(ctx, query, id))
}

// GetByFingerprint finds an existing vault entry for the same physical
// card within the (customer, provider, account) scope.
func (r *PaymentMethodRepo) GetByFingerprint(ctx context.Context, customerID uuid.UUID, provider domain.Provider, accountID, fingerprint string) (*domain.CustomerPaymentMethod, error) {
	query := `SELECT ` + paymentMethodColumns + ` FROM customer_payment_methods
		WHERE customer_id = $1 AND provider = $2 AND account_id = $3 AND fingerprint = $4 AND status = 'ACTIVE'`
	return r.scanMethod(r.pool.QueryRow(ctx, query, customerID, provider, accountID, fingerprint))
}

// SetDefault flips the default flag in one statement: the chosen method
// becomes default and every sibling loses the flag atomically, so no
// reader can observe zero or two defaults.
func (r *PaymentMethodRepo) SetDefault(ctx context.Context, customerID uuid.UUID, provider domain.Provider, accountID string, methodID uuid.UUID) error {
	query := `UPDATE customer_payment_methods
		SET is_default = (id = $4), updated_at = now()
		WHERE customer_id = $1 AND provider = $2 AND account_id = $3`

	tag, err := r.pool.Exec(ctx, query, customerID, provider, accountID, methodID)
	if err != nil {
		return fmt.Errorf("set default payment method: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payment method not found: %s", methodID)
	}
	return nil
}

// GetDefault fetches the default ACTIVE method for the scope.
func (r *PaymentMethodRepo) GetDefault(ctx context.Context, customerID uuid.UUID, provider domain.Provider, accountID string) (*domain.CustomerPaymentMethod, error) {
	query := `SELECT ` + paymentMethodColumns + ` FROM customer_payment_methods
		WHERE customer_id = $1 AND provider = $2 AND account_id = $3 AND is_default = true AND status = 'ACTIVE'`
	return r.scanMethod(r.pool.QueryRow(ctx, query, customerID, provider, accountID))
}

// List returns ACTIVE methods for a customer, optionally scoped to one
// provider, newest first.
func (r *PaymentMethodRepo) List(ctx context.Context, customerID uuid.UUID, provider *domain.Provider) ([]domain.CustomerPaymentMethod, error) {
	query := `SELECT ` + paymentMethodColumns + ` FROM customer_payment_methods
		WHERE customer_id = $1 AND status = 'ACTIVE'`
	args := []any{customerID}
	if provider != nil {
		query += ` AND provider = $2`
		args = append(args, *provider)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	defer rows.Close()

	var out []domain.CustomerPaymentMethod
	for rows.Next() {
		var m domain.CustomerPaymentMethod
		if err := rows.Scan(
			&m.ID, &m.CustomerID, &m.Provider, &m.AccountID, &m.ProviderPaymentMethodID,
			&m.Brand, &m.Last4, &m.ExpMonth, &m.ExpYear, &m.IsDefault, &m.Fingerprint,
			&m.Status, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan payment method row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment method rows: %w", err)
	}
	return out, nil
}

func (r *PaymentMethodRepo) scanMethod(row pgx.Row) (*domain.CustomerPaymentMethod, error) {
	m := &domain.CustomerPaymentMethod{}
	err := row.Scan(
		&m.ID, &m.CustomerID, &m.Provider, &m.AccountID, &m.ProviderPaymentMethodID,
		&m.Brand, &m.Last4, &m.ExpMonth, &m.ExpYear, &m.IsDefault, &m.Fingerprint,
		&m.Status, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan payment method: %w", err)
	}
	return m, nil
}
