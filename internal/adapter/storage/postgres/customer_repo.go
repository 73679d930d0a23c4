package postgres

import (
	"context"
	"errors"
	"fmt"

	"payment-orchestrator/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CustomerRepo implements ports.CustomerRepository.
type CustomerRepo struct {
	pool Pool
}

// NewCustomerRepo creates a new CustomerRepo.
func NewCustomerRepo(pool Pool) *CustomerRepo {
	return &CustomerRepo{pool: pool}
}

// Upsert inserts a customer or merges into the existing row for
// (merchant_id, email). COALESCE(NULLIF(..., ''), ...) keeps populated
// fields when the incoming value is blank, so a sparse checkout payload
// never erases profile data.
func (r *CustomerRepo) Upsert(ctx context.Context, c *domain.Customer) (*domain.Customer, error) {
	query := `INSERT INTO customers (id, merchant_id, email, name, phone, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (merchant_id, email) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), customers.name),
			phone = COALESCE(EXCLUDED.phone, customers.phone),
			document = COALESCE(EXCLUDED.document, customers.document),
			updated_at = now()
		RETURNING id, merchant_id, email, name, phone, document, created_at, updated_at`

	email := domain.NormalizeEmail(c.Email)
	return r.scanCustomer(r.pool.QueryRow(ctx, query,
		c.ID, c.MerchantID, email, c.Name, c.Phone, c.Document,
	))
}

// GetByID fetches a customer by UUID.
func (r *CustomerRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	query := `SELECT id, merchant_id, email, name, phone, document, created_at, updated_at
		FROM customers WHERE id = $1`
	return r.scanCustomer(r.pool.QueryRow(ctx, query, id))
}

// GetByEmail fetches a customer by merchant and normalized email.
func (r *CustomerRepo) GetByEmail(ctx context.Context, merchantID uuid.UUID, email string) (*domain.Customer, error) {
	query := `SELECT id, merchant_id, email, name, phone, document, created_at, updated_at
		FROM customers WHERE merchant_id = $1 AND email = $2`
	return r.scanCustomer(r.pool.QueryRow(ctx, query, merchantID, domain.NormalizeEmail(email)))
}

// EnsureProviderLink upserts a customer-provider link. The unique index on
// (customer_id, provider, account_id) makes retries converge on one row.
func (r *CustomerRepo) EnsureProviderLink(ctx context.Context, link *domain.CustomerProvider) (*domain.CustomerProvider, error) {
	query := `INSERT INTO customer_providers (id, customer_id, provider, account_id, provider_customer_id, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (customer_id, provider, account_id) DO UPDATE SET
			provider_customer_id = EXCLUDED.provider_customer_id
		RETURNING id, customer_id, provider, account_id, provider_customer_id, created_at`

	out := &domain.CustomerProvider{}
	err := r.pool.QueryRow(ctx, query,
		link.ID, link.CustomerID, link.Provider, link.AccountID, link.ProviderCustomerID,
	).Scan(&out.ID, &out.CustomerID, &out.Provider, &out.AccountID, &out.ProviderCustomerID, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("ensure provider link: %w", err)
	}
	return out, nil
}

// GetProviderLink fetches the link for (customer, provider, account).
func (r *CustomerRepo) GetProviderLink(ctx context.Context, customerID uuid.UUID, provider domain.Provider, accountID string) (*domain.CustomerProvider, error) {
	query := `SELECT id, customer_id, provider, account_id, provider_customer_id, created_at
		FROM customer_providers WHERE customer_id = $1 AND provider = $2 AND account_id = $3`

	out := &domain.CustomerProvider{}
	err := r.pool.QueryRow(ctx, query, customerID, provider, accountID).Scan(
		&out.ID, &out.CustomerID, &out.Provider, &out.AccountID, &out.ProviderCustomerID, &out.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan provider link: %w", err)
	}
	return out, nil
}

func (r *CustomerRepo) scanCustomer(row pgx.Row) (*domain.Customer, error) {
	c := &domain.Customer{}
	err := row.Scan(&c.ID, &c.MerchantID, &c.Email, &c.Name, &c.Phone, &c.Document, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan customer: %w", err)
	}
	return c, nil
}
